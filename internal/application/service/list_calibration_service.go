package service

import (
	"ACDB/internal/domain"
	"ACDB/internal/platform/repository/heap"
)

type ListCalibrationService struct {
	contexts *domain.ContextManager
	heaps    *heap.Manager
}

func NewListCalibrationService(contexts *domain.ContextManager, heaps *heap.Manager) *ListCalibrationService {
	return &ListCalibrationService{
		contexts: contexts,
		heaps:    heaps,
	}
}

// Execute returns copies of the active heap's maps in key order.
func (s *ListCalibrationService) Execute() ([]*domain.DeltaDataMap, error) {
	s.contexts.Lock()
	defer s.contexts.Unlock()

	maps, err := s.heaps.ListMaps()
	if err != nil {
		return nil, err
	}
	copies := make([]*domain.DeltaDataMap, 0, len(maps))
	for _, m := range maps {
		copies = append(copies, m.Clone())
	}
	return copies, nil
}
