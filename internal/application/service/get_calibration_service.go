package service

import (
	"ACDB/internal/domain"
	"ACDB/internal/platform/repository/heap"

	"github.com/pkg/errors"
)

type GetCalibrationService struct {
	contexts *domain.ContextManager
	heaps    *heap.Manager
}

func NewGetCalibrationService(contexts *domain.ContextManager, heaps *heap.Manager) *GetCalibrationService {
	return &GetCalibrationService{
		contexts: contexts,
		heaps:    heaps,
	}
}

type GetCalibrationQuery struct {
	KeyVector domain.KeyVector
}

type GetCalibrationResult struct {
	Map   *domain.DeltaDataMap
	Found bool
}

func (s *GetCalibrationService) Execute(query GetCalibrationQuery) (GetCalibrationResult, error) {
	s.contexts.Lock()
	defer s.contexts.Unlock()

	m, err := s.heaps.LookupCalMap(query.KeyVector)
	if errors.Is(err, domain.ErrNotExist) {
		return GetCalibrationResult{Found: false}, nil
	}
	if err != nil {
		return GetCalibrationResult{}, err
	}
	return GetCalibrationResult{Map: m.Clone(), Found: true}, nil
}
