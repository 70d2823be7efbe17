package service

import (
	"ACDB/internal/domain"
	"ACDB/internal/platform/repository/delta"
)

type SaveDeltaService struct {
	contexts *domain.ContextManager
	deltas   *delta.Manager
}

func NewSaveDeltaService(contexts *domain.ContextManager, deltas *delta.Manager) *SaveDeltaService {
	return &SaveDeltaService{
		contexts: contexts,
		deltas:   deltas,
	}
}

type SaveDeltaResult struct {
	Saved bool
}

// Execute saves the active delta file. Nothing is written while persistence
// is disabled.
func (s *SaveDeltaService) Execute() (SaveDeltaResult, error) {
	s.contexts.Lock()
	defer s.contexts.Unlock()

	if !s.deltas.IsPersistEnabled() {
		return SaveDeltaResult{Saved: false}, nil
	}
	if err := s.deltas.Save(); err != nil {
		return SaveDeltaResult{}, err
	}
	return SaveDeltaResult{Saved: true}, nil
}
