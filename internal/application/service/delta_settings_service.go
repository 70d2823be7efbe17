package service

import (
	"ACDB/internal/domain"
	"ACDB/internal/platform/repository/delta"
)

// DeltaSettingsService reads delta file versions and toggles persistence.
type DeltaSettingsService struct {
	contexts *domain.ContextManager
	deltas   *delta.Manager
}

func NewDeltaSettingsService(contexts *domain.ContextManager, deltas *delta.Manager) *DeltaSettingsService {
	return &DeltaSettingsService{
		contexts: contexts,
		deltas:   deltas,
	}
}

func (s *DeltaSettingsService) Version(databaseIndex int) (delta.Version, error) {
	s.contexts.Lock()
	defer s.contexts.Unlock()

	major, minor, err := s.deltas.GetVersion(databaseIndex)
	if err != nil {
		return delta.Version{}, err
	}
	return delta.Version{Major: major, Minor: minor}, nil
}

func (s *DeltaSettingsService) SetPersistence(enabled bool) {
	s.contexts.Lock()
	defer s.contexts.Unlock()
	s.deltas.EnablePersistence(enabled)
}

func (s *DeltaSettingsService) IsPersistEnabled() bool {
	return s.deltas.IsPersistEnabled()
}
