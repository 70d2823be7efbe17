package service

import "ACDB/internal/domain"

type SetActiveDatabaseService struct {
	contexts *domain.ContextManager
}

func NewSetActiveDatabaseService(contexts *domain.ContextManager) *SetActiveDatabaseService {
	return &SetActiveDatabaseService{contexts: contexts}
}

type SetActiveDatabaseCommand struct {
	DatabaseIndex int
}

func (s *SetActiveDatabaseService) Execute(command SetActiveDatabaseCommand) error {
	s.contexts.Lock()
	defer s.contexts.Unlock()
	return s.contexts.SetActive(command.DatabaseIndex)
}
