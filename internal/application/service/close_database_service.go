package service

import (
	"ACDB/internal/domain"
	"ACDB/internal/platform/repository/acdbfile"
	"ACDB/internal/platform/repository/delta"
	"ACDB/internal/platform/repository/heap"

	"github.com/sirupsen/logrus"
)

type CloseDatabaseService struct {
	contexts *domain.ContextManager
	files    *acdbfile.Manager
	heaps    *heap.Manager
	deltas   *delta.Manager
	logger   logrus.FieldLogger
}

func NewCloseDatabaseService(contexts *domain.ContextManager, files *acdbfile.Manager, heaps *heap.Manager,
	deltas *delta.Manager, logger logrus.FieldLogger) *CloseDatabaseService {
	return &CloseDatabaseService{
		contexts: contexts,
		files:    files,
		heaps:    heaps,
		deltas:   deltas,
		logger:   logger,
	}
}

type CloseDatabaseCommand struct {
	DatabaseIndex int
}

func (s *CloseDatabaseService) Execute(command CloseDatabaseCommand) error {
	s.contexts.Lock()
	defer s.contexts.Unlock()

	ctx, err := s.contexts.Find(command.DatabaseIndex)
	if err != nil {
		return err
	}
	if ctx.DeltaManagerHandle != nil {
		if err := s.deltas.RemoveDatabase(ctx.DeltaManagerHandle); err != nil {
			s.logger.WithError(err).WithField("database_index", ctx.DatabaseIndex).Warn("remove delta database")
		}
	}
	if err := s.heaps.RemoveDatabase(ctx.HeapHandle); err != nil {
		return err
	}
	if err := s.files.RemoveDatabase(ctx.DatabaseIndex); err != nil {
		return err
	}
	s.contexts.Remove(ctx.DatabaseIndex)

	s.logger.WithFields(logrus.Fields{
		"action":         "close_database",
		"database_index": ctx.DatabaseIndex,
	}).Info("closed database")
	return nil
}
