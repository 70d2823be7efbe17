package service

import (
	"ACDB/internal/domain"
	"ACDB/internal/platform/repository/delta"

	"github.com/sirupsen/logrus"
)

type ReloadDeltaService struct {
	contexts *domain.ContextManager
	deltas   *delta.Manager
	logger   logrus.FieldLogger
}

func NewReloadDeltaService(contexts *domain.ContextManager, deltas *delta.Manager,
	logger logrus.FieldLogger) *ReloadDeltaService {
	return &ReloadDeltaService{
		contexts: contexts,
		deltas:   deltas,
		logger:   logger,
	}
}

type ReloadDeltaCommand struct {
	Path string
}

type ReloadDeltaResult struct {
	Reloaded []int
}

// Execute merges a delta file saved elsewhere into every open database
// backed by the same path.
func (s *ReloadDeltaService) Execute(command ReloadDeltaCommand) ReloadDeltaResult {
	s.contexts.Lock()
	defer s.contexts.Unlock()

	var result ReloadDeltaResult
	for _, ctx := range s.contexts.All() {
		if ctx.DeltaManagerHandle == nil || ctx.DeltaManagerHandle.Path() != command.Path {
			continue
		}
		if err := s.deltas.UpdateHeap(ctx); err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"action":         "reload_delta",
				"database_index": ctx.DatabaseIndex,
				"path":           command.Path,
			}).Warn("reload delta file")
			continue
		}
		result.Reloaded = append(result.Reloaded, ctx.DatabaseIndex)
	}
	return result
}
