package service

import (
	"ACDB/internal/domain"
	"ACDB/internal/platform/repository/delta"
	"ACDB/internal/platform/repository/heap"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type SetCalibrationService struct {
	contexts *domain.ContextManager
	heaps    *heap.Manager
	deltas   *delta.Manager
	logger   logrus.FieldLogger
}

func NewSetCalibrationService(contexts *domain.ContextManager, heaps *heap.Manager, deltas *delta.Manager,
	logger logrus.FieldLogger) *SetCalibrationService {
	return &SetCalibrationService{
		contexts: contexts,
		heaps:    heaps,
		deltas:   deltas,
		logger:   logger,
	}
}

type SetCalibrationCommand struct {
	Map *domain.DeltaDataMap
}

type SetCalibrationResult struct {
	Map   *domain.DeltaDataMap
	Saved bool
}

type updateMarker interface {
	MarkUpdated()
}

// Execute merges the map into the active heap and, with persistence
// enabled, saves the active delta file.
func (s *SetCalibrationService) Execute(command SetCalibrationCommand) (SetCalibrationResult, error) {
	if command.Map == nil || len(command.Map.KeyVector) == 0 {
		return SetCalibrationResult{}, errors.Wrap(domain.ErrBadParam, "calibration map has no key vector")
	}

	s.contexts.Lock()
	defer s.contexts.Unlock()

	ctx := s.contexts.GetActiveHandle()
	if ctx == nil {
		return SetCalibrationResult{}, errors.Wrap(domain.ErrHandle, "no active database")
	}
	stored, err := s.heaps.SetMap(ctx.HeapHandle, command.Map.Clone())
	if err != nil {
		return SetCalibrationResult{}, err
	}
	if marker, ok := ctx.DeltaManagerHandle.(updateMarker); ok {
		marker.MarkUpdated()
	}

	result := SetCalibrationResult{Map: stored.Clone()}
	if s.deltas.IsPersistEnabled() && ctx.DeltaManagerHandle != nil {
		if err := s.deltas.Save(); err != nil {
			return result, err
		}
		result.Saved = true
	}
	return result, nil
}
