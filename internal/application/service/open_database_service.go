package service

import (
	"ACDB/internal/domain"
	"ACDB/internal/platform/repository/acdbfile"
	"ACDB/internal/platform/repository/delta"
	"ACDB/internal/platform/repository/heap"
	"ACDB/internal/platform/utils"

	"github.com/sirupsen/logrus"
)

// DatabaseSettings are the process wide settings applied to every database
// that gets opened.
type DatabaseSettings struct {
	VmID           uint32
	DeltaDirectory string
}

type OpenDatabaseService struct {
	contexts *domain.ContextManager
	files    *acdbfile.Manager
	heaps    *heap.Manager
	deltas   *delta.Manager
	settings DatabaseSettings
	logger   logrus.FieldLogger
}

func NewOpenDatabaseService(contexts *domain.ContextManager, files *acdbfile.Manager, heaps *heap.Manager,
	deltas *delta.Manager, settings DatabaseSettings, logger logrus.FieldLogger) *OpenDatabaseService {
	return &OpenDatabaseService{
		contexts: contexts,
		files:    files,
		heaps:    heaps,
		deltas:   deltas,
		settings: settings,
		logger:   logger,
	}
}

type OpenDatabaseCommand struct {
	Path string
}

type OpenDatabaseResult struct {
	DatabaseIndex int
	DeltaPath     string
	DeltaLoaded   bool
	MapCount      int
}

// Execute registers the acdb file, gives it a heap and, when a delta
// directory is configured, a delta file. The new database becomes active and
// any maps already saved in its delta file are loaded.
func (s *OpenDatabaseService) Execute(command OpenDatabaseCommand) (OpenDatabaseResult, error) {
	s.contexts.Lock()
	defer s.contexts.Unlock()

	fileInfo, err := s.files.AddDatabase(command.Path)
	if err != nil {
		return OpenDatabaseResult{}, err
	}
	heapInfo, err := s.heaps.AddDatabase(s.settings.VmID)
	if err != nil {
		s.files.RemoveDatabase(fileInfo.Index)
		return OpenDatabaseResult{}, err
	}

	ctx := &domain.ContextHandle{
		VmID:              s.settings.VmID,
		DatabaseIndex:     fileInfo.Index,
		FileManagerHandle: fileInfo,
		HeapHandle:        heapInfo,
	}
	result := OpenDatabaseResult{DatabaseIndex: fileInfo.Index}
	logger := s.logger.WithFields(logrus.Fields{
		"action":         "open_database",
		"database_index": fileInfo.Index,
		"path":           fileInfo.Path,
	})

	if s.settings.DeltaDirectory != "" {
		deltaPath := delta.GetDeltaFilePath(fileInfo.Path, s.settings.DeltaDirectory)
		if handle, err := s.addDelta(fileInfo.Index, deltaPath); err != nil {
			logger.WithError(err).WithField("delta_path", deltaPath).Warn("database opened without delta file")
		} else {
			ctx.DeltaManagerHandle = handle
			result.DeltaPath = deltaPath
		}
	}

	if err := s.contexts.Add(ctx); err != nil {
		s.rollback(ctx)
		return OpenDatabaseResult{}, err
	}
	if err := s.contexts.SetActive(ctx.DatabaseIndex); err != nil {
		s.rollback(ctx)
		return OpenDatabaseResult{}, err
	}

	if d, ok := ctx.DeltaManagerHandle.(*delta.DatabaseInfo); ok && d.Size() > utils.DeltaFileHeaderSize {
		if err := s.deltas.InitHeap(ctx); err != nil {
			logger.WithError(err).Warn("delta file not loaded")
		} else {
			result.DeltaLoaded = true
		}
	}
	result.MapCount = heapInfo.Size()

	logger.WithFields(logrus.Fields{
		"delta_loaded": result.DeltaLoaded,
		"map_count":    result.MapCount,
	}).Info("opened database")
	return result, nil
}

func (s *OpenDatabaseService) addDelta(fileIndex int, path string) (domain.DeltaHandle, error) {
	info, err := delta.OpenFile(fileIndex, path, delta.ReadWrite)
	if err != nil {
		return nil, err
	}
	d, err := s.deltas.AddDatabase(info)
	if err != nil {
		info.File.Close()
		return nil, err
	}
	return d, nil
}

func (s *OpenDatabaseService) rollback(ctx *domain.ContextHandle) {
	if ctx.DeltaManagerHandle != nil {
		s.deltas.RemoveDatabase(ctx.DeltaManagerHandle)
	}
	s.heaps.RemoveDatabase(ctx.HeapHandle)
	s.files.RemoveDatabase(ctx.DatabaseIndex)
	s.contexts.Remove(ctx.DatabaseIndex)
}
