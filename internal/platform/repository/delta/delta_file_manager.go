package delta

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"
	"sync"
	"time"

	"ACDB/internal/domain"
	"ACDB/internal/platform/utils"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const DefaultMaxDatabases = 16

// CurrentFileVersion is stamped on delta files created by this build.
var CurrentFileVersion = utils.DeltaFileVersion{DeltaMajor: 1, DeltaMinor: 0}

// Heap is the part of the heap manager the delta manager reads from and
// loads into.
type Heap interface {
	ListMaps() ([]*domain.DeltaDataMap, error)
	AddMapUsingHandle(handle domain.HeapHandle, dataMap *domain.DeltaDataMap) (*domain.DeltaDataMap, error)
	SetMap(handle domain.HeapHandle, dataMap *domain.DeltaDataMap) (*domain.DeltaDataMap, error)
	ClearDatabaseHeap(handle domain.HeapHandle) error
}

type Options struct {
	MaxDatabases int
	ClampSlots   bool
	// Version is written into delta files that do not carry one yet.
	Version utils.DeltaFileVersion
}

type SwapInfo struct {
	FileIndex      int
	DeltaDirectory string
	Mode           AccessMode
}

type Manager struct {
	mu             sync.Mutex
	initialized    bool
	databases      []*DatabaseInfo
	count          int
	persistEnabled bool
	heap           Heap
	contexts       domain.ActiveContextProvider
	fileManager    domain.FileManager
	notifier       domain.DeltaSaveNotifier
	options        Options
	logger         logrus.FieldLogger
}

func NewManager(heap Heap, contexts domain.ActiveContextProvider, fileManager domain.FileManager,
	notifier domain.DeltaSaveNotifier, options Options, logger logrus.FieldLogger) *Manager {
	if options.MaxDatabases <= 0 {
		options.MaxDatabases = DefaultMaxDatabases
	}
	if notifier == nil {
		notifier = domain.NoopNotifier{}
	}
	return &Manager{
		heap:        heap,
		contexts:    contexts,
		fileManager: fileManager,
		notifier:    notifier,
		options:     options,
		logger:      logger.WithField("component", "delta_file_manager"),
	}
}

func (m *Manager) Init() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.initialized {
		return
	}
	m.databases = make([]*DatabaseInfo, m.options.MaxDatabases)
	m.count = 0
	m.initialized = true
}

func (m *Manager) AddDatabase(info FileInfo) (*DatabaseInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		return nil, errors.Wrap(domain.ErrFailed, "delta file manager is not initialized")
	}

	slot := -1
	for i, d := range m.databases {
		if d == nil {
			slot = i
			break
		}
	}
	if slot < 0 {
		if !m.options.ClampSlots {
			return nil, errors.Wrapf(domain.ErrNoResource, "all %d delta file slots are in use", len(m.databases))
		}
		slot = len(m.databases) - 1
		if err := m.databases[slot].close(); err != nil {
			m.logger.WithError(err).WithField("path", m.databases[slot].path).Error("close replaced delta file")
		}
		m.logger.WithFields(logrus.Fields{
			"action":         "add_database",
			"database_index": slot,
		}).Warn("delta file slots exhausted, reusing last slot")
	} else {
		m.count++
	}

	d := &DatabaseInfo{
		fileIndex: info.FileIndex,
		file:      info.File,
		path:      info.Path,
		size:      info.Size,
		version:   info.Version,
		exists:    info.Exists,
	}
	m.databases[slot] = d
	return d, nil
}

func (m *Manager) RemoveDatabase(handle domain.DeltaHandle) error {
	d, err := resolve(handle)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.databases {
		if existing == d {
			m.databases[i] = nil
			m.count--
			break
		}
	}
	if err := d.close(); err != nil {
		return errors.Wrapf(domain.ErrFailed, "close delta file %s: %v", d.path, err)
	}
	return nil
}

func (m *Manager) Reset() {
	m.mu.Lock()
	databases := m.databases
	m.mu.Unlock()

	for _, d := range databases {
		if d != nil {
			if err := m.RemoveDatabase(d); err != nil {
				m.logger.WithError(err).WithField("path", d.path).Warn("remove delta database on reset")
			}
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.databases = nil
	m.count = 0
	m.persistEnabled = false
	m.initialized = false
}

func (m *Manager) EnablePersistence(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.persistEnabled = enabled
}

// IsPersistEnabled does not gate Save; callers check it before saving.
func (m *Manager) IsPersistEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.persistEnabled
}

func (m *Manager) FileCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

func (m *Manager) Find(fileIndex int) (*DatabaseInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.databases {
		if d != nil && d.fileIndex == fileIndex {
			return d, nil
		}
	}
	return nil, errors.Wrapf(domain.ErrNotExist, "no delta file for database %d", fileIndex)
}

// GetVersion reads the delta major and minor version from the start of the
// file. Files too short to hold a header and a version pair yield zeros.
func (m *Manager) GetVersion(fileIndex int) (major, minor uint32, err error) {
	d, err := m.Find(fileIndex)
	if err != nil {
		return 0, 0, err
	}
	if d.size < utils.MinVersionReadSize() {
		return 0, 0, nil
	}

	f, release, err := d.reader()
	if err != nil {
		return 0, 0, err
	}
	defer release()

	var pair [2]uint32
	if err := binary.Read(io.NewSectionReader(f, 0, 8), binary.LittleEndian, &pair); err != nil {
		return 0, 0, errors.Wrapf(domain.ErrFailed, "read version of %s: %v", d.path, err)
	}
	return pair[0], pair[1], nil
}

// reader returns the open file, or opens the path read-only when the handle
// was closed by a save.
func (d *DatabaseInfo) reader() (*os.File, func(), error) {
	if d.file != nil {
		return d.file, func() {}, nil
	}
	f, err := os.Open(d.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, errors.Wrapf(domain.ErrNotExist, "delta file %s", d.path)
		}
		return nil, nil, errors.Wrapf(domain.ErrFailed, "open delta file %s: %v", d.path, err)
	}
	return f, func() { f.Close() }, nil
}

// Save rewrites the active context's delta file from its heap. A context
// without a delta file is skipped.
func (m *Manager) Save() error {
	if m.contexts == nil {
		return errors.Wrap(domain.ErrHandle, "no context provider")
	}
	ctx := m.contexts.GetActiveHandle()
	if ctx == nil {
		return errors.Wrap(domain.ErrHandle, "no active context")
	}
	d, err := resolve(ctx.DeltaManagerHandle)
	if err != nil {
		m.logger.WithFields(logrus.Fields{
			"action":         "save",
			"database_index": ctx.DatabaseIndex,
		}).Warn("no delta file to save")
		return nil
	}
	logger := m.logger.WithFields(logrus.Fields{
		"action":         "save",
		"database_index": d.fileIndex,
		"path":           d.path,
	})

	if err := d.close(); err != nil {
		logger.WithError(err).Warn("close previous delta file")
	}
	if err := os.Remove(d.path); err != nil && !os.IsNotExist(err) {
		logger.WithError(err).Error("delete delta file")
		return errors.Wrapf(domain.ErrFailed, "delete delta file %s: %v", d.path, err)
	}
	f, err := os.OpenFile(d.path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		logger.WithError(err).Error("create delta file")
		return errors.Wrapf(domain.ErrFailed, "create delta file %s: %v", d.path, err)
	}
	defer f.Close()

	version := d.version
	if version == (utils.DeltaFileVersion{}) {
		version = m.options.Version
	}
	header := utils.DeltaFileHeader{Version: version}
	if err := utils.WriteFileHeader(f, header); err != nil {
		logger.WithError(err).Error("write provisional header")
		return errors.Wrapf(domain.ErrFailed, "write header: %v", err)
	}

	maps, err := m.heap.ListMaps()
	if err != nil {
		return err
	}

	w := bufio.NewWriter(f)
	for _, dataMap := range maps {
		if err := utils.WriteMap(w, dataMap); err != nil {
			logger.WithError(err).Error("write map")
			return errors.Wrapf(domain.ErrFailed, "write map: %v", err)
		}
	}
	if err := w.Flush(); err != nil {
		logger.WithError(err).Error("flush maps")
		return errors.Wrapf(domain.ErrFailed, "flush maps: %v", err)
	}

	stat, err := f.Stat()
	if err != nil {
		return errors.Wrapf(domain.ErrFailed, "stat delta file: %v", err)
	}
	header.DataSize = uint32(stat.Size() - utils.DeltaFileHeaderSize)
	header.MapCount = uint32(len(maps))
	if err := utils.WriteFileHeader(f, header); err != nil {
		logger.WithError(err).Error("write final header")
		return errors.Wrapf(domain.ErrFailed, "write header: %v", err)
	}
	if err := f.Sync(); err != nil {
		return errors.Wrapf(domain.ErrFailed, "sync delta file: %v", err)
	}

	d.size = stat.Size()
	d.version = version
	d.exists = true
	d.isUpdated = false
	logger.WithFields(logrus.Fields{
		"map_count": header.MapCount,
		"data_size": header.DataSize,
	}).Info("saved delta file")

	event := domain.DeltaSavedEvent{
		DatabaseIndex: d.fileIndex,
		Path:          d.path,
		MapCount:      header.MapCount,
		DataSize:      header.DataSize,
		SavedAt:       time.Now(),
	}
	if err := m.notifier.NotifyDeltaSaved(event); err != nil {
		logger.WithError(err).Warn("notify delta saved")
	}
	return nil
}

// InitHeap loads every map of the context's delta file into its heap.
func (m *Manager) InitHeap(ctx *domain.ContextHandle) error {
	return m.loadHeap(ctx, "init_heap", m.heap.AddMapUsingHandle)
}

// UpdateHeap merges every map of the context's delta file into its heap.
func (m *Manager) UpdateHeap(ctx *domain.ContextHandle) error {
	return m.loadHeap(ctx, "update_heap", m.heap.SetMap)
}

type mapLoader func(domain.HeapHandle, *domain.DeltaDataMap) (*domain.DeltaDataMap, error)

// loadHeap is all or nothing: on any failure the database heap is cleared.
func (m *Manager) loadHeap(ctx *domain.ContextHandle, action string, load mapLoader) error {
	if ctx == nil || ctx.HeapHandle == nil {
		return errors.Wrap(domain.ErrHandle, "context has no heap")
	}
	d, err := resolve(ctx.DeltaManagerHandle)
	if err != nil {
		return err
	}
	logger := m.logger.WithFields(logrus.Fields{
		"action":         action,
		"database_index": d.fileIndex,
		"path":           d.path,
	})

	f, release, err := d.reader()
	if err != nil {
		return err
	}
	defer release()

	stat, err := f.Stat()
	if err != nil {
		return errors.Wrapf(domain.ErrFailed, "stat delta file: %v", err)
	}
	size := stat.Size()
	if size <= utils.DeltaFileHeaderSize {
		logger.Debug("delta file has no maps")
		return nil
	}
	if !utils.IsFileValid(f, size) {
		logger.Warn("delta file header does not match its content")
		return errors.Wrapf(domain.ErrFailed, "delta file %s is invalid", d.path)
	}

	r := bufio.NewReader(io.NewSectionReader(f, utils.DeltaFileHeaderSize, size-utils.DeltaFileHeaderSize))
	loaded := 0
	for {
		dataMap, err := utils.ReadMap(r)
		if errors.Is(err, io.EOF) {
			break
		}
		if err == nil {
			_, err = load(ctx.HeapHandle, dataMap)
		}
		if err != nil {
			logger.WithError(err).WithField("loaded_maps", loaded).Error("load delta file")
			if clearErr := m.heap.ClearDatabaseHeap(ctx.HeapHandle); clearErr != nil {
				logger.WithError(clearErr).Error("clear database heap")
			}
			return errors.Wrapf(domain.ErrFailed, "%s: %v", action, err)
		}
		loaded++
	}

	logger.WithField("loaded_maps", loaded).Info("loaded delta file")
	return nil
}

// DeleteFile closes and removes the delta file of a database.
func (m *Manager) DeleteFile(fileIndex int) error {
	d, err := m.Find(fileIndex)
	if err != nil {
		return err
	}
	if err := d.close(); err != nil {
		m.logger.WithError(err).WithField("path", d.path).Warn("close delta file")
	}
	if err := os.Remove(d.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(domain.ErrFailed, "delete delta file %s: %v", d.path, err)
	}
	d.size = 0
	d.exists = false
	d.isUpdated = false
	return nil
}

func (m *Manager) DeleteAllFiles() error {
	m.mu.Lock()
	var indices []int
	for _, d := range m.databases {
		if d != nil {
			indices = append(indices, d.fileIndex)
		}
	}
	m.mu.Unlock()

	var firstErr error
	for _, idx := range indices {
		if err := m.DeleteFile(idx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// SwapDelta moves a database's delta file to another directory.
func (m *Manager) SwapDelta(info SwapInfo) error {
	d, err := m.Find(info.FileIndex)
	if err != nil {
		return err
	}
	path, err := m.deltaPath(info)
	if err != nil {
		return err
	}

	if err := d.close(); err != nil {
		m.logger.WithError(err).WithField("path", d.path).Warn("close delta file before swap")
	}
	opened, err := OpenFile(info.FileIndex, path, info.Mode)
	if err != nil {
		return err
	}

	d.file = opened.File
	d.path = opened.Path
	d.size = opened.Size
	d.exists = opened.Exists
	if opened.Version != (utils.DeltaFileVersion{}) {
		d.version = opened.Version
	}
	m.logger.WithFields(logrus.Fields{
		"action":         "swap_delta",
		"database_index": info.FileIndex,
		"path":           path,
	}).Info("swapped delta file")
	return nil
}

// IsFileAtPath probes the delta path SwapDelta would use without changing
// any state.
func (m *Manager) IsFileAtPath(info SwapInfo) error {
	path, err := m.deltaPath(info)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return errors.Wrapf(domain.ErrNotExist, "delta file %s", path)
		}
		return errors.Wrapf(domain.ErrFailed, "stat delta file %s: %v", path, err)
	}
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(domain.ErrFailed, "open delta file %s: %v", path, err)
	}
	return f.Close()
}

func (m *Manager) deltaPath(info SwapInfo) (string, error) {
	if m.fileManager == nil {
		return "", errors.Wrap(domain.ErrHandle, "no file manager")
	}
	acdbPath, err := m.fileManager.GetFileName(info.FileIndex)
	if err != nil {
		return "", err
	}
	return GetDeltaFilePath(acdbPath, info.DeltaDirectory), nil
}

func resolve(handle domain.DeltaHandle) (*DatabaseInfo, error) {
	d, ok := handle.(*DatabaseInfo)
	if !ok || d == nil {
		return nil, errors.Wrap(domain.ErrHandle, "delta handle is not set")
	}
	return d, nil
}
