package heap

import (
	"sync"

	"ACDB/internal/domain"
	"ACDB/internal/platform/repository/avl_tree"
	"ACDB/internal/platform/utils"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	DefaultMaxDatabases    = 16
	DefaultLookupCacheSize = 256
)

type Options struct {
	MaxDatabases int
	// ClampSlots reuses the last slot when all slots are taken instead of
	// rejecting the database. The heap in that slot is cleared.
	ClampSlots      bool
	LookupCacheSize int
}

// HeapInfo owns the tree of one open database.
type HeapInfo struct {
	root          *avl_tree.TreeNode
	vmID          uint32
	databaseIndex int
	cache         *lru.Cache
}

func (h *HeapInfo) DatabaseIndex() int { return h.databaseIndex }
func (h *HeapInfo) VmID() uint32       { return h.vmID }
func (h *HeapInfo) Size() int          { return avl_tree.Size(h.root) }
func (h *HeapInfo) Root() *avl_tree.TreeNode {
	return h.root
}

func (h *HeapInfo) clear() int {
	if h.cache != nil {
		h.cache.Purge()
	}
	cleared := avl_tree.Clear(h.root)
	h.root = nil
	return cleared
}

type Manager struct {
	mu          sync.Mutex
	initialized bool
	heaps       []*HeapInfo
	count       int
	contexts    domain.ActiveContextProvider
	options     Options
	logger      logrus.FieldLogger
}

func NewManager(contexts domain.ActiveContextProvider, options Options, logger logrus.FieldLogger) *Manager {
	if options.MaxDatabases <= 0 {
		options.MaxDatabases = DefaultMaxDatabases
	}
	if options.LookupCacheSize <= 0 {
		options.LookupCacheSize = DefaultLookupCacheSize
	}
	return &Manager{
		contexts: contexts,
		options:  options,
		logger:   logger.WithField("component", "heap_manager"),
	}
}

func (m *Manager) Init() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.initialized {
		return
	}
	m.heaps = make([]*HeapInfo, m.options.MaxDatabases)
	m.count = 0
	m.initialized = true
}

func (m *Manager) AddDatabase(vmID uint32) (*HeapInfo, error) {
	cache, err := lru.New(m.options.LookupCacheSize)
	if err != nil {
		return nil, errors.Wrap(domain.ErrNoMemory, err.Error())
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		return nil, errors.Wrap(domain.ErrFailed, "heap manager is not initialized")
	}

	slot := -1
	for i, h := range m.heaps {
		if h == nil {
			slot = i
			break
		}
	}
	if slot < 0 {
		if !m.options.ClampSlots {
			return nil, errors.Wrapf(domain.ErrNoResource, "all %d database heaps are in use", len(m.heaps))
		}
		slot = len(m.heaps) - 1
		cleared := m.heaps[slot].clear()
		m.logger.WithFields(logrus.Fields{
			"action":         "add_database",
			"database_index": slot,
			"cleared_maps":   cleared,
		}).Warn("heap slots exhausted, reusing last slot")
	} else {
		m.count++
	}

	h := &HeapInfo{
		vmID:          vmID,
		databaseIndex: slot,
		cache:         cache,
	}
	m.heaps[slot] = h
	return h, nil
}

func (m *Manager) RemoveDatabase(handle domain.HeapHandle) error {
	h, err := resolve(handle)
	if err != nil {
		return err
	}

	h.clear()

	m.mu.Lock()
	defer m.mu.Unlock()
	if h.databaseIndex < len(m.heaps) && m.heaps[h.databaseIndex] == h {
		m.heaps[h.databaseIndex] = nil
		m.count--
	}
	return nil
}

func (m *Manager) ClearDatabaseHeap(handle domain.HeapHandle) error {
	h, err := resolve(handle)
	if err != nil {
		return err
	}
	cleared := h.clear()
	m.logger.WithFields(logrus.Fields{
		"action":         "clear_database_heap",
		"database_index": h.databaseIndex,
		"cleared_maps":   cleared,
	}).Debug("cleared database heap")
	return nil
}

func (m *Manager) Reset() {
	m.mu.Lock()
	heaps := m.heaps
	m.mu.Unlock()

	for _, h := range heaps {
		if h != nil {
			if err := m.RemoveDatabase(h); err != nil {
				m.logger.WithError(err).WithField("database_index", h.databaseIndex).Warn("remove database heap on reset")
			}
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.heaps = nil
	m.count = 0
	m.initialized = false
}

func (m *Manager) DatabaseCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

// AddMap binds the map into the active context's heap.
func (m *Manager) AddMap(dataMap *domain.DeltaDataMap) (*domain.DeltaDataMap, error) {
	h, err := m.activeHeap()
	if err != nil {
		return nil, err
	}
	return m.addOrGetMap(h, dataMap)
}

func (m *Manager) AddMapUsingHandle(handle domain.HeapHandle, dataMap *domain.DeltaDataMap) (*domain.DeltaDataMap, error) {
	h, err := resolve(handle)
	if err != nil {
		return nil, err
	}
	return m.addOrGetMap(h, dataMap)
}

// addOrGetMap inserts the map unless its key vector is already bound, in
// which case the bound map is returned untouched.
func (m *Manager) addOrGetMap(h *HeapInfo, dataMap *domain.DeltaDataMap) (*domain.DeltaDataMap, error) {
	bin, err := avl_tree.NewMapBin(dataMap)
	if err != nil {
		return nil, err
	}

	if existing, err := avl_tree.Lookup(h.root, bin.KeyString); err == nil {
		return existing.Map, nil
	}

	dataMap.MapSize = utils.MapSize(dataMap)
	root, _, err := avl_tree.Insert(h.root, avl_tree.NewTreeNode(bin))
	if err != nil {
		return nil, err
	}
	h.root = root
	return dataMap, nil
}

// SetMap inserts the map, or merges its subgraph data into the map already
// bound to the same key vector.
func (m *Manager) SetMap(handle domain.HeapHandle, dataMap *domain.DeltaDataMap) (*domain.DeltaDataMap, error) {
	var h *HeapInfo
	var err error
	if handle == nil {
		h, err = m.activeHeap()
	} else {
		h, err = resolve(handle)
	}
	if err != nil {
		return nil, err
	}

	bin, err := avl_tree.NewMapBin(dataMap)
	if err != nil {
		return nil, err
	}
	existing, err := avl_tree.Lookup(h.root, bin.KeyString)
	if err != nil {
		return m.addOrGetMap(h, dataMap)
	}
	existing.Map.Merge(dataMap)
	existing.Map.MapSize = utils.MapSize(existing.Map)
	return existing.Map, nil
}

// LookupCalMap finds the map bound to kv in the active heap.
func (m *Manager) LookupCalMap(kv domain.KeyVector) (*domain.DeltaDataMap, error) {
	h, err := m.activeHeap()
	if err != nil {
		return nil, err
	}
	keyString, err := kv.ToString()
	if err != nil {
		return nil, err
	}

	if cached, ok := h.cache.Get(keyString); ok {
		return cached.(*domain.DeltaDataMap), nil
	}

	bin, err := avl_tree.Lookup(h.root, keyString)
	if err != nil {
		return nil, err
	}
	if !kv.Equal(bin.Map.KeyVector) {
		return nil, errors.Wrapf(domain.ErrNotExist, "key vector %s does not match bound map", keyString)
	}
	h.cache.Add(keyString, bin.Map)
	return bin.Map, nil
}

// ListMaps returns the active heap's maps in key order. The maps are shared
// with the heap.
func (m *Manager) ListMaps() ([]*domain.DeltaDataMap, error) {
	h, err := m.activeHeap()
	if err != nil {
		return nil, err
	}
	bins := avl_tree.Traverse(h.root)
	maps := make([]*domain.DeltaDataMap, 0, len(bins))
	for _, bin := range bins {
		maps = append(maps, bin.Map)
	}
	return maps, nil
}

// RemoveMap is accepted for completeness; maps are never removed individually.
func (m *Manager) RemoveMap(domain.KeyVector) error {
	return nil
}

func (m *Manager) activeHeap() (*HeapInfo, error) {
	if m.contexts == nil {
		return nil, errors.Wrap(domain.ErrHandle, "no context provider")
	}
	ctx := m.contexts.GetActiveHandle()
	if ctx == nil {
		return nil, errors.Wrap(domain.ErrHandle, "no active context")
	}
	return resolve(ctx.HeapHandle)
}

func resolve(handle domain.HeapHandle) (*HeapInfo, error) {
	h, ok := handle.(*HeapInfo)
	if !ok || h == nil {
		return nil, errors.Wrap(domain.ErrHandle, "heap handle is not set")
	}
	return h, nil
}
