package domain

import (
	"sync"

	"github.com/pkg/errors"
)

// HeapHandle identifies one database's in-memory heap.
type HeapHandle interface {
	DatabaseIndex() int
}

// DeltaHandle identifies one database's delta file.
type DeltaHandle interface {
	DatabaseIndex() int
	Path() string
}

type AcdbFileInfo struct {
	Index int    `json:"index"`
	Path  string `json:"path"`
	Size  int64  `json:"size"`
}

type FileManager interface {
	GetFileName(databaseIndex int) (string, error)
}

// ContextHandle bundles the handles of one open database. A nil
// DeltaManagerHandle means the database has no writable delta path.
type ContextHandle struct {
	VmID               uint32
	DatabaseIndex      int
	FileManagerHandle  *AcdbFileInfo
	DeltaManagerHandle DeltaHandle
	HeapHandle         HeapHandle
}

type ActiveContextProvider interface {
	GetActiveHandle() *ContextHandle
}

// ContextManager tracks the open databases and which of them is active. The
// command lock serialises every heap and delta operation against the active
// context; the managers below it do not lock tree contents themselves.
type ContextManager struct {
	command  sync.Mutex
	mu       sync.RWMutex
	active   *ContextHandle
	contexts map[int]*ContextHandle
}

func NewContextManager() *ContextManager {
	return &ContextManager{
		contexts: make(map[int]*ContextHandle),
	}
}

func (m *ContextManager) Lock() {
	m.command.Lock()
}

func (m *ContextManager) Unlock() {
	m.command.Unlock()
}

func (m *ContextManager) Add(handle *ContextHandle) error {
	if handle == nil {
		return errors.Wrap(ErrBadParam, "context handle is nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contexts[handle.DatabaseIndex] = handle
	return nil
}

func (m *ContextManager) Remove(databaseIndex int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil && m.active.DatabaseIndex == databaseIndex {
		m.active = nil
	}
	delete(m.contexts, databaseIndex)
}

func (m *ContextManager) Find(databaseIndex int) (*ContextHandle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	handle, ok := m.contexts[databaseIndex]
	if !ok {
		return nil, errors.Wrapf(ErrNotExist, "no context for database %d", databaseIndex)
	}
	return handle, nil
}

func (m *ContextManager) SetActive(databaseIndex int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	handle, ok := m.contexts[databaseIndex]
	if !ok {
		return errors.Wrapf(ErrNotExist, "no context for database %d", databaseIndex)
	}
	m.active = handle
	return nil
}

func (m *ContextManager) GetActiveHandle() *ContextHandle {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

func (m *ContextManager) All() []*ContextHandle {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := make([]*ContextHandle, 0, len(m.contexts))
	for _, handle := range m.contexts {
		all = append(all, handle)
	}
	return all
}

func (m *ContextManager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = nil
	m.contexts = make(map[int]*ContextHandle)
}
