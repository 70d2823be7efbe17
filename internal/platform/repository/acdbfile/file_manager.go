package acdbfile

import (
	"os"
	"sync"

	"ACDB/internal/domain"

	"github.com/pkg/errors"
)

// Manager registers the *.acdb files of the open databases. The slot index of
// a file is the database index used by the heap and delta managers.
type Manager struct {
	mu    sync.Mutex
	files []*domain.AcdbFileInfo
}

func NewManager(maxFiles int) *Manager {
	return &Manager{
		files: make([]*domain.AcdbFileInfo, maxFiles),
	}
}

func (m *Manager) AddDatabase(path string) (*domain.AcdbFileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(domain.ErrNotExist, "acdb file %s", path)
		}
		return nil, errors.Wrapf(domain.ErrFailed, "stat acdb file %s: %v", path, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i, f := range m.files {
		if f != nil && f.Path == path {
			return nil, errors.Wrapf(domain.ErrBadParam, "acdb file %s is already open as database %d", path, i)
		}
	}
	for i, f := range m.files {
		if f == nil {
			file := &domain.AcdbFileInfo{Index: i, Path: path, Size: info.Size()}
			m.files[i] = file
			return file, nil
		}
	}
	return nil, errors.Wrapf(domain.ErrNoResource, "all %d acdb file slots are in use", len(m.files))
}

func (m *Manager) Get(index int) (*domain.AcdbFileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if index < 0 || index >= len(m.files) || m.files[index] == nil {
		return nil, errors.Wrapf(domain.ErrNotExist, "no acdb file for database %d", index)
	}
	return m.files[index], nil
}

func (m *Manager) GetFileName(index int) (string, error) {
	f, err := m.Get(index)
	if err != nil {
		return "", err
	}
	return f.Path, nil
}

func (m *Manager) RemoveDatabase(index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if index < 0 || index >= len(m.files) || m.files[index] == nil {
		return errors.Wrapf(domain.ErrNotExist, "no acdb file for database %d", index)
	}
	m.files[index] = nil
	return nil
}

func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, f := range m.files {
		if f != nil {
			count++
		}
	}
	return count
}

func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.files {
		m.files[i] = nil
	}
}
