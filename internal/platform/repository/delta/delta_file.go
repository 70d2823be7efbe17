package delta

import (
	"os"

	"ACDB/internal/domain"
	"ACDB/internal/platform/utils"

	"github.com/pkg/errors"
)

type AccessMode int

const (
	ReadOnly AccessMode = iota
	ReadWrite
)

// FileInfo describes a delta file handed to AddDatabase.
type FileInfo struct {
	FileIndex int
	Path      string
	File      *os.File
	Size      int64
	Version   utils.DeltaFileVersion
	Exists    bool
}

// DatabaseInfo is the delta file state of one open database.
type DatabaseInfo struct {
	fileIndex int
	file      *os.File
	path      string
	size      int64
	version   utils.DeltaFileVersion
	isUpdated bool
	exists    bool
}

func (d *DatabaseInfo) DatabaseIndex() int              { return d.fileIndex }
func (d *DatabaseInfo) Path() string                    { return d.path }
func (d *DatabaseInfo) Size() int64                     { return d.size }
func (d *DatabaseInfo) Exists() bool                    { return d.exists }
func (d *DatabaseInfo) IsUpdated() bool                 { return d.isUpdated }
func (d *DatabaseInfo) Version() utils.DeltaFileVersion { return d.version }
func (d *DatabaseInfo) MarkUpdated()                    { d.isUpdated = true }

func (d *DatabaseInfo) close() error {
	// d.file is nil if close was already called
	if d.file != nil {
		if err := d.file.Close(); err != nil {
			return err
		}
		d.file = nil
	}
	return nil
}

// OpenFile opens the delta file at path. ReadWrite creates it when missing,
// ReadOnly fails with domain.ErrNotExist.
func OpenFile(fileIndex int, path string, mode AccessMode) (FileInfo, error) {
	info := FileInfo{FileIndex: fileIndex, Path: path}

	_, statErr := os.Stat(path)
	existed := statErr == nil

	var (
		f   *os.File
		err error
	)
	switch mode {
	case ReadWrite:
		f, err = os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	default:
		f, err = os.Open(path)
	}
	if err != nil {
		if os.IsNotExist(err) {
			return info, errors.Wrapf(domain.ErrNotExist, "delta file %s", path)
		}
		return info, errors.Wrapf(domain.ErrFailed, "open delta file %s: %v", path, err)
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return info, errors.Wrapf(domain.ErrFailed, "stat delta file %s: %v", path, err)
	}

	info.File = f
	info.Size = stat.Size()
	info.Exists = existed
	if utils.IsFileValid(f, info.Size) {
		if version, err := utils.GetFileVersion(f, info.Size); err == nil {
			info.Version = version
		}
	}
	return info, nil
}
