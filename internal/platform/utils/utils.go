package utils

import (
	"encoding/binary"
	"io"

	"ACDB/internal/domain"

	"github.com/pkg/errors"
)

// Delta file layout, all little endian:
//
//	| delta_major | delta_minor | acdb_major | acdb_minor | data_size | map_count | maps ... |
//	|     4B      |     4B      |     4B     |     4B     |    4B     |    4B     |          |
//
// Each map:
//
//	| kv_type | num_keys | key,value * num_keys | map_size | num_subgraphs | subgraphs ... |
//
// Each subgraph is its id followed by the global and the non-global module
// calibration lists, each a count followed by (iid, pid, size, payload).
const (
	DeltaFileHeaderSize = 24
	// versionPairSize is the delta major/minor pair at the start of the header.
	versionPairSize = 8
	// maxParamSize bounds a single payload read from disk.
	maxParamSize = 16 << 20
)

type DeltaFileVersion struct {
	DeltaMajor uint32 `json:"delta_major"`
	DeltaMinor uint32 `json:"delta_minor"`
	AcdbMajor  uint32 `json:"acdb_major"`
	AcdbMinor  uint32 `json:"acdb_minor"`
}

type DeltaFileHeader struct {
	Version  DeltaFileVersion
	DataSize uint32
	MapCount uint32
}

// MinVersionReadSize is the smallest file from which a delta version is read.
func MinVersionReadSize() int64 {
	return DeltaFileHeaderSize + versionPairSize
}

func WriteFileHeader(w io.WriteSeeker, header DeltaFileHeader) error {
	if _, err := w.Seek(0, io.SeekStart); err != nil {
		return errors.Wrap(err, "seek to delta header")
	}
	return binary.Write(w, binary.LittleEndian, header)
}

func ReadFileHeader(r io.ReaderAt) (DeltaFileHeader, error) {
	var header DeltaFileHeader
	section := io.NewSectionReader(r, 0, DeltaFileHeaderSize)
	if err := binary.Read(section, binary.LittleEndian, &header); err != nil {
		return header, errors.Wrap(err, "read delta header")
	}
	return header, nil
}

// IsFileValid reports whether the header describes exactly the data that
// follows it.
func IsFileValid(r io.ReaderAt, size int64) bool {
	if size < DeltaFileHeaderSize {
		return false
	}
	header, err := ReadFileHeader(r)
	if err != nil {
		return false
	}
	return int64(header.DataSize) == size-DeltaFileHeaderSize
}

func GetFileVersion(r io.ReaderAt, size int64) (DeltaFileVersion, error) {
	if size < DeltaFileHeaderSize {
		return DeltaFileVersion{}, errors.Wrapf(domain.ErrBadParam, "delta file of %d bytes has no header", size)
	}
	header, err := ReadFileHeader(r)
	if err != nil {
		return DeltaFileVersion{}, err
	}
	return header.Version, nil
}

// MapSize is the byte length of the subgraph section of a serialized map.
func MapSize(m *domain.DeltaDataMap) uint32 {
	size := uint32(0)
	for _, sg := range m.Subgraphs {
		size += 4
		for _, pd := range []domain.PersistenceData{sg.Global, sg.NonGlobal} {
			size += 4
			for _, cal := range pd.ModuleCals {
				size += 12 + cal.ParamSize()
			}
		}
	}
	return size
}

// WriteMap appends one map and refreshes its MapSize.
func WriteMap(w io.Writer, m *domain.DeltaDataMap) error {
	if m == nil || len(m.KeyVector) == 0 {
		return errors.Wrap(domain.ErrBadParam, "map has no key vector")
	}
	m.MapSize = MapSize(m)

	if err := writeUint32s(w, uint32(m.KeyVectorType), uint32(len(m.KeyVector))); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, []domain.KeyValuePair(m.KeyVector)); err != nil {
		return err
	}
	if err := writeUint32s(w, m.MapSize, m.SubgraphCount()); err != nil {
		return err
	}
	for _, sg := range m.Subgraphs {
		if err := writeUint32s(w, sg.SubgraphID); err != nil {
			return err
		}
		if err := writePersistenceData(w, sg.Global); err != nil {
			return err
		}
		if err := writePersistenceData(w, sg.NonGlobal); err != nil {
			return err
		}
	}
	return nil
}

func writePersistenceData(w io.Writer, pd domain.PersistenceData) error {
	if err := writeUint32s(w, uint32(len(pd.ModuleCals))); err != nil {
		return err
	}
	for _, cal := range pd.ModuleCals {
		if err := writeUint32s(w, cal.InstanceID, cal.ParamID, cal.ParamSize()); err != nil {
			return err
		}
		if _, err := w.Write(cal.Payload); err != nil {
			return err
		}
	}
	return nil
}

func writeUint32s(w io.Writer, values ...uint32) error {
	return binary.Write(w, binary.LittleEndian, values)
}

// ReadMap reads one map. It returns io.EOF when r is exhausted exactly at a
// map boundary.
func ReadMap(r io.Reader) (*domain.DeltaDataMap, error) {
	var head [2]uint32
	if err := binary.Read(r, binary.LittleEndian, &head); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, errors.Wrap(err, "read map head")
	}
	kvType, numKeys := head[0], head[1]
	if numKeys == 0 || numKeys > domain.MaxKeyCount {
		return nil, errors.Wrapf(domain.ErrBadParam, "map has %d keys", numKeys)
	}

	m := &domain.DeltaDataMap{
		KeyVectorType: domain.KeyVectorType(kvType),
		KeyVector:     make(domain.KeyVector, numKeys),
	}
	if err := binary.Read(r, binary.LittleEndian, []domain.KeyValuePair(m.KeyVector)); err != nil {
		return nil, errors.Wrap(noEOF(err), "read key vector")
	}

	var sizes [2]uint32
	if err := binary.Read(r, binary.LittleEndian, &sizes); err != nil {
		return nil, errors.Wrap(noEOF(err), "read map size")
	}
	m.MapSize = sizes[0]
	numSubgraphs := sizes[1]

	for i := uint32(0); i < numSubgraphs; i++ {
		var sg domain.SubgraphData
		if err := binary.Read(r, binary.LittleEndian, &sg.SubgraphID); err != nil {
			return nil, errors.Wrapf(noEOF(err), "read subgraph %d", i)
		}
		var err error
		if sg.Global, err = readPersistenceData(r); err != nil {
			return nil, errors.Wrapf(err, "read global data of subgraph 0x%x", sg.SubgraphID)
		}
		if sg.NonGlobal, err = readPersistenceData(r); err != nil {
			return nil, errors.Wrapf(err, "read non-global data of subgraph 0x%x", sg.SubgraphID)
		}
		m.Subgraphs = append(m.Subgraphs, sg)
	}

	if m.MapSize != MapSize(m) {
		return nil, errors.Wrapf(domain.ErrBadParam, "map size %d does not match content size %d", m.MapSize, MapSize(m))
	}
	return m, nil
}

func readPersistenceData(r io.Reader) (domain.PersistenceData, error) {
	var pd domain.PersistenceData
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return pd, noEOF(err)
	}
	for i := uint32(0); i < count; i++ {
		var fields [3]uint32
		if err := binary.Read(r, binary.LittleEndian, &fields); err != nil {
			return pd, noEOF(err)
		}
		if fields[2] > maxParamSize {
			return pd, errors.Wrapf(domain.ErrBadParam, "param 0x%x has size %d", fields[1], fields[2])
		}
		cal := domain.ModuleCalData{
			InstanceID: fields[0],
			ParamID:    fields[1],
			Payload:    make([]byte, fields[2]),
		}
		if _, err := io.ReadFull(r, cal.Payload); err != nil {
			return pd, noEOF(err)
		}
		pd.ModuleCals = append(pd.ModuleCals, cal)
	}
	return pd, nil
}

// ReadAllMaps reads maps until r is exhausted.
func ReadAllMaps(r io.Reader) ([]*domain.DeltaDataMap, error) {
	var maps []*domain.DeltaDataMap
	for {
		m, err := ReadMap(r)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		maps = append(maps, m)
	}
	return maps, nil
}

// a truncated map is never a clean end of file
func noEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
