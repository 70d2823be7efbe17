package utils

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"

	"ACDB/internal/domain"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleMap() *domain.DeltaDataMap {
	return &domain.DeltaDataMap{
		KeyVectorType: domain.CalKeyVector,
		KeyVector:     domain.KeyVector{{Key: 0xA1000000, Value: 0xA1000001}, {Key: 0xA2000000, Value: 2}},
		Subgraphs: []domain.SubgraphData{
			{
				SubgraphID: 0xA001,
				Global: domain.PersistenceData{ModuleCals: []domain.ModuleCalData{
					{InstanceID: 0x4001, ParamID: 0x08001000, Payload: []byte{1, 2, 3, 4}},
				}},
				NonGlobal: domain.PersistenceData{ModuleCals: []domain.ModuleCalData{
					{InstanceID: 0x4002, ParamID: 0x08001001, Payload: []byte{5, 6, 7, 8, 9, 10, 11, 12}},
					{InstanceID: 0x4003, ParamID: 0x08001002, Payload: []byte{0xFF}},
				}},
			},
			{SubgraphID: 0xA002},
		},
	}
}

func TestWriteMapAndReadMap(t *testing.T) {
	var buf bytes.Buffer
	m := sampleMap()

	require.NoError(t, WriteMap(&buf, m))
	read, err := ReadMap(&buf)

	require.NoError(t, err)
	assert.Equal(t, m.KeyVectorType, read.KeyVectorType)
	assert.Equal(t, m.KeyVector, read.KeyVector)
	assert.Equal(t, m.MapSize, read.MapSize)
	require.Len(t, read.Subgraphs, 2)
	assert.Equal(t, m.Subgraphs[0], read.Subgraphs[0])
	assert.Equal(t, uint32(0xA002), read.Subgraphs[1].SubgraphID)
	assert.Empty(t, read.Subgraphs[1].Global.ModuleCals)
}

func TestWriteMap_SetsMapSize(t *testing.T) {
	var buf bytes.Buffer
	m := sampleMap()

	require.NoError(t, WriteMap(&buf, m))

	// subgraph 1: 4 + (4 + 12 + 4) + (4 + 12 + 8 + 12 + 1); subgraph 2: 4 + 4 + 4
	assert.Equal(t, uint32(73), m.MapSize)
	// kv_type, num_keys, 2 pairs, map_size, num_subgraphs
	assert.Equal(t, 8+16+8+int(m.MapSize), buf.Len())
}

func TestWriteMap_RejectsEmptyKeyVector(t *testing.T) {
	var buf bytes.Buffer
	err := WriteMap(&buf, &domain.DeltaDataMap{})
	assert.True(t, errors.Is(err, domain.ErrBadParam))
}

func TestReadMap_EOF(t *testing.T) {
	_, err := ReadMap(bytes.NewReader(nil))
	assert.Equal(t, io.EOF, err)
}

func TestReadMap_Truncated(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMap(&buf, sampleMap()))
	truncated := buf.Bytes()[:buf.Len()-3]

	_, err := ReadMap(bytes.NewReader(truncated))

	require.Error(t, err)
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
}

func TestReadMap_TooManyKeys(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, []uint32{1, domain.MaxKeyCount + 1}))

	_, err := ReadMap(&buf)
	assert.True(t, errors.Is(err, domain.ErrBadParam))
}

func TestReadAllMaps(t *testing.T) {
	var buf bytes.Buffer
	expected := []*domain.DeltaDataMap{sampleMap(), sampleMap(), sampleMap()}
	expected[1].KeyVector = domain.KeyVector{{Key: 1, Value: 1}}
	expected[2].KeyVectorType = domain.TagKeyVector
	expected[2].Subgraphs = nil
	for _, m := range expected {
		require.NoError(t, WriteMap(&buf, m))
	}

	maps, err := ReadAllMaps(&buf)

	require.NoError(t, err)
	require.Len(t, maps, 3)
	for i := range expected {
		assert.Equal(t, expected[i].KeyVector, maps[i].KeyVector)
		assert.Equal(t, expected[i].KeyVectorType, maps[i].KeyVectorType)
		assert.Equal(t, expected[i].MapSize, maps[i].MapSize)
	}
}

func TestFileHeader(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "headerdelta"))
	require.NoError(t, err)
	defer f.Close()

	version := DeltaFileVersion{DeltaMajor: 1, DeltaMinor: 2, AcdbMajor: 3, AcdbMinor: 4}
	require.NoError(t, WriteFileHeader(f, DeltaFileHeader{Version: version}))
	m := sampleMap()
	require.NoError(t, WriteMap(f, m))
	info, err := f.Stat()
	require.NoError(t, err)
	assert.False(t, IsFileValid(f, info.Size()))

	dataSize := uint32(info.Size() - DeltaFileHeaderSize)
	require.NoError(t, WriteFileHeader(f, DeltaFileHeader{Version: version, DataSize: dataSize, MapCount: 1}))

	assert.True(t, IsFileValid(f, info.Size()))
	header, err := ReadFileHeader(f)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), header.MapCount)
	assert.Equal(t, dataSize, header.DataSize)
	got, err := GetFileVersion(f, info.Size())
	require.NoError(t, err)
	assert.Equal(t, version, got)
}

func TestGetFileVersion_ShortFile(t *testing.T) {
	_, err := GetFileVersion(bytes.NewReader([]byte{1, 2, 3}), 3)
	assert.True(t, errors.Is(err, domain.ErrBadParam))
	assert.False(t, IsFileValid(bytes.NewReader(nil), 0))
}
