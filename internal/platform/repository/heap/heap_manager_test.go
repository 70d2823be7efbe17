package heap

import (
	"testing"

	"ACDB/internal/domain"
	"ACDB/internal/platform/utils"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeContexts struct {
	active *domain.ContextHandle
}

func (f *fakeContexts) GetActiveHandle() *domain.ContextHandle {
	return f.active
}

func newTestManager(t *testing.T, opts Options) (*Manager, *fakeContexts) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	contexts := &fakeContexts{}
	m := NewManager(contexts, opts, logger)
	m.Init()
	return m, contexts
}

func activate(contexts *fakeContexts, h *HeapInfo) {
	contexts.active = &domain.ContextHandle{
		VmID:          h.VmID(),
		DatabaseIndex: h.DatabaseIndex(),
		HeapHandle:    h,
	}
}

func calMap(kv domain.KeyVector, subgraphID uint32, payload ...byte) *domain.DeltaDataMap {
	return &domain.DeltaDataMap{
		KeyVectorType: domain.CalKeyVector,
		KeyVector:     kv,
		Subgraphs: []domain.SubgraphData{{
			SubgraphID: subgraphID,
			Global: domain.PersistenceData{ModuleCals: []domain.ModuleCalData{
				{InstanceID: 0x4000, ParamID: 0x0800, Payload: payload},
			}},
		}},
	}
}

func TestManager_AddDatabaseUsesFirstFreeSlot(t *testing.T) {
	m, _ := newTestManager(t, Options{MaxDatabases: 3})

	h0, err := m.AddDatabase(1)
	require.NoError(t, err)
	h1, err := m.AddDatabase(1)
	require.NoError(t, err)
	assert.Equal(t, 0, h0.DatabaseIndex())
	assert.Equal(t, 1, h1.DatabaseIndex())
	assert.Equal(t, 2, m.DatabaseCount())

	require.NoError(t, m.RemoveDatabase(h0))
	h2, err := m.AddDatabase(2)
	require.NoError(t, err)
	assert.Equal(t, 0, h2.DatabaseIndex())
	assert.Equal(t, uint32(2), h2.VmID())
}

func TestManager_AddDatabaseRejectsWhenFull(t *testing.T) {
	m, _ := newTestManager(t, Options{MaxDatabases: 2})
	_, err := m.AddDatabase(1)
	require.NoError(t, err)
	_, err = m.AddDatabase(1)
	require.NoError(t, err)

	_, err = m.AddDatabase(1)

	assert.True(t, errors.Is(err, domain.ErrNoResource))
	assert.Equal(t, 2, m.DatabaseCount())
}

func TestManager_AddDatabaseClampsToLastSlot(t *testing.T) {
	m, contexts := newTestManager(t, Options{MaxDatabases: 2, ClampSlots: true})
	_, err := m.AddDatabase(1)
	require.NoError(t, err)
	h1, err := m.AddDatabase(1)
	require.NoError(t, err)
	activate(contexts, h1)
	_, err = m.AddMap(calMap(domain.KeyVector{{Key: 1, Value: 1}}, 1))
	require.NoError(t, err)

	h2, err := m.AddDatabase(7)

	require.NoError(t, err)
	assert.Equal(t, 1, h2.DatabaseIndex())
	assert.Equal(t, 2, m.DatabaseCount())
	assert.Equal(t, 0, h1.Size())
}

func TestManager_NotInitialized(t *testing.T) {
	logger, _ := test.NewNullLogger()
	m := NewManager(&fakeContexts{}, Options{}, logger)

	_, err := m.AddDatabase(1)
	assert.True(t, errors.Is(err, domain.ErrFailed))
}

func TestManager_RemoveDatabaseNilHandle(t *testing.T) {
	m, _ := newTestManager(t, Options{})

	assert.True(t, errors.Is(m.RemoveDatabase(nil), domain.ErrHandle))
	var h *HeapInfo
	assert.True(t, errors.Is(m.RemoveDatabase(h), domain.ErrHandle))
}

func TestManager_AddMapWithoutActiveContext(t *testing.T) {
	m, _ := newTestManager(t, Options{})

	_, err := m.AddMap(calMap(domain.KeyVector{{Key: 1, Value: 1}}, 1))
	assert.True(t, errors.Is(err, domain.ErrHandle))
}

func TestManager_AddMapBadParam(t *testing.T) {
	m, contexts := newTestManager(t, Options{})
	h, err := m.AddDatabase(1)
	require.NoError(t, err)
	activate(contexts, h)

	_, err = m.AddMap(nil)
	assert.True(t, errors.Is(err, domain.ErrBadParam))
	_, err = m.AddMap(&domain.DeltaDataMap{})
	assert.True(t, errors.Is(err, domain.ErrBadParam))
}

func TestManager_AddAndLookup(t *testing.T) {
	m, contexts := newTestManager(t, Options{})
	h, err := m.AddDatabase(1)
	require.NoError(t, err)
	activate(contexts, h)

	kvs := []domain.KeyVector{
		{{Key: 0xA1, Value: 1}, {Key: 0xA2, Value: 1}},
		{{Key: 0xA1, Value: 2}, {Key: 0xA2, Value: 1}},
		{{Key: 0xA1, Value: 1}},
	}
	for i, kv := range kvs {
		_, err := m.AddMap(calMap(kv, uint32(i)))
		require.NoError(t, err)
	}

	for i, kv := range kvs {
		found, err := m.LookupCalMap(kv)
		require.NoError(t, err)
		assert.Equal(t, uint32(i), found.Subgraphs[0].SubgraphID)
		// second lookup is served from the cache
		again, err := m.LookupCalMap(kv)
		require.NoError(t, err)
		assert.Same(t, found, again)
	}

	_, err = m.LookupCalMap(domain.KeyVector{{Key: 0xA1, Value: 3}})
	assert.True(t, errors.Is(err, domain.ErrNotExist))
}

func TestManager_LookupEmptyHeap(t *testing.T) {
	m, contexts := newTestManager(t, Options{})
	h, err := m.AddDatabase(1)
	require.NoError(t, err)
	activate(contexts, h)

	_, err = m.LookupCalMap(domain.KeyVector{{Key: 1, Value: 1}})
	assert.True(t, errors.Is(err, domain.ErrNotExist))
}

func TestManager_DuplicateAddKeepsFirstMap(t *testing.T) {
	m, contexts := newTestManager(t, Options{})
	h, err := m.AddDatabase(1)
	require.NoError(t, err)
	activate(contexts, h)

	first := calMap(domain.KeyVector{{Key: 5, Value: 5}}, 1, 0x01)
	second := calMap(domain.KeyVector{{Key: 5, Value: 5}}, 2, 0x02)
	_, err = m.AddMap(first)
	require.NoError(t, err)
	stored, err := m.AddMap(second)
	require.NoError(t, err)

	assert.Same(t, first, stored)
	maps, err := m.ListMaps()
	require.NoError(t, err)
	require.Len(t, maps, 1)
	assert.Same(t, first, maps[0])
}

func TestManager_SetMapMerges(t *testing.T) {
	m, contexts := newTestManager(t, Options{})
	h, err := m.AddDatabase(1)
	require.NoError(t, err)
	activate(contexts, h)

	_, err = m.SetMap(h, calMap(domain.KeyVector{{Key: 5, Value: 5}}, 1, 0x01))
	require.NoError(t, err)
	merged, err := m.SetMap(nil, calMap(domain.KeyVector{{Key: 5, Value: 5}}, 2, 0x02))
	require.NoError(t, err)

	assert.Len(t, merged.Subgraphs, 2)
	assert.Equal(t, 1, h.Size())
}

func TestManager_ListMapsOrdered(t *testing.T) {
	m, contexts := newTestManager(t, Options{})
	h, err := m.AddDatabase(1)
	require.NoError(t, err)
	activate(contexts, h)

	for _, k := range []uint32{9, 3, 7, 1, 5} {
		_, err := m.AddMap(calMap(domain.KeyVector{{Key: k, Value: 0}}, k))
		require.NoError(t, err)
	}

	maps, err := m.ListMaps()
	require.NoError(t, err)
	var keys []uint32
	for _, dm := range maps {
		keys = append(keys, dm.KeyVector[0].Key)
	}
	assert.Equal(t, []uint32{1, 3, 5, 7, 9}, keys)
}

func TestManager_HeapsAreIsolated(t *testing.T) {
	m, contexts := newTestManager(t, Options{})
	h0, err := m.AddDatabase(1)
	require.NoError(t, err)
	h1, err := m.AddDatabase(1)
	require.NoError(t, err)

	_, err = m.AddMapUsingHandle(h0, calMap(domain.KeyVector{{Key: 1, Value: 1}}, 1))
	require.NoError(t, err)

	activate(contexts, h1)
	_, err = m.LookupCalMap(domain.KeyVector{{Key: 1, Value: 1}})
	assert.True(t, errors.Is(err, domain.ErrNotExist))

	activate(contexts, h0)
	_, err = m.LookupCalMap(domain.KeyVector{{Key: 1, Value: 1}})
	assert.NoError(t, err)
}

func TestManager_ClearPurgesCache(t *testing.T) {
	m, contexts := newTestManager(t, Options{})
	h, err := m.AddDatabase(1)
	require.NoError(t, err)
	activate(contexts, h)
	_, err = m.AddMap(calMap(domain.KeyVector{{Key: 1, Value: 1}}, 1))
	require.NoError(t, err)
	_, err = m.LookupCalMap(domain.KeyVector{{Key: 1, Value: 1}})
	require.NoError(t, err)

	require.NoError(t, m.ClearDatabaseHeap(h))

	_, err = m.LookupCalMap(domain.KeyVector{{Key: 1, Value: 1}})
	assert.True(t, errors.Is(err, domain.ErrNotExist))
	assert.Equal(t, 0, h.Size())
}

func TestManager_Reset(t *testing.T) {
	m, _ := newTestManager(t, Options{})
	h, err := m.AddDatabase(1)
	require.NoError(t, err)
	_, err = m.AddMapUsingHandle(h, calMap(domain.KeyVector{{Key: 1, Value: 1}}, 1))
	require.NoError(t, err)

	m.Reset()

	assert.Equal(t, 0, m.DatabaseCount())
	assert.Nil(t, h.Root())
	_, err = m.AddDatabase(1)
	assert.True(t, errors.Is(err, domain.ErrFailed))
	m.Init()
	_, err = m.AddDatabase(1)
	assert.NoError(t, err)
}

func TestManager_GetHeapInfo(t *testing.T) {
	m, contexts := newTestManager(t, Options{})
	h, err := m.AddDatabase(1)
	require.NoError(t, err)
	activate(contexts, h)

	tagMap := &domain.DeltaDataMap{KeyVectorType: domain.TagKeyVector, KeyVector: domain.KeyVector{{Key: 0xC0DE, Value: 2}}, MapSize: 12}
	cal := calMap(domain.KeyVector{{Key: 0xA1, Value: 1}, {Key: 0xA2, Value: 2}}, 1, 0x01, 0x02, 0x03)
	cal.MapSize = 40
	_, err = m.AddMap(tagMap)
	require.NoError(t, err)
	_, err = m.AddMap(cal)
	require.NoError(t, err)

	data, err := m.GetHeapInfo()
	require.NoError(t, err)
	nodes, err := ParseHeapInfo(data)
	require.NoError(t, err)

	require.Len(t, nodes, 2)
	assert.Equal(t, domain.KeyVector{{Key: 0xA1, Value: 1}, {Key: 0xA2, Value: 2}}, nodes[0].KeyVector)
	// subgraph id + global count + one cal header + 3 payload bytes + non-global count
	assert.Equal(t, uint32(4+4+12+3+4), nodes[0].MapSize)
	assert.Equal(t, domain.CalKeyVector, nodes[0].KeyVectorType)
	assert.Equal(t, domain.KeyVector{{Key: 0xC0DE, Value: 2}}, nodes[1].KeyVector)
	assert.Equal(t, uint32(0), nodes[1].MapSize)
	assert.Equal(t, domain.TagKeyVector, nodes[1].KeyVectorType)
	// 4 + (4 + 16 + 8) + (4 + 8 + 8)
	assert.Len(t, data, 52)
}

func TestManager_GetHeapInfoAfterMerge(t *testing.T) {
	m, contexts := newTestManager(t, Options{})
	h, err := m.AddDatabase(1)
	require.NoError(t, err)
	activate(contexts, h)

	_, err = m.SetMap(nil, calMap(domain.KeyVector{{Key: 5, Value: 5}}, 1, 0x01))
	require.NoError(t, err)
	merged, err := m.SetMap(nil, calMap(domain.KeyVector{{Key: 5, Value: 5}}, 2, 1, 2, 3, 4, 5, 6, 7, 8))
	require.NoError(t, err)

	data, err := m.GetHeapInfo()
	require.NoError(t, err)
	nodes, err := ParseHeapInfo(data)
	require.NoError(t, err)

	require.Len(t, nodes, 1)
	assert.Equal(t, uint32(25+32), nodes[0].MapSize)
	assert.Equal(t, utils.MapSize(merged), nodes[0].MapSize)
}

func TestManager_ResetRemovesEveryHeap(t *testing.T) {
	logger, hook := test.NewNullLogger()
	contexts := &fakeContexts{}
	m := NewManager(contexts, Options{}, logger)
	m.Init()
	h0, err := m.AddDatabase(1)
	require.NoError(t, err)
	h1, err := m.AddDatabase(1)
	require.NoError(t, err)
	_, err = m.AddMapUsingHandle(h1, calMap(domain.KeyVector{{Key: 2, Value: 2}}, 1))
	require.NoError(t, err)

	m.Reset()

	assert.Nil(t, h0.Root())
	assert.Nil(t, h1.Root())
	assert.Equal(t, 0, m.DatabaseCount())
	for _, entry := range hook.AllEntries() {
		assert.NotEqual(t, logrus.WarnLevel, entry.Level, entry.Message)
	}
}

func TestManager_Execute(t *testing.T) {
	m, contexts := newTestManager(t, Options{})

	resp, err := m.Execute(CmdAddDatabase, AddDatabaseRequest{VmID: 3})
	require.NoError(t, err)
	h := resp.(*HeapInfo)
	activate(contexts, h)

	_, err = m.Execute(CmdAddMapUsingHandle, MapHandleInfo{Handle: h, Map: calMap(domain.KeyVector{{Key: 1, Value: 1}}, 1)})
	require.NoError(t, err)
	resp, err = m.Execute(CmdGetMapList, nil)
	require.NoError(t, err)
	assert.Len(t, resp.([]*domain.DeltaDataMap), 1)

	_, err = m.Execute(CmdRemoveMap, domain.KeyVector{{Key: 1, Value: 1}})
	assert.NoError(t, err)

	_, err = m.Execute(CmdAddMap, "not a map")
	assert.True(t, errors.Is(err, domain.ErrBadParam))
	_, err = m.Execute(Command(99), nil)
	assert.True(t, errors.Is(err, domain.ErrUnsupported))
}
