package avl_tree

import (
	"math/rand"
	"sort"
	"testing"

	"ACDB/internal/domain"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newNode(t *testing.T, kv domain.KeyVector) *TreeNode {
	t.Helper()
	bin, err := NewMapBin(&domain.DeltaDataMap{KeyVectorType: domain.CalKeyVector, KeyVector: kv})
	require.NoError(t, err)
	return NewTreeNode(bin)
}

func insertAll(t *testing.T, kvs ...domain.KeyVector) *TreeNode {
	t.Helper()
	var root *TreeNode
	for _, kv := range kvs {
		var err error
		root, _, err = Insert(root, newNode(t, kv))
		require.NoError(t, err)
		requireBalanced(t, root)
	}
	return root
}

// requireBalanced checks depth bookkeeping, the AVL bound and parent links
// for every node.
func requireBalanced(t *testing.T, root *TreeNode) {
	t.Helper()
	if root == nil {
		return
	}
	require.Nil(t, root.parent, "root has a parent")
	Walk(root, func(n *TreeNode) bool {
		expected := 1 + max(Depth(n.left), Depth(n.right))
		require.Equalf(t, expected, n.depth, "depth of %s\n%s", n.KeyString(), spew.Sdump(n.bin))
		factor := Depth(n.right) - Depth(n.left)
		require.LessOrEqualf(t, factor, 1, "node %s is right heavy", n.KeyString())
		require.GreaterOrEqualf(t, factor, -1, "node %s is left heavy", n.KeyString())
		if n.left != nil {
			require.Same(t, n, n.left.parent)
		}
		if n.right != nil {
			require.Same(t, n, n.right.parent)
		}
		return true
	})
}

func TestInsert_SingleRotation(t *testing.T) {
	root := insertAll(t,
		domain.KeyVector{{Key: 1, Value: 10}},
		domain.KeyVector{{Key: 2, Value: 20}},
		domain.KeyVector{{Key: 3, Value: 30}},
	)

	assert.Equal(t, domain.KeyVector{{Key: 2, Value: 20}}, root.Bin().Map.KeyVector)
	assert.Equal(t, domain.KeyVector{{Key: 1, Value: 10}}, root.Left().Bin().Map.KeyVector)
	assert.Equal(t, domain.KeyVector{{Key: 3, Value: 30}}, root.Right().Bin().Map.KeyVector)
	assert.Equal(t, 2, root.Depth())
	assert.Equal(t, 1, root.Left().Depth())
}

func TestInsert_DoubleRotation(t *testing.T) {
	root := insertAll(t,
		domain.KeyVector{{Key: 3, Value: 0}},
		domain.KeyVector{{Key: 1, Value: 0}},
		domain.KeyVector{{Key: 2, Value: 0}},
	)

	assert.Equal(t, domain.KeyVector{{Key: 2, Value: 0}}, root.Bin().Map.KeyVector)
	assert.Equal(t, domain.KeyVector{{Key: 1, Value: 0}}, root.Left().Bin().Map.KeyVector)
	assert.Equal(t, domain.KeyVector{{Key: 3, Value: 0}}, root.Right().Bin().Map.KeyVector)

	root = insertAll(t,
		domain.KeyVector{{Key: 1, Value: 0}},
		domain.KeyVector{{Key: 3, Value: 0}},
		domain.KeyVector{{Key: 2, Value: 0}},
	)
	assert.Equal(t, domain.KeyVector{{Key: 2, Value: 0}}, root.Bin().Map.KeyVector)
}

func TestInsert_RandomSequencesStayBalanced(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 20; round++ {
		var root *TreeNode
		seen := map[uint32]bool{}
		for i := 0; i < 300; i++ {
			key := rng.Uint32() % 1000
			var err error
			var inserted bool
			root, inserted, err = Insert(root, newNode(t, domain.KeyVector{{Key: key, Value: key * 3}}))
			require.NoError(t, err)
			assert.Equal(t, !seen[key], inserted)
			seen[key] = true
			requireBalanced(t, root)
		}
		assert.Equal(t, len(seen), Size(root))
	}
}

func TestInsert_Sequential(t *testing.T) {
	var root *TreeNode
	for i := uint32(0); i < 1024; i++ {
		var err error
		root, _, err = Insert(root, newNode(t, domain.KeyVector{{Key: i, Value: 0}}))
		require.NoError(t, err)
	}
	requireBalanced(t, root)
	// a perfectly balanced tree of 1024 nodes has depth 11
	assert.LessOrEqual(t, root.Depth(), 12)
}

func TestInsert_DuplicateIsIgnored(t *testing.T) {
	first := newNode(t, domain.KeyVector{{Key: 7, Value: 7}})
	root, inserted, err := Insert(nil, first)
	require.NoError(t, err)
	require.True(t, inserted)

	second := newNode(t, domain.KeyVector{{Key: 7, Value: 7}})
	second.Bin().Map.MapSize = 99
	root, inserted, err = Insert(root, second)

	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, 1, Size(root))
	bin, err := Lookup(root, first.KeyString())
	require.NoError(t, err)
	assert.Same(t, first.Bin(), bin)
}

func TestInsert_NilNode(t *testing.T) {
	_, _, err := Insert(nil, nil)
	assert.True(t, errors.Is(err, domain.ErrBadParam))
	_, _, err = Insert(nil, &TreeNode{})
	assert.True(t, errors.Is(err, domain.ErrBadParam))
}

func TestLookup(t *testing.T) {
	kvs := []domain.KeyVector{
		{{Key: 0xA1000000, Value: 1}, {Key: 0xA2000000, Value: 2}},
		{{Key: 0xA1000000, Value: 1}, {Key: 0xA2000000, Value: 3}},
		{{Key: 0xA1000000, Value: 2}},
		{{Key: 5, Value: 5}},
	}
	root := insertAll(t, kvs...)

	for _, kv := range kvs {
		s, err := kv.ToString()
		require.NoError(t, err)
		bin, err := Lookup(root, s)
		require.NoError(t, err)
		assert.True(t, kv.Equal(bin.Map.KeyVector))
	}

	missing, _ := domain.KeyVector{{Key: 0xA1000000, Value: 3}}.ToString()
	_, err := Lookup(root, missing)
	assert.True(t, errors.Is(err, domain.ErrNotExist))
}

func TestLookup_EmptyTree(t *testing.T) {
	_, err := Lookup(nil, "0000000100000001")
	assert.True(t, errors.Is(err, domain.ErrNotExist))
}

func TestTraverse_Ordered(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	var kvs []domain.KeyVector
	for _, k := range rng.Perm(200) {
		kvs = append(kvs, domain.KeyVector{{Key: uint32(k), Value: uint32(k)}, {Key: 1, Value: 2}})
	}
	root := insertAll(t, kvs...)

	bins := Traverse(root)

	require.Len(t, bins, 200)
	keys := make([]string, len(bins))
	for i, b := range bins {
		keys[i] = b.KeyString
	}
	assert.True(t, sort.StringsAreSorted(keys))
}

func TestTraverse_Empty(t *testing.T) {
	assert.Empty(t, Traverse(nil))
}

func TestWalk_StopsEarly(t *testing.T) {
	root := insertAll(t, domain.KeyVector{{Key: 1, Value: 0}}, domain.KeyVector{{Key: 2, Value: 0}}, domain.KeyVector{{Key: 3, Value: 0}})
	visited := 0
	Walk(root, func(*TreeNode) bool {
		visited++
		return visited < 2
	})
	assert.Equal(t, 2, visited)
}

func TestClear(t *testing.T) {
	node := newNode(t, domain.KeyVector{{Key: 1, Value: 1}})
	node.Bin().Map.Subgraphs = []domain.SubgraphData{{SubgraphID: 1}}
	root, _, err := Insert(nil, node)
	require.NoError(t, err)
	root, _, err = Insert(root, newNode(t, domain.KeyVector{{Key: 2, Value: 2}}))
	require.NoError(t, err)
	root, _, err = Insert(root, newNode(t, domain.KeyVector{{Key: 0, Value: 0}}))
	require.NoError(t, err)

	bin := node.Bin()
	cleared := Clear(root)

	assert.Equal(t, 3, cleared)
	assert.Nil(t, bin.Map.Subgraphs)
	assert.Nil(t, root.Left())
	assert.Nil(t, root.Right())
	assert.Equal(t, 0, Clear(nil))
}
