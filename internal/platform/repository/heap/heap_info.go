package heap

import (
	"bytes"
	"encoding/binary"

	"ACDB/internal/domain"
	"ACDB/internal/platform/repository/avl_tree"

	"github.com/pkg/errors"
)

// GetHeapInfo snapshots the active heap for external inspection tools.
//
//	| node_count | { key_count | key,value * key_count | map_size | kv_type } * node_count |
//	|     4B     |      4B     |      8B * key_count    |    4B    |   4B    |
//
// All fields are little endian.
func (m *Manager) GetHeapInfo() ([]byte, error) {
	h, err := m.activeHeap()
	if err != nil {
		return nil, err
	}

	var body bytes.Buffer
	nodeCount := uint32(0)
	avl_tree.Walk(h.root, func(n *avl_tree.TreeNode) bool {
		err = writeNodeInfo(&body, n.Bin())
		if err != nil {
			return false
		}
		nodeCount++
		return true
	})
	if err != nil {
		return nil, err
	}

	out := bytes.NewBuffer(make([]byte, 0, 4+body.Len()))
	if err := binary.Write(out, binary.LittleEndian, nodeCount); err != nil {
		return nil, err
	}
	if _, err := out.Write(body.Bytes()); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func writeNodeInfo(buf *bytes.Buffer, bin *avl_tree.MapBin) error {
	kv, err := domain.ParseKeyVectorString(bin.KeyString)
	if err != nil {
		return errors.Wrap(err, "parse bin key")
	}
	if err := binary.Write(buf, binary.LittleEndian, uint32(len(kv))); err != nil {
		return err
	}
	for _, pair := range kv {
		if err := binary.Write(buf, binary.LittleEndian, pair); err != nil {
			return err
		}
	}
	if err := binary.Write(buf, binary.LittleEndian, bin.Map.MapSize); err != nil {
		return err
	}
	return binary.Write(buf, binary.LittleEndian, uint32(bin.Map.KeyVectorType))
}

type NodeInfo struct {
	KeyVector     domain.KeyVector
	MapSize       uint32
	KeyVectorType domain.KeyVectorType
}

// ParseHeapInfo decodes the snapshot produced by GetHeapInfo.
func ParseHeapInfo(data []byte) ([]NodeInfo, error) {
	r := bytes.NewReader(data)
	var nodeCount uint32
	if err := binary.Read(r, binary.LittleEndian, &nodeCount); err != nil {
		return nil, errors.Wrap(domain.ErrBadParam, "read node count")
	}

	nodes := make([]NodeInfo, 0, nodeCount)
	for i := uint32(0); i < nodeCount; i++ {
		var keyCount uint32
		if err := binary.Read(r, binary.LittleEndian, &keyCount); err != nil {
			return nil, errors.Wrapf(domain.ErrBadParam, "read key count of node %d", i)
		}
		if keyCount > domain.MaxKeyCount {
			return nil, errors.Wrapf(domain.ErrBadParam, "node %d has %d keys", i, keyCount)
		}
		node := NodeInfo{KeyVector: make(domain.KeyVector, keyCount)}
		if err := binary.Read(r, binary.LittleEndian, node.KeyVector); err != nil {
			return nil, errors.Wrapf(domain.ErrBadParam, "read keys of node %d", i)
		}
		var kvType uint32
		if err := binary.Read(r, binary.LittleEndian, &node.MapSize); err != nil {
			return nil, errors.Wrapf(domain.ErrBadParam, "read map size of node %d", i)
		}
		if err := binary.Read(r, binary.LittleEndian, &kvType); err != nil {
			return nil, errors.Wrapf(domain.ErrBadParam, "read key vector type of node %d", i)
		}
		node.KeyVectorType = domain.KeyVectorType(kvType)
		nodes = append(nodes, node)
	}
	return nodes, nil
}
