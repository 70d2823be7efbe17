package avl_tree

import (
	"ACDB/internal/domain"

	"github.com/pkg/errors"
)

// MapBin is the payload of a tree node: the key vector string used for
// ordering and the map bound to it.
type MapBin struct {
	KeyString string
	Map       *domain.DeltaDataMap
}

func NewMapBin(m *domain.DeltaDataMap) (*MapBin, error) {
	if m == nil {
		return nil, errors.Wrap(domain.ErrBadParam, "delta data map is nil")
	}
	key, err := m.KeyVector.ToString()
	if err != nil {
		return nil, err
	}
	return &MapBin{KeyString: key, Map: m}, nil
}

type TreeNode struct {
	bin    *MapBin
	left   *TreeNode
	right  *TreeNode
	parent *TreeNode
	depth  int
}

func NewTreeNode(bin *MapBin) *TreeNode {
	return &TreeNode{bin: bin, depth: 1}
}

func (n *TreeNode) Bin() *MapBin       { return n.bin }
func (n *TreeNode) Left() *TreeNode    { return n.left }
func (n *TreeNode) Right() *TreeNode   { return n.right }
func (n *TreeNode) Parent() *TreeNode  { return n.parent }
func (n *TreeNode) Depth() int         { return Depth(n) }
func (n *TreeNode) KeyString() string  { return n.bin.KeyString }
func (n *TreeNode) balanceFactor() int { return Depth(n.right) - Depth(n.left) }

// Depth of a missing node is 0, of a leaf 1.
func Depth(n *TreeNode) int {
	if n == nil {
		return 0
	}
	return n.depth
}

func (n *TreeNode) updateDepth() {
	n.depth = 1 + max(Depth(n.left), Depth(n.right))
}

// Insert attaches node below root and rebalances. It returns the (possibly
// new) root and whether the node was linked. A node whose key string is
// already present is not inserted.
func Insert(root, node *TreeNode) (*TreeNode, bool, error) {
	if node == nil || node.bin == nil {
		return root, false, errors.Wrap(domain.ErrBadParam, "tree node has no bin")
	}
	node.left, node.right, node.parent = nil, nil, nil
	node.depth = 1

	if root == nil {
		return node, true, nil
	}

	curr := root
	for {
		switch domain.CompareKeyVectorStrings(node.bin.KeyString, curr.bin.KeyString) {
		case domain.Equal:
			return root, false, nil
		case domain.Left:
			if curr.left == nil {
				curr.left = node
				node.parent = curr
				return rebalance(root, curr), true, nil
			}
			curr = curr.left
		case domain.Right:
			if curr.right == nil {
				curr.right = node
				node.parent = curr
				return rebalance(root, curr), true, nil
			}
			curr = curr.right
		}
	}
}

// rebalance walks from start to the root fixing depths and rotating any
// ancestor whose subtrees differ in depth by more than one.
func rebalance(root, start *TreeNode) *TreeNode {
	for t := start; t != nil; {
		t.updateDepth()
		factor := t.balanceFactor()
		if factor <= 1 && factor >= -1 {
			t = t.parent
			continue
		}

		var subtree *TreeNode
		if factor > 1 {
			if t.right.balanceFactor() < 0 {
				rightRotate(t.right)
			}
			subtree = leftRotate(t)
		} else {
			if t.left.balanceFactor() > 0 {
				leftRotate(t.left)
			}
			subtree = rightRotate(t)
		}
		if subtree.parent == nil {
			root = subtree
		}
		t = subtree.parent
	}
	return root
}

// Rotate the tree left around the given node.
//
//	    FP                                FC
//	 /      \         left rotate        /  \
//	FP_L     FC          =>            FP   FC_R
//	        / \                       / \
//	     FC_L   FC_R               FP_L  FC_L
//
// The former child becomes the subtree root and is returned.
func leftRotate(rotationNode *TreeNode) *TreeNode {
	formerChild := rotationNode.right
	replaceChild(rotationNode.parent, rotationNode, formerChild)
	formerChild.parent = rotationNode.parent

	rotationNode.right = formerChild.left
	if formerChild.left != nil {
		formerChild.left.parent = rotationNode
	}
	formerChild.left = rotationNode
	rotationNode.parent = formerChild

	rotationNode.updateDepth()
	formerChild.updateDepth()
	return formerChild
}

// Same as leftRotate, with left and right swapped.
func rightRotate(rotationNode *TreeNode) *TreeNode {
	formerChild := rotationNode.left
	replaceChild(rotationNode.parent, rotationNode, formerChild)
	formerChild.parent = rotationNode.parent

	rotationNode.left = formerChild.right
	if formerChild.right != nil {
		formerChild.right.parent = rotationNode
	}
	formerChild.right = rotationNode
	rotationNode.parent = formerChild

	rotationNode.updateDepth()
	formerChild.updateDepth()
	return formerChild
}

func replaceChild(parent, oldChild, newChild *TreeNode) {
	if parent == nil {
		return
	}
	if parent.left == oldChild {
		parent.left = newChild
	} else {
		parent.right = newChild
	}
}

func Lookup(root *TreeNode, keyString string) (*MapBin, error) {
	curr := root
	for curr != nil {
		switch domain.CompareKeyVectorStrings(keyString, curr.bin.KeyString) {
		case domain.Equal:
			return curr.bin, nil
		case domain.Left:
			curr = curr.left
		case domain.Right:
			curr = curr.right
		}
	}
	return nil, errors.Wrapf(domain.ErrNotExist, "key vector %s", keyString)
}

// Walk visits nodes in order until fn returns false. It uses an explicit
// stack so depth does not grow the goroutine stack.
func Walk(root *TreeNode, fn func(*TreeNode) bool) {
	stack := make([]*TreeNode, 0, Depth(root))
	curr := root
	for curr != nil || len(stack) > 0 {
		for curr != nil {
			stack = append(stack, curr)
			curr = curr.left
		}
		curr = stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(curr) {
			return
		}
		curr = curr.right
	}
}

// Traverse returns the bins in ascending key vector string order.
func Traverse(root *TreeNode) []*MapBin {
	var bins []*MapBin
	Walk(root, func(n *TreeNode) bool {
		bins = append(bins, n.bin)
		return true
	})
	return bins
}

func Size(root *TreeNode) int {
	size := 0
	Walk(root, func(*TreeNode) bool {
		size++
		return true
	})
	return size
}

// Clear releases every bin and unlinks every node. It returns the number of
// nodes released; the caller drops its root.
func Clear(root *TreeNode) int {
	cleared := 0
	stack := make([]*TreeNode, 0, Depth(root))
	curr := root
	for curr != nil || len(stack) > 0 {
		for curr != nil {
			stack = append(stack, curr)
			curr = curr.left
		}
		curr = stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		next := curr.right
		if curr.bin != nil && curr.bin.Map != nil {
			curr.bin.Map.Release()
		}
		curr.bin = nil
		curr.left, curr.right, curr.parent = nil, nil, nil
		curr.depth = 0
		cleared++

		curr = next
	}
	return cleared
}
