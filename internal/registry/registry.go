// Package registry implements the allocation registry: a binary trie keyed by the bit pattern of a segment
// address.
//
// Nodes live in an arena and refer to each other by index. A branch counts the leaves reachable beneath it and is
// reclaimed as soon as that count drops to zero, so the trie never holds more branches than the live keys need.
package registry

import (
	"math/bits"

	"github.com/pkg/errors"
)

type registryError string

func (e registryError) Error() string {
	return string(e)
}

const (
	// ErrExists is returned by Insert when a leaf is already present for the key.
	ErrExists registryError = "registry entry already exists"

	errKeyRange registryError = "key exceeds registry width"
)

type nodeID int32

const (
	nilNode nodeID = -1
	rootID  nodeID = 0
)

type kind uint8

const (
	kindFree kind = iota
	kindBranch
	kindLeaf
)

// node is either a branch (refcount and children set) or a leaf (value set), discriminated by kind.
type node[V any] struct {
	kind     kind
	refcount int
	children [2]nodeID
	value    V
}

// Tree maps address-sized keys to values. It is not safe for concurrent use; callers guard it with their own
// lock.
type Tree[V any] struct {
	nodes  []node[V]
	free   []nodeID
	width  int
	leaves int
}

// New returns an empty Tree keyed over the platform pointer width.
func New[V any]() *Tree[V] {
	return NewWithWidth[V](bits.UintSize)
}

// NewWithWidth returns an empty Tree whose keys are width bits long. width must be between 1 and 64.
func NewWithWidth[V any](width int) *Tree[V] {
	if width < 1 || width > 64 {
		panic("registry: width must be between 1 and 64")
	}

	t := &Tree[V]{width: width}
	t.reset()

	return t
}

func (t *Tree[V]) reset() {
	clear(t.nodes)
	t.nodes = append(t.nodes[:0], node[V]{
		kind:     kindBranch,
		children: [2]nodeID{nilNode, nilNode},
	})
	t.free = t.free[:0]
	t.leaves = 0
}

// bit returns the bit of key consumed at the given depth, most significant first.
func (t *Tree[V]) bit(key uint64, depth int) int {
	return int((key >> uint(t.width-1-depth)) & 1)
}

func (t *Tree[V]) inRange(key uint64) bool {
	return t.width == 64 || key>>uint(t.width) == 0
}

func (t *Tree[V]) alloc(n node[V]) nodeID {
	if l := len(t.free); l > 0 {
		id := t.free[l-1]
		t.free = t.free[:l-1]
		t.nodes[id] = n

		return id
	}

	t.nodes = append(t.nodes, n)

	return nodeID(len(t.nodes) - 1)
}

func (t *Tree[V]) release(id nodeID) {
	t.nodes[id] = node[V]{
		kind:     kindFree,
		children: [2]nodeID{nilNode, nilNode},
	}
	t.free = append(t.free, id)
}

// Insert places v at key, creating branches as needed.
func (t *Tree[V]) Insert(key uint64, v V) error {
	if !t.inRange(key) {
		return errors.Wrapf(errKeyRange, "insert %#x", key)
	}

	if _, ok := t.Lookup(key); ok {
		return errors.Wrapf(ErrExists, "insert %#x", key)
	}

	cur := rootID

	for depth := 0; depth < t.width; depth++ {
		t.nodes[cur].refcount++

		b := t.bit(key, depth)
		next := t.nodes[cur].children[b]

		if next == nilNode {
			if depth == t.width-1 {
				next = t.alloc(node[V]{
					kind:     kindLeaf,
					children: [2]nodeID{nilNode, nilNode},
					value:    v,
				})
			} else {
				next = t.alloc(node[V]{
					kind:     kindBranch,
					children: [2]nodeID{nilNode, nilNode},
				})
			}

			t.nodes[cur].children[b] = next
		}

		cur = next
	}

	t.leaves++

	return nil
}

// Lookup returns the value stored at key.
func (t *Tree[V]) Lookup(key uint64) (v V, ok bool) {
	if !t.inRange(key) {
		return v, false
	}

	cur := rootID

	for depth := 0; depth < t.width; depth++ {
		cur = t.nodes[cur].children[t.bit(key, depth)]
		if cur == nilNode {
			return v, false
		}
	}

	if t.nodes[cur].kind != kindLeaf {
		return v, false
	}

	return t.nodes[cur].value, true
}

// Remove detaches the leaf at key and reclaims every branch left without leaves. It returns the removed value.
func (t *Tree[V]) Remove(key uint64) (v V, ok bool) {
	if !t.inRange(key) {
		return v, false
	}

	path := make([]nodeID, 0, t.width)
	cur := rootID

	for depth := 0; depth < t.width; depth++ {
		path = append(path, cur)

		cur = t.nodes[cur].children[t.bit(key, depth)]
		if cur == nilNode {
			return v, false
		}
	}

	v = t.nodes[cur].value
	t.release(cur)
	t.leaves--

	reclaimed := true

	for depth := len(path) - 1; depth >= 0; depth-- {
		id := path[depth]
		n := &t.nodes[id]

		n.refcount--

		if reclaimed {
			n.children[t.bit(key, depth)] = nilNode
		}

		reclaimed = n.refcount == 0 && id != rootID
		if reclaimed {
			t.release(id)
		}
	}

	return v, true
}

type frame struct {
	id    nodeID
	depth int
	key   uint64
}

// ForEach calls visit for every leaf in ascending key order until visit returns false. visit may mutate the
// value it receives but must not insert or remove keys.
func (t *Tree[V]) ForEach(visit func(key uint64, v V) bool) {
	stack := []frame{{id: rootID}}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n := &t.nodes[f.id]
		if n.kind == kindLeaf {
			if !visit(f.key, n.value) {
				return
			}

			continue
		}

		// push one before zero so zero is visited first
		for b := 1; b >= 0; b-- {
			if child := n.children[b]; child != nilNode {
				stack = append(stack, frame{
					id:    child,
					depth: f.depth + 1,
					key:   f.key | uint64(b)<<uint(t.width-1-f.depth),
				})
			}
		}
	}
}

// Clear removes every key, calling visit for each removed value.
func (t *Tree[V]) Clear(visit func(key uint64, v V)) {
	if visit != nil {
		t.ForEach(func(key uint64, v V) bool {
			visit(key, v)
			return true
		})
	}

	t.reset()
}

// Len returns the number of leaves.
func (t *Tree[V]) Len() int {
	return t.leaves
}

// Nodes returns the number of live arena nodes, the root included.
func (t *Tree[V]) Nodes() int {
	return len(t.nodes) - len(t.free)
}

// refcount is used by tests to check the branch invariant.
func (t *Tree[V]) refcount(id nodeID) int {
	return t.nodes[id].refcount
}
