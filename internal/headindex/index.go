package headindex

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

var (
	// ErrNoCandidates is returned when a traversal yields no head.
	ErrNoCandidates = errors.New("headindex: no candidate heads")
	// ErrUnknownHead is returned when an operation names a head that is not a leaf.
	ErrUnknownHead = errors.New("headindex: unknown head")
	// ErrEmptyInput is returned when building from an empty sample.
	ErrEmptyInput = errors.New("headindex: empty input")
	// ErrDimension is returned when a vector does not match the index dimension.
	ErrDimension = errors.New("headindex: dimension mismatch")
	// ErrCorrupt is returned when a serialized index fails verification.
	ErrCorrupt = errors.New("headindex: corrupt index")
)

// Variant selects the navigation structure over heads.
type Variant int

const (
	VariantTree Variant = iota
	VariantFlat
)

func (v Variant) String() string {
	switch v {
	case VariantTree:
		return "Tree"
	case VariantFlat:
		return "Flat"
	default:
		return fmt.Sprintf("Unknown(%d)", v)
	}
}

// Valid reports whether v is a supported variant.
func (v Variant) Valid() bool {
	return v == VariantTree || v == VariantFlat
}

// ParseVariant parses "tree" (also "bkt") or "flat" (also "kmeans").
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tree", "bkt", "":
		return VariantTree, nil
	case "flat", "kmeans":
		return VariantFlat, nil
	default:
		return 0, fmt.Errorf("unknown variant %q", s)
	}
}

// Node is a centroid in the navigation structure. A leaf carries a head id
// and no children; an internal node carries children and Head == -1.
type Node struct {
	Centroid []float32
	Children []int32
	Head     int32
}

// IsLeaf reports whether n is a head leaf.
func (n *Node) IsLeaf() bool { return n.Head >= 0 }

// Head is a routing centroid that owns one posting list.
type Head struct {
	ID       uint32
	Centroid []float32
}

// Index is an immutable head index snapshot.
type Index struct {
	dim      int
	variant  Variant
	nodes    []Node
	roots    []int32
	leafOf   map[uint32]int32
	nextHead uint32
}

// Dim returns the centroid dimension.
func (ix *Index) Dim() int { return ix.dim }

// Variant returns the navigation variant.
func (ix *Index) Variant() Variant { return ix.variant }

// NumHeads returns the number of heads.
func (ix *Index) NumHeads() int { return len(ix.leafOf) }

// NumNodes returns the number of navigation nodes, heads included.
func (ix *Index) NumNodes() int { return len(ix.nodes) }

// NumRoots returns the number of traversal entry points.
func (ix *Index) NumRoots() int { return len(ix.roots) }

// NextHead returns the id the next created head will receive.
func (ix *Index) NextHead() uint32 { return ix.nextHead }

// HasHead reports whether id is a live head.
func (ix *Index) HasHead(id uint32) bool {
	_, ok := ix.leafOf[id]
	return ok
}

// HeadIDs returns the live head ids in ascending order.
func (ix *Index) HeadIDs() []uint32 {
	return slices.Sorted(maps.Keys(ix.leafOf))
}

// Heads returns every live head in ascending id order.
func (ix *Index) Heads() []Head {
	ids := ix.HeadIDs()
	out := make([]Head, len(ids))
	for i, id := range ids {
		out[i] = Head{ID: id, Centroid: ix.nodes[ix.leafOf[id]].Centroid}
	}
	return out
}

// Centroid returns the centroid of head id.
func (ix *Index) Centroid(id uint32) ([]float32, bool) {
	n, ok := ix.leafOf[id]
	if !ok {
		return nil, false
	}
	return ix.nodes[n].Centroid, true
}

// Depth returns the maximum root-to-leaf depth (1 for a flat index).
func (ix *Index) Depth() int {
	depth := make([]int, len(ix.nodes))
	var walk func(n int32) int
	walk = func(n int32) int {
		if depth[n] > 0 {
			return depth[n]
		}
		d := 1
		for _, c := range ix.nodes[n].Children {
			d = max(d, walk(c)+1)
		}
		depth[n] = d
		return d
	}
	m := 0
	for _, r := range ix.roots {
		m = max(m, walk(r))
	}
	return m
}

// Split returns a copy of ix in which head becomes an internal node routing
// to two new heads with the given centroids. ix itself is unchanged.
func (ix *Index) Split(head uint32, left, right []float32) (*Index, [2]uint32, error) {
	node, ok := ix.leafOf[head]
	if !ok {
		return nil, [2]uint32{}, fmt.Errorf("%w: %d", ErrUnknownHead, head)
	}
	if len(left) != ix.dim || len(right) != ix.dim {
		return nil, [2]uint32{}, fmt.Errorf("headindex: split centroid dimension mismatch")
	}

	next := &Index{
		dim:      ix.dim,
		variant:  ix.variant,
		nodes:    make([]Node, len(ix.nodes), len(ix.nodes)+2),
		roots:    ix.roots,
		leafOf:   maps.Clone(ix.leafOf),
		nextHead: ix.nextHead + 2,
	}
	copy(next.nodes, ix.nodes)

	ids := [2]uint32{ix.nextHead, ix.nextHead + 1}
	a := int32(len(next.nodes))
	next.nodes = append(next.nodes,
		Node{Centroid: slices.Clone(left), Head: int32(ids[0])},
		Node{Centroid: slices.Clone(right), Head: int32(ids[1])},
	)
	next.nodes[node] = Node{
		Centroid: ix.nodes[node].Centroid,
		Children: []int32{a, a + 1},
		Head:     -1,
	}
	delete(next.leafOf, head)
	next.leafOf[ids[0]] = a
	next.leafOf[ids[1]] = a + 1
	return next, ids, nil
}

// validate checks structural invariants of a decoded or built index.
func (ix *Index) validate() error {
	n := int32(len(ix.nodes))
	if len(ix.roots) == 0 {
		return errors.New("no roots")
	}
	for _, r := range ix.roots {
		if r < 0 || r >= n {
			return fmt.Errorf("root %d out of range", r)
		}
	}
	seen := make(map[uint32]bool)
	for i := range ix.nodes {
		nd := &ix.nodes[i]
		if len(nd.Centroid) != ix.dim {
			return fmt.Errorf("node %d: centroid dimension %d", i, len(nd.Centroid))
		}
		if nd.IsLeaf() {
			if len(nd.Children) != 0 {
				return fmt.Errorf("node %d: leaf with children", i)
			}
			h := uint32(nd.Head)
			if seen[h] {
				return fmt.Errorf("node %d: duplicate head %d", i, h)
			}
			if h >= ix.nextHead {
				return fmt.Errorf("node %d: head %d beyond next head %d", i, h, ix.nextHead)
			}
			seen[h] = true
			continue
		}
		if nd.Head != -1 || len(nd.Children) == 0 {
			return fmt.Errorf("node %d: internal node without children", i)
		}
		for _, c := range nd.Children {
			if c < 0 || c >= n || c == int32(i) {
				return fmt.Errorf("node %d: child %d out of range", i, c)
			}
		}
	}
	if len(seen) == 0 {
		return errors.New("no heads")
	}

	// Every head must be reachable and the node graph must be acyclic.
	const (
		white = iota
		grey
		black
	)
	color := make([]uint8, n)
	reached := 0
	var visit func(i int32) error
	visit = func(i int32) error {
		switch color[i] {
		case grey:
			return fmt.Errorf("cycle through node %d", i)
		case black:
			return nil
		}
		color[i] = grey
		for _, c := range ix.nodes[i].Children {
			if err := visit(c); err != nil {
				return err
			}
		}
		color[i] = black
		if ix.nodes[i].IsLeaf() {
			reached++
		}
		return nil
	}
	for _, r := range ix.roots {
		if err := visit(r); err != nil {
			return err
		}
	}
	if reached != len(seen) {
		return fmt.Errorf("%d of %d heads unreachable", len(seen)-reached, len(seen))
	}
	return nil
}

func (ix *Index) indexLeaves() {
	ix.leafOf = make(map[uint32]int32)
	for i := range ix.nodes {
		if ix.nodes[i].IsLeaf() {
			ix.leafOf[uint32(ix.nodes[i].Head)] = int32(i)
		}
	}
}
