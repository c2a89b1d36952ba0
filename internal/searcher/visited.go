package searcher

import "github.com/bits-and-blooms/bitset"

// VisitedSet tracks visited head index nodes.
type VisitedSet struct {
	bits  *bitset.BitSet
	dirty []uint32
}

// NewVisitedSet creates a new visited set sized for capacity nodes.
func NewVisitedSet(capacity int) *VisitedSet {
	return &VisitedSet{
		bits:  bitset.New(uint(capacity)),
		dirty: make([]uint32, 0, 128),
	}
}

// Visit marks a node as visited. It reports whether the node was newly marked.
func (v *VisitedSet) Visit(id uint32) bool {
	if v.bits.Test(uint(id)) {
		return false
	}
	v.bits.Set(uint(id))
	v.dirty = append(v.dirty, id)
	return true
}

// Visited returns true if the node has been visited.
func (v *VisitedSet) Visited(id uint32) bool {
	return v.bits.Test(uint(id))
}

// Count returns the number of nodes visited since the last reset.
func (v *VisitedSet) Count() int {
	return len(v.dirty)
}

// Reset clears the visited status for all nodes visited in the current session.
func (v *VisitedSet) Reset() {
	// Sparse sessions clear bit by bit; dense ones wipe the whole set.
	if len(v.dirty) > int(v.bits.Len()/64) {
		v.bits.ClearAll()
	} else {
		for _, id := range v.dirty {
			v.bits.Clear(uint(id))
		}
	}
	v.dirty = v.dirty[:0]
}
