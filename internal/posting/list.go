package posting

import (
	"errors"
	"fmt"
	"iter"
	"sync"
)

var (
	// ErrNoList is returned when a head has no posting list.
	ErrNoList = errors.New("posting: no such list")
	// ErrListExists is returned when creating a list for a head that already has one.
	ErrListExists = errors.New("posting: list already exists")
	// ErrRetired is returned when appending to a list that was replaced by a split.
	ErrRetired = errors.New("posting: list retired")
	// ErrDimension is returned when a record's vector has the wrong length.
	ErrDimension = errors.New("posting: dimension mismatch")
)

// Record is a stored vector with its id and optional metadata.
// Vector and Metadata alias store memory and must not be modified.
type Record struct {
	ID       uint64
	Vector   []float32
	Metadata []byte
}

// List is the append-only posting list owned by a single head.
type List struct {
	head uint32
	dim  int

	mu      sync.RWMutex
	ids     []uint64
	vectors []float32
	meta    [][]byte
	retired bool
}

func newList(head uint32, dim int, capacity int) *List {
	return &List{
		head:    head,
		dim:     dim,
		ids:     make([]uint64, 0, capacity),
		vectors: make([]float32, 0, capacity*dim),
		meta:    make([][]byte, 0, capacity),
	}
}

// Head returns the owning head id.
func (l *List) Head() uint32 { return l.head }

// Append adds a record and returns its position.
func (l *List) Append(rec Record) (int, error) {
	if len(rec.Vector) != l.dim {
		return -1, fmt.Errorf("%w: expected %d, got %d", ErrDimension, l.dim, len(rec.Vector))
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.retired {
		return -1, ErrRetired
	}
	pos := len(l.ids)
	l.vectors = append(l.vectors, rec.Vector...)
	l.meta = append(l.meta, rec.Metadata)
	l.ids = append(l.ids, rec.ID)
	return pos, nil
}

// Len returns the current number of records.
func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.ids)
}

// Retired reports whether the list was retired.
func (l *List) Retired() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.retired
}

// retire marks the list as retired and returns its final view.
func (l *List) retire() View {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.retired = true
	return View{IDs: l.ids, Vectors: l.vectors, Metadata: l.meta, Dim: l.dim}
}

// View returns a snapshot of the list bounded by its current length.
func (l *List) View() View {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := len(l.ids)
	return View{
		IDs:      l.ids[:n:n],
		Vectors:  l.vectors[: n*l.dim : n*l.dim],
		Metadata: l.meta[:n:n],
		Dim:      l.dim,
	}
}

// Scan returns a restartable sequence over a snapshot of the list.
func (l *List) Scan() iter.Seq[Record] {
	return l.View().All()
}

// View is an immutable, bounded snapshot of a posting list.
type View struct {
	IDs      []uint64
	Vectors  []float32
	Metadata [][]byte
	Dim      int
}

// Len returns the number of records in the view.
func (v View) Len() int { return len(v.IDs) }

// Vector returns the i-th vector.
func (v View) Vector(i int) []float32 {
	return v.Vectors[i*v.Dim : (i+1)*v.Dim]
}

// Record returns the i-th record.
func (v View) Record(i int) Record {
	return Record{ID: v.IDs[i], Vector: v.Vector(i), Metadata: v.Metadata[i]}
}

// All yields every record in position order.
func (v View) All() iter.Seq[Record] {
	return func(yield func(Record) bool) {
		for i := range v.IDs {
			if !yield(v.Record(i)) {
				return
			}
		}
	}
}
