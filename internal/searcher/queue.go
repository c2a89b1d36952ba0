package searcher

import (
	"container/heap"
	"slices"
)

// Compile time check to ensure PriorityQueue satisfies the heap interface.
var _ heap.Interface = (*PriorityQueue)(nil)

// PriorityQueueItem represents an item in the priority queue.
type PriorityQueueItem struct {
	Node     uint64  // Node is a vector id or a head index node, depending on the queue.
	Distance float32 // Distance is the priority of the item in the queue.
}

// Closer reports whether a ranks before b: smaller distance first, ties
// broken by the lower node.
func Closer(a, b PriorityQueueItem) bool {
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	return a.Node < b.Node
}

// PriorityQueue implements heap.Interface and holds PriorityQueueItems.
// Value-based storage keeps items contiguous and allocation free once warm.
type PriorityQueue struct {
	isMaxHeap bool // true = max heap (farthest on top), false = min heap
	items     []PriorityQueueItem
}

// NewPriorityQueue creates a new priority queue.
func NewPriorityQueue(isMaxHeap bool) *PriorityQueue {
	return &PriorityQueue{
		isMaxHeap: isMaxHeap,
		items:     make([]PriorityQueueItem, 0, 16),
	}
}

// TopItem returns the top element of the heap.
func (pq *PriorityQueue) TopItem() (PriorityQueueItem, bool) {
	if len(pq.items) == 0 {
		return PriorityQueueItem{}, false
	}
	return pq.items[0], true
}

// PushItem inserts an item while maintaining the heap invariant.
func (pq *PriorityQueue) PushItem(item PriorityQueueItem) {
	pq.items = append(pq.items, item)
	pq.siftUp(len(pq.items) - 1)
}

// PushItemBounded inserts an item into a bounded max heap that keeps the
// capacity closest items. If the heap is full and the new item is not closer
// than the top, it is skipped; otherwise the top is replaced.
// It reports whether the item was kept.
func (pq *PriorityQueue) PushItemBounded(item PriorityQueueItem, capacity int) bool {
	if capacity <= 0 {
		return false
	}
	if len(pq.items) < capacity {
		pq.PushItem(item)
		return true
	}

	top := pq.items[0]
	if pq.isMaxHeap {
		if Closer(item, top) {
			pq.items[0] = item
			pq.siftDown(0)
			return true
		}
		return false
	}
	// A bounded min heap keeps the farthest items.
	if Closer(top, item) {
		pq.items[0] = item
		pq.siftDown(0)
		return true
	}
	return false
}

// Len returns the number of elements in the heap.
func (pq *PriorityQueue) Len() int {
	return len(pq.items)
}

// Less reports whether the element with index i should sort before the element with index j.
func (pq *PriorityQueue) Less(i, j int) bool {
	if pq.isMaxHeap {
		return Closer(pq.items[j], pq.items[i])
	}
	return Closer(pq.items[i], pq.items[j])
}

// Swap swaps the elements with indexes i and j.
func (pq *PriorityQueue) Swap(i, j int) {
	pq.items[i], pq.items[j] = pq.items[j], pq.items[i]
}

// Push pushes the element x onto the heap.
func (pq *PriorityQueue) Push(x any) {
	pq.items = append(pq.items, x.(PriorityQueueItem))
}

// Pop removes and returns the last element; used by container/heap.
func (pq *PriorityQueue) Pop() any {
	old := pq.items
	n := len(old)
	item := old[n-1]
	pq.items = old[0 : n-1]
	return item
}

// PopItem removes and returns the top element from the heap.
func (pq *PriorityQueue) PopItem() (PriorityQueueItem, bool) {
	n := len(pq.items)
	if n == 0 {
		return PriorityQueueItem{}, false
	}

	item := pq.items[0]
	pq.items[0] = pq.items[n-1]
	pq.items = pq.items[:n-1]

	if len(pq.items) > 0 {
		pq.siftDown(0)
	}

	return item, true
}

// Sorted returns a copy of the items ordered nearest first. The queue is
// left unchanged.
func (pq *PriorityQueue) Sorted() []PriorityQueueItem {
	out := slices.Clone(pq.items)
	slices.SortFunc(out, func(a, b PriorityQueueItem) int {
		if Closer(a, b) {
			return -1
		}
		if Closer(b, a) {
			return 1
		}
		return 0
	})
	return out
}

// siftUp moves the element at index i up the heap until the heap invariant is restored.
func (pq *PriorityQueue) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !pq.Less(i, parent) {
			break
		}
		pq.Swap(i, parent)
		i = parent
	}
}

// siftDown moves the element at index i down the heap until the heap invariant is restored.
func (pq *PriorityQueue) siftDown(i int) {
	n := len(pq.items)
	for {
		left := 2*i + 1
		if left >= n {
			break
		}
		child := left
		right := left + 1
		if right < n && pq.Less(right, left) {
			child = right
		}
		if !pq.Less(child, i) {
			break
		}
		pq.Swap(i, child)
		i = child
	}
}

// Reset clears the priority queue.
func (pq *PriorityQueue) Reset() {
	pq.items = pq.items[:0]
}
