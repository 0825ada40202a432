package crawler

import (
	"container/heap"

	"pixdown/pkg/pixiv"
)

// TopK accumulates a bounded best-of-N working set from a stream of
// illustrations. The default policy is a streaming min-heap selection:
// O(log K) per offer, the K highest-ranked items survive regardless of
// arrival order. With trustOrder the upstream ordering is taken as
// delivered and the accumulator degenerates to truncation at K.
type TopK struct {
	capacity   int
	trustOrder bool
	heap       illustHeap
	ordered    []*pixiv.Illust
}

// NewTopK creates an accumulator with the given capacity. trustOrder is for
// streams whose delivery order is accepted as-is: popularity-sorted
// searches, and feeds consumed first-N.
func NewTopK(capacity int, trustOrder bool) *TopK {
	t := &TopK{
		capacity:   capacity,
		trustOrder: trustOrder,
	}
	if trustOrder {
		t.ordered = make([]*pixiv.Illust, 0, capacity)
	} else {
		t.heap = make(illustHeap, 0, capacity)
	}
	return t
}

// Offer considers one illustration for the working set and reports whether
// it was admitted.
func (t *TopK) Offer(il *pixiv.Illust) bool {
	if t.trustOrder {
		if len(t.ordered) >= t.capacity {
			return false
		}
		t.ordered = append(t.ordered, il)
		return true
	}

	if t.heap.Len() < t.capacity {
		heap.Push(&t.heap, il)
		return true
	}
	// At capacity: evict the current worst if the newcomer beats it.
	if t.heap[0].Less(il) {
		t.heap[0] = il
		heap.Fix(&t.heap, 0)
		return true
	}
	return false
}

// Full reports whether the working set is at capacity. In trust-order mode
// this is a signal to stop consuming the stream.
func (t *TopK) Full() bool {
	return t.Len() >= t.capacity
}

// Len returns the current working set size.
func (t *TopK) Len() int {
	if t.trustOrder {
		return len(t.ordered)
	}
	return t.heap.Len()
}

// Drain removes and returns the working set, best-first. The accumulator
// is empty afterwards.
func (t *TopK) Drain() []*pixiv.Illust {
	if t.trustOrder {
		items := t.ordered
		t.ordered = nil
		return items
	}

	items := make([]*pixiv.Illust, t.heap.Len())
	// Popping a min-heap yields worst-first; fill back to front.
	for i := len(items) - 1; i >= 0; i-- {
		items[i] = heap.Pop(&t.heap).(*pixiv.Illust)
	}
	return items
}

// illustHeap is a min-heap under the illustration ordering relation, so the
// root is always the current worst item.
type illustHeap []*pixiv.Illust

func (h illustHeap) Len() int           { return len(h) }
func (h illustHeap) Less(i, j int) bool { return h[i].Less(h[j]) }
func (h illustHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *illustHeap) Push(x interface{}) {
	*h = append(*h, x.(*pixiv.Illust))
}

func (h *illustHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
