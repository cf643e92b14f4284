package blockdag

import "container/heap"

// blockHeap is a priority queue of blockNodes ordered by blue score
// (ties broken by hash), used to walk the selected-parent anticone in
// a deterministic topological order during GHOSTDAG processing
// (adapted from the teacher's blockheap_test.go-documented up/down
// heap; the heap implementation itself was not retrieved with the
// pack, so this is a fresh container/heap-based reimplementation of
// the same observed semantics).
type blockHeap struct {
	nodes []*blockNode
	less  func(a, b *blockNode) bool
}

func (h *blockHeap) Len() int { return len(h.nodes) }
func (h *blockHeap) Swap(i, j int) {
	h.nodes[i], h.nodes[j] = h.nodes[j], h.nodes[i]
}
func (h *blockHeap) Less(i, j int) bool { return h.less(h.nodes[i], h.nodes[j]) }

func (h *blockHeap) Push(x interface{}) {
	h.nodes = append(h.nodes, x.(*blockNode))
}

func (h *blockHeap) Pop() interface{} {
	old := h.nodes
	n := len(old)
	item := old[n-1]
	h.nodes = old[:n-1]
	return item
}

// Push inserts a node into the heap.
func (h *blockHeap) push(n *blockNode) { heap.Push(h, n) }

// pop removes and returns the top node, or nil if the heap is empty.
func (h *blockHeap) pop() *blockNode {
	if h.Len() == 0 {
		return nil
	}
	return heap.Pop(h).(*blockNode)
}

// newUpHeap returns a heap that pops the least-blue node first
// (ascending blue score, ascending hash on ties) - the order GHOSTDAG
// walks the selected-parent anticone in.
func newUpHeap() *blockHeap {
	h := &blockHeap{less: func(a, b *blockNode) bool { return a.less(b) }}
	heap.Init(h)
	return h
}

// newDownHeap returns a heap that pops the bluest node first.
func newDownHeap() *blockHeap {
	h := &blockHeap{less: func(a, b *blockNode) bool { return b.less(a) }}
	heap.Init(h)
	return h
}
