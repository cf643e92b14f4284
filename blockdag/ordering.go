package blockdag

import "sort"

// totalOrder returns nodes sorted into the deterministic order every
// honest node agrees on: ascending blue score, ties broken by the
// numerically smaller hash (spec.md §4.C4 - total ordering of the
// mergeset drives transaction execution order). This is the same
// comparator GHOSTDAG itself uses to rank candidates
// (blockNode.less), applied here to a finished mergeset rather than a
// heap of in-flight candidates.
func totalOrder(nodes []*blockNode) []*blockNode {
	out := make([]*blockNode, len(nodes))
	copy(out, nodes)
	sort.Slice(out, func(i, j int) bool { return out[i].less(out[j]) })
	return out
}

// mergeSetOrder returns the full ordering used to assign transaction
// acceptance order for newNode: its blue set first (selected parent
// last, since the selected parent itself defines the prefix already
// ordered by its own ancestors), then the red blocks it merges, each
// ordered by totalOrder. Blue blocks' transactions are accepted into
// state; red blocks' transactions are never applied but are still
// walked for duplicate/double-spend detection (spec.md §4.C4).
func mergeSetOrder(blues, reds []*blockNode) (orderedBlues, orderedReds []*blockNode) {
	return totalOrder(blues), totalOrder(reds)
}
