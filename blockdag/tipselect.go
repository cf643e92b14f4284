package blockdag

import (
	"sort"

	"github.com/lattice-network/lattice/types"
)

// SelectParents chooses selected and merge parents for a new block
// being produced on top of the current DAG tips (spec.md §4.C5),
// exported so the block builder can pull real merge parents instead of
// building single-parent chains.
func (dag *BlockDAG) SelectParents() (selectedParent types.Hash, mergeParents []types.Hash, err error) {
	dag.mtx.RLock()
	defer dag.mtx.RUnlock()
	tipSet := dag.virtual.tips()
	if len(tipSet) == 0 {
		return types.ZeroHash, nil, ruleError(ErrNoParents, "dag has no tips")
	}
	selected, merge := dag.selectParents(tipSet.slice())
	return selected.hash, hashesOf(merge), nil
}

// selectParents chooses which of the current DAG tips a new block
// should reference as parents, given the candidate tips (spec.md
// §4.C5). The bluest candidate always becomes the selected parent; the
// remaining candidates are kept as merge parents up to
// params.MaxParents parents in total, dropped beyond that in ascending
// blueness order (the least blue candidates are the ones most likely
// to already be covered by a bluer parent's past).
func (dag *BlockDAG) selectParents(candidates []*blockNode) (selectedParent *blockNode, mergeParents []*blockNode) {
	if len(candidates) == 0 {
		return nil, nil
	}
	sorted := make([]*blockNode, len(candidates))
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool { return sorted[j].less(sorted[i]) }) // descending blueness

	selectedParent = sorted[0]
	rest := sorted[1:]
	maxMerge := int(dag.params.MaxParents) - 1
	if maxMerge < 0 {
		maxMerge = 0
	}
	if len(rest) > maxMerge {
		rest = rest[:maxMerge]
	}
	mergeParents = rest
	return selectedParent, mergeParents
}
