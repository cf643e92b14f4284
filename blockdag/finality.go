package blockdag

import "github.com/lattice-network/lattice/types"

// finalityScore buckets a node's blue score into finality-depth-sized
// steps, mirroring the teacher's chain block finality scoring: once
// the selected tip's finality score climbs two steps past the current
// finality point's, a new finality point is chosen further down the
// selected-parent chain (spec.md §4.C7).
func (dag *BlockDAG) finalityScore(node *blockNode) uint64 {
	return node.blueScore / dag.params.FinalityDepth
}

// checkFinalityRules rejects a candidate block whose selected-parent
// chain does not pass through the DAG's current finality point -
// i.e. a block attempting to reorg past what has already finalized
// (spec.md §4.C7 invariant).
func (dag *BlockDAG) checkFinalityRules(newNode *blockNode) error {
	if newNode.isGenesis() || dag.finalityPoint == nil {
		return nil
	}
	for current := newNode; current.hash != dag.finalityPoint.hash; current = current.selectedParent {
		if current.selectedParent == nil {
			return ruleError(ErrFinalityViolation, "the last finality point is not in the selected chain of this block")
		}
		if current.blueScore <= dag.finalityPoint.blueScore {
			return ruleError(ErrFinalityViolation, "the last finality point is not in the selected chain of this block")
		}
	}
	return nil
}

// updateFinalityPoint advances the finality point along the new
// selected tip's chain once it is two finality-depth steps ahead of
// the current one.
func (dag *BlockDAG) updateFinalityPoint() {
	tip := dag.virtual.selectedTip()
	if tip == nil {
		return
	}
	if dag.finalityPoint == nil || tip.isGenesis() {
		dag.finalityPoint = tip
		return
	}
	if dag.finalityScore(tip) < dag.finalityScore(dag.finalityPoint)+2 {
		return
	}
	current := tip.selectedParent
	for current.selectedParent != nil && dag.finalityScore(current.selectedParent) != dag.finalityScore(dag.finalityPoint) {
		current = current.selectedParent
	}
	dag.finalityPoint = current
}

// FinalityPointHash returns the hash of the current finality point,
// or the zero hash before genesis is connected.
func (dag *BlockDAG) FinalityPointHash() types.Hash {
	dag.mtx.RLock()
	defer dag.mtx.RUnlock()
	if dag.finalityPoint == nil {
		return types.ZeroHash
	}
	return dag.finalityPoint.hash
}
