package blockdag

import "sync"

// virtualState is the DAG's virtual block: a node whose parents are
// the current tips, used only to track the selected-parent chain and
// detect reorgs (adapted from the teacher's VirtualBlock in
// virtualblock.go - the UTXO set it also carried there is replaced by
// the account state snapshot tracked in package state).
type virtualState struct {
	mtx sync.Mutex
	blockNode
	selectedPathSet nodeSet
}

func newVirtualState(tips nodeSet) *virtualState {
	v := &virtualState{selectedPathSet: newNodeSet()}
	v.setTips(tips)
	return v
}

// setTips replaces the virtual tip set, recomputing the selected
// parent and maintaining selectedPathSet, the set of blocks on the
// current selected-parent chain. Returns the set of blocks that left
// the chain (the reorg's "detached" side) and the set that joined it.
func (v *virtualState) setTips(tips nodeSet) (detached, attached []*blockNode) {
	oldSelectedParent := v.selectedParent
	v.blockNode = *newBlockNode(nil, tips)
	if len(tips) > 0 {
		v.selectedParent = tips.bluest()
	}

	var intersection *blockNode
	for node := v.selectedParent; intersection == nil && node != nil; node = node.selectedParent {
		if oldSelectedParent != nil && v.selectedPathSet.contains(node) {
			intersection = node
		} else {
			v.selectedPathSet.add(node)
			attached = append(attached, node)
		}
		if node.isGenesis() {
			break
		}
	}

	if intersection != nil {
		for node := oldSelectedParent; node != nil && node.hash != intersection.hash; node = node.selectedParent {
			v.selectedPathSet.remove(node)
			detached = append(detached, node)
		}
	}
	return detached, attached
}

// addTip folds newTip into the tip set: newTip's parents are no
// longer tips (they have a child), and newTip itself is added.
func (v *virtualState) addTip(newTip *blockNode) (detached, attached []*blockNode) {
	updated := v.tips().clone()
	for _, parent := range newTip.parents {
		updated.remove(parent)
	}
	updated.add(newTip)
	return v.setTips(updated)
}

func (v *virtualState) tips() nodeSet { return v.parents }

func (v *virtualState) selectedTip() *blockNode { return v.selectedParent }

// isInSelectedChain reports whether node is on the current
// selected-parent chain.
func (v *virtualState) isInSelectedChain(node *blockNode) bool {
	return v.selectedPathSet.contains(node)
}
