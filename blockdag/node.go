package blockdag

import (
	"math/big"

	"github.com/lattice-network/lattice/types"
)

// blockNode is the in-memory, DAG-local view of a block: its header
// plus pointers to its parents and the bookkeeping GHOSTDAG needs
// (blue set, blue anticone sizes, blue score). It mirrors the
// teacher's blockNode, generalized from a single selected-parent-chain
// blue score to the account-model header fields.
type blockNode struct {
	hash      types.Hash
	header    *types.BlockHeader
	timestamp int64
	height    uint64

	parents        nodeSet
	selectedParent *blockNode

	blues              []*blockNode
	reds               []*blockNode
	bluesAnticoneSizes map[types.Hash]uint32
	blueScore          uint64
	blueWork           *big.Int
}

// newBlockNode creates a blockNode for header, wiring it to the
// already-known parent nodes.
func newBlockNode(header *types.BlockHeader, parents nodeSet) *blockNode {
	n := &blockNode{
		header:             header,
		parents:            parents,
		bluesAnticoneSizes: make(map[types.Hash]uint32),
		blueWork:           new(big.Int),
	}
	if header != nil {
		n.hash = header.BlockHash
		n.timestamp = header.Timestamp
		n.height = header.Height
	}
	return n
}

func (n *blockNode) isGenesis() bool {
	return len(n.parents) == 0
}

// less is the ascending total order over blocks: lower blue work sorts
// first, ties broken by blue score, ties broken by the numerically
// smaller hash (spec.md §4.C5 "maximum (blue_work, blue_score,
// block_hash)"). A block is "bluer" than another when it sorts LATER
// under this order, so bluest() and the down-heap both look for the
// maximum, while the up-heap (selectedParentAnticone's processing
// order) looks for the minimum. Mirrors the teacher's
// ghostdagmanager/compare.go Less, which compares BlueWork().Cmp(...)
// before falling back to hash.
func (n *blockNode) less(other *blockNode) bool {
	if cmp := n.blueWork.Cmp(other.blueWork); cmp != 0 {
		return cmp < 0
	}
	if n.blueScore != other.blueScore {
		return n.blueScore < other.blueScore
	}
	return n.hash.Less(other.hash)
}

// nodeSet is a set of blockNodes keyed by hash, used for parent sets,
// tip sets, and anticone/past membership tests.
type nodeSet map[types.Hash]*blockNode

func newNodeSet(nodes ...*blockNode) nodeSet {
	s := make(nodeSet, len(nodes))
	for _, n := range nodes {
		s[n.hash] = n
	}
	return s
}

func (s nodeSet) add(n *blockNode)      { s[n.hash] = n }
func (s nodeSet) remove(n *blockNode)   { delete(s, n.hash) }
func (s nodeSet) contains(n *blockNode) bool {
	_, ok := s[n.hash]
	return ok
}

func (s nodeSet) clone() nodeSet {
	c := make(nodeSet, len(s))
	for k, v := range s {
		c[k] = v
	}
	return c
}

func (s nodeSet) slice() []*blockNode {
	out := make([]*blockNode, 0, len(s))
	for _, n := range s {
		out = append(out, n)
	}
	return out
}

// bluest returns the bluest node in the set, i.e. the one that would
// be chosen as selected parent (spec.md §4.C5).
func (s nodeSet) bluest() *blockNode {
	var best *blockNode
	for _, n := range s {
		if best == nil || best.less(n) {
			best = n
		}
	}
	return best
}
