package blockdag

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lattice-network/lattice/types"
)

func TestNodeSetBluestPrefersHigherScore(t *testing.T) {
	low := heapTestNode(1, types.Keccak256([]byte("a")))
	high := heapTestNode(5, types.Keccak256([]byte("b")))
	set := newNodeSet(low, high)
	require.Same(t, high, set.bluest())
}

func TestNodeSetBluestTieBreaksByHash(t *testing.T) {
	small := heapTestNode(1, types.ZeroHash)
	big := heapTestNode(1, types.Keccak256([]byte("z")))
	set := newNodeSet(small, big)
	require.Same(t, big, set.bluest())
}
