package blockdag

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lattice-network/lattice/types"
)

func heapTestNode(blueScore uint64, hash types.Hash) *blockNode {
	return &blockNode{hash: hash, blueScore: blueScore, blueWork: new(big.Int).SetUint64(blueScore)}
}

func TestBlockHeapPushPopLength(t *testing.T) {
	low := heapTestNode(0, types.ZeroHash)
	high := heapTestNode(100000, types.Keccak256([]byte("high")))
	lowSmallHash := heapTestNode(0, types.ZeroHash)
	lowBigHash := heapTestNode(0, types.Keccak256([]byte("big")))

	tests := []struct {
		name            string
		push            []*blockNode
		expectedLength  int
		expectedPopDown *blockNode
		expectedPopUp   *blockNode
	}{
		{name: "empty heap has length 0", push: nil, expectedLength: 0},
		{name: "single push, no pop", push: []*blockNode{low}, expectedLength: 1},
		{
			name:            "different blue scores, down pops the bluer one",
			push:            []*blockNode{high, low},
			expectedLength:  1,
			expectedPopDown: high,
			expectedPopUp:   low,
		},
		{
			name:            "equal blue score, tie-break by hash",
			push:            []*blockNode{lowBigHash, lowSmallHash},
			expectedLength:  1,
			expectedPopDown: lowBigHash,
			expectedPopUp:   lowSmallHash,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			down := newDownHeap()
			for _, n := range test.push {
				down.push(n)
			}
			var popped *blockNode
			if test.expectedPopDown != nil {
				popped = down.pop()
			}
			require.Equal(t, test.expectedLength, down.Len())
			require.Equal(t, test.expectedPopDown, popped)

			up := newUpHeap()
			for _, n := range test.push {
				up.push(n)
			}
			popped = nil
			if test.expectedPopUp != nil {
				popped = up.pop()
			}
			require.Equal(t, test.expectedLength, up.Len())
			require.Equal(t, test.expectedPopUp, popped)
		})
	}
}
