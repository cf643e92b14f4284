// Package p2p defines the boundary to the gossip/networking
// collaborator (spec.md §4.C17, §6). Peer discovery, transport, and
// sync protocol are out of scope for this module; only the interface
// the node's top-level wiring broadcasts through is defined here.
package p2p

import (
	"context"

	"github.com/lattice-network/lattice/types"
)

// Gossip broadcasts newly produced or newly accepted blocks and
// transactions to the network.
type Gossip interface {
	BroadcastBlock(ctx context.Context, b *types.Block) error
	BroadcastTx(ctx context.Context, tx *types.Transaction) error
}

// NoopGossip discards everything, for single-node devnet/test wiring.
type NoopGossip struct{}

func (NoopGossip) BroadcastBlock(context.Context, *types.Block) error       { return nil }
func (NoopGossip) BroadcastTx(context.Context, *types.Transaction) error { return nil }
