// Package artifact defines the boundary to the IPFS-style artifact
// pinning collaborator (spec.md §4.C17, §6): large model weights and
// training data referenced by on-chain transactions are pinned and
// fetched through this interface rather than stored in the DAG
// itself.
package artifact

import (
	"context"
	"encoding/hex"

	"github.com/pkg/errors"

	"github.com/lattice-network/lattice/types"
)

// Pinner pins opaque data and returns a content identifier, or
// fetches previously pinned data back by that identifier.
type Pinner interface {
	Pin(ctx context.Context, data []byte) (cid string, err error)
	Get(ctx context.Context, cid string) ([]byte, error)
}

// MemPinner is an in-process, non-persistent Pinner for devnet/test
// wiring: content identifiers are the hex-encoded Keccak-256 of the
// pinned bytes, and data lives only in memory.
type MemPinner struct {
	store map[string][]byte
}

// NewMemPinner returns an empty MemPinner.
func NewMemPinner() *MemPinner {
	return &MemPinner{store: make(map[string][]byte)}
}

func (p *MemPinner) Pin(_ context.Context, data []byte) (string, error) {
	digest := types.Keccak256(data)
	cid := hex.EncodeToString(digest[:])
	p.store[cid] = append([]byte(nil), data...)
	return cid, nil
}

func (p *MemPinner) Get(_ context.Context, cid string) ([]byte, error) {
	data, ok := p.store[cid]
	if !ok {
		return nil, errNotPinned
	}
	return append([]byte(nil), data...), nil
}

var errNotPinned = errors.New("artifact: cid not pinned")
