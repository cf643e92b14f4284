// Package inference defines the boundary to the AI model
// registry/inference/training collaborator (spec.md §4.C12 point 4,
// §6). Model registry pricing, provider selection, and compute
// scheduling live outside this module; only the dispatch interface
// the executor calls through is in scope here, grounded on
// node/src/adapters.rs's adapter-bridge pattern.
package inference

import (
	"context"

	"github.com/lattice-network/lattice/types"
)

// Dispatcher routes an AI-typed transaction (model deploy, update,
// inference request, training job, LoRA adapter) to the external
// model-registry/inference service and returns its outcome in the
// same shape a VM call would.
type Dispatcher interface {
	Dispatch(ctx context.Context, tx *types.Transaction) (output []byte, gasUsed uint64, err error)
}

// NoopDispatcher is a deterministic stand-in used in devnet/test
// wiring where no real model-registry service is configured: it
// consumes the transaction's full gas limit and returns its input
// data unchanged.
type NoopDispatcher struct{}

func (NoopDispatcher) Dispatch(_ context.Context, tx *types.Transaction) ([]byte, uint64, error) {
	return tx.Data, tx.GasLimit, nil
}
