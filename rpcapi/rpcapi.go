// Package rpcapi defines the boundary to the JSON-RPC/WebSocket
// collaborator (spec.md §4.C17, §6): the eth_*/lattice_* surface
// itself is out of scope for this module; only the lifecycle
// interface the node's top-level wiring starts and stops is defined
// here.
package rpcapi

import "context"

// Server is an RPC transport the node starts at boot and stops at
// shutdown.
type Server interface {
	Start(ctx context.Context) error
	Stop() error
}
