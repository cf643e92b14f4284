// Package vm defines the boundary between the executor and the
// contract virtual machine. Opcode semantics, gas metering within a
// call, and bytecode interpretation are an explicit non-goal of this
// module (spec.md §1) — the VM itself is an injected collaborator,
// grounded on original_source/citrate's EVMIntegration.execute split
// (state access passed in via closures, a single opaque
// execute-and-return-gas-used call out).
package vm

import "github.com/lattice-network/lattice/types"

// CallContext carries everything a Machine needs to execute one call
// or contract-creation, without exposing the caller's internal state
// representation.
type CallContext struct {
	Code          []byte
	Input         []byte
	Caller        types.Address
	ContractAddr  types.Address
	Value         []byte // big-endian minimal encoding of the transferred value
	GasLimit      uint64
	BlockNumber   uint64
	BlockTimestamp int64
	BlockHash     types.Hash
}

// Result is a call's black-box outcome (spec.md §4.C12 point 4: "VM
// returns (output, gas_used, status)").
type Result struct {
	Output  []byte
	GasUsed uint64
	Status  bool
	Revert  string // non-empty when Status is false and execution reverted cleanly
}

// Machine executes contract code. Production implementations live
// outside this module; devnet/test code uses a deterministic stub
// (see NoopMachine).
type Machine interface {
	Call(ctx CallContext) (Result, error)
	Deploy(ctx CallContext) (Result, error)
}

// NoopMachine is a deterministic stand-in for a real VM: every call
// and deploy succeeds and consumes all of GasLimit; a call returns its
// Input unchanged as output, a deploy its Code. It exists so the executor and its tests
// can run without a real VM wired in (devnet mode, per spec.md §4.C17
// adapter pattern).
type NoopMachine struct{}

func (NoopMachine) Call(ctx CallContext) (Result, error) {
	return Result{Output: ctx.Input, GasUsed: ctx.GasLimit, Status: true}, nil
}

func (NoopMachine) Deploy(ctx CallContext) (Result, error) {
	return Result{Output: ctx.Code, GasUsed: ctx.GasLimit, Status: true}, nil
}
