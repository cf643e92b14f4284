package types

import "math/big"

// ModelId identifies an AI model registered on-chain (spec.md
// AccountState.model_permissions; SPEC_FULL.md §3 expansion). The
// model registry/marketplace itself lives outside this module (an MCP
// service collaborator); only the identifier and the permission
// bookkeeping it drives are part of the core.
type ModelId Hash

func (m ModelId) String() string { return Hash(m).String() }

// AccountState is the per-address account record (spec.md §3). The
// zero value is the default account a lazily-created address starts
// from.
type AccountState struct {
	Nonce           uint64
	Balance         *big.Int
	CodeHash        Hash
	StorageRoot     Hash
	ModelPermissions map[ModelId]struct{}
}

// NewAccountState returns the zero account: zero nonce, zero balance,
// no code, empty storage root, no model permissions.
func NewAccountState() *AccountState {
	return &AccountState{
		Balance:          new(big.Int),
		ModelPermissions: make(map[ModelId]struct{}),
	}
}

// Clone returns a deep copy, used when snapshotting state for reorg
// undo and per-tx revert.
func (a *AccountState) Clone() *AccountState {
	clone := &AccountState{
		Nonce:            a.Nonce,
		Balance:          new(big.Int).Set(a.Balance),
		CodeHash:         a.CodeHash,
		StorageRoot:      a.StorageRoot,
		ModelPermissions: make(map[ModelId]struct{}, len(a.ModelPermissions)),
	}
	for id := range a.ModelPermissions {
		clone.ModelPermissions[id] = struct{}{}
	}
	return clone
}

// HasCode reports whether this account is a contract.
func (a *AccountState) HasCode() bool { return !a.CodeHash.IsZero() }

// Log is a single event emitted by contract/VM execution (spec.md §3
// Receipt.logs).
type Log struct {
	Address Address
	Topics  []Hash
	Data    []byte
}

// Receipt records the outcome of applying one transaction (spec.md
// §3).
type Receipt struct {
	TxHash      Hash
	BlockHash   Hash
	BlockNumber uint64
	From        Address
	To          *Address
	GasUsed     uint64
	Status      bool
	Logs        []Log
	Output      []byte
}
