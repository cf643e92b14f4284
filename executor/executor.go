// Package executor applies transactions against account state: it
// charges gas, dispatches by transaction type (value transfer,
// contract call, contract deploy, AI-typed), and emits receipts
// (spec.md §4.C12). Grounded on
// original_source/citrate/core/execution/src/lib.rs's module split
// (types/state/vm/tensor) and the teacher's
// domain/consensus/processes/consensusstatemanager/
// verify_and_build_utxo.go apply/rollback shape, generalized from
// UTXO application to account application.
package executor

import (
	"context"
	"encoding/binary"
	"math/big"

	"github.com/lattice-network/lattice/inference"
	"github.com/lattice-network/lattice/state"
	"github.com/lattice-network/lattice/types"
	"github.com/lattice-network/lattice/vm"
)

// CodeStore persists deployed contract bytecode keyed by its
// Keccak-256 hash, satisfied by package store's Store.
type CodeStore interface {
	PutCode(codeHash types.Hash, code []byte) error
	GetCode(codeHash types.Hash) ([]byte, bool, error)
}

// Executor applies transactions using an injected VM for contract
// calls/deploys and an injected dispatcher for AI-typed transactions
// — both external collaborators per spec.md §1/§4.C17.
type Executor struct {
	Machine    vm.Machine
	Dispatcher inference.Dispatcher
	Code       CodeStore
}

// New creates an Executor. Pass vm.NoopMachine{} / inference.NoopDispatcher{}
// for devnet/test wiring with no real VM or model-registry service.
// code may be nil, in which case deployed bytecode is hashed but not
// separately persisted (tests exercising only the account-state side
// of deployment).
func New(machine vm.Machine, dispatcher inference.Dispatcher, code CodeStore) *Executor {
	return &Executor{Machine: machine, Dispatcher: dispatcher, Code: code}
}

// Execute applies tx against set, following spec.md §4.C12's six
// steps, and returns the resulting receipt. Gas-metering failures
// (insufficient balance, bad nonce, out-of-gas on the intrinsic
// charge) reject the transaction outright with no state change. A
// dispatch that ends with status false is recorded as a
// reverted-but-included receipt (gas still consumed); an error from
// the VM, the code store or state access is returned with no receipt,
// and the sender's gas/nonce charge already written to set stays.
func (e *Executor) Execute(ctx context.Context, set *state.DiffSet, tx *types.Transaction, blockHash types.Hash, blockNumber uint64) (*types.Receipt, error) {
	from := tx.From.Address()
	sender, err := set.Get(from)
	if err != nil {
		return nil, err
	}

	if sender.Nonce != tx.Nonce {
		return nil, ErrInvalidNonce
	}

	intrinsic := IntrinsicGas(tx.Data)
	if tx.GasLimit < intrinsic {
		return nil, ErrOutOfGas
	}

	gasCost := new(big.Int).Mul(new(big.Int).SetUint64(tx.GasLimit), new(big.Int).SetUint64(tx.GasPrice))
	upfront := new(big.Int).Add(tx.Value, gasCost)
	if sender.Balance.Cmp(upfront) < 0 {
		return nil, ErrInsufficientBalance
	}

	senderAfter := sender.Clone()
	senderAfter.Nonce++
	senderAfter.Balance.Sub(senderAfter.Balance, gasCost)
	set.Set(from, senderAfter)

	var to *types.Address
	if tx.To != nil {
		addr := tx.To.Address()
		to = &addr
	}

	receipt := &types.Receipt{
		TxHash:      tx.Hash,
		BlockHash:   blockHash,
		BlockNumber: blockNumber,
		From:        from,
		To:          to,
	}

	remainingGas := tx.GasLimit - intrinsic
	call := state.NewDiffSet(set)

	status, gasUsed, output, logs, err := e.dispatch(ctx, call, tx, from, to, remainingGas)
	if err != nil {
		return nil, err
	}

	receipt.Status = status
	receipt.GasUsed = intrinsic + gasUsed
	receipt.Output = output
	receipt.Logs = logs

	if status {
		for _, addr := range call.ModifiedAddresses() {
			account, getErr := call.Get(addr)
			if getErr != nil {
				return nil, getErr
			}
			set.Set(addr, account)
		}
	}

	// Refund unused gas*price — the upfront charge above covers the
	// full GasLimit, not just what was actually consumed.
	refundAmount := new(big.Int).Sub(new(big.Int).SetUint64(tx.GasLimit), new(big.Int).SetUint64(receipt.GasUsed))
	if refundAmount.Sign() > 0 {
		refund := new(big.Int).Mul(refundAmount, new(big.Int).SetUint64(tx.GasPrice))
		payer, getErr := set.Get(from)
		if getErr != nil {
			return nil, getErr
		}
		payerAfter := payer.Clone()
		payerAfter.Balance.Add(payerAfter.Balance, refund)
		set.Set(from, payerAfter)
	}

	return receipt, nil
}

// dispatch routes tx by its resolved type (spec.md §4.C12 point 4)
// against the nested call diff, so a revert can be discarded without
// touching the caller's committed sender/nonce/gas changes.
func (e *Executor) dispatch(ctx context.Context, call *state.DiffSet, tx *types.Transaction, from types.Address, to *types.Address, gasLimit uint64) (status bool, gasUsed uint64, output []byte, logs []types.Log, err error) {
	resolvedType := tx.ResolvedType()

	if resolvedType != types.TxStandard {
		out, used, dispatchErr := e.Dispatcher.Dispatch(ctx, tx)
		if dispatchErr != nil {
			return false, gasLimit, nil, nil, nil
		}
		if used > gasLimit {
			used = gasLimit
		}
		return true, used, out, nil, nil
	}

	if to == nil {
		return e.deploy(call, tx, from, gasLimit)
	}

	recipient, getErr := call.Get(*to)
	if getErr != nil {
		return false, 0, nil, nil, getErr
	}
	if recipient.HasCode() {
		return e.callContract(call, tx, from, *to, recipient, gasLimit)
	}

	// Plain value transfer.
	senderNow, getErr := call.Get(from)
	if getErr != nil {
		return false, 0, nil, nil, getErr
	}
	if tx.Value != nil && tx.Value.Sign() > 0 {
		senderAfter := senderNow.Clone()
		if senderAfter.Balance.Cmp(tx.Value) < 0 {
			return false, 0, nil, nil, nil
		}
		senderAfter.Balance.Sub(senderAfter.Balance, tx.Value)
		call.Set(from, senderAfter)

		recipientAfter := recipient.Clone()
		recipientAfter.Balance.Add(recipientAfter.Balance, tx.Value)
		call.Set(*to, recipientAfter)
	}
	return true, 0, nil, nil, nil
}

func (e *Executor) callContract(call *state.DiffSet, tx *types.Transaction, from, to types.Address, recipient *types.AccountState, gasLimit uint64) (bool, uint64, []byte, []types.Log, error) {
	valueBytes := []byte(nil)
	if tx.Value != nil {
		valueBytes = tx.Value.Bytes()
	}
	code := recipient.CodeHash[:]
	if e.Code != nil {
		if stored, ok, getErr := e.Code.GetCode(recipient.CodeHash); getErr == nil && ok {
			code = stored
		}
	}
	result, err := e.Machine.Call(vm.CallContext{
		Code:         code,
		Input:        tx.Data,
		Caller:       from,
		ContractAddr: to,
		Value:        valueBytes,
		GasLimit:     gasLimit,
	})
	if err != nil {
		return false, 0, nil, nil, err
	}
	if result.Status && tx.Value != nil && tx.Value.Sign() > 0 {
		sender, getErr := call.Get(from)
		if getErr != nil {
			return false, 0, nil, nil, getErr
		}
		senderAfter := sender.Clone()
		senderAfter.Balance.Sub(senderAfter.Balance, tx.Value)
		call.Set(from, senderAfter)

		recipientAfter := recipient.Clone()
		recipientAfter.Balance.Add(recipientAfter.Balance, tx.Value)
		call.Set(to, recipientAfter)
	}
	return result.Status, result.GasUsed, result.Output, nil, nil
}

// deploy computes the new contract address as the last 20 bytes of
// Keccak-256(from ‖ nonce) (spec.md §4.C12 point 4), runs the
// initializer through the VM, and writes the resulting code hash.
func (e *Executor) deploy(call *state.DiffSet, tx *types.Transaction, from types.Address, gasLimit uint64) (bool, uint64, []byte, []types.Log, error) {
	var nonceBuf [8]byte
	binary.LittleEndian.PutUint64(nonceBuf[:], tx.Nonce)
	digest := types.Keccak256(from[:], nonceBuf[:])
	var contractAddr types.Address
	copy(contractAddr[:], digest[12:])

	result, err := e.Machine.Deploy(vm.CallContext{
		Code:         tx.Data,
		ContractAddr: contractAddr,
		Caller:       from,
		GasLimit:     gasLimit,
	})
	if err != nil {
		return false, 0, nil, nil, err
	}
	if result.Status {
		codeHash := types.Keccak256(tx.Data)
		contract, getErr := call.Get(contractAddr)
		if getErr != nil {
			return false, 0, nil, nil, getErr
		}
		contractAfter := contract.Clone()
		contractAfter.CodeHash = codeHash
		call.Set(contractAddr, contractAfter)

		if e.Code != nil {
			if putErr := e.Code.PutCode(codeHash, tx.Data); putErr != nil {
				return false, 0, nil, nil, putErr
			}
		}
	}
	return result.Status, result.GasUsed, result.Output, nil, nil
}
