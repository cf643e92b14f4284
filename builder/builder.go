// Package builder assembles new block candidates: it pulls ready
// transactions from the mempool in priority order, dry-runs execution
// against a snapshot of the selected parent's account state, and
// signs the resulting header (spec.md §4.C10). Grounded on the
// teacher's domain/mining/mining.go "template then solve" split and
// the old-generation mining/mining.go's manager-wiring idiom.
package builder

import (
	"context"

	"github.com/pkg/errors"

	"github.com/lattice-network/lattice/executor"
	"github.com/lattice-network/lattice/state"
	"github.com/lattice-network/lattice/types"
)

// Mempool is the subset of mempool.Pool the builder depends on.
type Mempool interface {
	TopByPriority() []*types.Transaction
	SenderReadyTransactions(sender types.Address, startNonce uint64) []*types.Transaction
}

// SelectedParent describes the tip the new block extends, the
// minimum a Builder needs from the DAG/chain selector.
type SelectedParent struct {
	Hash      types.Hash
	Height    uint64
	Timestamp int64
	// MedianTime is the median of the past-N selected-chain
	// timestamps, the floor the new block's timestamp must clear
	// (spec.md §4.C10 "timestamp monotonic and >= median-of-past-N").
	MedianTime int64
}

// Config bounds how much a single candidate block may include.
type Config struct {
	MaxTransactions int
	MaxGas          uint64
}

// DefaultConfig mirrors the teacher's devnet block-size defaults.
func DefaultConfig() Config {
	return Config{MaxTransactions: 2000, MaxGas: 30_000_000}
}

// Builder assembles block candidates against a mempool and a base
// account state.
type Builder struct {
	cfg     Config
	pool    Mempool
	baseSet state.Set
	exec    *executor.Executor
}

// New creates a Builder pulling from pool against baseSet, the
// account-state view at the selected parent. Transactions are dry-run
// executed through exec, the same Executor the node uses to apply
// connected blocks, so the header's state_root/receipt_root are
// guaranteed to match what replaying the block later would produce
// (spec.md §4.C10 step 3, testable property #6).
func New(cfg Config, pool Mempool, baseSet state.Set, exec *executor.Executor) *Builder {
	return &Builder{cfg: cfg, pool: pool, baseSet: baseSet, exec: exec}
}

// ErrTimestampTooEarly is returned when the caller-supplied timestamp
// does not clear the selected parent's median time.
var ErrTimestampTooEarly = errors.New("candidate timestamp does not exceed median time")

// Candidate is an assembled, signed block ready for GhostDag
// classification and broadcast.
type Candidate struct {
	Block   *types.Block
	Receipts []*types.Receipt
}

// Build pulls ready transactions, dry-run executes them against a
// diff over baseSet, and assembles + signs a header extending parent
// (spec.md §4.C10 steps 1-6). mergeParents are additional DAG parents
// beyond the selected parent, already chosen by the caller's tip
// selection (blockdag.selectParents).
func (b *Builder) Build(ctx context.Context, parent SelectedParent, mergeParents []types.Hash, now int64, proposerKey types.SigningKey) (*Candidate, error) {
	if now <= parent.MedianTime {
		return nil, ErrTimestampTooEarly
	}

	diff := state.NewDiffSet(b.baseSet)
	included, receipts, err := b.selectAndExecute(ctx, diff, parent.Hash, parent.Height+1)
	if err != nil {
		return nil, err
	}

	txRoot := types.ComputeTxRoot(included)
	receiptRoot := computeReceiptRoot(receipts)
	stateRoot := state.ComputeRoot(modifiedAccounts(diff))

	header := types.BlockHeader{
		Version:            1,
		SelectedParentHash: parent.Hash,
		MergeParentHashes:  mergeParents,
		Timestamp:          now,
		Height:             parent.Height + 1,
	}
	header.BlockHash = header.ComputeBlockHash()

	block := &types.Block{
		Header:       header,
		StateRoot:    stateRoot,
		TxRoot:       txRoot,
		ReceiptRoot:  receiptRoot,
		Transactions: included,
	}
	block.Header.ProposerPubKey = proposerKey.PublicKey()
	block.Signature = proposerKey.Sign(block.Header.SigningBytes())

	return &Candidate{Block: block, Receipts: receipts}, nil
}

// selectAndExecute pulls candidates from the mempool in priority
// order, respecting per-sender nonce contiguity against the diff's
// current view, and dry-run executes them through the same Executor
// that applies connected blocks (spec.md §4.C10 steps 2-3, §4.C12).
// A transaction that fails the nonce, intrinsic-gas or balance
// precondition is dropped and ends that sender's run (a later nonce
// could not be included either); any other execution error aborts the
// whole build.
func (b *Builder) selectAndExecute(ctx context.Context, diff *state.DiffSet, blockHash types.Hash, height uint64) ([]*types.Transaction, []*types.Receipt, error) {
	candidates := b.pool.TopByPriority()
	seenSender := make(map[types.Address]bool)

	var included []*types.Transaction
	var receipts []*types.Receipt
	var gasUsed uint64

	for _, tx := range candidates {
		if len(included) >= b.cfg.MaxTransactions {
			break
		}
		sender := tx.From.Address()
		if seenSender[sender] {
			// Already pulled this sender's contiguous run below;
			// skip duplicates from the flat priority scan.
			continue
		}
		seenSender[sender] = true

		account, err := diff.Get(sender)
		if err != nil {
			return nil, nil, err
		}
		ready := b.pool.SenderReadyTransactions(sender, account.Nonce)
		for _, readyTx := range ready {
			if len(included) >= b.cfg.MaxTransactions {
				break
			}
			if gasUsed+readyTx.GasLimit > b.cfg.MaxGas {
				break
			}
			receipt, err := b.exec.Execute(ctx, diff, readyTx, blockHash, height)
			if errors.Is(err, executor.ErrInsufficientBalance) || errors.Is(err, executor.ErrInvalidNonce) || errors.Is(err, executor.ErrOutOfGas) {
				break // nonce gap would follow; stop this sender's run
			}
			if err != nil {
				return nil, nil, err
			}
			included = append(included, readyTx)
			receipts = append(receipts, receipt)
			gasUsed += receipt.GasUsed
		}
	}

	return included, receipts, nil
}

func modifiedAccounts(diff *state.DiffSet) map[types.Address]*types.AccountState {
	out := make(map[types.Address]*types.AccountState)
	for _, addr := range diff.ModifiedAddresses() {
		account, _ := diff.Get(addr)
		out[addr] = account
	}
	return out
}

// computeReceiptRoot hashes receipts in inclusion order, the same
// flat-concatenation scheme ComputeTxRoot uses for tx_root.
func computeReceiptRoot(receipts []*types.Receipt) types.Hash {
	if len(receipts) == 0 {
		return types.Keccak256()
	}
	buf := make([]byte, 0, len(receipts)*types.HashSize)
	for _, r := range receipts {
		buf = append(buf, r.TxHash[:]...)
		var statusByte byte
		if r.Status {
			statusByte = 1
		}
		buf = append(buf, statusByte)
		var gasBuf [8]byte
		for i := 0; i < 8; i++ {
			gasBuf[i] = byte(r.GasUsed >> (8 * i))
		}
		buf = append(buf, gasBuf[:]...)
	}
	return types.Keccak256(buf)
}
