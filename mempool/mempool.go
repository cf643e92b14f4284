// Package mempool is the pending-transaction pool: a hash-indexed set
// of known transactions, kept ordered for block building by a global
// priority heap and, per sender, by nonce (spec.md §4.C9). Grounded on
// the pool/orphan split and lifecycle the teacher's
// domain/miningmanager/mempool package uses (addMempoolTransaction,
// expireOldTransactions, the fee-ordered-heap idiom), generalized from
// per-UTXO fee rate to the spec's class-weighted transaction priority.
package mempool

import (
	"container/heap"
	"math"
	"math/big"
	"sort"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/lattice-network/lattice/state"
	"github.com/lattice-network/lattice/types"
)

// ErrPoolFull is returned when the pool is at capacity and the
// incoming transaction's priority does not clear the replacement
// factor against the lowest-priority transaction already queued.
var ErrPoolFull = errors.New("mempool is full")

// ErrReplacementTooLow is returned when a transaction reuses a
// sender/nonce pair already in the pool without reaching the
// replacement factor, or when the pool config disallows replacement
// entirely.
var ErrReplacementTooLow = errors.New("replacement transaction does not exceed the required priority increase")

// ErrAlreadyKnown is returned for a transaction hash already present
// in the pool.
var ErrAlreadyKnown = errors.New("transaction already known to the mempool")

// ErrTooManyFromSender is returned when sender already has
// Config.MaxPerSender transactions queued.
var ErrTooManyFromSender = errors.New("sender has too many queued transactions")

// ErrGasPriceTooLow is returned when a transaction's gas price is
// below Config.MinGasPrice.
var ErrGasPriceTooLow = errors.New("gas price below mempool minimum")

// defaultReplacementFactor is the ratio a replacement's gas price must
// reach against the displaced transaction's (spec.md §4.C9
// replacement rule): a 10% bump.
const defaultReplacementFactor = 1.10

// Config bounds the pool's size, per-sender depth, admission floor,
// and transaction lifetime (spec.md §6 mempool.*).
type Config struct {
	MaxTransactions   int
	MaxPerSender      int
	MaxTxBytes        int
	MinGasPrice       uint64
	Expiry            time.Duration
	AllowReplacement  bool
	ReplacementFactor float64
}

// DefaultConfig mirrors the teacher's devnet-scale mempool defaults.
func DefaultConfig() Config {
	return Config{
		MaxTransactions:   10000,
		MaxPerSender:      64,
		MaxTxBytes:        128 * 1024,
		MinGasPrice:       0,
		Expiry:            30 * time.Minute,
		AllowReplacement:  true,
		ReplacementFactor: defaultReplacementFactor,
	}
}

func (c Config) replacementFactor() float64 {
	if c.ReplacementFactor <= 0 {
		return defaultReplacementFactor
	}
	return c.ReplacementFactor
}

type entry struct {
	tx       *types.Transaction
	addedAt  int64 // unix seconds; stamped by the caller, see Add.
	priority uint64
	index    int // heap index, maintained by container/heap
}

// poolStats are the C18 metrics counters for the pool: lifetime totals
// of accepted, rejected, evicted, and expired transactions, exposed
// via Stats() with no exporter (telemetry export is an explicit
// non-goal).
type poolStats struct {
	accepted atomic.Uint64
	rejected atomic.Uint64
	evicted  atomic.Uint64
	expired  atomic.Uint64
}

// Stats is a point-in-time snapshot of poolStats.
type Stats struct {
	Accepted uint64
	Rejected uint64
	Evicted  uint64
	Expired  uint64
}

// Pool is the mempool: a hash map for membership/lookup, a
// per-sender nonce-ordered view for block building order, and a
// global priority heap for eviction under memory pressure.
type Pool struct {
	cfg Config

	byHash   map[types.Hash]*entry
	bySender map[types.Address]map[uint64]*entry
	heap     priorityHeap
	stats    poolStats
}

// New creates an empty pool.
func New(cfg Config) *Pool {
	return &Pool{
		cfg:      cfg,
		byHash:   make(map[types.Hash]*entry),
		bySender: make(map[types.Address]map[uint64]*entry),
	}
}

// Stats returns a snapshot of the pool's lifetime counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Accepted: p.stats.accepted.Load(),
		Rejected: p.stats.rejected.Load(),
		Evicted:  p.stats.evicted.Load(),
		Expired:  p.stats.expired.Load(),
	}
}

// Add validates tx against accounts and, if accepted, inserts it into
// the pool at the given unix-second timestamp (threaded through
// explicitly since this module never calls time.Now()/Date() itself
// at the package level, keeping insertion order deterministic and
// testable). Validation follows spec.md §4.C9's admission rule:
// signature, balance ≥ value + gas_limit·gas_price, nonce ≥
// account.nonce, and encoded size within Config.MaxTxBytes.
func (p *Pool) Add(tx *types.Transaction, now int64, accounts state.Set) error {
	if _, exists := p.byHash[tx.Hash]; exists {
		p.stats.rejected.Add(1)
		return ErrAlreadyKnown
	}

	if err := p.validate(tx, accounts); err != nil {
		p.stats.rejected.Add(1)
		return err
	}

	sender := tx.From.Address()
	if p.bySender[sender] == nil {
		p.bySender[sender] = make(map[uint64]*entry)
	}

	newPriority := tx.Priority()
	if existing, ok := p.bySender[sender][tx.Nonce]; ok {
		if !p.cfg.AllowReplacement || !p.exceedsReplacementFactor(tx, existing.tx) {
			p.stats.rejected.Add(1)
			return ErrReplacementTooLow
		}
		p.removeEntry(existing)
	} else if p.cfg.MaxPerSender > 0 && len(p.bySender[sender]) >= p.cfg.MaxPerSender {
		p.stats.rejected.Add(1)
		return ErrTooManyFromSender
	}

	e := &entry{tx: tx, addedAt: now, priority: newPriority}
	if p.cfg.MaxTransactions > 0 && len(p.byHash) >= p.cfg.MaxTransactions {
		lowest := p.heap.peekLowest()
		if lowest == nil || !p.exceedsReplacementFactor(tx, lowest.tx) {
			p.stats.rejected.Add(1)
			return ErrPoolFull
		}
		p.removeEntry(lowest)
		p.stats.evicted.Add(1)
	}

	p.byHash[tx.Hash] = e
	p.bySender[sender][tx.Nonce] = e
	heap.Push(&p.heap, e)
	p.stats.accepted.Add(1)
	return nil
}

// validate checks tx against the admission rule, looking up the
// sender's current account via accounts (spec.md §4.C9).
func (p *Pool) validate(tx *types.Transaction, accounts state.Set) error {
	if p.cfg.MaxTxBytes > 0 {
		if size := len(tx.Marshal()); size > p.cfg.MaxTxBytes {
			return errTooLarge(size, p.cfg.MaxTxBytes)
		}
	}
	if !tx.VerifySignature() {
		return errInvalidSignature
	}
	if tx.GasPrice < p.cfg.MinGasPrice {
		return ErrGasPriceTooLow
	}

	sender, err := accounts.Get(tx.From.Address())
	if err != nil {
		return err
	}
	if tx.Nonce < sender.Nonce {
		return errInvalidNonce
	}
	value := tx.Value
	if value == nil {
		value = new(big.Int)
	}
	need := new(big.Int).Add(value, new(big.Int).Mul(
		new(big.Int).SetUint64(tx.GasLimit), new(big.Int).SetUint64(tx.GasPrice)))
	if sender.Balance.Cmp(need) < 0 {
		return errInsufficientBalance(need, sender.Balance)
	}
	return nil
}

// exceedsReplacementFactor reports whether candidate clears incumbent
// by at least the pool's configured replacement factor (spec.md
// §4.C9): candidate's priority must reach incumbent's class-weight
// term plus incumbent's gas price scaled by the factor. Between two
// transactions of the same class this is new.gas_price >=
// old.gas_price*factor, with the threshold itself accepted.
func (p *Pool) exceedsReplacementFactor(candidate, incumbent *types.Transaction) bool {
	percent := big.NewInt(int64(math.Round(p.cfg.replacementFactor() * 100)))
	need := new(big.Int).Mul(new(big.Int).SetUint64(incumbent.GasPrice), percent)
	need.Add(need, new(big.Int).Mul(new(big.Int).SetUint64(incumbent.ResolvedType().ClassWeight()*1_000_000), big.NewInt(100)))
	have := new(big.Int).Mul(new(big.Int).SetUint64(candidate.Priority()), big.NewInt(100))
	return have.Cmp(need) >= 0
}

func (p *Pool) removeEntry(e *entry) {
	delete(p.byHash, e.tx.Hash)
	sender := e.tx.From.Address()
	delete(p.bySender[sender], e.tx.Nonce)
	if len(p.bySender[sender]) == 0 {
		delete(p.bySender, sender)
	}
	if e.index >= 0 && e.index < len(p.heap) && p.heap[e.index] == e {
		heap.Remove(&p.heap, e.index)
	}
}

// Remove evicts the transaction with the given hash, if present.
func (p *Pool) Remove(hash types.Hash) {
	if e, ok := p.byHash[hash]; ok {
		p.removeEntry(e)
	}
}

// Has reports whether hash is already in the pool.
func (p *Pool) Has(hash types.Hash) bool {
	_, ok := p.byHash[hash]
	return ok
}

// Len returns the number of pooled transactions.
func (p *Pool) Len() int { return len(p.byHash) }

// ExpireOlderThan removes every transaction added before cutoff
// (adapted from the teacher's expireOldTransactions sweep).
func (p *Pool) ExpireOlderThan(cutoff int64) []types.Hash {
	var expired []types.Hash
	for hash, e := range p.byHash {
		if e.addedAt < cutoff {
			expired = append(expired, hash)
		}
	}
	for _, hash := range expired {
		p.Remove(hash)
	}
	p.stats.expired.Add(uint64(len(expired)))
	return expired
}

// SenderReadyTransactions returns sender's queued transactions in
// strict ascending-nonce order, stopping at the first gap - the
// prefix a block builder can safely include without violating nonce
// ordering (spec.md §4.C9).
func (p *Pool) SenderReadyTransactions(sender types.Address, startNonce uint64) []*types.Transaction {
	byNonce := p.bySender[sender]
	if len(byNonce) == 0 {
		return nil
	}
	var out []*types.Transaction
	for nonce := startNonce; ; nonce++ {
		e, ok := byNonce[nonce]
		if !ok {
			break
		}
		out = append(out, e.tx)
	}
	return out
}

// TopByPriority returns every pooled transaction ordered by descending
// priority (class_weight*1e6 + gas_price, spec.md §4.C9), the order
// the block builder pulls from before applying per-sender nonce
// gating.
func (p *Pool) TopByPriority() []*types.Transaction {
	entries := make([]*entry, 0, len(p.byHash))
	for _, e := range p.byHash {
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].priority > entries[j].priority })
	out := make([]*types.Transaction, len(entries))
	for i, e := range entries {
		out[i] = e.tx
	}
	return out
}

// priorityHeap is a min-heap over entries by priority, used to find
// (and evict) the lowest-priority transaction when the pool is full.
type priorityHeap []*entry

func (h priorityHeap) Len() int            { return len(h) }
func (h priorityHeap) Less(i, j int) bool  { return h[i].priority < h[j].priority }
func (h priorityHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *priorityHeap) Push(x interface{}) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *priorityHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	item.index = -1
	*h = old[:n-1]
	return item
}

func (h priorityHeap) peekLowest() *entry {
	if len(h) == 0 {
		return nil
	}
	return h[0]
}
