// Package state implements the account model's accounts/code/storage
// bookkeeping: a full account set, diff-based speculative overlays
// for per-block and per-tx snapshots, and the state root computation
// (spec.md §4.C8).
package state

import (
	"sort"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/lattice-network/lattice/types"
)

// Store is the persistence boundary the full account set reads
// through on a cache miss and writes through on commit (implemented
// by package store, spec.md §4.C13).
type Store interface {
	GetAccount(addr types.Address) (*types.AccountState, bool, error)
	PutAccount(addr types.Address, account *types.AccountState) error
}

// Set is anything that can answer "what is this address's account",
// satisfied by both FullSet and DiffSet so callers (the executor, the
// mempool's nonce checks) don't need to know which they were handed.
type Set interface {
	Get(addr types.Address) (*types.AccountState, error)
}

// cacheStats are the C18 metrics counters for the account cache: hit
// and miss totals, exposed via Stats() with no exporter (telemetry
// export is an explicit non-goal).
type cacheStats struct {
	hits   atomic.Uint64
	misses atomic.Uint64
}

// CacheStats is a point-in-time snapshot of cacheStats.
type CacheStats struct {
	Hits   uint64
	Misses uint64
}

// FullSet is the authoritative account set: an LRU cache in front of
// Store (adapted from the teacher's FullUTXOSet, which wraps a full
// UTXO collection the same way).
type FullSet struct {
	store Store
	cache *lru.Cache[types.Address, *types.AccountState]
	stats cacheStats
}

// NewFullSet creates a FullSet backed by store with an LRU cache of
// cacheSize entries.
func NewFullSet(store Store, cacheSize int) (*FullSet, error) {
	cache, err := lru.New[types.Address, *types.AccountState](cacheSize)
	if err != nil {
		return nil, err
	}
	return &FullSet{store: store, cache: cache}, nil
}

// Get returns addr's account, falling back to the zero account if it
// has never been touched (spec.md §3 AccountState - lazy creation).
func (s *FullSet) Get(addr types.Address) (*types.AccountState, error) {
	if account, ok := s.cache.Get(addr); ok {
		s.stats.hits.Add(1)
		return account, nil
	}
	s.stats.misses.Add(1)
	account, found, err := s.store.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	if !found {
		account = types.NewAccountState()
	}
	s.cache.Add(addr, account)
	return account, nil
}

// Put writes addr's account through the cache and into the store.
func (s *FullSet) Put(addr types.Address, account *types.AccountState) error {
	s.cache.Add(addr, account)
	return s.store.PutAccount(addr, account)
}

// batchStore is satisfied by package store's Store, whose PutAccounts
// writes a whole map atomically. FullSet degrades to one PutAccount
// per entry when the underlying Store doesn't support it (e.g. a test
// double), same end state, no atomicity guarantee.
type batchStore interface {
	PutAccounts(accounts map[types.Address]*types.AccountState) error
}

// PutAll writes every account in accounts through the cache, using
// the store's atomic batch write when available - the per-block
// commit path that flattens a DiffSet's melded accounts in one shot
// (spec.md §4.C13 "atomic per-block batch writes").
func (s *FullSet) PutAll(accounts map[types.Address]*types.AccountState) error {
	if batch, ok := s.store.(batchStore); ok {
		if err := batch.PutAccounts(accounts); err != nil {
			return err
		}
	} else {
		for addr, account := range accounts {
			if err := s.store.PutAccount(addr, account); err != nil {
				return err
			}
		}
	}
	for addr, account := range accounts {
		s.cache.Add(addr, account)
	}
	return nil
}

// Stats returns a snapshot of the cache hit/miss counters.
func (s *FullSet) Stats() CacheStats {
	return CacheStats{Hits: s.stats.hits.Load(), Misses: s.stats.misses.Load()}
}

// Diff is a set of modified accounts layered over a base Set, the
// speculative overlay a block or a single transaction writes into
// before it is either melded into the base or discarded (adapted from
// the teacher's UTXODiff).
type Diff struct {
	modified map[types.Address]*types.AccountState
}

// NewDiff returns an empty diff.
func NewDiff() *Diff {
	return &Diff{modified: make(map[types.Address]*types.AccountState)}
}

func (d *Diff) clone() *Diff {
	c := NewDiff()
	for addr, account := range d.modified {
		c.modified[addr] = account.Clone()
	}
	return c
}

// DiffSet is a Set backed by a base Set plus a Diff of accounts
// overridden since the base was snapshotted. Reorg undo and per-tx
// revert are both "discard the DiffSet and keep the base" - O(1),
// the same property the teacher's DiffUTXOSet gives UTXO rollback.
type DiffSet struct {
	base Set
	diff *Diff
}

// NewDiffSet layers a fresh empty diff over base.
func NewDiffSet(base Set) *DiffSet {
	return &DiffSet{base: base, diff: NewDiff()}
}

// Get returns the overridden account if the diff has touched addr,
// otherwise falls through to the base set.
func (d *DiffSet) Get(addr types.Address) (*types.AccountState, error) {
	if account, ok := d.diff.modified[addr]; ok {
		return account, nil
	}
	return d.base.Get(addr)
}

// Set records account as addr's new value in this diff, without
// touching the base.
func (d *DiffSet) Set(addr types.Address, account *types.AccountState) {
	d.diff.modified[addr] = account
}

// Clone returns a DiffSet sharing the same base but with an
// independently-mutable copy of the diff - the per-tx snapshot the
// conflict scheduler takes before speculatively applying a
// transaction (spec.md §4.C11).
func (d *DiffSet) Clone() *DiffSet {
	return &DiffSet{base: d.base, diff: d.diff.clone()}
}

// MeldToBase writes every modified account in the diff through to a
// FullSet base, flattening the speculative overlay into durable
// state. It is an error to call this on a DiffSet whose base is
// itself a DiffSet; callers chain full-set commits, not diff-on-diff
// melds.
func (d *DiffSet) MeldToBase() error {
	full, ok := d.base.(*FullSet)
	if !ok {
		return errNotFullSetBase
	}
	if err := full.PutAll(d.diff.modified); err != nil {
		return err
	}
	d.diff = NewDiff()
	return nil
}

// ModifiedAddresses returns the addresses touched by this diff, in
// deterministic order - used by the executor to compute each
// transaction's write set (spec.md §4.C11 access sets).
func (d *DiffSet) ModifiedAddresses() []types.Address {
	out := make([]types.Address, 0, len(d.diff.modified))
	for addr := range d.diff.modified {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool { return lessAddress(out[i], out[j]) })
	return out
}

func lessAddress(a, b types.Address) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
