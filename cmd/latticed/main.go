// Command latticed is the node's entry point: init/devnet/keygen/run
// subcommands over go-flags command groups, matching the teacher's
// kaspawallet CLI layout (one config struct per subcommand, a shared
// set of network-independent flags) and kaspad.go's "wrapper struct
// with start/stop, package-level setup* helpers" wiring style
// (spec.md §4.C16).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	flags "github.com/jessevdk/go-flags"

	"github.com/lattice-network/lattice/blockdag"
	"github.com/lattice-network/lattice/builder"
	"github.com/lattice-network/lattice/config"
	"github.com/lattice-network/lattice/executor"
	"github.com/lattice-network/lattice/inference"
	"github.com/lattice-network/lattice/logger"
	"github.com/lattice-network/lattice/mempool"
	"github.com/lattice-network/lattice/p2p"
	"github.com/lattice-network/lattice/state"
	"github.com/lattice-network/lattice/store"
	"github.com/lattice-network/lattice/types"
	"github.com/lattice-network/lattice/vm"
)

const (
	initSubCmd   = "init"
	devnetSubCmd = "devnet"
	keygenSubCmd = "keygen"
	runSubCmd    = "run"
)

type sharedFlags struct {
	DataDir string `long:"data-dir" description:"data directory" default:"~/.lattice"`
}

type initConfig struct {
	ChainID uint64 `long:"chain-id" description:"chain identifier" default:"1"`
	sharedFlags
}

type devnetConfig struct {
	sharedFlags
}

type keygenConfig struct {
	sharedFlags
}

type runConfig struct {
	ConfigFile string `long:"config" description:"TOML config file"`
	Mine       bool   `long:"mine" description:"start the block-production loop"`
	sharedFlags
}

func main() {
	os.Exit(run())
}

func run() int {
	subCommand, parsedConfig, err := parseCommandLine()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	switch subCommand {
	case initSubCmd:
		cfg := parsedConfig.(*initConfig)
		if err := doInit(cfg.DataDir, cfg.ChainID); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return 0
	case devnetSubCmd:
		cfg := parsedConfig.(*devnetConfig)
		if err := doInit(cfg.DataDir, 1); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		if err := doRun(cfg.DataDir, "", true); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
		return 0
	case keygenSubCmd:
		cfg := parsedConfig.(*keygenConfig)
		if err := doKeygen(cfg.DataDir); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return 0
	case runSubCmd:
		cfg := parsedConfig.(*runConfig)
		if err := doRun(cfg.DataDir, cfg.ConfigFile, cfg.Mine); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
		return 0
	default:
		return 1
	}
}

// topLevelOptions holds flags valid before the subcommand name; latticed
// has none of its own, mirroring cmd/kaspawallet's bare config.NetworkFlags
// top level struct.
type topLevelOptions struct{}

func parseCommandLine() (subCommand string, parsedConfig interface{}, err error) {
	parser := flags.NewParser(&topLevelOptions{}, flags.PrintErrors|flags.HelpFlag)

	initConf := &initConfig{}
	if _, err := parser.AddCommand(initSubCmd, "Initialize a fresh genesis and config",
		"Writes a fresh genesis block and default config to --data-dir.", initConf); err != nil {
		return "", nil, err
	}

	devnetConf := &devnetConfig{}
	if _, err := parser.AddCommand(devnetSubCmd, "Initialize and run a local devnet",
		"Equivalent to init with a low-difficulty, fast-block devnet config, then run.", devnetConf); err != nil {
		return "", nil, err
	}

	keygenConf := &keygenConfig{}
	if _, err := parser.AddCommand(keygenSubCmd, "Generate a validator keypair",
		"Generates an Ed25519 keypair and writes it to --data-dir/validator.key.", keygenConf); err != nil {
		return "", nil, err
	}

	runConf := &runConfig{}
	if _, err := parser.AddCommand(runSubCmd, "Run the node",
		"Loads config, opens the block store, and starts the node.", runConf); err != nil {
		return "", nil, err
	}

	if _, err := parser.Parse(); err != nil {
		return "", nil, err
	}

	switch parser.Active.Name {
	case initSubCmd:
		return initSubCmd, initConf, nil
	case devnetSubCmd:
		return devnetSubCmd, devnetConf, nil
	case keygenSubCmd:
		return keygenSubCmd, keygenConf, nil
	case runSubCmd:
		return runSubCmd, runConf, nil
	default:
		return "", nil, fmt.Errorf("no subcommand given")
	}
}

func expandDataDir(dataDir string) string {
	if len(dataDir) >= 2 && dataDir[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, dataDir[2:])
		}
	}
	return dataDir
}

// doInit writes a fresh genesis header plus a default config file
// under dataDir, without starting any subsystem (spec.md §4.C16).
func doInit(dataDir string, chainID uint64) error {
	dataDir = expandDataDir(dataDir)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return err
	}

	cfg := config.Default()
	cfg.Chain.ChainID = chainID
	cfg.Storage.DataDir = dataDir

	f, err := os.Create(filepath.Join(dataDir, "lattice.toml"))
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := fmt.Fprintf(f, "[Chain]\nchain_id = %d\n", cfg.Chain.ChainID); err != nil {
		return err
	}

	db, err := store.Open(filepath.Join(dataDir, "db"))
	if err != nil {
		return err
	}
	defer db.Close()
	genesis := genesisHeader()
	return db.PutHeader(genesis)
}

// doKeygen generates an Ed25519 keypair and writes the private key to
// dataDir/validator.key with 0600 permissions (spec.md §4.C16).
func doKeygen(dataDir string) error {
	dataDir = expandDataDir(dataDir)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return err
	}

	key, err := types.GenerateSigningKey()
	if err != nil {
		return err
	}

	keyPath := filepath.Join(dataDir, "validator.key")
	if err := os.WriteFile(keyPath, key.Seed(), 0600); err != nil {
		return err
	}

	addr := key.PublicKey().Address()
	fmt.Printf("validator address: %s\n", addr)
	fmt.Printf("private key written to: %s\n", keyPath)
	return nil
}

// node bundles the wired subsystems, mirroring kaspad.go's kaspad
// wrapper struct.
type node struct {
	cfg      *config.Config
	db       *store.Store
	dag      *blockdag.BlockDAG
	pool     *mempool.Pool
	exec     *executor.Executor
	state    *state.FullSet
	gossip   p2p.Gossip
	proposer types.SigningKey
	hasKey   bool

	undoMu    sync.Mutex
	undoOrder []types.Hash
	undo      map[types.Hash]map[types.Address]*types.AccountState
}

// undoRetention bounds how many connected blocks' pre-images stay in
// memory for reorg rollback, mirroring the open question #3 resolution
// recorded in DESIGN.md: retention = max(finality_depth, reorg budget),
// since no reorg can ever need to undo deeper than either bound allows.
func (n *node) undoRetention() uint64 {
	depth := n.cfg.Chain.FinalityDepth
	if n.cfg.Chain.MaxBlueScoreDiff > depth {
		depth = n.cfg.Chain.MaxBlueScoreDiff
	}
	if depth == 0 {
		depth = 1
	}
	return depth
}

// doRun loads config, opens the block store, replays it into a fresh
// DagStore, and (if mine) starts the block-production loop (spec.md
// §4.C16).
func doRun(dataDir, configFile string, mine bool) error {
	dataDir = expandDataDir(dataDir)
	cfg := config.Default()
	cfg.Storage.DataDir = dataDir
	if configFile != "" {
		if err := config.LoadTOML(configFile, cfg); err != nil {
			return err
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger.InitLogRotator(filepath.Join(dataDir, "logs", "lattice.log"))
	log, _ := logger.Get(logger.SubsystemTags.NODE)
	log.Info("starting lattice node")

	n, err := newNode(cfg)
	if err != nil {
		return err
	}
	defer n.db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	if mine {
		if !n.hasKey {
			return fmt.Errorf("--mine requires a validator key at %s", filepath.Join(dataDir, "validator.key"))
		}
		go n.mine(ctx, cfg.Mining.TargetBlockTime)
	}

	<-sigCh
	log.Info("shutting down")
	return nil
}

func newNode(cfg *config.Config) (*node, error) {
	db, err := store.Open(filepath.Join(cfg.Storage.DataDir, "db"))
	if err != nil {
		return nil, err
	}

	dagLog, _ := logger.Get(logger.SubsystemTags.DAGS)
	genesis := genesisHeader()
	existing, ok, err := db.GetHeader(genesis.BlockHash)
	if err != nil {
		db.Close()
		return nil, err
	}
	if ok {
		genesis = existing
	}

	params := blockdag.Params{
		GhostDagParams: types.GhostDagParams{
			K:                cfg.Chain.K,
			MaxParents:       cfg.Chain.MaxParents,
			MaxBlueScoreDiff: cfg.Chain.MaxBlueScoreDiff,
			PruningWindow:    cfg.Chain.PruningWindow,
			FinalityDepth:    cfg.Chain.FinalityDepth,
		},
		WorkWeight: blockdag.DefaultParams().WorkWeight,
	}
	dag, err := blockdag.New(params, db, dagLog, genesis)
	if err != nil {
		db.Close()
		return nil, err
	}

	if err := db.IterateHeaders(func(h *types.BlockHeader) error {
		if h.BlockHash == genesis.BlockHash {
			return nil
		}
		_, _, err := dag.AddHeader(h)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}

	pool := mempool.New(mempool.Config{
		MaxTransactions:   cfg.Mempool.MaxSize,
		MaxPerSender:      cfg.Mempool.MaxPerSender,
		MinGasPrice:       cfg.Mempool.MinGasPrice,
		Expiry:            time.Duration(cfg.Mempool.TxExpirySecs) * time.Second,
		AllowReplacement:  cfg.Mempool.AllowReplacement,
		ReplacementFactor: cfg.Mempool.ReplacementFactor,
	})
	exec := executor.New(vm.NoopMachine{}, inference.NoopDispatcher{}, db)
	fullState, err := state.NewFullSet(db, 4096)
	if err != nil {
		db.Close()
		return nil, err
	}

	n := &node{
		cfg:    cfg,
		db:     db,
		dag:    dag,
		pool:   pool,
		exec:   exec,
		state:  fullState,
		gossip: p2p.NoopGossip{},
		undo:   make(map[types.Hash]map[types.Address]*types.AccountState),
	}

	keyPath := filepath.Join(cfg.Storage.DataDir, "validator.key")
	if seed, err := os.ReadFile(keyPath); err == nil {
		key, err := types.SigningKeyFromSeed(seed)
		if err == nil {
			n.proposer = key
			n.hasKey = true
		}
	}

	return n, nil
}

// mine runs the block-production loop on cfg.Mining.TargetBlockTime
// (spec.md §4.C16 "run --mine ... starts the block-production loop").
func (n *node) mine(ctx context.Context, blockTime time.Duration) {
	if blockTime <= 0 {
		blockTime = time.Second
	}
	log, _ := logger.Get(logger.SubsystemTags.BLDR)
	ticker := time.NewTicker(blockTime)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := n.produceBlock(ctx); err != nil {
				log.Warnf("block production failed: %s", err)
			}
		}
	}
}

func (n *node) produceBlock(ctx context.Context) error {
	selectedParent, mergeParents, err := n.dag.SelectParents()
	if err != nil {
		return err
	}
	tipHeader, ok, err := n.db.GetHeader(selectedParent)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("selected parent header not found: %s", selectedParent)
	}

	b := builder.New(builder.DefaultConfig(), n.pool, n.state, n.exec)
	parent := builder.SelectedParent{
		Hash:       selectedParent,
		Height:     tipHeader.Height,
		Timestamp:  tipHeader.Timestamp,
		MedianTime: tipHeader.Timestamp,
	}
	candidate, err := b.Build(ctx, parent, mergeParents, time.Now().Unix(), n.proposer)
	if err != nil {
		return err
	}

	_, reorg, err := n.dag.AddHeader(&candidate.Block.Header)
	if err != nil {
		return err
	}
	if err := n.db.PutBlock(candidate.Block); err != nil {
		return err
	}
	if err := n.applyReorg(ctx, reorg); err != nil {
		return err
	}

	return n.gossip.BroadcastBlock(ctx, candidate.Block)
}

// applyReorg re-applies the chain selector's tip update against
// durable account state: it undoes every block the selector dropped
// from the selected-parent chain (newest-first, so undo is LIFO),
// then re-executes every block it adopted (oldest-first) through the
// real Executor - the "chain selector updates tip/reorg → executor
// re-applies ordered transactions against state snapshot" flow
// (spec.md §2, §4.C6 point 4). A nil reorg (the selected tip did not
// move) is a no-op.
func (n *node) applyReorg(ctx context.Context, reorg *blockdag.ReorgEvent) error {
	if reorg == nil {
		return nil
	}
	for _, hash := range reorg.Removed {
		if err := n.undoBlock(hash); err != nil {
			return err
		}
	}
	for _, hash := range reorg.Added {
		if _, err := n.applyBlockByHash(ctx, hash); err != nil {
			return err
		}
	}
	return nil
}

// applyBlockByHash loads a connected block's full body and applies it
// (spec.md §4.C11/§4.C12): this is also the path a freshly-produced
// block's own transactions are committed through, since it appears as
// the sole entry of reorg.Added on every successful connection.
func (n *node) applyBlockByHash(ctx context.Context, hash types.Hash) ([]*types.Receipt, error) {
	block, ok, err := n.db.GetBlock(hash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("block body not found for %s, cannot replay", hash.ShortString())
	}
	return n.applyBlock(ctx, block)
}

// applyBlock groups block's transactions by access set and runs them
// through executor.ExecuteGroups against the durable account state,
// then commits the result atomically: the account diff, and the
// block/header/receipts/height-index/blue-set/dag-relations bundle
// (spec.md §4.C11, §4.C12, §4.C13). The accounts' pre-images are
// captured first so a later reorg can undo this block in O(modified
// accounts) (spec.md §9 Open Question #3 resolution).
func (n *node) applyBlock(ctx context.Context, block *types.Block) ([]*types.Receipt, error) {
	diff := state.NewDiffSet(n.state)
	groups := executor.Group(block.Transactions)
	receipts, err := n.exec.ExecuteGroups(ctx, diff, groups, block.Header.BlockHash, block.Header.Height)
	if err != nil {
		return nil, err
	}

	preimage := make(map[types.Address]*types.AccountState, len(diff.ModifiedAddresses()))
	for _, addr := range diff.ModifiedAddresses() {
		account, err := n.state.Get(addr)
		if err != nil {
			return nil, err
		}
		preimage[addr] = account.Clone()
	}
	n.recordUndo(block.Header.BlockHash, preimage)

	if err := diff.MeldToBase(); err != nil {
		return nil, err
	}

	blues, _, err := n.dag.MergeSetOrder(block.Header.BlockHash)
	if err != nil {
		return nil, err
	}
	if err := n.db.PutBlockBundle(store.BlockCommit{Block: block, Receipts: receipts, BlueSet: blues}); err != nil {
		return nil, err
	}
	return receipts, nil
}

// undoBlock reverts a previously-applied block's account-state
// effects using its recorded pre-images, the O(1)-per-account rollback
// the diff-overlay pattern is built for (spec.md §4.C6 point 4).
// Blocks older than undoRetention() have no recorded pre-image and are
// silently skipped - they are also older than FinalityDepth/the reorg
// budget, so the selector could never have asked to undo past them.
func (n *node) undoBlock(hash types.Hash) error {
	n.undoMu.Lock()
	preimage, ok := n.undo[hash]
	delete(n.undo, hash)
	n.undoMu.Unlock()
	if !ok {
		return nil
	}
	return n.state.PutAll(preimage)
}

// recordUndo stores hash's pre-image snapshot, trimming the oldest
// entry once retention is exceeded.
func (n *node) recordUndo(hash types.Hash, preimage map[types.Address]*types.AccountState) {
	n.undoMu.Lock()
	defer n.undoMu.Unlock()
	n.undo[hash] = preimage
	n.undoOrder = append(n.undoOrder, hash)
	retention := int(n.undoRetention())
	for len(n.undoOrder) > retention {
		oldest := n.undoOrder[0]
		n.undoOrder = n.undoOrder[1:]
		delete(n.undo, oldest)
	}
}

// genesisHeader is the fixed devnet genesis: no parents, height 0,
// a deterministic timestamp so repeated `init` runs are reproducible.
func genesisHeader() *types.BlockHeader {
	h := &types.BlockHeader{Version: 1, Timestamp: 0, Height: 0}
	h.BlockHash = h.ComputeBlockHash()
	return h
}
