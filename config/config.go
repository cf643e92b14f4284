// Package config loads and validates the node's configuration:
// devnet-safe defaults, overridden by a TOML file (spec.md §6,
// SPEC_FULL.md §4.C15). The `long` tags name a flag per key, but no
// parser in this module reads them into a Config: cmd/latticed applies
// only its --data-dir, before the TOML file is loaded, so a data_dir in
// the file takes precedence. Grounded on the
// teacher's kasparovd/config package layout (a single struct per
// concern, flag tags throughout) combined with
// original_source/lattice-v3's config.rs section split (chain,
// network, rpc, storage, mining, mempool, validator).
package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Chain holds consensus-parameter overrides (spec.md §3
// GhostDagParams plus the chain identifier).
type Chain struct {
	ChainID          uint64        `toml:"chain_id" long:"chain-id" description:"chain identifier"`
	BlockTime        time.Duration `toml:"block_time" long:"block-time" description:"target time between blocks"`
	K                uint32        `toml:"ghostdag_k" long:"k" description:"GhostDag k-cluster anticone tolerance"`
	MaxParents       uint32        `toml:"max_parents" long:"max-parents" description:"maximum parents per block"`
	MaxBlueScoreDiff uint64        `toml:"max_blue_score_diff" long:"max-blue-score-diff"`
	PruningWindow    uint64        `toml:"pruning_window" long:"pruning-window"`
	FinalityDepth    uint64        `toml:"finality_depth" long:"finality-depth"`
}

// Network holds P2P listen/seed settings (the transport itself is an
// external collaborator, §4.C17; only its configuration surface lives
// here since the node needs it to construct that collaborator).
type Network struct {
	ListenAddr string   `toml:"listen_addr" long:"listen" description:"P2P listen address"`
	Bootstrap  []string `toml:"bootstrap" long:"bootstrap" description:"bootstrap peer addresses"`
	MaxPeers   int      `toml:"max_peers" long:"max-peers" description:"maximum connected peers"`
}

// RPC holds JSON-RPC/WebSocket listener settings.
type RPC struct {
	Enabled    bool     `toml:"enabled" long:"rpc" description:"enable the RPC server"`
	ListenAddr string   `toml:"listen_addr" long:"rpclisten" description:"RPC listen address"`
	WSAddr     string   `toml:"ws_addr" long:"rpcwslisten" description:"WebSocket subscription listen address"`
	CORS       []string `toml:"cors" long:"rpccors" description:"allowed CORS origins"`
}

// Storage holds on-disk layout settings.
type Storage struct {
	DataDir        string `toml:"data_dir" long:"data-dir" description:"data directory"`
	CompressionLZ4 bool   `toml:"compression_lz4" long:"lz4" description:"enable LZ4 compression in production"`
	Pruning        bool   `toml:"pruning" long:"pruning" description:"prune blocks/states beyond the configured retention"`
	KeepBlocks     uint64 `toml:"keep_blocks" long:"keep-blocks" description:"number of recent blocks retained when pruning"`
	KeepStates     uint64 `toml:"keep_states" long:"keep-states" description:"number of recent account-state snapshots retained when pruning"`
}

// Mining holds block-production settings, consumed by the builder
// (§4.C10) when --mine is set.
type Mining struct {
	Enabled         bool          `toml:"enabled" long:"mine" description:"start the block-production loop"`
	Coinbase        string        `toml:"coinbase" long:"coinbase" description:"address credited with proposer rewards"`
	TargetBlockTime time.Duration `toml:"target_block_time" long:"target-block-time"`
	MinGasPrice     uint64        `toml:"min_gas_price" long:"min-gas-price" description:"minimum gas price a transaction must offer to be included"`
}

// Mempool holds pool-sizing settings (§4.C9).
type Mempool struct {
	MaxSize           int     `toml:"max_size" long:"mempool-max-size" description:"maximum pooled transaction count"`
	MaxPerSender      int     `toml:"max_per_sender" long:"mempool-max-per-sender"`
	MinGasPrice       uint64  `toml:"min_gas_price" long:"mempool-min-gas-price"`
	TxExpirySecs      uint64  `toml:"tx_expiry_secs" long:"mempool-tx-expiry-secs"`
	AllowReplacement  bool    `toml:"allow_replacement" long:"mempool-allow-replacement"`
	ReplacementFactor float64 `toml:"replacement_factor" long:"mempool-replacement-factor"`
}

// Validator holds proposer-eligibility settings. ProductionMode with
// an empty Validators set is a fatal misconfiguration (SPEC_FULL.md
// §4.C15: "fail closed").
type Validator struct {
	ProductionMode    bool     `toml:"production_mode" long:"production"`
	Validators        []string `toml:"validators" long:"validator"`
	GracePeriodHours  uint64   `toml:"grace_period_hours" long:"grace-period-hours" description:"hours a newly-added validator is exempt from liveness slashing"`
	CheckIntervalSecs uint64   `toml:"check_interval_secs" long:"check-interval-secs" description:"validator liveness poll interval"`
}

// Config is the node's full configuration (SPEC_FULL.md §4.C15).
type Config struct {
	Chain     Chain
	Network   Network
	RPC       RPC
	Storage   Storage
	Mining    Mining
	Mempool   Mempool
	Validator Validator
}

// Default returns devnet-safe defaults, mirroring
// types.DefaultGhostDagParams and the mempool/builder packages' own
// DefaultConfig helpers.
func Default() *Config {
	return &Config{
		Chain: Chain{
			ChainID:          1,
			BlockTime:        time.Second,
			K:                18,
			MaxParents:       10,
			MaxBlueScoreDiff: 1000,
			PruningWindow:    100000,
			FinalityDepth:    100,
		},
		Network: Network{ListenAddr: "127.0.0.1:26720", MaxPeers: 32},
		RPC:     RPC{Enabled: true, ListenAddr: "127.0.0.1:26721", WSAddr: "127.0.0.1:26722"},
		Storage: Storage{DataDir: defaultDataDir(), KeepBlocks: 100000, KeepStates: 100000},
		Mining:  Mining{TargetBlockTime: time.Second},
		Mempool: Mempool{
			MaxSize:           10000,
			MaxPerSender:      64,
			TxExpirySecs:      1800,
			AllowReplacement:  true,
			ReplacementFactor: 1.10,
		},
		Validator: Validator{GracePeriodHours: 24, CheckIntervalSecs: 60},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".lattice"
	}
	return home + "/.lattice"
}

// errProductionModeRequiresValidators is the fail-closed startup error
// (SPEC_FULL.md §4.C15).
var errProductionModeRequiresValidators = errors.New("config: production mode requires at least one validator")

// Validate checks invariants that must hold before any subsystem is
// constructed (SPEC_FULL.md §4.C15).
func (c *Config) Validate() error {
	if c.Validator.ProductionMode && len(c.Validator.Validators) == 0 {
		return errProductionModeRequiresValidators
	}
	return nil
}

// LoadTOML merges a TOML file at path onto cfg in place. A missing
// file is not an error — the caller proceeds on defaults.
func LoadTOML(path string, cfg *Config) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return errors.Wrapf(err, "failed to decode config file %s", path)
	}
	return nil
}
