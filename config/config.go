package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"escrowchain/crypto"
	"escrowchain/native/common"
	"escrowchain/native/escrow"
	"escrowchain/native/fees"
)

type Config struct {
	Environment string `toml:"Environment"`
	DataDir     string `toml:"DataDir"`

	Storage   Storage      `toml:"storage"`
	RPC       RPC          `toml:"rpc"`
	Escrow    Escrow       `toml:"escrow"`
	Fees      Fees         `toml:"fees"`
	Genesis   []Allocation `toml:"genesis"`
	Logging   Logging      `toml:"logging"`
	Telemetry Telemetry    `toml:"telemetry"`
	Indexer   Indexer      `toml:"indexer"`
}

// Storage selects the state backend: memory, leveldb or bolt.
type Storage struct {
	Backend string `toml:"Backend"`
	Path    string `toml:"Path"`
}

type RPC struct {
	ListenAddress     string `toml:"ListenAddress"`
	JWTSecret         string `toml:"JWTSecret"`
	JWTSecretEnv      string `toml:"JWTSecretEnv"`
	JWTIssuer         string `toml:"JWTIssuer"`
	MaxConnections    int    `toml:"MaxConnections"`
	ReadHeaderTimeout int    `toml:"ReadHeaderTimeoutSeconds"`
	// Dispute commits per caller per minute.
	CommitRatePerMinute float64 `toml:"CommitRatePerMinute"`
	CommitBurst         int     `toml:"CommitBurst"`
}

type Escrow struct {
	Custody             string `toml:"Custody"`
	MinDurationSecs     uint64 `toml:"MinDurationSeconds"`
	MaxDurationSecs     uint64 `toml:"MaxDurationSeconds"`
	ArbitratorDelaySecs uint64 `toml:"ArbitratorDelaySeconds"`
	RevealWindowSecs    uint64 `toml:"RevealWindowSeconds"`
	DisputeStakeBps     uint32 `toml:"DisputeStakeBps"`
	FeeBps              uint32 `toml:"FeeBps"`
	DisputesPerEpoch    uint32 `toml:"DisputesPerEpoch"`
	DisputeEpochSecs    uint32 `toml:"DisputeEpochSeconds"`
	ArbitratorPoolFile  string `toml:"ArbitratorPoolFile"`
	Confidential        bool   `toml:"Confidential"`

	// Paused starts the node refusing new escrows and disputes.
	Paused bool `toml:"Paused"`
}

// FeeShare routes Bps of every settlement fee to Address.
type FeeShare struct {
	Name    string `toml:"Name"`
	Address string `toml:"Address"`
	Bps     uint32 `toml:"Bps"`
}

type Fees struct {
	Shares []FeeShare `toml:"Shares"`
}

// Allocation credits Amount base units to Address on first boot.
type Allocation struct {
	Address string `toml:"Address"`
	Amount  string `toml:"Amount"`
}

type Logging struct {
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

type Telemetry struct {
	Endpoint string `toml:"Endpoint"`
	Insecure bool   `toml:"Insecure"`
	Headers  string `toml:"Headers"`
	Metrics  bool   `toml:"Metrics"`
	Traces   bool   `toml:"Traces"`

	// Fraction of root spans exported; 0 exports all.
	SampleRatio float64 `toml:"SampleRatio"`
}

// Indexer stores committed events in SQL. An empty DSN disables it; DSNs
// starting with postgres:// or postgresql:// use Postgres, anything else is
// a SQLite path.
type Indexer struct {
	DSN string `toml:"DSN"`
}

// Load loads the configuration from the given path, writing the defaults
// there first when the file does not exist.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns a development configuration.
func Default() *Config {
	params := escrow.DefaultParams()
	return &Config{
		Environment: "local",
		DataDir:     "./escrow-data",
		Storage:     Storage{Backend: "leveldb"},
		RPC: RPC{
			ListenAddress:       "127.0.0.1:8645",
			JWTSecretEnv:        "ESCROW_JWT_SECRET",
			JWTIssuer:           "escrowchain",
			MaxConnections:      256,
			ReadHeaderTimeout:   5,
			CommitRatePerMinute: 6,
			CommitBurst:         3,
		},
		Escrow: Escrow{
			Custody:             crypto.Address{0xEE, 0xEE}.String(),
			MinDurationSecs:     uint64(params.MinDuration / time.Second),
			MaxDurationSecs:     uint64(params.MaxDuration / time.Second),
			ArbitratorDelaySecs: uint64(params.ArbitratorDelay / time.Second),
			RevealWindowSecs:    uint64(params.RevealWindow / time.Second),
			DisputeStakeBps:     params.DisputeStakeBps,
			FeeBps:              params.FeeBps,
			DisputesPerEpoch:    params.DisputeQuota.MaxPerEpoch,
			DisputeEpochSecs:    params.DisputeQuota.EpochSeconds,
			Confidential:        true,
		},
		Fees: Fees{Shares: []FeeShare{
			{Name: "treasury", Address: crypto.Address{0xA1}.String(), Bps: 7_000},
			{Name: "staking", Address: crypto.Address{0xA2}.String(), Bps: 2_000},
			{Name: "validators", Address: crypto.Address{0xA3}.String(), Bps: 1_000},
		}},
		Genesis: []Allocation{},
		Logging: Logging{Level: "info", MaxSizeMB: 100, MaxBackups: 5, MaxAgeDays: 28},
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// StoragePath resolves the backend location, defaulting under DataDir.
func (c *Config) StoragePath() string {
	if path := strings.TrimSpace(c.Storage.Path); path != "" {
		return path
	}
	if c.Storage.Backend == "bolt" {
		return filepath.Join(c.DataDir, "state.db")
	}
	return filepath.Join(c.DataDir, "state")
}

// JWTSecretValue returns the HMAC secret, preferring the environment
// variable named by JWTSecretEnv.
func (c *Config) JWTSecretValue() string {
	if env := strings.TrimSpace(c.RPC.JWTSecretEnv); env != "" {
		if value, ok := os.LookupEnv(env); ok && strings.TrimSpace(value) != "" {
			return value
		}
	}
	return c.RPC.JWTSecret
}

// CustodyAddress parses the custody account.
func (c *Config) CustodyAddress() (crypto.Address, error) {
	addr, err := crypto.ParseAddress(c.Escrow.Custody)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("escrow.Custody: %w", err)
	}
	if addr.IsZero() {
		return crypto.Address{}, fmt.Errorf("escrow.Custody must not be the zero address")
	}
	return addr, nil
}

// Params converts the escrow section into engine parameters.
func (c *Config) Params() escrow.Params {
	secs := func(v uint64) time.Duration { return time.Duration(v) * time.Second }
	return escrow.Params{
		MinDuration:     secs(c.Escrow.MinDurationSecs),
		MaxDuration:     secs(c.Escrow.MaxDurationSecs),
		ArbitratorDelay: secs(c.Escrow.ArbitratorDelaySecs),
		RevealWindow:    secs(c.Escrow.RevealWindowSecs),
		DisputeStakeBps: c.Escrow.DisputeStakeBps,
		FeeBps:          c.Escrow.FeeBps,
		DisputeQuota: common.Quota{
			MaxPerEpoch:  c.Escrow.DisputesPerEpoch,
			EpochSeconds: c.Escrow.DisputeEpochSecs,
		},
	}
}

// Shares converts the fee section into distributor shares.
func (c *Config) Shares() ([]fees.Share, error) {
	out := make([]fees.Share, 0, len(c.Fees.Shares))
	for i, share := range c.Fees.Shares {
		addr, err := crypto.ParseAddress(share.Address)
		if err != nil {
			return nil, fmt.Errorf("fees.Shares[%d]: %w", i, err)
		}
		out = append(out, fees.Share{Name: strings.TrimSpace(share.Name), Recipient: addr, Bps: share.Bps})
	}
	if err := fees.ValidateShares(out); err != nil {
		return nil, err
	}
	return out, nil
}

// GenesisBalance is a parsed Allocation.
type GenesisBalance struct {
	Address crypto.Address
	Amount  *big.Int
}

// Allocations parses the genesis section.
func (c *Config) Allocations() ([]GenesisBalance, error) {
	out := make([]GenesisBalance, 0, len(c.Genesis))
	seen := make(map[crypto.Address]struct{}, len(c.Genesis))
	for i, alloc := range c.Genesis {
		addr, err := crypto.ParseAddress(alloc.Address)
		if err != nil {
			return nil, fmt.Errorf("genesis[%d]: %w", i, err)
		}
		if _, dup := seen[addr]; dup {
			return nil, fmt.Errorf("genesis[%d]: duplicate address %s", i, addr)
		}
		seen[addr] = struct{}{}
		amount, err := parseUintAmount(alloc.Amount)
		if err != nil {
			return nil, fmt.Errorf("genesis[%d]: %w", i, err)
		}
		out = append(out, GenesisBalance{Address: addr, Amount: amount})
	}
	return out, nil
}

func parseUintAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || amount.Sign() <= 0 {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	return amount, nil
}
