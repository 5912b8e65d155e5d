// Package config loads token sale service settings from a TOML or YAML file,
// a .env file, and the process environment, in that order of precedence
// (later sources win).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"solana-token-sale/internal/domain"
	"solana-token-sale/internal/sale"
)

// Ledger backends.
const (
	BackendMemory   = "memory"
	BackendLevelDB  = "leveldb"
	BackendPostgres = "postgres"
)

// Config is the full service configuration.
type Config struct {
	Sale    SaleConfig    `toml:"sale" yaml:"sale"`
	Ledger  LedgerConfig  `toml:"ledger" yaml:"ledger"`
	Journal JournalConfig `toml:"journal" yaml:"journal"`
	HTTP    HTTPConfig    `toml:"http" yaml:"http"`
	Log     LogConfig     `toml:"log" yaml:"log"`
	Dev     DevConfig     `toml:"dev" yaml:"dev"`
	Cluster ClusterConfig `toml:"cluster" yaml:"cluster"`
}

// SaleConfig identifies the sale program and the token it sells.
type SaleConfig struct {
	ProgramID string   `toml:"program_id" yaml:"program_id"`
	Mint      string   `toml:"mint" yaml:"mint"`
	Decimals  uint8    `toml:"decimals" yaml:"decimals"`
	Deployers []string `toml:"deployers" yaml:"deployers"`
}

// LedgerConfig selects where account state lives.
type LedgerConfig struct {
	Backend     string `toml:"backend" yaml:"backend"`
	Path        string `toml:"path" yaml:"path"`
	PostgresDSN string `toml:"postgres_dsn" yaml:"postgres_dsn"`
}

// JournalConfig selects where purchases, config events and volume go.
type JournalConfig struct {
	Backend        string        `toml:"backend" yaml:"backend"`
	PostgresDSN    string        `toml:"postgres_dsn" yaml:"postgres_dsn"`
	ClickHouseDSN  string        `toml:"clickhouse_dsn" yaml:"clickhouse_dsn"`
	RollupInterval time.Duration `toml:"rollup_interval" yaml:"rollup_interval"`
	// RollupGrace holds a bucket open after it ends so purchases journaled
	// late still land in it. Keep it above the HTTP write timeout.
	RollupGrace time.Duration `toml:"rollup_grace" yaml:"rollup_grace"`
}

type HTTPConfig struct {
	Addr         string        `toml:"addr" yaml:"addr"`
	ReadTimeout  time.Duration `toml:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `toml:"write_timeout" yaml:"write_timeout"`
}

type LogConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"` // text or json
}

// DevConfig enables local bootstrap: mint creation, pool funding and airdrops.
type DevConfig struct {
	Enabled       bool   `toml:"enabled" yaml:"enabled"`
	Supply        uint64 `toml:"supply" yaml:"supply"`
	MintAuthority string `toml:"mint_authority" yaml:"mint_authority"`
}

// ClusterConfig points the read-only tools at a live cluster.
type ClusterConfig struct {
	RPCEndpoint string  `toml:"rpc_endpoint" yaml:"rpc_endpoint"`
	WSEndpoint  string  `toml:"ws_endpoint" yaml:"ws_endpoint"`
	RateLimit   float64 `toml:"rate_limit" yaml:"rate_limit"` // requests per second, 0 = unlimited
	Burst       int     `toml:"burst" yaml:"burst"`
}

// Default returns a configuration for a local in-memory deployment.
func Default() *Config {
	return &Config{
		Sale: SaleConfig{
			ProgramID: sale.DefaultProgramID.String(),
			Decimals:  6,
		},
		Ledger: LedgerConfig{
			Backend: BackendMemory,
			Path:    "data/ledger",
		},
		Journal: JournalConfig{
			Backend:        BackendMemory,
			RollupInterval: time.Minute,
			RollupGrace:    30 * time.Second,
		},
		HTTP: HTTPConfig{
			Addr:         ":8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Dev: DevConfig{
			Supply: 1_000_000_000_000_000,
		},
		Cluster: ClusterConfig{
			RPCEndpoint: "http://127.0.0.1:8899",
			WSEndpoint:  "ws://127.0.0.1:8900",
			Burst:       1,
		},
	}
}

// Load reads path (if non-empty) over the defaults, then applies the
// environment and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.decodeFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decodeFile(path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		meta, err := toml.DecodeFile(path, c)
		if err != nil {
			return fmt.Errorf("decode %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return fmt.Errorf("decode %s: unknown key %s", path, undecoded[0])
		}
		return nil
	case ".yaml", ".yml":
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		if err := dec.Decode(c); err != nil {
			return fmt.Errorf("decode %s: %w", path, err)
		}
		return nil
	default:
		return fmt.Errorf("config %s: unsupported extension (want .toml, .yaml or .yml)", path)
	}
}

// ApplyEnv overrides fields from environment variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("SALE_PROGRAM_ID", &c.Sale.ProgramID)
	str("SALE_MINT", &c.Sale.Mint)
	str("LEDGER_BACKEND", &c.Ledger.Backend)
	str("LEDGER_PATH", &c.Ledger.Path)
	str("LEDGER_POSTGRES_DSN", &c.Ledger.PostgresDSN)
	str("JOURNAL_BACKEND", &c.Journal.Backend)
	str("POSTGRES_DSN", &c.Journal.PostgresDSN)
	str("CLICKHOUSE_DSN", &c.Journal.ClickHouseDSN)
	str("HTTP_ADDR", &c.HTTP.Addr)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("DEV_MINT_AUTHORITY", &c.Dev.MintAuthority)
	str("SOLANA_RPC_ENDPOINT", &c.Cluster.RPCEndpoint)
	str("SOLANA_WS_ENDPOINT", &c.Cluster.WSEndpoint)

	if v, ok := lookup("SALE_DEPLOYERS"); ok && v != "" {
		c.Sale.Deployers = splitList(v)
	}
	if v, ok := lookup("SALE_DECIMALS"); ok && v != "" {
		n, err := strconv.ParseUint(v, 10, 8)
		if err != nil {
			return fmt.Errorf("SALE_DECIMALS: %w", err)
		}
		c.Sale.Decimals = uint8(n)
	}
	if v, ok := lookup("JOURNAL_ROLLUP_INTERVAL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("JOURNAL_ROLLUP_INTERVAL: %w", err)
		}
		c.Journal.RollupInterval = d
	}
	if v, ok := lookup("JOURNAL_ROLLUP_GRACE"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("JOURNAL_ROLLUP_GRACE: %w", err)
		}
		c.Journal.RollupGrace = d
	}
	if v, ok := lookup("DEV_MODE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("DEV_MODE: %w", err)
		}
		c.Dev.Enabled = b
	}
	if v, ok := lookup("DEV_SUPPLY"); ok && v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("DEV_SUPPLY: %w", err)
		}
		c.Dev.Supply = n
	}
	if v, ok := lookup("RPC_RATE_LIMIT"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("RPC_RATE_LIMIT: %w", err)
		}
		c.Cluster.RateLimit = f
	}
	return nil
}

// Validate checks backend names and that each backend has what it needs.
func (c *Config) Validate() error {
	var errs []error

	if _, err := domain.ParseAddress(c.Sale.ProgramID); err != nil {
		errs = append(errs, fmt.Errorf("sale.program_id: %w", err))
	}
	if c.Sale.Mint == "" {
		if !c.Dev.Enabled {
			errs = append(errs, errors.New("sale.mint is required outside dev mode"))
		}
	} else if _, err := domain.ParseAddress(c.Sale.Mint); err != nil {
		errs = append(errs, fmt.Errorf("sale.mint: %w", err))
	}
	if _, err := c.Sale.DeployerAddresses(); err != nil {
		errs = append(errs, err)
	}

	switch c.Ledger.Backend {
	case BackendMemory:
	case BackendLevelDB:
		if c.Ledger.Path == "" {
			errs = append(errs, errors.New("ledger.path is required for leveldb"))
		}
	case BackendPostgres:
		if c.Ledger.PostgresDSN == "" {
			errs = append(errs, errors.New("ledger.postgres_dsn is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("ledger.backend: unknown backend %q", c.Ledger.Backend))
	}

	switch c.Journal.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Journal.PostgresDSN == "" || c.Journal.ClickHouseDSN == "" {
			errs = append(errs, errors.New("journal.postgres_dsn and journal.clickhouse_dsn are required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("journal.backend: unknown backend %q", c.Journal.Backend))
	}
	if c.Journal.RollupInterval <= 0 {
		errs = append(errs, errors.New("journal.rollup_interval must be positive"))
	}
	if c.Journal.RollupGrace < 0 {
		errs = append(errs, errors.New("journal.rollup_grace must not be negative"))
	}

	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format: want text or json, got %q", c.Log.Format))
	}
	if c.Cluster.RateLimit < 0 {
		errs = append(errs, errors.New("cluster.rate_limit must not be negative"))
	}

	return errors.Join(errs...)
}

// DeployerAddresses parses the deployer allow-list.
func (s SaleConfig) DeployerAddresses() ([]domain.Address, error) {
	out := make([]domain.Address, 0, len(s.Deployers))
	for _, d := range s.Deployers {
		a, err := domain.ParseAddress(d)
		if err != nil {
			return nil, fmt.Errorf("sale.deployers %q: %w", d, err)
		}
		out = append(out, a)
	}
	return out, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// LoadEnvFile loads KEY=VALUE lines from path into the process environment.
// Existing variables are not overridden. A missing file is not an error.
func LoadEnvFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		if _, exists := os.LookupEnv(key); !exists {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("set %s: %w", key, err)
			}
		}
	}
	return nil
}
