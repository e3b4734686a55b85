// Package config loads and validates the TOML configuration of a
// bridge daemon.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/blockberries/bridgeberry/eligibility"
	"github.com/blockberries/bridgeberry/escrow"
	"github.com/blockberries/bridgeberry/lifecycle"
	"github.com/blockberries/bridgeberry/logging"
	"github.com/blockberries/bridgeberry/server"
	"github.com/blockberries/bridgeberry/store"
	"github.com/blockberries/bridgeberry/types"
)

// Eligibility modes.
const (
	EligibilityNone = "none"
	EligibilityVRF  = "vrf"
)

// Config is the main configuration for a bridge daemon.
type Config struct {
	Bridge      BridgeConfig      `toml:"bridge"`
	Store       StoreConfig       `toml:"store"`
	Payload     PayloadConfig     `toml:"payload"`
	Eligibility EligibilityConfig `toml:"eligibility"`
	RPC         RPCConfig         `toml:"rpc"`
	Metrics     MetricsConfig     `toml:"metrics"`
	Logging     LoggingConfig     `toml:"logging"`
}

// BridgeConfig contains the protocol parameters.
type BridgeConfig struct {
	// Variant is "direct" or "claim".
	Variant string `toml:"variant"`

	// ReportGasEstimate is the fixed work cost of a report; the price
	// floor is the gas price times this.
	ReportGasEstimate uint64 `toml:"report_gas_estimate"`

	// ClaimExpiry is how many host blocks a claim stays exclusive.
	ClaimExpiry uint64 `toml:"claim_expiry"`

	// MaxProofDepth is the longest merkle path accepted.
	MaxProofDepth int `toml:"max_proof_depth"`

	// Reporters are the hex addresses allowed to report results in the
	// direct variant.
	Reporters []string `toml:"reporters"`

	// Relayers are the hex addresses allowed to record external block
	// roots over RPC.
	Relayers []string `toml:"relayers"`
}

// StoreConfig contains query store configuration.
type StoreConfig struct {
	// Backend is "memory", "leveldb" or "badgerdb".
	Backend string `toml:"backend"`

	// Path is the database directory.
	Path string `toml:"path"`
}

// PayloadConfig contains payload store configuration.
type PayloadConfig struct {
	// Backend is "memory" or "leveldb".
	Backend string `toml:"backend"`
	Path    string `toml:"path"`
}

// EligibilityConfig selects how claimants prove they may claim.
type EligibilityConfig struct {
	// Mode is "none" or "vrf".
	Mode string `toml:"mode"`

	// Seed is the 32-byte hex randomness mixed into every epoch's VRF input.
	Seed string `toml:"seed"`

	// Threshold is the fraction of claimants eligible per epoch, in (0, 1].
	Threshold float64 `toml:"threshold"`
}

// RPCConfig contains gRPC server configuration.
type RPCConfig struct {
	ListenAddr string `toml:"listen_addr"`

	// ShutdownTimeout bounds graceful stop before connections are cut.
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`

	// Namespace prefixes every metric name.
	Namespace string `toml:"namespace"`

	// ListenAddr is the address to serve metrics on (e.g., ":9090").
	ListenAddr string `toml:"listen_addr"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	Level string `toml:"level"`

	// Format is the log output format ("text" or "json").
	Format string `toml:"format"`
}

// Duration is a wrapper around time.Duration for TOML unmarshaling.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for Duration.
func (d *Duration) UnmarshalText(text []byte) error {
	duration, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(duration)
	return nil
}

// MarshalText implements encoding.TextMarshaler for Duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Bridge: BridgeConfig{
			Variant:           types.VariantDirect.String(),
			ReportGasEstimate: escrow.DefaultReportGasEstimate,
			ClaimExpiry:       lifecycle.DefaultClaimExpiry,
			MaxProofDepth:     server.DefaultMaxProofDepth,
			Reporters:         []string{},
			Relayers:          []string{},
		},
		Store: StoreConfig{
			Backend: store.BackendLevelDB,
			Path:    "data/queries",
		},
		Payload: PayloadConfig{
			Backend: "leveldb",
			Path:    "data/payloads",
		},
		Eligibility: EligibilityConfig{
			Mode:      EligibilityNone,
			Threshold: 1,
		},
		RPC: RPCConfig{
			ListenAddr:      "127.0.0.1:26680",
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Metrics: MetricsConfig{
			Enabled:    false,
			Namespace:  "bridge",
			ListenAddr: ":9090",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig loads configuration from a TOML file. Missing keys keep
// their default values.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// WriteConfigFile writes cfg to path as TOML, creating parent
// directories as needed.
func WriteConfigFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	return nil
}

// Validation errors.
var (
	ErrInvalidVariant         = errors.New("variant must be 'direct' or 'claim'")
	ErrInvalidGasEstimate     = errors.New("report_gas_estimate must be positive")
	ErrInvalidClaimExpiry     = errors.New("claim_expiry must be positive")
	ErrInvalidMaxProofDepth   = errors.New("max_proof_depth must be between 1 and 256")
	ErrInvalidReporter        = errors.New("reporters must be 20-byte hex addresses")
	ErrInvalidRelayer         = errors.New("relayers must be 20-byte hex addresses")
	ErrInvalidStoreBackend    = errors.New("store backend must be 'memory', 'leveldb' or 'badgerdb'")
	ErrEmptyStorePath         = errors.New("store path cannot be empty")
	ErrInvalidPayloadBackend  = errors.New("payload backend must be 'memory' or 'leveldb'")
	ErrEmptyPayloadPath       = errors.New("payload path cannot be empty")
	ErrInvalidEligibilityMode = errors.New("eligibility mode must be 'none' or 'vrf'")
	ErrInvalidSeed            = errors.New("eligibility seed must be 32 bytes of hex")
	ErrInvalidThreshold       = errors.New("eligibility threshold must be in (0, 1]")
	ErrEmptyRPCListenAddr     = errors.New("rpc listen_addr cannot be empty")
	ErrInvalidShutdownTimeout = errors.New("rpc shutdown_timeout must be non-negative")
	ErrEmptyMetricsNamespace  = errors.New("metrics namespace cannot be empty when enabled")
	ErrEmptyMetricsListenAddr = errors.New("metrics listen_addr cannot be empty when enabled")
	ErrInvalidLogLevel        = errors.New("log level must be one of: debug, info, warn, error")
	ErrInvalidLogFormat       = errors.New("log format must be 'text' or 'json'")
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if err := c.Bridge.Validate(); err != nil {
		return fmt.Errorf("bridge config: %w", err)
	}
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store config: %w", err)
	}
	if err := c.Payload.Validate(); err != nil {
		return fmt.Errorf("payload config: %w", err)
	}
	if err := c.Eligibility.Validate(); err != nil {
		return fmt.Errorf("eligibility config: %w", err)
	}
	if err := c.RPC.Validate(); err != nil {
		return fmt.Errorf("rpc config: %w", err)
	}
	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	return nil
}

// Validate checks the bridge configuration.
func (c *BridgeConfig) Validate() error {
	if _, err := types.ParseVariant(c.Variant); err != nil {
		return ErrInvalidVariant
	}
	if c.ReportGasEstimate == 0 {
		return ErrInvalidGasEstimate
	}
	if c.ClaimExpiry == 0 {
		return ErrInvalidClaimExpiry
	}
	if c.MaxProofDepth < 1 || c.MaxProofDepth > 256 {
		return ErrInvalidMaxProofDepth
	}
	if _, err := c.ReporterAddresses(); err != nil {
		return err
	}
	if _, err := c.RelayerAddresses(); err != nil {
		return err
	}
	return nil
}

// Params converts the bridge configuration into server parameters.
func (c *BridgeConfig) Params() (server.Params, error) {
	v, err := types.ParseVariant(c.Variant)
	if err != nil {
		return server.Params{}, ErrInvalidVariant
	}
	return server.Params{
		Variant:           v,
		ReportGasEstimate: c.ReportGasEstimate,
		ClaimExpiry:       c.ClaimExpiry,
		MaxProofDepth:     c.MaxProofDepth,
	}, nil
}

// ReporterAddresses parses the configured reporter addresses.
func (c *BridgeConfig) ReporterAddresses() ([]types.Address, error) {
	return parseAddresses(c.Reporters, ErrInvalidReporter)
}

// RelayerAddresses parses the configured relayer addresses.
func (c *BridgeConfig) RelayerAddresses() ([]types.Address, error) {
	return parseAddresses(c.Relayers, ErrInvalidRelayer)
}

func parseAddresses(list []string, invalid error) ([]types.Address, error) {
	out := make([]types.Address, 0, len(list))
	for _, s := range list {
		a, err := types.ParseAddress(s)
		if err != nil || a.IsZero() {
			return nil, fmt.Errorf("%w: %q", invalid, s)
		}
		out = append(out, a)
	}
	return out, nil
}

// Validate checks the store configuration.
func (c *StoreConfig) Validate() error {
	switch c.Backend {
	case store.BackendMemory:
		return nil
	case store.BackendLevelDB, store.BackendBadgerDB:
	default:
		return ErrInvalidStoreBackend
	}
	if c.Path == "" {
		return ErrEmptyStorePath
	}
	return nil
}

// Validate checks the payload store configuration.
func (c *PayloadConfig) Validate() error {
	switch c.Backend {
	case "memory":
		return nil
	case "leveldb":
	default:
		return ErrInvalidPayloadBackend
	}
	if c.Path == "" {
		return ErrEmptyPayloadPath
	}
	return nil
}

// Validate checks the eligibility configuration.
func (c *EligibilityConfig) Validate() error {
	switch c.Mode {
	case EligibilityNone, "":
		return nil
	case EligibilityVRF:
	default:
		return ErrInvalidEligibilityMode
	}
	if _, err := c.SeedBytes(); err != nil {
		return err
	}
	if c.Threshold <= 0 || c.Threshold > 1 {
		return ErrInvalidThreshold
	}
	return nil
}

// SeedBytes decodes the VRF seed.
func (c *EligibilityConfig) SeedBytes() ([eligibility.SeedSize]byte, error) {
	var seed [eligibility.SeedSize]byte
	b, err := hex.DecodeString(strings.TrimPrefix(c.Seed, "0x"))
	if err != nil || len(b) != eligibility.SeedSize {
		return seed, ErrInvalidSeed
	}
	copy(seed[:], b)
	return seed, nil
}

// Validate checks the RPC configuration.
func (c *RPCConfig) Validate() error {
	if c.ListenAddr == "" {
		return ErrEmptyRPCListenAddr
	}
	if c.ShutdownTimeout < 0 {
		return ErrInvalidShutdownTimeout
	}
	return nil
}

// Validate checks the metrics configuration.
func (c *MetricsConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Namespace == "" {
		return ErrEmptyMetricsNamespace
	}
	if c.ListenAddr == "" {
		return ErrEmptyMetricsListenAddr
	}
	return nil
}

// Validate checks the logging configuration.
func (c *LoggingConfig) Validate() error {
	if _, err := logging.ParseLevel(c.Level); err != nil {
		return ErrInvalidLogLevel
	}
	switch c.Format {
	case "text", "json":
		return nil
	default:
		return ErrInvalidLogFormat
	}
}
