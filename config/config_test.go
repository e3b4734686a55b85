package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/blockberries/bridgeberry/types"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.NotNil(t, cfg)
	require.NoError(t, cfg.Validate())

	// Bridge defaults
	require.Equal(t, "direct", cfg.Bridge.Variant)
	require.Equal(t, uint64(102_496), cfg.Bridge.ReportGasEstimate)
	require.Equal(t, uint64(13), cfg.Bridge.ClaimExpiry)
	require.Equal(t, 32, cfg.Bridge.MaxProofDepth)
	require.Empty(t, cfg.Bridge.Reporters)

	// Storage defaults
	require.Equal(t, "leveldb", cfg.Store.Backend)
	require.Equal(t, "data/queries", cfg.Store.Path)
	require.Equal(t, "leveldb", cfg.Payload.Backend)

	require.Equal(t, EligibilityNone, cfg.Eligibility.Mode)
	require.Equal(t, 10*time.Second, cfg.RPC.ShutdownTimeout.Duration())
	require.False(t, cfg.Metrics.Enabled)
	require.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.toml")
	content := `
[bridge]
variant = "claim"
claim_expiry = 20
reporters = ["0x0101010101010101010101010101010101010101"]

[store]
backend = "badgerdb"
path = "/var/lib/bridge/queries"

[eligibility]
mode = "vrf"
seed = "0000000000000000000000000000000000000000000000000000000000000001"
threshold = 0.25

[rpc]
shutdown_timeout = "3s"

[logging]
level = "debug"
format = "json"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "claim", cfg.Bridge.Variant)
	require.Equal(t, uint64(20), cfg.Bridge.ClaimExpiry)
	require.Equal(t, "badgerdb", cfg.Store.Backend)
	require.Equal(t, 3*time.Second, cfg.RPC.ShutdownTimeout.Duration())
	require.Equal(t, "json", cfg.Logging.Format)

	// Untouched sections keep their defaults.
	require.Equal(t, uint64(102_496), cfg.Bridge.ReportGasEstimate)
	require.Equal(t, "127.0.0.1:26680", cfg.RPC.ListenAddr)

	params, err := cfg.Bridge.Params()
	require.NoError(t, err)
	require.Equal(t, types.VariantClaim, params.Variant)
	require.Equal(t, uint64(20), params.ClaimExpiry)

	reporters, err := cfg.Bridge.ReporterAddresses()
	require.NoError(t, err)
	require.Equal(t, []types.Address{{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1}}, reporters)

	seed, err := cfg.Eligibility.SeedBytes()
	require.NoError(t, err)
	require.Equal(t, byte(1), seed[31])
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	require.ErrorContains(t, err, "reading config file")

	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[bridge\n"), 0644))
	_, err = LoadConfig(path)
	require.ErrorContains(t, err, "parsing config file")

	require.NoError(t, os.WriteFile(path, []byte("[bridge]\nvariant = \"optimistic\"\n"), 0644))
	_, err = LoadConfig(path)
	require.ErrorIs(t, err, ErrInvalidVariant)
}

func TestWriteConfigFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "bridge.toml")
	cfg := DefaultConfig()
	cfg.Bridge.Reporters = []string{strings.Repeat("ab", 20)}
	cfg.Bridge.Relayers = []string{strings.Repeat("cd", 20)}
	cfg.Metrics.Enabled = true
	require.NoError(t, WriteConfigFile(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, cfg, loaded)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   error
	}{
		{"unknown variant", func(c *Config) { c.Bridge.Variant = "x" }, ErrInvalidVariant},
		{"zero gas estimate", func(c *Config) { c.Bridge.ReportGasEstimate = 0 }, ErrInvalidGasEstimate},
		{"zero claim expiry", func(c *Config) { c.Bridge.ClaimExpiry = 0 }, ErrInvalidClaimExpiry},
		{"proof depth", func(c *Config) { c.Bridge.MaxProofDepth = 0 }, ErrInvalidMaxProofDepth},
		{"bad reporter", func(c *Config) { c.Bridge.Reporters = []string{"zz"} }, ErrInvalidReporter},
		{"zero reporter", func(c *Config) { c.Bridge.Reporters = []string{strings.Repeat("00", 20)} }, ErrInvalidReporter},
		{"bad relayer", func(c *Config) { c.Bridge.Relayers = []string{"0x12"} }, ErrInvalidRelayer},
		{"store backend", func(c *Config) { c.Store.Backend = "rocksdb" }, ErrInvalidStoreBackend},
		{"store path", func(c *Config) { c.Store.Path = "" }, ErrEmptyStorePath},
		{"payload backend", func(c *Config) { c.Payload.Backend = "ipfs" }, ErrInvalidPayloadBackend},
		{"payload path", func(c *Config) { c.Payload.Path = "" }, ErrEmptyPayloadPath},
		{"eligibility mode", func(c *Config) { c.Eligibility.Mode = "stake" }, ErrInvalidEligibilityMode},
		{"vrf seed", func(c *Config) { c.Eligibility.Mode = EligibilityVRF }, ErrInvalidSeed},
		{"vrf threshold", func(c *Config) {
			c.Eligibility.Mode = EligibilityVRF
			c.Eligibility.Seed = strings.Repeat("11", 32)
			c.Eligibility.Threshold = 1.5
		}, ErrInvalidThreshold},
		{"rpc addr", func(c *Config) { c.RPC.ListenAddr = "" }, ErrEmptyRPCListenAddr},
		{"metrics namespace", func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.Namespace = ""
		}, ErrEmptyMetricsNamespace},
		{"log level", func(c *Config) { c.Logging.Level = "trace" }, ErrInvalidLogLevel},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, ErrInvalidLogFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			require.ErrorIs(t, cfg.Validate(), tt.want)
		})
	}

	t.Run("memory store needs no path", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Store = StoreConfig{Backend: "memory"}
		cfg.Payload = PayloadConfig{Backend: "memory"}
		require.NoError(t, cfg.Validate())
	})
}
