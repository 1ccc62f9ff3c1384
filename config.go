package leasefeed

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/arloliu/leasefeed/internal/partition"
	"github.com/arloliu/leasefeed/types"
)

// Lease version names accepted by Config.LeaseVersion.
const (
	LeaseVersionPartitionKeyRange = "partitionKeyRange"
	LeaseVersionEPKRange          = "epkRange"
)

// ============================================================================
// Timing model
// ============================================================================
//
// Four intervals drive lease ownership:
//
//	LeaseRenewInterval       owner rewrites its leases          (17s)
//	LeaseAcquireInterval     load balancer looks for work       (13s)
//	LeaseExpirationInterval  silence after which a lease is up  (60s)
//	verification window      VerificationFactor × renew + eps   (25 × 17s + 1s)
//
// Constraints:
//   - LeaseExpirationInterval > LeaseRenewInterval, otherwise healthy owners
//     lose leases between two renewals
//   - VerificationFactor >= 2, so a processor is only declared stalled after
//     several renewals went by without a completed fetch
//
// ============================================================================

// Config is the configuration of a Processor.
//
// All duration fields accept standard Go duration strings like "30s", "5m", "1h".
type Config struct {
	// HostName identifies this host as lease owner. Must be unique across hosts.
	// Default: a random UUID.
	HostName string `yaml:"hostName"`

	// LeasePrefix namespaces the lease documents of one processor group.
	LeasePrefix string `yaml:"leasePrefix"`

	// LeaseBucket is the NATS JetStream KV bucket holding the leases.
	LeaseBucket string `yaml:"leaseBucket"`

	// LeaseVersion selects the lease variant created for new ranges:
	// "partitionKeyRange" (default) or "epkRange".
	LeaseVersion string `yaml:"leaseVersion"`

	// LeaseRenewInterval is how often owned leases are renewed.
	LeaseRenewInterval time.Duration `yaml:"leaseRenewInterval"`

	// LeaseAcquireInterval is how often the load balancer looks for leases to take.
	LeaseAcquireInterval time.Duration `yaml:"leaseAcquireInterval"`

	// LeaseExpirationInterval is how long a lease may go unwritten before
	// other hosts consider its owner gone.
	LeaseExpirationInterval time.Duration `yaml:"leaseExpirationInterval"`

	// FeedPollDelay is the wait after an empty or throttled fetch.
	FeedPollDelay time.Duration `yaml:"feedPollDelay"`

	// MaxItemCount bounds the changes delivered per batch.
	MaxItemCount int `yaml:"maxItemCount"`

	// StartFromBeginning makes leases without continuation read the feed from
	// its start instead of from now.
	StartFromBeginning bool `yaml:"startFromBeginning"`

	// VerificationFactor multiplies LeaseRenewInterval to size the window in
	// which a processor must complete a fetch cycle.
	VerificationFactor int `yaml:"verificationFactor"`

	// VerificationEpsilon is added to the verification window.
	VerificationEpsilon time.Duration `yaml:"verificationEpsilon"`

	// SupervisorCheckInterval is the cadence of the liveness check
	// (0 = min(LeaseRenewInterval, 1s)).
	SupervisorCheckInterval time.Duration `yaml:"supervisorCheckInterval"`

	// InitializationLockTTL bounds how long a crashed bootstrapping host blocks the others.
	InitializationLockTTL time.Duration `yaml:"initializationLockTtl"`

	// BootstrapRetryDelay is the wait while another host initializes the leases.
	BootstrapRetryDelay time.Duration `yaml:"bootstrapRetryDelay"`

	// MinScaleCount is the number of leases this host always tries to own (0 = no minimum).
	MinScaleCount int `yaml:"minScaleCount"`

	// MaxScaleCount caps the leases this host owns (0 = unlimited).
	MaxScaleCount int `yaml:"maxScaleCount"`

	// OperationTimeout bounds lease writes made outside a running partition,
	// such as releases during shutdown.
	OperationTimeout time.Duration `yaml:"operationTimeout"`

	// StartupTimeout bounds bootstrap and re-adoption in Start.
	StartupTimeout time.Duration `yaml:"startupTimeout"`

	// ShutdownTimeout bounds Stop.
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// DefaultConfig returns a Config with production defaults.
//
// HostName is left empty; SetDefaults fills it with a random UUID.
//
// Returns:
//   - Config: Configuration with default values
func DefaultConfig() Config {
	return Config{
		LeasePrefix:             "leasefeed",
		LeaseBucket:             "leasefeed-leases",
		LeaseVersion:            LeaseVersionPartitionKeyRange,
		LeaseRenewInterval:      17 * time.Second,
		LeaseAcquireInterval:    13 * time.Second,
		LeaseExpirationInterval: 60 * time.Second,
		FeedPollDelay:           5 * time.Second,
		MaxItemCount:            100,
		VerificationFactor:      partition.DefaultVerificationFactor,
		VerificationEpsilon:     partition.DefaultVerificationEpsilon,
		InitializationLockTTL:   30 * time.Second,
		BootstrapRetryDelay:     time.Second,
		OperationTimeout:        10 * time.Second,
		StartupTimeout:          30 * time.Second,
		ShutdownTimeout:         10 * time.Second,
	}
}

// SetDefaults fills in missing configuration values with production defaults.
//
// Parameters:
//   - cfg: Config to apply defaults to (modified in place)
func SetDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.HostName == "" {
		cfg.HostName = uuid.NewString()
	}
	if cfg.LeasePrefix == "" {
		cfg.LeasePrefix = defaults.LeasePrefix
	}
	if cfg.LeaseBucket == "" {
		cfg.LeaseBucket = defaults.LeaseBucket
	}
	if cfg.LeaseVersion == "" {
		cfg.LeaseVersion = defaults.LeaseVersion
	}
	if cfg.LeaseRenewInterval == 0 {
		cfg.LeaseRenewInterval = defaults.LeaseRenewInterval
	}
	if cfg.LeaseAcquireInterval == 0 {
		cfg.LeaseAcquireInterval = defaults.LeaseAcquireInterval
	}
	if cfg.LeaseExpirationInterval == 0 {
		cfg.LeaseExpirationInterval = defaults.LeaseExpirationInterval
	}
	if cfg.FeedPollDelay == 0 {
		cfg.FeedPollDelay = defaults.FeedPollDelay
	}
	if cfg.MaxItemCount == 0 {
		cfg.MaxItemCount = defaults.MaxItemCount
	}
	if cfg.VerificationFactor == 0 {
		cfg.VerificationFactor = defaults.VerificationFactor
	}
	if cfg.VerificationEpsilon == 0 {
		cfg.VerificationEpsilon = defaults.VerificationEpsilon
	}
	if cfg.InitializationLockTTL == 0 {
		cfg.InitializationLockTTL = defaults.InitializationLockTTL
	}
	if cfg.BootstrapRetryDelay == 0 {
		cfg.BootstrapRetryDelay = defaults.BootstrapRetryDelay
	}
	if cfg.OperationTimeout == 0 {
		cfg.OperationTimeout = defaults.OperationTimeout
	}
	if cfg.StartupTimeout == 0 {
		cfg.StartupTimeout = defaults.StartupTimeout
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = defaults.ShutdownTimeout
	}
	// SupervisorCheckInterval, MinScaleCount and MaxScaleCount keep 0 as a meaningful value.
}

// Validate checks configuration constraints.
//
// Hard Validation Rules:
//   - every interval and timeout > 0
//   - LeaseExpirationInterval > LeaseRenewInterval
//   - VerificationFactor >= 2
//   - MaxItemCount > 0
//   - MinScaleCount, MaxScaleCount >= 0 and MaxScaleCount == 0 || MaxScaleCount >= MinScaleCount
//   - LeaseVersion is a known variant
//
// Returns:
//   - error: ErrInvalidConfig wrapped with the violated rule, nil if valid
func (cfg *Config) Validate() error {
	if cfg.HostName == "" {
		return fmt.Errorf("%w: HostName is required", ErrInvalidConfig)
	}
	if cfg.LeasePrefix == "" || cfg.LeaseBucket == "" {
		return fmt.Errorf("%w: LeasePrefix and LeaseBucket are required", ErrInvalidConfig)
	}
	if _, err := cfg.leaseVersion(); err != nil {
		return err
	}

	positive := []struct {
		name  string
		value time.Duration
	}{
		{"LeaseRenewInterval", cfg.LeaseRenewInterval},
		{"LeaseAcquireInterval", cfg.LeaseAcquireInterval},
		{"LeaseExpirationInterval", cfg.LeaseExpirationInterval},
		{"FeedPollDelay", cfg.FeedPollDelay},
		{"VerificationEpsilon", cfg.VerificationEpsilon},
		{"InitializationLockTTL", cfg.InitializationLockTTL},
		{"BootstrapRetryDelay", cfg.BootstrapRetryDelay},
		{"OperationTimeout", cfg.OperationTimeout},
		{"StartupTimeout", cfg.StartupTimeout},
		{"ShutdownTimeout", cfg.ShutdownTimeout},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return fmt.Errorf("%w: %s must be > 0, got %v", ErrInvalidConfig, p.name, p.value)
		}
	}
	if cfg.SupervisorCheckInterval < 0 {
		return fmt.Errorf("%w: SupervisorCheckInterval must be >= 0, got %v", ErrInvalidConfig, cfg.SupervisorCheckInterval)
	}

	if cfg.LeaseExpirationInterval <= cfg.LeaseRenewInterval {
		return fmt.Errorf(
			"%w: LeaseExpirationInterval (%v) must be > LeaseRenewInterval (%v)",
			ErrInvalidConfig, cfg.LeaseExpirationInterval, cfg.LeaseRenewInterval,
		)
	}
	if cfg.VerificationFactor < 2 {
		return fmt.Errorf("%w: VerificationFactor must be >= 2, got %d", ErrInvalidConfig, cfg.VerificationFactor)
	}
	if cfg.MaxItemCount <= 0 {
		return fmt.Errorf("%w: MaxItemCount must be > 0, got %d", ErrInvalidConfig, cfg.MaxItemCount)
	}
	if cfg.MinScaleCount < 0 || cfg.MaxScaleCount < 0 {
		return fmt.Errorf("%w: MinScaleCount and MaxScaleCount must be >= 0", ErrInvalidConfig)
	}
	if cfg.MaxScaleCount > 0 && cfg.MaxScaleCount < cfg.MinScaleCount {
		return fmt.Errorf(
			"%w: MaxScaleCount (%d) must be >= MinScaleCount (%d)",
			ErrInvalidConfig, cfg.MaxScaleCount, cfg.MinScaleCount,
		)
	}

	return nil
}

// ValidateWithWarnings logs warnings for values that are valid but not recommended.
//
// Parameters:
//   - logger: Logger instance for warning output
func (cfg *Config) ValidateWithWarnings(logger Logger) {
	if cfg.LeaseExpirationInterval < 2*cfg.LeaseRenewInterval {
		logger.Warn(
			"LeaseExpirationInterval leaves room for less than two renewals",
			"lease_expiration_interval", cfg.LeaseExpirationInterval,
			"lease_renew_interval", cfg.LeaseRenewInterval,
			"recommended", 2*cfg.LeaseRenewInterval,
		)
	}

	if cfg.LeaseAcquireInterval > cfg.LeaseExpirationInterval {
		logger.Warn(
			"LeaseAcquireInterval exceeds LeaseExpirationInterval, orphaned leases are picked up late",
			"lease_acquire_interval", cfg.LeaseAcquireInterval,
			"lease_expiration_interval", cfg.LeaseExpirationInterval,
		)
	}

	if cfg.FeedPollDelay > time.Duration(cfg.VerificationFactor)*cfg.LeaseRenewInterval {
		logger.Warn(
			"FeedPollDelay exceeds the verification window, idle partitions may be torn down",
			"feed_poll_delay", cfg.FeedPollDelay,
			"verification_factor", cfg.VerificationFactor,
		)
	}
}

// leaseVersion maps the configured variant name.
func (cfg *Config) leaseVersion() (types.LeaseVersion, error) {
	switch cfg.LeaseVersion {
	case LeaseVersionPartitionKeyRange, "":
		return types.LeaseVersionPartitionKeyRange, nil
	case LeaseVersionEPKRange:
		return types.LeaseVersionEPKRange, nil
	default:
		return 0, fmt.Errorf("%w: unknown LeaseVersion %q", ErrInvalidConfig, cfg.LeaseVersion)
	}
}

// TestConfig returns a configuration with fast timings for tests.
//
// Returns:
//   - Config: Configuration with fast timings
//
// Example:
//
//	cfg := leasefeed.TestConfig()
//	cfg.HostName = "host-a"
//	proc, err := leasefeed.NewProcessor(&cfg, nc, src, observers)
func TestConfig() Config {
	cfg := DefaultConfig()

	cfg.LeaseRenewInterval = 100 * time.Millisecond
	cfg.LeaseAcquireInterval = 50 * time.Millisecond
	cfg.LeaseExpirationInterval = 500 * time.Millisecond
	cfg.FeedPollDelay = 10 * time.Millisecond
	cfg.VerificationEpsilon = 100 * time.Millisecond
	cfg.InitializationLockTTL = 2 * time.Second
	cfg.BootstrapRetryDelay = 20 * time.Millisecond
	cfg.OperationTimeout = 2 * time.Second
	cfg.StartupTimeout = 5 * time.Second
	cfg.ShutdownTimeout = 5 * time.Second
	cfg.StartFromBeginning = true

	return cfg
}

// ParseConfig decodes a YAML document into a Config and applies defaults.
//
// Parameters:
//   - data: YAML document
//
// Returns:
//   - Config: Decoded configuration with defaults applied
//   - error: Decoding or validation error
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	SetDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadConfig reads and decodes a YAML configuration file.
//
// Parameters:
//   - path: Path of the YAML file
//
// Returns:
//   - Config: Decoded configuration with defaults applied
//   - error: Read, decoding or validation error
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	return ParseConfig(data)
}
