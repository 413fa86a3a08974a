package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Scorer     ScorerConfig     `yaml:"scorer"`
	Matching   MatchingConfig   `yaml:"matching"`
	Allocation AllocationConfig `yaml:"allocation"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
}

// ServerConfig holds the server-related configuration. RequestIPHeader names
// a trusted proxy header used as the rate-limit key instead of the peer
// address; empty means the connection address is used.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RequestIPHeader string  `yaml:"request_ip_header"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// ScorerConfig holds the settings for the external compatibility scorer.
type ScorerConfig struct {
	BaseURL        string            `yaml:"base_url"`
	Headers        map[string]string `yaml:"headers"`
	TimeoutSeconds int               `yaml:"timeout_seconds"`
	Timeout        time.Duration     `yaml:"-"` // Ignored by YAML parser
}

// MatchingConfig holds the group-formation settings.
type MatchingConfig struct {
	Enabled             bool          `yaml:"enabled"`
	MinGroupScore       float64       `yaml:"min_group_score"`
	AllowPartialGroups  bool          `yaml:"allow_partial_groups"`
	PartialSlack        int           `yaml:"partial_slack"`
	PassIntervalSeconds int           `yaml:"pass_interval_seconds"`
	PassInterval        time.Duration `yaml:"-"`
	Capacities          []int         `yaml:"capacities"`
}

// AllocationConfig holds hold lifetime, conflict retry and refund settings.
type AllocationConfig struct {
	HoldTTLHours         int           `yaml:"hold_ttl_hours"`
	HoldTTL              time.Duration `yaml:"-"`
	SweepIntervalSeconds int           `yaml:"sweep_interval_seconds"`
	SweepInterval        time.Duration `yaml:"-"`
	ConflictRetries      int           `yaml:"conflict_retries"`
	RetryBackoffMillis   int           `yaml:"retry_backoff_millis"`
	RetryBackoff         time.Duration `yaml:"-"`
	Refund               RefundConfig  `yaml:"refund"`
}

// RefundConfig selects the refund proration policy applied on
// transfer and deallocation. Kind is one of "none", "full", "prorated".
type RefundConfig struct {
	Kind     string `yaml:"kind"`
	TermDays int    `yaml:"term_days"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 30
	}

	if cfg.Scorer.TimeoutSeconds <= 0 {
		cfg.Scorer.TimeoutSeconds = 10
	}
	cfg.Scorer.Timeout = time.Duration(cfg.Scorer.TimeoutSeconds) * time.Second

	if cfg.Matching.MinGroupScore <= 0 {
		cfg.Matching.MinGroupScore = 60
	}
	if cfg.Matching.PartialSlack < 0 {
		cfg.Matching.PartialSlack = 0
	}
	if cfg.Matching.PassIntervalSeconds <= 0 {
		cfg.Matching.PassIntervalSeconds = 3600
	}
	cfg.Matching.PassInterval = time.Duration(cfg.Matching.PassIntervalSeconds) * time.Second
	if len(cfg.Matching.Capacities) == 0 {
		cfg.Matching.Capacities = []int{2, 3, 4}
	}

	if cfg.Allocation.HoldTTLHours <= 0 {
		cfg.Allocation.HoldTTLHours = 24
	}
	cfg.Allocation.HoldTTL = time.Duration(cfg.Allocation.HoldTTLHours) * time.Hour

	if cfg.Allocation.SweepIntervalSeconds <= 0 {
		cfg.Allocation.SweepIntervalSeconds = 300
	}
	cfg.Allocation.SweepInterval = time.Duration(cfg.Allocation.SweepIntervalSeconds) * time.Second

	if cfg.Allocation.ConflictRetries <= 0 {
		cfg.Allocation.ConflictRetries = 3
	}
	if cfg.Allocation.RetryBackoffMillis <= 0 {
		cfg.Allocation.RetryBackoffMillis = 50
	}
	cfg.Allocation.RetryBackoff = time.Duration(cfg.Allocation.RetryBackoffMillis) * time.Millisecond

	switch cfg.Allocation.Refund.Kind {
	case "none", "full", "prorated":
	case "":
		cfg.Allocation.Refund.Kind = "prorated"
	default:
		log.Printf("unknown refund kind %q; defaulting to prorated", cfg.Allocation.Refund.Kind)
		cfg.Allocation.Refund.Kind = "prorated"
	}
	if cfg.Allocation.Refund.TermDays <= 0 {
		cfg.Allocation.Refund.TermDays = 180
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}

	return &cfg, nil
}
