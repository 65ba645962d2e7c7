package config

import (
	"slices"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Scoring   ScoringConfig   `yaml:"scoring" mapstructure:"scoring"`
	Discovery DiscoveryConfig `yaml:"discovery" mapstructure:"discovery"`
	Schedule  ScheduleConfig  `yaml:"schedule" mapstructure:"schedule"`
	Aggregate AggregateConfig `yaml:"aggregate" mapstructure:"aggregate"`
	Notify    NotifyConfig    `yaml:"notify" mapstructure:"notify"`
	Metrics   MetricsConfig   `yaml:"metrics" mapstructure:"metrics"`
	Redis     RedisConfig     `yaml:"redis" mapstructure:"redis"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ScoringConfig controls market score jitter.
type ScoringConfig struct {
	Jitter bool   `yaml:"jitter" mapstructure:"jitter"`
	Seed   uint64 `yaml:"seed" mapstructure:"seed"` // 0 seeds from the clock
}

// DiscoveryConfig configures a discovery run.
type DiscoveryConfig struct {
	RejectBelow      float64       `yaml:"reject_below" mapstructure:"reject_below"`
	PromoteAtOrAbove float64       `yaml:"promote_at_or_above" mapstructure:"promote_at_or_above"`
	IdeasPerRun      int           `yaml:"ideas_per_run" mapstructure:"ideas_per_run"`
	LookbackDays     int           `yaml:"lookback_days" mapstructure:"lookback_days"`
	HistoryLimit     int           `yaml:"history_limit" mapstructure:"history_limit"`
	PlanLimit        int           `yaml:"plan_limit" mapstructure:"plan_limit"`
	PaceInterval     time.Duration `yaml:"pace_interval" mapstructure:"pace_interval"`
	Concurrency      int           `yaml:"concurrency" mapstructure:"concurrency"`
	CommitAttempts   int           `yaml:"commit_attempts" mapstructure:"commit_attempts"`
	CommitDelay      time.Duration `yaml:"commit_delay" mapstructure:"commit_delay"`
	IdeasFile        string        `yaml:"ideas_file" mapstructure:"ideas_file"`
}

// ScheduleConfig configures the scheduler daemon.
type ScheduleConfig struct {
	Hours        []int         `yaml:"hours" mapstructure:"hours"`
	MinuteWindow int           `yaml:"minute_window" mapstructure:"minute_window"`
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
	Timezone     string        `yaml:"timezone" mapstructure:"timezone"`
	Lock         string        `yaml:"lock" mapstructure:"lock"` // none or redis
	LockTTL      time.Duration `yaml:"lock_ttl" mapstructure:"lock_ttl"`
}

// AggregateConfig holds the insight rule thresholds.
type AggregateConfig struct {
	HighScore   float64       `yaml:"high_score" mapstructure:"high_score"`
	LowScore    float64       `yaml:"low_score" mapstructure:"low_score"`
	MinHigh     int           `yaml:"min_high" mapstructure:"min_high"`
	MinLow      int           `yaml:"min_low" mapstructure:"min_low"`
	MinPromoted int           `yaml:"min_promoted" mapstructure:"min_promoted"`
	Window      time.Duration `yaml:"window" mapstructure:"window"`
}

// NotifyConfig configures run notifications.
type NotifyConfig struct {
	Enabled            bool     `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL         string   `yaml:"webhook_url" mapstructure:"webhook_url"`
	KafkaBrokers       []string `yaml:"kafka_brokers" mapstructure:"kafka_brokers"`
	KafkaTopic         string   `yaml:"kafka_topic" mapstructure:"kafka_topic"`
	HighScoreThreshold float64  `yaml:"high_score_threshold" mapstructure:"high_score_threshold"`
	MaxListed          int      `yaml:"max_listed" mapstructure:"max_listed"`
}

// MetricsConfig configures the daemon's HTTP listener.
type MetricsConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// RedisConfig holds the Redis connection used by the schedule lock.
type RedisConfig struct {
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	// Keys without a default still need registering so their SCOUT_ env
	// variables are read by Unmarshal.
	for _, key := range []string{
		"store.database_url", "scoring.seed", "discovery.ideas_file",
		"schedule.timezone", "notify.webhook_url", "notify.kafka_brokers",
		"redis.password", "redis.db",
	} {
		_ = v.BindEnv(key)
	}

	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("scoring.jitter", true)
	v.SetDefault("discovery.reject_below", 60)
	v.SetDefault("discovery.promote_at_or_above", 70)
	v.SetDefault("discovery.ideas_per_run", 3)
	v.SetDefault("discovery.lookback_days", 7)
	v.SetDefault("discovery.history_limit", 500)
	v.SetDefault("discovery.plan_limit", 200)
	v.SetDefault("discovery.pace_interval", "2s")
	v.SetDefault("discovery.concurrency", 1)
	v.SetDefault("discovery.commit_attempts", 3)
	v.SetDefault("discovery.commit_delay", "1s")
	v.SetDefault("schedule.hours", []int{9})
	v.SetDefault("schedule.minute_window", 2)
	v.SetDefault("schedule.poll_interval", "30s")
	v.SetDefault("schedule.lock", "none")
	v.SetDefault("schedule.lock_ttl", "1h")
	v.SetDefault("aggregate.high_score", 85)
	v.SetDefault("aggregate.low_score", 50)
	v.SetDefault("aggregate.min_high", 3)
	v.SetDefault("aggregate.min_low", 5)
	v.SetDefault("aggregate.min_promoted", 10)
	v.SetDefault("aggregate.window", "24h")
	v.SetDefault("notify.enabled", true)
	v.SetDefault("notify.kafka_topic", "idea-scout.events")
	v.SetDefault("notify.high_score_threshold", 85)
	v.SetDefault("notify.max_listed", 5)
	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("redis.addr", "localhost:6379")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

var drivers = []string{"postgres", "sqlite", "memory"}

// Validate checks the settings the given command needs. Modes: discover,
// schedule, aggregate, migrate. All problems are reported together.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "discover", "schedule", "aggregate", "migrate":
	default:
		return eris.Errorf("config: unknown validation mode %q", mode)
	}

	if !slices.Contains(drivers, c.Store.Driver) {
		errs = append(errs, "store.driver must be one of postgres, sqlite, memory")
	} else if c.Store.Driver != "memory" && c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}

	if mode == "discover" || mode == "schedule" {
		d := c.Discovery
		if d.RejectBelow < 0 || d.PromoteAtOrAbove > 100 || d.RejectBelow > d.PromoteAtOrAbove {
			errs = append(errs, "discovery thresholds must satisfy 0 <= reject_below <= promote_at_or_above <= 100")
		}
		if d.IdeasPerRun <= 0 {
			errs = append(errs, "discovery.ideas_per_run must be positive")
		}
		if d.Concurrency < 0 {
			errs = append(errs, "discovery.concurrency must not be negative")
		}
		if c.Notify.Enabled && len(c.Notify.KafkaBrokers) > 0 && c.Notify.KafkaTopic == "" {
			errs = append(errs, "notify.kafka_topic is required with kafka_brokers")
		}
	}

	if mode == "schedule" {
		s := c.Schedule
		if len(s.Hours) == 0 {
			errs = append(errs, "schedule.hours is required")
		}
		for _, h := range s.Hours {
			if h < 0 || h > 23 {
				errs = append(errs, "schedule.hours must be within [0,23]")
				break
			}
		}
		if s.MinuteWindow < 0 || s.MinuteWindow > 59 {
			errs = append(errs, "schedule.minute_window must be within [0,59]")
		}
		if s.PollInterval <= 0 {
			errs = append(errs, "schedule.poll_interval must be positive")
		}
		if s.Timezone != "" {
			if _, err := time.LoadLocation(s.Timezone); err != nil {
				errs = append(errs, "schedule.timezone is not a known zone")
			}
		}
		switch s.Lock {
		case "", "none":
		case "redis":
			if c.Redis.Addr == "" {
				errs = append(errs, "redis.addr is required with schedule.lock=redis")
			}
		default:
			errs = append(errs, "schedule.lock must be none or redis")
		}
	}

	if mode == "aggregate" || mode == "schedule" {
		a := c.Aggregate
		if a.LowScore > a.HighScore {
			errs = append(errs, "aggregate.low_score must not exceed aggregate.high_score")
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
