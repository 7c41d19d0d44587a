package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level application configuration, assembled by Load
// from the layered sources described in SPEC_FULL.md §1.1.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Patterns PatternsConfig `mapstructure:"patterns"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Tracker  TrackerConfig  `mapstructure:"tracker"`
	Learner  LearnerConfig  `mapstructure:"learner"`
	EventBus EventBusConfig `mapstructure:"event_bus"`
}

// ServerConfig controls the C7 HTTP facade's bind address.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release
}

// StorageConfig controls the C3 Intent Store's on-disk document and
// recency-cap behavior.
type StorageConfig struct {
	Path       string `mapstructure:"path"`        // JSON document path
	MaxRecords int    `mapstructure:"max_records"` // R — recency cap, §3
}

// PatternsConfig controls where C2's PatternLibrary document is found and
// whether it is hot-reloaded via fsnotify.
type PatternsConfig struct {
	Path      string `mapstructure:"path"`
	HotReload bool   `mapstructure:"hot_reload"`
}

// DatabaseConfig configures the optional evaluated-prediction archive
// (SPEC_FULL.md §9 Open Question (b)). Empty Type disables the archive.
type DatabaseConfig struct {
	Type string `mapstructure:"type"` // "", sqlite, postgres
	DSN  string `mapstructure:"dsn"`
}

// LogConfig controls the zap logger built in internal/infrastructure/logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TrackerConfig controls the C5 Hit/Miss Tracker's expiry window and sweep
// cadence.
type TrackerConfig struct {
	PredictionWindow time.Duration `mapstructure:"prediction_window"` // W, §3
	SweepInterval    time.Duration `mapstructure:"sweep_interval"`
}

// LearnerConfig holds the C6 Domain Learner settings. TuningInterval sets
// how often the app's tuning loop polls; OrphanTagThreshold is loaded but
// not passed to the learner, which uses learner.DefaultOrphanTagThreshold.
type LearnerConfig struct {
	TuningInterval    time.Duration `mapstructure:"tuning_interval"`
	OrphanTagThreshold int          `mapstructure:"orphan_tag_threshold"`
}

// EventBusConfig controls whether the event bus (published on by C3 and
// C5) writes a WAL before dispatch, trading a little write latency for a crash-recovery
// trail of what was published.
type EventBusConfig struct {
	WALEnabled bool   `mapstructure:"wal_enabled"`
	WALDir     string `mapstructure:"wal_dir"`
}

// Load builds Config from defaults, the global (~/.aoa/config.yaml) and
// project-local (./.aoa/config.yaml) files, and AOA_-prefixed environment
// variables, in that priority order — mirroring the teacher's layered
// config.Load().
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Layer 1: global ~/.aoa/config.yaml
	v.AddConfigPath(HomeDir())
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read global config: %w", err)
		}
	}

	// Layer 2: project-local ./.aoa/config.yaml, merged on top
	localPath := filepath.Join(WorkspaceDirName, "config.yaml")
	if _, err := os.Stat(localPath); err == nil {
		v2 := viper.New()
		v2.SetConfigFile(localPath)
		if err := v2.ReadInConfig(); err == nil {
			_ = v.MergeConfigMap(v2.AllSettings())
		}
	}

	// Layer 3: environment variables, AOA_SERVER_PORT etc.
	v.SetEnvPrefix("AOA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")

	v.SetDefault("storage.path", filepath.Join(HomeDir(), "intent_store.json"))
	v.SetDefault("storage.max_records", 500)

	v.SetDefault("patterns.path", filepath.Join(HomeDir(), "patterns.json"))
	v.SetDefault("patterns.hot_reload", true)

	v.SetDefault("database.type", "")
	v.SetDefault("database.dsn", filepath.Join(HomeDir(), "archive.db"))

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("tracker.prediction_window", "15m")
	v.SetDefault("tracker.sweep_interval", "30s")

	v.SetDefault("learner.tuning_interval", "5m")
	v.SetDefault("learner.orphan_tag_threshold", 20)

	v.SetDefault("event_bus.wal_enabled", false)
	v.SetDefault("event_bus.wal_dir", filepath.Join(HomeDir(), "wal"))
}
