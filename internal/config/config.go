package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the system configuration recognized by the compiler and
// runtime evaluator (spec §6).
type Config struct {
	Version            int          `mapstructure:"version"`
	ValidSensors        []string     `mapstructure:"validSensors"`
	CycleTime            int          `mapstructure:"cycleTime"`           // milliseconds
	BufferCapacity       int          `mapstructure:"bufferCapacity"`      // default ring buffer capacity
	MaxDependencyDepth   int          `mapstructure:"maxDependencyDepth"`
	TemporalMode         TemporalMode `mapstructure:"temporalMode"`
	LogLevel             string       `mapstructure:"logLevel"`
	Store                StoreConfig  `mapstructure:"store"`
}

// TemporalMode controls evaluator-wide temporal-predicate behavior.
type TemporalMode struct {
	ExtendedLastKnown bool `mapstructure:"extendedLastKnown"`
}

// StoreConfig is opaque configuration passed through to whichever Store
// adapter the embedding binary selects (kind plus adapter-specific options).
type StoreConfig struct {
	Kind    string                 `mapstructure:"kind"` // memory|disk|bolt
	Options map[string]interface{} `mapstructure:"options"`
}

// Load reads configuration from file and environment variables.
// Priority: env vars > config file > defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	// BEACON_CYCLETIME, BEACON_STORE_KIND, etc.
	v.SetEnvPrefix("BEACON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("version", 3)
	v.SetDefault("cycleTime", 1000)
	v.SetDefault("bufferCapacity", 64)
	v.SetDefault("maxDependencyDepth", 10)
	v.SetDefault("temporalMode.extendedLastKnown", false)
	v.SetDefault("logLevel", "info")
	v.SetDefault("store.kind", "memory")
}
