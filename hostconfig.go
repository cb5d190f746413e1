package subsys

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides of host configuration keys,
// e.g. SUBSYS_LOGGING_LEVEL=debug
const EnvPrefix = "SUBSYS"

// HostConfig is the file-level configuration of a subsystem host
type HostConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics ListenConfig  `mapstructure:"metrics"`
	Health  ListenConfig  `mapstructure:"health"`

	// StopTimeout bounds each subsystem's Stop; 0 waits indefinitely
	StopTimeout time.Duration `mapstructure:"stop_timeout" validate:"gte=0"`

	// Kernel is the base property layer handed to every subsystem
	Kernel map[string]any `mapstructure:"kernel"`
	// System overrides Kernel key by key
	System map[string]any `mapstructure:"system"`
}

// LoggingConfig selects the root logger's level and encoding
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json console"`
}

// ListenConfig is an optional HTTP listener
type ListenConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr" validate:"required,hostname_port"`
}

// LoadHostConfig reads the host configuration from path, applying defaults
// and SUBSYS_* environment overrides. An empty path uses defaults and
// the environment only.
func LoadHostConfig(path string) (*HostConfig, error) {
	v := viper.New()

	v.SetDefault("logging.level", "INFO")
	v.SetDefault("logging.format", "console")
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", "127.0.0.1:9464")
	v.SetDefault("health.enabled", false)
	v.SetDefault("health.addr", "127.0.0.1:8086")
	v.SetDefault("stop_timeout", "30s")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var cfg HostConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the struct tags of cfg
func (c *HostConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// Properties returns the kernel layer overlaid by the system layer
func (c *HostConfig) Properties() Properties {
	return flattenProperties(c.Kernel).Overlay(flattenProperties(c.System))
}

// flattenProperties turns nested maps into dotted keys
func flattenProperties(m map[string]any) Properties {
	out := make(Properties)
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, v := range m {
			key := normalizeKey(prefix + k)
			if nested, ok := v.(map[string]any); ok {
				walk(key+".", nested)
				continue
			}
			out[key] = propertyString(v)
		}
	}
	walk("", m)
	return out
}
