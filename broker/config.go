package broker

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/miladsoleymani/mockjms/core"
)

// EnvPrefix prefixes every environment variable LoadConfig reads, e.g.
// MOCKJMS_CLIENT_ID or MOCKJMS_LOG_LEVEL.
const EnvPrefix = "MOCKJMS"

// Config describes a connection factory and the destinations it starts
// with. Environment variables take precedence over the YAML file.
type Config struct {
	// ClientID is given to every connection the factory creates.
	ClientID string `yaml:"client_id" envconfig:"CLIENT_ID"`

	// CloneOnSend enqueues copies of sent messages instead of the messages
	// themselves.
	CloneOnSend bool `yaml:"clone_on_send" envconfig:"CLONE_ON_SEND"`

	// UseSelectors turns message selector evaluation on.
	UseSelectors bool `yaml:"use_selectors" envconfig:"USE_SELECTORS"`

	// AutoCreateDestinations lets sessions create queues and topics on
	// lookup.
	AutoCreateDestinations bool `yaml:"auto_create_destinations" envconfig:"AUTO_CREATE_DESTINATIONS"`

	// Queues and Topics are created with the factory.
	Queues []string `yaml:"queues" envconfig:"QUEUES"`
	Topics []string `yaml:"topics" envconfig:"TOPICS"`

	Log LogConfig `yaml:"log" envconfig:"LOG"`
}

// LogConfig represents logger configuration
type LogConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL"`   // debug, info, warn, error
	Format string `yaml:"format" envconfig:"FORMAT"` // json or console
}

// DefaultConfig returns the configuration LoadConfig starts from.
func DefaultConfig() Config {
	return Config{
		CloneOnSend:  true,
		UseSelectors: true,
		Log:          LogConfig{Level: "info", Format: "json"},
	}
}

// LoadConfig loads configuration from the YAML file at path, if path is not
// empty, then applies environment overrides.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	return decoder.Decode(cfg)
}

// Validate validates the configuration
func (c Config) Validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format: %q", c.Log.Format)
	}

	seen := make(map[string]bool)
	for _, name := range c.Queues {
		if name == "" {
			return fmt.Errorf("queue name is empty")
		}
		if seen[name] {
			return fmt.Errorf("queue %q listed twice", name)
		}
		seen[name] = true
	}
	seen = make(map[string]bool)
	for _, name := range c.Topics {
		if name == "" {
			return fmt.Errorf("topic name is empty")
		}
		if seen[name] {
			return fmt.Errorf("topic %q listed twice", name)
		}
		seen[name] = true
	}
	return nil
}

// Options converts the configuration to factory options.
func (c Config) Options() []core.Option {
	return []core.Option{
		core.WithClientID(c.ClientID),
		core.WithCloneOnSend(c.CloneOnSend),
		core.WithSelectors(c.UseSelectors),
		core.WithAutoCreateDestinations(c.AutoCreateDestinations),
	}
}
