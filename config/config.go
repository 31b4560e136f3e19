// Package config provides configuration loading for the prisma shell.
//
// Configuration comes from a single YAML file named by the --config flag or
// the PRISMA_CONFIG environment variable. Values missing from the file keep
// their defaults; command-line flags override individual values afterwards.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kabili207/prisma-go/core/store"
	"github.com/kabili207/prisma-go/device/beacon"
	"github.com/kabili207/prisma-go/transport/mqtt"
	"github.com/kabili207/prisma-go/transport/serial"
)

// EnvVar names the environment variable holding the config file path.
const EnvVar = "PRISMA_CONFIG"

var (
	ErrInvalidKeySeed  = errors.New("key_seed must be 64 hex characters")
	ErrInvalidExpiry   = errors.New("expiry delays must be positive")
	ErrInvalidInterval = errors.New("beacon interval must not be negative")
	ErrMissingRoom     = errors.New("mqtt.room is required when mqtt.broker is set")
)

// Config is the configuration of one prisma process.
type Config struct {
	// Name is the shell's display name, announced to terminals.
	Name string `yaml:"name"`

	// KeySeed is the hex-encoded 32-byte Ed25519 seed of the shell key. A
	// random key is generated when empty.
	KeySeed string `yaml:"key_seed"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// Console enables the stdin command console.
	Console bool `yaml:"console"`

	Expiry ExpiryConfig `yaml:"expiry"`
	Beacon BeaconConfig `yaml:"beacon"`
	MQTT   MQTTConfig   `yaml:"mqtt"`
	Serial SerialConfig `yaml:"serial"`
}

// ExpiryConfig sets the removal delays for ephemeral content.
type ExpiryConfig struct {
	// Post is the delay for ephemeral posts. Default: 10s
	Post time.Duration `yaml:"post"`
	// Chat is the delay for chat messages. Default: 5s
	Chat time.Duration `yaml:"chat"`
}

// BeaconConfig configures announce frames.
type BeaconConfig struct {
	// Interval between announces. 0 disables periodic announces. Default: 2m
	Interval time.Duration `yaml:"interval"`
}

// MQTTConfig configures the MQTT transport. The transport is disabled when
// Broker is empty.
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	UseTLS      bool   `yaml:"use_tls"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
	Room        string `yaml:"room"`
}

// SerialConfig configures the serial transport. The transport is disabled
// when Port is empty.
type SerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Name:     "prisma",
		LogLevel: "info",
		Console:  true,
		Expiry: ExpiryConfig{
			Post: store.DefaultPostExpiry,
			Chat: store.DefaultChatExpiry,
		},
		Beacon: BeaconConfig{
			Interval: beacon.DefaultInterval,
		},
		MQTT: MQTTConfig{
			TopicPrefix: mqtt.DefaultTopicPrefix,
		},
		Serial: SerialConfig{
			BaudRate: serial.DefaultBaudRate,
		},
	}
}

// Load loads the file named by PRISMA_CONFIG, or returns the defaults when
// the variable is unset.
func Load() (*Config, error) {
	path := os.Getenv(EnvVar)
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile loads configuration from path over the defaults and validates it.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and cross-field requirements.
func (c *Config) Validate() error {
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	if c.KeySeed != "" {
		seed, err := hex.DecodeString(c.KeySeed)
		if err != nil || len(seed) != 32 {
			return ErrInvalidKeySeed
		}
	}
	if c.Expiry.Post <= 0 || c.Expiry.Chat <= 0 {
		return ErrInvalidExpiry
	}
	if c.Beacon.Interval < 0 {
		return ErrInvalidInterval
	}
	if c.MQTT.Broker != "" && c.MQTT.Room == "" {
		return ErrMissingRoom
	}
	return nil
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	return level, nil
}
