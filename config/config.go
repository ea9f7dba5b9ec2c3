// Package config selects GiveBit endpoints and tuning for the SDK.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied by Apply when the corresponding field is zero.
const (
	DefaultReconnectMaxAttempts = 5
	DefaultReconnectBaseDelay   = time.Second
	DefaultHeartbeatInterval    = 30 * time.Second
	DefaultCallTimeout          = 10 * time.Second
	DefaultPollInterval         = 5 * time.Second
)

// Environment pins an endpoint pair and chain identifier.
type Environment struct {
	APIURL    string `yaml:"api_url"`
	StreamURL string `yaml:"stream_url"`
	ChainID   int64  `yaml:"chain_id"`
}

var environments = map[string]Environment{
	"mainnet": {
		APIURL:    "https://api.givebit.io",
		StreamURL: "wss://stream.givebit.io/v1/events",
		ChainID:   1,
	},
	"testnet": {
		APIURL:    "https://api.testnet.givebit.io",
		StreamURL: "wss://stream.testnet.givebit.io/v1/events",
		ChainID:   11155111,
	},
}

// LookupEnvironment resolves a named environment ("mainnet" or "testnet").
func LookupEnvironment(name string) (Environment, bool) {
	env, ok := environments[name]
	return env, ok
}

// Config carries credentials, endpoint selection and timing knobs.
// Endpoint fields left empty are filled from the named Environment.
type Config struct {
	Environment string `yaml:"environment"`
	APIURL      string `yaml:"api_url"`
	StreamURL   string `yaml:"stream_url"`
	ChainID     int64  `yaml:"chain_id"`

	APIKey    string `yaml:"api_key"`
	ProjectID string `yaml:"project_id"`

	ReconnectMaxAttempts int           `yaml:"reconnect_max_attempts"`
	ReconnectBaseDelay   time.Duration `yaml:"reconnect_base_delay"`
	HeartbeatInterval    time.Duration `yaml:"heartbeat_interval"`
	CallTimeout          time.Duration `yaml:"call_timeout"`
	PollInterval         time.Duration `yaml:"poll_interval"`
}

// Apply resolves the environment and fills zero fields with defaults.
// Explicit endpoint overrides win over the environment's endpoints.
func (c *Config) Apply() error {
	name := c.Environment
	if name == "" {
		name = "mainnet"
	}
	env, ok := LookupEnvironment(name)
	if !ok {
		return fmt.Errorf("unknown environment %q", name)
	}
	if c.APIURL == "" {
		c.APIURL = env.APIURL
	}
	if c.StreamURL == "" {
		c.StreamURL = env.StreamURL
	}
	if c.ChainID == 0 {
		c.ChainID = env.ChainID
	}
	if c.ReconnectMaxAttempts == 0 {
		c.ReconnectMaxAttempts = DefaultReconnectMaxAttempts
	}
	if c.ReconnectBaseDelay == 0 {
		c.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.CallTimeout == 0 {
		c.CallTimeout = DefaultCallTimeout
	}
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
	return nil
}

// Load reads a YAML config file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Apply(); err != nil {
		return nil, err
	}
	return cfg, nil
}
