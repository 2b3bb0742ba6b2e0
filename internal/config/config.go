// Package config loads the bot's YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so "30s" / "5m" strings parse from
// YAML; yaml.v3 has no native duration support.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full serve-time configuration. Zero values are filled
// by ApplyDefaults; secrets (API keys, tokens) come from the
// environment, never from this file.
type Config struct {
	General struct {
		LogLevel string `yaml:"log_level"` // debug|info|warn|error
	} `yaml:"general"`

	Storage struct {
		Path string `yaml:"path"` // SQLite database file
	} `yaml:"storage"`

	Scheduler struct {
		SweepInterval Duration `yaml:"sweep_interval"`
	} `yaml:"scheduler"`

	Match struct {
		Duration        Duration `yaml:"duration"`
		OperatorChannel string   `yaml:"operator_channel"`
	} `yaml:"match"`

	Community struct {
		BirthdayChannel  string `yaml:"birthday_channel"`
		BirthdaySchedule string `yaml:"birthday_schedule"` // cron expression
		OperatorEmail    string `yaml:"operator_email"`
	} `yaml:"community"`

	LLM struct {
		Model string `yaml:"model"`
	} `yaml:"llm"`
}

// Load reads and parses the config file at path, applying defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// Default returns a config with every default applied, for running
// without a config file.
func Default() *Config {
	var cfg Config
	cfg.ApplyDefaults()
	return &cfg
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.General.LogLevel == "" {
		c.General.LogLevel = "info"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "huddle.db"
	}
	if c.Scheduler.SweepInterval <= 0 {
		c.Scheduler.SweepInterval = Duration(time.Minute)
	}
	if c.Match.Duration <= 0 {
		c.Match.Duration = Duration(5 * time.Minute)
	}
	if c.Community.BirthdaySchedule == "" {
		c.Community.BirthdaySchedule = "0 9 * * *"
	}
}
