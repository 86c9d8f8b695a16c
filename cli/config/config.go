package config

import (
	"fmt"
	"time"
)

// Config represents a chaossec.yaml configuration file.
// All values are optional and act as defaults for chaossec run flags.
// CLI flags always override config values.
type Config struct {
	SafetyMode *bool  `yaml:"safety_mode,omitempty"`
	Target     string `yaml:"target"`

	Oracle  OracleConfig  `yaml:"oracle"`
	Twin    TwinConfig    `yaml:"twin"`
	Scanner ScannerConfig `yaml:"scanner"`
	Chaos   ChaosConfig   `yaml:"chaos"`
	Monitor MonitorConfig `yaml:"monitor"`
	Report  ReportConfig  `yaml:"report"`
	History HistoryConfig `yaml:"history"`
	Adapter AdapterConfig `yaml:"adapter"`
}

// SafetyEnabled reports the effective safety mode. Safety defaults to ON;
// it is disabled only by an explicit safety_mode: false.
func (c *Config) SafetyEnabled() bool {
	return c.SafetyMode == nil || *c.SafetyMode
}

// OracleConfig holds decision oracle defaults from the config file.
type OracleConfig struct {
	BaseURL string   `yaml:"base_url,omitempty"`
	APIKey  string   `yaml:"api_key,omitempty"`
	Model   string   `yaml:"model,omitempty"`
	Timeout Duration `yaml:"timeout,omitempty"`
}

// CredentialConfig is an OAuth2 client-credentials block shared by the
// services that require bearer authentication.
type CredentialConfig struct {
	TokenURL     string `yaml:"token_url"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Scope        string `yaml:"scope,omitempty"`
}

// Configured reports whether the block carries a usable credential set.
func (c CredentialConfig) Configured() bool {
	return c.TokenURL != "" && c.ClientID != "" && c.ClientSecret != ""
}

// TwinConfig holds digital-twin service defaults from the config file.
type TwinConfig struct {
	URL     string           `yaml:"url"`
	Auth    CredentialConfig `yaml:"auth"`
	Timeout Duration         `yaml:"timeout,omitempty"`
}

// ScannerConfig holds IaC scanner defaults from the config file.
type ScannerConfig struct {
	Binary  string   `yaml:"binary,omitempty"`
	Rules   string   `yaml:"rules,omitempty"`
	Paths   []string `yaml:"paths,omitempty"`
	Timeout Duration `yaml:"timeout,omitempty"`
}

// ChaosConfig holds chaos injector defaults from the config file.
type ChaosConfig struct {
	Region  string   `yaml:"region,omitempty"`
	Profile string   `yaml:"profile,omitempty"`
	Timeout Duration `yaml:"timeout,omitempty"`
}

// MonitorConfig holds monitoring collector defaults from the config file.
type MonitorConfig struct {
	Region string   `yaml:"region,omitempty"`
	Window Duration `yaml:"window,omitempty"`
}

// ReportConfig holds compliance reporting defaults from the config file.
type ReportConfig struct {
	URL         string           `yaml:"url,omitempty"`
	Auth        CredentialConfig `yaml:"auth"`
	Retries     *int             `yaml:"retries,omitempty"`
	Timeout     Duration         `yaml:"timeout,omitempty"`
	EvidenceDir string           `yaml:"evidence_dir,omitempty"`
}

// HistoryConfig holds history store defaults from the config file.
type HistoryConfig struct {
	Path        string `yaml:"path,omitempty"`
	SnapshotDir string `yaml:"snapshot_dir,omitempty"`
}

// AdapterConfig holds event bus adapter defaults from the config file.
type AdapterConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Secret  string            `yaml:"secret,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}
