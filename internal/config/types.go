package config

import "time"

// Config represents the complete enginehost configuration.
type Config struct {
	Service ServiceConfig `yaml:"service"`
	Engines EnginesConfig `yaml:"engines"`
	Journal JournalConfig `yaml:"journal,omitempty"`
	API     APIConfig     `yaml:"api,omitempty"`

	// SourcePath is the absolute path the config was loaded from.
	SourcePath string `yaml:"-"`
	// Fingerprint is the BLAKE3 hash of the raw config file.
	Fingerprint string `yaml:"-"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name         string        `yaml:"name"`
	TickInterval time.Duration `yaml:"tick_interval"`
	LogLevel     string        `yaml:"log_level"`
	LogFormat    string        `yaml:"log_format"`
	LogFile      string        `yaml:"log_file,omitempty"` // TUI mode only
}

// EnginesConfig holds one entry per engine slot. An entry with neither
// builtin nor path leaves that slot empty.
type EnginesConfig struct {
	Classical EngineConfig `yaml:"classical"`
	Neural    EngineConfig `yaml:"neural"`
}

// EngineConfig describes how to run one engine.
type EngineConfig struct {
	Builtin   string        `yaml:"builtin,omitempty"` // "loopback"
	Path      string        `yaml:"path,omitempty"`
	Args      []string      `yaml:"args,omitempty"`
	Dir       string        `yaml:"dir,omitempty"`
	Init      []string      `yaml:"init,omitempty"`
	QuitGrace time.Duration `yaml:"quit_grace,omitempty"`

	// Neural only.
	Weights    string `yaml:"weights,omitempty"`
	WeightsDir string `yaml:"weights_dir,omitempty"`
}

// Enabled reports whether the slot has an engine configured.
func (e EngineConfig) Enabled() bool {
	return e.Builtin != "" || e.Path != ""
}

// JournalConfig defines command journal storage. An empty path disables it.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// APIConfig defines HTTP API server settings.
type APIConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Listen         string        `yaml:"listen"`
	MaxSyncTimeout time.Duration `yaml:"max_sync_timeout"`
	Auth           APIAuthConfig `yaml:"auth"`
}

// APIAuthConfig defines API authentication settings.
type APIAuthConfig struct {
	// APIKey is the single full-access bearer token.
	// Prefer Tokens for scoped access.
	APIKey string     `yaml:"api_key"`
	Tokens []APIToken `yaml:"tokens,omitempty"`
}

// APIToken defines a bearer token and its scopes.
type APIToken struct {
	Token  string   `yaml:"token"`
	Scopes []string `yaml:"scopes"`
}

// Defaults returns a Config with default values.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:         "enginehost",
			TickInterval: 50 * time.Millisecond,
			LogLevel:     "info",
			LogFormat:    "json",
		},
		API: APIConfig{
			Enabled:        false,
			Listen:         "127.0.0.1:8089",
			MaxSyncTimeout: 60 * time.Second,
		},
	}
}
