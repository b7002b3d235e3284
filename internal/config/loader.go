package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/zeebo/blake3"
	"gopkg.in/yaml.v3"
)

const (
	// EnvConfigPath overrides config discovery.
	EnvConfigPath = "ENGINEHOST_CONFIG"

	// BuiltinLoopback is the in-process echo engine.
	BuiltinLoopback = "loopback"

	defaultWeightsDir = "data/weights"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads, interpolates, defaults and validates the config at configPath.
// Relative paths inside the file resolve against the file's directory.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}
	if info.IsDir() {
		absPath = filepath.Join(absPath, "config.yaml")
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	cfg.SourcePath = absPath
	cfg.Fingerprint = Fingerprint(data)
	resolvePaths(cfg, filepath.Dir(absPath))

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Parse decodes raw YAML with ${ENV} interpolation and applies defaults.
// It does not validate or resolve paths.
func Parse(data []byte) (*Config, error) {
	interpolated := interpolateEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(interpolated), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return applyConfigDefaults(&cfg), nil
}

// Fingerprint returns the hex BLAKE3 hash of raw config bytes.
func Fingerprint(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// DiscoverConfigPath finds the config file by checking standard locations.
// Priority order: $ENGINEHOST_CONFIG, ~/.config/enginehost/config.yaml, ./config.yaml
func DiscoverConfigPath() (string, error) {
	if p := os.Getenv(EnvConfigPath); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
		return "", fmt.Errorf("$%s points to missing file %s", EnvConfigPath, p)
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		p := filepath.Join(homeDir, ".config", "enginehost", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	if _, err := os.Stat("config.yaml"); err == nil {
		return "config.yaml", nil
	}

	return "", fmt.Errorf("no config found (checked: $%s, ~/.config/enginehost/config.yaml, ./config.yaml)", EnvConfigPath)
}

func applyConfigDefaults(cfg *Config) *Config {
	defaults := Defaults()

	if cfg.Service.Name == "" {
		cfg.Service.Name = defaults.Service.Name
	}
	if cfg.Service.TickInterval == 0 {
		cfg.Service.TickInterval = defaults.Service.TickInterval
	}
	if cfg.Service.LogLevel == "" {
		cfg.Service.LogLevel = defaults.Service.LogLevel
	}
	if cfg.Service.LogFormat == "" {
		cfg.Service.LogFormat = defaults.Service.LogFormat
	}

	if cfg.API.Listen == "" {
		cfg.API.Listen = defaults.API.Listen
	}
	if cfg.API.MaxSyncTimeout == 0 {
		cfg.API.MaxSyncTimeout = defaults.API.MaxSyncTimeout
	}

	if cfg.Engines.Neural.Path != "" && cfg.Engines.Neural.WeightsDir == "" {
		cfg.Engines.Neural.WeightsDir = defaultWeightsDir
	}
	return cfg
}

func resolvePaths(cfg *Config, baseDir string) {
	resolve := func(p *string) {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(baseDir, *p)
		}
	}
	resolve(&cfg.Service.LogFile)
	resolve(&cfg.Journal.Path)
	resolve(&cfg.Engines.Neural.Weights)
	resolve(&cfg.Engines.Neural.WeightsDir)
	for _, e := range []*EngineConfig{&cfg.Engines.Classical, &cfg.Engines.Neural} {
		resolve(&e.Dir)
		// Bare command names are looked up on $PATH.
		if filepath.Base(e.Path) != e.Path {
			resolve(&e.Path)
		}
	}
}

// interpolateEnv replaces ${VAR} with environment variable values.
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		// If not found, leave the placeholder (will fail validation if required)
		return match
	})
}

// validate performs basic validation on the configuration.
func validate(cfg *Config) error {
	if cfg.Service.TickInterval <= 0 {
		return fmt.Errorf("service.tick_interval must be positive")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Service.LogLevel] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}
	if cfg.Service.LogFormat != "json" && cfg.Service.LogFormat != "text" {
		return fmt.Errorf("service.log_format must be json or text (got %q)", cfg.Service.LogFormat)
	}

	if !cfg.Engines.Classical.Enabled() && !cfg.Engines.Neural.Enabled() {
		return fmt.Errorf("engines: at least one of classical or neural must be configured")
	}
	if err := validateEngine("classical", cfg.Engines.Classical); err != nil {
		return err
	}
	if err := validateEngine("neural", cfg.Engines.Neural); err != nil {
		return err
	}
	if c := cfg.Engines.Classical; c.Weights != "" || c.WeightsDir != "" {
		return fmt.Errorf("engines.classical: weights are only supported on the neural engine")
	}
	if n := cfg.Engines.Neural; n.Weights != "" && !n.Enabled() {
		return fmt.Errorf("engines.neural.weights set but no neural engine configured")
	}

	if cfg.API.Enabled {
		if cfg.API.Listen == "" {
			return fmt.Errorf("api.listen is required when api is enabled")
		}
		if cfg.API.MaxSyncTimeout <= 0 {
			return fmt.Errorf("api.max_sync_timeout must be positive")
		}
		if err := unresolved("api.auth.api_key", cfg.API.Auth.APIKey); err != nil {
			return err
		}
		for i, tok := range cfg.API.Auth.Tokens {
			field := fmt.Sprintf("api.auth.tokens[%d].token", i)
			if tok.Token == "" {
				return fmt.Errorf("%s is required", field)
			}
			if err := unresolved(field, tok.Token); err != nil {
				return err
			}
			if len(tok.Scopes) == 0 {
				return fmt.Errorf("api.auth.tokens[%d].scopes must be non-empty", i)
			}
		}
		if cfg.API.Auth.APIKey == "" && len(cfg.API.Auth.Tokens) == 0 {
			return fmt.Errorf("api.auth: api_key or tokens required when api is enabled")
		}
	}

	return nil
}

func validateEngine(name string, e EngineConfig) error {
	if e.Builtin != "" && e.Path != "" {
		return fmt.Errorf("engines.%s: builtin and path are mutually exclusive", name)
	}
	if e.Builtin != "" && e.Builtin != BuiltinLoopback {
		return fmt.Errorf("engines.%s.builtin: unknown engine %q (supported: %s)", name, e.Builtin, BuiltinLoopback)
	}
	if e.QuitGrace < 0 {
		return fmt.Errorf("engines.%s.quit_grace must not be negative", name)
	}
	return nil
}

func unresolved(field, value string) error {
	if matches := envVarPattern.FindStringSubmatch(value); len(matches) > 1 {
		return fmt.Errorf("%s: environment variable ${%s} is not set", field, matches[1])
	}
	return nil
}
