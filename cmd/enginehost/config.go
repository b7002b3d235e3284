package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/enginehost/internal/config"
)

const redacted = "<redacted>"

func runConfigNoun(args []string) int {
	if len(args) < 1 || isHelpToken(args[0]) {
		printConfigHelp()
		if len(args) < 1 {
			return 1
		}
		return 0
	}

	switch args[0] {
	case "check":
		return runConfigCheck(args[1:])
	case "show":
		return runConfigShow(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n\n", args[0])
		printConfigHelp()
		return 1
	}
}

func printConfigHelp() {
	fmt.Print(`Usage:
  enginehost config check [--config PATH] [--json]
  enginehost config show  [--config PATH] [--json]

The config path defaults to $ENGINEHOST_CONFIG, then
~/.config/enginehost/config.yaml, then ./config.yaml.
`)
}

type checkResult struct {
	Valid       bool     `json:"valid" yaml:"valid"`
	Path        string   `json:"path,omitempty" yaml:"path,omitempty"`
	Fingerprint string   `json:"fingerprint,omitempty" yaml:"fingerprint,omitempty"`
	Engines     []string `json:"engines,omitempty" yaml:"engines,omitempty"`
	Error       string   `json:"error,omitempty" yaml:"error,omitempty"`
}

func runConfigCheck(args []string) int {
	fs := flag.NewFlagSet("config check", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	jsonOut := fs.Bool("json", false, "Output result as JSON")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	result := checkResult{}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		result.Error = err.Error()
	} else {
		result.Valid = true
		result.Path = cfg.SourcePath
		result.Fingerprint = cfg.Fingerprint
		result.Engines = enabledEngines(cfg)
	}

	if *jsonOut {
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
	} else if result.Valid {
		fmt.Printf("Configuration OK: %s\n", result.Path)
		fmt.Printf("  fingerprint: %s\n", shortenDigest(result.Fingerprint))
		fmt.Printf("  engines:     %v\n", result.Engines)
	} else {
		fmt.Fprintf(os.Stderr, "Configuration invalid: %s\n", result.Error)
	}

	if !result.Valid {
		return 1
	}
	return 0
}

func runConfigShow(args []string) int {
	fs := flag.NewFlagSet("config show", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	jsonOut := fs.Bool("json", false, "Output as JSON instead of YAML")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	shown := redactSecrets(*cfg)

	var data []byte
	if *jsonOut {
		data, err = json.MarshalIndent(shown, "", "  ")
		if err == nil {
			data = append(data, '\n')
		}
	} else {
		data, err = yaml.Marshal(shown)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render config: %v\n", err)
		return 1
	}
	fmt.Print(string(data))
	return 0
}

// redactSecrets returns a copy of cfg with bearer tokens masked.
func redactSecrets(cfg config.Config) config.Config {
	if cfg.API.Auth.APIKey != "" {
		cfg.API.Auth.APIKey = redacted
	}
	tokens := make([]config.APIToken, len(cfg.API.Auth.Tokens))
	for i, t := range cfg.API.Auth.Tokens {
		tokens[i] = config.APIToken{Token: redacted, Scopes: t.Scopes}
	}
	if len(tokens) > 0 {
		cfg.API.Auth.Tokens = tokens
	}
	return cfg
}

func enabledEngines(cfg *config.Config) []string {
	var out []string
	if cfg.Engines.Classical.Enabled() {
		out = append(out, "classical")
	}
	if cfg.Engines.Neural.Enabled() {
		out = append(out, "neural")
	}
	return out
}

func shortenDigest(d string) string {
	if len(d) > 16 {
		return d[:16]
	}
	return d
}
