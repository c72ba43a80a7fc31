// Package cmd implements the styrarun CLI commands.
package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/styrainc/styra-run-sdk-go/internal/version"
	"github.com/styrainc/styra-run-sdk-go/pkg/api"
	"github.com/styrainc/styra-run-sdk-go/pkg/clierror"
)

var (
	// Global flags
	outputFormat string
	configPath   string
	flagURL      string
	flagToken    string
	flagRetries  int
)

var rootCmd = &cobra.Command{
	Use:   "styrarun",
	Short: "CLI for the Styra Run decision service",
	Long: `styrarun is a command-line interface for a Styra Run environment.

It provides commands to query policy decisions, read and write
environment data, and inspect the resolved gateway list.`,
	Version:       version.String(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format: table, json, yaml")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: ~/.styra-run/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagURL, "url", "", "Environment API URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagToken, "token", "", "Environment token (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetries, "max-retries", 0, "Max gateway failover retries (overrides config)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// OutputFormat exposes the --output flag for main's error printer.
func OutputFormat() string {
	return outputFormat
}

// Config is the CLI configuration file shape.
type Config struct {
	URL                      string   `yaml:"url"`
	Token                    string   `yaml:"token"`
	OrganizeGatewaysStrategy []string `yaml:"organize_gateways_strategy,omitempty"`
	StrategyTimeoutMS        int      `yaml:"organize_gateways_strategy_timeout_ms,omitempty"`
	MaxRetries               int      `yaml:"max_retries,omitempty"`
}

// DefaultConfigPath returns ~/.styra-run/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".styra-run", "config.yaml")
}

// loadConfig merges the config file, environment, and flags, in ascending
// precedence.
func loadConfig() (*Config, error) {
	cfg := &Config{}

	path := configPath
	if path == "" {
		path = DefaultConfigPath()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, clierror.InvalidConfig(fmt.Sprintf("parsing %s: %v", path, err))
			}
		case os.IsNotExist(err) && configPath == "":
			// Missing default config is fine; flags/env may be enough.
		default:
			return nil, clierror.InvalidConfig(fmt.Sprintf("reading %s: %v", path, err))
		}
	}

	if v := os.Getenv("STYRA_URL"); v != "" {
		cfg.URL = v
	}
	if v := os.Getenv("STYRA_TOKEN"); v != "" {
		cfg.Token = v
	}
	if flagURL != "" {
		cfg.URL = flagURL
	}
	if flagToken != "" {
		cfg.Token = flagToken
	}
	if flagRetries != 0 {
		cfg.MaxRetries = flagRetries
	}
	return cfg, nil
}

// newClient builds an SDK client from the effective configuration.
func newClient() (*api.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.URL == "" {
		return nil, clierror.InvalidConfig("no URL configured (set url in config, STYRA_URL, or --url)")
	}
	if cfg.Token == "" {
		return nil, clierror.InvalidConfig("no token configured (set token in config, STYRA_TOKEN, or --token)")
	}

	client, err := api.New(api.Config{
		URL:                             cfg.URL,
		Token:                           cfg.Token,
		MaxRetries:                      cfg.MaxRetries,
		OrganizeGatewaysStrategy:        cfg.OrganizeGatewaysStrategy,
		OrganizeGatewaysStrategyTimeout: time.Duration(cfg.StrategyTimeoutMS) * time.Millisecond,
	})
	if err != nil {
		return nil, clierror.InvalidConfig(err.Error())
	}
	return client, nil
}

// formatOutput handles output formatting based on the --output flag.
// Table format is handled by each command.
func formatOutput(out *os.File, data any) error {
	switch outputFormat {
	case "json":
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(data)
	case "yaml":
		raw, err := yaml.Marshal(data)
		if err != nil {
			return err
		}
		fmt.Fprint(out, string(raw))
		return nil
	default:
		return nil
	}
}
