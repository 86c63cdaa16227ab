package main

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/spf13/pflag"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigPath      string
	BindingsPath    string
	LogLevel        string
	LogFormat       string
	MetricsPort     int
	ShutdownTimeout time.Duration
	ShowVersion     bool
	ShowHelp        bool
	Validate        bool

	flags *pflag.FlagSet
}

func parseFlags(args []string) (*CLIConfig, error) {
	cfg := &CLIConfig{}
	fs := pflag.NewFlagSet(appName, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	cfg.flags = fs

	// Define flags with environment variable fallback
	fs.StringVarP(&cfg.ConfigPath, "config", "c",
		getEnv("ROSPITCH_CONFIG", ""),
		"Path to JSONC configuration file; built-in defaults when empty (env: ROSPITCH_CONFIG)")

	fs.StringVar(&cfg.BindingsPath, "bindings", "",
		"Path to the binding table, overrides the config file (env: ROSPITCH_BINDINGS)")

	fs.StringVar(&cfg.LogLevel, "log-level",
		getEnv("ROSPITCH_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: ROSPITCH_LOG_LEVEL)")

	fs.StringVar(&cfg.LogFormat, "log-format",
		getEnv("ROSPITCH_LOG_FORMAT", "json"),
		"Log format: json, text (env: ROSPITCH_LOG_FORMAT)")

	fs.IntVar(&cfg.MetricsPort, "metrics-port",
		getEnvInt("ROSPITCH_METRICS_PORT", 0),
		"Metrics and health port, overrides the config file (env: ROSPITCH_METRICS_PORT)")

	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("ROSPITCH_SHUTDOWN_TIMEOUT", 10*time.Second),
		"Graceful shutdown timeout (env: ROSPITCH_SHUTDOWN_TIMEOUT)")

	fs.BoolVarP(&cfg.ShowVersion, "version", "v", false, "Show version information")
	fs.BoolVarP(&cfg.ShowHelp, "help", "h", false, "Show help information")
	fs.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and bindings, then exit")

	if err := fs.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			cfg.ShowHelp = true
			return cfg, nil
		}
		return nil, err
	}
	if rest := fs.Args(); len(rest) > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", rest[0])
	}

	return cfg, nil
}

func validateFlags(cfg *CLIConfig) error {
	// Skip validation for special flags
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	if cfg.ConfigPath != "" {
		if _, err := os.Stat(cfg.ConfigPath); err != nil {
			return fmt.Errorf("config file not found: %s", cfg.ConfigPath)
		}
	}

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}

	if !slices.Contains([]string{"json", "text"}, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}

	if cfg.MetricsPort < 0 || cfg.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.MetricsPort)
	}

	if cfg.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid shutdown timeout: %s", cfg.ShutdownTimeout)
	}

	return nil
}

func printDetailedHelp(w io.Writer, cfg *CLIConfig) {
	_, _ = fmt.Fprintf(w, `%s - ROS telemetry to HLA federation bridge

Usage: %s [options]

Options:
%s
Examples:
  # Dry run against the built-in defaults
  %s --log-format=text

  # Run with a config file and a custom binding table
  %s --config=/etc/rospitch/rospitch.jsonc --bindings=/etc/rospitch/bindings.yaml

  # Point at another RTI without editing the file
  export ROSPITCH_PITCH_URI=crcAddress=rti.lab:8989
  %s -c configs/rospitch.jsonc

  # Validate configuration only
  %s --validate -c configs/rospitch.jsonc

Version: %s
Build: %s
`, appName, appName, cfg.flags.FlagUsages(), appName, appName, appName, appName, Version, BuildTime)
}

// Environment variable helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
