// Package main implements the entry point for the rospitch bridge.
// rospitch forwards robot telemetry (GPS fix, IMU orientation and mission
// waypoints) into an HLA federation as attribute updates and interactions.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/gamma-programme/rospitch/binding"
	"github.com/gamma-programme/rospitch/config"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "rospitch"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(os.Args[1:]); err != nil {
		slog.Error("Bridge failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run(args []string) error {
	cliCfg, err := parseFlags(args)
	if err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp {
		printDetailedHelp(os.Stdout, cliCfg)
		return nil
	}

	logger := setupLogger(os.Stdout, cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	cfg, table, err := initializeConfiguration(cliCfg)
	if err != nil {
		return err
	}

	logger.Info("Starting rospitch",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath,
		"bindings", cfg.Bindings,
		"federation", cfg.Pitch.FederationName,
		"federate", cfg.FederateName(),
		"ambassador", cfg.Pitch.Ambassador,
		"time_mode", cfg.Time.Mode)

	if cliCfg.Validate {
		logger.Info("Configuration is valid", "channels", table.Channels())
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg, table, logger)
	if err != nil {
		return err
	}
	return a.run(ctx, cliCfg.ShutdownTimeout)
}

// initializeConfiguration loads the config layers, applies CLI overrides
// and loads the binding table.
func initializeConfiguration(cliCfg *CLIConfig) (*config.Config, *binding.Table, error) {
	loader := config.NewLoader()
	if cliCfg.ConfigPath != "" {
		loader.AddLayer(cliCfg.ConfigPath)
	}

	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	if cliCfg.BindingsPath != "" {
		cfg.Bindings = cliCfg.BindingsPath
	}
	if cliCfg.MetricsPort != 0 {
		cfg.Metrics.Port = cliCfg.MetricsPort
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	table, err := binding.LoadFile(cfg.Bindings)
	if err != nil {
		return nil, nil, fmt.Errorf("load bindings: %w", err)
	}
	return cfg, table, nil
}
