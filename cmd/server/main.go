// Octoka - Token-Authorized Static File Server for Opencast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/octoka

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/tomtom215/octoka/internal/config"
	"github.com/tomtom215/octoka/internal/logging"
	"github.com/tomtom215/octoka/internal/supervisor"
	"github.com/tomtom215/octoka/internal/supervisor/services"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type options struct {
	configPath  string
	check       bool
	genConfig   bool
	showVersion bool
}

func parseFlags(args []string, output io.Writer) (options, error) {
	var opts options
	fs := pflag.NewFlagSet("octoka", pflag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVarP(&opts.configPath, "config", "c", "",
		"path to the YAML config file (default: $"+config.ConfigPathEnvVar+", ./config.yaml, /etc/octoka/config.yaml)")
	fs.BoolVar(&opts.check, "check", false,
		"load the configuration, fetch all JWKS and exit non-zero on any failure")
	fs.BoolVar(&opts.genConfig, "gen-config", false, "print a config template with all defaults and exit")
	fs.BoolVarP(&opts.showVersion, "version", "v", false, "print the version and exit")
	err := fs.Parse(args)
	return opts, err
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		os.Exit(2)
	}
	if opts.showVersion {
		fmt.Println("octoka", version)
		return
	}
	if opts.genConfig {
		out, err := config.DefaultYAML()
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to render config template")
		}
		_, _ = os.Stdout.Write(out)
		return
	}

	cfg, err := config.LoadWithKoanf(opts.configPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Version:   version,
	})
	logging.Info().Stringer("config", cfg).Msg("Configuration loaded")

	a, err := build(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize")
	}

	if opts.check {
		if err := check(context.Background(), a); err != nil {
			logging.Error().Err(err).Msg("Check failed")
			os.Exit(1)
		}
		logging.Info().Msg("Check passed")
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, a); err != nil {
		logging.Fatal().Err(err).Msg("Octoka stopped with an error")
	}
	logging.Info().Msg("Octoka stopped")
}

// check performs the startup fetch and fails if any source has no keys.
func check(ctx context.Context, a *app) error {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.JWT.FetchTimeout+5*time.Second)
	defer cancel()

	if err := a.keys.Init(ctx); err != nil {
		return err
	}
	for _, st := range a.keys.Status() {
		logging.Info().Str("url", st.URL).Int("keys", st.Keys).Msg("JWKS source OK")
	}
	if a.files != nil {
		logging.Info().Str("root", a.files.Root()).Msg("Downloads directory OK")
	}
	return nil
}

// run fetches the keys once and serves until ctx is canceled.
func run(ctx context.Context, a *app) error {
	// Sources that fail here are retried on demand and by the refresher.
	if err := a.keys.Init(ctx); err != nil {
		logging.Warn().Err(err).Msg("Some JWKS sources could not be fetched at startup")
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: a.cfg.HTTP.ShutdownTimeout + time.Second,
	})
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}

	tree.AddKeysService(services.NewRefreshService(a.keys, a.cfg.JWT.RefreshInterval))

	public, metricsServer := a.servers()
	tree.AddAPIService(services.NewHTTPServerService("http-server", public, a.cfg.HTTP.ShutdownTimeout))
	logging.Info().Str("addr", public.Addr).Msg("Listening")
	if metricsServer != nil {
		tree.AddAPIService(services.NewHTTPServerService("metrics-server", metricsServer, a.cfg.HTTP.ShutdownTimeout))
		logging.Info().Str("addr", metricsServer.Addr).Str("path", a.cfg.Metrics.Path).Msg("Metrics listener enabled")
	}

	errCh := tree.ServeBackground(ctx)
	err = <-errCh
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}
	return nil
}
