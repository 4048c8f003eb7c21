// ekaya-datasources is a command line client for the feed-manager Data Sources API.
//
// Usage: ekaya-datasources [-config config.yaml] [-o json|yaml] <command> [args]
//
// Configuration: config.yaml (or -config) with API_ROOT, API_TOKEN and the
// other environment overrides described in pkg/config.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datasources/pkg/accesscontrol"
	"github.com/ekaya-inc/ekaya-datasources/pkg/cli"
	"github.com/ekaya-inc/ekaya-datasources/pkg/config"
	"github.com/ekaya-inc/ekaya-datasources/pkg/datasources"
	"github.com/ekaya-inc/ekaya-datasources/pkg/rest"
	"github.com/ekaya-inc/ekaya-datasources/pkg/urls"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	configPath := flag.String("config", config.DefaultConfigPath, "Path to the YAML configuration file")
	format := flag.String("o", cli.FormatJSON, "Output format: json or yaml")
	verbose := flag.Bool("v", false, "Log at debug level")
	flag.Parse()

	cfg, err := config.Load(Version, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *verbose {
		cfg.LogLevel = "debug"
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	requestID := uuid.NewString()
	logger = logger.With(zap.String("request_id", requestID))

	opts := []rest.Option{
		rest.WithTimeout(cfg.RequestTimeout()),
		rest.WithHeader("X-Request-ID", requestID),
	}
	if cfg.APIToken != "" {
		opts = append(opts, rest.WithBearerToken(cfg.APIToken))
	}
	exec := rest.NewClient(cfg.APIRoot, logger, opts...)
	resolver := urls.New("")
	client := datasources.NewClient(exec, resolver, accesscontrol.NewClient(exec, resolver, logger), logger)

	app, err := cli.New(client, cfg, logger, os.Stdout, os.Stderr, *format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, flag.Args()); err != nil {
		if errors.Is(err, cli.ErrUsage) {
			fmt.Fprintf(os.Stderr, "%v\n\nUsage: %s [-config file] [-o json|yaml] [-v] <command> [args]\n\n", err, os.Args[0])
			app.Usage(os.Stderr)
			stop()
			os.Exit(2)
		}
		app.Fail(err)
		stop()
		os.Exit(1)
	}
}

// newLogger builds a development logger for local environments and a
// production JSON logger otherwise, both writing to stderr.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}

	var zapCfg zap.Config
	if cfg.IsLocal() {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.OutputPaths = []string{"stderr"}
	zapCfg.ErrorOutputPaths = []string{"stderr"}

	return zapCfg.Build()
}
