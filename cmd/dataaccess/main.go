// Package main is the entry point for the dataset access service.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/vyrodovalexey/avdataccess/internal/access"
	"github.com/vyrodovalexey/avdataccess/internal/broker"
	"github.com/vyrodovalexey/avdataccess/internal/catalog"
	"github.com/vyrodovalexey/avdataccess/internal/config"
	"github.com/vyrodovalexey/avdataccess/internal/health"
	"github.com/vyrodovalexey/avdataccess/internal/metadata"
	"github.com/vyrodovalexey/avdataccess/internal/observability"
	"github.com/vyrodovalexey/avdataccess/internal/policy"
	"github.com/vyrodovalexey/avdataccess/internal/routing"
	"github.com/vyrodovalexey/avdataccess/internal/server"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// cliFlags holds command line flags.
type cliFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	showVersion bool
}

func main() {
	flags := parseFlags()

	if flags.showVersion {
		printVersion()
		return
	}

	logger := initLogger(flags)
	defer func() { _ = logger.Sync() }()

	cfg := loadAndValidateConfig(flags.configPath, logger)
	app := initApplication(cfg, logger)

	run(app, logger)
}

// parseFlags parses command line flags.
func parseFlags() cliFlags {
	configPath := flag.String("config", getEnvOrDefault("DATAACCESS_CONFIG_PATH", "configs/dataaccess.yaml"),
		"Path to configuration file")
	logLevel := flag.String("log-level", getEnvOrDefault("DATAACCESS_LOG_LEVEL", "info"),
		"Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", getEnvOrDefault("DATAACCESS_LOG_FORMAT", "json"),
		"Log format (json, console)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	return cliFlags{
		configPath:  *configPath,
		logLevel:    *logLevel,
		logFormat:   *logFormat,
		showVersion: *showVersion,
	}
}

// printVersion prints version information and exits.
func printVersion() {
	fmt.Printf("avdataccess version %s\n", version)
	fmt.Printf("  Build time: %s\n", buildTime)
	fmt.Printf("  Git commit: %s\n", gitCommit)
}

// initLogger initializes the logger.
func initLogger(flags cliFlags) observability.Logger {
	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  flags.logLevel,
		Format: flags.logFormat,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	observability.SetGlobalLogger(logger)
	return logger
}

// loadAndValidateConfig loads and validates the configuration.
func loadAndValidateConfig(configPath string, logger observability.Logger) *config.Config {
	logger.Info("starting avdataccess",
		observability.String("version", version),
		observability.String("config", configPath),
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", observability.Error(err))
	}

	logger.Info("configuration loaded",
		observability.String("listen", cfg.Server.ListenAddr),
		observability.String("broker", string(cfg.Broker.Provider)),
		observability.String("catalog", cfg.Catalog.URL),
		observability.String("policy", cfg.Policy.URL),
	)

	return cfg
}

// application holds all application components.
type application struct {
	server  *server.Server
	tracer  *observability.Tracer
	config  *config.Config
	checker *health.Checker
}

// initApplication wires all application components. Any failure here is
// fatal to startup; the service never runs partially configured.
func initApplication(cfg *config.Config, logger observability.Logger) *application {
	tracer := initTracer(cfg, logger)

	table, err := routing.LoadTable(cfg.Routing.TablePath)
	if err != nil {
		logger.Fatal("failed to load routing table", observability.Error(err))
	}
	logger.Info("routing table loaded", observability.Int("rules", table.Len()))

	signer, err := metadata.LoadSigner(cfg.Signer.PrivateKeyPath)
	if err != nil {
		logger.Fatal("failed to load signing key", observability.Error(err))
	}

	catalogClient, err := catalog.NewClient(cfg.Catalog, catalog.WithLogger(logger))
	if err != nil {
		logger.Fatal("failed to create catalog client", observability.Error(err))
	}

	policyClient, err := policy.NewClient(cfg.Policy, policy.WithLogger(logger))
	if err != nil {
		logger.Fatal("failed to create policy client", observability.Error(err))
	}

	credBroker, err := broker.New(cfg.Broker, table, logger)
	if err != nil {
		logger.Fatal("failed to create credential broker", observability.Error(err))
	}

	accessOpts := []access.Option{
		access.WithLogger(logger),
		access.WithTracer(tracer),
	}
	if cfg.Signer.PublicKeyPath != "" {
		verifier, err := metadata.LoadVerifier(cfg.Signer.PublicKeyPath)
		if err != nil {
			logger.Fatal("failed to load verification key", observability.Error(err))
		}
		accessOpts = append(accessOpts, access.WithVerifier(verifier))
	}
	if cfg.DownstreamTimeout > 0 {
		accessOpts = append(accessOpts, access.WithDownstreamTimeout(cfg.DownstreamTimeout))
	}
	svc := access.NewService(catalogClient, policyClient, credBroker, table, signer, accessOpts...)

	checker := health.NewChecker(version)
	checker.RegisterCheck("routing", health.RoutingTableCheck(table))
	checker.RegisterCheck("signer", health.SignerCheck(signer))

	srv := server.New(server.Config{
		ListenAddr:     cfg.Server.ListenAddr,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MetricsEnabled: cfg.Metrics.Enabled,
		MetricsPath:    cfg.Metrics.Path,
	}, svc, checker, logger)

	return &application{
		server:  srv,
		tracer:  tracer,
		config:  cfg,
		checker: checker,
	}
}

// initTracer initializes the tracer.
func initTracer(cfg *config.Config, logger observability.Logger) *observability.Tracer {
	tracerCfg := cfg.Tracing
	if tracerCfg.ServiceName == "" {
		tracerCfg.ServiceName = "avdataccess"
	}
	if tracerCfg.SamplingRate == 0 {
		tracerCfg.SamplingRate = 1.0
	}

	tracer, err := observability.NewTracer(tracerCfg)
	if err != nil {
		logger.Fatal("failed to initialize tracer", observability.Error(err))
	}
	return tracer
}

// run starts the HTTP server and blocks until a shutdown signal.
func run(app *application, logger observability.Logger) {
	errCh := make(chan error, 1)
	go func() {
		errCh <- app.server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", observability.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", observability.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		logger.Error("shutdown failed", observability.Error(err))
	}
	if err := app.tracer.Shutdown(ctx); err != nil {
		logger.Error("tracer shutdown failed", observability.Error(err))
	}

	logger.Info("avdataccess stopped")
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
