package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/SteelMorgan/serilog-dashboard/internal/clickhouse"
	"github.com/SteelMorgan/serilog-dashboard/internal/config"
	"github.com/SteelMorgan/serilog-dashboard/internal/logstore"
	"github.com/SteelMorgan/serilog-dashboard/internal/metrics"
	"github.com/SteelMorgan/serilog-dashboard/internal/observability"
	"github.com/SteelMorgan/serilog-dashboard/internal/retry"
	"github.com/SteelMorgan/serilog-dashboard/internal/server"
	"github.com/SteelMorgan/serilog-dashboard/internal/tenant"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
)

const version = "0.1.0"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	closeLog := observability.InitLogger(cfg.LogLevel, cfg.LogFile)
	defer closeLog()

	log.Info().
		Str("version", version).
		Str("store", cfg.StoreBackend).
		Msg("Starting Serilog dashboard server")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	shutdownTracer, err := observability.InitTracer(ctx, observability.TracerConfig{
		ServiceName:    "serilog-dashboard",
		ServiceVersion: version,
		Endpoint:       cfg.OTelEndpoint,
		Protocol:       cfg.OTelProtocol,
		Enabled:        cfg.TracingEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize tracer")
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Error().Err(err).Msg("Failed to shut down tracer")
		}
	}()

	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open log store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing log store")
		}
	}()

	resolver, closeTenants, err := openResolver(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open tenant registry")
	}
	defer closeTenants()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	srv, err := server.NewServer(cfg, store, resolver, metrics.New(reg), reg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create server")
	}

	if err := srv.Start(ctx); err != nil {
		log.Error().Err(err).Msg("Server error")
	} else {
		log.Info().Msg("Received shutdown signal")
	}

	log.Info().Msg("Shutting down gracefully...")
	if err := srv.Stop(); err != nil {
		log.Error().Err(err).Msg("Error during shutdown")
	}
}

func openStore(ctx context.Context, cfg *config.Config) (logstore.Store, error) {
	retryCfg := retry.FromMillis(cfg.RetryMaxAttempts, cfg.RetryInitialDelayMs, cfg.RetryMaxDelayMs)

	switch cfg.StoreBackend {
	case config.BackendClickHouse:
		client, err := clickhouse.NewClient(ctx, clickhouse.Options{
			Host:     cfg.ClickHouseHost,
			Port:     cfg.ClickHousePort,
			Database: cfg.ClickHouseDB,
			Username: cfg.ClickHouseUser,
			Password: cfg.ClickHousePassword,
			Protocol: cfg.ClickHouseProtocol,
		}, retryCfg)
		if err != nil {
			return nil, err
		}
		store, err := logstore.NewClickHouseStore(ctx, client, cfg.ClickHouseTable)
		if err != nil {
			client.Close()
			return nil, err
		}
		return store, nil

	case config.BackendPostgres:
		return logstore.OpenPostgres(ctx, cfg.PostgresDSN(), cfg.PostgresSchema, cfg.PostgresTable, retryCfg)

	case config.BackendSQLite:
		return logstore.OpenSQLite(ctx, cfg.SQLitePath, cfg.SQLiteTable)

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// openResolver opens the API key registry, seeds it from the tenant map and adds the default tenant
func openResolver(ctx context.Context, cfg *config.Config) (*tenant.Resolver, func(), error) {
	var fallback *tenant.Tenant
	if cfg.DefaultClientID != nil && cfg.DefaultInstanceID != nil {
		fallback = &tenant.Tenant{ClientID: *cfg.DefaultClientID, InstanceID: *cfg.DefaultInstanceID}
	}

	if cfg.TenantDBPath == "" {
		return tenant.NewResolver(nil, fallback), func() {}, nil
	}

	keys, err := tenant.NewBoltDBStore(cfg.TenantDBPath)
	if err != nil {
		return nil, nil, err
	}
	closeKeys := func() {
		if err := keys.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing tenant registry")
		}
	}

	if cfg.TenantMapPath != "" {
		tm, err := tenant.LoadTenantMap(cfg.TenantMapPath)
		if err != nil {
			closeKeys()
			return nil, nil, err
		}
		if err := tm.Seed(ctx, keys); err != nil {
			closeKeys()
			return nil, nil, err
		}
	}

	if n, err := keys.Count(ctx); err == nil {
		log.Info().Int("api_keys", n).Str("path", cfg.TenantDBPath).Msg("Tenant registry ready")
	}

	return tenant.NewResolver(keys, fallback), closeKeys, nil
}
