package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/storelens-lab/storelens/internal/connector"
	corecfg "github.com/storelens-lab/storelens/internal/core/config"
	"github.com/storelens-lab/storelens/internal/core/storage/postgres"
	"github.com/storelens-lab/storelens/internal/etl"
	"github.com/storelens-lab/storelens/internal/migrations"
	"github.com/storelens-lab/storelens/internal/reporting"
	"github.com/storelens-lab/storelens/internal/server"
	"github.com/storelens-lab/storelens/internal/transform"
)

func main() {
	configPath := flag.String("config", "storelens.yaml", "Path to configuration file")
	flag.Parse()

	// 0. Initialize Logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 1. Load Configuration
	cfg, err := corecfg.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded config",
		"pipeline", cfg.Pipeline.Name,
		"interval", cfg.Pipeline.Interval,
		"sources", cfg.Sources.EnabledSourceCount(),
	)

	// 2. Run Database Migrations
	// The adapter refuses a database without the schema, so migrate on a
	// plain pool first.
	migrationDB, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		slog.Error("Failed to open database for migrations", "error", err)
		os.Exit(1)
	}
	if err := migrations.RunMigrations(migrationDB, cfg.Database.AutoMigrate); err != nil {
		slog.Error("Failed to run database migrations", "error", err)
		os.Exit(1)
	}
	migrationDB.Close()

	// 3. Initialize Storage (PostgreSQL)
	dbAdapter, err := postgres.NewAdapter(
		cfg.Database.DSN,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
	)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer dbAdapter.Close()

	// 4. Initialize Transform (field mapping overrides + normalizer)
	mappings, err := transform.NewFileSystemMappingRepository(cfg.Transform.MappingDir)
	if err != nil {
		slog.Error("Failed to load field mappings", "dir", cfg.Transform.MappingDir, "error", err)
		os.Exit(1)
	}
	normalizer := transform.NewNormalizer(mappings)

	// 5. Initialize Connectors
	connectors, err := buildConnectors(cfg)
	if err != nil {
		slog.Error("Failed to initialize connectors", "error", err)
		os.Exit(1)
	}

	// 6. Initialize Pipeline
	orchestrator := etl.New(cfg.Pipeline.Name, dbAdapter, normalizer, connectors...)
	orchestrator.SetMetricWorkers(cfg.Pipeline.MetricWorkers)
	scheduler := etl.NewScheduler(cfg.Pipeline.IntervalDuration(), orchestrator, cfg.Pipeline.RunOnStart)

	// 7. Initialize Reporting + Server
	reportingSvc := reporting.NewService(dbAdapter, orchestrator)
	srv := server.New(fmtAddr(cfg.Server.Host, cfg.Server.Port), dbAdapter.DB(), cfg.Server.Mode)
	reportingSvc.RegisterRoutes(srv.Engine)

	// 8. Start Services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Pipeline.Enabled {
		go func() {
			if err := scheduler.Start(ctx); err != nil {
				slog.Error("Scheduler stopped with error", "error", err)
			}
		}()
	} else {
		slog.Info("Pipeline scheduler disabled by config")
	}

	// Signal handler triggers the shutdown sequence below.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		slog.Info("Signal received, shutting down...")
		cancel()
	}()

	// HTTP server blocks until ctx is cancelled.
	if err := srv.Run(ctx); err != nil {
		slog.Error("Server stopped with error", "error", err)
	}

	slog.Info("Shutdown complete")
}

func buildConnectors(cfg *corecfg.Config) ([]connector.Connector, error) {
	var connectors []connector.Connector

	if cfg.Sources.Shopify.Enabled {
		shopify, err := connector.NewShopify(connector.ShopifyConfig{
			BaseURL:     cfg.Sources.Shopify.BaseURL,
			AccessToken: cfg.Sources.Shopify.AccessToken,
			APIVersion:  cfg.Sources.Shopify.APIVersion,
			PageSize:    cfg.Sources.Shopify.PageSize,
		})
		if err != nil {
			return nil, fmt.Errorf("shopify: %w", err)
		}
		connectors = append(connectors, shopify)
	}

	if cfg.Sources.WooCommerce.Enabled {
		woo, err := connector.NewWooCommerce(connector.WooCommerceConfig{
			BaseURL:        cfg.Sources.WooCommerce.BaseURL,
			ConsumerKey:    cfg.Sources.WooCommerce.ConsumerKey,
			ConsumerSecret: cfg.Sources.WooCommerce.ConsumerSecret,
			PageSize:       cfg.Sources.WooCommerce.PageSize,
		})
		if err != nil {
			return nil, fmt.Errorf("woocommerce: %w", err)
		}
		connectors = append(connectors, woo)
	}

	if cfg.Sources.Commercetools.Enabled {
		ct, err := connector.NewCommercetools(connector.CommercetoolsConfig{
			BaseURL:     cfg.Sources.Commercetools.BaseURL,
			ProjectKey:  cfg.Sources.Commercetools.ProjectKey,
			AccessToken: cfg.Sources.Commercetools.AccessToken,
			PageSize:    cfg.Sources.Commercetools.PageSize,
		})
		if err != nil {
			return nil, fmt.Errorf("commercetools: %w", err)
		}
		connectors = append(connectors, ct)
	}

	return connectors, nil
}

func fmtAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
