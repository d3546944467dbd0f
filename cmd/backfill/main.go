// Command backfill recomputes daily metrics over a historical date range.
// The pipeline only writes the run date's aggregates, so loading months of
// order history leaves earlier days unscored until this runs.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"

	v1 "github.com/storelens-lab/storelens/internal/api/v1"
	"github.com/storelens-lab/storelens/internal/core/analytics"
	corecfg "github.com/storelens-lab/storelens/internal/core/config"
	"github.com/storelens-lab/storelens/internal/core/storage/postgres"
)

const dateLayout = "2006-01-02"

func main() {
	configPath := flag.String("config", "storelens.yaml", "Path to configuration file")
	sourceFlag := flag.String("source", "", "Source to backfill (shopify, woocommerce, commercetools)")
	startFlag := flag.String("start", "", "First date to recompute (YYYY-MM-DD)")
	endFlag := flag.String("end", "", "Last date to recompute, inclusive (YYYY-MM-DD, defaults to today)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	source := v1.SourceType(*sourceFlag)
	if !source.Valid() {
		fmt.Fprintf(os.Stderr, "unknown source %q\n", *sourceFlag)
		os.Exit(2)
	}

	start, err := time.Parse(dateLayout, *startFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -start date: %v\n", err)
		os.Exit(2)
	}
	end := time.Now().UTC().Truncate(24 * time.Hour)
	if *endFlag != "" {
		end, err = time.Parse(dateLayout, *endFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -end date: %v\n", err)
			os.Exit(2)
		}
	}
	if end.Before(start) {
		fmt.Fprintln(os.Stderr, "-end must not precede -start")
		os.Exit(2)
	}

	cfg, err := corecfg.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	adapter, err := postgres.NewAdapter(
		cfg.Database.DSN,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
	)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer adapter.Close()

	ctx := context.Background()

	catalog, err := adapter.ProductsBySource(ctx, source)
	if err != nil {
		slog.Error("Failed to read product catalog", "error", err)
		os.Exit(1)
	}

	days := int(end.Sub(start).Hours()/24) + 1
	bar := progressbar.NewOptions(days,
		progressbar.OptionSetDescription(fmt.Sprintf("backfilling %s", source)),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWriter(os.Stderr),
	)

	for date := start; !date.After(end); date = date.AddDate(0, 0, 1) {
		orders, err := adapter.OrdersForDate(ctx, source, date)
		if err != nil {
			slog.Error("Failed to read orders", "date", date.Format(dateLayout), "error", err)
			os.Exit(1)
		}

		daily := analytics.DailyMetricsFor(orders, catalog, source, date)
		if err := adapter.UpsertDailyMetrics(ctx, daily); err != nil {
			slog.Error("Failed to write daily metrics", "date", date.Format(dateLayout), "error", err)
			os.Exit(1)
		}
		_ = bar.Add(1)
	}

	fmt.Fprintln(os.Stderr)
	slog.Info("Backfill complete", "source", source, "days", days)
}
