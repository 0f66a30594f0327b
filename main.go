package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"rental-pricing/config"
	"rental-pricing/models"
	"rental-pricing/pricing"
	"rental-pricing/report"
	"rental-pricing/scraper/magicbricks"
	"rental-pricing/services"
	"rental-pricing/storage"
	"rental-pricing/utils"
)

func main() {
	cfg := config.Load()
	logger := utils.NewLoggerWithLevel(utils.ParseLevel(cfg.LogLevel))

	if err := cfg.Validate(); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("=== Rental Pricing System starting ===")
	logger.Info("Config: clusters %d | seed %d | anomalies %v (%.2f) | min occupancy %.0f | workers %d",
		cfg.Clusters, cfg.Seed, cfg.DetectAnomalies, cfg.Contamination, cfg.MinOccupancy, cfg.Workers)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *utils.Logger) error {
	if cfg.Scrape {
		if err := scrape(ctx, cfg, logger); err != nil {
			return err
		}
	}

	// Locality reference prices from scraped listings
	rawListings, err := storage.ReadRawListings(cfg.RawListingsGlob)
	if err != nil {
		return err
	}
	logger.Info("Loaded %d raw listings from %s", len(rawListings), cfg.RawListingsGlob)

	averager := services.NewAverager(logger)
	listings := services.NewCleaner(logger).Clean(rawListings)
	refs := averager.Pivot(averager.Average(listings))

	// Property records
	var pg *storage.PostgresStore
	var metricsSrc storage.MetricsSource = storage.CSVMetricsSource{Path: cfg.MetricsCSVPath}
	if cfg.UsePostgres {
		pg, err = storage.NewPostgresStore(ctx, cfg.DSN(), utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   2 * time.Second,
		}, logger)
		if err != nil {
			logger.Error("Make sure Docker is running: docker compose up -d")
			return err
		}
		defer pg.Close()
		metricsSrc = pg
	}

	metrics, err := metricsSrc.FetchPropertyMetrics(ctx)
	if err != nil {
		return err
	}
	costs, err := storage.ReadCostSheet(cfg.CostSheetPath, cfg.CostSheetName)
	if err != nil {
		return err
	}
	logger.Info("Loaded %d property metrics and %d cost sheet rows", len(metrics), len(costs))

	records := services.NewMerger(logger).Merge(metrics, costs, refs)
	records, prepStats := services.NewPreprocessor(services.PreprocessOptions{
		MinOccupancy:   cfg.MinOccupancy,
		RemoveOutliers: cfg.RemoveOutliers,
	}, logger).Process(records)

	props, rejected := pricing.NewValidator().ValidateBatch(records)
	for _, r := range rejected {
		logger.Warn("Row %d rejected: %v", r.Row, r.Err)
	}
	if len(props) == 0 {
		return errors.New("no valid property records to price")
	}

	// Fit and price
	engineCfg := pricing.DefaultConfig()
	engineCfg.Clusters = cfg.Clusters
	engineCfg.Seed = cfg.Seed
	engineCfg.MaxIterations = cfg.MaxIterations
	engineCfg.Workers = cfg.Workers
	engineCfg.DetectAnomalies = cfg.DetectAnomalies
	engineCfg.Anomaly.Contamination = cfg.Contamination
	engineCfg.Anomaly.Seed = cfg.Seed

	engine, err := pricing.NewEngine(engineCfg, logger)
	if err != nil {
		return err
	}
	snap, err := engine.Fit(props)
	if err != nil {
		return fmt.Errorf("fit: %w", err)
	}
	recs, err := engine.RecommendAll(ctx, props)
	if err != nil {
		return fmt.Errorf("recommend: %w", err)
	}
	runID := snap.ID.String()

	// Persist
	csvWriter, err := storage.NewRecommendationCSVWriter(cfg.OutputCSVPath)
	if err != nil {
		return err
	}
	defer csvWriter.Close()

	sinks := []storage.RecommendationWriter{csvWriter}
	if pg != nil {
		sinks = append(sinks, pg)
	}
	for _, sink := range sinks {
		if err := sink.WriteRecommendations(ctx, runID, recs); err != nil {
			logger.Error("Storing recommendations failed: %v", err)
		}
	}
	logger.Info("Recommendations saved to %s", cfg.OutputCSVPath)

	if cfg.ChartDir != "" {
		if err := renderCharts(cfg, snap, props); err != nil {
			logger.Warn("Chart rendering failed: %v", err)
		} else {
			logger.Info("Charts written to %s", cfg.ChartDir)
		}
	}

	insightSvc := services.NewInsightService(logger)
	insightSvc.Print(insightSvc.Generate(runID, snap.Profiles(), recs, prepStats, len(rejected)))

	fmt.Printf("  Done. Run %s → %s\n\n", runID, cfg.OutputCSVPath)
	return nil
}

// scrape collects fresh listing cards and stores them next to the raw
// listings glob so the rest of the run picks them up.
func scrape(ctx context.Context, cfg *config.Config, logger *utils.Logger) error {
	targets, err := config.LoadTargets(cfg.TargetsPath)
	if err != nil {
		return err
	}

	raw, err := magicbricks.New(cfg, targets, logger).Scrape(ctx)
	if err != nil {
		logger.Error("Scrape failed: %v", err)
	}
	if len(raw) == 0 {
		return errors.New("no listings were scraped")
	}

	path := filepath.Join(filepath.Dir(cfg.RawListingsGlob),
		"raw_listings_"+time.Now().Format("20060102_150405")+".csv")
	w, err := storage.NewCSVWriter(path)
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.WriteRaw(raw); err != nil {
		return fmt.Errorf("csv write failed: %w", err)
	}
	logger.Info("Scraped %d raw listings → %s", len(raw), path)
	return nil
}

func renderCharts(cfg *config.Config, snap *pricing.Snapshot, props []models.Property) error {
	ext := ".svg"
	if cfg.ChartPNG {
		ext = ".png"
	}
	chart := report.NewChart()

	labels := snap.Labels()
	if len(labels) >= 2 {
		proj, err := report.PCA(snap.ScaledFeatures(), 2)
		if err != nil {
			return err
		}
		scatter := report.Scatter{Points: proj.Points, Groups: labels, Anomalies: snap.AnomalyFlags()}
		path := filepath.Join(cfg.ChartDir, "clusters_pca"+ext)
		if err := report.WriteFile(path, func(w io.Writer) error {
			return chart.RenderScatter(w, scatter, report.FormatFromPath(path))
		}); err != nil {
			return err
		}
	}

	rents := make(report.BoxPlot)
	for i, p := range props {
		rents[labels[i]] = append(rents[labels[i]], p.Features.AvgRent)
	}
	path := filepath.Join(cfg.ChartDir, "rent_by_group"+ext)
	return report.WriteFile(path, func(w io.Writer) error {
		return chart.RenderBoxPlot(w, rents, report.FormatFromPath(path))
	})
}
