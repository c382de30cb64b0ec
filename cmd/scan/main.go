// Package main provides the scan entry point.
// Executes: reset → run → universe → scan → CSV export, optionally followed by the risk pass
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"perp-crowd-scanner/internal/binance"
	"perp-crowd-scanner/internal/config"
	"perp-crowd-scanner/internal/observability"
	"perp-crowd-scanner/internal/orchestrator"
	"perp-crowd-scanner/internal/reporting"
	"perp-crowd-scanner/internal/risk"
	"perp-crowd-scanner/internal/scanner"
	"perp-crowd-scanner/internal/storage"
	"perp-crowd-scanner/internal/storage/backend"
	"perp-crowd-scanner/internal/universe"
)

func main() {
	// Parse flags (override environment)
	storageKind := flag.String("storage", "", "Storage backend: memory, postgres, clickhouse (default STORAGE_BACKEND)")
	csvPath := flag.String("csv", "", "Scan CSV output path (default SCAN_CSV_PATH)")
	withRisk := flag.Bool("risk", false, "Run the risk pass on the new run")
	verbose := flag.Bool("verbose", false, "Verbose output")
	flag.Parse()

	logger := log.New(os.Stdout, "[scan] ", log.LstdFlags)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Config error: %v", err)
	}
	if *storageKind != "" {
		cfg.StorageBackend = *storageKind
	}
	if *csvPath != "" {
		cfg.ScanCSVPath = *csvPath
	}
	if err := cfg.ValidateStorage(); err != nil {
		logger.Fatalf("Config error: %v", err)
	}

	if cfg.MetricsAddr != "" {
		go serveMetrics(logger, cfg.MetricsAddr)
	}

	// Create context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, cancelling scan...", sig)
		cancel()
	}()

	if err := run(ctx, logger, cfg, *withRisk, *verbose); err != nil {
		logger.Printf("Scan failed: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *log.Logger, cfg *config.Config, withRisk, verbose bool) error {
	store, cleanup, err := backend.Open(ctx, backend.Options{
		Kind:          cfg.StorageBackend,
		PostgresDSN:   cfg.PostgresDSN,
		ClickhouseDSN: cfg.ClickhouseDSN,
		Logger:        logger,
	})
	if err != nil {
		return err
	}
	defer cleanup()

	client := binance.NewClient(cfg.BaseURL, cfg.Retry,
		binance.WithConnectTimeout(cfg.ConnectTimeout),
		binance.WithReadTimeout(cfg.ReadTimeout),
	)

	var catalog universe.CatalogSource = client
	if cfg.CatalogSource == config.CatalogSDK {
		catalog = binance.NewSDKCatalog(cfg.BaseURL, client.HTTPClient())
	}

	scheduler := scanner.NewScheduler(scanner.SchedulerOptions{
		Evaluator: scanner.NewEvaluator(scanner.EvaluatorOptions{
			Market:              client,
			Period:              cfg.Period,
			MinOpenInterestUSDT: cfg.MinOpenInterestUSDT,
			Thresholds:          cfg.Thresholds,
			Logger:              logger,
		}),
		Concurrency:   cfg.Concurrency,
		PaceDelay:     cfg.PaceDelay,
		ProgressEvery: cfg.ProgressEvery,
		Logger:        logger,
		Verbose:       verbose,
	})

	orch := orchestrator.New(orchestrator.Options{
		Store:    store,
		Universe: universe.NewLoader(universe.Options{Source: catalog, Logger: logger}),
		Runner: scanner.NewRunner(scanner.RunnerOptions{
			Scheduler: scheduler,
			Sink: scanner.SinkOptions{
				Store:         store,
				QueueSize:     cfg.SinkQueueSize,
				WriteAttempts: cfg.SinkWriteAttempts,
				Logger:        logger,
			},
			RunTimeout: cfg.RunTimeout,
			Logger:     logger,
		}),
		Period:              cfg.Period,
		MinOpenInterestUSDT: cfg.MinOpenInterestUSDT,
		Logger:              logger,
		Verbose:             true,
	})

	result, err := orch.Run(ctx)
	if err != nil {
		return err
	}

	gen := reporting.NewGenerator(store, cfg.FundingConfirmThreshold)
	report := gen.ScanReport(result.Run, result.Summary, result.Signals)
	if err := reporting.WriteFile(cfg.ScanCSVPath, func(w io.Writer) error {
		return reporting.WriteScanCSV(w, report)
	}); err != nil {
		return err
	}

	fmt.Printf("\n✅ CSV exported to: %s\n", cfg.ScanCSVPath)
	fmt.Print(reporting.RenderScanSummary(report))

	if !withRisk {
		return nil
	}
	return runRisk(ctx, logger, cfg, client, store, gen, verbose)
}

func runRisk(ctx context.Context, logger *log.Logger, cfg *config.Config, market risk.MarketData, store storage.ScanStore, gen *reporting.Generator, verbose bool) error {
	analyzer := risk.NewAnalyzer(risk.Options{
		Market:              market,
		Signals:             store,
		MinOpenInterestUSDT: cfg.RiskMinOpenInterestUSDT,
		Pace:                cfg.RiskPace,
		Logger:              logger,
		Verbose:             verbose,
	})

	result, err := analyzer.Run(ctx)
	if err != nil {
		return fmt.Errorf("risk pass: %w", err)
	}

	report := gen.RiskReport(result, cfg.RiskMinOpenInterestUSDT)
	if err := reporting.WriteFile(cfg.RiskCSVPath, func(w io.Writer) error {
		return reporting.WriteRiskCSV(w, report)
	}); err != nil {
		return err
	}
	if err := reporting.WriteFile(cfg.GradesJSONPath, func(w io.Writer) error {
		return reporting.WriteGradesJSON(w, report)
	}); err != nil {
		return err
	}

	fmt.Printf("\n✅ CSV exported to: %s\n", cfg.RiskCSVPath)
	fmt.Printf("✅ Grades JSON exported to: %s\n", cfg.GradesJSONPath)
	fmt.Print(reporting.RenderRiskSummary(report))
	return nil
}

// serveMetrics exposes /metrics and /health until the process exits.
func serveMetrics(logger *log.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	logger.Printf("Starting metrics server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Printf("Metrics server error: %v", err)
	}
}
