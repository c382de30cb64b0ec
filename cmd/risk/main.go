// Package main provides the risk pass entry point.
// Grades the latest stored scan run and exports the risk CSV and grades JSON.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"perp-crowd-scanner/internal/binance"
	"perp-crowd-scanner/internal/config"
	"perp-crowd-scanner/internal/reporting"
	"perp-crowd-scanner/internal/risk"
	"perp-crowd-scanner/internal/storage/backend"
)

func main() {
	storageKind := flag.String("storage", "", "Storage backend: postgres, clickhouse (default STORAGE_BACKEND)")
	csvPath := flag.String("csv", "", "Risk CSV output path (default RISK_CSV_PATH)")
	jsonPath := flag.String("json", "", "Grades JSON output path (default GRADES_JSON_PATH)")
	verbose := flag.Bool("verbose", false, "Verbose output")
	flag.Parse()

	logger := log.New(os.Stdout, "[risk] ", log.LstdFlags)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Config error: %v", err)
	}
	if *storageKind != "" {
		cfg.StorageBackend = *storageKind
	}
	if *csvPath != "" {
		cfg.RiskCSVPath = *csvPath
	}
	if *jsonPath != "" {
		cfg.GradesJSONPath = *jsonPath
	}
	if err := cfg.ValidateStorage(); err != nil {
		logger.Fatalf("Config error: %v", err)
	}
	if !backend.Persistent(cfg.StorageBackend) {
		logger.Fatalf("The %s backend keeps no runs between processes; use postgres or clickhouse, or scan with -risk", cfg.StorageBackend)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, cancelling risk pass...", sig)
		cancel()
	}()

	if err := run(ctx, logger, cfg, *verbose); err != nil {
		if errors.Is(err, risk.ErrNoRun) {
			logger.Printf("No scan run found; run the scanner first")
			os.Exit(1)
		}
		logger.Printf("Risk pass failed: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *log.Logger, cfg *config.Config, verbose bool) error {
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

	logger.Printf("Loading scan results...")
	result, err := risk.NewAnalyzer(risk.Options{
		Market:              client,
		Signals:             store,
		MinOpenInterestUSDT: cfg.RiskMinOpenInterestUSDT,
		Pace:                cfg.RiskPace,
		Logger:              logger,
		Verbose:             true,
	}).Run(ctx)
	if err != nil {
		return err
	}
	if verbose {
		logger.Printf("Assessed %d of %d hits in %v", len(result.Assessments), result.Total, result.Duration)
	}

	report := reporting.NewGenerator(store, cfg.FundingConfirmThreshold).RiskReport(result, cfg.RiskMinOpenInterestUSDT)
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
