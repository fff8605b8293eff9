package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"casebook/internal/amqp"
	"casebook/internal/cli"
	"casebook/internal/config"
	"casebook/internal/log"
	"casebook/internal/sheets"
	gsheet "casebook/internal/sheets/google"
	"casebook/internal/sheets/memory"
	"casebook/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	logger.Info("Starting casebook-worker")
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	// The worker only reads cases, so it never publishes events itself.
	res := cli.InitBackend(ctx, logger, cfg, false)
	defer func() {
		if res.Cleanup != nil {
			_ = res.Cleanup()
		}
	}()

	ledger := newLedger(ctx, logger, cfg)
	syncWorker := worker.NewSyncWorker(res.Backend, ledger, cfg.CaseListLimit)

	g, gctx := errgroup.WithContext(ctx)

	if len(cfg.ReportOwners) > 0 {
		g.Go(func() error {
			logger.Info("Performing startup resync", "owners", len(cfg.ReportOwners))
			if err := syncWorker.Resync(gctx, cfg.ReportOwners); err != nil {
				// Not fatal: events keep the ledger current from here on.
				logger.Error("Startup resync failed", "error", err)
			}
			return nil
		})
	}

	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer client.Close()
		g.Go(func() error {
			return client.ConsumeCaseEvents(gctx, syncWorker.HandleCaseEvent)
		})
	} else {
		logger.Info("Skipping AMQP message consumption - no AMQP_URL provided")
	}

	if cfg.ReportSchedule != "" && len(cfg.ReportOwners) > 0 {
		job := worker.NewReportJob(res.Backend, cfg.ReportOwners, cfg.ReportDir, cfg.CaseListLimit, cfg.Location())
		g.Go(func() error {
			return job.Run(gctx, cfg.ReportSchedule)
		})
	} else {
		logger.Info("Skipping scheduled report exports - no schedule or REPORT_OWNERS")
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}

// newLedger picks the Google Sheets ledger when a spreadsheet is configured
// and an in-process ledger otherwise.
func newLedger(ctx context.Context, logger *slog.Logger, cfg *config.Config) sheets.CaseWriter {
	if cfg.GoogleSpreadsheetID == "" {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, keeping ledger in memory")
		return memory.New()
	}
	client, err := gsheet.New(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	return client
}
