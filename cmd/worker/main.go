package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gvanweelden/fulfilsync/internal/broker"
	"github.com/gvanweelden/fulfilsync/internal/config"
	"github.com/gvanweelden/fulfilsync/internal/export"
	"github.com/gvanweelden/fulfilsync/internal/queue"
	"github.com/gvanweelden/fulfilsync/internal/rules"
	"github.com/gvanweelden/fulfilsync/internal/shipment"
	"github.com/gvanweelden/fulfilsync/internal/store"
	"github.com/gvanweelden/fulfilsync/internal/transport"
	"github.com/gvanweelden/fulfilsync/pkg/infra"
	"github.com/gvanweelden/fulfilsync/pkg/metrics"
)

func main() {
	cfg := config.Load()
	logger := infra.SetupLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pg, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Fatal error connecting to Postgres", "error", err)
		os.Exit(1)
	}
	defer pg.Close()

	janitorDone := make(chan struct{})
	go runMaintenance(ctx, pg, cfg.MaintenanceInterval, janitorDone)

	slog.Info("🚀 Fulfilment worker started", "pid", os.Getpid(),
		"queue", cfg.QueueEnabled, "export", cfg.ExportEnabled, "import", cfg.ImportEnabled)

	runMainLoop(ctx, pg, cfg, logger, janitorDone)
}

func runMainLoop(ctx context.Context, pg *store.Store, cfg *config.Config, logger *slog.Logger, janitorDone chan struct{}) {
	backoff := infra.NewBackoff(1*time.Second, 60*time.Second, 2.0)
	files := transport.NewSFTP(cfg, logger)

	var rabbit *broker.Publisher

	for {
		select {
		case <-ctx.Done():
			slog.Info("👋 Shutting down worker loop...")
			if rabbit != nil {
				rabbit.Close()
			}
			<-janitorDone
			slog.Info("✅ Shutdown complete")
			return
		default:
			// Lifecycle: keep the event broker link alive when configured.
			if cfg.AMQPURL != "" && (rabbit == nil || !rabbit.IsHealthy()) {
				if rabbit != nil {
					rabbit.Close()
				}

				newRabbit, err := broker.NewPublisher(cfg.AMQPURL, logger)
				if err != nil {
					wait := backoff.Next()
					slog.Error("RabbitMQ link failure, retrying", "wait", wait, "error", err)

					select {
					case <-time.After(wait):
						continue
					case <-ctx.Done():
						continue
					}
				}
				rabbit = newRabbit
				backoff.Reset()
			}

			var publisher shipment.Publisher = broker.Noop{}
			if rabbit != nil {
				publisher = rabbit
			}

			if err := runCycle(ctx, pg, cfg, files, publisher, logger); err != nil {
				wait := backoff.Next()
				slog.Error("Worker cycle error", "retry_in", wait, "error", err)

				select {
				case <-time.After(wait):
					continue
				case <-ctx.Done():
					continue
				}
			}

			backoff.Reset()

			select {
			case <-time.After(cfg.PollInterval):
			case <-ctx.Done():
			}
		}
	}
}

// runCycle runs every enabled stage once. Stage failures inside a batch
// are settled per row; an error here means the stage could not run at all.
func runCycle(ctx context.Context, pg *store.Store, cfg *config.Config,
	files transport.FileTransport, publisher shipment.Publisher, logger *slog.Logger) error {

	labels := shipment.NewCarrierLabels(cfg, transport.NewHTTPClient(cfg, logger), pg, pg, logger)
	applier := shipment.NewApplier(pg, publisher, labels, cfg.TrackingURLFormat, logger)

	if cfg.QueueEnabled {
		processor := queue.NewProcessor(pg, pg, applier, logger)
		if _, err := processor.ProcessBatch(ctx, cfg.BatchSize); err != nil {
			return err
		}
	}

	if cfg.ExportEnabled {
		kits, err := pg.LoadKitSource(ctx)
		if err != nil {
			return err
		}

		engine := rules.NewEngine(pg, logger)
		builder := export.NewBuilder(cfg, kits, engine, logger)
		exporter := export.NewStagedExporter(pg, pg, pg, builder, files,
			cfg.SFTPOrderPath, cfg.OrderFilePattern, logger)

		if _, err := exporter.ScanOrders(ctx, cfg.BatchSize); err != nil {
			return err
		}
		if _, err := exporter.QueueDrafts(ctx, cfg.BatchSize); err != nil {
			return err
		}
		if _, err := exporter.ExportQueued(ctx, cfg.BatchSize); err != nil {
			return err
		}
	}

	if cfg.ImportEnabled {
		importer := shipment.NewImporter(files, pg, pg, pg, applier,
			cfg.SFTPShipmentPath, cfg.ImportAutoDone, logger)
		if _, err := importer.Poll(ctx); err != nil {
			return err
		}
	}

	return nil
}

func runMaintenance(ctx context.Context, pg *store.Store, interval time.Duration, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			slog.Info("🧹 Janitor: Starting queue health checks")

			affected, err := pg.ResetStaleJobs(ctx, 10*time.Minute)
			if err != nil {
				slog.Error("Janitor: Failed to reset stale jobs", "error", err)
			} else if affected > 0 {
				slog.Warn("Janitor: Rescued stuck jobs", "count", affected)
			}

			backlog, err := pg.CountBacklog(ctx)
			if err != nil {
				slog.Error("Janitor: Failed to measure backlog", "error", err)
			} else {
				metrics.QueueBacklog.Set(float64(backlog))
			}

		case <-ctx.Done():
			slog.Info("🛑 Janitor: Stopping maintenance goroutine")
			return
		}
	}
}
