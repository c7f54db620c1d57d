package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gvanweelden/fulfilsync/internal/config"
	"github.com/gvanweelden/fulfilsync/internal/export"
	"github.com/gvanweelden/fulfilsync/internal/models"
	"github.com/gvanweelden/fulfilsync/internal/replenish"
	"github.com/gvanweelden/fulfilsync/internal/rules"
	"github.com/gvanweelden/fulfilsync/internal/store"
	"github.com/gvanweelden/fulfilsync/internal/transport"
	"github.com/gvanweelden/fulfilsync/internal/webhook"
	"github.com/gvanweelden/fulfilsync/pkg/infra"
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

	handler := webhook.NewHandler(cfg, pg, pg,
		exportFunc(pg, cfg, logger), replenishFunc(pg, cfg, logger), logger)
	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: handler.Router(),
	}

	go func() {
		slog.Info("🚀 Fulfilment webhook server started", "addr", cfg.ListenAddr, "pid", os.Getpid())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server failure", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("👋 Shutting down webhook server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Forced shutdown", "error", err)
	}
	slog.Info("✅ Shutdown complete")
}

// exportFunc builds the manual REST export trigger. Kit definitions are
// loaded per call so admin edits apply immediately.
func exportFunc(pg *store.Store, cfg *config.Config, logger *slog.Logger) webhook.ExportFunc {
	httpClient := transport.NewHTTPClient(cfg, logger)

	return func(ctx context.Context, orderID int64) (bool, error) {
		order, err := pg.OrderByID(ctx, orderID)
		if err != nil {
			return false, err
		}
		if order == nil {
			return false, fmt.Errorf("order %d not found", orderID)
		}

		kits, err := pg.LoadKitSource(ctx)
		if err != nil {
			return false, err
		}

		builder := export.NewBuilder(cfg, kits, rules.NewEngine(pg, logger), logger)
		svc := export.NewService(cfg, builder, httpClient, pg, logger)
		return svc.SendOrder(ctx, order)
	}
}

func replenishFunc(pg *store.Store, cfg *config.Config, logger *slog.Logger) webhook.ReplenishFunc {
	httpClient := transport.NewHTTPClient(cfg, logger)
	svc := replenish.NewService(cfg, httpClient, pg, logger)

	return func(ctx context.Context, req webhook.ReplenishRequest) (bool, error) {
		ids := make([]int64, 0, len(req.Lines))
		for _, line := range req.Lines {
			ids = append(ids, line.ProductID)
		}

		products, err := pg.ProductsByIDs(ctx, ids)
		if err != nil {
			return false, err
		}

		order := &replenish.Order{Name: req.OrderNumber}
		if order.OrderDate, err = time.Parse("2006-01-02", req.OrderDate); err != nil {
			return false, fmt.Errorf("invalid orderDate: %w", err)
		}
		if req.PlannedReceiptDate != "" {
			if order.PlannedReceipt, err = time.Parse("2006-01-02", req.PlannedReceiptDate); err != nil {
				return false, fmt.Errorf("invalid plannedReceiptDate: %w", err)
			}
		}

		for _, line := range req.Lines {
			product, ok := products[line.ProductID]
			if !ok {
				return false, fmt.Errorf("unknown product %d", line.ProductID)
			}
			order.Lines = append(order.Lines, models.OrderLine{Product: product, Qty: line.Qty})
		}

		return svc.Announce(ctx, order)
	}
}
