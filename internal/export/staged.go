package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gvanweelden/fulfilsync/internal/models"
	"github.com/gvanweelden/fulfilsync/internal/transport"
	"github.com/gvanweelden/fulfilsync/pkg/encoding"
	"github.com/gvanweelden/fulfilsync/pkg/metrics"
)

// StagedStore persists the staging table and its error-dedup state.
type StagedStore interface {
	CreateStaged(ctx context.Context, s *models.StagedOrder) (int64, error)
	StagedExistsForOrder(ctx context.Context, orderID int64) (bool, error)
	StagedByState(ctx context.Context, state models.StagedState, limit int) ([]models.StagedOrder, error)
	MarkStagedQueued(ctx context.Context, id int64, shippingCode string) error
	MarkStagedExported(ctx context.Context, id int64, at time.Time) error
	UpdateStagedError(ctx context.Context, id int64, text, hash string, at time.Time) error
}

// OrderSource reads order snapshots from the host application.
type OrderSource interface {
	OrderByID(ctx context.Context, id int64) (*models.Order, error)
	UnstagedOrders(ctx context.Context, limit int) ([]models.Order, error)
}

// NoteSink posts a human-visible note on an order's activity trail.
type NoteSink interface {
	AppendOrderNote(ctx context.Context, orderID int64, note string) error
}

// StagedExporter drives the SFTP export path: confirmed orders are staged,
// queued rows are rendered to ECS XML and uploaded.
type StagedExporter struct {
	store   StagedStore
	orders  OrderSource
	notes   NoteSink
	builder *Builder
	files   transport.FileTransport
	dir     string
	pattern string
	logger  *slog.Logger
}

func NewStagedExporter(store StagedStore, orders OrderSource, notes NoteSink, builder *Builder,
	files transport.FileTransport, dir, pattern string, logger *slog.Logger) *StagedExporter {
	return &StagedExporter{
		store:   store,
		orders:  orders,
		notes:   notes,
		builder: builder,
		files:   files,
		dir:     dir,
		pattern: pattern,
		logger:  logger,
	}
}

// ScanOrders stages confirmed orders that have no staged row yet. New rows
// start as drafts; QueueDrafts promotes them once a shipping code is set.
func (e *StagedExporter) ScanOrders(ctx context.Context, limit int) (int, error) {
	orders, err := e.orders.UnstagedOrders(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("scan for unstaged orders: %w", err)
	}

	created := 0
	for i := range orders {
		order := &orders[i]

		exists, err := e.store.StagedExistsForOrder(ctx, order.ID)
		if err != nil {
			return created, fmt.Errorf("staged lookup for order %s: %w", order.Name, err)
		}
		if exists {
			continue
		}

		var weight float64
		for _, line := range order.Lines {
			if line.Product == nil || line.Product.IsService() {
				continue
			}
			weight += line.Product.WeightKg() * line.Qty
		}

		staged := &models.StagedOrder{
			OrderID:     order.ID,
			Name:        order.Name,
			CountryCode: order.ShipTo.CountryCode,
			WeightKg:    weight,
			State:       models.StagedDraft,
			Source:      "sales",
			CreatedAt:   time.Now().UTC(),
		}
		if _, err := e.store.CreateStaged(ctx, staged); err != nil {
			return created, fmt.Errorf("stage order %s: %w", order.Name, err)
		}
		created++
	}
	return created, nil
}

// QueueDrafts applies the shipping rule to every draft row and promotes
// it to queued. A draft whose rule lookup fails is reported on its own
// row; the batch continues.
func (e *StagedExporter) QueueDrafts(ctx context.Context, limit int) (int, error) {
	drafts, err := e.store.StagedByState(ctx, models.StagedDraft, limit)
	if err != nil {
		return 0, fmt.Errorf("fetch draft staged orders: %w", err)
	}

	queued := 0
	for _, draft := range drafts {
		code, err := e.builder.ShippingCode(ctx, draft.CountryCode, draft.WeightKg)
		if err != nil {
			e.logger.Error("Shipping rule failed for draft", "staged_id", draft.ID, "order", draft.Name, "error", err)
			e.ReportError(ctx, draft, err.Error())
			continue
		}
		if err := e.store.MarkStagedQueued(ctx, draft.ID, code); err != nil {
			return queued, fmt.Errorf("queue staged %d: %w", draft.ID, err)
		}
		queued++
	}
	return queued, nil
}

// ExportQueued renders and uploads every queued staged order. A failing
// order is reported on its own row; the batch continues.
func (e *StagedExporter) ExportQueued(ctx context.Context, limit int) (int, error) {
	if !e.files.Enabled() {
		e.logger.Warn("SFTP export skipped, transport disabled")
		return 0, nil
	}

	queued, err := e.store.StagedByState(ctx, models.StagedQueued, limit)
	if err != nil {
		return 0, fmt.Errorf("fetch queued staged orders: %w", err)
	}

	exported := 0
	for _, staged := range queued {
		if err := e.exportOne(ctx, staged); err != nil {
			e.logger.Error("Staged export failed", "staged_id", staged.ID, "order", staged.Name, "error", err)
			e.ReportError(ctx, staged, err.Error())
			metrics.ExportAttempts.WithLabelValues("error", "sftp").Inc()
			continue
		}
		exported++
		metrics.ExportAttempts.WithLabelValues("sent", "sftp").Inc()
	}
	return exported, nil
}

func (e *StagedExporter) exportOne(ctx context.Context, staged models.StagedOrder) error {
	order, err := e.orders.OrderByID(ctx, staged.OrderID)
	if err != nil {
		return fmt.Errorf("load order %d: %w", staged.OrderID, err)
	}
	if order == nil {
		return &models.ValidationError{Reason: fmt.Sprintf("staged row %d references missing order", staged.ID)}
	}

	xmlBody, err := e.builder.BuildOrderXML(ctx, order)
	if err != nil {
		return err
	}

	filename := Filename(e.pattern, time.Now())
	if err := e.files.Upload(e.dir, filename, encoding.ToWin1252(string(xmlBody))); err != nil {
		return &models.TransportError{Op: "sftp upload", Err: err}
	}

	if err := e.store.MarkStagedExported(ctx, staged.ID, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark staged %d exported: %w", staged.ID, err)
	}

	e.logger.Info("Order exported via SFTP", "order", order.Name, "file", filename)
	return nil
}

// ReportError records an error on a staged order. A note is posted only
// when the error hash changed since the last report; the raw text and
// timestamp are refreshed every time, so silent repeats never re-notify
// but the record always shows the latest truth.
func (e *StagedExporter) ReportError(ctx context.Context, staged models.StagedOrder, text string) {
	if text == "" {
		text = "unknown error"
	}
	hash := models.ErrorHash(text)

	if hash != staged.LastErrorHash {
		if err := e.notes.AppendOrderNote(ctx, staged.OrderID, "Carrier export error: "+text); err != nil {
			e.logger.Error("Failed to post error note", "order_id", staged.OrderID, "error", err)
		}
	}

	if err := e.store.UpdateStagedError(ctx, staged.ID, text, hash, time.Now().UTC()); err != nil {
		e.logger.Error("Failed to update staged error state", "staged_id", staged.ID, "error", err)
	}
}
