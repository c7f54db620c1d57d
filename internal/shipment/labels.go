package shipment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gvanweelden/fulfilsync/internal/config"
	"github.com/gvanweelden/fulfilsync/internal/models"
	"github.com/gvanweelden/fulfilsync/internal/transport"
	"github.com/gvanweelden/fulfilsync/pkg/metrics"
)

// LabelStore persists downloaded label documents.
type LabelStore interface {
	SaveLabel(ctx context.Context, l *models.Label) (int64, error)
}

// AuditStore matches the export audit surface; label downloads leave the
// same pre/post trail as outbound order sends.
type AuditStore interface {
	CreateAuditEntry(ctx context.Context, e *models.AuditLogEntry) (int64, error)
	UpdateAuditEntry(ctx context.Context, id int64, httpStatus int, success bool, responseBody, errMsg string) error
}

// CarrierLabels downloads the label PDF for a barcode and stores it for
// the download endpoint. Disabled when no label URL is configured.
type CarrierLabels struct {
	http      *transport.HTTPClient
	store     LabelStore
	audit     AuditStore
	urlFormat string
	logger    *slog.Logger
}

func NewCarrierLabels(cfg *config.Config, httpClient *transport.HTTPClient,
	store LabelStore, audit AuditStore, logger *slog.Logger) *CarrierLabels {
	return &CarrierLabels{
		http:      httpClient,
		store:     store,
		audit:     audit,
		urlFormat: cfg.LabelURLFormat,
		logger:    logger,
	}
}

// FetchLabel pulls the document for one barcode and saves it. A missing
// URL format means the carrier has no label endpoint; that is not an error.
func (c *CarrierLabels) FetchLabel(ctx context.Context, order *models.Order, barcode string) error {
	if c.urlFormat == "" {
		return nil
	}

	url := fmt.Sprintf(c.urlFormat, barcode)

	entry := &models.AuditLogEntry{
		CorrelationID:      uuid.NewString(),
		OrderRef:           order.Name,
		DestinationCountry: order.ShipTo.CountryCode,
		Endpoint:           url,
		SentAt:             time.Now().UTC(),
	}
	auditID, err := c.audit.CreateAuditEntry(ctx, entry)
	if err != nil {
		return fmt.Errorf("create audit entry for label %s: %w", barcode, err)
	}

	status, body, err := c.http.GetBinary(ctx, url)

	var errMsg string
	if err != nil {
		errMsg = err.Error()
	}
	if uerr := c.audit.UpdateAuditEntry(ctx, auditID, status, err == nil,
		"", models.TruncateError(errMsg)); uerr != nil {
		c.logger.Error("Failed to complete audit entry", "barcode", barcode, "error", uerr)
	}

	if err != nil {
		metrics.LabelsFetched.WithLabelValues("error").Inc()
		return fmt.Errorf("download label %s: %w", barcode, err)
	}

	label := &models.Label{
		OrderID:  order.ID,
		Barcode:  barcode,
		Filename: fmt.Sprintf("Label_%s.pdf", barcode),
		Content:  body,
	}
	id, err := c.store.SaveLabel(ctx, label)
	if err != nil {
		metrics.LabelsFetched.WithLabelValues("error").Inc()
		return fmt.Errorf("store label %s: %w", barcode, err)
	}

	metrics.LabelsFetched.WithLabelValues("stored").Inc()
	c.logger.Info("Shipment label stored", "order", order.Name, "barcode", barcode, "label_id", id)
	return nil
}
