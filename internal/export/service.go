package export

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gvanweelden/fulfilsync/internal/config"
	"github.com/gvanweelden/fulfilsync/internal/models"
	"github.com/gvanweelden/fulfilsync/internal/transport"
	"github.com/gvanweelden/fulfilsync/pkg/metrics"
)

const maxResponseLogLen = 5000

// AuditStore persists outbound attempt records. The entry is written
// before the network call and completed after it.
type AuditStore interface {
	CreateAuditEntry(ctx context.Context, e *models.AuditLogEntry) (int64, error)
	UpdateAuditEntry(ctx context.Context, id int64, httpStatus int, success bool, responseBody, errMsg string) error
}

// Service drives the REST export path: guard, build, audit, send, audit.
type Service struct {
	cfg     *config.Config
	builder *Builder
	http    *transport.HTTPClient
	audit   AuditStore
	logger  *slog.Logger
}

func NewService(cfg *config.Config, builder *Builder, httpClient *transport.HTTPClient, audit AuditStore, logger *slog.Logger) *Service {
	return &Service{cfg: cfg, builder: builder, http: httpClient, audit: audit, logger: logger}
}

// SendOrder exports one order to the carrier REST API. The bool reports
// whether the carrier accepted the order; transport failures come back as
// (false, nil) with the detail in the audit log.
func (s *Service) SendOrder(ctx context.Context, order *models.Order) (bool, error) {
	if err := s.cfg.ValidateAPI(); err != nil {
		return false, err
	}

	if !transport.InstanceAllowed(s.cfg.BaseURL, s.cfg.AllowedBaseURLs) {
		s.logger.Warn("Send blocked by instance guard",
			"order", order.Name, "base_url", s.cfg.BaseURL, "allowed", s.cfg.AllowedBaseURLs)
		s.auditBlocked(ctx, order)
		metrics.ExportAttempts.WithLabelValues("blocked", "http").Inc()
		return false, models.ErrGuardBlocked
	}

	payload, info, err := s.builder.BuildOrder(ctx, order)
	if err != nil {
		return false, err
	}
	if payload == nil {
		// Nothing shippable; not a failure.
		return true, nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("marshal payload for %s: %w", order.Name, err)
	}

	entry := &models.AuditLogEntry{
		CorrelationID:      uuid.NewString(),
		OrderRef:           order.Name,
		DestinationCountry: info.CountryCode,
		TotalWeightKg:      info.TotalWeightKg,
		ProductCode:        payload.ProductCode,
		Endpoint:           s.cfg.APIURL,
		RequestPayload:     string(body),
		SentAt:             time.Now().UTC(),
	}
	auditID, err := s.audit.CreateAuditEntry(ctx, entry)
	if err != nil {
		return false, fmt.Errorf("create audit entry for %s: %w", order.Name, err)
	}

	l := s.logger.With("order", order.Name, "correlation_id", entry.CorrelationID)

	res := s.http.PostJSON(ctx, s.cfg.APIURL, body)

	responseBody := res.Body
	if len(responseBody) > maxResponseLogLen {
		responseBody = responseBody[:maxResponseLogLen]
	}
	if err := s.audit.UpdateAuditEntry(ctx, auditID, res.Status, res.Success,
		responseBody, models.TruncateError(res.Err)); err != nil {
		l.Error("Failed to complete audit entry", "error", err)
	}

	if res.Success {
		l.Info("Order exported to carrier", "http_status", res.Status)
		metrics.ExportAttempts.WithLabelValues("sent", "http").Inc()
		return true, nil
	}

	l.Error("Carrier rejected order export", "http_status", res.Status, "error", res.Err)
	metrics.ExportAttempts.WithLabelValues("error", "http").Inc()
	return false, nil
}

// auditBlocked leaves a trace of a guard-refused send. Best effort: the
// block itself must not fail on a logging problem.
func (s *Service) auditBlocked(ctx context.Context, order *models.Order) {
	reason, _ := json.Marshal(map[string]string{
		"blocked":           "true",
		"reason":            "blocked by base URL guard",
		"base_url":          s.cfg.BaseURL,
		"allowed_base_urls": s.cfg.AllowedBaseURLs,
	})

	entry := &models.AuditLogEntry{
		CorrelationID:      uuid.NewString(),
		OrderRef:           order.Name,
		DestinationCountry: order.ShipTo.CountryCode,
		Endpoint:           s.cfg.APIURL,
		RequestPayload:     string(reason),
		HTTPStatus:         0,
		Success:            false,
		ErrorMessage:       "Blocked by URL guard",
		SentAt:             time.Now().UTC(),
	}
	if _, err := s.audit.CreateAuditEntry(ctx, entry); err != nil {
		s.logger.Error("Failed to audit blocked send", "order", order.Name, "error", err)
	}
}
