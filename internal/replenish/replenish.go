// Package replenish announces inbound stock to the carrier so the
// warehouse expects the goods before they arrive.
package replenish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gvanweelden/fulfilsync/internal/address"
	"github.com/gvanweelden/fulfilsync/internal/config"
	"github.com/gvanweelden/fulfilsync/internal/models"
	"github.com/gvanweelden/fulfilsync/internal/sku"
	"github.com/gvanweelden/fulfilsync/internal/transport"
	"github.com/gvanweelden/fulfilsync/pkg/metrics"
)

const (
	dateLayout        = "2006-01-02"
	maxDescriptionLen = 35
)

// Order is one inbound purchase order to announce.
type Order struct {
	ID             int64
	Name           string
	OrderDate      time.Time
	PlannedReceipt time.Time
	Lines          []models.OrderLine
}

// payload follows the carrier's replenishment API contract.
type payload struct {
	OrderNumber        string        `json:"orderNumber"`
	MerchantCode       string        `json:"merchantCode"`
	FulfilmentLocation string        `json:"fulfilmentLocation"`
	OrderDate          string        `json:"orderDate"`
	PlannedReceiptDate string        `json:"plannedReceiptDate"`
	OrderLines         []payloadLine `json:"orderLines"`
}

type payloadLine struct {
	SKU         string `json:"SKU"`
	Quantity    int    `json:"quantity"`
	Description string `json:"description"`
}

// AuditStore matches the export audit surface; replenishment attempts
// land in the same log.
type AuditStore interface {
	CreateAuditEntry(ctx context.Context, e *models.AuditLogEntry) (int64, error)
	UpdateAuditEntry(ctx context.Context, id int64, httpStatus int, success bool, responseBody, errMsg string) error
}

type Service struct {
	cfg    *config.Config
	http   *transport.HTTPClient
	audit  AuditStore
	logger *slog.Logger
}

func NewService(cfg *config.Config, httpClient *transport.HTTPClient, audit AuditStore, logger *slog.Logger) *Service {
	return &Service{cfg: cfg, http: httpClient, audit: audit, logger: logger}
}

// Announce sends one replenishment order. Same contract as the order
// export: the bool reports carrier acceptance, transport detail lives in
// the audit log.
func (s *Service) Announce(ctx context.Context, order *Order) (bool, error) {
	if err := s.cfg.ValidateAPI(); err != nil {
		return false, err
	}
	if s.cfg.ReplenishmentURL == "" {
		return false, &config.ConfigurationError{Missing: []string{"Replenishment URL"}}
	}

	if !transport.InstanceAllowed(s.cfg.BaseURL, s.cfg.AllowedBaseURLs) {
		s.logger.Warn("Replenishment blocked by instance guard", "order", order.Name)
		metrics.ExportAttempts.WithLabelValues("blocked", "http").Inc()
		return false, models.ErrGuardBlocked
	}

	p, err := s.build(order)
	if err != nil {
		return false, err
	}

	body, err := json.Marshal(p)
	if err != nil {
		return false, fmt.Errorf("marshal replenishment for %s: %w", order.Name, err)
	}

	entry := &models.AuditLogEntry{
		CorrelationID:  uuid.NewString(),
		OrderRef:       order.Name,
		Endpoint:       s.cfg.ReplenishmentURL,
		RequestPayload: string(body),
		SentAt:         time.Now().UTC(),
	}
	auditID, err := s.audit.CreateAuditEntry(ctx, entry)
	if err != nil {
		return false, fmt.Errorf("create audit entry for %s: %w", order.Name, err)
	}

	res := s.http.PostJSON(ctx, s.cfg.ReplenishmentURL, body)

	if err := s.audit.UpdateAuditEntry(ctx, auditID, res.Status, res.Success,
		res.Body, models.TruncateError(res.Err)); err != nil {
		s.logger.Error("Failed to complete audit entry", "order", order.Name, "error", err)
	}

	if res.Success {
		s.logger.Info("Replenishment announced", "order", order.Name, "http_status", res.Status)
		metrics.ExportAttempts.WithLabelValues("sent", "http").Inc()
		return true, nil
	}

	s.logger.Error("Carrier rejected replenishment", "order", order.Name,
		"http_status", res.Status, "error", res.Err)
	metrics.ExportAttempts.WithLabelValues("error", "http").Inc()
	return false, nil
}

func (s *Service) build(order *Order) (*payload, error) {
	lines := make([]payloadLine, 0, len(order.Lines))
	for _, line := range order.Lines {
		if line.Product == nil || line.Product.IsService() {
			continue
		}

		resolved := sku.Resolve(line.Product)
		if resolved == "" {
			s.logger.Warn("Dropping replenishment line with unresolvable SKU",
				"order", order.Name, "product", line.Product.DisplayName())
			continue
		}

		description := line.Product.DisplayName()
		if len(description) > maxDescriptionLen {
			description = description[:maxDescriptionLen]
		}

		qty := int(line.Qty)
		if qty <= 0 {
			continue
		}

		lines = append(lines, payloadLine{SKU: resolved, Quantity: qty, Description: description})
	}
	if len(lines) == 0 {
		return nil, &models.ValidationError{
			Reason: fmt.Sprintf("replenishment %s has no announceable lines", order.Name),
		}
	}

	planned := order.PlannedReceipt
	if planned.IsZero() {
		planned = order.OrderDate
	}

	return &payload{
		OrderNumber:        address.SanitizeOrderNumber(order.Name, order.ID),
		MerchantCode:       s.cfg.MerchantCode,
		FulfilmentLocation: s.cfg.FulfilmentLoc,
		OrderDate:          order.OrderDate.Format(dateLayout),
		PlannedReceiptDate: planned.Format(dateLayout),
		OrderLines:         lines,
	}, nil
}
