package store

import (
	"context"
	"fmt"

	"github.com/gvanweelden/fulfilsync/internal/models"
)

// CreateAuditEntry writes the pre-call half of an audit row.
func (s *Store) CreateAuditEntry(ctx context.Context, e *models.AuditLogEntry) (int64, error) {
	query := `
		INSERT INTO export_audit_log
			(correlation_id, order_ref, destination_country, total_weight_kg,
			 product_code, endpoint, request_payload, http_status, success,
			 error_message, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`

	var id int64
	err := s.pool.QueryRow(ctx, query,
		e.CorrelationID, e.OrderRef, e.DestinationCountry, e.TotalWeightKg,
		e.ProductCode, e.Endpoint, e.RequestPayload, e.HTTPStatus, e.Success,
		e.ErrorMessage, e.SentAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create audit entry: %w", err)
	}
	return id, nil
}

// UpdateAuditEntry completes a row after the transport call returned.
func (s *Store) UpdateAuditEntry(ctx context.Context, id int64, httpStatus int, success bool, responseBody, errMsg string) error {
	query := `
		UPDATE export_audit_log
		SET http_status = $2, success = $3, response_body = $4, error_message = $5
		WHERE id = $1
	`
	_, err := s.pool.Exec(ctx, query, id, httpStatus, success, responseBody, errMsg)
	if err != nil {
		return fmt.Errorf("update audit entry %d: %w", id, err)
	}
	return nil
}
