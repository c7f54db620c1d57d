package store

import (
	"context"
	"fmt"
	"time"

	"github.com/gvanweelden/fulfilsync/internal/models"
)

func (s *Store) CreateStaged(ctx context.Context, st *models.StagedOrder) (int64, error) {
	query := `
		INSERT INTO staged_orders
			(order_id, name, country_code, weight_kg, shipping_code, state, source, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	var id int64
	err := s.pool.QueryRow(ctx, query,
		st.OrderID, st.Name, st.CountryCode, st.WeightKg,
		st.ShippingCode, st.State, st.Source, st.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create staged order for %s: %w", st.Name, err)
	}
	st.ID = id
	return id, nil
}

func (s *Store) StagedExistsForOrder(ctx context.Context, orderID int64) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM staged_orders WHERE order_id = $1)`, orderID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("staged lookup for order %d: %w", orderID, err)
	}
	return exists, nil
}

func (s *Store) StagedByState(ctx context.Context, state models.StagedState, limit int) ([]models.StagedOrder, error) {
	query := `
		SELECT id, order_id, name, country_code, weight_kg, shipping_code,
		       tracking_number, state, source, last_sync_at, last_error_text,
		       last_error_hash, created_at
		FROM staged_orders
		WHERE state = $1
		ORDER BY created_at ASC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, state, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch staged orders in %s: %w", state, err)
	}
	defer rows.Close()

	var staged []models.StagedOrder
	for rows.Next() {
		var st models.StagedOrder
		err := rows.Scan(
			&st.ID, &st.OrderID, &st.Name, &st.CountryCode, &st.WeightKg,
			&st.ShippingCode, &st.TrackingNumber, &st.State, &st.Source,
			&st.LastSyncAt, &st.LastErrorText, &st.LastErrorHash, &st.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan staged order: %w", err)
		}
		staged = append(staged, st)
	}
	return staged, rows.Err()
}

// MarkStagedQueued promotes a draft once its shipping code is resolved.
// The state guard keeps a concurrent promotion from clobbering a row that
// already moved on.
func (s *Store) MarkStagedQueued(ctx context.Context, id int64, shippingCode string) error {
	query := `
		UPDATE staged_orders
		SET state = 'queued', shipping_code = $2
		WHERE id = $1 AND state = 'draft'
	`
	_, err := s.pool.Exec(ctx, query, id, shippingCode)
	return err
}

func (s *Store) MarkStagedExported(ctx context.Context, id int64, at time.Time) error {
	query := `
		UPDATE staged_orders
		SET state = 'exported', last_sync_at = $2, last_error_text = '', last_error_hash = ''
		WHERE id = $1
	`
	_, err := s.pool.Exec(ctx, query, id, at)
	return err
}

// MarkStagedShipped closes the staging row of an order once the carrier
// reports its parcel. Keyed by order, not staged id: the shipment feed
// only knows the order reference.
func (s *Store) MarkStagedShipped(ctx context.Context, orderID int64, trackingNumber string) error {
	query := `
		UPDATE staged_orders
		SET state = 'shipped', tracking_number = $2, last_sync_at = CURRENT_TIMESTAMP
		WHERE order_id = $1 AND state IN ('queued', 'exported')
	`
	_, err := s.pool.Exec(ctx, query, orderID, trackingNumber)
	return err
}

// UpdateStagedError refreshes the error text and its dedup hash.
func (s *Store) UpdateStagedError(ctx context.Context, id int64, text, hash string, at time.Time) error {
	query := `
		UPDATE staged_orders
		SET state = 'error', last_error_text = $2, last_error_hash = $3, last_sync_at = $4
		WHERE id = $1
	`
	_, err := s.pool.Exec(ctx, query, id, text, hash, at)
	return err
}
