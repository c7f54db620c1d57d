package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/gvanweelden/fulfilsync/internal/models"
)

// SaveLabel stores a shipping label PDF for later download.
func (s *Store) SaveLabel(ctx context.Context, l *models.Label) (int64, error) {
	query := `
		INSERT INTO labels (order_id, barcode, filename, content)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	var id int64
	err := s.pool.QueryRow(ctx, query, l.OrderID, l.Barcode, l.Filename, l.Content).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("save label for order %d: %w", l.OrderID, err)
	}
	return id, nil
}

// GetLabel loads one stored label. Nil without error when absent.
func (s *Store) GetLabel(ctx context.Context, id int64) (*models.Label, error) {
	query := `
		SELECT id, order_id, barcode, filename, content, created_at
		FROM labels
		WHERE id = $1
	`

	var l models.Label
	err := s.pool.QueryRow(ctx, query, id).
		Scan(&l.ID, &l.OrderID, &l.Barcode, &l.Filename, &l.Content, &l.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load label %d: %w", id, err)
	}
	return &l, nil
}
