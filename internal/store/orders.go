package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/gvanweelden/fulfilsync/internal/models"
)

const orderColumns = `
	o.id, o.name, o.client_ref, o.order_date,
	o.ship_name, o.ship_street, o.ship_street2, o.ship_postal_code,
	o.ship_city, o.ship_country, o.ship_phone, o.ship_mobile, o.ship_email,
	o.bill_name, o.bill_street, o.bill_street2, o.bill_postal_code,
	o.bill_city, o.bill_country, o.bill_phone, o.bill_mobile, o.bill_email,
	o.fulfilment_order_no, o.message_no, o.tracking_codes,
	o.ship_date, o.ship_time, o.fulfilment_status, o.last_webhook_at, o.last_payload`

// FindOrderByAny resolves one reference against the carrier order number,
// the order name and the client reference in a single query. First hit
// wins; nil without error means no match. Lines are not loaded: the
// shipment applier never needs them.
func (s *Store) FindOrderByAny(ctx context.Context, ref string) (*models.Order, error) {
	if ref == "" {
		return nil, nil
	}

	query := `
		SELECT ` + orderColumns + `
		FROM orders o
		WHERE o.fulfilment_order_no = $1 OR o.name = $1 OR o.client_ref = $1
		ORDER BY (o.fulfilment_order_no = $1) DESC, (o.name = $1) DESC
		LIMIT 1
	`

	order, err := scanOrder(s.pool.QueryRow(ctx, query, ref))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve order %q: %w", ref, err)
	}
	return order, nil
}

// OrderByID loads a full order snapshot including its lines.
func (s *Store) OrderByID(ctx context.Context, id int64) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders o WHERE o.id = $1`

	order, err := scanOrder(s.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load order %d: %w", id, err)
	}

	if order.Lines, err = s.loadLines(ctx, order.ID); err != nil {
		return nil, err
	}
	return order, nil
}

// UnstagedOrders returns confirmed orders that have no staging row yet,
// lines included. Batches are small, so per-order line loading is fine.
func (s *Store) UnstagedOrders(ctx context.Context, limit int) ([]models.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders o
		WHERE o.state = 'confirmed'
		  AND NOT EXISTS (SELECT 1 FROM staged_orders st WHERE st.order_id = o.id)
		ORDER BY o.order_date ASC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch unstaged orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range orders {
		if orders[i].Lines, err = s.loadLines(ctx, orders[i].ID); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func scanOrder(row pgx.Row) (*models.Order, error) {
	var o models.Order
	err := row.Scan(
		&o.ID, &o.Name, &o.ClientRef, &o.OrderDate,
		&o.ShipTo.Name, &o.ShipTo.Street, &o.ShipTo.Street2, &o.ShipTo.PostalCode,
		&o.ShipTo.City, &o.ShipTo.CountryCode, &o.ShipTo.Phone, &o.ShipTo.Mobile, &o.ShipTo.Email,
		&o.BillTo.Name, &o.BillTo.Street, &o.BillTo.Street2, &o.BillTo.PostalCode,
		&o.BillTo.City, &o.BillTo.CountryCode, &o.BillTo.Phone, &o.BillTo.Mobile, &o.BillTo.Email,
		&o.Shipment.FulfilmentOrderNo, &o.Shipment.MessageNo, &o.Shipment.TrackingCodes,
		&o.Shipment.ShipDate, &o.Shipment.ShipTime, &o.Shipment.Status,
		&o.Shipment.LastWebhookAt, &o.Shipment.LastPayload,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// loadLines reads the order lines with their product snapshots. A product
// carrying a carrier SKU override comes back as a CarrierProduct so the
// resolver's type assertion fires.
func (s *Store) loadLines(ctx context.Context, orderID int64) ([]models.OrderLine, error) {
	query := `
		SELECT l.qty,
		       p.id, p.internal_ref, p.barcode, p.supplier_refs, p.template_ref,
		       p.display_name, p.weight_kg, p.is_service, p.carrier_sku
		FROM order_lines l
		JOIN products p ON p.id = l.product_id
		WHERE l.order_id = $1
		ORDER BY l.id ASC
	`

	rows, err := s.pool.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("fetch lines for order %d: %w", orderID, err)
	}
	defer rows.Close()

	var lines []models.OrderLine
	for rows.Next() {
		var (
			line       models.OrderLine
			p          models.CatalogProduct
			carrierSKU *string
		)
		err := rows.Scan(
			&line.Qty,
			&p.ProductID, &p.Ref, &p.EAN, &p.SupplierRef, &p.Template,
			&p.Name, &p.Weight, &p.Service, &carrierSKU,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}

		if carrierSKU != nil {
			line.Product = models.CarrierProduct{CatalogProduct: p, SKUOverride: *carrierSKU}
		} else {
			line.Product = p
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// UpdateOrderShipment persists the carrier-owned fields after a merge.
func (s *Store) UpdateOrderShipment(ctx context.Context, orderID int64, state models.ShipmentState) error {
	query := `
		UPDATE orders
		SET fulfilment_order_no = $2, message_no = $3, tracking_codes = $4,
		    ship_date = $5, ship_time = $6, fulfilment_status = $7,
		    last_webhook_at = $8, last_payload = $9
		WHERE id = $1
	`
	_, err := s.pool.Exec(ctx, query, orderID,
		state.FulfilmentOrderNo, state.MessageNo, state.TrackingCodes,
		state.ShipDate, state.ShipTime, state.Status,
		state.LastWebhookAt, state.LastPayload,
	)
	if err != nil {
		return fmt.Errorf("update shipment state for order %d: %w", orderID, err)
	}
	return nil
}

// OpenPickings lists the not-yet-completed outbound pickings of an order.
func (s *Store) OpenPickings(ctx context.Context, orderID int64) ([]models.Picking, error) {
	query := `
		SELECT id, order_id, name, state, tracking_ref, created_at
		FROM pickings
		WHERE order_id = $1 AND state NOT IN ('done', 'cancel')
		ORDER BY created_at ASC
	`

	rows, err := s.pool.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("fetch pickings for order %d: %w", orderID, err)
	}
	defer rows.Close()

	var pickings []models.Picking
	for rows.Next() {
		var p models.Picking
		if err := rows.Scan(&p.ID, &p.OrderID, &p.Name, &p.State, &p.TrackingRef, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan picking: %w", err)
		}
		pickings = append(pickings, p)
	}
	return pickings, rows.Err()
}

// CompleteOpenPickings marks every still-open picking of an order done.
// Used when the carrier reports delivery and auto-completion is enabled.
func (s *Store) CompleteOpenPickings(ctx context.Context, orderID int64) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE pickings SET state = 'done' WHERE order_id = $1 AND state NOT IN ('done', 'cancel')`,
		orderID)
	if err != nil {
		return 0, fmt.Errorf("complete pickings for order %d: %w", orderID, err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) SetPickingTracking(ctx context.Context, pickingID int64, trackingRef string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE pickings SET tracking_ref = $2 WHERE id = $1`, pickingID, trackingRef)
	if err != nil {
		return fmt.Errorf("set tracking on picking %d: %w", pickingID, err)
	}
	return nil
}

// AppendOrderNote adds a line to the order's activity trail.
func (s *Store) AppendOrderNote(ctx context.Context, orderID int64, note string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO order_notes (order_id, body) VALUES ($1, $2)`, orderID, note)
	if err != nil {
		return fmt.Errorf("append note to order %d: %w", orderID, err)
	}
	return nil
}
