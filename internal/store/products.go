package store

import (
	"context"
	"fmt"

	"github.com/gvanweelden/fulfilsync/internal/models"
)

// ProductsByIDs loads product snapshots keyed by id. Missing ids are
// simply absent from the result.
func (s *Store) ProductsByIDs(ctx context.Context, ids []int64) (map[int64]models.Product, error) {
	if len(ids) == 0 {
		return map[int64]models.Product{}, nil
	}

	query := `
		SELECT id, internal_ref, barcode, supplier_refs, template_ref,
		       display_name, weight_kg, is_service, carrier_sku
		FROM products
		WHERE id = ANY($1)
	`

	rows, err := s.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("fetch products: %w", err)
	}
	defer rows.Close()

	products := make(map[int64]models.Product, len(ids))
	for rows.Next() {
		var (
			p          models.CatalogProduct
			carrierSKU *string
		)
		err := rows.Scan(
			&p.ProductID, &p.Ref, &p.EAN, &p.SupplierRef, &p.Template,
			&p.Name, &p.Weight, &p.Service, &carrierSKU,
		)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}

		if carrierSKU != nil {
			products[p.ProductID] = models.CarrierProduct{CatalogProduct: p, SKUOverride: *carrierSKU}
		} else {
			products[p.ProductID] = p
		}
	}
	return products, rows.Err()
}
