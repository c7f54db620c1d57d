package store

import (
	"context"
	"fmt"

	"github.com/gvanweelden/fulfilsync/internal/models"
	"github.com/gvanweelden/fulfilsync/internal/pack"
)

// KitSource is a preloaded, in-memory view of the kit definitions.
// The explosion walk is synchronous and may touch the same product many
// times, so the definitions are read once per batch instead of per lookup.
type KitSource struct {
	boms      map[int64]*pack.BOM
	packLines map[int64][]pack.Component
}

func (k *KitSource) PhantomBOM(p models.Product) (*pack.BOM, bool) {
	bom, ok := k.boms[p.ID()]
	return bom, ok
}

func (k *KitSource) PackLines(p models.Product) []pack.Component {
	return k.packLines[p.ID()]
}

// LoadKitSource reads every phantom BOM and pack definition into memory.
func (s *Store) LoadKitSource(ctx context.Context) (*KitSource, error) {
	src := &KitSource{
		boms:      map[int64]*pack.BOM{},
		packLines: map[int64][]pack.Component{},
	}

	bomQuery := `
		SELECT b.product_id, b.base_qty, l.qty,
		       p.id, p.internal_ref, p.barcode, p.supplier_refs, p.template_ref,
		       p.display_name, p.weight_kg, p.is_service, p.carrier_sku
		FROM bom_lines l
		JOIN boms b ON b.id = l.bom_id
		JOIN products p ON p.id = l.component_id
		WHERE b.kind = 'phantom'
		ORDER BY b.product_id, l.id
	`
	if err := s.loadComponents(ctx, bomQuery, func(parentID int64, baseQty float64, c pack.Component) {
		bom, ok := src.boms[parentID]
		if !ok {
			bom = &pack.BOM{BaseQty: baseQty}
			src.boms[parentID] = bom
		}
		bom.Lines = append(bom.Lines, c)
	}); err != nil {
		return nil, err
	}

	packQuery := `
		SELECT l.parent_id, 1.0, l.qty,
		       p.id, p.internal_ref, p.barcode, p.supplier_refs, p.template_ref,
		       p.display_name, p.weight_kg, p.is_service, p.carrier_sku
		FROM pack_lines l
		JOIN products p ON p.id = l.component_id
		ORDER BY l.parent_id, l.id
	`
	if err := s.loadComponents(ctx, packQuery, func(parentID int64, _ float64, c pack.Component) {
		src.packLines[parentID] = append(src.packLines[parentID], c)
	}); err != nil {
		return nil, err
	}

	return src, nil
}

func (s *Store) loadComponents(ctx context.Context, query string,
	add func(parentID int64, baseQty float64, c pack.Component)) error {

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("fetch kit definitions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			parentID   int64
			baseQty    float64
			qty        float64
			p          models.CatalogProduct
			carrierSKU *string
		)
		err := rows.Scan(
			&parentID, &baseQty, &qty,
			&p.ProductID, &p.Ref, &p.EAN, &p.SupplierRef, &p.Template,
			&p.Name, &p.Weight, &p.Service, &carrierSKU,
		)
		if err != nil {
			return fmt.Errorf("scan kit component: %w", err)
		}

		var product models.Product = p
		if carrierSKU != nil {
			product = models.CarrierProduct{CatalogProduct: p, SKUOverride: *carrierSKU}
		}
		add(parentID, baseQty, pack.Component{Product: product, Qty: qty})
	}
	return rows.Err()
}
