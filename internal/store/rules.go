package store

import (
	"context"
	"fmt"

	"github.com/gvanweelden/fulfilsync/internal/models"
)

// ActiveRules loads the active shipping rules that name the given country.
// Fetched fresh on every match so admin edits apply to the next order.
func (s *Store) ActiveRules(ctx context.Context, countryCode string) ([]models.ShippingRule, error) {
	query := `
		SELECT id, name, sequence, product_code, max_weight_kg, countries, active
		FROM shipping_rules
		WHERE active = TRUE AND $1 = ANY(countries)
		ORDER BY sequence ASC, max_weight_kg ASC
	`

	rows, err := s.pool.Query(ctx, query, countryCode)
	if err != nil {
		return nil, fmt.Errorf("fetch shipping rules: %w", err)
	}
	defer rows.Close()

	var rules []models.ShippingRule
	for rows.Next() {
		var r models.ShippingRule
		err := rows.Scan(&r.ID, &r.Name, &r.Sequence, &r.ProductCode, &r.MaxWeightKg, &r.Countries, &r.Active)
		if err != nil {
			return nil, fmt.Errorf("scan shipping rule: %w", err)
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}
