package rules

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/gvanweelden/fulfilsync/internal/models"
)

// Source hands out the currently active rules for a destination country.
// The engine queries it fresh for every order so admin edits take effect
// immediately; rules are never cached across calls.
type Source interface {
	ActiveRules(ctx context.Context, countryCode string) ([]models.ShippingRule, error)
}

// Engine picks the carrier product code for a shipment.
type Engine struct {
	src    Source
	logger *slog.Logger
}

func NewEngine(src Source, logger *slog.Logger) *Engine {
	return &Engine{src: src, logger: logger}
}

// Match returns the product code for the given destination and weight.
// The second return is false when no rule applies; the caller substitutes
// the configured default code.
func (e *Engine) Match(ctx context.Context, countryCode string, weightKg float64) (string, bool, error) {
	if countryCode == "" || weightKg <= 0 {
		return "", false, nil
	}

	active, err := e.src.ActiveRules(ctx, countryCode)
	if err != nil {
		return "", false, fmt.Errorf("failed to fetch shipping rules: %w", err)
	}

	code, ok := match(active, countryCode, weightKg)
	if !ok {
		e.logger.Debug("No shipping rule matched, using default code",
			"country", countryCode, "weight_kg", weightKg)
	}
	return code, ok, nil
}

// match is the pure selection over an already-fetched rule set: the rule
// with the smallest qualifying maxWeightKg wins, ties broken by sequence.
func match(active []models.ShippingRule, countryCode string, weightKg float64) (string, bool) {
	candidates := make([]models.ShippingRule, 0, len(active))
	for _, r := range active {
		if !r.Active || !r.AppliesTo(countryCode) {
			continue
		}
		candidates = append(candidates, r)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].MaxWeightKg != candidates[j].MaxWeightKg {
			return candidates[i].MaxWeightKg < candidates[j].MaxWeightKg
		}
		return candidates[i].Sequence < candidates[j].Sequence
	})

	for _, r := range candidates {
		if r.MaxWeightKg >= weightKg {
			return r.ProductCode, true
		}
	}
	return "", false
}
