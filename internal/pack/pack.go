package pack

import (
	"log/slog"
	"math"

	"github.com/gvanweelden/fulfilsync/internal/models"
)

// Component is one line of a kit definition.
type Component struct {
	Product models.Product
	Qty     float64 // per unit of the parent (pack lines) or per BaseQty (BOM)
}

// BOM is a phantom bill-of-materials: BaseQty parent units yield Lines.
type BOM struct {
	BaseQty float64
	Lines   []Component
}

// Source looks up composite definitions for a product. A product with
// neither a BOM nor pack lines is a leaf.
type Source interface {
	PhantomBOM(p models.Product) (*BOM, bool)
	PackLines(p models.Product) []Component
}

// Leaf is a shippable end product with its expanded quantity.
type Leaf struct {
	Product models.Product
	Qty     float64
}

// Explode recursively expands a composite product into leaf quantities.
// A product reappearing inside the same expansion stops the recursion and
// is emitted as a leaf: misconfigured circular kits under-explode instead
// of looping forever.
func Explode(src Source, p models.Product, qty float64, logger *slog.Logger) []Leaf {
	return explode(src, p, qty, map[int64]bool{}, logger)
}

func explode(src Source, p models.Product, qty float64, visited map[int64]bool, logger *slog.Logger) []Leaf {
	if p == nil {
		return nil
	}

	if visited[p.ID()] {
		logger.Warn("Recursion detected in kit definition, emitting as leaf",
			"product", p.DisplayName(), "product_id", p.ID())
		return []Leaf{{Product: p, Qty: qty}}
	}
	visited[p.ID()] = true

	if bom, ok := src.PhantomBOM(p); ok {
		baseQty := bom.BaseQty
		if baseQty == 0 {
			baseQty = 1
		}
		factor := qty / baseQty

		var result []Leaf
		for _, line := range bom.Lines {
			result = append(result, explode(src, line.Product, line.Qty*factor, visited, logger)...)
		}
		return result
	}

	if lines := src.PackLines(p); len(lines) > 0 {
		var result []Leaf
		for _, line := range lines {
			result = append(result, explode(src, line.Product, line.Qty*qty, visited, logger)...)
		}
		return result
	}

	return []Leaf{{Product: p, Qty: qty}}
}

// CeilQty rounds a fractional leaf quantity up to the nearest integer.
// The carrier wants whole units and we never under-ship.
func CeilQty(qty float64) int {
	if qty <= 0 {
		return 0
	}
	return int(math.Ceil(qty))
}

// NoKits is a Source for catalogs without composite products.
type NoKits struct{}

func (NoKits) PhantomBOM(models.Product) (*BOM, bool) { return nil, false }
func (NoKits) PackLines(models.Product) []Component   { return nil }
