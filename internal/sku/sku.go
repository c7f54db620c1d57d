package sku

import (
	"regexp"
	"strings"

	"github.com/gvanweelden/fulfilsync/internal/models"
)

var unsafe = regexp.MustCompile(`[^A-Z0-9_-]`)

// Normalize makes a candidate SKU carrier-safe: whitespace removed,
// uppercased, anything outside [A-Z0-9_-] stripped.
func Normalize(value string) string {
	value = strings.Join(strings.Fields(value), "")
	value = strings.ToUpper(value)
	return unsafe.ReplaceAllString(value, "")
}

// Resolve derives the SKU to send for a product. Priority chain, first
// non-empty wins:
//  1. carrier SKU override (HasCarrierSKU capability)
//  2. internal reference
//  3. first vendor code
//  4. barcode
//  5. parent template reference
//  6. display name
//
// An empty result means the line is unresolvable and must be skipped,
// never sent with an empty SKU.
func Resolve(p models.Product) string {
	if p == nil {
		return ""
	}

	if override, ok := p.(models.HasCarrierSKU); ok {
		if s := Normalize(override.CarrierSKU()); s != "" {
			return s
		}
	}

	if s := Normalize(p.InternalRef()); s != "" {
		return s
	}

	for _, code := range p.VendorCodes() {
		if s := Normalize(code); s != "" {
			return s
		}
	}

	if s := Normalize(p.Barcode()); s != "" {
		return s
	}

	if s := Normalize(p.TemplateRef()); s != "" {
		return s
	}

	return Normalize(p.DisplayName())
}
