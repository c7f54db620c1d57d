package models

// ShippingRule maps weight + destination country to a carrier product code.
// Rules are admin-maintained configuration; the engine evaluates them in
// (sequence, maxWeightKg) ascending order.
type ShippingRule struct {
	ID          int64
	Name        string
	Sequence    int
	ProductCode string
	MaxWeightKg float64
	Countries   []string // ISO country codes
	Active      bool
}

// AppliesTo reports whether the rule covers the given country code.
func (r ShippingRule) AppliesTo(countryCode string) bool {
	for _, c := range r.Countries {
		if c == countryCode {
			return true
		}
	}
	return false
}
