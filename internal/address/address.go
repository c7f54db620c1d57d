// Package address normalizes free-text contact data into the shapes the
// carrier API accepts.
package address

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const maxStreetLen = 30

var (
	whitespace  = regexp.MustCompile(`\s+`)
	streetRe    = regexp.MustCompile(`^(.*?)(?:\s+(\d+))(?:\s*([A-Za-z0-9\-/]+))?$`)
	unsafeOrder = regexp.MustCompile(`[^A-Z0-9-]`)
	lettersOnly = regexp.MustCompile(`^[A-Z]+$`)
)

// SplitStreet splits concatenated street fields into street name, house
// number and addition. Best effort: without a trailing number the whole
// string becomes the street name and the house number defaults to 0.
func SplitStreet(street, street2 string) (string, int, string) {
	parts := make([]string, 0, 2)
	for _, s := range []string{street, street2} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	full := strings.TrimSpace(whitespace.ReplaceAllString(strings.Join(parts, " "), " "))

	m := streetRe.FindStringSubmatch(full)
	if m == nil {
		return truncate(full, maxStreetLen), 0, ""
	}

	houseNo, _ := strconv.Atoi(m[2])
	return truncate(strings.TrimSpace(m[1]), maxStreetLen), houseNo, truncate(m[3], maxStreetLen)
}

// SplitName splits a full name on the first whitespace gap.
func SplitName(full string) (string, string) {
	full = strings.TrimSpace(full)
	if full == "" {
		return "", ""
	}
	parts := strings.Fields(full)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

// SanitizeOrderNumber makes an order reference acceptable to the carrier:
// uppercase, [A-Z0-9-] only, at most 10 characters, never letters-only.
// The LAST 10 characters are kept so the distinguishing suffix survives.
func SanitizeOrderNumber(name string, fallbackID int64) string {
	raw := strings.ToUpper(strings.ReplaceAll(name, " ", ""))
	raw = unsafeOrder.ReplaceAllString(raw, "")

	if raw == "" {
		raw = fmt.Sprintf("SO%d", fallbackID)
	}
	if lettersOnly.MatchString(raw) {
		// The carrier rejects purely alphabetic order numbers.
		raw = fmt.Sprintf("%s%02d", truncate(raw, 8), fallbackID%100)
	}

	if len(raw) > 10 {
		raw = raw[len(raw)-10:]
	}
	return raw
}

// TrackingURL templates barcode and postal code into the public
// track-and-trace pattern. Customers follow this link, so the template
// must be reproduced byte for byte.
func TrackingURL(template, barcode, postalCode string) string {
	if barcode == "" {
		return ""
	}
	postalCode = strings.ReplaceAll(postalCode, " ", "")
	return fmt.Sprintf(template, barcode, postalCode)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
