package models

import (
	"crypto/sha1"
	"encoding/hex"
	"time"
)

type StagedState string

const (
	StagedDraft    StagedState = "draft"
	StagedQueued   StagedState = "queued"
	StagedExported StagedState = "exported"
	StagedShipped  StagedState = "shipped"
	StagedError    StagedState = "error"
)

// StagedOrder is a sales order staged for export to the carrier.
// It carries the error-hash dedup state: an operator note is posted only
// when the error hash changes, while the raw text is always refreshed.
type StagedOrder struct {
	ID             int64       `db:"id"`
	OrderID        int64       `db:"order_id"`
	Name           string      `db:"name"`
	CountryCode    string      `db:"country_code"`
	WeightKg       float64     `db:"weight_kg"`
	ShippingCode   string      `db:"shipping_code"`
	TrackingNumber string      `db:"tracking_number"`
	State          StagedState `db:"state"`
	Source         string      `db:"source"`
	LastSyncAt     time.Time   `db:"last_sync_at"`
	LastErrorText  string      `db:"last_error_text"`
	LastErrorHash  string      `db:"last_error_hash"`
	CreatedAt      time.Time   `db:"created_at"`
}

// ErrorHash is the dedup key for operator-visible error notes.
func ErrorHash(text string) string {
	sum := sha1.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}
