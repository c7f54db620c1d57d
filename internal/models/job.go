package models

import (
	"encoding/json"
	"time"
)

type JobState string

const (
	JobNew        JobState = "new"
	JobProcessing JobState = "processing"
	JobDone       JobState = "done"
	JobFailed     JobState = "failed"
)

// WebhookJob is one inbound webhook delivery. One job per HTTP call,
// regardless of how many shipments the payload describes.
type WebhookJob struct {
	ID            int64           `db:"id"`
	CorrelationID string          `db:"correlation_id"`
	State         JobState        `db:"state"`
	Attempts      int             `db:"attempts"`
	Payload       json.RawMessage `db:"payload"`
	LastError     string          `db:"last_error"`
	MerchantCode  string          `db:"merchant_code"`
	MessageNo     string          `db:"message_no"`
	EventDate     string          `db:"event_date"`
	EventTime     string          `db:"event_time"`
	CreatedAt     time.Time       `db:"created_at"`
}

// EventMeta is the metadata block shared by all status items in a payload.
type EventMeta struct {
	MerchantCode string `json:"merchantCode"`
	Type         string `json:"type"`
	MessageNo    string `json:"messageNo"`
	Date         string `json:"date"`
	Time         string `json:"time"`
}

// OrderStatusItem is one per-shipment entry of a webhook payload.
type OrderStatusItem struct {
	OrderNo           string `json:"orderNo"`
	TrackAndTraceCode string `json:"trackAndTraceCode"`
	ShipDate          string `json:"shipDate"`
	ShipTime          string `json:"shipTime"`
}

// ShipmentEventPayload is the full webhook body. Unmarshalling enforces
// the shape: a non-list orderStatus fails the whole job.
type ShipmentEventPayload struct {
	EventMeta
	OrderStatus []OrderStatusItem `json:"orderStatus"`
}

func (p ShipmentEventPayload) Meta() EventMeta {
	return p.EventMeta
}
