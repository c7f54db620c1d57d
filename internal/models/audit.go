package models

import "time"

// AuditLogEntry records one outbound transport attempt. The row is created
// before the network call and updated after, so a crash mid-call still
// leaves a trace. Never deleted by the pipeline.
type AuditLogEntry struct {
	ID                 int64     `db:"id"`
	CorrelationID      string    `db:"correlation_id"`
	OrderRef           string    `db:"order_ref"`
	DestinationCountry string    `db:"destination_country"`
	TotalWeightKg      float64   `db:"total_weight_kg"`
	ProductCode        string    `db:"product_code"`
	Endpoint           string    `db:"endpoint"`
	RequestPayload     string    `db:"request_payload"`
	ResponseBody       string    `db:"response_body"`
	HTTPStatus         int       `db:"http_status"`
	Success            bool      `db:"success"`
	ErrorMessage       string    `db:"error_message"`
	SentAt             time.Time `db:"sent_at"`
}

const maxAuditErrorLen = 255

// TruncateError caps a captured error message for the audit row.
func TruncateError(msg string) string {
	if len(msg) > maxAuditErrorLen {
		return msg[:maxAuditErrorLen]
	}
	return msg
}
