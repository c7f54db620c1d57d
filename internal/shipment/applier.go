// Package shipment merges inbound carrier status events into orders.
// The merge itself is pure; the Applier wraps it with persistence,
// picking propagation and event publishing.
package shipment

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gvanweelden/fulfilsync/internal/address"
	"github.com/gvanweelden/fulfilsync/internal/models"
	"github.com/gvanweelden/fulfilsync/pkg/metrics"
)

// ApplyResult reports what an event changed on the order.
type ApplyResult struct {
	OrderNoSet      bool
	TrackingApplied bool
	// NewCode is set only when the code was not on the order yet, so
	// redelivered events do not retrigger per-parcel side effects.
	NewCode      bool
	TrackingCode string
	Status       models.FulfilmentStatus
	Note         string
}

// Apply merges one status item into the order's shipment state, in place.
// Idempotent: redelivering the identical event re-stamps the snapshot and
// timestamp but never duplicates a tracking code or regresses the status.
func Apply(order *models.Order, meta models.EventMeta, item models.OrderStatusItem,
	now time.Time, urlTemplate string) ApplyResult {

	var res ApplyResult
	st := &order.Shipment

	// Carrier order number is write-once.
	if item.OrderNo != "" && st.FulfilmentOrderNo == "" {
		st.FulfilmentOrderNo = item.OrderNo
		res.OrderNoSet = true
	}

	if code := strings.TrimSpace(item.TrackAndTraceCode); code != "" {
		existing := splitCodes(st.TrackingCodes)
		switch {
		case containsCode(existing, code):
			// Redelivery of a known parcel.
			st.Status = models.StatusShipped
		case len(existing) > 0:
			// Second distinct parcel: multi-parcel order.
			st.TrackingCodes = st.TrackingCodes + "," + code
			st.Status = models.StatusPartial
			res.NewCode = true
		default:
			st.TrackingCodes = code
			st.Status = models.StatusShipped
			res.NewCode = true
		}

		res.TrackingApplied = true
		res.TrackingCode = code
	}

	if item.ShipDate != "" {
		st.ShipDate = item.ShipDate
	}
	if item.ShipTime != "" {
		st.ShipTime = item.ShipTime
	}
	if meta.MessageNo != "" {
		st.MessageNo = meta.MessageNo
	}

	st.LastWebhookAt = now
	snapshot, _ := json.Marshal(map[string]any{"meta": meta, "orderStatus": item})
	st.LastPayload = string(snapshot)

	res.Status = st.Status
	if res.TrackingApplied {
		res.Note = noteText(order, st, res.TrackingCode, urlTemplate)
	}
	return res
}

func splitCodes(joined string) []string {
	if joined == "" {
		return nil
	}
	return strings.Split(joined, ",")
}

func containsCode(codes []string, code string) bool {
	for _, c := range codes {
		if strings.TrimSpace(c) == code {
			return true
		}
	}
	return false
}

func noteText(order *models.Order, st *models.ShipmentState, code, urlTemplate string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Order %s shipped by carrier. Barcode %s", order.Name, code)
	if st.ShipDate != "" {
		fmt.Fprintf(&b, ", shipped %s %s", st.ShipDate, st.ShipTime)
	}
	if url := address.TrackingURL(urlTemplate, code, order.ShipTo.PostalCode); url != "" {
		fmt.Fprintf(&b, ". Track & Trace: %s", url)
	}
	return b.String()
}

// Store is the persistence surface the Applier needs.
type Store interface {
	UpdateOrderShipment(ctx context.Context, orderID int64, state models.ShipmentState) error
	OpenPickings(ctx context.Context, orderID int64) ([]models.Picking, error)
	SetPickingTracking(ctx context.Context, pickingID int64, trackingRef string) error
	AppendOrderNote(ctx context.Context, orderID int64, note string) error
}

// AppliedEvent is broadcast after an order's shipment state changed.
type AppliedEvent struct {
	OrderID      int64                   `json:"orderId"`
	OrderName    string                  `json:"orderName"`
	TrackingCode string                  `json:"trackingCode"`
	Status       models.FulfilmentStatus `json:"status"`
	OccurredAt   time.Time               `json:"occurredAt"`
}

// Publisher broadcasts applied events. A no-op implementation is fine.
type Publisher interface {
	PublishShipmentApplied(ctx context.Context, e AppliedEvent) error
}

// LabelFetcher pulls the label document for a freshly announced parcel.
type LabelFetcher interface {
	FetchLabel(ctx context.Context, order *models.Order, barcode string) error
}

// Applier persists the outcome of the pure merge and fans out its side
// effects: picking propagation, label fetch, activity note, broker event.
type Applier struct {
	store       Store
	publisher   Publisher
	labels      LabelFetcher
	urlTemplate string
	logger      *slog.Logger
}

func NewApplier(store Store, publisher Publisher, labels LabelFetcher,
	urlTemplate string, logger *slog.Logger) *Applier {
	return &Applier{store: store, publisher: publisher, labels: labels,
		urlTemplate: urlTemplate, logger: logger}
}

// ApplyItem merges one status item into an order and persists the result.
func (a *Applier) ApplyItem(ctx context.Context, order *models.Order,
	meta models.EventMeta, item models.OrderStatusItem) error {

	res := Apply(order, meta, item, time.Now().UTC(), a.urlTemplate)

	if err := a.store.UpdateOrderShipment(ctx, order.ID, order.Shipment); err != nil {
		metrics.ShipmentsApplied.WithLabelValues("error").Inc()
		return fmt.Errorf("persist shipment state for order %s: %w", order.Name, err)
	}

	l := a.logger.With("order", order.Name, "status", string(res.Status))

	if res.TrackingApplied {
		if err := a.propagateToPicking(ctx, order.ID, res.TrackingCode); err != nil {
			l.Error("Failed to propagate tracking to picking", "error", err)
		}
		if err := a.store.AppendOrderNote(ctx, order.ID, res.Note); err != nil {
			l.Error("Failed to post shipment note", "error", err)
		}
	}

	if res.NewCode && a.labels != nil {
		if err := a.labels.FetchLabel(ctx, order, res.TrackingCode); err != nil {
			l.Error("Failed to fetch shipment label", "barcode", res.TrackingCode, "error", err)
		}
	}

	if a.publisher != nil {
		evt := AppliedEvent{
			OrderID:      order.ID,
			OrderName:    order.Name,
			TrackingCode: res.TrackingCode,
			Status:       res.Status,
			OccurredAt:   order.Shipment.LastWebhookAt,
		}
		if err := a.publisher.PublishShipmentApplied(ctx, evt); err != nil {
			l.Error("Failed to publish shipment event", "error", err)
		}
	}

	metrics.ShipmentsApplied.WithLabelValues(string(res.Status)).Inc()
	l.Info("Shipment event applied", "tracking", res.TrackingCode)
	return nil
}

// propagateToPicking copies the tracking code onto the earliest still-open
// picking of the order, if any.
func (a *Applier) propagateToPicking(ctx context.Context, orderID int64, code string) error {
	pickings, err := a.store.OpenPickings(ctx, orderID)
	if err != nil {
		return err
	}

	var earliest *models.Picking
	for i := range pickings {
		p := &pickings[i]
		if !p.IsOpen() {
			continue
		}
		if earliest == nil || p.CreatedAt.Before(earliest.CreatedAt) {
			earliest = p
		}
	}
	if earliest == nil {
		return nil
	}
	return a.store.SetPickingTracking(ctx, earliest.ID, code)
}
