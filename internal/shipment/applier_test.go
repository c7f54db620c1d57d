package shipment

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gvanweelden/fulfilsync/internal/models"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

const trackingTemplate = "https://www.postnl.nl/tracktrace/?B=%s&P=%s"

func freshOrder() *models.Order {
	return &models.Order{
		ID:   42,
		Name: "SO0042",
		ShipTo: models.Address{
			PostalCode:  "1234 AB",
			CountryCode: "NL",
		},
		Shipment: models.ShipmentState{Status: models.StatusPending},
	}
}

func event() (models.EventMeta, models.OrderStatusItem) {
	meta := models.EventMeta{
		MerchantCode: "MC01",
		Type:         "shipped",
		MessageNo:    "MSG-1",
		Date:         "2026-03-14",
		Time:         "10:00:00",
	}
	item := models.OrderStatusItem{
		OrderNo:           "FUL-9001",
		TrackAndTraceCode: "3STEST0001",
		ShipDate:          "2026-03-14",
		ShipTime:          "09:58:00",
	}
	return meta, item
}

func TestApplyFirstEvent(t *testing.T) {
	order := freshOrder()
	meta, item := event()
	now := time.Date(2026, 3, 14, 10, 1, 0, 0, time.UTC)

	res := Apply(order, meta, item, now, trackingTemplate)

	assert.True(t, res.OrderNoSet)
	assert.True(t, res.TrackingApplied)
	assert.Equal(t, models.StatusShipped, res.Status)

	st := order.Shipment
	assert.Equal(t, "FUL-9001", st.FulfilmentOrderNo)
	assert.Equal(t, "3STEST0001", st.TrackingCodes)
	assert.Equal(t, "2026-03-14", st.ShipDate)
	assert.Equal(t, "09:58:00", st.ShipTime)
	assert.Equal(t, "MSG-1", st.MessageNo)
	assert.Equal(t, now, st.LastWebhookAt)
	assert.Contains(t, st.LastPayload, "3STEST0001")

	assert.Contains(t, res.Note, "SO0042")
	assert.Contains(t, res.Note, "https://www.postnl.nl/tracktrace/?B=3STEST0001&P=1234AB")
}

func TestApplyIdempotentOnRedelivery(t *testing.T) {
	order := freshOrder()
	meta, item := event()
	now := time.Date(2026, 3, 14, 10, 1, 0, 0, time.UTC)

	Apply(order, meta, item, now, trackingTemplate)
	res := Apply(order, meta, item, now.Add(time.Minute), trackingTemplate)

	assert.Equal(t, models.StatusShipped, res.Status)
	assert.Equal(t, "3STEST0001", order.Shipment.TrackingCodes)
	assert.Len(t, strings.Split(order.Shipment.TrackingCodes, ","), 1)
	// Only the stamp moves on redelivery.
	assert.Equal(t, now.Add(time.Minute), order.Shipment.LastWebhookAt)
}

func TestApplyMultiParcel(t *testing.T) {
	order := freshOrder()
	meta, item := event()
	now := time.Now().UTC()

	Apply(order, meta, item, now, trackingTemplate)

	second := item
	second.TrackAndTraceCode = "3STEST0002"
	res := Apply(order, meta, second, now, trackingTemplate)

	assert.Equal(t, models.StatusPartial, res.Status)
	assert.Equal(t, "3STEST0001,3STEST0002", order.Shipment.TrackingCodes)
}

func TestApplyOrderNumberWriteOnce(t *testing.T) {
	order := freshOrder()
	order.Shipment.FulfilmentOrderNo = "FUL-0001"
	meta, item := event()

	res := Apply(order, meta, item, time.Now().UTC(), trackingTemplate)

	assert.False(t, res.OrderNoSet)
	assert.Equal(t, "FUL-0001", order.Shipment.FulfilmentOrderNo)
}

func TestApplyWithoutTracking(t *testing.T) {
	order := freshOrder()
	meta, item := event()
	item.TrackAndTraceCode = ""

	res := Apply(order, meta, item, time.Now().UTC(), trackingTemplate)

	assert.False(t, res.TrackingApplied)
	assert.Empty(t, res.Note)
	assert.Equal(t, models.StatusPending, order.Shipment.Status)
	// Dates still land, last write wins.
	assert.Equal(t, "2026-03-14", order.Shipment.ShipDate)
}

type fakeShipmentStore struct {
	shipments map[int64]models.ShipmentState
	pickings  []models.Picking
	tracked   map[int64]string
	notes     []string
}

func newFakeShipmentStore() *fakeShipmentStore {
	return &fakeShipmentStore{
		shipments: map[int64]models.ShipmentState{},
		tracked:   map[int64]string{},
	}
}

func (f *fakeShipmentStore) UpdateOrderShipment(_ context.Context, orderID int64, state models.ShipmentState) error {
	f.shipments[orderID] = state
	return nil
}

func (f *fakeShipmentStore) OpenPickings(_ context.Context, orderID int64) ([]models.Picking, error) {
	var out []models.Picking
	for _, p := range f.pickings {
		if p.OrderID == orderID && p.IsOpen() {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeShipmentStore) SetPickingTracking(_ context.Context, pickingID int64, ref string) error {
	f.tracked[pickingID] = ref
	return nil
}

func (f *fakeShipmentStore) AppendOrderNote(_ context.Context, _ int64, note string) error {
	f.notes = append(f.notes, note)
	return nil
}

type fakePublisher struct {
	events []AppliedEvent
}

func (f *fakePublisher) PublishShipmentApplied(_ context.Context, e AppliedEvent) error {
	f.events = append(f.events, e)
	return nil
}

func TestApplierPropagatesToEarliestOpenPicking(t *testing.T) {
	store := newFakeShipmentStore()
	store.pickings = []models.Picking{
		{ID: 1, OrderID: 42, State: "done", CreatedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
		{ID: 2, OrderID: 42, State: "assigned", CreatedAt: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)},
		{ID: 3, OrderID: 42, State: "confirmed", CreatedAt: time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC)},
	}
	pub := &fakePublisher{}
	applier := NewApplier(store, pub, nil, trackingTemplate, discard)

	order := freshOrder()
	meta, item := event()
	require.NoError(t, applier.ApplyItem(context.Background(), order, meta, item))

	// Completed picking 1 is skipped; 2 is the earliest open one.
	assert.Equal(t, map[int64]string{2: "3STEST0001"}, store.tracked)

	require.Len(t, store.notes, 1)
	assert.Contains(t, store.notes[0], "3STEST0001")

	require.Len(t, pub.events, 1)
	assert.Equal(t, models.StatusShipped, pub.events[0].Status)
	assert.Equal(t, "SO0042", pub.events[0].OrderName)

	assert.Equal(t, models.StatusShipped, store.shipments[42].Status)
}

func TestApplierNoTrackingNoSideEffects(t *testing.T) {
	store := newFakeShipmentStore()
	applier := NewApplier(store, nil, nil, trackingTemplate, discard)

	order := freshOrder()
	meta, item := event()
	item.TrackAndTraceCode = ""
	require.NoError(t, applier.ApplyItem(context.Background(), order, meta, item))

	assert.Empty(t, store.notes)
	assert.Empty(t, store.tracked)
	// State is still persisted: dates and snapshot moved.
	assert.Equal(t, "2026-03-14", store.shipments[42].ShipDate)
}

type fakeLabelFetcher struct {
	fetched []string
}

func (f *fakeLabelFetcher) FetchLabel(_ context.Context, _ *models.Order, barcode string) error {
	f.fetched = append(f.fetched, barcode)
	return nil
}

func TestApplierFetchesLabelOncePerParcel(t *testing.T) {
	store := newFakeShipmentStore()
	labels := &fakeLabelFetcher{}
	applier := NewApplier(store, nil, labels, trackingTemplate, discard)

	order := freshOrder()
	meta, item := event()

	require.NoError(t, applier.ApplyItem(context.Background(), order, meta, item))
	// Redelivery of the same parcel must not fetch again.
	require.NoError(t, applier.ApplyItem(context.Background(), order, meta, item))

	second := item
	second.TrackAndTraceCode = "3STEST0002"
	require.NoError(t, applier.ApplyItem(context.Background(), order, meta, second))

	assert.Equal(t, []string{"3STEST0001", "3STEST0002"}, labels.fetched)
}
