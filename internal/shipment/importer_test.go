package shipment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gvanweelden/fulfilsync/internal/models"
)

const shipmentFeed = `<?xml version="1.0" encoding="UTF-8"?>
<Shipments>
  <Shipment>
    <OrderNumber>SO0042</OrderNumber>
    <TrackingNumber>3STEST0001</TrackingNumber>
    <Status>SHIPPED</Status>
    <ShipDate>2026-03-14</ShipDate>
    <ShipTime>09:58:00</ShipTime>
  </Shipment>
  <Shipment>
    <OrderNumber>SO0043</OrderNumber>
    <TrackingNumber>3STEST0002</TrackingNumber>
    <Status>BEZORGD</Status>
  </Shipment>
  <Shipment>
    <OrderNumber></OrderNumber>
    <TrackingNumber>IGNORED</TrackingNumber>
  </Shipment>
</Shipments>`

func TestParseShipmentFile(t *testing.T) {
	records, err := ParseShipmentFile([]byte(shipmentFeed))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "SO0042", records[0].OrderNumber)
	assert.Equal(t, "3STEST0001", records[0].TrackingNumber)
	assert.False(t, records[0].Delivered())
	assert.True(t, records[1].Delivered())
}

func TestParseShipmentFileMalformed(t *testing.T) {
	_, err := ParseShipmentFile([]byte("<Shipments><Shipment>"))
	assert.Error(t, err)
}

func TestDelivered(t *testing.T) {
	assert.True(t, ShipmentRecord{Status: "delivered"}.Delivered())
	assert.True(t, ShipmentRecord{Status: " DEL "}.Delivered())
	assert.False(t, ShipmentRecord{Status: "IN_TRANSIT"}.Delivered())
	assert.False(t, ShipmentRecord{Status: ""}.Delivered())
}

type fakeFiles struct {
	files   map[string][]byte
	deleted []string
	listErr error
}

func (f *fakeFiles) Upload(string, string, []byte) error { return nil }

func (f *fakeFiles) List(string) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var names []string
	for name := range f.files {
		names = append(names, name)
	}
	return names, nil
}

func (f *fakeFiles) Read(_, name string) ([]byte, error) {
	b, ok := f.files[name]
	if !ok {
		return nil, errors.New("no such file")
	}
	return b, nil
}

func (f *fakeFiles) Delete(_, name string) error {
	f.deleted = append(f.deleted, name)
	return nil
}

func (f *fakeFiles) Enabled() bool { return true }

type fakeResolver struct {
	orders map[string]*models.Order
}

func (f *fakeResolver) FindOrderByAny(_ context.Context, ref string) (*models.Order, error) {
	return f.orders[ref], nil
}

type fakeStagedMarker struct {
	shipped map[int64]string
}

func (f *fakeStagedMarker) MarkStagedShipped(_ context.Context, orderID int64, tracking string) error {
	if f.shipped == nil {
		f.shipped = map[int64]string{}
	}
	f.shipped[orderID] = tracking
	return nil
}

type fakePickingCloser struct {
	completed map[int64]int
}

func (f *fakePickingCloser) CompleteOpenPickings(_ context.Context, orderID int64) (int64, error) {
	if f.completed == nil {
		f.completed = map[int64]int{}
	}
	f.completed[orderID]++
	return 1, nil
}

func TestImporterPoll(t *testing.T) {
	order := freshOrder() // SO0042
	files := &fakeFiles{files: map[string][]byte{
		"shipments_20260314.xml": []byte(shipmentFeed),
		"readme.txt":             []byte("not a feed"),
	}}
	resolver := &fakeResolver{orders: map[string]*models.Order{"SO0042": order}}
	staged := &fakeStagedMarker{}
	store := newFakeShipmentStore()
	applier := NewApplier(store, nil, nil, trackingTemplate, discard)

	imp := NewImporter(files, resolver, staged, nil, applier, "shipments/out", false, discard)

	processed, err := imp.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	// Known order applied; unknown SO0043 skipped without failing the file.
	assert.Equal(t, models.StatusShipped, store.shipments[42].Status)
	assert.Equal(t, "3STEST0001", store.shipments[42].TrackingCodes)
	assert.Equal(t, map[int64]string{42: "3STEST0001"}, staged.shipped)

	// The XML file is removed after processing, the stray txt is untouched.
	assert.Equal(t, []string{"shipments_20260314.xml"}, files.deleted)
}

func TestImporterPollListFailure(t *testing.T) {
	files := &fakeFiles{listErr: errors.New("connection reset")}
	applier := NewApplier(newFakeShipmentStore(), nil, nil, trackingTemplate, discard)
	imp := NewImporter(files, &fakeResolver{}, nil, nil, applier, "shipments/out", false, discard)

	_, err := imp.Poll(context.Background())
	var terr *models.TransportError
	assert.ErrorAs(t, err, &terr)
}

func TestImporterAutoDoneCompletesDeliveredPickings(t *testing.T) {
	so42 := freshOrder()
	so43 := freshOrder()
	so43.ID = 43
	so43.Name = "SO0043"

	files := &fakeFiles{files: map[string][]byte{
		"shipments_20260314.xml": []byte(shipmentFeed),
	}}
	resolver := &fakeResolver{orders: map[string]*models.Order{
		"SO0042": so42,
		"SO0043": so43,
	}}
	pickings := &fakePickingCloser{}
	applier := NewApplier(newFakeShipmentStore(), nil, nil, trackingTemplate, discard)

	imp := NewImporter(files, resolver, nil, pickings, applier, "shipments/out", true, discard)

	_, err := imp.Poll(context.Background())
	require.NoError(t, err)

	// SO0043 is BEZORGD, SO0042 only SHIPPED: only the delivered order's
	// pickings close.
	assert.Equal(t, map[int64]int{43: 1}, pickings.completed)
}

func TestImporterAutoDoneDisabled(t *testing.T) {
	so43 := freshOrder()
	so43.ID = 43
	so43.Name = "SO0043"

	files := &fakeFiles{files: map[string][]byte{
		"shipments_20260314.xml": []byte(shipmentFeed),
	}}
	resolver := &fakeResolver{orders: map[string]*models.Order{"SO0043": so43}}
	pickings := &fakePickingCloser{}
	applier := NewApplier(newFakeShipmentStore(), nil, nil, trackingTemplate, discard)

	imp := NewImporter(files, resolver, nil, pickings, applier, "shipments/out", false, discard)

	_, err := imp.Poll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pickings.completed)
}
