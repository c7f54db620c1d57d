package shipment

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gvanweelden/fulfilsync/internal/config"
	"github.com/gvanweelden/fulfilsync/internal/models"
	"github.com/gvanweelden/fulfilsync/internal/transport"
)

type fakeLabelStore struct {
	saved []models.Label
}

func (f *fakeLabelStore) SaveLabel(_ context.Context, l *models.Label) (int64, error) {
	f.saved = append(f.saved, *l)
	return int64(len(f.saved)), nil
}

type auditUpdate struct {
	id      int64
	status  int
	success bool
}

type fakeAudit struct {
	created []models.AuditLogEntry
	updated []auditUpdate
	nextID  int64
}

func (f *fakeAudit) CreateAuditEntry(_ context.Context, e *models.AuditLogEntry) (int64, error) {
	f.created = append(f.created, *e)
	f.nextID++
	return f.nextID, nil
}

func (f *fakeAudit) UpdateAuditEntry(_ context.Context, id int64, status int, success bool, _, _ string) error {
	f.updated = append(f.updated, auditUpdate{id: id, status: status, success: success})
	return nil
}

func labelConfig() *config.Config {
	return &config.Config{
		APIKey:         "secret",
		CustomerNumber: "10000001",
		HTTPTimeout:    5 * time.Second,
		LabelURLFormat: "https://api.carrier.test/labels/%s",
	}
}

func TestFetchLabelStoresDocument(t *testing.T) {
	cfg := labelConfig()
	store := &fakeLabelStore{}
	audit := &fakeAudit{}
	httpClient := transport.NewHTTPClient(cfg, discard)
	labels := NewCarrierLabels(cfg, httpClient, store, audit, discard)

	httpmock.ActivateNonDefault(httpClient.Client())
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder(http.MethodGet, "https://api.carrier.test/labels/3STEST0001",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "secret", req.Header.Get("apikey"))
			assert.Equal(t, "10000001", req.Header.Get("customerNumber"))
			return httpmock.NewBytesResponse(200, []byte("%PDF-1.4 label")), nil
		})

	err := labels.FetchLabel(context.Background(), freshOrder(), "3STEST0001")
	require.NoError(t, err)

	require.Len(t, store.saved, 1)
	saved := store.saved[0]
	assert.Equal(t, int64(42), saved.OrderID)
	assert.Equal(t, "3STEST0001", saved.Barcode)
	assert.Equal(t, "Label_3STEST0001.pdf", saved.Filename)
	assert.Equal(t, []byte("%PDF-1.4 label"), saved.Content)

	// Audit row exists before the call and is completed after it.
	require.Len(t, audit.created, 1)
	assert.Equal(t, "SO0042", audit.created[0].OrderRef)
	require.Len(t, audit.updated, 1)
	assert.Equal(t, 200, audit.updated[0].status)
	assert.True(t, audit.updated[0].success)
}

func TestFetchLabelCarrierError(t *testing.T) {
	cfg := labelConfig()
	store := &fakeLabelStore{}
	audit := &fakeAudit{}
	httpClient := transport.NewHTTPClient(cfg, discard)
	labels := NewCarrierLabels(cfg, httpClient, store, audit, discard)

	httpmock.ActivateNonDefault(httpClient.Client())
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder(http.MethodGet, "https://api.carrier.test/labels/3STEST0001",
		httpmock.NewStringResponder(404, "no such shipment"))

	err := labels.FetchLabel(context.Background(), freshOrder(), "3STEST0001")
	assert.Error(t, err)
	assert.Empty(t, store.saved)

	require.Len(t, audit.updated, 1)
	assert.Equal(t, 404, audit.updated[0].status)
	assert.False(t, audit.updated[0].success)
}

func TestFetchLabelDisabled(t *testing.T) {
	cfg := labelConfig()
	cfg.LabelURLFormat = ""
	store := &fakeLabelStore{}
	audit := &fakeAudit{}
	labels := NewCarrierLabels(cfg, transport.NewHTTPClient(cfg, discard), store, audit, discard)

	err := labels.FetchLabel(context.Background(), freshOrder(), "3STEST0001")
	require.NoError(t, err)
	assert.Empty(t, store.saved)
	assert.Empty(t, audit.created)
}
