package replenish

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
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

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeAudit struct {
	created int
	updated int
	lastOK  bool
}

func (f *fakeAudit) CreateAuditEntry(_ context.Context, _ *models.AuditLogEntry) (int64, error) {
	f.created++
	return int64(f.created), nil
}

func (f *fakeAudit) UpdateAuditEntry(_ context.Context, _ int64, _ int, success bool, _, _ string) error {
	f.updated++
	f.lastOK = success
	return nil
}

func replenishConfig() *config.Config {
	return &config.Config{
		APIURL:           "https://api.carrier.test/orders",
		APIKey:           "secret",
		CustomerNumber:   "10000001",
		MerchantCode:     "MC01",
		FulfilmentLoc:    "WarehouseNorth",
		ReplenishmentURL: "https://api.carrier.test/replenishments",
	}
}

func inboundOrder() *Order {
	return &Order{
		ID:             77,
		Name:           "PO 2026/0077",
		OrderDate:      time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		PlannedReceipt: time.Date(2026, 4, 8, 0, 0, 0, 0, time.UTC),
		Lines: []models.OrderLine{
			{Product: models.CatalogProduct{ProductID: 1, Ref: "MUG-BLUE",
				Name: "Blue ceramic mug with a very long marketing name"}, Qty: 48},
			{Product: models.CatalogProduct{ProductID: 2, Name: "Freight", Service: true}, Qty: 1},
		},
	}
}

func TestAnnounce(t *testing.T) {
	cfg := replenishConfig()
	audit := &fakeAudit{}
	httpClient := transport.NewHTTPClient(cfg, discard)
	svc := NewService(cfg, httpClient, audit, discard)

	httpmock.ActivateNonDefault(httpClient.Client())
	defer httpmock.DeactivateAndReset()

	var sent payload
	httpmock.RegisterResponder(http.MethodPost, cfg.ReplenishmentURL,
		func(req *http.Request) (*http.Response, error) {
			require.NoError(t, json.NewDecoder(req.Body).Decode(&sent))
			return httpmock.NewStringResponse(202, "accepted"), nil
		})

	ok, err := svc.Announce(context.Background(), inboundOrder())
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, "PO20260077", sent.OrderNumber)
	assert.LessOrEqual(t, len(sent.OrderNumber), 10)
	assert.Equal(t, "2026-04-01", sent.OrderDate)
	assert.Equal(t, "2026-04-08", sent.PlannedReceiptDate)

	require.Len(t, sent.OrderLines, 1)
	assert.Equal(t, "MUG-BLUE", sent.OrderLines[0].SKU)
	assert.Equal(t, 48, sent.OrderLines[0].Quantity)
	assert.LessOrEqual(t, len(sent.OrderLines[0].Description), 35)

	assert.Equal(t, 1, audit.created)
	assert.Equal(t, 1, audit.updated)
	assert.True(t, audit.lastOK)
}

func TestAnnounceNoURLConfigured(t *testing.T) {
	cfg := replenishConfig()
	cfg.ReplenishmentURL = ""
	svc := NewService(cfg, transport.NewHTTPClient(cfg, discard), &fakeAudit{}, discard)

	ok, err := svc.Announce(context.Background(), inboundOrder())
	assert.False(t, ok)

	var confErr *config.ConfigurationError
	require.ErrorAs(t, err, &confErr)
	assert.Contains(t, confErr.Missing, "Replenishment URL")
}

func TestAnnounceNoLines(t *testing.T) {
	cfg := replenishConfig()
	svc := NewService(cfg, transport.NewHTTPClient(cfg, discard), &fakeAudit{}, discard)

	order := inboundOrder()
	order.Lines = nil

	ok, err := svc.Announce(context.Background(), order)
	assert.False(t, ok)

	var verr *models.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestAnnounceGuardBlocked(t *testing.T) {
	cfg := replenishConfig()
	cfg.BaseURL = "https://staging.example.com"
	cfg.AllowedBaseURLs = "https://shop.example.com"
	svc := NewService(cfg, transport.NewHTTPClient(cfg, discard), &fakeAudit{}, discard)

	ok, err := svc.Announce(context.Background(), inboundOrder())
	assert.False(t, ok)
	assert.ErrorIs(t, err, models.ErrGuardBlocked)
}
