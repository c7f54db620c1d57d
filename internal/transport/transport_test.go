package transport

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gvanweelden/fulfilsync/internal/config"
)

func testHTTPClient() *HTTPClient {
	cfg := &config.Config{
		HTTPTimeout:    5 * time.Second,
		CustomerNumber: "10586117",
		APIKey:         "test-key",
	}
	return NewHTTPClient(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestPostJSONSuccess(t *testing.T) {
	c := testHTTPClient()
	httpmock.ActivateNonDefault(c.Client())
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", "https://api.example.test/fulfilment/order",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
			assert.Equal(t, "10586117", req.Header.Get("customerNumber"))
			assert.Equal(t, "test-key", req.Header.Get("apikey"))
			return httpmock.NewStringResponse(201, `{"ok":true}`), nil
		})

	res := c.PostJSON(context.Background(), "https://api.example.test/fulfilment/order", []byte(`{}`))
	require.True(t, res.Success)
	assert.Equal(t, 201, res.Status)
	assert.Equal(t, `{"ok":true}`, res.Body)
	assert.Empty(t, res.Err)
}

func TestPostJSONNon2xxIsCapturedNotRaised(t *testing.T) {
	c := testHTTPClient()
	httpmock.ActivateNonDefault(c.Client())
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", "https://api.example.test/fulfilment/order",
		httpmock.NewStringResponder(422, `{"error":"bad sku"}`))

	res := c.PostJSON(context.Background(), "https://api.example.test/fulfilment/order", []byte(`{}`))
	assert.False(t, res.Success)
	assert.Equal(t, 422, res.Status)
	assert.Contains(t, res.Err, "HTTP 422")
}

func TestPostJSONNetworkError(t *testing.T) {
	c := testHTTPClient()
	httpmock.ActivateNonDefault(c.Client())
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", "https://api.example.test/fulfilment/order",
		httpmock.NewErrorResponder(assert.AnError))

	res := c.PostJSON(context.Background(), "https://api.example.test/fulfilment/order", []byte(`{}`))
	assert.False(t, res.Success)
	assert.Equal(t, 0, res.Status)
	assert.NotEmpty(t, res.Err)
}

func TestInstanceAllowed(t *testing.T) {
	// Empty allow-list: everything goes.
	assert.True(t, InstanceAllowed("https://erp.example.com", ""))

	allow := "https://erp.example.com, https://erp2.example.com/"
	assert.True(t, InstanceAllowed("https://erp.example.com/", allow))
	assert.True(t, InstanceAllowed("HTTPS://ERP2.EXAMPLE.COM", allow))
	assert.False(t, InstanceAllowed("https://staging.example.com", allow))
}

func TestDisabledSFTP(t *testing.T) {
	var ft FileTransport = DisabledSFTP{}

	assert.False(t, ft.Enabled())
	assert.ErrorIs(t, ft.Upload("orders", "x.xml", nil), ErrDisabled)
	_, err := ft.List("shipments")
	assert.ErrorIs(t, err, ErrDisabled)
}
