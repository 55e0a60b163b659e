package platform

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/confera/confera/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "test-key", WithHTTPClient(srv.Client()))
}

func TestListEventsQueryParams(t *testing.T) {
	var gotPath, gotQuery, gotAuth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode([]map[string]any{{"id": "evt_1"}})
	})

	result, err := c.ListEvents(context.Background(), "upcoming", 5)

	require.NoError(t, err)
	assert.Equal(t, "/events", gotPath)
	assert.Contains(t, gotQuery, "limit=5")
	assert.Contains(t, gotQuery, "status=upcoming")
	assert.Equal(t, "Bearer test-key", gotAuth)

	events, ok := result.([]any)
	require.True(t, ok)
	assert.Len(t, events, 1)
}

func TestListEventsAllStatusOmitsFilter(t *testing.T) {
	var gotQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`[]`))
	})

	_, err := c.ListEvents(context.Background(), "all", 0)

	require.NoError(t, err)
	assert.NotContains(t, gotQuery, "status=")
	assert.Contains(t, gotQuery, "limit=10", "non-positive limit falls back to 10")
}

func TestErrorPrefersBodyMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"message": "invoice does not exist"})
	})

	_, err := c.GetInvoice(context.Background(), "inv_404")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrToolExecution)
	assert.Contains(t, err.Error(), "invoice does not exist")
}

func TestErrorFallsBackToStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream exploded"))
	})

	_, err := c.GetEventStats(context.Background(), "evt_1")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrToolExecution)
	assert.Contains(t, err.Error(), "unexpected status 502")
}

func TestTransportFailureTagged(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()
	c := NewClient(srv.URL, "test-key")

	_, err := c.ListEvents(context.Background(), "all", 10)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrToolExecution)
}

func TestDownloadInvoiceURLFallback(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.RawQuery, "format=pdf")
		json.NewEncoder(w).Encode(map[string]string{"url": "https://files.example.com/inv_1.pdf"})
	})

	url, err := c.DownloadInvoice(context.Background(), "inv_1", "")

	require.NoError(t, err)
	assert.Equal(t, "https://files.example.com/inv_1.pdf", url)
}

func TestCreateTicketBody(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		json.NewEncoder(w).Encode(map[string]string{"id": "tkt_1"})
	})

	_, err := c.CreateTicket(context.Background(), "evt_1",
		Attendee{Name: "Dana", Email: "dana@example.com"}, "")

	require.NoError(t, err)
	assert.Equal(t, "general", body["ticketType"], "empty ticket type defaults to general")
	attendee := body["attendee"].(map[string]any)
	assert.Equal(t, "Dana", attendee["name"])
}

func TestCancelTicketBody(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tickets/tkt_1/cancel", r.URL.Path)
		json.NewDecoder(r.Body).Decode(&body)
		w.Write([]byte(`{"refunded": true}`))
	})

	_, err := c.CancelTicket(context.Background(), "tkt_1", "double booking", true)

	require.NoError(t, err)
	assert.Equal(t, "double booking", body["reason"])
	assert.Equal(t, true, body["processRefund"])
}

func TestHealthCheck(t *testing.T) {
	healthy := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	})
	assert.True(t, healthy.HealthCheck(context.Background()))

	unhealthy := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	assert.False(t, unhealthy.HealthCheck(context.Background()))
}
