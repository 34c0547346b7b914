package remote_test

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketeer/scangate/internal/remote"
)

func newClient(t *testing.T, handler http.Handler) *remote.Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return remote.NewClient(remote.Config{
		BaseURL: ts.URL,
		Token:   "tok-123",
	}, log.New(io.Discard, "", 0))
}

func TestValidate_SendsPayloadAndToken(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/scanner/validate", r.URL.Path)
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))

		body, _ := io.ReadAll(r.Body)
		var req map[string]string
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "ABC123", req["code"])
		assert.Equal(t, "s1", req["session_id"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true, "valid": true, "ticket_id": "t1", "message": "ok",
		})
	}))

	resp, err := c.Validate(context.Background(), "ABC123", "s1")
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.True(t, resp.Valid)
	assert.Equal(t, "t1", resp.TicketID)
}

// A 4xx carries the authority's decision, not a transport failure.
func TestValidate_DecisionIn4xxBody(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": false, "already_validated": true, "message": "already scanned",
		})
	}))

	resp, err := c.Validate(context.Background(), "ABC123", "s1")
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.True(t, resp.AlreadyValidated)
	assert.Equal(t, "already scanned", resp.Message)
}

func TestValidate_5xxIsTransportFailure(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := c.Validate(context.Background(), "ABC123", "s1")
	assert.Error(t, err)
}

func TestFetchEventTickets_MapsPayload(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/scanner/events/ev-1/tickets", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"tickets": []map[string]string{
				{"code": "A1", "ticket_id": "t1", "event_id": "ev-1", "tier": "GA", "holder_name": "Dana", "status": "valid"},
				{"code": "B2", "ticket_id": "t2", "event_id": "ev-1", "tier": "VIP", "holder_name": "Riley", "status": "used"},
			},
		})
	}))

	tickets, err := c.FetchEventTickets(context.Background(), "ev-1")
	require.NoError(t, err)
	require.Len(t, tickets, 2)
	assert.Equal(t, "A1", tickets[0].Code)
	assert.Equal(t, "Dana", tickets[0].Holder)
	assert.Equal(t, "valid", tickets[0].Status)
	assert.Equal(t, "used", tickets[1].Status)
	assert.False(t, tickets[0].CachedAt.IsZero())
}

func TestProbe(t *testing.T) {
	ok := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	assert.True(t, ok.Probe(context.Background()))

	down := remote.NewClient(remote.Config{BaseURL: "http://127.0.0.1:1"},
		log.New(io.Discard, "", 0))
	assert.False(t, down.Probe(context.Background()))
}
