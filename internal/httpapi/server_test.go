package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketeer/scangate/internal/httpapi"
	"github.com/ticketeer/scangate/internal/scangate/connectivity"
	"github.com/ticketeer/scangate/internal/scangate/service"
	"github.com/ticketeer/scangate/internal/scangate/store"
	"github.com/ticketeer/scangate/internal/scangate/store/memory"
	"github.com/ticketeer/scangate/internal/scangate/types"
)

type testEnv struct {
	server  *httptest.Server
	store   *memory.Store
	monitor *connectivity.Monitor
}

// newTestEnv wires up the full dependency graph over an in-memory store and
// returns an httptest.Server whose URL can be hit with a plain http.Client.
// The monitor starts offline; tests flip it with SetOnline.
func newTestEnv(t *testing.T, remote service.RemoteValidator, fetch service.TicketFetcher) *testEnv {
	t.Helper()

	logger := log.New(io.Discard, "", 0)
	st := memory.New()
	monitor := connectivity.NewMonitor(nil, 0, nil)

	engine := service.NewValidationEngine(st, monitor, remote, logger)
	session := service.NewScanSession(engine, logger)
	precache := service.NewPrecacheService(st, fetch, logger)
	reconciler := service.NewSyncReconciler(st, logger)

	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:     logger,
		Addr:       ":0",
		Session:    session,
		Precache:   precache,
		Reconciler: reconciler,
		Remote:     remote,
		Monitor:    monitor,
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{server: ts, store: st, monitor: monitor}
}

func noRemote(t *testing.T) service.RemoteValidator {
	return func(context.Context, string, string) (types.RemoteValidateResponse, error) {
		t.Error("unexpected remote call")
		return types.RemoteValidateResponse{}, nil
	}
}

func postJSON(t *testing.T, url string, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewReader([]byte(body)))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestScan_OfflineAdmit(t *testing.T) {
	env := newTestEnv(t, noRemote(t), nil)

	require.NoError(t, env.store.PutTicket(context.Background(), store.CachedTicket{
		Code: "ABC123", TicketID: "t1", EventID: "ev-1",
		Status: "valid", CachedAt: time.Now().UTC(),
	}))

	resp := postJSON(t, env.server.URL+"/v1/scan", `{"code":"ABC123"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	res := decodeBody[types.ScanResult](t, resp)
	assert.True(t, res.Success)
	assert.True(t, res.Offline)
	require.NotNil(t, res.Ticket)
	assert.Equal(t, "used", res.Ticket.Status)
}

func TestScan_BadJSON(t *testing.T) {
	env := newTestEnv(t, noRemote(t), nil)

	resp := postJSON(t, env.server.URL+"/v1/scan", `{"code":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestScan_EmptyCode(t *testing.T) {
	env := newTestEnv(t, noRemote(t), nil)

	resp := postJSON(t, env.server.URL+"/v1/scan", `{"code":""}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPrecache_ThenStats(t *testing.T) {
	fetch := func(_ context.Context, eventID string) ([]store.CachedTicket, error) {
		return []store.CachedTicket{
			{Code: "A1", TicketID: "t1", EventID: eventID, Status: "valid"},
			{Code: "B2", TicketID: "t2", EventID: eventID, Status: "valid"},
		}, nil
	}
	env := newTestEnv(t, noRemote(t), fetch)

	resp := postJSON(t, env.server.URL+"/v1/precache", `{"event_id":"ev-1"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cached := decodeBody[map[string]int](t, resp)
	assert.Equal(t, 2, cached["cached"])

	statsResp, err := http.Get(env.server.URL + "/v1/stats")
	require.NoError(t, err)
	defer statsResp.Body.Close()
	require.Equal(t, http.StatusOK, statsResp.StatusCode)

	stats := decodeBody[store.Stats](t, statsResp)
	assert.Equal(t, 2, stats.CachedTickets)
}

func TestSync_ManualTrigger(t *testing.T) {
	accepting := func(context.Context, string, string) (types.RemoteValidateResponse, error) {
		return types.RemoteValidateResponse{Success: true, Valid: true}, nil
	}
	env := newTestEnv(t, accepting, nil)

	// Seed one offline admit through the scan endpoint while offline.
	require.NoError(t, env.store.PutTicket(context.Background(), store.CachedTicket{
		Code: "ABC123", TicketID: "t1", EventID: "ev-1",
		Status: "valid", CachedAt: time.Now().UTC(),
	}))
	scanResp := postJSON(t, env.server.URL+"/v1/scan", `{"code":"ABC123"}`)
	require.Equal(t, http.StatusOK, scanResp.StatusCode)

	resp := postJSON(t, env.server.URL+"/v1/sync", ``)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	summary := decodeBody[service.SyncSummary](t, resp)
	assert.Equal(t, 1, summary.Synced)
	assert.Equal(t, 0, summary.Failed)
}

func TestStatus_ReportsConnectivityAndSession(t *testing.T) {
	env := newTestEnv(t, noRemote(t), nil)

	resp, err := http.Get(env.server.URL + "/v1/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	status := decodeBody[map[string]any](t, resp)
	assert.Equal(t, false, status["online"])
	assert.NotEmpty(t, status["session_id"])

	env.monitor.SetOnline(true)

	resp2, err := http.Get(env.server.URL + "/v1/status")
	require.NoError(t, err)
	defer resp2.Body.Close()
	status2 := decodeBody[map[string]any](t, resp2)
	assert.Equal(t, true, status2["online"])
}

func TestReset_WipesStore(t *testing.T) {
	env := newTestEnv(t, noRemote(t), nil)

	require.NoError(t, env.store.PutTicket(context.Background(), store.CachedTicket{
		Code: "A1", TicketID: "t1", EventID: "ev-1", Status: "valid",
	}))

	resp := postJSON(t, env.server.URL+"/v1/reset", ``)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	stats, err := env.store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, store.Stats{}, stats)
}
