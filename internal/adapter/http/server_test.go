package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/couchcryptid/river-alert-service/internal/adapter/http"
	"github.com/couchcryptid/river-alert-service/internal/cycle"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockSummaries struct {
	summary cycle.Summary
	ok      bool
}

func (m *mockSummaries) LastSummary() (cycle.Summary, bool) { return m.summary, m.ok }

func newTestServer(readyErr error, summaries *mockSummaries) *httpadapter.Server {
	if summaries == nil {
		summaries = &mockSummaries{}
	}
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, summaries, slog.Default())
}

func TestHealthzReturns200(t *testing.T) {
	srv := newTestServer(nil, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	srv := newTestServer(nil, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	srv := newTestServer(fmt.Errorf("no fetch cycle has completed yet"), nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "no fetch cycle has completed yet", body["error"])
}

func TestSummaryReturnsLastCycle(t *testing.T) {
	summaries := &mockSummaries{
		summary: cycle.Summary{CycleID: "run-1", Found: 12, Updated: 9, Stale: 2, Errored: 1},
		ok:      true,
	}
	srv := newTestServer(nil, summaries)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/summary", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body cycle.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "run-1", body.CycleID)
	assert.Equal(t, 12, body.Found)
	assert.Equal(t, 9, body.Updated)
}

func TestSummaryReturns503BeforeFirstCycle(t *testing.T) {
	srv := newTestServer(nil, &mockSummaries{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/summary", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(nil, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
