package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"applypilot/internal/config"
	"applypilot/internal/domain"
	"applypilot/internal/events"
	"applypilot/internal/httpapi"
	"applypilot/internal/memory"
	"applypilot/internal/scheduler"
	"applypilot/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type fakeArchive struct {
	rows   []store.PostingRow
	counts map[string]int
}

func (f *fakeArchive) ListPostings(ctx context.Context, status string, limit int) ([]store.PostingRow, error) {
	return f.rows, nil
}

func (f *fakeArchive) CountByStatus(ctx context.Context) (map[string]int, error) {
	return f.counts, nil
}

func testDeps(t *testing.T) httpapi.Deps {
	t.Helper()
	mem, err := memory.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = mem.Close() })

	return httpapi.Deps{
		Mem:     mem,
		Archive: &fakeArchive{counts: map[string]int{"applied": 3, "skipped": 12}},
		Hub:     events.NewHub(),
	}
}

func doRequest(t *testing.T, d httpapi.Deps, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	handler := httpapi.Chain(httpapi.NewMux(d), httpapi.RequestID, httpapi.Recover, httpapi.Cors)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func doRequestBody(t *testing.T, d httpapi.Deps, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	handler := httpapi.Chain(httpapi.NewMux(d), httpapi.RequestID, httpapi.Recover, httpapi.Cors)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(method, path, bytes.NewReader(body)))
	return rec
}

func apiConfig() config.Config {
	var cfg config.Config
	cfg.App.Port = 8787
	cfg.Portal.BaseURL = "https://www.example-jobs.com"
	cfg.Portal.SearchURL = "https://www.example-jobs.com/jobs?q={keywords}&l={location}&p={page}"
	cfg.Portal.Queries = []config.Query{{Keywords: "golang", Location: "Remote"}}
	return cfg
}

func TestHealth(t *testing.T) {
	rec := doRequest(t, testDeps(t), http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestStatusReportsCountsAndQueue(t *testing.T) {
	d := testDeps(t)
	require.NoError(t, d.Mem.EnqueueOutreach(domain.OutreachDraft{ID: "d1"}))

	rec := doRequest(t, d, http.MethodGet, "/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.EqualValues(t, 1, got["outreach_queued"])
	assert.Equal(t, map[string]any{"applied": float64(3), "skipped": float64(12)}, got["postings"])
}

func TestApplicationsList(t *testing.T) {
	d := testDeps(t)
	require.NoError(t, d.Mem.RecordApplication(domain.Application{
		PortalID: "4021337", Title: "Go Engineer", Status: domain.StatusApplied, AppliedAt: time.Now(),
	}))

	rec := doRequest(t, d, http.MethodGet, "/applications")
	require.Equal(t, http.StatusOK, rec.Code)

	var apps []domain.Application
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apps))
	require.Len(t, apps, 1)
	assert.Equal(t, "4021337", apps[0].PortalID)
}

func TestOutreachDelete(t *testing.T) {
	d := testDeps(t)
	require.NoError(t, d.Mem.EnqueueOutreach(domain.OutreachDraft{ID: "d1"}))
	require.NoError(t, d.Mem.EnqueueOutreach(domain.OutreachDraft{ID: "d2"}))

	rec := doRequest(t, d, http.MethodDelete, "/outreach/d1")
	assert.Equal(t, http.StatusOK, rec.Code)

	queue := d.Mem.OutreachQueue()
	require.Len(t, queue, 1)
	assert.Equal(t, "d2", queue[0].ID)
}

func TestRunKicksScheduler(t *testing.T) {
	d := testDeps(t)

	rec := doRequest(t, d, http.MethodPost, "/run")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	d.Sched = scheduler.New("cycle", time.Hour, func(ctx context.Context) error { return nil })
	rec = doRequest(t, d, http.MethodPost, "/run")
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestConfigRoundTrip(t *testing.T) {
	d := testDeps(t)
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, config.SaveAtomic(path, apiConfig()))
	d.CfgPath = path

	rec := doRequest(t, d, http.MethodGet, "/config")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "example-jobs.com")

	next := apiConfig()
	next.Schedule.CycleMinutes = 20
	body, err := yaml.Marshal(next)
	require.NoError(t, err)

	rec = doRequestBody(t, d, http.MethodPut, "/config", body)
	require.Equal(t, http.StatusOK, rec.Code)

	got, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 20, got.Schedule.CycleMinutes)

	// the pre-edit version survives as .bak
	_, err = os.Stat(path + ".bak")
	assert.NoError(t, err)
}

func TestConfigPutRejectsInvalid(t *testing.T) {
	d := testDeps(t)
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, config.SaveAtomic(path, apiConfig()))
	d.CfgPath = path

	rec := doRequestBody(t, d, http.MethodPut, "/config", []byte("app:\n  port: -1\n"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	got, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8787, got.App.Port) // file untouched
}

func TestConfigNotWired(t *testing.T) {
	rec := doRequest(t, testDeps(t), http.MethodGet, "/config")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	rec := doRequest(t, testDeps(t), http.MethodPost, "/applications")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
