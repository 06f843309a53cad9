package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vadim/linkpilot/internal/config"
	"github.com/vadim/linkpilot/internal/jobs"
)

func newTestApp(t *testing.T) *App {
	t.Helper()

	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("SQLITE_PATH", filepath.Join(dir, "linkpilot.db"))
	t.Setenv("LINKEDIN_MODE", "simulate")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("AMQP_URL", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("LOG_LEVEL", "error")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load() error: %v", err)
	}

	a, err := NewApp(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewApp() error: %v", err)
	}
	t.Cleanup(a.Close)
	return a
}

func request(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, &buf))
	return rec
}

func TestProbes(t *testing.T) {
	a := newTestApp(t)
	h := a.Handler()

	if rec := request(t, h, http.MethodGet, "/healthz", nil); rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d", rec.Code)
	}

	rec := request(t, h, http.MethodGet, "/readyz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("readyz status = %d, body %s", rec.Code, rec.Body)
	}
	if strings.Contains(rec.Body.String(), "linkedin_breaker") {
		t.Error("simulation mode has no circuit breaker")
	}

	rec = request(t, h, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Errorf("metrics endpoint not served, status %d", rec.Code)
	}
}

func TestRegistersAllTasks(t *testing.T) {
	a := newTestApp(t)

	got := a.Scheduler().Tasks()
	want := []string{
		jobs.TaskPublishDue, jobs.TaskCampaigns, jobs.TaskEngagement, jobs.TaskOutreach,
		jobs.TaskContent, jobs.TaskMetricsRefresh, jobs.TaskHealthCheck, jobs.TaskRetentionCleanup,
	}
	if len(got) != len(want) {
		t.Fatalf("tasks = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("task %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestCampaignActivationSchedulesContent(t *testing.T) {
	a := newTestApp(t)
	h := a.Handler()

	rec := request(t, h, http.MethodPost, "/api/v1/campaigns", map[string]any{
		"user_id": "u1",
		"name":    "Q3 thought leadership",
		"themes":  []string{"AI", "Remote teams"},
		"audience": map[string]any{
			"industries": []string{"Software"},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body)
	}
	var campaign struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&campaign); err != nil {
		t.Fatalf("decoding campaign: %v", err)
	}

	rec = request(t, h, http.MethodPost, "/api/v1/campaigns/"+campaign.ID+"/activate", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("activate status = %d, body %s", rec.Code, rec.Body)
	}

	rec = request(t, h, http.MethodGet, "/api/v1/posts?status=scheduled&campaign_id="+campaign.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var page struct {
		Total int64 `json:"total"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&page); err != nil {
		t.Fatalf("decoding posts: %v", err)
	}
	if want := int64(a.cfg.Automation.ContentBatchSize); page.Total != want {
		t.Errorf("scheduled posts = %d, want %d", page.Total, want)
	}
}

func TestRunTaskOnce(t *testing.T) {
	a := newTestApp(t)

	if err := a.Scheduler().RunOnce(context.Background(), jobs.TaskHealthCheck); err != nil {
		t.Errorf("health check failed: %v", err)
	}
	if err := a.Scheduler().RunOnce(context.Background(), "nope"); err == nil {
		t.Error("expected an error for an unknown task")
	}
}
