package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vadim/linkpilot/internal/database"
	ledgerdao "github.com/vadim/linkpilot/internal/domain/ledger/dao"
	ledger "github.com/vadim/linkpilot/internal/domain/ledger/entity"
	ledgersvc "github.com/vadim/linkpilot/internal/domain/ledger/service"
	postdao "github.com/vadim/linkpilot/internal/domain/post/dao"
	postpolicy "github.com/vadim/linkpilot/internal/domain/post/policy"
	postsvc "github.com/vadim/linkpilot/internal/domain/post/service"
	"github.com/vadim/linkpilot/internal/domain/quota"
	"github.com/vadim/linkpilot/internal/domain/rule/engine"
	ruledao "github.com/vadim/linkpilot/internal/domain/rule/dao"
	rulesvc "github.com/vadim/linkpilot/internal/domain/rule/service"
	"github.com/vadim/linkpilot/internal/httpx/upstream/linkedin"
	"github.com/vadim/linkpilot/internal/retry"
	"github.com/vadim/linkpilot/internal/scheduler"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	db, err := database.OpenSQLiteMemory()
	if err != nil {
		t.Fatalf("OpenSQLiteMemory() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sim := linkedin.NewSimulator(logger)
	rp := retry.Policy{MaxAttempts: 1}

	led := ledgersvc.New(ledgerdao.NewEntrySQLite(db))
	limiter := quota.New(led, quota.DefaultLimits())
	rules := rulesvc.New(ruledao.NewRuleSQLite(db), limiter)
	eng := engine.New(rules, led, limiter, sim, sim, engine.WithRetryPolicy(rp), engine.WithLogger(logger))
	posts := postpolicy.New(postsvc.New(postdao.NewPostSQLite(db)), sim,
		postpolicy.WithRetryPolicy(rp), postpolicy.WithLogger(logger))

	sched := scheduler.New(scheduler.WithLogger(logger))
	if err := sched.Register(scheduler.Task{
		Name:     "publish-due",
		Schedule: scheduler.Every(time.Minute),
		Run:      func(context.Context) error { return nil },
	}); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	r := chi.NewRouter()
	NewPostHandler(posts).RegisterRoutes(r)
	NewRuleHandler(rules, eng).RegisterRoutes(r)
	NewActivityHandler(limiter, led).RegisterRoutes(r)
	NewSchedulerHandler(sched).RegisterRoutes(r)
	return r
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestPostLifecycle(t *testing.T) {
	h := newTestRouter(t)

	rec := do(t, h, http.MethodPost, "/posts", map[string]any{
		"user_id": "u1",
		"content": "Shipping our first release this week",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body)
	}
	created := decode[struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}](t, rec)
	if created.Status != "draft" {
		t.Errorf("status = %s, want draft", created.Status)
	}

	rec = do(t, h, http.MethodPost, "/posts/"+created.ID+"/publish", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("publish status = %d, body %s", rec.Code, rec.Body)
	}
	published := decode[struct {
		Status string `json:"status"`
	}](t, rec)
	if published.Status != "published" {
		t.Errorf("status = %s, want published", published.Status)
	}

	// published posts are immutable
	rec = do(t, h, http.MethodPut, "/posts/"+created.ID, map[string]any{"content": "edited"})
	if rec.Code != http.StatusConflict {
		t.Errorf("update published status = %d, want 409", rec.Code)
	}
}

func TestPostErrors(t *testing.T) {
	h := newTestRouter(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"unknown post", http.MethodGet, "/posts/missing", nil, http.StatusNotFound},
		{"empty content", http.MethodPost, "/posts", map[string]any{"user_id": "u1"}, http.StatusBadRequest},
		{"bad schedule", http.MethodPost, "/posts", map[string]any{"user_id": "u1", "content": "x", "scheduled_at": "tomorrow"}, http.StatusBadRequest},
		{"past schedule", http.MethodPost, "/posts", map[string]any{"user_id": "u1", "content": "x", "scheduled_at": "2001-01-01T00:00:00Z"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(t, h, tt.method, tt.path, tt.body); rec.Code != tt.want {
				t.Errorf("status = %d, want %d, body %s", rec.Code, tt.want, rec.Body)
			}
		})
	}
}

func TestRuleRunUpdatesQuota(t *testing.T) {
	h := newTestRouter(t)

	rec := do(t, h, http.MethodPost, "/rules", map[string]any{
		"user_id":     "u1",
		"name":        "follow founders",
		"rule_type":   "auto_follow",
		"category":    "startup_founders",
		"daily_limit": 3,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body)
	}
	rule := decode[struct {
		ID       string `json:"id"`
		IsActive bool   `json:"is_active"`
	}](t, rec)
	if !rule.IsActive {
		t.Error("rules are active unless is_active=false is sent")
	}

	rec = do(t, h, http.MethodPost, "/rules/"+rule.ID+"/run", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("run status = %d, body %s", rec.Code, rec.Body)
	}
	outcome := decode[engine.Outcome](t, rec)
	if outcome.Succeeded != 3 {
		t.Errorf("succeeded = %d, want 3", outcome.Succeeded)
	}

	rec = do(t, h, http.MethodGet, "/users/u1/quota", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("quota status = %d", rec.Code)
	}
	usage := decode[struct {
		Usage []ledger.DailyUsage `json:"usage"`
	}](t, rec)

	var follow *ledger.DailyUsage
	for i := range usage.Usage {
		if usage.Usage[i].ActionType == ledger.ActionFollow {
			follow = &usage.Usage[i]
		}
	}
	if follow == nil || follow.Used != 3 || follow.Remaining != follow.Limit-3 {
		t.Errorf("follow usage = %+v", follow)
	}

	rec = do(t, h, http.MethodGet, "/users/u1/actions?action_type=follow", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("actions status = %d", rec.Code)
	}
	actions := decode[struct {
		Total int64 `json:"total"`
	}](t, rec)
	if actions.Total != 3 {
		t.Errorf("actions total = %d, want 3", actions.Total)
	}

	rec = do(t, h, http.MethodPost, "/rules/"+rule.ID+"/deactivate", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("deactivate status = %d", rec.Code)
	}
	if rec = do(t, h, http.MethodPost, "/rules/"+rule.ID+"/run", nil); rec.Code != http.StatusConflict {
		t.Errorf("running an inactive rule: status = %d, want 409", rec.Code)
	}
}

func TestRuleValidation(t *testing.T) {
	h := newTestRouter(t)

	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{"unknown type", map[string]any{"user_id": "u1", "name": "x", "rule_type": "auto_poke", "daily_limit": 1}, http.StatusBadRequest},
		{"message without template", map[string]any{"user_id": "u1", "name": "x", "rule_type": "auto_message", "daily_limit": 1}, http.StatusBadRequest},
		{"limit above global", map[string]any{"user_id": "u1", "name": "x", "rule_type": "auto_message", "message_template": "Hi {name}", "daily_limit": 500}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(t, h, http.MethodPost, "/rules", tt.body); rec.Code != tt.want {
				t.Errorf("status = %d, want %d, body %s", rec.Code, tt.want, rec.Body)
			}
		})
	}
}

func TestSchedulerEndpoints(t *testing.T) {
	h := newTestRouter(t)

	rec := do(t, h, http.MethodGet, "/scheduler", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	status := decode[StatusResponse](t, rec)
	if status.Running || len(status.Tasks) != 1 || status.Tasks[0].Name != "publish-due" {
		t.Errorf("unexpected status %+v", status)
	}

	if rec := do(t, h, http.MethodPost, "/scheduler/tasks/nope/run", nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown task status = %d, want 404", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/scheduler/tasks/publish-due/run", nil); rec.Code != http.StatusConflict {
		t.Errorf("trigger on stopped scheduler status = %d, want 409", rec.Code)
	}
}
