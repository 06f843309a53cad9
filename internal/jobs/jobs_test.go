package jobs

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vadim/linkpilot/internal/database"
	campaigndao "github.com/vadim/linkpilot/internal/domain/campaign/dao"
	campaignentity "github.com/vadim/linkpilot/internal/domain/campaign/entity"
	campaignpolicy "github.com/vadim/linkpilot/internal/domain/campaign/policy"
	campaignsvc "github.com/vadim/linkpilot/internal/domain/campaign/service"
	ledgerdao "github.com/vadim/linkpilot/internal/domain/ledger/dao"
	ledgersvc "github.com/vadim/linkpilot/internal/domain/ledger/service"
	postdao "github.com/vadim/linkpilot/internal/domain/post/dao"
	postentity "github.com/vadim/linkpilot/internal/domain/post/entity"
	postpolicy "github.com/vadim/linkpilot/internal/domain/post/policy"
	postsvc "github.com/vadim/linkpilot/internal/domain/post/service"
	"github.com/vadim/linkpilot/internal/domain/quota"
	"github.com/vadim/linkpilot/internal/domain/rule/engine"
	ruledao "github.com/vadim/linkpilot/internal/domain/rule/dao"
	"github.com/vadim/linkpilot/internal/domain/rule/entity"
	rulesvc "github.com/vadim/linkpilot/internal/domain/rule/service"
	"github.com/vadim/linkpilot/internal/httpx/upstream/linkedin"
	"github.com/vadim/linkpilot/internal/httpx/upstream/openai"
	"github.com/vadim/linkpilot/internal/retry"
	"github.com/vadim/linkpilot/internal/scheduler"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	jobs      *Jobs
	posts     *postsvc.Service
	campaigns *campaignpolicy.Policy
	rules     *rulesvc.Service
	ledger    *ledgersvc.Service
	sim       *linkedin.Simulator
	clock     *clock
}

func setup(t *testing.T) *fixture {
	t.Helper()

	db, err := database.OpenSQLiteMemory()
	if err != nil {
		t.Fatalf("OpenSQLiteMemory() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clk := &clock{now: time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)}
	rp := retry.Policy{MaxAttempts: 3, BaseDelay: 0}
	sim := linkedin.NewSimulator(logger)

	led := ledgersvc.New(ledgerdao.NewEntrySQLite(db), ledgersvc.WithClock(clk.Now))
	limiter := quota.New(led, quota.DefaultLimits())
	rules := rulesvc.New(ruledao.NewRuleSQLite(db), limiter, rulesvc.WithClock(clk.Now))
	eng := engine.New(rules, led, limiter, sim, sim, engine.WithRetryPolicy(rp), engine.WithLogger(logger))

	posts := postsvc.New(postdao.NewPostSQLite(db), postsvc.WithClock(clk.Now))
	postPolicy := postpolicy.New(posts, sim, postpolicy.WithRetryPolicy(rp), postpolicy.WithLogger(logger))

	campaigns := campaignsvc.New(campaigndao.NewCampaignSQLite(db), campaignsvc.WithClock(clk.Now))
	campaignPolicy := campaignpolicy.New(campaigns, posts, openai.Fallback{},
		campaignpolicy.WithRetryPolicy(rp), campaignpolicy.WithLogger(logger))

	j := New(Deps{
		Posts:         postPolicy,
		MetricsSource: sim,
		Campaigns:     campaignPolicy,
		Rules:         rules,
		Engine:        eng,
		Ledger:        led,
	}, DefaultSettings(), logger)

	return &fixture{jobs: j, posts: posts, campaigns: campaignPolicy, rules: rules, ledger: led, sim: sim, clock: clk}
}

func (f *fixture) scheduler(t *testing.T) *scheduler.Scheduler {
	t.Helper()
	s := scheduler.New(scheduler.WithClock(f.clock.Now), scheduler.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err := f.jobs.Register(s, DefaultSchedules()); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	return s
}

func TestRegistrationOrder(t *testing.T) {
	f := setup(t)
	s := f.scheduler(t)

	want := []string{
		TaskPublishDue, TaskCampaigns, TaskEngagement, TaskOutreach,
		TaskContent, TaskMetricsRefresh, TaskHealthCheck, TaskRetentionCleanup,
	}
	got := s.Tasks()
	if len(got) != len(want) {
		t.Fatalf("tasks = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("task %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestOutreach_AutoFollowHonorsDailyLimit(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	s := f.scheduler(t)

	r, err := f.rules.Create(ctx, rulesvc.CreateInput{
		UserID:     "u1",
		Name:       "follow founders",
		Type:       entity.RuleAutoFollow,
		Category:   entity.CategoryStartupFounders,
		DailyLimit: 5,
		Active:     true,
	})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := s.RunOnce(ctx, TaskOutreach); err != nil {
			t.Fatalf("RunOnce(outreach) error: %v", err)
		}
	}

	entries, err := f.ledger.List(ctx, ledgersvc.ListInput{RuleID: r.ID})
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(entries) != 5 {
		t.Errorf("expected 5 action log entries, got %d", len(entries))
	}
	if n := f.sim.Actions("follow"); n != 5 {
		t.Errorf("expected 5 follows executed, got %d", n)
	}

	got, err := f.rules.Get(ctx, r.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Stats.TotalActions != 5 || got.Stats.SuccessfulActions != 5 {
		t.Errorf("unexpected stats %+v", got.Stats)
	}
	if got.LastRunAt == nil {
		t.Error("last run must be recorded")
	}
}

func TestPublishDue_PastDuePostIsPublished(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	s := f.scheduler(t)

	at := f.clock.Now().Add(-time.Minute)
	post, err := f.posts.Create(ctx, postsvc.CreateInput{UserID: "u1", Content: "Shipping our Q2 roadmap today", ScheduledAt: &at})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	if err := s.RunOnce(ctx, TaskPublishDue); err != nil {
		t.Fatalf("RunOnce(publish-due) error: %v", err)
	}

	got, err := f.posts.Get(ctx, post.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Status != postentity.StatusPublished {
		t.Fatalf("status = %s, want published", got.Status)
	}
	if !strings.HasPrefix(got.ExternalPostID, "urn:li:share:") || got.PublishedAt == nil {
		t.Errorf("unexpected published post %+v", got)
	}

	// metrics refresh picks up the published post
	if err := f.jobs.RefreshMetrics(ctx); err != nil {
		t.Fatalf("RefreshMetrics() error: %v", err)
	}
	got, _ = f.posts.Get(ctx, post.ID)
	if got.Metrics.Impressions == 0 {
		t.Errorf("expected impressions after refresh, got %+v", got.Metrics)
	}
}

func TestHealthCheck_FailsStuckPosts(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	at := f.clock.Now().Add(-time.Minute)
	post, err := f.posts.Create(ctx, postsvc.CreateInput{UserID: "u1", Content: "stuck", ScheduledAt: &at})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if ok, err := f.posts.Claim(ctx, post.ID); err != nil || !ok {
		t.Fatalf("Claim() = %v, %v", ok, err)
	}

	f.clock.Advance(31 * time.Minute)
	if err := f.jobs.HealthCheck(ctx); err != nil {
		t.Fatalf("HealthCheck() error: %v", err)
	}

	got, _ := f.posts.Get(ctx, post.ID)
	if got.Status != postentity.StatusFailed || got.ErrorMessage != postentity.PublishingTimeoutReason {
		t.Errorf("expected failed with timeout reason, got %s %q", got.Status, got.ErrorMessage)
	}
}

func TestGenerateContent_UsesDailyPostLimit(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	start := f.clock.Now().Add(-time.Hour)
	end := f.clock.Now().Add(30 * 24 * time.Hour)
	c, err := f.campaigns.CreateCampaign(ctx, campaignsvc.CreateInput{
		UserID:         "u1",
		Name:           "Launch",
		StartAt:        &start,
		EndAt:          &end,
		Audience:       campaignentity.Audience{Industries: []string{"Software"}},
		Themes:         []string{"AI adoption", "Remote teams"},
		DailyPostLimit: 2,
	})
	if err != nil {
		t.Fatalf("CreateCampaign() error: %v", err)
	}
	if _, err := f.campaigns.ActivateCampaign(ctx, c.ID); err != nil {
		t.Fatalf("ActivateCampaign() error: %v", err)
	}

	before, err := f.posts.CountScheduled(ctx, c.ID)
	if err != nil {
		t.Fatalf("CountScheduled() error: %v", err)
	}

	if err := f.jobs.GenerateContent(ctx); err != nil {
		t.Fatalf("GenerateContent() error: %v", err)
	}

	after, _ := f.posts.CountScheduled(ctx, c.ID)
	if after-before != 2 {
		t.Errorf("expected 2 new posts, got %d", after-before)
	}
}

func TestRetentionCleanup(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	at := f.clock.Now().Add(-time.Minute)
	post, err := f.posts.Create(ctx, postsvc.CreateInput{UserID: "u1", Content: "old", ScheduledAt: &at})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if ok, err := f.posts.Claim(ctx, post.ID); err != nil || !ok {
		t.Fatalf("Claim() = %v, %v", ok, err)
	}
	if err := f.posts.MarkAsFailed(ctx, post.ID, "boom"); err != nil {
		t.Fatalf("MarkAsFailed() error: %v", err)
	}

	f.clock.Advance(31 * 24 * time.Hour)
	if err := f.jobs.RetentionCleanup(ctx); err != nil {
		t.Fatalf("RetentionCleanup() error: %v", err)
	}

	if _, err := f.posts.Get(ctx, post.ID); err == nil {
		t.Error("failed post older than retention must be deleted")
	}
}
