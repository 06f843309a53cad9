package policy

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vadim/linkpilot/internal/database"
	"github.com/vadim/linkpilot/internal/domain/campaign/dao"
	"github.com/vadim/linkpilot/internal/domain/campaign/entity"
	"github.com/vadim/linkpilot/internal/domain/campaign/service"
	postdao "github.com/vadim/linkpilot/internal/domain/post/dao"
	postentity "github.com/vadim/linkpilot/internal/domain/post/entity"
	postservice "github.com/vadim/linkpilot/internal/domain/post/service"
	"github.com/vadim/linkpilot/internal/events"
	"github.com/vadim/linkpilot/internal/retry"
)

type fakeGenerator struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (g *fakeGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	return "Three lessons we learned shipping weekly.", nil
}

type fakeImages struct {
	err error
}

func (f *fakeImages) GenerateImage(ctx context.Context, prompt string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "https://cdn.example.com/generated/1.png", nil
}

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
	campaigns *service.Service
	posts     *postservice.Service
	policy    *Policy
	generator *fakeGenerator
	events    *events.Recorder
	clock     *clock
}

func setup(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	db, err := database.OpenSQLiteMemory()
	if err != nil {
		t.Fatalf("OpenSQLiteMemory() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	clk := &clock{now: time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)}
	campaigns := service.New(dao.NewCampaignSQLite(db), service.WithClock(clk.Now))
	posts := postservice.New(postdao.NewPostSQLite(db), postservice.WithClock(clk.Now))
	gen := &fakeGenerator{}
	rec := &events.Recorder{}

	opts = append([]Option{
		WithRetryPolicy(retry.Policy{MaxAttempts: 3, BaseDelay: 0}),
		WithNotifier(rec),
	}, opts...)

	return &fixture{
		campaigns: campaigns,
		posts:     posts,
		policy:    New(campaigns, posts, gen, opts...),
		generator: gen,
		events:    rec,
		clock:     clk,
	}
}

func (f *fixture) create(t *testing.T, perDay int, runFor time.Duration) *entity.Campaign {
	t.Helper()
	start := f.clock.Now().Add(-time.Hour)
	end := f.clock.Now().Add(runFor)
	c, err := f.policy.CreateCampaign(context.Background(), service.CreateInput{
		UserID:         "u1",
		Name:           "Spring launch",
		StartAt:        &start,
		EndAt:          &end,
		Audience:       entity.Audience{Industries: []string{"Technology"}},
		Themes:         []string{"AI adoption", "Leadership"},
		DailyPostLimit: perDay,
	})
	if err != nil {
		t.Fatalf("CreateCampaign() error: %v", err)
	}
	return c
}

func (f *fixture) scheduled(t *testing.T, campaignID string) []postentity.Post {
	t.Helper()
	status := postentity.StatusScheduled
	out, err := f.posts.List(context.Background(), postservice.ListInput{CampaignID: campaignID, Status: &status, Limit: 100})
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	return out.Posts
}

func TestActivateCampaign_SchedulesFirstBatch(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	c := f.create(t, 1, 30*24*time.Hour)

	c, err := f.policy.ActivateCampaign(ctx, c.ID)
	if err != nil {
		t.Fatalf("ActivateCampaign() error: %v", err)
	}
	if c.Status != entity.StatusActive {
		t.Fatalf("expected active, got %s", c.Status)
	}

	posts := f.scheduled(t, c.ID)
	if len(posts) != defaultBatchSize {
		t.Fatalf("expected %d scheduled posts, got %d", defaultBatchSize, len(posts))
	}

	days := map[string]bool{}
	for _, p := range posts {
		day := p.ScheduledAt.Format("2006-01-02")
		if days[day] {
			t.Errorf("daily post limit 1 violated on %s", day)
		}
		days[day] = true

		if len(p.Hashtags) == 0 || len(p.Hashtags) > entity.MaxHashtags {
			t.Errorf("unexpected hashtags %v", p.Hashtags)
		}
		if !strings.Contains(p.Content, "\n\n") {
			t.Errorf("expected call to action appended, got %q", p.Content)
		}
	}

	if f.events.Count(events.CampaignStatusChanged) != 1 {
		t.Errorf("expected one status event, got %d", f.events.Count(events.CampaignStatusChanged))
	}
}

func TestActivateCampaign_RejectsEnded(t *testing.T) {
	f := setup(t)
	c := f.create(t, 1, time.Hour)
	f.clock.Advance(2 * time.Hour)

	if _, err := f.policy.ActivateCampaign(context.Background(), c.ID); !errors.Is(err, entity.ErrCampaignEnded) {
		t.Errorf("expected ErrCampaignEnded, got %v", err)
	}
}

func TestManageCampaigns_Replenishes(t *testing.T) {
	f := setup(t, WithBatchSize(2))
	ctx := context.Background()

	c := f.create(t, 1, 30*24*time.Hour)
	if _, err := f.policy.ActivateCampaign(ctx, c.ID); err != nil {
		t.Fatalf("ActivateCampaign() error: %v", err)
	}

	res, err := f.policy.ManageCampaigns(ctx)
	if err != nil {
		t.Fatalf("ManageCampaigns() error: %v", err)
	}
	if res.PostsCreated != 2 || res.Replenished != 1 {
		t.Errorf("expected 2 posts in one replenished campaign, got %+v", res)
	}

	posts := f.scheduled(t, c.ID)
	if len(posts) != 4 {
		t.Fatalf("expected 4 scheduled posts, got %d", len(posts))
	}
	seen := map[time.Time]bool{}
	for _, p := range posts {
		if seen[*p.ScheduledAt] {
			t.Errorf("two posts share slot %v", p.ScheduledAt)
		}
		seen[*p.ScheduledAt] = true
	}

	// 4 pending is enough
	res, err = f.policy.ManageCampaigns(ctx)
	if err != nil {
		t.Fatalf("ManageCampaigns() error: %v", err)
	}
	if res.PostsCreated != 0 {
		t.Errorf("expected no new posts, got %d", res.PostsCreated)
	}
}

func TestManageCampaigns_CompletesEnded(t *testing.T) {
	f := setup(t, WithBatchSize(1))
	ctx := context.Background()

	c := f.create(t, 1, 24*time.Hour)
	if _, err := f.policy.ActivateCampaign(ctx, c.ID); err != nil {
		t.Fatalf("ActivateCampaign() error: %v", err)
	}

	f.clock.Advance(25 * time.Hour)

	res, err := f.policy.ManageCampaigns(ctx)
	if err != nil {
		t.Fatalf("ManageCampaigns() error: %v", err)
	}
	if res.Completed != 1 {
		t.Errorf("expected 1 completed, got %+v", res)
	}

	stored, _ := f.campaigns.Get(ctx, c.ID)
	if stored.Status != entity.StatusCompleted {
		t.Errorf("expected completed, got %s", stored.Status)
	}

	// archived once it ended more than 90 days ago
	f.clock.Advance(91 * 24 * time.Hour)
	n, err := f.policy.ArchiveEnded(ctx, 90*24*time.Hour)
	if err != nil {
		t.Fatalf("ArchiveEnded() error: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 archived, got %d", n)
	}
}

func TestGenerateBatch_TerminalErrorFailsCampaign(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	c := f.create(t, 1, 30*24*time.Hour)
	f.generator.err = retry.Terminal(errors.New("openai: 401 invalid api key"))

	// activation succeeds, the batch fails the campaign
	if _, err := f.policy.ActivateCampaign(ctx, c.ID); err != nil {
		t.Fatalf("ActivateCampaign() error: %v", err)
	}

	stored, _ := f.campaigns.Get(ctx, c.ID)
	if stored.Status != entity.StatusFailed {
		t.Errorf("expected failed, got %s", stored.Status)
	}
	if !strings.Contains(stored.StatusReason, "401") {
		t.Errorf("expected reason to carry the error, got %q", stored.StatusReason)
	}
	if f.generator.calls != 1 {
		t.Errorf("terminal error must not be retried, got %d calls", f.generator.calls)
	}
}

func TestGenerateBatch_RetryableErrorKeepsCampaignActive(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	c := f.create(t, 1, 30*24*time.Hour)
	f.generator.err = errors.New("openai: 503")

	if _, err := f.policy.ActivateCampaign(ctx, c.ID); err != nil {
		t.Fatalf("ActivateCampaign() error: %v", err)
	}

	stored, _ := f.campaigns.Get(ctx, c.ID)
	if stored.Status != entity.StatusActive {
		t.Errorf("expected active, got %s", stored.Status)
	}
	if f.generator.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", f.generator.calls)
	}
}

func TestGenerateBatch_ImageFailureStillCreatesPost(t *testing.T) {
	f := setup(t, WithBatchSize(1), WithImageGenerator(&fakeImages{err: errors.New("dall-e: 500")}))
	ctx := context.Background()

	c := f.create(t, 1, 30*24*time.Hour)
	if _, err := f.policy.ActivateCampaign(ctx, c.ID); err != nil {
		t.Fatalf("ActivateCampaign() error: %v", err)
	}

	posts := f.scheduled(t, c.ID)
	if len(posts) != 1 || len(posts[0].MediaURLs) != 0 {
		t.Errorf("expected one text-only post, got %+v", posts)
	}
}

func TestRefreshMetrics(t *testing.T) {
	f := setup(t, WithBatchSize(1))
	ctx := context.Background()

	c := f.create(t, 1, 30*24*time.Hour)
	if _, err := f.policy.ActivateCampaign(ctx, c.ID); err != nil {
		t.Fatalf("ActivateCampaign() error: %v", err)
	}

	post := f.scheduled(t, c.ID)[0]
	if ok, err := f.posts.Claim(ctx, post.ID); err != nil || !ok {
		t.Fatalf("Claim() = %v, %v", ok, err)
	}
	if err := f.posts.MarkAsPublished(ctx, post.ID, "urn:li:share:1", ""); err != nil {
		t.Fatalf("MarkAsPublished() error: %v", err)
	}
	if err := f.posts.UpdateMetrics(ctx, post.ID, postentity.Metrics{Likes: 10, Comments: 2, Shares: 1, Impressions: 500}); err != nil {
		t.Fatalf("UpdateMetrics() error: %v", err)
	}

	stored, _ := f.campaigns.Get(ctx, c.ID)
	if err := f.policy.RefreshMetrics(ctx, stored); err != nil {
		t.Fatalf("RefreshMetrics() error: %v", err)
	}

	stored, _ = f.campaigns.Get(ctx, c.ID)
	want := entity.Metrics{PostsCount: 1, TotalReach: 500, TotalEngagement: 13}
	if stored.Metrics != want {
		t.Errorf("expected %+v, got %+v", want, stored.Metrics)
	}
}

func TestFindStale(t *testing.T) {
	f := setup(t, WithBatchSize(1))
	ctx := context.Background()

	c := f.create(t, 1, 60*24*time.Hour)
	if _, err := f.policy.ActivateCampaign(ctx, c.ID); err != nil {
		t.Fatalf("ActivateCampaign() error: %v", err)
	}

	stale, err := f.policy.FindStale(ctx, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("FindStale() error: %v", err)
	}
	if len(stale) != 0 {
		t.Errorf("fresh campaign reported stale")
	}

	f.clock.Advance(8 * 24 * time.Hour)
	stale, _ = f.policy.FindStale(ctx, 7*24*time.Hour)
	if len(stale) != 1 {
		t.Errorf("expected 1 stale campaign, got %d", len(stale))
	}
}
