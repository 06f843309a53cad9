package policy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vadim/linkpilot/internal/domain/post/entity"
	"github.com/vadim/linkpilot/internal/domain/post/service"
	"github.com/vadim/linkpilot/internal/events"
	"github.com/vadim/linkpilot/internal/metrics"
	"github.com/vadim/linkpilot/internal/retry"
)

const (
	defaultBatchSize         = 50
	defaultPublishingTimeout = 30 * time.Minute
)

// ErrEmptyExternalID is returned when the publisher reports success without an identifier
var ErrEmptyExternalID = errors.New("publisher returned an empty post id")

// Publisher defines the LinkedIn publishing operations this policy needs.
// This interface is defined here (consumer) not in the upstream package (provider)
type Publisher interface {
	CreatePost(ctx context.Context, in PublishInput) (*PublishOutput, error)
}

// MetricsSource returns current engagement for a published post
type MetricsSource interface {
	GetPostMetrics(ctx context.Context, externalID string) (entity.Metrics, error)
}

// PublishInput represents input for publishing
type PublishInput struct {
	UserID    string
	Text      string
	MediaURLs []string
}

// PublishOutput represents output from publishing
type PublishOutput struct {
	ExternalID string
	URL        string
}

// Policy orchestrates post publishing use-cases
type Policy struct {
	svc       *service.Service
	publisher Publisher
	notifier  events.Publisher
	retry     retry.Policy
	timeout   time.Duration
	batchSize int
	logger    *slog.Logger
}

// Option configures the Policy
type Option func(*Policy)

// WithRetryPolicy overrides the retry policy used for publish calls
func WithRetryPolicy(rp retry.Policy) Option {
	return func(p *Policy) { p.retry = rp }
}

// WithNotifier sets the event publisher
func WithNotifier(n events.Publisher) Option {
	return func(p *Policy) { p.notifier = n }
}

// WithPublishingTimeout sets how long a post may stay in publishing
func WithPublishingTimeout(d time.Duration) Option {
	return func(p *Policy) { p.timeout = d }
}

// WithBatchSize limits how many due posts one cycle picks up
func WithBatchSize(n int) Option {
	return func(p *Policy) { p.batchSize = n }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(p *Policy) { p.logger = l }
}

// New creates a new post policy
func New(svc *service.Service, publisher Publisher, opts ...Option) *Policy {
	p := &Policy{
		svc:       svc,
		publisher: publisher,
		notifier:  events.Noop{},
		retry:     retry.DefaultPolicy(),
		timeout:   defaultPublishingTimeout,
		batchSize: defaultBatchSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CreatePostInput represents input for creating a post
type CreatePostInput struct {
	UserID      string
	CampaignID  string
	Content     string
	Hashtags    []string
	MediaURLs   []string
	ScheduledAt *time.Time
	PublishNow  bool
}

// CreatePost creates a draft or scheduled post, optionally publishing it right away
func (p *Policy) CreatePost(ctx context.Context, in CreatePostInput) (*entity.Post, error) {
	if in.ScheduledAt != nil && in.ScheduledAt.Before(p.svc.Now()) {
		return nil, entity.ErrScheduledTimeInPast
	}

	post, err := p.svc.Create(ctx, service.CreateInput{
		UserID:      in.UserID,
		CampaignID:  in.CampaignID,
		Content:     in.Content,
		Hashtags:    in.Hashtags,
		MediaURLs:   in.MediaURLs,
		ScheduledAt: in.ScheduledAt,
	})
	if err != nil {
		return nil, err
	}

	if in.PublishNow {
		return p.PublishNow(ctx, post.ID)
	}

	return post, nil
}

// GetPost retrieves a post by ID
func (p *Policy) GetPost(ctx context.Context, id string) (*entity.Post, error) {
	return p.svc.Get(ctx, id)
}

// ListPosts retrieves posts with filtering
func (p *Policy) ListPosts(ctx context.Context, in service.ListInput) (*service.ListOutput, error) {
	return p.svc.List(ctx, in)
}

// UpdatePost edits the content of a post that has not been published
func (p *Policy) UpdatePost(ctx context.Context, in service.UpdateInput) (*entity.Post, error) {
	return p.svc.Update(ctx, in)
}

// SchedulePost schedules a post for a future time
func (p *Policy) SchedulePost(ctx context.Context, id string, at time.Time) (*entity.Post, error) {
	if at.Before(p.svc.Now()) {
		return nil, entity.ErrScheduledTimeInPast
	}
	return p.svc.Schedule(ctx, id, at)
}

// SaveAsDraft removes scheduling from a post
func (p *Policy) SaveAsDraft(ctx context.Context, id string) (*entity.Post, error) {
	return p.svc.SaveAsDraft(ctx, id)
}

// PublishNow publishes a single post immediately through the same claim path as the scheduler
func (p *Policy) PublishNow(ctx context.Context, id string) (*entity.Post, error) {
	post, err := p.svc.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	switch post.Status {
	case entity.StatusPublished:
		return post, nil
	case entity.StatusPublishing:
		return nil, entity.ErrAlreadyClaimed
	case entity.StatusDraft, entity.StatusFailed:
		if post, err = p.svc.Schedule(ctx, id, p.svc.Now()); err != nil {
			return nil, err
		}
	}

	claimed, err := p.svc.Claim(ctx, id)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, entity.ErrAlreadyClaimed
	}

	if err := p.publishClaimed(ctx, post); err != nil {
		// failure is persisted on the post; the caller gets the refreshed state
		p.logger.Warn("publish now failed", "post_id", id, "error", err)
	}

	return p.svc.Get(context.WithoutCancel(ctx), id)
}

// ProcessResult summarises one publish-check cycle
type ProcessResult struct {
	Due       int
	Published int
	Failed    int
	Skipped   int // claimed by someone else between listing and claiming
}

// ProcessScheduledPosts publishes every due post exactly once.
// Each post ends the cycle published or failed.
func (p *Policy) ProcessScheduledPosts(ctx context.Context) (*ProcessResult, error) {
	due, err := p.svc.GetDue(ctx, p.batchSize)
	if err != nil {
		return nil, fmt.Errorf("loading due posts: %w", err)
	}

	res := &ProcessResult{Due: len(due)}
	for i := range due {
		post := &due[i]

		claimed, err := p.svc.Claim(ctx, post.ID)
		if err != nil {
			p.logger.Error("failed to claim post", "post_id", post.ID, "error", err)
			res.Skipped++
			continue
		}
		if !claimed {
			res.Skipped++
			continue
		}

		if err := p.publishClaimed(ctx, post); err != nil {
			res.Failed++
			continue
		}
		res.Published++
	}

	if res.Due > 0 {
		p.logger.Info("processed scheduled posts",
			"due", res.Due, "published", res.Published, "failed", res.Failed, "skipped", res.Skipped)
	}

	return res, nil
}

// publishClaimed sends a claimed post to LinkedIn and records the terminal state
func (p *Policy) publishClaimed(ctx context.Context, post *entity.Post) error {
	var out *PublishOutput

	result, err := p.retry.Do(ctx, func(ctx context.Context) error {
		o, err := p.publisher.CreatePost(ctx, PublishInput{
			UserID:    post.UserID,
			Text:      post.FullText(),
			MediaURLs: post.MediaURLs,
		})
		if err != nil {
			return err
		}
		if o == nil || o.ExternalID == "" {
			return retry.Terminal(ErrEmptyExternalID)
		}
		out = o
		return nil
	})
	metrics.RetryAttempts.WithLabelValues("create_post").Observe(float64(result.Attempts))

	// the outcome is persisted even if the caller went away
	ctx = context.WithoutCancel(ctx)

	if err != nil {
		reason := err.Error()
		if markErr := p.svc.MarkAsFailed(ctx, post.ID, reason); markErr != nil {
			p.logger.Error("failed to mark post as failed", "post_id", post.ID, "error", markErr)
		}
		metrics.PostsPublished.WithLabelValues(string(entity.StatusFailed)).Inc()
		p.logger.Warn("post publishing failed",
			"post_id", post.ID, "user_id", post.UserID, "attempts", result.Attempts, "error", err)
		p.notify(ctx, events.PostFailed, map[string]any{
			"post_id":  post.ID,
			"user_id":  post.UserID,
			"error":    reason,
			"attempts": result.Attempts,
		})
		return err
	}

	if err := p.svc.MarkAsPublished(ctx, post.ID, out.ExternalID, out.URL); err != nil {
		// left in publishing; the health check fails it after the timeout
		p.logger.Error("failed to mark post as published",
			"post_id", post.ID, "external_post_id", out.ExternalID, "error", err)
		return err
	}

	metrics.PostsPublished.WithLabelValues(string(entity.StatusPublished)).Inc()
	p.logger.Info("post published", "post_id", post.ID, "external_post_id", out.ExternalID, "attempts", result.Attempts)
	p.notify(ctx, events.PostPublished, map[string]any{
		"post_id":          post.ID,
		"user_id":          post.UserID,
		"campaign_id":      post.CampaignID,
		"external_post_id": out.ExternalID,
		"url":              out.URL,
	})

	return nil
}

// FailStuckPosts moves posts stuck in publishing past the timeout to failed
func (p *Policy) FailStuckPosts(ctx context.Context) (int64, error) {
	n, err := p.svc.FailStuck(ctx, p.timeout)
	if err != nil {
		return 0, fmt.Errorf("failing stuck posts: %w", err)
	}
	if n > 0 {
		metrics.PostsPublished.WithLabelValues(string(entity.StatusFailed)).Add(float64(n))
		p.logger.Warn("failed posts stuck in publishing", "count", n, "timeout", p.timeout)
	}
	return n, nil
}

// RefreshMetrics pulls engagement numbers for posts published within the window
func (p *Policy) RefreshMetrics(ctx context.Context, source MetricsSource, window time.Duration) (int, error) {
	posts, err := p.svc.ListPublishedSince(ctx, "", p.svc.Now().Add(-window))
	if err != nil {
		return 0, fmt.Errorf("loading published posts: %w", err)
	}

	updated := 0
	for _, post := range posts {
		if post.ExternalPostID == "" {
			continue
		}
		m, err := source.GetPostMetrics(ctx, post.ExternalPostID)
		if err != nil {
			p.logger.Warn("failed to fetch post metrics", "post_id", post.ID, "error", err)
			continue
		}
		if err := p.svc.UpdateMetrics(ctx, post.ID, m); err != nil {
			p.logger.Warn("failed to store post metrics", "post_id", post.ID, "error", err)
			continue
		}
		updated++
	}

	return updated, nil
}

// AnalyzePerformance summarises engagement of a user's posts over the window.
// Posts under half of the average engagement are reported as underperforming.
func (p *Policy) AnalyzePerformance(ctx context.Context, userID string, window time.Duration) (*entity.Performance, error) {
	posts, err := p.svc.ListPublishedSince(ctx, userID, p.svc.Now().Add(-window))
	if err != nil {
		return nil, fmt.Errorf("loading published posts: %w", err)
	}

	perf := &entity.Performance{UserID: userID, PostCount: len(posts), Underperforming: []string{}}
	if len(posts) == 0 {
		return perf, nil
	}

	total := 0
	for _, post := range posts {
		total += post.Metrics.Engagement()
	}
	perf.AverageEngagement = float64(total) / float64(len(posts))

	for _, post := range posts {
		if float64(post.Metrics.Engagement()) < perf.AverageEngagement/2 {
			perf.Underperforming = append(perf.Underperforming, post.ID)
		}
	}

	return perf, nil
}

// CleanupFailed deletes failed posts older than age
func (p *Policy) CleanupFailed(ctx context.Context, age time.Duration) (int64, error) {
	return p.svc.DeleteFailedOlderThan(ctx, age)
}

// GetStatistics aggregates post numbers
func (p *Policy) GetStatistics(ctx context.Context, userID, campaignID string) (*entity.Statistics, error) {
	return p.svc.GetStatistics(ctx, userID, campaignID)
}

func (p *Policy) notify(ctx context.Context, eventType string, payload any) {
	if err := p.notifier.Publish(ctx, events.New(eventType, payload)); err != nil {
		p.logger.Warn("failed to publish event", "event", eventType, "error", err)
	}
}
