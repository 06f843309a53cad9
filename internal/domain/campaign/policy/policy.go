package policy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/vadim/linkpilot/internal/domain/campaign/entity"
	"github.com/vadim/linkpilot/internal/domain/campaign/service"
	postentity "github.com/vadim/linkpilot/internal/domain/post/entity"
	postservice "github.com/vadim/linkpilot/internal/domain/post/service"
	"github.com/vadim/linkpilot/internal/events"
	"github.com/vadim/linkpilot/internal/metrics"
	"github.com/vadim/linkpilot/internal/retry"
)

const (
	defaultBatchSize  = 7
	defaultMinPending = 3
)

// ContentGenerator writes post text from a prompt.
// This interface is defined here (consumer) not in the upstream package (provider)
type ContentGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// ImageGenerator produces an illustration and returns its public URL
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

// Policy orchestrates campaign use-cases: activation, content batches,
// completion and metrics
type Policy struct {
	campaigns  *service.Service
	posts      *postservice.Service
	generator  ContentGenerator
	images     ImageGenerator
	notifier   events.Publisher
	retry      retry.Policy
	batchSize  int
	minPending int
	logger     *slog.Logger
}

// Option configures the Policy
type Option func(*Policy)

// WithImageGenerator enables an illustration for every generated post
func WithImageGenerator(g ImageGenerator) Option {
	return func(p *Policy) { p.images = g }
}

// WithNotifier sets the event publisher
func WithNotifier(n events.Publisher) Option {
	return func(p *Policy) { p.notifier = n }
}

// WithRetryPolicy overrides the retry policy used for generator calls
func WithRetryPolicy(rp retry.Policy) Option {
	return func(p *Policy) { p.retry = rp }
}

// WithBatchSize sets how many posts a replenishing batch creates
func WithBatchSize(n int) Option {
	return func(p *Policy) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(p *Policy) { p.logger = l }
}

// New creates a new campaign policy
func New(campaigns *service.Service, posts *postservice.Service, generator ContentGenerator, opts ...Option) *Policy {
	p := &Policy{
		campaigns:  campaigns,
		posts:      posts,
		generator:  generator,
		notifier:   events.Noop{},
		retry:      retry.DefaultPolicy(),
		batchSize:  defaultBatchSize,
		minPending: defaultMinPending,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CreateCampaign creates a draft campaign
func (p *Policy) CreateCampaign(ctx context.Context, in service.CreateInput) (*entity.Campaign, error) {
	return p.campaigns.Create(ctx, in)
}

// GetCampaign retrieves a campaign by ID
func (p *Policy) GetCampaign(ctx context.Context, id string) (*entity.Campaign, error) {
	return p.campaigns.Get(ctx, id)
}

// ListCampaigns retrieves campaigns with filtering
func (p *Policy) ListCampaigns(ctx context.Context, in service.ListInput) (*service.ListOutput, error) {
	return p.campaigns.List(ctx, in)
}

// ActivateCampaign activates a draft campaign and schedules its first batch
func (p *Policy) ActivateCampaign(ctx context.Context, id string) (*entity.Campaign, error) {
	c, err := p.campaigns.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	from := c.Status

	c, err = p.campaigns.Activate(ctx, id)
	if err != nil {
		return nil, err
	}
	if from == c.Status {
		return c, nil
	}
	p.statusChanged(ctx, c, from)

	if c.HasStarted(p.campaigns.Now()) {
		if _, err := p.GenerateBatch(ctx, c, p.batchSize); err != nil {
			p.logger.Warn("initial content batch failed", "campaign_id", c.ID, "error", err)
		}
	}

	return c, nil
}

// ManageResult summarises one campaign management pass
type ManageResult struct {
	Active       int `json:"active"`
	Completed    int `json:"completed"`
	Failed       int `json:"failed"`
	Replenished  int `json:"replenished"`
	PostsCreated int `json:"posts_created"`
}

// ManageCampaigns completes ended campaigns, tops up campaigns that are
// running low on scheduled posts and refreshes aggregated metrics
func (p *Policy) ManageCampaigns(ctx context.Context) (*ManageResult, error) {
	active, err := p.campaigns.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing active campaigns: %w", err)
	}

	res := &ManageResult{Active: len(active)}
	now := p.campaigns.Now()

	var errs []error
	for i := range active {
		c := &active[i]

		if err := p.RefreshMetrics(ctx, c); err != nil {
			p.logger.Warn("failed to refresh campaign metrics", "campaign_id", c.ID, "error", err)
		}

		if c.HasEnded(now) {
			if err := p.complete(ctx, c); err != nil {
				errs = append(errs, err)
				continue
			}
			res.Completed++
			continue
		}

		if !c.HasStarted(now) {
			continue
		}

		pending, err := p.posts.CountScheduled(ctx, c.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("campaign %s: %w", c.ID, err))
			continue
		}
		if pending >= int64(p.minPending) {
			continue
		}

		created, err := p.GenerateBatch(ctx, c, p.batchSize)
		res.PostsCreated += created
		if created > 0 {
			res.Replenished++
		}
		if err != nil {
			if c.Status == entity.StatusFailed {
				res.Failed++
			}
			errs = append(errs, fmt.Errorf("campaign %s: %w", c.ID, err))
		}
	}

	return res, errors.Join(errs...)
}

// GenerateDailyContent creates one day of posts for every running campaign
func (p *Policy) GenerateDailyContent(ctx context.Context) (int, error) {
	active, err := p.campaigns.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing active campaigns: %w", err)
	}

	now := p.campaigns.Now()
	total := 0
	var errs []error
	for i := range active {
		c := &active[i]
		if !c.HasStarted(now) || c.HasEnded(now) {
			continue
		}

		created, err := p.GenerateBatch(ctx, c, c.DailyPostLimit)
		total += created
		if err != nil {
			errs = append(errs, fmt.Errorf("campaign %s: %w", c.ID, err))
		}
	}

	return total, errors.Join(errs...)
}

// GenerateBatch writes up to n posts for the campaign and schedules them at
// the next free posting slots. A terminal generator error fails the campaign.
func (p *Policy) GenerateBatch(ctx context.Context, c *entity.Campaign, n int) (int, error) {
	now := p.campaigns.Now()

	latest, err := p.posts.LatestScheduled(ctx, c.ID)
	if err != nil {
		return 0, err
	}
	after, occupied := now, false
	if latest != nil && latest.After(now) {
		after, occupied = *latest, true
	}

	existing, err := p.posts.List(ctx, postservice.ListInput{CampaignID: c.ID, Limit: 1})
	if err != nil {
		return 0, err
	}
	seq := int(existing.Total)

	created := 0
	for _, slot := range entity.NextSlots(after, occupied, n, c.DailyPostLimit) {
		if c.EndAt != nil && !slot.Before(*c.EndAt) {
			break
		}

		theme := c.Theme(seq)
		text, err := p.generateText(ctx, entity.Prompt(theme, c.Audience))
		if err != nil {
			if retry.IsTerminal(err) {
				p.fail(ctx, c, fmt.Sprintf("content generation: %v", err))
			}
			return created, fmt.Errorf("generating content: %w", err)
		}

		hashtags := entity.Hashtags(theme, c.Audience)
		content := fitContent(entity.Optimize(text, seq), hashtags)

		var media []string
		if url := p.generateImage(ctx, c, theme); url != "" {
			media = []string{url}
		}

		at := slot
		if _, err := p.posts.Create(ctx, postservice.CreateInput{
			UserID:      c.UserID,
			CampaignID:  c.ID,
			Content:     content,
			Hashtags:    hashtags,
			MediaURLs:   media,
			ScheduledAt: &at,
		}); err != nil {
			return created, fmt.Errorf("creating post: %w", err)
		}

		created++
		seq++
	}

	if created > 0 {
		p.logger.Info("campaign content scheduled", "campaign_id", c.ID, "posts", created)
	}
	return created, nil
}

func (p *Policy) generateText(ctx context.Context, prompt string) (string, error) {
	var text string
	res, err := p.retry.Do(ctx, func(ctx context.Context) error {
		t, err := p.generator.GenerateText(ctx, prompt)
		if err != nil {
			return err
		}
		text = t
		return nil
	})
	metrics.RetryAttempts.WithLabelValues("generate_text").Observe(float64(res.Attempts))
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", retry.Terminal(errors.New("generator returned empty text"))
	}
	return text, nil
}

// generateImage returns "" when images are disabled or generation failed;
// the post goes out as text only
func (p *Policy) generateImage(ctx context.Context, c *entity.Campaign, theme string) string {
	if p.images == nil {
		return ""
	}

	var url string
	res, err := p.retry.Do(ctx, func(ctx context.Context) error {
		u, err := p.images.GenerateImage(ctx, entity.ImagePrompt(theme, c.Audience))
		if err != nil {
			return err
		}
		url = u
		return nil
	})
	metrics.RetryAttempts.WithLabelValues("generate_image").Observe(float64(res.Attempts))
	if err != nil {
		p.logger.Warn("image generation failed", "campaign_id", c.ID, "error", err)
		return ""
	}
	return url
}

// RefreshMetrics aggregates the campaign's published posts into its counters
func (p *Policy) RefreshMetrics(ctx context.Context, c *entity.Campaign) error {
	stats, err := p.posts.GetStatistics(ctx, "", c.ID)
	if err != nil {
		return err
	}

	m := entity.Metrics{
		PostsCount:      stats.PublishedCount,
		TotalReach:      stats.TotalReach,
		TotalEngagement: stats.TotalEngagement,
	}
	if m == c.Metrics {
		return nil
	}

	if err := p.campaigns.UpdateMetrics(ctx, c.ID, m); err != nil {
		return err
	}
	c.Metrics = m
	return nil
}

// ArchiveEnded archives completed or failed campaigns that ended more than age ago
func (p *Policy) ArchiveEnded(ctx context.Context, age time.Duration) (int64, error) {
	n, err := p.campaigns.ArchiveEndedOlderThan(ctx, age)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		p.logger.Info("archived campaigns", "count", n)
	}
	return n, nil
}

// FindStale returns active campaigns that have not produced a post within window
func (p *Policy) FindStale(ctx context.Context, window time.Duration) ([]entity.Campaign, error) {
	active, err := p.campaigns.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	cutoff := p.campaigns.Now().Add(-window)
	var stale []entity.Campaign
	for _, c := range active {
		last, err := p.posts.LatestCreated(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		ref := c.CreatedAt
		if last != nil {
			ref = *last
		}
		if ref.Before(cutoff) {
			stale = append(stale, c)
		}
	}
	return stale, nil
}

func (p *Policy) complete(ctx context.Context, c *entity.Campaign) error {
	from := c.Status
	if err := p.campaigns.Transition(ctx, c, entity.StatusCompleted, "end time reached"); err != nil {
		return fmt.Errorf("completing campaign %s: %w", c.ID, err)
	}
	p.statusChanged(ctx, c, from)
	return nil
}

func (p *Policy) fail(ctx context.Context, c *entity.Campaign, reason string) {
	from := c.Status
	if err := p.campaigns.Transition(ctx, c, entity.StatusFailed, reason); err != nil {
		p.logger.Error("failed to mark campaign as failed", "campaign_id", c.ID, "error", err)
		return
	}
	p.statusChanged(ctx, c, from)
}

func (p *Policy) statusChanged(ctx context.Context, c *entity.Campaign, from entity.Status) {
	p.logger.Info("campaign status changed",
		"campaign_id", c.ID, "from", from, "to", c.Status, "reason", c.StatusReason)

	err := p.notifier.Publish(ctx, events.New(events.CampaignStatusChanged, map[string]any{
		"campaign_id": c.ID,
		"user_id":     c.UserID,
		"from":        from,
		"to":          c.Status,
		"reason":      c.StatusReason,
	}))
	if err != nil {
		p.logger.Warn("failed to publish campaign event", "campaign_id", c.ID, "error", err)
	}
}

// fitContent trims generated text so the post with its hashtags stays within the LinkedIn limit
func fitContent(content string, hashtags []string) string {
	sample := postentity.Post{Content: content, Hashtags: hashtags}
	overflow := utf8.RuneCountInString(sample.FullText()) - postentity.MaxContentLength
	if overflow <= 0 {
		return content
	}

	runes := []rune(content)
	keep := len(runes) - overflow - 1
	if keep < 0 {
		keep = 0
	}
	return string(runes[:keep]) + "…"
}
