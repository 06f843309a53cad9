package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vadim/linkpilot/internal/domain/post/dao"
	"github.com/vadim/linkpilot/internal/domain/post/entity"
)

// Service handles business logic for posts
type Service struct {
	posts dao.PostRepository
	clock func() time.Time
}

// Option configures the Service
type Option func(*Service)

// WithClock overrides the time source
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

// New creates a new post service
func New(posts dao.PostRepository, opts ...Option) *Service {
	s := &Service{
		posts: posts,
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the service clock in UTC
func (s *Service) Now() time.Time {
	return s.clock().UTC()
}

// CreateInput represents input for creating a post
type CreateInput struct {
	UserID      string
	CampaignID  string
	Content     string
	Hashtags    []string
	MediaURLs   []string
	ScheduledAt *time.Time
}

// Create creates a draft, or a scheduled post when ScheduledAt is set
func (s *Service) Create(ctx context.Context, in CreateInput) (*entity.Post, error) {
	now := s.Now()

	status := entity.StatusDraft
	if in.ScheduledAt != nil {
		status = entity.StatusScheduled
	}

	p := &entity.Post{
		ID:          uuid.New().String(),
		UserID:      in.UserID,
		CampaignID:  in.CampaignID,
		Content:     in.Content,
		Hashtags:    in.Hashtags,
		MediaURLs:   in.MediaURLs,
		Status:      status,
		ScheduledAt: utcPtr(in.ScheduledAt),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}

	if err := s.posts.Create(ctx, p); err != nil {
		return nil, err
	}

	return p, nil
}

// Get retrieves a post by ID
func (s *Service) Get(ctx context.Context, id string) (*entity.Post, error) {
	p, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, entity.ErrPostNotFound
	}
	return p, nil
}

// UpdateInput represents input for editing a post
type UpdateInput struct {
	ID        string
	Content   *string
	Hashtags  []string
	MediaURLs []string
}

// Update edits the content of a post that has not been published
func (s *Service) Update(ctx context.Context, in UpdateInput) (*entity.Post, error) {
	p, err := s.Get(ctx, in.ID)
	if err != nil {
		return nil, err
	}

	if !p.IsEditable() {
		return nil, entity.ErrPostNotEditable
	}
	from := p.Status

	if in.Content != nil {
		p.Content = *in.Content
	}
	if in.Hashtags != nil {
		p.Hashtags = in.Hashtags
	}
	if in.MediaURLs != nil {
		p.MediaURLs = in.MediaURLs
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}

	p.UpdatedAt = s.Now()
	if err := s.posts.Update(ctx, p, from); err != nil {
		return nil, err
	}

	return p, nil
}

// Schedule sets the publish time. Drafts, scheduled posts and failed posts can be (re)scheduled.
func (s *Service) Schedule(ctx context.Context, id string, at time.Time) (*entity.Post, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if p.Status != entity.StatusScheduled && !entity.CanTransition(p.Status, entity.StatusScheduled) {
		return nil, entity.ErrInvalidTransition
	}

	from := p.Status
	at = at.UTC()
	p.Status = entity.StatusScheduled
	p.ScheduledAt = &at
	p.ErrorMessage = ""
	p.UpdatedAt = s.Now()

	if err := s.posts.Update(ctx, p, from); err != nil {
		return nil, err
	}

	return p, nil
}

// SaveAsDraft removes the schedule from a scheduled post
func (s *Service) SaveAsDraft(ctx context.Context, id string) (*entity.Post, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if p.Status == entity.StatusDraft {
		return p, nil
	}
	if !entity.CanTransition(p.Status, entity.StatusDraft) {
		return nil, entity.ErrInvalidTransition
	}

	from := p.Status
	p.Status = entity.StatusDraft
	p.ScheduledAt = nil
	p.UpdatedAt = s.Now()

	if err := s.posts.Update(ctx, p, from); err != nil {
		return nil, err
	}

	return p, nil
}

// ListInput represents input for listing posts
type ListInput struct {
	UserID     string
	CampaignID string
	Status     *entity.Status
	Limit      int
	Offset     int
}

// ListOutput represents output from listing posts
type ListOutput struct {
	Posts []entity.Post
	Total int64
}

// List retrieves posts with filtering
func (s *Service) List(ctx context.Context, in ListInput) (*ListOutput, error) {
	filter := dao.PostFilter{
		UserID:     in.UserID,
		CampaignID: in.CampaignID,
		Status:     in.Status,
	}

	if in.Limit <= 0 || in.Limit > 100 {
		in.Limit = 50
	}

	posts, err := s.posts.List(ctx, filter, dao.ListOptions{
		Limit:  in.Limit,
		Offset: in.Offset,
		SortBy: "created_at",
		Desc:   true,
	})
	if err != nil {
		return nil, err
	}

	total, err := s.posts.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	return &ListOutput{Posts: posts, Total: total}, nil
}

// GetDue returns scheduled posts whose time has come
func (s *Service) GetDue(ctx context.Context, limit int) ([]entity.Post, error) {
	return s.posts.GetDue(ctx, s.Now(), limit)
}

// Claim moves a post from scheduled to publishing; false means someone else got it first
func (s *Service) Claim(ctx context.Context, id string) (bool, error) {
	return s.posts.Claim(ctx, id, s.Now())
}

// MarkAsPublished records the external identifiers of a published post
func (s *Service) MarkAsPublished(ctx context.Context, id, externalID, externalURL string) error {
	return s.posts.SetPublished(ctx, id, externalID, externalURL, s.Now())
}

// MarkAsFailed records why publishing failed
func (s *Service) MarkAsFailed(ctx context.Context, id, reason string) error {
	return s.posts.SetFailed(ctx, id, reason, s.Now())
}

// FailStuck fails posts that have been publishing for longer than timeout
func (s *Service) FailStuck(ctx context.Context, timeout time.Duration) (int64, error) {
	now := s.Now()
	return s.posts.FailStuck(ctx, now.Add(-timeout), entity.PublishingTimeoutReason, now)
}

// DeleteFailedOlderThan removes failed posts untouched for longer than age
func (s *Service) DeleteFailedOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	return s.posts.DeleteFailedBefore(ctx, s.Now().Add(-age))
}

// CountScheduled returns how many posts of a campaign are still waiting to be published
func (s *Service) CountScheduled(ctx context.Context, campaignID string) (int64, error) {
	status := entity.StatusScheduled
	return s.posts.Count(ctx, dao.PostFilter{CampaignID: campaignID, Status: &status})
}

// LatestScheduled returns the schedule time of the campaign's last pending post, nil when none
func (s *Service) LatestScheduled(ctx context.Context, campaignID string) (*time.Time, error) {
	status := entity.StatusScheduled
	posts, err := s.posts.List(ctx, dao.PostFilter{CampaignID: campaignID, Status: &status}, dao.ListOptions{
		Limit:  1,
		SortBy: "scheduled_at",
		Desc:   true,
	})
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, nil
	}
	return posts[0].ScheduledAt, nil
}

// LatestCreated returns when the campaign's newest post was created, nil when it has none
func (s *Service) LatestCreated(ctx context.Context, campaignID string) (*time.Time, error) {
	posts, err := s.posts.List(ctx, dao.PostFilter{CampaignID: campaignID}, dao.ListOptions{
		Limit:  1,
		SortBy: "created_at",
		Desc:   true,
	})
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, nil
	}
	return &posts[0].CreatedAt, nil
}

// ListPublishedSince returns published posts of a user (all users when empty) since t
func (s *Service) ListPublishedSince(ctx context.Context, userID string, since time.Time) ([]entity.Post, error) {
	status := entity.StatusPublished
	return s.posts.List(ctx, dao.PostFilter{
		UserID:         userID,
		Status:         &status,
		PublishedSince: &since,
	}, dao.ListOptions{SortBy: "published_at", Desc: true})
}

// UpdateMetrics stores fresh engagement numbers
func (s *Service) UpdateMetrics(ctx context.Context, id string, m entity.Metrics) error {
	return s.posts.UpdateMetrics(ctx, id, m)
}

// GetStatistics aggregates post numbers for a user and/or campaign
func (s *Service) GetStatistics(ctx context.Context, userID, campaignID string) (*entity.Statistics, error) {
	return s.posts.GetStatistics(ctx, dao.PostFilter{UserID: userID, CampaignID: campaignID})
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
