package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vadim/linkpilot/internal/domain/campaign/dao"
	"github.com/vadim/linkpilot/internal/domain/campaign/entity"
)

// Service handles business logic for campaigns
type Service struct {
	campaigns dao.CampaignRepository
	clock     func() time.Time
}

// Option configures the Service
type Option func(*Service)

// WithClock overrides the time source
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

// New creates a new campaign service
func New(campaigns dao.CampaignRepository, opts ...Option) *Service {
	s := &Service{
		campaigns: campaigns,
		clock:     time.Now,
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

// CreateInput represents input for creating a campaign
type CreateInput struct {
	UserID         string
	Name           string
	Description    string
	StartAt        *time.Time
	EndAt          *time.Time
	Audience       entity.Audience
	Themes         []string
	DailyPostLimit int
}

// Create stores a new draft campaign
func (s *Service) Create(ctx context.Context, in CreateInput) (*entity.Campaign, error) {
	now := s.Now()

	limit := in.DailyPostLimit
	if limit == 0 {
		limit = 1
	}

	c := &entity.Campaign{
		ID:             uuid.New().String(),
		UserID:         in.UserID,
		Name:           in.Name,
		Description:    in.Description,
		Status:         entity.StatusDraft,
		StartAt:        utcPtr(in.StartAt),
		EndAt:          utcPtr(in.EndAt),
		Audience:       in.Audience,
		Themes:         in.Themes,
		DailyPostLimit: limit,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	if err := s.campaigns.Create(ctx, c); err != nil {
		return nil, err
	}

	return c, nil
}

// Get retrieves a campaign by ID
func (s *Service) Get(ctx context.Context, id string) (*entity.Campaign, error) {
	c, err := s.campaigns.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, entity.ErrCampaignNotFound
	}
	return c, nil
}

// ListInput represents input for listing campaigns
type ListInput struct {
	UserID string
	Status *entity.Status
	Limit  int
	Offset int
}

// ListOutput represents output from listing campaigns
type ListOutput struct {
	Campaigns []entity.Campaign
	Total     int64
}

// List retrieves campaigns with filtering
func (s *Service) List(ctx context.Context, in ListInput) (*ListOutput, error) {
	filter := dao.CampaignFilter{UserID: in.UserID, Status: in.Status}

	if in.Limit <= 0 || in.Limit > 100 {
		in.Limit = 50
	}

	campaigns, err := s.campaigns.List(ctx, filter, dao.ListOptions{Limit: in.Limit, Offset: in.Offset})
	if err != nil {
		return nil, err
	}

	total, err := s.campaigns.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	return &ListOutput{Campaigns: campaigns, Total: total}, nil
}

// ListActive returns every active campaign
func (s *Service) ListActive(ctx context.Context) ([]entity.Campaign, error) {
	status := entity.StatusActive
	return s.campaigns.List(ctx, dao.CampaignFilter{Status: &status}, dao.ListOptions{})
}

// Activate moves a draft campaign to active
func (s *Service) Activate(ctx context.Context, id string) (*entity.Campaign, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if c.Status == entity.StatusActive {
		return c, nil
	}
	if c.HasEnded(s.Now()) {
		return nil, entity.ErrCampaignEnded
	}

	if err := s.Transition(ctx, c, entity.StatusActive, ""); err != nil {
		return nil, err
	}
	return c, nil
}

// Transition moves c to a new status if it has not changed since it was read.
// c is updated in place on success.
func (s *Service) Transition(ctx context.Context, c *entity.Campaign, to entity.Status, reason string) error {
	if !entity.CanTransition(c.Status, to) {
		return entity.ErrInvalidTransition
	}

	now := s.Now()
	ok, err := s.campaigns.Transition(ctx, c.ID, c.Status, to, reason, now)
	if err != nil {
		return err
	}
	if !ok {
		return entity.ErrInvalidTransition
	}

	c.Status = to
	c.StatusReason = reason
	c.UpdatedAt = now
	return nil
}

// UpdateMetrics stores aggregated post numbers
func (s *Service) UpdateMetrics(ctx context.Context, id string, m entity.Metrics) error {
	return s.campaigns.UpdateMetrics(ctx, id, m, s.Now())
}

// ArchiveEndedOlderThan archives finished campaigns that ended more than age ago
func (s *Service) ArchiveEndedOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	now := s.Now()
	return s.campaigns.ArchiveEndedBefore(ctx, now.Add(-age), now)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
