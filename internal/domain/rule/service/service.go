package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	ledger "github.com/vadim/linkpilot/internal/domain/ledger/entity"
	"github.com/vadim/linkpilot/internal/domain/rule/dao"
	"github.com/vadim/linkpilot/internal/domain/rule/entity"
)

// LimitSource returns the global daily limit for an action type
type LimitSource interface {
	Limit(actionType ledger.ActionType) int
}

// Service handles business logic for automation rules
type Service struct {
	rules  dao.RuleRepository
	limits LimitSource
	clock  func() time.Time
}

// Option configures the Service
type Option func(*Service)

// WithClock overrides the time source
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

// New creates a new rule service
func New(rules dao.RuleRepository, limits LimitSource, opts ...Option) *Service {
	s := &Service{
		rules:  rules,
		limits: limits,
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInput represents input for creating a rule.
// When Category is set and Criteria is empty, the category preset is used.
type CreateInput struct {
	UserID          string
	Name            string
	Type            entity.RuleType
	Criteria        entity.TargetCriteria
	Category        entity.Category
	MessageTemplate string
	DailyLimit      int
	Active          bool
}

// Create validates and stores a new rule
func (s *Service) Create(ctx context.Context, in CreateInput) (*entity.Rule, error) {
	criteria := in.Criteria
	if in.Category != "" && criteria.IsEmpty() {
		preset, err := entity.CriteriaForCategory(in.Category)
		if err != nil {
			return nil, err
		}
		preset.SeniorOnly = criteria.SeniorOnly
		criteria = preset
	}

	now := s.clock().UTC()
	r := &entity.Rule{
		ID:              uuid.New().String(),
		UserID:          in.UserID,
		Name:            in.Name,
		Type:            in.Type,
		Criteria:        criteria,
		MessageTemplate: in.MessageTemplate,
		DailyLimit:      in.DailyLimit,
		IsActive:        in.Active,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := r.Validate(s.maxDaily(r.Type)); err != nil {
		return nil, err
	}

	if err := s.rules.Create(ctx, r); err != nil {
		return nil, err
	}

	return r, nil
}

// Get retrieves a rule by ID
func (s *Service) Get(ctx context.Context, id string) (*entity.Rule, error) {
	r, err := s.rules.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, entity.ErrRuleNotFound
	}
	return r, nil
}

// UpdateInput represents input for editing a rule
type UpdateInput struct {
	ID              string
	Name            *string
	Criteria        *entity.TargetCriteria
	MessageTemplate *string
	DailyLimit      *int
}

// Update edits a rule's configuration; counters are left untouched
func (s *Service) Update(ctx context.Context, in UpdateInput) (*entity.Rule, error) {
	r, err := s.Get(ctx, in.ID)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		r.Name = *in.Name
	}
	if in.Criteria != nil {
		r.Criteria = *in.Criteria
	}
	if in.MessageTemplate != nil {
		r.MessageTemplate = *in.MessageTemplate
	}
	if in.DailyLimit != nil {
		r.DailyLimit = *in.DailyLimit
	}

	if err := r.Validate(s.maxDaily(r.Type)); err != nil {
		return nil, err
	}

	r.UpdatedAt = s.clock().UTC()
	if err := s.rules.Update(ctx, r); err != nil {
		return nil, err
	}

	return r, nil
}

// ListInput represents input for listing rules
type ListInput struct {
	UserID     string
	Types      []entity.RuleType
	ActiveOnly bool
}

// List retrieves rules ordered by creation time
func (s *Service) List(ctx context.Context, in ListInput) ([]entity.Rule, error) {
	return s.rules.List(ctx, dao.RuleFilter{
		UserID:     in.UserID,
		Types:      in.Types,
		ActiveOnly: in.ActiveOnly,
	})
}

// ListActive returns every active rule of the given types (all types when empty)
func (s *Service) ListActive(ctx context.Context, types ...entity.RuleType) ([]entity.Rule, error) {
	return s.List(ctx, ListInput{Types: types, ActiveOnly: true})
}

// Activate enables a rule
func (s *Service) Activate(ctx context.Context, id string) (*entity.Rule, error) {
	return s.setActive(ctx, id, true)
}

// Deactivate disables a rule; it keeps its counters and history
func (s *Service) Deactivate(ctx context.Context, id string) (*entity.Rule, error) {
	return s.setActive(ctx, id, false)
}

func (s *Service) setActive(ctx context.Context, id string, active bool) (*entity.Rule, error) {
	r, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.IsActive == active {
		return r, nil
	}

	now := s.clock().UTC()
	if err := s.rules.SetActive(ctx, id, active, now); err != nil {
		return nil, err
	}

	r.IsActive = active
	r.UpdatedAt = now
	return r, nil
}

// RecordRun adds a finished batch's counters to the rule and stamps last_run
func (s *Service) RecordRun(ctx context.Context, id string, delta entity.Stats) (time.Time, error) {
	ranAt := s.clock().UTC()
	if err := s.rules.RecordRun(ctx, id, delta, ranAt); err != nil {
		return time.Time{}, err
	}
	return ranAt, nil
}

// SetupAutoFollow creates one active auto_follow rule per category
func (s *Service) SetupAutoFollow(ctx context.Context, userID string, categories []entity.Category, dailyLimit int) ([]entity.Rule, error) {
	created := make([]entity.Rule, 0, len(categories))
	for _, c := range categories {
		r, err := s.Create(ctx, CreateInput{
			UserID:     userID,
			Name:       fmt.Sprintf("Auto-follow %s", c),
			Type:       entity.RuleAutoFollow,
			Category:   c,
			DailyLimit: dailyLimit,
			Active:     true,
		})
		if err != nil {
			return created, fmt.Errorf("creating auto-follow rule for %s: %w", c, err)
		}
		created = append(created, *r)
	}
	return created, nil
}

func (s *Service) maxDaily(t entity.RuleType) int {
	if s.limits == nil {
		return 0
	}
	return s.limits.Limit(t.ActionType())
}

// ListUnderperforming returns active rules whose success rate is below minRate
// after more than minActions attempts
func (s *Service) ListUnderperforming(ctx context.Context, minActions int, minRate float64) ([]entity.Rule, error) {
	active, err := s.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	var out []entity.Rule
	for _, r := range active {
		if r.Stats.TotalActions > minActions && r.Stats.SuccessRate() < minRate {
			out = append(out, r)
		}
	}
	return out, nil
}
