package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vadim/linkpilot/internal/domain/ledger/dao"
	"github.com/vadim/linkpilot/internal/domain/ledger/entity"
	"github.com/vadim/linkpilot/internal/metrics"
)

// Service is the action ledger: an append-only log of automation actions
// and the daily counts derived from it.
type Service struct {
	entries dao.EntryRepository
	clock   func() time.Time
}

// Option configures the Service
type Option func(*Service)

// WithClock overrides the time source
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

// New creates a new ledger service
func New(entries dao.EntryRepository, opts ...Option) *Service {
	s := &Service{
		entries: entries,
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record appends an entry. ID and CreatedAt are assigned when empty.
func (s *Service) Record(ctx context.Context, e *entity.Entry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}

	if err := e.Validate(); err != nil {
		return err
	}

	if err := s.entries.Append(ctx, e); err != nil {
		return fmt.Errorf("recording %s action: %w", e.ActionType, err)
	}

	metrics.ActionsTotal.WithLabelValues(string(e.ActionType), string(e.Outcome)).Inc()
	return nil
}

// CountToday returns the number of successful actions of one type since
// the start of the current UTC day.
func (s *Service) CountToday(ctx context.Context, userID string, actionType entity.ActionType) (int, error) {
	return s.entries.CountSuccessSince(ctx, userID, actionType, StartOfDay(s.clock()))
}

// ListInput represents input for listing entries
type ListInput struct {
	UserID     string
	RuleID     string
	ActionType *entity.ActionType
	Since      *time.Time
	Limit      int
	Offset     int
}

// List retrieves entries newest first
func (s *Service) List(ctx context.Context, in ListInput) ([]entity.Entry, error) {
	if in.Limit <= 0 || in.Limit > 500 {
		in.Limit = 100
	}
	return s.entries.List(ctx, dao.EntryFilter{
		UserID:     in.UserID,
		RuleID:     in.RuleID,
		ActionType: in.ActionType,
		Since:      in.Since,
	}, dao.ListOptions{Limit: in.Limit, Offset: in.Offset})
}

// Sweep deletes entries older than the retention window
func (s *Service) Sweep(ctx context.Context, retention time.Duration) (int64, error) {
	return s.entries.DeleteBefore(ctx, s.clock().Add(-retention))
}

// StartOfDay returns midnight UTC of the day containing t
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
