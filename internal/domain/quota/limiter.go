// Package quota gates automation actions against per-type daily limits.
// It keeps no counters of its own: every decision is re-derived from the action ledger.
package quota

import (
	"context"
	"fmt"

	"github.com/vadim/linkpilot/internal/domain/ledger/entity"
)

// Default daily limits per action type
const (
	DefaultConnectionLimit = 100
	DefaultFollowLimit     = 150
	DefaultLikeLimit       = 300
	DefaultCommentLimit    = 50
	DefaultMessageLimit    = 20
)

// Counter returns today's successful count for a user and action type
type Counter interface {
	CountToday(ctx context.Context, userID string, actionType entity.ActionType) (int, error)
}

// Limits maps action types to their daily caps
type Limits map[entity.ActionType]int

// DefaultLimits returns the built-in caps
func DefaultLimits() Limits {
	return Limits{
		entity.ActionConnect: DefaultConnectionLimit,
		entity.ActionFollow:  DefaultFollowLimit,
		entity.ActionLike:    DefaultLikeLimit,
		entity.ActionComment: DefaultCommentLimit,
		entity.ActionMessage: DefaultMessageLimit,
	}
}

// Limiter decides whether more actions of a type may run today
type Limiter struct {
	counter Counter
	limits  Limits
}

// New creates a limiter. Types missing from limits (or set to <= 0) use the defaults.
func New(counter Counter, limits Limits) *Limiter {
	merged := DefaultLimits()
	for t, n := range limits {
		if n > 0 {
			merged[t] = n
		}
	}
	return &Limiter{counter: counter, limits: merged}
}

// Limit returns the configured daily cap for a type
func (l *Limiter) Limit(actionType entity.ActionType) int {
	return l.limits[actionType]
}

// Allow reports whether count_today + requested <= limit.
// A counting failure denies the request.
func (l *Limiter) Allow(ctx context.Context, userID string, actionType entity.ActionType, requested int) (bool, error) {
	return l.AllowWithin(ctx, userID, actionType, requested, 0)
}

// AllowWithin is Allow with an additional, lower ceiling (a rule's own daily limit).
// A ceiling <= 0 means no extra ceiling.
func (l *Limiter) AllowWithin(ctx context.Context, userID string, actionType entity.ActionType, requested, ceiling int) (bool, error) {
	if requested < 1 {
		requested = 1
	}

	limit, err := l.effectiveLimit(actionType, ceiling)
	if err != nil {
		return false, err
	}

	used, err := l.counter.CountToday(ctx, userID, actionType)
	if err != nil {
		return false, fmt.Errorf("checking %s quota: %w", actionType, err)
	}

	return used+requested <= limit, nil
}

// Remaining returns how many more actions of a type may run today under the ceiling
func (l *Limiter) Remaining(ctx context.Context, userID string, actionType entity.ActionType, ceiling int) (int, error) {
	limit, err := l.effectiveLimit(actionType, ceiling)
	if err != nil {
		return 0, err
	}

	used, err := l.counter.CountToday(ctx, userID, actionType)
	if err != nil {
		return 0, fmt.Errorf("checking %s quota: %w", actionType, err)
	}

	if used >= limit {
		return 0, nil
	}
	return limit - used, nil
}

// Usage returns today's usage for every action type
func (l *Limiter) Usage(ctx context.Context, userID string) ([]entity.DailyUsage, error) {
	usage := make([]entity.DailyUsage, 0, len(entity.ActionTypes))
	for _, t := range entity.ActionTypes {
		used, err := l.counter.CountToday(ctx, userID, t)
		if err != nil {
			return nil, fmt.Errorf("checking %s quota: %w", t, err)
		}
		limit := l.limits[t]
		remaining := limit - used
		if remaining < 0 {
			remaining = 0
		}
		usage = append(usage, entity.DailyUsage{ActionType: t, Used: used, Limit: limit, Remaining: remaining})
	}
	return usage, nil
}

func (l *Limiter) effectiveLimit(actionType entity.ActionType, ceiling int) (int, error) {
	limit, ok := l.limits[actionType]
	if !ok {
		return 0, entity.ErrInvalidActionType
	}
	if ceiling > 0 && ceiling < limit {
		limit = ceiling
	}
	return limit, nil
}
