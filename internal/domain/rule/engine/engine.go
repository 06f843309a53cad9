// Package engine executes automation rules: it picks targets, gates every
// action on the daily quota, performs it through the retry wrapper and
// writes the outcome to the action ledger.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	ledger "github.com/vadim/linkpilot/internal/domain/ledger/entity"
	"github.com/vadim/linkpilot/internal/domain/quota"
	"github.com/vadim/linkpilot/internal/domain/rule/entity"
	"github.com/vadim/linkpilot/internal/domain/rule/service"
	"github.com/vadim/linkpilot/internal/events"
	"github.com/vadim/linkpilot/internal/metrics"
	"github.com/vadim/linkpilot/internal/retry"
)

const (
	// DefaultBatchCap is the most actions one rule performs per run
	DefaultBatchCap = 10

	// seniorOversample widens the candidate search when the senior filter drops targets
	seniorOversample = 3
)

// TargetFinder returns candidate targets for a rule.
// This interface is defined here (consumer) not in the upstream package (provider)
type TargetFinder interface {
	FindTargets(ctx context.Context, in SearchInput) ([]entity.Target, error)
}

// Executor performs one action against a target
type Executor interface {
	Execute(ctx context.Context, in ActionInput) error
}

// Ledger records and counts actions
type Ledger interface {
	Record(ctx context.Context, e *ledger.Entry) error
}

// SearchInput represents a candidate search
type SearchInput struct {
	UserID   string
	RuleType entity.RuleType
	Criteria entity.TargetCriteria
	Limit    int
}

// ActionInput represents a single action to perform
type ActionInput struct {
	UserID     string
	ActionType ledger.ActionType
	Target     entity.Target
	Message    string
}

// Outcome summarises one run of a rule
type Outcome struct {
	RuleID         string    `json:"rule_id"`
	RuleType       string    `json:"rule_type"`
	Attempted      int       `json:"attempted"`
	Succeeded      int       `json:"succeeded"`
	Failed         int       `json:"failed"`
	StoppedByQuota bool      `json:"stopped_by_quota"`
	RanAt          time.Time `json:"ran_at"`
}

// Stats converts the outcome into counter deltas for the rule
func (o Outcome) Stats() entity.Stats {
	return entity.Stats{
		TotalActions:      o.Attempted,
		SuccessfulActions: o.Succeeded,
		FailedActions:     o.Failed,
	}
}

// Engine runs automation rules
type Engine struct {
	rules    *service.Service
	ledger   Ledger
	limiter  *quota.Limiter
	finder   TargetFinder
	executor Executor
	retry    retry.Policy
	pacer    *rate.Limiter
	notifier events.Publisher
	batchCap int
	logger   *slog.Logger

	locks userLocks
}

// userLocks holds one slot per user. A batch keeps its user's slot from the
// quota read until the last ledger write.
type userLocks struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func (l *userLocks) acquire(ctx context.Context, userID string) (func(), error) {
	l.mu.Lock()
	if l.slots == nil {
		l.slots = make(map[string]chan struct{})
	}
	slot, ok := l.slots[userID]
	if !ok {
		slot = make(chan struct{}, 1)
		l.slots[userID] = slot
	}
	l.mu.Unlock()

	select {
	case slot <- struct{}{}:
		return func() { <-slot }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Option configures the Engine
type Option func(*Engine)

// WithRetryPolicy overrides the retry policy used for actions
func WithRetryPolicy(rp retry.Policy) Option {
	return func(e *Engine) { e.retry = rp }
}

// WithPacing spaces consecutive actions at least every apart. Zero disables pacing.
func WithPacing(every time.Duration) Option {
	return func(e *Engine) {
		if every <= 0 {
			e.pacer = rate.NewLimiter(rate.Inf, 1)
			return
		}
		e.pacer = rate.NewLimiter(rate.Every(every), 1)
	}
}

// WithBatchCap limits how many actions one run performs
func WithBatchCap(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.batchCap = n
		}
	}
}

// WithNotifier sets the event publisher
func WithNotifier(n events.Publisher) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates a new rule engine
func New(rules *service.Service, led Ledger, limiter *quota.Limiter, finder TargetFinder, executor Executor, opts ...Option) *Engine {
	e := &Engine{
		rules:    rules,
		ledger:   led,
		limiter:  limiter,
		finder:   finder,
		executor: executor,
		retry:    retry.DefaultPolicy(),
		pacer:    rate.NewLimiter(rate.Inf, 1),
		notifier: events.Noop{},
		batchCap: DefaultBatchCap,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunRuleByID loads a rule and runs it
func (e *Engine) RunRuleByID(ctx context.Context, id string) (*Outcome, error) {
	r, err := e.rules.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.RunRule(ctx, r)
}

// RunRule performs one batch for an active rule. Actions already performed
// stay logged and counted even when the batch ends early. Batches of the
// same user never overlap, whether started by the scheduler or by hand.
func (e *Engine) RunRule(ctx context.Context, r *entity.Rule) (*Outcome, error) {
	if !r.IsActive {
		return nil, entity.ErrRuleInactive
	}

	release, err := e.locks.acquire(ctx, r.UserID)
	if err != nil {
		return nil, err
	}
	defer release()

	actionType := r.Type.ActionType()
	out := &Outcome{RuleID: r.ID, RuleType: string(r.Type)}

	remaining, err := e.limiter.Remaining(ctx, r.UserID, actionType, r.DailyLimit)
	if err != nil {
		return nil, err
	}

	n := min(remaining, e.batchCap)
	if n == 0 {
		out.StoppedByQuota = true
		metrics.QuotaStops.WithLabelValues(string(actionType)).Inc()
		e.logger.Info("rule quota exhausted", "rule_id", r.ID, "action_type", actionType)
		return e.finish(ctx, r, out)
	}

	targets, err := e.findTargets(ctx, r, n)
	if err != nil {
		return nil, fmt.Errorf("finding targets: %w", err)
	}

	var runErr error
	for _, target := range targets {
		if out.Attempted >= n {
			break
		}

		allowed, err := e.limiter.AllowWithin(ctx, r.UserID, actionType, 1, r.DailyLimit)
		if err != nil {
			e.logger.Error("quota check failed, stopping batch", "rule_id", r.ID, "error", err)
			out.StoppedByQuota = true
			break
		}
		if !allowed {
			out.StoppedByQuota = true
			metrics.QuotaStops.WithLabelValues(string(actionType)).Inc()
			e.logger.Info("daily limit reached mid-batch", "rule_id", r.ID, "action_type", actionType)
			break
		}

		if err := e.pacer.Wait(ctx); err != nil {
			runErr = err
			break
		}

		e.perform(ctx, r, target, out)
	}

	if ctx.Err() != nil && runErr == nil {
		runErr = ctx.Err()
	}

	if _, err := e.finish(context.WithoutCancel(ctx), r, out); err != nil {
		return out, err
	}
	return out, runErr
}

func (e *Engine) findTargets(ctx context.Context, r *entity.Rule, n int) ([]entity.Target, error) {
	limit := n
	if r.Criteria.SeniorOnly {
		limit = n * seniorOversample
	}

	var targets []entity.Target
	_, err := e.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		targets, err = e.finder.FindTargets(ctx, SearchInput{
			UserID:   r.UserID,
			RuleType: r.Type,
			Criteria: r.Criteria,
			Limit:    limit,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	if !r.Criteria.SeniorOnly {
		return targets, nil
	}

	senior := targets[:0]
	for _, t := range targets {
		if t.IsSenior() {
			senior = append(senior, t)
		}
	}
	return senior, nil
}

func (e *Engine) perform(ctx context.Context, r *entity.Rule, target entity.Target, out *Outcome) {
	actionType := r.Type.ActionType()
	message := entity.Render(r.MessageTemplate, target)

	res, err := e.retry.Do(ctx, func(ctx context.Context) error {
		return e.executor.Execute(ctx, ActionInput{
			UserID:     r.UserID,
			ActionType: actionType,
			Target:     target,
			Message:    message,
		})
	})
	metrics.RetryAttempts.WithLabelValues(string(actionType)).Observe(float64(res.Attempts))

	entry := &ledger.Entry{
		UserID:     r.UserID,
		RuleID:     r.ID,
		ActionType: actionType,
		TargetID:   target.ID,
		TargetName: target.DisplayName(),
		Outcome:    ledger.OutcomeSuccess,
	}

	out.Attempted++
	if err != nil {
		out.Failed++
		entry.Outcome = ledger.OutcomeFailed
		entry.ErrorDetail = err.Error()
		e.logger.Warn("automation action failed",
			"rule_id", r.ID,
			"action_type", actionType,
			"target_id", target.ID,
			"attempts", res.Attempts,
			"terminal", retry.IsTerminal(err),
			"error", err,
		)
	} else {
		out.Succeeded++
	}

	if err := e.ledger.Record(context.WithoutCancel(ctx), entry); err != nil {
		e.logger.Error("failed to record action", "rule_id", r.ID, "target_id", target.ID, "error", err)
	}
}

func (e *Engine) finish(ctx context.Context, r *entity.Rule, out *Outcome) (*Outcome, error) {
	ranAt, err := e.rules.RecordRun(ctx, r.ID, out.Stats())
	if err != nil {
		return out, fmt.Errorf("updating rule stats: %w", err)
	}
	out.RanAt = ranAt

	if err := e.notifier.Publish(ctx, events.New(events.RuleExecuted, out)); err != nil {
		e.logger.Warn("failed to publish rule event", "rule_id", r.ID, "error", err)
	}

	e.logger.Info("rule executed",
		"rule_id", r.ID,
		"rule_type", r.Type,
		"attempted", out.Attempted,
		"succeeded", out.Succeeded,
		"failed", out.Failed,
		"stopped_by_quota", out.StoppedByQuota,
	)
	return out, nil
}

// RunActive runs every active rule of the given types in creation order.
// A failing rule is logged and does not stop the others.
func (e *Engine) RunActive(ctx context.Context, types ...entity.RuleType) ([]Outcome, error) {
	rules, err := e.rules.ListActive(ctx, types...)
	if err != nil {
		return nil, fmt.Errorf("listing active rules: %w", err)
	}

	outcomes := make([]Outcome, 0, len(rules))
	var errs []error
	for i := range rules {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}

		out, err := e.RunRule(ctx, &rules[i])
		if out != nil {
			outcomes = append(outcomes, *out)
		}
		if err != nil {
			e.logger.Error("rule run failed", "rule_id", rules[i].ID, "error", err)
			errs = append(errs, fmt.Errorf("rule %s: %w", rules[i].ID, err))
		}
	}

	return outcomes, errors.Join(errs...)
}
