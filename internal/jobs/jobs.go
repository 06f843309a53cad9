// Package jobs defines the recurring automation tasks and binds them to the
// domain policies.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	campaignpolicy "github.com/vadim/linkpilot/internal/domain/campaign/policy"
	ledgersvc "github.com/vadim/linkpilot/internal/domain/ledger/service"
	postpolicy "github.com/vadim/linkpilot/internal/domain/post/policy"
	"github.com/vadim/linkpilot/internal/domain/rule/engine"
	"github.com/vadim/linkpilot/internal/domain/rule/entity"
	rulesvc "github.com/vadim/linkpilot/internal/domain/rule/service"
	"github.com/vadim/linkpilot/internal/scheduler"
)

// Task names, in registration order
const (
	TaskPublishDue       = "publish-due"
	TaskCampaigns        = "campaign-management"
	TaskEngagement       = "engagement-optimization"
	TaskOutreach         = "outreach"
	TaskContent          = "content-generation"
	TaskMetricsRefresh   = "metrics-refresh"
	TaskHealthCheck      = "health-check"
	TaskRetentionCleanup = "retention-cleanup"
)

// Schedules holds the cadence of every task
type Schedules struct {
	PublishEvery  time.Duration
	CampaignEvery time.Duration
	OutreachEvery time.Duration
	MetricsEvery  time.Duration
	HealthEvery   time.Duration
	EngagementAt  []scheduler.TimeOfDay
	ContentAt     scheduler.TimeOfDay
	CleanupAt     scheduler.TimeOfDay
}

// DefaultSchedules returns the standard cadences
func DefaultSchedules() Schedules {
	return Schedules{
		PublishEvery:  5 * time.Minute,
		CampaignEvery: 30 * time.Minute,
		OutreachEvery: 2 * time.Hour,
		MetricsEvery:  time.Hour,
		HealthEvery:   15 * time.Minute,
		EngagementAt:  []scheduler.TimeOfDay{scheduler.At(9, 0), scheduler.At(17, 0)},
		ContentAt:     scheduler.At(6, 0),
		CleanupAt:     scheduler.At(0, 0),
	}
}

// Settings holds the windows and thresholds the tasks use
type Settings struct {
	MetricsWindow       time.Duration
	PerformanceWindow   time.Duration
	StaleCampaignWindow time.Duration
	FailedPostRetention time.Duration
	CampaignArchiveAge  time.Duration
	ActionLogRetention  time.Duration

	// rules with more actions than this and a lower success rate are reported
	UnderperformingMinActions int
	UnderperformingRate       float64
}

// DefaultSettings returns the standard windows
func DefaultSettings() Settings {
	return Settings{
		MetricsWindow:             7 * 24 * time.Hour,
		PerformanceWindow:         30 * 24 * time.Hour,
		StaleCampaignWindow:       7 * 24 * time.Hour,
		FailedPostRetention:       30 * 24 * time.Hour,
		CampaignArchiveAge:        90 * 24 * time.Hour,
		ActionLogRetention:        60 * 24 * time.Hour,
		UnderperformingMinActions: 10,
		UnderperformingRate:       0.5,
	}
}

// Jobs runs the automation tasks
type Jobs struct {
	posts     *postpolicy.Policy
	source    postpolicy.MetricsSource
	campaigns *campaignpolicy.Policy
	rules     *rulesvc.Service
	engine    *engine.Engine
	ledger    *ledgersvc.Service
	settings  Settings
	logger    *slog.Logger
}

// Deps groups what the tasks operate on
type Deps struct {
	Posts         *postpolicy.Policy
	MetricsSource postpolicy.MetricsSource
	Campaigns     *campaignpolicy.Policy
	Rules         *rulesvc.Service
	Engine        *engine.Engine
	Ledger        *ledgersvc.Service
}

// New creates the task set
func New(deps Deps, settings Settings, logger *slog.Logger) *Jobs {
	if logger == nil {
		logger = slog.Default()
	}
	return &Jobs{
		posts:     deps.Posts,
		source:    deps.MetricsSource,
		campaigns: deps.Campaigns,
		rules:     deps.Rules,
		engine:    deps.Engine,
		ledger:    deps.Ledger,
		settings:  settings,
		logger:    logger,
	}
}

// Tasks returns every task in registration order
func (j *Jobs) Tasks(s Schedules) []scheduler.Task {
	return []scheduler.Task{
		{Name: TaskPublishDue, Schedule: scheduler.Every(s.PublishEvery), Run: j.PublishDue},
		{Name: TaskCampaigns, Schedule: scheduler.Every(s.CampaignEvery), Run: j.ManageCampaigns},
		{Name: TaskEngagement, Schedule: scheduler.DailyAt(s.EngagementAt...), Run: j.Engagement},
		{Name: TaskOutreach, Schedule: scheduler.Every(s.OutreachEvery), Run: j.Outreach},
		{Name: TaskContent, Schedule: scheduler.DailyAt(s.ContentAt), Run: j.GenerateContent},
		{Name: TaskMetricsRefresh, Schedule: scheduler.Every(s.MetricsEvery), Run: j.RefreshMetrics},
		{Name: TaskHealthCheck, Schedule: scheduler.Every(s.HealthEvery), Run: j.HealthCheck},
		{Name: TaskRetentionCleanup, Schedule: scheduler.DailyAt(s.CleanupAt), Run: j.RetentionCleanup},
	}
}

// Register adds every task to the scheduler
func (j *Jobs) Register(s *scheduler.Scheduler, sched Schedules) error {
	for _, t := range j.Tasks(sched) {
		if err := s.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// PublishDue publishes every scheduled post whose time has come
func (j *Jobs) PublishDue(ctx context.Context) error {
	_, err := j.posts.ProcessScheduledPosts(ctx)
	return err
}

// ManageCampaigns completes ended campaigns and keeps running ones stocked with posts
func (j *Jobs) ManageCampaigns(ctx context.Context) error {
	res, err := j.campaigns.ManageCampaigns(ctx)
	if err != nil {
		return err
	}
	if res.Completed > 0 || res.Failed > 0 || res.PostsCreated > 0 {
		j.logger.Info("campaigns managed",
			"active", res.Active, "completed", res.Completed, "failed", res.Failed,
			"replenished", res.Replenished, "posts_created", res.PostsCreated)
	}
	return nil
}

// Engagement runs like and comment rules and logs each user's post performance
func (j *Jobs) Engagement(ctx context.Context) error {
	outcomes, runErr := j.engine.RunActive(ctx, entity.RuleAutoLike, entity.RuleAutoComment)
	j.logOutcomes("engagement", outcomes)

	users, err := j.activeUsers(ctx, entity.RuleAutoLike, entity.RuleAutoComment)
	if err != nil {
		return errors.Join(runErr, err)
	}
	for _, userID := range users {
		perf, err := j.posts.AnalyzePerformance(ctx, userID, j.settings.PerformanceWindow)
		if err != nil {
			j.logger.Warn("failed to analyze post performance", "user_id", userID, "error", err)
			continue
		}
		j.logger.Info("post performance",
			"user_id", userID,
			"posts", perf.PostCount,
			"average_engagement", perf.AverageEngagement,
			"underperforming", len(perf.Underperforming))
	}
	return runErr
}

// Outreach runs connect, follow and message rules
func (j *Jobs) Outreach(ctx context.Context) error {
	outcomes, err := j.engine.RunActive(ctx, entity.RuleAutoConnect, entity.RuleAutoFollow, entity.RuleAutoMessage)
	j.logOutcomes("outreach", outcomes)
	return err
}

// GenerateContent creates the day's posts for every running campaign
func (j *Jobs) GenerateContent(ctx context.Context) error {
	n, err := j.campaigns.GenerateDailyContent(ctx)
	if n > 0 {
		j.logger.Info("daily content generated", "posts", n)
	}
	return err
}

// RefreshMetrics pulls engagement numbers for recently published posts
func (j *Jobs) RefreshMetrics(ctx context.Context) error {
	n, err := j.posts.RefreshMetrics(ctx, j.source, j.settings.MetricsWindow)
	if err != nil {
		return err
	}
	j.logger.Debug("post metrics refreshed", "posts", n)
	return nil
}

// HealthCheck fails stuck posts and warns about weak rules and idle campaigns
func (j *Jobs) HealthCheck(ctx context.Context) error {
	var errs []error

	if _, err := j.posts.FailStuckPosts(ctx); err != nil {
		errs = append(errs, err)
	}

	weak, err := j.rules.ListUnderperforming(ctx, j.settings.UnderperformingMinActions, j.settings.UnderperformingRate)
	if err != nil {
		errs = append(errs, fmt.Errorf("listing underperforming rules: %w", err))
	}
	for _, r := range weak {
		j.logger.Warn("rule success rate is low",
			"rule_id", r.ID, "user_id", r.UserID, "rule_type", r.Type,
			"total", r.Stats.TotalActions, "success_rate", r.Stats.SuccessRate())
	}

	stale, err := j.campaigns.FindStale(ctx, j.settings.StaleCampaignWindow)
	if err != nil {
		errs = append(errs, fmt.Errorf("finding stale campaigns: %w", err))
	}
	for _, c := range stale {
		j.logger.Warn("active campaign has no recent posts",
			"campaign_id", c.ID, "user_id", c.UserID, "window", j.settings.StaleCampaignWindow)
	}

	return errors.Join(errs...)
}

// RetentionCleanup deletes old failed posts and action log entries and archives ended campaigns
func (j *Jobs) RetentionCleanup(ctx context.Context) error {
	var errs []error

	posts, err := j.posts.CleanupFailed(ctx, j.settings.FailedPostRetention)
	if err != nil {
		errs = append(errs, fmt.Errorf("deleting failed posts: %w", err))
	}
	archived, err := j.campaigns.ArchiveEnded(ctx, j.settings.CampaignArchiveAge)
	if err != nil {
		errs = append(errs, fmt.Errorf("archiving campaigns: %w", err))
	}
	entries, err := j.ledger.Sweep(ctx, j.settings.ActionLogRetention)
	if err != nil {
		errs = append(errs, fmt.Errorf("sweeping action log: %w", err))
	}

	j.logger.Info("retention cleanup finished",
		"failed_posts_deleted", posts, "campaigns_archived", archived, "action_logs_deleted", entries)
	return errors.Join(errs...)
}

func (j *Jobs) activeUsers(ctx context.Context, types ...entity.RuleType) ([]string, error) {
	rules, err := j.rules.ListActive(ctx, types...)
	if err != nil {
		return nil, fmt.Errorf("listing active rules: %w", err)
	}
	seen := make(map[string]bool)
	var users []string
	for _, r := range rules {
		if !seen[r.UserID] {
			seen[r.UserID] = true
			users = append(users, r.UserID)
		}
	}
	return users, nil
}

func (j *Jobs) logOutcomes(task string, outcomes []engine.Outcome) {
	attempted, succeeded, stopped := 0, 0, 0
	for _, o := range outcomes {
		attempted += o.Attempted
		succeeded += o.Succeeded
		if o.StoppedByQuota {
			stopped++
		}
	}
	j.logger.Info("rules executed",
		"task", task, "rules", len(outcomes), "attempted", attempted, "succeeded", succeeded, "quota_stops", stopped)
}
