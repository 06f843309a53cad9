package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vadim/linkpilot/internal/config"
	campaignpolicy "github.com/vadim/linkpilot/internal/domain/campaign/policy"
	campaignsvc "github.com/vadim/linkpilot/internal/domain/campaign/service"
	ledgersvc "github.com/vadim/linkpilot/internal/domain/ledger/service"
	postpolicy "github.com/vadim/linkpilot/internal/domain/post/policy"
	postsvc "github.com/vadim/linkpilot/internal/domain/post/service"
	"github.com/vadim/linkpilot/internal/domain/quota"
	"github.com/vadim/linkpilot/internal/domain/rule/engine"
	rulesvc "github.com/vadim/linkpilot/internal/domain/rule/service"
	"github.com/vadim/linkpilot/internal/jobs"
	"github.com/vadim/linkpilot/internal/retry"
	"github.com/vadim/linkpilot/internal/scheduler"
)

// App is the main application container
type App struct {
	cfg        config.Config
	httpServer *http.Server
	router     *chi.Mux
	logger     *slog.Logger

	store        *store
	integrations *integrations

	// Domain layers
	ledger    *ledgersvc.Service
	limiter   *quota.Limiter
	rules     *rulesvc.Service
	engine    *engine.Engine
	posts     *postpolicy.Policy
	campaigns *campaignpolicy.Policy

	scheduler *scheduler.Scheduler
}

// NewLogger builds the process logger from configuration
func NewLogger(cfg config.Log) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// NewApp creates and initializes the application
func NewApp(ctx context.Context, cfg config.Config) (*App, error) {
	logger := NewLogger(cfg.Log)
	slog.SetDefault(logger)

	app := &App{
		cfg:    cfg,
		logger: logger,
	}

	// Initialize infrastructure
	if err := app.initInfrastructure(ctx); err != nil {
		app.closeInfrastructure()
		return nil, fmt.Errorf("initializing infrastructure: %w", err)
	}

	// Initialize domain layers
	app.initDomains()

	// Initialize scheduler
	if err := app.initScheduler(); err != nil {
		app.closeInfrastructure()
		return nil, fmt.Errorf("initializing scheduler: %w", err)
	}

	// Register routes
	app.router = app.newRouter()

	// Initialize HTTP server
	app.httpServer = &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      app.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return app, nil
}

// initInfrastructure opens the database and the external integrations
func (a *App) initInfrastructure(ctx context.Context) error {
	s, err := openStore(ctx, a.cfg.Database)
	if err != nil {
		return err
	}
	a.store = s
	a.logger.Info("database ready", "driver", a.cfg.Database.Driver)

	in, err := openIntegrations(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}
	a.integrations = in
	return nil
}

// initDomains initializes domain layers (Service, Policy, Engine)
func (a *App) initDomains() {
	auto := a.cfg.Automation
	in := a.integrations

	a.ledger = ledgersvc.New(a.store.entries)
	a.limiter = quota.New(a.ledger, a.cfg.Limits.ByAction())
	a.rules = rulesvc.New(a.store.rules, a.limiter)

	a.engine = engine.New(a.rules, a.ledger, a.limiter, in.finder, in.executor,
		engine.WithRetryPolicy(a.retryPolicy("linkedin_action")),
		engine.WithPacing(auto.ActionPacing),
		engine.WithBatchCap(auto.BatchCap),
		engine.WithNotifier(in.events),
		engine.WithLogger(a.logger.With("component", "engine")),
	)

	posts := postsvc.New(a.store.posts)
	a.posts = postpolicy.New(posts, in.publisher,
		postpolicy.WithRetryPolicy(a.retryPolicy("linkedin_publish")),
		postpolicy.WithNotifier(in.events),
		postpolicy.WithPublishingTimeout(auto.PublishingTimeout),
		postpolicy.WithBatchSize(auto.PublishBatchSize),
		postpolicy.WithLogger(a.logger.With("component", "posts")),
	)

	campaignOpts := []campaignpolicy.Option{
		campaignpolicy.WithRetryPolicy(a.retryPolicy("content_generation")),
		campaignpolicy.WithNotifier(in.events),
		campaignpolicy.WithBatchSize(auto.ContentBatchSize),
		campaignpolicy.WithLogger(a.logger.With("component", "campaigns")),
	}
	if in.images != nil {
		campaignOpts = append(campaignOpts, campaignpolicy.WithImageGenerator(in.images))
	}
	campaigns := campaignsvc.New(a.store.campaigns)
	a.campaigns = campaignpolicy.New(campaigns, posts, in.content, campaignOpts...)
}

// initScheduler registers the automation tasks on a new scheduler
func (a *App) initScheduler() error {
	sc := a.cfg.Scheduler

	schedules, err := a.schedules()
	if err != nil {
		return err
	}

	a.scheduler = scheduler.New(
		scheduler.WithTick(sc.Tick),
		scheduler.WithLocker(a.integrations.locker, a.cfg.Redis.LockTTL),
		scheduler.WithLogger(a.logger.With("component", "scheduler")),
	)

	auto := a.cfg.Automation
	settings := jobs.DefaultSettings()
	settings.MetricsWindow = auto.MetricsWindow
	settings.StaleCampaignWindow = auto.StaleCampaignWindow
	settings.FailedPostRetention = auto.FailedPostRetention
	settings.CampaignArchiveAge = auto.CampaignArchiveAge
	settings.ActionLogRetention = auto.ActionLogRetention

	j := jobs.New(jobs.Deps{
		Posts:         a.posts,
		MetricsSource: a.integrations.metrics,
		Campaigns:     a.campaigns,
		Rules:         a.rules,
		Engine:        a.engine,
		Ledger:        a.ledger,
	}, settings, a.logger.With("component", "jobs"))

	return j.Register(a.scheduler, schedules)
}

func (a *App) schedules() (jobs.Schedules, error) {
	sc := a.cfg.Scheduler
	out := jobs.Schedules{
		PublishEvery:  sc.PublishEvery,
		CampaignEvery: sc.CampaignEvery,
		OutreachEvery: sc.OutreachEvery,
		MetricsEvery:  sc.MetricsEvery,
		HealthEvery:   sc.HealthEvery,
	}

	for _, s := range sc.EngagementAt {
		tod, err := scheduler.ParseTimeOfDay(s)
		if err != nil {
			return out, fmt.Errorf("engagement time: %w", err)
		}
		out.EngagementAt = append(out.EngagementAt, tod)
	}

	var err error
	if out.ContentAt, err = scheduler.ParseTimeOfDay(sc.ContentAt); err != nil {
		return out, fmt.Errorf("content time: %w", err)
	}
	if out.CleanupAt, err = scheduler.ParseTimeOfDay(sc.CleanupAt); err != nil {
		return out, fmt.Errorf("cleanup time: %w", err)
	}
	return out, nil
}

func (a *App) retryPolicy(operation string) retry.Policy {
	return retry.Policy{
		MaxAttempts: a.cfg.Automation.RetryMaxAttempts,
		BaseDelay:   a.cfg.Automation.RetryBaseDelay,
		OnRetry: func(attempt int, err error, wait time.Duration) {
			a.logger.Warn("retrying external call",
				"operation", operation, "attempt", attempt, "wait", wait, "error", err)
		},
	}
}

// Handler returns the HTTP handler with all routes
func (a *App) Handler() http.Handler {
	return a.router
}

// Scheduler exposes the task scheduler for one-off runs
func (a *App) Scheduler() *scheduler.Scheduler {
	return a.scheduler
}

// Run starts the application and blocks until shutdown signal
func (a *App) Run(ctx context.Context) error {
	if a.cfg.Scheduler.Enabled {
		a.scheduler.Start(ctx)
	} else {
		a.logger.Info("scheduler disabled")
	}

	// Channel to receive errors from server
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server", "addr", a.cfg.Server.Address())
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case err := <-errCh:
		runErr = fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.logger.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		a.logger.Info("context cancelled")
	}

	if err := a.Shutdown(context.Background()); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// Shutdown gracefully shuts down the application
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down...")

	if err := a.scheduler.Stop(a.cfg.Scheduler.StopTimeout); err != nil {
		a.logger.Warn("scheduler did not stop cleanly", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var err error
	if a.httpServer != nil {
		if shutdownErr := a.httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
			err = fmt.Errorf("shutting down HTTP server: %w", shutdownErr)
		}
	}

	a.closeInfrastructure()

	a.logger.Info("shutdown complete")
	return err
}

// Close releases infrastructure without serving; used by one-off commands
func (a *App) Close() {
	a.closeInfrastructure()
}

func (a *App) closeInfrastructure() {
	if a.integrations != nil {
		a.integrations.close()
		a.integrations = nil
	}
	if a.store != nil {
		a.store.close()
		a.store = nil
	}
}
