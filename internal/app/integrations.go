package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vadim/linkpilot/internal/config"
	campaignpolicy "github.com/vadim/linkpilot/internal/domain/campaign/policy"
	postpolicy "github.com/vadim/linkpilot/internal/domain/post/policy"
	"github.com/vadim/linkpilot/internal/domain/rule/engine"
	"github.com/vadim/linkpilot/internal/events"
	"github.com/vadim/linkpilot/internal/httpx/upstream/linkedin"
	"github.com/vadim/linkpilot/internal/httpx/upstream/openai"
	"github.com/vadim/linkpilot/internal/lock"
	"github.com/vadim/linkpilot/internal/scheduler"
	"github.com/vadim/linkpilot/internal/storage"
)

// integrations holds the adapters for everything outside the process
type integrations struct {
	finder    engine.TargetFinder
	executor  engine.Executor
	publisher postpolicy.Publisher
	metrics   postpolicy.MetricsSource
	content   campaignpolicy.ContentGenerator
	images    campaignpolicy.ImageGenerator
	events    events.Publisher
	locker    scheduler.Locker
	breaker   *linkedin.Breaker

	closers []func() error
}

func openIntegrations(ctx context.Context, cfg config.Config, logger *slog.Logger) (*integrations, error) {
	in := &integrations{
		events: events.Noop{},
		locker: scheduler.NoopLocker{},
	}

	in.wireLinkedIn(cfg.LinkedIn, logger)

	if err := in.wireOpenAI(cfg.OpenAI, cfg.S3, logger); err != nil {
		in.close()
		return nil, err
	}

	if cfg.AMQP.URL != "" {
		broker, err := events.NewAMQPPublisher(events.AMQPConfig{
			URL:      cfg.AMQP.URL,
			Exchange: cfg.AMQP.Exchange,
		})
		if err != nil {
			in.close()
			return nil, fmt.Errorf("connecting to event broker: %w", err)
		}
		in.events = broker
		in.closers = append(in.closers, broker.Close)
		logger.Info("publishing events", "exchange", cfg.AMQP.Exchange)
	}

	if cfg.Redis.Addr != "" {
		client, err := lock.OpenRedis(ctx, lock.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			in.close()
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		locker := lock.NewRedis(client, lock.WithLogger(logger))
		in.locker = locker
		in.closers = append(in.closers, locker.Close)
		logger.Info("task locks enabled", "addr", cfg.Redis.Addr)
	}

	return in, nil
}

// wireLinkedIn selects the simulator or the REST client. Target search has
// no public API, so candidates always come from the simulator.
func (in *integrations) wireLinkedIn(cfg config.LinkedIn, logger *slog.Logger) {
	sim := linkedin.NewSimulator(logger.With("component", "linkedin-simulator"))
	in.finder = sim

	if cfg.Simulated() {
		in.executor = sim
		in.publisher = sim
		in.metrics = sim
		logger.Info("linkedin running in simulation mode")
		return
	}

	in.breaker = linkedin.NewBreaker(linkedin.BreakerConfig{
		FailureThreshold: cfg.BreakerThreshold,
		OpenTimeout:      cfg.BreakerTimeout,
	}, logger)

	client := linkedin.New(
		linkedin.WithBaseURL(cfg.BaseURL),
		linkedin.WithAccessToken(cfg.AccessToken),
		linkedin.WithAuthorURN(cfg.AuthorURN),
		linkedin.WithBreaker(in.breaker),
	)
	publisher := linkedin.NewPostPublisher(client)
	in.executor = linkedin.NewActionExecutor(client)
	in.publisher = publisher
	in.metrics = publisher
	logger.Info("linkedin API enabled", "base_url", cfg.BaseURL)
}

func (in *integrations) wireOpenAI(cfg config.OpenAI, s3cfg config.S3, logger *slog.Logger) error {
	if cfg.APIKey == "" {
		in.content = openai.Fallback{}
		logger.Warn("OPENAI_API_KEY not set, using template content")
		return nil
	}

	opts := []openai.Option{
		openai.WithTextModel(cfg.TextModel),
		openai.WithImageModel(cfg.ImageModel),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	if s3cfg.Enabled {
		store, err := storage.NewS3Storage(storage.S3Config{
			Endpoint:        s3cfg.Endpoint,
			AccessKeyID:     s3cfg.AccessKeyID,
			SecretAccessKey: s3cfg.SecretAccessKey,
			Bucket:          s3cfg.Bucket,
			Region:          s3cfg.Region,
			PublicURL:       s3cfg.PublicURL,
		})
		if err != nil {
			return fmt.Errorf("initializing image storage: %w", err)
		}
		opts = append(opts, openai.WithImageStore(store))
	}

	client := openai.New(cfg.APIKey, opts...)
	in.content = client
	if cfg.Images {
		in.images = client
	}
	return nil
}

func (in *integrations) close() {
	for i := len(in.closers) - 1; i >= 0; i-- {
		_ = in.closers[i]()
	}
	in.closers = nil
}
