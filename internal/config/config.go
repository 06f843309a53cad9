package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	ledger "github.com/vadim/linkpilot/internal/domain/ledger/entity"
)

// Config holds all application configuration
type Config struct {
	Server     Server     `yaml:"server"`
	Database   Database   `yaml:"database"`
	LinkedIn   LinkedIn   `yaml:"linkedin"`
	OpenAI     OpenAI     `yaml:"openai"`
	S3         S3         `yaml:"s3"`
	AMQP       AMQP       `yaml:"amqp"`
	Redis      Redis      `yaml:"redis"`
	Scheduler  Scheduler  `yaml:"scheduler"`
	Limits     Limits     `yaml:"limits"`
	Automation Automation `yaml:"automation"`
	Log        Log        `yaml:"log"`
}

// Server holds HTTP server configuration
type Server struct {
	Host         string        `yaml:"host" env:"SERVER_HOST" env-default:"0.0.0.0"`
	Port         string        `yaml:"port" env:"SERVER_PORT" env-default:"8080"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT" env-default:"15s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT" env-default:"15s"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" env:"SERVER_IDLE_TIMEOUT" env-default:"60s"`
}

// Address returns the full server address
func (s Server) Address() string {
	return s.Host + ":" + s.Port
}

// Database holds database configuration
type Database struct {
	Driver     string `yaml:"driver" env:"DB_DRIVER" env-default:"sqlite"`
	SQLitePath string `yaml:"sqlite_path" env:"SQLITE_PATH" env-default:"linkpilot.db"`

	// PostgreSQL
	PostgresDSN string `yaml:"postgres_dsn" env:"DATABASE_URL"`

	// Connection pool settings
	MaxOpenConns int           `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	MaxIdleConns int           `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS" env-default:"5"`
	ConnLifetime time.Duration `yaml:"conn_lifetime" env:"DB_CONN_LIFETIME" env-default:"5m"`
}

// LinkedIn holds LinkedIn API configuration
type LinkedIn struct {
	Mode             string        `yaml:"mode" env:"LINKEDIN_MODE" env-default:"simulate"`
	BaseURL          string        `yaml:"base_url" env:"LINKEDIN_BASE_URL" env-default:"https://api.linkedin.com"`
	AccessToken      string        `yaml:"access_token" env:"LINKEDIN_ACCESS_TOKEN"`
	AuthorURN        string        `yaml:"author_urn" env:"LINKEDIN_AUTHOR_URN"`
	BreakerThreshold uint32        `yaml:"breaker_threshold" env:"LINKEDIN_BREAKER_THRESHOLD" env-default:"5"`
	BreakerTimeout   time.Duration `yaml:"breaker_timeout" env:"LINKEDIN_BREAKER_TIMEOUT" env-default:"1m"`
}

// Simulated reports whether LinkedIn calls are served in-process
func (l LinkedIn) Simulated() bool {
	return l.Mode != "api"
}

// OpenAI holds content generation configuration
type OpenAI struct {
	APIKey     string `yaml:"api_key" env:"OPENAI_API_KEY"`
	BaseURL    string `yaml:"base_url" env:"OPENAI_BASE_URL"`
	TextModel  string `yaml:"text_model" env:"OPENAI_TEXT_MODEL" env-default:"gpt-4o"`
	ImageModel string `yaml:"image_model" env:"OPENAI_IMAGE_MODEL" env-default:"dall-e-3"`
	Images     bool   `yaml:"images" env:"OPENAI_IMAGES_ENABLED" env-default:"false"`
}

// S3 holds S3/MinIO storage configuration
type S3 struct {
	Enabled         bool   `yaml:"enabled" env:"S3_ENABLED" env-default:"false"`
	Endpoint        string `yaml:"endpoint" env:"S3_ENDPOINT" env-default:"http://localhost:9000"`
	AccessKeyID     string `yaml:"access_key_id" env:"S3_ACCESS_KEY_ID" env-default:"minioadmin"`
	SecretAccessKey string `yaml:"secret_access_key" env:"S3_SECRET_ACCESS_KEY" env-default:"minioadmin"`
	Bucket          string `yaml:"bucket" env:"S3_BUCKET" env-default:"media"`
	Region          string `yaml:"region" env:"S3_REGION" env-default:"us-east-1"`
	PublicURL       string `yaml:"public_url" env:"S3_PUBLIC_URL" env-default:"http://localhost:9000/media"`
}

// AMQP holds event fan-out configuration; an empty URL disables it
type AMQP struct {
	URL      string `yaml:"url" env:"AMQP_URL"`
	Exchange string `yaml:"exchange" env:"AMQP_EXCHANGE" env-default:"linkpilot.events"`
}

// Redis holds the task lock configuration; an empty address disables it
type Redis struct {
	Addr     string        `yaml:"addr" env:"REDIS_ADDR"`
	Password string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int           `yaml:"db" env:"REDIS_DB" env-default:"0"`
	LockTTL  time.Duration `yaml:"lock_ttl" env:"TASK_LOCK_TTL" env-default:"30m"`
}

// Scheduler holds scheduler configuration
type Scheduler struct {
	Enabled     bool          `yaml:"enabled" env:"SCHEDULER_ENABLED" env-default:"true"`
	Tick        time.Duration `yaml:"tick" env:"SCHEDULER_TICK" env-default:"1s"`
	StopTimeout time.Duration `yaml:"stop_timeout" env:"SCHEDULER_STOP_TIMEOUT" env-default:"30s"`

	PublishEvery  time.Duration `yaml:"publish_every" env:"SCHEDULER_PUBLISH_EVERY" env-default:"5m"`
	CampaignEvery time.Duration `yaml:"campaign_every" env:"SCHEDULER_CAMPAIGN_EVERY" env-default:"30m"`
	OutreachEvery time.Duration `yaml:"outreach_every" env:"SCHEDULER_OUTREACH_EVERY" env-default:"2h"`
	MetricsEvery  time.Duration `yaml:"metrics_every" env:"SCHEDULER_METRICS_EVERY" env-default:"1h"`
	HealthEvery   time.Duration `yaml:"health_every" env:"SCHEDULER_HEALTH_EVERY" env-default:"15m"`

	EngagementAt []string `yaml:"engagement_at" env:"SCHEDULER_ENGAGEMENT_AT" env-separator:"," env-default:"09:00,17:00"`
	ContentAt    string   `yaml:"content_at" env:"SCHEDULER_CONTENT_AT" env-default:"06:00"`
	CleanupAt    string   `yaml:"cleanup_at" env:"SCHEDULER_CLEANUP_AT" env-default:"00:00"`
}

// Limits holds the global per-day action limits
type Limits struct {
	Connect int `yaml:"connect" env:"DAILY_CONNECTION_LIMIT" env-default:"100"`
	Follow  int `yaml:"follow" env:"DAILY_FOLLOW_LIMIT" env-default:"150"`
	Like    int `yaml:"like" env:"DAILY_LIKE_LIMIT" env-default:"300"`
	Comment int `yaml:"comment" env:"DAILY_COMMENT_LIMIT" env-default:"50"`
	Message int `yaml:"message" env:"DAILY_MESSAGE_LIMIT" env-default:"20"`
}

// ByAction returns the limits keyed by ledger action type
func (l Limits) ByAction() map[ledger.ActionType]int {
	return map[ledger.ActionType]int{
		ledger.ActionConnect: l.Connect,
		ledger.ActionFollow:  l.Follow,
		ledger.ActionLike:    l.Like,
		ledger.ActionComment: l.Comment,
		ledger.ActionMessage: l.Message,
	}
}

// Automation holds rule engine, retry and retention settings
type Automation struct {
	BatchCap         int           `yaml:"batch_cap" env:"AUTOMATION_BATCH_CAP" env-default:"10"`
	ActionPacing     time.Duration `yaml:"action_pacing" env:"AUTOMATION_ACTION_PACING" env-default:"2s"`
	RetryMaxAttempts int           `yaml:"retry_max_attempts" env:"RETRY_MAX_ATTEMPTS" env-default:"3"`
	RetryBaseDelay   time.Duration `yaml:"retry_base_delay" env:"RETRY_BASE_DELAY" env-default:"1s"`

	PublishingTimeout time.Duration `yaml:"publishing_timeout" env:"PUBLISHING_TIMEOUT" env-default:"30m"`
	PublishBatchSize  int           `yaml:"publish_batch_size" env:"PUBLISH_BATCH_SIZE" env-default:"50"`
	ContentBatchSize  int           `yaml:"content_batch_size" env:"CONTENT_BATCH_SIZE" env-default:"7"`
	MetricsWindow     time.Duration `yaml:"metrics_window" env:"METRICS_WINDOW" env-default:"168h"`

	FailedPostRetention time.Duration `yaml:"failed_post_retention" env:"FAILED_POST_RETENTION" env-default:"720h"`
	CampaignArchiveAge  time.Duration `yaml:"campaign_archive_age" env:"CAMPAIGN_ARCHIVE_AGE" env-default:"2160h"`
	ActionLogRetention  time.Duration `yaml:"action_log_retention" env:"ACTION_LOG_RETENTION" env-default:"1440h"`
	StaleCampaignWindow time.Duration `yaml:"stale_campaign_window" env:"STALE_CAMPAIGN_WINDOW" env-default:"168h"`
}

// Log holds logging configuration
type Log struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// SlogLevel converts the configured level name
func (l Log) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Validate checks values cleanenv cannot
func (c Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
	case "postgres":
		if c.Database.PostgresDSN == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	if c.LinkedIn.Mode != "simulate" && c.LinkedIn.Mode != "api" {
		return fmt.Errorf("unknown linkedin mode %q", c.LinkedIn.Mode)
	}

	for action, limit := range c.Limits.ByAction() {
		if limit < 0 {
			return fmt.Errorf("daily %s limit must not be negative", action)
		}
	}
	if c.Automation.BatchCap <= 0 {
		return fmt.Errorf("automation batch cap must be positive")
	}
	return nil
}

// Load reads configuration from the environment (and .env when present)
func Load() (Config, error) {
	// Load .env file if exists (for development)
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return cfg, fmt.Errorf("reading environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file; environment variables override it
func LoadFromFile(path string) (Config, error) {
	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
