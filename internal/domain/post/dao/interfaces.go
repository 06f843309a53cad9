package dao

import (
	"context"
	"time"

	"github.com/vadim/linkpilot/internal/domain/post/entity"
)

// PostFilter contains filters for listing posts
type PostFilter struct {
	UserID         string
	CampaignID     string
	Status         *entity.Status
	PublishedSince *time.Time
}

// ListOptions contains pagination and sorting options
type ListOptions struct {
	Limit  int
	Offset int
	SortBy string // "scheduled_at", "created_at", "updated_at", "published_at"
	Desc   bool
}

// PostRepository defines the interface for post data access
type PostRepository interface {
	// Create inserts a new post
	Create(ctx context.Context, p *entity.Post) error

	// GetByID retrieves a post by its ID, nil when absent
	GetByID(ctx context.Context, id string) (*entity.Post, error)

	// Update writes editable fields (content, hashtags, media, status, schedule, error).
	// It returns ErrInvalidTransition when the stored status is no longer from.
	Update(ctx context.Context, p *entity.Post, from entity.Status) error

	// List retrieves posts with optional filtering and pagination
	List(ctx context.Context, filter PostFilter, opts ListOptions) ([]entity.Post, error)

	// Count returns the number of posts matching the filter
	Count(ctx context.Context, filter PostFilter) (int64, error)

	// GetDue retrieves scheduled posts with scheduled_at <= now, oldest first
	GetDue(ctx context.Context, now time.Time, limit int) ([]entity.Post, error)

	// Claim atomically moves a post from scheduled to publishing.
	// It returns false when the post was not in the scheduled state.
	Claim(ctx context.Context, id string, now time.Time) (bool, error)

	// SetPublished moves a publishing post to published
	SetPublished(ctx context.Context, id, externalID, externalURL string, publishedAt time.Time) error

	// SetFailed moves a publishing post to failed
	SetFailed(ctx context.Context, id, reason string, now time.Time) error

	// FailStuck fails every post claimed before the cutoff and returns how many were affected
	FailStuck(ctx context.Context, claimedBefore time.Time, reason string, now time.Time) (int64, error)

	// DeleteFailedBefore removes failed posts last updated before cutoff
	DeleteFailedBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// UpdateMetrics stores engagement numbers for a published post
	UpdateMetrics(ctx context.Context, id string, m entity.Metrics) error

	// GetStatistics aggregates counts and engagement for the filter
	GetStatistics(ctx context.Context, filter PostFilter) (*entity.Statistics, error)
}

var sortColumns = map[string]string{
	"scheduled_at": "scheduled_at",
	"created_at":   "created_at",
	"updated_at":   "updated_at",
	"published_at": "published_at",
}

func sortClause(opts ListOptions) string {
	col, ok := sortColumns[opts.SortBy]
	if !ok {
		col = "created_at"
	}
	if opts.Desc {
		return " ORDER BY " + col + " DESC"
	}
	return " ORDER BY " + col + " ASC"
}
