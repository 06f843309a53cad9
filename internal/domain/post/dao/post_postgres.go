package dao

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vadim/linkpilot/internal/domain/post/entity"
)

const postColumns = `id, user_id, campaign_id, content, hashtags, media_urls, status,
		       scheduled_at, published_at, external_post_id, external_url, error_message,
		       likes, comments, shares, impressions, created_at, updated_at`

// PostPostgres implements PostRepository for PostgreSQL
type PostPostgres struct {
	pool *pgxpool.Pool
}

// NewPostPostgres creates a new PostgreSQL post repository
func NewPostPostgres(pool *pgxpool.Pool) *PostPostgres {
	return &PostPostgres{pool: pool}
}

// Create inserts a new post
func (r *PostPostgres) Create(ctx context.Context, p *entity.Post) error {
	query := `
		INSERT INTO posts (id, user_id, campaign_id, content, hashtags, media_urls, status, scheduled_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.pool.Exec(ctx, query,
		p.ID,
		p.UserID,
		p.CampaignID,
		p.Content,
		nonNil(p.Hashtags),
		nonNil(p.MediaURLs),
		p.Status,
		p.ScheduledAt,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting post: %w", err)
	}

	return nil
}

// GetByID retrieves a post by ID
func (r *PostPostgres) GetByID(ctx context.Context, id string) (*entity.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`

	p, err := scanPostRow(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning post: %w", err)
	}

	return p, nil
}

// Update updates editable fields of a post that is still in status from
func (r *PostPostgres) Update(ctx context.Context, p *entity.Post, from entity.Status) error {
	query := `
		UPDATE posts
		SET content = $2, hashtags = $3, media_urls = $4, status = $5, scheduled_at = $6,
		    error_message = $7, updated_at = $8
		WHERE id = $1 AND status = $9
	`

	tag, err := r.pool.Exec(ctx, query,
		p.ID,
		p.Content,
		nonNil(p.Hashtags),
		nonNil(p.MediaURLs),
		p.Status,
		p.ScheduledAt,
		p.ErrorMessage,
		p.UpdatedAt,
		from,
	)
	if err != nil {
		return fmt.Errorf("updating post: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return entity.ErrInvalidTransition
	}

	return nil
}

// List retrieves posts with filtering
func (r *PostPostgres) List(ctx context.Context, filter PostFilter, opts ListOptions) ([]entity.Post, error) {
	where, args := pgFilter(filter)
	query := `SELECT ` + postColumns + ` FROM posts WHERE 1=1` + where + sortClause(opts)
	argNum := len(args) + 1

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, opts.Limit)
		argNum++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argNum)
		args = append(args, opts.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying posts: %w", err)
	}
	defer rows.Close()

	return collectPosts(rows)
}

// Count returns the number of posts matching the filter
func (r *PostPostgres) Count(ctx context.Context, filter PostFilter) (int64, error) {
	where, args := pgFilter(filter)

	var count int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM posts WHERE 1=1"+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting posts: %w", err)
	}

	return count, nil
}

// GetDue retrieves scheduled posts that are due
func (r *PostPostgres) GetDue(ctx context.Context, now time.Time, limit int) ([]entity.Post, error) {
	query := `SELECT ` + postColumns + `
		FROM posts
		WHERE status = 'scheduled' AND scheduled_at <= $1
		ORDER BY scheduled_at ASC, created_at ASC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("querying due posts: %w", err)
	}
	defer rows.Close()

	return collectPosts(rows)
}

// Claim moves the post to publishing only if it is still scheduled
func (r *PostPostgres) Claim(ctx context.Context, id string, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE posts SET status = 'publishing', error_message = '', updated_at = $2 WHERE id = $1 AND status = 'scheduled'`,
		id, now,
	)
	if err != nil {
		return false, fmt.Errorf("claiming post: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// SetPublished marks a publishing post as published
func (r *PostPostgres) SetPublished(ctx context.Context, id, externalID, externalURL string, publishedAt time.Time) error {
	query := `
		UPDATE posts
		SET status = 'published', external_post_id = $2, external_url = $3, published_at = $4,
		    error_message = '', updated_at = $4
		WHERE id = $1 AND status = 'publishing'
	`

	tag, err := r.pool.Exec(ctx, query, id, externalID, externalURL, publishedAt)
	if err != nil {
		return fmt.Errorf("setting published: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return entity.ErrInvalidTransition
	}

	return nil
}

// SetFailed marks a publishing post as failed
func (r *PostPostgres) SetFailed(ctx context.Context, id, reason string, now time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE posts SET status = 'failed', error_message = $2, updated_at = $3 WHERE id = $1 AND status = 'publishing'`,
		id, reason, now,
	)
	if err != nil {
		return fmt.Errorf("setting failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return entity.ErrInvalidTransition
	}

	return nil
}

// FailStuck fails posts that have been publishing since before the cutoff
func (r *PostPostgres) FailStuck(ctx context.Context, claimedBefore time.Time, reason string, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE posts SET status = 'failed', error_message = $1, updated_at = $2 WHERE status = 'publishing' AND updated_at < $3`,
		reason, now, claimedBefore,
	)
	if err != nil {
		return 0, fmt.Errorf("failing stuck posts: %w", err)
	}

	return tag.RowsAffected(), nil
}

// DeleteFailedBefore removes old failed posts
func (r *PostPostgres) DeleteFailedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, "DELETE FROM posts WHERE status = 'failed' AND updated_at < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting failed posts: %w", err)
	}
	return tag.RowsAffected(), nil
}

// UpdateMetrics stores engagement numbers
func (r *PostPostgres) UpdateMetrics(ctx context.Context, id string, m entity.Metrics) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE posts SET likes = $2, comments = $3, shares = $4, impressions = $5 WHERE id = $1`,
		id, m.Likes, m.Comments, m.Shares, m.Impressions,
	)
	if err != nil {
		return fmt.Errorf("updating post metrics: %w", err)
	}
	return nil
}

// GetStatistics aggregates counts by status and engagement of published posts
func (r *PostPostgres) GetStatistics(ctx context.Context, filter PostFilter) (*entity.Statistics, error) {
	where, args := pgFilter(filter)
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'draft'),
			COUNT(*) FILTER (WHERE status = 'scheduled'),
			COUNT(*) FILTER (WHERE status = 'publishing'),
			COUNT(*) FILTER (WHERE status = 'published'),
			COUNT(*) FILTER (WHERE status = 'failed'),
			COALESCE(SUM(impressions) FILTER (WHERE status = 'published'), 0),
			COALESCE(SUM(likes + comments + shares) FILTER (WHERE status = 'published'), 0)
		FROM posts
		WHERE 1=1` + where

	var s entity.Statistics
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&s.DraftCount,
		&s.ScheduledCount,
		&s.PublishingCount,
		&s.PublishedCount,
		&s.FailedCount,
		&s.TotalReach,
		&s.TotalEngagement,
	)
	if err != nil {
		return nil, fmt.Errorf("getting post statistics: %w", err)
	}

	return &s, nil
}

func pgFilter(filter PostFilter) (string, []interface{}) {
	var where string
	args := []interface{}{}
	argNum := 1

	if filter.UserID != "" {
		where += fmt.Sprintf(" AND user_id = $%d", argNum)
		args = append(args, filter.UserID)
		argNum++
	}
	if filter.CampaignID != "" {
		where += fmt.Sprintf(" AND campaign_id = $%d", argNum)
		args = append(args, filter.CampaignID)
		argNum++
	}
	if filter.Status != nil {
		where += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, *filter.Status)
		argNum++
	}
	if filter.PublishedSince != nil {
		where += fmt.Sprintf(" AND published_at >= $%d", argNum)
		args = append(args, *filter.PublishedSince)
	}

	return where, args
}

func scanPostRow(row pgx.Row) (*entity.Post, error) {
	var p entity.Post
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.CampaignID,
		&p.Content,
		&p.Hashtags,
		&p.MediaURLs,
		&p.Status,
		&p.ScheduledAt,
		&p.PublishedAt,
		&p.ExternalPostID,
		&p.ExternalURL,
		&p.ErrorMessage,
		&p.Metrics.Likes,
		&p.Metrics.Comments,
		&p.Metrics.Shares,
		&p.Metrics.Impressions,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func collectPosts(rows pgx.Rows) ([]entity.Post, error) {
	var posts []entity.Post
	for rows.Next() {
		p, err := scanPostRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		posts = append(posts, *p)
	}
	return posts, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
