package dao

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vadim/linkpilot/internal/database"
	"github.com/vadim/linkpilot/internal/domain/post/entity"
)

// PostSQLite implements PostRepository for SQLite
type PostSQLite struct {
	db *sql.DB
}

// NewPostSQLite creates a new SQLite post repository
func NewPostSQLite(db *sql.DB) *PostSQLite {
	return &PostSQLite{db: db}
}

// Create inserts a new post
func (r *PostSQLite) Create(ctx context.Context, p *entity.Post) error {
	query := `
		INSERT INTO posts (id, user_id, campaign_id, content, hashtags, media_urls, status, scheduled_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		p.ID,
		p.UserID,
		p.CampaignID,
		p.Content,
		encodeList(p.Hashtags),
		encodeList(p.MediaURLs),
		string(p.Status),
		database.NullMillis(p.ScheduledAt),
		database.Millis(p.CreatedAt),
		database.Millis(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting post: %w", err)
	}

	return nil
}

// GetByID retrieves a post by ID
func (r *PostSQLite) GetByID(ctx context.Context, id string) (*entity.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = ?`

	p, err := scanSQLitePost(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning post: %w", err)
	}

	return p, nil
}

// Update updates editable fields of a post that is still in status from
func (r *PostSQLite) Update(ctx context.Context, p *entity.Post, from entity.Status) error {
	query := `
		UPDATE posts
		SET content = ?, hashtags = ?, media_urls = ?, status = ?, scheduled_at = ?,
		    error_message = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`

	res, err := r.db.ExecContext(ctx, query,
		p.Content,
		encodeList(p.Hashtags),
		encodeList(p.MediaURLs),
		string(p.Status),
		database.NullMillis(p.ScheduledAt),
		p.ErrorMessage,
		database.Millis(p.UpdatedAt),
		p.ID,
		string(from),
	)
	if err != nil {
		return fmt.Errorf("updating post: %w", err)
	}

	return requireOneRow(res)
}

// List retrieves posts with filtering
func (r *PostSQLite) List(ctx context.Context, filter PostFilter, opts ListOptions) ([]entity.Post, error) {
	where, args := sqliteFilter(filter)
	query := `SELECT ` + postColumns + ` FROM posts WHERE 1=1` + where + sortClause(opts)

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
		if opts.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, opts.Offset)
		}
	}

	return r.query(ctx, query, args...)
}

// Count returns the number of posts matching the filter
func (r *PostSQLite) Count(ctx context.Context, filter PostFilter) (int64, error) {
	where, args := sqliteFilter(filter)

	var count int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM posts WHERE 1=1"+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting posts: %w", err)
	}

	return count, nil
}

// GetDue retrieves scheduled posts that are due
func (r *PostSQLite) GetDue(ctx context.Context, now time.Time, limit int) ([]entity.Post, error) {
	query := `SELECT ` + postColumns + `
		FROM posts
		WHERE status = 'scheduled' AND scheduled_at <= ?
		ORDER BY scheduled_at ASC, created_at ASC
		LIMIT ?
	`

	return r.query(ctx, query, database.Millis(now), limit)
}

// Claim moves the post to publishing only if it is still scheduled
func (r *PostSQLite) Claim(ctx context.Context, id string, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE posts SET status = 'publishing', error_message = '', updated_at = ? WHERE id = ? AND status = 'scheduled'`,
		database.Millis(now), id,
	)
	if err != nil {
		return false, fmt.Errorf("claiming post: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claiming post: %w", err)
	}
	return n == 1, nil
}

// SetPublished marks a publishing post as published
func (r *PostSQLite) SetPublished(ctx context.Context, id, externalID, externalURL string, publishedAt time.Time) error {
	query := `
		UPDATE posts
		SET status = 'published', external_post_id = ?, external_url = ?, published_at = ?,
		    error_message = '', updated_at = ?
		WHERE id = ? AND status = 'publishing'
	`

	ms := database.Millis(publishedAt)
	res, err := r.db.ExecContext(ctx, query, externalID, externalURL, ms, ms, id)
	if err != nil {
		return fmt.Errorf("setting published: %w", err)
	}

	return requireOneRow(res)
}

// SetFailed marks a publishing post as failed
func (r *PostSQLite) SetFailed(ctx context.Context, id, reason string, now time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE posts SET status = 'failed', error_message = ?, updated_at = ? WHERE id = ? AND status = 'publishing'`,
		reason, database.Millis(now), id,
	)
	if err != nil {
		return fmt.Errorf("setting failed: %w", err)
	}

	return requireOneRow(res)
}

// FailStuck fails posts that have been publishing since before the cutoff
func (r *PostSQLite) FailStuck(ctx context.Context, claimedBefore time.Time, reason string, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE posts SET status = 'failed', error_message = ?, updated_at = ? WHERE status = 'publishing' AND updated_at < ?`,
		reason, database.Millis(now), database.Millis(claimedBefore),
	)
	if err != nil {
		return 0, fmt.Errorf("failing stuck posts: %w", err)
	}

	return res.RowsAffected()
}

// DeleteFailedBefore removes old failed posts
func (r *PostSQLite) DeleteFailedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM posts WHERE status = 'failed' AND updated_at < ?", database.Millis(cutoff))
	if err != nil {
		return 0, fmt.Errorf("deleting failed posts: %w", err)
	}
	return res.RowsAffected()
}

// UpdateMetrics stores engagement numbers
func (r *PostSQLite) UpdateMetrics(ctx context.Context, id string, m entity.Metrics) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE posts SET likes = ?, comments = ?, shares = ?, impressions = ? WHERE id = ?`,
		m.Likes, m.Comments, m.Shares, m.Impressions, id,
	)
	if err != nil {
		return fmt.Errorf("updating post metrics: %w", err)
	}
	return nil
}

// GetStatistics aggregates counts by status and engagement of published posts
func (r *PostSQLite) GetStatistics(ctx context.Context, filter PostFilter) (*entity.Statistics, error) {
	where, args := sqliteFilter(filter)
	query := `
		SELECT
			COALESCE(SUM(CASE WHEN status = 'draft' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'scheduled' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'publishing' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'published' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'published' THEN impressions ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'published' THEN likes + comments + shares ELSE 0 END), 0)
		FROM posts
		WHERE 1=1` + where

	var s entity.Statistics
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
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

func (r *PostSQLite) query(ctx context.Context, query string, args ...interface{}) ([]entity.Post, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying posts: %w", err)
	}
	defer rows.Close()

	var posts []entity.Post
	for rows.Next() {
		p, err := scanSQLitePost(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		posts = append(posts, *p)
	}

	return posts, rows.Err()
}

func sqliteFilter(filter PostFilter) (string, []interface{}) {
	var where string
	var args []interface{}

	if filter.UserID != "" {
		where += " AND user_id = ?"
		args = append(args, filter.UserID)
	}
	if filter.CampaignID != "" {
		where += " AND campaign_id = ?"
		args = append(args, filter.CampaignID)
	}
	if filter.Status != nil {
		where += " AND status = ?"
		args = append(args, string(*filter.Status))
	}
	if filter.PublishedSince != nil {
		where += " AND published_at >= ?"
		args = append(args, database.Millis(*filter.PublishedSince))
	}

	return where, args
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSQLitePost(row scanner) (*entity.Post, error) {
	var p entity.Post
	var status, hashtags, mediaURLs string
	var scheduledAt, publishedAt sql.NullInt64
	var createdAt, updatedAt int64

	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.CampaignID,
		&p.Content,
		&hashtags,
		&mediaURLs,
		&status,
		&scheduledAt,
		&publishedAt,
		&p.ExternalPostID,
		&p.ExternalURL,
		&p.ErrorMessage,
		&p.Metrics.Likes,
		&p.Metrics.Comments,
		&p.Metrics.Shares,
		&p.Metrics.Impressions,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Status = entity.Status(status)
	p.Hashtags = decodeList(hashtags)
	p.MediaURLs = decodeList(mediaURLs)
	p.ScheduledAt = database.TimePtr(scheduledAt)
	p.PublishedAt = database.TimePtr(publishedAt)
	p.CreatedAt = database.FromMillis(createdAt)
	p.UpdatedAt = database.FromMillis(updatedAt)

	return &p, nil
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return entity.ErrInvalidTransition
	}
	return nil
}

func encodeList(items []string) string {
	b, err := json.Marshal(nonNil(items))
	if err != nil {
		return "[]"
	}
	return string(b)
}

func decodeList(raw string) []string {
	var items []string
	if err := json.Unmarshal([]byte(raw), &items); err != nil || items == nil {
		return []string{}
	}
	return items
}
