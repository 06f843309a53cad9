package dao

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vadim/linkpilot/internal/database"
	"github.com/vadim/linkpilot/internal/domain/campaign/entity"
)

// CampaignSQLite implements CampaignRepository for SQLite
type CampaignSQLite struct {
	db *sql.DB
}

// NewCampaignSQLite creates a new SQLite campaign repository
func NewCampaignSQLite(db *sql.DB) *CampaignSQLite {
	return &CampaignSQLite{db: db}
}

// Create inserts a new campaign
func (r *CampaignSQLite) Create(ctx context.Context, c *entity.Campaign) error {
	audience, themes, err := encodeCampaign(c)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO campaigns (id, user_id, name, description, status, start_at, end_at, audience, themes, daily_post_limit, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		c.ID,
		c.UserID,
		c.Name,
		c.Description,
		string(c.Status),
		database.NullMillis(c.StartAt),
		database.NullMillis(c.EndAt),
		audience,
		themes,
		c.DailyPostLimit,
		database.Millis(c.CreatedAt),
		database.Millis(c.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting campaign: %w", err)
	}

	return nil
}

// GetByID retrieves a campaign by ID
func (r *CampaignSQLite) GetByID(ctx context.Context, id string) (*entity.Campaign, error) {
	c, err := scanSQLiteCampaign(r.db.QueryRowContext(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning campaign: %w", err)
	}
	return c, nil
}

// Update writes the configurable fields of a campaign
func (r *CampaignSQLite) Update(ctx context.Context, c *entity.Campaign) error {
	audience, themes, err := encodeCampaign(c)
	if err != nil {
		return err
	}

	query := `
		UPDATE campaigns
		SET name = ?, description = ?, start_at = ?, end_at = ?, audience = ?, themes = ?,
		    daily_post_limit = ?, updated_at = ?
		WHERE id = ?
	`

	_, err = r.db.ExecContext(ctx, query,
		c.Name,
		c.Description,
		database.NullMillis(c.StartAt),
		database.NullMillis(c.EndAt),
		audience,
		themes,
		c.DailyPostLimit,
		database.Millis(c.UpdatedAt),
		c.ID,
	)
	if err != nil {
		return fmt.Errorf("updating campaign: %w", err)
	}

	return nil
}

// List retrieves campaigns with filtering and pagination
func (r *CampaignSQLite) List(ctx context.Context, filter CampaignFilter, opts ListOptions) ([]entity.Campaign, error) {
	where, args := sqliteWhere(filter)
	query := `SELECT ` + campaignColumns + ` FROM campaigns` + where + " ORDER BY created_at ASC, rowid ASC"

	if opts.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, opts.Limit, opts.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying campaigns: %w", err)
	}
	defer rows.Close()

	var campaigns []entity.Campaign
	for rows.Next() {
		c, err := scanSQLiteCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		campaigns = append(campaigns, *c)
	}

	return campaigns, rows.Err()
}

// Count returns the number of campaigns matching the filter
func (r *CampaignSQLite) Count(ctx context.Context, filter CampaignFilter) (int64, error) {
	where, args := sqliteWhere(filter)

	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM campaigns`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting campaigns: %w", err)
	}
	return count, nil
}

// Transition moves a campaign between statuses with a conditional update
func (r *CampaignSQLite) Transition(ctx context.Context, id string, from, to entity.Status, reason string, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE campaigns SET status = ?, status_reason = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to), reason, database.Millis(now), id, string(from),
	)
	if err != nil {
		return false, fmt.Errorf("transitioning campaign: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transitioning campaign: %w", err)
	}
	return n == 1, nil
}

// UpdateMetrics stores aggregated post numbers
func (r *CampaignSQLite) UpdateMetrics(ctx context.Context, id string, m entity.Metrics, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE campaigns SET posts_count = ?, total_reach = ?, total_engagement = ?, updated_at = ? WHERE id = ?`,
		m.PostsCount, m.TotalReach, m.TotalEngagement, database.Millis(now), id,
	)
	if err != nil {
		return fmt.Errorf("updating campaign metrics: %w", err)
	}
	return nil
}

// ArchiveEndedBefore archives finished campaigns that ended before cutoff
func (r *CampaignSQLite) ArchiveEndedBefore(ctx context.Context, cutoff, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns
		SET status = 'archived', updated_at = ?
		WHERE status IN ('completed', 'failed') AND end_at IS NOT NULL AND end_at < ?
	`, database.Millis(now), database.Millis(cutoff))
	if err != nil {
		return 0, fmt.Errorf("archiving campaigns: %w", err)
	}
	return res.RowsAffected()
}

func sqliteWhere(filter CampaignFilter) (string, []interface{}) {
	where := " WHERE 1=1"
	var args []interface{}

	if filter.UserID != "" {
		where += " AND user_id = ?"
		args = append(args, filter.UserID)
	}
	if filter.Status != nil {
		where += " AND status = ?"
		args = append(args, string(*filter.Status))
	}

	return where, args
}

func encodeCampaign(c *entity.Campaign) (string, string, error) {
	audience, err := json.Marshal(c.Audience)
	if err != nil {
		return "", "", fmt.Errorf("encoding audience: %w", err)
	}

	themes := c.Themes
	if themes == nil {
		themes = []string{}
	}
	encodedThemes, err := json.Marshal(themes)
	if err != nil {
		return "", "", fmt.Errorf("encoding themes: %w", err)
	}

	return string(audience), string(encodedThemes), nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSQLiteCampaign(row scanner) (*entity.Campaign, error) {
	var c entity.Campaign
	var status, audience, themes string
	var startAt, endAt sql.NullInt64
	var createdAt, updatedAt int64

	err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.Name,
		&c.Description,
		&status,
		&startAt,
		&endAt,
		&audience,
		&themes,
		&c.DailyPostLimit,
		&c.Metrics.PostsCount,
		&c.Metrics.TotalReach,
		&c.Metrics.TotalEngagement,
		&c.StatusReason,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if audience != "" {
		if err := json.Unmarshal([]byte(audience), &c.Audience); err != nil {
			return nil, fmt.Errorf("decoding audience: %w", err)
		}
	}
	if themes != "" {
		if err := json.Unmarshal([]byte(themes), &c.Themes); err != nil {
			return nil, fmt.Errorf("decoding themes: %w", err)
		}
	}

	c.Status = entity.Status(status)
	c.StartAt = database.TimePtr(startAt)
	c.EndAt = database.TimePtr(endAt)
	c.CreatedAt = database.FromMillis(createdAt)
	c.UpdatedAt = database.FromMillis(updatedAt)

	return &c, nil
}
