package dao

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vadim/linkpilot/internal/domain/campaign/entity"
)

const campaignColumns = `id, user_id, name, description, status, start_at, end_at, audience, themes, daily_post_limit,
		       posts_count, total_reach, total_engagement, status_reason, created_at, updated_at`

// CampaignPostgres implements CampaignRepository for PostgreSQL
type CampaignPostgres struct {
	pool *pgxpool.Pool
}

// NewCampaignPostgres creates a new PostgreSQL campaign repository
func NewCampaignPostgres(pool *pgxpool.Pool) *CampaignPostgres {
	return &CampaignPostgres{pool: pool}
}

// Create inserts a new campaign
func (r *CampaignPostgres) Create(ctx context.Context, c *entity.Campaign) error {
	audience, err := json.Marshal(c.Audience)
	if err != nil {
		return fmt.Errorf("encoding audience: %w", err)
	}

	query := `
		INSERT INTO campaigns (id, user_id, name, description, status, start_at, end_at, audience, themes, daily_post_limit, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err = r.pool.Exec(ctx, query,
		c.ID,
		c.UserID,
		c.Name,
		c.Description,
		c.Status,
		c.StartAt,
		c.EndAt,
		audience,
		c.Themes,
		c.DailyPostLimit,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting campaign: %w", err)
	}

	return nil
}

// GetByID retrieves a campaign by ID
func (r *CampaignPostgres) GetByID(ctx context.Context, id string) (*entity.Campaign, error) {
	c, err := scanCampaignRow(r.pool.QueryRow(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning campaign: %w", err)
	}
	return c, nil
}

// Update writes the configurable fields of a campaign
func (r *CampaignPostgres) Update(ctx context.Context, c *entity.Campaign) error {
	audience, err := json.Marshal(c.Audience)
	if err != nil {
		return fmt.Errorf("encoding audience: %w", err)
	}

	query := `
		UPDATE campaigns
		SET name = $2, description = $3, start_at = $4, end_at = $5, audience = $6, themes = $7,
		    daily_post_limit = $8, updated_at = $9
		WHERE id = $1
	`

	_, err = r.pool.Exec(ctx, query,
		c.ID,
		c.Name,
		c.Description,
		c.StartAt,
		c.EndAt,
		audience,
		c.Themes,
		c.DailyPostLimit,
		c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("updating campaign: %w", err)
	}

	return nil
}

// List retrieves campaigns with filtering and pagination
func (r *CampaignPostgres) List(ctx context.Context, filter CampaignFilter, opts ListOptions) ([]entity.Campaign, error) {
	where, args := pgWhere(filter)
	query := `SELECT ` + campaignColumns + ` FROM campaigns` + where + " ORDER BY created_at ASC"

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
		return nil, fmt.Errorf("querying campaigns: %w", err)
	}
	defer rows.Close()

	var campaigns []entity.Campaign
	for rows.Next() {
		c, err := scanCampaignRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		campaigns = append(campaigns, *c)
	}

	return campaigns, rows.Err()
}

// Count returns the number of campaigns matching the filter
func (r *CampaignPostgres) Count(ctx context.Context, filter CampaignFilter) (int64, error) {
	where, args := pgWhere(filter)

	var count int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM campaigns`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting campaigns: %w", err)
	}
	return count, nil
}

// Transition moves a campaign between statuses with a conditional update
func (r *CampaignPostgres) Transition(ctx context.Context, id string, from, to entity.Status, reason string, now time.Time) (bool, error) {
	query := `
		UPDATE campaigns
		SET status = $3, status_reason = $4, updated_at = $5
		WHERE id = $1 AND status = $2
	`

	tag, err := r.pool.Exec(ctx, query, id, from, to, reason, now)
	if err != nil {
		return false, fmt.Errorf("transitioning campaign: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateMetrics stores aggregated post numbers
func (r *CampaignPostgres) UpdateMetrics(ctx context.Context, id string, m entity.Metrics, now time.Time) error {
	query := `
		UPDATE campaigns
		SET posts_count = $2, total_reach = $3, total_engagement = $4, updated_at = $5
		WHERE id = $1
	`

	if _, err := r.pool.Exec(ctx, query, id, m.PostsCount, m.TotalReach, m.TotalEngagement, now); err != nil {
		return fmt.Errorf("updating campaign metrics: %w", err)
	}
	return nil
}

// ArchiveEndedBefore archives finished campaigns that ended before cutoff
func (r *CampaignPostgres) ArchiveEndedBefore(ctx context.Context, cutoff, now time.Time) (int64, error) {
	query := `
		UPDATE campaigns
		SET status = 'archived', updated_at = $2
		WHERE status IN ('completed', 'failed') AND end_at IS NOT NULL AND end_at < $1
	`

	tag, err := r.pool.Exec(ctx, query, cutoff, now)
	if err != nil {
		return 0, fmt.Errorf("archiving campaigns: %w", err)
	}
	return tag.RowsAffected(), nil
}

func pgWhere(filter CampaignFilter) (string, []interface{}) {
	where := " WHERE 1=1"
	args := []interface{}{}
	argNum := 1

	if filter.UserID != "" {
		where += fmt.Sprintf(" AND user_id = $%d", argNum)
		args = append(args, filter.UserID)
		argNum++
	}

	if filter.Status != nil {
		where += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, *filter.Status)
	}

	return where, args
}

func scanCampaignRow(row pgx.Row) (*entity.Campaign, error) {
	var c entity.Campaign
	var audience []byte

	err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.Name,
		&c.Description,
		&c.Status,
		&c.StartAt,
		&c.EndAt,
		&audience,
		&c.Themes,
		&c.DailyPostLimit,
		&c.Metrics.PostsCount,
		&c.Metrics.TotalReach,
		&c.Metrics.TotalEngagement,
		&c.StatusReason,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(audience) > 0 {
		if err := json.Unmarshal(audience, &c.Audience); err != nil {
			return nil, fmt.Errorf("decoding audience: %w", err)
		}
	}

	return &c, nil
}
