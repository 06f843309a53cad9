package dao

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vadim/linkpilot/internal/domain/ledger/entity"
)

// EntryPostgres implements EntryRepository for PostgreSQL
type EntryPostgres struct {
	pool *pgxpool.Pool
}

// NewEntryPostgres creates a new PostgreSQL action log repository
func NewEntryPostgres(pool *pgxpool.Pool) *EntryPostgres {
	return &EntryPostgres{pool: pool}
}

// Append inserts a new entry
func (r *EntryPostgres) Append(ctx context.Context, e *entity.Entry) error {
	query := `
		INSERT INTO action_logs (id, user_id, rule_id, action_type, target_id, target_name, outcome, error_detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.pool.Exec(ctx, query,
		e.ID,
		e.UserID,
		e.RuleID,
		e.ActionType,
		e.TargetID,
		e.TargetName,
		e.Outcome,
		e.ErrorDetail,
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting action log: %w", err)
	}

	return nil
}

// CountSuccessSince counts successful entries of one type since the given time
func (r *EntryPostgres) CountSuccessSince(ctx context.Context, userID string, actionType entity.ActionType, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM action_logs
		WHERE user_id = $1 AND action_type = $2 AND outcome = 'success' AND created_at >= $3
	`

	var count int
	if err := r.pool.QueryRow(ctx, query, userID, actionType, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting action logs: %w", err)
	}

	return count, nil
}

// List retrieves entries with filtering, newest first
func (r *EntryPostgres) List(ctx context.Context, filter EntryFilter, opts ListOptions) ([]entity.Entry, error) {
	query := `
		SELECT id, user_id, rule_id, action_type, target_id, target_name, outcome, error_detail, created_at
		FROM action_logs
		WHERE 1=1
	`
	args := []interface{}{}
	argNum := 1

	if filter.UserID != "" {
		query += fmt.Sprintf(" AND user_id = $%d", argNum)
		args = append(args, filter.UserID)
		argNum++
	}

	if filter.RuleID != "" {
		query += fmt.Sprintf(" AND rule_id = $%d", argNum)
		args = append(args, filter.RuleID)
		argNum++
	}

	if filter.ActionType != nil {
		query += fmt.Sprintf(" AND action_type = $%d", argNum)
		args = append(args, *filter.ActionType)
		argNum++
	}

	if filter.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argNum)
		args = append(args, *filter.Since)
		argNum++
	}

	query += " ORDER BY created_at DESC"

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
		return nil, fmt.Errorf("querying action logs: %w", err)
	}
	defer rows.Close()

	var entries []entity.Entry
	for rows.Next() {
		var e entity.Entry
		err := rows.Scan(
			&e.ID,
			&e.UserID,
			&e.RuleID,
			&e.ActionType,
			&e.TargetID,
			&e.TargetName,
			&e.Outcome,
			&e.ErrorDetail,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// DeleteBefore removes entries older than cutoff
func (r *EntryPostgres) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, "DELETE FROM action_logs WHERE created_at < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting action logs: %w", err)
	}
	return tag.RowsAffected(), nil
}
