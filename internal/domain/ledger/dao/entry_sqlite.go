package dao

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vadim/linkpilot/internal/database"
	"github.com/vadim/linkpilot/internal/domain/ledger/entity"
)

// EntrySQLite implements EntryRepository for SQLite
type EntrySQLite struct {
	db *sql.DB
}

// NewEntrySQLite creates a new SQLite action log repository
func NewEntrySQLite(db *sql.DB) *EntrySQLite {
	return &EntrySQLite{db: db}
}

// Append inserts a new entry
func (r *EntrySQLite) Append(ctx context.Context, e *entity.Entry) error {
	query := `
		INSERT INTO action_logs (id, user_id, rule_id, action_type, target_id, target_name, outcome, error_detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		e.ID,
		e.UserID,
		e.RuleID,
		string(e.ActionType),
		e.TargetID,
		e.TargetName,
		string(e.Outcome),
		e.ErrorDetail,
		database.Millis(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting action log: %w", err)
	}

	return nil
}

// CountSuccessSince counts successful entries of one type since the given time
func (r *EntrySQLite) CountSuccessSince(ctx context.Context, userID string, actionType entity.ActionType, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM action_logs
		WHERE user_id = ? AND action_type = ? AND outcome = 'success' AND created_at >= ?
	`

	var count int
	err := r.db.QueryRowContext(ctx, query, userID, string(actionType), database.Millis(since)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting action logs: %w", err)
	}

	return count, nil
}

// List retrieves entries with filtering, newest first
func (r *EntrySQLite) List(ctx context.Context, filter EntryFilter, opts ListOptions) ([]entity.Entry, error) {
	query := `
		SELECT id, user_id, rule_id, action_type, target_id, target_name, outcome, error_detail, created_at
		FROM action_logs
		WHERE 1=1
	`
	var args []interface{}

	if filter.UserID != "" {
		query += " AND user_id = ?"
		args = append(args, filter.UserID)
	}
	if filter.RuleID != "" {
		query += " AND rule_id = ?"
		args = append(args, filter.RuleID)
	}
	if filter.ActionType != nil {
		query += " AND action_type = ?"
		args = append(args, string(*filter.ActionType))
	}
	if filter.Since != nil {
		query += " AND created_at >= ?"
		args = append(args, database.Millis(*filter.Since))
	}

	query += " ORDER BY created_at DESC, rowid DESC"

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
		if opts.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, opts.Offset)
		}
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying action logs: %w", err)
	}
	defer rows.Close()

	var entries []entity.Entry
	for rows.Next() {
		var e entity.Entry
		var actionType, outcome string
		var createdAt int64

		err := rows.Scan(
			&e.ID,
			&e.UserID,
			&e.RuleID,
			&actionType,
			&e.TargetID,
			&e.TargetName,
			&outcome,
			&e.ErrorDetail,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		e.ActionType = entity.ActionType(actionType)
		e.Outcome = entity.Outcome(outcome)
		e.CreatedAt = database.FromMillis(createdAt)
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// DeleteBefore removes entries older than cutoff
func (r *EntrySQLite) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM action_logs WHERE created_at < ?", database.Millis(cutoff))
	if err != nil {
		return 0, fmt.Errorf("deleting action logs: %w", err)
	}
	return res.RowsAffected()
}
