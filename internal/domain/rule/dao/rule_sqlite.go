package dao

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vadim/linkpilot/internal/database"
	"github.com/vadim/linkpilot/internal/domain/rule/entity"
)

// RuleSQLite implements RuleRepository for SQLite
type RuleSQLite struct {
	db *sql.DB
}

// NewRuleSQLite creates a new SQLite rule repository
func NewRuleSQLite(db *sql.DB) *RuleSQLite {
	return &RuleSQLite{db: db}
}

// Create inserts a new rule
func (r *RuleSQLite) Create(ctx context.Context, rule *entity.Rule) error {
	criteria, err := json.Marshal(rule.Criteria)
	if err != nil {
		return fmt.Errorf("encoding criteria: %w", err)
	}

	query := `
		INSERT INTO automation_rules (id, user_id, name, rule_type, criteria, message_template, daily_limit, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		rule.ID,
		rule.UserID,
		rule.Name,
		string(rule.Type),
		string(criteria),
		rule.MessageTemplate,
		rule.DailyLimit,
		rule.IsActive,
		database.Millis(rule.CreatedAt),
		database.Millis(rule.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting rule: %w", err)
	}

	return nil
}

// GetByID retrieves a rule by ID
func (r *RuleSQLite) GetByID(ctx context.Context, id string) (*entity.Rule, error) {
	rule, err := scanSQLiteRule(r.db.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM automation_rules WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning rule: %w", err)
	}
	return rule, nil
}

// Update writes the user-configurable fields
func (r *RuleSQLite) Update(ctx context.Context, rule *entity.Rule) error {
	criteria, err := json.Marshal(rule.Criteria)
	if err != nil {
		return fmt.Errorf("encoding criteria: %w", err)
	}

	query := `
		UPDATE automation_rules
		SET name = ?, criteria = ?, message_template = ?, daily_limit = ?, is_active = ?, updated_at = ?
		WHERE id = ?
	`

	_, err = r.db.ExecContext(ctx, query,
		rule.Name,
		string(criteria),
		rule.MessageTemplate,
		rule.DailyLimit,
		rule.IsActive,
		database.Millis(rule.UpdatedAt),
		rule.ID,
	)
	if err != nil {
		return fmt.Errorf("updating rule: %w", err)
	}

	return nil
}

// List retrieves rules with filtering
func (r *RuleSQLite) List(ctx context.Context, filter RuleFilter) ([]entity.Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM automation_rules WHERE 1=1`
	var args []interface{}

	if filter.UserID != "" {
		query += " AND user_id = ?"
		args = append(args, filter.UserID)
	}

	if len(filter.Types) > 0 {
		marks := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			marks[i] = "?"
			args = append(args, string(t))
		}
		query += " AND rule_type IN (" + strings.Join(marks, ", ") + ")"
	}

	if filter.ActiveOnly {
		query += " AND is_active = 1"
	}

	query += " ORDER BY created_at ASC, rowid ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying rules: %w", err)
	}
	defer rows.Close()

	var rules []entity.Rule
	for rows.Next() {
		rule, err := scanSQLiteRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		rules = append(rules, *rule)
	}

	return rules, rows.Err()
}

// SetActive activates or deactivates a rule
func (r *RuleSQLite) SetActive(ctx context.Context, id string, active bool, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE automation_rules SET is_active = ?, updated_at = ? WHERE id = ?`,
		active, database.Millis(now), id)
	if err != nil {
		return fmt.Errorf("setting rule active: %w", err)
	}
	return nil
}

// RecordRun adds batch counters in a single statement
func (r *RuleSQLite) RecordRun(ctx context.Context, id string, delta entity.Stats, ranAt time.Time) error {
	query := `
		UPDATE automation_rules
		SET total_actions = total_actions + ?,
		    successful_actions = successful_actions + ?,
		    failed_actions = failed_actions + ?,
		    last_run_at = ?,
		    updated_at = ?
		WHERE id = ?
	`

	ms := database.Millis(ranAt)
	_, err := r.db.ExecContext(ctx, query, delta.TotalActions, delta.SuccessfulActions, delta.FailedActions, ms, ms, id)
	if err != nil {
		return fmt.Errorf("recording rule run: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSQLiteRule(row scanner) (*entity.Rule, error) {
	var rule entity.Rule
	var ruleType, criteria string
	var lastRun sql.NullInt64
	var createdAt, updatedAt int64

	err := row.Scan(
		&rule.ID,
		&rule.UserID,
		&rule.Name,
		&ruleType,
		&criteria,
		&rule.MessageTemplate,
		&rule.DailyLimit,
		&rule.IsActive,
		&rule.Stats.TotalActions,
		&rule.Stats.SuccessfulActions,
		&rule.Stats.FailedActions,
		&lastRun,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if criteria != "" {
		if err := json.Unmarshal([]byte(criteria), &rule.Criteria); err != nil {
			return nil, fmt.Errorf("decoding criteria: %w", err)
		}
	}

	rule.Type = entity.RuleType(ruleType)
	rule.LastRunAt = database.TimePtr(lastRun)
	rule.CreatedAt = database.FromMillis(createdAt)
	rule.UpdatedAt = database.FromMillis(updatedAt)

	return &rule, nil
}
