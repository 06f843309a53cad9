package dao

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vadim/linkpilot/internal/domain/rule/entity"
)

const ruleColumns = `id, user_id, name, rule_type, criteria, message_template, daily_limit, is_active,
		       total_actions, successful_actions, failed_actions, last_run_at, created_at, updated_at`

// RulePostgres implements RuleRepository for PostgreSQL
type RulePostgres struct {
	pool *pgxpool.Pool
}

// NewRulePostgres creates a new PostgreSQL rule repository
func NewRulePostgres(pool *pgxpool.Pool) *RulePostgres {
	return &RulePostgres{pool: pool}
}

// Create inserts a new rule
func (r *RulePostgres) Create(ctx context.Context, rule *entity.Rule) error {
	criteria, err := json.Marshal(rule.Criteria)
	if err != nil {
		return fmt.Errorf("encoding criteria: %w", err)
	}

	query := `
		INSERT INTO automation_rules (id, user_id, name, rule_type, criteria, message_template, daily_limit, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = r.pool.Exec(ctx, query,
		rule.ID,
		rule.UserID,
		rule.Name,
		rule.Type,
		criteria,
		rule.MessageTemplate,
		rule.DailyLimit,
		rule.IsActive,
		rule.CreatedAt,
		rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting rule: %w", err)
	}

	return nil
}

// GetByID retrieves a rule by ID
func (r *RulePostgres) GetByID(ctx context.Context, id string) (*entity.Rule, error) {
	rule, err := scanRuleRow(r.pool.QueryRow(ctx, `SELECT `+ruleColumns+` FROM automation_rules WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning rule: %w", err)
	}
	return rule, nil
}

// Update writes the user-configurable fields
func (r *RulePostgres) Update(ctx context.Context, rule *entity.Rule) error {
	criteria, err := json.Marshal(rule.Criteria)
	if err != nil {
		return fmt.Errorf("encoding criteria: %w", err)
	}

	query := `
		UPDATE automation_rules
		SET name = $2, criteria = $3, message_template = $4, daily_limit = $5, is_active = $6, updated_at = $7
		WHERE id = $1
	`

	_, err = r.pool.Exec(ctx, query,
		rule.ID,
		rule.Name,
		criteria,
		rule.MessageTemplate,
		rule.DailyLimit,
		rule.IsActive,
		rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("updating rule: %w", err)
	}

	return nil
}

// List retrieves rules with filtering
func (r *RulePostgres) List(ctx context.Context, filter RuleFilter) ([]entity.Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM automation_rules WHERE 1=1`
	args := []interface{}{}
	argNum := 1

	if filter.UserID != "" {
		query += fmt.Sprintf(" AND user_id = $%d", argNum)
		args = append(args, filter.UserID)
		argNum++
	}

	if len(filter.Types) > 0 {
		types := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			types[i] = string(t)
		}
		query += fmt.Sprintf(" AND rule_type = ANY($%d)", argNum)
		args = append(args, types)
	}

	if filter.ActiveOnly {
		query += " AND is_active"
	}

	query += " ORDER BY created_at ASC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying rules: %w", err)
	}
	defer rows.Close()

	var rules []entity.Rule
	for rows.Next() {
		rule, err := scanRuleRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		rules = append(rules, *rule)
	}

	return rules, rows.Err()
}

// SetActive activates or deactivates a rule
func (r *RulePostgres) SetActive(ctx context.Context, id string, active bool, now time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE automation_rules SET is_active = $2, updated_at = $3 WHERE id = $1`, id, active, now)
	if err != nil {
		return fmt.Errorf("setting rule active: %w", err)
	}
	return nil
}

// RecordRun adds batch counters in a single statement
func (r *RulePostgres) RecordRun(ctx context.Context, id string, delta entity.Stats, ranAt time.Time) error {
	query := `
		UPDATE automation_rules
		SET total_actions = total_actions + $2,
		    successful_actions = successful_actions + $3,
		    failed_actions = failed_actions + $4,
		    last_run_at = $5,
		    updated_at = $5
		WHERE id = $1
	`

	_, err := r.pool.Exec(ctx, query, id, delta.TotalActions, delta.SuccessfulActions, delta.FailedActions, ranAt)
	if err != nil {
		return fmt.Errorf("recording rule run: %w", err)
	}
	return nil
}

func scanRuleRow(row pgx.Row) (*entity.Rule, error) {
	var rule entity.Rule
	var criteria []byte

	err := row.Scan(
		&rule.ID,
		&rule.UserID,
		&rule.Name,
		&rule.Type,
		&criteria,
		&rule.MessageTemplate,
		&rule.DailyLimit,
		&rule.IsActive,
		&rule.Stats.TotalActions,
		&rule.Stats.SuccessfulActions,
		&rule.Stats.FailedActions,
		&rule.LastRunAt,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(criteria) > 0 {
		if err := json.Unmarshal(criteria, &rule.Criteria); err != nil {
			return nil, fmt.Errorf("decoding criteria: %w", err)
		}
	}

	return &rule, nil
}
