package dao

import (
	"context"
	"time"

	"github.com/vadim/linkpilot/internal/domain/rule/entity"
)

// RuleFilter contains filters for listing rules
type RuleFilter struct {
	UserID     string
	Types      []entity.RuleType
	ActiveOnly bool
}

// RuleRepository defines the interface for automation rule data access
type RuleRepository interface {
	// Create inserts a new rule
	Create(ctx context.Context, r *entity.Rule) error

	// GetByID retrieves a rule by ID, nil when absent
	GetByID(ctx context.Context, id string) (*entity.Rule, error)

	// Update writes the user-configurable fields
	Update(ctx context.Context, r *entity.Rule) error

	// List retrieves rules ordered by creation time
	List(ctx context.Context, filter RuleFilter) ([]entity.Rule, error)

	// SetActive activates or deactivates a rule
	SetActive(ctx context.Context, id string, active bool, now time.Time) error

	// RecordRun adds a batch's counters to the rule and sets last_run
	RecordRun(ctx context.Context, id string, delta entity.Stats, ranAt time.Time) error
}
