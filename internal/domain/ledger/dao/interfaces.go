package dao

import (
	"context"
	"time"

	"github.com/vadim/linkpilot/internal/domain/ledger/entity"
)

// EntryFilter contains filters for listing action log entries
type EntryFilter struct {
	UserID     string
	RuleID     string
	ActionType *entity.ActionType
	Since      *time.Time
}

// ListOptions contains pagination options
type ListOptions struct {
	Limit  int
	Offset int
}

// EntryRepository is the append-only store behind the action ledger
type EntryRepository interface {
	// Append inserts a new entry. Entries are never updated.
	Append(ctx context.Context, e *entity.Entry) error

	// CountSuccessSince counts successful entries of one type created at or after since
	CountSuccessSince(ctx context.Context, userID string, actionType entity.ActionType, since time.Time) (int, error)

	// List returns entries newest first
	List(ctx context.Context, filter EntryFilter, opts ListOptions) ([]entity.Entry, error)

	// DeleteBefore removes entries created before cutoff (retention sweep)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
