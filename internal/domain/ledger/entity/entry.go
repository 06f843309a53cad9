package entity

import (
	"errors"
	"time"
)

// ActionType is the kind of automation action performed against a target
type ActionType string

const (
	ActionConnect ActionType = "connect"
	ActionFollow  ActionType = "follow"
	ActionLike    ActionType = "like"
	ActionComment ActionType = "comment"
	ActionMessage ActionType = "message"
)

// ActionTypes lists every known action type in a stable order
var ActionTypes = []ActionType{ActionConnect, ActionFollow, ActionLike, ActionComment, ActionMessage}

// Valid reports whether t is a known action type
func (t ActionType) Valid() bool {
	switch t {
	case ActionConnect, ActionFollow, ActionLike, ActionComment, ActionMessage:
		return true
	default:
		return false
	}
}

// ParseActionType parses a string into an ActionType
func ParseActionType(s string) (ActionType, error) {
	t := ActionType(s)
	if !t.Valid() {
		return "", ErrInvalidActionType
	}
	return t, nil
}

// Outcome is the result of a single attempted action
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
)

// Entry is one immutable row of the action log
type Entry struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	RuleID      string     `json:"rule_id,omitempty"`
	ActionType  ActionType `json:"action_type"`
	TargetID    string     `json:"target_id"`
	TargetName  string     `json:"target_name"`
	Outcome     Outcome    `json:"outcome"`
	ErrorDetail string     `json:"error_detail,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Validate checks required fields before the entry is appended
func (e *Entry) Validate() error {
	if e.UserID == "" {
		return ErrEmptyUserID
	}
	if !e.ActionType.Valid() {
		return ErrInvalidActionType
	}
	if e.Outcome != OutcomeSuccess && e.Outcome != OutcomeFailed {
		return ErrInvalidOutcome
	}
	return nil
}

// DailyUsage is today's successful count for one action type against its limit
type DailyUsage struct {
	ActionType ActionType `json:"action_type"`
	Used       int        `json:"used"`
	Limit      int        `json:"limit"`
	Remaining  int        `json:"remaining"`
}

var (
	ErrEmptyUserID       = errors.New("user ID is required")
	ErrInvalidActionType = errors.New("invalid action type")
	ErrInvalidOutcome    = errors.New("invalid action outcome")
)
