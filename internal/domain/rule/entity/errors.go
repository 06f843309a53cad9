package entity

import "errors"

// Domain errors for automation rules
var (
	// Validation errors
	ErrEmptyUserID       = errors.New("user ID is required")
	ErrEmptyName         = errors.New("rule name is required")
	ErrInvalidRuleType   = errors.New("invalid rule type")
	ErrInvalidDailyLimit = errors.New("daily limit must be between 1 and the action type limit")
	ErrTemplateRequired  = errors.New("message template is required for this rule type")
	ErrTemplateTooLong   = errors.New("connection note exceeds 300 characters")
	ErrUnknownCategory   = errors.New("unknown target category")

	// Business logic errors
	ErrRuleNotFound = errors.New("automation rule not found")
	ErrRuleInactive = errors.New("automation rule is not active")
)
