package entity

import "errors"

// Domain errors for posts
var (
	// Validation errors
	ErrEmptyUserID         = errors.New("user ID is required")
	ErrEmptyContent        = errors.New("post content is required")
	ErrContentTooLong      = errors.New("post exceeds maximum length of 3000 characters")
	ErrScheduledTimeInPast = errors.New("scheduled time must be in the future")
	ErrInvalidStatus       = errors.New("invalid post status")

	// Business logic errors
	ErrPostNotFound      = errors.New("post not found")
	ErrPostNotEditable   = errors.New("post cannot be edited in current status")
	ErrInvalidTransition = errors.New("post status transition not allowed")
	ErrAlreadyClaimed    = errors.New("post is no longer scheduled")
)
