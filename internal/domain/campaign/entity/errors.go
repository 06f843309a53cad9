package entity

import "errors"

// Domain errors for campaigns
var (
	// Validation errors
	ErrEmptyUserID           = errors.New("user ID is required")
	ErrEmptyName             = errors.New("campaign name is required")
	ErrNoThemes              = errors.New("at least one content theme is required")
	ErrInvalidDailyPostLimit = errors.New("daily post limit must be between 1 and 3")
	ErrInvalidDateRange      = errors.New("campaign must end after it starts")
	ErrInvalidStatus         = errors.New("invalid campaign status")

	// Business logic errors
	ErrCampaignNotFound  = errors.New("campaign not found")
	ErrInvalidTransition = errors.New("invalid campaign status transition")
	ErrCampaignEnded     = errors.New("campaign end time has already passed")
)
