package entity

import (
	"time"
)

// Status represents the lifecycle state of a campaign
type Status string

const (
	StatusDraft     Status = "draft"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusArchived  Status = "archived"
)

// ParseStatus parses a string into a Status
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusDraft, StatusActive, StatusCompleted, StatusFailed, StatusArchived:
		return Status(s), nil
	default:
		return "", ErrInvalidStatus
	}
}

var transitions = map[Status][]Status{
	StatusDraft:     {StatusActive},
	StatusActive:    {StatusCompleted, StatusFailed},
	StatusCompleted: {StatusArchived},
	StatusFailed:    {StatusArchived},
}

// CanTransition reports whether a campaign may move from one status to another
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Audience describes who the campaign content is written for
type Audience struct {
	Industries []string `json:"industries,omitempty"`
	JobTitles  []string `json:"job_titles,omitempty"`
	Locations  []string `json:"locations,omitempty"`
}

// PrimaryIndustry is the first industry, "Business" when none is set
func (a Audience) PrimaryIndustry() string {
	if len(a.Industries) == 0 {
		return "Business"
	}
	return a.Industries[0]
}

// Metrics are aggregated from the campaign's posts
type Metrics struct {
	PostsCount      int   `json:"posts_count"`
	TotalReach      int64 `json:"total_reach"`
	TotalEngagement int64 `json:"total_engagement"`
}

// Campaign groups generated posts around a set of themes for a time window
type Campaign struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	Name           string     `json:"name"`
	Description    string     `json:"description,omitempty"`
	Status         Status     `json:"status"`
	StartAt        *time.Time `json:"start_at,omitempty"`
	EndAt          *time.Time `json:"end_at,omitempty"`
	Audience       Audience   `json:"audience"`
	Themes         []string   `json:"themes"`
	DailyPostLimit int        `json:"daily_post_limit"`
	Metrics        Metrics    `json:"metrics"`
	StatusReason   string     `json:"status_reason,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Validate checks required fields
func (c *Campaign) Validate() error {
	if c.UserID == "" {
		return ErrEmptyUserID
	}
	if c.Name == "" {
		return ErrEmptyName
	}
	if len(c.Themes) == 0 {
		return ErrNoThemes
	}
	if c.DailyPostLimit < 1 || c.DailyPostLimit > len(PostingSlots) {
		return ErrInvalidDailyPostLimit
	}
	if c.StartAt != nil && c.EndAt != nil && !c.EndAt.After(*c.StartAt) {
		return ErrInvalidDateRange
	}
	return nil
}

// HasEnded reports whether the campaign window is over at now
func (c *Campaign) HasEnded(now time.Time) bool {
	return c.EndAt != nil && !now.Before(*c.EndAt)
}

// HasStarted reports whether the campaign window has opened at now
func (c *Campaign) HasStarted(now time.Time) bool {
	return c.StartAt == nil || !now.Before(*c.StartAt)
}

// Theme returns the theme used for the i-th generated post
func (c *Campaign) Theme(i int) string {
	return c.Themes[i%len(c.Themes)]
}
