package entity

import (
	"time"
	"unicode/utf8"
)

// MaxContentLength is the LinkedIn limit for post text
const MaxContentLength = 3000

// PublishingTimeoutReason is recorded on posts failed by the stuck-state health check
const PublishingTimeoutReason = "publishing timeout"

// Status represents the current state of a post
type Status string

const (
	StatusDraft      Status = "draft"
	StatusScheduled  Status = "scheduled"
	StatusPublishing Status = "publishing"
	StatusPublished  Status = "published"
	StatusFailed     Status = "failed"
)

// ParseStatus parses a string into a Status
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusDraft, StatusScheduled, StatusPublishing, StatusPublished, StatusFailed:
		return st, nil
	default:
		return "", ErrInvalidStatus
	}
}

// Metrics holds engagement numbers reported by LinkedIn
type Metrics struct {
	Likes       int `json:"likes"`
	Comments    int `json:"comments"`
	Shares      int `json:"shares"`
	Impressions int `json:"impressions"`
}

// Engagement is likes + comments + shares
func (m Metrics) Engagement() int {
	return m.Likes + m.Comments + m.Shares
}

// Post is a LinkedIn post moving through draft → scheduled → publishing → published|failed
type Post struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	CampaignID     string     `json:"campaign_id,omitempty"`
	Content        string     `json:"content"`
	Hashtags       []string   `json:"hashtags"`
	MediaURLs      []string   `json:"media_urls"`
	Status         Status     `json:"status"`
	ScheduledAt    *time.Time `json:"scheduled_at,omitempty"`
	PublishedAt    *time.Time `json:"published_at,omitempty"`
	ExternalPostID string     `json:"external_post_id,omitempty"`
	ExternalURL    string     `json:"external_url,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	Metrics        Metrics    `json:"metrics"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// IsEditable returns true if content and schedule can still change
func (p *Post) IsEditable() bool {
	return p.Status == StatusDraft || p.Status == StatusScheduled || p.Status == StatusFailed
}

// IsDue returns true if the post is scheduled and its time has come
func (p *Post) IsDue(now time.Time) bool {
	return p.Status == StatusScheduled && p.ScheduledAt != nil && !p.ScheduledAt.After(now)
}

// FullText is the content followed by its hashtags
func (p *Post) FullText() string {
	if len(p.Hashtags) == 0 {
		return p.Content
	}
	text := p.Content + "\n\n"
	for i, tag := range p.Hashtags {
		if i > 0 {
			text += " "
		}
		text += tag
	}
	return text
}

// Validate validates the post content
func (p *Post) Validate() error {
	if p.UserID == "" {
		return ErrEmptyUserID
	}
	if p.Content == "" {
		return ErrEmptyContent
	}
	if utf8.RuneCountInString(p.FullText()) > MaxContentLength {
		return ErrContentTooLong
	}
	return nil
}

// CanTransition reports whether the state machine allows from → to
func CanTransition(from, to Status) bool {
	switch from {
	case StatusDraft:
		return to == StatusScheduled
	case StatusScheduled:
		return to == StatusPublishing || to == StatusDraft
	case StatusPublishing:
		return to == StatusPublished || to == StatusFailed
	case StatusFailed:
		// explicit re-scheduling only
		return to == StatusScheduled
	default:
		return false
	}
}
