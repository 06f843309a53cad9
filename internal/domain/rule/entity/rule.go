package entity

import (
	"time"
	"unicode/utf8"

	ledger "github.com/vadim/linkpilot/internal/domain/ledger/entity"
)

// MaxConnectionNoteLength is LinkedIn's limit for invitation notes
const MaxConnectionNoteLength = 300

// RuleType is the kind of automation a rule performs
type RuleType string

const (
	RuleAutoConnect RuleType = "auto_connect"
	RuleAutoFollow  RuleType = "auto_follow"
	RuleAutoLike    RuleType = "auto_like"
	RuleAutoComment RuleType = "auto_comment"
	RuleAutoMessage RuleType = "auto_message"
)

// ParseRuleType parses a string into a RuleType
func ParseRuleType(s string) (RuleType, error) {
	t := RuleType(s)
	if _, ok := ruleActions[t]; !ok {
		return "", ErrInvalidRuleType
	}
	return t, nil
}

var ruleActions = map[RuleType]ledger.ActionType{
	RuleAutoConnect: ledger.ActionConnect,
	RuleAutoFollow:  ledger.ActionFollow,
	RuleAutoLike:    ledger.ActionLike,
	RuleAutoComment: ledger.ActionComment,
	RuleAutoMessage: ledger.ActionMessage,
}

// ActionType returns the ledger action type this rule produces
func (t RuleType) ActionType() ledger.ActionType {
	return ruleActions[t]
}

// RequiresTemplate reports whether the rule sends text to the target
func (t RuleType) RequiresTemplate() bool {
	return t == RuleAutoComment || t == RuleAutoMessage
}

// IsEngagement reports whether the rule reacts to content (likes, comments)
// rather than reaching out to people
func (t RuleType) IsEngagement() bool {
	return t == RuleAutoLike || t == RuleAutoComment
}

// TargetCriteria selects which profiles a rule acts on
type TargetCriteria struct {
	JobTitles    []string `json:"job_titles,omitempty"`
	Industries   []string `json:"industries,omitempty"`
	CompanySizes []string `json:"company_sizes,omitempty"`
	Keywords     []string `json:"keywords,omitempty"`
	Locations    []string `json:"locations,omitempty"`
	SeniorOnly   bool     `json:"senior_only,omitempty"`
}

// IsEmpty reports whether no filter is set
func (c TargetCriteria) IsEmpty() bool {
	return len(c.JobTitles) == 0 && len(c.Industries) == 0 && len(c.CompanySizes) == 0 &&
		len(c.Keywords) == 0 && len(c.Locations) == 0
}

// Stats are the cumulative counters of a rule
type Stats struct {
	TotalActions      int `json:"total_actions"`
	SuccessfulActions int `json:"successful_actions"`
	FailedActions     int `json:"failed_actions"`
}

// SuccessRate is successful / total, 0 when nothing ran yet
func (s Stats) SuccessRate() float64 {
	if s.TotalActions == 0 {
		return 0
	}
	return float64(s.SuccessfulActions) / float64(s.TotalActions)
}

// Rule is a configured, recurring automation policy
type Rule struct {
	ID              string         `json:"id"`
	UserID          string         `json:"user_id"`
	Name            string         `json:"name"`
	Type            RuleType       `json:"rule_type"`
	Criteria        TargetCriteria `json:"target_criteria"`
	MessageTemplate string         `json:"message_template,omitempty"`
	DailyLimit      int            `json:"daily_limit"`
	IsActive        bool           `json:"is_active"`
	Stats           Stats          `json:"stats"`
	LastRunAt       *time.Time     `json:"last_run_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// Validate checks the rule configuration for its type.
// maxDaily is the global limit for the rule's action type.
func (r *Rule) Validate(maxDaily int) error {
	if r.UserID == "" {
		return ErrEmptyUserID
	}
	if r.Name == "" {
		return ErrEmptyName
	}
	if _, ok := ruleActions[r.Type]; !ok {
		return ErrInvalidRuleType
	}
	if r.DailyLimit < 1 || (maxDaily > 0 && r.DailyLimit > maxDaily) {
		return ErrInvalidDailyLimit
	}
	if r.Type.RequiresTemplate() && r.MessageTemplate == "" {
		return ErrTemplateRequired
	}
	if r.Type == RuleAutoConnect && utf8.RuneCountInString(r.MessageTemplate) > MaxConnectionNoteLength {
		return ErrTemplateTooLong
	}
	return nil
}

// Target is a LinkedIn profile (or the author of a post) a rule can act on
type Target struct {
	ID         string `json:"id"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Headline   string `json:"headline"`
	Company    string `json:"company"`
	Industry   string `json:"industry"`
	Location   string `json:"location"`
	ProfileURL string `json:"profile_url"`
}

// DisplayName is "First Last"
func (t Target) DisplayName() string {
	switch {
	case t.FirstName == "":
		return t.LastName
	case t.LastName == "":
		return t.FirstName
	default:
		return t.FirstName + " " + t.LastName
	}
}
