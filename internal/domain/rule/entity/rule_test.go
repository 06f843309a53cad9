package entity

import (
	"strings"
	"testing"
)

func TestRender(t *testing.T) {
	target := Target{FirstName: "Ada", LastName: "Lovelace", Industry: "Software", Company: "Analytical"}

	tests := []struct {
		name     string
		template string
		want     string
	}{
		{"first name and industry", "Hi {first_name}, loved your work in {industry}!", "Hi Ada, loved your work in Software!"},
		{"full name", "Hello {name}", "Hello Ada Lovelace"},
		{"missing attribute renders empty", "Hi {first_name} from {location}", "Hi Ada from"},
		{"unknown placeholder renders empty", "Hi {nickname}!", "Hi !"},
		{"no placeholders", "Let's connect", "Let's connect"},
		{"empty template", "", ""},
		{"repeated placeholder", "{first_name} {first_name}", "Ada Ada"},
		{"uppercase braces left alone", "{FIRST_NAME}", "{FIRST_NAME}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Render(tt.template, target); got != tt.want {
				t.Errorf("Render(%q) = %q, want %q", tt.template, got, tt.want)
			}
		})
	}
}

func TestRuleValidate(t *testing.T) {
	valid := func() Rule {
		return Rule{UserID: "u1", Name: "follow ctos", Type: RuleAutoFollow, DailyLimit: 10}
	}

	tests := []struct {
		name   string
		mutate func(r *Rule)
		want   error
	}{
		{"valid", func(r *Rule) {}, nil},
		{"no user", func(r *Rule) { r.UserID = "" }, ErrEmptyUserID},
		{"no name", func(r *Rule) { r.Name = "" }, ErrEmptyName},
		{"bad type", func(r *Rule) { r.Type = "auto_poke" }, ErrInvalidRuleType},
		{"zero limit", func(r *Rule) { r.DailyLimit = 0 }, ErrInvalidDailyLimit},
		{"limit above global", func(r *Rule) { r.DailyLimit = 151 }, ErrInvalidDailyLimit},
		{"message without template", func(r *Rule) { r.Type = RuleAutoMessage; r.DailyLimit = 5 }, ErrTemplateRequired},
		{"connect note too long", func(r *Rule) {
			r.Type = RuleAutoConnect
			r.MessageTemplate = strings.Repeat("x", 301)
		}, ErrTemplateTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid()
			tt.mutate(&r)
			if err := r.Validate(150); err != tt.want {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRuleTypeActionType(t *testing.T) {
	if RuleAutoFollow.ActionType() != "follow" {
		t.Errorf("auto_follow should map to follow, got %s", RuleAutoFollow.ActionType())
	}
	if RuleAutoConnect.ActionType() != "connect" {
		t.Errorf("auto_connect should map to connect, got %s", RuleAutoConnect.ActionType())
	}
	if _, err := ParseRuleType("auto_like"); err != nil {
		t.Errorf("ParseRuleType(auto_like) error: %v", err)
	}
}

func TestIsSenior(t *testing.T) {
	tests := []struct {
		headline string
		want     bool
	}{
		{"Co-Founder & CEO at Acme", true},
		{"VP, Engineering", true},
		{"Managing Director | Fintech", true},
		{"Cofounder of a stealth startup", true},
		{"Junior Developer", false},
		{"Doctor of Medicine", false},
		{"Independent Contractor", false},
		{"Building Inspector", false},
		{"MVP builder", false},
		{"Partnerships Manager", false},
	}

	for _, tt := range tests {
		if got := (Target{Headline: tt.headline}).IsSenior(); got != tt.want {
			t.Errorf("IsSenior(%q) = %v, want %v", tt.headline, got, tt.want)
		}
	}
}

func TestCriteriaForCategory(t *testing.T) {
	c, err := CriteriaForCategory(CategoryCTOs)
	if err != nil {
		t.Fatalf("CriteriaForCategory() error: %v", err)
	}
	c.JobTitles[0] = "mutated"

	again, _ := CriteriaForCategory(CategoryCTOs)
	if again.JobTitles[0] == "mutated" {
		t.Error("preset must be copied")
	}

	if _, err := CriteriaForCategory("astronauts"); err != ErrUnknownCategory {
		t.Errorf("expected ErrUnknownCategory, got %v", err)
	}
	if len(Categories()) != 6 {
		t.Errorf("expected 6 categories, got %d", len(Categories()))
	}
}
