package entity

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

func at(day, hour int) time.Time {
	return time.Date(2026, 4, day, hour, 0, 0, 0, time.UTC)
}

func TestNextSlots(t *testing.T) {
	tests := []struct {
		name     string
		after    time.Time
		occupied bool
		n        int
		perDay   int
		want     []time.Time
	}{
		{
			name:   "rest of today then tomorrow",
			after:  at(1, 10),
			n:      4,
			perDay: 3,
			want:   []time.Time{at(1, 13), at(1, 17), at(2, 9), at(2, 13)},
		},
		{
			name:     "occupied day counts earlier slots",
			after:    at(1, 13),
			occupied: true,
			n:        2,
			perDay:   1,
			want:     []time.Time{at(2, 9), at(3, 9)},
		},
		{
			name:   "two per day",
			after:  at(1, 8),
			n:      3,
			perDay: 2,
			want:   []time.Time{at(1, 9), at(1, 13), at(2, 9)},
		},
		{
			name:   "per day above slot count is clamped",
			after:  at(1, 18),
			n:      3,
			perDay: 10,
			want:   []time.Time{at(2, 9), at(2, 13), at(2, 17)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextSlots(tt.after, tt.occupied, tt.n, tt.perDay)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("NextSlots() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHashtags(t *testing.T) {
	got := Hashtags("AI in Marketing", Audience{Industries: []string{"Technology"}})
	want := []string{"#AI", "#ArtificialIntelligence", "#Marketing", "#DigitalMarketing", "#TechIndustry"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Hashtags() = %v, want %v", got, want)
	}

	got = Hashtags("Sustainability", Audience{})
	if !reflect.DeepEqual(got, baseHashtags) {
		t.Errorf("generic theme should get base tags only, got %v", got)
	}
}

func TestOptimize(t *testing.T) {
	question := "Which tool do you use?"
	if got := Optimize(question, 0); got != question {
		t.Errorf("content with a question should be unchanged, got %q", got)
	}

	got := Optimize("Five lessons from shipping fast.", 1)
	if !strings.HasSuffix(got, callsToAction[1]) {
		t.Errorf("expected call to action appended, got %q", got)
	}
}

func TestCampaignValidate(t *testing.T) {
	start, end := at(1, 0), at(30, 0)
	valid := func() Campaign {
		return Campaign{UserID: "u1", Name: "Q2", Themes: []string{"AI"}, DailyPostLimit: 1, StartAt: &start, EndAt: &end}
	}

	tests := []struct {
		name   string
		mutate func(c *Campaign)
		want   error
	}{
		{"valid", func(c *Campaign) {}, nil},
		{"no user", func(c *Campaign) { c.UserID = "" }, ErrEmptyUserID},
		{"no name", func(c *Campaign) { c.Name = "" }, ErrEmptyName},
		{"no themes", func(c *Campaign) { c.Themes = nil }, ErrNoThemes},
		{"too many per day", func(c *Campaign) { c.DailyPostLimit = 4 }, ErrInvalidDailyPostLimit},
		{"end before start", func(c *Campaign) { c.EndAt = &start; c.StartAt = &end }, ErrInvalidDateRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			if err := c.Validate(); err != tt.want {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCanTransition(t *testing.T) {
	if !CanTransition(StatusDraft, StatusActive) {
		t.Error("draft -> active should be allowed")
	}
	if CanTransition(StatusCompleted, StatusActive) {
		t.Error("completed -> active should be rejected")
	}
	if !CanTransition(StatusCompleted, StatusArchived) {
		t.Error("completed -> archived should be allowed")
	}
}
