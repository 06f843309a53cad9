package scheduler

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Schedule decides when a task runs
type Schedule interface {
	// First returns the first due time for a loop started at now
	First(now time.Time) time.Time
	// Next returns the due time following a run that was due at prev
	Next(prev time.Time) time.Time
	String() string
}

type interval time.Duration

// Every runs a task immediately on start and then every d
func Every(d time.Duration) Schedule {
	if d <= 0 {
		panic("scheduler: interval must be positive")
	}
	return interval(d)
}

func (i interval) First(now time.Time) time.Time { return now }
func (i interval) Next(prev time.Time) time.Time { return prev.Add(time.Duration(i)) }
func (i interval) String() string                { return "every " + time.Duration(i).String() }

// TimeOfDay is a wall-clock time in UTC
type TimeOfDay struct {
	Hour   int
	Minute int
}

// At builds a TimeOfDay
func At(hour, minute int) TimeOfDay {
	return TimeOfDay{Hour: hour, Minute: minute}
}

// ParseTimeOfDay parses "HH:MM"
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return At(t.Hour(), t.Minute()), nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func (t TimeOfDay) offset() time.Duration {
	return time.Duration(t.Hour)*time.Hour + time.Duration(t.Minute)*time.Minute
}

type daily []TimeOfDay

// DailyAt runs a task every day at the given UTC times
func DailyAt(times ...TimeOfDay) Schedule {
	if len(times) == 0 {
		panic("scheduler: DailyAt needs at least one time")
	}
	d := append(daily(nil), times...)
	sort.Slice(d, func(i, j int) bool { return d[i].offset() < d[j].offset() })
	return d
}

func (d daily) First(now time.Time) time.Time { return d.after(now, true) }
func (d daily) Next(prev time.Time) time.Time { return d.after(prev, false) }

func (d daily) String() string {
	parts := make([]string, len(d))
	for i, t := range d {
		parts[i] = t.String()
	}
	return "daily at " + strings.Join(parts, ", ") + " UTC"
}

// after returns the first configured time after t (or at t when inclusive)
func (d daily) after(t time.Time, inclusive bool) time.Time {
	t = t.UTC()
	y, m, dd := t.Date()
	midnight := time.Date(y, m, dd, 0, 0, 0, 0, time.UTC)

	for day := 0; day < 2; day++ {
		base := midnight.AddDate(0, 0, day)
		for _, tod := range d {
			at := base.Add(tod.offset())
			if at.After(t) || (inclusive && at.Equal(t)) {
				return at
			}
		}
	}
	// unreachable: tomorrow always has a later time
	return midnight.AddDate(0, 0, 1).Add(d[0].offset())
}
