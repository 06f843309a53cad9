package quota

import (
	"context"
	"errors"
	"testing"

	"github.com/vadim/linkpilot/internal/domain/ledger/entity"
)

type fakeCounter struct {
	counts map[entity.ActionType]int
	err    error
}

func (f *fakeCounter) CountToday(ctx context.Context, userID string, actionType entity.ActionType) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.counts[actionType], nil
}

func TestAllow(t *testing.T) {
	counter := &fakeCounter{counts: map[entity.ActionType]int{}}
	l := New(counter, Limits{entity.ActionMessage: 3})
	ctx := context.Background()

	tests := []struct {
		name      string
		used      int
		requested int
		want      bool
	}{
		{"empty", 0, 1, true},
		{"batch fits", 0, 3, true},
		{"batch too large", 0, 4, false},
		{"last slot", 2, 1, true},
		{"at limit", 3, 1, false},
		{"over limit", 5, 1, false},
		{"zero requested counts as one", 3, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter.counts[entity.ActionMessage] = tt.used
			got, err := l.Allow(ctx, "u1", entity.ActionMessage, tt.requested)
			if err != nil {
				t.Fatalf("Allow() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Allow(used=%d, requested=%d) = %v, want %v", tt.used, tt.requested, got, tt.want)
			}
		})
	}
}

func TestDefaults(t *testing.T) {
	l := New(&fakeCounter{}, nil)

	want := map[entity.ActionType]int{
		entity.ActionConnect: 100,
		entity.ActionFollow:  150,
		entity.ActionLike:    300,
		entity.ActionComment: 50,
		entity.ActionMessage: 20,
	}
	for typ, n := range want {
		if got := l.Limit(typ); got != n {
			t.Errorf("Limit(%s) = %d, want %d", typ, got, n)
		}
	}
}

func TestRemaining_RuleCeiling(t *testing.T) {
	counter := &fakeCounter{counts: map[entity.ActionType]int{entity.ActionFollow: 2}}
	l := New(counter, nil)

	got, err := l.Remaining(context.Background(), "u1", entity.ActionFollow, 5)
	if err != nil {
		t.Fatalf("Remaining() error: %v", err)
	}
	if got != 3 {
		t.Errorf("expected 3 remaining under a ceiling of 5, got %d", got)
	}

	ok, err := l.AllowWithin(context.Background(), "u1", entity.ActionFollow, 4, 5)
	if err != nil {
		t.Fatalf("AllowWithin() error: %v", err)
	}
	if ok {
		t.Error("expected 2+4 > 5 to be denied")
	}

	got, err = l.Remaining(context.Background(), "u1", entity.ActionFollow, 1000)
	if err != nil {
		t.Fatalf("Remaining() error: %v", err)
	}
	if got != 148 {
		t.Errorf("ceiling above global limit should be ignored, got %d", got)
	}
}

func TestAllow_FailsClosed(t *testing.T) {
	l := New(&fakeCounter{err: errors.New("db down")}, nil)

	ok, err := l.Allow(context.Background(), "u1", entity.ActionLike, 1)
	if err == nil {
		t.Fatal("expected error")
	}
	if ok {
		t.Error("expected deny on counting failure")
	}
}

func TestAllow_UnknownType(t *testing.T) {
	l := New(&fakeCounter{}, nil)
	if _, err := l.Allow(context.Background(), "u1", "poke", 1); !errors.Is(err, entity.ErrInvalidActionType) {
		t.Errorf("expected ErrInvalidActionType, got %v", err)
	}
}
