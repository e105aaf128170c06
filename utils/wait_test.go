package utils

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWaitForConditionBecomesTrue(t *testing.T) {
	calls := 0
	err := WaitFor(context.Background(), time.Second, time.Millisecond,
		func(context.Context) (bool, error) {
			calls++
			return calls >= 3, nil
		})

	if err != nil {
		t.Fatalf("WaitFor returned error: %v", err)
	}
	if calls != 3 {
		t.Errorf("cond called %d times, want 3", calls)
	}
}

func TestWaitForTimeout(t *testing.T) {
	err := WaitFor(context.Background(), 50*time.Millisecond, 10*time.Millisecond,
		func(context.Context) (bool, error) { return false, nil })

	if !errors.Is(err, ErrWaitTimeout) {
		t.Errorf("got %v, want ErrWaitTimeout", err)
	}
}

func TestWaitForCondError(t *testing.T) {
	boom := errors.New("boom")
	err := WaitFor(context.Background(), time.Second, time.Millisecond,
		func(context.Context) (bool, error) { return false, boom })

	if !errors.Is(err, boom) {
		t.Errorf("got %v, want the condition's own error", err)
	}
}

func TestWaitForContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WaitFor(ctx, time.Second, 10*time.Millisecond,
		func(context.Context) (bool, error) { return false, nil })

	if !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

func TestTitleCase(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"GOODYEAR", "Goodyear"},
		{"michelin", "Michelin"},
		{"all season", "All Season"},
		{"  winter ", "Winter"},
		{"n-blue hd", "N-Blue Hd"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := TitleCase(tt.in); got != tt.want {
			t.Errorf("TitleCase(%q) = %q; want %q", tt.in, got, tt.want)
		}
	}
}
