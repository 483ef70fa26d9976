package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestDoSucceedsOnThirdAttempt(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), 3, func(_ context.Context, attempt int) (string, error) {
		calls++
		if attempt < 3 {
			return "", fmt.Errorf("attempt %d failed", attempt)
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if got != "ok" || calls != 3 {
		t.Errorf("expected ok after 3 calls, got %q after %d", got, calls)
	}
}

func TestDoSurfacesLastError(t *testing.T) {
	last := errors.New("third")
	calls := 0
	_, err := Do(context.Background(), 3, func(_ context.Context, attempt int) (int, error) {
		calls++
		if attempt == 3 {
			return 0, last
		}
		return 0, errors.New("earlier")
	})
	if !errors.Is(err, last) {
		t.Fatalf("expected last error to be wrapped, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", calls)
	}
}

func TestDoRejectsZeroAttempts(t *testing.T) {
	_, err := Do(context.Background(), 0, func(context.Context, int) (int, error) {
		t.Fatal("op must not run")
		return 0, nil
	})
	if !errors.Is(err, ErrNoAttempts) {
		t.Errorf("expected ErrNoAttempts, got %v", err)
	}
}

func TestDoStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Do(ctx, 3, func(context.Context, int) (int, error) {
		calls++
		cancel()
		return 0, errors.New("fail")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 attempt before cancellation, got %d", calls)
	}
}
