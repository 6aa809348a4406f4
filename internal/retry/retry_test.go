package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastConfig(attempts int) Config {
	cfg := DefaultConfig()
	cfg.MaxAttempts = attempts
	cfg.InitialDelay = time.Millisecond
	cfg.MaxDelay = 2 * time.Millisecond
	return cfg
}

func TestIsRetryableError(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil", nil, false},
		{"refused", errors.New("dial tcp 127.0.0.1:9000: connect: Connection Refused"), true},
		{"postgres starting", errors.New("pq: the database system is starting up"), true},
		{"sqlite locked", errors.New("database is locked (5) (SQLITE_BUSY)"), true},
		{"syntax", errors.New("code: 62, message: Syntax error"), false},
		{"auth", errors.New("pq: password authentication failed"), false},
		{"cancelled", context.Canceled, false},
	}
	for _, tt := range tests {
		if got := IsRetryableError(tt.err, cfg); got != tt.expected {
			t.Errorf("IsRetryableError(%s) = %v, want %v", tt.name, got, tt.expected)
		}
	}
}

func TestDo_RetriesTransientErrors(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(3), func() error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDo_StopsOnPermanentError(t *testing.T) {
	calls := 0
	permanent := errors.New("pq: relation does not exist")
	err := Do(context.Background(), fastConfig(5), func() error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("Do() error = %v, want %v", err, permanent)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDoWithResult_GivesUp(t *testing.T) {
	calls := 0
	_, err := DoWithResult(context.Background(), fastConfig(2), func() (int, error) {
		calls++
		return 0, errors.New("i/o timeout")
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, fastConfig(3), func() error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do() error = %v, want context.Canceled", err)
	}
}

func TestFromMillis(t *testing.T) {
	cfg := FromMillis(7, 50, 0)
	if cfg.MaxAttempts != 7 || cfg.InitialDelay != 50*time.Millisecond || cfg.MaxDelay != DefaultConfig().MaxDelay {
		t.Errorf("FromMillis() = %+v", cfg)
	}
}
