package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDoRetriesTransientFailures(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), Policy{MaxAttempts: 3, Step: time.Millisecond}, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("connection reset")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestDoStopsAfterMaxAttempts(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), Policy{MaxAttempts: 2, Step: time.Millisecond}, func() error {
		attempts++
		return errors.New("timeout")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
}

func TestDoDoesNotRetryPermanentErrors(t *testing.T) {
	decodeErr := errors.New("bad payload")
	attempts := 0
	err := Do(context.Background(), Policy{MaxAttempts: 5, Step: time.Millisecond}, func() error {
		attempts++
		return Permanent(decodeErr)
	})
	if !errors.Is(err, decodeErr) {
		t.Fatalf("expected decode error, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestLinearBackOffGrows(t *testing.T) {
	b := &linearBackOff{step: time.Second}
	if d := b.NextBackOff(); d != time.Second {
		t.Errorf("expected 1s, got %s", d)
	}
	if d := b.NextBackOff(); d != 2*time.Second {
		t.Errorf("expected 2s, got %s", d)
	}
	b.Reset()
	if d := b.NextBackOff(); d != time.Second {
		t.Errorf("expected 1s after reset, got %s", d)
	}
}

func TestDoValueReturnsResult(t *testing.T) {
	value, err := DoValue(context.Background(), Policy{MaxAttempts: 1}, func() (int, error) {
		return 42, nil
	})
	if err != nil || value != 42 {
		t.Errorf("expected 42, got %d (%v)", value, err)
	}
}

func TestCheckStatus(t *testing.T) {
	if err := CheckStatus(200, ""); err != nil {
		t.Fatalf("expected nil for 200, got %v", err)
	}

	attempts := 0
	_ = Do(context.Background(), Policy{MaxAttempts: 3, Step: time.Millisecond}, func() error {
		attempts++
		return CheckStatus(404, "not found")
	})
	if attempts != 1 {
		t.Errorf("expected 404 not to be retried, got %d attempts", attempts)
	}

	attempts = 0
	err := Do(context.Background(), Policy{MaxAttempts: 3, Step: time.Millisecond}, func() error {
		attempts++
		return CheckStatus(429, "")
	})
	if attempts != 3 {
		t.Errorf("expected 429 to be retried, got %d attempts", attempts)
	}
	var status *StatusError
	if !errors.As(err, &status) || status.Code != 429 {
		t.Errorf("expected status error 429, got %v", err)
	}
}
