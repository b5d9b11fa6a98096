package assistant

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBackoffIsBounded(t *testing.T) {
	b := DefaultBackoff()
	want := []time.Duration{
		time.Second,
		1500 * time.Millisecond,
		2250 * time.Millisecond,
		3375 * time.Millisecond,
		5 * time.Second,
		5 * time.Second,
	}
	d := b.Initial
	for i, w := range want {
		if d != w {
			t.Fatalf("step %d: got %v want %v", i, d, w)
		}
		d = b.next(d)
	}
}

func TestBackoffNormalized(t *testing.T) {
	b := Backoff{Initial: 0, Max: 0, Multiplier: 0}.normalized()
	if b.Initial != time.Second || b.Max != time.Second || b.Multiplier != 1 || b.Timeout != 2*time.Minute {
		t.Fatalf("unexpected normalized backoff: %+v", b)
	}
}

func TestRetry(t *testing.T) {
	calls := 0
	err := retry(context.Background(), 3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return errors.New("boom")
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("retry: err=%v calls=%d", err, calls)
	}

	calls = 0
	err = retry(context.Background(), 2, time.Millisecond, func() error {
		calls++
		return errors.New("boom")
	})
	if err == nil || calls != 2 {
		t.Fatalf("expected exhausted retry, err=%v calls=%d", err, calls)
	}
}
