package assistant

import (
	"context"
	"time"
)

// Backoff bounds how a run is polled.
type Backoff struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	// Timeout caps the total wait for one run.
	Timeout time.Duration
}

func DefaultBackoff() Backoff {
	return Backoff{
		Initial:    time.Second,
		Max:        5 * time.Second,
		Multiplier: 1.5,
		Timeout:    2 * time.Minute,
	}
}

func (b Backoff) normalized() Backoff {
	def := DefaultBackoff()
	if b.Initial <= 0 {
		b.Initial = def.Initial
	}
	if b.Max < b.Initial {
		b.Max = b.Initial
	}
	if b.Multiplier < 1 {
		b.Multiplier = 1
	}
	if b.Timeout <= 0 {
		b.Timeout = def.Timeout
	}
	return b
}

func (b Backoff) next(d time.Duration) time.Duration {
	n := time.Duration(float64(d) * b.Multiplier)
	if n > b.Max {
		return b.Max
	}
	return n
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// retry runs fn up to attempts times with doubling delays.
func retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		if serr := sleepCtx(ctx, delay*time.Duration(1<<i)); serr != nil {
			return err
		}
	}
	return err
}
