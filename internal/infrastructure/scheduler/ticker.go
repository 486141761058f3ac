package scheduler

import (
	"context"
	"sync"
	"time"

	"HotspotLite/internal/ports"
)

// TickerScheduler runs a job on a fixed interval using time.Ticker.
type TickerScheduler struct {
	interval  time.Duration
	immediate bool

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

var _ ports.Scheduler = (*TickerScheduler)(nil)

// NewTickerScheduler builds a scheduler. When immediate is set the job also
// runs once right after Start.
func NewTickerScheduler(interval time.Duration, immediate bool) *TickerScheduler {
	return &TickerScheduler{interval: interval, immediate: immediate}
}

// Start begins ticking. Calling Start on a running scheduler is a no-op.
func (c *TickerScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil || c.interval <= 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop != nil {
		return nil
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	c.stop, c.done = stop, done

	go func() {
		defer close(done)
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		if c.immediate {
			job(time.Now())
		}
		for {
			select {
			case t := <-ticker.C:
				job(t)
			case <-ctx.Done():
				return
			case <-stop:
				return
			}
		}
	}()

	return nil
}

// Stop halts the ticker goroutine and waits for a running job to return or
// for ctx to expire.
func (c *TickerScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	stop, done := c.stop, c.done
	c.stop, c.done = nil, nil
	c.mu.Unlock()

	if stop == nil {
		return nil
	}
	close(stop)

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
