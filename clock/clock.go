// Package clock provides the tick sources pacing frame production.
package clock

import (
	"sync"
	"time"
)

// Clock delivers monotonically increasing tick numbers.
type Clock interface {
	Tick() <-chan int64
	Close() error
}

// TickerClock ticks at a fixed interval.
type TickerClock struct {
	interval time.Duration

	done      chan struct{}
	closeOnce sync.Once
}

func NewTickerClock(interval time.Duration) *TickerClock {
	return &TickerClock{
		interval: interval,
		done:     make(chan struct{}),
	}
}

// NewFrameRateClock ticks fps times per second.
func NewFrameRateClock(fps int) *TickerClock {
	if fps <= 0 {
		fps = 30
	}
	return NewTickerClock(time.Second / time.Duration(fps))
}

func (c *TickerClock) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	return nil
}

// Tick starts a new tick stream, closed once the clock is closed. Slow readers
// miss ticks rather than queue them.
func (c *TickerClock) Tick() <-chan int64 {
	ch := make(chan int64)

	go func() {
		defer close(ch)

		t := time.NewTicker(c.interval)
		defer t.Stop()

		x := int64(0)
		for {
			select {
			case <-c.done:
				return
			case <-t.C:
			}

			select {
			case ch <- x:
				x++
			case <-c.done:
				return
			}
		}
	}()

	return ch
}

// ManualClock ticks when told to.
type ManualClock struct {
	ch   chan int64
	next int64
	mu   sync.Mutex
}

func NewManualClock() *ManualClock {
	return &ManualClock{ch: make(chan int64)}
}

func (c *ManualClock) Tick() <-chan int64 {
	return c.ch
}

// Advance blocks until the tick has been received.
func (c *ManualClock) Advance() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ch <- c.next
	c.next++
}

func (c *ManualClock) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	close(c.ch)
	return nil
}
