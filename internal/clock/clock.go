package clock

import (
	"sync"
	"sync/atomic"
	"time"
)

// Task is a handle on a scheduled repeating function.
type Task interface {
	// Stop cancels the task. It is idempotent and safe to call from inside
	// the scheduled function.
	Stop()
}

// Clock is the time source and scheduler used by the frame feed and the
// capture controller. Tests substitute clocktest.Manual.
type Clock interface {
	Now() time.Time
	// Every invokes fn every d until the returned Task is stopped.
	// The first invocation happens after d, not immediately.
	Every(d time.Duration, fn func()) Task
}

// Real is a Clock backed by the runtime timers.
type Real struct{}

// NewReal returns the wall-clock implementation.
func NewReal() Real {
	return Real{}
}

func (Real) Now() time.Time {
	return time.Now()
}

func (Real) Every(d time.Duration, fn func()) Task {
	t := &tickerTask{
		ticker: time.NewTicker(d),
		done:   make(chan struct{}),
		fn:     fn,
	}
	go t.loop()
	return t
}

// tickerTask runs fn on its own goroutine. A tick that was already dequeued
// when Stop is called can still be running; callers that need a hard cut-off
// check their own state inside fn (see capture.Controller).
type tickerTask struct {
	stopped atomic.Bool
	once    sync.Once
	ticker  *time.Ticker
	done    chan struct{}
	fn      func()
}

func (t *tickerTask) loop() {
	for {
		select {
		case <-t.done:
			return
		case <-t.ticker.C:
			if t.stopped.Load() {
				return
			}
			t.fn()
		}
	}
}

func (t *tickerTask) Stop() {
	t.once.Do(func() {
		t.stopped.Store(true)
		t.ticker.Stop()
		close(t.done)
	})
}
