// Package clocktest provides a manually driven clock.Clock for deterministic
// timer tests.
package clocktest

import (
	"sync"
	"time"

	"github.com/cjeanneret/ThermoGo/internal/clock"
)

// Manual is a clock.Clock whose time only moves when Advance is called.
// Scheduled functions run synchronously on the goroutine calling Advance.
type Manual struct {
	mu    sync.Mutex
	now   time.Time
	tasks []*task
	seq   int
}

type task struct {
	m       *Manual
	id      int
	every   time.Duration
	next    time.Time
	fn      func()
	stopped bool
}

var _ clock.Clock = (*Manual)(nil)

// NewManual returns a clock frozen at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) Every(d time.Duration, fn func()) clock.Task {
	if d <= 0 {
		panic("clocktest: non-positive interval")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t := &task{m: m, id: m.seq, every: d, next: m.now.Add(d), fn: fn}
	m.tasks = append(m.tasks, t)
	return t
}

// Advance moves the clock forward by d, running every task that comes due, in
// due-time order (creation order on ties). A task stopped by an earlier
// callback in the same Advance does not run again.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	end := m.now.Add(d)
	m.mu.Unlock()

	for {
		m.mu.Lock()
		t := m.nextDue(end)
		if t == nil {
			m.now = end
			m.mu.Unlock()
			return
		}
		m.now = t.next
		t.next = t.next.Add(t.every)
		fn := t.fn
		m.mu.Unlock()

		fn()
	}
}

// Active returns the number of tasks that have not been stopped.
func (m *Manual) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

func (m *Manual) nextDue(end time.Time) *task {
	var best *task
	for _, t := range m.tasks {
		if t.next.After(end) {
			continue
		}
		if best == nil || t.next.Before(best.next) || (t.next.Equal(best.next) && t.id < best.id) {
			best = t
		}
	}
	return best
}

func (t *task) Stop() {
	m := t.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.stopped {
		return
	}
	t.stopped = true
	for i, other := range m.tasks {
		if other == t {
			m.tasks = append(m.tasks[:i], m.tasks[i+1:]...)
			break
		}
	}
}
