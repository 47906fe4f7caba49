// Package gallery keeps captured images in memory, in emission order.
package gallery

import (
	"sync"

	"github.com/cjeanneret/ThermoGo/internal/debug"
	"github.com/cjeanneret/ThermoGo/internal/logic/capture"
)

// Entry is one stored capture.
type Entry struct {
	Seq int // 1-based emission number, never reused
	capture.Image
}

// Gallery is an append-only capture sink. It is safe for concurrent use: the
// station adds from its own goroutine while web handlers read.
type Gallery struct {
	mu      sync.RWMutex
	limit   int
	seq     int
	entries []Entry
}

// New returns an empty gallery. When limit > 0 the oldest entries are
// dropped once more than limit images are stored.
func New(limit int) *Gallery {
	if limit < 0 {
		limit = 0
	}
	return &Gallery{limit: limit}
}

// Add stores img and returns its entry, which stays valid even if the limit
// drops it right away.
func (g *Gallery) Add(img capture.Image) Entry {
	g.mu.Lock()
	g.seq++
	e := Entry{Seq: g.seq, Image: img}
	g.entries = append(g.entries, e)
	if g.limit > 0 && len(g.entries) > g.limit {
		drop := len(g.entries) - g.limit
		debug.Verbose("Gallery full, dropping %d oldest image(s)", drop)
		g.entries = append(g.entries[:0:0], g.entries[drop:]...)
	}
	g.mu.Unlock()
	return e
}

// List returns a copy of the stored entries, oldest first.
func (g *Gallery) List() []Entry {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Entry, len(g.entries))
	copy(out, g.entries)
	return out
}

// Get looks an entry up by image ID.
func (g *Gallery) Get(id string) (Entry, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for i := len(g.entries) - 1; i >= 0; i-- {
		if g.entries[i].ID == id {
			return g.entries[i], true
		}
	}
	return Entry{}, false
}

// Len returns the number of stored entries.
func (g *Gallery) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.entries)
}

// Total returns the number of images ever added, including dropped ones.
func (g *Gallery) Total() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.seq
}
