package history

import (
	"sync"
	"time"

	"github.com/dolos-sec/dolos/internal/clock"
	"github.com/dolos-sec/dolos/internal/detect"
	"github.com/dolos-sec/dolos/internal/logger"
)

// DefaultRetention bounds how long events are kept per address.
const DefaultRetention = time.Hour

// Store keeps a bounded-time, append-only log of classified attack events per
// source address. Lists stay ordered by timestamp because events are appended
// as they arrive; Sweep enforces the retention horizon.
type Store struct {
	mu        sync.RWMutex
	events    map[string][]detect.Event
	retention time.Duration
	clock     clock.Clock
}

// NewStore builds a Store with the given retention horizon. A zero retention
// falls back to DefaultRetention; a nil clock falls back to the system clock.
func NewStore(retention time.Duration, clk clock.Clock) *Store {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if clk == nil {
		clk = clock.System()
	}
	return &Store{
		events:    make(map[string][]detect.Event),
		retention: retention,
		clock:     clk,
	}
}

// Append records an event under its address.
func (s *Store) Append(ev detect.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[ev.Address] = append(s.events[ev.Address], ev)
}

// RecentCount returns how many of the address's events fall inside the
// sliding window ending at now.
func (s *Store) RecentCount(address string, window time.Duration, now time.Time) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := now.Add(-window)
	count := 0
	for _, ev := range s.events[address] {
		if ev.Timestamp.After(cutoff) {
			count++
		}
	}
	return count
}

// All returns a copy of the address's event list, oldest first.
func (s *Store) All(address string) []detect.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	evs := s.events[address]
	out := make([]detect.Event, len(evs))
	copy(out, evs)
	return out
}

// Addresses returns how many addresses currently have recorded events.
func (s *Store) Addresses() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// Sweep purges events older than the retention horizon and drops addresses
// whose lists become empty. It returns the number of events removed. Run it
// from a background schedule, never from the request path.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.clock.Now().Add(-s.retention)
	removed := 0
	for addr, evs := range s.events {
		// Events are time-ordered, so find the first one still inside
		// the horizon and cut everything before it.
		keep := len(evs)
		for i, ev := range evs {
			if ev.Timestamp.After(cutoff) {
				keep = i
				break
			}
		}
		if keep == 0 {
			continue
		}
		removed += keep
		if keep == len(evs) {
			delete(s.events, addr)
			continue
		}
		s.events[addr] = append([]detect.Event(nil), evs[keep:]...)
	}

	if removed > 0 {
		logger.WithFields(map[string]interface{}{
			"removed":   removed,
			"addresses": len(s.events),
		}).Debug("swept attack history")
	}
	return removed
}
