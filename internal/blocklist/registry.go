package blocklist

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dolos-sec/dolos/internal/clock"
	"github.com/dolos-sec/dolos/internal/logger"
)

// Duration is the closed set of block lengths operators can pick from.
type Duration string

const (
	Duration1Hour     Duration = "1h"
	Duration24Hours   Duration = "24h"
	Duration7Days     Duration = "7d"
	Duration30Days    Duration = "30d"
	DurationPermanent Duration = "permanent"
)

// ErrInvalidDuration is returned when a caller supplies an unknown duration.
var ErrInvalidDuration = errors.New("invalid block duration")

// Expiry maps the duration to an absolute expiry from now. Permanent blocks
// return nil.
func (d Duration) Expiry(now time.Time) (*time.Time, error) {
	var span time.Duration
	switch d {
	case Duration1Hour:
		span = time.Hour
	case Duration24Hours:
		span = 24 * time.Hour
	case Duration7Days:
		span = 7 * 24 * time.Hour
	case Duration30Days:
		span = 30 * 24 * time.Hour
	case DurationPermanent:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidDuration, string(d))
	}
	exp := now.Add(span)
	return &exp, nil
}

// Registry is the sole source of truth for "is this address currently
// blocked". Expiry is enforced lazily at read time, so no background sweep is
// needed for correctness. When the durable backend fails, the registry
// degrades to an in-memory fallback rather than dropping blocks, and exposes
// the degraded state to operators.
type Registry struct {
	store    Store
	fallback *MemoryStore
	degraded atomic.Bool
	clock    clock.Clock
}

// NewRegistry builds a Registry over the given backend. A nil clock falls
// back to the system clock.
func NewRegistry(store Store, clk clock.Clock) *Registry {
	if clk == nil {
		clk = clock.System()
	}
	return &Registry{
		store:    store,
		fallback: NewMemoryStore(),
		clock:    clk,
	}
}

// Degraded reports whether the durable backend has failed and the registry is
// running on its in-memory fallback.
func (r *Registry) Degraded() bool {
	return r.degraded.Load()
}

func (r *Registry) degrade(op string, err error) {
	if r.degraded.CompareAndSwap(false, true) {
		logger.WithFields(map[string]interface{}{
			"op":    op,
			"error": err.Error(),
		}).Warn("block store backend failed, falling back to in-memory registry")
	}
}

// Block creates or overwrites a block for the address. Any existing block is
// replaced unconditionally; the already-blocked guard belongs to callers.
func (r *Registry) Block(address string, d Duration, reason, actor, attackType, severity string) (Record, error) {
	now := r.clock.Now()
	expiry, err := d.Expiry(now)
	if err != nil {
		return Record{}, err
	}

	rec := Record{
		Address:    address,
		BlockedAt:  now,
		ExpiresAt:  expiry,
		Reason:     reason,
		Actor:      actor,
		AttackType: attackType,
		Severity:   severity,
	}

	if err := r.store.Put(rec); err != nil {
		r.degrade("put", err)
		if err := r.fallback.Put(rec); err != nil {
			return Record{}, err
		}
	}
	return rec, nil
}

// Unblock removes the address's block. Returns true iff a record existed.
func (r *Registry) Unblock(address string) (bool, error) {
	removed, err := r.store.Delete(address)
	if err != nil {
		r.degrade("delete", err)
		removed = false
	}
	fbRemoved, _ := r.fallback.Delete(address)
	return removed || fbRemoved, err
}

// IsBlocked reports whether the address is currently blocked. Lazy expiry: a
// non-permanent record whose expiry has passed is deleted on the spot.
func (r *Registry) IsBlocked(address string) bool {
	rec, ok := r.lookup(address)
	if !ok {
		return false
	}
	if rec.Expired(r.clock.Now()) {
		_, _ = r.store.Delete(address)
		_, _ = r.fallback.Delete(address)
		return false
	}
	return true
}

// Get returns the address's block record, if any, applying lazy expiry.
func (r *Registry) Get(address string) (Record, bool) {
	rec, ok := r.lookup(address)
	if !ok || rec.Expired(r.clock.Now()) {
		return Record{}, false
	}
	return rec, true
}

func (r *Registry) lookup(address string) (Record, bool) {
	rec, err := r.store.Get(address)
	if err == nil {
		return rec, true
	}
	if !errors.Is(err, ErrNotFound) {
		r.degrade("get", err)
	}
	rec, err = r.fallback.Get(address)
	return rec, err == nil
}

// List returns all currently-unexpired block records.
func (r *Registry) List() ([]Record, error) {
	recs, err := r.store.List()
	if err != nil {
		r.degrade("list", err)
		recs = nil
	}
	if r.degraded.Load() {
		fb, _ := r.fallback.List()
		recs = mergeRecords(recs, fb)
	}

	now := r.clock.Now()
	out := make([]Record, 0, len(recs))
	for _, rec := range recs {
		if rec.Expired(now) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// SweepExpired deletes expired records from the backend. Lazy expiry already
// keeps reads correct; this only reclaims storage for long-running processes.
func (r *Registry) SweepExpired() int {
	recs, err := r.store.List()
	if err != nil {
		r.degrade("list", err)
		return 0
	}

	now := r.clock.Now()
	removed := 0
	for _, rec := range recs {
		if !rec.Expired(now) {
			continue
		}
		if ok, err := r.store.Delete(rec.Address); err == nil && ok {
			removed++
		}
	}
	return removed
}

// mergeRecords combines the durable and fallback views, preferring the
// fallback entry when both hold the same address (it is the newer write).
func mergeRecords(primary, fallback []Record) []Record {
	byAddr := make(map[string]Record, len(primary)+len(fallback))
	for _, rec := range primary {
		byAddr[rec.Address] = rec
	}
	for _, rec := range fallback {
		byAddr[rec.Address] = rec
	}
	out := make([]Record, 0, len(byAddr))
	for _, rec := range byAddr {
		out = append(out, rec)
	}
	return out
}
