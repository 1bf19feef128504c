package stats

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dolos-sec/dolos/internal/detect"
)

// DefaultMaxRecords caps the aggregator's ring buffer.
const DefaultMaxRecords = 10000

const (
	topListSize    = 10
	recentListSize = 50
)

// Record is one recorded attack with its block outcome.
type Record struct {
	ID            string       `json:"id"`
	Event         detect.Event `json:"event"`
	Blocked       bool         `json:"blocked"`
	TriggeredRule string       `json:"triggered_rule,omitempty"`
}

// Count pairs a key with how often it was seen.
type Count struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// TimelineBucket is one hour of the requested range.
type TimelineBucket struct {
	Start time.Time `json:"start"`
	Count int       `json:"count"`
}

// Dashboard is the aggregate view over a time range.
type Dashboard struct {
	TotalAttacks    int                       `json:"total_attacks"`
	BlockedAttacks  int                       `json:"blocked_attacks"`
	UniqueAddresses int                       `json:"unique_addresses"`
	ByType          map[detect.AttackType]int `json:"by_type"`
	BySeverity      map[string]int            `json:"by_severity"`
	ByCountry       map[string]int            `json:"by_country"`
	HourOfDay       [24]int                   `json:"hour_of_day"`
	TopAddresses    []Count                   `json:"top_addresses"`
	TopPaths        []Count                   `json:"top_paths"`
	Recent          []Record                  `json:"recent"`
	Timeline        []TimelineBucket          `json:"timeline"`
}

// Aggregator keeps the most recent attack records in a bounded ring buffer
// and derives dashboard views from them. Pure aggregation: it never feeds
// back into blocking decisions.
type Aggregator struct {
	mu      sync.RWMutex
	records []Record
	max     int
}

// NewAggregator builds an Aggregator retaining at most max records. A
// non-positive max falls back to DefaultMaxRecords.
func NewAggregator(max int) *Aggregator {
	if max <= 0 {
		max = DefaultMaxRecords
	}
	return &Aggregator{max: max}
}

// RecordAttack stores the event with a generated id, evicting the oldest
// record once the cap is reached.
func (a *Aggregator) RecordAttack(ev detect.Event, blocked bool, triggeredRule string) Record {
	rec := Record{
		ID:            uuid.NewString(),
		Event:         ev,
		Blocked:       blocked,
		TriggeredRule: triggeredRule,
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, rec)
	if len(a.records) > a.max {
		a.records = append([]Record(nil), a.records[len(a.records)-a.max:]...)
	}
	return rec
}

// Len returns how many records are currently retained.
func (a *Aggregator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.records)
}

// Stats aggregates all records whose timestamp falls inside [from, to].
func (a *Aggregator) Stats(from, to time.Time) Dashboard {
	a.mu.RLock()
	defer a.mu.RUnlock()

	dash := Dashboard{
		ByType:     make(map[detect.AttackType]int),
		BySeverity: make(map[string]int),
		ByCountry:  make(map[string]int),
	}

	addresses := make(map[string]int)
	paths := make(map[string]int)
	var inRange []Record

	for _, rec := range a.records {
		ts := rec.Event.Timestamp
		if ts.Before(from) || ts.After(to) {
			continue
		}
		inRange = append(inRange, rec)

		dash.TotalAttacks++
		if rec.Blocked {
			dash.BlockedAttacks++
		}
		dash.ByType[rec.Event.Type]++
		dash.BySeverity[rec.Event.Severity.String()]++
		if rec.Event.CountryCode != "" {
			dash.ByCountry[rec.Event.CountryCode]++
		}
		dash.HourOfDay[ts.Local().Hour()]++
		addresses[rec.Event.Address]++
		paths[rec.Event.Path]++
	}

	dash.UniqueAddresses = len(addresses)
	dash.TopAddresses = topCounts(addresses, topListSize)
	dash.TopPaths = topCounts(paths, topListSize)
	dash.Recent = recentRecords(inRange, recentListSize)
	dash.Timeline = timeline(inRange, from, to)
	return dash
}

// topCounts returns the n largest entries, ties broken by key for
// determinism.
func topCounts(counts map[string]int, n int) []Count {
	out := make([]Count, 0, len(counts))
	for k, c := range counts {
		out = append(out, Count{Key: k, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// recentRecords returns up to n records, newest first. Records arrive in
// insertion order, which tracks event time.
func recentRecords(records []Record, n int) []Record {
	out := make([]Record, 0, n)
	for i := len(records) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, records[i])
	}
	return out
}

// timeline buckets the records into hours spanning [from, to].
func timeline(records []Record, from, to time.Time) []TimelineBucket {
	if to.Before(from) {
		return nil
	}

	start := from.Truncate(time.Hour)
	buckets := int(to.Sub(start)/time.Hour) + 1
	out := make([]TimelineBucket, buckets)
	for i := range out {
		out[i].Start = start.Add(time.Duration(i) * time.Hour)
	}
	for _, rec := range records {
		idx := int(rec.Event.Timestamp.Sub(start) / time.Hour)
		if idx >= 0 && idx < buckets {
			out[idx].Count++
		}
	}
	return out
}
