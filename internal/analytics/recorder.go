package analytics

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"
)

// DefaultCapacity is the number of events a Recorder keeps.
const DefaultCapacity = 10_000

// Recorder keeps the most recent events in a bounded ring buffer.
type Recorder struct {
	mu     sync.RWMutex
	events []LookupEvent
	next   int
	full   bool
	now    func() time.Time
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithClock sets the clock Summary measures its window against.
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRecorder creates a recorder holding up to capacity events.
func NewRecorder(capacity int, opts ...RecorderOption) *Recorder {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	r := &Recorder{events: make([]LookupEvent, capacity), now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record stores ev, evicting the oldest event when full.
func (r *Recorder) Record(_ context.Context, ev LookupEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[r.next] = ev
	r.next = (r.next + 1) % len(r.events)
	if r.next == 0 {
		r.full = true
	}
}

// snapshot returns events oldest first. Caller holds at least a read lock.
func (r *Recorder) snapshot() []LookupEvent {
	if !r.full {
		return slices.Clone(r.events[:r.next])
	}
	out := make([]LookupEvent, 0, len(r.events))
	out = append(out, r.events[r.next:]...)
	return append(out, r.events[:r.next]...)
}

// Recent returns up to n events, newest first. Invalid lookups are skipped.
func (r *Recorder) Recent(n int) []LookupEvent {
	r.mu.RLock()
	all := r.snapshot()
	r.mu.RUnlock()

	out := make([]LookupEvent, 0, n)
	for i := len(all) - 1; i >= 0 && len(out) < n; i-- {
		if all[i].Outcome == OutcomeInvalid {
			continue
		}
		out = append(out, all[i])
	}
	return out
}

// Summary aggregates lookups in a time window.
type Summary struct {
	WindowHours   int             `json:"window_hours"`
	TotalLookups  int             `json:"total_lookups"`
	ByOutcome     map[Outcome]int `json:"by_outcome"`
	ByRiskLabel   map[string]int  `json:"by_risk_label"`
	ByChannel     map[string]int  `json:"by_channel,omitempty"`
	AvgDurationMS float64         `json:"avg_duration_ms"`
}

// Summary aggregates events from the last hours.
func (r *Recorder) Summary(hours int) Summary {
	if hours <= 0 {
		hours = 24
	}
	cutoff := r.now().Add(-time.Duration(hours) * time.Hour)

	r.mu.RLock()
	all := r.snapshot()
	r.mu.RUnlock()

	s := Summary{
		WindowHours: hours,
		ByOutcome:   make(map[Outcome]int),
		ByRiskLabel: make(map[string]int),
		ByChannel:   make(map[string]int),
	}
	var total time.Duration
	for _, ev := range all {
		if ev.OccurredAt.Before(cutoff) {
			continue
		}
		s.TotalLookups++
		s.ByOutcome[ev.Outcome]++
		if ev.RiskLabel != "" {
			s.ByRiskLabel[ev.RiskLabel]++
		}
		if ev.Channel != "" {
			s.ByChannel[ev.Channel]++
		}
		total += ev.Duration
	}
	if s.TotalLookups > 0 {
		s.AvgDurationMS = float64(total.Microseconds()) / 1000 / float64(s.TotalLookups)
	}
	return s
}

// OperationStats is the latency profile of one operation.
type OperationStats struct {
	Operation     string  `json:"operation"`
	Count         int     `json:"count"`
	AvgDurationMS float64 `json:"avg_duration_ms"`
	P95DurationMS float64 `json:"p95_duration_ms"`
}

// Performance reports latency per operation: the full lookup plus each provider.
type Performance struct {
	Operations         []OperationStats `json:"operations"`
	ProviderFailures   map[string]int   `json:"provider_failures"`
	RecentMeasurements int              `json:"recent_measurements"`
}

// Performance computes latency statistics over every retained event,
// slowest operation first.
func (r *Recorder) Performance() Performance {
	r.mu.RLock()
	all := r.snapshot()
	r.mu.RUnlock()

	samples := make(map[string][]float64)
	failures := make(map[string]int)
	for _, ev := range all {
		if ev.Outcome == OutcomeInvalid {
			continue
		}
		samples["lookup"] = append(samples["lookup"], durationMS(ev.Duration))
		for name, p := range ev.Providers {
			samples["provider."+name] = append(samples["provider."+name], float64(p.LatencyMS))
			if p.Status != "ok" {
				failures[name]++
			}
		}
	}

	perf := Performance{ProviderFailures: failures, RecentMeasurements: len(samples["lookup"])}
	for op, values := range samples {
		perf.Operations = append(perf.Operations, OperationStats{
			Operation:     op,
			Count:         len(values),
			AvgDurationMS: mean(values),
			P95DurationMS: percentile(values, 0.95),
		})
	}
	sort.Slice(perf.Operations, func(i, j int) bool {
		if perf.Operations[i].AvgDurationMS == perf.Operations[j].AvgDurationMS {
			return perf.Operations[i].Operation < perf.Operations[j].Operation
		}
		return perf.Operations[i].AvgDurationMS > perf.Operations[j].AvgDurationMS
	})
	return perf
}

func durationMS(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// percentile uses nearest-rank on a sorted copy.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	rank := int(float64(len(sorted))*p+0.5) - 1
	rank = max(0, min(len(sorted)-1, rank))
	return sorted[rank]
}
