// Package metrics provides thread-safe aggregation of load-test observations
// into named counter, rate, and trend metrics.
package metrics

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// Kind identifies the aggregation behavior of a metric.
type Kind string

const (
	// KindCounter accumulates a monotonic sum of observations.
	KindCounter Kind = "counter"

	// KindRate tracks the fraction of true observations over all observations.
	KindRate Kind = "rate"

	// KindTrend retains enough information to compute min/max/mean and
	// arbitrary percentiles over duration observations.
	KindTrend Kind = "trend"
)

// Metric is the common surface shared by all metric kinds.
type Metric interface {
	Name() string
	Kind() Kind

	// snapshot produces a read-only aggregate view. elapsed is the run time
	// used for per-second rates.
	snapshot(elapsed time.Duration) MetricSnapshot
}

// Registry owns all named metrics for one run.
//
// Registration is idempotent: registering an existing name with the same kind
// returns the existing handle, a different kind is an error. Observations go
// through the returned handles; each metric synchronizes independently, so
// writers on unrelated metrics never contend.
type Registry struct {
	mu      sync.RWMutex
	metrics map[string]Metric

	start time.Time
}

// NewRegistry creates an empty registry. The run clock starts immediately;
// per-second rates in snapshots are relative to this moment.
func NewRegistry() *Registry {
	return &Registry{
		metrics: make(map[string]Metric),
		start:   time.Now(),
	}
}

// Counter registers (or returns) a counter metric.
func (r *Registry) Counter(name string) (*Counter, error) {
	m, err := r.register(name, KindCounter, func() Metric { return &Counter{name: name} })
	if err != nil {
		return nil, err
	}
	return m.(*Counter), nil
}

// Rate registers (or returns) a rate metric.
func (r *Registry) Rate(name string) (*Rate, error) {
	m, err := r.register(name, KindRate, func() Metric { return &Rate{name: name} })
	if err != nil {
		return nil, err
	}
	return m.(*Rate), nil
}

// Trend registers (or returns) a trend metric backed by the full observation
// set. Percentiles are exact (linear interpolation over sorted values).
func (r *Registry) Trend(name string) (*Trend, error) {
	m, err := r.register(name, KindTrend, func() Metric { return newTrend(name) })
	if err != nil {
		return nil, err
	}
	return m.(*Trend), nil
}

// BoundedTrend registers (or returns) a trend metric backed by an HDR
// histogram. Memory stays bounded regardless of observation count, at the
// cost of percentile precision (three significant figures).
func (r *Registry) BoundedTrend(name string) (*Trend, error) {
	m, err := r.register(name, KindTrend, func() Metric { return newBoundedTrend(name) })
	if err != nil {
		return nil, err
	}
	return m.(*Trend), nil
}

func (r *Registry) register(name string, kind Kind, create func() Metric) (Metric, error) {
	if name == "" {
		return nil, fmt.Errorf("metric name must not be empty")
	}

	r.mu.RLock()
	existing, ok := r.metrics[name]
	r.mu.RUnlock()

	if !ok {
		r.mu.Lock()
		existing, ok = r.metrics[name]
		if !ok {
			existing = create()
			r.metrics[name] = existing
		}
		r.mu.Unlock()
	}

	if existing.Kind() != kind {
		return nil, fmt.Errorf("metric %q already registered as %s, cannot re-register as %s",
			name, existing.Kind(), kind)
	}
	return existing, nil
}

// Lookup returns a metric by name, or nil if it was never registered.
func (r *Registry) Lookup(name string) Metric {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.metrics[name]
}

// StartTime returns when the registry's run clock started.
func (r *Registry) StartTime() time.Time {
	return r.start
}

// Snapshot returns a consistent read-only view of every registered metric.
//
// Each metric is aggregated under its own synchronization; the snapshot as a
// whole is taken at one moment of the run clock, which is what per-second
// rates are computed against.
func (r *Registry) Snapshot() *Snapshot {
	now := time.Now()
	elapsed := now.Sub(r.start)

	r.mu.RLock()
	names := make([]string, 0, len(r.metrics))
	handles := make([]Metric, 0, len(r.metrics))
	for name, m := range r.metrics {
		names = append(names, name)
		handles = append(handles, m)
	}
	r.mu.RUnlock()

	snap := &Snapshot{
		TakenAt: now,
		Elapsed: elapsed,
		Metrics: make(map[string]MetricSnapshot, len(handles)),
	}
	for i, m := range handles {
		snap.Metrics[names[i]] = m.snapshot(elapsed)
	}
	return snap
}

// Snapshot is a point-in-time aggregate view of a registry.
type Snapshot struct {
	TakenAt time.Time                 `json:"takenAt"`
	Elapsed time.Duration             `json:"elapsed"`
	Metrics map[string]MetricSnapshot `json:"metrics"`
}

// Get returns the snapshot of a named metric.
func (s *Snapshot) Get(name string) (MetricSnapshot, bool) {
	m, ok := s.Metrics[name]
	return m, ok
}

// MetricSnapshot is the aggregate view of a single metric.
//
// Which fields are meaningful depends on Kind: counters use Total and
// PerSecond, rates use Fraction, trends use Trend.
type MetricSnapshot struct {
	Name  string `json:"name"`
	Kind  Kind   `json:"kind"`
	Count int64  `json:"count"`

	Total     float64 `json:"total,omitempty"`
	PerSecond float64 `json:"perSecond,omitempty"`

	Fraction float64 `json:"fraction,omitempty"`

	Trend *TrendSnapshot `json:"trend,omitempty"`
}

// Counter is a monotonically accumulated sum of numeric observations.
//
// Add is lock-free: the float sum lives in an atomic word updated with a
// compare-and-swap loop, so unbounded concurrent writers never block.
type Counter struct {
	name  string
	bits  atomic.Uint64
	count atomic.Int64
}

func (c *Counter) Name() string { return c.name }
func (c *Counter) Kind() Kind   { return KindCounter }

// Add accumulates one observation. Values are expected to be non-negative.
func (c *Counter) Add(v float64) {
	for {
		old := c.bits.Load()
		next := math.Float64bits(math.Float64frombits(old) + v)
		if c.bits.CompareAndSwap(old, next) {
			break
		}
	}
	c.count.Add(1)
}

// Inc accumulates an observation of 1.
func (c *Counter) Inc() { c.Add(1) }

// Total returns the accumulated sum.
func (c *Counter) Total() float64 {
	return math.Float64frombits(c.bits.Load())
}

func (c *Counter) snapshot(elapsed time.Duration) MetricSnapshot {
	total := c.Total()
	perSecond := 0.0
	if elapsed > 0 {
		perSecond = total / elapsed.Seconds()
	}
	return MetricSnapshot{
		Name:      c.name,
		Kind:      KindCounter,
		Count:     c.count.Load(),
		Total:     total,
		PerSecond: perSecond,
	}
}

// Rate is the fraction of true observations over all observations.
type Rate struct {
	name  string
	total atomic.Int64
	trues atomic.Int64
}

func (r *Rate) Name() string { return r.name }
func (r *Rate) Kind() Kind   { return KindRate }

// Observe records one boolean observation.
func (r *Rate) Observe(ok bool) {
	if ok {
		r.trues.Add(1)
	}
	r.total.Add(1)
}

func (r *Rate) snapshot(time.Duration) MetricSnapshot {
	total := r.total.Load()
	fraction := 0.0
	if total > 0 {
		fraction = float64(r.trues.Load()) / float64(total)
	}
	return MetricSnapshot{
		Name:     r.name,
		Kind:     KindRate,
		Count:    total,
		Fraction: fraction,
	}
}

// percentile computes a linear-interpolation percentile over sorted values.
// q is in [0, 100]; q outside the range is clamped.
func percentile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 100 {
		return sorted[n-1]
	}

	rank := q / 100 * float64(n-1)
	lower := int(rank)
	frac := rank - float64(lower)
	if lower+1 >= n {
		return sorted[n-1]
	}
	return sorted[lower] + frac*(sorted[lower+1]-sorted[lower])
}
