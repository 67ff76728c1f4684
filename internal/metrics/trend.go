package metrics

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	hdrhistogram "github.com/HdrHistogram/hdrhistogram-go"
)

// Trend histogram bounds: 1 microsecond to 1 hour, 3 significant figures.
const (
	histMinMicros  = 1
	histMaxMicros  = 3600_000_000
	histSigFigures = 3
)

// Trend holds duration observations in milliseconds and derives count, min,
// max, mean, and arbitrary percentiles on demand.
//
// Two backends exist. The default retains every observation, making
// percentiles exact (linear interpolation over the sorted set). The bounded
// backend folds observations into an HDR histogram so memory stays constant;
// percentiles are then accurate to three significant figures. Min, max, mean,
// and count are exact under both backends.
type Trend struct {
	name string

	mu      sync.Mutex
	samples []float64
	hist    *hdrhistogram.Histogram

	count int64
	sum   float64
	min   float64
	max   float64
}

func newTrend(name string) *Trend {
	return &Trend{name: name}
}

func newBoundedTrend(name string) *Trend {
	return &Trend{
		name: name,
		hist: hdrhistogram.New(histMinMicros, histMaxMicros, histSigFigures),
	}
}

func (t *Trend) Name() string { return t.name }
func (t *Trend) Kind() Kind   { return KindTrend }

// Observe records one duration observation in milliseconds. Negative values
// are clamped to zero.
func (t *Trend) Observe(ms float64) {
	if ms < 0 {
		ms = 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.count == 0 || ms < t.min {
		t.min = ms
	}
	if t.count == 0 || ms > t.max {
		t.max = ms
	}
	t.count++
	t.sum += ms

	if t.hist != nil {
		micros := int64(ms * 1000)
		if micros < histMinMicros {
			micros = histMinMicros
		}
		if micros > histMaxMicros {
			micros = histMaxMicros
		}
		t.hist.RecordValue(micros)
		return
	}
	t.samples = append(t.samples, ms)
}

// ObserveDuration records a time.Duration observation.
func (t *Trend) ObserveDuration(d time.Duration) {
	t.Observe(float64(d) / float64(time.Millisecond))
}

func (t *Trend) snapshot(time.Duration) MetricSnapshot {
	t.mu.Lock()
	ts := &TrendSnapshot{
		Count: t.count,
		Min:   t.min,
		Max:   t.max,
	}
	if t.count > 0 {
		ts.Mean = t.sum / float64(t.count)
	}
	if t.hist != nil {
		ts.hist = hdrhistogram.Import(t.hist.Export())
	} else if len(t.samples) > 0 {
		ts.sorted = make([]float64, len(t.samples))
		copy(ts.sorted, t.samples)
	}
	t.mu.Unlock()

	sort.Float64s(ts.sorted)

	return MetricSnapshot{
		Name:  t.name,
		Kind:  KindTrend,
		Count: ts.Count,
		Trend: ts,
	}
}

// TrendSnapshot is a read-only aggregate view of a trend metric. All values
// are milliseconds.
type TrendSnapshot struct {
	Count int64
	Min   float64
	Max   float64
	Mean  float64

	sorted []float64
	hist   *hdrhistogram.Histogram
}

// P returns the q-th percentile, q in [0, 100]. P(0) is the minimum, P(100)
// the maximum, and P is monotonically non-decreasing in q. A trend with zero
// observations yields 0 for every q.
func (t *TrendSnapshot) P(q float64) float64 {
	if t.Count == 0 {
		return 0
	}
	if q <= 0 {
		return t.Min
	}
	if q >= 100 {
		return t.Max
	}
	if t.hist != nil {
		v := float64(t.hist.ValueAtQuantile(q)) / 1000
		if v < t.Min {
			v = t.Min
		}
		if v > t.Max {
			v = t.Max
		}
		return v
	}
	return percentile(t.sorted, q)
}

// MarshalJSON renders the snapshot with the commonly reported percentiles.
func (t *TrendSnapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Count int64   `json:"count"`
		Min   float64 `json:"min"`
		Max   float64 `json:"max"`
		Mean  float64 `json:"mean"`
		Med   float64 `json:"med"`
		P90   float64 `json:"p90"`
		P95   float64 `json:"p95"`
		P99   float64 `json:"p99"`
	}{
		Count: t.Count,
		Min:   t.Min,
		Max:   t.Max,
		Mean:  t.Mean,
		Med:   t.P(50),
		P90:   t.P(90),
		P95:   t.P(95),
		P99:   t.P(99),
	})
}
