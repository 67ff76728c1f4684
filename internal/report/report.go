// Package report renders the final registry snapshot and threshold verdicts
// into an immutable, machine-readable run result. No aggregation happens
// here; everything is read off the snapshot.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/stampede-load/stampede/internal/metrics"
	"github.com/stampede-load/stampede/internal/threshold"
	"github.com/stampede-load/stampede/internal/workflow"
)

// RunResult is the aggregated view of a completed run. Created once at run
// completion; never mutated afterwards.
type RunResult struct {
	RunID     string        `json:"runId"`
	Name      string        `json:"name"`
	StartTime time.Time     `json:"startTime"`
	EndTime   time.Time     `json:"endTime"`
	Elapsed   time.Duration `json:"elapsed"`

	Iterations  int64   `json:"iterations"`
	Requests    int64   `json:"requests"`
	RequestRate float64 `json:"requestRate"`

	Passed     bool               `json:"passed"`
	Thresholds []threshold.Result `json:"thresholds,omitempty"`

	Metrics map[string]MetricReport `json:"metrics"`
}

// MetricReport is the serialized aggregate of one metric.
type MetricReport struct {
	Kind  metrics.Kind `json:"kind"`
	Count int64        `json:"count"`

	Total     float64 `json:"total,omitempty"`
	PerSecond float64 `json:"perSecond,omitempty"`
	Fraction  float64 `json:"fraction,omitempty"`

	Min  float64 `json:"min,omitempty"`
	Max  float64 `json:"max,omitempty"`
	Mean float64 `json:"mean,omitempty"`
	Med  float64 `json:"med,omitempty"`
	P90  float64 `json:"p90,omitempty"`
	P95  float64 `json:"p95,omitempty"`
	P99  float64 `json:"p99,omitempty"`
}

// Build assembles a RunResult from the final snapshot and threshold
// verdicts.
func Build(name string, snap *metrics.Snapshot, results []threshold.Result, passed bool, start, end time.Time) *RunResult {
	r := &RunResult{
		RunID:      uuid.NewString(),
		Name:       name,
		StartTime:  start,
		EndTime:    end,
		Elapsed:    end.Sub(start),
		Passed:     passed,
		Thresholds: results,
		Metrics:    make(map[string]MetricReport, len(snap.Metrics)),
	}

	for mName, ms := range snap.Metrics {
		mr := MetricReport{
			Kind:      ms.Kind,
			Count:     ms.Count,
			Total:     ms.Total,
			PerSecond: ms.PerSecond,
			Fraction:  ms.Fraction,
		}
		if ms.Trend != nil {
			mr.Min = ms.Trend.Min
			mr.Max = ms.Trend.Max
			mr.Mean = ms.Trend.Mean
			mr.Med = ms.Trend.P(50)
			mr.P90 = ms.Trend.P(90)
			mr.P95 = ms.Trend.P(95)
			mr.P99 = ms.Trend.P(99)
		}
		r.Metrics[mName] = mr
	}

	if its, ok := snap.Get(workflow.MetricIterations); ok {
		r.Iterations = int64(its.Total)
	}
	if reqs, ok := snap.Get(workflow.MetricRequests); ok {
		r.Requests = int64(reqs.Total)
		r.RequestRate = reqs.PerSecond
	}

	return r
}

// WriteJSON writes the indented JSON document.
func (r *RunResult) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteJSONFile writes the JSON document to a file.
func (r *RunResult) WriteJSONFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report file: %w", err)
	}
	defer f.Close()
	if err := r.WriteJSON(f); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

// MetricNames returns the metric names in sorted order, for stable output.
func (r *RunResult) MetricNames() []string {
	names := make([]string, 0, len(r.Metrics))
	for name := range r.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
