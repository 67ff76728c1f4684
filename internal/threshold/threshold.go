// Package threshold turns aggregated metric snapshots into pass/fail
// verdicts. Evaluation is pure: the same snapshot and expressions always
// yield the same results.
package threshold

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/stampede-load/stampede/internal/metrics"
)

// Threshold is one pass/fail judgment over a named metric.
//
// Expression grammar: "<aggregator> <op> <value>", e.g. "p95 < 800ms",
// "rate > 0.99", "count >= 1000". Valid aggregators depend on the metric
// kind: counters support count, total, and rate (per second); rates support
// rate (fraction); trends support count, min, max, avg, med, and pNN or
// p(NN.N). Duration-style values (500ms, 2s) are converted to milliseconds.
type Threshold struct {
	Metric     string `json:"metric"`
	Expression string `json:"expression"`
}

// Result is the verdict for a single threshold.
type Result struct {
	Metric     string `json:"metric"`
	Expression string `json:"expression"`
	Passed     bool   `json:"passed"`
	Value      string `json:"value,omitempty"`
	Message    string `json:"message,omitempty"`
}

var exprRe = regexp.MustCompile(`^([a-zA-Z]+(?:\(\s*[0-9.]+\s*\))?[0-9.]*)\s*(<=|>=|==|!=|<|>|=)\s*(.+)$`)

// Evaluate judges every threshold against the snapshot and returns the
// per-threshold results plus the overall verdict (AND of all thresholds; an
// empty set passes).
//
// A threshold referencing a missing metric, an aggregator the metric's kind
// does not support, or a trend with zero observations fails; it never
// panics and never aborts evaluation of the remaining thresholds.
func Evaluate(snap *metrics.Snapshot, thresholds []Threshold) ([]Result, bool) {
	if len(thresholds) == 0 {
		return nil, true
	}

	results := make([]Result, 0, len(thresholds))
	passed := true
	for _, t := range thresholds {
		r := evaluateOne(snap, t)
		if !r.Passed {
			passed = false
		}
		results = append(results, r)
	}
	return results, passed
}

func evaluateOne(snap *metrics.Snapshot, t Threshold) Result {
	result := Result{Metric: t.Metric, Expression: t.Expression}

	agg, op, valueStr, err := parseExpression(t.Expression)
	if err != nil {
		result.Message = err.Error()
		return result
	}

	ms, ok := snap.Get(t.Metric)
	if !ok {
		result.Message = fmt.Sprintf("metric %q was never registered", t.Metric)
		return result
	}

	actual, err := aggregate(ms, agg)
	if err != nil {
		result.Message = err.Error()
		return result
	}

	want, err := parseValue(valueStr)
	if err != nil {
		result.Message = err.Error()
		return result
	}

	result.Value = formatValue(ms.Kind, agg, actual)
	result.Passed = compare(actual, op, want)
	if !result.Passed {
		result.Message = fmt.Sprintf("%s is %s, want %s %s", agg, result.Value, op, valueStr)
	}
	return result
}

// ValidateExpression reports whether an expression parses and its aggregator
// is valid for the given metric kind. Used for fail-fast config validation.
func ValidateExpression(expr string, kind metrics.Kind) error {
	agg, _, valueStr, err := parseExpression(expr)
	if err != nil {
		return err
	}
	if _, err := parseValue(valueStr); err != nil {
		return err
	}
	if _, err := aggregate(zeroSnapshot(kind), agg); err != nil {
		return err
	}
	return nil
}

func zeroSnapshot(kind metrics.Kind) metrics.MetricSnapshot {
	// Count 1 so the zero-observation failure does not mask an aggregator
	// mismatch during validation.
	ms := metrics.MetricSnapshot{Kind: kind, Count: 1}
	if kind == metrics.KindTrend {
		ms.Trend = &metrics.TrendSnapshot{Count: 1}
	}
	return ms
}

func parseExpression(expr string) (agg, op, value string, err error) {
	m := exprRe.FindStringSubmatch(strings.TrimSpace(expr))
	if len(m) != 4 {
		return "", "", "", fmt.Errorf("invalid threshold expression %q", expr)
	}
	return strings.ToLower(m[1]), m[2], strings.TrimSpace(m[3]), nil
}

// aggregate extracts the aggregator's value from a metric snapshot.
// Durations are milliseconds.
func aggregate(ms metrics.MetricSnapshot, agg string) (float64, error) {
	switch ms.Kind {
	case metrics.KindCounter:
		// Counters are exempt from the zero-observation failure below:
		// count, total, and per-second rate are all exactly 0 from metric
		// creation, so comparing them on an untouched counter is meaningful
		// (gates like "iteration_errors: count == 0" depend on it). Rate
		// fractions and trend statistics have no defined value over an
		// empty sample and fail instead.
		switch agg {
		case "count":
			return float64(ms.Count), nil
		case "total", "value":
			return ms.Total, nil
		case "rate":
			return ms.PerSecond, nil
		}
		return 0, fmt.Errorf("counter supports count, total, rate; got %q", agg)

	case metrics.KindRate:
		if agg == "rate" {
			if ms.Count == 0 {
				return 0, fmt.Errorf("rate has no observations")
			}
			return ms.Fraction, nil
		}
		return 0, fmt.Errorf("rate supports rate; got %q", agg)

	case metrics.KindTrend:
		if agg == "count" {
			return float64(ms.Count), nil
		}
		if ms.Count == 0 || ms.Trend == nil {
			return 0, fmt.Errorf("trend has no observations")
		}
		switch agg {
		case "min":
			return ms.Trend.Min, nil
		case "max":
			return ms.Trend.Max, nil
		case "avg", "mean":
			return ms.Trend.Mean, nil
		case "med":
			return ms.Trend.P(50), nil
		}
		if q, ok := parseQuantile(agg); ok {
			return ms.Trend.P(q), nil
		}
		return 0, fmt.Errorf("trend supports count, min, max, avg, med, pNN; got %q", agg)
	}
	return 0, fmt.Errorf("unknown metric kind %q", ms.Kind)
}

// parseQuantile accepts "p95", "p99.9", and "p(99.9)" forms.
func parseQuantile(agg string) (float64, bool) {
	if !strings.HasPrefix(agg, "p") {
		return 0, false
	}
	spec := strings.TrimPrefix(agg, "p")
	spec = strings.TrimSuffix(strings.TrimPrefix(spec, "("), ")")
	spec = strings.TrimSpace(spec)
	q, err := strconv.ParseFloat(spec, 64)
	if err != nil || q < 0 || q > 100 {
		return 0, false
	}
	return q, true
}

// parseValue accepts plain numbers and Go duration strings; durations become
// milliseconds.
func parseValue(s string) (float64, error) {
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return float64(d) / float64(time.Millisecond), nil
	}
	return 0, fmt.Errorf("invalid threshold value %q", s)
}

func compare(actual float64, op string, want float64) bool {
	switch op {
	case "<":
		return actual < want
	case "<=":
		return actual <= want
	case ">":
		return actual > want
	case ">=":
		return actual >= want
	case "==", "=":
		return actual == want
	case "!=":
		return actual != want
	default:
		return false
	}
}

func formatValue(kind metrics.Kind, agg string, v float64) string {
	if kind == metrics.KindTrend && agg != "count" {
		return fmt.Sprintf("%.2fms", v)
	}
	if kind == metrics.KindRate {
		return fmt.Sprintf("%.4f", v)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
