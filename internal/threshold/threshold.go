// Package threshold evaluates pass/fail assertions against a run's metrics.
package threshold

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/torosent/octail/internal/metrics"
)

// Threshold is one assertion such as "get_latency:p99 < 50".
type Threshold struct {
	Metric    string  // latency, get_latency, post_latency, iterations_failed, requests
	Aggregate string  // p50, p90, p95, p99, avg, min, max, rate, count
	Operator  string  // <, <=, >, >=, ==
	Value     float64 // compared in milliseconds for latency metrics
	Raw       string
}

// Result is the outcome of evaluating one Threshold.
type Result struct {
	Threshold Threshold
	Actual    float64
	Pass      bool
	Message   string
}

var pattern = regexp.MustCompile(`^([a-z_]+):([a-z0-9]+)\s*(<=|>=|==|<|>)\s*([0-9]+(?:\.[0-9]+)?)$`)

var (
	latencyAggregates = []string{"p50", "p90", "p95", "p99", "avg", "min", "max"}
	counterAggregates = []string{"rate", "count"}
)

// Parse parses "metric:aggregate operator value".
func Parse(s string) (Threshold, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Threshold{}, fmt.Errorf("empty threshold string")
	}
	m := pattern.FindStringSubmatch(s)
	if m == nil {
		return Threshold{}, fmt.Errorf("invalid threshold format: %q (expected metric:aggregate operator value, e.g. 'get_latency:p99 < 50')", s)
	}
	value, err := strconv.ParseFloat(m[4], 64)
	if err != nil {
		return Threshold{}, fmt.Errorf("invalid threshold value %q: %v", m[4], err)
	}

	t := Threshold{Metric: m[1], Aggregate: m[2], Operator: m[3], Value: value, Raw: s}
	var allowed []string
	switch t.Metric {
	case "latency", "get_latency", "post_latency":
		allowed = latencyAggregates
	case "iterations_failed", "requests":
		allowed = counterAggregates
	default:
		return Threshold{}, fmt.Errorf("unsupported metric: %q (supported: latency, get_latency, post_latency, iterations_failed, requests)", t.Metric)
	}
	if !contains(allowed, t.Aggregate) {
		return Threshold{}, fmt.Errorf("unsupported aggregate %q for %s (supported: %s)", t.Aggregate, t.Metric, strings.Join(allowed, ", "))
	}
	return t, nil
}

// ParseMultiple parses every string and reports all failures together.
func ParseMultiple(thresholds []string) ([]Threshold, error) {
	if len(thresholds) == 0 {
		return nil, nil
	}
	result := make([]Threshold, 0, len(thresholds))
	var issues []string
	for i, s := range thresholds {
		t, err := Parse(s)
		if err != nil {
			issues = append(issues, fmt.Sprintf("threshold[%d]: %v", i, err))
			continue
		}
		result = append(result, t)
	}
	if len(issues) > 0 {
		return nil, fmt.Errorf("threshold parsing errors: %s", strings.Join(issues, "; "))
	}
	return result, nil
}

// Evaluate checks every threshold against stats.
func Evaluate(thresholds []Threshold, stats metrics.Stats) []Result {
	if len(thresholds) == 0 {
		return nil
	}
	results := make([]Result, 0, len(thresholds))
	for _, t := range thresholds {
		results = append(results, evaluateOne(t, stats))
	}
	return results
}

// AllPassed reports whether no result failed.
func AllPassed(results []Result) bool {
	for _, r := range results {
		if !r.Pass {
			return false
		}
	}
	return true
}

func evaluateOne(t Threshold, stats metrics.Stats) Result {
	actual, err := extract(t, stats)
	if err != nil {
		return Result{Threshold: t, Message: fmt.Sprintf("✗ %s: %v", t.Raw, err)}
	}
	pass := compareValues(actual, t.Operator, t.Value)
	status := "✓"
	if !pass {
		status = "✗"
	}
	return Result{
		Threshold: t,
		Actual:    actual,
		Pass:      pass,
		Message:   fmt.Sprintf("%s %s: %.2f %s %.2f", status, t.Raw, actual, t.Operator, t.Value),
	}
}

func extract(t Threshold, stats metrics.Stats) (float64, error) {
	switch t.Metric {
	case "get_latency":
		return methodLatency(stats, "GET", t.Aggregate)
	case "post_latency":
		return methodLatency(stats, "POST", t.Aggregate)
	case "latency":
		return worstLatency(stats, t.Aggregate)
	case "iterations_failed":
		if t.Aggregate == "count" {
			return float64(stats.FailedIterations), nil
		}
		if stats.Iterations == 0 {
			return 0, nil
		}
		return float64(stats.FailedIterations) / float64(stats.Iterations), nil
	case "requests":
		if t.Aggregate == "count" {
			return float64(stats.Requests), nil
		}
		return stats.RequestsPerSec, nil
	}
	return 0, fmt.Errorf("unknown metric: %s", t.Metric)
}

func methodLatency(stats metrics.Stats, method, aggregate string) (float64, error) {
	m, ok := stats.Method(method)
	if !ok {
		return 0, fmt.Errorf("no %s calls recorded", method)
	}
	return latencyValue(m, aggregate), nil
}

// worstLatency takes the highest value across methods, or the lowest for min.
func worstLatency(stats metrics.Stats, aggregate string) (float64, error) {
	if len(stats.Methods) == 0 {
		return 0, fmt.Errorf("no calls recorded")
	}
	worst := latencyValue(stats.Methods[0], aggregate)
	for _, m := range stats.Methods[1:] {
		v := latencyValue(m, aggregate)
		if aggregate == "min" {
			worst = math.Min(worst, v)
		} else {
			worst = math.Max(worst, v)
		}
	}
	return worst, nil
}

func latencyValue(m metrics.MethodStats, aggregate string) float64 {
	switch aggregate {
	case "p50":
		return m.P50LatencyMs
	case "p90":
		return m.P90LatencyMs
	case "p95":
		return m.P95LatencyMs
	case "p99":
		return m.P99LatencyMs
	case "min":
		return m.MinLatencyMs
	case "max":
		return m.MaxLatencyMs
	default:
		return m.MeanLatencyMs
	}
}

func compareValues(actual float64, operator string, expected float64) bool {
	// Handle floating point comparison with small epsilon
	epsilon := 1e-9

	switch operator {
	case "<":
		return actual < expected
	case "<=":
		return actual <= expected || math.Abs(actual-expected) < epsilon
	case ">":
		return actual > expected
	case ">=":
		return actual >= expected || math.Abs(actual-expected) < epsilon
	case "==":
		return math.Abs(actual-expected) < epsilon
	default:
		return false
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
