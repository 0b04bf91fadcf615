package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Collector records per-method latencies and iteration results.
type Collector struct {
	mu         sync.Mutex
	methods    map[string]*series
	iterations int64
	failed     int64
	failures   map[string]int64
	start      time.Time
}

type series struct {
	hist  *hdrhistogram.Histogram
	count int64
	min   time.Duration
	max   time.Duration
	sum   time.Duration
}

func newSeries() *series {
	// Track latencies from 1µs up to 60s with 3 significant figures.
	return &series{hist: hdrhistogram.New(1, 60_000_000, 3)}
}

func (s *series) record(latency time.Duration) {
	us := latency.Microseconds()
	if us < s.hist.LowestTrackableValue() {
		us = s.hist.LowestTrackableValue()
	}
	if us > s.hist.HighestTrackableValue() {
		us = s.hist.HighestTrackableValue()
	}
	_ = s.hist.RecordValue(us)

	s.count++
	s.sum += latency
	if s.count == 1 || latency < s.min {
		s.min = latency
	}
	if latency > s.max {
		s.max = latency
	}
}

// MethodStats summarises the calls made with one HTTP method.
type MethodStats struct {
	Method      string        `json:"method" yaml:"method"`
	Count       int64         `json:"count" yaml:"count"`
	MinLatency  time.Duration `json:"-" yaml:"-"`
	MaxLatency  time.Duration `json:"-" yaml:"-"`
	MeanLatency time.Duration `json:"-" yaml:"-"`
	P50Latency  time.Duration `json:"-" yaml:"-"`
	P90Latency  time.Duration `json:"-" yaml:"-"`
	P95Latency  time.Duration `json:"-" yaml:"-"`
	P99Latency  time.Duration `json:"-" yaml:"-"`

	// JSON-friendly millisecond fields.
	MinLatencyMs  float64 `json:"min_latency_ms" yaml:"min_latency_ms"`
	MaxLatencyMs  float64 `json:"max_latency_ms" yaml:"max_latency_ms"`
	MeanLatencyMs float64 `json:"mean_latency_ms" yaml:"mean_latency_ms"`
	P50LatencyMs  float64 `json:"p50_latency_ms" yaml:"p50_latency_ms"`
	P90LatencyMs  float64 `json:"p90_latency_ms" yaml:"p90_latency_ms"`
	P95LatencyMs  float64 `json:"p95_latency_ms" yaml:"p95_latency_ms"`
	P99LatencyMs  float64 `json:"p99_latency_ms" yaml:"p99_latency_ms"`
}

// Stats represents aggregated metrics.
type Stats struct {
	Iterations       int64           `json:"iterations" yaml:"iterations"`
	FailedIterations int64           `json:"failed_iterations" yaml:"failed_iterations"`
	Requests         int64           `json:"requests" yaml:"requests"`
	RequestsPerSec   float64         `json:"requests_per_sec" yaml:"requests_per_sec"`
	Duration         time.Duration   `json:"-" yaml:"-"`
	DurationMs       float64         `json:"duration_ms" yaml:"duration_ms"`
	Methods          []MethodStats   `json:"methods" yaml:"methods"`
	Failures         []FailureBucket `json:"failures,omitempty" yaml:"failures,omitempty"`
}

// Method returns the stats for method and whether any call was recorded.
func (s Stats) Method(method string) (MethodStats, bool) {
	for _, m := range s.Methods {
		if m.Method == method {
			return m, true
		}
	}
	return MethodStats{}, false
}

func NewCollector() *Collector {
	return &Collector{
		methods:  make(map[string]*series),
		failures: make(map[string]int64),
		start:    time.Now(),
	}
}

// Start resets the clock used by Elapsed.
func (c *Collector) Start() {
	c.mu.Lock()
	c.start = time.Now()
	c.mu.Unlock()
}

// Elapsed returns the time since Start.
func (c *Collector) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.start)
}

// Record adds one call latency under method.
func (c *Collector) Record(method string, latency time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.methods[method]
	if !ok {
		s = newSeries()
		c.methods[method] = s
	}
	s.record(latency)
}

// ObserveIteration counts one finished iteration. A non-nil err is bucketed
// by FailureLabel.
func (c *Collector) ObserveIteration(_ int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.iterations++
	if err != nil {
		c.failed++
		c.failures[FailureLabel(err)]++
	}
}

// Stats computes and returns current aggregated statistics.
func (c *Collector) Stats(elapsed time.Duration) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := Stats{
		Iterations:       c.iterations,
		FailedIterations: c.failed,
		Duration:         elapsed,
		DurationMs:       toMs(elapsed),
		Methods:          make([]MethodStats, 0, len(c.methods)),
	}

	for method, s := range c.methods {
		stats.Requests += s.count
		stats.Methods = append(stats.Methods, s.stats(method))
	}
	sort.Slice(stats.Methods, func(i, j int) bool {
		return stats.Methods[i].Method < stats.Methods[j].Method
	})

	if elapsed > 0 && stats.Requests > 0 {
		stats.RequestsPerSec = float64(stats.Requests) / elapsed.Seconds()
	}
	stats.Failures = FlattenFailures(c.failures)
	return stats
}

func (s *series) stats(method string) MethodStats {
	m := MethodStats{
		Method:     method,
		Count:      s.count,
		MinLatency: s.min,
		MaxLatency: s.max,
	}
	if s.count > 0 {
		m.MeanLatency = time.Duration(int64(s.sum) / s.count)
		m.P50Latency = quantile(s.hist, 50)
		m.P90Latency = quantile(s.hist, 90)
		m.P95Latency = quantile(s.hist, 95)
		m.P99Latency = quantile(s.hist, 99)
	}
	m.MinLatencyMs = toMs(m.MinLatency)
	m.MaxLatencyMs = toMs(m.MaxLatency)
	m.MeanLatencyMs = toMs(m.MeanLatency)
	m.P50LatencyMs = toMs(m.P50Latency)
	m.P90LatencyMs = toMs(m.P90Latency)
	m.P95LatencyMs = toMs(m.P95Latency)
	m.P99LatencyMs = toMs(m.P99Latency)
	return m
}

func quantile(h *hdrhistogram.Histogram, q float64) time.Duration {
	return time.Duration(h.ValueAtQuantile(q)) * time.Microsecond
}

func toMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
