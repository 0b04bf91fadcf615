package output

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/torosent/octail/internal/config"
	"github.com/torosent/octail/internal/metrics"
)

// Report is the end-of-run summary.
type Report struct {
	RunID      string        `json:"run_id" yaml:"run_id"`
	Target     string        `json:"target" yaml:"target"`
	Bucket     string        `json:"bucket" yaml:"bucket"`
	Threads    int           `json:"threads" yaml:"threads"`
	Iterations int           `json:"iterations_per_worker" yaml:"iterations_per_worker"`
	StartedAt  time.Time     `json:"started_at" yaml:"started_at"`
	TimedOut   bool          `json:"timed_out" yaml:"timed_out"`
	Stats      metrics.Stats `json:"stats" yaml:"stats"`

	Thresholds []ThresholdResult `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`
}

// ThresholdResult is one evaluated pass/fail assertion.
type ThresholdResult struct {
	Threshold string  `json:"threshold" yaml:"threshold"`
	Actual    float64 `json:"actual" yaml:"actual"`
	Pass      bool    `json:"pass" yaml:"pass"`
	Message   string  `json:"-" yaml:"-"`
}

// Write renders r in the given format.
func Write(w io.Writer, format config.OutputFormat, r Report) error {
	switch format {
	case config.OutputJSON:
		return PrintJSONReport(w, r)
	case config.OutputYAML:
		return PrintYAMLReport(w, r)
	case config.OutputText, "":
		PrintReport(w, r)
		return nil
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

// PrintReport outputs a human-readable summary report.
func PrintReport(w io.Writer, r Report) {
	stats := r.Stats
	fmt.Fprintln(w, "\n--- Load Test Results ---")
	fmt.Fprintf(w, "Run ID:            %s\n", r.RunID)
	fmt.Fprintf(w, "Target:            %s\n", r.Target)
	fmt.Fprintf(w, "Workers:           %d\n", r.Threads)
	fmt.Fprintf(w, "Iterations:        %d\n", stats.Iterations)
	fmt.Fprintf(w, "Failed Iterations: %d\n", stats.FailedIterations)
	fmt.Fprintf(w, "Requests:          %d\n", stats.Requests)
	fmt.Fprintf(w, "Duration:          %s\n", stats.Duration)
	fmt.Fprintf(w, "Requests/sec:      %.2f\n", stats.RequestsPerSec)
	if r.TimedOut {
		fmt.Fprintln(w, "Deadline reached:  outstanding workers were abandoned")
	}

	for _, m := range stats.Methods {
		fmt.Fprintf(w, "\nLatency (%s, %d calls):\n", m.Method, m.Count)
		fmt.Fprintf(w, "  Min:             %s\n", m.MinLatency)
		fmt.Fprintf(w, "  Max:             %s\n", m.MaxLatency)
		fmt.Fprintf(w, "  Mean:            %s\n", m.MeanLatency)
		fmt.Fprintf(w, "  P50:             %s\n", m.P50Latency)
		fmt.Fprintf(w, "  P90:             %s\n", m.P90Latency)
		fmt.Fprintf(w, "  P95:             %s\n", m.P95Latency)
		fmt.Fprintf(w, "  P99:             %s\n", m.P99Latency)
	}

	if len(stats.Failures) > 0 {
		fmt.Fprintln(w, "\nFailures:")
		writeFailures(w, stats.Failures, "  ")
	}

	if len(r.Thresholds) > 0 {
		fmt.Fprintln(w, "\nThresholds:")
		for _, t := range r.Thresholds {
			fmt.Fprintf(w, "  %s\n", t.Message)
		}
	}
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// PrintYAMLReport outputs a YAML-formatted report.
func PrintYAMLReport(w io.Writer, r Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return err
	}
	return enc.Close()
}

func writeFailures(w io.Writer, rows []metrics.FailureBucket, indent string) {
	for _, row := range rows {
		fmt.Fprintf(w, "%s%s: %d\n", indent, row.Label, row.Count)
	}
}
