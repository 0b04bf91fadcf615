package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/torosent/octail/internal/config"
	"github.com/torosent/octail/internal/metrics"
)

func sampleReport() Report {
	c := metrics.NewCollector()
	c.Record("GET", 10*time.Millisecond)
	c.Record("POST", 30*time.Millisecond)
	c.ObserveIteration(0, nil)
	c.ObserveIteration(0, metricsTestError{})
	return Report{
		RunID:      "01J0000000000000000000TEST",
		Target:     "http://localhost:8080/test",
		Bucket:     "samples",
		Threads:    2,
		Iterations: 1,
		Stats:      c.Stats(2 * time.Second),
	}
}

type metricsTestError struct{}

func (metricsTestError) Error() string { return "boom" }

func TestPrintReportBasic(t *testing.T) {
	var buf bytes.Buffer
	PrintReport(&buf, sampleReport())

	output := buf.String()
	for _, want := range []string{
		"Run ID:            01J0000000000000000000TEST",
		"Failed Iterations: 1",
		"Requests:          2",
		"Latency (GET, 1 calls)",
		"Latency (POST, 1 calls)",
		"Failures:",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output:\n%s", want, output)
		}
	}
	if strings.Contains(output, "Deadline reached") {
		t.Error("unexpected deadline line")
	}
}

func TestPrintReportDeadline(t *testing.T) {
	r := sampleReport()
	r.TimedOut = true
	var buf bytes.Buffer
	PrintReport(&buf, r)
	if !strings.Contains(buf.String(), "Deadline reached") {
		t.Errorf("expected deadline line in output:\n%s", buf.String())
	}
}

func TestPrintReportThresholds(t *testing.T) {
	r := sampleReport()
	r.Thresholds = []ThresholdResult{
		{Threshold: "get_latency:p99 < 50", Actual: 10, Pass: true, Message: "✓ get_latency:p99 < 50: 10.00 < 50.00"},
	}
	var buf bytes.Buffer
	PrintReport(&buf, r)
	if !strings.Contains(buf.String(), "Thresholds:\n  ✓ get_latency:p99 < 50") {
		t.Errorf("expected threshold section in output:\n%s", buf.String())
	}
}

func TestPrintJSONReport(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, config.OutputJSON, sampleReport()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	var parsed map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed["run_id"] != "01J0000000000000000000TEST" {
		t.Errorf("run_id = %v", parsed["run_id"])
	}
	stats, ok := parsed["stats"].(map[string]interface{})
	if !ok {
		t.Fatalf("missing stats: %v", parsed)
	}
	if stats["requests"] != float64(2) {
		t.Errorf("stats.requests = %v, want 2", stats["requests"])
	}
}

func TestPrintYAMLReport(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, config.OutputYAML, sampleReport()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	var parsed struct {
		RunID string `yaml:"run_id"`
		Stats struct {
			Iterations int `yaml:"iterations"`
			Methods    []struct {
				Method string `yaml:"method"`
			} `yaml:"methods"`
		} `yaml:"stats"`
	}
	if err := yaml.Unmarshal(buf.Bytes(), &parsed); err != nil {
		t.Fatalf("invalid YAML: %v\n%s", err, buf.String())
	}
	if parsed.RunID != "01J0000000000000000000TEST" || parsed.Stats.Iterations != 2 {
		t.Errorf("parsed = %+v", parsed)
	}
	if len(parsed.Stats.Methods) != 2 || parsed.Stats.Methods[0].Method != "GET" {
		t.Errorf("methods = %+v", parsed.Stats.Methods)
	}
}

func TestWriteUnknownFormat(t *testing.T) {
	if err := Write(&bytes.Buffer{}, "xml", sampleReport()); err == nil {
		t.Fatal("Write() error = nil for xml")
	}
}
