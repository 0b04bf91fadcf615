package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/torosent/octail/internal/config"
	"github.com/torosent/octail/internal/logging"
	"github.com/torosent/octail/internal/output"
	"github.com/torosent/octail/internal/testserver"
)

func seedBucket(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "samples")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for name, body := range map[string]string{
		"small_file.json": `{"numbers":[0,1,2,3]}`,
		"large_file.json": `{"numbers":[0,1,2,3,4,5,6,7,8,9]}`,
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func baseArgs(target, root string) []string {
	return []string{
		"--target", target,
		"--bucket", "samples",
		"--storage-provider", "file",
		"--storage-root", root,
		"-c", "2",
		"-n", "2",
		"--timeout", "2s",
		"--pause", "0",
		"--quiet",
		"--log-level", "error",
	}
}

func TestRunAgainstTestServer(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	router, err := testserver.NewRouter(testserver.Options{Logger: logging.Discard()})
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(router)
	defer srv.Close()

	reportFile := filepath.Join(t.TempDir(), "runs.jsonl")
	args := append(baseArgs(srv.URL+testserver.DefaultPath, seedBucket(t)),
		"--output", "json", "--report-file", reportFile)

	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), args, &stdout, &stderr); err != nil {
		t.Fatalf("run() error = %v\nstderr: %s", err, stderr.String())
	}

	var report output.Report
	if err := json.Unmarshal(stdout.Bytes(), &report); err != nil {
		t.Fatalf("stdout is not a JSON report: %v\n%s", err, stdout.String())
	}
	if report.RunID == "" || report.Threads != 2 || report.TimedOut {
		t.Errorf("report = %+v", report)
	}
	if report.Stats.Iterations != 4 || report.Stats.FailedIterations != 0 {
		t.Errorf("iterations = %d failed = %d", report.Stats.Iterations, report.Stats.FailedIterations)
	}
	if report.Stats.Requests != 16 {
		t.Errorf("requests = %d, want 16", report.Stats.Requests)
	}

	data, err := os.ReadFile(reportFile)
	if err != nil {
		t.Fatalf("report file: %v", err)
	}
	if !strings.Contains(string(data), report.RunID) {
		t.Error("report file does not contain the run")
	}
}

func TestRunReportsFailedIterations(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	root := seedBucket(t)

	args := append(baseArgs(srv.URL, root), "--max-attempts", "1", "--output", "text")
	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), args, &stdout, &stderr); err != nil {
		t.Fatalf("run() error = %v, want nil when iterations fail", err)
	}
	if !strings.Contains(stdout.String(), "Max retries exceeded: 4") {
		t.Errorf("text report missing failure bucket:\n%s", stdout.String())
	}

	strict := append(baseArgs(srv.URL, root), "--max-attempts", "1", "--threshold", "iterations_failed:count == 0")
	stdout.Reset()
	if err := run(context.Background(), strict, &stdout, &stderr); err == nil || !strings.Contains(err.Error(), "thresholds failed") {
		t.Fatalf("run() error = %v, want threshold failure", err)
	}
}

func TestRunThresholds(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	router, err := testserver.NewRouter(testserver.Options{Logger: logging.Discard()})
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(router)
	defer srv.Close()
	root := seedBucket(t)

	pass := append(baseArgs(srv.URL+testserver.DefaultPath, root),
		"--threshold", "iterations_failed:count == 0", "--threshold", "requests:count == 16")
	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), pass, &stdout, &stderr); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if !strings.Contains(stdout.String(), "✓ requests:count == 16") {
		t.Errorf("missing passing threshold in report:\n%s", stdout.String())
	}

	fail := append(baseArgs(srv.URL+testserver.DefaultPath, root), "--threshold", "requests:count > 100")
	stdout.Reset()
	if err := run(context.Background(), fail, &stdout, &stderr); err == nil || !strings.Contains(err.Error(), "thresholds failed") {
		t.Fatalf("run() error = %v, want threshold failure", err)
	}

	bad := append(baseArgs(srv.URL+testserver.DefaultPath, root), "--threshold", "cpu:avg < 1")
	if err := run(context.Background(), bad, &stdout, &stderr); err == nil || !strings.Contains(err.Error(), "unsupported metric") {
		t.Fatalf("run() error = %v, want parse failure", err)
	}
}

func TestRunValidationError(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"--target", "ftp://x", "--threads", "0"}, &stdout, &stderr)
	var verr config.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("run() error = %v, want ValidationError", err)
	}
	if len(verr.Issues()) < 3 {
		t.Errorf("issues = %v", verr.Issues())
	}
}

func TestRunHelp(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), []string{"--help"}, &stdout, &stderr); err != nil {
		t.Fatalf("run(--help) error = %v", err)
	}
}
