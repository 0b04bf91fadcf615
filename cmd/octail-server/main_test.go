package main

import (
	"testing"
)

func TestCommandFlags(t *testing.T) {
	cmd := newCommand()
	if err := cmd.ParseFlags([]string{"--addr", "127.0.0.1:0", "--fail-rate", "0.25", "--brotli", "--path", "/x"}); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}
	for name, want := range map[string]string{
		"addr":      "127.0.0.1:0",
		"fail-rate": "0.25",
		"brotli":    "true",
		"path":      "/x",
		"log-level": "info",
	} {
		if got := cmd.Flags().Lookup(name).Value.String(); got != want {
			t.Errorf("--%s = %q, want %q", name, got, want)
		}
	}
}

func TestCommandRejectsArgs(t *testing.T) {
	cmd := newCommand()
	cmd.SetArgs([]string{"extra"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("Execute() error = nil with positional args")
	}
}

func TestServeRejectsBadFailRate(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	cmd := newCommand()
	cmd.SetArgs([]string{"--fail-rate", "2", "--addr", "127.0.0.1:0"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("Execute() error = nil for fail rate 2")
	}
}
