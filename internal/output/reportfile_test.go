package output

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestAppendReportConcurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.jsonl")

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r := sampleReport()
			r.RunID = fmt.Sprintf("run-%d", i)
			errs <- AppendReport(path, r)
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("AppendReport() error = %v", err)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	seen := map[string]bool{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		var r Report
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			t.Fatalf("line is not a report: %v", err)
		}
		seen[r.RunID] = true
	}
	if err := scanner.Err(); err != nil {
		t.Fatal(err)
	}
	if len(seen) != 8 {
		t.Errorf("found %d distinct runs, want 8", len(seen))
	}
}

func TestAppendReportBadPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "runs.jsonl")
	if err := AppendReport(path, sampleReport()); err == nil {
		t.Fatal("AppendReport() error = nil for missing directory")
	}
}
