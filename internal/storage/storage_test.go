package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aliyun/alibabacloud-oss-go-sdk-v2/oss"

	"github.com/torosent/octail/internal/config"
)

func writeObject(t *testing.T, root, bucket, key, body string) {
	t.Helper()
	dir := filepath.Join(root, bucket)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, key), []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func TestPickerRatio(t *testing.T) {
	tests := []struct {
		name  string
		ratio float64
		draw  float64
		want  string
	}{
		{"below ratio picks large", 0.05, 0.01, "large.json"},
		{"at ratio picks small", 0.05, 0.05, "small.json"},
		{"above ratio picks small", 0.05, 0.9, "small.json"},
		{"zero ratio never large", 0, 0, "small.json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPicker("small.json", "large.json", tt.ratio)
			p.float = func() float64 { return tt.draw }
			if got := p.Key(); got != tt.want {
				t.Errorf("Key() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPickerDistribution(t *testing.T) {
	p := NewPicker("small", "large", 0.05)
	large := 0
	const n = 20000
	for i := 0; i < n; i++ {
		if p.Key() == "large" {
			large++
		}
	}
	if frac := float64(large) / n; frac < 0.03 || frac > 0.07 {
		t.Errorf("large fraction = %.3f, want about 0.05", frac)
	}
}

func TestFileSourceFetch(t *testing.T) {
	root := t.TempDir()
	writeObject(t, root, "samples", "small_file.json", `{"numbers":[0,1,2]}`)

	src, err := Open(config.StorageConfig{
		Provider:    config.StorageProviderFile,
		Root:        root,
		SmallObject: "small_file.json",
	}, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	got, err := src.Fetch(context.Background(), "samples")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if string(got) != `{"numbers":[0,1,2]}` {
		t.Errorf("Fetch() = %q", got)
	}
}

func TestFileSourceMissingObject(t *testing.T) {
	root := t.TempDir()
	backend, err := NewFileBackend(root)
	if err != nil {
		t.Fatalf("NewFileBackend() error = %v", err)
	}
	src := NewSource(backend, NewPicker("missing.json", "", 0), nil)

	_, err = src.Fetch(context.Background(), "samples")
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("Fetch() error = %v, want *FetchError", err)
	}
	if fetchErr.Provider != "file" || fetchErr.Bucket != "samples" || fetchErr.Key != "missing.json" {
		t.Errorf("FetchError = %+v", fetchErr)
	}
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Fetch() error = %v, want ErrNotFound", err)
	}
}

func TestFileBackendRejectsEscapingPaths(t *testing.T) {
	backend, err := NewFileBackend(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileBackend() error = %v", err)
	}
	for _, tc := range []struct{ bucket, key string }{
		{"..", "x.json"},
		{"samples", "../../etc/passwd"},
		{"a/b", "x.json"},
		{"samples", ""},
	} {
		if _, err := backend.GetObject(context.Background(), tc.bucket, tc.key); err == nil {
			t.Errorf("GetObject(%q, %q) error = nil, want error", tc.bucket, tc.key)
		}
	}
}

func TestFileBackendPutThenFetch(t *testing.T) {
	root := t.TempDir()
	backend, err := NewBackend(config.StorageConfig{Provider: "FILE", Root: root})
	if err != nil {
		t.Fatalf("NewBackend() error = %v", err)
	}
	up, ok := backend.(Uploader)
	if !ok {
		t.Fatal("file backend does not implement Uploader")
	}
	if err := up.PutObject(context.Background(), "fresh", "doc.json", []byte(`{"numbers":[]}`)); err != nil {
		t.Fatalf("PutObject() error = %v", err)
	}
	got, err := backend.GetObject(context.Background(), "fresh", "doc.json")
	if err != nil || string(got) != `{"numbers":[]}` {
		t.Errorf("GetObject() = %q, %v", got, err)
	}
	if err := up.PutObject(context.Background(), "fresh", "../escape.json", nil); err == nil {
		t.Error("PutObject() accepted an escaping key")
	}
}

func TestNewFileBackendValidation(t *testing.T) {
	if _, err := NewFileBackend(""); err == nil {
		t.Error("NewFileBackend(\"\") error = nil")
	}
	file := filepath.Join(t.TempDir(), "plain")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileBackend(file); err == nil {
		t.Error("NewFileBackend(file) error = nil, want not a directory")
	}
}

func TestOpenUnknownProvider(t *testing.T) {
	if _, err := Open(config.StorageConfig{Provider: "s3"}, nil); err == nil {
		t.Fatal("Open() error = nil for unknown provider")
	}
}

func newTestOSS(t *testing.T, handler http.HandlerFunc) *OSSBackend {
	t.Helper()
	t.Setenv("OSS_ACCESS_KEY_ID", "")
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	backend, err := NewOSSBackend(config.StorageConfig{
		Region:         "cn-hangzhou",
		Endpoint:       srv.URL,
		ConnectTimeout: 200 * time.Millisecond,
		ReadTimeout:    400 * time.Millisecond,
	}, func(c *oss.Config) {
		c.WithUsePathStyle(true)
	})
	if err != nil {
		t.Fatalf("NewOSSBackend() error = %v", err)
	}
	return backend
}

func TestOSSBackendGetObject(t *testing.T) {
	var gotPath string
	backend := newTestOSS(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"numbers":[1,2,3]}`)
	})

	data, err := backend.GetObject(context.Background(), "samples", "small_file.json")
	if err != nil {
		t.Fatalf("GetObject() error = %v", err)
	}
	if string(data) != `{"numbers":[1,2,3]}` {
		t.Errorf("GetObject() = %q", data)
	}
	if gotPath != "/samples/small_file.json" {
		t.Errorf("request path = %q, want /samples/small_file.json", gotPath)
	}
}

func TestOSSBackendNotFound(t *testing.T) {
	backend := newTestOSS(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.Header().Set("x-oss-request-id", "5374A2880232A65C2300****")
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>
<Error>
  <Code>NoSuchKey</Code>
  <Message>The specified key does not exist.</Message>
  <RequestId>5374A2880232A65C2300****</RequestId>
</Error>`)
	})

	_, err := backend.GetObject(context.Background(), "samples", "missing.json")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetObject() error = %v, want ErrNotFound", err)
	}
}

func TestOSSBackendPutObject(t *testing.T) {
	var (
		gotMethod, gotPath, gotType string
		gotBody                     []byte
	)
	backend := newTestOSS(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath, gotType = r.Method, r.URL.Path, r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("ETag", `"D41D8CD98F00B204E9800998ECF8427E"`)
		w.WriteHeader(http.StatusOK)
	})

	if err := backend.PutObject(context.Background(), "samples", "small_file.json", []byte(`{"numbers":[0]}`)); err != nil {
		t.Fatalf("PutObject() error = %v", err)
	}
	if gotMethod != http.MethodPut || gotPath != "/samples/small_file.json" {
		t.Errorf("request = %s %s", gotMethod, gotPath)
	}
	if gotType != "application/json" {
		t.Errorf("Content-Type = %q", gotType)
	}
	if string(gotBody) != `{"numbers":[0]}` {
		t.Errorf("body = %q", gotBody)
	}
}

func TestNewOSSBackendRequiresLocation(t *testing.T) {
	if _, err := NewOSSBackend(config.StorageConfig{}); err == nil {
		t.Fatal("NewOSSBackend() error = nil without region or endpoint")
	}
}
