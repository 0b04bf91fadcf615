// Package storage provides the payload sources workers POST from.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/torosent/octail/internal/config"
)

// Backend reads one object from a bucket.
type Backend interface {
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
	Name() string
}

// Uploader stores objects. Both built-in backends implement it.
type Uploader interface {
	PutObject(ctx context.Context, bucket, key string, data []byte) error
}

// FetchError reports a failed object read. It is never retried by the caller.
type FetchError struct {
	Provider string
	Bucket   string
	Key      string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: get %s/%s: %v", e.Provider, e.Bucket, e.Key, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ErrNotFound is wrapped when the object does not exist.
var ErrNotFound = errors.New("object not found")

// Picker chooses which object a fetch reads: the large one with probability
// LargeRatio, the small one otherwise.
type Picker struct {
	Small      string
	Large      string
	LargeRatio float64

	mu    sync.Mutex
	float func() float64
}

// NewPicker returns a Picker drawing from the global random source.
func NewPicker(small, large string, ratio float64) *Picker {
	return &Picker{Small: small, Large: large, LargeRatio: ratio, float: rand.Float64}
}

// Key returns the object key for the next fetch.
func (p *Picker) Key() string {
	if p.Large == "" || p.LargeRatio <= 0 {
		return p.Small
	}
	p.mu.Lock()
	r := p.float()
	p.mu.Unlock()
	if r < p.LargeRatio {
		return p.Large
	}
	return p.Small
}

// Source implements runner.PayloadSource over a Backend.
type Source struct {
	backend Backend
	picker  *Picker
	logger  *slog.Logger
}

// NewSource wraps backend; picker decides the object key of every fetch.
func NewSource(backend Backend, picker *Picker, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{backend: backend, picker: picker, logger: logger}
}

// NewBackend builds the backend selected by cfg.Provider.
func NewBackend(cfg config.StorageConfig) (Backend, error) {
	switch config.StorageProvider(strings.ToLower(string(cfg.Provider))) {
	case config.StorageProviderOSS:
		return NewOSSBackend(cfg)
	case config.StorageProviderFile:
		return NewFileBackend(cfg.Root)
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
	}
}

// Open builds the Source selected by cfg.
func Open(cfg config.StorageConfig, logger *slog.Logger) (*Source, error) {
	backend, err := NewBackend(cfg)
	if err != nil {
		return nil, err
	}
	return NewSource(backend, NewPicker(cfg.SmallObject, cfg.LargeObject, cfg.LargeRatio), logger), nil
}

// Fetch reads the picked object from bucket.
func (s *Source) Fetch(ctx context.Context, bucket string) ([]byte, error) {
	key := s.picker.Key()
	data, err := s.backend.GetObject(ctx, bucket, key)
	if err != nil {
		return nil, &FetchError{Provider: s.backend.Name(), Bucket: bucket, Key: key, Err: err}
	}
	s.logger.Debug("fetched payload", "bucket", bucket, "key", key, "bytes", len(data))
	return data, nil
}
