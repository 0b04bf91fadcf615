package runner

import (
	"context"
	"time"
)

// Downstream computations applied to every response.
const (
	DownstreamCount = "count"
	DownstreamSum   = "sum"
)

// RunConfig is the read-only view of the run shared by every worker.
type RunConfig struct {
	TargetURL  string
	Bucket     string
	Threads    int
	Timeout    time.Duration
	Iterations int
}

// PayloadSource returns the bytes POSTed to the target.
type PayloadSource interface {
	Fetch(ctx context.Context, bucket string) ([]byte, error)
}

// Processor runs a named downstream computation over a response payload.
type Processor interface {
	Process(payload []byte, fn string) (int64, error)
}

// LatencyRecorder receives one latency sample per completed retry sequence.
type LatencyRecorder interface {
	Record(method string, latency time.Duration)
}

// Client is a per-worker HTTP client handle.
type Client interface {
	Executor
	Start() error
	Stop() error
}

// ClientFactory builds a new, unstarted Client for one worker.
type ClientFactory func(cfg RunConfig) Client
