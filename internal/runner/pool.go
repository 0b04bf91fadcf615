package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultDeadline bounds the whole pool run.
const DefaultDeadline = 10 * time.Second

// Result captures how a pool run ended.
type Result struct {
	Workers  int
	TimedOut bool
	Duration time.Duration
}

// Pool launches a fixed number of tasks and waits for them up to Deadline.
type Pool struct {
	Size     int
	Deadline time.Duration
	Logger   *slog.Logger
}

// Task is the body of one pool member; id is in [0, Size).
type Task func(ctx context.Context, id int) error

// Run starts exactly Size tasks. If they do not all finish within Deadline,
// the timeout is logged and Run returns with TimedOut set and a nil error.
// Outstanding tasks are abandoned in place and receive no cancellation.
// Otherwise the first task error, if any, is returned.
func (p *Pool) Run(ctx context.Context, task Task) (Result, error) {
	size := p.Size
	if size <= 0 {
		size = 1
	}
	deadline := p.Deadline
	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	start := time.Now()
	res := Result{Workers: size}

	// A plain group: one failing task must not cancel its siblings.
	var g errgroup.Group
	for i := 0; i < size; i++ {
		id := i
		g.Go(func() (err error) {
			defer recoverPanic(id, &err)
			return task(ctx, id)
		})
	}

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	timer := time.NewTimer(deadline)
	defer timer.Stop()

	select {
	case err := <-done:
		res.Duration = time.Since(start)
		return res, err
	case <-timer.C:
		res.TimedOut = true
		res.Duration = time.Since(start)
		logger.Warn("worker pool deadline reached; abandoning outstanding workers",
			"deadline", deadline, "workers", size)
		return res, nil
	}
}

// recoverPanic turns a panic in a pool task into that task's error.
func recoverPanic(id int, err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("worker %d: %w: %v", id, ErrPanic, r)
	}
}
