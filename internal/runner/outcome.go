package runner

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// OutcomeKind classifies the result of a single Attempt.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota + 1
	OutcomeRetryable
	OutcomeFatal
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetryable:
		return "retryable"
	case OutcomeFatal:
		return "fatal"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Outcome is the immutable result of one Attempt. Exactly one Kind is set;
// Payload is only meaningful for OutcomeSuccess.
type Outcome struct {
	Kind       OutcomeKind
	Payload    []byte
	Reason     string
	StatusCode int // 0 when the attempt never produced a response
}

// Success returns a successful Outcome carrying payload.
func Success(payload []byte) Outcome {
	return Outcome{Kind: OutcomeSuccess, Payload: payload}
}

// Retryable returns an Outcome the RetryDriver will try again.
func Retryable(reason string) Outcome {
	return Outcome{Kind: OutcomeRetryable, Reason: reason}
}

// Fatal returns an Outcome that aborts the retry sequence immediately.
func Fatal(reason string) Outcome {
	return Outcome{Kind: OutcomeFatal, Reason: reason}
}

// WithStatus records the response status the Outcome was derived from.
func (o Outcome) WithStatus(code int) Outcome {
	o.StatusCode = code
	return o
}

// Attempt describes one HTTP call. A fresh Attempt is built for every try.
type Attempt struct {
	Method  string
	Body    []byte
	Timeout time.Duration
}

// NewAttempt builds an Attempt; the body is only kept for POST.
func NewAttempt(method string, body []byte, timeout time.Duration) *Attempt {
	a := &Attempt{Method: method, Timeout: timeout}
	if method == http.MethodPost {
		a.Body = body
	}
	return a
}

// Executor performs a single Attempt and classifies what happened.
type Executor interface {
	Execute(ctx context.Context, attempt *Attempt) Outcome
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, attempt *Attempt) Outcome

func (f ExecutorFunc) Execute(ctx context.Context, attempt *Attempt) Outcome {
	return f(ctx, attempt)
}
