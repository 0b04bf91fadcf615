package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gogama/httpx/transient"
	"github.com/google/uuid"

	"github.com/torosent/octail/internal/runner"
	"github.com/torosent/octail/internal/tracing"
)

// Execute sends one attempt and classifies the result:
//
//	2xx           -> Success(body)
//	5xx           -> Retryable(reason phrase)
//	anything else -> Success(empty), so 3xx and 4xx are neither retried nor failed
//	transport     -> Retryable(labelled error)
func (c *Client) Execute(ctx context.Context, attempt *runner.Attempt) runner.Outcome {
	if attempt == nil {
		return runner.Retryable("Request is null")
	}
	hc, target := c.client()
	if hc == nil {
		return runner.Fatal(ErrNotStarted.Error())
	}

	if attempt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, attempt.Timeout)
		defer cancel()
	}

	body, getBody := newRequestBody(attempt.Body)
	req, err := http.NewRequestWithContext(ctx, attempt.Method, target.String(), body)
	if err != nil {
		return runner.Retryable(fmt.Sprintf("build request: %v", err))
	}
	req.GetBody = getBody
	req.ContentLength = int64(len(attempt.Body))
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if len(attempt.Body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.opts.Brotli {
		req.Header.Set("Accept-Encoding", "br")
	}
	if c.opts.Propagate {
		tracing.InjectHTTPHeaders(ctx, req.Header)
	}

	resp, err := hc.Do(req)
	if err != nil {
		reason := TransportReason(err)
		c.opts.Logger.Debug("request failed", "method", attempt.Method, "reason", reason)
		tracing.AddAttemptEvent(ctx, 0, reason)
		return runner.Retryable(reason)
	}
	defer resp.Body.Close()

	outcome := classify(resp)
	c.opts.Logger.Info("response",
		"method", attempt.Method,
		"status", resp.StatusCode,
		"bytes", len(outcome.Payload),
	)
	tracing.AddAttemptEvent(ctx, resp.StatusCode, outcome.Reason)
	return outcome
}

func classify(resp *http.Response) runner.Outcome {
	code := resp.StatusCode
	switch {
	case code >= 200 && code < 300:
		data, err := readResponseBody(resp)
		if err != nil {
			return runner.Retryable(fmt.Sprintf("read body: %s", TransportReason(err))).WithStatus(code)
		}
		return runner.Success(data).WithStatus(code)
	case code >= 500 && code < 600:
		return runner.Retryable(reasonPhrase(resp)).WithStatus(code)
	default:
		return runner.Success([]byte{}).WithStatus(code)
	}
}

// reasonPhrase returns the text after the status code, e.g. "Service Unavailable".
func reasonPhrase(resp *http.Response) string {
	phrase := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if phrase == "" {
		phrase = http.StatusText(resp.StatusCode)
	}
	if phrase == "" {
		phrase = "HTTP " + strconv.Itoa(resp.StatusCode)
	}
	return phrase
}

// TransportReason labels a transport error by its transience category.
func TransportReason(err error) string {
	return TransientLabel(err) + ": " + err.Error()
}

// TransientLabel names the kind of transport failure behind err.
func TransientLabel(err error) string {
	switch transient.Categorize(err) {
	case transient.Timeout:
		return "timeout"
	case transient.ConnRefused:
		return "connection refused"
	case transient.ConnReset:
		return "connection reset"
	}
	if errors.Is(err, context.Canceled) {
		return "interrupted"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "execution error"
}
