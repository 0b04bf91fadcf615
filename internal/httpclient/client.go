package httpclient

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/torosent/octail/internal/runner"
)

// ErrNotStarted is returned by Execute before Start or after Stop.
var ErrNotStarted = errors.New("http client not started")

// Options configures a per-worker Client.
type Options struct {
	TargetURL string
	Brotli    bool // advertise and decode Content-Encoding: br
	Propagate bool // inject W3C trace headers
	Logger    *slog.Logger
}

// Client is the HTTP handle owned by one worker. It implements runner.Client.
type Client struct {
	opts   Options
	target *url.URL

	mu   sync.RWMutex
	http *http.Client
}

// New returns an unstarted Client.
func New(opts Options) *Client {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Client{opts: opts}
}

// Factory returns a runner.ClientFactory building one Client per worker.
func Factory(opts Options) runner.ClientFactory {
	return func(cfg runner.RunConfig) runner.Client {
		o := opts
		if o.TargetURL == "" {
			o.TargetURL = cfg.TargetURL
		}
		return New(o)
	}
}

// Start validates the target and builds the transport.
func (c *Client) Start() error {
	target := strings.TrimSpace(c.opts.TargetURL)
	if target == "" {
		return errors.New("target URL is required")
	}
	u, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("parse target: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("target %q must use http or https", target)
	}
	if u.Host == "" {
		return fmt.Errorf("target %q has no host", target)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.target = u
	c.http = NewClient()
	return nil
}

// Stop releases idle connections. Calling Stop twice is harmless.
func (c *Client) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.http != nil {
		c.http.CloseIdleConnections()
		c.http = nil
	}
	return nil
}

func (c *Client) client() (*http.Client, *url.URL) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.http, c.target
}

// NewClient creates an HTTP client tuned for load generation. Timeouts are
// applied per attempt through the request context, and redirects are
// returned to the caller rather than followed.
func NewClient() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          256,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Transport: transport,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}
