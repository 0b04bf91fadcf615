package runner

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Backoff defaults used when a RetryDriver is not given its own policy.
const (
	DefaultInitialInterval     = 500 * time.Millisecond
	DefaultMultiplier          = 2.0
	DefaultRandomizationFactor = 0.5
	DefaultMaxInterval         = time.Minute
	DefaultMaxElapsedTime      = 5 * time.Minute
)

// Clock reports the current time. backoff.SystemClock satisfies it.
type Clock interface {
	Now() time.Time
}

// BackoffConfig configures the wait sequence between retryable failures.
type BackoffConfig struct {
	InitialInterval     time.Duration
	Multiplier          float64
	RandomizationFactor float64
	MaxInterval         time.Duration
	MaxElapsedTime      time.Duration // negative disables the elapsed budget
	Clock               Clock         // nil means the wall clock
}

// DefaultBackoffConfig returns 500ms initial wait, doubling, ±50% jitter and
// a five minute elapsed budget.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		InitialInterval:     DefaultInitialInterval,
		Multiplier:          DefaultMultiplier,
		RandomizationFactor: DefaultRandomizationFactor,
		MaxInterval:         DefaultMaxInterval,
		MaxElapsedTime:      DefaultMaxElapsedTime,
	}
}

func (c *BackoffConfig) normalize() {
	def := DefaultBackoffConfig()
	if c.InitialInterval <= 0 {
		c.InitialInterval = def.InitialInterval
	}
	if c.Multiplier < 1 {
		c.Multiplier = def.Multiplier
	}
	if c.RandomizationFactor < 0 || c.RandomizationFactor > 1 {
		c.RandomizationFactor = def.RandomizationFactor
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = def.MaxInterval
	}
	switch {
	case c.MaxElapsedTime == 0:
		c.MaxElapsedTime = def.MaxElapsedTime
	case c.MaxElapsedTime < 0:
		c.MaxElapsedTime = 0
	}
	if c.Clock == nil {
		c.Clock = backoff.SystemClock
	}
}

// Backoff is the per-invocation cursor over the wait sequence. It is owned by
// a single RetryDriver.Run call and is not safe for concurrent use.
type Backoff struct {
	exp *backoff.ExponentialBackOff
}

// NewBackoff starts a new wait sequence; elapsed time is measured from now.
func NewBackoff(cfg BackoffConfig) *Backoff {
	cfg.normalize()
	// Built directly rather than through NewExponentialBackOff so Reset runs
	// once, after every field is set.
	b := &backoff.ExponentialBackOff{
		InitialInterval:     cfg.InitialInterval,
		RandomizationFactor: cfg.RandomizationFactor,
		Multiplier:          cfg.Multiplier,
		MaxInterval:         cfg.MaxInterval,
		MaxElapsedTime:      cfg.MaxElapsedTime,
		Stop:                backoff.Stop,
		Clock:               cfg.Clock,
	}
	b.Reset()
	return &Backoff{exp: b}
}

// Next returns the randomized wait drawn from
// [interval*(1-factor), interval*(1+factor)] and advances the interval.
// ok is false once the elapsed time plus that wait would exceed the budget.
func (b *Backoff) Next() (wait time.Duration, ok bool) {
	d := b.exp.NextBackOff()
	if d == backoff.Stop {
		return 0, false
	}
	return d, true
}

// Elapsed is the time since the sequence started. It never decreases.
func (b *Backoff) Elapsed() time.Duration {
	return b.exp.GetElapsedTime()
}
