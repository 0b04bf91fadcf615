package runner

import (
	"math"

	"golang.org/x/time/rate"
)

// NewLimiter returns a limiter shared by all workers that admits perSecond
// iterations per second across the pool, or nil when pacing is off.
func NewLimiter(perSecond float64, workers int) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	// Burst of one iteration per worker keeps concurrent workers from
	// queueing behind each other on start.
	burst := workers
	if burst < 1 {
		burst = 1
	}
	if limit := int(math.Ceil(perSecond)); burst > limit {
		burst = limit
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}
