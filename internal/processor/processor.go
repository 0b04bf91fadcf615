// Package processor runs the downstream computations applied to responses.
package processor

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/tidwall/gjson"
)

// Func reduces the numbers of a payload to a single value.
type Func func(numbers []int64) int64

// Count returns how many numbers there are.
func Count(numbers []int64) int64 {
	return int64(len(numbers))
}

// Sum adds the numbers.
func Sum(numbers []int64) int64 {
	var total int64
	for _, n := range numbers {
		total += n
	}
	return total
}

var (
	// ErrInvalidPayload is returned for payloads that are not JSON objects
	// with a "numbers" array.
	ErrInvalidPayload = errors.New("invalid payload")
	// ErrUnknownFunction is returned for a function name with no registration.
	ErrUnknownFunction = errors.New("unknown function")
)

// Processor implements runner.Processor over a set of named functions.
type Processor struct {
	funcs  map[string]Func
	logger *slog.Logger
}

// New returns a Processor knowing "count" and "sum".
func New(logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		funcs: map[string]Func{
			"count": Count,
			"sum":   Sum,
		},
		logger: logger,
	}
}

// Register adds or replaces a named function.
func (p *Processor) Register(name string, fn Func) {
	p.funcs[name] = fn
}

// Process extracts the "numbers" array from payload and applies fn.
// Elements that are not numbers count as zero.
func (p *Processor) Process(payload []byte, fn string) (int64, error) {
	f, ok := p.funcs[fn]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownFunction, fn)
	}
	numbers, err := Numbers(payload)
	if err != nil {
		if len(payload) < 1000 {
			p.logger.Debug("unparseable payload", "payload", string(payload))
		}
		return 0, err
	}
	result := f(numbers)
	p.logger.Debug("processing result", "function", fn, "result", result)
	return result, nil
}

// Numbers returns the "numbers" array of a JSON document.
func Numbers(payload []byte) ([]int64, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrInvalidPayload)
	}
	if !gjson.ValidBytes(payload) {
		return nil, fmt.Errorf("%w: not JSON", ErrInvalidPayload)
	}
	doc := gjson.ParseBytes(payload)
	if !doc.IsObject() {
		return nil, fmt.Errorf("%w: not an object", ErrInvalidPayload)
	}
	arr := doc.Get("numbers")
	if !arr.IsArray() {
		return nil, fmt.Errorf("%w: no numbers array", ErrInvalidPayload)
	}
	items := arr.Array()
	out := make([]int64, len(items))
	for i, v := range items {
		if v.Type == gjson.Number {
			out[i] = v.Int()
		}
	}
	return out, nil
}
