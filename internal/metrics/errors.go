package metrics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/torosent/octail/internal/httpclient"
	"github.com/torosent/octail/internal/processor"
	"github.com/torosent/octail/internal/runner"
	"github.com/torosent/octail/internal/storage"
)

var sentinelLabels = []struct {
	err   error
	label string
}{
	{runner.ErrMaxRetries, "Max retries exceeded"},
	{runner.ErrMaxElapsed, "Max elapsed time exceeded"},
	{runner.ErrFatalOutcome, "Fatal response"},
	{runner.ErrPanic, "Recovered panic"},
	{storage.ErrNotFound, "Payload object not found"},
	{processor.ErrInvalidPayload, "Invalid payload"},
	{processor.ErrUnknownFunction, "Unknown downstream function"},
	{httpclient.ErrNotStarted, "Client not started"},
	{context.DeadlineExceeded, "Context deadline exceeded"},
	{context.Canceled, "Context canceled"},
}

// FailureLabel returns the report bucket for an iteration error.
func FailureLabel(err error) string {
	if err == nil {
		return ""
	}
	for _, s := range sentinelLabels {
		if errors.Is(err, s.err) {
			return s.label
		}
	}
	var fetchErr *storage.FetchError
	if errors.As(err, &fetchErr) {
		return "Payload fetch error (" + fetchErr.Provider + ")"
	}
	return FriendlyErrorName(fmt.Sprintf("%T", unwrapFormatted(err)))
}

// unwrapFormatted strips fmt.Errorf wrappers so the label names the
// underlying error type.
func unwrapFormatted(err error) error {
	for fmt.Sprintf("%T", err) == "*fmt.wrapError" {
		next := errors.Unwrap(err)
		if next == nil {
			break
		}
		err = next
	}
	return err
}

var friendlyAliases = map[string]string{
	"*errors.errorString":            "Other error",
	"errors.errorString":             "Other error",
	"*url.Error":                     "Request URL error",
	"url.Error":                      "Request URL error",
	"*context.deadlineExceededError": "Context deadline exceeded",
	"context.deadlineExceededError":  "Context deadline exceeded",
}

// FriendlyErrorName returns a human-friendly label for a Go error type.
func FriendlyErrorName(typeName string) string {
	cleaned := strings.TrimSpace(typeName)
	if cleaned == "" {
		return "Unknown error"
	}

	if alias, ok := friendlyAliases[cleaned]; ok {
		return alias
	}

	cleaned = strings.TrimPrefix(cleaned, "*")
	if idx := strings.LastIndex(cleaned, "/"); idx != -1 {
		cleaned = cleaned[idx+1:]
	}

	pkg := ""
	name := cleaned
	if idx := strings.Index(name, "."); idx != -1 {
		pkg = name[:idx]
		name = name[idx+1:]
	}

	pretty := humanizeTypeName(name)
	if pretty == "" {
		pretty = name
	}

	if pkg != "" && pkg != "main" {
		return fmt.Sprintf("%s (%s)", pretty, pkg)
	}
	return pretty
}

func humanizeTypeName(name string) string {
	if name == "" {
		return ""
	}

	var words []string
	var current []rune
	runes := []rune(name)

	appendWord := func() {
		if len(current) == 0 {
			return
		}
		word := string(current)
		if isAllUpper(word) {
			words = append(words, word)
		} else {
			words = append(words, capitalize(word))
		}
		current = current[:0]
	}

	for i, r := range runes {
		if i > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsUpper(r) && (unicode.IsLower(prev) || (unicode.IsUpper(prev) && nextLower)) {
				appendWord()
			} else if unicode.IsDigit(r) && !unicode.IsDigit(prev) {
				appendWord()
			}
		}
		current = append(current, r)
	}
	appendWord()

	return strings.Join(words, " ")
}

func isAllUpper(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter
}

func capitalize(s string) string {
	if s == "" {
		return ""
	}
	lower := strings.ToLower(s)
	runes := []rune(lower)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
