package llm

import (
	"errors"
	"strings"
)

// Sentinel errors for model invocation. The step loop and the API layer
// check these with errors.Is to decide between abort, retry-as-tool-result,
// and HTTP status mapping.
var (
	// ErrUnavailable indicates the underlying call could not start
	// (auth, network, provider outage).
	ErrUnavailable = errors.New("model unavailable")

	// ErrQuotaExhausted is the user-actionable subset of ErrUnavailable:
	// the provider rejected the call because quota or rate limits are
	// exhausted. Maps to HTTP 429 when nothing has been streamed yet.
	ErrQuotaExhausted = errors.New("model quota exhausted")

	// ErrStreamInterrupted indicates the stream failed after producing
	// output. Downstream must not treat already-delivered output as a
	// complete response.
	ErrStreamInterrupted = errors.New("model stream interrupted")
)

// classify maps a raw provider error onto the sentinel taxonomy.
// streamed reports whether any chunk was delivered before the failure.
func classify(err error, streamed bool) error {
	if err == nil {
		return nil
	}
	if isQuotaError(err) {
		return errors.Join(ErrQuotaExhausted, err)
	}
	if streamed {
		return errors.Join(ErrStreamInterrupted, err)
	}
	return errors.Join(ErrUnavailable, err)
}

// isQuotaError sniffs provider error text for quota and rate-limit
// conditions. Providers do not expose a typed error for this, so string
// matching is the only portable signal.
func isQuotaError(err error) bool {
	return containsAny(err.Error(),
		"429", "quota", "rate limit", "insufficient_quota", "resource exhausted")
}

// containsAny checks if s contains any of the substrings (case-insensitive).
func containsAny(s string, substrs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrs {
		if strings.Contains(lower, sub) {
			return true
		}
	}
	return false
}
