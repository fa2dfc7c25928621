package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// apiError represents an error from a model API that may or may not be retryable.
type apiError struct {
	StatusCode int
	Body       string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// isRetryable returns true for transient errors (rate limit, server errors).
func (e *apiError) isRetryable() bool {
	return e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= http.StatusInternalServerError
}

// llmBackoff is the base delay between model call attempts.
var llmBackoff = 2 * time.Second

// completeWithRetry runs do up to twice, retrying only transient failures.
func completeWithRetry(ctx context.Context, provider string, do func() (string, error)) (string, error) {
	const maxAttempts = 2
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		result, err := do()
		if err == nil {
			return result, nil
		}
		lastErr = err

		var ae *apiError
		if errors.As(err, &ae) && !ae.isRetryable() {
			return "", fmt.Errorf("%s: %w", provider, err)
		}

		if attempt < maxAttempts-1 {
			backoff := time.Duration(attempt+1) * llmBackoff
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return "", fmt.Errorf("%s: %w", provider, lastErr)
}

// maxTokensOr returns n, or def when n is not positive.
func maxTokensOr(n, def int) int {
	if n > 0 {
		return n
	}
	return def
}
