package ledger

import (
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"time"
)

// RetryPolicy bounds retries of transient remote failures.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxJitter   time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 500 * time.Millisecond
	}
	if p.MaxJitter <= 0 {
		p.MaxJitter = 250 * time.Millisecond
	}
	return p
}

// backoff is base * 2^(attempt-1) plus random jitter. attempt is the call
// about to be made, so the first retry (attempt 2) waits one base delay.
func (p RetryPolicy) backoff(attempt int) time.Duration {
	delay := p.BaseDelay << uint(attempt-2)
	return delay + time.Duration(rand.Int63n(int64(p.MaxJitter)))
}

type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("ledger call failed: status %d: %s", e.status, e.body)
}

type transportError struct {
	err error
}

func (e *transportError) Error() string {
	return "ledger transport: " + e.err.Error()
}

func (e *transportError) Unwrap() error {
	return e.err
}

// IsRemote reports whether an error originated in a remote ledger call
// (status or transport), as opposed to local failures. The API layer maps
// these to 502-class responses.
func IsRemote(err error) bool {
	var se *statusError
	var te *transportError
	return errors.As(err, &se) || errors.As(err, &te)
}

var transientPatterns = []string{
	"connection reset",
	"connection refused",
	"broken pipe",
	"timeout",
	"deadline exceeded",
	"unexpected EOF",
	"EOF",
	"no such host",
	"TLS handshake",
}

// isRetryable classifies a failure: 429 and 5xx responses and known
// transient transport errors are worth retrying; other 4xx are terminal.
func isRetryable(err error) bool {
	switch e := err.(type) {
	case *statusError:
		switch e.status {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
		return false
	case *transportError:
		msg := e.err.Error()
		for _, pattern := range transientPatterns {
			if strings.Contains(msg, pattern) {
				return true
			}
		}
		return false
	}
	return false
}
