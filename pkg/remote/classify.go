package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/lib/pq"
)

// StatusError is a non-2xx answer from an HTTP remote.
type StatusError struct {
	StatusCode int
	Body       string
	// Delay is the parsed Retry-After header, zero when absent.
	Delay time.Duration
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("remote returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("remote returned %d: %s", e.StatusCode, e.Body)
}

// RetryAfter lets the retry policy honour the server's hint.
func (e *StatusError) RetryAfter() time.Duration {
	return e.Delay
}

// ParseRetryAfter reads a Retry-After header given in seconds or as an HTTP
// date.
func ParseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying regardless of its shape.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

var transientStatus = map[int]bool{
	http.StatusRequestTimeout:     true,
	http.StatusTooEarly:           true,
	http.StatusTooManyRequests:    true,
	http.StatusBadGateway:         true,
	http.StatusServiceUnavailable: true,
	http.StatusGatewayTimeout:     true,
}

// postgres SQLSTATE codes that clear up on their own
var transientSQLState = map[pq.ErrorCode]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"53300": true, // too_many_connections
	"57P01": true, // admin_shutdown
	"57P03": true, // cannot_connect_now
	"57014": true, // query_canceled (statement timeout)
}

var transientPatterns = []string{
	"rate limit",
	"too many requests",
	"timeout",
	"timed out",
	"gateway",
	"temporarily unavailable",
	"service unavailable",
	"server is busy",
	"connection reset",
	"connection refused",
	"broken pipe",
	"econnreset",
	"fetch failed",
}

// IsTransient reports whether err is likely to succeed on retry: rate
// limiting, timeouts, unavailable servers and gateways, dropped connections.
// Everything else, including malformed payloads and constraint violations, is
// permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var perm *permanentError
	if errors.As(err, &perm) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrNotConfigured) || errors.Is(err, ErrNotFound) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EPIPE) {
		return true
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return transientStatus[statusErr.StatusCode]
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code.Class() == "08" || transientSQLState[pqErr.Code]
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range transientPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
