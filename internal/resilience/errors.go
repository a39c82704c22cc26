package resilience

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http status %d", e.StatusCode)
	}
	return fmt.Sprintf("http status %d: %s", e.StatusCode, e.Body)
}

// Transient reports whether the status is worth retrying.
func (e *StatusError) Transient() bool {
	return IsTransientStatus(e.StatusCode)
}

// IsTransientStatus reports whether an HTTP status indicates a temporary
// server-side condition.
func IsTransientStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

var transientMessages = []string{
	"connection reset by peer",
	"broken pipe",
	"temporary failure in name resolution",
	"tls handshake timeout",
	"i/o timeout",
	"server closed idle connection",
	"unexpected eof",
}

// IsTransient classifies an error as retryable: transient HTTP statuses,
// network timeouts, and connection resets or refusals.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var se *StatusError
	if errors.As(err, &se) {
		return se.Transient()
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range transientMessages {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
