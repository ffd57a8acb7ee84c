package resilience

import (
	"context"
	"errors"
	"net"
)

var (
	ErrRateLimited = errors.New("venue rate limited")
	ErrServer      = errors.New("venue server error")
	ErrTransport   = errors.New("transport failure")
	ErrBreakerOpen = errors.New("exchange health breaker open")
)

// Retryable reports whether an error is a transient condition worth
// retrying. Request errors (4xx other than rate limits) are not.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrServer) || errors.Is(err, ErrTransport) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}
