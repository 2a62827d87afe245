package download

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	u "net/url"
)

var (
	// ErrStalled marks a confirmed throughput stall; it feeds the same
	// retry policy as a network timeout.
	ErrStalled = errors.New("download stalled multiple times")
	// ErrChunkTimeout marks a single chunk read exceeding its deadline.
	ErrChunkTimeout = errors.New("chunk download timeout")
	// ErrSizeMismatch marks a stream that ended before the expected size.
	ErrSizeMismatch = errors.New("downloaded size does not match expected size")
)

// StatusError is a non-success HTTP response. It is terminal for the item:
// the status code is only used to sharpen the log message.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("HTTP %d", e.Code)
	switch e.Code {
	case http.StatusNotFound:
		msg += " - File not found"
	case http.StatusForbidden:
		msg += " - Access forbidden"
	case http.StatusUnauthorized:
		msg += " - Authentication required"
	}
	return msg
}

// isRetryable decides whether an attempt failure goes through the backoff
// loop. Network errors, timeouts and stalls retry; HTTP status failures and
// anything unexpected do not.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return false
	}
	if errors.Is(err, ErrStalled) || errors.Is(err, ErrChunkTimeout) || errors.Is(err, ErrSizeMismatch) {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *u.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
