// Package clip assembles downloadable highlight clips: it selects the HLS
// segments overlapping padded highlight intervals, fetches them under bounded
// concurrency, re-emits their bytes strictly in playlist order, and pipes the
// result through ffmpeg for remuxing. A single failure anywhere aborts the
// whole assembly; no partial clip is ever produced.
package clip

import (
	"errors"
	"fmt"
	"net/http"
)

// ValidationError reports malformed request input. It is surfaced immediately
// and never retried.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return "invalid clip request: " + e.Msg }

// ParseError reports a malformed playlist directive. Selection aborts before
// any segment fetch begins.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("playlist parse error at line %d: %s", e.Line, e.Msg)
}

// FetchError reports a failed segment download. Any FetchError is fatal to the
// clip assembly.
type FetchError struct {
	URL    string
	Status int // 0 when the failure was not an HTTP status
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("segment fetch %s: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("segment fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsRetryable classifies a segment fetch failure for the optional bounded
// retry. Server-side and transport failures are worth another attempt; client
// errors are not. Retry exhaustion still aborts the whole assembly.
func IsRetryable(err error) bool {
	var fe *FetchError
	if !errors.As(err, &fe) {
		return false
	}
	switch {
	case fe.Status == 0:
		// Network-level failure (reset, timeout, DNS).
		return true
	case fe.Status == http.StatusTooManyRequests:
		return true
	case fe.Status >= 500:
		return true
	default:
		return false
	}
}
