package workload

import (
	"net/http"
	"time"

	"github.com/tidwall/gjson"
)

// Response is the outcome of one timed request. Transport failures are
// reported through Err rather than a returned error, so a workload can
// check and continue.
type Response struct {
	Name     string
	Method   string
	URL      string
	Status   int
	Header   http.Header
	Body     []byte
	Duration time.Duration
	Err      error
}

// Failed reports a transport error or a status of 400 or above.
func (r *Response) Failed() bool {
	if r == nil {
		return true
	}
	return r.Err != nil || r.Status >= http.StatusBadRequest
}

// Error returns the transport error, an *HTTPError for failing statuses, or nil.
func (r *Response) Error() error {
	switch {
	case r == nil:
		return nil
	case r.Err != nil:
		return r.Err
	case r.Status >= http.StatusBadRequest:
		return &HTTPError{StatusCode: r.Status, Body: truncate(string(r.Body), 256)}
	default:
		return nil
	}
}

// JSON evaluates a gjson path against the body. A leading "$." is accepted.
func (r *Response) JSON(path string) gjson.Result {
	if r == nil || len(r.Body) == 0 {
		return gjson.Result{}
	}
	return gjson.GetBytes(r.Body, normalizeJSONPath(path))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
