package workload

import (
	"context"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/time/rate"

	"github.com/torosent/vuramp/internal/httpclient"
	"github.com/torosent/vuramp/internal/metrics"
	"github.com/torosent/vuramp/internal/tracing"
)

// DefaultMaxBodyBytes caps how much of a response body is kept for checks.
// Bytes beyond the cap are still read and counted in data_received.
const DefaultMaxBodyBytes = 10 << 20

// SessionOptions configure the per-VU session.
type SessionOptions struct {
	Client       *http.Client
	Limiter      *rate.Limiter // shared request pacing; nil means unlimited
	Tracer       trace.Tracer
	Propagator   propagation.TextMapPropagator // injects trace headers; nil disables
	MaxBodyBytes int64
	Failures     FailureLogger // receives failed requests; nil disables
}

// Session is one virtual user's handle on the HTTP client and registry.
// It is owned by a single VU goroutine and must not be shared.
type Session struct {
	vu       int
	reg      *metrics.Registry
	builtins metrics.Builtins

	client     *http.Client
	limiter    *rate.Limiter
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
	maxBody    int64
	failures   FailureLogger

	iteration int64
}

// NewSession returns the session for virtual user vu.
func NewSession(vu int, reg *metrics.Registry, opts SessionOptions) *Session {
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
	if opts.Tracer == nil {
		opts.Tracer = noop.NewTracerProvider().Tracer("")
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return &Session{
		vu:         vu,
		reg:        reg,
		builtins:   reg.Builtins(),
		client:     opts.Client,
		limiter:    opts.Limiter,
		tracer:     opts.Tracer,
		propagator: opts.Propagator,
		maxBody:    opts.MaxBodyBytes,
		failures:   opts.Failures,
	}
}

// NewLimiter returns a limiter pacing all sessions to rps requests per
// second, or nil when rps is not positive.
func NewLimiter(rps int) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	// Burst equal to rps to smooth pacing under concurrency.
	return rate.NewLimiter(rate.Limit(rps), rps)
}

// VU returns the 1-based virtual user id.
func (s *Session) VU() int { return s.vu }

// Registry exposes the run's metrics for custom recording.
func (s *Session) Registry() *metrics.Registry { return s.reg }

// BeginIteration opens the trace span that this VU's requests nest under
// until the returned func is called with the iteration's outcome.
func (s *Session) BeginIteration(ctx context.Context) (context.Context, func(error)) {
	s.iteration++
	ctx, span := tracing.StartIteration(ctx, s.tracer, s.vu, s.iteration)
	return ctx, func(err error) { tracing.End(span, err) }
}

// Get issues an unnamed GET request.
func (s *Session) Get(ctx context.Context, url string) *Response {
	b, err := httpclient.NewRequestBuilder(http.MethodGet, url, nil, httpclient.Body{})
	if err != nil {
		return &Response{Method: http.MethodGet, URL: url, Err: err}
	}
	return s.Send(ctx, "", b)
}

// Do issues req under an optional logical name.
func (s *Session) Do(ctx context.Context, name string, req Request) *Response {
	body, err := httpclient.NewBody(req.Body, "")
	if err == nil {
		var b *httpclient.RequestBuilder
		b, err = httpclient.NewRequestBuilder(req.Method, req.URL, req.Headers, body)
		if err == nil {
			return s.Send(ctx, name, b)
		}
	}
	return &Response{Name: name, Method: req.Method, URL: req.URL, Err: err}
}

// Request is an ad-hoc request for Do.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    string
}

// Send builds a request from b, times it and records http_reqs,
// http_req_duration, http_req_failed and data_received. The returned
// response is never nil. Requests are never retried.
func (s *Session) Send(ctx context.Context, name string, b *httpclient.RequestBuilder) *Response {
	out := &Response{Name: name, Method: b.Method(), URL: b.Target()}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			out.Err = err
			return out
		}
	}

	ctx, span := tracing.StartRequest(ctx, s.tracer, out.Method, name, out.URL)

	req, err := b.Build(ctx)
	if err != nil {
		out.Err = err
		tracing.End(span, err)
		return out
	}
	tracing.Inject(ctx, s.propagator, req.Header)

	start := time.Now()
	resp, err := s.client.Do(req)
	var received int64
	if err == nil {
		out.Status = resp.StatusCode
		out.Header = resp.Header
		out.Body, received, err = readBody(resp.Body, s.maxBody)
		_ = resp.Body.Close()
	}
	out.Duration = time.Since(start)
	out.Err = err

	s.builtins.HTTPReqs.Add(1)
	s.builtins.HTTPReqDuration.Add(out.Duration)
	s.builtins.HTTPReqFailed.Add(out.Failed())
	s.builtins.DataReceived.Add(received)

	tracing.EndRequest(span, out.Status, out.Error())

	if s.failures != nil && out.Failed() {
		label := name
		if label == "" {
			label = out.Method + " " + out.URL
		}
		s.failures.LogFailure(s.vu, label, out.Error())
	}
	return out
}

// Check evaluates every check against resp, records each outcome and
// reports whether all passed. A panicking check counts as failed.
func (s *Session) Check(resp *Response, checks ...Check) bool {
	all := true
	for _, c := range checks {
		ok := safeCheck(c, resp)
		s.reg.RecordCheck(c.Name(), ok)
		all = all && ok
	}
	return all
}

// Sleep pauses for d or until ctx is done.
func (s *Session) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func safeCheck(c Check, resp *Response) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return c.Check(resp)
}

// readBody keeps up to max bytes and drains the rest. It returns the kept
// bytes and the total read.
func readBody(r io.Reader, max int64) ([]byte, int64, error) {
	kept, err := io.ReadAll(io.LimitReader(r, max))
	total := int64(len(kept))
	if err != nil {
		return kept, total, err
	}
	rest, err := io.Copy(io.Discard, r)
	return kept, total + rest, err
}
