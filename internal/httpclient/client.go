package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// RequestBuilder produces fresh *http.Request values for one request template.
// A builder is immutable after construction and may be shared between VUs.
type RequestBuilder struct {
	method  string
	target  string
	headers http.Header
	body    Body
}

// NewRequestBuilder validates a request template. An empty method means GET.
func NewRequestBuilder(method, target string, headers map[string]string, body Body) (*RequestBuilder, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, errors.New("target URL is required")
	}

	method = strings.TrimSpace(method)
	if method == "" {
		method = http.MethodGet
	}
	method = strings.ToUpper(method)

	hdr := http.Header{}
	for key, value := range headers {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" || strings.ContainsAny(trimmedKey, "\r\n") {
			return nil, fmt.Errorf("invalid header key %q", key)
		}
		canonicalKey := http.CanonicalHeaderKey(trimmedKey)
		if strings.ContainsAny(value, "\r\n") {
			return nil, fmt.Errorf("invalid header value for %s", canonicalKey)
		}
		hdr.Set(canonicalKey, value)
	}

	return &RequestBuilder{
		method:  method,
		target:  target,
		headers: hdr,
		body:    body,
	}, nil
}

// Method returns the upper-cased HTTP method.
func (b *RequestBuilder) Method() string { return b.method }

// Target returns the request URL.
func (b *RequestBuilder) Target() string { return b.target }

// Build returns a new request bound to ctx.
func (b *RequestBuilder) Build(ctx context.Context) (*http.Request, error) {
	if b == nil {
		return nil, errors.New("builder cannot be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	req, err := http.NewRequestWithContext(ctx, b.method, b.target, b.body.Open())
	if err != nil {
		return nil, err
	}

	req.Header = b.headers.Clone()
	req.ContentLength = b.body.Len()
	req.GetBody = func() (io.ReadCloser, error) {
		return b.body.Open(), nil
	}

	return req, nil
}

// Pool sizing for the shared transport. Every VU reuses the same client, so
// the per-host idle pool bounds keep-alive reuse against a single target.
const (
	dialTimeout         = 30 * time.Second
	maxIdleConns        = 256
	maxIdleConnsPerHost = 64
	idleConnTimeout     = 90 * time.Second
)

// NewClient returns a client tuned for many concurrent virtual users.
// A non-positive timeout disables the per-request timeout.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   max(timeout, 0),
		Transport: newTransport(),
		// Redirects are reported as-is so checks can see 302 responses.
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{Timeout: dialTimeout, KeepAlive: dialTimeout}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          maxIdleConns,
		MaxIdleConnsPerHost:   maxIdleConnsPerHost,
		IdleConnTimeout:       idleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
}
