// Package httpclient builds HTTP requests from validated templates and
// provides the shared client used by every virtual user.
//
// # Request Building
//
//	body, err := httpclient.NewBody(`{"q":1}`, "")
//	builder, err := httpclient.NewRequestBuilder("POST", url, headers, body)
//	req, err := builder.Build(ctx)
//
// Builders are immutable and safe to share; each Build call returns a new
// request with a fresh reader over the same payload.
//
// # HTTP Client
//
// [NewClient] returns a client with a pooled transport sized for many
// concurrent virtual users. Redirects are not followed, so a 302 reaches the
// caller's checks unchanged.
package httpclient
