package workload

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Workload is one virtual user's iteration body. Implementations issue
// requests through the session and must return promptly once ctx is done.
type Workload interface {
	Iterate(ctx context.Context, s *Session) error
}

// Func adapts a plain function to Workload.
type Func func(ctx context.Context, s *Session) error

// Iterate calls f.
func (f Func) Iterate(ctx context.Context, s *Session) error { return f(ctx, s) }

// HTTPError describes a response with a failing status code.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// FaultName groups HTTP errors by status code.
func (e *HTTPError) FaultName() string {
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// FailureLogger receives failed requests and iterations.
type FailureLogger interface {
	LogFailure(vu int, name string, err error)
}

type zapFailureLogger struct {
	log *zap.Logger
}

// NewFailureLogger returns a FailureLogger writing warnings to log.
func NewFailureLogger(log *zap.Logger) FailureLogger {
	if log == nil {
		log = zap.NewNop()
	}
	return zapFailureLogger{log: log}
}

func (l zapFailureLogger) LogFailure(vu int, name string, err error) {
	l.log.Warn("failure",
		zap.Int("vu", vu),
		zap.String("name", name),
		zap.Error(err),
	)
}

type loggingWorkload struct {
	inner  Workload
	logger FailureLogger
}

// WithFailureLogging wraps wl so iteration errors are reported to logger.
func WithFailureLogging(wl Workload, logger FailureLogger) Workload {
	if logger == nil {
		return wl
	}
	return &loggingWorkload{inner: wl, logger: logger}
}

func (l *loggingWorkload) Iterate(ctx context.Context, s *Session) error {
	err := l.inner.Iterate(ctx, s)
	if err != nil {
		l.logger.LogFailure(s.VU(), "iteration", err)
	}
	return err
}
