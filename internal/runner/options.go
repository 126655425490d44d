package runner

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/torosent/vuramp/internal/metrics"
	"github.com/torosent/vuramp/internal/workload"
)

const (
	DefaultGracefulStop  = 30 * time.Second
	DefaultTickInterval  = 100 * time.Millisecond
	DefaultHardStopGrace = 2 * time.Second
)

// Options configure the Scheduler.
type Options struct {
	Stages   []Stage
	Workload workload.Workload
	Registry *metrics.Registry
	// NewSession builds the session for a VU. Defaults to a session on
	// http.DefaultClient.
	NewSession func(vu int) *workload.Session
	ThinkTime  ThinkTime
	// GracefulStop bounds the wait for in-flight iterations at the end of
	// the run. Zero selects DefaultGracefulStop.
	GracefulStop time.Duration
	// HardStopGrace bounds the wait after in-flight iterations are cancelled.
	HardStopGrace time.Duration
	TickInterval  time.Duration
	RandomSeed    int64
	Logger        *zap.Logger
	// OnFault, if set, receives every workload fault with the VU id.
	OnFault func(vu int, err error)
}

func (o *Options) normalize() {
	if o.GracefulStop <= 0 {
		o.GracefulStop = DefaultGracefulStop
	}
	if o.HardStopGrace <= 0 {
		o.HardStopGrace = DefaultHardStopGrace
	}
	if o.TickInterval <= 0 {
		o.TickInterval = DefaultTickInterval
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.NewSession == nil {
		reg := o.Registry
		o.NewSession = func(vu int) *workload.Session {
			return workload.NewSession(vu, reg, workload.SessionOptions{})
		}
	}
}

func (o *Options) validate() error {
	if o.Workload == nil {
		return errors.New("workload is required")
	}
	if o.Registry == nil {
		return errors.New("metrics registry is required")
	}
	return o.ThinkTime.Validate()
}
