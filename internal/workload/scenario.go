package workload

import (
	"context"
	"errors"

	"github.com/torosent/vuramp/internal/httpclient"
	"github.com/torosent/vuramp/internal/metrics"
)

// Step is one request of a declarative scenario.
type Step struct {
	Name    string
	Request *httpclient.RequestBuilder
	Checks  []Check
	// Trend, when set, receives the duration of successful requests.
	Trend *metrics.Trend
	// ErrorRate, when set, receives true whenever any check failed.
	ErrorRate *metrics.Rate
}

// Scenario runs its steps in order once per iteration.
type Scenario struct {
	Steps []Step
}

// NewScenario validates the steps.
func NewScenario(steps ...Step) (*Scenario, error) {
	if len(steps) == 0 {
		return nil, errors.New("scenario needs at least one request")
	}
	for _, st := range steps {
		if st.Request == nil {
			return nil, errors.New("scenario step " + st.Name + " has no request")
		}
	}
	return &Scenario{Steps: steps}, nil
}

// Iterate issues each step's request and records its checks. Failed
// requests do not abort the iteration; a done context does.
func (sc *Scenario) Iterate(ctx context.Context, s *Session) error {
	for _, st := range sc.Steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		resp := s.Send(ctx, st.Name, st.Request)
		ok := s.Check(resp, st.Checks...)
		if st.Trend != nil && resp.Err == nil {
			st.Trend.Add(resp.Duration)
		}
		if st.ErrorRate != nil {
			st.ErrorRate.Add(!ok)
		}
	}
	return ctx.Err()
}
