package runner

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// virtualUser is one looping worker. stop asks it to finish after the
// current iteration.
type virtualUser struct {
	id       int
	stopCh   chan struct{}
	stopOnce sync.Once
}

func newVirtualUser(id int) *virtualUser {
	return &virtualUser{id: id, stopCh: make(chan struct{})}
}

func (v *virtualUser) stop() {
	v.stopOnce.Do(func() { close(v.stopCh) })
}

func (v *virtualUser) stopping() bool {
	select {
	case <-v.stopCh:
		return true
	default:
		return false
	}
}

// loop runs iterations until the VU is told to stop or ctx is cancelled.
// The stop signal is only observed between iterations and during the pause.
func (s *Scheduler) loop(ctx context.Context, vu *virtualUser) {
	sess := s.opt.NewSession(vu.id)
	think := newThinker(s.opt.ThinkTime, s.opt.RandomSeed+int64(vu.id))

	for {
		if vu.stopping() || ctx.Err() != nil {
			return
		}

		if err := RunOnce(ctx, s.opt.Workload, sess, s.opt.Registry); err != nil {
			s.opt.Logger.Debug("workload fault", zap.Int("vu", vu.id), zap.Error(err))
			if s.opt.OnFault != nil {
				s.opt.OnFault(vu.id, err)
			}
		}
		if ctx.Err() != nil {
			return
		}
		s.iterations.Add(1)

		pause := think.next()
		if pause <= 0 {
			continue
		}
		timer := time.NewTimer(pause)
		select {
		case <-timer.C:
		case <-vu.stopCh:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}
