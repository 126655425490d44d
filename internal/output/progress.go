package output

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/torosent/vuramp/internal/metrics"
)

// ProgressSource exposes the live state of a running scheduler.
type ProgressSource interface {
	ActiveVUs() int
	Iterations() int64
	CurrentStage() int
	StageCount() int
	Elapsed() time.Duration
	TotalDuration() time.Duration
}

// ProgressReporter displays real-time progress updates.
type ProgressReporter struct {
	source   ProgressSource
	builtins metrics.Builtins
	ticker   *time.Ticker
	done     chan struct{}
	finished chan struct{}
	writer   io.Writer
	active   int32
}

// NewProgressReporter creates a progress reporter that updates at the given interval.
func NewProgressReporter(source ProgressSource, reg *metrics.Registry, interval time.Duration, writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &ProgressReporter{
		source:   source,
		builtins: reg.Builtins(),
		ticker:   time.NewTicker(interval),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
		writer:   writer,
	}
}

// Start begins displaying progress updates in a background goroutine.
func (p *ProgressReporter) Start() {
	if !atomic.CompareAndSwapInt32(&p.active, 0, 1) {
		return // already running
	}
	go p.run()
}

// Stop halts progress updates and terminates the line.
func (p *ProgressReporter) Stop() {
	if atomic.CompareAndSwapInt32(&p.active, 1, 0) {
		close(p.done)
		p.ticker.Stop()
		<-p.finished
		fmt.Fprintln(p.writer)
	}
}

func (p *ProgressReporter) run() {
	defer close(p.finished)
	for {
		select {
		case <-p.ticker.C:
			fmt.Fprint(p.writer, "\r"+p.line())
		case <-p.done:
			return
		}
	}
}

func (p *ProgressReporter) line() string {
	elapsed := p.source.Elapsed()
	reqs := p.builtins.HTTPReqs.Value()
	failed, _ := p.builtins.HTTPReqFailed.Counts()
	rps := 0.0
	if secs := elapsed.Seconds(); secs > 0 {
		rps = float64(reqs) / secs
	}
	return fmt.Sprintf("Stage %d/%d | VUs: %d | %s/%s | Iterations: %d | Requests: %d | Failures: %d | RPS: %.1f",
		p.source.CurrentStage(), p.source.StageCount(), p.source.ActiveVUs(),
		elapsed.Truncate(time.Second), p.source.TotalDuration(),
		p.source.Iterations(), reqs, failed, rps)
}
