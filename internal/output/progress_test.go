package output

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/torosent/vuramp/internal/metrics"
)

type fakeSource struct{}

func (fakeSource) ActiveVUs() int               { return 3 }
func (fakeSource) Iterations() int64            { return 42 }
func (fakeSource) CurrentStage() int            { return 2 }
func (fakeSource) StageCount() int              { return 3 }
func (fakeSource) Elapsed() time.Duration       { return 2 * time.Second }
func (fakeSource) TotalDuration() time.Duration { return 10 * time.Second }

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestProgressLine(t *testing.T) {
	reg := metrics.NewRegistry()
	b := reg.Builtins()
	for i := 0; i < 10; i++ {
		b.HTTPReqs.Add(1)
		b.HTTPReqFailed.Add(i < 2)
	}
	p := NewProgressReporter(fakeSource{}, reg, time.Second, nil)
	defer p.ticker.Stop()

	line := p.line()
	for _, want := range []string{"Stage 2/3", "VUs: 3", "2s/10s", "Iterations: 42", "Requests: 10", "Failures: 2", "RPS: 5.0"} {
		if !strings.Contains(line, want) {
			t.Errorf("progress line %q missing %q", line, want)
		}
	}
}

func TestProgressReporterStartStop(t *testing.T) {
	var out syncBuffer
	p := NewProgressReporter(fakeSource{}, metrics.NewRegistry(), 5*time.Millisecond, &out)
	p.Start()
	p.Start()
	time.Sleep(30 * time.Millisecond)
	p.Stop()
	p.Stop()

	if !strings.Contains(out.String(), "\rStage 2/3") {
		t.Fatalf("expected progress output, got %q", out.String())
	}
}
