package usage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/relayforge/llmrelay/llm"
)

type fakeSchedule struct{ delay time.Duration }

func (s fakeSchedule) Next(t time.Time) time.Time { return t.Add(s.delay) }

type fakeSummarizer struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeSummarizer) Summary(ctx context.Context, since time.Time) ([]ProviderSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return []ProviderSummary{{Provider: llm.ProviderOpenAI, Calls: 1}}, nil
}

func (f *fakeSummarizer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestParseScheduleDuration(t *testing.T) {
	sched, err := ParseSchedule("15m")
	if err != nil {
		t.Fatalf("ParseSchedule failed: %v", err)
	}
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if next := sched.Next(base); next.Sub(base) != 15*time.Minute {
		t.Errorf("Expected next run 15m out, got %v", next.Sub(base))
	}
}

func TestParseScheduleCron(t *testing.T) {
	sched, err := ParseSchedule("0 * * * *")
	if err != nil {
		t.Fatalf("ParseSchedule failed: %v", err)
	}
	base := time.Date(2026, 1, 1, 0, 30, 0, 0, time.UTC)
	want := time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC)
	if next := sched.Next(base); !next.Equal(want) {
		t.Errorf("Expected next run at %v, got %v", want, next)
	}
}

func TestParseScheduleDescriptor(t *testing.T) {
	sched, err := ParseSchedule("@hourly")
	if err != nil {
		t.Fatalf("ParseSchedule failed: %v", err)
	}
	base := time.Date(2026, 1, 1, 0, 30, 0, 0, time.UTC)
	want := time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC)
	if next := sched.Next(base); !next.Equal(want) {
		t.Errorf("Expected next run at %v, got %v", want, next)
	}
}

func TestParseScheduleInvalid(t *testing.T) {
	if _, err := ParseSchedule("definitely not a schedule"); err == nil {
		t.Error("Expected error for an unparseable schedule")
	}
	if _, err := ParseSchedule(""); err == nil {
		t.Error("Expected error for an empty schedule")
	}
}

func TestNewReporterBadSchedule(t *testing.T) {
	if _, err := NewReporter(&fakeSummarizer{}, "bogus", zerolog.Nop()); err == nil {
		t.Error("Expected constructor to reject a bad schedule")
	}
}

func TestReporterRunsAndStops(t *testing.T) {
	source := &fakeSummarizer{}
	r := &Reporter{
		source: source,
		sched:  fakeSchedule{delay: 10 * time.Millisecond},
		logger: zerolog.Nop(),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}

	r.Start(context.Background())
	time.Sleep(60 * time.Millisecond)
	r.Stop()

	if got := source.callCount(); got == 0 {
		t.Error("Expected at least one report before stop")
	}
	settled := source.callCount()
	time.Sleep(30 * time.Millisecond)
	if got := source.callCount(); got != settled {
		t.Errorf("Expected no reports after stop, count moved from %d to %d", settled, got)
	}

	// Stop is idempotent.
	r.Stop()
}

func TestReporterStopsOnContextCancel(t *testing.T) {
	r := &Reporter{
		source: &fakeSummarizer{},
		sched:  fakeSchedule{delay: time.Hour},
		logger: zerolog.Nop(),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)
	cancel()

	select {
	case <-r.done:
	case <-time.After(time.Second):
		t.Fatal("Expected the reporter goroutine to exit on context cancel")
	}
}
