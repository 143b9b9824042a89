package usage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Summarizer provides aggregated usage for a period. *Store satisfies it.
type Summarizer interface {
	Summary(ctx context.Context, since time.Time) ([]ProviderSummary, error)
}

// Reporter periodically logs per-provider usage summaries. Each report covers
// the time since the previous one.
type Reporter struct {
	source Summarizer
	sched  Schedule
	logger zerolog.Logger

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewReporter creates a Reporter. The schedule string is a cron expression or
// a Go duration, as ParseSchedule accepts.
func NewReporter(source Summarizer, schedule string, logger zerolog.Logger) (*Reporter, error) {
	sched, err := ParseSchedule(schedule)
	if err != nil {
		return nil, fmt.Errorf("parse reporter schedule: %w", err)
	}
	return &Reporter{
		source: source,
		sched:  sched,
		logger: logger.With().Str("component", "reporter").Logger(),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}, nil
}

// Start begins the reporting goroutine. The reporter runs until Stop is
// called or the context is cancelled.
func (r *Reporter) Start(ctx context.Context) {
	r.logger.Info().Msg("Starting usage reporter")
	go r.run(ctx)
}

// Stop halts the reporter and waits for the goroutine to exit. Safe to call
// more than once, but only after Start.
func (r *Reporter) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
	<-r.done
}

func (r *Reporter) run(ctx context.Context) {
	defer close(r.done)

	last := time.Now()
	for {
		next := r.sched.Next(time.Now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			r.logger.Info().Msg("Usage reporter stopped: context cancelled")
			return
		case <-r.stop:
			timer.Stop()
			r.logger.Info().Msg("Usage reporter stopped")
			return
		case <-timer.C:
		}
		r.report(ctx, last)
		last = time.Now()
	}
}

func (r *Reporter) report(ctx context.Context, since time.Time) {
	summaries, err := r.source.Summary(ctx, since)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to build usage summary")
		return
	}
	if len(summaries) == 0 {
		r.logger.Debug().Msg("No usage recorded in period")
		return
	}
	for _, s := range summaries {
		r.logger.Info().
			Str("provider", string(s.Provider)).
			Int64("calls", s.Calls).
			Int64("failures", s.Failures).
			Int64("input_tokens", s.InputTokens).
			Int64("output_tokens", s.OutputTokens).
			Dur("avg_latency", s.AvgLatency).
			Time("since", since).
			Msg("Usage summary")
	}
}
