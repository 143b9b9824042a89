// Package usage provides UsageSink implementations: structured logging, a
// bounded in-memory ring, a SQLite-backed store, and a periodic reporter that
// summarizes what the store has accumulated.
package usage

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/relayforge/llmrelay/llm"
)

// defaultMemoryCapacity bounds MemorySink when no capacity is given.
const defaultMemoryCapacity = 256

// LogSink writes one structured log line per usage record. Successful calls
// log at info, failed calls at warn.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink creates a LogSink on the given logger.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger.With().Str("component", "usage").Logger()}
}

// RecordUsage implements llm.UsageSink. It never fails.
func (s *LogSink) RecordUsage(ctx context.Context, rec llm.UsageRecord) error {
	evt := s.logger.Info()
	if !rec.Success {
		evt = s.logger.Warn()
	}
	evt = evt.
		Str("provider", string(rec.Provider)).
		Str("model", rec.Model).
		Int64("input_tokens", rec.InputTokens).
		Int64("output_tokens", rec.OutputTokens).
		Dur("latency", rec.Latency).
		Bool("success", rec.Success).
		Int("attempts", rec.Attempts).
		Str("request_id", rec.RequestID)
	if rec.CallerName != "" {
		evt = evt.Str("caller", rec.CallerName)
	}
	if rec.TaskType != "" {
		evt = evt.Str("task_type", rec.TaskType)
	}
	if rec.ErrorMessage != "" {
		evt = evt.Str("error", rec.ErrorMessage)
	}
	evt.Msg("LLM call recorded")
	return nil
}

// MemorySink keeps the most recent records in a bounded ring. Useful for
// diagnostics endpoints and tests.
type MemorySink struct {
	mu       sync.Mutex
	records  []llm.UsageRecord
	capacity int
}

// NewMemorySink creates a MemorySink holding at most capacity records.
// A non-positive capacity falls back to the default.
func NewMemorySink(capacity int) *MemorySink {
	if capacity <= 0 {
		capacity = defaultMemoryCapacity
	}
	return &MemorySink{capacity: capacity}
}

// RecordUsage implements llm.UsageSink. When the ring is full the oldest
// record is dropped.
func (s *MemorySink) RecordUsage(ctx context.Context, rec llm.UsageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	if len(s.records) > s.capacity {
		s.records = s.records[len(s.records)-s.capacity:]
	}
	return nil
}

// Records returns a copy of the retained records, oldest first.
func (s *MemorySink) Records() []llm.UsageRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]llm.UsageRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Len returns how many records are currently retained.
func (s *MemorySink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Multi fans one record out to several sinks. Every sink sees the record even
// when an earlier one fails; the errors are joined.
func Multi(sinks ...llm.UsageSink) llm.UsageSink {
	return multiSink(sinks)
}

type multiSink []llm.UsageSink

func (m multiSink) RecordUsage(ctx context.Context, rec llm.UsageRecord) error {
	var errs []error
	for _, sink := range m {
		if err := sink.RecordUsage(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
