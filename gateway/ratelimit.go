package gateway

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

const (
	// DefaultMaxConcurrent bounds simultaneous in-flight provider calls.
	DefaultMaxConcurrent = 10
	// DefaultMaxPerWindow bounds admissions per sliding window.
	DefaultMaxPerWindow = 60
	// DefaultWindow is the span of the sliding admission window.
	DefaultWindow = time.Minute
	// windowEpsilon pads the wait until the oldest admission expires, so a
	// sleeper never wakes exactly on the boundary and loops without progress.
	windowEpsilon = 10 * time.Millisecond
)

// GateConfig tunes the process-wide admission gate. Zero values fall back to
// the defaults.
type GateConfig struct {
	MaxConcurrent int
	MaxPerWindow  int
	Window        time.Duration
}

// Gate is the single admission point every outbound provider call passes
// through, regardless of provider. It layers two limits: a sliding-window cap
// on call admissions per minute and a semaphore bounding in-flight calls.
// Acquire only ever delays or honors cancellation; it never rejects.
type Gate struct {
	logger zerolog.Logger

	sem           *semaphore.Weighted
	maxConcurrent int
	inFlight      atomic.Int64

	mu           sync.Mutex
	admissions   []time.Time
	maxPerWindow int
	window       time.Duration
}

// GateStats is a point-in-time snapshot of gate occupancy.
type GateStats struct {
	InFlight      int64
	MaxConcurrent int
	WindowUsed    int
	MaxPerWindow  int
}

// NewGate creates the admission gate. One Gate instance is shared by every
// provider client in the process.
func NewGate(cfg GateConfig, logger zerolog.Logger) *Gate {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	if cfg.MaxPerWindow <= 0 {
		cfg.MaxPerWindow = DefaultMaxPerWindow
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	return &Gate{
		logger:        logger.With().Str("component", "gate").Logger(),
		sem:           semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		maxConcurrent: cfg.MaxConcurrent,
		maxPerWindow:  cfg.MaxPerWindow,
		window:        cfg.Window,
	}
}

// Acquire blocks until both the rate window and a concurrency slot admit the
// call, or the context is canceled. Every successful Acquire must be paired
// with exactly one Release on every exit path of the admitted call.
//
// The rate window is consulted first: sleeping on the window while holding a
// concurrency slot would starve calls that could otherwise proceed.
func (g *Gate) Acquire(ctx context.Context) error {
	if err := g.admitRate(ctx); err != nil {
		return err
	}
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	g.inFlight.Add(1)
	return nil
}

// Release frees the concurrency slot taken by Acquire. The rate window needs
// no release; admissions expire by time alone.
func (g *Gate) Release() {
	g.inFlight.Add(-1)
	g.sem.Release(1)
}

// Stats reports current gate occupancy for diagnostics.
func (g *Gate) Stats() GateStats {
	g.mu.Lock()
	cutoff := time.Now().Add(-g.window)
	used := 0
	for _, t := range g.admissions {
		if t.After(cutoff) {
			used++
		}
	}
	g.mu.Unlock()

	return GateStats{
		InFlight:      g.inFlight.Load(),
		MaxConcurrent: g.maxConcurrent,
		WindowUsed:    used,
		MaxPerWindow:  g.maxPerWindow,
	}
}

// admitRate waits until the sliding window has room, then records the
// admission. The lock is never held across a sleep.
func (g *Gate) admitRate(ctx context.Context) error {
	for {
		g.mu.Lock()
		now := time.Now()
		cutoff := now.Add(-g.window)

		valid := g.admissions[:0]
		for _, t := range g.admissions {
			if t.After(cutoff) {
				valid = append(valid, t)
			}
		}
		g.admissions = valid

		if len(g.admissions) < g.maxPerWindow {
			g.admissions = append(g.admissions, now)
			g.mu.Unlock()
			return nil
		}

		// Admissions are appended in order, so the head is the oldest.
		wait := g.admissions[0].Sub(cutoff) + windowEpsilon
		g.mu.Unlock()

		g.logger.Debug().
			Dur("wait", wait).
			Int("window_limit", g.maxPerWindow).
			Msg("Rate window full, delaying admission")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
