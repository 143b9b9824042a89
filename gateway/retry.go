package gateway

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/relayforge/llmrelay/llm"
)

const (
	// DefaultMaxRetries is the number of re-attempts after the first try.
	DefaultMaxRetries = 3
	// DefaultBaseDelay is the initial backoff delay.
	DefaultBaseDelay = 1 * time.Second
	// DefaultMaxDelay caps the backoff delay.
	DefaultMaxDelay = 30 * time.Second
	// DefaultAttemptTimeout bounds one plain chat attempt.
	DefaultAttemptTimeout = 60 * time.Second
	// DefaultToolTimeout bounds one tool-calling attempt, which needs more
	// provider-side thinking time.
	DefaultToolTimeout = 120 * time.Second

	// backoffMultiplier doubles the delay between attempts.
	backoffMultiplier = 2.0
	// backoffRandomizationFactor is the jitter applied to each delay.
	backoffRandomizationFactor = 0.2
)

// RetryConfig tunes the per-provider retry loop. Zero values fall back to the
// defaults.
type RetryConfig struct {
	MaxRetries     int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	AttemptTimeout time.Duration
	ToolTimeout    time.Duration
}

// Op is one physical provider attempt. The context carries the per-attempt
// deadline.
type Op func(ctx context.Context) (*llm.Response, error)

// Executor drives one logical call against one provider: sequential attempts
// with exponential backoff and jitter, a fresh deadline per attempt, and
// immediate propagation of errors that retrying cannot fix. Attempts never
// run in parallel; a retry replaces its predecessor.
type Executor struct {
	cfg    RetryConfig
	logger zerolog.Logger
}

// NewExecutor creates an Executor with defaults applied.
func NewExecutor(cfg RetryConfig, logger zerolog.Logger) *Executor {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultMaxDelay
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = DefaultAttemptTimeout
	}
	if cfg.ToolTimeout <= 0 {
		cfg.ToolTimeout = DefaultToolTimeout
	}
	return &Executor{
		cfg:    cfg,
		logger: logger.With().Str("component", "executor").Logger(),
	}
}

// Execute runs op until it succeeds, fails fatally, or the retry budget is
// spent. It returns the response, the number of physical attempts made, and
// the final error. The final error is the last attempt's error, unmodified.
//
// Retry applies only to errors marked retryable (HTTP 429/5xx and transport
// failures, including per-attempt timeouts). Auth failures, invalid requests,
// and malformed responses propagate immediately.
func (e *Executor) Execute(ctx context.Context, provider llm.Provider, withTools bool, op Op) (*llm.Response, int, error) {
	timeout := e.cfg.AttemptTimeout
	if withTools {
		timeout = e.cfg.ToolTimeout
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = e.cfg.BaseDelay
	eb.Multiplier = backoffMultiplier
	eb.RandomizationFactor = backoffRandomizationFactor
	eb.MaxInterval = e.cfg.MaxDelay
	eb.MaxElapsedTime = 0
	eb.Reset()
	b := backoff.WithMaxRetries(eb, uint64(e.cfg.MaxRetries))

	attempts := 0
	for {
		attempts++

		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		resp, err := op(attemptCtx)
		cancel()

		if err == nil {
			return resp, attempts, nil
		}

		if !llm.IsRetryableError(err) {
			return nil, attempts, err
		}

		delay := b.NextBackOff()
		if delay == backoff.Stop {
			e.logger.Warn().
				Str("provider", string(provider)).
				Int("attempts", attempts).
				Err(err).
				Msg("Retry budget exhausted")
			return nil, attempts, err
		}

		// A provider's retry-after hint can only lengthen the delay, never
		// shorten it, and stays under the cap.
		if ra := llm.ExtractRetryAfter(err); ra != nil && *ra > delay {
			delay = *ra
			if delay > e.cfg.MaxDelay {
				delay = e.cfg.MaxDelay
			}
		}

		e.logger.Warn().
			Str("provider", string(provider)).
			Int("attempt", attempts).
			Dur("delay", delay).
			Err(err).
			Msg("Attempt failed, retrying after delay")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, attempts, err
		case <-timer.C:
		}
	}
}
