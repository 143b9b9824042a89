// Package gateway is the resilient entry point for LLM calls. It layers
// admission control, retry with backoff, provider selection, and automatic
// fallback on top of the provider clients in llm/, and accounts every
// provider engagement to a UsageSink whether the call succeeds or fails.
//
// One Gateway instance is shared by every caller in the process. Requests
// flow through it one way: route plan, admission gate, retry executor, wire
// call, usage sink. Call metadata travels in an explicit CallContext; nothing
// about a call is ambient state.
package gateway

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/relayforge/llmrelay/llm"
)

// Options configures gateway construction. The zero value gives default gate
// and retry tuning and discards usage records.
type Options struct {
	Gate  GateConfig
	Retry RetryConfig
	Sink  llm.UsageSink
}

// CallOptions carries one call's selection hints and accounting metadata. The
// zero value routes to the primary provider with automatic fallback enabled.
type CallOptions struct {
	// ModelPreference is a task-type hint mapped through the routing
	// table. Unknown hints are ignored. When empty, the CallContext's
	// TaskType serves as the hint.
	ModelPreference string

	// UseAdvanced prefers the strong-reasoning providers over the primary.
	UseAdvanced bool

	// UseFallback starts from the resilience-ordered provider list
	// instead of the plain primary.
	UseFallback bool

	// DisableFallback restricts the call to the first selected provider;
	// no alternatives are walked when it fails.
	DisableFallback bool

	// Context is accounting metadata threaded through the call chain.
	Context llm.CallContext
}

// clientSource resolves providers to ready clients. Satisfied by *Clients.
type clientSource interface {
	For(provider llm.Provider, modelOverride string) (llm.Client, llm.Descriptor, error)
}

// Gateway executes logical calls: one provider at a time, retries within a
// provider, fallback across providers, exactly one usage record per engaged
// provider.
type Gateway struct {
	router   *Router
	clients  clientSource
	gate     *Gate
	executor *Executor
	health   *Health
	sink     llm.UsageSink
	logger   zerolog.Logger
}

// New creates a Gateway over the given provider registry.
func New(registry *llm.Registry, opts Options, logger zerolog.Logger) *Gateway {
	sink := opts.Sink
	if sink == nil {
		sink = llm.NopSink
	}
	return &Gateway{
		router:   NewRouter(registry, logger),
		clients:  NewClients(registry, logger),
		gate:     NewGate(opts.Gate, logger),
		executor: NewExecutor(opts.Retry, logger),
		health:   NewHealth(),
		sink:     sink,
		logger:   logger.With().Str("component", "gateway").Logger(),
	}
}

// Health exposes the per-provider health view.
func (g *Gateway) Health() *Health {
	return g.health
}

// GateStats reports current admission gate occupancy.
func (g *Gateway) GateStats() GateStats {
	return g.gate.Stats()
}

// Chat runs one logical call. The request is never modified. When the request
// carries tools, capable providers return structured tool calls; a provider
// without the capability still answers, degraded to plain text with no tool
// calls. When every planned provider fails, the last provider's error is
// returned unmodified.
func (g *Gateway) Chat(ctx context.Context, req *llm.Request, opts CallOptions) (*llm.Response, error) {
	cc := opts.Context.EnsureRequestID()

	preference := opts.ModelPreference
	if preference == "" {
		preference = cc.TaskType
	}

	plan, err := g.router.Plan(RouteOptions{
		ModelPreference: preference,
		UseAdvanced:     opts.UseAdvanced,
		UseFallback:     opts.UseFallback,
	})
	if err != nil {
		return nil, err
	}
	if opts.DisableFallback {
		plan = plan[:1]
	} else {
		plan = g.router.Extend(plan)
	}

	logger := g.logger.With().Str("request_id", cc.RequestID).Logger()

	var lastErr error
	for i, target := range plan {
		resp, err := g.callProvider(ctx, target, req, cc, logger)
		if err == nil {
			if i > 0 {
				logger.Info().
					Str("provider", string(target.Provider)).
					Int("providers_tried", i+1).
					Msg("Fallback provider succeeded")
			}
			return resp, nil
		}
		lastErr = err
		logger.Warn().
			Err(err).
			Str("provider", string(target.Provider)).
			Msg("Provider call failed")
		if ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

// callProvider runs the admission, retry, and wire path against one provider
// and accounts the outcome. The concurrency slot is held for the whole retry
// sequence and released before the usage record is written.
func (g *Gateway) callProvider(ctx context.Context, target Target, req *llm.Request, cc llm.CallContext, logger zerolog.Logger) (*llm.Response, error) {
	client, desc, err := g.clients.For(target.Provider, target.Model)
	if err != nil {
		return nil, err
	}

	wantTools := req.HasTools()
	toolCaller, nativeTools := client.(llm.ToolCaller)
	degraded := wantTools && !nativeTools

	callReq := req
	if degraded {
		callReq = req.WithoutTools()
		logger.Info().
			Str("provider", string(desc.Provider)).
			Msg("Provider lacks tool calling, degrading to plain chat")
	}

	if err := g.gate.Acquire(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	var resp *llm.Response
	attempts := 0
	var callErr error

	defer func() {
		latency := time.Since(start)
		g.health.Record(desc.Provider, callErr == nil, latency, errMessage(callErr))
		g.recordUsage(ctx, buildUsageRecord(desc, cc, resp, callErr, latency, attempts), logger)
	}()
	defer g.gate.Release()

	op := func(attemptCtx context.Context) (*llm.Response, error) {
		if wantTools && !degraded {
			return toolCaller.ChatWithTools(attemptCtx, callReq)
		}
		return client.Chat(attemptCtx, callReq)
	}

	resp, attempts, callErr = g.executor.Execute(ctx, desc.Provider, wantTools && !degraded, op)
	if callErr != nil {
		return nil, callErr
	}
	return resp, nil
}

// recordUsage hands the record to the sink with cancellation stripped, so
// accounting survives a caller that has already given up. Sink failures are
// logged and swallowed; a broken audit trail must not take down a working
// call.
func (g *Gateway) recordUsage(ctx context.Context, rec llm.UsageRecord, logger zerolog.Logger) {
	if err := g.sink.RecordUsage(context.WithoutCancel(ctx), rec); err != nil {
		logger.Error().
			Err(err).
			Str("provider", string(rec.Provider)).
			Msg("Usage recording failed")
	}
}

func buildUsageRecord(desc llm.Descriptor, cc llm.CallContext, resp *llm.Response, callErr error, latency time.Duration, attempts int) llm.UsageRecord {
	rec := llm.UsageRecord{
		Provider:   desc.Provider,
		Model:      desc.Model,
		Latency:    latency,
		Success:    callErr == nil,
		RequestID:  cc.RequestID,
		CallerName: cc.CallerName,
		CallerID:   cc.CallerID,
		TaskType:   cc.TaskType,
		Attempts:   attempts,
		CreatedAt:  time.Now(),
	}
	if callErr != nil {
		rec.ErrorMessage = callErr.Error()
	} else if resp != nil && resp.Usage != nil {
		rec.InputTokens = resp.Usage.InputTokens
		rec.OutputTokens = resp.Usage.OutputTokens
	}
	return rec
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
