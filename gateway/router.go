package gateway

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/relayforge/llmrelay/llm"
)

// Task-type hints the router maps to concrete provider plans. Unknown hints
// fall through to the flag-based rules.
const (
	TaskCode      = "code"
	TaskLegal     = "legal"
	TaskReasoning = "reasoning"
	TaskLongDoc   = "long_doc"
	TaskCreative  = "creative"
)

// Target names one provider to engage, with an optional model override on top
// of the provider's configured default. Overrides are how OpenRouter serves
// Claude and Gemini under its own credential.
type Target struct {
	Provider llm.Provider
	Model    string
}

// RouteOptions are the selection hints the router understands. They are
// evaluated strictly in order: task hint, advanced flag, fallback flag, then
// the default primary.
type RouteOptions struct {
	ModelPreference string
	UseAdvanced     bool
	UseFallback     bool
}

// Router decides which providers to engage and in what order for one logical
// call. It only plans; executing the plan and walking it on failure is the
// gateway's job.
type Router struct {
	registry *llm.Registry
	logger   zerolog.Logger
}

// NewRouter creates a Router over the given provider registry.
func NewRouter(registry *llm.Registry, logger zerolog.Logger) *Router {
	return &Router{
		registry: registry,
		logger:   logger.With().Str("component", "router").Logger(),
	}
}

// Plan returns the ordered provider targets for one logical call. The head of
// the plan is the primary selection; the tail holds the rule's own built-in
// alternatives. Unconfigured providers never appear in a plan. With nothing
// configured at all, Plan fails with a fatal configuration error.
func (r *Router) Plan(opts RouteOptions) ([]Target, error) {
	if len(r.registry.Available()) == 0 {
		return nil, llm.ErrNoProviders
	}

	if opts.ModelPreference != "" {
		if plan := r.planForTask(opts.ModelPreference); len(plan) > 0 {
			r.logger.Debug().
				Str("task", opts.ModelPreference).
				Str("provider", string(plan[0].Provider)).
				Msg("Routing by task preference")
			return plan, nil
		}
	}

	if opts.UseAdvanced {
		plan := r.filterConfigured([]Target{
			{Provider: llm.ProviderDeepSeek},
			r.claudeTarget(),
			r.primaryTarget(),
		})
		if len(plan) > 0 {
			return plan, nil
		}
	}

	if opts.UseFallback {
		plan := r.filterConfigured([]Target{
			r.primaryTarget(),
			{Provider: llm.ProviderDeepSeek},
			{Provider: llm.ProviderDashscope},
			{Provider: llm.ProviderOpenRouter},
		})
		if len(plan) > 0 {
			return plan, nil
		}
	}

	return r.filterConfigured([]Target{r.primaryTarget()}), nil
}

// Extend appends every remaining configured provider to the plan in the fixed
// priority order, skipping providers already planned. This is the automatic
// fallback walk.
func (r *Router) Extend(plan []Target) []Target {
	seen := make(map[llm.Provider]bool, len(plan))
	for _, t := range plan {
		seen[t.Provider] = true
	}
	for _, p := range llm.DefaultPriority {
		if seen[p] || !r.registry.Configured(p) {
			continue
		}
		plan = append(plan, Target{Provider: p})
	}
	return plan
}

// planForTask maps a task-type hint to its provider plan. An unmapped hint
// returns nil so selection falls through to the next rule, as does a mapped
// hint whose providers are all unconfigured.
func (r *Router) planForTask(preference string) []Target {
	switch strings.ToLower(preference) {
	case TaskCode:
		return r.filterConfigured([]Target{
			{Provider: llm.ProviderDeepSeek},
		})
	case TaskLegal, TaskReasoning:
		return r.filterConfigured([]Target{
			r.claudeTarget(),
			{Provider: llm.ProviderDeepSeek},
		})
	case TaskLongDoc:
		return r.filterConfigured([]Target{
			r.geminiTarget(),
			r.primaryTarget(),
		})
	case TaskCreative:
		return r.filterConfigured([]Target{r.primaryTarget()})
	default:
		return nil
	}
}

// primaryTarget is the configured primary provider, or the first configured
// provider in priority order when no primary is set or the primary is
// missing its configuration.
func (r *Router) primaryTarget() Target {
	if p := r.registry.Primary(); p != "" && r.registry.Configured(p) {
		return Target{Provider: p}
	}
	for _, p := range llm.DefaultPriority {
		if r.registry.Configured(p) {
			return Target{Provider: p}
		}
	}
	return Target{}
}

// claudeTarget routes to the Claude model hosted behind OpenRouter.
func (r *Router) claudeTarget() Target {
	desc, err := r.registry.Resolve(llm.ProviderOpenRouter)
	if err != nil {
		return Target{}
	}
	return Target{Provider: llm.ProviderOpenRouter, Model: desc.ClaudeModel}
}

// geminiTarget routes to the Gemini model hosted behind OpenRouter.
func (r *Router) geminiTarget() Target {
	desc, err := r.registry.Resolve(llm.ProviderOpenRouter)
	if err != nil {
		return Target{}
	}
	return Target{Provider: llm.ProviderOpenRouter, Model: desc.GeminiModel}
}

// filterConfigured drops empty, duplicate, and unconfigured targets while
// preserving order.
func (r *Router) filterConfigured(candidates []Target) []Target {
	var out []Target
	seen := make(map[llm.Provider]bool, len(candidates))
	for _, t := range candidates {
		if t.Provider == "" || seen[t.Provider] {
			continue
		}
		if !r.registry.Configured(t.Provider) {
			continue
		}
		seen[t.Provider] = true
		out = append(out, t)
	}
	return out
}
