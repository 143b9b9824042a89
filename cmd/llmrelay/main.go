// Command llmrelay sends a single chat completion through the resilient
// gateway from the command line. The prompt comes from -prompt or stdin,
// the answer goes to stdout, and logs stay on stderr so output can be piped.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/relayforge/llmrelay/config"
	"github.com/relayforge/llmrelay/gateway"
	"github.com/relayforge/llmrelay/llm"
	"github.com/relayforge/llmrelay/logger"
	"github.com/relayforge/llmrelay/migrations"
	"github.com/relayforge/llmrelay/usage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", config.GetConfigPath(), "Path to config file")
	prompt := flag.String("prompt", "", "Prompt text; reads stdin when empty")
	system := flag.String("system", "", "System prompt")
	task := flag.String("task", "", "Task type hint for routing (code, legal, reasoning, long_doc, creative)")
	caller := flag.String("caller", "cli", "Caller name recorded with usage")
	advanced := flag.Bool("advanced", false, "Prefer the strong-reasoning provider chain")
	fallbackChain := flag.Bool("fallback-chain", false, "Start from the resilience-ordered provider chain")
	noFallback := flag.Bool("no-fallback", false, "Fail instead of trying other providers")
	maxTokens := flag.Int64("max-tokens", 0, "Response token cap, 0 uses the provider default")
	temperature := flag.Float64("temperature", -1, "Sampling temperature, negative uses the provider default")
	timeout := flag.Duration("timeout", 5*time.Minute, "Overall call deadline")
	showUsage := flag.Bool("usage", false, "Print usage accounting after the call")
	logFile := flag.String("logfile", "", "Path to log file. If not set, logs to stderr")
	pretty := flag.Bool("pretty", false, "Use human-readable log format (only valid when logging to stderr)")
	flag.Parse()

	// Validate flag combinations
	if *pretty && *logFile != "" {
		return fmt.Errorf("-pretty can only be used when logging to stderr (don't use -logfile)")
	}

	zlog, err := logger.InitWithOptions(*logFile, *pretty)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	// --------- 1. Configuration ---------
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	registry, err := cfg.Registry()
	if err != nil {
		return fmt.Errorf("failed to build provider registry: %w", err)
	}

	retryCfg, err := cfg.RetryConfig()
	if err != nil {
		return fmt.Errorf("failed to parse retry settings: %w", err)
	}

	// --------- 2. Usage accounting ---------
	var sinks []llm.UsageSink
	if cfg.Usage.LogRecords {
		sinks = append(sinks, usage.NewLogSink(zlog))
	}

	// The memory sink keeps this run's records so -usage can show which
	// providers the call engaged.
	recent := usage.NewMemorySink(cfg.Usage.MemoryBuffer)
	sinks = append(sinks, recent)

	var store *usage.Store
	if cfg.Usage.Database != "" {
		db, err := sql.Open("sqlite3", cfg.Usage.Database)
		if err != nil {
			return fmt.Errorf("failed to open usage database: %w", err)
		}
		defer db.Close() //nolint:errcheck

		if err := migrations.Run(db, zlog); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}

		store = usage.NewStore(db)
		sinks = append(sinks, store)
	}

	var sink llm.UsageSink
	if len(sinks) == 1 {
		sink = sinks[0]
	} else {
		sink = usage.Multi(sinks...)
	}

	// --------- 3. Gateway ---------
	gw := gateway.New(registry, gateway.Options{
		Gate:  cfg.GateConfig(),
		Retry: retryCfg,
		Sink:  sink,
	}, zlog)

	// --------- 4. Shutdown handling ---------
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		zlog.Info().Str("signal", sig.String()).Msg("Received shutdown signal, canceling call")
		cancel()
	}()

	// --------- 5. Periodic usage reports ---------
	if store != nil && cfg.Usage.ReportSchedule != "" {
		reporter, err := usage.NewReporter(store, cfg.Usage.ReportSchedule, zlog)
		if err != nil {
			return fmt.Errorf("failed to create usage reporter: %w", err)
		}
		reporter.Start(ctx)
		defer reporter.Stop()
	}

	// --------- 6. The call ---------
	promptText := strings.TrimSpace(*prompt)
	if promptText == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read prompt from stdin: %w", err)
		}
		promptText = strings.TrimSpace(string(data))
	}
	if promptText == "" {
		return fmt.Errorf("no prompt given: pass -prompt or pipe text on stdin")
	}

	req := &llm.Request{
		Messages:  []llm.Message{llm.NewUserMessage(promptText)},
		System:    *system,
		MaxTokens: *maxTokens,
	}
	if *temperature >= 0 {
		req.Temperature = temperature
	}

	resp, err := gw.Chat(ctx, req, gateway.CallOptions{
		UseAdvanced:     *advanced,
		UseFallback:     *fallbackChain,
		DisableFallback: *noFallback,
		Context: llm.CallContext{
			CallerName: *caller,
			TaskType:   *task,
		},
	})
	if err != nil {
		if *showUsage {
			printCallUsage(recent)
		}
		return fmt.Errorf("chat failed: %w", err)
	}

	fmt.Println(resp.Content)

	// --------- 7. Accounting output ---------
	if *showUsage {
		printCallUsage(recent)
		if store != nil {
			printStoredSummary(store)
		}
	}

	return nil
}

// printCallUsage lists every provider engagement from this run on stderr,
// including failed attempts that the gateway fell back from.
func printCallUsage(recent *usage.MemorySink) {
	records := recent.Records()
	if len(records) == 0 {
		return
	}
	fmt.Fprintln(os.Stderr, "\nCall usage:")
	for _, rec := range records {
		status := "ok"
		if !rec.Success {
			status = "failed"
		}
		fmt.Fprintf(os.Stderr, "  %-12s %-28s %-6s in=%-6d out=%-6d attempts=%d latency=%s\n",
			rec.Provider, rec.Model, status,
			rec.InputTokens, rec.OutputTokens, rec.Attempts,
			rec.Latency.Round(time.Millisecond))
	}
}

// printStoredSummary prints the all-time per-provider aggregate from the
// usage database on stderr.
func printStoredSummary(store *usage.Store) {
	// The call context may already be canceled or past its deadline here.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	summaries, err := store.Summary(ctx, time.Time{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read usage summary: %v\n", err)
		return
	}
	if len(summaries) == 0 {
		return
	}
	fmt.Fprintln(os.Stderr, "\nStored usage:")
	for _, s := range summaries {
		fmt.Fprintf(os.Stderr, "  %-12s calls=%-6d failures=%-4d in=%-8d out=%-8d avg_latency=%s\n",
			s.Provider, s.Calls, s.Failures,
			s.InputTokens, s.OutputTokens,
			s.AvgLatency.Round(time.Millisecond))
	}
}
