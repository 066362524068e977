package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ppiankov/rflocate/internal/cache"
	"github.com/ppiankov/rflocate/internal/llm"
	"github.com/ppiankov/rflocate/internal/logging"
	"github.com/ppiankov/rflocate/internal/model"
	"github.com/ppiankov/rflocate/internal/observability"
	"github.com/ppiankov/rflocate/internal/pipeline"
)

// runtime holds the wired pipeline and the observability it reports to
type runtime struct {
	cfg           *model.Config
	log           logging.Logger
	pipeline      *pipeline.Pipeline
	metrics       *observability.Collector
	shutdownTrace func(context.Context) error
}

// newRuntime builds logging, metrics, tracing, cache and the optional LLM
// summarizer around a pipeline for cfg
func newRuntime(ctx context.Context, cfg *model.Config) (*runtime, error) {
	log, err := logging.New(cfg.Logging, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("configure logging: %w", err)
	}

	metrics, err := observability.NewCollector(prometheus.NewRegistry())
	if err != nil {
		return nil, fmt.Errorf("create metrics: %w", err)
	}

	shutdown, err := observability.InitTracing(ctx, cfg.Tracing, os.Stderr, log)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	opts := []pipeline.Option{
		pipeline.WithLogger(log),
		pipeline.WithMetrics(metrics),
		pipeline.WithCache(cache.FromConfig(cfg.Cache)),
	}

	// Create LLM summarizer if configured
	if cfg.LLM.Provider != "" {
		summarizer, err := llm.NewSummarizer(llm.ConfigFromModel(cfg.LLM))
		if err != nil {
			log.Warn(ctx, "failed to initialize LLM provider", logging.Err(err))
		} else {
			opts = append(opts, pipeline.WithSummarizer(summarizer))
		}
	}

	p, err := pipeline.NewPipeline(cfg, opts...)
	if err != nil {
		observability.ShutdownWithTimeout(ctx, shutdown, log)
		return nil, err
	}

	return &runtime{
		cfg:           cfg,
		log:           log,
		pipeline:      p,
		metrics:       metrics,
		shutdownTrace: shutdown,
	}, nil
}

// Close flushes spans and writes the metrics textfile when one is configured
func (rt *runtime) Close(ctx context.Context) {
	observability.ShutdownWithTimeout(ctx, rt.shutdownTrace, rt.log)
	if err := rt.metrics.WriteTextfile(rt.cfg.Metrics.TextfilePath); err != nil {
		rt.log.Warn(ctx, "failed to write metrics", logging.Err(err))
	}
}

// llmFlags are shared by locate and batch
type llmFlags struct {
	enabled  bool
	provider string
	model    string
}

// apply enables the LLM summary on cfg, taking API keys from the environment
func (f llmFlags) apply(cfg *model.Config) error {
	if !f.enabled {
		return nil
	}
	cfg.LLM.Provider = f.provider
	cfg.LLM.Model = f.model

	switch f.provider {
	case "openai":
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			cfg.LLM.APIKey = key
		}
		if cfg.LLM.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
	case "ollama":
		// Ollama doesn't need an API key
		if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
			cfg.LLM.BaseURL = baseURL
		}
	}
	return nil
}
