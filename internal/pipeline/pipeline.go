package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ppiankov/rflocate/internal/cache"
	"github.com/ppiankov/rflocate/internal/detect"
	"github.com/ppiankov/rflocate/internal/geo"
	"github.com/ppiankov/rflocate/internal/llm"
	"github.com/ppiankov/rflocate/internal/locate"
	"github.com/ppiankov/rflocate/internal/logging"
	"github.com/ppiankov/rflocate/internal/model"
	"github.com/ppiankov/rflocate/internal/observability"
	"github.com/ppiankov/rflocate/internal/score"
	"github.com/ppiankov/rflocate/internal/validate"
)

// Run outcomes recorded in metrics
const (
	StatusOK    = "ok"
	StatusNoFix = "no_fix"
	StatusError = "error"
)

// Option configures a Pipeline
type Option func(*Pipeline)

// WithLogger attaches a structured logger
func WithLogger(l logging.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.log = l
		}
	}
}

// WithMetrics records run metrics on the collector
func WithMetrics(c *observability.Collector) Option {
	return func(p *Pipeline) { p.metrics = c }
}

// WithCache memoises reports. A nil cache disables memoisation.
func WithCache(c cache.Cache) Option {
	return func(p *Pipeline) { p.cache = c }
}

// WithSummarizer attaches an LLM summarizer
func WithSummarizer(s *llm.Summarizer) Option {
	return func(p *Pipeline) { p.summarizer = s }
}

// Pipeline orchestrates detection, location and reporting for one input
type Pipeline struct {
	config     *model.Config
	transform  geo.Transform
	detector   *detect.Detector
	validator  *validate.Validator
	scorer     *score.Scorer
	renderer   *Renderer
	cache      cache.Cache              // Optional report cache (nil if disabled)
	summarizer *llm.Summarizer          // Optional LLM summarizer (nil if disabled)
	metrics    *observability.Collector // Optional metrics (nil if disabled)
	log        logging.Logger
}

// NewPipeline creates a new pipeline with the given configuration
func NewPipeline(cfg *model.Config, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		cfg = model.DefaultConfig()
	}
	if err := cfg.Model.Validate(); err != nil {
		return nil, fmt.Errorf("path-loss model: %w", err)
	}

	p := &Pipeline{
		config:    cfg,
		transform: geo.FromConfig(cfg.Origin),
		validator: validate.FromConfig(cfg),
		scorer:    score.NewScorer(),
		renderer:  NewRenderer(cfg.Output),
		log:       logging.Noop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.detector = detect.NewDetector(detect.DefaultConfig(), p.log)
	return p, nil
}

// Renderer returns the pipeline's report renderer
func (p *Pipeline) Renderer() *Renderer {
	return p.renderer
}

// Run detects anomalous stations, locates the emitter and builds a report.
// Too few usable stations is reported on the report, not as an error.
func (p *Pipeline) Run(ctx context.Context, in *Input) (report *model.Report, err error) {
	if in == nil {
		return nil, fmt.Errorf("%w: nil input", model.ErrInvalidInput)
	}

	started := time.Now()
	ctx, log := logging.WithRunLogger(ctx, p.log)
	ctx, span := observability.Tracer().Start(ctx, "run",
		trace.WithAttributes(
			attribute.String("rflocate.source", in.Name),
			attribute.Int("rflocate.readings", len(in.Readings)),
		))
	defer func() {
		status := StatusOK
		switch {
		case err != nil:
			status = StatusError
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case report.Location == nil:
			status = StatusNoFix
		}
		span.SetAttributes(attribute.String("rflocate.status", status))
		span.End()
		p.metrics.IncRun(status)
		p.metrics.ObserveStage(observability.StageTotal, time.Since(started))
		log.Debug(ctx, "run finished", logging.String("status", status), logging.Duration("elapsed", time.Since(started)))
	}()

	// 1. Resolve the model and coordinate mode
	m := p.config.Model
	if in.Model != nil {
		m = *in.Model
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("path-loss model: %w", err)
		}
	}
	mode, err := parseMode(in.Mode)
	if err != nil {
		return nil, err
	}

	// 2. Validate and normalise readings
	if err := model.ValidateReadings(in.Readings); err != nil {
		return nil, fmt.Errorf("validate readings: %w", err)
	}
	readings, err := p.prepareReadings(in.Readings, mode)
	if err != nil {
		return nil, err
	}

	// 3. Serve from cache when the same input was already located
	key := ""
	if p.cache != nil {
		key, err = cache.Key(m, p.config.Origin, string(mode), readings)
		if err != nil {
			log.Warn(ctx, "cache key failed", logging.Err(err))
		} else if cached, ok := cache.GetReport(p.cache, key); ok {
			p.metrics.IncCache(true)
			log.Debug(ctx, "report served from cache")
			cached.RunID = logging.RunIDFromContext(ctx)
			cached.Source = in.Name
			cached.StartedAt = started.UTC()
			cached.CompletedAt = time.Now().UTC()
			return p.summarize(ctx, cached), nil
		} else {
			p.metrics.IncCache(false)
		}
	}

	report = &model.Report{
		RunID:     logging.RunIDFromContext(ctx),
		Source:    in.Name,
		StartedAt: started.UTC(),
		Model:     m,
		Readings:  readings,
	}

	// 4. Detect anomalous stations
	stageCtx, end := p.stage(ctx, observability.StageDetect)
	report.Detection, err = p.detector.DetectContext(stageCtx, readings)
	end()
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}
	report.DetectionVerdict = p.validator.ValidateDetection(report.Detection)
	p.metrics.AddAnomalies(len(report.Detection.AnomalyIndices))
	if !report.DetectionVerdict.Valid {
		log.Warn(ctx, "detection result is questionable", logging.String("reason", report.DetectionVerdict.Reason))
	}

	// 5. Locate the emitter from the normal stations
	engine, err := locate.NewEngine(m, p.transform,
		locate.WithSettings(locate.SettingsFromConfig(p.config.Locate)),
		locate.WithLogger(log))
	if err != nil {
		return nil, err
	}

	stageCtx, end = p.stage(ctx, observability.StageLocate)
	est, err := engine.Locate(stageCtx, readings, report.Detection.NormalIndices, mode)
	end()
	switch {
	case errors.Is(err, model.ErrInsufficientStations):
		report.LocationError = err.Error()
		log.Info(ctx, "no fix", logging.Err(err))
	case err != nil:
		return nil, fmt.Errorf("locate: %w", err)
	default:
		report.Location = est
		verdict := p.validator.ValidateLocation(est, readings)
		report.LocationVerdict = &verdict
		p.metrics.RecordEstimate(est.MethodUsed, est.Confidence)
		for _, r := range est.AllResults {
			if !r.Converged {
				p.metrics.IncNotConverged(r.Method)
			}
		}
	}

	// 6. Diagnostic signals and per-station ranges
	_, end = p.stage(ctx, observability.StageScore)
	report.Ranges = stationRanges(m, readings, report.Detection.AnomalyIndices)
	report.Signals = p.scorer.Calculate(score.Input{
		Readings:        readings,
		Detection:       report.Detection,
		Location:        report.Location,
		LocationVerdict: report.LocationVerdict,
	})
	end()
	report.CompletedAt = time.Now().UTC()

	if key != "" {
		if err := cache.SetReport(p.cache, key, report, p.config.Cache.TTL); err != nil {
			log.Warn(ctx, "cache store failed", logging.Err(err))
		}
	}

	// 7. LLM summary last, so it can never touch the numbers
	return p.summarize(ctx, report), nil
}

// LocateFile loads an input file and runs it
func (p *Pipeline) LocateFile(ctx context.Context, path string) (*model.Report, error) {
	in, err := LoadInput(path)
	if err != nil {
		return nil, err
	}
	report, err := p.Run(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return report, nil
}

// prepareReadings fills whichever coordinate pair the readings lack.
// Geographic mode needs lat/lon on every reading.
func (p *Pipeline) prepareReadings(readings []model.StationReading, mode locate.Mode) ([]model.StationReading, error) {
	if mode == locate.ModeGeographic {
		projected, allGeo := geo.ProjectReadings(p.transform, readings)
		if !allGeo {
			return nil, fmt.Errorf("%w: geographic mode needs lat and lon on every reading", model.ErrInvalidInput)
		}
		return projected, nil
	}
	return geo.AnnotateReadings(p.transform, readings), nil
}

func (p *Pipeline) summarize(ctx context.Context, report *model.Report) *model.Report {
	if !p.summarizer.IsEnabled() {
		return report
	}
	ctx, span := observability.Tracer().Start(ctx, "summarize")
	defer span.End()

	summary, err := p.summarizer.GenerateSummary(ctx, *report)
	if err != nil {
		// Don't fail the run, just warn
		p.log.Warn(ctx, "LLM summary generation failed", logging.Err(err))
		return report
	}
	report.LLM = summary
	return report
}

// stage opens a span for one pipeline stage and returns a func that ends it
// and records its duration
func (p *Pipeline) stage(ctx context.Context, name string) (context.Context, func()) {
	start := time.Now()
	ctx, span := observability.Tracer().Start(ctx, name)
	return ctx, func() {
		span.End()
		p.metrics.ObserveStage(name, time.Since(start))
	}
}

func parseMode(s string) (locate.Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(locate.ModeLocal):
		return locate.ModeLocal, nil
	case string(locate.ModeGeographic), "geo":
		return locate.ModeGeographic, nil
	default:
		return "", fmt.Errorf("%w: unknown coordinate mode %q (supported: local, geographic)", model.ErrInvalidInput, s)
	}
}

// stationRanges inverts the path-loss model for every reading
func stationRanges(m model.PathLossModel, readings []model.StationReading, anomalies []int) []model.StationRange {
	flagged := make(map[int]bool, len(anomalies))
	for _, i := range anomalies {
		flagged[i] = true
	}

	ranges := make([]model.StationRange, len(readings))
	for i, r := range readings {
		ranges[i] = model.StationRange{
			StationID: r.StationID,
			Power:     r.Power,
			Anomalous: flagged[i],
		}
		// Very weak readings overflow to +Inf, which JSON cannot carry
		if d := m.DistanceForPower(r.Power); !math.IsInf(d, 0) && !math.IsNaN(d) {
			ranges[i].RangeKm = &d
		}
	}
	return ranges
}

// Outputs lists report files to write. Empty paths are skipped.
type Outputs struct {
	JSON     string
	YAML     string
	Markdown string
	HTML     string
}

// RenderReport renders the report to the requested outputs and prints the
// console summary
func (p *Pipeline) RenderReport(report *model.Report, out Outputs, verbose bool) error {
	r := p.renderer
	written := func(kind, path string) {
		if verbose {
			_, _ = fmt.Fprintf(r.out, "✓ Wrote %s: %s\n", kind, path)
		}
	}

	// Render JSON
	if out.JSON != "" {
		if err := r.RenderJSON(report, out.JSON); err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
		written("JSON", out.JSON)
	}

	// Render YAML
	if out.YAML != "" {
		if err := r.RenderYAML(report, out.YAML); err != nil {
			return fmt.Errorf("render YAML: %w", err)
		}
		written("YAML", out.YAML)
	}

	// Render Markdown
	if out.Markdown != "" {
		if err := r.RenderMarkdown(report, out.Markdown); err != nil {
			return fmt.Errorf("render markdown: %w", err)
		}
		written("Markdown", out.Markdown)
	}

	// Render HTML, defaulting next to the Markdown file when enabled in config
	htmlPath := out.HTML
	if htmlPath == "" && p.config.Output.HTML && out.Markdown != "" {
		htmlPath = strings.TrimSuffix(out.Markdown, ".md") + ".html"
	}
	if htmlPath != "" {
		if err := r.RenderHTML(report, htmlPath); err != nil {
			return fmt.Errorf("render HTML: %w", err)
		}
		written("HTML", htmlPath)
	}

	// Render LLM summary to separate file if present
	if report.LLM != nil && report.LLM.Enabled {
		if llmPath := llmSummaryPath(out); llmPath != "" {
			if err := r.RenderLLMMarkdown(llm.RenderSeparateMarkdown(report.LLM), llmPath); err != nil {
				p.log.Warn(context.Background(), "failed to write LLM summary", logging.String("path", llmPath), logging.Err(err))
			} else {
				written("LLM Summary", llmPath)
			}
		}
	}

	// Print summary to stdout
	r.RenderSummary(report)
	return nil
}

// llmSummaryPath places the LLM document beside the Markdown report, or the
// JSON report when no Markdown was requested
func llmSummaryPath(out Outputs) string {
	switch {
	case out.Markdown != "":
		return strings.TrimSuffix(out.Markdown, ".md") + ".llm.md"
	case out.JSON != "":
		return strings.TrimSuffix(out.JSON, ".json") + ".llm.md"
	default:
		return ""
	}
}
