package llm

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ppiankov/rflocate/internal/model"
	"github.com/ppiankov/rflocate/internal/worker"
)

var stationRef = regexp.MustCompile(`(?i)\bstation\s+#?(\d+)\b`)

// Summarizer produces optional narrative summaries. It never changes the report.
type Summarizer struct {
	provider Provider
	config   Config
	limiter  *worker.Limiter
}

// NewSummarizer creates a summarizer. An empty provider yields a disabled summarizer.
func NewSummarizer(config Config) (*Summarizer, error) {
	provider, err := NewProvider(config)
	if err != nil {
		return nil, fmt.Errorf("create LLM provider: %w", err)
	}

	s := &Summarizer{provider: provider, config: config}
	if config.RateLimit > 0 {
		s.limiter = worker.NewLimiter(config.RateLimit, 1)
	}
	return s, nil
}

// IsEnabled reports whether a provider is configured
func (s *Summarizer) IsEnabled() bool {
	return s != nil && s.provider != nil
}

// ProviderName returns the configured provider name, or "" when disabled
func (s *Summarizer) ProviderName() string {
	if !s.IsEnabled() {
		return ""
	}
	return s.provider.Name()
}

// GenerateSummary asks the provider for a narrative. Provider failures are
// reported as warnings on the returned summary, never as errors, so a run
// always completes with its numbers intact.
func (s *Summarizer) GenerateSummary(ctx context.Context, report model.Report) (*model.LLMSummary, error) {
	if !s.IsEnabled() {
		return nil, nil
	}

	summary := &model.LLMSummary{
		Enabled:  true,
		Provider: s.provider.Name(),
		Model:    s.config.Model,
	}

	if err := s.limiter.Wait(ctx, s.provider.Name()); err != nil {
		summary.Warnings = append(summary.Warnings, fmt.Sprintf("LLM request not sent: %v", err))
		return summary, nil
	}

	if !s.provider.IsAvailable(ctx) {
		summary.Enabled = false
		summary.Warnings = append(summary.Warnings, fmt.Sprintf("LLM provider %s is not available", s.provider.Name()))
		return summary, nil
	}

	resp, err := s.provider.Summarize(ctx, SummarizeRequest{
		Report:    report,
		Model:     s.config.Model,
		MaxTokens: s.config.MaxTokens,
	})
	if err != nil {
		summary.Warnings = append(summary.Warnings, fmt.Sprintf("LLM summary generation failed: %v", err))
		return summary, nil
	}

	summary.SummaryMD = resp.Summary
	if resp.Model != "" {
		summary.Model = resp.Model
	}
	summary.Warnings = append(summary.Warnings, fmt.Sprintf("Tokens used: %d", resp.TokensUsed))

	known, unknown := checkStationRefs(resp.Summary, report.Readings)
	if len(unknown) > 0 {
		summary.Warnings = append(summary.Warnings,
			fmt.Sprintf("Summary mentions unknown station(s): %s", joinInts(unknown)))
	} else {
		summary.Warnings = append(summary.Warnings, fmt.Sprintf("Verified %d station references", known))
	}

	return summary, nil
}

// checkStationRefs counts "station <id>" references and returns ids not in the readings
func checkStationRefs(text string, readings []model.StationReading) (int, []int) {
	ids := make(map[int]bool, len(readings))
	for _, r := range readings {
		ids[r.StationID] = true
	}

	known := 0
	seen := map[int]bool{}
	var unknown []int
	for _, m := range stationRef.FindAllStringSubmatch(text, -1) {
		id, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if ids[id] {
			known++
			continue
		}
		if !seen[id] {
			seen[id] = true
			unknown = append(unknown, id)
		}
	}
	sort.Ints(unknown)
	return known, unknown
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ", ")
}

// RenderSeparateMarkdown renders the summary as its own document, kept apart
// from the report so generated text is never mistaken for measured results.
func RenderSeparateMarkdown(summary *model.LLMSummary) string {
	if summary == nil || !summary.Enabled {
		return ""
	}

	var b strings.Builder
	b.WriteString("# LLM Summary\n\n")
	b.WriteString("> **GENERATED CONTENT.** Position, confidence and anomaly flags were determined independently by rflocate. ")
	b.WriteString("This narrative restates them and may contain mistakes.\n\n")
	fmt.Fprintf(&b, "- **Provider:** %s\n", summary.Provider)
	if summary.Model != "" {
		fmt.Fprintf(&b, "- **Model:** %s\n", summary.Model)
	}
	b.WriteString("\n## Summary\n\n")
	if summary.SummaryMD == "" {
		b.WriteString("_No summary generated._\n")
	} else {
		b.WriteString(summary.SummaryMD)
		b.WriteString("\n")
	}

	if len(summary.Warnings) > 0 {
		b.WriteString("\n## Notes\n\n")
		for _, w := range summary.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}
	return b.String()
}
