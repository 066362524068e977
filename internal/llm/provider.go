package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/rflocate/internal/model"
)

// systemPrompt is shared by all providers
const systemPrompt = "You explain radio interference localization reports to operators. You only restate numbers that appear in the report."

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Summarize generates a narrative summary of a localization report
	Summarize(ctx context.Context, req SummarizeRequest) (*SummarizeResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// SummarizeRequest contains the input for LLM summarization
type SummarizeRequest struct {
	// Report is the localization report to summarize
	Report model.Report

	// Prompt is an optional custom prompt (if empty, use default)
	Prompt string

	// Model is the specific model to use (provider-specific)
	Model string

	// MaxTokens limits the response length
	MaxTokens int
}

// SummarizeResponse contains the LLM's summary output
type SummarizeResponse struct {
	// Summary is the generated summary text
	Summary string

	// Model is the model that generated the response
	Model string

	// TokensUsed tracks token consumption
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "ollama", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens for response generation
	MaxTokens int

	// RateLimit caps requests per second across a batch, 0 disables it
	RateLimit float64
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:  "", // Disabled by default
		Timeout:   30,
		MaxTokens: 1000,
	}
}

// BuildPrompt constructs the default summarization prompt from a report
func BuildPrompt(report model.Report) string {
	var b strings.Builder

	b.WriteString(`You are summarizing an rflocate report. rflocate estimates where a radio interference source is from power readings at fixed stations.

RULES:
1. Only use numbers, station ids and positions that appear below.
2. Do not speculate about the emitter type, owner or intent.
3. If the estimate is unreliable or missing, say so plainly.
4. Refer to stations as "station <id>".

`)

	det := report.Detection
	fmt.Fprintf(&b, "Stations: %d total, %d normal, %d anomalous\n",
		len(report.Readings), len(det.NormalIndices), len(det.AnomalyIndices))
	for _, d := range det.AnomalyDetails {
		fmt.Fprintf(&b, "- station %d (%s): %.1f dBm, %s, %.0f%% detector agreement\n",
			d.StationID, d.Name, d.Power, d.Classification, d.Confidence)
	}

	if loc := report.Location; loc != nil {
		fmt.Fprintf(&b, "\nEstimate: (%.2f, %.2f) km, lat %.5f, lon %.5f\n",
			loc.Position.X, loc.Position.Y, loc.Position.Lat, loc.Position.Lon)
		fmt.Fprintf(&b, "Method: %s, confidence %.1f, residual %.3f\n", loc.MethodUsed, loc.Confidence, loc.Residual)
		fmt.Fprintf(&b, "Quality: %s, reliability %s, %d stations used\n",
			loc.Quality.Quality, loc.Quality.Reliability, loc.Quality.StationsUsed)
		if len(loc.ExcludedOutliers) > 0 {
			fmt.Fprintf(&b, "Refinement dropped %d station(s)\n", len(loc.ExcludedOutliers))
		}
	} else {
		fmt.Fprintf(&b, "\nNo estimate: %s\n", report.LocationError)
	}

	if len(report.Signals) > 0 {
		b.WriteString("\nKey Signals:\n")
		n := 0
		for _, signal := range report.Signals {
			if signal.Severity == model.SeverityInfo {
				continue
			}
			fmt.Fprintf(&b, "- [%s] %s: %s\n", signal.Severity, signal.Type, signal.Description)
			n++
			if n >= 5 {
				break
			}
		}
		if n == 0 {
			b.WriteString("- no warnings\n")
		}
	}

	b.WriteString("\nProvide a 3-4 sentence summary for an operator deciding whether to dispatch a field team.")
	return b.String()
}
