package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/rflocate/internal/model"
)

const rule = "═══════════════════════════════════════════════════════════"

var htmlPage = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; max-width: 960px; margin: 2em auto; }
table { border-collapse: collapse; }
th, td { border: 1px solid #ccc; padding: 4px 8px; text-align: right; }
blockquote { color: #555; border-left: 4px solid #ccc; margin-left: 0; padding-left: 1em; }
</style>
</head>
<body>
{{.Content}}
</body>
</html>
`))

// Renderer writes reports as JSON, YAML, Markdown, HTML and console text
type Renderer struct {
	output   model.OutputConfig
	out      io.Writer
	markdown goldmark.Markdown
}

// NewRenderer creates a renderer that prints console output to stdout
func NewRenderer(output model.OutputConfig) *Renderer {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
		),
	)

	return &Renderer{
		output:   output,
		out:      os.Stdout,
		markdown: md,
	}
}

// SetOutput redirects console output
func (r *Renderer) SetOutput(w io.Writer) {
	if w != nil {
		r.out = w
	}
}

// RenderJSON writes the report as indented JSON
func (r *Renderer) RenderJSON(report *model.Report, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	return writeFile(path, append(data, '\n'))
}

// RenderYAML writes the report as YAML
func (r *Renderer) RenderYAML(report *model.Report, path string) error {
	data, err := yaml.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal YAML: %w", err)
	}
	return writeFile(path, data)
}

// RenderMarkdown writes the report as Markdown
func (r *Renderer) RenderMarkdown(report *model.Report, path string) error {
	return writeFile(path, []byte(r.BuildMarkdown(report)))
}

// RenderHTML converts the Markdown report to a standalone HTML page
func (r *Renderer) RenderHTML(report *model.Report, path string) error {
	var body bytes.Buffer
	if err := r.markdown.Convert([]byte(r.BuildMarkdown(report)), &body); err != nil {
		return fmt.Errorf("convert markdown: %w", err)
	}

	var page bytes.Buffer
	err := htmlPage.Execute(&page, struct {
		Title   string
		Content template.HTML
	}{
		Title:   "rflocate report: " + reportTitle(report),
		Content: template.HTML(body.String()),
	})
	if err != nil {
		return fmt.Errorf("execute template: %w", err)
	}
	return writeFile(path, page.Bytes())
}

// RenderLLMMarkdown writes an already rendered LLM summary document
func (r *Renderer) RenderLLMMarkdown(content string, path string) error {
	return writeFile(path, []byte(content))
}

// BuildMarkdown renders the report as a Markdown document
func (r *Renderer) BuildMarkdown(report *model.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# rflocate Report: %s\n\n", reportTitle(report))
	fmt.Fprintf(&b, "- **Run ID:** `%s`\n", report.RunID)
	if !report.StartedAt.IsZero() {
		fmt.Fprintf(&b, "- **Started:** %s\n", report.StartedAt.Format("2006-01-02 15:04:05 UTC"))
	}
	fmt.Fprintf(&b, "- **Model:** n=%.2f, P0=%.1f dBm, d0=%.2f km\n", report.Model.N, report.Model.P0, report.Model.D0)
	fmt.Fprintf(&b, "- **Stations:** %d\n\n", len(report.Readings))

	r.writeEstimate(&b, report)
	r.writeDetection(&b, report)
	r.writeStations(&b, report)
	r.writeSignals(&b, report)

	if r.output.IncludeFooter {
		b.WriteString("---\n\n")
		b.WriteString("_Generated by rflocate. The position is a fit of a log-distance path-loss model to measured power; ")
		b.WriteString("confidence and quality describe the fit, not ground truth._\n")
	}
	return b.String()
}

func (r *Renderer) writeEstimate(b *strings.Builder, report *model.Report) {
	b.WriteString("## Estimate\n\n")

	loc := report.Location
	if loc == nil {
		fmt.Fprintf(b, "**No fix:** %s\n\n", report.LocationError)
		return
	}

	b.WriteString("| Field | Value |\n|---|---|\n")
	fmt.Fprintf(b, "| Position | (%.3f, %.3f) km |\n", loc.Position.X, loc.Position.Y)
	fmt.Fprintf(b, "| Lat/Lon | %.6f, %.6f |\n", loc.Position.Lat, loc.Position.Lon)
	fmt.Fprintf(b, "| Method | %s |\n", loc.MethodUsed)
	fmt.Fprintf(b, "| Confidence | %.1f |\n", loc.Confidence)
	fmt.Fprintf(b, "| Residual | %.4f |\n", loc.Residual)
	fmt.Fprintf(b, "| Quality | %s |\n", loc.Quality.Quality)
	fmt.Fprintf(b, "| Reliability | %s |\n", loc.Quality.Reliability)
	fmt.Fprintf(b, "| Stations used | %d |\n", loc.ValidStationsCount)
	fmt.Fprintf(b, "| Coordinates | %s |\n", loc.CoordinateSystem)
	if v := report.LocationVerdict; v != nil {
		fmt.Fprintf(b, "| Plausibility | %s |\n", verdictText(*v))
	}
	b.WriteString("\n")

	if loc.Quality.Assessment != "" {
		fmt.Fprintf(b, "> %s\n\n", loc.Quality.Assessment)
	}

	b.WriteString("### Estimators\n\n")
	b.WriteString("| Method | x (km) | y (km) | Residual | Confidence | Converged | Iterations |\n")
	b.WriteString("|---|---|---|---|---|---|---|\n")
	for _, res := range loc.AllResults {
		fmt.Fprintf(b, "| %s | %.3f | %.3f | %.4f | %.1f | %t | %d |\n",
			res.Method, res.Position.X, res.Position.Y, res.Residual, res.Confidence, res.Converged, res.Iterations)
	}
	b.WriteString("\n")

	if len(loc.ExcludedOutliers) > 0 {
		fmt.Fprintf(b, "Refinement dropped reading(s) %s as outliers.\n\n", joinIndices(loc.ExcludedOutliers))
	}
}

func (r *Renderer) writeDetection(b *strings.Builder, report *model.Report) {
	det := report.Detection
	b.WriteString("## Anomaly Detection\n\n")
	if det.Summary != "" {
		fmt.Fprintf(b, "%s\n\n", det.Summary)
	}
	fmt.Fprintf(b, "- **Method:** %s\n", det.DetectionMethod)
	fmt.Fprintf(b, "- **Verdict:** %s\n", verdictText(report.DetectionVerdict))
	st := det.Statistics
	fmt.Fprintf(b, "- **Power:** mean %.2f dBm, std %.2f, median %.2f\n", st.PowerMean, st.PowerStd, st.PowerMedian)
	if st.NormalStations > 0 {
		fmt.Fprintf(b, "- **Normal power:** mean %.2f dBm, std %.2f\n", st.NormalPowerMean, st.NormalPowerStd)
	}
	b.WriteString("\n")

	if len(det.AnomalyDetails) == 0 {
		b.WriteString("_No anomalous stations._\n\n")
		return
	}

	b.WriteString("| Index | Station | Name | Power (dBm) | Type | Confidence | Detectors |\n")
	b.WriteString("|---|---|---|---|---|---|---|\n")
	for _, d := range det.AnomalyDetails {
		fmt.Fprintf(b, "| %d | %d | %s | %.2f | %s | %.0f%% | %s |\n",
			d.Index, d.StationID, d.Name, d.Power, d.Classification, d.Confidence, votedFor(d.Votes))
	}
	b.WriteString("\n")
}

func (r *Renderer) writeStations(b *strings.Builder, report *model.Report) {
	b.WriteString("## Stations\n\n")
	b.WriteString("| Index | Station | Name | x (km) | y (km) | Power (dBm) | Range (km) | Status |\n")
	b.WriteString("|---|---|---|---|---|---|---|---|\n")

	ranges := make(map[int]model.StationRange, len(report.Ranges))
	for _, sr := range report.Ranges {
		ranges[sr.StationID] = sr
	}
	for i, rd := range report.Readings {
		status := "normal"
		sr, ok := ranges[rd.StationID]
		if ok && sr.Anomalous {
			status = "anomalous"
		}
		rangeText := "-"
		if ok && sr.RangeKm != nil {
			rangeText = fmt.Sprintf("%.2f", *sr.RangeKm)
		}
		fmt.Fprintf(b, "| %d | %d | %s | %.2f | %.2f | %.2f | %s | %s |\n",
			i, rd.StationID, rd.Name, rd.X, rd.Y, rd.Power, rangeText, status)
	}
	b.WriteString("\n")
}

func (r *Renderer) writeSignals(b *strings.Builder, report *model.Report) {
	b.WriteString("## Signals\n\n")
	if len(report.Signals) == 0 {
		b.WriteString("_No signals._\n\n")
		return
	}
	for _, sig := range report.Signals {
		fmt.Fprintf(b, "- **[%s] %s:** %s\n", strings.ToUpper(string(sig.Severity)), sig.Type, sig.Description)
		if r.output.Verbose && len(sig.Data) > 0 {
			fmt.Fprintf(b, "  - data: `%s`\n", formatData(sig.Data))
		}
	}
	b.WriteString("\n")
}

// RenderSummary prints a short console summary
func (r *Renderer) RenderSummary(report *model.Report) {
	w := r.out
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, rule)
	_, _ = fmt.Fprintf(w, "  rflocate: %s\n", reportTitle(report))
	_, _ = fmt.Fprintln(w, rule)
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "  Stations:     %d (%d anomalous)\n", len(report.Readings), len(report.Detection.AnomalyIndices))
	_, _ = fmt.Fprintf(w, "  Detection:    %s\n", verdictText(report.DetectionVerdict))

	if loc := report.Location; loc != nil {
		_, _ = fmt.Fprintf(w, "  Position:     (%.3f, %.3f) km  [%.6f, %.6f]\n", loc.Position.X, loc.Position.Y, loc.Position.Lat, loc.Position.Lon)
		_, _ = fmt.Fprintf(w, "  Method:       %s\n", loc.MethodUsed)
		_, _ = fmt.Fprintf(w, "  Confidence:   %.1f (%s, %s reliability)\n", loc.Confidence, loc.Quality.Quality, loc.Quality.Reliability)
		_, _ = fmt.Fprintf(w, "  Residual:     %.4f\n", loc.Residual)
		if v := report.LocationVerdict; v != nil {
			_, _ = fmt.Fprintf(w, "  Plausibility: %s\n", verdictText(*v))
		}
	} else {
		_, _ = fmt.Fprintf(w, "  Position:     no fix (%s)\n", report.LocationError)
	}

	var warnings []model.Signal
	for _, sig := range report.Signals {
		if sig.Severity != model.SeverityInfo {
			warnings = append(warnings, sig)
		}
	}
	if len(warnings) > 0 {
		_, _ = fmt.Fprintln(w)
		_, _ = fmt.Fprintln(w, "  Warnings:")
		for _, sig := range warnings {
			_, _ = fmt.Fprintf(w, "    - [%s] %s\n", sig.Severity, sig.Description)
		}
	}
	_, _ = fmt.Fprintln(w)
}

func reportTitle(report *model.Report) string {
	if report.Source != "" {
		return report.Source
	}
	return report.RunID
}

func verdictText(v model.Verdict) string {
	if v.Valid {
		return "ok: " + v.Reason
	}
	return "FAILED: " + v.Reason
}

func votedFor(votes map[string]bool) string {
	var names []string
	for name, voted := range votes {
		if voted {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func joinIndices(indices []int) string {
	parts := make([]string, len(indices))
	for i, v := range indices {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, ", ")
}

// formatData prints signal data as sorted key=value pairs
func formatData(data map[string]interface{}) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, data[k])
	}
	return strings.Join(parts, " ")
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
