package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/rflocate/internal/pipeline"
)

var (
	outJSON   string
	outYAML   string
	outMD     string
	outHTML   string
	coordMode string
	timeout   time.Duration
	noCache   bool
	noFooter  bool
	llmOpts   llmFlags
)

// locateCmd represents the locate command
var locateCmd = &cobra.Command{
	Use:   "locate <file>",
	Short: "Locate an interference source from one readings file",
	Long: `Locate reads station power measurements from a YAML or JSON file and:
- Flags stations whose readings disagree with the rest
- Fits the emitter position with competing estimators on the remaining stations
- Picks the best fit and refines it when outliers remain
- Scores the result and writes transparent, explainable reports

Example:
  rflocate locate readings.yaml
  rflocate locate readings.json --json report.json --md report.md
  rflocate locate readings.yaml --mode geographic --html report.html
  rflocate locate readings.yaml --llm --llm-provider ollama --llm-model llama3.1:8b`,
	Args: cobra.ExactArgs(1),
	RunE: runLocate,
}

func init() {
	rootCmd.AddCommand(locateCmd)

	// Output flags
	locateCmd.Flags().StringVar(&outJSON, "json", "report.json", "output JSON path")
	locateCmd.Flags().StringVar(&outYAML, "yaml", "", "output YAML path (optional)")
	locateCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path (optional)")
	locateCmd.Flags().StringVar(&outHTML, "html", "", "output HTML path (optional)")
	locateCmd.Flags().BoolVar(&noFooter, "no-footer", false, "disable footer in Markdown reports")

	// Run flags
	locateCmd.Flags().StringVar(&coordMode, "mode", "", "coordinate mode: local or geographic (overrides the input file)")
	locateCmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "overall timeout")
	locateCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the report cache")

	// LLM flags
	addLLMFlags(locateCmd, &llmOpts)
}

func addLLMFlags(cmd *cobra.Command, f *llmFlags) {
	cmd.Flags().BoolVar(&f.enabled, "llm", false, "enable LLM summary generation")
	cmd.Flags().StringVar(&f.provider, "llm-provider", "openai", "LLM provider (openai, ollama)")
	cmd.Flags().StringVar(&f.model, "llm-model", "gpt-4o-mini", "LLM model name")
}

func runLocate(cmd *cobra.Command, args []string) error {
	path := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if noCache {
		cfg.Cache.Enabled = false
	}
	if noFooter {
		cfg.Output.IncludeFooter = false
	}
	if err := llmOpts.apply(cfg); err != nil {
		return err
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "Locating: %s\n", path)
		fmt.Fprintf(os.Stderr, "Model:    n=%.2f, P0=%.1f dBm, d0=%.2f km\n", cfg.Model.N, cfg.Model.P0, cfg.Model.D0)
		fmt.Fprintf(os.Stderr, "Origin:   %.6f, %.6f\n", cfg.Origin.Lat, cfg.Origin.Lon)
		fmt.Fprintln(os.Stderr)
	}

	rt, err := newRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close(context.Background())

	in, err := pipeline.LoadInput(path)
	if err != nil {
		return err
	}
	if coordMode != "" {
		in.Mode = coordMode
	}

	report, err := rt.pipeline.Run(ctx, in)
	if err != nil {
		return fmt.Errorf("locate failed: %w", err)
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "✓ Loaded %d readings\n", len(report.Readings))
		fmt.Fprintf(os.Stderr, "✓ Flagged %d anomalous stations\n", len(report.Detection.AnomalyIndices))
		if report.Location != nil {
			fmt.Fprintf(os.Stderr, "✓ Selected %s (confidence %.1f)\n", report.Location.MethodUsed, report.Location.Confidence)
		}
		if report.LLM != nil && report.LLM.Enabled {
			fmt.Fprintf(os.Stderr, "✓ Generated LLM summary using %s/%s\n", report.LLM.Provider, report.LLM.Model)
		}
		fmt.Fprintln(os.Stderr)
	}

	// Render outputs
	out := pipeline.Outputs{JSON: outJSON, YAML: outYAML, Markdown: outMD, HTML: outHTML}
	if err := rt.pipeline.RenderReport(report, out, verbose); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}
	return nil
}
