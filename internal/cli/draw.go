package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/planviz/planviz/pkg/pipeline"
	"github.com/planviz/planviz/pkg/render"
)

// drawCommand creates the draw command for rendering diagrams from a plan.
func (c *CLI) drawCommand() *cobra.Command {
	var (
		formatsStr string
		output     string
		noCache    bool
	)
	opts := c.pipelineOptions()

	cmd := &cobra.Command{
		Use:   "draw [plan.json]",
		Short: "Enrich a deployment plan and render an architecture diagram",
		Long: `Enrich a deployment plan and render an architecture diagram.

The draw command reads the JSON dependency graph exported from a deployment
plan, runs the rule-driven enrichment engine (grouping, consolidation,
variants, cardinality expansion) and renders the result to SVG, PNG, or DOT.

Results are cached locally for faster subsequent runs. Use --refresh to
recompute, or --no-cache to skip the cache entirely.

Use 'graphdata' to emit the enriched graph as JSON instead of a diagram.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if formatsStr != "" {
				opts.Formats = parseFormats(formatsStr)
			}
			for _, f := range opts.Formats {
				if err := render.ValidateFormat(f); err != nil {
					return err
				}
			}
			opts.Source = args[0]
			return c.runDraw(cmd.Context(), opts, output, noCache)
		},
	}

	// Common flags
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (single format) or base path (multiple)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&opts.Refresh, "refresh", false, "recompute even when a cached result exists")

	// Enrichment flags
	cmd.Flags().StringVar(&opts.Annotate, "annotate", "", "YAML overlay with user-defined nodes, edges and deletions (applied before enrichment, so targets use the raw plan identifiers)")

	// Render flags
	cmd.Flags().StringVarP(&formatsStr, "format", "f", "", "output format(s): svg (default), png, dot (comma-separated)")
	cmd.Flags().StringVar(&opts.Title, "title", "", "diagram title")
	cmd.Flags().BoolVar(&opts.Detailed, "detailed", opts.Detailed, "include resource names in node labels")

	// Narrative flags
	cmd.Flags().BoolVar(&opts.Narrate, "narrate", false, "generate a prose summary with a local model")
	cmd.Flags().StringVar(&opts.NarrateHost, "narrate-host", opts.NarrateHost, "model API host")
	cmd.Flags().StringVar(&opts.NarrateModel, "narrate-model", opts.NarrateModel, "model name")

	return cmd
}

// runDraw executes the pipeline and writes the rendered artifacts.
func (c *CLI) runDraw(ctx context.Context, opts pipeline.Options, output string, noCache bool) error {
	runner, err := c.newRunner(noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()
	opts.Logger = c.Logger

	spin := newSpinner(ctx, fmt.Sprintf("Drawing %s...", opts.Source))
	spin.Start()

	result, err := runner.Execute(ctx, opts)
	if err != nil {
		spin.StopWithError("Drawing failed")
		return fmt.Errorf("draw: %w", err)
	}
	spin.Stop()

	if err := writeArtifacts(artifactWriteParams{
		artifacts: result.Artifacts,
		formats:   opts.Formats,
		input:     opts.Source,
		output:    output,
		cacheHit:  result.CacheInfo.RenderHit,
	}); err != nil {
		return err
	}
	printStats(result.Stats.NodeCount, result.Stats.EdgeCount, result.CacheInfo.EnrichHit)

	if result.Narrative != "" {
		printNewline()
		printInfo("Summary")
		printDetail("%s", result.Narrative)
	}
	return nil
}

// =============================================================================
// Artifact Output
// =============================================================================

// artifactWriteParams bundles the inputs for writeArtifacts.
type artifactWriteParams struct {
	artifacts map[string][]byte
	formats   []string
	input     string
	output    string
	cacheHit  bool
}

// writeArtifacts writes each rendered format to disk and prints the paths.
// A single format honors the output path verbatim; multiple formats share a
// base path and get the format as extension.
func writeArtifacts(p artifactWriteParams) error {
	if len(p.formats) == 1 {
		format := p.formats[0]
		path := p.output
		if path == "" {
			path = basePath("", p.input) + "." + format
		}
		if err := writeArtifact(path, p.artifacts[format]); err != nil {
			return err
		}
		printSuccess("Generated %s diagram", format)
		printFile(path)
		return nil
	}

	base := basePath(p.output, p.input)
	printSuccess("Generated %d diagrams", len(p.formats))
	for _, format := range p.formats {
		path := base + "." + format
		if err := writeArtifact(path, p.artifacts[format]); err != nil {
			return err
		}
		printFile(path)
	}
	return nil
}

// writeArtifact writes a single artifact to path.
func writeArtifact(path string, data []byte) error {
	out, err := openOutput(path)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := out.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// basePath derives the base output path from the output and input file paths.
// If output is empty, it strips the extension from input. If output carries a
// known format extension, that extension is stripped.
func basePath(output, input string) string {
	if output == "" {
		return strings.TrimSuffix(input, filepath.Ext(input))
	}
	ext := filepath.Ext(output)
	if render.ValidFormats[strings.TrimPrefix(ext, ".")] {
		return strings.TrimSuffix(output, ext)
	}
	return output
}

// nopCloser wraps an io.Writer with a no-op Close method.
// It is used to make os.Stdout compatible with io.WriteCloser.
type nopCloser struct{ io.Writer }

// Close implements io.Closer with a no-op.
func (nopCloser) Close() error { return nil }

// openOutput returns a WriteCloser for the given path.
// If path is empty, it returns os.Stdout wrapped in nopCloser.
// Otherwise, it creates the file at path, overwriting if it exists.
func openOutput(path string) (io.WriteCloser, error) {
	if path == "" {
		return nopCloser{os.Stdout}, nil
	}
	return os.Create(path)
}
