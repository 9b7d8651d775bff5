package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/planviz/planviz/pkg/graph"
	"github.com/planviz/planviz/pkg/pipeline"
	"github.com/planviz/planviz/pkg/render"
)

// graphDataCommand creates the graphdata command for exporting the enriched
// graph document instead of a diagram.
func (c *CLI) graphDataCommand() *cobra.Command {
	var (
		output   string
		services bool
		noCache  bool
	)
	opts := c.pipelineOptions()

	cmd := &cobra.Command{
		Use:   "graphdata [plan.json]",
		Short: "Enrich a deployment plan and emit the graph as JSON",
		Long: `Enrich a deployment plan and emit the graph as JSON.

The graphdata command runs the same enrichment pipeline as 'draw' but writes
the enriched document (nodes, edges, annotations, draw order) instead of a
rendered diagram. The output is stable across runs and suitable for diffing.

With --services, only the sorted list of distinct resource types is printed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Source = args[0]
			return c.runGraphData(cmd.Context(), opts, output, services, noCache)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&services, "services", false, "list distinct resource types only")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&opts.Refresh, "refresh", false, "recompute even when a cached result exists")
	cmd.Flags().StringVar(&opts.Annotate, "annotate", "", "YAML overlay with user-defined nodes, edges and deletions (applied before enrichment, so targets use the raw plan identifiers)")

	return cmd
}

// runGraphData executes the pipeline and writes the document or service list.
func (c *CLI) runGraphData(ctx context.Context, opts pipeline.Options, output string, services, noCache bool) error {
	runner, err := c.newRunner(noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()
	opts.Logger = c.Logger

	// DOT is the cheapest format; the document is taken from the result.
	opts.Formats = []string{render.FormatDOT}

	prog := newProgress(c.Logger)
	result, err := runner.Execute(ctx, opts)
	if err != nil {
		return fmt.Errorf("graphdata: %w", err)
	}
	prog.done(fmt.Sprintf("Enriched %d resources", result.Stats.NodeCount))

	out, err := openOutput(output)
	if err != nil {
		return err
	}
	defer out.Close()

	if services {
		for _, t := range serviceTypes(result.Store) {
			fmt.Fprintln(out, t)
		}
		return nil
	}
	return graph.WriteJSON(result.Store, out)
}

// serviceTypes returns the sorted distinct resource types in the graph.
// Instance suffixes are ignored so expanded resources count once.
func serviceTypes(s *graph.Store) []string {
	seen := map[string]bool{}
	for _, id := range s.IDs() {
		seen[graph.TypeOf(id)] = true
	}
	types := make([]string, 0, len(seen))
	for t := range seen {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
