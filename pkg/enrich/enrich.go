package enrich

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/planviz/planviz/pkg/graph"
	"github.com/planviz/planviz/pkg/observability"
	"github.com/planviz/planviz/pkg/rules"
)

// Stage names, in execution order.
const (
	StageRelations   = "relations"
	StageConsolidate = "consolidate"
	StageHandlers    = "handlers"
	StageVariants    = "variants"
	StageExpand      = "expand"
	StageArrows      = "arrows"
	StageCycles      = "cycles"
	StageSort        = "sort"
)

// Options configures an engine run.
type Options struct {
	// Table is the rule table driving every stage. Defaults to the AWS table.
	Table *rules.Table

	// Registry holds the special-resource handlers. Defaults to the built-in
	// registry.
	Registry *Registry

	// Logger receives per-stage progress. Defaults to a discard logger.
	Logger *log.Logger
}

func (o *Options) setDefaults() {
	if o.Table == nil {
		o.Table = rules.AWS()
	}
	if o.Registry == nil {
		o.Registry = DefaultRegistry()
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

type stage struct {
	name string
	run  func(s *graph.Store, t *rules.Table) error
}

// Enrich runs the full stage sequence over the store in place. The order is
// fixed: implied relations, consolidation, special-resource handlers,
// variants, multi-instance expansion, arrow normalization, cycle suppression
// and finally node ordering. The store is validated before the first stage
// and after the last; a validation failure or a fatal stage error aborts the
// run and returns the error unwrapped, so callers can inspect its code.
func Enrich(ctx context.Context, s *graph.Store, opts Options) error {
	opts.setDefaults()
	t, logger := opts.Table, opts.Logger

	if err := t.Validate(opts.Registry.Names()); err != nil {
		return err
	}
	if err := s.Validate(); err != nil {
		return err
	}

	stages := []stage{
		{StageRelations, BuildRelations},
		{StageConsolidate, Consolidate},
		{StageHandlers, func(s *graph.Store, t *rules.Table) error {
			return ApplyHandlers(s, t, opts.Registry)
		}},
		{StageVariants, ResolveVariants},
		{StageExpand, func(s *graph.Store, _ *rules.Table) error {
			return Expand(s)
		}},
		{StageArrows, NormalizeArrows},
		{StageCycles, BreakCycles},
		{StageSort, SortNodes},
	}

	start := time.Now()
	observability.Engine().OnEnrichStart(ctx, s.NodeCount(), s.EdgeCount())

	var err error
	for _, st := range stages {
		if err = ctx.Err(); err != nil {
			break
		}
		if err = runStage(ctx, s, t, st, logger); err != nil {
			break
		}
	}

	observability.Engine().OnEnrichComplete(ctx, s.NodeCount(), s.EdgeCount(), time.Since(start), err)
	if err != nil {
		return err
	}
	return s.Validate()
}

func runStage(ctx context.Context, s *graph.Store, t *rules.Table, st stage, logger *log.Logger) error {
	nodes := s.NodeCount()
	observability.Engine().OnStageStart(ctx, st.name, nodes)
	logger.Debug("stage start", "stage", st.name, "nodes", nodes, "edges", s.EdgeCount())

	start := time.Now()
	err := st.run(s, t)
	elapsed := time.Since(start)

	observability.Engine().OnStageComplete(ctx, st.name, s.NodeCount(), elapsed, err)
	if err != nil {
		logger.Error("stage failed", "stage", st.name, "error", err)
		return err
	}
	logger.Debug("stage done", "stage", st.name, "nodes", s.NodeCount(), "edges", s.EdgeCount(), "took", elapsed)
	return nil
}
