// Package pipeline provides the core enrichment pipeline.
//
// This package implements the complete load → enrich → render flow that can
// be used by the CLI and the HTTP API. By centralizing this logic, both
// entry points behave identically and caching works the same everywhere.
//
// # Architecture
//
// The pipeline consists of three stages:
//
//  1. Load: Read the raw plan graph, apply the user overlay
//  2. Enrich: Run the rule-driven enrichment engine
//  3. Render: Generate artifacts in the requested formats
//
// An optional fourth step asks a local model for a prose narrative; its
// failure never fails the run.
//
// # Usage
//
// Create a Runner and execute the pipeline:
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	opts := pipeline.Options{
//	    Source:  "plan.json",
//	    Formats: []string{"svg"},
//	}
//	result, err := runner.Execute(ctx, opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svg := result.Artifacts["svg"]
package pipeline

import (
	"encoding/json"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/planviz/planviz/pkg/cache"
	"github.com/planviz/planviz/pkg/errors"
	"github.com/planviz/planviz/pkg/graph"
	"github.com/planviz/planviz/pkg/narrate"
	"github.com/planviz/planviz/pkg/render"
	"github.com/planviz/planviz/pkg/rules"
)

// DefaultFormat is rendered when no formats are requested.
const DefaultFormat = render.FormatSVG

// Options contains all configuration for the enrichment pipeline.
// This struct supports JSON serialization for API requests.
type Options struct {
	// Source is the path to the raw plan document. Either Source or Plan
	// must be set.
	Source string `json:"source,omitempty"`

	// Plan carries the raw plan document inline, for API requests that POST
	// the document instead of naming a file. RawMessage lets JSON clients
	// embed the document directly rather than base64-encoding it.
	Plan json.RawMessage `json:"plan,omitempty"`

	// Annotate is an optional path to a YAML overlay applied before
	// enrichment.
	Annotate string `json:"annotate,omitempty"`

	// Render options.
	Formats  []string `json:"formats,omitempty"`
	Title    string   `json:"title,omitempty"`
	Detailed bool     `json:"detailed,omitempty"`

	// Narrate asks a local model for a prose summary of the result.
	Narrate      bool   `json:"narrate,omitempty"`
	NarrateHost  string `json:"narrate_host,omitempty"`
	NarrateModel string `json:"narrate_model,omitempty"`

	// Refresh bypasses the cache for this run.
	Refresh bool `json:"refresh,omitempty"`

	// Runtime options (not serialized).
	Logger *log.Logger  `json:"-"`
	Table  *rules.Table `json:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool `json:"-"`
}

// ValidateAndSetDefaults checks required fields and applies defaults.
// This method is idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.Source == "" && len(o.Plan) == 0 {
		return errors.New(errors.ErrCodeInvalidSource, "a plan source is required")
	}
	if len(o.Formats) == 0 {
		o.Formats = []string{DefaultFormat}
	}
	for _, f := range o.Formats {
		if err := render.ValidateFormat(f); err != nil {
			return err
		}
	}
	if o.Table == nil {
		o.Table = rules.AWS()
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	o.validated = true
	return nil
}

// RenderOptions converts the pipeline options to render options.
func (o *Options) RenderOptions() render.Options {
	return render.Options{Title: o.Title, Detailed: o.Detailed}
}

// ArtifactKeyOpts returns cache key options for one artifact format.
func (o *Options) ArtifactKeyOpts(format string) cache.ArtifactKeyOpts {
	return cache.ArtifactKeyOpts{
		Format:   format,
		Title:    o.Title,
		Detailed: o.Detailed,
	}
}

// NarrativeClient builds the narrative client from the options.
func (o *Options) NarrativeClient() *narrate.Client {
	return narrate.NewClient(o.NarrateHost, narrate.WithModel(o.NarrateModel))
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// RunID uniquely identifies this execution.
	RunID string

	// Store is the enriched graph.
	Store *graph.Store

	// DocHash is the content hash of the enriched document.
	DocHash string

	// Artifacts contains rendered outputs keyed by format.
	Artifacts map[string][]byte

	// Narrative is the generated prose summary, empty unless requested and
	// successful.
	Narrative string

	// Stats contains timing and size information.
	Stats Stats

	// CacheInfo tracks which stages hit the cache.
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	NodeCount  int
	EdgeCount  int
	Dropped    int // invalid entries dropped during plan import
	LoadTime   time.Duration
	EnrichTime time.Duration
	RenderTime time.Duration
}

// CacheInfo tracks cache hits for each pipeline stage.
type CacheInfo struct {
	EnrichHit    bool // enriched document came from cache
	RenderHit    bool // all artifacts came from cache
	NarrativeHit bool // narrative came from cache
}
