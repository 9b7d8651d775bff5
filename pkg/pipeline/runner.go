package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/planviz/planviz/pkg/cache"
	"github.com/planviz/planviz/pkg/enrich"
	"github.com/planviz/planviz/pkg/graph"
	"github.com/planviz/planviz/pkg/observability"
	"github.com/planviz/planviz/pkg/plan"
	"github.com/planviz/planviz/pkg/render"
	"github.com/planviz/planviz/pkg/rules"
)

// Runner encapsulates pipeline execution with caching.
// Both CLI and API can use this to avoid duplicating caching logic.
//
// The Runner is stateless except for the cache and logger - it doesn't
// store pipeline results. Multiple goroutines can safely use the same
// Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{Cache: c, Keyer: keyer, Logger: logger}
}

// Execute runs the complete load → enrich → render pipeline with caching.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	r.applyLogger(&opts)

	result := &Result{
		RunID:     uuid.NewString(),
		Artifacts: make(map[string][]byte),
	}

	// Stage 1: Load
	loadStart := time.Now()
	s, rawPlan, err := r.load(opts)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	result.Stats.LoadTime = time.Since(loadStart)
	result.Stats.Dropped = plan.Dropped(s)

	r.Logger.Info("loaded plan",
		"nodes", s.NodeCount(),
		"edges", s.EdgeCount(),
		"dropped", result.Stats.Dropped,
		"duration", result.Stats.LoadTime)

	// Stage 2: Enrich
	enrichStart := time.Now()
	enriched, enrichHit, err := r.EnrichWithCacheInfo(ctx, s, rawPlan, opts)
	if err != nil {
		return nil, fmt.Errorf("enrich: %w", err)
	}
	result.Store = enriched
	result.Stats.EnrichTime = time.Since(enrichStart)
	result.Stats.NodeCount = enriched.NodeCount()
	result.Stats.EdgeCount = enriched.EdgeCount()
	result.CacheInfo.EnrichHit = enrichHit

	if docData, err := graph.Marshal(enriched); err == nil {
		result.DocHash = cache.Hash(docData)
	}

	r.Logger.Info("enriched graph",
		"nodes", enriched.NodeCount(),
		"edges", enriched.EdgeCount(),
		"cached", enrichHit,
		"duration", result.Stats.EnrichTime)

	// Stage 3: Render
	renderStart := time.Now()
	artifacts, renderHit, err := r.RenderWithCacheInfo(ctx, enriched, result.DocHash, opts)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	result.Artifacts = artifacts
	result.Stats.RenderTime = time.Since(renderStart)
	result.CacheInfo.RenderHit = renderHit

	r.Logger.Info("rendered outputs",
		"formats", opts.Formats,
		"cached", renderHit,
		"duration", result.Stats.RenderTime)

	// Optional: narrative. A failure here downgrades to a warning.
	if opts.Narrate {
		narrative, hit, err := r.narrative(ctx, enriched, result.DocHash, opts)
		if err != nil {
			r.Logger.Warn("narrative generation failed", "error", err)
		} else {
			result.Narrative = narrative
			result.CacheInfo.NarrativeHit = hit
		}
	}

	return result, nil
}

// load reads the plan (inline or from disk) and applies the overlay. The raw
// plan bytes come back too, for cache keying.
func (r *Runner) load(opts Options) (*graph.Store, []byte, error) {
	raw := opts.Plan
	if len(raw) == 0 {
		data, err := os.ReadFile(opts.Source)
		if err != nil {
			return nil, nil, fmt.Errorf("open %s: %w", opts.Source, err)
		}
		raw = data
	}

	s, err := plan.Read(bytes.NewReader(raw))
	if err != nil {
		return nil, nil, err
	}

	if opts.Annotate != "" {
		overlay, err := rules.LoadOverlay(opts.Annotate)
		if err != nil {
			return nil, nil, err
		}
		if err := overlay.Apply(s); err != nil {
			return nil, nil, err
		}
		r.Logger.Debug("applied overlay", "overlay", overlay.String())

		// The overlay shapes the enrichment input, so it must shape the
		// cache key as well.
		if data, err := os.ReadFile(opts.Annotate); err == nil {
			raw = append(raw, data...)
		}
	}

	return s, raw, nil
}

// EnrichWithCacheInfo runs the enrichment engine with caching and returns
// cache hit info. The key covers the plan content (including any overlay)
// and the rule table, so a rule change invalidates cached documents.
func (r *Runner) EnrichWithCacheInfo(ctx context.Context, s *graph.Store, rawPlan []byte, opts Options) (*graph.Store, bool, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, false, err
	}
	r.applyLogger(&opts)

	cacheKey := r.Keyer.DocumentKey(cache.Hash(rawPlan), tableHash(opts.Table))

	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, cacheKey); err == nil && hit {
			observability.Cache().OnCacheHit(ctx, "document")
			if cached, err := graph.Unmarshal(data); err == nil {
				return cached, true, nil
			}
			// Corrupt entry: fall through and recompute.
		} else {
			observability.Cache().OnCacheMiss(ctx, "document")
		}
	}

	if err := enrich.Enrich(ctx, s, enrich.Options{Table: opts.Table, Logger: opts.Logger}); err != nil {
		return nil, false, err
	}

	if data, err := graph.Marshal(s); err == nil {
		if err := r.Cache.Set(ctx, cacheKey, data, cache.TTLDocument); err == nil {
			observability.Cache().OnCacheSet(ctx, "document", len(data))
		}
	}

	return s, false, nil
}

// RenderWithCacheInfo generates artifacts with caching and returns cache hit
// info.
func (r *Runner) RenderWithCacheInfo(ctx context.Context, s *graph.Store, docHash string, opts Options) (map[string][]byte, bool, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, false, err
	}

	artifacts := make(map[string][]byte)
	allCached := !opts.Refresh

	if allCached {
		for _, format := range opts.Formats {
			key := r.Keyer.ArtifactKey(docHash, opts.ArtifactKeyOpts(format))
			if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
				observability.Cache().OnCacheHit(ctx, "artifact")
				artifacts[format] = data
			} else {
				observability.Cache().OnCacheMiss(ctx, "artifact")
				allCached = false
				break
			}
		}
	}
	if allCached && len(artifacts) == len(opts.Formats) {
		return artifacts, true, nil
	}

	rendered := make(map[string][]byte, len(opts.Formats))
	for _, format := range opts.Formats {
		data, err := render.Render(ctx, s, opts.Table, format, opts.RenderOptions())
		if err != nil {
			return nil, false, err
		}
		rendered[format] = data

		key := r.Keyer.ArtifactKey(docHash, opts.ArtifactKeyOpts(format))
		if err := r.Cache.Set(ctx, key, data, cache.TTLArtifact); err == nil {
			observability.Cache().OnCacheSet(ctx, "artifact", len(data))
		}
	}
	return rendered, false, nil
}

func (r *Runner) narrative(ctx context.Context, s *graph.Store, docHash string, opts Options) (string, bool, error) {
	client := opts.NarrativeClient()
	key := r.Keyer.NarrativeKey(docHash, client.Model())

	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
			observability.Cache().OnCacheHit(ctx, "narrative")
			return string(data), true, nil
		}
		observability.Cache().OnCacheMiss(ctx, "narrative")
	}

	text, err := client.Summarize(ctx, s, opts.Table)
	if err != nil {
		return "", false, err
	}
	if err := r.Cache.Set(ctx, key, []byte(text), cache.TTLNarrative); err == nil {
		observability.Cache().OnCacheSet(ctx, "narrative", len(text))
	}
	return text, false, nil
}

// tableHash fingerprints a rule table for cache keying.
func tableHash(t *rules.Table) string {
	data, _ := json.Marshal(t)
	return cache.Hash(data)
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
