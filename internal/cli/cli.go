// Package cli implements the planviz command-line interface.
package cli

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/planviz/planviz/pkg/buildinfo"
	"github.com/planviz/planviz/pkg/cache"
	"github.com/planviz/planviz/pkg/pipeline"
	"github.com/planviz/planviz/pkg/render"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "planviz"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
	Config *Config
}

// New creates a new CLI instance with a default logger and the user config
// loaded from disk (defaults when no config file exists).
func New(w io.Writer, level log.Level) *CLI {
	cfg, err := LoadConfig()
	if err != nil {
		cfg = DefaultConfig()
	}
	c := &CLI{
		Logger: newLogger(w, level),
		Config: cfg,
	}
	if err != nil {
		c.Logger.Warnf("ignoring config file: %v", err)
	}
	return c
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "planviz",
		Short:        "Planviz turns deployment plans into architecture diagrams",
		Long:         `Planviz reads the JSON dependency graph of a deployment plan, enriches it with provider-aware rules (grouping, consolidation, variants, cardinality expansion) and renders the result as an architecture diagram.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	// Register all subcommands
	root.AddCommand(c.drawCommand())
	root.AddCommand(c.graphDataCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner(noCache bool) (*pipeline.Runner, error) {
	cch, err := c.newCache(noCache)
	if err != nil {
		return nil, err
	}
	return pipeline.NewRunner(cch, nil, c.Logger), nil
}

// newCache selects the cache backend configured for the CLI. A cache that
// fails to initialize degrades to the null cache so commands still run.
func (c *CLI) newCache(noCache bool) (cache.Cache, error) {
	if noCache || c.Config.Cache.Backend == cacheBackendNone {
		return cache.NewNullCache(), nil
	}
	if c.Config.Cache.Backend == cacheBackendRedis {
		rc, err := cache.NewRedisCache(c.Config.redisOptions())
		if err != nil {
			c.Logger.Warnf("redis unavailable, running uncached: %v", err)
			return cache.NewNullCache(), nil
		}
		return rc, nil
	}
	dir, err := cacheDir()
	if err != nil {
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/planviz/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// =============================================================================
// Options Helpers
// =============================================================================

// pipelineOptions builds pipeline options from the config file defaults.
// Flags set by individual commands override these afterwards.
func (c *CLI) pipelineOptions() pipeline.Options {
	return pipeline.Options{
		Formats:      append([]string(nil), c.Config.Render.Formats...),
		Detailed:     c.Config.Render.Detailed,
		NarrateHost:  c.Config.Narrate.Host,
		NarrateModel: c.Config.Narrate.Model,
	}
}

// parseFormats parses a comma-separated format string into a slice.
func parseFormats(s string) []string {
	if s == "" {
		return []string{render.FormatSVG}
	}
	return strings.Split(s, ",")
}
