package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/planviz/planviz/pkg/errors"
	"github.com/planviz/planviz/pkg/graph"
	"github.com/planviz/planviz/pkg/pipeline"
)

// Server timeouts. Enrichment of large plans can take a while, so the write
// timeout is generous compared to usual API defaults.
const (
	serveReadTimeout     = 15 * time.Second
	serveWriteTimeout    = 120 * time.Second
	serveIdleTimeout     = 60 * time.Second
	serveShutdownTimeout = 10 * time.Second
	serveMaxBodyBytes    = 32 << 20 // 32 MB plan documents
)

// serveCommand creates the serve command exposing the pipeline over HTTP.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr    string
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Expose the enrichment pipeline as an HTTP API",
		Long: `Expose the enrichment pipeline as an HTTP API.

Endpoints:

  GET  /healthz      liveness probe
  POST /api/enrich   run the pipeline on an inline plan document

The enrich endpoint accepts the pipeline options as JSON. The plan must be
sent inline in the "plan" field; file paths are rejected because the server
does not read from its local filesystem on behalf of clients.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), addr, noCache)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")

	return cmd
}

// runServe starts the HTTP server and blocks until ctx is cancelled.
func (c *CLI) runServe(ctx context.Context, addr string, noCache bool) error {
	runner, err := c.newRunner(noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	srv := &http.Server{
		Addr:         addr,
		Handler:      c.newRouter(runner),
		ReadTimeout:  serveReadTimeout,
		WriteTimeout: serveWriteTimeout,
		IdleTimeout:  serveIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		c.Logger.Infof("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		c.Logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), serveShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

// newRouter builds the chi router for the API.
func (c *CLI) newRouter(runner *pipeline.Runner) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(withLogger(req.Context(), c.Logger)))
		})
	})

	r.Get("/healthz", c.handleHealth)
	r.Post("/api/enrich", c.handleEnrich(runner))

	return r
}

// handleHealth implements the liveness probe.
func (c *CLI) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// enrichResponse is the body returned by POST /api/enrich.
type enrichResponse struct {
	RunID     string            `json:"run_id"`
	Document  graph.Document    `json:"document"`
	Artifacts map[string][]byte `json:"artifacts,omitempty"`
	Narrative string            `json:"narrative,omitempty"`
	Stats     apiStats          `json:"stats"`
}

// apiStats is the wire form of pipeline statistics.
type apiStats struct {
	NodeCount  int   `json:"node_count"`
	EdgeCount  int   `json:"edge_count"`
	Dropped    int   `json:"dropped,omitempty"`
	EnrichMs   int64 `json:"enrich_ms"`
	RenderMs   int64 `json:"render_ms"`
	CacheHit   bool  `json:"cache_hit"`
	RenderHit  bool  `json:"render_cache_hit"`
	Narrative  bool  `json:"narrative"`
	NarrateHit bool  `json:"narrative_cache_hit"`
}

// handleEnrich runs the pipeline on a posted plan document.
func (c *CLI) handleEnrich(runner *pipeline.Runner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var opts pipeline.Options
		body := http.MaxBytesReader(w, r.Body, serveMaxBodyBytes)
		if err := json.NewDecoder(body).Decode(&opts); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
			return
		}
		if opts.Source != "" || opts.Annotate != "" {
			writeError(w, http.StatusBadRequest,
				errors.New(errors.ErrCodeInvalidSource, "file paths are not accepted, send the plan inline"))
			return
		}
		logger := loggerFromContext(r.Context())
		opts.Logger = logger

		result, err := runner.Execute(r.Context(), opts)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}

		writeJSON(w, http.StatusOK, enrichResponse{
			RunID:     result.RunID,
			Document:  graph.ToDocument(result.Store),
			Artifacts: result.Artifacts,
			Narrative: result.Narrative,
			Stats: apiStats{
				NodeCount:  result.Stats.NodeCount,
				EdgeCount:  result.Stats.EdgeCount,
				Dropped:    result.Stats.Dropped,
				EnrichMs:   result.Stats.EnrichTime.Milliseconds(),
				RenderMs:   result.Stats.RenderTime.Milliseconds(),
				CacheHit:   result.CacheInfo.EnrichHit,
				RenderHit:  result.CacheInfo.RenderHit,
				Narrative:  result.Narrative != "",
				NarrateHit: result.CacheInfo.NarrativeHit,
			},
		})
	}
}

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	switch errors.GetCode(err) {
	case errors.ErrCodeInvalidSource, errors.ErrCodeInvalidPlan,
		errors.ErrCodeInvalidOverlay, errors.ErrCodeInvalidFormat:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// errorResponse is the body returned for failed requests.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{
		Error: err.Error(),
		Code:  string(errors.GetCode(err)),
	})
}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
