// Package narrate generates a prose description of an enriched graph by
// calling an Ollama-compatible chat endpoint.
//
// The narrative is strictly additive output: the model receives a textual
// summary of the graph and writes about it, it never feeds anything back
// into the engine. A failed or unreachable model therefore only costs the
// narrative, not the diagram.
package narrate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/planviz/planviz/pkg/errors"
	"github.com/planviz/planviz/pkg/graph"
	"github.com/planviz/planviz/pkg/httputil"
	"github.com/planviz/planviz/pkg/render"
	"github.com/planviz/planviz/pkg/rules"
)

// DefaultModel is the chat model requested when none is configured.
const DefaultModel = "llama3.2"

// DefaultHost is the default Ollama endpoint.
const DefaultHost = "http://localhost:11434"

// Client talks to an Ollama-compatible chat API.
type Client struct {
	host   string
	model  string
	client *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithModel selects the chat model.
func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithHTTPClient swaps the underlying HTTP client, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// NewClient creates a narrative client for the given host. An empty host
// falls back to the local Ollama default.
func NewClient(host string, opts ...Option) *Client {
	c := &Client{
		host:   strings.TrimSuffix(host, "/"),
		model:  DefaultModel,
		client: &http.Client{Timeout: 2 * time.Minute},
	}
	if c.host == "" {
		c.host = DefaultHost
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Model returns the configured model name, used for cache keying.
func (c *Client) Model() string { return c.model }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
}

// Summarize describes the enriched graph in prose. The request goes through
// the shared retry loop; transport failures and bad statuses come back as
// network errors so callers can degrade gracefully.
func (c *Client) Summarize(ctx context.Context, s *graph.Store, t *rules.Table) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildPrompt(s, t)},
		},
	})
	if err != nil {
		return "", err
	}

	url := c.host + "/api/chat"
	resp, err := httputil.Do(ctx, c.client, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeNetwork, err, "narrative request to %s", c.host)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeNetwork, err, "read narrative response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", errors.New(errors.ErrCodeNetwork, "narrative endpoint returned status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", errors.Wrap(errors.ErrCodeNetwork, err, "decode narrative response")
	}
	text := strings.TrimSpace(parsed.Message.Content)
	if text == "" {
		return "", errors.New(errors.ErrCodeNetwork, "narrative endpoint returned no content")
	}
	return text, nil
}

// buildPrompt renders the graph as a compact fact sheet the model can write
// from: one line per node with its display label, one line per connection.
func buildPrompt(s *graph.Store, t *rules.Table) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The architecture has %d resources and %d connections.\n\nResources:\n",
		s.NodeCount(), s.EdgeCount())
	for _, n := range s.Nodes() {
		kind := render.TypeLabel(n.Type, t)
		if n.Group {
			kind += " (container)"
		}
		fmt.Fprintf(&b, "- %s: %s\n", render.Label(n, t), kind)
	}
	b.WriteString("\nConnections:\n")
	for _, e := range s.Edges() {
		fn, _ := s.Node(e.From)
		tn, _ := s.Node(e.To)
		fmt.Fprintf(&b, "- %s -> %s\n", render.Label(fn, t), render.Label(tn, t))
	}
	return b.String()
}
