// Package search provides the web_search tool backed by the Baidu
// AppBuilder web search API.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tailored-agentic-units/chattutor/core/protocol"
	"github.com/tailored-agentic-units/chattutor/tools"
)

const (
	// ToolName is the name the model uses to request a search.
	ToolName = "web_search"

	DefaultEndpoint = "https://qianfan.baidubce.com/v2/ai_search/web_search"
	DefaultTopK     = 10
	DefaultTimeout  = 30 * time.Second

	noResults = "No relevant search results found."
)

// Config holds search client parameters.
type Config struct {
	Endpoint string        `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	APIKey   string        `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	TopK     int           `json:"top_k,omitempty" yaml:"top_k,omitempty"`
	Timeout  time.Duration `json:"-" yaml:"-"`
}

// DefaultConfig returns the default Baidu search configuration without a key.
func DefaultConfig() Config {
	return Config{
		Endpoint: DefaultEndpoint,
		TopK:     DefaultTopK,
		Timeout:  DefaultTimeout,
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Endpoint != "" {
		c.Endpoint = source.Endpoint
	}
	if source.APIKey != "" {
		c.APIKey = source.APIKey
	}
	if source.TopK > 0 {
		c.TopK = source.TopK
	}
	if source.Timeout > 0 {
		c.Timeout = source.Timeout
	}
}

// Client queries the search API.
type Client struct {
	endpoint string
	apiKey   string
	topK     int
	http     *http.Client
}

// New creates a Client from configuration.
func New(cfg Config) *Client {
	def := DefaultConfig()
	def.Merge(&cfg)
	return &Client{
		endpoint: def.Endpoint,
		apiKey:   def.APIKey,
		topK:     def.TopK,
		http:     &http.Client{Timeout: def.Timeout},
	}
}

// Tool returns the protocol definition of the web_search tool.
func Tool() protocol.Tool {
	return protocol.Tool{
		Name:        ToolName,
		Description: "Search the web for up-to-date information, definitions, or facts the conversation needs.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Search keywords.",
				},
			},
			"required": []string{"query"},
		},
	}
}

// Register adds the web_search tool backed by c to r.
func (c *Client) Register(r *tools.Registry) error {
	return r.Register(Tool(), c.Handle)
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type resourceFilter struct {
	Type string `json:"type"`
	TopK int    `json:"top_k"`
}

type request struct {
	Messages           []message        `json:"messages"`
	SearchSource       string           `json:"search_source"`
	ResourceTypeFilter []resourceFilter `json:"resource_type_filter"`
}

// Reference is one search hit.
type Reference struct {
	Title   string `json:"title"`
	Date    string `json:"date"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

type searchResponse struct {
	References []Reference `json:"references"`
}

// Search runs a query and returns the raw references.
func (c *Client) Search(ctx context.Context, query string) ([]Reference, error) {
	payload, err := json.Marshal(request{
		Messages:           []message{{Role: "user", Content: query}},
		SearchSource:       "baidu_search_v2",
		ResourceTypeFilter: []resourceFilter{{Type: "web", TopK: c.topK}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Appbuilder-Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("invalid search response: %w", err)
	}
	return parsed.References, nil
}

// Handle is the tools.Handler for web_search. Search failures are returned
// as plain tool output rather than as an error result, so the follow-up call
// can still answer from the model's own knowledge. Bad arguments are error
// results.
func (c *Client) Handle(ctx context.Context, raw json.RawMessage) (tools.Result, error) {
	var args struct {
		Query string `json:"query"`
	}
	if err := tools.DecodeArgs(raw, &args); err != nil {
		return tools.Errorf("%v", err), nil
	}
	if strings.TrimSpace(args.Query) == "" {
		return tools.Errorf("query is required"), nil
	}

	refs, err := c.Search(ctx, args.Query)
	if err != nil {
		return tools.Result{Content: fmt.Sprintf("Error connecting to search: %v", err)}, nil
	}

	return tools.Result{Content: Format(refs)}, nil
}

// Format renders references as Title/Date/Source/Content blocks.
func Format(refs []Reference) string {
	if len(refs) == 0 {
		return noResults
	}

	blocks := make([]string, len(refs))
	for i, ref := range refs {
		blocks[i] = fmt.Sprintf("Title: %s\nDate: %s\nSource: %s\nContent: %s",
			ref.Title, ref.Date, ref.URL, ref.Content)
	}
	return strings.Join(blocks, "\n---\n")
}
