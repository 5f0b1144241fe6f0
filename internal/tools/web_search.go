package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// WebSearchTool performs an HTTPS call to an external search API and
// formats results as a numbered list. Hard 10-second timeout.
type WebSearchTool struct {
	APIKey     string
	Endpoint   string // defaults to the Brave Search API
	HTTPClient *http.Client
}

func (t *WebSearchTool) Name() string        { return "web_search" }
func (t *WebSearchTool) Description() string { return "Search the web and return a numbered list of results" }
func (t *WebSearchTool) Schema() map[string]interface{} {
	return stringSchema("web_search", map[string]interface{}{
		"query": prop("Search query"),
		"count": map[string]interface{}{"type": "integer", "description": "Number of results to return"},
	}, "query")
}

type braveSearchResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

func (t *WebSearchTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	query, _ := args["query"].(string)
	if query == "" {
		return "", fmt.Errorf("query is required")
	}
	count := 5
	if c, ok := args["count"].(float64); ok && c > 0 {
		count = int(c)
	}
	if t.APIKey == "" {
		return "Error: web search is not configured", nil
	}

	runCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	endpoint := t.Endpoint
	if endpoint == "" {
		endpoint = "https://api.search.brave.com/res/v1/web/search"
	}
	req, err := http.NewRequestWithContext(runCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "Error: " + err.Error(), nil
	}
	q := req.URL.Query()
	q.Set("q", query)
	q.Set("count", fmt.Sprintf("%d", count))
	req.URL.RawQuery = q.Encode()
	req.Header.Set("X-Subscription-Token", t.APIKey)
	req.Header.Set("Accept", "application/json")

	client := t.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "Error: " + err.Error(), nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Sprintf("Error: search API returned %d", resp.StatusCode), nil
	}

	var parsed braveSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "Error: " + err.Error(), nil
	}

	if len(parsed.Web.Results) == 0 {
		return "No results found.", nil
	}
	out := ""
	for i, r := range parsed.Web.Results {
		if i >= count {
			break
		}
		out += fmt.Sprintf("%d. %s\n   %s\n   %s\n", i+1, r.Title, r.URL, r.Description)
	}
	return out, nil
}
