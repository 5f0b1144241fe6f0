package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// WebFetchTool fetches a URL, optionally extracting readable text, and
// truncates to maxChars. Only http/https schemes are accepted. When the
// caller passes render=true the page is loaded through a headless Chromium
// (go-rod) instead of a plain HTTP GET, for pages whose content only
// materializes after client-side JavaScript runs.
type WebFetchTool struct {
	HTTPClient *http.Client
}

func (t *WebFetchTool) Name() string        { return "web_fetch" }
func (t *WebFetchTool) Description() string { return "Fetch a URL and return its content as JSON" }
func (t *WebFetchTool) Schema() map[string]interface{} {
	return stringSchema("web_fetch", map[string]interface{}{
		"url":          prop("URL to fetch (http/https only)"),
		"extract_mode": prop("\"text\" for readable text, \"raw\" for the unmodified body"),
		"max_chars":    map[string]interface{}{"type": "integer", "description": "Maximum characters to return"},
		"render":       map[string]interface{}{"type": "boolean", "description": "Render via headless browser before extraction"},
	}, "url")
}

type webFetchResult struct {
	URL       string `json:"url"`
	Content   string `json:"content,omitempty"`
	Truncated bool   `json:"truncated"`
	Error     string `json:"error,omitempty"`
}

func (t *WebFetchTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	rawURL, _ := args["url"].(string)
	if rawURL == "" {
		return "", fmt.Errorf("url is required")
	}
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return marshalResult(webFetchResult{URL: rawURL, Error: "URL validation failed: only http/https schemes are allowed"}), nil
	}

	extractMode, _ := args["extract_mode"].(string)
	if extractMode == "" {
		extractMode = "text"
	}
	maxChars := 5000
	if mc, ok := args["max_chars"].(float64); ok && mc > 0 {
		maxChars = int(mc)
	}
	render, _ := args["render"].(bool)

	runCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var body string
	var err error
	if render {
		body, err = fetchRendered(runCtx, rawURL)
	} else {
		body, err = fetchPlain(runCtx, t.HTTPClient, rawURL)
	}
	if err != nil {
		return marshalResult(webFetchResult{URL: rawURL, Error: err.Error()}), nil
	}

	content := body
	if extractMode == "text" {
		content = extractText(body)
	}
	truncated := false
	if len(content) > maxChars {
		content = content[:maxChars]
		truncated = true
	}
	return marshalResult(webFetchResult{URL: rawURL, Content: content, Truncated: truncated}), nil
}

func fetchPlain(ctx context.Context, client *http.Client, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("fetch failed: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func fetchRendered(ctx context.Context, rawURL string) (string, error) {
	browser := rod.New().Context(ctx)
	if err := browser.Connect(); err != nil {
		return "", fmt.Errorf("headless browser: %w", err)
	}
	defer browser.Close()

	page, err := browser.Page(proto.TargetCreateTarget{URL: rawURL})
	if err != nil {
		return "", fmt.Errorf("headless browser: %w", err)
	}
	defer page.Close()
	if err := page.WaitLoad(); err != nil {
		return "", fmt.Errorf("headless browser: %w", err)
	}
	html, err := page.HTML()
	if err != nil {
		return "", fmt.Errorf("headless browser: %w", err)
	}
	return html, nil
}

var (
	tagRe       = regexp.MustCompile(`(?s)<(script|style)[^>]*>.*?</(script|style)>`)
	anyTagRe    = regexp.MustCompile(`<[^>]+>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

func extractText(html string) string {
	stripped := tagRe.ReplaceAllString(html, "")
	stripped = anyTagRe.ReplaceAllString(stripped, " ")
	stripped = whitespaceRe.ReplaceAllString(stripped, " ")
	return strings.TrimSpace(stripped)
}

func marshalResult(r webFetchResult) string {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Sprintf(`{"url":%q,"error":"marshal failed"}`, r.URL)
	}
	return string(data)
}
