package builtin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/toolmesh/toolmesh/internal/config"
	"github.com/toolmesh/toolmesh/internal/tool"
)

const (
	defaultGoogleBaseURL = "https://www.googleapis.com/customsearch/v1"
	defaultBingBaseURL   = "https://api.bing.microsoft.com/v7.0/search"
)

// GoogleSearchTool queries the Google Custom Search API.
type GoogleSearchTool struct {
	init    tool.InitGuard
	cfg     config.ToolsConfig
	baseURL string
	client  *http.Client
}

// NewGoogleSearchTool creates a Google search tool using credentials from cfg.
func NewGoogleSearchTool(cfg config.ToolsConfig) *GoogleSearchTool {
	return &GoogleSearchTool{
		cfg:     cfg,
		baseURL: defaultGoogleBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// SetBaseURL overrides the API endpoint (tests and proxies).
func (g *GoogleSearchTool) SetBaseURL(u string) { g.baseURL = u }

func (g *GoogleSearchTool) Metadata() tool.Metadata {
	return tool.Metadata{
		Name:        "google_search",
		Description: "Search the web with the Google Custom Search API",
		Category:    "web",
		Version:     "1.0.0",
		Parameters: []tool.Parameter{
			{Name: "query", Type: tool.TypeString, Description: "Search query", Required: true},
			{Name: "num_results", Type: tool.TypeInteger, Description: "Number of results to return", Default: 5},
			{Name: "lang", Type: tool.TypeString, Description: "Search language restriction", Default: "en-US"},
		},
		Tags: []string{"search", "network"},
	}
}

func (g *GoogleSearchTool) Initialize(_ context.Context) error {
	return g.init.Do(func() error {
		if g.cfg.GoogleAPIKey == "" || g.cfg.GoogleCSEID == "" {
			return errors.New("google api key or cse id not configured")
		}
		return nil
	})
}

func (g *GoogleSearchTool) Execute(ctx context.Context, args map[string]any) (*tool.Result, error) {
	query := stringArg(args, "query", "")
	num := intArg(args, "num_results", 5)
	if num > 10 {
		num = 10
	}

	params := url.Values{}
	params.Set("key", g.cfg.GoogleAPIKey)
	params.Set("cx", g.cfg.GoogleCSEID)
	params.Set("q", query)
	params.Set("num", strconv.Itoa(num))
	params.Set("lr", stringArg(args, "lang", "en-US"))

	var payload struct {
		Items []struct {
			Title       string `json:"title"`
			Link        string `json:"link"`
			Snippet     string `json:"snippet"`
			DisplayLink string `json:"displayLink"`
		} `json:"items"`
		SearchInformation struct {
			TotalResults string  `json:"totalResults"`
			SearchTime   float64 `json:"searchTime"`
		} `json:"searchInformation"`
	}
	if err := getJSON(ctx, g.client, g.baseURL+"?"+params.Encode(), nil, &payload); err != nil {
		return nil, fmt.Errorf("google search: %w", err)
	}

	results := make([]map[string]any, 0, len(payload.Items))
	for _, item := range payload.Items {
		results = append(results, map[string]any{
			"title":        item.Title,
			"link":         item.Link,
			"snippet":      item.Snippet,
			"display_link": item.DisplayLink,
		})
	}

	return tool.Ok(map[string]any{
		"query":         query,
		"results":       results,
		"total_results": payload.SearchInformation.TotalResults,
		"search_time":   payload.SearchInformation.SearchTime,
	}), nil
}

// BingSearchTool queries the Bing Web Search v7 API.
type BingSearchTool struct {
	init    tool.InitGuard
	cfg     config.ToolsConfig
	baseURL string
	client  *http.Client
}

// NewBingSearchTool creates a Bing search tool using credentials from cfg.
func NewBingSearchTool(cfg config.ToolsConfig) *BingSearchTool {
	return &BingSearchTool{
		cfg:     cfg,
		baseURL: defaultBingBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// SetBaseURL overrides the API endpoint (tests and proxies).
func (b *BingSearchTool) SetBaseURL(u string) { b.baseURL = u }

func (b *BingSearchTool) Metadata() tool.Metadata {
	return tool.Metadata{
		Name:        "bing_search",
		Description: "Search the web with the Bing Web Search API",
		Category:    "web",
		Version:     "1.0.0",
		Parameters: []tool.Parameter{
			{Name: "query", Type: tool.TypeString, Description: "Search query", Required: true},
			{Name: "count", Type: tool.TypeInteger, Description: "Number of results to return", Default: 5},
			{Name: "market", Type: tool.TypeString, Description: "Market code", Default: "en-US"},
		},
		Tags: []string{"search", "network"},
	}
}

func (b *BingSearchTool) Initialize(_ context.Context) error {
	return b.init.Do(func() error {
		if b.cfg.BingAPIKey == "" {
			return errors.New("bing api key not configured")
		}
		return nil
	})
}

func (b *BingSearchTool) Execute(ctx context.Context, args map[string]any) (*tool.Result, error) {
	query := stringArg(args, "query", "")
	count := intArg(args, "count", 5)
	if count > 50 {
		count = 50
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("count", strconv.Itoa(count))
	params.Set("mkt", stringArg(args, "market", "en-US"))
	params.Set("responseFilter", "webPages")

	headers := map[string]string{"Ocp-Apim-Subscription-Key": b.cfg.BingAPIKey}

	var payload struct {
		WebPages struct {
			TotalEstimatedMatches int64 `json:"totalEstimatedMatches"`
			Value                 []struct {
				Name            string `json:"name"`
				URL             string `json:"url"`
				Snippet         string `json:"snippet"`
				DisplayURL      string `json:"displayUrl"`
				DateLastCrawled string `json:"dateLastCrawled"`
			} `json:"value"`
		} `json:"webPages"`
	}
	if err := getJSON(ctx, b.client, b.baseURL+"?"+params.Encode(), headers, &payload); err != nil {
		return nil, fmt.Errorf("bing search: %w", err)
	}

	results := make([]map[string]any, 0, len(payload.WebPages.Value))
	for _, item := range payload.WebPages.Value {
		results = append(results, map[string]any{
			"title":             item.Name,
			"url":               item.URL,
			"snippet":           item.Snippet,
			"display_url":       item.DisplayURL,
			"date_last_crawled": item.DateLastCrawled,
		})
	}

	return tool.Ok(map[string]any{
		"query":                   query,
		"results":                 results,
		"total_estimated_matches": payload.WebPages.TotalEstimatedMatches,
	}), nil
}

// getJSON performs a GET request and decodes a JSON body, surfacing non-2xx
// statuses as errors with the response body excerpt.
func getJSON(ctx context.Context, client *http.Client, rawURL string, headers map[string]string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
