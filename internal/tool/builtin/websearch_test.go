package builtin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/toolmesh/toolmesh/internal/config"
	"github.com/toolmesh/toolmesh/internal/tool"
)

func TestGoogleSearchToolRequiresCredentials(t *testing.T) {
	g := NewGoogleSearchTool(config.ToolsConfig{})

	res := tool.Invoke(context.Background(), g, map[string]any{"query": "golang"})
	if res.Success {
		t.Fatal("expected init failure")
	}
	if !strings.Contains(res.Error, "tool initialization failed") {
		t.Errorf("error = %q", res.Error)
	}
}

func TestGoogleSearchTool(t *testing.T) {
	var gotQuery, gotNum string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotNum = r.URL.Query().Get("num")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"items": [
				{"title": "Go", "link": "https://go.dev", "snippet": "The Go language", "displayLink": "go.dev"}
			],
			"searchInformation": {"totalResults": "1", "searchTime": 0.2}
		}`))
	}))
	defer srv.Close()

	g := NewGoogleSearchTool(config.ToolsConfig{GoogleAPIKey: "k", GoogleCSEID: "cx"})
	g.SetBaseURL(srv.URL)

	res := tool.Invoke(context.Background(), g, map[string]any{"query": "golang", "num_results": 20})
	if !res.Success {
		t.Fatalf("search failed: %s", res.Error)
	}
	if gotQuery != "golang" {
		t.Errorf("query sent = %q", gotQuery)
	}
	if gotNum != "10" {
		t.Errorf("num sent = %q, want capped at 10", gotNum)
	}

	data := res.Result.(map[string]any)
	results := data["results"].([]map[string]any)
	if len(results) != 1 || results[0]["title"] != "Go" {
		t.Errorf("results = %v", results)
	}
	if data["total_results"] != "1" {
		t.Errorf("total_results = %v", data["total_results"])
	}
}

func TestGoogleSearchToolAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "quota exceeded"}}`, http.StatusForbidden)
	}))
	defer srv.Close()

	g := NewGoogleSearchTool(config.ToolsConfig{GoogleAPIKey: "k", GoogleCSEID: "cx"})
	g.SetBaseURL(srv.URL)

	res := tool.Invoke(context.Background(), g, map[string]any{"query": "golang"})
	if res.Success {
		t.Fatal("expected failure envelope")
	}
	if !strings.Contains(res.Error, "status 403") {
		t.Errorf("error = %q", res.Error)
	}
}

func TestBingSearchTool(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Ocp-Apim-Subscription-Key")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"webPages": {
				"totalEstimatedMatches": 42,
				"value": [
					{"name": "Go", "url": "https://go.dev", "snippet": "The Go language", "displayUrl": "go.dev"}
				]
			}
		}`))
	}))
	defer srv.Close()

	b := NewBingSearchTool(config.ToolsConfig{BingAPIKey: "bing-key"})
	b.SetBaseURL(srv.URL)

	res := tool.Invoke(context.Background(), b, map[string]any{"query": "golang"})
	if !res.Success {
		t.Fatalf("search failed: %s", res.Error)
	}
	if gotKey != "bing-key" {
		t.Errorf("subscription key = %q", gotKey)
	}

	data := res.Result.(map[string]any)
	if data["total_estimated_matches"] != int64(42) {
		t.Errorf("total = %v", data["total_estimated_matches"])
	}
}

func TestBingSearchToolRequiresKey(t *testing.T) {
	b := NewBingSearchTool(config.ToolsConfig{})
	res := tool.Invoke(context.Background(), b, map[string]any{"query": "x"})
	if res.Success || !strings.Contains(res.Error, "tool initialization failed") {
		t.Errorf("envelope = %+v", res)
	}
}

func TestRegisterAll(t *testing.T) {
	reg := tool.NewRegistry(nil)
	RegisterAll(reg, config.ToolsConfig{})

	want := []string{"google_search", "bing_search", "file_read", "file_write", "csv_analysis"}
	names := reg.Names()
	if len(names) != len(want) {
		t.Fatalf("names = %v", names)
	}
	for i, n := range want {
		if names[i] != n {
			t.Errorf("names[%d] = %s, want %s", i, names[i], n)
		}
	}
	if web := reg.ByCategory("web"); len(web) != 2 {
		t.Errorf("web category = %d tools, want 2", len(web))
	}
}
