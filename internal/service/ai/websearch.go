package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/tool/duckduckgo/v2"
	"github.com/cloudwego/eino-ext/components/tool/googlesearch"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

const webSearchHTTPTimeout = 10 * time.Second

type webSearch struct {
	google     tool.InvokableTool
	duck       tool.InvokableTool
	httpClient *http.Client
}

// NewWebSearchTool builds the optional web_search tool for the general
// conversational path. Returns nil when no search provider is available.
func NewWebSearchTool() *ToolSpec {
	googleTool := initGoogleSearch()
	duckTool := initDDGSearch()
	if googleTool == nil && duckTool == nil {
		log.Printf("web search tool disabled: no search providers available")
		return nil
	}

	ws := &webSearch{
		google:     googleTool,
		duck:       duckTool,
		httpClient: &http.Client{Timeout: webSearchHTTPTimeout},
	}

	return &ToolSpec{
		Name: "web_search",
		Description: "Search the web for information; " +
			"automatically falls back to another provider if needed; " +
			"can fetch a URL directly.",
		Params: map[string]*schema.ParameterInfo{
			"query": {
				Type:     schema.String,
				Desc:     "Natural language query or URL to search",
				Required: true,
			},
		},
		Run: func(ctx context.Context, _ int64, args map[string]interface{}) (string, error) {
			return ws.run(ctx, argString(args, "query"))
		},
	}
}

func (w *webSearch) run(ctx context.Context, query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", errors.New("query must not be empty")
	}

	if looksLikeURL(query) {
		if content, err := w.fetchURL(ctx, query); err == nil {
			return content, nil
		} else {
			log.Printf("web url loader failed: %v", err)
		}
	}

	payloadBytes, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return "", fmt.Errorf("marshal search params: %w", err)
	}
	payload := string(payloadBytes)

	if w.google != nil {
		if result, err := w.google.InvokableRun(ctx, payload); err == nil {
			return result, nil
		} else {
			log.Printf("google search failed: %v", err)
		}
	}
	if w.duck != nil {
		if result, err := w.duck.InvokableRun(ctx, payload); err == nil {
			return result, nil
		} else {
			log.Printf("duckduckgo search failed: %v", err)
		}
	}
	return "", errors.New("no search provider succeeded")
}

func (w *webSearch) fetchURL(ctx context.Context, target string) (string, error) {
	parsed, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", errors.New("unsupported url scheme")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "AIMessage-WebSearch/1.0")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch url: %s", resp.Status)
	}

	const maxBodySize = 512 * 1024
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func looksLikeURL(input string) bool {
	lower := strings.ToLower(input)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func initDDGSearch() tool.InvokableTool {
	duckTool, err := duckduckgo.NewTextSearchTool(context.Background(), &duckduckgo.Config{
		ToolName:   "web_search_ddg",
		ToolDesc:   "DuckDuckGo Search Tool (no token required)",
		MaxResults: 3,
		Region:     duckduckgo.RegionWT,
		Timeout:    10 * time.Second,
	})
	if err != nil {
		log.Printf("duckduckgo search disabled: %v", err)
		return nil
	}
	return duckTool
}

func initGoogleSearch() tool.InvokableTool {
	googleAPIKey := os.Getenv("GOOGLE_API_KEY")
	googleSearchEngineID := os.Getenv("GOOGLE_SEARCH_ENGINE_ID")
	if googleAPIKey == "" || googleSearchEngineID == "" {
		log.Printf("google search tool disabled: missing GOOGLE_API_KEY or GOOGLE_SEARCH_ENGINE_ID")
		return nil
	}
	googleTool, err := googlesearch.NewTool(context.Background(), &googlesearch.Config{
		ToolName:       "web_search_google",
		ToolDesc:       "Google Search Tool",
		APIKey:         googleAPIKey,
		SearchEngineID: googleSearchEngineID,
		Lang:           "en",
		Num:            5,
	})
	if err != nil {
		log.Printf("google search disabled: %v", err)
		return nil
	}
	return googleTool
}
