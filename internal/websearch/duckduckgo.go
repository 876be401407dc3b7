// Package websearch queries a public search engine for recent policy pages.
package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/youthpolicy/policyrag/internal/cache"
	"github.com/youthpolicy/policyrag/internal/htmlutil"
	"github.com/youthpolicy/policyrag/internal/model"
	"github.com/youthpolicy/policyrag/internal/util"
	"github.com/youthpolicy/policyrag/internal/worker"
)

// DefaultBaseURL is the JavaScript-free DuckDuckGo endpoint
const DefaultBaseURL = "https://html.duckduckgo.com/html/"

// Result is one organic search hit
type Result struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
	Source  string `json:"source"` // host of Link
}

// DuckDuckGo searches the DuckDuckGo HTML endpoint. Results are cached per
// query and outbound requests are rate limited.
type DuckDuckGo struct {
	httpClient *http.Client
	baseURL    string
	suffix     string
	userAgent  string
	maxBytes   int64
	maxResults int
	limiter    *worker.Limiter
	cache      cache.Cache
	ttl        time.Duration
	logger     *zap.Logger
}

// NewDuckDuckGo creates a searcher from configuration
func NewDuckDuckGo(cfg model.WebConfig, httpCfg model.HTTPConfig, logger *zap.Logger) *DuckDuckGo {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}
	maxBytes := httpCfg.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = 2_000_000
	}
	ttl := time.Duration(cfg.CacheTTL) * time.Minute

	return &DuckDuckGo{
		httpClient: util.NewHTTPClient(httpCfg),
		baseURL:    baseURL,
		suffix:     cfg.QuerySuffix,
		userAgent:  httpCfg.UserAgent,
		maxBytes:   maxBytes,
		maxResults: maxResults,
		limiter:    worker.NewLimiter(cfg.RateLimit, 1),
		cache:      cache.NewMemoryCache(ttl, 2*ttl),
		ttl:        ttl,
		logger:     logger,
	}
}

// Search returns up to limit results for query plus the configured suffix.
// limit <= 0 uses the configured maximum.
func (d *DuckDuckGo) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 || limit > d.maxResults {
		limit = d.maxResults
	}
	full := strings.TrimSpace(query) + d.suffix

	key := cache.Key(cache.NamespaceWeb, full, strconv.Itoa(limit))
	if d.ttl > 0 {
		if data, ok := d.cache.Get(key); ok {
			var cached []Result
			if err := json.Unmarshal(data, &cached); err == nil {
				d.logger.Debug("web search cache hit", zap.String("query", full))
				return cached, nil
			}
		}
	}

	results, err := d.fetch(ctx, full, limit)
	if err != nil {
		return nil, err
	}

	if d.ttl > 0 {
		if data, err := json.Marshal(results); err == nil {
			if err := d.cache.Set(key, data, d.ttl); err != nil {
				d.logger.Warn("web search cache write failed", zap.Error(err))
			}
		}
	}
	return results, nil
}

func (d *DuckDuckGo) fetch(ctx context.Context, query string, limit int) ([]Result, error) {
	if err := d.limiter.Wait(ctx, d.baseURL); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	form := url.Values{"q": {query}, "kl": {"kr-kr"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "ko-KR,ko;q=0.9,en;q=0.5")
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d %s", resp.StatusCode, resp.Status)
	}

	results, err := ParseResults(io.LimitReader(resp.Body, d.maxBytes), limit)
	if err != nil {
		return nil, err
	}

	d.logger.Debug("web search",
		zap.String("query", query),
		zap.Int("results", len(results)))
	return results, nil
}

// ParseResults extracts organic results from a DuckDuckGo HTML page, skipping
// ads. limit <= 0 means no limit.
func ParseResults(r io.Reader, limit int) ([]Result, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse results: %w", err)
	}

	var results []Result
	var walk func(*html.Node) bool

	// walk returns false once limit is reached
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "div" && htmlutil.HasClass(n, "result") && !htmlutil.HasClass(n, "result--ad") {
			if res, ok := parseResult(n); ok {
				results = append(results, res)
				if limit > 0 && len(results) >= limit {
					return false
				}
			}
			return true
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if !walk(c) {
				return false
			}
		}
		return true
	}

	walk(doc)

	if results == nil {
		results = []Result{}
	}
	return results, nil
}

func parseResult(n *html.Node) (Result, bool) {
	var title, href, snippet string

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case n.Data == "a" && htmlutil.HasClass(n, "result__a"):
				title = htmlutil.CollapsedText(n)
				href = htmlutil.Attr(n, "href")
			case htmlutil.HasClass(n, "result__snippet"):
				snippet = htmlutil.CollapsedText(n)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)

	link := resolveLink(href)
	if title == "" || link == "" {
		return Result{}, false
	}
	return Result{
		Title:   title,
		Link:    link,
		Snippet: snippet,
		Source:  hostOf(link),
	}, true
}

// resolveLink unwraps DuckDuckGo redirect links (//duckduckgo.com/l/?uddg=...)
func resolveLink(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}

	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if strings.HasSuffix(parsed.Host, "duckduckgo.com") && strings.HasPrefix(parsed.Path, "/l/") {
		if target := parsed.Query().Get("uddg"); target != "" {
			return target
		}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ""
	}
	return parsed.String()
}

func hostOf(link string) string {
	parsed, err := url.Parse(link)
	if err != nil {
		return ""
	}
	return parsed.Host
}
