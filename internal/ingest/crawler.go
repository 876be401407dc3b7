package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/youthpolicy/policyrag/internal/model"
	"github.com/youthpolicy/policyrag/internal/normalize"
	"github.com/youthpolicy/policyrag/internal/util"
	"github.com/youthpolicy/policyrag/internal/worker"
)

// ErrDisallowed is returned for pages robots.txt forbids
var ErrDisallowed = errors.New("disallowed by robots.txt")

// CrawlResult is the outcome for one policy id
type CrawlResult struct {
	PolicyID string
	Path     string
	Skipped  bool
	Err      error
}

// CrawlReport summarizes one crawl
type CrawlReport struct {
	Results []CrawlResult
	Written int
	Skipped int
	Failed  int
}

// Crawler fetches policy detail pages by id and stores them as normalized
// records
type Crawler struct {
	cfg       model.CrawlConfig
	fetcher   *Fetcher
	robots    *RobotsChecker
	limiter   *worker.Limiter
	overwrite bool
	logger    *zap.Logger
}

// NewCrawler wires a crawler from configuration. Existing record files are
// kept unless overwrite is set.
func NewCrawler(cfg model.CrawlConfig, httpCfg model.HTTPConfig, overwrite bool, logger *zap.Logger) *Crawler {
	client := util.NewHTTPClient(httpCfg)

	var robots *RobotsChecker
	if cfg.RespectRobots {
		robots = NewRobotsChecker(client, httpCfg.UserAgent, logger)
	}

	return &Crawler{
		cfg:       cfg,
		fetcher:   NewFetcher(client, httpCfg.UserAgent, httpCfg.MaxBodyBytes),
		robots:    robots,
		limiter:   worker.NewLimiter(cfg.RateLimit, 1),
		overwrite: overwrite,
		logger:    logger,
	}
}

// PageURL returns the detail page address for a policy id
func (c *Crawler) PageURL(policyID string) (string, error) {
	u, err := url.Parse(c.cfg.ViewURL)
	if err != nil {
		return "", fmt.Errorf("parse view url: %w", err)
	}
	q := u.Query()
	q.Set("plcyBizId", policyID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Crawl fetches every id into outDir. Per-page failures are reported in the
// results; only a cancelled context stops the crawl early.
func (c *Crawler) Crawl(ctx context.Context, ids []string, outDir string) (*CrawlReport, error) {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	jobs := make([]worker.Job[CrawlResult], len(ids))
	for i, id := range ids {
		jobs[i] = func(ctx context.Context) (CrawlResult, error) {
			return c.crawlOne(ctx, id, outDir), nil
		}
	}

	report := &CrawlReport{Results: make([]CrawlResult, 0, len(ids))}
	for _, res := range worker.Run(ctx, c.cfg.Concurrency, jobs) {
		result := res.Value
		if res.Err != nil {
			result = CrawlResult{PolicyID: ids[res.Index], Err: res.Err}
		}
		switch {
		case result.Err != nil:
			report.Failed++
			c.logger.Warn("policy page failed", zap.String("policy_id", result.PolicyID), zap.Error(result.Err))
		case result.Skipped:
			report.Skipped++
		default:
			report.Written++
		}
		report.Results = append(report.Results, result)
	}

	c.logger.Info("crawl finished",
		zap.Int("ids", len(ids)),
		zap.Int("written", report.Written),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed))

	return report, ctx.Err()
}

func (c *Crawler) crawlOne(ctx context.Context, id, outDir string) CrawlResult {
	result := CrawlResult{PolicyID: id}

	path := filepath.Join(outDir, fileName(id))
	if !c.overwrite {
		if _, err := os.Stat(path); err == nil {
			result.Path, result.Skipped = path, true
			return result
		}
	}

	rec, err := c.Fetch(ctx, id)
	if err != nil {
		result.Err = err
		return result
	}

	result.Path, result.Err = WriteRecord(outDir, rec)
	return result
}

// Fetch downloads and normalizes one policy page
func (c *Crawler) Fetch(ctx context.Context, id string) (model.PolicyRecord, error) {
	pageURL, err := c.PageURL(id)
	if err != nil {
		return model.PolicyRecord{}, err
	}

	delay := c.crawlDelay(ctx, pageURL)
	if delay < 0 {
		return model.PolicyRecord{}, ErrDisallowed
	}

	if delay > 0 {
		c.applyCrawlDelay(pageURL, delay)
	}

	if err := c.limiter.Wait(ctx, pageURL); err != nil {
		return model.PolicyRecord{}, fmt.Errorf("rate limit: %w", err)
	}

	res, err := c.fetcher.FetchWithRetry(ctx, pageURL)
	if err != nil {
		return model.PolicyRecord{}, err
	}

	page, err := normalize.ParsePage(res.HTML, id, pageURL)
	if err != nil {
		return model.PolicyRecord{}, err
	}
	page.Tags = c.cfg.Tags

	rec := normalize.Normalize(page)
	c.logger.Debug("policy page parsed",
		zap.String("policy_id", id),
		zap.String("title", rec.Title),
		zap.Int("sections", len(page.Sections)))
	return rec, nil
}

// crawlDelay returns the robots.txt delay for pageURL, or -1 when the page
// may not be fetched
func (c *Crawler) crawlDelay(ctx context.Context, pageURL string) time.Duration {
	if c.robots == nil {
		return 0
	}
	allowed, delay, err := c.robots.CanFetch(ctx, pageURL)
	if err != nil || !allowed {
		return -1
	}
	return delay
}

// applyCrawlDelay slows the page's host to one request per delay unless the
// configured rate is already slower
func (c *Crawler) applyCrawlDelay(pageURL string, delay time.Duration) {
	rps := 1 / delay.Seconds()
	if c.cfg.RateLimit > 0 && c.cfg.RateLimit <= rps {
		return
	}
	parsed, err := url.Parse(pageURL)
	if err != nil || parsed.Host == "" {
		return
	}
	c.limiter.SetHostRate(parsed.Host, rps, 1)
}
