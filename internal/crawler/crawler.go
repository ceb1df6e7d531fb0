// Package crawler fetches medical device cybersecurity documents from the
// web and stores them in the document catalog.
package crawler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/cybermed/agent/internal/config"
	"github.com/cybermed/agent/internal/domain"
	"github.com/cybermed/agent/internal/logging"
	"github.com/cybermed/agent/internal/telemetry"
)

// DefaultMIMEFilters are the content types stored when a crawl target does
// not name its own.
var DefaultMIMEFilters = []string{"text/html", "application/pdf"}

// DocumentStore persists crawled documents.
type DocumentStore interface {
	Upsert(ctx context.Context, doc *domain.Document) error
}

// Target describes one crawl request.
type Target struct {
	URL         string   `json:"url" binding:"required"`
	Depth       int      `json:"depth"`
	MIMEFilters []string `json:"mime_filters"`
}

// Crawler walks a target site and stores matching documents.
type Crawler struct {
	store     DocumentStore
	cfg       config.CrawlerConfig
	logger    logging.Logger
	telemetry *telemetry.Provider
}

// New creates a crawler writing into the given store.
func New(store DocumentStore, cfg config.CrawlerConfig, logger logging.Logger, tel *telemetry.Provider) *Crawler {
	return &Crawler{store: store, cfg: cfg, logger: logger, telemetry: tel}
}

// Crawl fetches the target and pages linked from it up to the configured
// depth, storing every document whose content type passes the MIME filters.
// Returns the number of documents stored. Page-level fetch errors are logged
// and skipped; the crawl itself only fails on setup or seed errors.
func (c *Crawler) Crawl(ctx context.Context, target Target) (int, error) {
	depth := target.Depth
	if depth <= 0 {
		depth = c.cfg.MaxDepth
	}
	filters := target.MIMEFilters
	if len(filters) == 0 {
		filters = DefaultMIMEFilters
	}
	allowed := make(map[string]bool, len(filters))
	for _, f := range filters {
		allowed[f] = true
	}

	opts := []colly.CollectorOption{
		colly.StdlibContext(ctx),
		// colly counts the seed page as depth 1.
		colly.MaxDepth(depth + 1),
	}
	if c.cfg.UserAgent != "" {
		opts = append(opts, colly.UserAgent(c.cfg.UserAgent))
	}
	collector := colly.NewCollector(opts...)
	collector.SetRequestTimeout(c.cfg.FetchTimeout)

	stored := 0

	collector.OnHTML("html", func(e *colly.HTMLElement) {
		if !allowed["text/html"] {
			return
		}

		pageURL := e.Request.URL.String()
		title := strings.TrimSpace(e.DOM.Find("title").First().Text())
		if title == "" {
			title = pageURL
		}

		doc := &domain.Document{
			DocID:        DocID(pageURL),
			URL:          pageURL,
			Title:        title,
			Content:      extractText(e),
			SourceType:   domain.SourceTypeHTML,
			Lang:         "en",
			DownloadedAt: time.Now().UTC(),
		}
		if err := c.storeDocument(ctx, doc); err == nil {
			stored++
		}
	})

	collector.OnResponse(func(r *colly.Response) {
		contentType := strings.TrimSpace(strings.Split(r.Headers.Get("Content-Type"), ";")[0])
		if contentType == "text/html" || !allowed[contentType] {
			return
		}

		pageURL := r.Request.URL.String()
		doc := &domain.Document{
			DocID:        DocID(pageURL),
			URL:          pageURL,
			Title:        fileName(pageURL),
			Content:      placeholderContent(pageURL, contentType),
			SourceType:   sourceType(contentType),
			Lang:         "en",
			DownloadedAt: time.Now().UTC(),
		}
		if err := c.storeDocument(ctx, doc); err == nil {
			stored++
		}
	})

	collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		// colly resolves relative links and enforces the depth limit.
		_ = e.Request.Visit(e.Attr("href"))
	})

	collector.OnError(func(r *colly.Response, err error) {
		c.logger.Warn("crawl fetch failed",
			logging.String("url", r.Request.URL.String()),
			logging.Error(err),
		)
	})

	c.logger.Info("crawl started",
		logging.String("url", target.URL),
		logging.Int("depth", depth),
	)

	if err := collector.Visit(target.URL); err != nil {
		return 0, fmt.Errorf("visit %s: %w", target.URL, err)
	}
	collector.Wait()

	c.logger.Info("crawl completed",
		logging.String("url", target.URL),
		logging.Int("stored", stored),
	)
	return stored, nil
}

func (c *Crawler) storeDocument(ctx context.Context, doc *domain.Document) error {
	if err := c.store.Upsert(ctx, doc); err != nil {
		c.logger.Error("store crawled document failed",
			logging.String("url", doc.URL),
			logging.Error(err),
		)
		return err
	}
	if c.telemetry != nil {
		c.telemetry.Metrics.DocumentsCrawled.Inc()
	}
	return nil
}

// DocID derives the stable document identifier for a URL.
func DocID(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

var whitespace = regexp.MustCompile(`[ \t]+`)

func extractText(e *colly.HTMLElement) string {
	return textFromSelection(e.DOM)
}

func textFromSelection(sel *goquery.Selection) string {
	body := sel.Find("body")
	if body.Length() == 0 {
		body = sel
	}
	body.Find("script, style, noscript").Remove()

	lines := strings.Split(body.Text(), "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(whitespace.ReplaceAllString(line, " "))
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

func fileName(url string) string {
	parts := strings.Split(strings.TrimSuffix(url, "/"), "/")
	return parts[len(parts)-1]
}

func sourceType(contentType string) string {
	switch contentType {
	case "application/pdf":
		return domain.SourceTypePDF
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return domain.SourceTypeDOCX
	default:
		parts := strings.Split(contentType, "/")
		return strings.ToUpper(parts[len(parts)-1])
	}
}

func placeholderContent(url, contentType string) string {
	// Binary formats are catalogued without text extraction.
	return fmt.Sprintf("Content from %s - format %s", url, contentType)
}
