package crawler

import "time"

// CrawlConfig snapshots the bounds a single crawl runs under. It is
// constructed once per Job from internal/common.CrawlerConfig plus the
// Job's own product-line filters, so a crawl is fully self-contained and
// re-runnable.
type CrawlConfig struct {
	SeedURL               string
	ProductLines          []string
	MaxPages              int
	MaxDepth              int
	MaxConcurrencyPerHost int
	UserAgent             string
	RequestTimeout        time.Duration
	MaxBodySize           int64
	MaxRedirects          int
	BrowserPoolSize       int
}

// URLQueueItem represents a URL in the crawl frontier.
type URLQueueItem struct {
	URL      string
	Depth    int
	Score    int // higher = dequeued sooner
	Seq      int64
	AddedAt  time.Time
	Attempts int
}

// PageResult is the outcome of fetching and parsing one HTML page.
type PageResult struct {
	URL        string
	Depth      int
	StatusCode int
	Links      []string // non-PDF same-host links discovered on the page
	PdfLinks   []string // .pdf URLs discovered on the page
	Err        error
}
