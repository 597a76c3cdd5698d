package crawler

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ternarybob/arbor"
)

// errSeedUnreachable and errNoPDFsWithErrors are the two fatal crawl
// conditions: either the seed itself could not be reached, or zero PDFs
// were found and at least one non-cancellation fatal error occurred.
var (
	errSeedUnreachable  = errors.New("seed URL unreachable after both fetcher tiers")
	errNoPDFsWithErrors = errors.New("zero PDFs found and at least one fetch error occurred")
)

// Result is the outcome of running the Crawler Engine to completion (or
// cancellation) over one CrawlConfig.
type Result struct {
	PdfURLs       []string
	PagesVisited  int
	FatalErr      error // seed unparseable or unreachable, or zero PDFs with at least one page error
	NonFatalCount int   // per-page errors that were logged and skipped
	Cancelled     bool
}

// CancelFunc reports whether the owning Job's worker should stop making
// forward progress (cooperative cancellation, polled between fetches).
type CancelFunc func() bool

// Engine runs a single-host BFS crawl, emitting PDF URLs and bounding
// itself by page count, depth and per-host concurrency. The frontier is
// a score-descending queue (queue.go); link discovery lives in
// link_extractor.go.
type Engine struct {
	fetcher     *Fetcher
	extractor   *LinkExtractor
	hostLimiter *HostLimiter
	retry       *RetryPolicy
	logger      arbor.ILogger
}

// NewEngine builds a crawl engine around the given fetcher. Transient
// page-fetch failures (timeouts, 429/5xx) are retried with backoff via
// RetryPolicy before a page is counted as failed.
func NewEngine(fetcher *Fetcher, hostLimiter *HostLimiter, logger arbor.ILogger) *Engine {
	return &Engine{
		fetcher:     fetcher,
		extractor:   NewLinkExtractor(logger),
		hostLimiter: hostLimiter,
		retry:       NewRetryPolicy(),
		logger:      logger,
	}
}

// Run crawls cfg.SeedURL to completion, bounded by cfg and cancellable via
// isCancelled, which the engine polls between page fetches and inside
// each link-extraction batch.
func (e *Engine) Run(ctx context.Context, cfg CrawlConfig, isCancelled CancelFunc) *Result {
	seed, err := url.Parse(cfg.SeedURL)
	if err != nil {
		return &Result{FatalErr: err}
	}
	seedHost := seed.Host

	queue := NewURLQueue()
	queue.Push(&URLQueueItem{URL: cfg.SeedURL, Depth: 0, Score: ScoreURL(cfg.SeedURL, cfg.ProductLines)})

	var (
		pdfURLs       []string
		pdfMu         sync.Mutex
		pagesVisited  int64
		nonFatal      int64
		seedUnreached int32
		inflight      int64
	)

	maxConcurrency := cfg.MaxConcurrencyPerHost
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	sem := make(chan struct{}, maxConcurrency)

	var wg sync.WaitGroup

	for {
		if isCancelled() {
			queue.Close()
			wg.Wait()
			return &Result{PdfURLs: pdfURLs, PagesVisited: int(pagesVisited), NonFatalCount: int(nonFatal), Cancelled: true}
		}
		if int(pagesVisited) >= cfg.MaxPages {
			break
		}
		if atomic.LoadInt64(&inflight) == 0 && queue.Len() == 0 {
			break // frontier exhausted and no fetch left to add links
		}
		if queue.Len() == 0 {
			time.Sleep(50 * time.Millisecond)
			continue
		}

		item, err := queue.Pop(ctx)
		if err != nil || item == nil {
			break
		}
		if item.Depth > cfg.MaxDepth {
			continue
		}

		sem <- struct{}{}
		wg.Add(1)
		atomic.AddInt64(&inflight, 1)
		go func(item *URLQueueItem) {
			defer wg.Done()
			defer func() { <-sem }()
			defer atomic.AddInt64(&inflight, -1)

			if err := e.hostLimiter.Wait(ctx, item.URL); err != nil {
				return
			}

			var fetched *FetchResult
			_, err := e.retry.ExecuteWithRetry(ctx, e.logger, func() (int, error) {
				var fetchErr error
				fetched, fetchErr = e.fetcher.Fetch(ctx, item.URL)
				if fetchErr != nil {
					var fe *FetchError
					if errors.As(fetchErr, &fe) {
						return fe.StatusCode, fetchErr
					}
					return 0, fetchErr
				}
				return 0, nil
			})
			atomic.AddInt64(&pagesVisited, 1)
			if err != nil {
				if item.URL == cfg.SeedURL {
					atomic.StoreInt32(&seedUnreached, 1)
				}
				atomic.AddInt64(&nonFatal, 1)
				e.logger.Debug().Str("url", item.URL).Err(err).Msg("page fetch failed, skipping")
				return
			}

			if !strings.Contains(fetched.MimeType, "html") && !strings.HasPrefix(fetched.MimeType, "text/") && fetched.MimeType != "" {
				return
			}

			links, err := e.extractor.ExtractLinks(string(fetched.Body), fetched.FinalURL)
			if err != nil {
				atomic.AddInt64(&nonFatal, 1)
				return
			}

			for _, link := range links {
				if isCancelled() {
					return
				}
				if IsPDFLink(link) {
					if SameRegisteredDomain(seedHost, link) {
						pdfMu.Lock()
						pdfURLs = append(pdfURLs, link)
						pdfMu.Unlock()
					}
					continue
				}
				if !SameRegisteredDomain(seedHost, link) {
					continue
				}
				queue.Push(&URLQueueItem{
					URL:   link,
					Depth: item.Depth + 1,
					Score: ScoreURL(link, cfg.ProductLines),
				})
			}
		}(item)
	}

	queue.Close()
	wg.Wait()

	if atomic.LoadInt32(&seedUnreached) == 1 && pagesVisited <= 1 {
		return &Result{FatalErr: errSeedUnreachable, PagesVisited: int(pagesVisited)}
	}

	if len(pdfURLs) == 0 && nonFatal > 0 {
		return &Result{PdfURLs: pdfURLs, PagesVisited: int(pagesVisited), NonFatalCount: int(nonFatal), FatalErr: errNoPDFsWithErrors}
	}

	return &Result{PdfURLs: dedupe(pdfURLs), PagesVisited: int(pagesVisited), NonFatalCount: int(nonFatal)}
}

func dedupe(urls []string) []string {
	seen := make(map[string]bool, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}
