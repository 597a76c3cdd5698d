package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
)

// FetchErrorKind enumerates the typed failures the Fetcher can report, per
// the `fetch(url, ctx) -> (bytes, mime, final_url) | FetchError` contract.
type FetchErrorKind string

const (
	FetchErrorTimeout       FetchErrorKind = "Timeout"
	FetchErrorHTTPStatus    FetchErrorKind = "HttpStatus"
	FetchErrorAntiBotBlock  FetchErrorKind = "AntiBotBlock"
	FetchErrorInvalidContent FetchErrorKind = "InvalidContent"
	FetchErrorCancelled     FetchErrorKind = "Cancelled"
)

// FetchError is a typed fetch failure.
type FetchError struct {
	Kind       FetchErrorKind
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch error %s (status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch error %s: %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// FetchResult carries a successful fetch's bytes, content-type and the
// final (post-redirect) URL.
type FetchResult struct {
	Body     []byte
	MimeType string
	FinalURL string
}

// antiBotSignatures are substrings scanned case-insensitively against the
// first 8 KiB of a response body to detect a challenge page.
var antiBotSignatures = []string{
	"checking your browser",
	"cf-browser-verification",
	"_cf_chl_opt",
	"akamai",
	"sensor_data",
}

const antiBotScanWindow = 8 * 1024

// Fetcher implements the two-tier HTTP-then-browser fetch strategy.
type Fetcher struct {
	client     *http.Client
	pool       *ChromeDPPool
	userAgent  string
	maxBody    int64
	logger     arbor.ILogger
}

// NewFetcher builds a Fetcher. pool may be nil until a job's browser pool
// is initialized; browser escalation degrades to AntiBotBlock if so.
func NewFetcher(userAgent string, timeout time.Duration, maxRedirects int, maxBodySize int64, pool *ChromeDPPool, logger arbor.ILogger) *Fetcher {
	client := &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}
	return &Fetcher{
		client:    client,
		pool:      pool,
		userAgent: userAgent,
		maxBody:   maxBodySize,
		logger:    logger,
	}
}

// Fetch retrieves url's bytes via the direct tier, escalating to the
// browser tier on a 403/503 or an anti-bot body signature.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*FetchResult, error) {
	result, err := f.fetchDirect(ctx, url)
	if err == nil {
		return result, nil
	}

	var fe *FetchError
	if errors.As(err, &fe) && (fe.Kind == FetchErrorAntiBotBlock || fe.StatusCode == http.StatusForbidden || fe.StatusCode == http.StatusServiceUnavailable) {
		f.logger.Debug().Str("url", url).Msg("direct fetch blocked, escalating to browser tier")
		return f.fetchBrowser(ctx, url)
	}

	return nil, err
}

func (f *Fetcher) fetchDirect(ctx context.Context, rawURL string) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{Kind: FetchErrorInvalidContent, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, &FetchError{Kind: FetchErrorCancelled, Err: err}
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &FetchError{Kind: FetchErrorTimeout, Err: err}
		}
		return nil, &FetchError{Kind: FetchErrorTimeout, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusServiceUnavailable {
		// Still read a probe window in case this is a legitimate 403
		// unrelated to anti-bot defenses; either way the caller treats
		// both as escalation triggers.
		probe := make([]byte, antiBotScanWindow)
		n, _ := io.ReadFull(resp.Body, probe)
		if looksLikeAntiBot(probe[:n]) {
			return nil, &FetchError{Kind: FetchErrorAntiBotBlock, StatusCode: resp.StatusCode, Err: fmt.Errorf("anti-bot challenge detected")}
		}
		return nil, &FetchError{Kind: FetchErrorHTTPStatus, StatusCode: resp.StatusCode, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	if resp.StatusCode >= 400 {
		return nil, &FetchError{Kind: FetchErrorHTTPStatus, StatusCode: resp.StatusCode, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	reader := io.LimitReader(resp.Body, f.maxBody)
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, &FetchError{Kind: FetchErrorInvalidContent, Err: err}
	}

	if looksLikeAntiBot(body[:min(len(body), antiBotScanWindow)]) {
		return nil, &FetchError{Kind: FetchErrorAntiBotBlock, StatusCode: resp.StatusCode, Err: fmt.Errorf("anti-bot challenge detected")}
	}

	return &FetchResult{
		Body:     body,
		MimeType: resp.Header.Get("Content-Type"),
		FinalURL: resp.Request.URL.String(),
	}, nil
}

func (f *Fetcher) fetchBrowser(ctx context.Context, rawURL string) (*FetchResult, error) {
	if f.pool == nil || !f.pool.IsInitialized() {
		return nil, &FetchError{Kind: FetchErrorAntiBotBlock, Err: fmt.Errorf("no browser pool available for escalation")}
	}

	browserCtx, release, err := f.pool.GetBrowser()
	if err != nil {
		return nil, &FetchError{Kind: FetchErrorAntiBotBlock, Err: err}
	}
	defer release()

	taskCtx, cancel := context.WithCancel(browserCtx)
	defer cancel()

	var html string
	runErr := chromedp.Run(taskCtx,
		chromedp.Navigate(rawURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if runErr != nil {
		if ctx.Err() != nil {
			return nil, &FetchError{Kind: FetchErrorCancelled, Err: runErr}
		}
		return nil, &FetchError{Kind: FetchErrorAntiBotBlock, Err: runErr}
	}

	return &FetchResult{
		Body:     []byte(html),
		MimeType: "text/html",
		FinalURL: rawURL,
	}, nil
}

func looksLikeAntiBot(body []byte) bool {
	lower := strings.ToLower(string(body))
	for _, sig := range antiBotSignatures {
		if strings.Contains(lower, sig) {
			return true
		}
	}
	return false
}

