package crawler

import (
	"context"
	"net/url"
	"sync"

	"golang.org/x/time/rate"
)

// HostLimiter politely bounds per-host fetch concurrency using a
// golang.org/x/time/rate token bucket per host, expressing "at most N
// concurrent fetches per host" directly as a burst size rather than a
// minimum inter-request delay.
type HostLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

// NewHostLimiter creates a limiter allowing burst concurrent requests per
// host, refilling at rps requests/second thereafter.
func NewHostLimiter(rps float64, burst int) *HostLimiter {
	return &HostLimiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

// Wait blocks until the host extracted from rawURL may proceed, or ctx is
// cancelled first.
func (hl *HostLimiter) Wait(ctx context.Context, rawURL string) error {
	host := extractDomain(rawURL)
	if host == "" {
		return nil
	}
	return hl.limiterFor(host).Wait(ctx)
}

func (hl *HostLimiter) limiterFor(host string) *rate.Limiter {
	hl.mu.Lock()
	defer hl.mu.Unlock()

	l, ok := hl.limiters[host]
	if !ok {
		l = rate.NewLimiter(hl.rps, hl.burst)
		hl.limiters[host] = l
	}
	return l
}

// extractDomain parses the host from a URL.
func extractDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}
