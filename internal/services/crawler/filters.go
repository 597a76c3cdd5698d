package crawler

import (
	"net/url"
	"strings"
)

// SameRegisteredDomain reports whether candidateURL's host shares an
// eTLD+1 with seedHost, approximated by comparing the last two
// dot-separated labels of the hostname (e.g. "docs.example.com" and
// "www.example.com" both reduce to "example.com"). This is a
// public-suffix-list-free approximation: it is wrong for two-label public
// suffixes like "co.uk", which is an accepted simplification since the
// teacher crawled a single fixed docs host and never needed this
// comparison at all (grounded in queue.go's normalizeURL helper, which
// this extends to host-scoping rather than just dedup).
func SameRegisteredDomain(seedHost, candidateURL string) bool {
	u, err := url.Parse(candidateURL)
	if err != nil {
		return false
	}
	return registeredDomain(seedHost) == registeredDomain(u.Host)
}

func registeredDomain(host string) string {
	host = strings.ToLower(host)
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	labels := strings.Split(host, ".")
	if len(labels) <= 2 {
		return host
	}
	return strings.Join(labels[len(labels)-2:], ".")
}

// IsPDFLink reports whether href plausibly targets a PDF document, judged
// purely by the URL path's extension (case-insensitive), per spec: "URLs
// ending in .pdf (case-insensitive) are emitted as DiscoveredPdf
// candidates."
func IsPDFLink(href string) bool {
	u, err := url.Parse(href)
	if err != nil {
		return strings.HasSuffix(strings.ToLower(href), ".pdf")
	}
	return strings.HasSuffix(strings.ToLower(u.Path), ".pdf")
}
