package crawler

import (
	"net/url"
	"strings"
)

// ScoreURL implements the frontier priority rules: higher scores are
// dequeued sooner, evaluated here against a fixed rule table rather than
// a caller-supplied integer.
func ScoreURL(rawURL string, productLines []string) int {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0
	}
	path := strings.ToLower(u.Path)

	score := 0
	switch {
	case strings.Contains(path, "/product/"), strings.Contains(path, "/product_category/"):
		score += 10
	case matchesProductLine(path, productLines):
		score += 10
	case strings.Contains(path, "/catalog"), strings.Contains(path, "/spec"),
		strings.Contains(path, "/datasheet"), strings.Contains(path, "/submittal"):
		score += 5
	}

	if strings.Contains(path, "/blog") || strings.Contains(path, "/news") ||
		strings.Contains(path, "/careers") || strings.Contains(path, "/login") {
		score -= 5
	}

	return score
}

func matchesProductLine(path string, productLines []string) bool {
	for _, line := range productLines {
		if line == "" {
			continue
		}
		if strings.Contains(path, strings.ToLower(line)) {
			return true
		}
	}
	return false
}
