package crawler

import "testing"

func TestScoreURL_ProductPageOutranksGeneric(t *testing.T) {
	product := ScoreURL("https://example.com/product/widget-100", nil)
	generic := ScoreURL("https://example.com/about", nil)
	if product <= generic {
		t.Errorf("expected product page score (%d) to exceed generic page score (%d)", product, generic)
	}
}

func TestScoreURL_ProductLineMatch(t *testing.T) {
	score := ScoreURL("https://example.com/catalog/acme-valves/v100", []string{"acme-valves"})
	if score <= 0 {
		t.Errorf("expected positive score for product-line match, got %d", score)
	}
}

func TestScoreURL_DemotesBlogAndCareers(t *testing.T) {
	blog := ScoreURL("https://example.com/blog/2024/announcement", nil)
	careers := ScoreURL("https://example.com/careers/open-roles", nil)
	if blog >= 0 {
		t.Errorf("expected blog path to be demoted below zero, got %d", blog)
	}
	if careers >= 0 {
		t.Errorf("expected careers path to be demoted below zero, got %d", careers)
	}
}

func TestScoreURL_InvalidURL(t *testing.T) {
	if score := ScoreURL("://not-a-url", nil); score != 0 {
		t.Errorf("expected 0 for unparseable URL, got %d", score)
	}
}
