package crawler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
)

func newTestFetcher() *Fetcher {
	return NewFetcher("DocHarvest-Test/1.0", 5*time.Second, 5, 1024*1024, nil, arbor.NewLogger())
}

func TestFetcher_DirectSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body>hello</body></html>"))
	}))
	defer srv.Close()

	result, err := newTestFetcher().Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(result.Body) != "<html><body>hello</body></html>" {
		t.Errorf("unexpected body: %s", result.Body)
	}
}

func TestFetcher_AntiBotSignatureEscalatesWithoutPool(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>Checking your browser before accessing...</html>"))
	}))
	defer srv.Close()

	_, err := newTestFetcher().Fetch(context.Background(), srv.URL)
	var fe *FetchError
	if !errors.As(err, &fe) || fe.Kind != FetchErrorAntiBotBlock {
		t.Fatalf("expected AntiBotBlock error from missing browser pool escalation, got %v", err)
	}
}

func TestFetcher_ForbiddenEscalatesWithoutPool(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := newTestFetcher().Fetch(context.Background(), srv.URL)
	var fe *FetchError
	if !errors.As(err, &fe) || fe.Kind != FetchErrorAntiBotBlock {
		t.Fatalf("expected 403 to escalate to AntiBotBlock (no pool configured), got %v", err)
	}
}

func TestFetcher_NonEscalatingHTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestFetcher().Fetch(context.Background(), srv.URL)
	var fe *FetchError
	if !errors.As(err, &fe) || fe.Kind != FetchErrorHTTPStatus || fe.StatusCode != http.StatusNotFound {
		t.Fatalf("expected a plain HttpStatus error for 404, got %v", err)
	}
}

func TestFetcher_MaxBodySizeBound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 2048))
	}))
	defer srv.Close()

	f := NewFetcher("DocHarvest-Test/1.0", 5*time.Second, 5, 100, nil, arbor.NewLogger())
	result, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Body) != 100 {
		t.Errorf("expected body capped at 100 bytes, got %d", len(result.Body))
	}
}
