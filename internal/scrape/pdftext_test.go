package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestPDFText(t *testing.T, server *httptest.Server) *PDFText {
	t.Helper()
	t.Setenv(cacheEnvVar, t.TempDir())
	p, err := NewPDFText(server.Client())
	if err != nil {
		t.Fatalf("NewPDFText: %v", err)
	}
	p.urlFn = func(paperID string) string { return server.URL + "/pdf/" + paperID + ".pdf" }
	return p
}

func TestPDFFetchReusesFreshFile(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Etag", `"v1"`)
		_, _ = w.Write([]byte("%PDF-1.4\nHello"))
	}))
	t.Cleanup(server.Close)

	p := newTestPDFText(t, server)
	ctx := context.Background()

	path, err := p.fetch(ctx, "2101.00001")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("cached file missing: %v", err)
	}
	if hits != 1 {
		t.Fatalf("expected single download, got %d hits", hits)
	}

	if _, err := p.fetch(ctx, "2101.00001"); err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if hits != 1 {
		t.Fatalf("fresh cache should skip the network, got %d hits", hits)
	}
}

func TestPDFFetchRevalidatesStaleFile(t *testing.T) {
	var sawConditional bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			sawConditional = true
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("Etag", `"v1"`)
		_, _ = w.Write([]byte("%PDF-1.4\nHello"))
	}))
	t.Cleanup(server.Close)

	p := newTestPDFText(t, server)
	ctx := context.Background()

	path, err := p.fetch(ctx, "2201.00001")
	if err != nil {
		t.Fatalf("initial fetch: %v", err)
	}

	old := time.Now().Add(-(cacheTTL + time.Hour))
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	if _, err := p.fetch(ctx, "2201.00001"); err != nil {
		t.Fatalf("conditional fetch: %v", err)
	}
	if !sawConditional {
		t.Fatal("expected a conditional request for the stale file")
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "%PDF-1.4\nHello" {
		t.Fatalf("cached body changed unexpectedly: %q (%v)", data, err)
	}
}

func TestPDFFetchSurfacesDownloadFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	t.Cleanup(server.Close)

	p := newTestPDFText(t, server)
	if _, err := p.fetch(context.Background(), "2301.00001"); err == nil {
		t.Fatal("expected download failure")
	}
}

func TestSanitizeKeyNeverEscapesCacheDir(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"2101.00001", "weird/../id", "a:b", ""} {
		key := sanitizeKey(input)
		if key == "" {
			t.Fatalf("empty key for %q", input)
		}
		if filepath.Clean(key) != key || filepath.IsAbs(key) {
			t.Fatalf("unsafe key %q for input %q", key, input)
		}
	}
}
