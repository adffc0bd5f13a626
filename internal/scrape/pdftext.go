package scrape

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
)

const (
	cacheEnvVar        = "DAILYDIGEST_CACHE_DIR"
	cacheSubdir        = "dailydigest/pdfs"
	cacheTTL           = 24 * time.Hour
	metaSuffix         = ".meta"
	pdfDownloadTimeout = 90 * time.Second
)

var collapseWhitespace = regexp.MustCompile(`\s+`)

// PDFText extracts a paper's plain text from its arXiv PDF, keeping
// downloaded files in an on-disk cache with conditional refresh.
type PDFText struct {
	dir   string
	http  *http.Client
	urlFn func(paperID string) string
}

type cacheMeta struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag"`
	LastModified string    `json:"lastModified"`
	CachedAt     time.Time `json:"cachedAt"`
}

// NewPDFText builds the fallback extractor. The cache directory comes from
// DAILYDIGEST_CACHE_DIR, then the user cache dir, then a temp directory.
func NewPDFText(httpClient *http.Client) (*PDFText, error) {
	dir := os.Getenv(cacheEnvVar)
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			base = filepath.Join(os.TempDir(), "dailydigest-cache")
		}
		dir = filepath.Join(base, cacheSubdir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: pdfDownloadTimeout}
	}
	return &PDFText{
		dir:  dir,
		http: httpClient,
		urlFn: func(paperID string) string {
			return fmt.Sprintf("https://arxiv.org/pdf/%s.pdf", paperID)
		},
	}, nil
}

// Scrape downloads (or reuses) the paper's PDF and extracts its text.
func (p *PDFText) Scrape(ctx context.Context, paperID string) (string, error) {
	path, err := p.fetch(ctx, paperID)
	if err != nil {
		return "", &ScrapeError{PaperID: paperID, Err: err}
	}
	text, err := extractText(path)
	if err != nil {
		return "", &ScrapeError{PaperID: paperID, Err: err}
	}
	return text, nil
}

func (p *PDFText) fetch(ctx context.Context, paperID string) (string, error) {
	pdfPath := filepath.Join(p.dir, sanitizeKey(paperID)+".pdf")
	metaPath := pdfPath + metaSuffix

	info, statErr := os.Stat(pdfPath)
	if statErr == nil && info.Size() > 0 && time.Since(info.ModTime()) < cacheTTL {
		return pdfPath, nil
	}

	url := p.urlFn(paperID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	if statErr == nil && info.Size() > 0 {
		if meta, err := readMeta(metaPath); err == nil {
			if meta.ETag != "" {
				req.Header.Set("If-None-Match", meta.ETag)
			}
			if meta.LastModified != "" {
				req.Header.Set("If-Modified-Since", meta.LastModified)
			}
		}
	}

	resp, err := p.http.Do(req)
	if err != nil {
		// A stale cached copy beats no copy at all.
		if statErr == nil && info.Size() > 0 {
			return pdfPath, nil
		}
		return "", err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotModified:
		now := time.Now()
		_ = os.Chtimes(pdfPath, now, now)
		return pdfPath, nil
	case http.StatusOK:
		if err := writeBody(pdfPath, resp.Body); err != nil {
			return "", err
		}
		meta := cacheMeta{
			URL:          url,
			ETag:         resp.Header.Get("Etag"),
			LastModified: resp.Header.Get("Last-Modified"),
			CachedAt:     time.Now().UTC(),
		}
		if data, err := json.MarshalIndent(meta, "", "  "); err == nil {
			_ = os.WriteFile(metaPath, data, 0o644)
		}
		return pdfPath, nil
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("pdf download failed: %s (%s)", resp.Status, string(body))
	}
}

func writeBody(path string, body io.Reader) error {
	tmp := path + ".tmp"
	file, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(file, body); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func readMeta(path string) (cacheMeta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return cacheMeta{}, err
	}
	var meta cacheMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheMeta{}, err
	}
	return meta, nil
}

func sanitizeKey(paperID string) string {
	paperID = strings.TrimSpace(paperID)
	if paperID == "" {
		return "paper"
	}
	cleaned := strings.NewReplacer("/", "-", ":", "-", "..", "-").Replace(paperID)
	if cleaned == "" || cleaned != paperID {
		sum := sha1.Sum([]byte(paperID))
		return hex.EncodeToString(sum[:])
	}
	return cleaned
}

func extractText(path string) (string, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}
	defer file.Close()

	content, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract pdf text: %w", err)
	}

	var builder strings.Builder
	if _, err := io.Copy(&builder, content); err != nil {
		return "", err
	}
	return strings.TrimSpace(collapseWhitespace.ReplaceAllString(builder.String(), " ")), nil
}
