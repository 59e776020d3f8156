// Package resume downloads a candidate's resume and extracts plain text from
// it. Extraction happens exactly once per interview, at start; every later
// generation call reads the cached text instead.
package resume

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"quinn/internal/errs"
)

type Extractor interface {
	Extract(ctx context.Context, url string) (string, error)
}

type HTTPExtractor struct {
	client *http.Client
}

func NewHTTPExtractor() *HTTPExtractor {
	return &HTTPExtractor{
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (e *HTTPExtractor) Extract(ctx context.Context, url string) (string, error) {
	if url == "" {
		return "", &errs.ErrUpstream{Service: "resume-storage", Err: fmt.Errorf("application has no resume URL")}
	}

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return "", &errs.ErrUpstream{Service: "resume-storage", Err: err}
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return "", &errs.ErrUpstream{Service: "resume-storage", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &errs.ErrUpstream{Service: "resume-storage", Err: fmt.Errorf("non-200 status: %d", resp.StatusCode)}
	}

	contentType := resp.Header.Get("Content-Type")
	switch {
	case strings.Contains(contentType, "text/html"):
		return extractHTML(resp.Body)
	case strings.Contains(contentType, "text/plain"), contentType == "":
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", &errs.ErrUpstream{Service: "resume-storage", Err: err}
		}
		return normalize(string(body)), nil
	default:
		return "", &errs.ErrUpstream{Service: "resume-storage", Err: fmt.Errorf("unsupported content type: %s", contentType)}
	}
}

func extractHTML(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", &errs.ErrUpstream{Service: "resume-storage", Err: fmt.Errorf("failed to parse resume HTML: %w", err)}
	}
	doc.Find("script, style, noscript").Remove()
	return normalize(doc.Text()), nil
}

func normalize(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}
