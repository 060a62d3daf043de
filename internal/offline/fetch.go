package offline

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"
)

// Fetcher loads an asset from its origin
type Fetcher interface {
	Fetch(ctx context.Context, assetPath string) (*Entry, error)
}

// HTTPFetcher fetches assets from a remote origin
type HTTPFetcher struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPFetcher creates a fetcher for baseURL with a bounded client
func NewHTTPFetcher(baseURL string) *HTTPFetcher {
	return &HTTPFetcher{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Fetch GETs assetPath from the origin. Non-2xx responses are errors.
func (f *HTTPFetcher) Fetch(ctx context.Context, assetPath string) (*Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.BaseURL+assetPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", assetPath, err)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", assetPath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("failed to fetch %s: status %d", assetPath, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", assetPath, err)
	}

	header := make(http.Header)
	for _, h := range []string{"Content-Type", "Cache-Control", "Last-Modified", "ETag"} {
		if v := resp.Header.Get(h); v != "" {
			header.Set(h, v)
		}
	}

	return &Entry{Status: resp.StatusCode, Header: header, Body: body}, nil
}

// FSFetcher serves assets out of a file system, normally the embedded web shell
type FSFetcher struct {
	FS fs.FS
}

// Fetch reads assetPath from the file system; "/" maps to index.html
func (f *FSFetcher) Fetch(ctx context.Context, assetPath string) (*Entry, error) {
	name := strings.TrimPrefix(path.Clean("/"+assetPath), "/")
	if name == "" {
		name = "index.html"
	}

	body, err := fs.ReadFile(f.FS, name)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}

	contentType := mime.TypeByExtension(path.Ext(name))
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}

	header := make(http.Header)
	header.Set("Content-Type", contentType)
	return &Entry{Status: http.StatusOK, Header: header, Body: body}, nil
}
