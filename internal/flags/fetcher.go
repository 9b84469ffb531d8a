// Package flags provides flag images keyed by country code.
//
// Images are downloaded from a flag CDN on first use and kept in one or more
// caches (a directory on disk and optionally redis). Cached images are never
// invalidated: a flag for a given code does not change.
package flags

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultURLTemplate is the flag CDN URL; {code} is replaced with the lower
// case alpha-2 code.
const DefaultURLTemplate = "https://flagcdn.com/w40/{code}.png"

// maxFlagBytes bounds a single downloaded image.
const maxFlagBytes = 1 << 20

// ErrFetch wraps every failed download.
var ErrFetch = errors.New("flag fetch failed")

// Fetcher downloads a flag image.
type Fetcher interface {
	Fetch(ctx context.Context, code string) ([]byte, error)
}

// HTTPFetcher downloads flags over HTTP.
type HTTPFetcher struct {
	client      *http.Client
	urlTemplate string
}

// NewHTTPFetcher creates a fetcher for urlTemplate with the given request
// timeout. An empty template selects DefaultURLTemplate.
func NewHTTPFetcher(urlTemplate string, timeout time.Duration) *HTTPFetcher {
	if urlTemplate == "" {
		urlTemplate = DefaultURLTemplate
	}
	return &HTTPFetcher{
		client:      &http.Client{Timeout: timeout},
		urlTemplate: urlTemplate,
	}
}

// URL returns the download URL for code.
func (f *HTTPFetcher) URL(code string) string {
	return strings.ReplaceAll(f.urlTemplate, "{code}", strings.ToLower(code))
}

// Fetch implements Fetcher. Any transport error or non-2xx status is
// returned wrapped in ErrFetch.
func (f *HTTPFetcher) Fetch(ctx context.Context, code string) ([]byte, error) {
	url := f.URL(code)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFetch, code, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFetch, code, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxFlagBytes))
		return nil, fmt.Errorf("%w: %s: %s for url: %s", ErrFetch, code, resp.Status, url)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFlagBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: reading body: %w", ErrFetch, code, err)
	}
	if len(data) > maxFlagBytes {
		return nil, fmt.Errorf("%w: %s: image larger than %d bytes", ErrFetch, code, maxFlagBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s: empty body", ErrFetch, code)
	}
	return data, nil
}
