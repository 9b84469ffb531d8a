package flags

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"countrytimeline/internal/platform/metrics"
)

// CachedProvider answers flag lookups from its caches and falls back to the
// fetcher on a miss. Concurrent lookups of the same code share one download.
type CachedProvider struct {
	fetcher Fetcher
	caches  []Cache
	group   singleflight.Group
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewCachedProvider creates a provider. Caches are consulted in order; a hit
// in a later cache is copied into the earlier ones.
func NewCachedProvider(fetcher Fetcher, caches []Cache, logger *slog.Logger, m *metrics.Metrics) *CachedProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedProvider{
		fetcher: fetcher,
		caches:  caches,
		logger:  logger,
		metrics: m,
	}
}

// Flag returns the PNG bytes of the flag for code.
//
// The shared load runs detached from any one caller's cancellation, bounded
// by the fetcher's own timeout. A caller whose ctx ends stops waiting without
// failing the others.
func (p *CachedProvider) Flag(ctx context.Context, code string) ([]byte, error) {
	code, err := ValidateCode(code)
	if err != nil {
		return nil, err
	}
	shared := context.WithoutCancel(ctx)
	ch := p.group.DoChan(code, func() (any, error) {
		return p.load(shared, code)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("flag %s: %w", code, ctx.Err())
	}
}

func (p *CachedProvider) load(ctx context.Context, code string) ([]byte, error) {
	for i, c := range p.caches {
		data, ok, err := c.Get(ctx, code)
		if err != nil {
			p.logger.WarnContext(ctx, "flag cache read failed",
				"cache", c.Name(),
				"country_code", code,
				"error", err,
			)
			continue
		}
		if !ok {
			continue
		}
		p.metrics.IncrementFlagCacheLookup(c.Name())
		p.store(ctx, p.caches[:i], code, data)
		return data, nil
	}
	p.metrics.IncrementFlagCacheLookup("miss")

	if p.fetcher == nil {
		return nil, fmt.Errorf("%w: %s: not cached and downloads are disabled", ErrFetch, code)
	}

	p.logger.DebugContext(ctx, "downloading flag", "country_code", code)
	data, err := p.fetcher.Fetch(ctx, code)
	if err != nil {
		p.metrics.IncrementFlagFetch("error")
		return nil, err
	}
	p.metrics.IncrementFlagFetch("ok")

	p.store(ctx, p.caches, code, data)
	return data, nil
}

// store writes data to caches. Failures are logged; the image is still
// returned to the caller.
func (p *CachedProvider) store(ctx context.Context, caches []Cache, code string, data []byte) {
	for _, c := range caches {
		if err := c.Put(ctx, code, data); err != nil {
			p.logger.WarnContext(ctx, "flag cache write failed",
				"cache", c.Name(),
				"country_code", code,
				"error", err,
			)
		}
	}
}

// ValidateCode normalises code to upper case and checks it is two ASCII
// letters. Codes end up in file names and cache keys.
func ValidateCode(code string) (string, error) {
	if len(code) != 2 {
		return "", fmt.Errorf("invalid country code %q", code)
	}
	out := make([]byte, 2)
	for i := 0; i < 2; i++ {
		ch := code[i]
		switch {
		case ch >= 'A' && ch <= 'Z':
			out[i] = ch
		case ch >= 'a' && ch <= 'z':
			out[i] = ch - 'a' + 'A'
		default:
			return "", fmt.Errorf("invalid country code %q", code)
		}
	}
	return string(out), nil
}
