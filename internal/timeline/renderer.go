package timeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"countrytimeline/internal/platform/metrics"
)

// FlagProvider supplies flag image bytes keyed by upper-case country code.
type FlagProvider interface {
	Flag(ctx context.Context, code string) ([]byte, error)
}

// Renderer collects flag images for a set of visits and lays out the chart.
type Renderer struct {
	flags   FlagProvider
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewRenderer creates a Renderer. flags may be nil, in which case every
// chart is laid out without flags.
func NewRenderer(flags FlagProvider, logger *slog.Logger, m *metrics.Metrics) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{
		flags:   flags,
		logger:  logger,
		metrics: m,
	}
}

// Render fetches one flag per distinct country code, one after the other, and
// builds the layout. A failed fetch only costs that row its flag.
func (r *Renderer) Render(ctx context.Context, records []VisitRecord, currentAge float64) (*Layout, error) {
	start := time.Now()
	defer func() { r.metrics.ObserveRenderDuration(time.Since(start)) }()

	if len(records) == 0 {
		r.metrics.IncrementRender("empty")
		return nil, ErrNothingToRender
	}

	images := make(map[string][]byte, len(records))
	fetchErrs := make(map[string]error)
	for _, rec := range records {
		code := rec.CountryCode
		if _, done := images[code]; done {
			continue
		}
		if _, failed := fetchErrs[code]; failed {
			continue
		}
		if r.flags == nil {
			fetchErrs[code] = errors.New("no flag provider configured")
			continue
		}

		img, err := r.flags.Flag(ctx, code)
		if err != nil {
			r.logger.WarnContext(ctx, "flag unavailable",
				"country_code", code,
				"error", err,
			)
			fetchErrs[code] = err
			continue
		}
		images[code] = img
	}

	if err := ctx.Err(); err != nil {
		r.metrics.IncrementRender("error")
		return nil, fmt.Errorf("render cancelled: %w", err)
	}

	layout, err := Build(records, currentAge, images)
	if err != nil {
		r.metrics.IncrementRender("error")
		return nil, err
	}

	for i, w := range layout.Warnings {
		if ferr, ok := fetchErrs[w.CountryCode]; ok {
			layout.Warnings[i].Message = fmt.Sprintf("Could not download flag for %s: %v", w.CountryCode, ferr)
		}
	}
	for _, w := range layout.Warnings {
		r.logger.DebugContext(ctx, "render warning", "country_code", w.CountryCode, "message", w.Message)
	}

	r.metrics.IncrementRender("ok")
	r.logger.DebugContext(ctx, "timeline laid out",
		"rows", len(layout.Rows),
		"current_age", currentAge,
		"percent", layout.Percent,
		"warnings", len(layout.Warnings),
	)
	return layout, nil
}
