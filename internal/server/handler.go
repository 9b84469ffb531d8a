// Package server exposes the timeline over HTTP: the country catalog, flag
// images and chart rendering as JSON, SVG or PNG.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"countrytimeline/internal/catalog"
	"countrytimeline/internal/render"
	"countrytimeline/internal/timeline"
	"countrytimeline/internal/visit"
)

// maxRequestBody bounds POST /api/timeline bodies.
const maxRequestBody = 1 << 20

// Response headers carried by image renders.
const (
	HeaderRenderID = "X-Render-ID"
	HeaderSummary  = "X-Timeline-Summary"
	HeaderWarnings = "X-Timeline-Warnings"
)

// Renderer lays out a chart, fetching whatever flags it needs.
type Renderer interface {
	Render(ctx context.Context, records []timeline.VisitRecord, currentAge float64) (*timeline.Layout, error)
}

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Handler serves the public API.
type Handler struct {
	catalog  catalog.Catalog
	renderer Renderer
	flags    timeline.FlagProvider
	style    render.Style
	health   HealthChecker
	logger   *slog.Logger
	now      func() time.Time
}

// Option customises a Handler.
type Option func(*Handler)

// WithHealthCheck makes /healthz report the state of dep.
func WithHealthCheck(dep HealthChecker) Option {
	return func(h *Handler) { h.health = dep }
}

// WithClock replaces time.Now, which decides the current age.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

// New constructs a handler with its dependencies.
func New(cat catalog.Catalog, renderer Renderer, flags timeline.FlagProvider, style render.Style, logger *slog.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		catalog:  cat,
		renderer: renderer,
		flags:    flags,
		style:    style,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the API endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Get("/api/countries", h.handleCountries)
	r.Get("/api/flags/{code}", h.handleFlag)
	r.Post("/api/timeline", h.handleTimeline)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health.Health(r.Context()); err != nil {
			h.logger.WarnContext(r.Context(), "health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type countryResponse struct {
	Name      string `json:"name"`
	Code      string `json:"alpha_2"`
	Continent string `json:"continent"`
	Label     string `json:"label"`
}

func toCountryResponses(countries []catalog.Country) []countryResponse {
	out := make([]countryResponse, len(countries))
	for i, c := range countries {
		out[i] = countryResponse{
			Name:      c.Name,
			Code:      c.Code,
			Continent: c.Continent,
			Label:     catalog.Label(c),
		}
	}
	return out
}

// handleCountries handles GET /api/countries. With ?group=continent the
// countries are grouped by continent.
func (h *Handler) handleCountries(w http.ResponseWriter, r *http.Request) {
	switch group := r.URL.Query().Get("group"); group {
	case "":
		writeJSON(w, http.StatusOK, map[string]any{
			"countries": toCountryResponses(h.catalog.All()),
		})
	case "continent":
		grouped := catalog.ByContinent(h.catalog)
		out := make(map[string][]countryResponse, len(grouped))
		for continent, countries := range grouped {
			out[continent] = toCountryResponses(countries)
		}
		writeJSON(w, http.StatusOK, map[string]any{"continents": out})
	default:
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("unknown grouping %q", group), nil)
	}
}

// handleFlag handles GET /api/flags/{code}.
func (h *Handler) handleFlag(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	country, ok := h.catalog.Lookup(chi.URLParam(r, "code"))
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "unknown country code", nil)
		return
	}
	if h.flags == nil {
		writeError(w, http.StatusBadGateway, "flag_unavailable", "flag downloads are disabled", nil)
		return
	}

	img, err := h.flags.Flag(ctx, country.Code)
	if err != nil {
		h.logger.WarnContext(ctx, "flag lookup failed",
			"request_id", middleware.GetReqID(ctx),
			"country_code", country.Code,
			"error", err,
		)
		writeError(w, http.StatusBadGateway, "flag_unavailable", fmt.Sprintf("Could not download flag for %s", country.Code), nil)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img)
}

type timelineResponse struct {
	RenderID string           `json:"render_id"`
	Summary  string           `json:"summary"`
	Percent  float64          `json:"percent"`
	Warnings []string         `json:"warnings"`
	Layout   *timeline.Layout `json:"layout"`
}

// handleTimeline handles POST /api/timeline?format=json|svg|png.
func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetReqID(ctx)
	start := time.Now()

	format := strings.ToLower(r.URL.Query().Get("format"))
	var imageFormat render.Format
	if format == "" {
		format = "json"
	}
	if format != "json" {
		f, err := render.ParseFormat(format)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", err.Error(), nil)
			return
		}
		imageFormat = f
	}

	var req visit.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("invalid request body: %v", err), nil)
		return
	}

	resolved, err := visit.Resolve(req, h.catalog, h.now())
	if err != nil {
		h.writeRenderError(ctx, w, err)
		return
	}

	layout, err := h.renderer.Render(ctx, resolved.Records, resolved.CurrentAge)
	if err != nil {
		h.writeRenderError(ctx, w, err)
		return
	}

	renderID := uuid.NewString()
	warnings := make([]string, len(layout.Warnings))
	for i, warn := range layout.Warnings {
		warnings[i] = warn.Message
	}

	h.logger.InfoContext(ctx, "timeline rendered",
		"request_id", requestID,
		"render_id", renderID,
		"format", format,
		"countries", len(layout.Rows),
		"warnings", len(warnings),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if format == "json" {
		writeJSON(w, http.StatusOK, timelineResponse{
			RenderID: renderID,
			Summary:  layout.Summary,
			Percent:  layout.Percent,
			Warnings: warnings,
			Layout:   layout,
		})
		return
	}

	body, err := render.Encode(imageFormat, layout, h.style)
	if err != nil {
		h.logger.ErrorContext(ctx, "chart encoding failed",
			"request_id", requestID,
			"render_id", renderID,
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "internal_error", "", nil)
		return
	}

	w.Header().Set("Content-Type", imageFormat.ContentType())
	w.Header().Set(HeaderRenderID, renderID)
	w.Header().Set(HeaderSummary, layout.Summary)
	if len(warnings) > 0 {
		w.Header().Set(HeaderWarnings, headerSafe(strings.Join(warnings, "; ")))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// writeRenderError maps resolution and render failures to responses.
func (h *Handler) writeRenderError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, timeline.ErrNothingToRender):
		writeError(w, http.StatusUnprocessableEntity, "nothing_to_render", err.Error(), nil)
	case errors.Is(err, visit.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input", "the request has invalid fields", fieldErrors(err))
	default:
		h.logger.ErrorContext(ctx, "timeline render failed",
			"request_id", middleware.GetReqID(ctx),
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "internal_error", "", nil)
	}
}

// fieldErrors flattens a joined validation error into one message per field
// error.
func fieldErrors(err error) []string {
	var out []string
	var walk func(error)
	walk = func(e error) {
		var fe *visit.FieldError
		if joined, ok := e.(interface{ Unwrap() []error }); ok {
			for _, inner := range joined.Unwrap() {
				walk(inner)
			}
			return
		}
		if errors.As(e, &fe) {
			out = append(out, fe.Error())
		}
	}
	walk(err)
	return out
}

// headerSafe strips line breaks, which are not allowed in header values.
func headerSafe(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}
