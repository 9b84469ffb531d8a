package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"countrytimeline/internal/catalog"
	"countrytimeline/internal/flags"
	"countrytimeline/internal/platform/metrics"
	"countrytimeline/internal/render"
	"countrytimeline/internal/timeline"
)

var today = time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)

func flagPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 40, 20))))
	return buf.Bytes()
}

// stubFlags serves the flags it holds and fails for every other code.
type stubFlags map[string][]byte

func (s stubFlags) Flag(_ context.Context, code string) ([]byte, error) {
	if img, ok := s[code]; ok {
		return img, nil
	}
	return nil, flags.ErrFetch
}

type stubHealth struct{ err error }

func (s stubHealth) Health(context.Context) error { return s.err }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRouter(t *testing.T, opts ...Option) (http.Handler, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	provider := stubFlags{"JP": flagPNG(t), "ES": flagPNG(t)}
	renderer := timeline.NewRenderer(provider, quietLogger(), m)

	opts = append([]Option{WithClock(func() time.Time { return today })}, opts...)
	h := New(catalog.Static(), renderer, provider, render.DefaultStyle(), quietLogger(), opts...)
	return NewRouter(h, reg, quietLogger(), 5*time.Second), reg
}

func do(t *testing.T, router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// sampleRequest is born January 1990, Japan first visited at 25, Spain in
// January 2000 and the United Kingdom at birth.
const sampleRequest = `{
  "birth": {"year": 1990, "month": 1},
  "visits": [
    {"code": "JP", "age": 25},
    {"code": "es", "visit": {"year": 2000, "month": 1}},
    {"code": "GB", "age": 0}
  ]
}`

func TestHealth(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		router, _ := newTestRouter(t)
		rec := do(t, router, http.MethodGet, "/healthz", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	})

	t.Run("dependency down", func(t *testing.T) {
		router, _ := newTestRouter(t, WithHealthCheck(stubHealth{err: errors.New("connection refused")}))
		rec := do(t, router, http.MethodGet, "/healthz", "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), "connection refused")
	})
}

func TestCountries(t *testing.T) {
	router, _ := newTestRouter(t)

	t.Run("list", func(t *testing.T) {
		rec := do(t, router, http.MethodGet, "/api/countries", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Countries []countryResponse `json:"countries"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		require.Len(t, body.Countries, 6)
		assert.Equal(t, "United Kingdom (GB)", body.Countries[0].Label)
	})

	t.Run("grouped by continent", func(t *testing.T) {
		rec := do(t, router, http.MethodGet, "/api/countries?group=continent", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Continents map[string][]countryResponse `json:"continents"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		require.Len(t, body.Continents["Europe"], 2)
		assert.Equal(t, "Spain", body.Continents["Europe"][0].Name)
	})

	t.Run("unknown grouping", func(t *testing.T) {
		rec := do(t, router, http.MethodGet, "/api/countries?group=planet", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestFlag(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := do(t, router, http.MethodGet, "/api/flags/es", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, flagPNG(t), rec.Body.Bytes())

	rec = do(t, router, http.MethodGet, "/api/flags/zz", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// in the catalog but the provider fails
	rec = do(t, router, http.MethodGet, "/api/flags/US", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "Could not download flag for US")
}

func TestTimelineJSON(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := do(t, router, http.MethodPost, "/api/timeline", sampleRequest)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body timelineResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))

	assert.NotEmpty(t, body.RenderID)
	assert.Equal(t, "You have visited 3 countries. This is 12.0% of your age.", body.Summary)
	assert.Equal(t, 12.0, body.Percent)
	assert.Equal(t, []string{"Could not download flag for GB: " + flags.ErrFetch.Error()}, body.Warnings)

	require.Len(t, body.Layout.Rows, 3)
	assert.Equal(t, "Japan (25)", body.Layout.Rows[0].Label)
	assert.Equal(t, "Spain (10)", body.Layout.Rows[1].Label)
	assert.Equal(t, "United Kingdom (0)", body.Layout.Rows[2].Label)
	assert.Equal(t, 34.0, body.Layout.CurrentAge)
	assert.Equal(t, 9.0, body.Layout.Rows[0].BarLength)
}

func TestTimelineImages(t *testing.T) {
	router, _ := newTestRouter(t)

	t.Run("svg", func(t *testing.T) {
		rec := do(t, router, http.MethodPost, "/api/timeline?format=svg", sampleRequest)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "image/svg+xml", rec.Header().Get("Content-Type"))
		assert.NotEmpty(t, rec.Header().Get(HeaderRenderID))
		assert.Equal(t, "You have visited 3 countries. This is 12.0% of your age.", rec.Header().Get(HeaderSummary))
		assert.Contains(t, rec.Header().Get(HeaderWarnings), "Could not download flag for GB")
		assert.Contains(t, rec.Body.String(), "<svg")
	})

	t.Run("png", func(t *testing.T) {
		rec := do(t, router, http.MethodPost, "/api/timeline?format=PNG", sampleRequest)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
		assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))
	})

	t.Run("metrics count the renders", func(t *testing.T) {
		rec := do(t, router, http.MethodGet, "/metrics", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `countrytimeline_renders_total{outcome="ok"} 2`)
	})
}

func TestTimelineErrors(t *testing.T) {
	router, _ := newTestRouter(t)

	tests := []struct {
		name   string
		target string
		body   string
		status int
		code   string
	}{
		{
			name:   "empty selection",
			target: "/api/timeline",
			body:   `{"birth":{"year":1990,"month":1},"visits":[]}`,
			status: http.StatusUnprocessableEntity,
			code:   "nothing_to_render",
		},
		{
			name:   "unknown country",
			target: "/api/timeline",
			body:   `{"birth":{"year":1990,"month":1},"visits":[{"code":"ZZ","age":3}]}`,
			status: http.StatusBadRequest,
			code:   "invalid_input",
		},
		{
			name:   "malformed json",
			target: "/api/timeline",
			body:   `{"birth":`,
			status: http.StatusBadRequest,
			code:   "bad_request",
		},
		{
			name:   "unknown field",
			target: "/api/timeline",
			body:   `{"birth":{"year":1990,"month":1},"visits":[],"colour":"red"}`,
			status: http.StatusBadRequest,
			code:   "bad_request",
		},
		{
			name:   "unsupported format",
			target: "/api/timeline?format=gif",
			body:   sampleRequest,
			status: http.StatusBadRequest,
			code:   "bad_request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, http.MethodPost, tt.target, tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())

			var body errorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.code, body.Error)
		})
	}

	t.Run("empty selection carries the prompt", func(t *testing.T) {
		rec := do(t, router, http.MethodPost, "/api/timeline", `{"birth":{"year":1990,"month":1},"visits":[]}`)
		assert.Contains(t, rec.Body.String(), timeline.ErrNothingToRender.Error())
	})

	t.Run("every invalid field is listed", func(t *testing.T) {
		rec := do(t, router, http.MethodPost, "/api/timeline",
			`{"birth":{"year":1990,"month":1},"visits":[{"code":"ZZ","age":3},{"code":"JP"}]}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)

		var body errorResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Len(t, body.Details, 2)
	})
}

func TestRegisterOnPlainRouter(t *testing.T) {
	h := New(catalog.Static(), nil, nil, render.DefaultStyle(), quietLogger())
	r := chi.NewRouter()
	h.Register(r)

	rec := do(t, r, http.MethodGet, "/api/flags/ES", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code, "no provider configured")
}

func TestHeaderSafe(t *testing.T) {
	assert.Equal(t, "a b c", headerSafe("a\nb\rc"))
}
