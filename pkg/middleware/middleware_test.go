package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"hls-relay/pkg/config"
	"hls-relay/pkg/logging"
	"hls-relay/pkg/metrics"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuth(t *testing.T) {
	tests := []struct {
		name           string
		configPassword string
		path           string
		query          string
		header         string
		bearer         string
		want           int
	}{
		{name: "no password configured", path: "/manifest", want: http.StatusOK},
		{name: "correct query parameter", configPassword: "secret", path: "/manifest", query: "api_password=secret", want: http.StatusOK},
		{name: "wrong query parameter", configPassword: "secret", path: "/manifest", query: "api_password=nope", want: http.StatusUnauthorized},
		{name: "correct header", configPassword: "secret", path: "/proxy", header: "secret", want: http.StatusOK},
		{name: "correct bearer", configPassword: "secret", path: "/proxy", bearer: "secret", want: http.StatusOK},
		{name: "wrong bearer", configPassword: "secret", path: "/proxy", bearer: "nope", want: http.StatusUnauthorized},
		{name: "public health", configPassword: "secret", path: "/health", want: http.StatusOK},
		{name: "no credentials", configPassword: "secret", path: "/subtitles", want: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := Auth(&config.Config{APIPassword: tt.configPassword}, logging.Discard())(okHandler())

			target := "http://relay.test" + tt.path
			if tt.query != "" {
				target += "?" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tt.header != "" {
				req.Header.Set("X-API-Password", tt.header)
			}
			if tt.bearer != "" {
				req.Header.Set("Authorization", "Bearer "+tt.bearer)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get("X-Request-ID")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if len(seen) != 36 {
		t.Errorf("generated id %q is not a uuid", seen)
	}
	if rec.Header().Get("X-Request-ID") != seen {
		t.Error("response id differs from request id")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "given")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "given" {
		t.Errorf("id = %q, want the caller's", seen)
	}
}

func TestCORS(t *testing.T) {
	h := CORS(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/proxy", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/proxy", nil))
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing allow origin")
	}
	if rec.Header().Get("Access-Control-Expose-Headers") == "" {
		t.Error("missing expose headers")
	}
}

func TestRateLimit(t *testing.T) {
	h := RateLimit(1, 1)(okHandler())

	codes := make([]int, 0, 3)
	for range 3 {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/manifest", nil))
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v", codes)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("health must bypass the limiter, got %d", rec.Code)
	}

	off := RateLimit(0, 0)(okHandler())
	for range 5 {
		rec := httptest.NewRecorder()
		off.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/manifest", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("disabled limiter returned %d", rec.Code)
		}
	}
}

func TestMetrics_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Metrics)
	r.Get("/manifest", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	before := testutil.ToFloat64(metrics.RequestsTotal.WithLabelValues("/manifest", "502"))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/manifest?url=x", nil))
	after := testutil.ToFloat64(metrics.RequestsTotal.WithLabelValues("/manifest", "502"))

	if after-before != 1 {
		t.Errorf("counter moved by %v, want 1", after-before)
	}
}

func TestRecovery(t *testing.T) {
	h := Recovery(logging.New("error", false, io.Discard))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", rec.Code)
	}
}
