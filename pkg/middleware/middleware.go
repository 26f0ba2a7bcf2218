// Package middleware provides HTTP middleware for the relay server.
package middleware

import (
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"hls-relay/pkg/config"
	"hls-relay/pkg/logging"
	"hls-relay/pkg/metrics"
)

// Chain combines multiple middleware into a single handler. The first
// middleware is the outermost.
func Chain(handler http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return handler
}

// RequestID adds a unique request ID to each request.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		r.Header.Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

// Logging logs HTTP requests with timing information. Client errors log at
// Warn and server errors at Error; everything else at Debug, since players
// poll playlists and fetch segments continuously.
func Logging(log *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			requestID := r.Header.Get("X-Request-ID")
			reqLog := log.RequestLogger(r.Method, r.URL.Path, r.RemoteAddr, requestID)

			next.ServeHTTP(wrapped, r)

			done := reqLog.WithDuration(time.Since(start))
			args := []any{"status", wrapped.statusCode, "bytes", wrapped.bytesWritten}
			switch {
			case wrapped.statusCode >= 500:
				done.Error("request completed", args...)
			case wrapped.statusCode >= 400:
				done.Warn("request completed", args...)
			default:
				done.Debug("request completed", args...)
			}
		})
	}
}

// CORS adds CORS headers to responses. Browser players read Content-Range
// on partial segment responses, so it is exposed.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Range, Content-Type, X-API-Password, Authorization")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Range, Accept-Ranges, Content-Length, X-Request-ID")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Auth checks API password authentication. The password is accepted as
// the api_password query parameter, an X-API-Password header or a bearer
// token.
func Auth(cfg *config.Config, log *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.APIPassword == "" || isPublicEndpoint(r.URL.Path) || authorized(r, cfg.APIPassword) {
				next.ServeHTTP(w, r)
				return
			}

			log.Warn("unauthorized request",
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
		})
	}
}

func authorized(r *http.Request, password string) bool {
	if r.URL.Query().Get("api_password") == password {
		return true
	}
	if r.Header.Get("X-API-Password") == password {
		return true
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return ok && token == password
}

// Recovery recovers from panics and logs them.
func Recovery(log *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}
					log.Error("panic recovered",
						"error", err,
						"path", r.URL.Path,
						"method", r.Method,
						"stack", string(debug.Stack()),
					)
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit applies a global token bucket. rps <= 0 disables it. Health
// and metrics endpoints are never limited.
func RateLimit(rps float64, burst int) func(http.Handler) http.Handler {
	if rps <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if burst < 1 {
		burst = int(rps) + 1
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}
			if !limiter.Allow() {
				w.Header().Set("Retry-After", "1")
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Metrics records request counts and latency per chi route pattern. It
// must be installed with chi's Use so the pattern is known afterwards.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		route := "other"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		if route == "/metrics" {
			return
		}
		metrics.RequestsTotal.WithLabelValues(route, strconv.Itoa(wrapped.statusCode)).Inc()
		metrics.RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// responseWriter wraps http.ResponseWriter to capture status code and bytes written.
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// isPublicEndpoint returns true for endpoints that don't require auth.
func isPublicEndpoint(path string) bool {
	switch path {
	case "/", "/health", "/favicon.ico":
		return true
	}
	return false
}
