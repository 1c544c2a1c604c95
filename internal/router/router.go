package router

import (
	"net/http"
	"time"

	"RefineAPI/internal/auth"
	"RefineAPI/internal/config"
	"RefineAPI/internal/handler"
	"RefineAPI/internal/logger"

	"github.com/google/uuid"
)

// New builds the route table. v may be nil when auth is disabled.
func New(cfg *config.Config, h *handler.Handler, v *auth.Validator) http.Handler {
	cors := newCORSPolicy(cfg.CORS)
	wrap := func(next http.HandlerFunc) http.HandlerFunc {
		if v != nil {
			next = auth.Middleware(v, next)
		}
		return withRequestID(withLogging(cors.wrap(next)))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/{resource}", wrap(h.Index))
	mux.HandleFunc("/api/{resource}/count", wrap(h.Count))
	mux.HandleFunc("/api/{resource}/refiners", wrap(h.Refiners))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

type requestIDKey struct{}

const requestIDHeader = "X-Request-ID"

// withRequestID keeps a caller-supplied id or mints a UUID, and echoes it.
func withRequestID(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		r.Header.Set(requestIDHeader, id)
		next(w, r)
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func withLogging(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next(sw, r)
		fields := map[string]any{
			"method":      r.Method,
			"path":        r.URL.Path,
			"query":       r.URL.RawQuery,
			"status":      sw.status,
			"duration_ms": time.Since(start).Milliseconds(),
			"request_id":  r.Header.Get(requestIDHeader),
		}
		switch {
		case sw.status >= 500:
			logger.Error("response", fields)
		case sw.status >= 400:
			logger.Warn("response", fields)
		default:
			logger.Info("response", fields)
		}
	}
}
