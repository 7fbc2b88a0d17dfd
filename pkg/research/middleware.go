package research

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/dd0wney/agentgraph/pkg/logging"
)

// panicRecoveryMiddleware turns a handler panic into a 500
func (s *Server) panicRecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				if err == http.ErrAbortHandler {
					panic(err)
				}
				s.logger.Error("Panic in HTTP handler",
					logging.String("method", r.Method),
					logging.Path(r.URL.Path),
					logging.Any("panic", err),
					logging.String("stack", string(debug.Stack())))
				s.respondError(w, http.StatusInternalServerError, "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("HTTP request",
			logging.String("method", r.Method),
			logging.Path(r.URL.Path),
			logging.Latency(time.Since(start)))
	})
}

// originAllowed reports whether a browser origin may call the API. An empty
// list or "*" allows every origin.
func originAllowed(origins []string) func(string) bool {
	set := make(map[string]bool, len(origins))
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			return func(string) bool { return true }
		}
		if o != "" {
			set[o] = true
		}
	}
	if len(set) == 0 {
		return func(string) bool { return true }
	}
	return func(origin string) bool { return set[origin] }
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	allowed := originAllowed(s.cfg.CORSOrigins)
	wildcard := len(s.cfg.CORSOrigins) == 0
	for _, o := range s.cfg.CORSOrigins {
		if strings.TrimSpace(o) == "*" {
			wildcard = true
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case wildcard:
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && allowed(origin):
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// metricsMiddleware tracks HTTP request metrics
func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		s.metrics.HTTPRequestsInFlight.Inc()
		defer s.metrics.HTTPRequestsInFlight.Dec()

		wrapper := &metricsResponseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapper, r)

		path := routeLabel(r.URL.Path)
		statusStr := strconv.Itoa(wrapper.statusCode)
		s.metrics.RecordHTTPRequest(r.Method, path, statusStr, time.Since(start))
		s.metrics.HTTPResponseSizeBytes.WithLabelValues(r.Method, path).Observe(float64(wrapper.bytesWritten))
	})
}

// routeLabel keeps the path label's cardinality bounded
func routeLabel(path string) string {
	switch path {
	case "/research", "/upload", "/ws", "/health", "/ready", "/metrics":
		return path
	default:
		return "other"
	}
}

// metricsResponseWriter wraps http.ResponseWriter to capture status code and bytes written
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (w *metricsResponseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *metricsResponseWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.bytesWritten += n
	return n, err
}

// Hijack lets the WebSocket upgrade through the wrapper
func (w *metricsResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	w.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (w *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
