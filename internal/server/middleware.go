package server

import (
	"log/slog"
	"net"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode  int
	bytes       int
	wroteHeader bool
}

func (w *loggingResponseWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.statusCode = status
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *loggingResponseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// instrument logs each request, records its metrics and turns handler panics
// into 500 responses.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		start := time.Now()
		path := r.URL.Path

		defer func() {
			rerr := recover()
			if rerr != nil {
				if rerr == http.ErrAbortHandler {
					panic(rerr)
				}
				const size = 64 << 10
				buf := make([]byte, size)
				buf = buf[:runtime.Stack(buf, false)]
				s.logger.ErrorContext(r.Context(), "http: panic",
					slog.Any("panic", rerr),
					slog.String("stack", string(buf)),
				)
				if !lw.wroteHeader {
					writeError(lw, http.StatusInternalServerError, "Internal Server Error")
				}
				lw.statusCode = http.StatusInternalServerError
			}

			elapsed := time.Since(start)
			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			s.metrics.Requests.WithLabelValues(route, r.Method, strconv.Itoa(lw.statusCode)).Inc()
			s.metrics.RequestDuration.WithLabelValues(route, r.Method).Observe(elapsed.Seconds())

			s.logger.InfoContext(r.Context(), "http request",
				slog.String("method", r.Method),
				slog.String("path", path),
				slog.Int("status", lw.statusCode),
				slog.Int("bytes", lw.bytes),
				slog.Duration("duration", elapsed),
				slog.String("remote", remoteAddr(r)),
				slog.String("user_agent", r.UserAgent()),
			)
		}()

		next.ServeHTTP(lw, r)
	})
}

func remoteAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
