// logging.go - Request ids, access logs and panic recovery
package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"filedesk/internal/logger"
)

const requestIDHeader = "X-Request-Id"

// requestIDMiddleware ensures every request has a request id.
// If the client supplies X-Request-Id, we keep it; otherwise we generate one.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get(requestIDHeader)
		if rid == "" || len(rid) > 128 {
			rid = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, rid)
		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), rid)))
	})
}

// loggingMiddleware logs one line per request. The level follows the
// response status: 5xx at error, 4xx at warn, the rest at info.
func (cfg Config) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		fields := []zap.Field{
			zap.String("request_id", logger.RequestID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("query", r.URL.RawQuery),
			zap.Int("status", lrw.status),
			zap.Duration("latency", time.Since(start)),
			zap.Int("bytes", lrw.size),
			zap.String("ip", clientIP(r)),
			zap.String("user_agent", r.UserAgent()),
		}

		switch {
		case lrw.status >= 500:
			cfg.Logger.Error("HTTP Request", fields...)
		case lrw.status >= 400:
			cfg.Logger.Warn("HTTP Request", fields...)
		default:
			cfg.Logger.Info("HTTP Request", fields...)
		}
	})
}

// recoverMiddleware turns a handler panic into a 500 JSON response. When the
// handler had already started its response the panic is only logged.
func (cfg Config) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tw := &loggingResponseWriter{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			cfg.Logger.WithContext(r.Context()).Error("Panic recovered",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Bool("response_started", tw.wroteHeader),
				zap.Any("error", rec),
				zap.Stack("stacktrace"),
			)
			if tw.wroteHeader {
				return
			}
			writeJSON(w, http.StatusInternalServerError, errorResp{Error: "internal server error"})
		}()

		next.ServeHTTP(tw, r)
	})
}

type loggingResponseWriter struct {
	http.ResponseWriter
	status      int
	size        int
	wroteHeader bool
}

func (w *loggingResponseWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *loggingResponseWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	n, err := w.ResponseWriter.Write(b)
	w.size += n
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *loggingResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
