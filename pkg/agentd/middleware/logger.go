package middleware

import (
	"net/http"
	"time"

	chi_middleware "github.com/go-chi/chi/middleware"
	log "github.com/sirupsen/logrus"
)

// RequestLogger logs every request with its outcome. Server errors are logged as warnings.
func RequestLogger() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chi_middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			entry := log.WithFields(RequestLogFields(r)).WithFields(log.Fields{
				"method":  r.Method,
				"path":    r.URL.Path,
				"status":  ww.Status(),
				"bytes":   ww.BytesWritten(),
				"elapsed": time.Since(start).String(),
			})

			if ww.Status() >= http.StatusInternalServerError {
				entry.Warnf("%s %s returned %d", r.Method, r.URL.Path, ww.Status())
				return
			}
			entry.Debugf("%s %s returned %d", r.Method, r.URL.Path, ww.Status())
		}
		return http.HandlerFunc(fn)
	}
}

func RequestLogFields(r *http.Request) log.Fields {
	return log.Fields{
		"remote_addr": r.RemoteAddr,
		"request_id":  chi_middleware.GetReqID(r.Context()),
	}
}
