package spaserve

import (
	"log/slog"
	"net/http"

	"github.com/felixge/httpsnoop"
)

// accessLog logs every request at debug level once it's been served
func accessLog(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		log.Debug("spaserve: request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", m.Code,
			"bytes", m.Written,
			"duration", m.Duration,
		)
	})
}
