package route

import (
	"log/slog"
	"net/http"
	"time"

	"emailtoics/src-server/utils"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Cap the request body at MAX_BODY_BYTES and log every request.
func Middleware(as *utils.AppState, next func(http.ResponseWriter, *http.Request)) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, as.Config.GetMaxBodyBytes())

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		startTimer := time.Now()
		next(rec, r)

		level := slog.LevelDebug
		if rec.status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		slog.Log(r.Context(), level, "request",
			"where", "route.Middleware",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(startTimer),
		)
	}
}
