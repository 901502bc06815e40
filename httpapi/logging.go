package httpapi

import (
	"net/http"
	"strings"
	"time"

	"pkt.systems/forgecode/schema"
	"pkt.systems/pslog"
)

// statusWriter records the status and size of a response.
type statusWriter struct {
	http.ResponseWriter
	status int
	size   int64
}

func (w *statusWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.size += int64(n)
	return n, err
}

// Flush keeps SSE and proxied execution streams unbuffered.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Browsers poll these; a line per poll at info level drowns everything else.
var quietRoutes = map[string]bool{
	"/api/console/transcript": true,
	"/api/files/content":      true,
}

func withRequestLogging(next http.Handler, workspaceOf func(*http.Request) schema.WorkspaceID) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)
		if sw.status == 0 {
			sw.status = http.StatusOK
		}

		log := pslog.Ctx(r.Context()).With("remote", clientIP(r), "method", r.Method, "path", r.URL.Path)
		if workspaceOf != nil {
			if id := workspaceOf(r); id != "" {
				log = log.With("workspace", id)
			}
		}
		elapsed := time.Since(start).Milliseconds()
		switch {
		case sw.status >= http.StatusInternalServerError:
			log.Warn("http request failed", "status", sw.status, "duration_ms", elapsed)
		case quietRoutes[r.URL.Path] && r.Method == http.MethodGet:
			log.Debug("http request", "status", sw.status, "bytes", sw.size, "duration_ms", elapsed)
		default:
			log.Info("http request", "status", sw.status, "bytes", sw.size, "duration_ms", elapsed)
		}
	})
}

// clientIP prefers the first X-Forwarded-For hop.
func clientIP(r *http.Request) string {
	if first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ","); strings.TrimSpace(first) != "" {
		return strings.TrimSpace(first)
	}
	return r.RemoteAddr
}
