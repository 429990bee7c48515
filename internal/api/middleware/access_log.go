package middleware

import (
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strings"
	"time"
)

type accessRecord struct {
	Time      string `json:"ts"`
	Method    string `json:"method"`
	Path      string `json:"path"`
	Status    int    `json:"status"`
	Bytes     int    `json:"bytes"`
	Duration  int64  `json:"duration_ms"`
	RequestID string `json:"request_id,omitempty"`
	Client    string `json:"remote_addr,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// statusWriter captures the status code and byte count while passing
// Flush through, so SSE responses stream normally when wrapped.
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// AccessLog writes one JSON line per request.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}

		next.ServeHTTP(sw, r)

		if sw.status == 0 {
			sw.status = http.StatusOK
		}

		line, err := json.Marshal(accessRecord{
			Time:      start.UTC().Format(time.RFC3339Nano),
			Method:    r.Method,
			Path:      r.URL.Path,
			Status:    sw.status,
			Bytes:     sw.bytes,
			Duration:  time.Since(start).Milliseconds(),
			RequestID: GetRequestID(r.Context()),
			Client:    clientIP(r),
			UserAgent: r.UserAgent(),
		})
		if err != nil {
			log.Printf("failed to marshal access record: %v", err)
			return
		}
		log.Println(string(line))
	})
}

// clientIP prefers proxy headers over the socket address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.SplitN(fwd, ",", 2)[0])
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
