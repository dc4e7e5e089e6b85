package middleware

import (
	"net/http"
	"time"

	"deepfakedetector/internal/logger"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// RequestLogger logs one line per request through the application logger:
// server errors at error level, client errors at warning level, the rest at
// info level.
func RequestLogger(l *logger.Logger) func(http.Handler) http.Handler {
	return chimw.RequestLogger(&logFormatter{logger: l})
}

type logFormatter struct {
	logger *logger.Logger
}

func (f *logFormatter) NewLogEntry(r *http.Request) chimw.LogEntry {
	return &logEntry{
		logger: f.logger,
		method: r.Method,
		path:   r.URL.Path,
		remote: r.RemoteAddr,
		reqID:  chimw.GetReqID(r.Context()),
	}
}

type logEntry struct {
	logger *logger.Logger
	method string
	path   string
	remote string
	reqID  string
}

func (e *logEntry) Write(status, bytes int, header http.Header, elapsed time.Duration, extra interface{}) {
	line := "%s %s from %s: %d, %dB in %v"
	args := []interface{}{e.method, e.path, e.remote, status, bytes, elapsed}
	if e.reqID != "" {
		line = "[%s] " + line
		args = append([]interface{}{e.reqID}, args...)
	}

	switch {
	case status >= http.StatusInternalServerError:
		e.logger.Error(line, args...)
	case status >= http.StatusBadRequest:
		e.logger.Warning(line, args...)
	default:
		e.logger.Info(line, args...)
	}
}

func (e *logEntry) Panic(v interface{}, stack []byte) {
	e.logger.Error("%s %s panic: %v\n%s", e.method, e.path, v, stack)
}
