// Package logger builds the logrus logger shared by every goldenkey component.
package logger

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/seenimoa/goldenkey/internal/config"
)

// Fields is an alias for logrus.Fields.
type Fields = logrus.Fields

// New creates a logger from the logging config. Output goes to stderr so
// JSON written to stdout by the CLI stays machine-readable; when File is set
// the same lines are also appended to that file.
func New(cfg config.LoggingConfig) (*logrus.Logger, error) {
	log := logrus.New()

	level := logrus.InfoLevel
	if cfg.Level != "" {
		parsed, err := logrus.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %s: %w", cfg.Level, err)
		}
		level = parsed
	}
	log.SetLevel(level)

	switch cfg.Format {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05.000",
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime: "timestamp",
				logrus.FieldKeyMsg:  "message",
			},
		})
	case "", "text":
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	default:
		return nil, fmt.Errorf("invalid log format %q (want text or json)", cfg.Format)
	}

	writers := []io.Writer{os.Stderr}
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", cfg.File, err)
		}
		writers = append(writers, f)
	}
	log.SetOutput(io.MultiWriter(writers...))

	return log, nil
}

// Discard returns a logger that drops everything. Used by tests and as the
// default when a component is built without one.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l logrus.FieldLogger) logrus.FieldLogger {
	if l == nil {
		return Discard()
	}
	return l
}

// WithComponent creates a logger with component field
func WithComponent(l logrus.FieldLogger, component string) logrus.FieldLogger {
	return OrDiscard(l).WithField("component", component)
}

// Middleware returns a request logging middleware for HTTP handlers.
func Middleware(l logrus.FieldLogger) func(next http.Handler) http.Handler {
	l = OrDiscard(l)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			l.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   wrapped.statusCode,
				"duration": time.Since(start).Milliseconds(),
			}).Info("HTTP request")
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
