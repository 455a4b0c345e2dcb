package httpapi

import (
	"log/slog"
	"time"
)

// Keys used by the Logger middleware, mirroring the teacher's exported
// LoggerXxxKey constants.
const (
	LoggerStatusKey  = "status"
	LoggerMethodKey  = "method"
	LoggerPathKey    = "path"
	LoggerHostKey    = "remote_host"
	LoggerLatencyKey = "latency"
)

// Logger returns a middleware that logs one structured line per request:
// status, method, path, the resolved remote host and latency. Status
// codes are logged at different levels, exactly as the teacher's own
// Logger middleware does: 2xx at INFO, 3xx at DEBUG, 4xx at WARN, 5xx at
// ERROR.
func Logger(logger *slog.Logger, resolveHost func(c *Context) string) MiddlewareFunc {
	return func(next HandlerFunc) HandlerFunc {
		return func(c *Context) {
			start := time.Now()
			next(c)
			latency := time.Since(start)

			status := c.w.Status()
			host := ""
			if resolveHost != nil {
				host = resolveHost(c)
			}

			logger.LogAttrs(c.r.Context(), levelFor(status),
				c.r.URL.Path,
				slog.Int(LoggerStatusKey, status),
				slog.String(LoggerMethodKey, c.Method()),
				slog.String(LoggerPathKey, c.Path()),
				slog.String(LoggerHostKey, host),
				slog.Duration(LoggerLatencyKey, latency),
			)
		}
	}
}

func levelFor(status int) slog.Level {
	switch {
	case status >= 200 && status < 300:
		return slog.LevelInfo
	case status >= 300 && status < 400:
		return slog.LevelDebug
	case status >= 400 && status < 500:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
