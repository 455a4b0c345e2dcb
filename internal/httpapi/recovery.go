package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
)

// Recovery returns a middleware that recovers from any panic raised by a
// handler, logs it with a stack trace, and responds 500 rather than
// crashing the process — ported from the teacher's Recovery middleware.
// A malformed heartbeat or query from one compute host must never take
// the whole tracker down for every other host.
func Recovery(logger *slog.Logger) MiddlewareFunc {
	return func(next HandlerFunc) HandlerFunc {
		return func(c *Context) {
			defer func() {
				if rec := recover(); rec != nil {
					if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
						panic(rec)
					}
					logger.Error("panic recovered",
						"panic", rec,
						"method", c.Method(),
						"path", c.Path(),
						"stack", string(debug.Stack()),
					)
					c.NoContent(http.StatusInternalServerError)
				}
			}()
			next(c)
		}
	}
}
