package httpapi

import (
	"errors"
	"net/http"

	"github.com/vmthunder/volt/internal/topology"
)

// problem is the JSON body written for any non-2xx response.
type problem struct {
	Error string `json:"error"`
}

// writeError maps a topology error to an HTTP status code and writes it
// as the response body. Unrecognized errors fall back to 500 rather than
// leaking an internal error shape to the caller.
func writeError(c *Context, err error) {
	c.JSON(statusFor(err), problem{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, topology.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, topology.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, topology.ErrInvalidParameter):
		return http.StatusBadRequest
	case errors.Is(err, topology.ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
