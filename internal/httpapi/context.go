// Package httpapi is the tracker's HTTP adapter: a small router in the
// shape of the teacher's fox package (Context/HandlerFunc/MiddlewareFunc,
// one exclusive route table, chained middleware), sized for the five
// fixed endpoints of the volume-topology API rather than fox's general
// wildcard routing.
package httpapi

import (
	"encoding/json"
	"net/http"
)

// HandlerFunc responds to a matched request.
type HandlerFunc func(c *Context)

// MiddlewareFunc wraps a HandlerFunc to run logic before and/or after it.
type MiddlewareFunc func(next HandlerFunc) HandlerFunc

// Context carries one request/response pair plus the path parameters
// matched for it. Its lifetime is limited to the handler invocation.
type Context struct {
	w      *statusWriter
	r      *http.Request
	params map[string]string
}

// Request returns the underlying *http.Request.
func (c *Context) Request() *http.Request { return c.r }

// Writer returns the response writer, wrapped to record the status code
// and byte count written for the access log.
func (c *Context) Writer() http.ResponseWriter { return c.w }

// Param returns the named path parameter, or "" if it wasn't matched.
func (c *Context) Param(name string) string { return c.params[name] }

// Method returns the request method.
func (c *Context) Method() string { return c.r.Method }

// Path returns the request path.
func (c *Context) Path() string { return c.r.URL.Path }

// JSON encodes v as the response body with the given status code.
func (c *Context) JSON(code int, v any) {
	c.w.Header().Set("Content-Type", "application/json; charset=utf-8")
	c.w.WriteHeader(code)
	_ = json.NewEncoder(c.w).Encode(v)
}

// NoContent writes an empty body with the given status code.
func (c *Context) NoContent(code int) {
	c.w.WriteHeader(code)
}

// DecodeJSON reads and decodes the request body into v.
func (c *Context) DecodeJSON(v any) error {
	defer c.r.Body.Close()
	return json.NewDecoder(c.r.Body).Decode(v)
}

// statusWriter wraps http.ResponseWriter to capture the status code and
// response size for the Logger middleware, mirroring the teacher's
// response_writer.go recorder in miniature.
type statusWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status != 0 {
		return
	}
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.size += n
	return n, err
}

func (w *statusWriter) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}
