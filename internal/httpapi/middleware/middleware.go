// Package middleware is the teacher's http.Handler-wrapping chain
// (github.com/.../minis/50-mini-service-all-features/internal/middleware),
// reused verbatim for its composition helper and response-writer wrapper
// and adapted for the relay's auth/rate-limit/metrics needs.
package middleware

import "net/http"

type Middleware func(http.Handler) http.Handler

// Chain applies middlewares in order: the first middleware in the list
// wraps all the others, so it sees the request first and the response
// last.
func Chain(handler http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return handler
}

// ResponseWriter wraps http.ResponseWriter to capture the status code
// and byte count written, for logging and metrics middleware.
type ResponseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func NewResponseWriter(w http.ResponseWriter) *ResponseWriter {
	return &ResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *ResponseWriter) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *ResponseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

func (rw *ResponseWriter) StatusCode() int   { return rw.statusCode }
func (rw *ResponseWriter) BytesWritten() int { return rw.bytesWritten }
