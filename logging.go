package caddymiabrelay

import (
	"net/http"

	"github.com/caddyserver/caddy/v2/modules/caddyhttp"
	"go.uber.org/zap"
)

const (
	// Log key for reporting why a user failed authorization.
	logAuthorizationFailure = "deny_reason"
)

// Adds the given field to the access logs for the given request. Does nothing
// when the request is not being served by a Caddy HTTP server.
func addLogField(req *http.Request, field zap.Field) {
	extra, ok := req.Context().Value(caddyhttp.ExtraLogFieldsCtxKey).(*caddyhttp.ExtraLogFields)
	if !ok {
		return
	}
	extra.Add(field)
}

// Remembers the status code written through it.
type statusWriter struct {
	*caddyhttp.ResponseWriterWrapper
	status int
}

func newStatusWriter(w http.ResponseWriter) *statusWriter {
	return &statusWriter{
		ResponseWriterWrapper: &caddyhttp.ResponseWriterWrapper{ResponseWriter: w},
	}
}

func (w *statusWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
	w.ResponseWriterWrapper.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriterWrapper.Write(b)
}

// Writes the one log line every relay request gets, whatever its outcome.
func (h *Handler) logRequest(ex *exchange, status int) {
	h.logger.Info(
		"handled request",
		zap.String("method", ex.req.Method),
		zap.Int("status", status),
		zap.String("path", ex.req.URL.Path),
		zap.Any("body", ex.body),
	)
}
