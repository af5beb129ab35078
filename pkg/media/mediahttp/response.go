package mediahttp

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dmitrymomot/mediakit/pkg/logger"
	"github.com/dmitrymomot/mediakit/pkg/media"
)

// Response is the JSON envelope of every non-empty reply.
type Response struct {
	Data  any          `json:"data,omitempty"`
	Error *ErrorDetail `json:"error,omitempty"`
}

// ErrorDetail describes a failed request.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RecordResponse is a record with its public URL and display title.
type RecordResponse struct {
	media.Record
	URL          string `json:"url"`
	DisplayTitle string `json:"display_title"`
}

// ErrInvalidRequest marks a malformed request body or form.
var ErrInvalidRequest = errors.New("invalid request")

func writeJSON(w http.ResponseWriter, status int, body Response) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// statusOf maps store error kinds to HTTP statuses and stable codes.
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, media.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, media.ErrInvalidOwner):
		return http.StatusUnprocessableEntity, "invalid_owner"
	case errors.Is(err, media.ErrInvalidUpload):
		return http.StatusUnprocessableEntity, "invalid_upload"
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusUnprocessableEntity, "invalid_request"
	case errors.Is(err, media.ErrStorageWrite), errors.Is(err, media.ErrStorageDelete):
		return http.StatusBadGateway, "storage_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	h.writePartialError(w, r, err, nil)
}

// writePartialError reports err together with whatever the request managed
// to persist before failing. Nil data leaves the data field out.
func (h *Handler) writePartialError(w http.ResponseWriter, r *http.Request, err error, data any) {
	status, code := statusOf(err)

	message := strings.ReplaceAll(err.Error(), "\n", ": ")
	if status >= http.StatusInternalServerError {
		h.log.ErrorContext(r.Context(), "media request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			logger.Error(err),
		)
		message = http.StatusText(status)
	}

	writeJSON(w, status, Response{Data: data, Error: &ErrorDetail{Code: code, Message: message}})
}
