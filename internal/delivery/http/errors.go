package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/egannguyen/instaprint/internal/entity"
	"github.com/egannguyen/instaprint/internal/shoporders"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, entity.ErrValidation), errors.Is(err, entity.ErrPriceUnavailable):
		return http.StatusBadRequest
	case errors.Is(err, entity.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, entity.ErrDuplicateConfig),
		errors.Is(err, entity.ErrInvalidTransition),
		errors.Is(err, entity.ErrVersionConflict),
		errors.Is(err, entity.ErrSelectionRequired):
		return http.StatusConflict
	case errors.Is(err, shoporders.ErrClosed):
		return http.StatusGone
	case errors.Is(err, entity.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeDomainError logs unexpected failures and writes the mapped status.
// Internal details of 5xx errors are not sent to the client.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "path", r.URL.Path, "err", err)
		writeError(w, status, http.StatusText(status))
		return
	}
	writeError(w, status, err.Error())
}
