package handlers

import (
	"errors"
	"net/http"

	"github.com/pocketbase/pocketbase/apis"

	"lesson-booking/internal/status"
)

// toAPIError translates a service error into the matching HTTP error.
// Unrecognized errors become an opaque 500 so internals never leak.
func toAPIError(err error) error {
	switch {
	case errors.Is(err, status.ErrNotFound):
		return apis.NewNotFoundError(err.Error(), err)
	case errors.Is(err, status.ErrInvalid):
		return apis.NewBadRequestError(err.Error(), err)
	case errors.Is(err, status.ErrDuplicate):
		return apis.NewApiError(http.StatusConflict, err.Error(), err)
	case errors.Is(err, status.ErrUnavailable):
		return apis.NewApiError(http.StatusServiceUnavailable, "Service temporarily unavailable, please retry", err)
	default:
		return apis.NewApiError(http.StatusInternalServerError, "Something went wrong", err)
	}
}
