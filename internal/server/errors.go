package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/nao1215/csstrim/internal/model"
)

// ErrUnauthorized is returned when basic auth credentials are missing or
// do not match the configured ones.
var ErrUnauthorized = errors.New("authentication failed")

// errMissingTarget is returned when the request carries no target.
var errMissingTarget = errors.New("missing target")

// statusFor maps a run error to the single response status and message.
// The run deadline is checked first because it can wrap any stage.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Run timed out."
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, "Authentication failed."
	case errors.Is(err, errMissingTarget), errors.Is(err, model.ErrInvalidTarget):
		return http.StatusUnprocessableEntity, "Must provide a target URL."
	case errors.Is(err, model.ErrPageUnreachable):
		return http.StatusBadGateway, "Target page unreachable."
	case errors.Is(err, model.ErrDocumentParse):
		return http.StatusInternalServerError, "Failed to build document."
	case errors.Is(err, model.ErrNoStylesheets):
		return http.StatusInternalServerError, "No <link>s found."
	case errors.Is(err, model.ErrPurgeFailed):
		return http.StatusInternalServerError, "Failed to purge."
	default:
		return http.StatusInternalServerError, "Internal server error."
	}
}
