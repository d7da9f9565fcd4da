package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/familyhub/core/internal/domain/entities"
)

// MessageResponse is a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// httpError maps domain errors onto HTTP status codes. The error
// message is passed through; services phrase their errors for users.
func httpError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, entities.ErrUserNotFound),
		errors.Is(err, entities.ErrFamilyNotFound),
		errors.Is(err, entities.ErrEntryNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, entities.ErrUsernameTaken):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, entities.ErrInvalidCredentials):
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, entities.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, entities.ErrUpstreamUnavailable),
		errors.Is(err, entities.ErrCodeSpaceExhausted):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
	}
}
