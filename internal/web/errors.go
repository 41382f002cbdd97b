package web

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/verte-zerg/typespeed/internal/model"
	"github.com/verte-zerg/typespeed/internal/texts"
)

type errorResponse struct {
	Error string `json:"error"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// NewHTTPErrorHandler maps domain errors to status codes and renders {"error": msg}.
// Unexpected errors are logged and reported without detail.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		code, msg := resolveError(err, log, c)
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, errorResponse{Error: msg})
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, string) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, fmt.Sprintf("%v", he.Message)
	}

	switch {
	case errors.Is(err, model.ErrDuplicateUsername):
		return http.StatusBadRequest, "Username already exists"
	case errors.Is(err, model.ErrInvalidUsername),
		errors.Is(err, model.ErrInvalidPassword),
		errors.Is(err, model.ErrInvalidDuration),
		errors.Is(err, model.ErrInvalidMode),
		errors.Is(err, model.ErrEmptyReference),
		errors.Is(err, texts.ErrUnknownLang):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, model.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid credentials"
	case errors.Is(err, model.ErrUnknownOwner), errors.Is(err, model.ErrUserNotFound):
		return http.StatusUnauthorized, "Login required"
	case errors.Is(err, model.ErrUnauthorized):
		return http.StatusForbidden, "Unauthorized"
	}

	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")
	return http.StatusInternalServerError, "internal server error"
}
