// Package apierr translates service errors into HTTP errors.
package apierr

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/carelink/internal/platform/store"
	"github.com/ehr/carelink/internal/platform/validate"
)

// From maps err onto an *echo.HTTPError. Unrecognised errors become a 500
// with a generic message; the original is kept as Internal for the logger.
func From(err error) error {
	if err == nil {
		return nil
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}

	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, store.ErrConflict):
		code = http.StatusConflict
	case errors.Is(err, store.ErrValidation):
		code = http.StatusUnprocessableEntity
	case errors.Is(err, validate.ErrMalformed):
		code = http.StatusBadRequest
	}

	if code == http.StatusInternalServerError {
		return echo.NewHTTPError(code, "internal server error").SetInternal(err)
	}
	return echo.NewHTTPError(code, err.Error())
}

// BadID is returned for path parameters that are not UUIDs.
func BadID(param string) error {
	return echo.NewHTTPError(http.StatusBadRequest, "invalid "+param)
}
