package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/moviestore/internal/cache"
	"github.com/iliyamo/moviestore/internal/errs"
	"github.com/iliyamo/moviestore/internal/model"
	"github.com/iliyamo/moviestore/internal/repository"
)

// requestTimeout bounds the backend work of one request.
const requestTimeout = 5 * time.Second

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// writeError maps the data-access error taxonomy onto HTTP statuses.
// Unclassified errors are logged on the request's zerolog logger.
func writeError(c echo.Context, err error) error {
	var ve *errs.ValidationErrors
	var cv *errs.ConstraintViolation
	switch {
	case errors.As(err, &ve):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "fields": ve.Fields})
	case errors.Is(err, repository.ErrInvalidCredentials):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	case errors.Is(err, errs.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.As(err, &cv):
		return c.JSON(http.StatusConflict, echo.Map{"error": "constraint violation", "constraint": cv.Constraint})
	case errors.Is(err, cache.ErrFlushDisabled), errors.Is(err, cache.ErrFlushDenied):
		return c.JSON(http.StatusForbidden, echo.Map{"error": err.Error()})
	case errors.Is(err, errs.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "backend unavailable"})
	case errors.Is(err, context.Canceled):
		// client went away; nobody reads this
		return c.NoContent(499)
	}
	zerolog.Ctx(c.Request().Context()).Error().Err(err).Msg("request failed")
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

// pathID parses a positive integer path parameter.
func pathID(c echo.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

// queryInt parses an optional integer query parameter; def is returned
// when it is absent.
func queryInt(c echo.Context, name string, def int64) (int64, error) {
	s := c.QueryParam(name)
	if s == "" {
		return def, nil
	}
	return strconv.ParseInt(s, 10, 64)
}

// decodeValues reads a JSON object into field values for e.  Numbers are
// converted to the kind of their column so an integer column receives an
// int64 and a real column a float64.  Other numbers stay float64 so
// validation reports the kind mismatch.
func decodeValues(e *model.Entity, r io.Reader) (model.Values, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	out := make(model.Values, len(raw))
	for field, v := range raw {
		n, ok := v.(json.Number)
		if !ok {
			out[field] = v
			continue
		}
		col, known := e.Column(field)
		switch {
		case known && col.Kind == model.KindInteger:
			if i, err := n.Int64(); err == nil {
				out[field] = i
				continue
			}
		case known && col.Kind == model.KindReal:
			if f, err := n.Float64(); err == nil {
				out[field] = f
				continue
			}
		}
		f, err := n.Float64()
		if err != nil {
			return nil, err
		}
		out[field] = f
	}
	return out, nil
}
