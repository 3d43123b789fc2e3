package handler

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/moviestore/internal/cache"
	"github.com/iliyamo/moviestore/internal/errs"
	"github.com/iliyamo/moviestore/internal/model"
	"github.com/iliyamo/moviestore/internal/repository"
)

func TestDecodeValuesUsesColumnKinds(t *testing.T) {
	v, err := decodeValues(model.Movies, strings.NewReader(`{"releaseDate": 19000, "rating": 8, "title": "Heat", "runtime": 1.5, "overview": null}`))
	require.NoError(t, err)
	assert.Equal(t, int64(19000), v["releaseDate"])
	assert.Equal(t, 8.0, v["rating"])
	assert.Equal(t, "Heat", v["title"])
	assert.Equal(t, 1.5, v["runtime"], "left for validation to reject")
	assert.Contains(t, v, "overview")
	assert.Nil(t, v["overview"])

	_, err = decodeValues(model.Movies, strings.NewReader(`[1,2]`))
	assert.Error(t, err)
}

func TestWriteErrorStatuses(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{errs.Invalid("movies", "rating", "max", "10", ""), http.StatusBadRequest},
		{repository.ErrInvalidCredentials, http.StatusUnauthorized},
		{errs.ErrNotFound, http.StatusNotFound},
		{&errs.ConstraintViolation{Backend: errs.BackendRelational, Op: "insert", Constraint: "unique", Err: errors.New("dup")}, http.StatusConflict},
		{cache.ErrFlushDenied, http.StatusForbidden},
		{errs.Unavailable(errs.BackendCache, "get", errors.New("dial")), http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	e := echo.New()
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
		require.NoError(t, writeError(c, tc.err))
		assert.Equal(t, tc.code, rec.Code, tc.err.Error())
	}
}

func TestUnclassifiedErrorsAreLoggedOnRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)
	e := echo.New()
	call := func(err error) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(log.WithContext(req.Context()))
		rec := httptest.NewRecorder()
		require.NoError(t, writeError(e.NewContext(req, rec), err))
		return rec.Code
	}

	assert.Equal(t, http.StatusNotFound, call(errs.ErrNotFound))
	assert.Empty(t, buf.String(), "mapped errors are not logged")

	assert.Equal(t, http.StatusInternalServerError, call(errors.New("disk on fire")))
	assert.Contains(t, buf.String(), `"level":"error"`)
	assert.Contains(t, buf.String(), `"error":"disk on fire"`)
}

func TestValidationBodyNamesFields(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	require.NoError(t, writeError(c, errs.Invalid("movies", "rating", "max", "10", "")))
	assert.Contains(t, rec.Body.String(), `"field":"rating"`)
	assert.Contains(t, rec.Body.String(), `"param":"10"`)
}

func TestReady(t *testing.T) {
	e := echo.New()
	h := &HealthHandler{Checks: map[string]Check{
		"relational": func(context.Context) error { return nil },
		"cache":      func(context.Context) error { return errors.New("down") },
	}}
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/readyz", nil), rec)
	require.NoError(t, h.Ready(c))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"relational":"ok","cache":"down"}`, rec.Body.String())
}
