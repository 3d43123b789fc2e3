package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/moviestore/internal/access"
	"github.com/iliyamo/moviestore/internal/cache"
	"github.com/iliyamo/moviestore/internal/database"
	"github.com/iliyamo/moviestore/internal/document"
	"github.com/iliyamo/moviestore/internal/handler"
	"github.com/iliyamo/moviestore/internal/middleware"
	"github.com/iliyamo/moviestore/internal/repository"
	"github.com/iliyamo/moviestore/internal/utils"
)

const secret = "router-test-secret"

type api struct {
	e  *echo.Echo
	mr *miniredis.Miniredis
}

func newAPI(t *testing.T) api {
	t.Helper()
	ctx := context.Background()
	db, d, err := database.Open(ctx, database.Options{DSN: ":memory:"}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mr := miniredis.RunT(t)
	c, err := cache.Open(ctx, cache.Options{
		Addr: mr.Addr(), AllowFlush: true, Guard: utils.OperatorGuard{Secret: secret},
	}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	svc := access.New(access.Deps{
		Planner:    repository.NewPlanner(db, d, zerolog.Nop()),
		Documents:  document.NewStore(document.NewMemoryBackend(), zerolog.Nop()),
		Cache:      c,
		BcryptCost: bcrypt.MinCost,
		Log:        zerolog.Nop(),
	})
	h := Handlers{
		Health:   &handler.HealthHandler{Checks: map[string]handler.Check{"relational": db.PingContext, "cache": c.Ping}},
		Movies:   handler.NewMovieHandler(svc),
		Users:    handler.NewUserHandler(svc, secret, time.Hour),
		Comments: handler.NewCommentHandler(svc),
		Admin:    handler.NewAdminHandler(svc),
	}
	e := echo.New()
	e.Use(middleware.Logger(zerolog.Nop()))
	RegisterRoutes(e, h)
	RegisterProtected(e, h, secret)
	return api{e: e, mr: mr}
}

func (a api) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func operatorToken(t *testing.T) string {
	t.Helper()
	tok, err := utils.NewOperatorToken(secret, "ops", time.Minute)
	require.NoError(t, err)
	return tok.Token
}

func login(t *testing.T, a api, username, password string) string {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/v1/auth/login", "", `{"username":"`+username+`","password":"`+password+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Access struct {
			Token string `json:"token"`
		} `json:"access"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Access.Token
}

func TestHealth(t *testing.T) {
	a := newAPI(t)
	rec := a.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = a.do(t, http.MethodGet, "/readyz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"relational":"ok","cache":"ok"}`, rec.Body.String())
}

func TestMovieLifecycle(t *testing.T) {
	a := newAPI(t)
	op := operatorToken(t)

	rec := a.do(t, http.MethodPost, "/v1/movies", "", `{"title":"Heat"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(t, http.MethodPost, "/v1/movies", op, `{"title":"Heat","rating":40.5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"rating"`)

	rec = a.do(t, http.MethodPost, "/v1/movies", op, `{"title":"Heat","releaseDate":9466,"rating":8.3}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"movieId":1`)

	rec = a.do(t, http.MethodGet, "/v1/movies/1", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, a.mr.Exists("movies:1"))

	rec = a.do(t, http.MethodPatch, "/v1/movies/1", op, `{"runtime":170}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"runtime":170`)
	assert.False(t, a.mr.Exists("movies:1"))

	rec = a.do(t, http.MethodGet, "/v1/movies/1", "", "")
	assert.Contains(t, rec.Body.String(), `"runtime":170`)

	rec = a.do(t, http.MethodPatch, "/v1/movies/1", op, `{"movieId":2}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodGet, "/v1/movies/2", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(t, http.MethodGet, "/v1/movies?from=9000&to=10000&min_rating=8", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"title":"Heat"`)

	rec = a.do(t, http.MethodGet, "/v1/movies?offset=1", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestDirectorCatalogue(t *testing.T) {
	a := newAPI(t)
	op := operatorToken(t)

	rec := a.do(t, http.MethodPost, "/v1/movie-docs", op, `{"title":"Cats","director":"Hooper","rating":40.5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"param":"10"`)

	rec = a.do(t, http.MethodGet, "/v1/directors/Mann/movies", "", "")
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = a.do(t, http.MethodPost, "/v1/movie-docs", op, `{"title":"Heat","director":"Mann","rating":8.3}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodGet, "/v1/directors/Mann/movies", "", "")
	assert.Contains(t, rec.Body.String(), `"title":"Heat"`)
}

func TestUsersAndComments(t *testing.T) {
	a := newAPI(t)

	rec := a.do(t, http.MethodPost, "/v1/users", "", `{"username":"jw","password":"pw"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "password")

	rec = a.do(t, http.MethodPost, "/v1/users", "", `{"username":"jw","password":"other"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(t, http.MethodPost, "/v1/auth/login", "", `{"username":"jw","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	tok := login(t, a, "jw", "pw")
	rec = a.do(t, http.MethodPost, "/v1/comments", tok, `{"payload":"hello"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodGet, "/v1/comments", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var rows []struct {
		Comment struct {
			Payload string `json:"payload"`
		} `json:"comment"`
		Author *struct {
			Username string `json:"username"`
		} `json:"author"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "hello", rows[0].Comment.Payload)
	require.NotNil(t, rows[0].Author)
	assert.Equal(t, "jw", rows[0].Author.Username)

	rec = a.do(t, http.MethodGet, "/v1/users/1/comments", "", "")
	assert.JSONEq(t, `{"userId":1,"payloads":["hello"]}`, rec.Body.String())

	rec = a.do(t, http.MethodGet, "/v1/users/1", "", "")
	assert.JSONEq(t, `{"userId":1,"username":"jw","isAdmin":false}`, rec.Body.String())

	rec = a.do(t, http.MethodPatch, "/v1/users/1/admin", tok, `{"isAdmin":true}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(t, http.MethodPatch, "/v1/users/1/admin", operatorToken(t), `{"isAdmin":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodGet, "/v1/users/1", "", "")
	assert.JSONEq(t, `{"userId":1,"username":"jw","isAdmin":true}`, rec.Body.String())
}

func TestCacheFlushNeedsOperator(t *testing.T) {
	a := newAPI(t)
	a.mr.Set("hello", "stale")

	user, err := utils.NewAccessToken(secret, 1, utils.RoleUser, time.Minute)
	require.NoError(t, err)
	rec := a.do(t, http.MethodPost, "/v1/admin/cache/flush", user.Token, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.True(t, a.mr.Exists("hello"))

	rec = a.do(t, http.MethodPost, "/v1/admin/cache/flush", operatorToken(t), "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, a.mr.Exists("hello"))
}
