package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/moviestore/internal/handler"
	"github.com/iliyamo/moviestore/internal/middleware"
	"github.com/iliyamo/moviestore/internal/utils"
)

// Handlers groups everything the routes dispatch to.
type Handlers struct {
	Health   *handler.HealthHandler
	Movies   *handler.MovieHandler
	Users    *handler.UserHandler
	Comments *handler.CommentHandler
	Admin    *handler.AdminHandler
}

// RegisterRoutes registers the unauthenticated probes and reads.
func RegisterRoutes(e *echo.Echo, h Handlers) {
	e.GET("/healthz", handler.Health)
	if h.Health != nil {
		e.GET("/readyz", h.Health.Ready)
	}

	v1 := e.Group("/v1")
	v1.GET("/movies", h.Movies.List)
	v1.GET("/movies/:id", h.Movies.Get)
	v1.GET("/directors/:name/movies", h.Movies.DirectorMovies)
	v1.GET("/users/:id", h.Users.Get)
	v1.GET("/users/:id/comments", h.Comments.ByUser)
	v1.GET("/comments", h.Comments.List)

	v1.POST("/users", h.Users.Register)
	v1.POST("/auth/login", h.Users.Login)
}

// RegisterProtected registers the routes that need an access token.
// Comments are written by users; the catalogue is edited by admins and
// operators; user roles and the cache belong to operators alone.
func RegisterProtected(e *echo.Echo, h Handlers, jwtSecret string) {
	// Middleware is attached per route rather than with Group.Use so that
	// unknown paths under /v1 still answer 404 instead of 401.
	v1 := e.Group("/v1")
	jwt := middleware.JWTAuth(jwtSecret)

	v1.POST("/comments", h.Comments.Create, jwt, middleware.RequireRole(utils.RoleUser, utils.RoleAdmin))

	editors := middleware.RequireRole(utils.RoleAdmin, utils.RoleOperator)
	v1.POST("/movies", h.Movies.Create, jwt, editors)
	v1.PATCH("/movies/:id", h.Movies.Patch, jwt, editors)
	v1.POST("/movie-docs", h.Movies.CreateDoc, jwt, editors)

	operator := middleware.RequireRole(utils.RoleOperator)
	v1.PATCH("/users/:id/admin", h.Users.SetAdmin, jwt, operator)
	v1.POST("/admin/cache/flush", h.Admin.FlushCache, jwt, operator)
}
