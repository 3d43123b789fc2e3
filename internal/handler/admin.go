package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/moviestore/internal/access"
	"github.com/iliyamo/moviestore/internal/middleware"
)

// AdminHandler holds operator-only endpoints.
type AdminHandler struct {
	Svc *access.Service
}

func NewAdminHandler(s *access.Service) *AdminHandler { return &AdminHandler{Svc: s} }

// FlushCache: POST /v1/admin/cache/flush.  The caller's operator token is
// the flush grant, so the cache checks it again on its own.
func (h *AdminHandler) FlushCache(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Svc.FlushCache(ctx, middleware.Token(c)); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
