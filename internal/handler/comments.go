package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/moviestore/internal/access"
	"github.com/iliyamo/moviestore/internal/middleware"
	"github.com/iliyamo/moviestore/internal/model"
)

type CommentHandler struct {
	Svc *access.Service
}

func NewCommentHandler(s *access.Service) *CommentHandler { return &CommentHandler{Svc: s} }

type commentReq struct {
	Payload string `json:"payload"`
}

// Create: POST /v1/comments.  The author is the authenticated user.
func (h *CommentHandler) Create(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "user token required"})
	}
	var req commentReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()
	out, err := h.Svc.RecordComment(ctx, model.Comment{Payload: req.Payload, UserID: uid})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}

// List: GET /v1/comments[?user_id=N].  Every comment appears once with its
// author, or a null author when the user is gone.
func (h *CommentHandler) List(c echo.Context) error {
	uid, err := queryInt(c, "user_id", 0)
	if err != nil || uid < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user_id"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	rows, err := h.Svc.CommentsWithAuthors(ctx, uid)
	if err != nil {
		return writeError(c, err)
	}
	if rows == nil {
		rows = []model.CommentWithAuthor{}
	}
	return c.JSON(http.StatusOK, rows)
}

// ByUser: GET /v1/users/:id/comments returns the payloads only.
func (h *CommentHandler) ByUser(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	payloads, err := h.Svc.CommentsByUser(ctx, id)
	if err != nil {
		return writeError(c, err)
	}
	if payloads == nil {
		payloads = []string{}
	}
	return c.JSON(http.StatusOK, echo.Map{"userId": id, "payloads": payloads})
}
