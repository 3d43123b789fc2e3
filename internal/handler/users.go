package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/moviestore/internal/access"
	"github.com/iliyamo/moviestore/internal/model"
	"github.com/iliyamo/moviestore/internal/utils"
)

// UserHandler bundles dependencies for user and auth endpoints.
type UserHandler struct {
	Svc       *access.Service
	JWTSecret string
	AccessTTL time.Duration
}

func NewUserHandler(s *access.Service, secret string, ttl time.Duration) *UserHandler {
	return &UserHandler{Svc: s, JWTSecret: secret, AccessTTL: ttl}
}

// ----- DTOs -----

type credentialsReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type setAdminReq struct {
	IsAdmin *bool `json:"isAdmin"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type loginResp struct {
	User   model.User `json:"user"`
	Access tokenPart  `json:"access"`
}

// Register: POST /v1/users
func (h *UserHandler) Register(c echo.Context) error {
	var req credentialsReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()
	u, err := h.Svc.RegisterUser(ctx, req.Username, req.Password)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, u)
}

// Login: POST /v1/auth/login.  Admins get an ADMIN token, everyone else a
// USER token.
func (h *UserHandler) Login(c echo.Context) error {
	var req credentialsReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username/password required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()
	u, err := h.Svc.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		return writeError(c, err)
	}

	role := utils.RoleUser
	if u.IsAdmin {
		role = utils.RoleAdmin
	}
	tok, err := utils.NewAccessToken(h.JWTSecret, u.UserID, role, h.AccessTTL)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
	}
	return c.JSON(http.StatusOK, loginResp{
		User:   u,
		Access: tokenPart{Token: tok.Token, Expires: tok.Exp},
	})
}

// Get: GET /v1/users/:id
func (h *UserHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	u, err := h.Svc.GetUser(ctx, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, u)
}

// SetAdmin: PATCH /v1/users/:id/admin (operator only)
func (h *UserHandler) SetAdmin(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req setAdminReq
	if err := c.Bind(&req); err != nil || req.IsAdmin == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "isAdmin required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()
	u, err := h.Svc.SetAdmin(ctx, id, *req.IsAdmin)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, u)
}
