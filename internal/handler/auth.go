package handler

import (
	"net/http" // HTTP status codes and primitives
	"strings"  // string manipulation utilities
	"time"     // per-request timeouts

	"github.com/labstack/echo/v4" // Echo framework for HTTP routing

	"github.com/iliyamo/blog-platform/internal/model"
	"github.com/iliyamo/blog-platform/internal/service" // identity resolution and registration
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Identity *service.Identity
	Timeout  time.Duration
}

func NewAuthHandler(identity *service.Identity, timeout time.Duration) *AuthHandler {
	return &AuthHandler{Identity: identity, Timeout: timeout}
}

// ----- DTOs -----

type registerReq struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginReq accepts the login name under any of three keys; the first
// non-empty one wins.
type loginReq struct {
	Identifier string `json:"identifier"`
	Email      string `json:"email"`
	Username   string `json:"username"`
	Password   string `json:"password"`
}

func (r loginReq) login() string {
	for _, s := range []string{r.Identifier, r.Email, r.Username} {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

type changePasswordReq struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type authResp struct {
	User   userPart  `json:"user"`
	Access tokenPart `json:"access"`
}

// Register: create a local account and sign it in immediately.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	u, err := h.Identity.Register(ctx, service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return respondError(c, err)
	}
	return h.session(c, http.StatusCreated, u)
}

// Login: verify username/email and password, return an access token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	u, err := h.Identity.ResolveFromCredentials(ctx, req.login(), req.Password)
	if err != nil {
		return respondError(c, err)
	}
	return h.session(c, http.StatusOK, u)
}

func (h *AuthHandler) session(c echo.Context, status int, u *model.User) error {
	access, err := h.Identity.IssueToken(u)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(status, authResp{User: toUserPart(u), Access: toTokenPart(access)})
}

// Me: return the authenticated user.
func (h *AuthHandler) Me(c echo.Context) error {
	u := currentUser(c)
	if u == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
	}
	return c.JSON(http.StatusOK, toUserPart(u))
}

// ChangePassword: replace the password of a local account.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	var req changePasswordReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	if err := h.Identity.ChangePassword(ctx, currentUser(c), req.CurrentPassword, req.NewPassword); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
