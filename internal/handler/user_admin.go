package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/blog-platform/internal/service"
)

// UserAdminHandler serves the admin-only /api/users endpoints.
type UserAdminHandler struct {
	Users   *service.Users
	Timeout time.Duration
}

func NewUserAdminHandler(users *service.Users, timeout time.Duration) *UserAdminHandler {
	return &UserAdminHandler{Users: users, Timeout: timeout}
}

type roleReq struct {
	Role string `json:"role"`
}

type statsResp struct {
	TotalUsers       int `json:"total_users"`
	TotalPosts       int `json:"total_posts"`
	UnpublishedPosts int `json:"unpublished_posts"`
}

func (h *UserAdminHandler) List(c echo.Context) error {
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()
	users, err := h.Users.List(ctx, currentUser(c))
	if err != nil {
		return respondError(c, err)
	}
	out := make([]userPart, 0, len(users))
	for i := range users {
		out = append(out, toUserPart(&users[i]))
	}
	return c.JSON(http.StatusOK, out)
}

func (h *UserAdminHandler) Stats(c echo.Context) error {
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()
	s, err := h.Users.Stats(ctx, currentUser(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, statsResp{TotalUsers: s.TotalUsers, TotalPosts: s.TotalPosts, UnpublishedPosts: s.UnpublishedPosts})
}

// ChangeRole: PUT /api/users/:id/role {role: user|admin}.
func (h *UserAdminHandler) ChangeRole(c echo.Context) error {
	var req roleReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()
	u, err := h.Users.ChangeRole(ctx, currentUser(c), c.Param("id"), req.Role)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toUserPart(u))
}

// Delete: DELETE /api/users/:id.  An admin cannot delete their own account.
func (h *UserAdminHandler) Delete(c echo.Context) error {
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()
	if err := h.Users.Delete(ctx, currentUser(c), c.Param("id")); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "user deleted"})
}
