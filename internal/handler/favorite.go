package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/blog-platform/internal/service"
)

// FavoriteHandler serves favorites nested under /api/posts.
type FavoriteHandler struct {
	Favorites *service.Favorites
	Timeout   time.Duration
}

func NewFavoriteHandler(favs *service.Favorites, timeout time.Duration) *FavoriteHandler {
	return &FavoriteHandler{Favorites: favs, Timeout: timeout}
}

type favoritePart struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	PostID    string    `json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Add: POST /api/posts/:id/favorite.
func (h *FavoriteHandler) Add(c echo.Context) error {
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()
	f, err := h.Favorites.Add(ctx, currentUser(c), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, favoritePart{ID: f.ID, UserID: f.UserID, PostID: f.PostID, CreatedAt: f.CreatedAt})
}

// Remove: DELETE /api/posts/:id/favorite.
func (h *FavoriteHandler) Remove(c echo.Context) error {
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()
	if err := h.Favorites.Remove(ctx, currentUser(c), c.Param("id")); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "favorite removed"})
}

// Mine: GET /api/posts/me/favorites.
func (h *FavoriteHandler) Mine(c echo.Context) error {
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()
	posts, err := h.Favorites.ListMine(ctx, currentUser(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"count": len(posts), "data": toPostParts(posts)})
}

// Count: GET /api/posts/:id/favorites/count.
func (h *FavoriteHandler) Count(c echo.Context) error {
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()
	id := c.Param("id")
	n, err := h.Favorites.Count(ctx, currentUser(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"post_id": id, "favorite_count": n})
}
