package handler // handler defines http handlers

import (
	"context" // context carries the per-request deadline into services
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/blog-platform/internal/middleware"
	"github.com/iliyamo/blog-platform/internal/model"
	"github.com/iliyamo/blog-platform/internal/utils"
)

const defaultRequestTimeout = 5 * time.Second

// requestContext bounds the storage calls of one request.
func requestContext(c echo.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = defaultRequestTimeout
	}
	return context.WithTimeout(c.Request().Context(), d)
}

// currentUser returns the user set by the auth middleware, or nil.
func currentUser(c echo.Context) *model.User {
	return middleware.CurrentUser(c)
}

// ----- DTOs shared by handlers -----

type userPart struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Origin    string    `json:"origin"` // "local" or the identity provider
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toUserPart(u *model.User) userPart {
	return userPart{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      u.Role.String(),
		Origin:    u.Origin(),
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

func toTokenPart(t utils.AccessToken) tokenPart {
	return tokenPart{Token: t.Token, Expires: t.Exp}
}

type authorPart struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
}

type postPart struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	Image       *string    `json:"image"`
	Author      authorPart `json:"author"`
	IsPublished bool       `json:"is_published"`
	Category    string     `json:"category"`
	Tags        []string   `json:"tags"`
	Likes       int        `json:"likes"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func toPostPart(p *model.Post) postPart {
	out := postPart{
		ID:          p.ID,
		Title:       p.Title,
		Content:     p.Content,
		Author:      authorPart{ID: p.AuthorID},
		IsPublished: p.IsPublished,
		Category:    p.Category,
		Tags:        p.Tags,
		Likes:       p.Likes,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if p.Image != "" {
		img := p.Image
		out.Image = &img
	}
	if p.Author != nil {
		out.Author.Username = p.Author.Username
		out.Author.Email = p.Author.Email
	}
	if out.Tags == nil {
		out.Tags = []string{}
	}
	return out
}

func toPostParts(posts []model.Post) []postPart {
	out := make([]postPart, 0, len(posts))
	for i := range posts {
		out = append(out, toPostPart(&posts[i]))
	}
	return out
}
