package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/blog-platform/internal/repository"
	"github.com/iliyamo/blog-platform/internal/service"
)

// PostHandler serves the post endpoints.  Visibility and ownership rules
// live in the service; the handler only translates HTTP.
type PostHandler struct {
	Posts   *service.Posts
	Timeout time.Duration
}

func NewPostHandler(posts *service.Posts, timeout time.Duration) *PostHandler {
	return &PostHandler{Posts: posts, Timeout: timeout}
}

// tagList accepts either a JSON array of strings or a single
// comma-separated string.  An absent, null or empty value leaves it nil.
type tagList []string

func (t *tagList) UnmarshalJSON(b []byte) error {
	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		*t = list
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if strings.TrimSpace(s) == "" {
		return nil
	}
	*t = strings.Split(s, ",")
	return nil
}

type postReq struct {
	Title    string  `json:"title"`
	Content  string  `json:"content"`
	Image    *string `json:"image"`
	Category string  `json:"category"`
	Tags     tagList `json:"tags"`
}

type publishReq struct {
	IsPublished *bool `json:"is_published"`
}

// List: GET /api/posts.
func (h *PostHandler) List(c echo.Context) error {
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()
	posts, err := h.Posts.List(ctx, currentUser(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toPostParts(posts))
}

// ListUnpublished: GET /api/posts/unpublished.
func (h *PostHandler) ListUnpublished(c echo.Context) error {
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()
	posts, err := h.Posts.ListUnpublished(ctx, currentUser(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toPostParts(posts))
}

// Search: GET /api/posts/search?q=&category=&tag=&page=&page_size=
// Paging defaults to the first 20 results; page_size is capped at 100.
func (h *PostHandler) Search(c echo.Context) error {
	q := repository.PostSearchQuery{
		Text:     strings.TrimSpace(c.QueryParam("q")),
		Category: strings.TrimSpace(c.QueryParam("category")),
		Tag:      strings.TrimSpace(c.QueryParam("tag")),
	}
	q.Page, _ = strconv.Atoi(c.QueryParam("page"))
	q.PageSize, _ = strconv.Atoi(c.QueryParam("page_size"))

	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()
	res, err := h.Posts.Search(ctx, currentUser(c), q)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"data":      toPostParts(res.Posts),
		"total":     res.Total,
		"page":      res.Page,
		"page_size": res.PageSize,
	})
}

// Get: GET /api/posts/:id.
func (h *PostHandler) Get(c echo.Context) error {
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()
	p, err := h.Posts.Get(ctx, currentUser(c), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toPostPart(p))
}

// Create: POST /api/posts.
func (h *PostHandler) Create(c echo.Context) error {
	var req postReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	in := service.PostInput{
		Title:    req.Title,
		Content:  req.Content,
		Category: req.Category,
		Tags:     req.Tags,
	}
	if req.Image != nil {
		in.Image = *req.Image
	}

	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()
	p, err := h.Posts.Create(ctx, currentUser(c), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, toPostPart(p))
}

// Update: PUT /api/posts/:id.  Empty fields keep the stored values and
// an image of "REMOVE_IMAGE" clears it.
func (h *PostHandler) Update(c echo.Context) error {
	var req postReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	patch := service.PostPatch{
		Title:    req.Title,
		Content:  req.Content,
		Category: req.Category,
		Tags:     req.Tags,
	}
	if req.Image != nil && strings.TrimSpace(*req.Image) != "" {
		patch.Image = req.Image
	}

	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()
	p, err := h.Posts.Update(ctx, currentUser(c), c.Param("id"), patch)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toPostPart(p))
}

// Delete: DELETE /api/posts/:id.
func (h *PostHandler) Delete(c echo.Context) error {
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()
	if err := h.Posts.Delete(ctx, currentUser(c), c.Param("id")); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "post deleted"})
}

// Publish: PUT /api/posts/:id/publish {is_published}.
func (h *PostHandler) Publish(c echo.Context) error {
	var req publishReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.IsPublished == nil {
		return badRequest(c, "is_published is required")
	}

	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()
	p, err := h.Posts.SetPublished(ctx, currentUser(c), c.Param("id"), *req.IsPublished)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toPostPart(p))
}
