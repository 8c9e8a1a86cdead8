// Package client is a Go client for the blog API.  A Session returned by
// Register or Login is passed explicitly to every call that needs one;
// the client itself holds no user state and is safe for concurrent use.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Session is a signed-in user together with its bearer token.  The zero
// Session stands for an anonymous caller.
type Session struct {
	Token   string
	Expires time.Time
	User    User
}

// Valid reports whether the session carries a token that has not expired
// at now.
func (s Session) Valid(now time.Time) bool {
	return s.Token != "" && now.Before(s.Expires)
}

type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Origin    string    `json:"origin"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Author struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type Post struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Image       *string   `json:"image"`
	Author      Author    `json:"author"`
	IsPublished bool      `json:"is_published"`
	Category    string    `json:"category"`
	Tags        []string  `json:"tags"`
	Likes       int       `json:"likes"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PostInput is the body of create and update calls.  On update, empty
// fields keep the stored values and Image "REMOVE_IMAGE" clears it.
type PostInput struct {
	Title    string   `json:"title,omitempty"`
	Content  string   `json:"content,omitempty"`
	Image    string   `json:"image,omitempty"`
	Category string   `json:"category,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

type Stats struct {
	TotalUsers       int `json:"total_users"`
	TotalPosts       int `json:"total_posts"`
	UnpublishedPosts int `json:"unpublished_posts"`
}

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// StatusOf returns the HTTP status of an *APIError, or 0.
func StatusOf(err error) int {
	if e, ok := err.(*APIError); ok {
		return e.Status
	}
	return 0
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New returns a client for the API rooted at baseURL.  hc may be nil.
func New(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), HTTP: hc}
}

func (c *Client) do(ctx context.Context, method, path string, s Session, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type authResp struct {
	User   User `json:"user"`
	Access struct {
		Token   string    `json:"token"`
		Expires time.Time `json:"expires"`
	} `json:"access"`
}

func (r authResp) session() Session {
	return Session{Token: r.Access.Token, Expires: r.Access.Expires, User: r.User}
}

// Register creates a local account and returns its first session.
func (c *Client) Register(ctx context.Context, username, email, password string) (Session, error) {
	var r authResp
	err := c.do(ctx, http.MethodPost, "/api/auth/register", Session{}, map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	}, &r)
	if err != nil {
		return Session{}, err
	}
	return r.session(), nil
}

// Login signs in with a username or email.
func (c *Client) Login(ctx context.Context, identifier, password string) (Session, error) {
	var r authResp
	err := c.do(ctx, http.MethodPost, "/api/auth/login", Session{}, map[string]string{
		"identifier": identifier,
		"password":   password,
	}, &r)
	if err != nil {
		return Session{}, err
	}
	return r.session(), nil
}

func (c *Client) Me(ctx context.Context, s Session) (User, error) {
	var u User
	err := c.do(ctx, http.MethodGet, "/api/auth/me", s, nil, &u)
	return u, err
}

func (c *Client) ChangePassword(ctx context.Context, s Session, current, next string) error {
	return c.do(ctx, http.MethodPut, "/api/auth/change-password", s, map[string]string{
		"current_password": current,
		"new_password":     next,
	}, nil)
}

// ListPosts returns the posts visible to s; pass Session{} to browse
// anonymously.
func (c *Client) ListPosts(ctx context.Context, s Session) ([]Post, error) {
	var out []Post
	err := c.do(ctx, http.MethodGet, "/api/posts", s, nil, &out)
	return out, err
}

// SearchResult is one page of a post search.
type SearchResult struct {
	Data     []Post `json:"data"`
	Total    int64  `json:"total"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
}

// Search runs a text, category and tag search.  Zero page values use
// the server defaults.
func (c *Client) Search(ctx context.Context, s Session, text, category, tag string, page, pageSize int) (SearchResult, error) {
	v := url.Values{}
	if text != "" {
		v.Set("q", text)
	}
	if category != "" {
		v.Set("category", category)
	}
	if tag != "" {
		v.Set("tag", tag)
	}
	if page > 0 {
		v.Set("page", strconv.Itoa(page))
	}
	if pageSize > 0 {
		v.Set("page_size", strconv.Itoa(pageSize))
	}
	path := "/api/posts/search"
	if len(v) > 0 {
		path += "?" + v.Encode()
	}
	var out SearchResult
	err := c.do(ctx, http.MethodGet, path, s, nil, &out)
	return out, err
}

func (c *Client) ListUnpublished(ctx context.Context, s Session) ([]Post, error) {
	var out []Post
	err := c.do(ctx, http.MethodGet, "/api/posts/unpublished", s, nil, &out)
	return out, err
}

func (c *Client) GetPost(ctx context.Context, s Session, id string) (Post, error) {
	var p Post
	err := c.do(ctx, http.MethodGet, "/api/posts/"+url.PathEscape(id), s, nil, &p)
	return p, err
}

func (c *Client) CreatePost(ctx context.Context, s Session, in PostInput) (Post, error) {
	var p Post
	err := c.do(ctx, http.MethodPost, "/api/posts", s, in, &p)
	return p, err
}

func (c *Client) UpdatePost(ctx context.Context, s Session, id string, in PostInput) (Post, error) {
	var p Post
	err := c.do(ctx, http.MethodPut, "/api/posts/"+url.PathEscape(id), s, in, &p)
	return p, err
}

func (c *Client) DeletePost(ctx context.Context, s Session, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/posts/"+url.PathEscape(id), s, nil, nil)
}

func (c *Client) SetPublished(ctx context.Context, s Session, id string, published bool) (Post, error) {
	var p Post
	err := c.do(ctx, http.MethodPut, "/api/posts/"+url.PathEscape(id)+"/publish", s, map[string]bool{"is_published": published}, &p)
	return p, err
}

func (c *Client) Favorite(ctx context.Context, s Session, postID string) error {
	return c.do(ctx, http.MethodPost, "/api/posts/"+url.PathEscape(postID)+"/favorite", s, nil, nil)
}

func (c *Client) Unfavorite(ctx context.Context, s Session, postID string) error {
	return c.do(ctx, http.MethodDelete, "/api/posts/"+url.PathEscape(postID)+"/favorite", s, nil, nil)
}

func (c *Client) MyFavorites(ctx context.Context, s Session) ([]Post, error) {
	var out struct {
		Count int    `json:"count"`
		Data  []Post `json:"data"`
	}
	err := c.do(ctx, http.MethodGet, "/api/posts/me/favorites", s, nil, &out)
	return out.Data, err
}

// FavoriteCount works anonymously for published posts; pass a session to
// count favorites of a draft the caller may view.
func (c *Client) FavoriteCount(ctx context.Context, s Session, postID string) (int, error) {
	var out struct {
		Count int `json:"favorite_count"`
	}
	err := c.do(ctx, http.MethodGet, "/api/posts/"+url.PathEscape(postID)+"/favorites/count", s, nil, &out)
	return out.Count, err
}

func (c *Client) ListUsers(ctx context.Context, s Session) ([]User, error) {
	var out []User
	err := c.do(ctx, http.MethodGet, "/api/users", s, nil, &out)
	return out, err
}

func (c *Client) Stats(ctx context.Context, s Session) (Stats, error) {
	var out Stats
	err := c.do(ctx, http.MethodGet, "/api/users/stats", s, nil, &out)
	return out, err
}

func (c *Client) SetRole(ctx context.Context, s Session, userID, role string) (User, error) {
	var u User
	err := c.do(ctx, http.MethodPut, "/api/users/"+url.PathEscape(userID)+"/role", s, map[string]string{"role": role}, &u)
	return u, err
}

func (c *Client) DeleteUser(ctx context.Context, s Session, userID string) error {
	return c.do(ctx, http.MethodDelete, "/api/users/"+url.PathEscape(userID), s, nil, nil)
}
