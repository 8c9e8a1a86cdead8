package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/iliyamo/blog-platform/internal/model"
	"github.com/iliyamo/blog-platform/internal/service"
)

func TestRespondError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		msg    string
	}{
		{&service.Error{Kind: service.KindBadCredentials, Message: "invalid credentials"}, http.StatusUnauthorized, "invalid credentials"},
		{&service.Error{Kind: service.KindUnauthenticated, Message: "unauthenticated"}, http.StatusUnauthorized, "unauthenticated"},
		{&service.Error{Kind: service.KindForbidden, Message: "forbidden"}, http.StatusForbidden, "forbidden"},
		{&service.Error{Kind: service.KindNotFound, Message: "post not found"}, http.StatusNotFound, "post not found"},
		{&service.Error{Kind: service.KindConflict, Message: "email already exists"}, http.StatusConflict, "email already exists"},
		{&service.Error{Kind: service.KindValidation, Message: "title too short"}, http.StatusBadRequest, "title too short"},
		{fmt.Errorf("wrapped: %w", &service.Error{Kind: service.KindNotFound, Message: "user not found"}), http.StatusNotFound, "user not found"},
		{errors.New("dial tcp: connection refused"), http.StatusInternalServerError, "internal error"},
		{fmt.Errorf("list posts: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, "request timed out"},
	}
	e := echo.New()
	e.Logger.SetLevel(log.OFF)
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
		if err := respondError(c, tc.err); err != nil {
			t.Fatalf("respondError returned %v", err)
		}
		if rec.Code != tc.status {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.status, rec.Code)
		}
		var body map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body["error"] != tc.msg {
			t.Fatalf("%v: expected message %q, got %q", tc.err, tc.msg, body["error"])
		}
		if strings.Contains(rec.Body.String(), "refused") {
			t.Fatalf("internal cause leaked: %s", rec.Body.String())
		}
	}
}

func TestTagListAcceptsArrayOrString(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{`{"tags":["go","web"]}`, []string{"go", "web"}},
		{`{"tags":"go, web"}`, []string{"go", " web"}},
		{`{"tags":""}`, nil},
		{`{"tags":null}`, nil},
		{`{}`, nil},
	}
	for _, tc := range cases {
		var req postReq
		if err := json.Unmarshal([]byte(tc.in), &req); err != nil {
			t.Fatalf("%s: %v", tc.in, err)
		}
		if fmt.Sprint([]string(req.Tags)) != fmt.Sprint(tc.want) || (req.Tags == nil) != (tc.want == nil) {
			t.Fatalf("%s: expected %q, got %q", tc.in, tc.want, req.Tags)
		}
	}
	var req postReq
	if err := json.Unmarshal([]byte(`{"tags":42}`), &req); err == nil {
		t.Fatalf("expected numeric tags rejected")
	}
}

func TestLoginIdentifierPrecedence(t *testing.T) {
	if got := (loginReq{Email: "a@b.c", Username: "abc"}).login(); got != "a@b.c" {
		t.Fatalf("expected email before username, got %q", got)
	}
	if got := (loginReq{Identifier: " joe ", Email: "a@b.c"}).login(); got != "joe" {
		t.Fatalf("expected trimmed identifier first, got %q", got)
	}
	if got := (loginReq{}).login(); got != "" {
		t.Fatalf("expected empty login, got %q", got)
	}
}

func TestPostPartShape(t *testing.T) {
	p := &model.Post{ID: "p1", Title: "Hello", AuthorID: "u1", Category: "General"}
	out := toPostPart(p)
	if out.Image != nil {
		t.Fatalf("expected null image")
	}
	if out.Tags == nil || len(out.Tags) != 0 {
		t.Fatalf("expected empty tag list, got %v", out.Tags)
	}
	if out.Author.ID != "u1" || out.Author.Username != "" {
		t.Fatalf("unexpected author %+v", out.Author)
	}
	p.Image = "/img/a.png"
	p.Author = &model.UserSummary{ID: "u1", Username: "bob"}
	out = toPostPart(p)
	if out.Image == nil || *out.Image != "/img/a.png" || out.Author.Username != "bob" {
		t.Fatalf("unexpected post part %+v", out)
	}
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) PingContext(ctx context.Context) error { return f(ctx) }

func TestHealthReportsDatabaseOutage(t *testing.T) {
	e := echo.New()
	e.Logger.SetLevel(log.OFF)
	e.GET("/down", Health(pingFunc(func(context.Context) error { return errors.New("connection reset") })))
	e.GET("/up", Health(pingFunc(func(context.Context) error { return nil })))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/down", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/up", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("expected ok, got %d %q", rec.Code, rec.Body.String())
	}
}
