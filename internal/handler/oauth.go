package handler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/iliyamo/blog-platform/internal/config"
	"github.com/iliyamo/blog-platform/internal/service"
)

const (
	googleProvider    = "google"
	googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
	oauthStateCookie  = "oauth_state"
	oauthStateMaxAge  = 10 * time.Minute
)

// OAuthHandler implements sign-in through Google's authorization code
// flow.  After the exchange the Google subject is resolved to a local
// account, created on first login.
type OAuthHandler struct {
	Identity    *service.Identity
	OAuth       *oauth2.Config
	UserInfoURL string
	FrontendURL string // when set, the token is handed over by redirect
	Timeout     time.Duration
}

func NewGoogleOAuthHandler(identity *service.Identity, cfg config.OAuthConfig, frontendURL string, timeout time.Duration) *OAuthHandler {
	return &OAuthHandler{
		Identity: identity,
		OAuth: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			Endpoint:     endpoints.Google,
			RedirectURL:  cfg.GoogleCallbackURL,
			Scopes:       []string{"openid", "email", "profile"},
		},
		UserInfoURL: googleUserInfoURL,
		FrontendURL: frontendURL,
		Timeout:     timeout,
	}
}

// Start redirects the browser to Google with a fresh state that is also
// kept in an HttpOnly cookie for the callback to compare.
func (h *OAuthHandler) Start(c echo.Context) error {
	state := uuid.NewString()
	c.SetCookie(&http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   int(oauthStateMaxAge / time.Second),
		HttpOnly: true,
		Secure:   c.IsTLS(),
		SameSite: http.SameSiteLaxMode,
	})
	return c.Redirect(http.StatusTemporaryRedirect, h.OAuth.AuthCodeURL(state, oauth2.AccessTypeOnline))
}

// Callback finishes the flow: it checks the state, exchanges the code,
// reads the profile and signs the user in.
func (h *OAuthHandler) Callback(c echo.Context) error {
	if reason := c.QueryParam("error"); reason != "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "google sign-in failed: " + reason})
	}
	cookie, err := c.Cookie(oauthStateCookie)
	state := c.QueryParam("state")
	if err != nil || state == "" || subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(state)) != 1 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid oauth state"})
	}
	c.SetCookie(&http.Cookie{Name: oauthStateCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})

	code := c.QueryParam("code")
	if code == "" {
		return badRequest(c, "missing authorization code")
	}

	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	tok, err := h.OAuth.Exchange(ctx, code)
	if err != nil {
		c.Logger().Warnf("oauth exchange failed: %v", err)
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "google sign-in failed"})
	}
	profile, err := h.fetchProfile(ctx, tok)
	if err != nil {
		c.Logger().Warnf("oauth userinfo failed: %v", err)
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "google sign-in failed"})
	}

	u, err := h.Identity.ResolveOrCreateFromExternalIdentity(ctx, profile)
	if err != nil {
		return respondError(c, err)
	}
	access, err := h.Identity.IssueToken(u)
	if err != nil {
		return respondError(c, err)
	}
	if h.FrontendURL != "" {
		target := strings.TrimRight(h.FrontendURL, "/") + "/auth-success?token=" + url.QueryEscape(access.Token)
		return c.Redirect(http.StatusFound, target)
	}
	return c.JSON(http.StatusOK, authResp{User: toUserPart(u), Access: toTokenPart(access)})
}

type googleUserInfo struct {
	Sub   string `json:"sub"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (h *OAuthHandler) fetchProfile(ctx context.Context, tok *oauth2.Token) (service.ExternalProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.UserInfoURL, nil)
	if err != nil {
		return service.ExternalProfile{}, err
	}
	resp, err := h.OAuth.Client(ctx, tok).Do(req)
	if err != nil {
		return service.ExternalProfile{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return service.ExternalProfile{}, fmt.Errorf("userinfo status %d", resp.StatusCode)
	}
	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return service.ExternalProfile{}, fmt.Errorf("decode userinfo: %w", err)
	}
	if info.Sub == "" {
		return service.ExternalProfile{}, fmt.Errorf("userinfo without subject")
	}
	return service.ExternalProfile{
		Provider:    googleProvider,
		Subject:     info.Sub,
		DisplayName: info.Name,
		Email:       info.Email,
	}, nil
}
