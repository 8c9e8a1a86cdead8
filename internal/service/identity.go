package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/iliyamo/blog-platform/internal/model"
	"github.com/iliyamo/blog-platform/internal/queue"
	"github.com/iliyamo/blog-platform/internal/repository"
	"github.com/iliyamo/blog-platform/internal/utils"
)

// CredentialStore is the subset of the user repository identity
// resolution needs.  *repository.UserRepo satisfies it.
type CredentialStore interface {
	GetByID(ctx context.Context, id string, opts ...repository.FindOption) (*model.User, error)
	GetByLogin(ctx context.Context, identifier string, opts ...repository.FindOption) (*model.User, error)
	GetByExternal(ctx context.Context, provider, subject string) (*model.User, error)
	Create(ctx context.Context, u *model.User) error
	UpdatePassword(ctx context.Context, id, hash string, now time.Time) error
}

// ExternalProfile is what an identity provider vouches for after a
// successful OAuth exchange.
type ExternalProfile struct {
	Provider    string
	Subject     string
	DisplayName string
	Email       string
}

// RegisterInput carries the fields of a local sign-up.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// Identity maps credentials of every kind to a stored user.
type Identity struct {
	Users      CredentialStore
	Tokens     *utils.TokenService
	BcryptCost int
	Events     EventPublisher
	Now        func() time.Time
}

func NewIdentity(users CredentialStore, tokens *utils.TokenService, bcryptCost int, events EventPublisher) *Identity {
	return &Identity{Users: users, Tokens: tokens, BcryptCost: bcryptCost, Events: events, Now: time.Now}
}

func (s *Identity) now() time.Time { return s.Now().UTC().Truncate(time.Microsecond) }

// Register creates a local account with RoleUser.
func (s *Identity) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validateUsername(in.Username); err != nil {
		return nil, err
	}
	if err := validateEmail(in.Email); err != nil {
		return nil, err
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}
	hash, err := utils.HashPassword(in.Password, s.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := s.now()
	u := &model.User{
		Username:   in.Username,
		Email:      in.Email,
		Credential: model.LocalCredential{Hash: hash},
		Role:       model.RoleUser,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.Users.Create(ctx, u); err != nil {
		var dup *repository.DuplicateError
		if errors.As(err, &dup) {
			return nil, conflict(dup.Field+" already exists", err)
		}
		return nil, err
	}
	emit(ctx, s.Events, now, queue.EventUserRegistered, u.ID, u.ID, map[string]string{"origin": "local"})
	return withoutSecrets(u), nil
}

// ResolveFromCredentials authenticates a username or email with a
// password.  Unknown identifiers, external-only accounts and wrong
// passwords are indistinguishable: all cost one bcrypt comparison and
// all return BadCredentials.
func (s *Identity) ResolveFromCredentials(ctx context.Context, identifier, password string) (*model.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		utils.BurnPasswordCheck(password, s.BcryptCost)
		return nil, badCredentials()
	}
	u, err := s.Users.GetByLogin(ctx, identifier, repository.IncludeSecrets)
	if errors.Is(err, repository.ErrNotFound) {
		utils.BurnPasswordCheck(password, s.BcryptCost)
		return nil, badCredentials()
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	cred, ok := u.Local()
	if !ok {
		utils.BurnPasswordCheck(password, s.BcryptCost)
		return nil, badCredentials()
	}
	if !utils.VerifyPassword(cred.Hash, password) {
		return nil, badCredentials()
	}
	return withoutSecrets(u), nil
}

// ResolveFromToken verifies a bearer token and loads its subject.
func (s *Identity) ResolveFromToken(ctx context.Context, token string) (*model.User, error) {
	sub, err := s.Tokens.Verify(token)
	if err != nil {
		return nil, unauthenticated(err)
	}
	u, err := s.Users.GetByID(ctx, sub)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, unauthenticated(ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return u, nil
}

// maxUsernameAttempts bounds the suffix retries on username collisions.
const maxUsernameAttempts = 5

// ResolveOrCreateFromExternalIdentity returns the account linked to the
// profile, creating it on first login.  Concurrent first logins race on
// the unique (provider, subject) index; the loser re-reads the winner's
// row instead of failing.
func (s *Identity) ResolveOrCreateFromExternalIdentity(ctx context.Context, p ExternalProfile) (*model.User, error) {
	p.Provider = strings.ToLower(strings.TrimSpace(p.Provider))
	p.Subject = strings.TrimSpace(p.Subject)
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	if p.Provider == "" || p.Subject == "" {
		return nil, invalid("external profile must carry provider and subject")
	}
	if err := validateEmail(p.Email); err != nil {
		return nil, err
	}

	u, err := s.Users.GetByExternal(ctx, p.Provider, p.Subject)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup external user: %w", err)
	}

	base := usernameFromProfile(p)
	for attempt := 0; attempt < maxUsernameAttempts; attempt++ {
		name := base
		if attempt > 0 {
			name = fmt.Sprintf("%s-%s", base, uuid.NewString()[:6])
		}
		now := s.now()
		u := &model.User{
			Username:   name,
			Email:      p.Email,
			Credential: model.ExternalCredential{Provider: p.Provider, Subject: p.Subject},
			Role:       model.RoleUser,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		err := s.Users.Create(ctx, u)
		if err == nil {
			emit(ctx, s.Events, now, queue.EventUserRegistered, u.ID, u.ID, map[string]string{"origin": p.Provider})
			return u, nil
		}
		var dup *repository.DuplicateError
		if !errors.As(err, &dup) {
			return nil, fmt.Errorf("create external user: %w", err)
		}
		// Whatever index fired, a concurrent login for the same subject may
		// have won; its row is the answer.
		if existing, lerr := s.Users.GetByExternal(ctx, p.Provider, p.Subject); lerr == nil {
			return existing, nil
		}
		switch dup.Field {
		case "username":
			continue
		case "email":
			return nil, conflict("email already exists", err)
		default:
			return nil, conflict(dup.Field+" already exists", err)
		}
	}
	return nil, conflict("username already exists", nil)
}

// usernameFromProfile derives a valid username from the display name,
// falling back to the local part of the email.
func usernameFromProfile(p ExternalProfile) string {
	clean := func(s string) string {
		var b strings.Builder
		for _, r := range s {
			switch {
			case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' || r == '.':
				b.WriteRune(r)
			case unicode.IsSpace(r):
				b.WriteRune('_')
			}
		}
		out := strings.Trim(b.String(), "_")
		if r := []rune(out); len(r) > maxUsernameLen-7 {
			out = string(r[:maxUsernameLen-7])
		}
		return out
	}
	if name := clean(p.DisplayName); len([]rune(name)) >= minUsernameLen {
		return name
	}
	local, _, _ := strings.Cut(p.Email, "@")
	if name := clean(local); len([]rune(name)) >= minUsernameLen {
		return name
	}
	return "user"
}

// ChangePassword replaces the password of a local account after
// checking the current one.
func (s *Identity) ChangePassword(ctx context.Context, u *model.User, current, next string) error {
	if u == nil {
		return unauthenticated(nil)
	}
	stored, err := s.Users.GetByID(ctx, u.ID, repository.IncludeSecrets)
	if errors.Is(err, repository.ErrNotFound) {
		return unauthenticated(ErrUserNotFound)
	}
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	cred, ok := stored.Local()
	if !ok {
		return invalid("account signs in with " + stored.Origin() + " and has no password")
	}
	if err := validatePassword(next); err != nil {
		return err
	}
	if !utils.VerifyPassword(cred.Hash, current) {
		return badCredentials()
	}
	hash, err := utils.HashPassword(next, s.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.Users.UpdatePassword(ctx, u.ID, hash, s.now()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return unauthenticated(ErrUserNotFound)
		}
		return err
	}
	return nil
}

// IssueToken mints a session assertion for u.
func (s *Identity) IssueToken(u *model.User) (utils.AccessToken, error) {
	return s.Tokens.Issue(u.ID)
}

func withoutSecrets(u *model.User) *model.User {
	if _, ok := u.Local(); ok {
		cp := *u
		cp.Credential = model.LocalCredential{}
		return &cp
	}
	return u
}
