package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/blog-platform/internal/model"
	"github.com/iliyamo/blog-platform/internal/queue"
	"github.com/iliyamo/blog-platform/internal/repository"
)

func TestRegisterThenLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")

	if c, ok := alice.Local(); !ok || c.Hash != "" {
		t.Fatalf("expected local credential without hash, got %#v", alice.Credential)
	}
	if alice.Role != model.RoleUser {
		t.Fatalf("expected user role, got %v", alice.Role)
	}

	for _, ident := range []string{"alice", "alice@example.com"} {
		u, err := f.identity.ResolveFromCredentials(ctx, ident, "secret1")
		if err != nil {
			t.Fatalf("login %s: %v", ident, err)
		}
		if u.ID != alice.ID {
			t.Fatalf("expected %s, got %s", alice.ID, u.ID)
		}
		tok, err := f.identity.IssueToken(u)
		if err != nil {
			t.Fatalf("issue: %v", err)
		}
		sub, err := f.identity.Tokens.Verify(tok.Token)
		if err != nil || sub != alice.ID {
			t.Fatalf("expected token for %s, got %q %v", alice.ID, sub, err)
		}
	}

	_, wrongPw := f.identity.ResolveFromCredentials(ctx, "alice", "wrong")
	expectKind(t, wrongPw, KindBadCredentials)
	_, unknown := f.identity.ResolveFromCredentials(ctx, "nobody", "secret1")
	expectKind(t, unknown, KindBadCredentials)
	if wrongPw.Error() != unknown.Error() {
		t.Fatalf("wrong password and unknown user must be indistinguishable: %q vs %q", wrongPw, unknown)
	}

	if got := f.events.types(); len(got) != 1 || got[0] != queue.EventUserRegistered {
		t.Fatalf("expected one user.registered event, got %v", got)
	}
}

func TestRegisterValidationAndConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice")

	cases := []struct {
		name string
		in   RegisterInput
		want Kind
	}{
		{"short username", RegisterInput{"al", "x@example.com", "secret1"}, KindValidation},
		{"at in username", RegisterInput{"al@ce", "x@example.com", "secret1"}, KindValidation},
		{"bad email", RegisterInput{"bobby", "not-an-email", "secret1"}, KindValidation},
		{"short password", RegisterInput{"bobby", "bob@example.com", "12345"}, KindValidation},
		{"taken username", RegisterInput{"alice", "other@example.com", "secret1"}, KindConflict},
		{"taken email", RegisterInput{"bobby", "ALICE@example.com", "secret1"}, KindConflict},
	}
	for _, tc := range cases {
		_, err := f.identity.Register(ctx, tc.in)
		if got := KindOf(err); got != tc.want {
			t.Fatalf("%s: expected %s, got %s (%v)", tc.name, tc.want, got, err)
		}
	}
}

func TestResolveFromToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")
	tok, err := f.identity.IssueToken(alice)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	u, err := f.identity.ResolveFromToken(ctx, tok.Token)
	if err != nil || u.ID != alice.ID {
		t.Fatalf("expected alice, got %v %v", u, err)
	}

	_, err = f.identity.ResolveFromToken(ctx, "garbage")
	expectKind(t, err, KindUnauthenticated)

	expired := *f.identity
	expired.Tokens = f.identity.Tokens.WithClock(func() time.Time { return time.Now().Add(2 * time.Hour) })
	_, err = expired.ResolveFromToken(ctx, tok.Token)
	expectKind(t, err, KindUnauthenticated)

	if err := f.users.Delete(ctx, alice.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, err = f.identity.ResolveFromToken(ctx, tok.Token)
	expectKind(t, err, KindUnauthenticated)
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound to be wrapped, got %v", err)
	}
}

func TestExternalIdentityCreatesOnceAndNeverTakesPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	profile := ExternalProfile{Provider: "google", Subject: "g-123", DisplayName: "Gina Smith", Email: "gina@example.com"}

	first, err := f.identity.ResolveOrCreateFromExternalIdentity(ctx, profile)
	if err != nil {
		t.Fatalf("first login: %v", err)
	}
	if first.Username != "Gina_Smith" || first.Role != model.RoleUser {
		t.Fatalf("unexpected user %#v", first)
	}
	if c, ok := first.External(); !ok || c.Subject != "g-123" {
		t.Fatalf("expected external credential, got %#v", first.Credential)
	}

	again, err := f.identity.ResolveOrCreateFromExternalIdentity(ctx, profile)
	if err != nil || again.ID != first.ID {
		t.Fatalf("expected same user on second login, got %v %v", again, err)
	}

	_, err = f.identity.ResolveFromCredentials(ctx, "Gina_Smith", "")
	expectKind(t, err, KindBadCredentials)
	_, err = f.identity.ResolveFromCredentials(ctx, "gina@example.com", "anything")
	expectKind(t, err, KindBadCredentials)

	err = f.identity.ChangePassword(ctx, first, "x", "secret2")
	expectKind(t, err, KindValidation)
}

func TestExternalIdentityUsernameCollisionAndEmailConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "gina")

	u, err := f.identity.ResolveOrCreateFromExternalIdentity(ctx, ExternalProfile{
		Provider: "google", Subject: "g-1", DisplayName: "gina", Email: "gina.other@example.com",
	})
	if err != nil {
		t.Fatalf("expected suffixed username, got %v", err)
	}
	if u.Username == "gina" || len(u.Username) <= len("gina") {
		t.Fatalf("expected suffixed username, got %q", u.Username)
	}

	_, err = f.identity.ResolveOrCreateFromExternalIdentity(ctx, ExternalProfile{
		Provider: "google", Subject: "g-2", DisplayName: "Someone", Email: "gina@example.com",
	})
	expectKind(t, err, KindConflict)
}

// racingStore holds the first two external lookups until both have
// missed, forcing both callers into the create path.
type racingStore struct {
	*repository.UserRepo
	mu      sync.Mutex
	arrived int
	gate    chan struct{}
}

func (s *racingStore) GetByExternal(ctx context.Context, provider, subject string) (*model.User, error) {
	u, err := s.UserRepo.GetByExternal(ctx, provider, subject)
	s.mu.Lock()
	s.arrived++
	n := s.arrived
	if n == 2 {
		close(s.gate)
	}
	s.mu.Unlock()
	if n <= 2 {
		<-s.gate
	}
	return u, err
}

func TestConcurrentFirstExternalLoginCreatesOneUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	store := &racingStore{UserRepo: f.users, gate: make(chan struct{})}
	id := NewIdentity(store, f.identity.Tokens, 4, nil)
	profile := ExternalProfile{Provider: "google", Subject: "race", DisplayName: "Racer", Email: "racer@example.com"}

	var wg sync.WaitGroup
	results := make([]*model.User, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = id.ResolveOrCreateFromExternalIdentity(ctx, profile)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("login %d: %v", i, err)
		}
	}
	if results[0].ID != results[1].ID {
		t.Fatalf("expected both logins to resolve to one user, got %s and %s", results[0].ID, results[1].ID)
	}
	if n, _ := f.users.Count(ctx); n != 1 {
		t.Fatalf("expected exactly one user, got %d", n)
	}
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")

	expectKind(t, f.identity.ChangePassword(ctx, alice, "wrong", "secret2"), KindBadCredentials)
	expectKind(t, f.identity.ChangePassword(ctx, alice, "secret1", "123"), KindValidation)
	if err := f.identity.ChangePassword(ctx, alice, "secret1", "secret2"); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if _, err := f.identity.ResolveFromCredentials(ctx, "alice", "secret2"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
	_, err := f.identity.ResolveFromCredentials(ctx, "alice", "secret1")
	expectKind(t, err, KindBadCredentials)
}

func TestOverlongPasswordIsAValidationError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	long := strings.Repeat("a", 73)

	_, err := f.identity.Register(ctx, RegisterInput{Username: "longpw", Email: "longpw@example.com", Password: long})
	expectKind(t, err, KindValidation)

	// Exactly 72 bytes still fits bcrypt.
	if _, err := f.identity.Register(ctx, RegisterInput{Username: "edgepw", Email: "edgepw@example.com", Password: strings.Repeat("b", 72)}); err != nil {
		t.Fatalf("register with 72 byte password: %v", err)
	}

	alice := f.register(t, "alice")
	expectKind(t, f.identity.ChangePassword(ctx, alice, "secret1", long), KindValidation)
	// Multi-byte runes count by bytes: 25 runes of 3 bytes each is 75 bytes.
	expectKind(t, f.identity.ChangePassword(ctx, alice, "secret1", strings.Repeat("€", 25)), KindValidation)
	if _, err := f.identity.ResolveFromCredentials(ctx, "alice", "secret1"); err != nil {
		t.Fatalf("password changed despite rejection: %v", err)
	}
}

func TestUsernameFromProfile(t *testing.T) {
	cases := []struct {
		profile ExternalProfile
		want    string
	}{
		{ExternalProfile{DisplayName: "Ada Lovelace", Email: "ada@x.io"}, "Ada_Lovelace"},
		{ExternalProfile{DisplayName: "A", Email: "ada.l@x.io"}, "ada.l"},
		{ExternalProfile{DisplayName: "@@", Email: "ab@x.io"}, "user"},
	}
	for _, tc := range cases {
		if got := usernameFromProfile(tc.profile); got != tc.want {
			t.Fatalf("profile %+v: expected %q, got %q", tc.profile, tc.want, got)
		}
	}
}
