package service

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/blog-platform/internal/database"
	"github.com/iliyamo/blog-platform/internal/model"
	"github.com/iliyamo/blog-platform/internal/queue"
	"github.com/iliyamo/blog-platform/internal/repository"
	"github.com/iliyamo/blog-platform/internal/utils"
)

// recorder collects published events.
type recorder struct {
	mu     sync.Mutex
	events []queue.ActivityEvent
}

func (r *recorder) Publish(_ context.Context, ev queue.ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

type fixture struct {
	db        *sql.DB
	users     *repository.UserRepo
	identity  *Identity
	posts     *Posts
	favorites *Favorites
	admin     *Users
	events    *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("db open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := database.Migrate(context.Background(), db, database.DriverSQLite); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	tokens, err := utils.NewTokenService("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("token service: %v", err)
	}
	ev := &recorder{}
	users := repository.NewUserRepo(db)
	postRepo := repository.NewPostRepo(db)
	return &fixture{
		db:        db,
		users:     users,
		identity:  NewIdentity(users, tokens, 4, ev),
		posts:     NewPosts(postRepo, ev),
		favorites: NewFavorites(repository.NewFavoriteRepo(db), postRepo, ev),
		admin:     NewUsers(users, postRepo, ev),
		events:    ev,
	}
}

func (f *fixture) register(t *testing.T, name string) *model.User {
	t.Helper()
	u, err := f.identity.Register(context.Background(), RegisterInput{
		Username: name,
		Email:    name + "@example.com",
		Password: "secret1",
	})
	if err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
	return u
}

// promote makes u an admin directly in storage.
func (f *fixture) promote(t *testing.T, u *model.User) *model.User {
	t.Helper()
	if err := f.users.UpdateRole(context.Background(), u.ID, model.RoleAdmin, time.Now()); err != nil {
		t.Fatalf("promote: %v", err)
	}
	cp := *u
	cp.Role = model.RoleAdmin
	return &cp
}

func expectKind(t *testing.T, err error, want Kind) {
	t.Helper()
	if got := KindOf(err); got != want {
		t.Fatalf("expected %s, got %s (%v)", want, got, err)
	}
}
