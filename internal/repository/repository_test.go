package repository

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/iliyamo/blog-platform/internal/database"
	"github.com/iliyamo/blog-platform/internal/model"
)

var testNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("db open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := database.Migrate(context.Background(), db, database.DriverSQLite); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func localUser(name string) *model.User {
	return &model.User{
		Username:   name,
		Email:      name + "@example.com",
		Credential: model.LocalCredential{Hash: "$2a$04$hash-of-" + name},
		Role:       model.RoleUser,
		CreatedAt:  testNow,
		UpdatedAt:  testNow,
	}
}

func mustCreateUser(t *testing.T, r *UserRepo, u *model.User) *model.User {
	t.Helper()
	if err := r.Create(context.Background(), u); err != nil {
		t.Fatalf("create user %s: %v", u.Username, err)
	}
	return u
}

func mustCreatePost(t *testing.T, r *PostRepo, authorID string, published bool, at time.Time) *model.Post {
	t.Helper()
	p := &model.Post{
		Title:       "Post by " + authorID,
		Content:     "body",
		AuthorID:    authorID,
		IsPublished: published,
		Category:    model.DefaultCategory,
		Tags:        []string{"go", "sql"},
		CreatedAt:   at,
		UpdatedAt:   at,
	}
	if err := r.Create(context.Background(), p); err != nil {
		t.Fatalf("create post: %v", err)
	}
	return p
}

func TestUserCreateAndSecretsExcludedByDefault(t *testing.T) {
	users := NewUserRepo(newTestDB(t))
	ctx := context.Background()
	u := mustCreateUser(t, users, localUser("alice"))
	if u.ID == "" {
		t.Fatal("expected generated id")
	}

	got, err := users.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	cred, ok := got.Local()
	if !ok {
		t.Fatalf("expected local credential, got %T", got.Credential)
	}
	if cred.Hash != "" {
		t.Fatalf("expected hash to be excluded, got %q", cred.Hash)
	}
	if !got.CreatedAt.Equal(testNow) {
		t.Fatalf("expected created_at %v, got %v", testNow, got.CreatedAt)
	}

	withHash, err := users.GetByID(ctx, u.ID, IncludeSecrets)
	if err != nil {
		t.Fatalf("get with secrets: %v", err)
	}
	if c, _ := withHash.Local(); c.Hash != "$2a$04$hash-of-alice" {
		t.Fatalf("expected stored hash, got %q", c.Hash)
	}
}

func TestUserDuplicatesAreClassified(t *testing.T) {
	users := NewUserRepo(newTestDB(t))
	ctx := context.Background()
	mustCreateUser(t, users, localUser("alice"))

	sameName := localUser("alice")
	sameName.Email = "other@example.com"
	if err := users.Create(ctx, sameName); !IsDuplicate(err, "username") {
		t.Fatalf("expected username duplicate, got %v", err)
	}

	sameEmail := localUser("bob")
	sameEmail.Email = "ALICE@example.com"
	if err := users.Create(ctx, sameEmail); !IsDuplicate(err, "email") {
		t.Fatalf("expected email duplicate, got %v", err)
	}

	ext := func(name string) *model.User {
		u := localUser(name)
		u.Credential = model.ExternalCredential{Provider: "google", Subject: "g-1"}
		return u
	}
	mustCreateUser(t, users, ext("carol"))
	if err := users.Create(ctx, ext("dave")); !IsDuplicate(err, "external_id") {
		t.Fatalf("expected external_id duplicate, got %v", err)
	}
}

func TestUserLookups(t *testing.T) {
	users := NewUserRepo(newTestDB(t))
	ctx := context.Background()
	alice := mustCreateUser(t, users, localUser("alice"))
	g := localUser("gina")
	g.Credential = model.ExternalCredential{Provider: "google", Subject: "sub-9"}
	mustCreateUser(t, users, g)

	for _, ident := range []string{"alice", "alice@example.com", " Alice@Example.com "} {
		u, err := users.GetByLogin(ctx, ident)
		if ident == " Alice@Example.com " {
			if err != nil || u.ID != alice.ID {
				t.Fatalf("expected case-insensitive email match, got %v %v", u, err)
			}
			continue
		}
		if err != nil || u.ID != alice.ID {
			t.Fatalf("lookup %q: expected alice, got %v %v", ident, u, err)
		}
	}
	if _, err := users.GetByLogin(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	got, err := users.GetByExternal(ctx, "google", "sub-9")
	if err != nil {
		t.Fatalf("external lookup: %v", err)
	}
	if c, ok := got.External(); !ok || c.Subject != "sub-9" {
		t.Fatalf("expected external credential, got %#v", got.Credential)
	}
	if _, err := users.GetByExternal(ctx, "google", "other"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserUpdates(t *testing.T) {
	users := NewUserRepo(newTestDB(t))
	ctx := context.Background()
	alice := mustCreateUser(t, users, localUser("alice"))
	later := testNow.Add(time.Minute)

	if err := users.UpdateRole(ctx, alice.ID, model.RoleAdmin, later); err != nil {
		t.Fatalf("update role: %v", err)
	}
	if err := users.UpdatePassword(ctx, alice.ID, "new-hash", later); err != nil {
		t.Fatalf("update password: %v", err)
	}
	got, err := users.GetByID(ctx, alice.ID, IncludeSecrets)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Role != model.RoleAdmin {
		t.Fatalf("expected admin, got %v", got.Role)
	}
	if c, _ := got.Local(); c.Hash != "new-hash" {
		t.Fatalf("expected new hash, got %q", c.Hash)
	}
	if err := users.UpdateRole(ctx, "missing", model.RoleUser, later); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFavoritesKeepLikesInStep(t *testing.T) {
	db := newTestDB(t)
	users, posts, favs := NewUserRepo(db), NewPostRepo(db), NewFavoriteRepo(db)
	ctx := context.Background()
	alice := mustCreateUser(t, users, localUser("alice"))
	bob := mustCreateUser(t, users, localUser("bob"))
	p := mustCreatePost(t, posts, alice.ID, true, testNow)

	f := &model.Favorite{UserID: bob.ID, PostID: p.ID, CreatedAt: testNow}
	if err := favs.Add(ctx, f); err != nil {
		t.Fatalf("add favorite: %v", err)
	}
	dup := &model.Favorite{UserID: bob.ID, PostID: p.ID, CreatedAt: testNow}
	if err := favs.Add(ctx, dup); !IsDuplicate(err, "favorite") {
		t.Fatalf("expected favorite duplicate, got %v", err)
	}

	got, _ := posts.GetByID(ctx, p.ID)
	if got.Likes != 1 {
		t.Fatalf("expected 1 like, got %d", got.Likes)
	}
	if n, _ := favs.CountByPost(ctx, p.ID); n != 1 {
		t.Fatalf("expected count 1, got %d", n)
	}
	list, err := favs.ListPostsByUser(ctx, bob.ID)
	if err != nil || len(list) != 1 || list[0].ID != p.ID {
		t.Fatalf("expected bob's favorites to contain the post, got %v %v", list, err)
	}

	stored, err := favs.Get(ctx, bob.ID, p.ID)
	if err != nil {
		t.Fatalf("get favorite: %v", err)
	}
	if err := favs.Remove(ctx, stored); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := favs.Remove(ctx, stored); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second remove, got %v", err)
	}
	got, _ = posts.GetByID(ctx, p.ID)
	if got.Likes != 0 {
		t.Fatalf("expected 0 likes, got %d", got.Likes)
	}
}

func TestPostListFilterAndOrder(t *testing.T) {
	db := newTestDB(t)
	users, posts := NewUserRepo(db), NewPostRepo(db)
	ctx := context.Background()
	alice := mustCreateUser(t, users, localUser("alice"))
	older := mustCreatePost(t, posts, alice.ID, true, testNow)
	newer := mustCreatePost(t, posts, alice.ID, true, testNow.Add(time.Hour))
	draft := mustCreatePost(t, posts, alice.ID, false, testNow.Add(2*time.Hour))

	published := true
	list, err := posts.List(ctx, PostFilter{Published: &published})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != newer.ID || list[1].ID != older.ID {
		t.Fatalf("expected [newer older], got %v", list)
	}
	if list[0].Author == nil || list[0].Author.Username != "alice" {
		t.Fatalf("expected author summary, got %#v", list[0].Author)
	}
	if len(list[0].Tags) != 2 || list[0].Tags[0] != "go" {
		t.Fatalf("expected tags round trip, got %v", list[0].Tags)
	}

	all, _ := posts.List(ctx, PostFilter{})
	if len(all) != 3 || all[0].ID != draft.ID {
		t.Fatalf("expected draft first among all posts, got %v", all)
	}

	total, unpublished, err := posts.Counts(ctx)
	if err != nil || total != 3 || unpublished != 1 {
		t.Fatalf("expected counts 3/1, got %d/%d %v", total, unpublished, err)
	}
}

func TestPostUpdatePublishDelete(t *testing.T) {
	db := newTestDB(t)
	users, posts, favs := NewUserRepo(db), NewPostRepo(db), NewFavoriteRepo(db)
	ctx := context.Background()
	alice := mustCreateUser(t, users, localUser("alice"))
	p := mustCreatePost(t, posts, alice.ID, false, testNow)
	p.Image = "https://img.example.com/a.png"
	mustCreatePost(t, posts, alice.ID, true, testNow)

	p.Title = "Renamed"
	p.Tags = nil
	p.UpdatedAt = testNow.Add(time.Minute)
	if err := posts.Update(ctx, p); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := posts.SetPublished(ctx, p.ID, true, testNow.Add(time.Minute)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	got, err := posts.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "Renamed" || !got.IsPublished || got.Image != p.Image || len(got.Tags) != 0 {
		t.Fatalf("unexpected post after update: %#v", got)
	}

	if err := favs.Add(ctx, &model.Favorite{UserID: alice.ID, PostID: p.ID, CreatedAt: testNow}); err != nil {
		t.Fatalf("favorite: %v", err)
	}
	if err := posts.Delete(ctx, p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := posts.GetByID(ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := posts.Delete(ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestUserDeleteCascades(t *testing.T) {
	db := newTestDB(t)
	users, posts, favs := NewUserRepo(db), NewPostRepo(db), NewFavoriteRepo(db)
	ctx := context.Background()
	alice := mustCreateUser(t, users, localUser("alice"))
	bob := mustCreateUser(t, users, localUser("bob"))
	alicePost := mustCreatePost(t, posts, alice.ID, true, testNow)
	bobPost := mustCreatePost(t, posts, bob.ID, true, testNow)

	for _, f := range []*model.Favorite{
		{UserID: alice.ID, PostID: bobPost.ID, CreatedAt: testNow},
		{UserID: bob.ID, PostID: alicePost.ID, CreatedAt: testNow},
	} {
		if err := favs.Add(ctx, f); err != nil {
			t.Fatalf("favorite: %v", err)
		}
	}

	if err := users.Delete(ctx, alice.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := users.GetByID(ctx, alice.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected alice gone, got %v", err)
	}
	if _, err := posts.GetByID(ctx, alicePost.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected alice's post gone, got %v", err)
	}
	got, err := posts.GetByID(ctx, bobPost.ID)
	if err != nil {
		t.Fatalf("bob's post: %v", err)
	}
	if got.Likes != 0 {
		t.Fatalf("expected alice's like withdrawn, got %d", got.Likes)
	}
	if list, _ := favs.ListPostsByUser(ctx, bob.ID); len(list) != 0 {
		t.Fatalf("expected bob's favorite on deleted post gone, got %v", list)
	}
	if n, _ := users.Count(ctx); n != 1 {
		t.Fatalf("expected 1 user left, got %d", n)
	}
	if err := users.Delete(ctx, alice.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}
