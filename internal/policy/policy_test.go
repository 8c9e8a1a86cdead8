package policy

import (
	"testing"

	"github.com/iliyamo/blog-platform/internal/model"
)

var (
	author   = &model.User{ID: "author", Role: model.RoleUser}
	stranger = &model.User{ID: "stranger", Role: model.RoleUser}
	admin    = &model.User{ID: "admin", Role: model.RoleAdmin}
)

func posts() []*model.Post {
	return []*model.Post{
		{ID: "p1", AuthorID: author.ID, IsPublished: true},
		{ID: "p2", AuthorID: author.ID, IsPublished: false},
	}
}

func TestCanModifyPost(t *testing.T) {
	for _, p := range posts() {
		if !CanModifyPost(author, p) {
			t.Fatalf("author must modify post %s", p.ID)
		}
		if !CanModifyPost(admin, p) {
			t.Fatalf("admin must modify post %s", p.ID)
		}
		if CanModifyPost(stranger, p) {
			t.Fatalf("stranger must not modify post %s", p.ID)
		}
		if CanModifyPost(nil, p) {
			t.Fatalf("anonymous must not modify post %s", p.ID)
		}
	}
}

func TestCanViewPost(t *testing.T) {
	published, draft := posts()[0], posts()[1]

	cases := []struct {
		name string
		user *model.User
		post *model.Post
		want bool
	}{
		{"anonymous published", nil, published, true},
		{"stranger published", stranger, published, true},
		{"anonymous draft", nil, draft, false},
		{"stranger draft", stranger, draft, false},
		{"author draft", author, draft, true},
		{"admin draft", admin, draft, true},
	}
	for _, tc := range cases {
		if got := CanViewPost(tc.user, tc.post); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestCanManageUsers(t *testing.T) {
	if !CanManageUsers(admin) {
		t.Fatal("admin must manage users")
	}
	if CanManageUsers(author) {
		t.Fatal("regular user must not manage users")
	}
	if CanManageUsers(nil) {
		t.Fatal("anonymous must not manage users")
	}
	if !CanPublishPost(admin) || CanPublishPost(author) {
		t.Fatal("only admins publish posts")
	}
}

func TestCanDeleteAccount(t *testing.T) {
	for _, u := range []*model.User{author, stranger, admin} {
		if CanDeleteAccount(u, u) {
			t.Fatalf("self deletion must be refused for %s", u.ID)
		}
	}
	if !CanDeleteAccount(admin, author) {
		t.Fatal("admin must delete other accounts")
	}
	if CanDeleteAccount(stranger, author) {
		t.Fatal("regular user must not delete other accounts")
	}
}

func TestCanModifyFavorite(t *testing.T) {
	fav := &model.Favorite{ID: "f1", UserID: stranger.ID, PostID: "p1"}
	if !CanModifyFavorite(stranger, fav) {
		t.Fatal("owner must modify favorite")
	}
	if CanModifyFavorite(admin, fav) {
		t.Fatal("admin has no favorite override")
	}
	if CanModifyFavorite(author, fav) {
		t.Fatal("other user must not modify favorite")
	}
}
