// Package policy holds every authorization rule of the blog.  The
// functions are pure: they look only at the resolved user and the
// ownership fields of the resource, never at storage.  Handlers and
// services must call these instead of comparing roles inline.
package policy

import "github.com/iliyamo/blog-platform/internal/model"

// CanModifyPost allows the author and every admin to edit or delete a
// post, regardless of its publication state.
func CanModifyPost(u *model.User, p *model.Post) bool {
	if u == nil || p == nil {
		return false
	}
	return u.IsAdmin() || u.ID == p.AuthorID
}

// CanViewPost allows anyone to see a published post.  Unpublished posts
// are visible to their author and to admins only.  u may be nil for
// anonymous callers.
func CanViewPost(u *model.User, p *model.Post) bool {
	if p == nil {
		return false
	}
	if p.IsPublished {
		return true
	}
	return u != nil && (u.IsAdmin() || u.ID == p.AuthorID)
}

// CanPublishPost allows admins to change the publication flag.
func CanPublishPost(u *model.User) bool {
	return u.IsAdmin()
}

// CanManageUsers allows admins to list users, change roles and delete
// accounts.
func CanManageUsers(u *model.User) bool {
	return u.IsAdmin()
}

// CanDeleteAccount refuses self-deletion outright, even for admins, and
// otherwise defers to CanManageUsers.
func CanDeleteAccount(actor, target *model.User) bool {
	if actor == nil || target == nil {
		return false
	}
	if actor.ID == target.ID {
		return false
	}
	return CanManageUsers(actor)
}

// CanModifyFavorite allows only the owner of a favorite to remove it.
// Admins have no override here.
func CanModifyFavorite(u *model.User, f *model.Favorite) bool {
	if u == nil || f == nil {
		return false
	}
	return u.ID == f.UserID
}
