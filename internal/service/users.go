package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/blog-platform/internal/model"
	"github.com/iliyamo/blog-platform/internal/policy"
	"github.com/iliyamo/blog-platform/internal/queue"
	"github.com/iliyamo/blog-platform/internal/repository"
)

// Users implements user administration.  Every operation requires an
// actor allowed by policy.CanManageUsers.
type Users struct {
	Users  *repository.UserRepo
	Posts  *repository.PostRepo
	Events EventPublisher
	Now    func() time.Time
}

func NewUsers(users *repository.UserRepo, posts *repository.PostRepo, events EventPublisher) *Users {
	return &Users{Users: users, Posts: posts, Events: events, Now: time.Now}
}

func (s *Users) now() time.Time { return s.Now().UTC().Truncate(time.Microsecond) }

// List returns every user without password material.
func (s *Users) List(ctx context.Context, actor *model.User) ([]model.User, error) {
	if !policy.CanManageUsers(actor) {
		return nil, forbidden()
	}
	return s.Users.List(ctx)
}

// Stats returns the dashboard counters.
func (s *Users) Stats(ctx context.Context, actor *model.User) (model.Stats, error) {
	if !policy.CanManageUsers(actor) {
		return model.Stats{}, forbidden()
	}
	users, err := s.Users.Count(ctx)
	if err != nil {
		return model.Stats{}, fmt.Errorf("count users: %w", err)
	}
	total, unpublished, err := s.Posts.Counts(ctx)
	if err != nil {
		return model.Stats{}, fmt.Errorf("count posts: %w", err)
	}
	return model.Stats{TotalUsers: users, TotalPosts: total, UnpublishedPosts: unpublished}, nil
}

// ChangeRole sets the role of targetID.  role must be "user" or "admin".
func (s *Users) ChangeRole(ctx context.Context, actor *model.User, targetID, role string) (*model.User, error) {
	if !policy.CanManageUsers(actor) {
		return nil, forbidden()
	}
	r, err := model.ParseRole(role)
	if err != nil {
		return nil, invalid(`role must be "user" or "admin"`)
	}
	now := s.now()
	if err := s.Users.UpdateRole(ctx, targetID, r, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("user")
		}
		return nil, fmt.Errorf("update role: %w", err)
	}
	u, err := s.Users.GetByID(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("reload user: %w", err)
	}
	emit(ctx, s.Events, now, queue.EventUserRoleChanged, actor.ID, targetID, map[string]string{"role": r.String()})
	return u, nil
}

// Delete removes targetID with its posts and favorites.  Self-deletion is
// refused even for admins.
func (s *Users) Delete(ctx context.Context, actor *model.User, targetID string) error {
	if !policy.CanManageUsers(actor) {
		return forbidden()
	}
	target, err := s.Users.GetByID(ctx, targetID)
	if errors.Is(err, repository.ErrNotFound) {
		return notFound("user")
	}
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if !policy.CanDeleteAccount(actor, target) {
		return forbidden()
	}
	if err := s.Users.Delete(ctx, targetID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("user")
		}
		return fmt.Errorf("delete user: %w", err)
	}
	emit(ctx, s.Events, s.now(), queue.EventUserDeleted, actor.ID, targetID, nil)
	return nil
}
