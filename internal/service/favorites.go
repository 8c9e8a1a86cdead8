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

// Favorites implements favorite use cases.
type Favorites struct {
	Favorites *repository.FavoriteRepo
	Posts     *repository.PostRepo
	Events    EventPublisher
	Now       func() time.Time
}

func NewFavorites(favs *repository.FavoriteRepo, posts *repository.PostRepo, events EventPublisher) *Favorites {
	return &Favorites{Favorites: favs, Posts: posts, Events: events, Now: time.Now}
}

func (s *Favorites) now() time.Time { return s.Now().UTC().Truncate(time.Microsecond) }

// Add favorites post postID for u.  The post must exist and be visible to
// u; a second favorite of the same post is a Conflict.
func (s *Favorites) Add(ctx context.Context, u *model.User, postID string) (*model.Favorite, error) {
	if u == nil {
		return nil, unauthenticated(nil)
	}
	p, err := s.Posts.GetByID(ctx, postID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound("post")
	}
	if err != nil {
		return nil, fmt.Errorf("load post: %w", err)
	}
	if !policy.CanViewPost(u, p) {
		return nil, forbidden()
	}
	now := s.now()
	f := &model.Favorite{UserID: u.ID, PostID: postID, CreatedAt: now}
	if err := s.Favorites.Add(ctx, f); err != nil {
		if repository.IsDuplicate(err, "favorite") {
			return nil, conflict("already favorited", err)
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("post")
		}
		return nil, fmt.Errorf("add favorite: %w", err)
	}
	emit(ctx, s.Events, now, queue.EventFavoriteAdded, u.ID, postID, nil)
	return f, nil
}

// Remove deletes u's favorite of postID.
func (s *Favorites) Remove(ctx context.Context, u *model.User, postID string) error {
	if u == nil {
		return unauthenticated(nil)
	}
	f, err := s.Favorites.Get(ctx, u.ID, postID)
	if errors.Is(err, repository.ErrNotFound) {
		return notFound("favorite")
	}
	if err != nil {
		return fmt.Errorf("load favorite: %w", err)
	}
	if !policy.CanModifyFavorite(u, f) {
		return forbidden()
	}
	if err := s.Favorites.Remove(ctx, f); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("favorite")
		}
		return fmt.Errorf("remove favorite: %w", err)
	}
	emit(ctx, s.Events, s.now(), queue.EventFavoriteRemoved, u.ID, postID, nil)
	return nil
}

// ListMine returns the posts u has favorited.  Posts that were
// unpublished after being favorited stay hidden unless u may view them.
func (s *Favorites) ListMine(ctx context.Context, u *model.User) ([]model.Post, error) {
	if u == nil {
		return nil, unauthenticated(nil)
	}
	posts, err := s.Favorites.ListPostsByUser(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	visible := posts[:0]
	for _, p := range posts {
		if policy.CanViewPost(u, &p) {
			visible = append(visible, p)
		}
	}
	return visible, nil
}

// Count returns how many users favorited postID.  The post must exist
// and be visible to viewer, which may be nil.
func (s *Favorites) Count(ctx context.Context, viewer *model.User, postID string) (int, error) {
	p, err := s.Posts.GetByID(ctx, postID)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, notFound("post")
	}
	if err != nil {
		return 0, fmt.Errorf("load post: %w", err)
	}
	if !policy.CanViewPost(viewer, p) {
		return 0, forbidden()
	}
	return s.Favorites.CountByPost(ctx, postID)
}
