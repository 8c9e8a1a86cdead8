package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/blog-platform/internal/model"
	"github.com/iliyamo/blog-platform/internal/policy"
	"github.com/iliyamo/blog-platform/internal/queue"
	"github.com/iliyamo/blog-platform/internal/repository"
)

// RemoveImage as the image of an update clears the post's image.
const RemoveImage = "REMOVE_IMAGE"

// PostInput carries the fields of a new post.
type PostInput struct {
	Title    string
	Content  string
	Image    string
	Category string
	Tags     []string
}

// PostPatch carries an update.  Empty strings and nil pointers keep the
// stored value.
type PostPatch struct {
	Title    string
	Content  string
	Image    *string
	Category string
	Tags     []string // nil keeps the stored tags
}

// Posts implements post use cases.
type Posts struct {
	Posts  *repository.PostRepo
	Events EventPublisher
	Now    func() time.Time
}

func NewPosts(posts *repository.PostRepo, events EventPublisher) *Posts {
	return &Posts{Posts: posts, Events: events, Now: time.Now}
}

func (s *Posts) now() time.Time { return s.Now().UTC().Truncate(time.Microsecond) }

func (s *Posts) load(ctx context.Context, id string) (*model.Post, error) {
	p, err := s.Posts.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound("post")
	}
	if err != nil {
		return nil, fmt.Errorf("load post: %w", err)
	}
	return p, nil
}

// List returns every post to admins and published posts to everyone
// else, newest first.  viewer may be nil.
func (s *Posts) List(ctx context.Context, viewer *model.User) ([]model.Post, error) {
	var f repository.PostFilter
	if !viewer.IsAdmin() {
		published := true
		f.Published = &published
	}
	return s.Posts.List(ctx, f)
}

// SearchPage is one page of search results.
type SearchPage struct {
	Posts    []model.Post
	Total    int64
	Page     int
	PageSize int
}

const maxPageSize = 100

// Search filters posts by text, category and tag.  Visibility follows
// List: admins search everything, everyone else published posts only.
func (s *Posts) Search(ctx context.Context, viewer *model.User, q repository.PostSearchQuery) (SearchPage, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = 20
	}
	if q.PageSize > maxPageSize {
		q.PageSize = maxPageSize
	}
	if !viewer.IsAdmin() {
		published := true
		q.Published = &published
	}
	posts, total, err := s.Posts.Search(ctx, q)
	if err != nil {
		return SearchPage{}, fmt.Errorf("search posts: %w", err)
	}
	return SearchPage{Posts: posts, Total: total, Page: q.Page, PageSize: q.PageSize}, nil
}

// ListUnpublished returns the review queue of drafts.
func (s *Posts) ListUnpublished(ctx context.Context, viewer *model.User) ([]model.Post, error) {
	if !policy.CanPublishPost(viewer) {
		return nil, forbidden()
	}
	published := false
	return s.Posts.List(ctx, repository.PostFilter{Published: &published})
}

// Get returns post id when viewer may see it.
func (s *Posts) Get(ctx context.Context, viewer *model.User, id string) (*model.Post, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanViewPost(viewer, p) {
		return nil, forbidden()
	}
	return p, nil
}

// Create stores a new unpublished post owned by author.
func (s *Posts) Create(ctx context.Context, author *model.User, in PostInput) (*model.Post, error) {
	if author == nil {
		return nil, unauthenticated(nil)
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Image = strings.TrimSpace(in.Image)
	if err := validateTitle(in.Title); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, invalid("content is required")
	}
	if err := validateImage(in.Image); err != nil {
		return nil, err
	}
	category := strings.TrimSpace(in.Category)
	if category == "" {
		category = model.DefaultCategory
	}
	now := s.now()
	p := &model.Post{
		Title:     in.Title,
		Content:   in.Content,
		Image:     in.Image,
		AuthorID:  author.ID,
		Author:    &model.UserSummary{ID: author.ID, Username: author.Username, Email: author.Email},
		Category:  category,
		Tags:      NormalizeTags(in.Tags),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Posts.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	emit(ctx, s.Events, now, queue.EventPostCreated, author.ID, p.ID, nil)
	return p, nil
}

// Update applies patch to post id when actor may modify it.
func (s *Posts) Update(ctx context.Context, actor *model.User, id string, patch PostPatch) (*model.Post, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanModifyPost(actor, p) {
		return nil, forbidden()
	}
	if t := strings.TrimSpace(patch.Title); t != "" {
		if err := validateTitle(t); err != nil {
			return nil, err
		}
		p.Title = t
	}
	if strings.TrimSpace(patch.Content) != "" {
		p.Content = patch.Content
	}
	if patch.Image != nil {
		img := strings.TrimSpace(*patch.Image)
		if img == RemoveImage {
			img = ""
		} else if err := validateImage(img); err != nil {
			return nil, err
		}
		p.Image = img
	}
	if c := strings.TrimSpace(patch.Category); c != "" {
		p.Category = c
	}
	if patch.Tags != nil {
		p.Tags = NormalizeTags(patch.Tags)
	}
	p.UpdatedAt = s.now()
	if err := s.Posts.Update(ctx, p); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("post")
		}
		return nil, fmt.Errorf("update post: %w", err)
	}
	emit(ctx, s.Events, p.UpdatedAt, queue.EventPostUpdated, actor.ID, p.ID, nil)
	return p, nil
}

// Delete removes post id and its favorites.
func (s *Posts) Delete(ctx context.Context, actor *model.User, id string) error {
	p, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !policy.CanModifyPost(actor, p) {
		return forbidden()
	}
	if err := s.Posts.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("post")
		}
		return fmt.Errorf("delete post: %w", err)
	}
	emit(ctx, s.Events, s.now(), queue.EventPostDeleted, actor.ID, id, nil)
	return nil
}

// SetPublished changes the publication flag; admins only.
func (s *Posts) SetPublished(ctx context.Context, actor *model.User, id string, published bool) (*model.Post, error) {
	if !policy.CanPublishPost(actor) {
		return nil, forbidden()
	}
	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := s.Posts.SetPublished(ctx, id, published, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("post")
		}
		return nil, fmt.Errorf("publish post: %w", err)
	}
	p.IsPublished = published
	p.UpdatedAt = now
	emit(ctx, s.Events, now, queue.EventPostPublished, actor.ID, id, map[string]string{"is_published": fmt.Sprint(published)})
	return p, nil
}
