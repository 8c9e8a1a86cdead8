package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/blog-platform/internal/model"
)

// PostRepo persists posts.  Reads join the author's public fields.
type PostRepo struct{ DB *sql.DB }

func NewPostRepo(db *sql.DB) *PostRepo { return &PostRepo{DB: db} }

// PostFilter narrows List.  A nil Published returns every post.
type PostFilter struct {
	Published *bool
	AuthorID  string
}

const postSelect = `SELECT p.id,p.title,p.content,p.image,p.author_id,p.is_published,p.category,p.tags,p.likes,
	p.created_at,p.updated_at,u.username,u.email
	FROM posts p JOIN users u ON u.id = p.author_id`

func scanPost(row rowScanner) (*model.Post, error) {
	var (
		p        model.Post
		image    sql.NullString
		tags     string
		username string
		email    string
	)
	if err := row.Scan(&p.ID, &p.Title, &p.Content, &image, &p.AuthorID, &p.IsPublished, &p.Category, &tags, &p.Likes,
		&p.CreatedAt, &p.UpdatedAt, &username, &email); err != nil {
		return nil, err
	}
	p.Image = image.String
	if tags != "" {
		if err := json.Unmarshal([]byte(tags), &p.Tags); err != nil {
			return nil, err
		}
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	p.Author = &model.UserSummary{ID: p.AuthorID, Username: username, Email: email}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	return string(b), err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// foldKeys returns the lower-cased category and tag list used by search.
// Folding happens here rather than in SQL because SQLite's LOWER only
// handles ASCII.
func foldKeys(p *model.Post) (category, tags string, err error) {
	folded := make([]string, len(p.Tags))
	for i, t := range p.Tags {
		folded[i] = strings.ToLower(t)
	}
	tags, err = encodeTags(folded)
	return strings.ToLower(p.Category), tags, err
}

// Create inserts p, assigning a uuid when ID is empty.
func (r *PostRepo) Create(ctx context.Context, p *model.Post) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	tags, err := encodeTags(p.Tags)
	if err != nil {
		return err
	}
	categoryKey, tagsKey, err := foldKeys(p)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx,
		`INSERT INTO posts (id,title,content,image,author_id,is_published,category,tags,category_key,tags_key,likes,created_at,updated_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.Title, p.Content, nullable(p.Image), p.AuthorID, p.IsPublished, p.Category, tags, categoryKey, tagsKey, p.Likes, p.CreatedAt, p.UpdatedAt)
	return classify(err)
}

// GetByID fetches a post with its author summary.
func (r *PostRepo) GetByID(ctx context.Context, id string) (*model.Post, error) {
	p, err := scanPost(r.DB.QueryRowContext(ctx, postSelect+" WHERE p.id=? LIMIT 1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// List returns posts matching f, newest first.
func (r *PostRepo) List(ctx context.Context, f PostFilter) ([]model.Post, error) {
	q := postSelect + " WHERE 1=1"
	var args []any
	if f.Published != nil {
		q += " AND p.is_published=?"
		args = append(args, *f.Published)
	}
	if f.AuthorID != "" {
		q += " AND p.author_id=?"
		args = append(args, f.AuthorID)
	}
	q += " ORDER BY p.created_at DESC, p.id DESC"
	return r.query(ctx, q, args...)
}

func (r *PostRepo) query(ctx context.Context, q string, args ...any) ([]model.Post, error) {
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// Update writes the editable fields of p: title, content, image,
// category, tags and updated_at.
func (r *PostRepo) Update(ctx context.Context, p *model.Post) error {
	tags, err := encodeTags(p.Tags)
	if err != nil {
		return err
	}
	categoryKey, tagsKey, err := foldKeys(p)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx,
		"UPDATE posts SET title=?, content=?, image=?, category=?, tags=?, category_key=?, tags_key=?, updated_at=? WHERE id=?",
		p.Title, p.Content, nullable(p.Image), p.Category, tags, categoryKey, tagsKey, p.UpdatedAt, p.ID)
	return affectedOne(res, err)
}

// SetPublished flips the publication flag of post id.
func (r *PostRepo) SetPublished(ctx context.Context, id string, published bool, now time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE posts SET is_published=?, updated_at=? WHERE id=?", published, now, id)
	return affectedOne(res, err)
}

// Delete removes post id and its favorites.
func (r *PostRepo) Delete(ctx context.Context, id string) error {
	return withTx(ctx, r.DB, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM favorites WHERE post_id=?", id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM posts WHERE id=?", id)
		return affectedOne(res, err)
	})
}

// Counts returns the total number of posts and how many are unpublished.
func (r *PostRepo) Counts(ctx context.Context) (total, unpublished int, err error) {
	err = r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(CASE WHEN is_published THEN 0 ELSE 1 END), 0) FROM posts").
		Scan(&total, &unpublished)
	return total, unpublished, err
}
