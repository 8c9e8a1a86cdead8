package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/iliyamo/blog-platform/internal/model"
)

// FavoriteRepo persists favorites and keeps posts.likes in step with them.
type FavoriteRepo struct{ DB *sql.DB }

func NewFavoriteRepo(db *sql.DB) *FavoriteRepo { return &FavoriteRepo{DB: db} }

// Add inserts f and increments the post's like counter in the same
// transaction.  A second favorite for the same (user, post) pair returns
// *DuplicateError with Field "favorite".
func (r *FavoriteRepo) Add(ctx context.Context, f *model.Favorite) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return withTx(ctx, r.DB, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO favorites (id,user_id,post_id,created_at) VALUES (?,?,?,?)",
			f.ID, f.UserID, f.PostID, f.CreatedAt)
		if err != nil {
			return classify(err)
		}
		res, err := tx.ExecContext(ctx, "UPDATE posts SET likes = likes + 1 WHERE id=?", f.PostID)
		return affectedOne(res, err)
	})
}

// Get returns the favorite of userID on postID.
func (r *FavoriteRepo) Get(ctx context.Context, userID, postID string) (*model.Favorite, error) {
	var f model.Favorite
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,user_id,post_id,created_at FROM favorites WHERE user_id=? AND post_id=? LIMIT 1",
		userID, postID).Scan(&f.ID, &f.UserID, &f.PostID, &f.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	f.CreatedAt = f.CreatedAt.UTC()
	return &f, nil
}

// Remove deletes favorite id and decrements the post's like counter.
func (r *FavoriteRepo) Remove(ctx context.Context, f *model.Favorite) error {
	return withTx(ctx, r.DB, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM favorites WHERE id=?", f.ID)
		if err := affectedOne(res, err); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			"UPDATE posts SET likes = CASE WHEN likes > 0 THEN likes - 1 ELSE 0 END WHERE id=?", f.PostID)
		return err
	})
}

// ListPostsByUser returns the posts favorited by userID, most recently
// favorited first.
func (r *FavoriteRepo) ListPostsByUser(ctx context.Context, userID string) ([]model.Post, error) {
	posts := &PostRepo{DB: r.DB}
	return posts.query(ctx,
		postSelect+" JOIN favorites f ON f.post_id = p.id WHERE f.user_id=? ORDER BY f.created_at DESC, f.id DESC",
		userID)
}

// CountByPost returns how many users favorited postID.
func (r *FavoriteRepo) CountByPost(ctx context.Context, postID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM favorites WHERE post_id=?", postID).Scan(&n)
	return n, err
}
