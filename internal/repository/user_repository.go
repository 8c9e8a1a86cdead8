package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/blog-platform/internal/model"
)

// UserRepo persists users.  Password hashes are never selected unless a
// caller asks for them with IncludeSecrets.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// FindOption tunes a user lookup.
type FindOption func(*findOptions)

type findOptions struct{ secrets bool }

// IncludeSecrets loads the password hash into LocalCredential.Hash.
func IncludeSecrets(o *findOptions) { o.secrets = true }

func (r *UserRepo) selectColumns(opts []FindOption) string {
	var o findOptions
	for _, fn := range opts {
		fn(&o)
	}
	hash := "CASE WHEN password_hash IS NULL THEN NULL ELSE '' END"
	if o.secrets {
		hash = "password_hash"
	}
	return "id,username,email," + hash + ",external_provider,external_id,role,created_at,updated_at"
}

type rowScanner interface{ Scan(dest ...any) error }

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u                    model.User
		hash, provider, subj sql.NullString
		role                 string
	)
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &hash, &provider, &subj, &role, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	parsed, err := model.ParseRole(role)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", u.ID, err)
	}
	u.Role = parsed
	switch {
	case hash.Valid:
		u.Credential = model.LocalCredential{Hash: hash.String}
	case subj.Valid:
		u.Credential = model.ExternalCredential{Provider: provider.String, Subject: subj.String}
	default:
		return nil, fmt.Errorf("user %s has no credential", u.ID)
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}

func (r *UserRepo) getOne(ctx context.Context, where string, args []any, opts []FindOption) (*model.User, error) {
	q := "SELECT " + r.selectColumns(opts) + " FROM users WHERE " + where + " LIMIT 1"
	u, err := scanUser(r.DB.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

// Create inserts u.  An empty ID is replaced by a new uuid.  Unique
// violations surface as *DuplicateError.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if !u.Role.Valid() {
		return fmt.Errorf("invalid role %d", u.Role)
	}
	var hash, provider, subject any
	switch c := u.Credential.(type) {
	case model.LocalCredential:
		if c.Hash == "" {
			return errors.New("local credential without hash")
		}
		hash = c.Hash
	case model.ExternalCredential:
		provider, subject = c.Provider, c.Subject
	default:
		return errors.New("user has no credential")
	}
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO users (id,username,email,password_hash,external_provider,external_id,role,created_at,updated_at)
		 VALUES (?,?,?,?,?,?,?,?,?)`,
		u.ID, u.Username, strings.ToLower(u.Email), hash, provider, subject, u.Role.String(), u.CreatedAt, u.UpdatedAt)
	return classify(err)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string, opts ...FindOption) (*model.User, error) {
	return r.getOne(ctx, "id=?", []any{id}, opts)
}

// GetByLogin fetches a user whose username or email equals identifier.
// Usernames may not contain '@', so at most one row matches.
func (r *UserRepo) GetByLogin(ctx context.Context, identifier string, opts ...FindOption) (*model.User, error) {
	identifier = strings.TrimSpace(identifier)
	return r.getOne(ctx, "username=? OR email=?", []any{identifier, strings.ToLower(identifier)}, opts)
}

// GetByExternal fetches the account linked to subject at provider.
func (r *UserRepo) GetByExternal(ctx context.Context, provider, subject string) (*model.User, error) {
	return r.getOne(ctx, "external_provider=? AND external_id=?", []any{provider, subject}, nil)
}

// List returns every user, newest first, without secrets.
func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+r.selectColumns(nil)+" FROM users ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// UpdateRole changes the role of user id.
func (r *UserRepo) UpdateRole(ctx context.Context, id string, role model.Role, now time.Time) error {
	if !role.Valid() {
		return fmt.Errorf("invalid role %d", role)
	}
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET role=?, updated_at=? WHERE id=?", role.String(), now, id)
	return affectedOne(res, err)
}

// UpdatePassword replaces the hash of a local account.  External
// accounts are not touched and report ErrNotFound.
func (r *UserRepo) UpdatePassword(ctx context.Context, id, hash string, now time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_hash=?, updated_at=? WHERE id=? AND password_hash IS NOT NULL", hash, now, id)
	return affectedOne(res, err)
}

// Count returns the number of users.
func (r *UserRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&n)
	return n, err
}

// Delete removes user id together with everything that references it,
// in one transaction: likes given by the user are withdrawn, then the
// user's favorites, favorites on the user's posts, the posts and finally
// the user row are deleted.
func (r *UserRepo) Delete(ctx context.Context, id string) error {
	return withTx(ctx, r.DB, func(tx *sql.Tx) error {
		var one int
		err := tx.QueryRowContext(ctx, "SELECT 1 FROM users WHERE id=?", id).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		stmts := []string{
			`UPDATE posts SET likes = CASE WHEN likes > 0 THEN likes - 1 ELSE 0 END
			 WHERE id IN (SELECT post_id FROM favorites WHERE user_id=?)`,
			`DELETE FROM favorites WHERE user_id=?`,
			`DELETE FROM favorites WHERE post_id IN (SELECT id FROM posts WHERE author_id=?)`,
			`DELETE FROM posts WHERE author_id=?`,
			`DELETE FROM users WHERE id=?`,
		}
		for _, s := range stmts {
			if _, err := tx.ExecContext(ctx, s, id); err != nil {
				return err
			}
		}
		return nil
	})
}

// withTx runs fn inside a transaction, committing on success.
func withTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func affectedOne(res sql.Result, err error) error {
	if err != nil {
		return classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
