package repository

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/iliyamo/blog-platform/internal/model"
)

// PostSearchQuery defines filters & pagination for searching posts.
type PostSearchQuery struct {
	Text      string // matched against title and content
	Category  string
	Tag       string
	Published *bool // nil searches every post
	Page      int
	PageSize  int
}

// likeEscape escapes LIKE wildcards with '!', which both MySQL and SQLite
// accept through an explicit ESCAPE clause.
func likeEscape(s string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return r.Replace(s)
}

// Search returns one page of posts matching q, newest first, and the
// total number of matches.
func (r *PostRepo) Search(ctx context.Context, q PostSearchQuery) ([]model.Post, int64, error) {
	where := []string{}
	args := []any{}

	if q.Published != nil {
		where = append(where, "p.is_published = ?")
		args = append(args, *q.Published)
	}
	if t := strings.TrimSpace(q.Text); t != "" {
		where = append(where, "(LOWER(p.title) LIKE ? ESCAPE '!' OR LOWER(p.content) LIKE ? ESCAPE '!')")
		pat := "%" + likeEscape(strings.ToLower(t)) + "%"
		args = append(args, pat, pat)
	}
	if c := strings.TrimSpace(q.Category); c != "" {
		where = append(where, "p.category_key = ?")
		args = append(args, strings.ToLower(c))
	}
	if tag := strings.TrimSpace(q.Tag); tag != "" {
		// Tags are stored as a JSON array; match the quoted element.
		quoted, err := json.Marshal(strings.ToLower(tag))
		if err != nil {
			return nil, 0, err
		}
		where = append(where, "p.tags_key LIKE ? ESCAPE '!'")
		args = append(args, "%"+likeEscape(string(quoted))+"%")
	}

	cond := "1=1"
	if len(where) > 0 {
		cond = strings.Join(where, " AND ")
	}

	var total int64
	countSQL := `SELECT COUNT(*) FROM posts p WHERE ` + cond
	if err := r.DB.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	if q.PageSize < 1 {
		q.PageSize = 20
	}
	if q.Page < 1 {
		q.Page = 1
	}
	dataSQL := postSelect + ` WHERE ` + cond + ` ORDER BY p.created_at DESC, p.id DESC LIMIT ? OFFSET ?`
	argsData := append(append([]any{}, args...), q.PageSize, (q.Page-1)*q.PageSize)

	out, err := r.query(ctx, dataSQL, argsData...)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
