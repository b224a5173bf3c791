package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"blog/internal/models"
)

// ErrCursorNotFound is returned by List when the cursor names no post.
var ErrCursorNotFound = errors.New("cursor not found")

// PostStore persists posts. Ownership checks live in the posts service; the
// store writes whatever it is given.
type PostStore struct {
	conn
}

func NewPostStore(db *sql.DB, timeout time.Duration) *PostStore {
	return &PostStore{conn{db: db, timeout: timeout}}
}

const postSelect = `SELECT p.id, p.title, p.content, p.published, p.author_id, p.created_at, p.updated_at,
		u.id, u.username, u.name, u.avatar
	FROM posts p JOIN users u ON p.author_id = u.id`

// ListQuery selects a page of posts. Cursor, when set, is the id of the first
// post to include; the page continues in created_at DESC, id DESC order.
type ListQuery struct {
	ViewerID  string
	Published *bool
	Cursor    string
	Limit     int
}

func (s *PostStore) Insert(ctx context.Context, p *models.Post) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO posts(id, author_id, title, content, published, created_at, updated_at)
		VALUES(?,?,?,?,?,?,?)`,
		p.ID, p.AuthorID, p.Title, p.Content, p.Published, p.CreatedAt.UnixNano(), p.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("inserting post: %w", err)
	}
	return nil
}

// ByID returns (nil, nil) when the post does not exist.
func (s *PostStore) ByID(ctx context.Context, id string) (*models.Post, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	p, err := scanPost(s.db.QueryRowContext(ctx, postSelect+` WHERE p.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning post: %w", err)
	}
	return p, nil
}

// List returns up to q.Limit posts visible to q.ViewerID: every published
// post plus the viewer's own drafts.
func (s *PostStore) List(ctx context.Context, q ListQuery) ([]models.Post, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	wheres := []string{"(p.published = 1 OR p.author_id = ?)"}
	args := []any{q.ViewerID}

	if q.Published != nil {
		wheres = append(wheres, "p.published = ?")
		args = append(args, *q.Published)
	}

	if q.Cursor != "" {
		var created int64
		err := s.db.QueryRowContext(ctx, `SELECT created_at FROM posts WHERE id = ?`, q.Cursor).Scan(&created)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCursorNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("resolving cursor: %w", err)
		}
		wheres = append(wheres, "(p.created_at < ? OR (p.created_at = ? AND p.id <= ?))")
		args = append(args, created, created, q.Cursor)
	}

	query := postSelect + " WHERE " + strings.Join(wheres, " AND ") +
		" ORDER BY p.created_at DESC, p.id DESC LIMIT ?"
	args = append(args, q.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing posts: %w", err)
	}
	defer rows.Close()

	posts := []models.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning post: %w", err)
		}
		posts = append(posts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing posts: %w", err)
	}
	return posts, nil
}

// Update writes the mutable fields of p. author_id and created_at are never
// touched.
func (s *PostStore) Update(ctx context.Context, p *models.Post) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		UPDATE posts
		SET title = ?, content = ?, published = ?, updated_at = ?
		WHERE id = ?`, p.Title, p.Content, p.Published, p.UpdatedAt.UnixNano(), p.ID)
	if err != nil {
		return fmt.Errorf("updating post: %w", err)
	}
	return nil
}

// Delete reports whether a row was removed.
func (s *PostStore) Delete(ctx context.Context, id string) (bool, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting post: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deleting post: %w", err)
	}
	return n > 0, nil
}

func (s *PostStore) Count(ctx context.Context) (int, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting posts: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*models.Post, error) {
	var p models.Post
	var created, updated int64
	err := row.Scan(&p.ID, &p.Title, &p.Content, &p.Published, &p.AuthorID, &created, &updated,
		&p.Author.ID, &p.Author.Username, &p.Author.Name, &p.Author.Avatar)
	if err != nil {
		return nil, err
	}
	p.CreatedAt = fromUnixNano(created)
	p.UpdatedAt = fromUnixNano(updated)
	return &p, nil
}
