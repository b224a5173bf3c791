// Package posts implements post CRUD with ownership checks. Drafts
// (unpublished posts) are visible to their author only.
package posts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"blog/internal/apperr"
	"blog/internal/db"
	"blog/internal/models"
	"blog/internal/validate"

	"github.com/google/uuid"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

type Store interface {
	Insert(ctx context.Context, p *models.Post) error
	ByID(ctx context.Context, id string) (*models.Post, error)
	List(ctx context.Context, q db.ListQuery) ([]models.Post, error)
	Update(ctx context.Context, p *models.Post) error
	Delete(ctx context.Context, id string) (bool, error)
}

type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

type ListInput struct {
	Limit     *int   `json:"limit,omitempty" validate:"omitempty,min=1,max=100"`
	Cursor    string `json:"cursor,omitempty"`
	Published *bool  `json:"published,omitempty"`
}

type CreateInput struct {
	Title     string `json:"title" validate:"required,max=200"`
	Content   string `json:"content" validate:"required"`
	Published bool   `json:"published"`
}

// UpdateInput carries only the fields to change; nil leaves a field alone.
type UpdateInput struct {
	Title     *string `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Content   *string `json:"content,omitempty" validate:"omitempty,min=1"`
	Published *bool   `json:"published,omitempty"`
}

func viewerID(viewer *models.PublicUser) string {
	if viewer == nil {
		return ""
	}
	return viewer.ID
}

// List returns one page, newest first. It asks the store for limit+1 rows;
// the extra row, if any, becomes NextCursor and is not part of the page.
func (s *Service) List(ctx context.Context, viewer *models.PublicUser, in ListInput) (*models.PostPage, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	limit := DefaultLimit
	if in.Limit != nil {
		limit = *in.Limit
	}

	posts, err := s.store.List(ctx, db.ListQuery{
		ViewerID:  viewerID(viewer),
		Published: in.Published,
		Cursor:    in.Cursor,
		Limit:     limit + 1,
	})
	if errors.Is(err, db.ErrCursorNotFound) {
		return nil, apperr.Validation("invalid input", apperr.FieldError{Field: "cursor", Message: "does not name a post"})
	}
	if err != nil {
		return nil, fmt.Errorf("listing posts: %w", err)
	}

	page := &models.PostPage{Posts: posts}
	if len(posts) > limit {
		page.NextCursor = posts[limit].ID
		page.Posts = posts[:limit]
	}
	return page, nil
}

// ByID returns the post, hiding other users' drafts behind a not-found.
func (s *Service) ByID(ctx context.Context, viewer *models.PublicUser, id string) (*models.Post, error) {
	p, err := s.store.ByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading post: %w", err)
	}
	if p == nil || (!p.Published && p.AuthorID != viewerID(viewer)) {
		return nil, apperr.NotFound("post not found")
	}
	return p, nil
}

// Create stores a post authored by author. The author never comes from input.
func (s *Service) Create(ctx context.Context, author models.PublicUser, in CreateInput) (*models.Post, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generating post id: %w", err)
	}
	now := s.now().UTC()
	p := &models.Post{
		ID:        id.String(),
		Title:     in.Title,
		Content:   in.Content,
		Published: in.Published,
		AuthorID:  author.ID,
		Author: models.Author{
			ID:       author.ID,
			Username: author.Username,
			Name:     author.Name,
			Avatar:   author.Avatar,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Insert(ctx, p); err != nil {
		return nil, fmt.Errorf("creating post: %w", err)
	}
	return p, nil
}

// owned loads id and checks that actor wrote it.
func (s *Service) owned(ctx context.Context, actor models.PublicUser, id string) (*models.Post, error) {
	p, err := s.store.ByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading post: %w", err)
	}
	if p == nil {
		return nil, apperr.NotFound("post not found")
	}
	if p.AuthorID != actor.ID {
		return nil, apperr.Forbidden("you may only change your own posts")
	}
	return p, nil
}

func (s *Service) Update(ctx context.Context, actor models.PublicUser, id string, in UpdateInput) (*models.Post, error) {
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		in.Title = &title
	}
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	p, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		p.Title = *in.Title
	}
	if in.Content != nil {
		p.Content = *in.Content
	}
	if in.Published != nil {
		p.Published = *in.Published
	}
	p.UpdatedAt = s.now().UTC()

	if err := s.store.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("updating post: %w", err)
	}
	return p, nil
}

func (s *Service) Delete(ctx context.Context, actor models.PublicUser, id string) error {
	if _, err := s.owned(ctx, actor, id); err != nil {
		return err
	}
	deleted, err := s.store.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("deleting post: %w", err)
	}
	if !deleted {
		return apperr.NotFound("post not found")
	}
	return nil
}
