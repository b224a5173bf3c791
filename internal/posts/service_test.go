package posts

import (
	"context"
	"fmt"
	"testing"
	"time"

	"blog/internal/apperr"
	"blog/internal/db"
	"blog/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	svc   *Service
	alice models.PublicUser
	bob   models.PublicUser
}

func setupTestService(t *testing.T) *fixture {
	t.Helper()
	conn, err := db.Open(":memory:")
	require.NoError(t, err, "opening test database")
	require.NoError(t, db.Migrate(conn))
	t.Cleanup(func() { conn.Close() })

	users := db.NewUserStore(conn, time.Second)
	mk := func(email, username string) models.PublicUser {
		now := time.Now()
		u := &models.User{
			ID:           uuid.Must(uuid.NewV7()).String(),
			Email:        email,
			Username:     username,
			PasswordHash: "hash",
			Name:         username,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		require.NoError(t, users.Create(context.Background(), u))
		return *u.Public()
	}

	return &fixture{
		svc:   NewService(db.NewPostStore(conn, time.Second)),
		alice: mk("a@x.com", "alice"),
		bob:   mk("b@x.com", "bob"),
	}
}

func (f *fixture) create(t *testing.T, author models.PublicUser, title string, published bool) *models.Post {
	t.Helper()
	p, err := f.svc.Create(context.Background(), author, CreateInput{Title: title, Content: "B", Published: published})
	require.NoError(t, err)
	return p
}

func TestCreate(t *testing.T) {
	f := setupTestService(t)

	p := f.create(t, f.alice, "T", false)
	assert.Equal(t, f.alice.ID, p.AuthorID)
	assert.Equal(t, "alice", p.Author.Username)
	assert.False(t, p.Published, "published defaults to false")

	_, err := f.svc.Create(context.Background(), f.alice, CreateInput{Title: "  ", Content: "B"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = f.svc.Create(context.Background(), f.alice, CreateInput{Title: "T"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestUpdate_PartialFields(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()
	p := f.create(t, f.alice, "T", false)

	title := "T2"
	updated, err := f.svc.Update(ctx, f.alice, p.ID, UpdateInput{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "T2", updated.Title)
	assert.Equal(t, "B", updated.Content, "untouched field kept")
	assert.False(t, updated.Published)

	published := true
	updated, err = f.svc.Update(ctx, f.alice, p.ID, UpdateInput{Published: &published})
	require.NoError(t, err)
	assert.Equal(t, "T2", updated.Title)
	assert.True(t, updated.Published)

	empty := ""
	_, err = f.svc.Update(ctx, f.alice, p.ID, UpdateInput{Content: &empty})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestUpdateDelete_ForbiddenForNonAuthor(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()
	p := f.create(t, f.alice, "T", true)

	title := "hijacked"
	_, err := f.svc.Update(ctx, f.bob, p.ID, UpdateInput{Title: &title})
	assert.True(t, apperr.Is(err, apperr.KindForbidden), "got %v", err)

	err = f.svc.Delete(ctx, f.bob, p.ID)
	assert.True(t, apperr.Is(err, apperr.KindForbidden), "got %v", err)

	stored, err := f.svc.ByID(ctx, nil, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "T", stored.Title, "stored content unchanged")
}

func TestUpdateDelete_NotFound(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()

	title := "x"
	_, err := f.svc.Update(ctx, f.alice, "missing", UpdateInput{Title: &title})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	err = f.svc.Delete(ctx, f.alice, "missing")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestDelete_Twice(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()
	p := f.create(t, f.alice, "T", true)

	require.NoError(t, f.svc.Delete(ctx, f.alice, p.ID))

	err := f.svc.Delete(ctx, f.alice, p.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestByID_DraftVisibility(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()
	draft := f.create(t, f.alice, "Draft", false)

	got, err := f.svc.ByID(ctx, &f.alice, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, "Draft", got.Title)

	_, err = f.svc.ByID(ctx, &f.bob, draft.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = f.svc.ByID(ctx, nil, draft.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = f.svc.ByID(ctx, nil, "missing")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestList_Pagination(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()

	var created []*models.Post
	for i := 1; i <= 11; i++ {
		created = append(created, f.create(t, f.alice, fmt.Sprintf("Post %d", i), true))
	}

	limit := 10
	page, err := f.svc.List(ctx, nil, ListInput{Limit: &limit})
	require.NoError(t, err)
	require.Len(t, page.Posts, 10)
	assert.Equal(t, created[10].ID, page.Posts[0].ID, "newest first")
	assert.Equal(t, created[0].ID, page.NextCursor, "the 11th post in list order is the oldest")
	for _, p := range page.Posts {
		assert.NotEqual(t, page.NextCursor, p.ID, "cursor post is not in the visible page")
	}

	page, err = f.svc.List(ctx, nil, ListInput{Limit: &limit, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, page.Posts, 1)
	assert.Equal(t, created[0].ID, page.Posts[0].ID)
	assert.Empty(t, page.NextCursor)
}

func TestList_DefaultLimitAndBounds(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()
	for i := 0; i < 12; i++ {
		f.create(t, f.alice, "P", true)
	}

	page, err := f.svc.List(ctx, nil, ListInput{})
	require.NoError(t, err)
	assert.Len(t, page.Posts, DefaultLimit)
	assert.NotEmpty(t, page.NextCursor)

	tooMany := MaxLimit + 1
	_, err = f.svc.List(ctx, nil, ListInput{Limit: &tooMany})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = f.svc.List(ctx, nil, ListInput{Cursor: "missing"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestList_DraftsOnlyForAuthor(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()
	f.create(t, f.alice, "Public", true)
	f.create(t, f.alice, "Draft", false)

	page, err := f.svc.List(ctx, nil, ListInput{})
	require.NoError(t, err)
	assert.Len(t, page.Posts, 1)

	page, err = f.svc.List(ctx, &f.bob, ListInput{})
	require.NoError(t, err)
	assert.Len(t, page.Posts, 1)

	page, err = f.svc.List(ctx, &f.alice, ListInput{})
	require.NoError(t, err)
	assert.Len(t, page.Posts, 2)

	published := true
	page, err = f.svc.List(ctx, &f.alice, ListInput{Published: &published})
	require.NoError(t, err)
	require.Len(t, page.Posts, 1)
	assert.Equal(t, "Public", page.Posts[0].Title)
}
