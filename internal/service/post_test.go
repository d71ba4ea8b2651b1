package service

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/blog/internal/apperror"
	"github.com/sakif/blog/internal/validation"
)

// =========================================================================
// CREATE
// =========================================================================

func TestCreatePost(t *testing.T) {
	env := newTestEnv(t)
	author := env.user(t, "writer")
	cat := env.category(t, "Go")

	p, err := env.posts.Create(context.Background(), author, PostInput{
		Title:       "  Hello, world  ",
		Content:     "First!",
		Category:    strconv.FormatInt(cat.ID, 10),
		IsPublished: true,
		Image:       upload("png-bytes"),
	})
	require.NoError(t, err)

	assert.Equal(t, "Hello, world", p.Title)
	assert.Equal(t, author.ID, p.AuthorID)
	require.NotNil(t, p.CategoryID)
	assert.Equal(t, cat.ID, *p.CategoryID)
	assert.False(t, p.PublishedDate.IsZero())
	assert.True(t, env.images.has(p.Image), "image stored under %q", p.Image)
}

func TestCreatePost_ShortTitleStoresNothing(t *testing.T) {
	env := newTestEnv(t)
	author := env.user(t, "writer")

	_, err := env.posts.Create(context.Background(), author, PostInput{
		Title:   "Hi",
		Content: "too short a title",
		Image:   upload("png-bytes"),
	})
	require.ErrorIs(t, err, apperror.ErrValidation)
	assert.Equal(t, validation.TitleTooShort, apperror.FieldErrors(err)["title"])

	mine, err := env.posts.ListByAuthor(context.Background(), author.ID)
	require.NoError(t, err)
	assert.Empty(t, mine)
	assert.Empty(t, env.images.files, "no image saved for an invalid form")
}

func TestCreatePost_FieldErrors(t *testing.T) {
	env := newTestEnv(t)
	author := env.user(t, "writer")

	tests := []struct {
		name  string
		in    PostInput
		field string
		want  string
	}{
		{"missing content", PostInput{Title: "A fine title"}, "content", "This field is required."},
		{"unknown category", PostInput{Title: "A fine title", Content: "x", Category: "999"}, "category", msgInvalidChoice},
		{"malformed category", PostInput{Title: "A fine title", Content: "x", Category: "abc"}, "category", msgInvalidChoice},
		{"not an image", PostInput{Title: "A fine title", Content: "x", Image: upload("not-an-image")}, "image", msgInvalidImage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.posts.Create(context.Background(), author, tt.in)
			require.ErrorIs(t, err, apperror.ErrValidation)
			assert.Equal(t, tt.want, apperror.FieldErrors(err)[tt.field])
		})
	}
}

// =========================================================================
// UPDATE / DELETE
// =========================================================================

func TestUpdatePost_ShortTitleLeavesPostUnchanged(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.user(t, "writer")
	p := env.post(t, author, PostInput{Title: "Original title", Content: "body"})

	_, err := env.posts.Update(ctx, author, p.ID, PostInput{Title: "Hey", Content: "new body"})
	require.ErrorIs(t, err, apperror.ErrValidation)

	got, err := env.posts.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Original title", got.Title)
	assert.Equal(t, "body", got.Content)
}

func TestUpdatePost_OnlyAuthor(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.user(t, "writer")
	intruder := env.user(t, "intruder")
	p := env.post(t, author, PostInput{Title: "Original title", Content: "body"})

	_, err := env.posts.Update(ctx, intruder, p.ID, PostInput{Title: "Hijacked title", Content: "x"})
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	err = env.posts.Delete(ctx, intruder, p.ID)
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	_, err = env.posts.Update(ctx, nil, p.ID, PostInput{Title: "Anonymous edit", Content: "x"})
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	got, err := env.posts.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Original title", got.Title)
}

func TestUpdatePost_KeepsAuthorAndDate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.user(t, "writer")
	p := env.post(t, author, PostInput{Title: "Original title", IsPublished: true})

	updated, err := env.posts.Update(ctx, author, p.ID, PostInput{Title: "Edited title", Content: "new", IsPublished: false})
	require.NoError(t, err)

	got, err := env.posts.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Edited title", got.Title)
	assert.False(t, got.IsPublished)
	assert.Equal(t, author.ID, got.AuthorID)
	assert.True(t, got.PublishedDate.Equal(p.PublishedDate))
	assert.Equal(t, updated.ID, got.ID)
}

func TestUpdatePost_Images(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.user(t, "writer")
	p := env.post(t, author, PostInput{Title: "Picture post", Image: upload("first")})
	first := p.Image

	// no upload keeps the image
	kept, err := env.posts.Update(ctx, author, p.ID, PostInput{Title: "Picture post", Content: "x"})
	require.NoError(t, err)
	assert.Equal(t, first, kept.Image)
	assert.True(t, env.images.has(first))

	// a new upload replaces and removes the old file
	replaced, err := env.posts.Update(ctx, author, p.ID, PostInput{Title: "Picture post", Content: "x", Image: upload("second")})
	require.NoError(t, err)
	assert.NotEqual(t, first, replaced.Image)
	assert.False(t, env.images.has(first))
	assert.True(t, env.images.has(replaced.Image))

	// clearing drops it
	cleared, err := env.posts.Update(ctx, author, p.ID, PostInput{Title: "Picture post", Content: "x", ClearImage: true})
	require.NoError(t, err)
	assert.Empty(t, cleared.Image)
	assert.False(t, env.images.has(replaced.Image))
}

func TestDeletePost(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.user(t, "writer")
	p := env.post(t, author, PostInput{Title: "Short lived", Image: upload("img")})

	require.NoError(t, env.posts.Delete(ctx, author, p.ID))

	_, err := env.posts.Get(ctx, p.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.False(t, env.images.has(p.Image))

	assert.ErrorIs(t, env.posts.Delete(ctx, author, p.ID), apperror.ErrNotFound)
}

// =========================================================================
// LISTINGS
// =========================================================================

func TestHome_LimitsAndOrder(t *testing.T) {
	env := newTestEnv(t)
	author := env.user(t, "writer")

	for i := 1; i <= 7; i++ {
		in := PostInput{Title: "Published " + strconv.Itoa(i), IsPublished: true}
		if i%2 == 1 {
			in.Image = upload("img")
		}
		env.post(t, author, in)
		time.Sleep(2 * time.Millisecond)
	}
	env.post(t, author, PostInput{Title: "Draft with picture", Image: upload("img")})

	home, err := env.posts.Home(context.Background())
	require.NoError(t, err)

	featured := make([]string, 0, len(home.Featured))
	for _, p := range home.Featured {
		featured = append(featured, p.Title)
	}
	latest := make([]string, 0, len(home.Latest))
	for _, p := range home.Latest {
		latest = append(latest, p.Title)
	}

	assert.Equal(t, []string{"Published 7", "Published 5", "Published 3"}, featured)
	assert.Equal(t, []string{"Published 7", "Published 6", "Published 5", "Published 4", "Published 3"}, latest)
}

func TestListByCategory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.user(t, "writer")
	travel := env.category(t, "Travel")
	env.category(t, "Food")

	env.post(t, author, PostInput{Title: "Trip to Oslo", Category: strconv.FormatInt(travel.ID, 10), IsPublished: true})
	env.post(t, author, PostInput{Title: "Uncategorised", IsPublished: true})

	page, err := env.posts.ListByCategory(ctx, strconv.FormatInt(travel.ID, 10))
	require.NoError(t, err)
	require.NotNil(t, page.Selected)
	assert.Equal(t, "Travel", page.Selected.Name)
	require.Len(t, page.Posts, 1)
	assert.Equal(t, "Trip to Oslo", page.Posts[0].Title)
	assert.Len(t, page.Categories, 2)

	for _, raw := range []string{"", "abc", "-1", "9999"} {
		page, err := env.posts.ListByCategory(ctx, raw)
		require.NoError(t, err, "raw=%q", raw)
		assert.Nil(t, page.Selected, "raw=%q", raw)
		assert.Len(t, page.Posts, 2, "raw=%q falls back to every post", raw)
	}
}

func TestListByAuthor_IncludesDrafts(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")
	bob := env.user(t, "bob")
	env.post(t, alice, PostInput{Title: "Alice draft"})
	env.post(t, alice, PostInput{Title: "Alice live", IsPublished: true})
	env.post(t, bob, PostInput{Title: "Bob live", IsPublished: true})

	posts, err := env.posts.ListByAuthor(context.Background(), alice.ID)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	for _, p := range posts {
		assert.Equal(t, alice.ID, p.AuthorID)
	}
}

// =========================================================================
// COMMENTS
// =========================================================================

func TestAddComment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.user(t, "writer")
	reader := env.user(t, "reader")
	p := env.post(t, author, PostInput{Title: "Discuss this", IsPublished: true})

	c, err := env.posts.AddComment(ctx, reader, p.ID, CommentInput{Text: "  Nice post  "})
	require.NoError(t, err)
	assert.Equal(t, "Nice post", c.Text)

	_, err = env.posts.AddComment(ctx, reader, p.ID, CommentInput{Text: "   "})
	require.ErrorIs(t, err, apperror.ErrValidation)
	assert.Equal(t, "This field is required.", apperror.FieldErrors(err)["text"])

	_, err = env.posts.AddComment(ctx, reader, 9999, CommentInput{Text: "hello"})
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = env.posts.AddComment(ctx, nil, p.ID, CommentInput{Text: "hello"})
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	detail, err := env.posts.Detail(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, detail.Comments, 1)
	assert.Equal(t, "reader", detail.Comments[0].Author.Username)
}

func TestParseID(t *testing.T) {
	tests := []struct {
		raw  string
		want int64
		ok   bool
	}{
		{"5", 5, true},
		{" 12 ", 12, true},
		{"0", 0, false},
		{"-3", 0, false},
		{"+1", 0, false},
		{"1 2", 0, false},
		{"0x1f", 0, false},
		{"abc", 0, false},
		{"", 0, false},
		{"99999999999999999999", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseID(tt.raw)
		assert.Equal(t, tt.ok, ok, "ParseID(%q)", tt.raw)
		assert.Equal(t, tt.want, got, "ParseID(%q)", tt.raw)
	}
}
