package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sakif/blog/internal/auth"
	"github.com/sakif/blog/internal/media"
	"github.com/sakif/blog/internal/model"
	"github.com/sakif/blog/internal/repository/sqlite"
)

// =========================================================================
// FAKES AND FIXTURES
// =========================================================================
//
// Services run against a real in-memory SQLite database so the cascade and
// ordering rules are exercised end to end. Only the image store is faked.

// fakeImages keeps "uploads" in memory. Bodies starting with "not-an-image"
// are rejected the way media.Store rejects non-images.
type fakeImages struct {
	mu      sync.Mutex
	next    int
	files   map[string][]byte
	deleted []string
}

func newFakeImages() *fakeImages {
	return &fakeImages{files: make(map[string][]byte)}
}

func (f *fakeImages) Save(folder string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if bytes.HasPrefix(data, []byte("not-an-image")) {
		return "", media.ErrNotImage
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	rel := fmt.Sprintf("%s/%d.png", folder, f.next)
	f.files[rel] = data
	return rel, nil
}

func (f *fakeImages) Delete(rel string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, rel)
	f.deleted = append(f.deleted, rel)
	return nil
}

func (f *fakeImages) has(rel string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.files[rel]
	return ok
}

func upload(body string) io.Reader { return strings.NewReader(body) }

type testEnv struct {
	db         *sqlite.DB
	images     *fakeImages
	accounts   *AccountService
	posts      *PostService
	categories *CategoryService
	profiles   *ProfileService
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenService("service-test-secret-0123456789")
	require.NoError(t, err)

	logger := testLogger()
	images := newFakeImages()
	return &testEnv{
		db:         db,
		images:     images,
		accounts:   NewAccountService(db, db, images, auth.NewPasswordServiceWithCost(4), tokens, 0, logger),
		posts:      NewPostService(db, db, db, images, logger),
		categories: NewCategoryService(db, logger),
		profiles:   NewProfileService(db, images, logger),
	}
}

func (e *testEnv) user(t *testing.T, username string) *model.User {
	t.Helper()
	u, err := e.accounts.Register(context.Background(), RegisterInput{
		Username:  username,
		Password1: "correct-horse-1",
		Password2: "correct-horse-1",
	})
	require.NoError(t, err)
	return u
}

func (e *testEnv) admin(t *testing.T, username string) *model.User {
	t.Helper()
	u, err := e.accounts.CreateSuperuser(context.Background(), username, username+"@example.com", "correct-horse-1")
	require.NoError(t, err)
	return u
}

func (e *testEnv) category(t *testing.T, name string) *model.Category {
	t.Helper()
	c := &model.Category{Name: name, Description: name}
	require.NoError(t, e.db.CreateCategory(context.Background(), c))
	return c
}

func (e *testEnv) post(t *testing.T, author *model.User, in PostInput) *model.Post {
	t.Helper()
	if in.Content == "" {
		in.Content = "Some content."
	}
	p, err := e.posts.Create(context.Background(), author, in)
	require.NoError(t, err)
	return p
}
