package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/blog/internal/apperror"
	"github.com/sakif/blog/internal/auth"
	"github.com/sakif/blog/internal/model"
)

// =========================================================================
// REGISTER
// =========================================================================

func TestRegister(t *testing.T) {
	env := newTestEnv(t)

	u, err := env.accounts.Register(context.Background(), RegisterInput{
		Username:  "  alice  ",
		Password1: "s3cret-pass",
		Password2: "s3cret-pass",
	})
	require.NoError(t, err)

	assert.Equal(t, "alice", u.Username)
	assert.True(t, u.IsActive)
	assert.False(t, u.IsAdmin())
	assert.NotEqual(t, "s3cret-pass", u.PasswordHash)
}

func TestRegister_FieldErrors(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, "taken")

	tests := []struct {
		name  string
		in    RegisterInput
		field string
		want  string
	}{
		{
			name:  "username taken",
			in:    RegisterInput{Username: "taken", Password1: "s3cret-pass", Password2: "s3cret-pass"},
			field: "username",
			want:  msgUsernameTaken,
		},
		{
			name:  "passwords differ",
			in:    RegisterInput{Username: "bob", Password1: "s3cret-pass", Password2: "other-pass"},
			field: "password2",
			want:  "The two password fields didn't match.",
		},
		{
			name:  "numeric password",
			in:    RegisterInput{Username: "bob", Password1: "12345678", Password2: "12345678"},
			field: "password1",
			want:  "This password is entirely numeric.",
		},
		{
			name:  "password equals username",
			in:    RegisterInput{Username: "bobbybobby", Password1: "bobbybobby", Password2: "bobbybobby"},
			field: "password1",
			want:  "The password is too similar to the username.",
		},
		{
			name:  "bad username",
			in:    RegisterInput{Username: "bob smith", Password1: "s3cret-pass", Password2: "s3cret-pass"},
			field: "username",
			want:  "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.accounts.Register(context.Background(), tt.in)
			require.ErrorIs(t, err, apperror.ErrValidation)
			assert.Equal(t, tt.want, apperror.FieldErrors(err)[tt.field])
		})
	}
}

// =========================================================================
// AUTHENTICATE
// =========================================================================

func TestAuthenticate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.user(t, "alice")

	inactive := &model.User{Username: "sleepy", IsActive: false}
	hash, err := auth.NewPasswordServiceWithCost(4).Hash("correct-horse-1")
	require.NoError(t, err)
	inactive.PasswordHash = hash
	require.NoError(t, env.db.CreateUser(ctx, inactive))

	ghID := int64(99)
	require.NoError(t, env.db.CreateUser(ctx, &model.User{Username: "octo", GitHubID: &ghID, IsActive: true}))

	got, err := env.accounts.Authenticate(ctx, " alice ", "correct-horse-1")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, got.ID)

	failures := []struct {
		name, username, password string
	}{
		{"wrong password", "alice", "wrong-horse-1"},
		{"unknown user", "nobody", "correct-horse-1"},
		{"inactive user", "sleepy", "correct-horse-1"},
		{"github-only account", "octo", "correct-horse-1"},
	}
	for _, tt := range failures {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.accounts.Authenticate(ctx, tt.username, tt.password)
			require.ErrorIs(t, err, apperror.ErrUnauthorized)
			assert.Equal(t, MsgLoginFailed, err.Error())
		})
	}
}

func TestAuthenticate_EmptyFields(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.accounts.Authenticate(context.Background(), "", "")
	require.ErrorIs(t, err, apperror.ErrValidation)

	fields := apperror.FieldErrors(err)
	assert.Contains(t, fields, "username")
	assert.Contains(t, fields, "password")
}

// =========================================================================
// SESSIONS
// =========================================================================

func TestStartSession_TTL(t *testing.T) {
	env := newTestEnv(t)
	u := env.user(t, "alice")
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	env.accounts.now = func() time.Time { return now }

	remembered, err := env.accounts.StartSession(context.Background(), u.ID, true)
	require.NoError(t, err)
	assert.True(t, remembered.Persistent)
	assert.Equal(t, now.Add(RememberTTL), remembered.ExpiresAt)

	browser, err := env.accounts.StartSession(context.Background(), u.ID, false)
	require.NoError(t, err)
	assert.False(t, browser.Persistent)
	assert.Equal(t, now.Add(DefaultBrowserSessionTTL), browser.ExpiresAt)
}

func TestResolveSession_Lifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.user(t, "alice")

	ticket, err := env.accounts.StartSession(ctx, u.ID, false)
	require.NoError(t, err)

	got, err := env.accounts.ResolveSession(ctx, ticket.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	env.accounts.EndSession(ctx, ticket.Token)
	_, err = env.accounts.ResolveSession(ctx, ticket.Token)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized, "revoked session must not authenticate")

	// logging out twice is harmless
	env.accounts.EndSession(ctx, ticket.Token)
	env.accounts.EndSession(ctx, "garbage")
}

func TestResolveSession_Rejects(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.user(t, "alice")

	ticket, err := env.accounts.StartSession(ctx, u.ID, false)
	require.NoError(t, err)

	_, err = env.accounts.ResolveSession(ctx, ticket.Token+"x")
	assert.ErrorIs(t, err, apperror.ErrUnauthorized, "tampered token")

	_, err = env.accounts.ResolveSession(ctx, "")
	assert.ErrorIs(t, err, apperror.ErrUnauthorized, "empty token")

	// past the session row's expiry the row itself refuses
	env.accounts.now = func() time.Time { return time.Now().UTC().Add(DefaultBrowserSessionTTL + time.Hour) }
	_, err = env.accounts.ResolveSession(ctx, ticket.Token)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized, "expired session")
}

func TestResolveSession_DeletedUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.user(t, "alice")

	ticket, err := env.accounts.StartSession(ctx, u.ID, true)
	require.NoError(t, err)
	require.NoError(t, env.accounts.DeleteUser(ctx, "alice"))

	_, err = env.accounts.ResolveSession(ctx, ticket.Token)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}

// =========================================================================
// GITHUB
// =========================================================================

func TestLoginWithGitHub(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.user(t, "octocat")

	first, err := env.accounts.LoginWithGitHub(ctx, &auth.GitHubUser{ID: 583231, Login: "octocat", Email: "octo@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "octocat-2", first.Username, "taken login gets a suffix")
	require.NotNil(t, first.GitHubID)
	assert.Equal(t, int64(583231), *first.GitHubID)
	assert.Empty(t, first.PasswordHash)

	again, err := env.accounts.LoginWithGitHub(ctx, &auth.GitHubUser{ID: 583231, Login: "renamed"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID, "same GitHub account maps to the same user")

	_, err = env.accounts.LoginWithGitHub(ctx, nil)
	assert.Error(t, err)
}

func TestGitHubUsername(t *testing.T) {
	assert.Equal(t, "octo", githubUsername("octo", 0))
	assert.Equal(t, "octo-3", githubUsername("octo", 2))

	long := strings.Repeat("a", 200)
	assert.Len(t, githubUsername(long, 5), maxUsernameLen)
}

// =========================================================================
// COMMAND LINE
// =========================================================================

func TestCreateSuperuser(t *testing.T) {
	env := newTestEnv(t)

	u, err := env.accounts.CreateSuperuser(context.Background(), "root", "root@example.com", "correct-horse-1")
	require.NoError(t, err)
	assert.True(t, u.IsStaff)
	assert.True(t, u.IsSuperuser)
	assert.True(t, u.IsAdmin())

	_, err = env.accounts.CreateSuperuser(context.Background(), "root", "", "correct-horse-1")
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = env.accounts.CreateSuperuser(context.Background(), "other", "", "123")
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestDeleteUser_RemovesPostsAndComments(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.user(t, "author")
	reader := env.user(t, "reader")

	own := env.post(t, author, PostInput{Title: "Author post", IsPublished: true})
	other := env.post(t, reader, PostInput{Title: "Reader post", IsPublished: true})
	_, err := env.posts.AddComment(ctx, author, other.ID, CommentInput{Text: "by author"})
	require.NoError(t, err)
	_, err = env.posts.AddComment(ctx, reader, other.ID, CommentInput{Text: "by reader"})
	require.NoError(t, err)

	require.NoError(t, env.accounts.DeleteUser(ctx, "author"))

	_, err = env.posts.Get(ctx, own.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	detail, err := env.posts.Detail(ctx, other.ID)
	require.NoError(t, err)
	require.Len(t, detail.Comments, 1)
	assert.Equal(t, "by reader", detail.Comments[0].Text)

	assert.ErrorIs(t, env.accounts.DeleteUser(ctx, "author"), apperror.ErrNotFound)
}

func TestDeleteUser_RemovesUploadedFiles(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.user(t, "author")
	reader := env.user(t, "reader")

	own := env.post(t, author, PostInput{Title: "Picture post", Image: upload("img")})
	kept := env.post(t, reader, PostInput{Title: "Reader picture", Image: upload("img")})
	profile, err := env.profiles.UpdateProfile(ctx, author.ID, ProfileInput{Avatar: upload("face")})
	require.NoError(t, err)
	require.True(t, env.images.has(profile.Avatar))

	require.NoError(t, env.accounts.DeleteUser(ctx, "author"))

	assert.False(t, env.images.has(own.Image), "post image removed")
	assert.False(t, env.images.has(profile.Avatar), "avatar removed")
	assert.True(t, env.images.has(kept.Image), "other users' files stay")
}
