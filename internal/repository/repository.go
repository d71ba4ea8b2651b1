// Package repository declares the storage contracts the service layer
// depends on. internal/repository/sqlite provides the implementation; service
// tests use in-memory SQLite or small fakes.
package repository

import (
	"context"
	"time"

	"github.com/sakif/blog/internal/model"
)

// PostFilter narrows a post listing. Zero values mean "no constraint"; results
// are always ordered newest first by published date.
type PostFilter struct {
	PublishedOnly bool
	WithImageOnly bool
	AuthorID      int64
	CategoryID    int64
	Limit         int
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByGitHubID(ctx context.Context, githubID int64) (*model.User, error)
	DeleteUser(ctx context.Context, id int64) error
	ListUserMedia(ctx context.Context, id int64) ([]string, error)
}

type SessionRepository interface {
	CreateSession(ctx context.Context, session *model.Session) error
	GetSession(ctx context.Context, id string) (*model.Session, error)
	RevokeSession(ctx context.Context, id string, at time.Time) error
}

type CategoryRepository interface {
	CreateCategory(ctx context.Context, category *model.Category) error
	GetCategory(ctx context.Context, id int64) (*model.Category, error)
	ListCategories(ctx context.Context) ([]model.Category, error)
	UpdateCategory(ctx context.Context, category *model.Category) error
	DeleteCategory(ctx context.Context, id int64) error
}

type PostRepository interface {
	CreatePost(ctx context.Context, post *model.Post) error
	GetPost(ctx context.Context, id int64) (*model.Post, error)
	ListPosts(ctx context.Context, filter PostFilter) ([]model.Post, error)
	UpdatePost(ctx context.Context, post *model.Post) error
	DeletePost(ctx context.Context, id int64) error
}

type CommentRepository interface {
	CreateComment(ctx context.Context, comment *model.Comment) error
	ListCommentsByPost(ctx context.Context, postID int64) ([]model.Comment, error)
}

// ProfileRepository covers both one-to-one records of a user.
// GetOrCreate* insert the default row on first access.
type ProfileRepository interface {
	GetOrCreateProfile(ctx context.Context, userID int64) (*model.Profile, error)
	UpdateProfile(ctx context.Context, profile *model.Profile) error
	GetSettings(ctx context.Context, userID int64) (*model.Settings, error)
	GetOrCreateSettings(ctx context.Context, userID int64) (*model.Settings, error)
	UpdateSettings(ctx context.Context, settings *model.Settings) error
}

// Store is everything the SQLite DB implements.
type Store interface {
	UserRepository
	SessionRepository
	CategoryRepository
	PostRepository
	CommentRepository
	ProfileRepository
}
