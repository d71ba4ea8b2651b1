package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/sakif/blog/internal/apperror"
	"github.com/sakif/blog/internal/media"
	"github.com/sakif/blog/internal/model"
	"github.com/sakif/blog/internal/repository"
	"github.com/sakif/blog/internal/validation"
)

// Home page section sizes.
const (
	FeaturedLimit = 3
	LatestLimit   = 5
)

// PostInput is the create and edit form. Category is the raw select value;
// empty means no category. Image is nil when no file was uploaded.
type PostInput struct {
	Title       string    `form:"title" validate:"required,max=200,post_title"`
	Content     string    `form:"content" validate:"required"`
	Category    string    `form:"category"`
	IsPublished bool      `form:"is_published"`
	Image       io.Reader `form:"-" validate:"-"`
	ClearImage  bool      `form:"image-clear"`
}

// CommentInput is the comment box under a post.
type CommentInput struct {
	Text string `form:"text" validate:"required"`
}

// HomePage is everything the front page shows.
type HomePage struct {
	Featured   []model.Post
	Latest     []model.Post
	Categories []model.Category
}

// CategoryPage is the category browser. Selected is nil when the listing is
// unfiltered.
type CategoryPage struct {
	Categories []model.Category
	Posts      []model.Post
	Selected   *model.Category
}

// PostDetail is a post with its comments, oldest first.
type PostDetail struct {
	Post     *model.Post
	Comments []model.Comment
}

// PostService owns posts and their comments. Only a post's author may
// change or delete it; anyone signed in may comment.
type PostService struct {
	posts      repository.PostRepository
	comments   repository.CommentRepository
	categories repository.CategoryRepository
	images     ImageStore
	logger     *slog.Logger
}

// NewPostService creates a PostService. Uploaded images go to images.
func NewPostService(
	posts repository.PostRepository,
	comments repository.CommentRepository,
	categories repository.CategoryRepository,
	images ImageStore,
	logger *slog.Logger,
) *PostService {
	return &PostService{
		posts:      posts,
		comments:   comments,
		categories: categories,
		images:     images,
		logger:     logger,
	}
}

// Home returns up to FeaturedLimit published posts with an image and up to
// LatestLimit published posts, both newest first.
func (s *PostService) Home(ctx context.Context) (*HomePage, error) {
	featured, err := s.posts.ListPosts(ctx, repository.PostFilter{
		PublishedOnly: true,
		WithImageOnly: true,
		Limit:         FeaturedLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("service/post: featured posts: %w", err)
	}

	latest, err := s.posts.ListPosts(ctx, repository.PostFilter{
		PublishedOnly: true,
		Limit:         LatestLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("service/post: latest posts: %w", err)
	}

	categories, err := s.categories.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/post: categories: %w", err)
	}

	return &HomePage{Featured: featured, Latest: latest, Categories: categories}, nil
}

// ListByCategory lists posts in the category named by rawID. A missing,
// malformed or unknown id is not an error: the page shows every post with
// nothing selected.
func (s *PostService) ListByCategory(ctx context.Context, rawID string) (*CategoryPage, error) {
	categories, err := s.categories.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/post: categories: %w", err)
	}

	page := &CategoryPage{Categories: categories}
	filter := repository.PostFilter{}
	if id, ok := ParseID(rawID); ok {
		for i := range categories {
			if categories[i].ID == id {
				page.Selected = &categories[i]
				filter.CategoryID = id
				break
			}
		}
	}

	page.Posts, err = s.posts.ListPosts(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("service/post: listing posts: %w", err)
	}
	return page, nil
}

// ListByAuthor returns every post of authorID, drafts included, newest first.
func (s *PostService) ListByAuthor(ctx context.Context, authorID int64) ([]model.Post, error) {
	posts, err := s.posts.ListPosts(ctx, repository.PostFilter{AuthorID: authorID})
	if err != nil {
		return nil, fmt.Errorf("service/post: listing posts of user %d: %w", authorID, err)
	}
	return posts, nil
}

// Get returns one post or apperror.ErrNotFound.
func (s *PostService) Get(ctx context.Context, id int64) (*model.Post, error) {
	post, err := s.posts.GetPost(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/post: %w", err)
	}
	return post, nil
}

// Detail returns a post with its comments, oldest first.
func (s *PostService) Detail(ctx context.Context, id int64) (*PostDetail, error) {
	post, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	comments, err := s.comments.ListCommentsByPost(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/post: comments of post %d: %w", id, err)
	}
	return &PostDetail{Post: post, Comments: comments}, nil
}

// Editable returns the post when actor is its author and ErrForbidden
// otherwise. The edit and delete pages call it before showing anything.
func (s *PostService) Editable(ctx context.Context, actor *model.User, id int64) (*model.Post, error) {
	post, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor == nil || post.AuthorID != actor.ID {
		return nil, apperror.Forbidden("only the author can change this post")
	}
	return post, nil
}

// Create validates in and stores a new post by author. Nothing is written,
// image included, unless the whole form is valid.
func (s *PostService) Create(ctx context.Context, author *model.User, in PostInput) (*model.Post, error) {
	if author == nil {
		return nil, apperror.Unauthorized("login required")
	}

	categoryID, err := s.checkPost(ctx, &in)
	if err != nil {
		return nil, err
	}

	image, err := saveImage(s.images, media.PostImages, "image", in.Image)
	if err != nil {
		return nil, fmt.Errorf("service/post: %w", err)
	}

	post := &model.Post{
		Title:       in.Title,
		Content:     in.Content,
		AuthorID:    author.ID,
		CategoryID:  categoryID,
		Image:       image,
		IsPublished: in.IsPublished,
	}
	if err := s.posts.CreatePost(ctx, post); err != nil {
		s.removeImage(image)
		return nil, fmt.Errorf("service/post: creating post: %w", err)
	}

	s.logger.Info("post created",
		slog.Int64("postID", post.ID),
		slog.Int64("authorID", author.ID),
		slog.Bool("published", post.IsPublished),
	)
	return post, nil
}

// Update edits a post. Only the author may do it; the author and
// published date never change. A new upload replaces the stored image,
// ClearImage removes it, and otherwise the old image stays.
func (s *PostService) Update(ctx context.Context, actor *model.User, id int64, in PostInput) (*model.Post, error) {
	post, err := s.Editable(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	categoryID, err := s.checkPost(ctx, &in)
	if err != nil {
		return nil, err
	}

	newImage, err := saveImage(s.images, media.PostImages, "image", in.Image)
	if err != nil {
		return nil, fmt.Errorf("service/post: %w", err)
	}

	oldImage := post.Image
	switch {
	case newImage != "":
		post.Image = newImage
	case in.ClearImage:
		post.Image = ""
	}

	post.Title = in.Title
	post.Content = in.Content
	post.CategoryID = categoryID
	post.IsPublished = in.IsPublished
	if err := s.posts.UpdatePost(ctx, post); err != nil {
		s.removeImage(newImage)
		return nil, fmt.Errorf("service/post: updating post %d: %w", id, err)
	}
	if oldImage != post.Image {
		s.removeImage(oldImage)
	}

	s.logger.Info("post updated",
		slog.Int64("postID", post.ID),
		slog.Int64("authorID", actor.ID),
	)
	return post, nil
}

// Delete removes a post, its comments and its image. Only the author may.
func (s *PostService) Delete(ctx context.Context, actor *model.User, id int64) error {
	post, err := s.Editable(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.posts.DeletePost(ctx, id); err != nil {
		return fmt.Errorf("service/post: deleting post %d: %w", id, err)
	}
	s.removeImage(post.Image)

	s.logger.Info("post deleted",
		slog.Int64("postID", id),
		slog.Int64("authorID", actor.ID),
	)
	return nil
}

// AddComment appends a comment by author to the post.
func (s *PostService) AddComment(ctx context.Context, author *model.User, postID int64, in CommentInput) (*model.Comment, error) {
	if author == nil {
		return nil, apperror.Unauthorized("login required")
	}
	if _, err := s.Get(ctx, postID); err != nil {
		return nil, err
	}

	in.Text = strings.TrimSpace(in.Text)
	if err := validation.Check(in); err != nil {
		return nil, err
	}

	comment := &model.Comment{PostID: postID, AuthorID: author.ID, Text: in.Text}
	if err := s.comments.CreateComment(ctx, comment); err != nil {
		return nil, fmt.Errorf("service/post: adding comment to post %d: %w", postID, err)
	}
	comment.Author = author

	s.logger.Info("comment added",
		slog.Int64("postID", postID),
		slog.Int64("commentID", comment.ID),
		slog.Int64("authorID", author.ID),
	)
	return comment, nil
}

// checkPost trims and validates the form and resolves its category.
func (s *PostService) checkPost(ctx context.Context, in *PostInput) (*int64, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	in.Category = strings.TrimSpace(in.Category)

	errs := validation.Struct(*in)

	var categoryID *int64
	if in.Category != "" {
		id, ok := ParseID(in.Category)
		if ok {
			_, err := s.categories.GetCategory(ctx, id)
			switch {
			case err == nil:
				categoryID = &id
			case !errors.Is(err, apperror.ErrNotFound):
				return nil, fmt.Errorf("service/post: checking category: %w", err)
			default:
				ok = false
			}
		}
		if !ok {
			errs = validation.Merge(errs, validation.FieldErrors{"category": msgInvalidChoice})
		}
	}

	if err := invalid(errs); err != nil {
		return nil, err
	}
	return categoryID, nil
}

// removeImage deletes a stored file. The row is already consistent, so a
// leftover file is only logged.
func (s *PostService) removeImage(rel string) {
	if rel == "" {
		return
	}
	if err := s.images.Delete(rel); err != nil {
		s.logger.Warn("removing post image",
			slog.String("path", rel),
			slog.String("error", err.Error()),
		)
	}
}
