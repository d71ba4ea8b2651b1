package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/blog/internal/apperror"
	"github.com/sakif/blog/internal/auth"
	"github.com/sakif/blog/internal/model"
	"github.com/sakif/blog/internal/service"
)

// PostHandler serves the home page, post pages and comments.
type PostHandler struct {
	posts      *service.PostService
	categories *service.CategoryService
	render     *Renderer
	maxBody    int64
	logger     *slog.Logger
}

// NewPostHandler creates a PostHandler. maxUpload is the largest image
// accepted; request bodies are capped slightly above it.
func NewPostHandler(
	posts *service.PostService,
	categories *service.CategoryService,
	render *Renderer,
	maxUpload int64,
	logger *slog.Logger,
) *PostHandler {
	return &PostHandler{
		posts:      posts,
		categories: categories,
		render:     render,
		maxBody:    maxUpload + formSlack,
		logger:     logger,
	}
}

type postFormPage struct {
	Post       *model.Post
	Categories []model.Category
	Form       Form[service.PostInput]
}

type postDetailPage struct {
	*service.PostDetail
	IsAuthor bool
	Form     Form[service.CommentInput]
}

// HandleHome shows featured and latest published posts.
//
// HTTP: GET /
func (h *PostHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	home, err := h.posts.Home(r.Context())
	if err != nil {
		h.render.Fail(w, r, err)
		return
	}
	h.render.Render(w, r, http.StatusOK, "home", home)
}

// HandleCreate shows and processes the new post form.
//
// HTTP: GET, POST /post/new/ (login required)
func (h *PostHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.renderForm(w, r, nil, Form[service.PostInput]{Values: service.PostInput{IsPublished: true}})
		return
	}

	viewer, _ := auth.UserFromContext(r.Context())
	in, closeImage, ok := h.bindPost(w, r)
	if !ok {
		return
	}
	defer closeImage()

	post, err := h.posts.Create(r.Context(), viewer, in)
	if err != nil {
		if errors.Is(err, apperror.ErrValidation) {
			h.renderForm(w, r, nil, newForm(in, err))
			return
		}
		h.render.Fail(w, r, err)
		return
	}
	redirect(w, r, postURL(post.ID))
}

// HandleDetail shows a post with its comments. POST adds a comment and
// needs a signed-in viewer.
//
// HTTP: GET, POST /post/{id}/
func (h *PostHandler) HandleDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.render.NotFound(w, r)
		return
	}

	if r.Method != http.MethodPost {
		h.renderDetail(w, r, id, Form[service.CommentInput]{})
		return
	}

	viewer, ok := auth.UserFromContext(r.Context())
	if !ok {
		redirect(w, r, auth.LoginURL(r.URL.RequestURI()))
		return
	}

	var in service.CommentInput
	if err := bind(w, r, formSlack, &in); err != nil {
		h.render.badForm(w, r, err)
		return
	}

	if _, err := h.posts.AddComment(r.Context(), viewer, id, in); err != nil {
		if errors.Is(err, apperror.ErrValidation) {
			h.renderDetail(w, r, id, newForm(in, err))
			return
		}
		h.render.Fail(w, r, err)
		return
	}
	redirect(w, r, postURL(id))
}

// HandleEdit shows and processes the edit form. Only the author gets past
// the ownership check; everyone else sees 403.
//
// HTTP: GET, POST /post/{id}/edit/ (login required)
func (h *PostHandler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.render.NotFound(w, r)
		return
	}

	viewer, _ := auth.UserFromContext(r.Context())
	post, err := h.posts.Editable(r.Context(), viewer, id)
	if err != nil {
		h.render.Fail(w, r, err)
		return
	}

	if r.Method != http.MethodPost {
		h.renderForm(w, r, post, Form[service.PostInput]{Values: service.PostInput{
			Title:       post.Title,
			Content:     post.Content,
			Category:    categoryValue(post.CategoryID),
			IsPublished: post.IsPublished,
		}})
		return
	}

	in, closeImage, ok := h.bindPost(w, r)
	if !ok {
		return
	}
	defer closeImage()

	if _, err := h.posts.Update(r.Context(), viewer, id, in); err != nil {
		if errors.Is(err, apperror.ErrValidation) {
			h.renderForm(w, r, post, newForm(in, err))
			return
		}
		h.render.Fail(w, r, err)
		return
	}
	redirect(w, r, postURL(id))
}

// HandleDelete deletes on POST. A GET from the author goes back to the post
// without deleting anything.
//
// HTTP: GET, POST /post/{id}/delete/ (login required)
func (h *PostHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.render.NotFound(w, r)
		return
	}

	viewer, _ := auth.UserFromContext(r.Context())
	if _, err := h.posts.Editable(r.Context(), viewer, id); err != nil {
		h.render.Fail(w, r, err)
		return
	}

	if r.Method != http.MethodPost {
		redirect(w, r, postURL(id))
		return
	}

	if err := h.posts.Delete(r.Context(), viewer, id); err != nil {
		h.render.Fail(w, r, err)
		return
	}
	redirect(w, r, "/")
}

// HandleMyPosts lists the viewer's posts, drafts included.
//
// HTTP: GET /my-posts/ (login required)
func (h *PostHandler) HandleMyPosts(w http.ResponseWriter, r *http.Request) {
	viewer, _ := auth.UserFromContext(r.Context())
	posts, err := h.posts.ListByAuthor(r.Context(), viewer.ID)
	if err != nil {
		h.render.Fail(w, r, err)
		return
	}
	h.render.Render(w, r, http.StatusOK, "my_posts", posts)
}

// bindPost decodes the post form and opens the uploaded image, if any. The
// returned func closes the upload. ok is false when a response was written.
func (h *PostHandler) bindPost(w http.ResponseWriter, r *http.Request) (service.PostInput, func(), bool) {
	var in service.PostInput
	if err := bind(w, r, h.maxBody, &in); err != nil {
		h.render.badForm(w, r, err)
		return in, nil, false
	}

	image, err := formFile(r, "image")
	if err != nil {
		h.render.badForm(w, r, err)
		return in, nil, false
	}
	if image == nil {
		return in, func() {}, true
	}
	in.Image = image
	return in, func() { image.Close() }, true
}

func (h *PostHandler) renderForm(w http.ResponseWriter, r *http.Request, post *model.Post, form Form[service.PostInput]) {
	categories, err := h.categories.List(r.Context())
	if err != nil {
		h.render.Fail(w, r, err)
		return
	}
	form.Values.Image = nil
	h.render.Render(w, r, http.StatusOK, "post_form", postFormPage{
		Post:       post,
		Categories: categories,
		Form:       form,
	})
}

func (h *PostHandler) renderDetail(w http.ResponseWriter, r *http.Request, id int64, form Form[service.CommentInput]) {
	detail, err := h.posts.Detail(r.Context(), id)
	if err != nil {
		h.render.Fail(w, r, err)
		return
	}
	viewer, _ := auth.UserFromContext(r.Context())
	h.render.Render(w, r, http.StatusOK, "post_detail", postDetailPage{
		PostDetail: detail,
		IsAuthor:   viewer != nil && viewer.ID == detail.Post.AuthorID,
		Form:       form,
	})
}

func categoryValue(id *int64) string {
	if id == nil {
		return ""
	}
	return strconv.FormatInt(*id, 10)
}
