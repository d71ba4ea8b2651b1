package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/blog/internal/apperror"
	"github.com/sakif/blog/internal/auth"
	"github.com/sakif/blog/internal/model"
	"github.com/sakif/blog/internal/service"
)

// CategoryHandler serves the category browser and the staff-only category
// forms. The admin check itself is auth.RequireAdmin on the routes; the
// service repeats it.
type CategoryHandler struct {
	categories *service.CategoryService
	posts      *service.PostService
	render     *Renderer
	logger     *slog.Logger
}

// NewCategoryHandler creates a CategoryHandler. posts feeds the filtered
// listing.
func NewCategoryHandler(
	categories *service.CategoryService,
	posts *service.PostService,
	render *Renderer,
	logger *slog.Logger,
) *CategoryHandler {
	return &CategoryHandler{
		categories: categories,
		posts:      posts,
		render:     render,
		logger:     logger,
	}
}

type categoryListPage struct {
	*service.CategoryPage
	CanManage bool
}

type categoryFormPage struct {
	Category *model.Category
	Form     Form[service.CategoryInput]
}

// HandleList shows every category and the posts of the selected one, or
// all posts when ?category= is missing or unknown.
//
// HTTP: GET /categories/?category={id}
func (h *CategoryHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	page, err := h.posts.ListByCategory(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		h.render.Fail(w, r, err)
		return
	}
	viewer, _ := auth.UserFromContext(r.Context())
	h.render.Render(w, r, http.StatusOK, "category_list", categoryListPage{
		CategoryPage: page,
		CanManage:    viewer.IsAdmin(),
	})
}

// HandleCreate shows and processes the new category form.
//
// HTTP: GET, POST /create-category/ (staff)
func (h *CategoryHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.render.Render(w, r, http.StatusOK, "category_form", categoryFormPage{})
		return
	}

	var in service.CategoryInput
	if err := bind(w, r, formSlack, &in); err != nil {
		h.render.badForm(w, r, err)
		return
	}

	viewer, _ := auth.UserFromContext(r.Context())
	if _, err := h.categories.Create(r.Context(), viewer, in); err != nil {
		if errors.Is(err, apperror.ErrValidation) {
			h.render.Render(w, r, http.StatusOK, "category_form", categoryFormPage{Form: newForm(in, err)})
			return
		}
		h.render.Fail(w, r, err)
		return
	}
	redirect(w, r, "/")
}

// HandleEdit shows and processes the edit form of one category.
//
// HTTP: GET, POST /create-category/{id}/edit/ (staff)
func (h *CategoryHandler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.render.NotFound(w, r)
		return
	}

	category, err := h.categories.Get(r.Context(), id)
	if err != nil {
		h.render.Fail(w, r, err)
		return
	}

	if r.Method != http.MethodPost {
		h.render.Render(w, r, http.StatusOK, "category_form", categoryFormPage{
			Category: category,
			Form: Form[service.CategoryInput]{Values: service.CategoryInput{
				Name:        category.Name,
				Description: category.Description,
			}},
		})
		return
	}

	var in service.CategoryInput
	if err := bind(w, r, formSlack, &in); err != nil {
		h.render.badForm(w, r, err)
		return
	}

	viewer, _ := auth.UserFromContext(r.Context())
	if _, err := h.categories.Update(r.Context(), viewer, id, in); err != nil {
		if errors.Is(err, apperror.ErrValidation) {
			h.render.Render(w, r, http.StatusOK, "category_form", categoryFormPage{Category: category, Form: newForm(in, err)})
			return
		}
		h.render.Fail(w, r, err)
		return
	}
	redirect(w, r, "/categories/")
}

// HandleDelete deletes on POST; GET goes back to the list untouched. Posts
// of the category become uncategorised.
//
// HTTP: GET, POST /delete-category/{id}/delete/ (staff)
func (h *CategoryHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.render.NotFound(w, r)
		return
	}

	if _, err := h.categories.Get(r.Context(), id); err != nil {
		h.render.Fail(w, r, err)
		return
	}

	if r.Method != http.MethodPost {
		redirect(w, r, "/categories/")
		return
	}

	viewer, _ := auth.UserFromContext(r.Context())
	if err := h.categories.Delete(r.Context(), viewer, id); err != nil {
		h.render.Fail(w, r, err)
		return
	}
	redirect(w, r, "/categories/")
}
