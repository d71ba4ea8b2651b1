package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/blog/internal/apperror"
	"github.com/sakif/blog/internal/model"
	"github.com/sakif/blog/internal/repository"
	"github.com/sakif/blog/internal/validation"
)

// CategoryInput is the create and edit form for categories.
type CategoryInput struct {
	Name        string `form:"name" validate:"required,max=100"`
	Description string `form:"description" validate:"required"`
}

// CategoryService manages categories. Reads are public; every change needs
// a staff or superuser actor.
type CategoryService struct {
	categories repository.CategoryRepository
	logger     *slog.Logger
}

// NewCategoryService creates a CategoryService.
func NewCategoryService(categories repository.CategoryRepository, logger *slog.Logger) *CategoryService {
	return &CategoryService{categories: categories, logger: logger}
}

// List returns every category, oldest first.
func (s *CategoryService) List(ctx context.Context) ([]model.Category, error) {
	categories, err := s.categories.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/category: %w", err)
	}
	return categories, nil
}

// Get returns one category or apperror.ErrNotFound.
func (s *CategoryService) Get(ctx context.Context, id int64) (*model.Category, error) {
	c, err := s.categories.GetCategory(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/category: %w", err)
	}
	return c, nil
}

// Create validates in and stores a new category. actor must be staff.
func (s *CategoryService) Create(ctx context.Context, actor *model.User, in CategoryInput) (*model.Category, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := checkCategory(&in); err != nil {
		return nil, err
	}

	c := &model.Category{Name: in.Name, Description: in.Description}
	if err := s.categories.CreateCategory(ctx, c); err != nil {
		return nil, fmt.Errorf("service/category: creating category: %w", err)
	}

	s.logger.Info("category created",
		slog.Int64("categoryID", c.ID),
		slog.String("name", c.Name),
		slog.Int64("actorID", actor.ID),
	)
	return c, nil
}

// Update renames or redescribes a category. actor must be staff.
func (s *CategoryService) Update(ctx context.Context, actor *model.User, id int64, in CategoryInput) (*model.Category, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkCategory(&in); err != nil {
		return nil, err
	}

	c.Name = in.Name
	c.Description = in.Description
	if err := s.categories.UpdateCategory(ctx, c); err != nil {
		return nil, fmt.Errorf("service/category: updating category %d: %w", id, err)
	}

	s.logger.Info("category updated",
		slog.Int64("categoryID", c.ID),
		slog.Int64("actorID", actor.ID),
	)
	return c, nil
}

// Delete removes a category. Its posts stay, uncategorised.
func (s *CategoryService) Delete(ctx context.Context, actor *model.User, id int64) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if err := s.categories.DeleteCategory(ctx, id); err != nil {
		return fmt.Errorf("service/category: deleting category %d: %w", id, err)
	}

	s.logger.Info("category deleted",
		slog.Int64("categoryID", id),
		slog.Int64("actorID", actor.ID),
	)
	return nil
}

func requireAdmin(actor *model.User) error {
	if !actor.IsAdmin() {
		return apperror.Forbidden("only staff can manage categories")
	}
	return nil
}

func checkCategory(in *CategoryInput) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	return validation.Check(*in)
}
