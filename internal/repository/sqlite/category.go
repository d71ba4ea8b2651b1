package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sakif/blog/internal/apperror"
	"github.com/sakif/blog/internal/model"
)

// CreateCategory inserts a category and stamps CreatedAt.
func (db *DB) CreateCategory(ctx context.Context, c *model.Category) error {
	c.CreatedAt = db.now()

	result, err := db.conn.ExecContext(ctx,
		`INSERT INTO categories (name, description, created_at) VALUES (?, ?, ?)`,
		c.Name, c.Description, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating category: %w", err)
	}
	c.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading category id: %w", err)
	}
	return nil
}

func (db *DB) GetCategory(ctx context.Context, id int64) (*model.Category, error) {
	var c model.Category
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, name, description, created_at FROM categories WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("category", id)
		}
		return nil, fmt.Errorf("sqlite: getting category %d: %w", id, err)
	}
	return &c, nil
}

// ListCategories returns every category in creation order.
func (db *DB) ListCategories(ctx context.Context) ([]model.Category, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, name, description, created_at FROM categories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing categories: %w", err)
	}
	defer rows.Close()

	categories := make([]model.Category, 0)
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning category row: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating categories: %w", err)
	}
	return categories, nil
}

// UpdateCategory changes name and description. CreatedAt is immutable.
func (db *DB) UpdateCategory(ctx context.Context, c *model.Category) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE categories SET name = ?, description = ? WHERE id = ?`,
		c.Name, c.Description, c.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating category %d: %w", c.ID, err)
	}
	return checkAffected(result, apperror.NotFound("category", c.ID))
}

// DeleteCategory removes a category; posts in it keep existing with a NULL
// category_id (ON DELETE SET NULL).
func (db *DB) DeleteCategory(ctx context.Context, id int64) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting category %d: %w", id, err)
	}
	return checkAffected(result, apperror.NotFound("category", id))
}
