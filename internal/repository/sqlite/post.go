package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/sakif/blog/internal/apperror"
	"github.com/sakif/blog/internal/model"
	"github.com/sakif/blog/internal/repository"
)

// postSelect joins the author and category so list and detail pages can show
// names without a query per row.
const postSelect = `SELECT p.id, p.title, p.content, p.author_id, p.category_id,
		p.published_date, p.image, p.is_published, u.username, c.name
	FROM posts p
	JOIN users u ON u.id = p.author_id
	LEFT JOIN categories c ON c.id = p.category_id`

// CreatePost inserts a post and stamps PublishedDate.
// A CategoryID that does not exist fails the foreign key check.
func (db *DB) CreatePost(ctx context.Context, p *model.Post) error {
	p.PublishedDate = db.now()

	result, err := db.conn.ExecContext(ctx,
		`INSERT INTO posts (title, content, author_id, category_id, published_date, image, is_published)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.Title,
		p.Content,
		p.AuthorID,
		nullableID(p.CategoryID),
		p.PublishedDate,
		p.Image,
		p.IsPublished,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating post: %w", err)
	}
	p.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading post id: %w", err)
	}
	return nil
}

func (db *DB) GetPost(ctx context.Context, id int64) (*model.Post, error) {
	row := db.conn.QueryRowContext(ctx, postSelect+` WHERE p.id = ?`, id)

	p, err := scanPost(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("post", id)
		}
		return nil, fmt.Errorf("sqlite: getting post %d: %w", id, err)
	}
	return p, nil
}

// ListPosts returns posts matching filter, newest first. Posts published in
// the same instant fall back to insertion order, newest first.
func (db *DB) ListPosts(ctx context.Context, filter repository.PostFilter) ([]model.Post, error) {
	var (
		where []string
		args  []any
	)
	if filter.PublishedOnly {
		where = append(where, "p.is_published = 1")
	}
	if filter.WithImageOnly {
		where = append(where, "p.image <> ''")
	}
	if filter.AuthorID != 0 {
		where = append(where, "p.author_id = ?")
		args = append(args, filter.AuthorID)
	}
	if filter.CategoryID != 0 {
		where = append(where, "p.category_id = ?")
		args = append(args, filter.CategoryID)
	}

	query := postSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY p.published_date DESC, p.id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing posts: %w", err)
	}
	defer rows.Close()

	posts := make([]model.Post, 0, max(filter.Limit, 0))
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning post row: %w", err)
		}
		posts = append(posts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating posts: %w", err)
	}
	return posts, nil
}

// UpdatePost writes the editable fields. Author and PublishedDate never change.
func (db *DB) UpdatePost(ctx context.Context, p *model.Post) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE posts
		 SET title = ?, content = ?, category_id = ?, image = ?, is_published = ?
		 WHERE id = ?`,
		p.Title,
		p.Content,
		nullableID(p.CategoryID),
		p.Image,
		p.IsPublished,
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating post %d: %w", p.ID, err)
	}
	return checkAffected(result, apperror.NotFound("post", p.ID))
}

// DeletePost removes a post and, by cascade, its comments.
func (db *DB) DeletePost(ctx context.Context, id int64) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting post %d: %w", id, err)
	}
	return checkAffected(result, apperror.NotFound("post", id))
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanPost(s scanner) (*model.Post, error) {
	var (
		p            model.Post
		categoryID   sql.NullInt64
		authorName   string
		categoryName sql.NullString
	)
	err := s.Scan(
		&p.ID,
		&p.Title,
		&p.Content,
		&p.AuthorID,
		&categoryID,
		&p.PublishedDate,
		&p.Image,
		&p.IsPublished,
		&authorName,
		&categoryName,
	)
	if err != nil {
		return nil, err
	}

	p.CategoryID = idPtr(categoryID)
	p.Author = &model.User{ID: p.AuthorID, Username: authorName}
	if p.CategoryID != nil && categoryName.Valid {
		p.Category = &model.Category{ID: *p.CategoryID, Name: categoryName.String}
	}
	return &p, nil
}
