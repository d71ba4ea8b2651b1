package sqlite

import (
	"context"
	"fmt"

	"github.com/sakif/blog/internal/model"
)

// CreateComment appends a comment and stamps CreatedAt.
func (db *DB) CreateComment(ctx context.Context, c *model.Comment) error {
	c.CreatedAt = db.now()

	result, err := db.conn.ExecContext(ctx,
		`INSERT INTO comments (post_id, author_id, text, created_at) VALUES (?, ?, ?, ?)`,
		c.PostID, c.AuthorID, c.Text, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating comment on post %d: %w", c.PostID, err)
	}
	c.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading comment id: %w", err)
	}
	return nil
}

// ListCommentsByPost returns a post's comments oldest first, with author names.
func (db *DB) ListCommentsByPost(ctx context.Context, postID int64) ([]model.Comment, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT c.id, c.post_id, c.author_id, c.text, c.created_at, u.username
		 FROM comments c
		 JOIN users u ON u.id = c.author_id
		 WHERE c.post_id = ?
		 ORDER BY c.created_at, c.id`,
		postID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing comments for post %d: %w", postID, err)
	}
	defer rows.Close()

	comments := make([]model.Comment, 0)
	for rows.Next() {
		var (
			c    model.Comment
			name string
		)
		if err := rows.Scan(&c.ID, &c.PostID, &c.AuthorID, &c.Text, &c.CreatedAt, &name); err != nil {
			return nil, fmt.Errorf("sqlite: scanning comment row: %w", err)
		}
		c.Author = &model.User{ID: c.AuthorID, Username: name}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating comments: %w", err)
	}
	return comments, nil
}
