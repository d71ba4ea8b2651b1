package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sakif/blog/internal/apperror"
	"github.com/sakif/blog/internal/model"
)

const userColumns = `id, username, email, password_hash, github_id,
	is_staff, is_superuser, is_active, date_joined`

// CreateUser inserts a new account and fills in its ID and DateJoined.
// A taken username or GitHub ID is reported as apperror.ErrConflict.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	user.DateJoined = db.now()

	result, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (username, email, password_hash, github_id,
			is_staff, is_superuser, is_active, date_joined)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.Username,
		user.Email,
		user.PasswordHash,
		nullableID(user.GitHubID),
		user.IsStaff,
		user.IsSuperuser,
		user.IsActive,
		user.DateJoined,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", user.Username)
		}
		return fmt.Errorf("sqlite: creating user %q: %w", user.Username, err)
	}

	user.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading user id: %w", err)
	}
	return nil
}

// GetUserByID retrieves a user by ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row, apperror.NotFound("user", id))
}

// GetUserByUsername looks an account up by its exact username.
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	return scanUser(row, apperror.NotFound("user", username))
}

// GetUserByGitHubID finds the account linked to a GitHub user.
func (db *DB) GetUserByGitHubID(ctx context.Context, githubID int64) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE github_id = ?`, githubID)
	return scanUser(row, apperror.NotFound("github user", githubID))
}

// DeleteUser removes an account. Foreign keys cascade the delete to the
// user's posts, comments, profile, settings and sessions.
func (db *DB) DeleteUser(ctx context.Context, id int64) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting user %d: %w", id, err)
	}
	return checkAffected(result, apperror.NotFound("user", id))
}

// ListUserMedia returns the stored files a user owns: their post images and
// their avatar. Empty paths are skipped.
func (db *DB) ListUserMedia(ctx context.Context, id int64) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT image FROM posts WHERE author_id = ? AND image <> ''
		UNION ALL
		SELECT avatar FROM profiles WHERE user_id = ? AND avatar <> ''`, id, id)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing media of user %d: %w", id, err)
	}
	defer rows.Close()

	var files []string
	for rows.Next() {
		var rel string
		if err := rows.Scan(&rel); err != nil {
			return nil, fmt.Errorf("sqlite: scanning media of user %d: %w", id, err)
		}
		files = append(files, rel)
	}
	return files, rows.Err()
}

func scanUser(row *sql.Row, notFound error) (*model.User, error) {
	var (
		u        model.User
		githubID sql.NullInt64
	)
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&githubID,
		&u.IsStaff,
		&u.IsSuperuser,
		&u.IsActive,
		&u.DateJoined,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound
		}
		return nil, fmt.Errorf("sqlite: scanning user: %w", err)
	}
	u.GitHubID = idPtr(githubID)
	return &u, nil
}

// CreateSession stores a new login session.
func (db *DB) CreateSession(ctx context.Context, s *model.Session) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = db.now()
	}
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		s.ID, s.UserID, s.CreatedAt, s.ExpiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating session for user %d: %w", s.UserID, err)
	}
	return nil
}

// GetSession returns a session whether or not it is still active; callers
// check model.Session.Active.
func (db *DB) GetSession(ctx context.Context, id string) (*model.Session, error) {
	var (
		s       model.Session
		revoked sql.NullTime
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, created_at, expires_at, revoked_at FROM sessions WHERE id = ?`, id,
	).Scan(&s.ID, &s.UserID, &s.CreatedAt, &s.ExpiresAt, &revoked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("session", id)
		}
		return nil, fmt.Errorf("sqlite: getting session %s: %w", id, err)
	}
	if revoked.Valid {
		t := revoked.Time
		s.RevokedAt = &t
	}
	return &s, nil
}

// RevokeSession marks a session as logged out. Revoking an already revoked
// session keeps the first timestamp.
func (db *DB) RevokeSession(ctx context.Context, id string, at time.Time) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = COALESCE(revoked_at, ?) WHERE id = ?`, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("sqlite: revoking session %s: %w", id, err)
	}
	return checkAffected(result, apperror.NotFound("session", id))
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
