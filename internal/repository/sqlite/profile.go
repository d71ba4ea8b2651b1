package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sakif/blog/internal/apperror"
	"github.com/sakif/blog/internal/model"
)

// GetOrCreateProfile returns the user's profile, inserting an empty one on
// first access. The UNIQUE(user_id) constraint keeps it one row per user even
// when two requests race.
func (db *DB) GetOrCreateProfile(ctx context.Context, userID int64) (*model.Profile, error) {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO profiles (user_id) VALUES (?) ON CONFLICT(user_id) DO NOTHING`, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: ensuring profile for user %d: %w", userID, err)
	}

	var p model.Profile
	err = db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, bio, website, avatar FROM profiles WHERE user_id = ?`, userID,
	).Scan(&p.ID, &p.UserID, &p.Bio, &p.Website, &p.Avatar)
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting profile for user %d: %w", userID, err)
	}
	return &p, nil
}

func (db *DB) UpdateProfile(ctx context.Context, p *model.Profile) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE profiles SET bio = ?, website = ?, avatar = ? WHERE user_id = ?`,
		p.Bio, p.Website, p.Avatar, p.UserID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating profile for user %d: %w", p.UserID, err)
	}
	return checkAffected(result, apperror.NotFound("profile", p.UserID))
}

// GetSettings reads settings without creating them. Returns
// apperror.ErrNotFound for users who never opened the settings page.
func (db *DB) GetSettings(ctx context.Context, userID int64) (*model.Settings, error) {
	s, err := db.selectSettings(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("settings", userID)
		}
		return nil, fmt.Errorf("sqlite: getting settings for user %d: %w", userID, err)
	}
	return s, nil
}

// GetOrCreateSettings returns the user's settings, inserting the defaults on
// first access.
func (db *DB) GetOrCreateSettings(ctx context.Context, userID int64) (*model.Settings, error) {
	def := model.DefaultSettings(userID)
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO settings (user_id, theme, notifications_enabled) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO NOTHING`,
		def.UserID, string(def.Theme), def.NotificationsEnabled,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: ensuring settings for user %d: %w", userID, err)
	}

	s, err := db.selectSettings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting settings for user %d: %w", userID, err)
	}
	return s, nil
}

func (db *DB) UpdateSettings(ctx context.Context, s *model.Settings) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE settings SET theme = ?, notifications_enabled = ? WHERE user_id = ?`,
		string(s.Theme), s.NotificationsEnabled, s.UserID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating settings for user %d: %w", s.UserID, err)
	}
	return checkAffected(result, apperror.NotFound("settings", s.UserID))
}

func (db *DB) selectSettings(ctx context.Context, userID int64) (*model.Settings, error) {
	var (
		s     model.Settings
		theme string
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, theme, notifications_enabled FROM settings WHERE user_id = ?`, userID,
	).Scan(&s.ID, &s.UserID, &theme, &s.NotificationsEnabled)
	if err != nil {
		return nil, err
	}
	s.Theme = model.Theme(theme)
	return &s, nil
}
