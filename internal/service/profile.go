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

// ProfileInput is the profile form. Avatar is nil when no file was uploaded.
type ProfileInput struct {
	Bio         string    `form:"bio"`
	Website     string    `form:"website" validate:"omitempty,max=200,http_url"`
	Avatar      io.Reader `form:"-" validate:"-"`
	ClearAvatar bool      `form:"avatar-clear"`
}

// SettingsInput is the settings form.
type SettingsInput struct {
	Theme                string `form:"theme" validate:"required,theme"`
	NotificationsEnabled bool   `form:"notifications_enabled"`
}

// ProfileService reads and edits the per-user profile and settings rows.
// The profile and settings pages create those rows on first visit; Theme
// only reads, so rendering other pages never writes.
type ProfileService struct {
	profiles repository.ProfileRepository
	images   ImageStore
	logger   *slog.Logger
}

func NewProfileService(profiles repository.ProfileRepository, images ImageStore, logger *slog.Logger) *ProfileService {
	return &ProfileService{profiles: profiles, images: images, logger: logger}
}

func (s *ProfileService) Profile(ctx context.Context, userID int64) (*model.Profile, error) {
	p, err := s.profiles.GetOrCreateProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/profile: %w", err)
	}
	return p, nil
}

// UpdateProfile validates in and saves it. A new avatar replaces the old
// file; ClearAvatar removes it.
func (s *ProfileService) UpdateProfile(ctx context.Context, userID int64, in ProfileInput) (*model.Profile, error) {
	in.Bio = strings.TrimSpace(in.Bio)
	in.Website = strings.TrimSpace(in.Website)
	if err := validation.Check(in); err != nil {
		return nil, err
	}

	p, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}

	avatar, err := saveImage(s.images, media.Avatars, "avatar", in.Avatar)
	if err != nil {
		return nil, fmt.Errorf("service/profile: %w", err)
	}

	old := p.Avatar
	switch {
	case avatar != "":
		p.Avatar = avatar
	case in.ClearAvatar:
		p.Avatar = ""
	}
	p.Bio = in.Bio
	p.Website = in.Website

	if err := s.profiles.UpdateProfile(ctx, p); err != nil {
		s.removeAvatar(avatar)
		return nil, fmt.Errorf("service/profile: updating profile of user %d: %w", userID, err)
	}
	if old != p.Avatar {
		s.removeAvatar(old)
	}

	s.logger.Info("profile updated", slog.Int64("userID", userID))
	return p, nil
}

func (s *ProfileService) Settings(ctx context.Context, userID int64) (*model.Settings, error) {
	settings, err := s.profiles.GetOrCreateSettings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/profile: %w", err)
	}
	return settings, nil
}

func (s *ProfileService) UpdateSettings(ctx context.Context, userID int64, in SettingsInput) (*model.Settings, error) {
	in.Theme = strings.TrimSpace(in.Theme)
	if err := validation.Check(in); err != nil {
		return nil, err
	}

	settings, err := s.Settings(ctx, userID)
	if err != nil {
		return nil, err
	}
	settings.Theme = model.Theme(in.Theme)
	settings.NotificationsEnabled = in.NotificationsEnabled

	if err := s.profiles.UpdateSettings(ctx, settings); err != nil {
		return nil, fmt.Errorf("service/profile: updating settings of user %d: %w", userID, err)
	}

	s.logger.Info("settings updated",
		slog.Int64("userID", userID),
		slog.String("theme", string(settings.Theme)),
	)
	return settings, nil
}

// Theme is the colour scheme to render for viewer: their saved choice, or
// model.DefaultTheme for anonymous visitors and users without settings.
// Lookup failures fall back to the default rather than failing the page.
func (s *ProfileService) Theme(ctx context.Context, viewer *model.User) model.Theme {
	if viewer == nil {
		return model.DefaultTheme
	}
	settings, err := s.profiles.GetSettings(ctx, viewer.ID)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			s.logger.Error("loading theme",
				slog.Int64("userID", viewer.ID),
				slog.String("error", err.Error()),
			)
		}
		return model.DefaultTheme
	}
	if !settings.Theme.Valid() {
		return model.DefaultTheme
	}
	return settings.Theme
}

func (s *ProfileService) removeAvatar(rel string) {
	if rel == "" {
		return
	}
	if err := s.images.Delete(rel); err != nil {
		s.logger.Warn("removing avatar",
			slog.String("path", rel),
			slog.String("error", err.Error()),
		)
	}
}
