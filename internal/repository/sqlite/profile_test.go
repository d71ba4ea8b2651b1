package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/blog/internal/apperror"
	"github.com/sakif/blog/internal/model"
)

func TestGetOrCreateProfile_OneRowPerUser(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "dana")

	first, err := db.GetOrCreateProfile(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetOrCreateProfile() error = %v", err)
	}
	second, err := db.GetOrCreateProfile(ctx, user.ID)
	if err != nil {
		t.Fatalf("second GetOrCreateProfile() error = %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("profile IDs differ: %d vs %d", first.ID, second.ID)
	}
	if first.Bio != "" || first.Website != "" || first.Avatar != "" {
		t.Errorf("new profile not empty: %+v", first)
	}
}

func TestUpdateProfile(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "dana")

	p, err := db.GetOrCreateProfile(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetOrCreateProfile() error = %v", err)
	}
	p.Bio = "Gopher"
	p.Website = "https://example.com"
	p.Avatar = "avatars/dana.png"
	if err := db.UpdateProfile(ctx, p); err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}

	got, err := db.GetOrCreateProfile(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetOrCreateProfile() error = %v", err)
	}
	if *got != *p {
		t.Errorf("profile = %+v, want %+v", got, p)
	}
}

func TestSettings_GetDoesNotCreate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "erin")

	if _, err := db.GetSettings(ctx, user.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("GetSettings() error = %v, want ErrNotFound", err)
	}
	if _, err := db.GetSettings(ctx, user.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetSettings() created a row: err = %v", err)
	}
}

func TestSettings_DefaultsAndUpdate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "erin")

	s, err := db.GetOrCreateSettings(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetOrCreateSettings() error = %v", err)
	}
	if s.Theme != model.ThemeLight || !s.NotificationsEnabled {
		t.Errorf("defaults = %+v, want light with notifications on", s)
	}

	s.Theme = model.ThemeDark
	s.NotificationsEnabled = false
	if err := db.UpdateSettings(ctx, s); err != nil {
		t.Fatalf("UpdateSettings() error = %v", err)
	}

	got, err := db.GetSettings(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetSettings() error = %v", err)
	}
	if got.Theme != model.ThemeDark || got.NotificationsEnabled {
		t.Errorf("settings = %+v, want dark with notifications off", got)
	}

	again, err := db.GetOrCreateSettings(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetOrCreateSettings() error = %v", err)
	}
	if again.ID != s.ID || again.Theme != model.ThemeDark {
		t.Errorf("GetOrCreateSettings() reset existing row: %+v", again)
	}
}

func TestUpdateSettings_RejectsUnknownTheme(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "erin")

	s, err := db.GetOrCreateSettings(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetOrCreateSettings() error = %v", err)
	}
	s.Theme = "neon"
	if err := db.UpdateSettings(ctx, s); err == nil {
		t.Error("UpdateSettings() accepted a theme outside the CHECK constraint")
	}
}
