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

// ProfileHandler serves the signed-in user's profile and settings pages.
// Both rows are created on the first visit.
type ProfileHandler struct {
	profiles *service.ProfileService
	render   *Renderer
	maxBody  int64
	logger   *slog.Logger
}

func NewProfileHandler(profiles *service.ProfileService, render *Renderer, maxUpload int64, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{
		profiles: profiles,
		render:   render,
		maxBody:  maxUpload + formSlack,
		logger:   logger,
	}
}

type profilePage struct {
	Profile *model.Profile
	Form    Form[service.ProfileInput]
}

type settingsPage struct {
	Settings *model.Settings
	Form     Form[service.SettingsInput]
}

// HandleProfile shows and processes the profile form.
//
// HTTP: GET, POST /profile/ (login required)
func (h *ProfileHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	viewer, _ := auth.UserFromContext(r.Context())
	profile, err := h.profiles.Profile(r.Context(), viewer.ID)
	if err != nil {
		h.render.Fail(w, r, err)
		return
	}

	if r.Method != http.MethodPost {
		h.render.Render(w, r, http.StatusOK, "profile", profilePage{
			Profile: profile,
			Form: Form[service.ProfileInput]{Values: service.ProfileInput{
				Bio:     profile.Bio,
				Website: profile.Website,
			}},
		})
		return
	}

	var in service.ProfileInput
	if err := bind(w, r, h.maxBody, &in); err != nil {
		h.render.badForm(w, r, err)
		return
	}
	avatar, err := formFile(r, "avatar")
	if err != nil {
		h.render.badForm(w, r, err)
		return
	}
	if avatar != nil {
		defer avatar.Close()
		in.Avatar = avatar
	}

	if _, err := h.profiles.UpdateProfile(r.Context(), viewer.ID, in); err != nil {
		if errors.Is(err, apperror.ErrValidation) {
			in.Avatar = nil
			h.render.Render(w, r, http.StatusOK, "profile", profilePage{Profile: profile, Form: newForm(in, err)})
			return
		}
		h.render.Fail(w, r, err)
		return
	}
	redirect(w, r, "/profile/")
}

// HandleSettings shows and processes the settings form.
//
// HTTP: GET, POST /settings/ (login required)
func (h *ProfileHandler) HandleSettings(w http.ResponseWriter, r *http.Request) {
	viewer, _ := auth.UserFromContext(r.Context())
	settings, err := h.profiles.Settings(r.Context(), viewer.ID)
	if err != nil {
		h.render.Fail(w, r, err)
		return
	}

	if r.Method != http.MethodPost {
		h.render.Render(w, r, http.StatusOK, "settings", settingsPage{
			Settings: settings,
			Form: Form[service.SettingsInput]{Values: service.SettingsInput{
				Theme:                string(settings.Theme),
				NotificationsEnabled: settings.NotificationsEnabled,
			}},
		})
		return
	}

	var in service.SettingsInput
	if err := bind(w, r, formSlack, &in); err != nil {
		h.render.badForm(w, r, err)
		return
	}

	if _, err := h.profiles.UpdateSettings(r.Context(), viewer.ID, in); err != nil {
		if errors.Is(err, apperror.ErrValidation) {
			h.render.Render(w, r, http.StatusOK, "settings", settingsPage{Settings: settings, Form: newForm(in, err)})
			return
		}
		h.render.Fail(w, r, err)
		return
	}
	redirect(w, r, "/settings/")
}
