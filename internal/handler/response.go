package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sakif/blog/internal/apperror"
	"github.com/sakif/blog/internal/auth"
)

// Fail maps a service error onto a response:
//
//	ErrUnauthorized → 303 to the login page, back here afterwards
//	ErrNotFound     → 404 page
//	ErrForbidden    → 403 page
//	ErrValidation   → 400 page (forms handle their own validation errors)
//	anything else   → 500 page, logged; details never reach the client
func (rn *Renderer) Fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, apperror.ErrUnauthorized):
		http.Redirect(w, r, auth.LoginURL(r.URL.RequestURI()), http.StatusSeeOther)
	case errors.Is(err, apperror.ErrNotFound):
		rn.Error(w, r, http.StatusNotFound)
	case errors.Is(err, apperror.ErrForbidden):
		rn.Error(w, r, http.StatusForbidden)
	case errors.Is(err, apperror.ErrValidation):
		rn.Error(w, r, http.StatusBadRequest)
	default:
		rn.logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		rn.Error(w, r, http.StatusInternalServerError)
	}
}

// redirect sends a 303 so the browser follows up with a GET.
func redirect(w http.ResponseWriter, r *http.Request, url string) {
	http.Redirect(w, r, url, http.StatusSeeOther)
}

func postURL(id int64) string {
	return fmt.Sprintf("/post/%d/", id)
}

// writeJSON sends data as JSON with status. Headers must be set before the
// body is written.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}
