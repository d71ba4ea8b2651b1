// Package service holds the blog's business rules.
//
//	Handler (HTTP)  → parses forms, renders pages, maps errors to status codes
//	Service         → trims and validates input, checks ownership and admin rights
//	Repository      → reads and writes SQLite
//
// Services take repository interfaces, never *sqlite.DB, and return
// internal/apperror kinds so handlers can decide between a 404 page, a 403
// page and a form re-render without inspecting messages.
package service

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sakif/blog/internal/apperror"
	"github.com/sakif/blog/internal/media"
	"github.com/sakif/blog/internal/validation"
)

// ImageStore keeps uploaded pictures. *media.Store implements it.
type ImageStore interface {
	Save(folder string, r io.Reader) (string, error)
	Delete(rel string) error
}

const (
	msgInvalidChoice = "Select a valid choice. That choice is not one of the available choices."
	msgInvalidImage  = "Upload a valid image. The file you uploaded was either not an image or a corrupted image."
	msgImageTooLarge = "The uploaded file is too large."
)

// ParseID reads a positive integer id from a URL segment or query value.
// Only ASCII digits are accepted, so "+1" and "1e3" are not ids.
func ParseID(raw string) (int64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.TrimLeft(raw, "0123456789") != "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// saveImage stores an optional upload. A nil reader stores nothing and
// returns "". Rejections come back as a field error on field.
func saveImage(images ImageStore, folder, field string, r io.Reader) (string, error) {
	if r == nil {
		return "", nil
	}
	rel, err := images.Save(folder, r)
	switch {
	case err == nil:
		return rel, nil
	case errors.Is(err, media.ErrNotImage):
		return "", apperror.ValidationFailed(field, msgInvalidImage)
	case errors.Is(err, media.ErrTooLarge):
		return "", apperror.ValidationFailed(field, msgImageTooLarge)
	default:
		return "", fmt.Errorf("saving %s: %w", field, err)
	}
}

// invalid wraps collected field errors, or returns nil when there are none.
func invalid(errs validation.FieldErrors) error {
	if len(errs) == 0 {
		return nil
	}
	return apperror.Invalid(errs)
}
