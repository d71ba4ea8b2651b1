package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/form/v4"

	"github.com/sakif/blog/internal/apperror"
	"github.com/sakif/blog/internal/service"
)

// multipartMemory is how much of a multipart body is kept in memory before
// spilling to temp files.
const multipartMemory = 8 << 20

// formSlack covers the non-file fields of an upload form.
const formSlack = 1 << 20

var decoder = form.NewDecoder()

// Form is the state of a form page: the submitted (or stored) values and
// the per-field errors. The "" key holds errors not tied to a field.
type Form[T any] struct {
	Values T
	Errors map[string]string
}

// NonField returns the error that belongs to the whole form.
func (f Form[T]) NonField() string {
	return f.Errors[""]
}

func newForm[T any](values T, err error) Form[T] {
	return Form[T]{Values: values, Errors: apperror.FieldErrors(err)}
}

// parseForm reads a urlencoded or multipart body into r.PostForm, capping
// the body at maxBody bytes.
func parseForm(w http.ResponseWriter, r *http.Request, maxBody int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return r.ParseMultipartForm(multipartMemory)
	}
	return r.ParseForm()
}

// bind parses the body and decodes it onto dst using its form tags.
func bind(w http.ResponseWriter, r *http.Request, maxBody int64, dst any) error {
	if err := parseForm(w, r, maxBody); err != nil {
		return err
	}
	return decoder.Decode(dst, r.PostForm)
}

// formFile returns the uploaded file for field, or nil when none was sent.
func formFile(r *http.Request, field string) (io.ReadCloser, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	f, _, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

// badForm renders the page for a body that could not be parsed at all.
func (rn *Renderer) badForm(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		rn.Error(w, r, http.StatusRequestEntityTooLarge)
		return
	}
	rn.Error(w, r, http.StatusBadRequest)
}

// pathID reads the {id} URL parameter. ok is false for anything that is not
// a positive integer, which callers answer with 404.
func pathID(r *http.Request) (int64, bool) {
	return service.ParseID(chi.URLParam(r, "id"))
}

// localPath returns next when it is a path on this site and "/" otherwise,
// so ?next= cannot send users to another host.
func localPath(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") {
		return "/"
	}
	if strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") || strings.ContainsAny(next, "\r\n") {
		return "/"
	}
	return next
}
