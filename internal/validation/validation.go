// Package validation checks input structs against the field contracts declared
// in their `validate` struct tags and turns failures into per-field messages
// suitable for rendering next to form inputs.
//
// Field names in the result come from the `form` tag, so a failure on
//
//	Title string `form:"title" validate:"required,max=200,post_title"`
//
// is reported under "title", the same name the HTML form posts.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/blog/internal/apperror"
)

// MinTitleLength is the shortest post title accepted, in characters.
const MinTitleLength = 5

// TitleTooShort is the message shown when a post title fails MinTitleLength.
const TitleTooShort = "Title is too short (minimum 5 characters)."

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

// FieldErrors maps a form field name to its first failing rule's message.
type FieldErrors map[string]string

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	mustRegister(v, "post_title", func(fl validator.FieldLevel) bool {
		return utf8.RuneCountInString(fl.Field().String()) >= MinTitleLength
	})
	mustRegister(v, "username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	mustRegister(v, "not_numeric", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == "" || strings.TrimLeft(s, "0123456789") != ""
	})
	mustRegister(v, "theme", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case "light", "dark", "system":
			return true
		}
		return false
	})

	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("validation: registering %q: %v", tag, err))
	}
}

// Struct validates s and returns nil when every field passes.
func Struct(s any) FieldErrors {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		// InvalidValidationError: a programming mistake (nil or non-struct).
		return FieldErrors{"": err.Error()}
	}

	out := make(FieldErrors, len(verrs))
	for _, fe := range verrs {
		if _, seen := out[fe.Field()]; seen {
			continue
		}
		out[fe.Field()] = message(fe)
	}
	return out
}

// Check is Struct for callers that want an error: nil when valid, otherwise an
// apperror validation error carrying the field messages.
func Check(s any) error {
	if fields := Struct(s); len(fields) > 0 {
		return apperror.Invalid(fields)
	}
	return nil
}

// Merge copies extra into errs, keeping messages already present.
// It allocates when errs is nil.
func Merge(errs FieldErrors, extra FieldErrors) FieldErrors {
	if len(extra) == 0 {
		return errs
	}
	if errs == nil {
		errs = make(FieldErrors, len(extra))
	}
	for k, v := range extra {
		if _, ok := errs[k]; !ok {
			errs[k] = v
		}
	}
	return errs
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "max":
		return fmt.Sprintf("Ensure this value has at most %s characters (it has %d).",
			fe.Param(), utf8.RuneCountInString(fmt.Sprint(fe.Value())))
	case "min":
		return fmt.Sprintf("Ensure this value has at least %s characters.", fe.Param())
	case "post_title":
		return TitleTooShort
	case "url", "http_url":
		return "Enter a valid URL."
	case "email":
		return "Enter a valid email address."
	case "theme", "oneof":
		return fmt.Sprintf("Select a valid choice. %v is not one of the available choices.", fe.Value())
	case "username":
		return "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters."
	case "not_numeric":
		return "This password is entirely numeric."
	case "eqfield":
		return "The two password fields didn't match."
	case "nefield":
		return "The password is too similar to the username."
	default:
		return fmt.Sprintf("Invalid value (%s).", fe.Tag())
	}
}
