// Package media stores uploaded images on the local filesystem.
//
// Files are kept under a root directory in one folder per owner kind
// (posts/, avatars/) and named by a fresh xid, so user-supplied file names
// never reach the disk. The stored path returned by Save is relative to the
// root and is what Post.Image and Profile.Avatar hold; the server exposes the
// root under /media/.
package media

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"slices"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/xid"
)

// Folders an upload can be stored in.
const (
	PostImages = "posts"
	Avatars    = "avatars"
)

// DefaultMaxBytes caps an upload when the configuration leaves it unset.
const DefaultMaxBytes int64 = 5 << 20

var (
	// ErrNotImage is returned when the uploaded bytes do not sniff as one of
	// the raster formats in rasterTypes.
	ErrNotImage = errors.New("media: upload is not an image")
	// ErrTooLarge is returned when the upload exceeds the configured limit.
	ErrTooLarge = errors.New("media: upload too large")
)

// rasterTypes are the accepted upload formats. SVG and other scriptable
// image types are refused since /media/ serves them from the site's origin.
var rasterTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// Store writes and removes uploaded images below root.
type Store struct {
	root     string
	maxBytes int64
}

// New prepares root and its folders.
func New(root string, maxBytes int64) (*Store, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	for _, folder := range []string{PostImages, Avatars} {
		if err := os.MkdirAll(filepath.Join(root, folder), 0o755); err != nil {
			return nil, fmt.Errorf("media: creating %s: %w", folder, err)
		}
	}
	return &Store{root: root, maxBytes: maxBytes}, nil
}

// Root is the directory the server publishes under /media/.
func (s *Store) Root() string { return s.root }

// MaxBytes is the largest upload Save accepts.
func (s *Store) MaxBytes() int64 { return s.maxBytes }

// Save reads one upload, checks that it is an image within the size limit and
// writes it to folder. It returns the stored path relative to the root, e.g.
// "posts/cv37rs3pp9olc6atsptg.png".
func (s *Store) Save(folder string, r io.Reader) (string, error) {
	if folder != PostImages && folder != Avatars {
		return "", fmt.Errorf("media: unknown folder %q", folder)
	}

	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("media: reading upload: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return "", ErrTooLarge
	}

	mime := mimetype.Detect(data)
	if !isImage(mime) {
		return "", ErrNotImage
	}

	name := xid.New().String() + mime.Extension()
	rel := path.Join(folder, name)

	dst, err := os.OpenFile(filepath.Join(s.root, folder, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("media: creating %s: %w", rel, err)
	}
	if _, err := io.Copy(dst, bytes.NewReader(data)); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", fmt.Errorf("media: writing %s: %w", rel, err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("media: closing %s: %w", rel, err)
	}
	return rel, nil
}

// Delete removes a stored file. Empty paths and files that are already gone
// are not errors.
func (s *Store) Delete(rel string) error {
	if rel == "" {
		return nil
	}
	local := filepath.FromSlash(rel)
	if !filepath.IsLocal(local) {
		return fmt.Errorf("media: refusing to delete %q outside the media root", rel)
	}
	if err := os.Remove(filepath.Join(s.root, local)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("media: deleting %s: %w", rel, err)
	}
	return nil
}

func isImage(m *mimetype.MIME) bool {
	return slices.ContainsFunc(rasterTypes, m.Is)
}
