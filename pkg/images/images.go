// Package images stores uploaded menu pictures under a static directory.
package images

import (
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/example/bistro/pkg/apperr"
	"github.com/example/bistro/pkg/ids"
)

const defaultExtension = "jpg"

type Store struct {
	dir       string
	urlPrefix string
	newName   func() string
}

// NewStore writes into dir and reports paths under urlPrefix, e.g. "images".
func NewStore(dir, urlPrefix string) *Store {
	return &Store{dir: dir, urlPrefix: urlPrefix, newName: ids.Token}
}

// Dir is the directory the images are written to.
func (s *Store) Dir() string { return s.dir }

// Save writes src under a random name that keeps the extension of
// filenameHint and returns the client-facing relative path. src is always
// closed.
func (s *Store) Save(filenameHint string, src io.ReadCloser) (string, error) {
	defer src.Close()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", apperr.Wrap(apperr.StorageError, "Could not save the file on the server", err)
	}

	name := s.newName() + "." + Extension(filenameHint)

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", apperr.Wrap(apperr.StorageError, "Could not save the file on the server", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return "", apperr.Wrap(apperr.StorageError, "Could not save the file on the server", err)
	}
	if err := tmp.Close(); err != nil {
		return "", apperr.Wrap(apperr.StorageError, "Could not save the file on the server", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return "", apperr.Wrap(apperr.StorageError, "Could not save the file on the server", err)
	}

	return path.Join(s.urlPrefix, name), nil
}

// Extension returns the text after the last dot of hint, or "jpg" when there
// is none or it is not a plain alphanumeric suffix.
func Extension(hint string) string {
	base := filepath.Base(strings.ReplaceAll(hint, "\\", "/"))
	i := strings.LastIndex(base, ".")
	if i < 0 || i == len(base)-1 {
		return defaultExtension
	}
	ext := base[i+1:]
	for _, r := range ext {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return defaultExtension
		}
	}
	return ext
}

