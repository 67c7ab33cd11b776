// Package artifact stores generated files (speech audio, lead summaries)
// on disk under random identifiers.
package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrNotFound is returned when an artifact does not exist or the id is invalid.
var ErrNotFound = errors.New("artifact not found")

// Store writes artifacts into a single directory.
type Store struct {
	dir     string
	baseURL string
}

// NewStore creates the directory if needed. baseURL is the public prefix
// artifacts are served under, e.g. http://localhost:8080/artifacts.
func NewStore(dir, baseURL string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &Store{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Put writes data under a new id ending in ext and returns the id.
func (s *Store) Put(data []byte, ext string) (string, error) {
	id := uuid.NewString() + ext
	if err := os.WriteFile(filepath.Join(s.dir, id), data, 0o640); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return id, nil
}

// URL returns the public URL for id.
func (s *Store) URL(id string) string {
	return s.baseURL + "/" + id
}

// Open returns the path of an existing artifact. Only ids produced by Put are
// accepted, so a request can never escape the directory.
func (s *Store) Open(id string) (string, error) {
	if !validID(id) {
		return "", ErrNotFound
	}
	path := filepath.Join(s.dir, id)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("stat artifact: %w", err)
	}
	return path, nil
}

func validID(id string) bool {
	name, ext, ok := strings.Cut(id, ".")
	if !ok || strings.ContainsAny(ext, `./\`) || ext == "" {
		return false
	}
	_, err := uuid.Parse(name)
	return err == nil
}
