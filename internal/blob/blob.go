// Package blob abstracts the object store the audit pipeline persists to.
// Paths are forward-slash keys relative to the store root, e.g.
// "audits/2025/12/10/index.json".
package blob

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrNotFound is returned by ReadJSON and Download when the key is absent.
var ErrNotFound = eris.New("blob: not found")

// Store is a key-value object store with JSON helpers and file transfer.
type Store interface {
	Exists(ctx context.Context, path string) (bool, error)
	// ReadJSON decodes the blob at path into v. Returns ErrNotFound (possibly
	// wrapped) when the key does not exist.
	ReadJSON(ctx context.Context, path string, v any) error
	WriteJSON(ctx context.Context, path string, v any) error
	// Download copies the blob at path to a local file.
	Download(ctx context.Context, path, localDest string) error
	// Upload copies a local file to path.
	Upload(ctx context.Context, localSrc, path string) error
	// List returns all keys under prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// IsNotFound reports whether err means the key was absent.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	return eris.Is(err, ErrNotFound)
}

// cleanKey normalizes a store key: forward slashes, no leading slash, no
// empty or dot-dot segments.
func cleanKey(path string) (string, error) {
	path = strings.ReplaceAll(path, "\\", "/")
	parts := strings.Split(path, "/")
	out := parts[:0]
	for _, p := range parts {
		switch p {
		case "", ".":
			continue
		case "..":
			return "", eris.Errorf("blob: invalid key %q", path)
		default:
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return "", eris.New("blob: empty key")
	}
	return strings.Join(out, "/"), nil
}
