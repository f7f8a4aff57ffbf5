package blob

import (
	"context"
	"encoding/json"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// FSStore implements Store on a local directory tree. It is the default
// backend for development and tests.
type FSStore struct {
	root string
}

// NewFS creates a filesystem store rooted at dir, creating it if needed.
func NewFS(dir string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "fs store: create root %s", dir)
	}
	return &FSStore{root: dir}, nil
}

func (s *FSStore) localPath(key string) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}

func (s *FSStore) Exists(_ context.Context, path string) (bool, error) {
	p, err := s.localPath(path)
	if err != nil {
		return false, err
	}
	_, statErr := os.Stat(p)
	if statErr == nil {
		return true, nil
	}
	if os.IsNotExist(statErr) {
		return false, nil
	}
	return false, eris.Wrapf(statErr, "fs store: stat %s", path)
}

func (s *FSStore) ReadJSON(_ context.Context, path string, v any) error {
	p, err := s.localPath(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return eris.Wrapf(ErrNotFound, "fs store: %s", path)
		}
		return eris.Wrapf(err, "fs store: read %s", path)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return eris.Wrapf(err, "fs store: decode %s", path)
	}
	return nil
}

func (s *FSStore) WriteJSON(_ context.Context, path string, v any) error {
	p, err := s.localPath(path)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrapf(err, "fs store: encode %s", path)
	}
	return s.writeAtomic(p, path, data)
}

// writeAtomic writes via a temp file and rename so a crashed run never
// leaves a half-written index or result behind.
func (s *FSStore) writeAtomic(localPath, key string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return eris.Wrapf(err, "fs store: mkdir for %s", key)
	}
	tmp, err := os.CreateTemp(filepath.Dir(localPath), ".blob-*")
	if err != nil {
		return eris.Wrapf(err, "fs store: temp for %s", key)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return eris.Wrapf(err, "fs store: write %s", key)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return eris.Wrapf(err, "fs store: close %s", key)
	}
	if err := os.Rename(tmpName, localPath); err != nil {
		os.Remove(tmpName)
		return eris.Wrapf(err, "fs store: rename %s", key)
	}
	return nil
}

func (s *FSStore) Download(_ context.Context, path, localDest string) error {
	p, err := s.localPath(path)
	if err != nil {
		return err
	}
	src, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return eris.Wrapf(ErrNotFound, "fs store: %s", path)
		}
		return eris.Wrapf(err, "fs store: open %s", path)
	}
	defer src.Close()

	dst, err := os.Create(localDest)
	if err != nil {
		return eris.Wrapf(err, "fs store: create %s", localDest)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return eris.Wrapf(err, "fs store: copy %s", path)
	}
	return nil
}

func (s *FSStore) Upload(_ context.Context, localSrc, path string) error {
	data, err := os.ReadFile(localSrc)
	if err != nil {
		return eris.Wrapf(err, "fs store: read local %s", localSrc)
	}
	p, err := s.localPath(path)
	if err != nil {
		return err
	}
	return s.writeAtomic(p, path, data)
}

func (s *FSStore) List(_ context.Context, prefix string) ([]string, error) {
	prefix, err := cleanKey(strings.TrimSuffix(prefix, "/"))
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(s.root, filepath.FromSlash(prefix))

	var keys []string
	walkErr := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".blob-") {
			return nil
		}
		rel, relErr := filepath.Rel(s.root, p)
		if relErr != nil {
			return relErr
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	if walkErr != nil {
		return nil, eris.Wrapf(walkErr, "fs store: list %s", prefix)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *FSStore) Close() error { return nil }
