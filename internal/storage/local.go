package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LocalStorage implements Storage over the local filesystem. It doubles as
// the test stand-in for the remote backend: its List reports the same
// ETag format as S3, which is what makes cross-backend drift detection work.
type LocalStorage struct {
	root string
}

func NewLocalStorage(root string) *LocalStorage {
	return &LocalStorage{root: root}
}

// resolve maps a backend key to a filesystem path. Absolute keys are used
// as-is; relative keys are anchored at the configured root.
func (l *LocalStorage) resolve(key string) string {
	key = filepath.FromSlash(strings.TrimSuffix(key, "/"))
	if filepath.IsAbs(key) {
		return filepath.Clean(key)
	}
	return filepath.Join(l.root, key)
}

func (l *LocalStorage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(l.resolve(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return nil, err
	}
	return f, nil
}

func (l *LocalStorage) ReadInto(ctx context.Context, key string, w io.Writer) error {
	f, err := l.Open(ctx, key)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}
	return nil
}

func (l *LocalStorage) Write(_ context.Context, key string, r io.Reader) (int64, error) {
	path := l.resolve(key)
	slog.Debug("local write", "path", path)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("write %s: %w", key, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("write %s: %w", key, err)
	}
	defer f.Close()

	n, err := io.Copy(f, r)
	if err != nil {
		return n, fmt.Errorf("write %s: %w", key, err)
	}
	return n, nil
}

func (l *LocalStorage) List(_ context.Context, prefix string) ([]ObjectInfo, error) {
	root := l.resolve(prefix)
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	if !info.IsDir() {
		etag, err := fileETag(root)
		if err != nil {
			return nil, err
		}
		// The relative path of an object to itself is empty, matching the
		// remote backend's behavior for an exact key match.
		return []ObjectInfo{{ETag: etag, Key: ""}}, nil
	}

	var objects []ObjectInfo
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		etag, err := fileETag(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		objects = append(objects, ObjectInfo{ETag: etag, Key: filepath.ToSlash(rel)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

func fileETag(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return ComputeETag(f)
}

var _ Storage = (*LocalStorage)(nil)
