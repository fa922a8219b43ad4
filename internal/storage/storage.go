package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned when a requested key does not exist on a
// backend.
var ErrObjectNotFound = errors.New("object not found")

// ObjectInfo describes one object found by List. Key is the object's path
// relative to the listed prefix; it is empty when the prefix names the
// object itself.
type ObjectInfo struct {
	ETag string
	Key  string
}

// Storage is the capability set every backend implements. Listing reflects
// the backend's state at call time; the only state a backend holds across
// calls is its lazily created client or root.
type Storage interface {
	// Open returns a reader over the object at key. The caller closes it.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// ReadInto copies the object at key into w.
	ReadInto(ctx context.Context, key string, w io.Writer) error

	// Write stores the contents of r at key, creating parent containers
	// (bucket or directories) as needed. It returns the number of bytes
	// written.
	Write(ctx context.Context, key string, r io.Reader) (int64, error)

	// List enumerates objects under prefix. A prefix naming a single
	// existing object yields exactly one entry with an empty relative key.
	// A missing prefix yields no entries. Directory-marker pseudo-objects
	// are never yielded. Results are sorted by key.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}
