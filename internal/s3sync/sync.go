// Package s3sync drives the storage mapper over the configured local/remote
// file mappings, maintains the local hash cache, and detects conflicts
// before overwriting concurrent remote edits.
package s3sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sbneto/s3conf/internal/config"
	"github.com/sbneto/s3conf/internal/storage"
)

// ErrLocalCopyOutdated is the conflict error: a push or an edit-save found
// that the remote object's hash diverged from the last known hash. It is
// always surfaced, never silently resolved.
var ErrLocalCopyOutdated = errors.New("local copy outdated")

// Syncer is the push/pull orchestrator. It assumes one sync operation in
// flight per process; backend handles are reused but not synchronized.
type Syncer struct {
	settings *config.Settings
	mapper   *storage.Mapper
}

func New(settings *config.Settings) *Syncer {
	return &Syncer{
		settings: settings,
		mapper:   storage.NewMapper(backendConfig(settings)),
	}
}

// backendConfig resolves the remote connection settings, preferring the
// tool-scoped keys over the plain AWS ones.
func backendConfig(s *config.Settings) storage.BackendConfig {
	return storage.BackendConfig{
		S3: &storage.S3Config{
			AccessKey:    s.Get("S3CONF_ACCESS_KEY_ID", s.Get("AWS_ACCESS_KEY_ID", "")),
			SecretKey:    s.Get("S3CONF_SECRET_ACCESS_KEY", s.Get("AWS_SECRET_ACCESS_KEY", "")),
			SessionToken: s.Get("S3CONF_SESSION_TOKEN", s.Get("AWS_SESSION_TOKEN", "")),
			Region:       s.Get("S3CONF_S3_REGION_NAME", s.Get("AWS_S3_REGION_NAME", "")),
			Endpoint:     s.Get("S3CONF_S3_ENDPOINT_URL", s.Get("AWS_S3_ENDPOINT_URL", "")),
		},
		LocalRoot: s.RootDir,
	}
}

// Mapper exposes the syncer's storage mapper for path-level operations.
func (s *Syncer) Mapper() *storage.Mapper {
	return s.mapper
}

// Pull materializes every configured remote mapping locally and persists
// the resulting hash snapshot as the new cache.
func (s *Syncer) Pull(ctx context.Context) (map[string]string, error) {
	hashes := make(map[string]string)
	for _, mapping := range s.settings.FileMappings() {
		state, err := s.mapper.Copy(ctx, mapping.Remote, mapping.Local, false)
		if err != nil {
			return nil, err
		}
		for _, entry := range state {
			hashes[entry.Target] = entry.ETag
		}
	}
	if err := saveHashCache(s.cachePath(), hashes); err != nil {
		return nil, err
	}
	return hashes, nil
}

// Push uploads every configured local mapping. Unless forced it first
// verifies, file by file, that the remote still carries the hash recorded
// in the cache; any divergence fails fast with ErrLocalCopyOutdated before
// a single byte is transferred.
func (s *Syncer) Push(ctx context.Context, force bool) (map[string]string, error) {
	if !force {
		if err := s.checkConflicts(ctx); err != nil {
			return nil, err
		}
	}

	hashes := make(map[string]string)
	for _, mapping := range s.settings.FileMappings() {
		state, err := s.mapper.Copy(ctx, mapping.Local, mapping.Remote, force)
		if err != nil {
			return nil, err
		}
		for _, entry := range state {
			hashes[entry.Source] = entry.ETag
		}
	}
	if err := saveHashCache(s.cachePath(), hashes); err != nil {
		return nil, err
	}
	return hashes, nil
}

func (s *Syncer) checkConflicts(ctx context.Context) error {
	cached, err := loadHashCache(s.cachePath())
	if err != nil {
		return err
	}

	for _, mapping := range s.settings.FileMappings() {
		entries, err := s.mapper.Expand(ctx, mapping.Local, mapping.Remote)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			known, ok := cached[entry.Source]
			if !ok {
				slog.Warn("new mapped file detected", "path", entry.Source)
				continue
			}
			live, err := s.remoteHash(ctx, entry.Target)
			if err != nil {
				return err
			}
			if live == "" {
				// The remote the cached hash referred to is gone; pushing
				// recreates it and clobbers nothing.
				slog.Warn("remote object missing, will be recreated", "path", entry.Target)
				continue
			}
			if live != known {
				return fmt.Errorf(
					"%w: remote file changed since last sync and hashes in cache conflict: %s -> %s (use force to upload anyway)",
					ErrLocalCopyOutdated, entry.Source, entry.Target)
			}
		}
	}
	return nil
}

// remoteHash returns the live hash of the object at path, or "" when the
// object does not exist.
func (s *Syncer) remoteHash(ctx context.Context, path string) (string, error) {
	_, _, key := storage.PartitionPath(path)
	backend, err := s.mapper.Storage(path)
	if err != nil {
		return "", err
	}
	objects, err := backend.List(ctx, key)
	if err != nil {
		return "", err
	}
	if len(objects) == 1 && objects[0].Key == "" {
		return objects[0].ETag, nil
	}
	return "", nil
}
