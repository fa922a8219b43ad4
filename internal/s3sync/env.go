package s3sync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sbneto/s3conf/internal/editor"
	"github.com/sbneto/s3conf/internal/envfile"
	"github.com/sbneto/s3conf/internal/storage"
)

// readEnv resolves the configured environment file path and fetches its
// bytes. The path is returned even when the object does not exist so create
// flows can reuse it.
func (s *Syncer) readEnv(ctx context.Context) (string, []byte, error) {
	path, err := s.settings.EnvironmentFilePath()
	if err != nil {
		return "", nil, err
	}
	slog.Debug("loading environment file", "path", path)

	_, _, key := storage.PartitionPath(path)
	backend, err := s.mapper.Storage(path)
	if err != nil {
		return path, nil, err
	}
	var buf bytes.Buffer
	if err := backend.ReadInto(ctx, key, &buf); err != nil {
		return path, nil, err
	}
	return path, buf.Bytes(), nil
}

func (s *Syncer) writeEnv(ctx context.Context, path string, data []byte) error {
	_, _, key := storage.PartitionPath(path)
	backend, err := s.mapper.Storage(path)
	if err != nil {
		return err
	}
	if _, err := backend.Write(ctx, key, bytes.NewReader(data)); err != nil {
		return err
	}
	return nil
}

// EnvFile fetches and parses the configured environment file.
func (s *Syncer) EnvFile(ctx context.Context) (*envfile.EnvFile, error) {
	_, data, err := s.readEnv(ctx)
	if err != nil {
		return nil, err
	}
	return envfile.Parse(data), nil
}

// EnvMap returns the environment file's mapping view.
func (s *Syncer) EnvMap(ctx context.Context) (map[string]string, error) {
	file, err := s.EnvFile(ctx)
	if err != nil {
		return nil, err
	}
	return file.AsMap(), nil
}

// SetVar applies one KEY=VALUE assignment to the remote environment file
// with the usual stale-hash check. With create set, a missing remote file
// starts empty instead of failing.
func (s *Syncer) SetVar(ctx context.Context, assignment string, create bool) error {
	path, data, err := s.readEnv(ctx)
	if err != nil {
		if !errors.Is(err, storage.ErrObjectNotFound) || !create {
			return err
		}
		data = nil
	}

	baseHash, err := s.remoteHash(ctx, path)
	if err != nil {
		return err
	}

	file := envfile.Parse(data)
	if err := file.Set(assignment); err != nil {
		return err
	}
	return s.commitEnv(ctx, path, baseHash, file.Serialize())
}

// UnsetVar removes one key from the remote environment file. A missing file
// or key is a logged no-op.
func (s *Syncer) UnsetVar(ctx context.Context, key string) error {
	path, data, err := s.readEnv(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			slog.Warn("environment file does not exist, doing nothing", "path", path)
			return nil
		}
		return err
	}

	baseHash, err := s.remoteHash(ctx, path)
	if err != nil {
		return err
	}

	file := envfile.Parse(data)
	if !file.Unset(key) {
		return nil
	}
	return s.commitEnv(ctx, path, baseHash, file.Serialize())
}

// Edit materializes the remote environment file, hands it to the user's
// editor, and writes it back only if the remote is still at the hash
// observed before editing. A changed remote aborts with a unified diff
// between the current remote content and the attempted edit.
func (s *Syncer) Edit(ctx context.Context, create bool) error {
	path, data, err := s.readEnv(ctx)
	if err != nil {
		if !errors.Is(err, storage.ErrObjectNotFound) || !create {
			return err
		}
		data = nil
	}

	baseHash, err := s.remoteHash(ctx, path)
	if err != nil {
		return err
	}

	edited, err := editor.Edit(data)
	if err != nil {
		return err
	}
	editedHash, err := storage.ComputeETag(bytes.NewReader(edited))
	if err != nil {
		return err
	}

	if len(edited) == 0 && baseHash == "" {
		slog.Warn("remote file does not exist and no input was provided, nothing to write")
		return nil
	}
	if baseHash == editedHash {
		slog.Warn("file not changed, nothing to write")
		return nil
	}
	return s.commitEnv(ctx, path, baseHash, edited)
}

// commitEnv writes data to path if the remote hash still equals baseHash.
// This does not close the check-then-write race, it shrinks the window to a
// very small period of time; the guarantee is best effort, not linearizable.
func (s *Syncer) commitEnv(ctx context.Context, path, baseHash string, data []byte) error {
	live, err := s.remoteHash(ctx, path)
	if err != nil {
		return err
	}
	if live != baseHash {
		_, _, key := storage.PartitionPath(path)
		backend, err := s.mapper.Storage(path)
		if err != nil {
			return err
		}
		var current bytes.Buffer
		if err := backend.ReadInto(ctx, key, &current); err != nil &&
			!errors.Is(err, storage.ErrObjectNotFound) {
			return err
		}
		diff, err := envfile.DiffBytes(current.Bytes(), data, "remote", "local")
		if err != nil {
			diff = ""
		}
		return fmt.Errorf("%w: remote file %s was edited while editing the local copy, diff:\n\n%s",
			ErrLocalCopyOutdated, path, diff)
	}
	return s.writeEnv(ctx, path, data)
}

// DumpPhusion writes one file per variable under dir, in the format consumed
// by the phusion docker base image.
func DumpPhusion(vars map[string]string, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("dump environment: %w", err)
	}
	for key, value := range vars {
		path := filepath.Join(dir, key)
		if err := os.WriteFile(path, []byte(value+"\n"), 0o644); err != nil {
			return fmt.Errorf("dump %s: %w", key, err)
		}
	}
	return nil
}
