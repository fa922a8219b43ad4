package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"
)

// BackendConfig carries everything the mapper needs to construct backend
// instances: the shared S3 connection settings and the root folder for
// local paths.
type BackendConfig struct {
	S3        *S3Config
	LocalRoot string
}

// CopyEntry is one unit of a copy plan: the source object's hash and the
// full source and target paths.
type CopyEntry struct {
	ETag   string
	Source string
	Target string
}

type backendKey struct {
	protocol string
	bucket   string
}

// Mapper routes paths to backend instances and moves objects between them.
// Backends are constructed lazily per (protocol, bucket) pair and cached for
// the lifetime of the mapper; the mapper is the sole owner of its backends.
type Mapper struct {
	config   BackendConfig
	backends map[backendKey]Storage
}

func NewMapper(config BackendConfig) *Mapper {
	return &Mapper{
		config:   config,
		backends: make(map[backendKey]Storage),
	}
}

// Storage returns the backend instance for the given path, constructing and
// caching it on first use. The protocol set is closed: a path with a protocol
// tag no backend implements is an error, never a silent fallback.
func (m *Mapper) Storage(path string) (Storage, error) {
	protocol, bucket, _ := PartitionPath(path)
	key := backendKey{protocol: protocol, bucket: bucket}
	if backend, ok := m.backends[key]; ok {
		return backend, nil
	}

	var backend Storage
	switch protocol {
	case "s3":
		backend = NewS3Storage(m.config.S3, bucket)
	case ProtocolFile:
		backend = NewLocalStorage(m.config.LocalRoot)
	default:
		return nil, fmt.Errorf("unsupported protocol %q in path %s", protocol, path)
	}
	slog.Debug("constructed backend", "protocol", protocol, "bucket", bucket)
	m.backends[key] = backend
	return backend, nil
}

// Expand lists the source and produces the flat copy plan for it. A source
// that names a single object (the listing has exactly one entry with an
// empty relative key) maps directly onto the target path; a directory source
// maps each contained object onto the target joined with its relative path.
func (m *Mapper) Expand(ctx context.Context, sourcePath, targetPath string) ([]CopyEntry, error) {
	sourceProto, sourceBucket, sourceKey := PartitionPath(sourcePath)
	targetProto, targetBucket, targetKey := PartitionPath(targetPath)

	source, err := m.Storage(sourcePath)
	if err != nil {
		return nil, err
	}
	objects, err := source.List(ctx, sourceKey)
	if err != nil {
		return nil, err
	}

	if len(objects) == 1 && objects[0].Key == "" {
		return []CopyEntry{{
			ETag:   objects[0].ETag,
			Source: BuildPath(sourceProto, sourceBucket, sourceKey),
			Target: BuildPath(targetProto, targetBucket, targetKey),
		}}, nil
	}

	entries := make([]CopyEntry, 0, len(objects))
	for _, obj := range objects {
		entries = append(entries, CopyEntry{
			ETag:   obj.ETag,
			Source: BuildPath(sourceProto, sourceBucket, JoinKey(sourceKey, obj.Key)),
			Target: BuildPath(targetProto, targetBucket, JoinKey(targetKey, obj.Key)),
		})
	}
	return entries, nil
}

// List returns the hash of every object under path, keyed by full path.
func (m *Mapper) List(ctx context.Context, path string) (map[string]string, error) {
	protocol, bucket, key := PartitionPath(path)
	backend, err := m.Storage(path)
	if err != nil {
		return nil, err
	}
	objects, err := backend.List(ctx, key)
	if err != nil {
		return nil, err
	}

	hashes := make(map[string]string, len(objects))
	for _, obj := range objects {
		hashes[BuildPath(protocol, bucket, JoinKey(key, obj.Key))] = obj.ETag
	}
	return hashes, nil
}

// Copy transfers every object under sourcePath to targetPath. Unless force
// is set, objects whose target hash already matches the source hash are
// skipped. The returned entries cover the full expansion, copied or skipped,
// so the caller can persist a complete hash snapshot.
func (m *Mapper) Copy(ctx context.Context, sourcePath, targetPath string, force bool) ([]CopyEntry, error) {
	entries, err := m.Expand(ctx, sourcePath, targetPath)
	if err != nil {
		return nil, err
	}

	var targetHashes map[string]string
	if !force {
		if targetHashes, err = m.List(ctx, targetPath); err != nil {
			return nil, err
		}
	}

	for _, entry := range entries {
		if !force && targetHashes[entry.Target] == entry.ETag {
			slog.Info("skipping (no changes)", "source", entry.Source, "target", entry.Target)
			continue
		}
		if err := m.transfer(ctx, entry); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

func (m *Mapper) transfer(ctx context.Context, entry CopyEntry) error {
	_, _, sourceKey := PartitionPath(entry.Source)
	_, _, targetKey := PartitionPath(entry.Target)

	source, err := m.Storage(entry.Source)
	if err != nil {
		return err
	}
	target, err := m.Storage(entry.Target)
	if err != nil {
		return err
	}

	body, err := source.Open(ctx, sourceKey)
	if err != nil {
		return err
	}
	defer body.Close()

	size, err := target.Write(ctx, targetKey, body)
	if err != nil {
		return fmt.Errorf("copy %s -> %s: %w", entry.Source, entry.Target, err)
	}
	slog.Info("copied", "source", entry.Source, "target", entry.Target, "size", humanize.Bytes(uint64(size)))
	return nil
}
