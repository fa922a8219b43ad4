package s3sync

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const cacheFileName = "md5.json"

func (s *Syncer) cachePath() string {
	return filepath.Join(s.settings.CacheDir, cacheFileName)
}

// loadHashCache reads the persisted hash snapshot. A missing file means "no
// prior knowledge", not an error.
func loadHashCache(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read hash cache %s: %w", path, err)
	}

	hashes := make(map[string]string)
	if err := json.Unmarshal(data, &hashes); err != nil {
		return nil, fmt.Errorf("parse hash cache %s: %w", path, err)
	}
	return hashes, nil
}

// saveHashCache overwrites the snapshot after every successful push or pull.
func saveHashCache(path string, hashes map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("write hash cache %s: %w", path, err)
	}
	data, err := json.MarshalIndent(hashes, "", "    ")
	if err != nil {
		return fmt.Errorf("encode hash cache: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write hash cache %s: %w", path, err)
	}
	return nil
}
