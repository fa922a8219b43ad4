package s3sync

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbneto/s3conf/internal/config"
)

// testEnv wires a syncer against two local directories: the project root
// and a directory standing in for the remote store. The local backend
// reports the same hash format as S3, so the whole push/pull/conflict flow
// runs without a network.
type testEnv struct {
	root   string
	remote string
	syncer *Syncer
}

func newTestEnv(t *testing.T, mappings string) *testEnv {
	t.Helper()

	root := t.TempDir()
	remote := t.TempDir()
	configFile := filepath.Join(root, config.ConfigName+".ini")
	require.NoError(t, os.WriteFile(configFile, nil, 0o644))

	t.Setenv("S3CONF", "")
	t.Setenv("S3CONF_MAP", mappings)

	settings, err := config.NewSettings("", configFile)
	require.NoError(t, err)
	return &testEnv{root: root, remote: remote, syncer: New(settings)}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestPushAndPull_RoundTrip(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	remote := t.TempDir()

	configFile := filepath.Join(root, config.ConfigName+".ini")
	require.NoError(t, os.WriteFile(configFile, nil, 0o644))
	t.Setenv("S3CONF", "")
	t.Setenv("S3CONF_MAP", filepath.Join(remote, "files", "x.txt")+":x.txt")

	settings, err := config.NewSettings("", configFile)
	require.NoError(t, err)
	syncer := New(settings)

	localFile := filepath.Join(root, "x.txt")
	writeFile(t, localFile, "payload")

	hashes, err := syncer.Push(ctx, true)
	require.NoError(t, err)
	require.Contains(t, hashes, localFile)
	pushedHash := hashes[localFile]

	data, err := os.ReadFile(filepath.Join(remote, "files", "x.txt"))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	// delete the local copy and restore it from the remote
	require.NoError(t, os.Remove(localFile))

	hashes, err = syncer.Pull(ctx)
	require.NoError(t, err)
	assert.Equal(t, pushedHash, hashes[localFile])

	restored, err := os.ReadFile(localFile)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(restored))
}

func TestPush_WritesHashCache(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, "")
	localFile := filepath.Join(env.root, "x.txt")
	writeFile(t, localFile, "payload")
	t.Setenv("S3CONF_MAP", filepath.Join(env.remote, "x.txt")+":x.txt")

	_, err := env.syncer.Push(ctx, true)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(env.root, "."+config.ConfigName, cacheFileName))
	require.NoError(t, err)

	cache := map[string]string{}
	require.NoError(t, json.Unmarshal(data, &cache))
	assert.Contains(t, cache, localFile)
	assert.Contains(t, cache[localFile], `"`)
}

func TestPush_ConflictDetection(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, "")
	localFile := filepath.Join(env.root, "x.txt")
	remoteFile := filepath.Join(env.remote, "x.txt")
	writeFile(t, localFile, "v1")
	t.Setenv("S3CONF_MAP", remoteFile+":x.txt")

	_, err := env.syncer.Push(ctx, true)
	require.NoError(t, err)

	// someone else edits the remote, then we edit locally
	writeFile(t, remoteFile, "remote edit")
	writeFile(t, localFile, "local edit")

	_, err = env.syncer.Push(ctx, false)
	require.ErrorIs(t, err, ErrLocalCopyOutdated)

	// nothing was transferred
	data, err := os.ReadFile(remoteFile)
	require.NoError(t, err)
	assert.Equal(t, "remote edit", string(data))

	// forcing overwrites the intervening edit
	_, err = env.syncer.Push(ctx, true)
	require.NoError(t, err)
	data, err = os.ReadFile(remoteFile)
	require.NoError(t, err)
	assert.Equal(t, "local edit", string(data))
}

func TestPush_NewFileProceedsWithoutCacheEntry(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, "")
	localFile := filepath.Join(env.root, "new.txt")
	remoteFile := filepath.Join(env.remote, "new.txt")
	writeFile(t, localFile, "brand new")
	writeFile(t, remoteFile, "unrelated")
	t.Setenv("S3CONF_MAP", remoteFile+":new.txt")

	// no prior push, so the cache has no entry: warn and proceed
	_, err := env.syncer.Push(ctx, false)
	require.NoError(t, err)

	data, err := os.ReadFile(remoteFile)
	require.NoError(t, err)
	assert.Equal(t, "brand new", string(data))
}

func TestPush_RecreatesMissingRemote(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, "")
	localFile := filepath.Join(env.root, "x.txt")
	remoteFile := filepath.Join(env.remote, "x.txt")
	writeFile(t, localFile, "v1")
	t.Setenv("S3CONF_MAP", remoteFile+":x.txt")

	_, err := env.syncer.Push(ctx, true)
	require.NoError(t, err)

	require.NoError(t, os.Remove(remoteFile))

	_, err = env.syncer.Push(ctx, false)
	require.NoError(t, err)
	data, err := os.ReadFile(remoteFile)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(data))
}

func TestPull_DirectoryMapping(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, "")
	writeFile(t, filepath.Join(env.remote, "conf", "a.txt"), "aaa")
	writeFile(t, filepath.Join(env.remote, "conf", "sub", "b.txt"), "bbb")
	t.Setenv("S3CONF_MAP", filepath.Join(env.remote, "conf")+"/:etc/conf/")

	hashes, err := env.syncer.Pull(ctx)
	require.NoError(t, err)
	assert.Len(t, hashes, 2)

	data, err := os.ReadFile(filepath.Join(env.root, "etc", "conf", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "aaa", string(data))

	data, err = os.ReadFile(filepath.Join(env.root, "etc", "conf", "sub", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "bbb", string(data))
}

func TestLoadHashCache_Missing(t *testing.T) {
	cache, err := loadHashCache(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Empty(t, cache)
}

func TestSaveHashCache_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", cacheFileName)
	require.NoError(t, saveHashCache(path, map[string]string{"a": "1"}))
	require.NoError(t, saveHashCache(path, map[string]string{"b": "2"}))

	cache, err := loadHashCache(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"b": "2"}, cache)
}
