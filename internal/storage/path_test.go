package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPartitionPath(t *testing.T) {
	tests := []struct {
		path     string
		protocol string
		bucket   string
		key      string
	}{
		{"s3://my-bucket/path/to/object", "s3", "my-bucket", "path/to/object"},
		{"s3://my-bucket/dir/", "s3", "my-bucket", "dir/"},
		{"gs://other/key.txt", "gs", "other", "key.txt"},
		{"s3:my-bucket/key", "s3", "my-bucket", "key"},
		{"local/file.txt", "file", "", "local/file.txt"},
		{"/abs/path/file.txt", "file", "", "/abs/path/file.txt"},
		{"file.txt", "file", "", "file.txt"},
		{"./dir/with:colon", "file", "", "./dir/with:colon"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			protocol, bucket, key := PartitionPath(tt.path)
			assert.Equal(t, tt.protocol, protocol)
			assert.Equal(t, tt.bucket, bucket)
			assert.Equal(t, tt.key, key)
		})
	}
}

func TestBuildPath_RoundTrip(t *testing.T) {
	tests := []struct {
		protocol string
		bucket   string
		key      string
	}{
		{"s3", "my-bucket", "path/to/object"},
		{"s3", "my-bucket", "dir/"},
		{"gs", "b", "k"},
	}

	for _, tt := range tests {
		built := BuildPath(tt.protocol, tt.bucket, tt.key)
		protocol, bucket, key := PartitionPath(built)
		assert.Equal(t, tt.protocol, protocol)
		assert.Equal(t, tt.bucket, bucket)
		assert.Equal(t, tt.key, key)
	}
}

func TestBuildPath_File(t *testing.T) {
	assert.Equal(t, "/some/path", BuildPath("file", "", "/some/path"))
}

func TestJoinKey(t *testing.T) {
	assert.Equal(t, "dir/a.txt", JoinKey("dir", "a.txt"))
	assert.Equal(t, "dir/a.txt", JoinKey("dir/", "a.txt"))
	assert.Equal(t, "dir", JoinKey("dir/", ""))
	assert.Equal(t, "a.txt", JoinKey("", "a.txt"))
	assert.Equal(t, "dir/sub/b.txt", JoinKey("dir", "sub/b.txt"))
}
