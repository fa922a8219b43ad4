package storage

import (
	"bytes"
	"crypto/md5"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeETag_SingleBlock(t *testing.T) {
	data := []byte("hello world")
	etag, err := ComputeETag(bytes.NewReader(data))
	require.NoError(t, err)

	expected := fmt.Sprintf(`"%x"`, md5.Sum(data))
	assert.Equal(t, expected, etag)
}

func TestComputeETag_Empty(t *testing.T) {
	etag, err := ComputeETag(bytes.NewReader(nil))
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf(`"%x"`, md5.Sum(nil)), etag)
}

func TestComputeETag_Deterministic(t *testing.T) {
	data := bytes.Repeat([]byte("s3conf"), 1000)
	first, err := ComputeETag(bytes.NewReader(data))
	require.NoError(t, err)
	second, err := ComputeETag(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestComputeETagChunked_Multipart(t *testing.T) {
	const chunkSize = 1024
	data := bytes.Repeat([]byte{0xab}, 2*chunkSize)

	etag, err := ComputeETagChunked(bytes.NewReader(data), chunkSize, chunkSize)
	require.NoError(t, err)

	first := md5.Sum(data[:chunkSize])
	second := md5.Sum(data[chunkSize:])
	combined := md5.Sum(append(first[:], second[:]...))
	assert.Equal(t, fmt.Sprintf(`"%x-2"`, combined), etag)
}

func TestComputeETagChunked_ExactThresholdIsSingleBlock(t *testing.T) {
	const chunkSize = 1024
	data := bytes.Repeat([]byte{0x01}, chunkSize)

	etag, err := ComputeETagChunked(bytes.NewReader(data), chunkSize, chunkSize)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf(`"%x"`, md5.Sum(data)), etag)
}

func TestComputeETag_RewindsStream(t *testing.T) {
	data := []byte("rewound")
	reader := bytes.NewReader(data)
	_, err := ComputeETag(reader)
	require.NoError(t, err)

	buf := make([]byte, len(data))
	n, err := reader.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, data, buf[:n])
}
