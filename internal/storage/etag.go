package storage

import (
	"crypto/md5"
	"fmt"
	"io"
)

const (
	// MultipartChunkSize is the block size used when hashing, matching the
	// default multipart chunk size of the AWS transfer managers.
	MultipartChunkSize = 8 * 1024 * 1024

	// MultipartThreshold is the size above which S3 switches to the
	// multipart ETag format.
	MultipartThreshold = 8 * 1024 * 1024
)

// ComputeETag returns the S3-compatible ETag of the stream contents using the
// default multipart parameters. The stream is rewound to its start before and
// after hashing so callers can re-read it.
func ComputeETag(r io.ReadSeeker) (string, error) {
	return ComputeETagChunked(r, MultipartThreshold, MultipartChunkSize)
}

// ComputeETagChunked replicates the S3 ETag algorithm. Objects up to
// threshold bytes hash to a double-quoted hex MD5. Larger objects hash to the
// MD5 of the concatenated per-chunk digests with a "-<count>" suffix, the
// format reported by S3 for multipart uploads.
func ComputeETagChunked(r io.ReadSeeker, threshold, chunkSize int64) (string, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("etag: rewind: %w", err)
	}

	var (
		size    int64
		digests []byte
	)
	blocks := 0
	whole := md5.New()
	buf := make([]byte, chunkSize)
	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			chunk := md5.Sum(buf[:n])
			digests = append(digests, chunk[:]...)
			whole.Write(buf[:n])
			size += int64(n)
			blocks++
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("etag: read: %w", err)
		}
	}

	var etag string
	if size <= threshold {
		etag = fmt.Sprintf("%x", whole.Sum(nil))
	} else {
		etag = fmt.Sprintf("%x-%d", md5.Sum(digests), blocks)
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("etag: rewind: %w", err)
	}
	return `"` + etag + `"`, nil
}
