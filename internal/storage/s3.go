package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3Config carries the connection settings shared by every S3 backend
// instance of one sync operation.
type S3Config struct {
	AccessKey    string
	SecretKey    string
	SessionToken string
	Region       string
	Endpoint     string
}

// S3Storage implements Storage over one S3 bucket. The client is created
// lazily on first use and reused for the lifetime of the instance. It is not
// safe for concurrent use without external synchronization.
type S3Storage struct {
	config   *S3Config
	bucket   string
	client   *s3.Client
	uploader *manager.Uploader
}

func NewS3Storage(config *S3Config, bucket string) *S3Storage {
	return &S3Storage{config: config, bucket: bucket}
}

func (s *S3Storage) api(ctx context.Context) (*s3.Client, error) {
	if s.client != nil {
		return s.client, nil
	}
	slog.Debug("creating s3 client", "bucket", s.bucket, "endpoint", s.config.Endpoint)

	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			ForceAttemptHTTP2:   true,
		},
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithHTTPClient(httpClient),
	}
	if s.config.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s.config.AccessKey, s.config.SecretKey, s.config.SessionToken),
		))
	}
	if s.config.Region != "" {
		opts = append(opts, awsconfig.WithRegion(s.config.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	s.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if s.config.Endpoint != "" {
			o.BaseEndpoint = aws.String(s.config.Endpoint)
			o.UsePathStyle = true
		}
	})

	// The part size must equal the hash chunk size: above the multipart
	// threshold the remote ETag then keeps the "<hex>-<count>" format that
	// ComputeETag reports, so local and remote hashes stay comparable.
	s.uploader = manager.NewUploader(s.client, func(u *manager.Uploader) {
		u.PartSize = MultipartChunkSize
		u.Concurrency = 1
	})
	return s.client, nil
}

func (s *S3Storage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	client, err := s.api(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: s3://%s/%s", ErrObjectNotFound, s.bucket, key)
		}
		return nil, fmt.Errorf("get s3://%s/%s: %w", s.bucket, key, err)
	}
	return resp.Body, nil
}

func (s *S3Storage) ReadInto(ctx context.Context, key string, w io.Writer) error {
	body, err := s.Open(ctx, key)
	if err != nil {
		return err
	}
	defer body.Close()

	if _, err := io.Copy(w, body); err != nil {
		return fmt.Errorf("read s3://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}

// Write uploads the contents of r to key through the transfer manager, which
// switches to a multipart upload above the part size. The body is staged in a
// temp file first so a failed upload can be retried from the start without
// buffering large objects in memory. A missing bucket is created and the
// upload retried once.
func (s *S3Storage) Write(ctx context.Context, key string, r io.Reader) (int64, error) {
	slog.Debug("s3 write", "bucket", s.bucket, "key", key)

	staged, err := os.CreateTemp("", "s3conf-upload-*")
	if err != nil {
		return 0, fmt.Errorf("stage upload: %w", err)
	}
	defer func() {
		staged.Close()
		os.Remove(staged.Name())
	}()

	size, err := io.Copy(staged, r)
	if err != nil {
		return 0, fmt.Errorf("stage upload: %w", err)
	}

	if err := s.upload(ctx, key, staged); err != nil {
		var noBucket *types.NoSuchBucket
		if !errors.As(err, &noBucket) && !hasErrorCode(err, "NoSuchBucket") {
			return 0, fmt.Errorf("put s3://%s/%s: %w", s.bucket, key, err)
		}
		slog.Info("bucket does not exist, creating", "bucket", s.bucket)
		if err := s.createBucket(ctx); err != nil {
			return 0, err
		}
		if err := s.upload(ctx, key, staged); err != nil {
			return 0, fmt.Errorf("put s3://%s/%s: %w", s.bucket, key, err)
		}
	}
	return size, nil
}

func (s *S3Storage) upload(ctx context.Context, key string, body io.ReadSeeker) error {
	if _, err := s.api(ctx); err != nil {
		return err
	}
	if _, err := body.Seek(0, io.SeekStart); err != nil {
		return err
	}
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
		Body:   body,
	})
	return err
}

func (s *S3Storage) createBucket(ctx context.Context) error {
	client, err := s.api(ctx)
	if err != nil {
		return err
	}

	input := &s3.CreateBucketInput{Bucket: &s.bucket}
	if s.config.Region != "" && s.config.Region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(s.config.Region),
		}
	}
	if _, err := client.CreateBucket(ctx, input); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	return nil
}

func (s *S3Storage) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	client, err := s.api(ctx)
	if err != nil {
		return nil, err
	}

	prefix = strings.TrimSuffix(prefix, "/")
	var objects []ObjectInfo
	paginator := s3.NewListObjectsV2Paginator(client, &s3.ListObjectsV2Input{
		Bucket: &s.bucket,
		Prefix: &prefix,
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			var noBucket *types.NoSuchBucket
			if errors.As(err, &noBucket) || hasErrorCode(err, "NoSuchBucket") {
				// An absent bucket is a valid empty namespace, not an error.
				slog.Warn("bucket does not exist, returning empty list", "bucket", s.bucket)
				return nil, nil
			}
			return nil, fmt.Errorf("list s3://%s/%s: %w", s.bucket, prefix, err)
		}

		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, "/") {
				// Directory-marker pseudo-objects are never yielded.
				continue
			}
			rel, ok := relativeKey(key, prefix)
			if !ok {
				continue
			}
			objects = append(objects, ObjectInfo{
				ETag: aws.ToString(obj.ETag),
				Key:  rel,
			})
		}
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

// relativeKey reports the path of key relative to prefix. An S3 prefix match
// is a plain string prefix, so "files2/x" matches the prefix "files"; such
// keys are rejected because the prefix is not a path boundary for them.
func relativeKey(key, prefix string) (string, bool) {
	if prefix == "" {
		return key, true
	}
	rel := strings.TrimPrefix(key, prefix)
	if rel == key {
		return "", false
	}
	if rel == "" || strings.HasPrefix(rel, "/") {
		return strings.TrimPrefix(rel, "/"), true
	}
	return "", false
}

func isNotFound(err error) bool {
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return true
	}
	return hasErrorCode(err, "NoSuchKey", "NotFound")
}

func hasErrorCode(err error, codes ...string) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, code := range codes {
		if apiErr.ErrorCode() == code {
			return true
		}
	}
	return false
}

var _ Storage = (*S3Storage)(nil)
