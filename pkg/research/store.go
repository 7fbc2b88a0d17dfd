package research

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/dd0wney/agentgraph/pkg/config"
)

// UploadStore keeps uploaded files
type UploadStore interface {
	// Put stores size bytes from r under key and returns where they went
	Put(ctx context.Context, key string, r io.Reader, size int64) (string, error)
	// Ping reports whether the store is usable
	Ping(ctx context.Context) error
	// Backend names the store in logs and metrics
	Backend() string
}

// NewUploadKey returns "<uuid>/<filename>" for a sanitized filename
func NewUploadKey(filename string) string {
	return uuid.NewString() + "/" + filename
}

// SanitizeFilename reduces name to a safe ASCII base name: whitespace runs
// become underscores, characters outside [A-Za-z0-9._-] are removed and
// leading or trailing dots and underscores are trimmed. It may return "".
func SanitizeFilename(name string) string {
	// Browsers on Windows may send the full client path
	name = name[strings.LastIndexAny(name, `/\`)+1:]
	name = strings.Join(strings.Fields(name), "_")

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "._")
}

// NewUploadStore builds the store selected by cfg.Storage.Backend
func NewUploadStore(ctx context.Context, cfg config.ServerConfig) (UploadStore, error) {
	switch cfg.Storage.Backend {
	case config.StorageLocal, "":
		return NewLocalStore(cfg.UploadDir)
	case config.StorageS3:
		return NewS3Store(ctx, cfg.Storage)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// LocalStore writes uploads under a directory
type LocalStore struct {
	dir string
}

// NewLocalStore creates dir if needed
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &LocalStore{dir: dir}, nil
}

func (s *LocalStore) Backend() string { return config.StorageLocal }

// Dir is the upload root
func (s *LocalStore) Dir() string { return s.dir }

func (s *LocalStore) Put(ctx context.Context, key string, r io.Reader, size int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dest := filepath.Join(s.dir, filepath.FromSlash(path.Clean("/" + key)))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload dir: %w", err)
	}

	tmp := dest + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && size >= 0 && n != size {
		err = fmt.Errorf("short write: %d of %d bytes", n, size)
	}
	if err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to write upload: %w", err)
	}

	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to commit upload: %w", err)
	}
	return dest, nil
}

// Ping checks the directory still exists
func (s *LocalStore) Ping(ctx context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", s.dir)
	}
	return nil
}

// s3API is the part of the S3 client the store uses
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, opts ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3Store puts uploads in an S3 (or S3-compatible) bucket
type S3Store struct {
	client s3API
	bucket string
	prefix string
}

// NewS3Store loads AWS configuration for cfg.Region. Static credentials are
// used when both keys are set; a custom endpoint switches to path-style
// addressing for MinIO and similar servers.
func NewS3Store(ctx context.Context, cfg config.StorageConfig) (*S3Store, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{client: client, bucket: cfg.Bucket, prefix: strings.Trim(cfg.Prefix, "/")}, nil
}

func (s *S3Store) Backend() string { return config.StorageS3 }

func (s *S3Store) objectKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

func (s *S3Store) Put(ctx context.Context, key string, r io.Reader, size int64) (string, error) {
	objKey := s.objectKey(key)
	in := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objKey),
		Body:   r,
	}
	if size >= 0 {
		in.ContentLength = aws.Int64(size)
	}

	if _, err := s.client.PutObject(ctx, in); err != nil {
		return "", fmt.Errorf("failed to put s3://%s/%s: %w", s.bucket, objKey, err)
	}
	return "s3://" + s.bucket + "/" + objKey, nil
}

// Ping checks the bucket is reachable with the configured credentials
func (s *S3Store) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	return err
}
