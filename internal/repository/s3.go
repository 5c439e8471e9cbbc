package repository

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Options configures the S3 transport.
type S3Options struct {
	// Endpoint is the S3 host. Defaults to s3.amazonaws.com.
	Endpoint string
	// Region defaults to us-east-1.
	Region string
	// Insecure disables TLS, for local MinIO instances.
	Insecure bool
}

// S3Transport reads s3://bucket/prefix repositories. Repository username and
// password are used as access key and secret key.
type S3Transport struct {
	opts S3Options

	mu      sync.Mutex
	clients map[string]*minio.Client
}

// NewS3Transport creates an S3Transport.
func NewS3Transport(opts S3Options) *S3Transport {
	if strings.TrimSpace(opts.Endpoint) == "" {
		opts.Endpoint = "s3.amazonaws.com"
	}

	if strings.TrimSpace(opts.Region) == "" {
		opts.Region = "us-east-1"
	}

	return &S3Transport{opts: opts, clients: make(map[string]*minio.Client)}
}

func (t *S3Transport) client(repo Repository) (*minio.Client, error) {
	key := repo.Username + "\x00" + repo.Password

	t.mu.Lock()
	defer t.mu.Unlock()

	if c, ok := t.clients[key]; ok {
		return c, nil
	}

	c, err := minio.New(t.opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(repo.Username, repo.Password, ""),
		Secure: !t.opts.Insecure,
		Region: t.opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	t.clients[key] = c

	return c, nil
}

// objectLocation splits an s3 repository URL into bucket and object key.
func objectLocation(repoURL, p string) (bucket, key string, err error) {
	u, err := url.Parse(repoURL)
	if err != nil {
		return "", "", fmt.Errorf("parsing repository URL %q: %w", repoURL, err)
	}

	if u.Host == "" {
		return "", "", fmt.Errorf("repository URL %q has no bucket", repoURL)
	}

	return u.Host, strings.TrimPrefix(path.Join(u.Path, p), "/"), nil
}

// Fetch opens the object. NoSuchKey and NoSuchBucket map to ErrNotFound.
func (t *S3Transport) Fetch(ctx context.Context, repo Repository, p string) (io.ReadCloser, error) {
	bucket, key, err := objectLocation(repo.URL, p)
	if err != nil {
		return nil, err
	}

	c, err := t.client(repo)
	if err != nil {
		return nil, err
	}

	obj, err := c.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, mapS3Error(bucket, key, err)
	}

	// GetObject is lazy; Stat surfaces a missing key before the first read.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, mapS3Error(bucket, key, err)
	}

	return obj, nil
}

func mapS3Error(bucket, key string, err error) error {
	errResp := minio.ToErrorResponse(err)
	if errResp.Code == "NoSuchKey" || errResp.Code == "NoSuchBucket" {
		return fmt.Errorf("%w: s3://%s/%s", ErrNotFound, bucket, key)
	}

	return fmt.Errorf("s3://%s/%s: %w", bucket, key, err)
}
