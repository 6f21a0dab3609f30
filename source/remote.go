package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// SplitS3 splits s3://bucket/key into its bucket and key.
func SplitS3(url string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(url, "s3://")
	if !ok {
		return "", "", fmt.Errorf("not an s3 url: %s", url)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 url needs a bucket and a key: %s", url)
	}
	return bucket, key, nil
}

// NewS3Client returns a minio client for the configured endpoint.
func NewS3Client(o S3Options) (*minio.Client, error) {
	client, err := minio.New(o.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(o.Key, o.Secret, ""),
		Secure: o.Secure,
		Region: o.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return client, nil
}

func openS3(ctx context.Context, url string, opts Options) (RowSource, error) {
	bucket, key, err := SplitS3(url)
	if err != nil {
		return nil, readErr("%v", err)
	}
	client, err := NewS3Client(opts.S3)
	if err != nil {
		return nil, readErr("%v", err)
	}
	obj, err := client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, readErr("get %s: %v", url, err)
	}
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, readErr("stat %s: %v", url, err)
	}
	src, err := newParquet(ctx, obj, obj, opts)
	if err != nil {
		obj.Close()
		return nil, err
	}
	return src, nil
}

func openHTTP(ctx context.Context, url string, opts Options) (RowSource, error) {
	client := opts.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, readErr("%v", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, readErr("fetch %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, readErr("fetch %s: %s", url, resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, readErr("fetch %s: %v", url, err)
	}
	return newParquet(ctx, bytes.NewReader(body), nil, opts)
}
