// Package store provides imagery.ObjectStore implementations: an
// S3-compatible bucket for production and an in-memory map for development
// and tests.
package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/i474232898/weather-imagery/internal/imagery"
)

// S3Config holds bucket connection settings.
type S3Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
}

// S3Store stores objects in one S3-compatible bucket.
type S3Store struct {
	client *minio.Client
	bucket string
}

// NewS3Store creates a client for cfg. It does not contact the bucket.
func NewS3Store(cfg S3Config) (*S3Store, error) {
	endpoint := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "https://"), "http://")
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: s3 client: %w", imagery.ErrConfiguration, err)
	}
	return &S3Store{client: client, bucket: cfg.Bucket}, nil
}

// Head returns object metadata.
func (s *S3Store) Head(ctx context.Context, key string) (imagery.ObjectInfo, error) {
	obj, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return imagery.ObjectInfo{}, s.wrap("head", key, err)
	}
	return objectInfo(obj), nil
}

// Get downloads the object fully.
func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.wrap("get", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, s.wrap("get", key, err)
	}
	return data, nil
}

// Put uploads data with the given content type.
func (s *S3Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return s.wrap("put", key, err)
	}
	return nil
}

// Delete removes the object. S3 treats deleting a missing key as success.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return s.wrap("delete", key, err)
	}
	return nil
}

// List returns the objects under prefix. A non-empty delimiter lists one
// level only.
func (s *S3Store) List(ctx context.Context, prefix, delimiter string) ([]imagery.ObjectInfo, error) {
	var result []imagery.ObjectInfo
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: delimiter == "",
	}) {
		if obj.Err != nil {
			return nil, s.wrap("list", prefix, obj.Err)
		}
		// Common prefixes come back as keys ending in the delimiter.
		if delimiter != "" && strings.HasSuffix(obj.Key, delimiter) {
			continue
		}
		result = append(result, objectInfo(obj))
	}
	return result, nil
}

// Ping checks that the bucket exists.
func (s *S3Store) Ping(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return s.wrap("ping", s.bucket, err)
	}
	if !ok {
		return fmt.Errorf("%w: bucket %s does not exist", imagery.ErrStorage, s.bucket)
	}
	return nil
}

func (s *S3Store) wrap(op, key string, err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || (resp.StatusCode == http.StatusNotFound && resp.Code != "NoSuchBucket") {
		return fmt.Errorf("%w: %s", imagery.ErrObjectNotFound, key)
	}
	return fmt.Errorf("%w: %s %s: %w", imagery.ErrStorage, op, key, err)
}

func objectInfo(obj minio.ObjectInfo) imagery.ObjectInfo {
	return imagery.ObjectInfo{
		Key:          obj.Key,
		Size:         obj.Size,
		ContentType:  obj.ContentType,
		LastModified: obj.LastModified,
	}
}
