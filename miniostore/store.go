package miniostore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/sagarc03/mediaproxy"
)

// Config configures the MinIO gateway.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	// Region is sent with every request; setting it avoids a bucket location
	// lookup before presigning.
	Region string
	UseSSL bool
}

// Store is a mediaproxy.Gateway backed by MinIO or any other S3-compatible
// service.
type Store struct {
	client *minio.Client
	bucket string
}

var _ mediaproxy.Gateway = (*Store)(nil)

// New creates a MinIO client. No request is sent.
func New(cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("miniostore: bucket is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &Store{client: client, bucket: cfg.Bucket}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *Store) EnsureBucket(ctx context.Context) (created bool, err error) {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return false, fmt.Errorf("check bucket existence: %w", err)
	}
	if exists {
		return false, nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return false, fmt.Errorf("create bucket %q: %w", s.bucket, err)
	}
	return true, nil
}

// List walks the bucket in key order. The cursor is the last key returned
// by the previous page.
func (s *Store) List(ctx context.Context, q mediaproxy.ListQuery) (mediaproxy.ListResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	objects := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:     q.Prefix,
		Recursive:  true,
		StartAfter: q.Cursor,
	})

	var res mediaproxy.ListResult
	for obj := range objects {
		if obj.Err != nil {
			return mediaproxy.ListResult{}, classify("list", q.Prefix, obj.Err)
		}
		if q.Limit > 0 && len(res.Items) == q.Limit {
			res.NextCursor = res.Items[len(res.Items)-1].Key
			break
		}
		res.Items = append(res.Items, mediaproxy.ObjectSummary{
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
		})
	}
	return res, nil
}

// Put streams body to the bucket. A negative size lets minio-go buffer
// the body in multipart chunks.
func (s *Store) Put(ctx context.Context, obj mediaproxy.PutObject, body io.Reader) (mediaproxy.PutResult, error) {
	info, err := s.client.PutObject(ctx, s.bucket, obj.Key, body, obj.Size, minio.PutObjectOptions{
		ContentType:  obj.ContentType,
		UserMetadata: obj.Metadata,
	})
	if err != nil {
		return mediaproxy.PutResult{}, classify("put", obj.Key, err)
	}
	return mediaproxy.PutResult{ETag: strings.Trim(info.ETag, `"`)}, nil
}

// PresignPut signs Content-Type and the x-amz-meta-* headers, so the
// uploader must send them unchanged.
func (s *Store) PresignPut(ctx context.Context, req mediaproxy.PresignPut) (mediaproxy.PresignedURL, error) {
	headers := make(http.Header)
	if req.ContentType != "" {
		headers.Set("Content-Type", req.ContentType)
	}
	for k, v := range req.Metadata {
		headers.Set("X-Amz-Meta-"+k, v)
	}

	u, err := s.client.PresignHeader(ctx, http.MethodPut, s.bucket, req.Key, req.Expires, url.Values{}, headers)
	if err != nil {
		return mediaproxy.PresignedURL{}, classify("presign", req.Key, err)
	}
	return mediaproxy.PresignedURL{URL: u.String()}, nil
}

func (s *Store) Get(ctx context.Context, key string) (mediaproxy.ObjectInfo, io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return mediaproxy.ObjectInfo{}, nil, classify("get", key, err)
	}

	// GetObject is lazy; Stat issues the request and surfaces NoSuchKey.
	stat, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return mediaproxy.ObjectInfo{}, nil, classify("get", key, err)
	}
	return toInfo(key, stat), obj, nil
}

func (s *Store) Head(ctx context.Context, key string) (mediaproxy.ObjectInfo, error) {
	stat, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return mediaproxy.ObjectInfo{}, classify("head", key, err)
	}
	return toInfo(key, stat), nil
}

// Delete removes key after confirming it exists; RemoveObject alone
// succeeds for absent keys.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err != nil {
		return classify("delete", key, err)
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return classify("delete", key, err)
	}
	return nil
}

func toInfo(key string, stat minio.ObjectInfo) mediaproxy.ObjectInfo {
	md := make(map[string]string, len(stat.UserMetadata))
	for k, v := range stat.UserMetadata {
		md[strings.ToLower(k)] = v
	}
	return mediaproxy.ObjectInfo{
		Key:          key,
		ContentType:  stat.ContentType,
		Size:         stat.Size,
		LastModified: stat.LastModified,
		ETag:         strings.Trim(stat.ETag, `"`),
		Metadata:     md,
	}
}

func classify(op, key string, err error) error {
	return mediaproxy.NewError(kindOf(err), op, key, err)
}

func kindOf(err error) mediaproxy.Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return mediaproxy.KindTimeout
	}

	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey", "NotFound":
		return mediaproxy.KindNotFound
	case "AccessDenied", "Forbidden":
		return mediaproxy.KindForbidden
	case "RequestTimeout":
		return mediaproxy.KindTimeout
	}
	// NoSuchBucket and other coded 404s are backend faults.
	switch {
	case resp.StatusCode == http.StatusNotFound && resp.Code == "":
		return mediaproxy.KindNotFound
	case resp.StatusCode == http.StatusForbidden:
		return mediaproxy.KindForbidden
	}
	return mediaproxy.KindOther
}
