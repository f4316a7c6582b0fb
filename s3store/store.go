package s3store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	smithy "github.com/aws/smithy-go"

	"github.com/sagarc03/mediaproxy"
)

// Config configures the S3 gateway.
type Config struct {
	Region string
	Bucket string
	// Endpoint overrides the AWS endpoint for S3-compatible services.
	Endpoint     string
	UsePathStyle bool
	// AccessKey and SecretKey pin static credentials; when empty the SDK
	// default credential chain is used.
	AccessKey  string
	SecretKey  string
	HTTPClient *http.Client
}

// Store is a mediaproxy.Gateway backed by an S3 bucket.
type Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
}

var _ mediaproxy.Gateway = (*Store)(nil)

// New builds an S3 client from cfg. No request is sent.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3store: bucket is required")
	}
	if cfg.Region == "" {
		return nil, errors.New("s3store: region is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, awsconfig.WithHTTPClient(cfg.HTTPClient))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3store: load config: %w", err)
	}

	endpoint := strings.TrimSpace(cfg.Endpoint)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			// Most S3-compatible stores reject the newer default checksums.
			o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
			o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
		}
	})

	return &Store{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.Bucket,
	}, nil
}

func (s *Store) List(ctx context.Context, q mediaproxy.ListQuery) (mediaproxy.ListResult, error) {
	in := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(q.Prefix),
	}
	if q.Limit > 0 {
		in.MaxKeys = aws.Int32(int32(q.Limit))
	}
	if q.Cursor != "" {
		in.ContinuationToken = aws.String(q.Cursor)
	}

	out, err := s.client.ListObjectsV2(ctx, in)
	if err != nil {
		return mediaproxy.ListResult{}, classify("list", q.Prefix, err)
	}

	items := make([]mediaproxy.ObjectSummary, 0, len(out.Contents))
	for _, obj := range out.Contents {
		items = append(items, mediaproxy.ObjectSummary{
			Key:          aws.ToString(obj.Key),
			Size:         aws.ToInt64(obj.Size),
			LastModified: aws.ToTime(obj.LastModified),
		})
	}

	var next string
	if aws.ToBool(out.IsTruncated) {
		next = aws.ToString(out.NextContinuationToken)
	}
	return mediaproxy.ListResult{Items: items, NextCursor: next}, nil
}

func (s *Store) Put(ctx context.Context, obj mediaproxy.PutObject, body io.Reader) (mediaproxy.PutResult, error) {
	in := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(obj.Key),
		ContentType: aws.String(obj.ContentType),
		Metadata:    obj.Metadata,
	}

	// The SDK signs the payload, so it needs a seekable body.
	if rs, ok := body.(io.ReadSeeker); ok && obj.Size >= 0 {
		in.Body = rs
		in.ContentLength = aws.Int64(obj.Size)
	} else {
		spooled, size, cleanup, err := spool(body)
		if err != nil {
			return mediaproxy.PutResult{}, mediaproxy.NewError(mediaproxy.KindOther, "put", obj.Key, err)
		}
		defer cleanup()
		in.Body = spooled
		in.ContentLength = aws.Int64(size)
	}

	out, err := s.client.PutObject(ctx, in)
	if err != nil {
		return mediaproxy.PutResult{}, classify("put", obj.Key, err)
	}
	return mediaproxy.PutResult{ETag: trimETag(out.ETag)}, nil
}

// spool copies body to a temporary file and rewinds it.
func spool(body io.Reader) (*os.File, int64, func(), error) {
	f, err := os.CreateTemp("", "mediaproxy-upload-*")
	if err != nil {
		return nil, 0, nil, fmt.Errorf("create spool file: %w", err)
	}
	cleanup := func() {
		_ = f.Close()
		_ = os.Remove(f.Name())
	}

	size, err := io.Copy(f, body)
	if err != nil {
		cleanup()
		return nil, 0, nil, fmt.Errorf("spool body: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		cleanup()
		return nil, 0, nil, fmt.Errorf("rewind spool file: %w", err)
	}
	return f, size, cleanup, nil
}

func (s *Store) PresignPut(ctx context.Context, req mediaproxy.PresignPut) (mediaproxy.PresignedURL, error) {
	out, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(req.Key),
		ContentType: aws.String(req.ContentType),
		Metadata:    req.Metadata,
	}, s3.WithPresignExpires(req.Expires))
	if err != nil {
		return mediaproxy.PresignedURL{}, classify("presign", req.Key, err)
	}
	return mediaproxy.PresignedURL{URL: out.URL}, nil
}

func (s *Store) Get(ctx context.Context, key string) (mediaproxy.ObjectInfo, io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return mediaproxy.ObjectInfo{}, nil, classify("get", key, err)
	}

	info := mediaproxy.ObjectInfo{
		Key:          key,
		ContentType:  aws.ToString(out.ContentType),
		Size:         aws.ToInt64(out.ContentLength),
		LastModified: aws.ToTime(out.LastModified),
		ETag:         trimETag(out.ETag),
		Metadata:     out.Metadata,
	}
	return info, out.Body, nil
}

func (s *Store) Head(ctx context.Context, key string) (mediaproxy.ObjectInfo, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return mediaproxy.ObjectInfo{}, classify("head", key, err)
	}

	return mediaproxy.ObjectInfo{
		Key:          key,
		ContentType:  aws.ToString(out.ContentType),
		Size:         aws.ToInt64(out.ContentLength),
		LastModified: aws.ToTime(out.LastModified),
		ETag:         trimETag(out.ETag),
		Metadata:     out.Metadata,
	}, nil
}

// Delete removes key. S3 deletes are idempotent, so existence is checked
// first to report absent keys.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return classify("delete", key, err)
	}

	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return classify("delete", key, err)
	}
	return nil
}

func trimETag(etag *string) string {
	return strings.Trim(aws.ToString(etag), `"`)
}

func classify(op, key string, err error) error {
	return mediaproxy.NewError(kindOf(err), op, key, err)
}

func kindOf(err error) mediaproxy.Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return mediaproxy.KindTimeout
	}
	var canceled *aws.RequestCanceledError
	if errors.As(err, &canceled) && errors.Is(canceled.Err, context.DeadlineExceeded) {
		return mediaproxy.KindTimeout
	}

	code := ""
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code = apiErr.ErrorCode()
		switch code {
		case "NoSuchKey", "NotFound":
			return mediaproxy.KindNotFound
		case "AccessDenied", "Forbidden":
			return mediaproxy.KindForbidden
		case "RequestTimeout":
			return mediaproxy.KindTimeout
		}
	}

	// A 404 that names some other resource, such as NoSuchBucket, is a
	// backend fault rather than a missing object.
	if status, ok := httpStatusCode(err); ok {
		switch {
		case status == http.StatusNotFound && code == "":
			return mediaproxy.KindNotFound
		case status == http.StatusForbidden:
			return mediaproxy.KindForbidden
		}
	}
	return mediaproxy.KindOther
}

func httpStatusCode(err error) (int, bool) {
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		return respErr.HTTPStatusCode(), true
	}
	return 0, false
}
