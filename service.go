package mediaproxy

import (
	"context"
	"fmt"
	"io"
	"time"
)

// Service applies the upload rules and forwards to a Gateway. It holds no
// mutable state and is safe for concurrent use.
type Service struct {
	gateway       Gateway
	policy        UploadPolicy
	keys          *KeyBuilder
	presignExpiry time.Duration
}

type ServiceOption func(*Service)

// WithKeyBuilder replaces the default key builder.
func WithKeyBuilder(b *KeyBuilder) ServiceOption {
	return func(s *Service) {
		s.keys = b
	}
}

// WithPresignExpiry sets the lifetime of presigned upload URLs.
func WithPresignExpiry(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.presignExpiry = d
		}
	}
}

func NewService(gateway Gateway, policy UploadPolicy, opts ...ServiceOption) (*Service, error) {
	if gateway == nil {
		return nil, fmt.Errorf("new service: %w: gateway is required", ErrInvalidInput)
	}
	s := &Service{
		gateway:       gateway,
		policy:        policy,
		keys:          NewKeyBuilder(),
		presignExpiry: DefaultPresignExpiry,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Policy returns the upload policy the service enforces.
func (s *Service) Policy() UploadPolicy {
	return s.policy
}

// List fills in the default prefix and clamps the limit before listing.
func (s *Service) List(ctx context.Context, q ListQuery) (ListResult, error) {
	if q.Prefix == "" {
		q.Prefix = DefaultPrefix
	}
	if q.Limit <= 0 {
		q.Limit = DefaultListLimit
	}
	q.Limit = min(q.Limit, MaxListLimit)

	return s.gateway.List(ctx, q)
}

// Presign issues an upload grant for an existing key or for a new key
// derived from in.Filename.
func (s *Service) Presign(ctx context.Context, in PresignInput) (PresignedUpload, error) {
	if in.ContentType == "" || (in.Key == "" && in.Filename == "") {
		return PresignedUpload{}, fmt.Errorf("presign: %w: contentType and key or filename are required", ErrInvalidInput)
	}
	if !s.policy.IsAllowed(in.ContentType) {
		return PresignedUpload{}, fmt.Errorf("presign %q: %w", in.ContentType, ErrUnsupportedMediaType)
	}

	key := in.Key
	if key == "" {
		key = s.keys.Build(in.Filename)
	}

	grant, err := s.gateway.PresignPut(ctx, PresignPut{
		Key:         key,
		ContentType: in.ContentType,
		Metadata:    NormalizeMetadata(in.Metadata),
		Expires:     s.presignExpiry,
	})
	if err != nil {
		return PresignedUpload{Key: key}, err
	}

	return PresignedUpload{
		Key:       key,
		URL:       grant.URL,
		ExpiresIn: int(s.presignExpiry / time.Second),
	}, nil
}

// Upload streams body to the gateway after checking the content type and,
// when the size is known, the size ceiling. Rejected uploads never reach
// the gateway.
func (s *Service) Upload(ctx context.Context, in UploadInput, body io.Reader) (UploadResult, error) {
	if in.ContentType == "" {
		return UploadResult{}, fmt.Errorf("upload: %w", ErrMissingContentType)
	}
	if !s.policy.IsAllowed(in.ContentType) {
		return UploadResult{}, fmt.Errorf("upload %q: %w", in.ContentType, ErrUnsupportedMediaType)
	}
	if s.policy.Exceeds(in.Size) {
		return UploadResult{}, fmt.Errorf("upload: %w: %d > %d", ErrPayloadTooLarge, in.Size, s.policy.MaxUploadBytes())
	}

	res, err := s.gateway.Put(ctx, PutObject{
		Key:         in.Key,
		ContentType: in.ContentType,
		Size:        in.Size,
		Metadata:    in.Metadata,
	}, body)
	if err != nil {
		return UploadResult{}, err
	}

	return UploadResult{Key: in.Key, ETag: res.ETag}, nil
}

func (s *Service) Head(ctx context.Context, key string) (ObjectInfo, error) {
	return s.gateway.Head(ctx, key)
}

// Download opens an object. The caller must close the returned reader.
func (s *Service) Download(ctx context.Context, key string) (ObjectInfo, io.ReadCloser, error) {
	return s.gateway.Get(ctx, key)
}

func (s *Service) Delete(ctx context.Context, key string) error {
	return s.gateway.Delete(ctx, key)
}
