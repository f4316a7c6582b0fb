package mediaproxy

import (
	"time"
)

// ObjectSummary is a single entry of a listing.
type ObjectSummary struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
}

// ObjectInfo describes a stored object as reported by the backend.
type ObjectInfo struct {
	Key          string            `json:"key"`
	ContentType  string            `json:"contentType"`
	Size         int64             `json:"size"`
	LastModified time.Time         `json:"lastModified"`
	ETag         string            `json:"etag,omitempty"`
	Metadata     map[string]string `json:"metadata"`
}

type ListQuery struct {
	Prefix string
	Limit  int
	Cursor string
}

type ListResult struct {
	Items      []ObjectSummary
	NextCursor string
}

// PutObject describes an object about to be written. Size is -1 when the
// length of the body is not known in advance.
type PutObject struct {
	Key         string
	ContentType string
	Size        int64
	Metadata    map[string]string
}

type PutResult struct {
	ETag string
}

// PresignPut describes a presigned upload grant request.
type PresignPut struct {
	Key         string
	ContentType string
	Metadata    map[string]string
	Expires     time.Duration
}

type PresignedURL struct {
	URL string
}

// PresignInput is a client request for an upload grant. Either Key (update an
// existing object) or Filename (create a new one) must be set.
type PresignInput struct {
	Key         string
	Filename    string
	ContentType string
	Metadata    map[string]any
}

// PresignedUpload is an upload grant handed back to the client.
type PresignedUpload struct {
	Key       string `json:"key"`
	URL       string `json:"url"`
	ExpiresIn int    `json:"expiresIn"`
}

// UploadInput describes a direct upload through the proxy.
type UploadInput struct {
	Key         string
	ContentType string
	Size        int64
	Metadata    map[string]string
}

type UploadResult struct {
	Key  string `json:"key"`
	ETag string `json:"etag"`
}

const (
	// DefaultPrefix is the listing prefix used when none is given.
	DefaultPrefix = "media/"

	DefaultListLimit = 100
	MaxListLimit     = 1000

	// DefaultPresignExpiry is the lifetime of presigned upload URLs.
	DefaultPresignExpiry = 900 * time.Second
)
