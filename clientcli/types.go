package clientcli

import (
	"encoding/json"
	"time"
)

// UploadOptions configures an upload operation.
type UploadOptions struct {
	LocalPath string
	// Key is the object key. With Presigned set and Key empty, the server
	// derives a key from Filename.
	Key         string
	Filename    string
	ContentType string // optional, auto-detect if empty
	Metadata    map[string]string
	// Presigned requests an upload URL first and PUTs the file there,
	// bypassing the proxy's direct upload size ceiling.
	Presigned bool
	Recursive bool
}

// UploadResult represents the result of uploading a single file.
type UploadResult struct {
	LocalPath   string `json:"local_path"`
	Key         string `json:"key"`
	ContentType string `json:"content_type"`
	ETag        string `json:"etag,omitempty"`
	Size        int64  `json:"size_bytes"`
	Presigned   bool   `json:"presigned"`
	Err         error  `json:"-"` // nil on success
}

// DownloadOptions configures a download operation.
type DownloadOptions struct {
	Key       string
	LocalPath string // empty = derive from key, "-" = stdout
}

// DownloadResult represents the result of downloading a file.
type DownloadResult struct {
	Key         string `json:"key"`
	LocalPath   string `json:"local_path"`
	ETag        string `json:"etag"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size_bytes"`
}

// DeleteOptions configures a delete operation.
type DeleteOptions struct {
	Keys []string
}

// DeleteResult represents the result of deleting a single object.
type DeleteResult struct {
	Key     string `json:"key"`
	Deleted bool   `json:"deleted"`
	Err     error  `json:"-"` // nil on success
}

// ListOptions configures a list operation.
type ListOptions struct {
	Prefix string
	Limit  int
	Cursor string
	All    bool // auto-paginate through all results
}

// ListResult contains paginated list results.
type ListResult struct {
	Prefix     string          `json:"prefix"`
	Items      []ObjectSummary `json:"items"`
	NextCursor string          `json:"nextCursor,omitempty"`
}

// ObjectSummary is one entry of a listing.
type ObjectSummary struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
}

// ObjectInfo holds the attributes returned by a head request.
type ObjectInfo struct {
	Key          string            `json:"key"`
	ContentType  string            `json:"contentType"`
	Size         int64             `json:"size"`
	LastModified time.Time         `json:"lastModified"`
	ETag         string            `json:"etag,omitempty"`
	Metadata     map[string]string `json:"metadata"`
}

// envelope mirrors the JSON body of every server response.
type envelope struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type presignRequest struct {
	Key         string            `json:"key,omitempty"`
	Filename    string            `json:"filename,omitempty"`
	ContentType string            `json:"contentType"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type presignResponse struct {
	Key       string `json:"key"`
	URL       string `json:"url"`
	ExpiresIn int    `json:"expiresIn"`
}

type uploadResponse struct {
	Key  string `json:"key"`
	ETag string `json:"etag"`
}
