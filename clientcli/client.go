package clientcli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultTimeout is the default HTTP client timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultListLimit is the page size used when ListOptions.Limit is unset.
	DefaultListLimit = 100

	maxListLimit = 1000
)

// Client performs operations against a mediaproxy server.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// New creates a new Client with the given config and options.
func New(cfg *Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, ErrConfigRequired
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.WithDefaults()

	c := &Client{
		endpoint:   strings.TrimSuffix(cfg.Endpoint, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Endpoint returns the normalized server URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Health reports whether the server answers GET /health.
func (c *Client) Health(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodGet, c.endpoint+"/health", nil, nil)
}

// Upload uploads file(s) to the server.
// For recursive uploads, walks the directory and uses opts.Key as key prefix.
func (c *Client) Upload(ctx context.Context, opts UploadOptions) ([]UploadResult, error) {
	if opts.LocalPath == "" {
		return nil, fmt.Errorf("upload: %w", ErrEmptyPath)
	}
	if opts.Recursive {
		return c.uploadRecursive(ctx, opts)
	}
	result, err := c.uploadSingle(ctx, opts)
	if err != nil {
		return nil, err
	}
	return []UploadResult{result}, nil
}

// uploadRecursive walks a directory and uploads all files.
func (c *Client) uploadRecursive(ctx context.Context, opts UploadOptions) ([]UploadResult, error) {
	info, err := os.Stat(opts.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("stat local path: %w", err)
	}

	if !info.IsDir() {
		result, uploadErr := c.uploadSingle(ctx, opts)
		if uploadErr != nil {
			return nil, uploadErr
		}
		return []UploadResult{result}, nil
	}

	var results []UploadResult
	baseDir := opts.LocalPath
	keyPrefix := strings.Trim(opts.Key, "/")

	walkErr := filepath.WalkDir(baseDir, func(path string, d fs.DirEntry, fileErr error) error {
		if fileErr != nil {
			return fileErr
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}

		relPath, relErr := filepath.Rel(baseDir, path)
		if relErr != nil {
			results = append(results, UploadResult{
				LocalPath: path,
				Err:       fmt.Errorf("calculate relative path: %w", relErr),
			})
			return nil
		}

		key := filepath.ToSlash(relPath)
		if keyPrefix != "" {
			key = keyPrefix + "/" + key
		}

		fileOpts := opts
		fileOpts.LocalPath = path
		fileOpts.Key = key
		fileOpts.Filename = ""
		fileOpts.ContentType = ""

		result, uploadErr := c.uploadSingle(ctx, fileOpts)
		if uploadErr != nil {
			result = UploadResult{LocalPath: path, Key: key, Err: uploadErr}
		}
		results = append(results, result)
		return nil
	})

	if walkErr != nil {
		return results, fmt.Errorf("walk directory: %w", walkErr)
	}

	return results, nil
}

// uploadSingle uploads a single file, directly or through a presigned URL.
func (c *Client) uploadSingle(ctx context.Context, opts UploadOptions) (UploadResult, error) {
	file, err := os.Open(opts.LocalPath) //#nosec G304 -- LocalPath is user-provided input
	if err != nil {
		return UploadResult{}, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil {
		return UploadResult{}, fmt.Errorf("stat file: %w", err)
	}

	contentType := opts.ContentType
	if contentType == "" {
		contentType = detectContentType(opts.LocalPath)
	}

	result := UploadResult{
		LocalPath:   opts.LocalPath,
		ContentType: contentType,
		Size:        info.Size(),
		Presigned:   opts.Presigned,
	}

	if opts.Presigned {
		filename := opts.Filename
		if opts.Key == "" && filename == "" {
			filename = filepath.Base(opts.LocalPath)
		}
		grant, presignErr := c.presign(ctx, presignRequest{
			Key:         strings.TrimPrefix(opts.Key, "/"),
			Filename:    filename,
			ContentType: contentType,
			Metadata:    opts.Metadata,
		})
		if presignErr != nil {
			return UploadResult{}, presignErr
		}

		etag, putErr := c.putPresigned(ctx, grant.URL, file, info.Size(), contentType, opts.Metadata)
		if putErr != nil {
			return UploadResult{}, putErr
		}
		result.Key = grant.Key
		result.ETag = etag
		return result, nil
	}

	key := strings.TrimPrefix(opts.Key, "/")
	if key == "" {
		key = NormalizeLocalToRemotePath(opts.LocalPath)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.mediaURL(key), file)
	if err != nil {
		return UploadResult{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	for k, v := range opts.Metadata {
		req.Header.Set("X-Meta-"+k, v)
	}
	req.ContentLength = info.Size()

	var resp uploadResponse
	if err := c.do(req, &resp); err != nil {
		return UploadResult{}, err
	}

	result.Key = resp.Key
	result.ETag = resp.ETag
	return result, nil
}

func (c *Client) presign(ctx context.Context, in presignRequest) (presignResponse, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return presignResponse{}, fmt.Errorf("encode presign request: %w", err)
	}

	var grant presignResponse
	if err := c.doJSON(ctx, http.MethodPost, c.endpoint+"/media/presign", body, &grant); err != nil {
		return presignResponse{}, err
	}
	return grant, nil
}

// putPresigned sends the file to an upload URL. The URL either points back
// at this proxy, which reads X-Meta-* headers, or at the object store,
// which expects the signed X-Amz-Meta-* headers unless the signer moved
// them into the query string.
func (c *Client) putPresigned(ctx context.Context, target string, body io.Reader, size int64, contentType string, metadata map[string]string) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("parse upload url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", contentType)

	query := u.Query()
	for k, v := range metadata {
		req.Header.Set("X-Meta-"+k, v)
		if !query.Has("x-amz-meta-" + strings.ToLower(k)) {
			req.Header.Set("X-Amz-Meta-"+k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", parseServerError(resp.StatusCode, raw)
	}

	if etag := strings.Trim(resp.Header.Get("ETag"), `"`); etag != "" {
		return etag, nil
	}
	// The proxy answers with an envelope rather than an ETag header.
	var env envelope
	var out uploadResponse
	if json.Unmarshal(raw, &env) == nil && env.OK && json.Unmarshal(env.Data, &out) == nil {
		return out.ETag, nil
	}
	return "", nil
}

// Download downloads an object from the server.
// If opts.LocalPath is "-", the content is returned via the io.ReadCloser and must be closed by the caller.
// Otherwise, the content is written to the file and the io.ReadCloser is nil.
func (c *Client) Download(ctx context.Context, opts DownloadOptions) (*DownloadResult, io.ReadCloser, error) {
	key := strings.TrimPrefix(opts.Key, "/")
	if key == "" {
		return nil, nil, fmt.Errorf("download: %w", ErrEmptyKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.mediaURL(key), http.NoBody)
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("do request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return nil, nil, parseServerError(resp.StatusCode, body)
	}

	result := &DownloadResult{
		Key:         key,
		ETag:        strings.Trim(resp.Header.Get("ETag"), `"`),
		ContentType: resp.Header.Get("Content-Type"),
		Size:        resp.ContentLength,
	}

	if opts.LocalPath == "-" {
		result.LocalPath = "-"
		return result, resp.Body, nil
	}

	localPath := opts.LocalPath
	if localPath == "" {
		localPath = filepath.Base(filepath.FromSlash(key))
	}
	result.LocalPath = localPath

	dir := filepath.Dir(localPath)
	if dir != "" && dir != "." {
		if mkdirErr := os.MkdirAll(dir, 0o750); mkdirErr != nil {
			_ = resp.Body.Close()
			return nil, nil, fmt.Errorf("create directory: %w", mkdirErr)
		}
	}

	file, createErr := os.Create(localPath) //#nosec G304 -- localPath is user-provided input
	if createErr != nil {
		_ = resp.Body.Close()
		return nil, nil, fmt.Errorf("create file: %w", createErr)
	}

	written, copyErr := io.Copy(file, resp.Body)
	_ = resp.Body.Close()
	if copyErr != nil {
		_ = file.Close()
		return nil, nil, fmt.Errorf("write file: %w", copyErr)
	}

	if closeErr := file.Close(); closeErr != nil {
		return nil, nil, fmt.Errorf("close file: %w", closeErr)
	}

	result.Size = written
	return result, nil, nil
}

// Head returns the attributes and metadata of an object.
func (c *Client) Head(ctx context.Context, key string) (*ObjectInfo, error) {
	key = strings.TrimPrefix(key, "/")
	if key == "" {
		return nil, fmt.Errorf("head: %w", ErrEmptyKey)
	}

	var info ObjectInfo
	if err := c.doJSON(ctx, http.MethodGet, c.endpoint+"/media/head/"+escapeKey(key), nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Delete deletes one or more objects from the server.
// Continues on error, collecting results for all keys.
func (c *Client) Delete(ctx context.Context, opts DeleteOptions) ([]DeleteResult, error) {
	if len(opts.Keys) == 0 {
		return nil, ErrNoKeys
	}

	results := make([]DeleteResult, 0, len(opts.Keys))
	for _, key := range opts.Keys {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		result := DeleteResult{Key: key, Deleted: true}
		trimmed := strings.TrimPrefix(key, "/")
		if trimmed == "" {
			result = DeleteResult{Key: key, Err: ErrEmptyKey}
		} else if err := c.doJSON(ctx, http.MethodDelete, c.mediaURL(trimmed), nil, nil); err != nil {
			result = DeleteResult{Key: key, Err: err}
		}
		results = append(results, result)
	}

	return results, nil
}

// HasDeleteErrors returns true if any delete operation failed.
func HasDeleteErrors(results []DeleteResult) bool {
	for _, r := range results {
		if r.Err != nil {
			return true
		}
	}
	return false
}

// List lists objects under a prefix.
// If opts.All is true, paginates through all results.
func (c *Client) List(ctx context.Context, opts ListOptions) (*ListResult, error) {
	if !opts.All {
		return c.listPage(ctx, opts)
	}

	all := &ListResult{Prefix: opts.Prefix}
	cursor := opts.Cursor
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := c.listPage(ctx, ListOptions{Prefix: opts.Prefix, Limit: opts.Limit, Cursor: cursor})
		if err != nil {
			return nil, err
		}

		all.Prefix = page.Prefix
		all.Items = append(all.Items, page.Items...)
		if page.NextCursor == "" {
			return all, nil
		}
		cursor = page.NextCursor
	}
}

func (c *Client) listPage(ctx context.Context, opts ListOptions) (*ListResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	query := url.Values{}
	if opts.Prefix != "" {
		query.Set("prefix", opts.Prefix)
	}
	query.Set("limit", strconv.Itoa(limit))
	if opts.Cursor != "" {
		query.Set("cursor", opts.Cursor)
	}

	var result ListResult
	if err := c.doJSON(ctx, http.MethodGet, c.endpoint+"/media?"+query.Encode(), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// TotalSize calculates the total size of all items in bytes.
func (r *ListResult) TotalSize() int64 {
	var total int64
	for _, item := range r.Items {
		total += item.Size
	}
	return total
}

// doJSON sends body as JSON and decodes the envelope data into out.
func (c *Client) doJSON(ctx context.Context, method, target string, body []byte, out any) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseServerError(resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("parse response data: %w", err)
	}
	return nil
}

func (c *Client) mediaURL(key string) string {
	return c.endpoint + "/media/" + escapeKey(key)
}

// escapeKey escapes each path segment, keeping the slashes.
func escapeKey(key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}

// NormalizeLocalToRemotePath converts a local path to a clean object key.
// It handles:
//   - Leading "./" is stripped (./foo/bar.txt -> foo/bar.txt)
//   - Leading "/" is stripped (/abs/path/file.txt -> abs/path/file.txt)
//   - Parent traversal is resolved (../sibling/file.txt -> sibling/file.txt)
//   - Backslashes are converted to forward slashes (Windows)
func NormalizeLocalToRemotePath(localPath string) string {
	path := filepath.ToSlash(filepath.Clean(filepath.ToSlash(localPath)))
	path = strings.TrimPrefix(path, "./")
	path = strings.TrimPrefix(path, "/")

	for strings.HasPrefix(path, "../") {
		path = strings.TrimPrefix(path, "../")
	}
	if path == ".." || path == "." {
		return ""
	}
	return path
}

// detectContentType returns MIME type based on file extension.
func detectContentType(path string) string {
	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		return "application/octet-stream"
	}
	return mimeType
}

// parseServerError decodes an error envelope. Bodies that are not
// envelopes, such as object store XML errors, keep their text as message.
func parseServerError(statusCode int, body []byte) error {
	apiErr := &APIError{StatusCode: statusCode}

	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error != nil {
		apiErr.Code = env.Error.Code
		apiErr.Message = env.Error.Message
		return apiErr
	}

	apiErr.Message = strings.TrimSpace(string(body))
	return apiErr
}
