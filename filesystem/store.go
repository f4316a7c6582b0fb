// Package filesystem provides a local directory storage gateway for mediaproxy.
// It supports atomic writes using temp files, SHA256-based etags, and
// JSON sidecars holding the content type and user metadata of each object.
package filesystem

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/sagarc03/mediaproxy"
)

// metaDir holds sidecars and temp files; keys may not start with it.
const (
	metaDir = ".meta"
	tmpDir  = ".meta/.tmp"
)

// Store provides file system storage operations.
type Store struct {
	root      *os.Root
	publicURL string
}

var _ mediaproxy.Gateway = (*Store)(nil)

// NewFileStorage creates a new Store with the given root directory.
// The root provides sandboxed file operations preventing path traversal.
// publicURL is the base URL of the proxy itself; upload grants point at
// its direct upload endpoint.
func NewFileStorage(root *os.Root, publicURL string) *Store {
	return &Store{root: root, publicURL: strings.TrimRight(publicURL, "/")}
}

type sidecar struct {
	ContentType string            `json:"contentType"`
	ETag        string            `json:"etag"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (n int, err error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}

// List returns objects under q.Prefix in lexical key order, starting after
// q.Cursor.
func (s *Store) List(ctx context.Context, q mediaproxy.ListQuery) (mediaproxy.ListResult, error) {
	if err := ctx.Err(); err != nil {
		return mediaproxy.ListResult{}, fail("list", q.Prefix, err)
	}

	var items []mediaproxy.ObjectSummary
	start := path.Dir(q.Prefix + "x")
	if !fs.ValidPath(start) {
		return mediaproxy.ListResult{}, nil
	}

	err := fs.WalkDir(s.root.FS(), start, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == start && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if p == metaDir {
				return fs.SkipDir
			}
			return nil
		}
		if !strings.HasPrefix(p, q.Prefix) || p <= q.Cursor {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		items = append(items, mediaproxy.ObjectSummary{
			Key:          p,
			Size:         info.Size(),
			LastModified: info.ModTime().UTC(),
		})
		return nil
	})
	if err != nil {
		return mediaproxy.ListResult{}, fail("list", q.Prefix, err)
	}

	// WalkDir orders per directory; "a.b" sorts before "a/b" as a key.
	sort.Slice(items, func(i, j int) bool { return items[i].Key < items[j].Key })

	var res mediaproxy.ListResult
	if q.Limit > 0 && len(items) > q.Limit {
		items = items[:q.Limit]
		res.NextCursor = items[len(items)-1].Key
	}
	res.Items = items
	return res, nil
}

// Put atomically writes the object and its sidecar.
func (s *Store) Put(ctx context.Context, obj mediaproxy.PutObject, body io.Reader) (mediaproxy.PutResult, error) {
	if err := s.checkKey("put", obj.Key); err != nil {
		return mediaproxy.PutResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return mediaproxy.PutResult{}, fail("put", obj.Key, err)
	}

	h := sha256.New()
	if err := s.writeAtomic(ctx, obj.Key, io.TeeReader(body, h)); err != nil {
		return mediaproxy.PutResult{}, fail("put", obj.Key, err)
	}
	etag := hex.EncodeToString(h.Sum(nil))

	meta, err := json.Marshal(sidecar{
		ContentType: obj.ContentType,
		ETag:        etag,
		Metadata:    obj.Metadata,
	})
	if err != nil {
		return mediaproxy.PutResult{}, fail("put", obj.Key, err)
	}
	if err := s.writeAtomic(ctx, sidecarPath(obj.Key), strings.NewReader(string(meta))); err != nil {
		return mediaproxy.PutResult{}, fail("put", obj.Key, err)
	}

	return mediaproxy.PutResult{ETag: etag}, nil
}

// writeAtomic writes content to a temp file and renames it into place,
// creating intermediate directories as needed.
func (s *Store) writeAtomic(ctx context.Context, name string, content io.Reader) error {
	if err := s.root.MkdirAll(tmpDir, 0o755); err != nil {
		return fmt.Errorf("could not create temp directory: %w", err)
	}

	tmpFile := tmpFileName()
	t, createErr := s.root.Create(tmpFile)
	if createErr != nil {
		return fmt.Errorf("could not open temp file: %w", createErr)
	}

	success := false
	defer func() {
		if closeErr := t.Close(); closeErr != nil {
			slog.Warn("failed to close tmp file", "err", closeErr)
		}
		if !success {
			if rmErr := s.root.Remove(tmpFile); rmErr != nil {
				slog.Warn("failed to remove tmp file", "err", rmErr)
			}
		}
	}()

	if _, err := io.Copy(t, &ctxReader{ctx: ctx, r: content}); err != nil {
		return fmt.Errorf("could not copy file contents: %w", err)
	}

	if err := t.Sync(); err != nil {
		return fmt.Errorf("could not sync written file: %w", err)
	}

	destDir := filepath.Dir(name)
	if destDir != "." {
		if err := s.root.MkdirAll(destDir, 0o755); err != nil {
			return fmt.Errorf("could not create intermediate directories: %w", err)
		}
	}

	if renameErr := s.root.Rename(tmpFile, name); renameErr != nil {
		return fmt.Errorf("failed to rename file: %w", renameErr)
	}

	success = true
	return nil
}

// PresignPut returns the proxy's own upload URL for the key. The local
// backend has no signer, so Expires is not enforced.
func (s *Store) PresignPut(ctx context.Context, req mediaproxy.PresignPut) (mediaproxy.PresignedURL, error) {
	if err := s.checkKey("presign", req.Key); err != nil {
		return mediaproxy.PresignedURL{}, err
	}
	if err := ctx.Err(); err != nil {
		return mediaproxy.PresignedURL{}, fail("presign", req.Key, err)
	}

	segments := strings.Split(req.Key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return mediaproxy.PresignedURL{URL: s.publicURL + "/media/" + strings.Join(segments, "/")}, nil
}

// Get opens an object for reading. The caller closes the returned reader.
func (s *Store) Get(ctx context.Context, key string) (mediaproxy.ObjectInfo, io.ReadCloser, error) {
	if err := s.checkKey("get", key); err != nil {
		return mediaproxy.ObjectInfo{}, nil, err
	}
	if err := ctx.Err(); err != nil {
		return mediaproxy.ObjectInfo{}, nil, fail("get", key, err)
	}

	f, err := s.root.Open(key)
	if err != nil {
		return mediaproxy.ObjectInfo{}, nil, fail("get", key, err)
	}

	stat, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return mediaproxy.ObjectInfo{}, nil, fail("get", key, err)
	}
	if stat.IsDir() {
		_ = f.Close()
		return mediaproxy.ObjectInfo{}, nil, fail("get", key, fs.ErrNotExist)
	}

	return s.info(key, stat.Size(), stat.ModTime()), f, nil
}

func (s *Store) Head(ctx context.Context, key string) (mediaproxy.ObjectInfo, error) {
	if err := s.checkKey("head", key); err != nil {
		return mediaproxy.ObjectInfo{}, err
	}
	if err := ctx.Err(); err != nil {
		return mediaproxy.ObjectInfo{}, fail("head", key, err)
	}

	stat, err := s.root.Stat(key)
	if err != nil {
		return mediaproxy.ObjectInfo{}, fail("head", key, err)
	}
	if stat.IsDir() {
		return mediaproxy.ObjectInfo{}, fail("head", key, fs.ErrNotExist)
	}

	return s.info(key, stat.Size(), stat.ModTime()), nil
}

// Delete removes a file and its sidecar.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.checkKey("delete", key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fail("delete", key, err)
	}

	stat, err := s.root.Stat(key)
	if err != nil {
		return fail("delete", key, err)
	}
	if stat.IsDir() {
		return fail("delete", key, fs.ErrNotExist)
	}

	if err := s.root.Remove(key); err != nil {
		return fail("delete", key, fmt.Errorf("could not delete file: %w", err))
	}
	if err := s.root.Remove(sidecarPath(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to remove sidecar", "key", key, "err", err)
	}
	return nil
}

// info merges file attributes with the sidecar. Files placed in the
// directory by hand have no sidecar and get a type from their extension.
func (s *Store) info(key string, size int64, modTime time.Time) mediaproxy.ObjectInfo {
	info := mediaproxy.ObjectInfo{
		Key:          key,
		Size:         size,
		LastModified: modTime.UTC(),
		Metadata:     map[string]string{},
	}

	raw, err := s.root.ReadFile(sidecarPath(key))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("failed to read sidecar", "key", key, "err", err)
		}
		info.ContentType = detectContentType(key)
		return info
	}

	var meta sidecar
	if err := json.Unmarshal(raw, &meta); err != nil {
		slog.Warn("corrupt sidecar", "key", key, "err", err)
		info.ContentType = detectContentType(key)
		return info
	}

	info.ContentType = meta.ContentType
	info.ETag = meta.ETag
	if meta.Metadata != nil {
		info.Metadata = meta.Metadata
	}
	return info
}

func (s *Store) checkKey(op, key string) error {
	if !mediaproxy.IsValidKey(key) || key == metaDir || strings.HasPrefix(key, metaDir+"/") {
		return mediaproxy.NewError(mediaproxy.KindInvalidKey, op, key, nil)
	}
	return nil
}

func fail(op, key string, err error) error {
	kind := mediaproxy.KindOther
	switch {
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, syscall.ENOTDIR):
		kind = mediaproxy.KindNotFound
	case errors.Is(err, fs.ErrPermission):
		kind = mediaproxy.KindForbidden
	case errors.Is(err, context.DeadlineExceeded):
		kind = mediaproxy.KindTimeout
	}
	return mediaproxy.NewError(kind, op, key, err)
}

func sidecarPath(key string) string {
	return metaDir + "/" + key + ".json"
}

func detectContentType(p string) string {
	contentType := mime.TypeByExtension(filepath.Ext(p))

	if contentType == "" {
		return "application/octet-stream"
	}

	return contentType
}

func tmpFileName() string {
	return fmt.Sprintf("%s/.t%s", tmpDir, uuid.New().String())
}
