package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"

	"github.com/sagarc03/mediaproxy"
)

// DefaultMaxPresignBodyBytes caps the presign request body when no limit is configured.
const DefaultMaxPresignBodyBytes = 64 << 10

type Service interface {
	List(ctx context.Context, q mediaproxy.ListQuery) (mediaproxy.ListResult, error)
	Presign(ctx context.Context, in mediaproxy.PresignInput) (mediaproxy.PresignedUpload, error)
	Upload(ctx context.Context, in mediaproxy.UploadInput, body io.Reader) (mediaproxy.UploadResult, error)
	Head(ctx context.Context, key string) (mediaproxy.ObjectInfo, error)
	Download(ctx context.Context, key string) (mediaproxy.ObjectInfo, io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	// Policy supplies the direct upload ceiling enforced on PUT bodies.
	Policy() mediaproxy.UploadPolicy
}

type CORSConfig struct {
	Enabled          bool
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

type HandlerConfig struct {
	MaxPresignBodyBytes int64
	CORS                CORSConfig
	// Metrics, when set, is served on GET /metrics.
	Metrics http.Handler
	// Middleware runs inside the router, after request logging.
	Middleware []func(http.Handler) http.Handler
}

// Handler provides HTTP handlers for media operations.
type Handler struct {
	config   HandlerConfig
	service  Service
	validate *validator.Validate
}

// NewHandler creates a new Handler with the given configuration and service.
func NewHandler(config *HandlerConfig, service Service) *Handler {
	cfg := *config
	if cfg.MaxPresignBodyBytes <= 0 {
		cfg.MaxPresignBodyBytes = DefaultMaxPresignBodyBytes
	}
	return &Handler{
		config:   cfg,
		service:  service,
		validate: validator.New(),
	}
}

// Router returns an http.Handler serving the media API. Literal routes win
// over the /media/* catch-all, so /media/presign and /media/head/* are
// never treated as object keys.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(Recoverer)
	for _, mw := range h.config.Middleware {
		r.Use(mw)
	}

	if h.config.CORS.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.config.CORS.AllowedOrigins,
			AllowedMethods:   h.config.CORS.AllowedMethods,
			AllowedHeaders:   h.config.CORS.AllowedHeaders,
			ExposedHeaders:   h.config.CORS.ExposedHeaders,
			AllowCredentials: h.config.CORS.AllowCredentials,
			MaxAge:           h.config.CORS.MaxAge,
		}))
	}

	r.NotFound(notFound)
	r.MethodNotAllowed(methodNotAllowed)

	r.Get("/health", h.handleHealth)
	if h.config.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.config.Metrics)
	}

	r.Get("/media", h.handleList)
	r.HandleFunc("/media/presign", h.handlePresign)
	r.Get("/media/head/*", h.handleHead)
	r.Get("/media/*", h.handleDownload)
	r.Put("/media/*", h.handlePut)
	r.Delete("/media/*", h.handleDelete)

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	_ = WriteData(w, http.StatusOK, map[string]string{"status": "ok"})
}

type listItem struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
}

type listResponse struct {
	Prefix     string     `json:"prefix"`
	Items      []listItem `json:"items"`
	NextCursor string     `json:"nextCursor,omitempty"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	if prefix == "" {
		prefix = mediaproxy.DefaultPrefix
	}

	limit := mediaproxy.DefaultListLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil {
			WriteError(w, http.StatusBadRequest, CodeBadRequest, "Invalid limit parameter")
			return
		}
		limit = max(1, min(mediaproxy.MaxListLimit, parsed))
	}

	result, err := h.service.List(r.Context(), mediaproxy.ListQuery{
		Prefix: prefix,
		Limit:  limit,
		Cursor: r.URL.Query().Get("cursor"),
	})
	if err != nil {
		logAction(r, slog.LevelError, "LIST", "error", "prefix", prefix, "error", err)
		HandleBackendError(w, err, "List failed")
		return
	}

	items := make([]listItem, len(result.Items))
	for i, o := range result.Items {
		items[i] = listItem{Key: o.Key, Size: o.Size, LastModified: o.LastModified}
	}

	logAction(r, slog.LevelInfo, "LIST", "success", "prefix", prefix, "count", len(items))
	_ = WriteData(w, http.StatusOK, listResponse{
		Prefix:     prefix,
		Items:      items,
		NextCursor: result.NextCursor,
	})
}

type presignRequest struct {
	Key         string          `json:"key" validate:"required_without=Filename"`
	Filename    string          `json:"filename"`
	ContentType string          `json:"contentType" validate:"required"`
	Metadata    json.RawMessage `json:"metadata"`
}

func (h *Handler) handlePresign(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		methodNotAllowed(w, r)
		return
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.config.MaxPresignBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			logAction(r, slog.LevelWarn, "PRESIGN", "rejected", "reason", "body_too_large")
			WriteError(w, http.StatusRequestEntityTooLarge, CodePayloadTooLarge,
				fmt.Sprintf("Max %d bytes for presign requests", h.config.MaxPresignBodyBytes))
			return
		}
		logAction(r, slog.LevelWarn, "PRESIGN", "rejected", "reason", "read_body", "error", err)
		WriteError(w, http.StatusBadRequest, CodeBadRequest, "Could not read request body")
		return
	}

	var req presignRequest
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &req); err != nil {
			var typeErr *json.UnmarshalTypeError
			if !errors.As(err, &typeErr) {
				logAction(r, slog.LevelWarn, "PRESIGN", "rejected", "reason", "invalid_json")
				WriteError(w, http.StatusBadRequest, CodeInvalidJSON, "Invalid JSON body")
				return
			}
			req = presignRequest{}
		}
	}

	if err := h.validate.Struct(&req); err != nil {
		logAction(r, slog.LevelWarn, "PRESIGN", "rejected", "reason", "missing_contentType_or_key_filename")
		WriteError(w, http.StatusBadRequest, CodeBadRequest, "Missing contentType and key/filename")
		return
	}

	in := mediaproxy.PresignInput{
		Key:         req.Key,
		Filename:    req.Filename,
		ContentType: req.ContentType,
		Metadata:    decodeMetadata(req.Metadata),
	}

	grant, err := h.service.Presign(r.Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, mediaproxy.ErrUnsupportedMediaType):
			logAction(r, slog.LevelWarn, "PRESIGN", "rejected", "key", req.Key, "reason", "unsupported type "+req.ContentType)
			WriteError(w, http.StatusUnsupportedMediaType, CodeUnsupportedMediaType, "Unsupported Media Type")
		case errors.Is(err, mediaproxy.ErrInvalidInput):
			logAction(r, slog.LevelWarn, "PRESIGN", "rejected", "reason", "missing_contentType_or_key_filename")
			WriteError(w, http.StatusBadRequest, CodeBadRequest, "Missing contentType and key/filename")
		default:
			logAction(r, slog.LevelError, "PRESIGN", "error", "key", grant.Key, "error", err)
			HandleBackendError(w, err, "Presign failed")
		}
		return
	}

	logAction(r, slog.LevelInfo, "PRESIGN", "success",
		"key", grant.Key,
		"contentType", in.ContentType,
		"hasMetadata", len(in.Metadata) > 0,
		"expiresIn", grant.ExpiresIn,
	)
	_ = WriteData(w, http.StatusCreated, grant)
}

// decodeMetadata accepts only a JSON object; any other shape is ignored.
func decodeMetadata(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var md map[string]any
	if err := json.Unmarshal(raw, &md); err != nil {
		return nil
	}
	return md
}

type headResponse struct {
	Key          string            `json:"key"`
	ContentType  string            `json:"contentType"`
	Size         int64             `json:"size"`
	LastModified time.Time         `json:"lastModified"`
	ETag         string            `json:"etag,omitempty"`
	Metadata     map[string]string `json:"metadata"`
}

func (h *Handler) handleHead(w http.ResponseWriter, r *http.Request) {
	key, ok := h.mediaKey(w, r)
	if !ok {
		return
	}

	info, err := h.service.Head(r.Context(), key)
	if err != nil {
		h.logLookupError(r, "HEAD", key, err)
		HandleError(w, err, "")
		return
	}

	md := info.Metadata
	if md == nil {
		md = map[string]string{}
	}

	logAction(r, slog.LevelInfo, "HEAD", "success", "key", key, "contentType", info.ContentType, "size", info.Size)
	_ = WriteData(w, http.StatusOK, headResponse{
		Key:          key,
		ContentType:  info.ContentType,
		Size:         info.Size,
		LastModified: info.LastModified,
		ETag:         info.ETag,
		Metadata:     md,
	})
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	key, ok := h.mediaKey(w, r)
	if !ok {
		return
	}

	info, body, err := h.service.Download(r.Context(), key)
	if err != nil {
		h.logLookupError(r, "DOWNLOAD", key, err)
		HandleError(w, err, "")
		return
	}
	defer func() { _ = body.Close() }()

	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	if info.ETag != "" {
		w.Header().Set("ETag", `"`+info.ETag+`"`)
	}
	if !info.LastModified.IsZero() {
		w.Header().Set("Last-Modified", info.LastModified.UTC().Format(http.TimeFormat))
	}
	w.WriteHeader(http.StatusOK)

	n, err := io.Copy(w, body)
	if err != nil {
		// Headers are gone; the client sees a truncated body.
		logAction(r, slog.LevelError, "DOWNLOAD", "error", "key", key, "written", n, "error", err)
		return
	}

	logAction(r, slog.LevelInfo, "DOWNLOAD", "success", "key", key, "contentType", contentType, "contentLength", n)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	key, ok := h.mediaKey(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), key); err != nil {
		switch mediaproxy.KindOf(err) {
		case mediaproxy.KindNotFound, mediaproxy.KindForbidden:
			logAction(r, slog.LevelWarn, "DELETE", "not_found_or_forbidden", "key", key, "error", err)
			WriteError(w, http.StatusNotFound, CodeNotFound, "File not found or cannot delete")
		default:
			logAction(r, slog.LevelError, "DELETE", "error", "key", key, "error", err)
			HandleError(w, err, "Delete failed")
		}
		return
	}

	logAction(r, slog.LevelInfo, "DELETE", "success", "key", key)
	_ = WriteData(w, http.StatusOK, map[string]any{"deleted": true, "key": key})
}

func (h *Handler) handlePut(w http.ResponseWriter, r *http.Request) {
	key, ok := h.mediaKey(w, r)
	if !ok {
		return
	}

	contentType := r.Header.Get("Content-Type")
	body := io.Reader(r.Body)
	maxBytes := h.service.Policy().MaxUploadBytes()
	if maxBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, maxBytes)
	}

	in := mediaproxy.UploadInput{
		Key:         key,
		ContentType: contentType,
		Size:        r.ContentLength,
		Metadata:    mediaproxy.MetadataFromHeaders(r.Header),
	}

	res, err := h.service.Upload(r.Context(), in, body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, mediaproxy.ErrMissingContentType):
			logAction(r, slog.LevelWarn, "UPLOAD", "rejected", "key", key, "reason", "missing content-type")
			WriteError(w, http.StatusUnsupportedMediaType, CodeUnsupportedMediaType, "Missing Content-Type header")
		case errors.Is(err, mediaproxy.ErrUnsupportedMediaType):
			logAction(r, slog.LevelWarn, "UPLOAD", "rejected", "key", key, "reason", "unsupported type "+contentType)
			WriteError(w, http.StatusUnsupportedMediaType, CodeUnsupportedMediaType, "Unsupported Media Type: "+contentType)
		case errors.Is(err, mediaproxy.ErrPayloadTooLarge), errors.As(err, &tooLarge):
			logAction(r, slog.LevelWarn, "UPLOAD", "rejected", "key", key,
				"reason", fmt.Sprintf("too large (%d > %d)", r.ContentLength, maxBytes))
			WriteError(w, http.StatusRequestEntityTooLarge, CodePayloadTooLarge,
				fmt.Sprintf("Max %d bytes. Use /media/presign", maxBytes))
		default:
			logAction(r, slog.LevelError, "UPLOAD", "error", "key", key, "error", err)
			HandleBackendError(w, err, "Upload (PUT) failed")
		}
		return
	}

	logAction(r, slog.LevelInfo, "UPLOAD", "success",
		"key", key,
		"size", r.ContentLength,
		"contentType", contentType,
		"etag", res.ETag,
		"hasMetadata", len(in.Metadata) > 0,
	)
	_ = WriteData(w, http.StatusOK, map[string]any{"replaced": true, "key": key, "etag": res.ETag})
}

// mediaKey extracts the object key from the /media/* wildcard. chi matches
// on the escaped path when one exists, so the key is decoded here. An empty
// key is a routing miss.
func (h *Handler) mediaKey(w http.ResponseWriter, r *http.Request) (string, bool) {
	key := chi.URLParam(r, "*")
	if r.URL.RawPath != "" {
		decoded, err := url.PathUnescape(key)
		if err != nil {
			WriteError(w, http.StatusBadRequest, CodeBadRequest, "Invalid key encoding")
			return "", false
		}
		key = decoded
	}
	if key == "" {
		notFound(w, r)
		return "", false
	}
	return key, true
}

func (h *Handler) logLookupError(r *http.Request, action, key string, err error) {
	if mediaproxy.KindOf(err) == mediaproxy.KindNotFound {
		logAction(r, slog.LevelWarn, action, "not_found", "key", key, "error", err)
		return
	}
	logAction(r, slog.LevelError, action, "error", "key", key, "error", err)
}

func logAction(r *http.Request, level slog.Level, action, status string, attrs ...any) {
	attrs = append([]any{
		"action", action,
		"status", status,
		"request_id", middleware.GetReqID(r.Context()),
	}, attrs...)
	slog.Log(r.Context(), level, "media "+status, attrs...)
}
