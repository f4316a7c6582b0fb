package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sagarc03/mediaproxy"
	mediahttp "github.com/sagarc03/mediaproxy/http"
)

// MockService is a mock implementation of http.Service
type MockService struct {
	mock.Mock
	policy mediaproxy.UploadPolicy
}

func (m *MockService) Policy() mediaproxy.UploadPolicy {
	return m.policy
}

func (m *MockService) List(ctx context.Context, q mediaproxy.ListQuery) (mediaproxy.ListResult, error) {
	args := m.Called(ctx, q)
	return args.Get(0).(mediaproxy.ListResult), args.Error(1)
}

func (m *MockService) Presign(ctx context.Context, in mediaproxy.PresignInput) (mediaproxy.PresignedUpload, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(mediaproxy.PresignedUpload), args.Error(1)
}

func (m *MockService) Upload(ctx context.Context, in mediaproxy.UploadInput, body io.Reader) (mediaproxy.UploadResult, error) {
	args := m.Called(ctx, in, body)
	if fn, ok := args.Get(0).(func(context.Context, mediaproxy.UploadInput, io.Reader) (mediaproxy.UploadResult, error)); ok {
		return fn(ctx, in, body)
	}
	return args.Get(0).(mediaproxy.UploadResult), args.Error(1)
}

func (m *MockService) Head(ctx context.Context, key string) (mediaproxy.ObjectInfo, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(mediaproxy.ObjectInfo), args.Error(1)
}

func (m *MockService) Download(ctx context.Context, key string) (mediaproxy.ObjectInfo, io.ReadCloser, error) {
	args := m.Called(ctx, key)
	if args.Get(1) == nil {
		return args.Get(0).(mediaproxy.ObjectInfo), nil, args.Error(2)
	}
	return args.Get(0).(mediaproxy.ObjectInfo), args.Get(1).(io.ReadCloser), args.Error(2)
}

func (m *MockService) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

type envelope struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newRouter(cfg mediahttp.HandlerConfig) (http.Handler, *MockService) {
	return newRouterWithPolicy(cfg, mediaproxy.NewUploadPolicy(nil, 0))
}

func newRouterWithPolicy(cfg mediahttp.HandlerConfig, policy mediaproxy.UploadPolicy) (http.Handler, *MockService) {
	service := &MockService{policy: policy}
	return mediahttp.NewHandler(&cfg, service).Router(), service
}

func serve(t *testing.T, router http.Handler, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), "decode envelope: %s", rec.Body.String())
	}
	return rec, env
}

func assertError(t *testing.T, env envelope, code, message string) {
	t.Helper()
	assert.False(t, env.OK)
	require.NotNil(t, env.Error)
	assert.Equal(t, code, env.Error.Code)
	assert.Equal(t, message, env.Error.Message)
}

func TestHandler_Health(t *testing.T) {
	router, _ := newRouter(mediahttp.HandlerConfig{})

	rec, env := serve(t, router, httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.OK)
	assert.JSONEq(t, `{"status":"ok"}`, string(env.Data))
}

func TestHandler_Metrics(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("# metrics"))
	})
	router, _ := newRouter(mediahttp.HandlerConfig{Metrics: metrics})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "# metrics", rec.Body.String())
}

func TestHandler_UnknownRoute(t *testing.T) {
	router, _ := newRouter(mediahttp.HandlerConfig{})

	rec, env := serve(t, router, httptest.NewRequest("GET", "/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assertError(t, env, "NOT_FOUND", "Route not found")
}

func TestHandler_List(t *testing.T) {
	router, service := newRouter(mediahttp.HandlerConfig{})
	modified := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	service.On("List", mock.Anything, mediaproxy.ListQuery{Prefix: "media/2024/", Limit: 50, Cursor: "c1"}).
		Return(mediaproxy.ListResult{
			Items:      []mediaproxy.ObjectSummary{{Key: "media/2024/05/a.png", Size: 42, LastModified: modified}},
			NextCursor: "c2",
		}, nil)

	rec, env := serve(t, router, httptest.NewRequest("GET", "/media?prefix=media/2024/&limit=50&cursor=c1", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{
		"prefix": "media/2024/",
		"items": [{"key": "media/2024/05/a.png", "size": 42, "lastModified": "2024-05-01T12:00:00Z"}],
		"nextCursor": "c2"
	}`, string(env.Data))
	service.AssertExpectations(t)
}

func TestHandler_List_Defaults(t *testing.T) {
	router, service := newRouter(mediahttp.HandlerConfig{})

	service.On("List", mock.Anything, mediaproxy.ListQuery{Prefix: "media/", Limit: 100}).
		Return(mediaproxy.ListResult{}, nil)

	rec, env := serve(t, router, httptest.NewRequest("GET", "/media", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"prefix":"media/","items":[]}`, string(env.Data))
	service.AssertExpectations(t)
}

func TestHandler_List_LimitClamped(t *testing.T) {
	tests := []struct {
		name  string
		limit string
		want  int
	}{
		{"above max", "5000", 1000},
		{"zero", "0", 1},
		{"negative", "-3", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, service := newRouter(mediahttp.HandlerConfig{})
			service.On("List", mock.Anything, mock.MatchedBy(func(q mediaproxy.ListQuery) bool {
				return q.Limit == tt.want
			})).Return(mediaproxy.ListResult{}, nil)

			rec, _ := serve(t, router, httptest.NewRequest("GET", "/media?limit="+tt.limit, nil))

			assert.Equal(t, http.StatusOK, rec.Code)
			service.AssertExpectations(t)
		})
	}
}

func TestHandler_List_InvalidLimit(t *testing.T) {
	router, service := newRouter(mediahttp.HandlerConfig{})

	rec, env := serve(t, router, httptest.NewRequest("GET", "/media?limit=lots", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "BAD_REQUEST", env.Error.Code)
	service.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
}

func TestHandler_List_BackendFailure(t *testing.T) {
	router, service := newRouter(mediahttp.HandlerConfig{})
	service.On("List", mock.Anything, mock.Anything).
		Return(mediaproxy.ListResult{}, errors.New("s3 exploded"))

	rec, env := serve(t, router, httptest.NewRequest("GET", "/media", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assertError(t, env, "INTERNAL", "List failed")
	assert.NotContains(t, rec.Body.String(), "exploded")
}

func TestHandler_List_MissingBucket(t *testing.T) {
	router, service := newRouter(mediahttp.HandlerConfig{})
	service.On("List", mock.Anything, mock.Anything).
		Return(mediaproxy.ListResult{}, mediaproxy.NewError(mediaproxy.KindNotFound, "list", "media/", errors.New("NoSuchBucket")))

	rec, env := serve(t, router, httptest.NewRequest("GET", "/media", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assertError(t, env, "INTERNAL", "List failed")
}

func TestHandler_Presign(t *testing.T) {
	router, service := newRouter(mediahttp.HandlerConfig{})

	service.On("Presign", mock.Anything, mediaproxy.PresignInput{
		Filename:    "cat.png",
		ContentType: "image/png",
		Metadata:    map[string]any{"alt": "a cat", "width": float64(640)},
	}).Return(mediaproxy.PresignedUpload{
		Key:       "media/2024/05/id.png",
		URL:       "https://bucket.example/media/2024/05/id.png?sig=1",
		ExpiresIn: 900,
	}, nil)

	body := `{"filename":"cat.png","contentType":"image/png","metadata":{"alt":"a cat","width":640}}`
	rec, env := serve(t, router, httptest.NewRequest("POST", "/media/presign", strings.NewReader(body)))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, env.OK)
	assert.JSONEq(t, `{
		"key": "media/2024/05/id.png",
		"url": "https://bucket.example/media/2024/05/id.png?sig=1",
		"expiresIn": 900
	}`, string(env.Data))
	service.AssertExpectations(t)
}

func TestHandler_Presign_NonObjectMetadataIgnored(t *testing.T) {
	router, service := newRouter(mediahttp.HandlerConfig{})

	service.On("Presign", mock.Anything, mock.MatchedBy(func(in mediaproxy.PresignInput) bool {
		return in.Key == "media/x.png" && in.Metadata == nil
	})).Return(mediaproxy.PresignedUpload{Key: "media/x.png", URL: "u", ExpiresIn: 900}, nil)

	body := `{"key":"media/x.png","contentType":"image/png","metadata":["not","an","object"]}`
	rec, _ := serve(t, router, httptest.NewRequest("POST", "/media/presign", strings.NewReader(body)))

	assert.Equal(t, http.StatusCreated, rec.Code)
	service.AssertExpectations(t)
}

func TestHandler_Presign_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		status  int
		code    string
		message string
	}{
		{"malformed json", `{"contentType":`, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON body"},
		{"not json", `hello`, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON body"},
		{"empty body", ``, http.StatusBadRequest, "BAD_REQUEST", "Missing contentType and key/filename"},
		{"missing content type", `{"filename":"a.png"}`, http.StatusBadRequest, "BAD_REQUEST", "Missing contentType and key/filename"},
		{"missing key and filename", `{"contentType":"image/png"}`, http.StatusBadRequest, "BAD_REQUEST", "Missing contentType and key/filename"},
		{"wrong field type", `{"filename":7,"contentType":"image/png"}`, http.StatusBadRequest, "BAD_REQUEST", "Missing contentType and key/filename"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, service := newRouter(mediahttp.HandlerConfig{})

			rec, env := serve(t, router, httptest.NewRequest("POST", "/media/presign", strings.NewReader(tt.body)))

			assert.Equal(t, tt.status, rec.Code)
			assertError(t, env, tt.code, tt.message)
			service.AssertNotCalled(t, "Presign", mock.Anything, mock.Anything)
		})
	}
}

func TestHandler_Presign_UnsupportedType(t *testing.T) {
	router, service := newRouter(mediahttp.HandlerConfig{})
	service.On("Presign", mock.Anything, mock.Anything).
		Return(mediaproxy.PresignedUpload{}, mediaproxy.ErrUnsupportedMediaType)

	body := `{"filename":"a.exe","contentType":"application/x-msdownload"}`
	rec, env := serve(t, router, httptest.NewRequest("POST", "/media/presign", strings.NewReader(body)))

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	assertError(t, env, "UNSUPPORTED_MEDIA_TYPE", "Unsupported Media Type")
}

func TestHandler_Presign_BackendFailure(t *testing.T) {
	router, service := newRouter(mediahttp.HandlerConfig{})
	service.On("Presign", mock.Anything, mock.Anything).
		Return(mediaproxy.PresignedUpload{Key: "media/a.png"}, errors.New("signing failed"))

	body := `{"key":"media/a.png","contentType":"image/png"}`
	rec, env := serve(t, router, httptest.NewRequest("POST", "/media/presign", strings.NewReader(body)))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assertError(t, env, "INTERNAL", "Presign failed")
}

func TestHandler_Presign_BodyTooLarge(t *testing.T) {
	router, service := newRouter(mediahttp.HandlerConfig{MaxPresignBodyBytes: 16})

	body := `{"filename":"a-very-long-filename.png","contentType":"image/png"}`
	rec, env := serve(t, router, httptest.NewRequest("POST", "/media/presign", strings.NewReader(body)))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "PAYLOAD_TOO_LARGE", env.Error.Code)
	service.AssertNotCalled(t, "Presign", mock.Anything, mock.Anything)
}

func TestHandler_Presign_WrongMethod(t *testing.T) {
	router, service := newRouter(mediahttp.HandlerConfig{})

	rec, env := serve(t, router, httptest.NewRequest("GET", "/media/presign", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "POST", rec.Header().Get("Allow"))
	assertError(t, env, "METHOD_NOT_ALLOWED", "Method not allowed")
	service.AssertNotCalled(t, "Download", mock.Anything, mock.Anything)
}

func TestHandler_Head(t *testing.T) {
	router, service := newRouter(mediahttp.HandlerConfig{})
	modified := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	service.On("Head", mock.Anything, "media/2024/05/a.png").Return(mediaproxy.ObjectInfo{
		Key:          "media/2024/05/a.png",
		ContentType:  "image/png",
		Size:         42,
		LastModified: modified,
		ETag:         "abc123",
	}, nil)

	rec, env := serve(t, router, httptest.NewRequest("GET", "/media/head/media/2024/05/a.png", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"key": "media/2024/05/a.png",
		"contentType": "image/png",
		"size": 42,
		"lastModified": "2024-05-01T12:00:00Z",
		"etag": "abc123",
		"metadata": {}
	}`, string(env.Data))
	service.AssertExpectations(t)
}

func TestHandler_Head_NotFound(t *testing.T) {
	router, service := newRouter(mediahttp.HandlerConfig{})
	service.On("Head", mock.Anything, "media/missing.png").
		Return(mediaproxy.ObjectInfo{}, mediaproxy.NewError(mediaproxy.KindNotFound, "head", "media/missing.png", nil))

	rec, env := serve(t, router, httptest.NewRequest("GET", "/media/head/media/missing.png", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assertError(t, env, "NOT_FOUND", "File not found")
}

func TestHandler_Download(t *testing.T) {
	router, service := newRouter(mediahttp.HandlerConfig{})
	modified := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	service.On("Download", mock.Anything, "media/a.png").Return(mediaproxy.ObjectInfo{
		Key:          "media/a.png",
		ContentType:  "image/png",
		Size:         7,
		LastModified: modified,
		ETag:         "abc123",
	}, io.NopCloser(strings.NewReader("PNGDATA")), nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/media/media/a.png", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "7", rec.Header().Get("Content-Length"))
	assert.Equal(t, `"abc123"`, rec.Header().Get("ETag"))
	assert.Equal(t, "Wed, 01 May 2024 12:00:00 GMT", rec.Header().Get("Last-Modified"))
	assert.Equal(t, "PNGDATA", rec.Body.String())
	service.AssertExpectations(t)
}

func TestHandler_Download_DefaultContentType(t *testing.T) {
	router, service := newRouter(mediahttp.HandlerConfig{})
	service.On("Download", mock.Anything, "media/blob").
		Return(mediaproxy.ObjectInfo{Key: "media/blob"}, io.NopCloser(strings.NewReader("x")), nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/media/media/blob", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/octet-stream", rec.Header().Get("Content-Type"))
	assert.Empty(t, rec.Header().Get("Content-Length"))
	assert.Empty(t, rec.Header().Get("ETag"))
}

func TestHandler_Download_EscapedKey(t *testing.T) {
	router, service := newRouter(mediahttp.HandlerConfig{})
	service.On("Download", mock.Anything, "media/a/b c.png").
		Return(mediaproxy.ObjectInfo{ContentType: "image/png"}, io.NopCloser(strings.NewReader("x")), nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/media/media%2Fa/b%20c.png", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	service.AssertExpectations(t)
}

func TestHandler_Download_Errors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{"not found", mediaproxy.NewError(mediaproxy.KindNotFound, "get", "k", nil), http.StatusNotFound, "NOT_FOUND", "File not found"},
		{"timeout", mediaproxy.NewError(mediaproxy.KindTimeout, "get", "k", context.DeadlineExceeded), http.StatusGatewayTimeout, "TIMEOUT", "Storage backend timed out"},
		{"invalid key", mediaproxy.NewError(mediaproxy.KindInvalidKey, "get", "k", nil), http.StatusBadRequest, "BAD_REQUEST", "Invalid key"},
		{"backend failure", errors.New("connection reset"), http.StatusInternalServerError, "INTERNAL", "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, service := newRouter(mediahttp.HandlerConfig{})
			service.On("Download", mock.Anything, "media/k").Return(mediaproxy.ObjectInfo{}, nil, tt.err)

			rec, env := serve(t, router, httptest.NewRequest("GET", "/media/media/k", nil))

			assert.Equal(t, tt.status, rec.Code)
			assertError(t, env, tt.code, tt.message)
		})
	}
}

func TestHandler_Delete(t *testing.T) {
	router, service := newRouter(mediahttp.HandlerConfig{})
	service.On("Delete", mock.Anything, "media/a.png").Return(nil)

	rec, env := serve(t, router, httptest.NewRequest("DELETE", "/media/media/a.png", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"deleted":true,"key":"media/a.png"}`, string(env.Data))
	service.AssertExpectations(t)
}

func TestHandler_Delete_Errors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{"not found", mediaproxy.NewError(mediaproxy.KindNotFound, "delete", "k", nil), http.StatusNotFound, "NOT_FOUND", "File not found or cannot delete"},
		{"forbidden", mediaproxy.NewError(mediaproxy.KindForbidden, "delete", "k", nil), http.StatusNotFound, "NOT_FOUND", "File not found or cannot delete"},
		{"timeout", mediaproxy.NewError(mediaproxy.KindTimeout, "delete", "k", nil), http.StatusGatewayTimeout, "TIMEOUT", "Storage backend timed out"},
		{"backend failure", errors.New("boom"), http.StatusInternalServerError, "INTERNAL", "Delete failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, service := newRouter(mediahttp.HandlerConfig{})
			service.On("Delete", mock.Anything, "media/k").Return(tt.err)

			rec, env := serve(t, router, httptest.NewRequest("DELETE", "/media/media/k", nil))

			assert.Equal(t, tt.status, rec.Code)
			assertError(t, env, tt.code, tt.message)
		})
	}
}

func TestHandler_Put(t *testing.T) {
	router, service := newRouterWithPolicy(mediahttp.HandlerConfig{}, mediaproxy.NewUploadPolicy(nil, 1024))

	service.On("Upload", mock.Anything, mediaproxy.UploadInput{
		Key:         "media/a.png",
		ContentType: "image/png",
		Size:        7,
		Metadata:    map[string]string{"alt": "a cat"},
	}, mock.Anything).Run(func(args mock.Arguments) {
		data, err := io.ReadAll(args.Get(2).(io.Reader))
		require.NoError(t, err)
		assert.Equal(t, "PNGDATA", string(data))
	}).Return(mediaproxy.UploadResult{Key: "media/a.png", ETag: "abc123"}, nil)

	req := httptest.NewRequest("PUT", "/media/media/a.png", strings.NewReader("PNGDATA"))
	req.Header.Set("Content-Type", "image/png")
	req.Header.Set("X-Meta-Alt", "a cat")

	rec, env := serve(t, router, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"replaced":true,"key":"media/a.png","etag":"abc123"}`, string(env.Data))
	service.AssertExpectations(t)
}

func TestHandler_Put_Errors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{"missing content type", mediaproxy.ErrMissingContentType, http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE", "Missing Content-Type header"},
		{"unsupported type", mediaproxy.ErrUnsupportedMediaType, http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE", "Unsupported Media Type: text/html"},
		{"too large", mediaproxy.ErrPayloadTooLarge, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Max 1024 bytes. Use /media/presign"},
		{"body overflow", &http.MaxBytesError{Limit: 1024}, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Max 1024 bytes. Use /media/presign"},
		{"invalid key", mediaproxy.NewError(mediaproxy.KindInvalidKey, "put", "k", nil), http.StatusBadRequest, "BAD_REQUEST", "Invalid key"},
		{"timeout", mediaproxy.NewError(mediaproxy.KindTimeout, "put", "k", nil), http.StatusGatewayTimeout, "TIMEOUT", "Storage backend timed out"},
		{"backend failure", errors.New("boom"), http.StatusInternalServerError, "INTERNAL", "Upload (PUT) failed"},
		{"missing bucket", mediaproxy.NewError(mediaproxy.KindNotFound, "put", "k", nil), http.StatusInternalServerError, "INTERNAL", "Upload (PUT) failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, service := newRouterWithPolicy(mediahttp.HandlerConfig{}, mediaproxy.NewUploadPolicy(nil, 1024))
			service.On("Upload", mock.Anything, mock.Anything, mock.Anything).
				Return(mediaproxy.UploadResult{}, tt.err)

			req := httptest.NewRequest("PUT", "/media/media/k", strings.NewReader("<html>"))
			req.Header.Set("Content-Type", "text/html")

			rec, env := serve(t, router, req)

			assert.Equal(t, tt.status, rec.Code)
			assertError(t, env, tt.code, tt.message)
		})
	}
}

func TestHandler_Put_BodyCappedByPolicy(t *testing.T) {
	router, service := newRouterWithPolicy(mediahttp.HandlerConfig{}, mediaproxy.NewUploadPolicy(nil, 4))
	service.On("Upload", mock.Anything, mock.Anything, mock.Anything).
		Return(func(_ context.Context, _ mediaproxy.UploadInput, body io.Reader) (mediaproxy.UploadResult, error) {
			_, err := io.ReadAll(body)
			return mediaproxy.UploadResult{}, err
		})

	req := httptest.NewRequest("PUT", "/media/media/a.png", strings.NewReader("PNGDATA"))
	req.ContentLength = -1
	req.Header.Set("Content-Type", "image/png")

	rec, env := serve(t, router, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assertError(t, env, "PAYLOAD_TOO_LARGE", "Max 4 bytes. Use /media/presign")
}

func TestHandler_Put_EmptyKey(t *testing.T) {
	router, service := newRouter(mediahttp.HandlerConfig{})

	req := httptest.NewRequest("PUT", "/media/", strings.NewReader("x"))
	req.Header.Set("Content-Type", "image/png")
	rec, env := serve(t, router, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assertError(t, env, "NOT_FOUND", "Route not found")
	service.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	tests := []struct {
		method string
		target string
	}{
		{"POST", "/media/media/a.png"},
		{"DELETE", "/health"},
		{"PUT", "/media"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			router, service := newRouter(mediahttp.HandlerConfig{})

			rec, env := serve(t, router, httptest.NewRequest(tt.method, tt.target, nil))

			assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
			assertError(t, env, "METHOD_NOT_ALLOWED", "Method not allowed")
			service.AssertExpectations(t)
		})
	}
}

func TestHandler_CORS(t *testing.T) {
	router, service := newRouter(mediahttp.HandlerConfig{
		CORS: mediahttp.CORSConfig{
			Enabled:        true,
			AllowedOrigins: []string{"https://app.example.com"},
			AllowedMethods: []string{"GET", "PUT"},
		},
	})
	service.On("List", mock.Anything, mock.Anything).Return(mediaproxy.ListResult{}, nil)

	req := httptest.NewRequest("GET", "/media", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec, _ := serve(t, router, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHandler_ExtraMiddleware(t *testing.T) {
	var seen string
	mw := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = r.URL.Path
			next.ServeHTTP(w, r)
		})
	}
	router, _ := newRouter(mediahttp.HandlerConfig{Middleware: []func(http.Handler) http.Handler{mw}})

	rec, _ := serve(t, router, httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/health", seen)
}
