package e2e_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagarc03/mediaproxy/clientcli"
)

// TestE2E_PresignRoundTrip presigns, uploads through the returned URL and
// reads the object back.
func TestE2E_PresignRoundTrip(t *testing.T) {
	port := getOpenPort(t)
	baseURL, cleanup := startServer(t, ServerConfig{
		Port:                port,
		StoragePath:         t.TempDir(),
		AllowedContentTypes: []string{"image/png"},
	})
	defer cleanup()

	client := newClient(t, baseURL)
	ctx := context.Background()
	local := writeLocalFile(t, "Cat.PNG", "PNGDATA")

	var key string

	t.Run("presigned upload generates a dated key", func(t *testing.T) {
		results, err := client.Upload(ctx, clientcli.UploadOptions{
			LocalPath:   local,
			ContentType: "image/png",
			Metadata:    map[string]string{"alt": "a cat"},
			Presigned:   true,
		})
		require.NoError(t, err)
		require.Len(t, results, 1)

		key = results[0].Key
		assert.Regexp(t, `^media/\d{4}/\d{2}/[0-9a-f-]{36}\.png$`, key)
		assert.True(t, results[0].Presigned)
	})

	t.Run("download returns the uploaded bytes", func(t *testing.T) {
		res, body, err := client.Download(ctx, clientcli.DownloadOptions{Key: key, LocalPath: "-"})
		require.NoError(t, err)
		defer body.Close()

		data, err := io.ReadAll(body)
		require.NoError(t, err)
		assert.Equal(t, "PNGDATA", string(data))
		assert.Equal(t, "image/png", res.ContentType)
	})

	t.Run("head carries the metadata", func(t *testing.T) {
		info, err := client.Head(ctx, key)
		require.NoError(t, err)

		assert.Equal(t, key, info.Key)
		assert.Equal(t, int64(7), info.Size)
		assert.Equal(t, "a cat", info.Metadata["alt"])
	})

	t.Run("disallowed type is rejected at presign", func(t *testing.T) {
		_, err := client.Upload(ctx, clientcli.UploadOptions{
			LocalPath:   writeLocalFile(t, "notes.txt", "hello"),
			ContentType: "text/plain",
			Presigned:   true,
		})
		assert.ErrorIs(t, err, clientcli.ErrUnsupportedMediaType)
	})
}

// TestE2E_DirectCRUD exercises PUT, list, head, download and delete.
func TestE2E_DirectCRUD(t *testing.T) {
	storageDir := t.TempDir()
	baseURL, cleanup := startServer(t, ServerConfig{
		Port:        getOpenPort(t),
		StoragePath: storageDir,
	})
	defer cleanup()

	client := newClient(t, baseURL)
	ctx := context.Background()

	files := map[string]string{
		"media/docs/readme.md":      "# readme",
		"media/docs/guide.md":       "# guide",
		"media/images/my photo.jpg": "JPEG",
	}
	for key, content := range files {
		_, err := client.Upload(ctx, clientcli.UploadOptions{
			LocalPath:   writeLocalFile(t, filepath.Base(key), content),
			Key:         key,
			ContentType: "application/octet-stream",
		})
		require.NoError(t, err, key)
	}

	t.Run("object lands on disk", func(t *testing.T) {
		data, err := os.ReadFile(filepath.Join(storageDir, "media", "images", "my photo.jpg"))
		require.NoError(t, err)
		assert.Equal(t, "JPEG", string(data))
	})

	t.Run("list filters by prefix", func(t *testing.T) {
		res, err := client.List(ctx, clientcli.ListOptions{Prefix: "media/docs/"})
		require.NoError(t, err)

		require.Len(t, res.Items, 2)
		assert.Equal(t, "media/docs/guide.md", res.Items[0].Key)
		assert.Equal(t, "media/docs/readme.md", res.Items[1].Key)
		assert.Empty(t, res.NextCursor)
	})

	t.Run("list paginates", func(t *testing.T) {
		page, err := client.List(ctx, clientcli.ListOptions{Limit: 1})
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.NotEmpty(t, page.NextCursor)

		all, err := client.List(ctx, clientcli.ListOptions{Limit: 1, All: true})
		require.NoError(t, err)
		assert.Len(t, all.Items, 3)
	})

	t.Run("key with a space round trips", func(t *testing.T) {
		info, err := client.Head(ctx, "media/images/my photo.jpg")
		require.NoError(t, err)
		assert.Equal(t, int64(4), info.Size)
	})

	t.Run("download to file", func(t *testing.T) {
		dest := filepath.Join(t.TempDir(), "out.md")
		res, body, err := client.Download(ctx, clientcli.DownloadOptions{Key: "media/docs/readme.md", LocalPath: dest})
		require.NoError(t, err)
		assert.Nil(t, body)
		assert.Equal(t, int64(8), res.Size)

		data, err := os.ReadFile(dest)
		require.NoError(t, err)
		assert.Equal(t, "# readme", string(data))
	})

	t.Run("delete then 404", func(t *testing.T) {
		results, err := client.Delete(ctx, clientcli.DeleteOptions{Keys: []string{"media/docs/readme.md"}})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.True(t, results[0].Deleted)

		_, err = client.Head(ctx, "media/docs/readme.md")
		assert.ErrorIs(t, err, clientcli.ErrNotFound)

		results, err = client.Delete(ctx, clientcli.DeleteOptions{Keys: []string{"media/docs/readme.md"}})
		require.NoError(t, err)
		assert.ErrorIs(t, results[0].Err, clientcli.ErrNotFound)
	})
}

// TestE2E_Rejections checks the error envelope for routing and policy failures.
func TestE2E_Rejections(t *testing.T) {
	baseURL, cleanup := startServer(t, ServerConfig{
		Port:                getOpenPort(t),
		StoragePath:         t.TempDir(),
		AllowedContentTypes: []string{"image/png"},
		MaxUploadBytes:      8,
		MaxPresignBodyBytes: 128,
	})
	defer cleanup()

	client := &http.Client{}

	do := func(t *testing.T, method, target, contentType string, body []byte) (int, string) {
		t.Helper()
		req, err := http.NewRequest(method, baseURL+target, bytes.NewReader(body))
		require.NoError(t, err)
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}

		resp, err := client.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		var env struct {
			OK    bool `json:"ok"`
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
		assert.False(t, env.OK)
		return resp.StatusCode, env.Error.Code
	}

	t.Run("unknown route is 404", func(t *testing.T) {
		status, code := do(t, http.MethodGet, "/nope", "", nil)
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, "NOT_FOUND", code)
	})

	t.Run("missing object is 404", func(t *testing.T) {
		status, _ := do(t, http.MethodGet, "/media/missing.png", "", nil)
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("GET presign is 405", func(t *testing.T) {
		status, code := do(t, http.MethodGet, "/media/presign", "", nil)
		assert.Equal(t, http.StatusMethodNotAllowed, status)
		assert.Equal(t, "METHOD_NOT_ALLOWED", code)
	})

	t.Run("unsupported type is 415", func(t *testing.T) {
		status, code := do(t, http.MethodPut, "/media/a.txt", "text/plain", []byte("x"))
		assert.Equal(t, http.StatusUnsupportedMediaType, status)
		assert.Equal(t, "UNSUPPORTED_MEDIA_TYPE", code)
	})

	t.Run("oversized upload is 413", func(t *testing.T) {
		status, code := do(t, http.MethodPut, "/media/a.png", "image/png", []byte("0123456789"))
		assert.Equal(t, http.StatusRequestEntityTooLarge, status)
		assert.Equal(t, "PAYLOAD_TOO_LARGE", code)
	})

	t.Run("oversized presign body is 413", func(t *testing.T) {
		body := `{"filename":"a.png","contentType":"image/png","metadata":{"pad":"` + strings.Repeat("x", 256) + `"}}`
		status, _ := do(t, http.MethodPost, "/media/presign", "application/json", []byte(body))
		assert.Equal(t, http.StatusRequestEntityTooLarge, status)
	})

	t.Run("malformed presign body is 400", func(t *testing.T) {
		status, _ := do(t, http.MethodPost, "/media/presign", "application/json", []byte("{"))
		assert.Equal(t, http.StatusBadRequest, status)
	})
}
