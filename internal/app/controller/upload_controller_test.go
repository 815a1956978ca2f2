package controller

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, x%h, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func (e *controllerEnv) upload(t *testing.T, token, filename string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/admin/uploads/image", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestUploadController_UploadReviewImage(t *testing.T) {
	env := setupControllerTest(t)

	t.Run("stores a compressed jpeg", func(t *testing.T) {
		w := env.upload(t, env.adminToken, "car.png", pngBytes(t, 64, 48))
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		assert.Contains(t, decode(t, w)["url"], "https://cdn.example.com/reviews/")
		require.Len(t, env.host.uploads, 1)
	})

	t.Run("rejects non-images", func(t *testing.T) {
		w := env.upload(t, env.adminToken, "notes.txt", []byte("hello"))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "UPLOAD_INVALID_FILE_TYPE", decode(t, w)["error"])
	})

	t.Run("non-admin", func(t *testing.T) {
		w := env.upload(t, env.memberToken, "car.png", pngBytes(t, 8, 8))
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("missing file", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/admin/uploads/image", env.adminToken, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestUploadController_GeneratePresignedURL(t *testing.T) {
	env := setupControllerTest(t)

	w := env.do(t, http.MethodPost, "/admin/uploads/presigned-url", env.adminToken, map[string]string{
		"filename":     "car.png",
		"content_type": "image/png",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Contains(t, body["key"], "reviews/")
	assert.NotEmpty(t, body["upload_url"])

	w = env.do(t, http.MethodPost, "/admin/uploads/presigned-url", env.adminToken, map[string]string{
		"filename":     "clip.mp4",
		"content_type": "video/mp4",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["fields"], "content_type")
}
