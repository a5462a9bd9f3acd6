package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memeshare/api/internal/config"
	"memeshare/api/internal/gateway"
	"memeshare/api/internal/repository"
	"memeshare/api/internal/storage"
)

type stubGateway struct {
	mu        sync.Mutex
	uploadErr error
	hosted    map[string][]byte
	count     int
}

func (g *stubGateway) Upload(_ context.Context, req gateway.UploadRequest) (gateway.UploadResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.uploadErr != nil {
		return gateway.UploadResult{}, g.uploadErr
	}
	g.count++
	url := fmt.Sprintf("https://img.example/%d/%s", g.count, req.FileName)
	g.hosted[url] = req.Data
	return gateway.UploadResult{URL: url, MimeType: req.ContentType}, nil
}

func (g *stubGateway) Fetch(_ context.Context, url string) (gateway.FetchResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	data, ok := g.hosted[url]
	if !ok {
		return gateway.FetchResult{}, &gateway.Error{Code: http.StatusNotFound}
	}
	return gateway.FetchResult{Data: data, ContentType: "image/png"}, nil
}

func (g *stubGateway) Status() gateway.Status {
	return gateway.Status{Driver: "stub", Configured: true}
}

type testServer struct {
	t      *testing.T
	router *gin.Engine
	gw     *stubGateway
	files  *storage.LocalStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.AppConfig{
		Environment: "test",
		Storage:     config.StorageConfig{CacheLocal: true},
		Security: config.SecurityConfig{
			AdminPassword: "letmein",
			JWTSecret:     "handler-secret",
			JWTTTL:        time.Hour,
		},
		Limits: config.LimitsConfig{
			MaxUploadBytes:  1 << 20,
			PendingLimit:    50,
			CheckedPageSize: 5,
			ListDefault:     100,
			ListMax:         500,
			BatchMax:        3,
		},
	}

	root := t.TempDir()
	files := storage.NewLocalStore(filepath.Join(root, "unchecked"), filepath.Join(root, "checked"))
	require.NoError(t, files.EnsureDirs())
	gw := &stubGateway{hosted: map[string][]byte{}}

	h := NewHandlerSet(zerolog.Nop(), cfg, Deps{
		Images:  repository.NewMemoryImageRepository(),
		Gateway: gw,
		Files:   files,
	})
	router := gin.New()
	h.Register(router)
	return &testServer{t: t, router: router, gw: gw, files: files}
}

func (s *testServer) do(method, target string, body *bytes.Buffer, headers map[string]string) *httptest.ResponseRecorder {
	s.t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, target, body)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) login() string {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/admin/verify", bytes.NewBufferString(`{"password":"letmein"}`),
		map[string]string{"Content-Type": "application/json"})
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
	var res verifyResponse
	decode(s.t, rec, &res)
	require.True(s.t, res.Success)
	return "Bearer " + res.Token
}

func (s *testServer) upload(target string, data []byte, name string, token string) *httptest.ResponseRecorder {
	s.t.Helper()
	body, contentType := multipartBody(s.t, "file", map[string][]byte{name: data})
	headers := map[string]string{"Content-Type": contentType}
	if token != "" {
		headers["Authorization"] = token
	}
	return s.do(http.MethodPost, target, body, headers)
}

func multipartBody(t *testing.T, field string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for name, data := range files {
		part, err := w.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func pngBytes(t *testing.T, seed uint8) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.Set(1, 1, color.RGBA{R: seed, G: 3, B: 200, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
}

func detail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Detail string `json:"detail"`
	}
	decode(t, rec, &body)
	return body.Detail
}

func TestAnonymousUploadAndDuplicate(t *testing.T) {
	s := newTestServer(t)
	data := pngBytes(t, 1)

	rec := s.upload("/upload/", data, "cat.png", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var first uploadResponse
	decode(t, rec, &first)
	assert.Equal(t, "success", first.Status)
	assert.False(t, first.IsChecked)
	assert.False(t, first.Duplicate)
	assert.Equal(t, 4, first.Width)
	assert.Equal(t, 3, first.Height)
	assert.NotEmpty(t, first.ImageBedURL)

	rec = s.upload("/upload/", data, "other.png", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var second uploadResponse
	decode(t, rec, &second)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, s.gw.count)
}

func TestUploadValidation(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/upload/", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, detail(t, rec), "file")

	rec = s.upload("/upload/", []byte("plain text, not an image"), "notes.txt", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadGatewayFailures(t *testing.T) {
	s := newTestServer(t)

	s.gw.uploadErr = &gateway.Error{Code: http.StatusBadGateway, Message: "host down"}
	rec := s.upload("/upload/", pngBytes(t, 2), "a.png", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.True(t, strings.HasPrefix(detail(t, rec), "upload failed: "))

	s.gw.uploadErr = gateway.ErrTimeout
	rec = s.upload("/upload/", pngBytes(t, 3), "b.png", "")
	assert.Equal(t, http.StatusRequestTimeout, rec.Code)
}

func TestAdminVerify(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/admin/verify", bytes.NewBufferString(`{"password":"nope"}`),
		map[string]string{"Content-Type": "application/json"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))

	assert.NotEmpty(t, s.login())
}

func TestAdminRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	for _, tc := range []struct {
		method, target string
	}{
		{http.MethodPost, "/image/1/check"},
		{http.MethodGet, "/admin/pending-images"},
		{http.MethodGet, "/admin/checked-images"},
		{http.MethodPost, "/admin/review-image/1?action=approve"},
		{http.MethodDelete, "/admin/image/1"},
		{http.MethodPost, "/upload/picgo"},
		{http.MethodPost, "/upload/picgo-url"},
	} {
		rec := s.do(tc.method, tc.target, nil, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, tc.target)

		rec = s.do(tc.method, tc.target, nil, map[string]string{"Authorization": "Bearer garbage"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code, tc.target)
	}
}

func TestRandomImageEmpty(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/image", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotEmpty(t, detail(t, rec))

	rec = s.do(http.MethodGet, "/image/random", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestModerationFlow(t *testing.T) {
	s := newTestServer(t)
	token := s.login()
	auth := map[string]string{"Authorization": token}

	var uploaded uploadResponse
	decode(t, s.upload("/upload/", pngBytes(t, 4), "frog.png", ""), &uploaded)

	rec := s.do(http.MethodGet, "/admin/pending-images", nil, auth)
	require.Equal(t, http.StatusOK, rec.Code)
	var pending pendingResponse
	decode(t, rec, &pending)
	assert.Equal(t, 1, pending.Total)
	require.Len(t, pending.Images, 1)
	assert.Equal(t, "picgo", pending.Images[0].Source)

	rec = s.do(http.MethodGet, fmt.Sprintf("/image/unchecked/%d", uploaded.ID), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Empty(t, rec.Header().Get("X-Image-Likes"))

	rec = s.do(http.MethodPost, fmt.Sprintf("/admin/review-image/%d?action=maybe", uploaded.ID), nil, auth)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, fmt.Sprintf("/admin/review-image/%d?action=approve", uploaded.ID), nil, auth)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, "/image", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var random randomImageResponse
	decode(t, rec, &random)
	assert.Equal(t, uploaded.ID, random.ID)
	assert.Equal(t, uploaded.ImageBedURL, random.ImageURL)

	rec = s.do(http.MethodGet, "/image/random", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, fmt.Sprint(uploaded.ID), rec.Header().Get("X-Image-ID"))
	assert.Equal(t, "0", rec.Header().Get("X-Image-Likes"))

	rec = s.do(http.MethodGet, "/admin/checked-images?page=1", nil, auth)
	require.Equal(t, http.StatusOK, rec.Code)
	var checked checkedResponse
	decode(t, rec, &checked)
	assert.Equal(t, 1, checked.Total)
	assert.Equal(t, 1, checked.TotalPages)
	assert.Equal(t, 5, checked.PageSize)

	rec = s.do(http.MethodDelete, fmt.Sprintf("/admin/image/%d", uploaded.ID), nil, auth)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, fmt.Sprintf("/image/checked/%d", uploaded.ID), nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckImageToggle(t *testing.T) {
	s := newTestServer(t)
	token := s.login()

	var uploaded uploadResponse
	decode(t, s.upload("/upload/", pngBytes(t, 5), "dog.png", ""), &uploaded)

	rec := s.do(http.MethodPost, fmt.Sprintf("/image/%d/check", uploaded.ID), nil, map[string]string{"Authorization": token})
	require.Equal(t, http.StatusOK, rec.Code)
	var res checkResponse
	decode(t, rec, &res)
	assert.True(t, res.IsChecked)

	rec = s.do(http.MethodPost, fmt.Sprintf("/image/%d/check?is_checked=false", uploaded.ID), nil, map[string]string{"Authorization": token})
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &res)
	assert.False(t, res.IsChecked)

	rec = s.do(http.MethodPost, "/image/999/check", nil, map[string]string{"Authorization": token})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReactions(t *testing.T) {
	s := newTestServer(t)

	var uploaded uploadResponse
	decode(t, s.upload("/upload/", pngBytes(t, 6), "owl.png", ""), &uploaded)
	path := fmt.Sprintf("/image/%d", uploaded.ID)

	s.do(http.MethodPost, path+"/like", nil, nil)
	rec := s.do(http.MethodPost, path+"/like", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var res reactionResponse
	decode(t, rec, &res)
	assert.Equal(t, 2, res.Likes)

	rec = s.do(http.MethodDelete, path+"/like", nil, nil)
	decode(t, rec, &res)
	assert.Equal(t, 1, res.Likes)

	rec = s.do(http.MethodDelete, path+"/dislike", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &res)
	assert.Equal(t, 0, res.Dislikes)

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPost, "/image/12345/like", nil, nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/image/abc/dislike", nil, nil).Code)
}

func TestListImages(t *testing.T) {
	s := newTestServer(t)
	token := s.login()

	var a, b uploadResponse
	decode(t, s.upload("/upload/", pngBytes(t, 7), "a.png", ""), &a)
	decode(t, s.upload("/upload/", pngBytes(t, 8), "b.png", ""), &b)
	s.do(http.MethodPost, fmt.Sprintf("/image/%d/check", b.ID), nil, map[string]string{"Authorization": token})

	rec := s.do(http.MethodGet, "/images/list", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var all []listItem
	decode(t, rec, &all)
	assert.Len(t, all, 2)

	rec = s.do(http.MethodGet, "/images/list?checked=true", nil, nil)
	var checked []listItem
	decode(t, rec, &checked)
	require.Len(t, checked, 1)
	assert.Equal(t, b.ID, checked[0].ID)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/images/list?checked=maybe", nil, nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/images/list?skip=-1", nil, nil).Code)
}

func TestHostedUpload(t *testing.T) {
	s := newTestServer(t)
	token := s.login()

	rec := s.upload("/upload/picgo/album/memes", pngBytes(t, 9), "hosted.png", token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res hostedUploadResponse
	decode(t, rec, &res)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.True(t, res.Image.IsChecked)
	assert.NotEmpty(t, res.Image.URL)
}

func TestBatchUpload(t *testing.T) {
	s := newTestServer(t)
	token := s.login()

	body, contentType := multipartBody(t, "files", map[string][]byte{
		"one.png": pngBytes(t, 10),
		"bad.txt": []byte("nope"),
	})
	rec := s.do(http.MethodPost, "/upload/picgo/album/memes/batch", body,
		map[string]string{"Content-Type": contentType, "Authorization": token})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res batchResponse
	decode(t, rec, &res)
	assert.Equal(t, "memes", res.AlbumID)
	assert.Equal(t, 2, res.TotalFiles)
	assert.Equal(t, 1, res.SuccessCount)
	assert.Equal(t, 1, res.ErrorCount)

	body, contentType = multipartBody(t, "files", map[string][]byte{
		"1.png": pngBytes(t, 11), "2.png": pngBytes(t, 12), "3.png": pngBytes(t, 13), "4.png": pngBytes(t, 14),
	})
	rec = s.do(http.MethodPost, "/upload/picgo/album/memes/batch", body,
		map[string]string{"Content-Type": contentType, "Authorization": token})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadFromURLUnsupported(t *testing.T) {
	s := newTestServer(t)
	token := s.login()

	rec := s.do(http.MethodPost, "/upload/picgo-url?source_url=https://example.com/a.png", nil, map[string]string{"Authorization": token})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/upload/picgo-url", nil, map[string]string{"Authorization": token})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthAndStatus(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var health healthResponse
	decode(t, rec, &health)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "disabled", health.Cache)
	assert.Equal(t, "stub", health.Gateway)

	rec = s.do(http.MethodGet, "/picgo/status", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status gateway.Status
	decode(t, rec, &status)
	assert.True(t, status.Configured)
}
