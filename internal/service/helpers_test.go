package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"memeshare/api/internal/cache"
	"memeshare/api/internal/config"
	"memeshare/api/internal/gateway"
	"memeshare/api/internal/models"
	"memeshare/api/internal/repository"
	"memeshare/api/internal/storage"
)

type fakeGateway struct {
	mu         sync.Mutex
	uploads    int
	urlUploads int
	fetches    int
	gate       chan struct{}
	entered    chan struct{}
	uploadErr  error
	fetchErr   error
	result     gateway.UploadResult
	hosted     map[string][]byte
	requests   []gateway.UploadRequest
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{hosted: map[string][]byte{}}
}

func (g *fakeGateway) Upload(ctx context.Context, req gateway.UploadRequest) (gateway.UploadResult, error) {
	if g.entered != nil {
		g.entered <- struct{}{}
	}
	if g.gate != nil {
		select {
		case <-g.gate:
		case <-ctx.Done():
			return gateway.UploadResult{}, ctx.Err()
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.uploads++
	g.requests = append(g.requests, req)
	if g.uploadErr != nil {
		return gateway.UploadResult{}, g.uploadErr
	}

	res := g.result
	if res.URL == "" {
		res.URL = fmt.Sprintf("https://img.example/%d/%s", g.uploads, req.FileName)
	}
	g.hosted[res.URL] = req.Data
	return res, nil
}

func (g *fakeGateway) UploadURL(_ context.Context, sourceURL string, _ string, _ gateway.Options) (gateway.UploadResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.urlUploads++
	return gateway.UploadResult{URL: "https://img.example/from-url", RemoteFileName: filepath.Base(sourceURL)}, nil
}

func (g *fakeGateway) Fetch(_ context.Context, url string) (gateway.FetchResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fetches++
	if g.fetchErr != nil {
		return gateway.FetchResult{}, g.fetchErr
	}
	data, ok := g.hosted[url]
	if !ok {
		return gateway.FetchResult{}, &gateway.Error{Code: 404, Message: "not found"}
	}
	return gateway.FetchResult{Data: data, ContentType: "image/png"}, nil
}

func (g *fakeGateway) Status() gateway.Status {
	return gateway.Status{Driver: "fake", Configured: true}
}

func (g *fakeGateway) uploadCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.uploads
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[int64]cache.Content
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[int64]cache.Content{}}
}

func (c *memoryCache) Get(_ context.Context, id int64) (*cache.Content, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	content, ok := c.entries[id]
	if !ok {
		return nil, nil
	}
	return &content, nil
}

func (c *memoryCache) Set(_ context.Context, id int64, content cache.Content) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = content
	return nil
}

func (c *memoryCache) Invalidate(_ context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
	return nil
}

func testConfig() *config.AppConfig {
	return &config.AppConfig{
		Environment: "test",
		Storage:     config.StorageConfig{CacheLocal: true},
		Security: config.SecurityConfig{
			AdminPassword: "letmein",
			JWTSecret:     "test-secret",
			JWTTTL:        30 * time.Minute,
		},
		Limits: config.LimitsConfig{
			MaxUploadBytes:  1 << 20,
			PendingLimit:    50,
			CheckedPageSize: 5,
			ListDefault:     100,
			ListMax:         500,
			BatchMax:        10,
		},
	}
}

func newTestFiles(t *testing.T) *storage.LocalStore {
	t.Helper()
	root := t.TempDir()
	files := storage.NewLocalStore(filepath.Join(root, "unchecked"), filepath.Join(root, "checked"))
	require.NoError(t, files.EnsureDirs())
	return files
}

type fixture struct {
	cfg        *config.AppConfig
	store      *repository.MemoryImageRepository
	gw         *fakeGateway
	files      *storage.LocalStore
	cache      *memoryCache
	auth       *AuthService
	uploads    *UploadService
	moderation *ModerationService
	delivery   *DeliveryService
	reactions  *ReactionService
	token      string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		cfg:   testConfig(),
		store: repository.NewMemoryImageRepository(),
		gw:    newFakeGateway(),
		files: newTestFiles(t),
		cache: newMemoryCache(),
	}
	log := zerolog.Nop()
	f.auth = NewAuthService(f.cfg.Security, log)
	f.uploads = NewUploadService(f.store, f.gw, f.files, f.cfg, log)
	f.moderation = NewModerationService(f.store, f.files, f.cache, f.auth.AuthorizeAdmin, f.cfg, log)
	f.delivery = NewDeliveryService(f.store, f.gw, f.files, f.cache, log)
	f.reactions = NewReactionService(f.store)

	token, err := f.auth.Verify("letmein")
	require.NoError(t, err)
	f.token = token.AccessToken
	return f
}

// pngBytes encodes a distinct w x h PNG for each seed.
func pngBytes(t *testing.T, w, h int, seed uint8) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: seed, G: 255 - seed, B: 7, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func (f *fixture) upload(t *testing.T, data []byte, name string) UploadResult {
	t.Helper()
	res, err := f.uploads.Upload(context.Background(), UploadInput{Data: data, ContentType: "image/png", FileName: name})
	require.NoError(t, err)
	return res
}

func (f *fixture) approve(t *testing.T, id int64) models.Image {
	t.Helper()
	res, err := f.moderation.SetChecked(context.Background(), f.token, id, true)
	require.NoError(t, err)
	return *res.Image
}
