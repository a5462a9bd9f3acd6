package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"memeshare/api/internal/config"
	"memeshare/api/internal/media/fingerprint"
	"memeshare/api/internal/media/sniffer"
)

// ObjectStoreGateway hosts images in an S3-compatible bucket.
type ObjectStoreGateway struct {
	client    *minio.Client
	bucket    string
	region    string
	publicURL string
	timeout   time.Duration
	fetchMax  int64
	now       func() time.Time
}

func NewObjectStoreGateway(cfg config.ObjectStoreConfig) (*ObjectStoreGateway, error) {
	endpoint := cfg.Endpoint
	useSSL := cfg.UseSSL

	if strings.HasPrefix(endpoint, "http") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("parse endpoint: %w", err)
		}
		endpoint = u.Host
		useSSL = u.Scheme == "https"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}

	publicURL := strings.TrimRight(cfg.PublicURL, "/")
	if publicURL == "" {
		scheme := "http"
		if useSSL {
			scheme = "https"
		}
		publicURL = scheme + "://" + endpoint
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultUploadTimeout
	}

	return &ObjectStoreGateway{
		client:    client,
		bucket:    cfg.Bucket,
		region:    cfg.Region,
		publicURL: publicURL,
		timeout:   timeout,
		fetchMax:  maxFetchBytes,
		now:       time.Now,
	}, nil
}

func (g *ObjectStoreGateway) EnsureBucket(ctx context.Context) error {
	exists, err := g.client.BucketExists(ctx, g.bucket)
	if err != nil {
		return fmt.Errorf("bucket exists %s: %w", g.bucket, err)
	}
	if !exists {
		if err := g.client.MakeBucket(ctx, g.bucket, minio.MakeBucketOptions{Region: g.region}); err != nil {
			return fmt.Errorf("create bucket %s: %w", g.bucket, err)
		}
	}
	return nil
}

func (g *ObjectStoreGateway) Status() Status {
	return Status{
		Driver:     config.GatewayDriverObjectStore,
		Configured: g.bucket != "",
		Endpoint:   g.publicURL + "/" + g.bucket,
	}
}

func (g *ObjectStoreGateway) Upload(ctx context.Context, req UploadRequest) (UploadResult, error) {
	if g.bucket == "" {
		return UploadResult{}, ErrNotConfigured
	}

	contentType := sniffer.Normalize(req.ContentType)
	key := g.objectKey(fingerprint.Sum(req.Data), contentType)

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	_, err := g.client.PutObject(ctx, g.bucket, key, bytes.NewReader(req.Data), int64(len(req.Data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return UploadResult{}, objectError(ctx, "put", err)
	}

	return UploadResult{
		URL:            g.objectURL(key),
		Size:           int64(len(req.Data)),
		MimeType:       contentType,
		RemoteFileName: path.Base(key),
	}, nil
}

func (g *ObjectStoreGateway) Fetch(ctx context.Context, rawURL string) (FetchResult, error) {
	key, ok := g.keyFromURL(rawURL)
	if !ok {
		return FetchResult{}, &Error{Code: http.StatusBadRequest, Message: "url does not belong to the configured bucket"}
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	obj, err := g.client.GetObject(ctx, g.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return FetchResult{}, objectError(ctx, "get", err)
	}
	defer obj.Close()

	info, err := obj.Stat()
	if err != nil {
		return FetchResult{}, objectError(ctx, "stat", err)
	}
	if info.Size > g.fetchMax {
		return FetchResult{}, &Error{Code: http.StatusBadGateway, Message: "hosted image exceeds fetch limit"}
	}
	data, err := io.ReadAll(io.LimitReader(obj, g.fetchMax))
	if err != nil {
		return FetchResult{}, objectError(ctx, "read", err)
	}

	contentType := info.ContentType
	if contentType == "" {
		contentType = sniffer.MimeJPEG
	}
	return FetchResult{Data: data, ContentType: contentType}, nil
}

// objectKey lays objects out as yyyy/mm/dd/<hash><ext>.
func (g *ObjectStoreGateway) objectKey(hash, contentType string) string {
	return g.now().UTC().Format("2006/01/02") + "/" + hash + sniffer.Extension(contentType)
}

func (g *ObjectStoreGateway) objectURL(key string) string {
	return g.publicURL + "/" + g.bucket + "/" + key
}

func (g *ObjectStoreGateway) keyFromURL(rawURL string) (string, bool) {
	prefix := g.publicURL + "/" + g.bucket + "/"
	if !strings.HasPrefix(rawURL, prefix) {
		return "", false
	}
	key := strings.TrimPrefix(rawURL, prefix)
	if key == "" || strings.Contains(key, "..") {
		return "", false
	}
	return key, true
}

// objectError maps minio failures onto gateway errors. ctx is the bounded
// context the call ran under.
func objectError(ctx context.Context, op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("object store %s: %w", op, ErrTimeout)
	}
	resp := minio.ToErrorResponse(err)
	if resp.StatusCode != 0 {
		return &Error{Code: resp.StatusCode, Message: resp.Code}
	}
	return fmt.Errorf("object store %s: %w", op, err)
}
