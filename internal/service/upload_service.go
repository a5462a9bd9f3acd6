package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"memeshare/api/internal/config"
	"memeshare/api/internal/gateway"
	"memeshare/api/internal/media/fingerprint"
	"memeshare/api/internal/media/imagesize"
	"memeshare/api/internal/media/sniffer"
	"memeshare/api/internal/models"
	"memeshare/api/internal/repository"
	"memeshare/api/internal/storage"
)

const (
	maxNameAttempts = 20
	// flightTimeout bounds a shared upload once it no longer follows the
	// caller that started it.
	flightTimeout = 2 * time.Minute
)

type UploadInput struct {
	Data        []byte
	ContentType string
	FileName    string
	Options     gateway.Options
	APIKey      string
	AutoCheck   bool
}

type UploadResult struct {
	Image     models.Image
	Duplicate bool
	Warnings  []string
}

type BatchItem struct {
	FileName string
	Result   *UploadResult
	Err      error
}

type BatchResult struct {
	Items        []BatchItem
	SuccessCount int
	ErrorCount   int
}

type UploadService struct {
	images     ImageStore
	gateway    gateway.Gateway
	files      *storage.LocalStore
	cacheLocal bool
	limits     config.LimitsConfig
	flights    singleflight.Group
	log        zerolog.Logger
}

func NewUploadService(images ImageStore, gw gateway.Gateway, files *storage.LocalStore, cfg *config.AppConfig, log zerolog.Logger) *UploadService {
	return &UploadService{
		images:     images,
		gateway:    gw,
		files:      files,
		cacheLocal: cfg.Storage.CacheLocal && files != nil,
		limits:     cfg.Limits,
		log:        log,
	}
}

// Upload stores a new image, or returns the existing record when identical
// bytes were uploaded before. Concurrent uploads of the same bytes share a
// single call to the image host.
func (s *UploadService) Upload(ctx context.Context, input UploadInput) (UploadResult, error) {
	media, err := s.validate(input)
	if err != nil {
		return UploadResult{}, err
	}

	hash := fingerprint.Sum(input.Data)

	existing, err := s.images.FindByHash(ctx, hash)
	if err != nil {
		return UploadResult{}, fmt.Errorf("lookup hash: %w", err)
	}
	if existing != nil {
		return UploadResult{Image: *existing, Duplicate: true}, nil
	}

	// The flight outlives any single caller so that one disconnecting
	// client cannot fail the others waiting on the same bytes.
	ch := s.flights.DoChan(hash, func() (any, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flightTimeout)
		defer cancel()
		return s.upload(flightCtx, input, media, hash)
	})

	select {
	case <-ctx.Done():
		return UploadResult{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return UploadResult{}, res.Err
		}
		return res.Val.(UploadResult), nil
	}
}

// BatchUpload uploads each item independently; one failure does not stop the
// rest.
func (s *UploadService) BatchUpload(ctx context.Context, inputs []UploadInput) (BatchResult, error) {
	if len(inputs) == 0 {
		return BatchResult{}, fmt.Errorf("%w: no files provided", ErrValidation)
	}
	if s.limits.BatchMax > 0 && len(inputs) > s.limits.BatchMax {
		return BatchResult{}, fmt.Errorf("%w: at most %d files per batch", ErrValidation, s.limits.BatchMax)
	}

	result := BatchResult{Items: make([]BatchItem, 0, len(inputs))}
	for _, input := range inputs {
		item := BatchItem{FileName: input.FileName}
		res, err := s.Upload(ctx, input)
		if err != nil {
			item.Err = err
			result.ErrorCount++
		} else {
			item.Result = &res
			result.SuccessCount++
		}
		result.Items = append(result.Items, item)
	}
	return result, nil
}

// UploadFromURL asks the image host to ingest sourceURL. Nothing is recorded
// locally.
func (s *UploadService) UploadFromURL(ctx context.Context, sourceURL string, apiKey string, opts gateway.Options) (gateway.UploadResult, error) {
	u, err := url.Parse(strings.TrimSpace(sourceURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return gateway.UploadResult{}, fmt.Errorf("%w: source_url must be an http(s) url", ErrValidation)
	}

	uploader, ok := s.gateway.(gateway.URLUploader)
	if !ok {
		return gateway.UploadResult{}, fmt.Errorf("%w: the configured image host cannot upload from a url", ErrValidation)
	}

	res, err := uploader.UploadURL(ctx, u.String(), apiKey, opts)
	if err != nil {
		return gateway.UploadResult{}, fmt.Errorf("upload url: %w", err)
	}
	return res, nil
}

func (s *UploadService) GatewayStatus() gateway.Status {
	return s.gateway.Status()
}

func (s *UploadService) validate(input UploadInput) (sniffer.Result, error) {
	if len(input.Data) == 0 {
		return sniffer.Result{}, fmt.Errorf("%w: empty file", ErrValidation)
	}
	if s.limits.MaxUploadBytes > 0 && int64(len(input.Data)) > s.limits.MaxUploadBytes {
		return sniffer.Result{}, fmt.Errorf("%w: file exceeds %d bytes", ErrValidation, s.limits.MaxUploadBytes)
	}

	head := input.Data
	if len(head) > 512 {
		head = head[:512]
	}
	media, err := sniffer.Resolve(input.ContentType, head)
	if err != nil {
		return sniffer.Result{}, fmt.Errorf("%w: only JPEG, PNG, GIF or WEBP images are accepted", ErrValidation)
	}
	return media, nil
}

func (s *UploadService) upload(ctx context.Context, input UploadInput, media sniffer.Result, hash string) (UploadResult, error) {
	// An earlier flight for the same bytes may have finished in between.
	existing, err := s.images.FindByHash(ctx, hash)
	if err != nil {
		return UploadResult{}, fmt.Errorf("lookup hash: %w", err)
	}
	if existing != nil {
		return UploadResult{Image: *existing, Duplicate: true}, nil
	}

	opts := input.Options
	if opts.Title == "" {
		opts.Title = "Meme_" + hash[:8]
	}
	fileName := storage.SanitizeFileName(input.FileName, hash, media.MIME)

	hosted, err := s.gateway.Upload(ctx, gateway.UploadRequest{
		Data:        input.Data,
		ContentType: media.MIME,
		FileName:    fileName,
		Options:     opts,
		APIKey:      input.APIKey,
	})
	if err != nil {
		return UploadResult{}, fmt.Errorf("upload to image host: %w", err)
	}

	width, height := hosted.Width, hosted.Height
	if width == 0 || height == 0 {
		width, height, err = imagesize.Dimensions(input.Data)
		if err != nil {
			s.log.Debug().Err(err).Str("hash", hash).Msg("image dimensions unknown")
			width, height = 0, 0
		}
	}

	size := hosted.Size
	if size <= 0 {
		size = int64(len(input.Data))
	}

	recordName := fileName
	if hosted.RemoteFileName != "" {
		recordName = storage.SanitizeFileName(hosted.RemoteFileName, hash, media.MIME)
	}

	var result UploadResult
	localPath := ""
	if s.cacheLocal {
		localPath, err = s.files.Save(input.AutoCheck, recordName, input.Data)
		if err != nil {
			s.log.Warn().Err(err).Str("hash", hash).Msg("local cache write failed")
			result.Warnings = append(result.Warnings, "local copy not saved")
			localPath = ""
		}
	}

	record := models.NewImage{
		FileHash:    hash,
		FilePath:    localPath,
		ImageBedURL: hosted.URL,
		IsChecked:   input.AutoCheck,
		FileSize:    size,
		MimeType:    media.MIME,
		Width:       width,
		Height:      height,
	}

	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		record.FileName = recordName
		if attempt > 0 {
			record.FileName = storage.SuffixName(recordName, attempt)
		}

		created, err := s.images.Insert(ctx, record)
		if err == nil {
			result.Image = created
			s.log.Info().
				Int64("image_id", created.ID).
				Str("file_name", created.FileName).
				Bool("checked", created.IsChecked).
				Msg("image uploaded")
			return result, nil
		}
		if !errors.Is(err, repository.ErrConflict) {
			s.discardLocal(localPath)
			return UploadResult{}, fmt.Errorf("save image: %w", err)
		}

		winner, err := s.images.FindByHash(ctx, hash)
		if err != nil {
			s.discardLocal(localPath)
			return UploadResult{}, fmt.Errorf("lookup hash: %w", err)
		}
		if winner != nil {
			s.discardLocal(localPath)
			return UploadResult{Image: *winner, Duplicate: true}, nil
		}
		// No record holds the hash, so the collision was on the file name.
	}

	s.discardLocal(localPath)
	return UploadResult{}, fmt.Errorf("save image: no free file name for %s", recordName)
}

func (s *UploadService) discardLocal(path string) {
	if path == "" {
		return
	}
	if err := s.files.Remove(path); err != nil {
		s.log.Warn().Err(err).Str("path", path).Msg("discard local copy failed")
	}
}
