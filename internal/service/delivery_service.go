package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"memeshare/api/internal/cache"
	"memeshare/api/internal/gateway"
	"memeshare/api/internal/models"
	"memeshare/api/internal/storage"
)

type RandomImage struct {
	Image    models.Image
	ImageURL string
}

// ImageContent is the payload served for an image. FromHost is set when the
// bytes came from the external host, directly or through the cache.
type ImageContent struct {
	Image       models.Image
	Data        []byte
	ContentType string
	FromHost    bool
}

type DeliveryService struct {
	images  ImageStore
	gateway gateway.Gateway
	files   *storage.LocalStore
	cache   ContentCache
	log     zerolog.Logger
}

func NewDeliveryService(images ImageStore, gw gateway.Gateway, files *storage.LocalStore, cache ContentCache, log zerolog.Logger) *DeliveryService {
	return &DeliveryService{
		images:  images,
		gateway: gw,
		files:   files,
		cache:   cache,
		log:     log,
	}
}

// Random picks a checked image, avoiding the one named by current when
// another candidate exists. Unknown names are ignored.
func (s *DeliveryService) Random(ctx context.Context, current string) (RandomImage, error) {
	var excludeID int64
	if current = strings.TrimSpace(current); current != "" {
		image, err := s.images.FindByFileName(ctx, current)
		if err != nil {
			return RandomImage{}, fmt.Errorf("resolve current image: %w", err)
		}
		if image != nil {
			excludeID = image.ID
		}
	}

	image, err := s.images.FindRandomChecked(ctx, excludeID)
	if err != nil {
		return RandomImage{}, fmt.Errorf("pick random image: %w", err)
	}
	if image == nil {
		return RandomImage{}, ErrNotFound
	}
	return RandomImage{Image: *image, ImageURL: ImageURL(*image)}, nil
}

// Content returns the bytes of the image with the given id, which must be in
// the requested moderation state.
func (s *DeliveryService) Content(ctx context.Context, id int64, checked bool) (ImageContent, error) {
	image, err := s.images.FindByID(ctx, id)
	if err != nil {
		return ImageContent{}, fmt.Errorf("find image: %w", err)
	}
	if image == nil || image.IsChecked != checked {
		return ImageContent{}, ErrNotFound
	}
	return s.content(ctx, *image)
}

func (s *DeliveryService) RandomContent(ctx context.Context, current string) (ImageContent, error) {
	picked, err := s.Random(ctx, current)
	if err != nil {
		return ImageContent{}, err
	}
	return s.content(ctx, picked.Image)
}

func (s *DeliveryService) content(ctx context.Context, image models.Image) (ImageContent, error) {
	if url := strings.TrimSpace(image.ImageBedURL); strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		if content, ok := s.fromHost(ctx, image, url); ok {
			return content, nil
		}
	}

	if s.files != nil && s.files.Exists(image.FilePath) {
		data, err := s.files.Read(image.FilePath)
		if err == nil {
			contentType := image.MimeType
			if contentType == "" {
				contentType = "application/octet-stream"
			}
			return ImageContent{Image: image, Data: data, ContentType: contentType}, nil
		}
		s.log.Warn().Err(err).Int64("image_id", image.ID).Str("path", image.FilePath).Msg("read local copy failed")
	}

	return ImageContent{}, ErrContentUnavailable
}

func (s *DeliveryService) fromHost(ctx context.Context, image models.Image, url string) (ImageContent, bool) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, image.ID)
		if err != nil {
			s.log.Warn().Err(err).Int64("image_id", image.ID).Msg("content cache read failed")
		} else if cached != nil {
			return ImageContent{Image: image, Data: cached.Data, ContentType: cached.ContentType, FromHost: true}, true
		}
	}

	fetched, err := s.gateway.Fetch(ctx, url)
	if err != nil {
		s.log.Warn().Err(err).Int64("image_id", image.ID).Msg("fetch from image host failed")
		return ImageContent{}, false
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, image.ID, cache.Content{Data: fetched.Data, ContentType: fetched.ContentType}); err != nil {
			s.log.Warn().Err(err).Int64("image_id", image.ID).Msg("content cache write failed")
		}
	}
	return ImageContent{Image: image, Data: fetched.Data, ContentType: fetched.ContentType, FromHost: true}, true
}

// ImageURL is the address clients load the image from: the hosted url, or
// the proxy route when the image is not hosted.
func ImageURL(image models.Image) string {
	if url := strings.TrimSpace(image.ImageBedURL); url != "" {
		return url
	}
	state := "unchecked"
	if image.IsChecked {
		state = "checked"
	}
	return "/image/" + state + "/" + strconv.FormatInt(image.ID, 10)
}
