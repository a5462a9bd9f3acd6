package service

import (
	"context"
	"fmt"

	"memeshare/api/internal/config"
	"memeshare/api/internal/models"
)

// ListService serves the public image listing.
type ListService struct {
	images ImageStore
	limits config.LimitsConfig
}

func NewListService(images ImageStore, cfg *config.AppConfig) *ListService {
	return &ListService{images: images, limits: cfg.Limits}
}

// List returns images in upload order. A nil checked lists every state.
func (s *ListService) List(ctx context.Context, checked *bool, skip, limit int) ([]models.Image, error) {
	if skip < 0 {
		return nil, fmt.Errorf("%w: skip must not be negative", ErrValidation)
	}
	if limit <= 0 {
		limit = s.limits.ListDefault
	}
	if s.limits.ListMax > 0 && limit > s.limits.ListMax {
		limit = s.limits.ListMax
	}

	var (
		images []models.Image
		err    error
	)
	switch {
	case checked == nil:
		images, err = s.images.ListAll(ctx, skip, limit)
	case *checked:
		images, err = s.images.ListChecked(ctx, skip, limit)
	default:
		images, err = s.images.ListUnchecked(ctx, skip, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	return images, nil
}

// Ready reports whether the image store answers.
func (s *ListService) Ready(ctx context.Context) error {
	return s.images.Ping(ctx)
}
