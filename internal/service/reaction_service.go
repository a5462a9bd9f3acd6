package service

import (
	"context"
	"fmt"

	"memeshare/api/internal/models"
)

// ReactionService adjusts like and dislike counters. Counters never go
// below zero.
type ReactionService struct {
	images ImageStore
}

func NewReactionService(images ImageStore) *ReactionService {
	return &ReactionService{images: images}
}

func (s *ReactionService) Like(ctx context.Context, id int64) (models.Image, error) {
	return s.apply(ctx, id, "like", s.images.IncrementLikes)
}

func (s *ReactionService) Dislike(ctx context.Context, id int64) (models.Image, error) {
	return s.apply(ctx, id, "dislike", s.images.IncrementDislikes)
}

func (s *ReactionService) Unlike(ctx context.Context, id int64) (models.Image, error) {
	return s.apply(ctx, id, "unlike", s.images.DecrementLikes)
}

func (s *ReactionService) Undislike(ctx context.Context, id int64) (models.Image, error) {
	return s.apply(ctx, id, "undislike", s.images.DecrementDislikes)
}

func (s *ReactionService) apply(ctx context.Context, id int64, op string, fn func(context.Context, int64) (*models.Image, error)) (models.Image, error) {
	image, err := fn(ctx, id)
	if err != nil {
		return models.Image{}, fmt.Errorf("%s: %w", op, err)
	}
	if image == nil {
		return models.Image{}, ErrNotFound
	}
	return *image, nil
}
