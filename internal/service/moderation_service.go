package service

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"memeshare/api/internal/config"
	"memeshare/api/internal/models"
	"memeshare/api/internal/storage"
)

const (
	ActionApprove = "approve"
	ActionReject  = "reject"
)

// fallbackPageMax applies when limits.listmax is unset.
const fallbackPageMax = 500

// ModerationResult carries the outcome of a moderation step. Image is nil
// once the record has been deleted. Warnings list best-effort steps that
// did not complete.
type ModerationResult struct {
	Image    *models.Image
	Action   string
	Warnings []string
}

type PendingPage struct {
	Images []models.Image
	Total  int
}

type CheckedPage struct {
	Images     []models.Image
	Total      int
	Page       int
	PageSize   int
	TotalPages int
}

// ModerationService drives the review lifecycle
// unchecked -> checked | deleted. Every call authorizes first.
type ModerationService struct {
	images    ImageStore
	files     *storage.LocalStore
	cache     ContentCache
	authorize AuthorizeFunc
	limits    config.LimitsConfig
	log       zerolog.Logger
}

func NewModerationService(images ImageStore, files *storage.LocalStore, cache ContentCache, authorize AuthorizeFunc, cfg *config.AppConfig, log zerolog.Logger) *ModerationService {
	return &ModerationService{
		images:    images,
		files:     files,
		cache:     cache,
		authorize: authorize,
		limits:    cfg.Limits,
		log:       log,
	}
}

func (s *ModerationService) SetChecked(ctx context.Context, token string, id int64, checked bool) (ModerationResult, error) {
	if err := s.authorized(token); err != nil {
		return ModerationResult{}, err
	}
	return s.setChecked(ctx, id, checked)
}

// Review approves or rejects a pending image. Rejection deletes the record.
func (s *ModerationService) Review(ctx context.Context, token string, id int64, action string) (ModerationResult, error) {
	if err := s.authorized(token); err != nil {
		return ModerationResult{}, err
	}

	switch action {
	case ActionApprove:
		res, err := s.setChecked(ctx, id, true)
		res.Action = "approved"
		return res, err
	case ActionReject:
		res, err := s.delete(ctx, id)
		res.Action = "rejected"
		return res, err
	default:
		return ModerationResult{}, fmt.Errorf("%w: action must be %q or %q", ErrValidation, ActionApprove, ActionReject)
	}
}

// Delete removes the record and its local copy. The externally hosted copy
// is left in place.
func (s *ModerationService) Delete(ctx context.Context, token string, id int64) (ModerationResult, error) {
	if err := s.authorized(token); err != nil {
		return ModerationResult{}, err
	}
	res, err := s.delete(ctx, id)
	res.Action = "deleted"
	return res, err
}

func (s *ModerationService) Pending(ctx context.Context, token string, limit int) (PendingPage, error) {
	if err := s.authorized(token); err != nil {
		return PendingPage{}, err
	}
	if limit <= 0 {
		limit = s.limits.PendingLimit
	}
	limit = s.capPageSize(limit)

	images, err := s.images.ListUnchecked(ctx, 0, limit)
	if err != nil {
		return PendingPage{}, fmt.Errorf("list pending: %w", err)
	}
	total, err := s.images.CountByChecked(ctx, false)
	if err != nil {
		return PendingPage{}, fmt.Errorf("count pending: %w", err)
	}
	return PendingPage{Images: images, Total: total}, nil
}

func (s *ModerationService) Checked(ctx context.Context, token string, page, pageSize int) (CheckedPage, error) {
	if err := s.authorized(token); err != nil {
		return CheckedPage{}, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = s.limits.CheckedPageSize
	}
	pageSize = s.capPageSize(pageSize)
	if page-1 > math.MaxInt32/pageSize {
		return CheckedPage{}, fmt.Errorf("%w: page %d is out of range", ErrValidation, page)
	}

	images, err := s.images.ListChecked(ctx, (page-1)*pageSize, pageSize)
	if err != nil {
		return CheckedPage{}, fmt.Errorf("list checked: %w", err)
	}
	total, err := s.images.CountByChecked(ctx, true)
	if err != nil {
		return CheckedPage{}, fmt.Errorf("count checked: %w", err)
	}
	return CheckedPage{
		Images:     images,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (total + pageSize - 1) / pageSize,
	}, nil
}

// capPageSize keeps a requested page size within [1, limits.listmax].
func (s *ModerationService) capPageSize(n int) int {
	limit := s.limits.ListMax
	if limit <= 0 {
		limit = fallbackPageMax
	}
	return min(max(n, 1), limit)
}

func (s *ModerationService) authorized(token string) error {
	if s.authorize == nil {
		return ErrUnauthorized
	}
	_, err := s.authorize(token)
	return err
}

func (s *ModerationService) setChecked(ctx context.Context, id int64, checked bool) (ModerationResult, error) {
	image, err := s.images.SetChecked(ctx, id, checked)
	if err != nil {
		return ModerationResult{}, fmt.Errorf("set checked: %w", err)
	}
	if image == nil {
		return ModerationResult{}, ErrNotFound
	}

	res := ModerationResult{Image: image}
	s.relocate(ctx, &res, checked)

	s.log.Info().Int64("image_id", id).Bool("checked", checked).Msg("image moderated")
	return res, nil
}

// relocate moves the local copy to the area matching the new state. The
// checked flag is already authoritative, so failures only add a warning.
func (s *ModerationService) relocate(ctx context.Context, res *ModerationResult, checked bool) {
	image := res.Image
	if s.files == nil || image.FilePath == "" {
		return
	}

	moved, err := s.files.Relocate(image.FilePath, checked)
	if err != nil {
		s.log.Warn().Err(err).Int64("image_id", image.ID).Str("path", image.FilePath).Msg("relocate local copy failed")
		res.Warnings = append(res.Warnings, "local copy not moved")
		return
	}
	if moved == image.FilePath {
		return
	}

	updated, err := s.images.SetFilePath(ctx, image.ID, moved)
	if err != nil || updated == nil {
		s.log.Warn().Err(err).Int64("image_id", image.ID).Str("path", moved).Msg("record local path failed")
		res.Warnings = append(res.Warnings, "local path not updated")
		return
	}
	res.Image = updated
}

func (s *ModerationService) delete(ctx context.Context, id int64) (ModerationResult, error) {
	image, err := s.images.FindByID(ctx, id)
	if err != nil {
		return ModerationResult{}, fmt.Errorf("find image: %w", err)
	}
	if image == nil {
		return ModerationResult{}, ErrNotFound
	}

	removed, err := s.images.Delete(ctx, id)
	if err != nil {
		return ModerationResult{}, fmt.Errorf("delete image: %w", err)
	}
	if !removed {
		return ModerationResult{}, ErrNotFound
	}

	var res ModerationResult
	if s.files != nil && image.FilePath != "" {
		if err := s.files.Remove(image.FilePath); err != nil {
			s.log.Warn().Err(err).Int64("image_id", id).Str("path", image.FilePath).Msg("remove local copy failed")
			res.Warnings = append(res.Warnings, "local copy not removed")
		}
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, id); err != nil {
			s.log.Warn().Err(err).Int64("image_id", id).Msg("invalidate cached content failed")
		}
	}

	s.log.Info().Int64("image_id", id).Msg("image deleted")
	return res, nil
}
