package service

import (
	"context"
	"errors"

	"memeshare/api/internal/cache"
	"memeshare/api/internal/models"
)

var (
	ErrValidation         = errors.New("invalid request")
	ErrUnauthorized       = errors.New("invalid authentication credentials")
	ErrForbidden          = errors.New("insufficient permissions")
	ErrNotFound           = errors.New("image not found")
	ErrContentUnavailable = errors.New("image content unavailable")
)

// ImageStore persists image records. Lookups report absence as a nil record
// with a nil error.
type ImageStore interface {
	Ping(ctx context.Context) error
	Insert(ctx context.Context, image models.NewImage) (models.Image, error)
	FindByID(ctx context.Context, id int64) (*models.Image, error)
	FindByHash(ctx context.Context, hash string) (*models.Image, error)
	FindByFileName(ctx context.Context, name string) (*models.Image, error)
	FindRandomChecked(ctx context.Context, excludeID int64) (*models.Image, error)
	ListChecked(ctx context.Context, offset, limit int) ([]models.Image, error)
	ListUnchecked(ctx context.Context, offset, limit int) ([]models.Image, error)
	ListAll(ctx context.Context, offset, limit int) ([]models.Image, error)
	CountByChecked(ctx context.Context, checked bool) (int, error)
	SetChecked(ctx context.Context, id int64, checked bool) (*models.Image, error)
	SetFilePath(ctx context.Context, id int64, path string) (*models.Image, error)
	IncrementLikes(ctx context.Context, id int64) (*models.Image, error)
	IncrementDislikes(ctx context.Context, id int64) (*models.Image, error)
	DecrementLikes(ctx context.Context, id int64) (*models.Image, error)
	DecrementDislikes(ctx context.Context, id int64) (*models.Image, error)
	Delete(ctx context.Context, id int64) (bool, error)
	FilePathInUse(ctx context.Context, path string) (bool, error)
}

// ContentCache holds proxied image bytes. Get returns nil on a miss.
type ContentCache interface {
	Get(ctx context.Context, imageID int64) (*cache.Content, error)
	Set(ctx context.Context, imageID int64, content cache.Content) error
	Invalidate(ctx context.Context, imageID int64) error
}

// AuthorizeFunc validates an admin credential.
type AuthorizeFunc func(token string) (models.AdminIdentity, error)
