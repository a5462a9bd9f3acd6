package repository

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"memeshare/api/internal/models"
)

// MemoryImageRepository keeps images in process memory. It honors the same
// uniqueness and counter rules as the PostgreSQL repository and backs the
// "memory" database driver.
type MemoryImageRepository struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]*models.Image
	byHash map[string]int64
	byName map[string]int64
	now    func() time.Time
}

func NewMemoryImageRepository() *MemoryImageRepository {
	return &MemoryImageRepository{
		byID:   make(map[int64]*models.Image),
		byHash: make(map[string]int64),
		byName: make(map[string]int64),
		now:    time.Now,
	}
}

func (r *MemoryImageRepository) Ping(context.Context) error {
	return nil
}

func (r *MemoryImageRepository) Insert(_ context.Context, image models.NewImage) (models.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byHash[image.FileHash]; ok {
		return models.Image{}, fmt.Errorf("%w: images_file_hash_key", ErrConflict)
	}
	if _, ok := r.byName[image.FileName]; ok {
		return models.Image{}, fmt.Errorf("%w: images_file_name_key", ErrConflict)
	}

	r.nextID++
	created := &models.Image{
		ID:          r.nextID,
		FileName:    image.FileName,
		FileHash:    image.FileHash,
		FilePath:    image.FilePath,
		ImageBedURL: image.ImageBedURL,
		IsChecked:   image.IsChecked,
		FileSize:    image.FileSize,
		MimeType:    image.MimeType,
		Width:       image.Width,
		Height:      image.Height,
		UploadTime:  r.now().UTC(),
	}
	r.byID[created.ID] = created
	r.byHash[created.FileHash] = created.ID
	r.byName[created.FileName] = created.ID

	return *created, nil
}

func (r *MemoryImageRepository) FindByID(_ context.Context, id int64) (*models.Image, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.copyOf(id), nil
}

func (r *MemoryImageRepository) FindByHash(_ context.Context, hash string) (*models.Image, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byHash[hash]
	if !ok {
		return nil, nil
	}
	return r.copyOf(id), nil
}

func (r *MemoryImageRepository) FindByFileName(_ context.Context, name string) (*models.Image, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[name]
	if !ok {
		return nil, nil
	}
	return r.copyOf(id), nil
}

func (r *MemoryImageRepository) FindRandomChecked(_ context.Context, excludeID int64) (*models.Image, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var eligible []int64
	var excluded bool
	for id, image := range r.byID {
		if !image.IsChecked {
			continue
		}
		if id == excludeID {
			excluded = true
			continue
		}
		eligible = append(eligible, id)
	}
	if len(eligible) == 0 {
		if excluded {
			return r.copyOf(excludeID), nil
		}
		return nil, nil
	}
	return r.copyOf(eligible[rand.IntN(len(eligible))]), nil
}

func (r *MemoryImageRepository) ListChecked(_ context.Context, offset, limit int) ([]models.Image, error) {
	return r.list(func(i *models.Image) bool { return i.IsChecked }, offset, limit), nil
}

func (r *MemoryImageRepository) ListUnchecked(_ context.Context, offset, limit int) ([]models.Image, error) {
	return r.list(func(i *models.Image) bool { return !i.IsChecked }, offset, limit), nil
}

func (r *MemoryImageRepository) ListAll(_ context.Context, offset, limit int) ([]models.Image, error) {
	return r.list(func(*models.Image) bool { return true }, offset, limit), nil
}

func (r *MemoryImageRepository) CountByChecked(_ context.Context, checked bool) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, image := range r.byID {
		if image.IsChecked == checked {
			count++
		}
	}
	return count, nil
}

func (r *MemoryImageRepository) SetChecked(_ context.Context, id int64, checked bool) (*models.Image, error) {
	return r.update(id, func(i *models.Image) { i.IsChecked = checked }), nil
}

func (r *MemoryImageRepository) SetFilePath(_ context.Context, id int64, path string) (*models.Image, error) {
	return r.update(id, func(i *models.Image) { i.FilePath = path }), nil
}

func (r *MemoryImageRepository) IncrementLikes(_ context.Context, id int64) (*models.Image, error) {
	return r.update(id, func(i *models.Image) { i.Likes++ }), nil
}

func (r *MemoryImageRepository) IncrementDislikes(_ context.Context, id int64) (*models.Image, error) {
	return r.update(id, func(i *models.Image) { i.Dislikes++ }), nil
}

func (r *MemoryImageRepository) DecrementLikes(_ context.Context, id int64) (*models.Image, error) {
	return r.update(id, func(i *models.Image) { i.Likes = max(i.Likes-1, 0) }), nil
}

func (r *MemoryImageRepository) DecrementDislikes(_ context.Context, id int64) (*models.Image, error) {
	return r.update(id, func(i *models.Image) { i.Dislikes = max(i.Dislikes-1, 0) }), nil
}

func (r *MemoryImageRepository) Delete(_ context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	image, ok := r.byID[id]
	if !ok {
		return false, nil
	}
	delete(r.byID, id)
	delete(r.byHash, image.FileHash)
	delete(r.byName, image.FileName)
	return true, nil
}

func (r *MemoryImageRepository) FilePathInUse(_ context.Context, path string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, image := range r.byID {
		if image.FilePath == path {
			return true, nil
		}
	}
	return false, nil
}

// copyOf must be called with the lock held.
func (r *MemoryImageRepository) copyOf(id int64) *models.Image {
	image, ok := r.byID[id]
	if !ok {
		return nil
	}
	out := *image
	return &out
}

func (r *MemoryImageRepository) update(id int64, mutate func(*models.Image)) *models.Image {
	r.mu.Lock()
	defer r.mu.Unlock()
	image, ok := r.byID[id]
	if !ok {
		return nil
	}
	mutate(image)
	out := *image
	return &out
}

func (r *MemoryImageRepository) list(keep func(*models.Image) bool, offset, limit int) []models.Image {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]int64, 0, len(r.byID))
	for id, image := range r.byID {
		if keep(image) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	offset = max(offset, 0)
	if offset >= len(ids) || limit <= 0 {
		return []models.Image{}
	}
	ids = ids[offset:min(offset+limit, len(ids))]

	images := make([]models.Image, 0, len(ids))
	for _, id := range ids {
		images = append(images, *r.byID[id])
	}
	return images
}
