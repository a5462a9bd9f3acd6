package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"memeshare/api/internal/models"
)

// ErrConflict is returned by Insert when the file hash or file name is
// already taken by another record.
var ErrConflict = errors.New("image already exists")

const uniqueViolation = "23505"

const imageColumns = `
	id, file_name, file_hash, file_path, image_bed_url, is_checked,
	likes, dislikes, file_size, mime_type, width, height, upload_time`

type ImageRepository struct {
	pool *pgxpool.Pool
}

func NewImageRepository(pool *pgxpool.Pool) *ImageRepository {
	return &ImageRepository{pool: pool}
}

func (r *ImageRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *ImageRepository) Insert(ctx context.Context, image models.NewImage) (models.Image, error) {
	query := `
		INSERT INTO images (
			file_name, file_hash, file_path, image_bed_url, is_checked,
			file_size, mime_type, width, height, upload_time
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, NOW()
		)
		RETURNING` + imageColumns

	row := r.pool.QueryRow(ctx, query,
		image.FileName,
		image.FileHash,
		image.FilePath,
		image.ImageBedURL,
		image.IsChecked,
		image.FileSize,
		image.MimeType,
		image.Width,
		image.Height,
	)
	created, err := scanImage(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return models.Image{}, fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
		}
		return models.Image{}, fmt.Errorf("insert image: %w", err)
	}
	return *created, nil
}

func (r *ImageRepository) FindByID(ctx context.Context, id int64) (*models.Image, error) {
	return r.findOne(ctx, `SELECT`+imageColumns+` FROM images WHERE id = $1`, id)
}

func (r *ImageRepository) FindByHash(ctx context.Context, hash string) (*models.Image, error) {
	return r.findOne(ctx, `SELECT`+imageColumns+` FROM images WHERE file_hash = $1`, hash)
}

func (r *ImageRepository) FindByFileName(ctx context.Context, name string) (*models.Image, error) {
	return r.findOne(ctx, `SELECT`+imageColumns+` FROM images WHERE file_name = $1`, name)
}

// FindRandomChecked picks a uniformly random approved image. excludeID is
// skipped when another approved image exists; zero disables exclusion.
func (r *ImageRepository) FindRandomChecked(ctx context.Context, excludeID int64) (*models.Image, error) {
	const query = `
		SELECT` + imageColumns + `
		FROM images
		WHERE is_checked AND id <> $1
		ORDER BY random()
		LIMIT 1`

	image, err := r.findOne(ctx, query, excludeID)
	if err != nil || image != nil || excludeID == 0 {
		return image, err
	}
	return r.findOne(ctx, query, int64(0))
}

func (r *ImageRepository) ListChecked(ctx context.Context, offset, limit int) ([]models.Image, error) {
	return r.list(ctx, `SELECT`+imageColumns+` FROM images WHERE is_checked ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
}

func (r *ImageRepository) ListUnchecked(ctx context.Context, offset, limit int) ([]models.Image, error) {
	return r.list(ctx, `SELECT`+imageColumns+` FROM images WHERE NOT is_checked ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
}

func (r *ImageRepository) ListAll(ctx context.Context, offset, limit int) ([]models.Image, error) {
	return r.list(ctx, `SELECT`+imageColumns+` FROM images ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
}

func (r *ImageRepository) CountByChecked(ctx context.Context, checked bool) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM images WHERE is_checked = $1`, checked).Scan(&count); err != nil {
		return 0, fmt.Errorf("count images: %w", err)
	}
	return count, nil
}

func (r *ImageRepository) SetChecked(ctx context.Context, id int64, checked bool) (*models.Image, error) {
	return r.findOne(ctx, `UPDATE images SET is_checked = $2 WHERE id = $1 RETURNING`+imageColumns, id, checked)
}

func (r *ImageRepository) SetFilePath(ctx context.Context, id int64, path string) (*models.Image, error) {
	return r.findOne(ctx, `UPDATE images SET file_path = $2 WHERE id = $1 RETURNING`+imageColumns, id, path)
}

func (r *ImageRepository) IncrementLikes(ctx context.Context, id int64) (*models.Image, error) {
	return r.findOne(ctx, `UPDATE images SET likes = likes + 1 WHERE id = $1 RETURNING`+imageColumns, id)
}

func (r *ImageRepository) IncrementDislikes(ctx context.Context, id int64) (*models.Image, error) {
	return r.findOne(ctx, `UPDATE images SET dislikes = dislikes + 1 WHERE id = $1 RETURNING`+imageColumns, id)
}

func (r *ImageRepository) DecrementLikes(ctx context.Context, id int64) (*models.Image, error) {
	return r.findOne(ctx, `UPDATE images SET likes = GREATEST(likes - 1, 0) WHERE id = $1 RETURNING`+imageColumns, id)
}

func (r *ImageRepository) DecrementDislikes(ctx context.Context, id int64) (*models.Image, error) {
	return r.findOne(ctx, `UPDATE images SET dislikes = GREATEST(dislikes - 1, 0) WHERE id = $1 RETURNING`+imageColumns, id)
}

func (r *ImageRepository) Delete(ctx context.Context, id int64) (bool, error) {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM images WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete image: %w", err)
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *ImageRepository) FilePathInUse(ctx context.Context, path string) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM images WHERE file_path = $1)`, path).Scan(&exists); err != nil {
		return false, fmt.Errorf("lookup file path: %w", err)
	}
	return exists, nil
}

func (r *ImageRepository) findOne(ctx context.Context, query string, args ...any) (*models.Image, error) {
	image, err := scanImage(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return image, nil
}

func (r *ImageRepository) list(ctx context.Context, query string, limit, offset int) ([]models.Image, error) {
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	defer rows.Close()

	images := make([]models.Image, 0, min(limit, 100))
	for rows.Next() {
		image, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		images = append(images, *image)
	}
	return images, rows.Err()
}

func scanImage(row pgx.Row) (*models.Image, error) {
	var image models.Image
	if err := row.Scan(
		&image.ID,
		&image.FileName,
		&image.FileHash,
		&image.FilePath,
		&image.ImageBedURL,
		&image.IsChecked,
		&image.Likes,
		&image.Dislikes,
		&image.FileSize,
		&image.MimeType,
		&image.Width,
		&image.Height,
		&image.UploadTime,
	); err != nil {
		return nil, err
	}
	return &image, nil
}
