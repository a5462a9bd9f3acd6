package handlers

import (
	"time"

	"memeshare/api/internal/models"
	"memeshare/api/internal/service"
)

type randomImageResponse struct {
	ID       int64  `json:"id"`
	FileName string `json:"file_name"`
	ImageURL string `json:"image_url"`
	Likes    int    `json:"likes"`
	Dislikes int    `json:"dislikes"`
	Size     int64  `json:"size"`
	Width    *int   `json:"width"`
	Height   *int   `json:"height"`
}

type imageInfoResponse struct {
	ID       int64   `json:"id"`
	FileName string  `json:"file_name"`
	ImageURL *string `json:"image_url"`
	Likes    int     `json:"likes"`
	Dislikes int     `json:"dislikes"`
}

type reactionResponse struct {
	ID       int64 `json:"id"`
	Likes    int   `json:"likes"`
	Dislikes int   `json:"dislikes"`
}

type listItem struct {
	ID          int64  `json:"id"`
	FileName    string `json:"file_name"`
	IsChecked   bool   `json:"is_checked"`
	Likes       int    `json:"likes"`
	Dislikes    int    `json:"dislikes"`
	ImageBedURL string `json:"image_bed_url"`
	FileSize    int64  `json:"file_size"`
}

type checkResponse struct {
	ID          int64    `json:"id"`
	FileName    string   `json:"file_name"`
	IsChecked   bool     `json:"is_checked"`
	FilePath    string   `json:"file_path"`
	ImageBedURL string   `json:"image_bed_url"`
	Likes       int      `json:"likes"`
	Dislikes    int      `json:"dislikes"`
	Warnings    []string `json:"warnings,omitempty"`
}

type uploadResponse struct {
	Status      string   `json:"status"`
	Message     string   `json:"message"`
	FileName    string   `json:"filename"`
	ID          int64    `json:"id"`
	ImageBedURL string   `json:"image_bed_url"`
	IsChecked   bool     `json:"is_checked"`
	Likes       int      `json:"likes"`
	Dislikes    int      `json:"dislikes"`
	FileSize    int64    `json:"file_size"`
	Width       int      `json:"width"`
	Height      int      `json:"height"`
	Duplicate   bool     `json:"duplicate"`
	Warnings    []string `json:"warnings,omitempty"`
}

type hostedImage struct {
	ID        int64  `json:"id,omitempty"`
	URL       string `json:"url"`
	FileName  string `json:"filename"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Size      int64  `json:"size"`
	Mime      string `json:"mime"`
	IsChecked bool   `json:"is_checked"`
}

type hostedUploadResponse struct {
	StatusCode int         `json:"status_code"`
	StatusTxt  string      `json:"status_txt"`
	Image      hostedImage `json:"image"`
	Duplicate  bool        `json:"duplicate"`
	Warnings   []string    `json:"warnings,omitempty"`
}

type batchItemResponse struct {
	FileName string                `json:"filename"`
	Success  bool                  `json:"success"`
	Result   *hostedUploadResponse `json:"result,omitempty"`
	Error    string                `json:"error,omitempty"`
}

type batchResponse struct {
	AlbumID      string              `json:"album_id"`
	TotalFiles   int                 `json:"total_files"`
	Results      []batchItemResponse `json:"results"`
	SuccessCount int                 `json:"success_count"`
	ErrorCount   int                 `json:"error_count"`
}

type adminImage struct {
	ID        int64   `json:"id"`
	FileName  string  `json:"file_name"`
	IsChecked bool    `json:"is_checked"`
	Likes     int     `json:"likes"`
	Dislikes  int     `json:"dislikes"`
	FileSize  int64   `json:"file_size"`
	ImageURL  string  `json:"image_url"`
	Source    string  `json:"source"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	CreatedAt *string `json:"created_at"`
}

type pendingResponse struct {
	Images   []adminImage `json:"images"`
	Total    int          `json:"total"`
	Returned int          `json:"returned"`
}

type checkedResponse struct {
	Images      []adminImage `json:"images"`
	Total       int          `json:"total"`
	CurrentPage int          `json:"current_page"`
	TotalPages  int          `json:"total_pages"`
	PageSize    int          `json:"page_size"`
}

type verifyRequest struct {
	Password string `json:"password"`
}

type verifyResponse struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func toRandomImage(picked service.RandomImage) randomImageResponse {
	img := picked.Image
	return randomImageResponse{
		ID:       img.ID,
		FileName: img.FileName,
		ImageURL: picked.ImageURL,
		Likes:    img.Likes,
		Dislikes: img.Dislikes,
		Size:     img.FileSize,
		Width:    nonZero(img.Width),
		Height:   nonZero(img.Height),
	}
}

func toImageInfo(img models.Image) imageInfoResponse {
	res := imageInfoResponse{
		ID:       img.ID,
		FileName: img.FileName,
		Likes:    img.Likes,
		Dislikes: img.Dislikes,
	}
	if img.Hosted() {
		url := img.ImageBedURL
		res.ImageURL = &url
	}
	return res
}

func toReaction(img models.Image) reactionResponse {
	return reactionResponse{ID: img.ID, Likes: img.Likes, Dislikes: img.Dislikes}
}

func toListItems(images []models.Image) []listItem {
	items := make([]listItem, 0, len(images))
	for _, img := range images {
		items = append(items, listItem{
			ID:          img.ID,
			FileName:    img.FileName,
			IsChecked:   img.IsChecked,
			Likes:       img.Likes,
			Dislikes:    img.Dislikes,
			ImageBedURL: img.ImageBedURL,
			FileSize:    img.FileSize,
		})
	}
	return items
}

func toCheckResponse(res service.ModerationResult) checkResponse {
	img := res.Image
	return checkResponse{
		ID:          img.ID,
		FileName:    img.FileName,
		IsChecked:   img.IsChecked,
		FilePath:    img.FilePath,
		ImageBedURL: img.ImageBedURL,
		Likes:       img.Likes,
		Dislikes:    img.Dislikes,
		Warnings:    res.Warnings,
	}
}

func toUploadResponse(res service.UploadResult) uploadResponse {
	img := res.Image
	message := "image uploaded"
	if res.Duplicate {
		message = "image already exists"
	}
	return uploadResponse{
		Status:      "success",
		Message:     message,
		FileName:    img.FileName,
		ID:          img.ID,
		ImageBedURL: img.ImageBedURL,
		IsChecked:   img.IsChecked,
		Likes:       img.Likes,
		Dislikes:    img.Dislikes,
		FileSize:    img.FileSize,
		Width:       img.Width,
		Height:      img.Height,
		Duplicate:   res.Duplicate,
		Warnings:    res.Warnings,
	}
}

func toHostedUpload(res service.UploadResult) hostedUploadResponse {
	img := res.Image
	return hostedUploadResponse{
		StatusCode: 200,
		StatusTxt:  "OK",
		Image: hostedImage{
			ID:        img.ID,
			URL:       img.ImageBedURL,
			FileName:  img.FileName,
			Width:     img.Width,
			Height:    img.Height,
			Size:      img.FileSize,
			Mime:      img.MimeType,
			IsChecked: img.IsChecked,
		},
		Duplicate: res.Duplicate,
		Warnings:  res.Warnings,
	}
}

func toAdminImages(images []models.Image) []adminImage {
	items := make([]adminImage, 0, len(images))
	for _, img := range images {
		source := "local"
		if img.Hosted() {
			source = "picgo"
		}
		var createdAt *string
		if !img.UploadTime.IsZero() {
			ts := img.UploadTime.Format(time.RFC3339)
			createdAt = &ts
		}
		items = append(items, adminImage{
			ID:        img.ID,
			FileName:  img.FileName,
			IsChecked: img.IsChecked,
			Likes:     img.Likes,
			Dislikes:  img.Dislikes,
			FileSize:  img.FileSize,
			ImageURL:  service.ImageURL(img),
			Source:    source,
			Width:     img.Width,
			Height:    img.Height,
			CreatedAt: createdAt,
		})
	}
	return items
}

func nonZero(v int) *int {
	if v == 0 {
		return nil
	}
	return &v
}
