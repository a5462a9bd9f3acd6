package handlers

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"memeshare/api/internal/gateway"
	"memeshare/api/internal/service"
)

// Upload accepts an anonymous upload into the review queue.
func (h HandlerSet) Upload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		h.fail(c, fmt.Errorf("%w: multipart field \"file\" is required", service.ErrValidation))
		return
	}
	input, err := h.readUpload(header)
	if err != nil {
		h.fail(c, err)
		return
	}

	res, err := h.uploads.Upload(c.Request.Context(), input)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toUploadResponse(res))
}

// UploadHosted is the administrator upload. Images are approved on upload
// and land in the requested album, or the configured default.
func (h HandlerSet) UploadHosted(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		h.fail(c, fmt.Errorf("%w: multipart field \"file\" is required", service.ErrValidation))
		return
	}
	input, err := h.readUpload(header)
	if err != nil {
		h.fail(c, err)
		return
	}
	input.Options = h.uploadOptions(c)
	input.APIKey = param(c, "api_key")
	input.AutoCheck = true

	res, err := h.uploads.Upload(c.Request.Context(), input)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toHostedUpload(res))
}

func (h HandlerSet) BatchUploadHosted(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		h.fail(c, fmt.Errorf("%w: multipart form required", service.ErrValidation))
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		h.fail(c, fmt.Errorf("%w: multipart field \"files\" is required", service.ErrValidation))
		return
	}
	if limit := h.cfg.Limits.BatchMax; limit > 0 && len(files) > limit {
		h.fail(c, fmt.Errorf("%w: at most %d files per batch", service.ErrValidation, limit))
		return
	}

	var titles []string
	if raw := param(c, "titles"); raw != "" {
		for _, title := range strings.Split(raw, ",") {
			titles = append(titles, strings.TrimSpace(title))
		}
	}

	base := h.uploadOptions(c)
	apiKey := param(c, "api_key")
	inputs := make([]service.UploadInput, 0, len(files))
	readErrs := make(map[int]error)
	for i, header := range files {
		input, err := h.readUpload(header)
		if err != nil {
			readErrs[i] = err
		}
		input.FileName = header.Filename
		input.Options = base
		input.Options.Title = ""
		if i < len(titles) {
			input.Options.Title = titles[i]
		}
		input.APIKey = apiKey
		input.AutoCheck = true
		inputs = append(inputs, input)
	}

	batch, err := h.uploads.BatchUpload(c.Request.Context(), inputs)
	if err != nil {
		h.fail(c, err)
		return
	}

	res := batchResponse{
		AlbumID:    base.AlbumID,
		TotalFiles: len(files),
		Results:    make([]batchItemResponse, 0, len(batch.Items)),
	}
	for i, item := range batch.Items {
		entry := batchItemResponse{FileName: item.FileName}
		err := item.Err
		if readErr, ok := readErrs[i]; ok {
			err = readErr
		}
		if err != nil {
			_, entry.Error = classify(err)
			res.ErrorCount++
		} else {
			hosted := toHostedUpload(*item.Result)
			entry.Success = true
			entry.Result = &hosted
			res.SuccessCount++
		}
		res.Results = append(res.Results, entry)
	}
	c.JSON(http.StatusOK, res)
}

func (h HandlerSet) UploadFromURL(c *gin.Context) {
	source := param(c, "source_url")
	if source == "" {
		h.fail(c, fmt.Errorf("%w: source_url is required", service.ErrValidation))
		return
	}

	hosted, err := h.uploads.UploadFromURL(c.Request.Context(), source, param(c, "api_key"), h.uploadOptions(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, hostedUploadResponse{
		StatusCode: http.StatusOK,
		StatusTxt:  "OK",
		Image: hostedImage{
			URL:      hosted.URL,
			FileName: hosted.RemoteFileName,
			Width:    hosted.Width,
			Height:   hosted.Height,
			Size:     hosted.Size,
			Mime:     hosted.MimeType,
		},
	})
}

func (h HandlerSet) GatewayStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.uploads.GatewayStatus())
}

func (h HandlerSet) readUpload(header *multipart.FileHeader) (service.UploadInput, error) {
	file, err := header.Open()
	if err != nil {
		return service.UploadInput{}, fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	// One byte over the limit is enough for the size check to reject it.
	data, err := io.ReadAll(io.LimitReader(file, h.cfg.Limits.MaxUploadBytes+1))
	if err != nil {
		return service.UploadInput{}, fmt.Errorf("read upload: %w", err)
	}
	return service.UploadInput{
		Data:        data,
		ContentType: header.Header.Get("Content-Type"),
		FileName:    header.Filename,
	}, nil
}

func (h HandlerSet) uploadOptions(c *gin.Context) gateway.Options {
	opts := gateway.Options{
		Title:       param(c, "title"),
		Description: param(c, "description"),
		Tags:        param(c, "tags"),
		AlbumID:     c.Param("album_id"),
		CategoryID:  param(c, "category_id"),
		Expiration:  param(c, "expiration"),
		Format:      param(c, "format"),
	}
	if opts.AlbumID == "" {
		opts.AlbumID = param(c, "album_id")
	}
	if opts.AlbumID == "" {
		opts.AlbumID = h.cfg.Gateway.PicGo.DefaultAlbum
	}
	opts.Width, _ = strconv.Atoi(param(c, "width"))
	opts.NSFW, _ = strconv.Atoi(param(c, "nsfw"))
	opts.UseFileDate, _ = strconv.Atoi(param(c, "use_file_date"))
	return opts
}

// param reads a value from the query string, falling back to form fields.
func param(c *gin.Context, key string) string {
	if v := strings.TrimSpace(c.Query(key)); v != "" {
		return v
	}
	return strings.TrimSpace(c.PostForm(key))
}
