// Package gateway talks to the external service that hosts uploaded images.
// Implementations perform network I/O only and never touch the database.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

// maxFetchBytes caps how much of a hosted image is read into memory.
const maxFetchBytes = 32 << 20

var (
	// ErrTimeout means the host did not answer within the configured budget.
	// Callers may retry.
	ErrTimeout = errors.New("image host timed out")
	// ErrNotConfigured means no credential is available for the host.
	ErrNotConfigured = errors.New("image host credential not configured")
)

// Error is a failure reported by the image host.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("image host error: status %d", e.Code)
	}
	return fmt.Sprintf("image host error: status %d: %s", e.Code, e.Message)
}

// Options is metadata forwarded to the host as-is.
type Options struct {
	Title       string
	Description string
	Tags        string
	AlbumID     string
	CategoryID  string
	Width       int
	Expiration  string
	NSFW        int
	Format      string
	UseFileDate int
}

// Form renders the non-empty options as form fields.
func (o Options) Form() map[string]string {
	form := map[string]string{}
	set := func(key, value string) {
		if value != "" {
			form[key] = value
		}
	}
	set("title", o.Title)
	set("description", o.Description)
	set("tags", o.Tags)
	set("album_id", o.AlbumID)
	set("category_id", o.CategoryID)
	set("expiration", o.Expiration)
	if o.Width > 0 {
		form["width"] = strconv.Itoa(o.Width)
	}
	form["nsfw"] = strconv.Itoa(o.NSFW)
	form["use_file_date"] = strconv.Itoa(o.UseFileDate)
	form["format"] = "json"
	if o.Format != "" {
		form["format"] = o.Format
	}
	return form
}

type UploadRequest struct {
	Data        []byte
	ContentType string
	FileName    string
	Options     Options
	// APIKey overrides the configured credential when set.
	APIKey string
}

// UploadResult describes a hosted image. Zero values mean the host did not
// report the field.
type UploadResult struct {
	URL            string
	Width          int
	Height         int
	Size           int64
	MimeType       string
	RemoteFileName string
}

type FetchResult struct {
	Data        []byte
	ContentType string
}

type Status struct {
	Driver     string `json:"driver"`
	Configured bool   `json:"api_configured"`
	Endpoint   string `json:"api_url"`
}

type Gateway interface {
	Upload(ctx context.Context, req UploadRequest) (UploadResult, error)
	Fetch(ctx context.Context, url string) (FetchResult, error)
	Status() Status
}

// URLUploader is implemented by hosts that can ingest an image from a URL.
type URLUploader interface {
	UploadURL(ctx context.Context, sourceURL string, apiKey string, opts Options) (UploadResult, error)
}
