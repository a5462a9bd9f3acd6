package models

import "time"

// Image is a single uploaded meme. A record is either pending review
// (IsChecked == false) or approved; rejected records are deleted outright.
type Image struct {
	ID          int64
	FileName    string
	FileHash    string
	FilePath    string
	ImageBedURL string
	IsChecked   bool
	Likes       int
	Dislikes    int
	FileSize    int64
	MimeType    string
	Width       int
	Height      int
	UploadTime  time.Time
}

// Hosted reports whether the image lives at the external image host.
func (i Image) Hosted() bool {
	return i.ImageBedURL != ""
}

// NewImage carries the fields supplied on insert; the store assigns the
// id, counters and upload time.
type NewImage struct {
	FileName    string
	FileHash    string
	FilePath    string
	ImageBedURL string
	IsChecked   bool
	FileSize    int64
	MimeType    string
	Width       int
	Height      int
}
