package sniffer

import (
	"bytes"
	"errors"
	"mime"
	"strings"
)

type MediaType string

const (
	TypeJPEG MediaType = "jpeg"
	TypePNG  MediaType = "png"
	TypeGIF  MediaType = "gif"
	TypeWEBP MediaType = "webp"
)

const (
	MimeJPEG = "image/jpeg"
	MimePNG  = "image/png"
	MimeGIF  = "image/gif"
	MimeWEBP = "image/webp"
)

var ErrUnknownType = errors.New("unknown media type")

type Result struct {
	Type MediaType
	MIME string
}

var allowed = map[string]Result{
	MimeJPEG:    {Type: TypeJPEG, MIME: MimeJPEG},
	"image/jpg": {Type: TypeJPEG, MIME: MimeJPEG},
	MimePNG:     {Type: TypePNG, MIME: MimePNG},
	MimeGIF:     {Type: TypeGIF, MIME: MimeGIF},
	MimeWEBP:    {Type: TypeWEBP, MIME: MimeWEBP},
}

// Normalize strips parameters from a Content-Type value and lowercases it.
func Normalize(contentType string) string {
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return ""
	}
	if parsed, _, err := mime.ParseMediaType(contentType); err == nil {
		return parsed
	}
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = contentType[:idx]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}

// Lookup resolves a declared content type against the upload allow-list.
func Lookup(contentType string) (Result, bool) {
	res, ok := allowed[Normalize(contentType)]
	return res, ok
}

// Allowed reports whether contentType is one of JPEG, PNG, GIF or WEBP.
func Allowed(contentType string) bool {
	_, ok := Lookup(contentType)
	return ok
}

// Resolve returns the effective media type of an upload. A declared type is
// authoritative when present; generic declarations fall back to magic bytes.
func Resolve(declared string, head []byte) (Result, error) {
	switch Normalize(declared) {
	case "", "application/octet-stream":
		return DetectHead(head)
	}
	if res, ok := Lookup(declared); ok {
		return res, nil
	}
	return Result{}, ErrUnknownType
}

func DetectHead(head []byte) (Result, error) {
	if len(head) == 0 {
		return Result{}, ErrUnknownType
	}

	if isJPEG(head) {
		return Result{Type: TypeJPEG, MIME: MimeJPEG}, nil
	}
	if isPNG(head) {
		return Result{Type: TypePNG, MIME: MimePNG}, nil
	}
	if isGIF(head) {
		return Result{Type: TypeGIF, MIME: MimeGIF}, nil
	}
	if isWEBP(head) {
		return Result{Type: TypeWEBP, MIME: MimeWEBP}, nil
	}

	return Result{}, ErrUnknownType
}

// Extension maps an allowed MIME type to a file extension with a leading dot.
func Extension(contentType string) string {
	res, ok := Lookup(contentType)
	if !ok {
		return ".jpg"
	}
	if res.Type == TypeJPEG {
		return ".jpg"
	}
	return "." + string(res.Type)
}

func isJPEG(head []byte) bool {
	return len(head) > 3 &&
		head[0] == 0xff &&
		head[1] == 0xd8 &&
		head[2] == 0xff
}

func isPNG(head []byte) bool {
	pngMagic := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	return len(head) >= len(pngMagic) && bytes.Equal(head[:len(pngMagic)], pngMagic)
}

func isGIF(head []byte) bool {
	return len(head) >= 6 && (bytes.Equal(head[:6], []byte("GIF87a")) || bytes.Equal(head[:6], []byte("GIF89a")))
}

func isWEBP(head []byte) bool {
	return len(head) >= 12 &&
		bytes.Equal(head[:4], []byte("RIFF")) &&
		bytes.Equal(head[8:12], []byte("WEBP"))
}
