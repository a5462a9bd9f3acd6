// Package imagesize reads pixel dimensions from encoded image headers.
package imagesize

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

var ErrEmpty = errors.New("empty image")

// Dimensions decodes only the image header and returns width and height.
func Dimensions(data []byte) (int, int, error) {
	if len(data) == 0 {
		return 0, 0, ErrEmpty
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("decode config: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}
