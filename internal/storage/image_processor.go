package storage

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
)

const (
	DefaultMaxImageBytes  = 10 * 1024 * 1024
	DefaultMaxDimension   = 1600
	DefaultJPEGQuality    = 80
	CompressedContentType = "image/jpeg"
)

var (
	ErrImageTooLarge    = errors.New("image too large")
	ErrUnsupportedImage = errors.New("unsupported image format")
)

// AllowedImageTypes are accepted for upload and presigned PUTs.
var AllowedImageTypes = []string{"image/jpeg", "image/png", "image/gif"}

// ImageProcessor shrinks review photos before they are stored.
type ImageProcessor struct {
	MaxBytes     int64
	MaxDimension int
	Quality      int
}

func NewImageProcessor() *ImageProcessor {
	return &ImageProcessor{
		MaxBytes:     DefaultMaxImageBytes,
		MaxDimension: DefaultMaxDimension,
		Quality:      DefaultJPEGQuality,
	}
}

// Validate checks size and that data decodes as jpeg, png or gif.
func (p *ImageProcessor) Validate(data []byte) error {
	if int64(len(data)) > p.MaxBytes {
		return fmt.Errorf("%w: exceeds %dMB", ErrImageTooLarge, p.MaxBytes/(1024*1024))
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	switch format {
	case "jpeg", "png", "gif":
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedImage, format)
	}
}

// Compress fits the image inside MaxDimension (never upscaling) and
// re-encodes it as JPEG.
func (p *ImageProcessor) Compress(data []byte) ([]byte, error) {
	if err := p.Validate(data); err != nil {
		return nil, err
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("cannot decode image: %w", err)
	}

	resized := imaging.Fit(img, p.MaxDimension, p.MaxDimension, imaging.Lanczos)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: p.Quality}); err != nil {
		return nil, fmt.Errorf("cannot encode image: %w", err)
	}
	return buf.Bytes(), nil
}
