package analyzer

import (
	"errors"
	"fmt"
	"image"
	"strings"
)

var (
	// ErrImageTooSmall is returned when either side is below the minimum
	ErrImageTooSmall = errors.New("image too small")
	// ErrImageTooLarge is returned when the pixel count exceeds the maximum
	ErrImageTooLarge = errors.New("image too large")
	// ErrUnsupportedFormat is returned for formats outside the allow list
	ErrUnsupportedFormat = errors.New("unsupported image format")
)

// ImageAnalyzer checks decoded images before they enter an editor session
type ImageAnalyzer struct {
	config Config
}

// Config holds validation limits
type Config struct {
	SupportedFormats []string
	MinImageSize     int
	MaxPixels        int
}

// DefaultConfig returns the standard validation limits
func DefaultConfig() Config {
	return Config{
		SupportedFormats: []string{"png", "jpeg", "gif", "webp", "bmp", "tiff"},
		MinImageSize:     1,
		MaxPixels:        64 << 20,
	}
}

// New creates a new ImageAnalyzer with default configuration
func New() *ImageAnalyzer {
	return &ImageAnalyzer{config: DefaultConfig()}
}

// NewWithConfig creates a new ImageAnalyzer with custom configuration
func NewWithConfig(config Config) *ImageAnalyzer {
	return &ImageAnalyzer{config: config}
}

// ImageInfo contains the natural dimensions of an image
type ImageInfo struct {
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	AspectRatio float64 `json:"aspect_ratio"`
	Area        int     `json:"area"`
	Format      string  `json:"format,omitempty"`
}

// GetImageInfo returns basic information about an image
func (a *ImageAnalyzer) GetImageInfo(img image.Image) ImageInfo {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	info := ImageInfo{
		Width:  width,
		Height: height,
		Area:   width * height,
	}
	if height > 0 {
		info.AspectRatio = float64(width) / float64(height)
	}
	return info
}

// ValidateImage checks an image against the size limits
func (a *ImageAnalyzer) ValidateImage(img image.Image) error {
	if img == nil {
		return fmt.Errorf("%w: nil image", ErrImageTooSmall)
	}
	bounds := img.Bounds()
	return a.validateSize(bounds.Dx(), bounds.Dy())
}

// ValidateConfig checks a header-only decode result against the format allow
// list and the size limits, so oversized images are refused before their
// pixels are allocated.
func (a *ImageAnalyzer) ValidateConfig(cfg image.Config, format string) error {
	if err := a.ValidateFormat(format); err != nil {
		return err
	}
	return a.validateSize(cfg.Width, cfg.Height)
}

func (a *ImageAnalyzer) validateSize(width, height int) error {
	minSize := max(a.config.MinImageSize, 1)
	if width < minSize || height < minSize {
		return fmt.Errorf("%w: %dx%d (minimum: %d)",
			ErrImageTooSmall, width, height, minSize)
	}
	if a.config.MaxPixels > 0 && int64(width)*int64(height) > int64(a.config.MaxPixels) {
		return fmt.Errorf("%w: %dx%d (maximum: %d pixels)",
			ErrImageTooLarge, width, height, a.config.MaxPixels)
	}
	return nil
}

// ValidateFormat checks a decoder format name against the allow list.
// An empty allow list accepts everything.
func (a *ImageAnalyzer) ValidateFormat(format string) error {
	if len(a.config.SupportedFormats) == 0 || a.isFormatSupported(format) {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
}

func (a *ImageAnalyzer) isFormatSupported(format string) bool {
	for _, supported := range a.config.SupportedFormats {
		if strings.EqualFold(format, supported) {
			return true
		}
		if strings.EqualFold(supported, "jpg") && strings.EqualFold(format, "jpeg") {
			return true
		}
	}
	return false
}
