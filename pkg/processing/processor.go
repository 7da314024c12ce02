package processing

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

var (
	// ErrTooLarge is returned when an image source exceeds the configured byte limit
	ErrTooLarge = errors.New("image exceeds size limit")
	// ErrUnsupportedFormat is returned when no registered decoder accepts the data
	ErrUnsupportedFormat = errors.New("unknown or unsupported image format")
	// ErrNotImage is returned when a remote resource is not served as an image
	ErrNotImage = errors.New("resource is not an image")
	// ErrInvalidDataURL is returned for malformed data: URLs
	ErrInvalidDataURL = errors.New("invalid data URL")
)

// Config holds limits for image acquisition
type Config struct {
	MaxBytes  int64
	Timeout   time.Duration
	UserAgent string
}

// DefaultConfig returns acquisition limits suitable for screenshots and web images
func DefaultConfig() Config {
	return Config{
		MaxBytes:  32 << 20,
		Timeout:   30 * time.Second,
		UserAgent: "Image-Redactor/1.0 (+https://github.com/menta2k/image-redactor)",
	}
}

// Processor handles image acquisition and presentation rendering
type Processor struct {
	config Config
	client *http.Client
}

// NewProcessor creates a new image processor
func NewProcessor() *Processor {
	return NewProcessorWithConfig(DefaultConfig())
}

// NewProcessorWithConfig creates a processor with custom limits
func NewProcessorWithConfig(config Config) *Processor {
	d := DefaultConfig()
	if config.MaxBytes <= 0 {
		config.MaxBytes = d.MaxBytes
	}
	if config.Timeout <= 0 {
		config.Timeout = d.Timeout
	}
	if config.UserAgent == "" {
		config.UserAgent = d.UserAgent
	}
	return &Processor{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

// SetHTTPClient replaces the client used for remote fetches
func (p *Processor) SetHTTPClient(client *http.Client) {
	if client != nil {
		p.client = client
	}
}

// FetchImage downloads the raw bytes of a remote image
func (p *Processor) FetchImage(ctx context.Context, imageURL string) ([]byte, error) {
	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme: %s (only http and https are supported)", parsedURL.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", p.config.UserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch image: HTTP %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("%w (Content-Type: %s)", ErrNotImage, contentType)
	}
	if resp.ContentLength > p.config.MaxBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, resp.ContentLength)
	}

	return p.readLimited(resp.Body)
}

// ReadFile reads a local image file, enforcing the byte limit
func (p *Processor) ReadFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image file: %w", err)
	}
	defer f.Close()
	return p.readLimited(f)
}

// LoadSource returns the raw bytes of an image given a file path, an http(s)
// URL or a data: URL
func (p *Processor) LoadSource(ctx context.Context, source string) ([]byte, error) {
	switch {
	case strings.HasPrefix(source, "data:"):
		data, _, err := DecodeDataURL(source)
		if err != nil {
			return nil, err
		}
		if int64(len(data)) > p.config.MaxBytes {
			return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(data))
		}
		return data, nil
	case strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://"):
		return p.FetchImage(ctx, source)
	default:
		return p.ReadFile(source)
	}
}

func (p *Processor) readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, p.config.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	if int64(len(data)) > p.config.MaxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, p.config.MaxBytes)
	}
	return data, nil
}

// ConfigCheck inspects an image header before its pixels are decoded
type ConfigCheck func(cfg image.Config, format string) error

// DecodeImage decodes image bytes and reports the detected format. EXIF
// orientation is applied so the natural size matches what a browser displays.
// A non-nil check runs against the header first; its error aborts before any
// pixel buffer is allocated.
func DecodeImage(data []byte, check ConfigCheck) (image.Image, string, error) {
	if cfg, format, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		if check != nil {
			if err := check(cfg, format); err != nil {
				return nil, format, err
			}
		}
		img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
		if err != nil {
			return nil, "", fmt.Errorf("failed to decode %s image: %w", format, err)
		}
		return img, format, nil
	}

	// Extended WebP variants the x/image decoder rejects
	if cfg, err := webp.DecodeConfig(bytes.NewReader(data)); err == nil {
		if check != nil {
			if err := check(cfg, "webp"); err != nil {
				return nil, "webp", err
			}
		}
		img, err := webp.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, "", fmt.Errorf("failed to decode webp image: %w", err)
		}
		return img, "webp", nil
	}

	return nil, "", ErrUnsupportedFormat
}

// DecodeDataURL extracts the payload and media type of a base64 data: URL
func DecodeDataURL(dataURL string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(dataURL, "data:")
	if !ok {
		return nil, "", fmt.Errorf("%w: missing data: prefix", ErrInvalidDataURL)
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", fmt.Errorf("%w: missing payload separator", ErrInvalidDataURL)
	}
	mediaType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return nil, "", fmt.Errorf("%w: only base64 payloads are supported", ErrInvalidDataURL)
	}
	if mediaType != "" && !strings.HasPrefix(mediaType, "image/") {
		return nil, "", fmt.Errorf("%w (media type: %s)", ErrNotImage, mediaType)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrInvalidDataURL, err)
	}
	return data, mediaType, nil
}

// EncodeDataURL wraps image bytes in a base64 data: URL
func EncodeDataURL(mediaType string, data []byte) string {
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// SaveImage saves an image to a file with the specified format and quality.
// Quality applies to jpeg and lossy webp only.
func (p *Processor) SaveImage(img image.Image, path, format string, quality int, lossless bool) error {
	switch strings.ToLower(format) {
	case "webp":
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		opts := &webp.Options{Lossless: lossless, Quality: float32(quality)}
		return webp.Encode(f, img, opts)
	case "png", "gif", "bmp", "tif", "tiff":
		return imaging.Save(img, path)
	case "jpg", "jpeg":
		return imaging.Save(img, path, imaging.JPEGQuality(quality))
	default:
		return fmt.Errorf("%w: cannot encode %s", ErrUnsupportedFormat, format)
	}
}
