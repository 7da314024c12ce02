package processing

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/image-redactor/pkg/types"
)

func createTestImage(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.NRGBA{200, 200, 200, 255})
		}
	}
	return img
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, createTestImage(w, h)))
	return buf.Bytes()
}

func TestDecodeImage(t *testing.T) {
	img, format, err := DecodeImage(pngBytes(t, 40, 30), nil)
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 40, img.Bounds().Dx())
	assert.Equal(t, 30, img.Bounds().Dy())

	_, _, err = DecodeImage([]byte("definitely not an image"), nil)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestDecodeImageCheckRunsBeforeDecode(t *testing.T) {
	errRefused := errors.New("refused")
	data := pngBytes(t, 40, 30)
	// Signature and IHDR only: the check must run before the pixel decode
	// would notice the missing data.
	truncated := data[:40]

	var seen image.Config
	_, format, err := DecodeImage(truncated, func(cfg image.Config, format string) error {
		seen = cfg
		return errRefused
	})
	assert.ErrorIs(t, err, errRefused)
	assert.Equal(t, "png", format)
	assert.Equal(t, 40, seen.Width)
	assert.Equal(t, 30, seen.Height)

	img, _, err := DecodeImage(data, func(image.Config, string) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 40, img.Bounds().Dx())
}

func TestDataURLRoundTrip(t *testing.T) {
	data := pngBytes(t, 4, 4)
	u := EncodeDataURL("image/png", data)

	got, mediaType, err := DecodeDataURL(u)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mediaType)
	assert.Equal(t, data, got)
}

func TestDecodeDataURLErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want error
	}{
		{"no prefix", "image/png;base64,AAAA", ErrInvalidDataURL},
		{"no comma", "data:image/png;base64", ErrInvalidDataURL},
		{"not base64", "data:image/png,rawbytes", ErrInvalidDataURL},
		{"bad base64", "data:image/png;base64,@@@", ErrInvalidDataURL},
		{"not an image", "data:text/plain;base64,aGk=", ErrNotImage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeDataURL(tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestFetchImage(t *testing.T) {
	data := pngBytes(t, 8, 8)
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		switch r.URL.Path {
		case "/ok.png":
			w.Header().Set("Content-Type", "image/png")
			w.Write(data)
		case "/page.html":
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("<html></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	p := NewProcessor()
	got, err := p.FetchImage(context.Background(), srv.URL+"/ok.png")
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Contains(t, gotUA, "Image-Redactor")

	_, err = p.FetchImage(context.Background(), srv.URL+"/page.html")
	assert.ErrorIs(t, err, ErrNotImage)

	_, err = p.FetchImage(context.Background(), srv.URL+"/missing.png")
	assert.ErrorContains(t, err, "HTTP 404")

	_, err = p.FetchImage(context.Background(), "ftp://example.com/a.png")
	assert.ErrorContains(t, err, "unsupported URL scheme")
}

func TestFetchImageSizeLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(bytes.Repeat([]byte{0}, 2048))
	}))
	defer srv.Close()

	p := NewProcessorWithConfig(Config{MaxBytes: 1024})
	_, err := p.FetchImage(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestLoadSource(t *testing.T) {
	data := pngBytes(t, 5, 5)
	dir := t.TempDir()
	path := filepath.Join(dir, "in.png")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	p := NewProcessor()
	got, err := p.LoadSource(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	got, err = p.LoadSource(context.Background(), EncodeDataURL("image/png", data))
	require.NoError(t, err)
	assert.Equal(t, data, got)

	small := NewProcessorWithConfig(Config{MaxBytes: 10})
	_, err = small.LoadSource(context.Background(), path)
	assert.ErrorIs(t, err, ErrTooLarge)
	_, err = small.LoadSource(context.Background(), EncodeDataURL("image/png", data))
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestSaveImage(t *testing.T) {
	dir := t.TempDir()
	p := NewProcessor()
	img := createTestImage(10, 10)
	for _, format := range []string{"png", "jpg", "webp"} {
		path := filepath.Join(dir, "out."+format)
		require.NoError(t, p.SaveImage(img, path, format, 90, false), format)
		data, err := p.ReadFile(path)
		require.NoError(t, err, format)
		loaded, decoded, err := DecodeImage(data, nil)
		require.NoError(t, err, format)
		assert.Equal(t, 10, loaded.Bounds().Dx(), format)
		assert.Equal(t, strings.Replace(format, "jpg", "jpeg", 1), decoded)
	}

	err := p.SaveImage(img, filepath.Join(dir, "out.tga"), "tga", 90, false)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestCreateOverlay(t *testing.T) {
	img := createTestImage(100, 100)
	items := []types.Redaction{
		{ID: "a", Box: types.Box{X: 0.1, Y: 0.1, W: 0.4, H: 0.4}},
		{ID: "b", Box: types.Box{X: 0.6, Y: 0.6, W: 0.3, H: 0.3}},
	}

	edit := CreateOverlay(img, items, "a", false).(*image.NRGBA)
	center := edit.NRGBAAt(30, 30)
	assert.Equal(t, uint8(255), center.A)
	assert.Greater(t, center.R, uint8(0), "edit mode fill is translucent")
	assert.Less(t, center.R, uint8(200))
	assert.Equal(t, selectedBorder, edit.NRGBAAt(10, 30), "selected border is red")
	assert.Equal(t, defaultBorder, edit.NRGBAAt(60, 75))
	assert.Equal(t, img.NRGBAAt(55, 55), edit.NRGBAAt(55, 55), "outside boxes untouched")

	prev := CreateOverlay(img, items, "a", true).(*image.NRGBA)
	assert.Equal(t, color.NRGBA{0, 0, 0, 255}, prev.NRGBAAt(30, 30), "preview fill is opaque")
	assert.Equal(t, color.NRGBA{0, 0, 0, 255}, prev.NRGBAAt(75, 75))

	assert.Equal(t, color.NRGBA{200, 200, 200, 255}, img.NRGBAAt(30, 30), "source is not modified")
}

func TestBoxToPixelsMinimumSize(t *testing.T) {
	x0, y0, x1, y1 := boxToPixels(types.Box{X: 0.5, Y: 0.5, W: 0, H: 0}, 10, 10)
	assert.Equal(t, 1, x1-x0)
	assert.Equal(t, 1, y1-y0)
}
