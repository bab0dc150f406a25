// Package imaging probes image dimensions and renders bounded thumbnails.
package imaging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"time"

	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	// MaxThumbnailWidth and MaxThumbnailHeight bound every derivative; an
	// original larger than this in either dimension gets a thumbnail.
	MaxThumbnailWidth  = 200
	MaxThumbnailHeight = 200

	ThumbnailMimeType = "image/jpeg"
	thumbnailQuality  = 80

	DefaultTimeout = 10 * time.Second

	// MaxSourcePixels caps the decoded frame a thumbnail may be rendered
	// from. Decoders allocate the full frame up front.
	MaxSourcePixels = 50_000_000
)

// ErrSourceTooLarge reports an original whose header claims more pixels
// than MaxSourcePixels.
var ErrSourceTooLarge = errors.New("image too large to render")

// Dimensions is the result of a header-only probe.
type Dimensions struct {
	Width  int
	Height int
	Format string
}

// Thumbnail is one rendered derivative.
type Thumbnail struct {
	Data     []byte
	Width    int
	Height   int
	MimeType string
}

// Probe reads only the image header to find its dimensions.
func Probe(raw []byte) (Dimensions, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return Dimensions{}, fmt.Errorf("probe image: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return Dimensions{}, fmt.Errorf("probe image: invalid dimensions %dx%d", cfg.Width, cfg.Height)
	}
	return Dimensions{Width: cfg.Width, Height: cfg.Height, Format: format}, nil
}

// NeedsThumbnail reports whether an original of this size exceeds the
// thumbnail bounding box.
func NeedsThumbnail(width, height int) bool {
	return width > MaxThumbnailWidth || height > MaxThumbnailHeight
}

// FitWithin scales width x height down to fit maxW x maxH keeping the aspect
// ratio. It never upscales and never returns a zero side.
func FitWithin(width, height, maxW, maxH int) (int, int) {
	if width <= 0 || height <= 0 {
		return 0, 0
	}
	if width <= maxW && height <= maxH {
		return width, height
	}
	w, h := maxW, height*maxW/width
	if h > maxH {
		w, h = width*maxH/height, maxH
	}
	return max(w, 1), max(h, 1)
}

// Generator renders thumbnails. The zero value uses DefaultTimeout.
type Generator struct {
	Timeout time.Duration
}

type renderResult struct {
	thumb Thumbnail
	err   error
}

// Thumbnail decodes raw, fits it into the bounding box and re-encodes it as
// JPEG regardless of the source format. Sources over MaxSourcePixels are
// refused from their header before any decode starts. The wait is abandoned
// when ctx or the generator timeout expires; the render goroutine then
// finishes in the background and its result is dropped.
func (g Generator) Thumbnail(ctx context.Context, raw []byte) (Thumbnail, error) {
	if err := checkSourceSize(raw); err != nil {
		return Thumbnail{}, err
	}
	timeout := g.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan renderResult, 1)
	go func() {
		thumb, err := render(raw)
		done <- renderResult{thumb: thumb, err: err}
	}()

	select {
	case res := <-done:
		return res.thumb, res.err
	case <-ctx.Done():
		return Thumbnail{}, fmt.Errorf("render thumbnail: %w", ctx.Err())
	}
}

func checkSourceSize(raw []byte) error {
	dims, err := Probe(raw)
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}
	if int64(dims.Width)*int64(dims.Height) > MaxSourcePixels {
		return fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrSourceTooLarge, dims.Width, dims.Height, MaxSourcePixels)
	}
	return nil
}

func render(raw []byte) (Thumbnail, error) {
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return Thumbnail{}, fmt.Errorf("decode image: %w", err)
	}
	bounds := src.Bounds()
	w, h := FitWithin(bounds.Dx(), bounds.Dy(), MaxThumbnailWidth, MaxThumbnailHeight)
	if w == 0 || h == 0 {
		return Thumbnail{}, fmt.Errorf("decode image: empty bounds")
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	// JPEG has no alpha; flatten transparent sources onto white.
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: thumbnailQuality}); err != nil {
		return Thumbnail{}, fmt.Errorf("encode thumbnail: %w", err)
	}
	return Thumbnail{Data: buf.Bytes(), Width: w, Height: h, MimeType: ThumbnailMimeType}, nil
}
