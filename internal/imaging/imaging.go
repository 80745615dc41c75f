// Package imaging holds the small image operations shared by the builder,
// the fetcher and the CLI.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"

	"golang.org/x/image/draw"

	// Registered decoders.
	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrEmptyImage is returned when decoding yields a zero-sized image.
var ErrEmptyImage = errors.New("imaging: empty image")

// Decode reads an image in any registered format.
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("imaging: decode: %w", err)
	}
	if img.Bounds().Empty() {
		return nil, format, ErrEmptyImage
	}
	return img, format, nil
}

// DecodeBytes decodes an in-memory image.
func DecodeBytes(data []byte) (image.Image, error) {
	img, _, err := Decode(bytes.NewReader(data))
	return img, err
}

// CropTop keeps the top num/den of img's height, rounding down.
// The result is a copy with its origin at (0, 0).
func CropTop(img image.Image, num, den int) image.Image {
	b := img.Bounds()
	h := b.Dy() * num / den
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), h))
	draw.Draw(dst, dst.Rect, img, b.Min, draw.Src)
	return dst
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
