// Package imaging holds the raster operations the pipeline needs: decoding
// rendered pages, producing detection copies and thumbnails, and cutting
// high-quality crops out of full-resolution pages.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	xdraw "golang.org/x/image/draw"
)

const (
	// DefaultCropQuality keeps crops close to lossless so small table text
	// survives re-encoding.
	DefaultCropQuality = 92

	// DefaultDetectionQuality trades fidelity for payload size. Detection
	// only needs coarse geometry, not readable cell text.
	DefaultDetectionQuality = 55

	// DefaultThumbnailEdge bounds the longest edge of page thumbnails sent
	// in batched classification requests.
	DefaultThumbnailEdge = 768
)

// Decode parses encoded image bytes (PNG, JPEG or GIF).
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// Dimensions returns the pixel size of encoded image bytes without decoding
// the full raster.
func Dimensions(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("decode image config: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}

// EncodeJPEG encodes an image as JPEG at the given quality (1-100).
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	if quality <= 0 || quality > 100 {
		quality = DefaultCropQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// Scale resizes an image to the exact target size with Catmull-Rom
// interpolation, which keeps thin plan linework legible.
func Scale(img image.Image, width int, height int) image.Image {
	if width <= 0 || height <= 0 {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Over, nil)
	return dst
}

// ScaleToEdge resizes an image so its longest edge is at most maxEdge,
// preserving aspect ratio. Images already within the bound are returned
// unchanged.
func ScaleToEdge(img image.Image, maxEdge int) image.Image {
	if maxEdge <= 0 {
		return img
	}
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	longest := w
	if h > longest {
		longest = h
	}
	if longest <= maxEdge {
		return img
	}
	scale := float64(maxEdge) / float64(longest)
	return Scale(img, int(float64(w)*scale), int(float64(h)*scale))
}

// Thumbnail decodes page bytes and produces a JPEG whose longest edge is at
// most maxEdge.
func Thumbnail(data []byte, maxEdge int, quality int) ([]byte, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return EncodeJPEG(ScaleToEdge(img, maxEdge), quality)
}

// DetectionCopy re-encodes a page for region detection and reports the
// dimensions of the copy. The copy keeps the page dimensions unless maxEdge
// forces a downscale; either way the returned width and height are what the
// detector actually sees, so detected coordinates can be scaled back.
func DetectionCopy(data []byte, maxEdge int, quality int) ([]byte, int, int, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, 0, 0, err
	}
	scaled := ScaleToEdge(img, maxEdge)
	if quality <= 0 {
		quality = DefaultDetectionQuality
	}
	encoded, err := EncodeJPEG(scaled, quality)
	if err != nil {
		return nil, 0, 0, err
	}
	return encoded, scaled.Bounds().Dx(), scaled.Bounds().Dy(), nil
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// Crop returns the part of img covered by r. The rectangle must already be
// clamped to the image bounds.
func Crop(img image.Image, r image.Rectangle) (image.Image, error) {
	r = r.Add(img.Bounds().Min)
	if !r.In(img.Bounds()) {
		return nil, fmt.Errorf("crop %v outside image bounds %v", r, img.Bounds())
	}
	if si, ok := img.(subImager); ok {
		return si.SubImage(r), nil
	}
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	xdraw.Copy(dst, image.Point{}, img, r, xdraw.Over, nil)
	return dst, nil
}

// CropEncode decodes page bytes, cuts the rectangle out and re-encodes it as
// a high-quality JPEG.
func CropEncode(data []byte, r image.Rectangle, quality int) ([]byte, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}
	cropped, err := Crop(img, r)
	if err != nil {
		return nil, err
	}
	return EncodeJPEG(cropped, quality)
}
