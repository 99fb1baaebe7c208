package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func solidImage(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestDimensions(t *testing.T) {
	data := encodePNG(t, solidImage(120, 80, color.White))
	w, h, err := Dimensions(data)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if w != 120 || h != 80 {
		t.Fatalf("expected 120x80, got %dx%d", w, h)
	}
}

func TestScaleToEdge_Downscales(t *testing.T) {
	img := solidImage(1000, 500, color.White)
	scaled := ScaleToEdge(img, 200)
	if scaled.Bounds().Dx() != 200 {
		t.Fatalf("expected width 200, got %d", scaled.Bounds().Dx())
	}
	if scaled.Bounds().Dy() != 100 {
		t.Fatalf("expected height 100, got %d", scaled.Bounds().Dy())
	}
}

func TestScaleToEdge_NoUpscale(t *testing.T) {
	img := solidImage(100, 50, color.White)
	scaled := ScaleToEdge(img, 200)
	if scaled.Bounds().Dx() != 100 || scaled.Bounds().Dy() != 50 {
		t.Fatalf("expected unchanged 100x50, got %dx%d", scaled.Bounds().Dx(), scaled.Bounds().Dy())
	}
}

func TestDetectionCopy_KeepsDimensionsWithoutEdgeLimit(t *testing.T) {
	data := encodePNG(t, solidImage(300, 200, color.White))
	copyBytes, w, h, err := DetectionCopy(data, 0, 50)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if w != 300 || h != 200 {
		t.Fatalf("expected 300x200, got %dx%d", w, h)
	}
	gotW, gotH, err := Dimensions(copyBytes)
	if err != nil {
		t.Fatalf("expected decodable copy, got %v", err)
	}
	if gotW != 300 || gotH != 200 {
		t.Fatalf("copy dimensions %dx%d do not match reported %dx%d", gotW, gotH, w, h)
	}
}

func TestDetectionCopy_ReportsScaledDimensions(t *testing.T) {
	data := encodePNG(t, solidImage(800, 400, color.White))
	_, w, h, err := DetectionCopy(data, 400, 50)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if w != 400 || h != 200 {
		t.Fatalf("expected 400x200, got %dx%d", w, h)
	}
}

func TestCrop_InsideBounds(t *testing.T) {
	img := solidImage(100, 100, color.White)
	cropped, err := Crop(img, image.Rect(10, 20, 50, 60))
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if cropped.Bounds().Dx() != 40 || cropped.Bounds().Dy() != 40 {
		t.Fatalf("expected 40x40 crop, got %dx%d", cropped.Bounds().Dx(), cropped.Bounds().Dy())
	}
}

func TestCrop_OutsideBoundsFails(t *testing.T) {
	img := solidImage(100, 100, color.White)
	_, err := Crop(img, image.Rect(50, 50, 150, 150))
	if err == nil {
		t.Fatal("expected error for out-of-bounds crop, got nil")
	}
}

func TestCropEncode_UndecodableInput(t *testing.T) {
	_, err := CropEncode([]byte("not an image"), image.Rect(0, 0, 10, 10), 90)
	if err == nil {
		t.Fatal("expected error for undecodable input, got nil")
	}
}

func TestThumbnail(t *testing.T) {
	data := encodePNG(t, solidImage(1600, 800, color.White))
	thumb, err := Thumbnail(data, 400, 70)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	w, h, err := Dimensions(thumb)
	if err != nil {
		t.Fatalf("expected decodable thumbnail, got %v", err)
	}
	if w != 400 || h != 200 {
		t.Fatalf("expected 400x200, got %dx%d", w, h)
	}
}
