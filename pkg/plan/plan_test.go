package plan

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"planvision/pkg/ai"
)

// fakeVision replays scripted replies in call order.
type fakeVision struct {
	replies []string
	err     error
	calls   [][]ai.Part
}

func (f *fakeVision) next() (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if len(f.replies) == 0 {
		return "", errors.New("no scripted reply left")
	}
	reply := f.replies[0]
	f.replies = f.replies[1:]
	return reply, nil
}

func (f *fakeVision) GenerateVision(ctx context.Context, parts []ai.Part, opts ...ai.GenerateOption) (string, error) {
	f.calls = append(f.calls, parts)
	return f.next()
}

func (f *fakeVision) GenerateVisionWithFormat(ctx context.Context, name string, description string, parts []ai.Part, out any, opts ...ai.GenerateOption) error {
	f.calls = append(f.calls, parts)
	reply, err := f.next()
	if err != nil {
		return err
	}
	return ai.UnmarshalFlexible(reply, out)
}

func (f *fakeVision) ResetMetrics() {}

func (f *fakeVision) GetMetrics() ai.ModelMetrics { return ai.ModelMetrics{} }

func testPage(t *testing.T, width int, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding test page: %v", err)
	}
	return buf.Bytes()
}

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }
