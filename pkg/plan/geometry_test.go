package plan

import "testing"

func TestScaled_DetectionToOriginal(t *testing.T) {
	scaleX, scaleY := ScaleFactors(1600, 1200, 800, 600)
	if scaleX != 2.0 || scaleY != 2.0 {
		t.Fatalf("expected factors 2.0/2.0, got %f/%f", scaleX, scaleY)
	}

	r := Rect{X: 100, Y: 50, Width: 200, Height: 100}.Scaled(scaleX, scaleY)
	if r.X != 200 {
		t.Fatalf("expected x=200, got %d", r.X)
	}
	if r.Y != 100 || r.Width != 400 || r.Height != 200 {
		t.Fatalf("unexpected scaled rect: %+v", r)
	}
}

func TestScaleFactors_SameDimensionIdentity(t *testing.T) {
	scaleX, scaleY := ScaleFactors(800, 600, 800, 600)
	if scaleX != 1.0 || scaleY != 1.0 {
		t.Fatalf("expected identity factors, got %f/%f", scaleX, scaleY)
	}
}

func TestWithBias(t *testing.T) {
	b := BiasOffset{RightFrac: 0.50, DownFrac: 0.10}
	r := Rect{X: 100, Y: 100, Width: 200, Height: 100}.WithBias(b)
	if r.X != 200 {
		t.Fatalf("expected x shifted by half the width to 200, got %d", r.X)
	}
	if r.Y != 110 {
		t.Fatalf("expected y shifted by a tenth of the height to 110, got %d", r.Y)
	}
	if r.Width != 200 || r.Height != 100 {
		t.Fatalf("bias must not resize the rect: %+v", r)
	}
}

func TestWithPadding_Asymmetric(t *testing.T) {
	r := Rect{X: 100, Y: 100, Width: 100, Height: 100}.WithPadding(AreaTablePadding)
	if r.X != 75 {
		t.Fatalf("expected left pad 25, got x=%d", r.X)
	}
	if r.Y != 90 {
		t.Fatalf("expected top pad 10, got y=%d", r.Y)
	}
	if r.Width != 165 {
		t.Fatalf("expected width 165, got %d", r.Width)
	}
	if r.Height != 155 {
		t.Fatalf("expected height 155, got %d", r.Height)
	}
}

func TestClamp_KeepsRectInsideBounds(t *testing.T) {
	r := Rect{X: 700, Y: 500, Width: 300, Height: 300}.Clamp(800, 600)
	if r.X < 0 || r.Y < 0 || r.X+r.Width > 800 || r.Y+r.Height > 600 {
		t.Fatalf("rect not clamped to bounds: %+v", r)
	}
	if r.Width != 100 || r.Height != 100 {
		t.Fatalf("unexpected clamped size: %+v", r)
	}
}

func TestClamp_AfterBiasAndPadding(t *testing.T) {
	b := BiasOffset{RightFrac: 0.50, DownFrac: 0.10}
	r := Rect{X: 600, Y: 450, Width: 300, Height: 200}.
		WithBias(b).
		WithPadding(AreaTablePadding).
		Clamp(1000, 700)
	if r.X < 0 || r.Y < 0 || r.X+r.Width > 1000 || r.Y+r.Height > 700 {
		t.Fatalf("rect escapes bounds after correction: %+v", r)
	}
	if r.Empty() {
		t.Fatalf("expected non-empty clamped rect, got %+v", r)
	}
}

func TestClamp_FullyOutsideBecomesEmpty(t *testing.T) {
	r := Rect{X: 900, Y: 900, Width: 100, Height: 100}.Clamp(800, 600)
	if !r.Empty() {
		t.Fatalf("expected empty rect, got %+v", r)
	}
}
