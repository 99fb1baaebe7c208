package plan

import (
	"image"
	"math"

	"planvision/internal/util"
)

// Rect is a pixel rectangle in page coordinates, origin top-left.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// ToImageRect converts to the stdlib rectangle form.
func (r Rect) ToImageRect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// BiasOffset corrects the systematic detection shift: the model reports
// regions up and left of their true position, so corrected rectangles move
// right by RightFrac of their width and down by DownFrac of their height.
// The fractions are empirical calibration values, not geometry.
type BiasOffset struct {
	RightFrac float64
	DownFrac  float64
}

// BiasOffsetFromEnv reads the calibrated offsets, defaulting to the values
// tuned on the current document style.
func BiasOffsetFromEnv() BiasOffset {
	return BiasOffset{
		RightFrac: util.GetEnvFloat("DETECT_BIAS_RIGHT_FRAC", 0.50),
		DownFrac:  util.GetEnvFloat("DETECT_BIAS_DOWN_FRAC", 0.10),
	}
}

// WithBias shifts the rectangle by the configured fractions of its own size.
func (r Rect) WithBias(b BiasOffset) Rect {
	return Rect{
		X:      r.X + int(math.Round(float64(r.Width)*b.RightFrac)),
		Y:      r.Y + int(math.Round(float64(r.Height)*b.DownFrac)),
		Width:  r.Width,
		Height: r.Height,
	}
}

// PadProfile expands a rectangle by per-side fractions of its size before
// cropping.
type PadProfile struct {
	LeftFrac   float64
	RightFrac  float64
	TopFrac    float64
	BottomFrac float64
}

// RoomDetailPadding is the symmetric margin for room-detail regions.
var RoomDetailPadding = PadProfile{
	LeftFrac:   0.10,
	RightFrac:  0.10,
	TopFrac:    0.10,
	BottomFrac: 0.10,
}

// AreaTablePadding is deliberately bottom-heavy and wide: area tables carry
// total rows below and area columns to the right of the detected box, and
// truncating those loses exactly the numbers the analyzer needs.
var AreaTablePadding = PadProfile{
	LeftFrac:   0.25,
	RightFrac:  0.40,
	TopFrac:    0.10,
	BottomFrac: 0.45,
}

// WithPadding grows the rectangle by the profile's per-side fractions.
func (r Rect) WithPadding(p PadProfile) Rect {
	left := int(math.Round(float64(r.Width) * p.LeftFrac))
	right := int(math.Round(float64(r.Width) * p.RightFrac))
	top := int(math.Round(float64(r.Height) * p.TopFrac))
	bottom := int(math.Round(float64(r.Height) * p.BottomFrac))
	return Rect{
		X:      r.X - left,
		Y:      r.Y - top,
		Width:  r.Width + left + right,
		Height: r.Height + top + bottom,
	}
}

// Clamp restricts the rectangle to [0,width]x[0,height]. The result may be
// empty when the input lies entirely outside the bounds.
func (r Rect) Clamp(width int, height int) Rect {
	minX := clamp(r.X, 0, width)
	minY := clamp(r.Y, 0, height)
	maxX := clamp(r.X+r.Width, 0, width)
	maxY := clamp(r.Y+r.Height, 0, height)
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// ScaleFactors returns the per-axis factors that map detection-space
// coordinates back to original-space ones.
func ScaleFactors(originalWidth, originalHeight, detectionWidth, detectionHeight int) (float64, float64) {
	if detectionWidth <= 0 || detectionHeight <= 0 {
		return 1, 1
	}
	return float64(originalWidth) / float64(detectionWidth),
		float64(originalHeight) / float64(detectionHeight)
}

// Scaled maps the rectangle by independent x/y factors, rounding outward so
// scaling never shaves off boundary pixels.
func (r Rect) Scaled(scaleX, scaleY float64) Rect {
	minX := int(math.Floor(float64(r.X) * scaleX))
	minY := int(math.Floor(float64(r.Y) * scaleY))
	maxX := int(math.Ceil(float64(r.X+r.Width) * scaleX))
	maxY := int(math.Ceil(float64(r.Y+r.Height) * scaleY))
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

func clamp(v int, minV int, maxV int) int {
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}
