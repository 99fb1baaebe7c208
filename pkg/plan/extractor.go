package plan

import (
	"fmt"

	"planvision/pkg/imaging"
	"planvision/pkg/logger"
)

// Extractor cuts high-quality crops out of full-resolution pages. The input
// rectangles are already bias-corrected; the extractor adds the call-site
// padding profile, clamps and re-encodes.
type Extractor struct {
	Quality int
}

// NewExtractor creates an extractor with near-lossless crop quality.
func NewExtractor() *Extractor {
	return &Extractor{Quality: imaging.DefaultCropQuality}
}

// ExtractRegion pads, clamps and crops one rectangle out of a page.
func (e *Extractor) ExtractRegion(page []byte, r Rect, pad PadProfile) ([]byte, error) {
	width, height, err := imaging.Dimensions(page)
	if err != nil {
		return nil, fmt.Errorf("extract region: %w", err)
	}

	clamped := r.WithPadding(pad).Clamp(width, height)
	if clamped.Empty() {
		return nil, fmt.Errorf("extract region: rect %+v collapses outside %dx%d", r, width, height)
	}

	crop, err := imaging.CropEncode(page, clamped.ToImageRect(), e.Quality)
	if err != nil {
		return nil, fmt.Errorf("extract region: %w", err)
	}
	return crop, nil
}

// ExtractRegions extracts every rectangle from one page. A failing region
// is logged and skipped; the survivors keep input order.
func (e *Extractor) ExtractRegions(pageNumber int, page []byte, rects []Rect, pad PadProfile) [][]byte {
	crops := make([][]byte, 0, len(rects))
	for i, r := range rects {
		crop, err := e.ExtractRegion(page, r, pad)
		if err != nil {
			logger.Warn("Region extraction failed, skipping",
				"page", pageNumber, "region", i, "error", err)
			continue
		}
		crops = append(crops, crop)
	}
	return crops
}
