package plan

import (
	"context"
	"fmt"

	"planvision/pkg/ai"
	"planvision/pkg/imaging"
	"planvision/pkg/logger"
)

// DetectionImage is the recompressed copy of a page used for region
// detection, together with both coordinate spaces. The copy usually keeps
// the page dimensions, so the scale factors collapse to 1; when a resized
// copy is used the recorded dimensions make the mapping explicit.
type DetectionImage struct {
	PageNumber int
	Data       []byte

	OriginalWidth   int
	OriginalHeight  int
	DetectionWidth  int
	DetectionHeight int
}

// BuildDetectionImages produces detection copies for the given pages. A page
// that cannot be decoded fails the whole build since detection coordinates
// without a known source size are useless.
func BuildDetectionImages(pages []PageImage, maxEdge int, quality int) ([]DetectionImage, error) {
	images := make([]DetectionImage, 0, len(pages))
	for _, page := range pages {
		origW, origH, err := imaging.Dimensions(page.FullRes)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page.Number, err)
		}
		data, detW, detH, err := imaging.DetectionCopy(page.FullRes, maxEdge, quality)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page.Number, err)
		}
		images = append(images, DetectionImage{
			PageNumber:      page.Number,
			Data:            data,
			OriginalWidth:   origW,
			OriginalHeight:  origH,
			DetectionWidth:  detW,
			DetectionHeight: detH,
		})
	}
	return images, nil
}

// LocatedPage is the locator's output for one page: the plan-type label the
// model attached and the corrected table rectangles in original coordinates.
type LocatedPage struct {
	PageNumber int
	PlanType   PageType
	Tables     []Rect
}

// RoomRegion is one detected region on a room-related page.
type RoomRegion struct {
	Kind        string
	Description string
	Rect        Rect
}

// RoomRegionPage groups the detected regions of one page.
type RoomRegionPage struct {
	PageNumber int
	Regions    []RoomRegion
}

// Locator finds rectangular regions of interest via the vision model and
// corrects the systematic detection bias before anything downstream sees
// the coordinates.
type Locator struct {
	AI   ai.VisionClient
	Bias BiasOffset
}

// NewLocator creates a locator with the env-calibrated bias offset.
func NewLocator(client ai.VisionClient) *Locator {
	return &Locator{
		AI:   client,
		Bias: BiasOffsetFromEnv(),
	}
}

type rectWire struct {
	X      flexInt `json:"x"`
	Y      flexInt `json:"y"`
	Width  flexInt `json:"width"`
	Height flexInt `json:"height"`
}

func (w rectWire) toRect() Rect {
	r := Rect{}
	if w.X.Value != nil {
		r.X = *w.X.Value
	}
	if w.Y.Value != nil {
		r.Y = *w.Y.Value
	}
	if w.Width.Value != nil {
		r.Width = *w.Width.Value
	}
	if w.Height.Value != nil {
		r.Height = *w.Height.Value
	}
	return r
}

// correct maps a detection-space rectangle into corrected original-space
// coordinates: scale back, shift by the bias offset, clamp to page bounds.
func (l *Locator) correct(raw Rect, img DetectionImage) Rect {
	scaleX, scaleY := ScaleFactors(img.OriginalWidth, img.OriginalHeight, img.DetectionWidth, img.DetectionHeight)
	return raw.
		Scaled(scaleX, scaleY).
		WithBias(l.Bias).
		Clamp(img.OriginalWidth, img.OriginalHeight)
}

type locatedPageWire struct {
	PlanType string     `json:"plan_type"`
	Tables   []rectWire `json:"tables"`
}

// LocateTables detects data tables on every image. Replies are associated
// with input images strictly by position since the model's own indexing is
// unreliable; a short reply leaves the tail pages with no tables.
func (l *Locator) LocateTables(ctx context.Context, images []DetectionImage) ([]LocatedPage, error) {
	if len(images) == 0 {
		return []LocatedPage{}, nil
	}

	parts := make([]ai.Part, 0, len(images)*2)
	for i, img := range images {
		parts = append(parts, ai.TextPart(fmt.Sprintf("Image %d:", i+1)))
		parts = append(parts, ai.ImagePart("image/jpeg", img.Data))
	}

	reply, err := l.AI.GenerateVision(ctx, parts,
		ai.WithSystemPrompts(ai.LocateTablesPrompt),
	)
	if err != nil {
		return nil, fmt.Errorf("locate tables: %w", err)
	}

	var wire []locatedPageWire
	if err := ai.UnmarshalFlexible(reply, &wire); err != nil {
		return nil, fmt.Errorf("locate tables: %w: %v", ai.ErrUnparsableOutput, err)
	}

	if len(wire) != len(images) {
		logger.Warn("Table location count mismatch",
			"expected", len(images), "got", len(wire))
	}

	results := make([]LocatedPage, len(images))
	for i, img := range images {
		page := LocatedPage{
			PageNumber: img.PageNumber,
			PlanType:   PageTypeOther,
		}
		if i < len(wire) {
			page.PlanType = ParsePageType(wire[i].PlanType)
			for _, rw := range wire[i].Tables {
				rect := l.correct(rw.toRect(), img)
				if rect.Empty() {
					logger.Warn("Dropping degenerate table rect",
						"page", img.PageNumber, "raw", rw.toRect())
					continue
				}
				page.Tables = append(page.Tables, rect)
			}
		}
		results[i] = page
	}

	return results, nil
}

type roomRegionWire struct {
	Kind        string `json:"kind"`
	Description string `json:"description"`
	rectWire
}

type roomRegionPageWire struct {
	Regions []roomRegionWire `json:"regions"`
}

// LocateRoomRegions detects close-read regions on room-related pages, with
// the same positional association and bias correction as LocateTables.
func (l *Locator) LocateRoomRegions(ctx context.Context, images []DetectionImage) ([]RoomRegionPage, error) {
	if len(images) == 0 {
		return []RoomRegionPage{}, nil
	}

	parts := make([]ai.Part, 0, len(images)*2)
	for i, img := range images {
		parts = append(parts, ai.TextPart(fmt.Sprintf("Image %d:", i+1)))
		parts = append(parts, ai.ImagePart("image/jpeg", img.Data))
	}

	reply, err := l.AI.GenerateVision(ctx, parts,
		ai.WithSystemPrompts(ai.LocateRoomRegionsPrompt),
	)
	if err != nil {
		return nil, fmt.Errorf("locate room regions: %w", err)
	}

	var wire []roomRegionPageWire
	if err := ai.UnmarshalFlexible(reply, &wire); err != nil {
		return nil, fmt.Errorf("locate room regions: %w: %v", ai.ErrUnparsableOutput, err)
	}

	results := make([]RoomRegionPage, len(images))
	for i, img := range images {
		page := RoomRegionPage{PageNumber: img.PageNumber}
		if i < len(wire) {
			for _, rw := range wire[i].Regions {
				rect := l.correct(rw.toRect(), img)
				if rect.Empty() {
					continue
				}
				page.Regions = append(page.Regions, RoomRegion{
					Kind:        rw.Kind,
					Description: rw.Description,
					Rect:        rect,
				})
			}
		}
		results[i] = page
	}

	return results, nil
}

// TableCount sums located tables over all pages, the signal for the
// whole-page fallback decision.
func TableCount(pages []LocatedPage) int {
	count := 0
	for _, p := range pages {
		count += len(p.Tables)
	}
	return count
}
