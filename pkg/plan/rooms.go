package plan

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"planvision/pkg/ai"
	"planvision/pkg/imaging"
	"planvision/pkg/logger"
)

// BillSink persists material bills the moment they are extracted, so a
// later room-profile failure cannot lose them.
type BillSink func(ctx context.Context, roomName string, bills []MaterialBill) error

// billVocabulary matches region descriptions that indicate a bill of
// materials or finish specification table.
var billVocabulary = regexp.MustCompile(`(?i)(material|bill|specif|finish|спецификац|ведомост|отделк|материал)`)

func isBillRegion(region RoomRegion) bool {
	if strings.EqualFold(strings.TrimSpace(region.Kind), "materials") {
		return true
	}
	return billVocabulary.MatchString(region.Description)
}

// RoomExtractor builds the structured profile for one room from the pages
// classified under its name.
type RoomExtractor struct {
	AI        ai.VisionClient
	Locator   *Locator
	Extractor *Extractor
	Materials *MaterialBillExtractor

	DetectionQuality int
	ThumbnailEdge    int
	ThumbnailQuality int

	// Notes is optional customer-supplied context, already truncated.
	Notes string
}

// NewRoomExtractor wires a room extractor over shared sub-components.
func NewRoomExtractor(client ai.VisionClient, locator *Locator, extractor *Extractor, materials *MaterialBillExtractor) *RoomExtractor {
	return &RoomExtractor{
		AI:        client,
		Locator:   locator,
		Extractor: extractor,
		Materials: materials,

		DetectionQuality: imaging.DefaultDetectionQuality,
		ThumbnailEdge:    imaging.DefaultThumbnailEdge,
		ThumbnailQuality: 70,
	}
}

type roomProfileWire struct {
	RoomType      *string  `json:"room_type"`
	Area          *float64 `json:"area"`
	WallArea      *float64 `json:"wall_area"`
	FloorArea     *float64 `json:"floor_area"`
	CeilingArea   *float64 `json:"ceiling_area"`
	Perimeter     *float64 `json:"perimeter"`
	CeilingHeight *float64 `json:"ceiling_height"`
	WallFinish    *string  `json:"wall_finish"`
	FloorFinish   *string  `json:"floor_finish"`
	CeilingFinish *string  `json:"ceiling_finish"`
	DoorCount     *int     `json:"door_count"`
	WindowCount   *int     `json:"window_count"`
	SocketCount   *int     `json:"socket_count"`
	LightCount    *int     `json:"light_count"`
	Notes         *string  `json:"notes"`
}

// ExtractRoom runs the full per-room flow: detect regions on the room's
// pages, extract bill tables first and hand them to sink, then request the
// room profile from thumbnails plus high-quality crops. Analyzer-sourced
// room numbers passed in prior win over profile-extracted ones.
func (r *RoomExtractor) ExtractRoom(
	ctx context.Context,
	roomName string,
	pages []PageImage,
	prior *ProjectRoom,
	sink BillSink,
) (*ExtractedRoomData, []MaterialBill, error) {
	if len(pages) == 0 {
		return nil, nil, fmt.Errorf("extract room %q: no pages", roomName)
	}

	detection, err := BuildDetectionImages(pages, 0, r.DetectionQuality)
	if err != nil {
		return nil, nil, fmt.Errorf("extract room %q: %w", roomName, err)
	}

	regionPages, err := r.Locator.LocateRoomRegions(ctx, detection)
	if err != nil {
		return nil, nil, fmt.Errorf("extract room %q: %w", roomName, err)
	}

	pageByNumber := make(map[int]PageImage, len(pages))
	for _, p := range pages {
		pageByNumber[p.Number] = p
	}

	var billCrops [][]byte
	var detailCrops [][]byte
	for _, rp := range regionPages {
		page, ok := pageByNumber[rp.PageNumber]
		if !ok {
			continue
		}
		var billRects, detailRects []Rect
		for _, region := range rp.Regions {
			if isBillRegion(region) {
				billRects = append(billRects, region.Rect)
			} else {
				detailRects = append(detailRects, region.Rect)
			}
		}
		billCrops = append(billCrops, r.Extractor.ExtractRegions(page.Number, page.FullRes, billRects, AreaTablePadding)...)
		detailCrops = append(detailCrops, r.Extractor.ExtractRegions(page.Number, page.FullRes, detailRects, RoomDetailPadding)...)
	}

	// Bills are extracted and persisted before the profile request, so a
	// profile failure never loses them.
	var bills []MaterialBill
	if len(billCrops) > 0 {
		name := roomName
		extracted, billErr := r.Materials.Extract(ctx, billCrops, &name)
		if billErr != nil {
			logger.Warn("Material bill extraction failed, continuing with room profile",
				"room", roomName, "error", billErr)
		} else if len(extracted) > 0 {
			bills = extracted
			if sink != nil {
				if sinkErr := sink(ctx, roomName, bills); sinkErr != nil {
					logger.Warn("Persisting material bills failed",
						"room", roomName, "error", sinkErr)
				}
			}
		}
	}

	parts := make([]ai.Part, 0, len(pages)*2+len(detailCrops)+2)
	parts = append(parts, ai.TextPart(fmt.Sprintf("Room: %s", roomName)))
	if r.Notes != "" {
		parts = append(parts, ai.TextPart("Customer notes (context only, never a source of numbers):\n"+r.Notes))
	}
	for _, page := range pages {
		thumb, thumbErr := imaging.Thumbnail(page.FullRes, r.ThumbnailEdge, r.ThumbnailQuality)
		if thumbErr != nil {
			// One bad thumbnail downgrades to the unshrunk page instead of
			// aborting the room.
			logger.Warn("Thumbnail failed, sending full page",
				"room", roomName, "page", page.Number, "error", thumbErr)
			thumb = page.FullRes
		}
		parts = append(parts, ai.TextPart(fmt.Sprintf("Page %d overview:", page.Number)))
		parts = append(parts, ai.ImagePart("image/jpeg", thumb))
	}
	for i, crop := range detailCrops {
		parts = append(parts, ai.TextPart(fmt.Sprintf("Detail crop %d:", i+1)))
		parts = append(parts, ai.ImagePart("image/jpeg", crop))
	}

	var wire roomProfileWire
	err = r.AI.GenerateVisionWithFormat(ctx,
		"room_profile",
		"Structured profile of one room as printed in a renovation design document",
		parts,
		&wire,
		ai.WithSystemPrompts(ai.RoomDataPrompt),
	)
	if err != nil {
		return nil, bills, fmt.Errorf("extract room %q: %w", roomName, err)
	}

	data := &ExtractedRoomData{
		RoomName:      roomName,
		RoomType:      wire.RoomType,
		Area:          wire.Area,
		WallArea:      wire.WallArea,
		FloorArea:     wire.FloorArea,
		CeilingArea:   wire.CeilingArea,
		Perimeter:     wire.Perimeter,
		CeilingHeight: wire.CeilingHeight,
		WallFinish:    wire.WallFinish,
		FloorFinish:   wire.FloorFinish,
		CeilingFinish: wire.CeilingFinish,
		DoorCount:     wire.DoorCount,
		WindowCount:   wire.WindowCount,
		SocketCount:   wire.SocketCount,
		LightCount:    wire.LightCount,
		Notes:         wire.Notes,
	}
	mergeRoomNumbers(data, prior)

	return data, bills, nil
}

// mergeRoomNumbers applies the precedence rule for numeric fields: values
// the Structure Analyzer read from an area table always win over values the
// room-profile request produced.
func mergeRoomNumbers(data *ExtractedRoomData, prior *ProjectRoom) {
	if prior == nil {
		return
	}
	if prior.Area != nil {
		data.Area = prior.Area
	}
	if data.RoomType == nil && prior.Type != nil {
		data.RoomType = prior.Type
	}
}
