// Package plan implements the analysis pipeline that turns rendered
// floor-plan pages into a project structure, per-room profiles and material
// bills.
package plan

import (
	"encoding/json"
	"strconv"
	"strings"
)

// PageType labels what a rendered page shows.
type PageType string

const (
	PageTypePlan          PageType = "plan"
	PageTypeWallLayout    PageType = "wall_layout"
	PageTypeSpecification PageType = "specification"
	PageTypeVisualization PageType = "visualization"
	PageTypeOther         PageType = "other"
)

// ParsePageType maps a model-reported label onto a known PageType,
// defaulting to other for anything unrecognized.
func ParsePageType(s string) PageType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "plan", "floor_plan", "floorplan":
		return PageTypePlan
	case "wall_layout", "walls", "wall_plan", "renovation_plan":
		return PageTypeWallLayout
	case "specification", "spec", "finish_specification":
		return PageTypeSpecification
	case "visualization", "render", "3d":
		return PageTypeVisualization
	default:
		return PageTypeOther
	}
}

// Provenance marks which plan variant a room's data came from.
type Provenance string

const (
	ProvenanceOriginal  Provenance = "original"
	ProvenanceRenovated Provenance = "renovated"
	ProvenanceBoth      Provenance = "both"
)

// ProvenanceForPlanType derives the provenance tag from the plan-type label
// attached to the source table or page.
func ProvenanceForPlanType(t PageType) Provenance {
	if t == PageTypeWallLayout {
		return ProvenanceRenovated
	}
	return ProvenanceOriginal
}

// PageImage is one rendered page. ImageKey references the stored
// full-resolution raster so classifications can point at it.
type PageImage struct {
	Number   int
	ImageKey string
	FullRes  []byte
}

// Classification is the classifier's verdict for one page.
type Classification struct {
	PageNumber int      `json:"page_number"`
	PageType   PageType `json:"page_type"`
	RoomName   *string  `json:"room_name"`
	ImageKey   string   `json:"image_key"`
}

// ProjectRoom is one room in the analyzed project structure. Area must come
// from a printed table value and stays nil when none was printed.
type ProjectRoom struct {
	Name       string     `json:"name"`
	Type       *string    `json:"type"`
	Area       *float64   `json:"area"`
	Provenance Provenance `json:"provenance"`
	Source     string     `json:"source"`
}

// ProjectStructure is the Structure Analyzer's output.
type ProjectStructure struct {
	TotalArea *float64      `json:"total_area"`
	Address   *string       `json:"address"`
	RoomCount int           `json:"room_count"`
	Rooms     []ProjectRoom `json:"rooms"`
	PlanTypes []PageType    `json:"plan_types"`
}

// ExtractedRoomData is the structured profile extracted for one room.
// Numeric fields are nil when the document does not print them.
type ExtractedRoomData struct {
	RoomName      string   `json:"room_name"`
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

// MaterialBillItem is one row of a material bill table.
type MaterialBillItem struct {
	Position     int      `json:"position"`
	Name         string   `json:"name"`
	Unit         *string  `json:"unit"`
	Quantity     *float64 `json:"quantity"`
	Article      *string  `json:"article"`
	Brand        *string  `json:"brand"`
	Manufacturer *string  `json:"manufacturer"`
	Description  *string  `json:"description"`
}

// MaterialBill is one itemized materials table as printed on a page.
type MaterialBill struct {
	Title    string             `json:"title"`
	RoomName *string            `json:"room_name"`
	Items    []MaterialBillItem `json:"items"`
}

// flexFloat tolerates the numeric shapes models emit: numbers, numeric
// strings with comma decimals, and null/empty for absent values.
type flexFloat struct {
	Value *float64
}

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` || s == "" {
		f.Value = nil
		return nil
	}

	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		f.Value = &num
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		str = strings.TrimSpace(strings.ReplaceAll(str, ",", "."))
		str = strings.TrimSuffix(str, "m2")
		str = strings.TrimSuffix(str, "м2")
		str = strings.TrimSpace(str)
		if str == "" || str == "-" {
			f.Value = nil
			return nil
		}
		if num, err := strconv.ParseFloat(str, 64); err == nil {
			f.Value = &num
			return nil
		}
	}

	// Unrecognized shapes degrade to null rather than failing the row.
	f.Value = nil
	return nil
}

// flexInt coerces integer-ish model values, degrading to null.
type flexInt struct {
	Value *int
}

func (f *flexInt) UnmarshalJSON(data []byte) error {
	var ff flexFloat
	if err := ff.UnmarshalJSON(data); err != nil {
		return err
	}
	if ff.Value == nil {
		f.Value = nil
		return nil
	}
	v := int(*ff.Value)
	f.Value = &v
	return nil
}
