package plan

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"planvision/pkg/ai"
	"planvision/pkg/imaging"
	"planvision/pkg/logger"
)

// ErrNoRooms marks a structure analysis that parsed fine but produced zero
// rooms. The stage is unusable without rooms, so this is terminal.
var ErrNoRooms = errors.New("no rooms extracted from document")

// TableCrop is one extracted area-table image labeled with the plan type of
// its source page.
type TableCrop struct {
	PageNumber int
	PlanType   PageType
	Image      []byte
}

// StructureAnalyzer reads area tables (or, as a fallback, whole plan pages)
// into a deduplicated project structure.
type StructureAnalyzer struct {
	AI ai.VisionClient

	// Notes is optional customer-supplied context, already truncated to a
	// token budget.
	Notes string
}

// NewStructureAnalyzer creates an analyzer.
func NewStructureAnalyzer(client ai.VisionClient) *StructureAnalyzer {
	return &StructureAnalyzer{AI: client}
}

type roomRowWire struct {
	Name     string    `json:"name"`
	Type     *string   `json:"type"`
	Area     flexFloat `json:"area"`
	PlanType string    `json:"plan_type"`
}

type structureWire struct {
	TotalArea flexFloat     `json:"total_area"`
	Address   *string       `json:"address"`
	Rooms     []roomRowWire `json:"rooms"`
}

// parseStructureReply tolerates the reply shapes the model produces: a
// single structure object, an array of per-table objects (concatenated), or
// a bare array of room rows.
func parseStructureReply(raw string) (structureWire, error) {
	var single structureWire
	if err := ai.UnmarshalFlexible(raw, &single); err == nil {
		if len(single.Rooms) > 0 || single.TotalArea.Value != nil || single.Address != nil {
			return single, nil
		}
	}

	var multi []structureWire
	if err := ai.UnmarshalFlexible(raw, &multi); err == nil {
		merged := structureWire{}
		for _, w := range multi {
			merged.Rooms = append(merged.Rooms, w.Rooms...)
			if merged.TotalArea.Value == nil {
				merged.TotalArea = w.TotalArea
			}
			if merged.Address == nil {
				merged.Address = w.Address
			}
		}
		if len(merged.Rooms) > 0 {
			return merged, nil
		}
	}

	var rows []roomRowWire
	if err := ai.UnmarshalFlexible(raw, &rows); err == nil && len(rows) > 0 {
		named := rows[:0]
		for _, r := range rows {
			if strings.TrimSpace(r.Name) != "" {
				named = append(named, r)
			}
		}
		if len(named) > 0 {
			return structureWire{Rooms: named}, nil
		}
	}

	return structureWire{}, fmt.Errorf("%w: unrecognized structure reply shape", ai.ErrUnparsableOutput)
}

// NormalizeRoomName produces the dedupe key form of a room name: lowercase,
// collapsed whitespace, unified dash variants.
func NormalizeRoomName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, dash := range []string{"–", "—", "−"} {
		name = strings.ReplaceAll(name, dash, "-")
	}
	return strings.Join(strings.Fields(name), " ")
}

// DedupeRooms collapses rooms sharing (normalized name, provenance),
// keeping the record with a non-null area, else the first seen. Order of
// first occurrence is preserved and every collapse is logged.
func DedupeRooms(rooms []ProjectRoom) []ProjectRoom {
	type key struct {
		name       string
		provenance Provenance
	}

	index := make(map[key]int, len(rooms))
	result := make([]ProjectRoom, 0, len(rooms))

	for _, room := range rooms {
		k := key{name: NormalizeRoomName(room.Name), provenance: room.Provenance}
		if existing, ok := index[k]; ok {
			if result[existing].Area == nil && room.Area != nil {
				logger.Info("Collapsing duplicate room, keeping area-bearing record",
					"room", room.Name, "provenance", room.Provenance, "area", *room.Area)
				result[existing] = room
			} else {
				logger.Info("Collapsing duplicate room, keeping first record",
					"room", room.Name, "provenance", room.Provenance)
			}
			continue
		}
		index[k] = len(result)
		result = append(result, room)
	}

	return result
}

// MergeProvenance folds rooms that survived dedupe under both the original
// and renovated tags into one record tagged both. The renovated area wins
// when both variants print one, since estimates target the renovated state.
func MergeProvenance(rooms []ProjectRoom) []ProjectRoom {
	index := make(map[string]int, len(rooms))
	result := make([]ProjectRoom, 0, len(rooms))

	for _, room := range rooms {
		name := NormalizeRoomName(room.Name)
		existing, ok := index[name]
		if !ok {
			index[name] = len(result)
			result = append(result, room)
			continue
		}

		kept := &result[existing]
		if kept.Provenance == room.Provenance {
			result = append(result, room)
			continue
		}

		logger.Info("Merging room across plan variants",
			"room", room.Name, "kept", kept.Provenance, "merged", room.Provenance)

		if room.Provenance == ProvenanceRenovated && room.Area != nil {
			kept.Area = room.Area
			kept.Source = room.Source
		} else if kept.Area == nil {
			kept.Area = room.Area
		}
		if kept.Type == nil {
			kept.Type = room.Type
		}
		kept.Provenance = ProvenanceBoth
	}

	return result
}

func (a *StructureAnalyzer) contextParts() []ai.Part {
	if a.Notes == "" {
		return nil
	}
	return []ai.Part{ai.TextPart("Customer notes (context only, never a source of numbers):\n" + a.Notes)}
}

func (a *StructureAnalyzer) buildStructure(wire structureWire, source string, planTypes []PageType) (*ProjectStructure, error) {
	rooms := make([]ProjectRoom, 0, len(wire.Rooms))
	for _, row := range wire.Rooms {
		name := strings.TrimSpace(row.Name)
		if name == "" {
			continue
		}
		rooms = append(rooms, ProjectRoom{
			Name:       name,
			Type:       row.Type,
			Area:       row.Area.Value,
			Provenance: ProvenanceForPlanType(ParsePageType(row.PlanType)),
			Source:     source,
		})
	}

	rooms = MergeProvenance(DedupeRooms(rooms))
	if len(rooms) == 0 {
		return nil, ErrNoRooms
	}

	return &ProjectStructure{
		TotalArea: wire.TotalArea.Value,
		Address:   wire.Address,
		RoomCount: len(rooms),
		Rooms:     rooms,
		PlanTypes: planTypes,
	}, nil
}

func uniquePlanTypes(types []PageType) []PageType {
	seen := make(map[PageType]struct{}, len(types))
	result := make([]PageType, 0, len(types))
	for _, t := range types {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		result = append(result, t)
	}
	return result
}

// FromTables is the primary analysis path: cropped area tables, labeled
// with their plan types, read verbatim.
func (a *StructureAnalyzer) FromTables(ctx context.Context, crops []TableCrop) (*ProjectStructure, error) {
	if len(crops) == 0 {
		return nil, fmt.Errorf("analyze structure: no table crops")
	}

	planTypes := make([]PageType, 0, len(crops))
	parts := a.contextParts()
	for i, crop := range crops {
		planTypes = append(planTypes, crop.PlanType)
		parts = append(parts, ai.TextPart(fmt.Sprintf("Table %d (from a %s page):", i+1, crop.PlanType)))
		parts = append(parts, ai.ImagePart("image/jpeg", crop.Image))
	}

	reply, err := a.AI.GenerateVision(ctx, parts,
		ai.WithSystemPrompts(ai.StructureFromTablesPrompt),
	)
	if err != nil {
		return nil, fmt.Errorf("analyze structure: %w", err)
	}

	wire, err := parseStructureReply(reply)
	if err != nil {
		return nil, fmt.Errorf("analyze structure: %w", err)
	}

	return a.buildStructure(wire, "area_table", uniquePlanTypes(planTypes))
}

// FromPages is the fallback path when no tables were located anywhere: the
// raw plan pages are analyzed with a looser prompt under the same
// no-invention contract.
func (a *StructureAnalyzer) FromPages(ctx context.Context, pages []PageImage, types map[int]PageType) (*ProjectStructure, error) {
	if len(pages) == 0 {
		return nil, fmt.Errorf("analyze structure: no plan pages")
	}

	planTypes := make([]PageType, 0, len(pages))
	parts := a.contextParts()
	for _, page := range pages {
		pageType := types[page.Number]
		if pageType == "" {
			pageType = PageTypeOther
		}
		planTypes = append(planTypes, pageType)

		thumb, err := imaging.Thumbnail(page.FullRes, 1536, 80)
		if err != nil {
			logger.Warn("Page downscale failed, sending full page", "page", page.Number, "error", err)
			thumb = page.FullRes
		}
		parts = append(parts, ai.TextPart(fmt.Sprintf("Page %d (%s):", page.Number, pageType)))
		parts = append(parts, ai.ImagePart("image/jpeg", thumb))
	}

	reply, err := a.AI.GenerateVision(ctx, parts,
		ai.WithSystemPrompts(ai.StructureFromPagesPrompt),
	)
	if err != nil {
		return nil, fmt.Errorf("analyze structure fallback: %w", err)
	}

	wire, err := parseStructureReply(reply)
	if err != nil {
		return nil, fmt.Errorf("analyze structure fallback: %w", err)
	}

	return a.buildStructure(wire, "plan_page", uniquePlanTypes(planTypes))
}
