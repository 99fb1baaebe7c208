package plan

import (
	"context"
	"errors"
	"testing"

	"planvision/pkg/ai"
)

func TestParseStructureReplySingleObject(t *testing.T) {
	reply := `{"total_area": 82.5, "address": "Main St 1", "rooms": [
		{"name": "Kitchen", "type": "kitchen", "area": 12.4, "plan_type": "plan"}
	]}`

	wire, err := parseStructureReply(reply)
	if err != nil {
		t.Fatalf("parseStructureReply: %v", err)
	}
	if wire.TotalArea.Value == nil || *wire.TotalArea.Value != 82.5 {
		t.Fatalf("expected total area 82.5, got %+v", wire.TotalArea.Value)
	}
	if len(wire.Rooms) != 1 || wire.Rooms[0].Name != "Kitchen" {
		t.Fatalf("unexpected rooms: %+v", wire.Rooms)
	}
}

func TestParseStructureReplyArrayOfObjectsConcatenates(t *testing.T) {
	reply := `[
		{"total_area": 82.5, "rooms": [{"name": "Kitchen", "area": 12.4, "plan_type": "plan"}]},
		{"rooms": [{"name": "Bedroom", "area": 15.1, "plan_type": "wall_layout"}]}
	]`

	wire, err := parseStructureReply(reply)
	if err != nil {
		t.Fatalf("parseStructureReply: %v", err)
	}
	if len(wire.Rooms) != 2 {
		t.Fatalf("expected 2 rooms, got %d", len(wire.Rooms))
	}
	if wire.TotalArea.Value == nil || *wire.TotalArea.Value != 82.5 {
		t.Fatalf("total area not carried from first object: %+v", wire.TotalArea.Value)
	}
}

func TestParseStructureReplyBareRowArray(t *testing.T) {
	reply := `[{"name": "Hallway", "area": "6,2", "plan_type": "plan"}, {"name": "", "area": 1}]`

	wire, err := parseStructureReply(reply)
	if err != nil {
		t.Fatalf("parseStructureReply: %v", err)
	}
	if len(wire.Rooms) != 1 {
		t.Fatalf("expected nameless row filtered, got %d rooms", len(wire.Rooms))
	}
	if wire.Rooms[0].Area.Value == nil || *wire.Rooms[0].Area.Value != 6.2 {
		t.Fatalf("comma decimal not coerced: %+v", wire.Rooms[0].Area.Value)
	}
}

func TestParseStructureReplyGarbage(t *testing.T) {
	_, err := parseStructureReply("the document shows several rooms")
	if !errors.Is(err, ai.ErrUnparsableOutput) {
		t.Fatalf("expected ErrUnparsableOutput, got %v", err)
	}
}

func TestNormalizeRoomName(t *testing.T) {
	cases := map[string]string{
		"  Kitchen  ":          "kitchen",
		"Living – Dining":      "living - dining",
		"BEDROOM\t2":           "bedroom 2",
		"Кухня—Гостиная":       "кухня-гостиная",
	}
	for in, want := range cases {
		if got := NormalizeRoomName(in); got != want {
			t.Fatalf("NormalizeRoomName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDedupeRoomsPrefersAreaBearingRecord(t *testing.T) {
	rooms := []ProjectRoom{
		{Name: "Kitchen", Provenance: ProvenanceOriginal},
		{Name: " kitchen ", Provenance: ProvenanceOriginal, Area: floatPtr(12.4)},
		{Name: "Bedroom", Provenance: ProvenanceOriginal, Area: floatPtr(15.0)},
		{Name: "Bedroom", Provenance: ProvenanceOriginal, Area: floatPtr(99.0)},
	}

	got := DedupeRooms(rooms)
	if len(got) != 2 {
		t.Fatalf("expected 2 rooms, got %d", len(got))
	}
	if got[0].Area == nil || *got[0].Area != 12.4 {
		t.Fatalf("area-bearing duplicate should win: %+v", got[0])
	}
	if got[1].Area == nil || *got[1].Area != 15.0 {
		t.Fatalf("first record should win when both carry areas: %+v", got[1])
	}
}

func TestDedupeRoomsKeepsDistinctProvenance(t *testing.T) {
	rooms := []ProjectRoom{
		{Name: "Kitchen", Provenance: ProvenanceOriginal, Area: floatPtr(12.0)},
		{Name: "Kitchen", Provenance: ProvenanceRenovated, Area: floatPtr(14.0)},
	}
	if got := DedupeRooms(rooms); len(got) != 2 {
		t.Fatalf("distinct provenance must not collapse, got %d rooms", len(got))
	}
}

func TestMergeProvenanceRenovatedAreaWins(t *testing.T) {
	rooms := []ProjectRoom{
		{Name: "Kitchen", Provenance: ProvenanceOriginal, Area: floatPtr(12.0), Type: strPtr("kitchen")},
		{Name: "kitchen", Provenance: ProvenanceRenovated, Area: floatPtr(14.5)},
	}

	got := MergeProvenance(rooms)
	if len(got) != 1 {
		t.Fatalf("expected 1 merged room, got %d", len(got))
	}
	if got[0].Provenance != ProvenanceBoth {
		t.Fatalf("expected provenance both, got %s", got[0].Provenance)
	}
	if got[0].Area == nil || *got[0].Area != 14.5 {
		t.Fatalf("renovated area should win: %+v", got[0].Area)
	}
	if got[0].Type == nil || *got[0].Type != "kitchen" {
		t.Fatalf("type should be kept from the original record: %+v", got[0].Type)
	}
}

func TestFromTablesNoInventedNumbers(t *testing.T) {
	client := &fakeVision{replies: []string{
		`{"rooms": [{"name": "Storage", "type": "storage", "area": {"approx": 4}, "plan_type": "plan"}]}`,
	}}
	analyzer := NewStructureAnalyzer(client)

	structure, err := analyzer.FromTables(context.Background(), []TableCrop{
		{PageNumber: 1, PlanType: PageTypePlan, Image: []byte("crop")},
	})
	if err != nil {
		t.Fatalf("FromTables: %v", err)
	}
	if structure.Rooms[0].Area != nil {
		t.Fatalf("unreadable area must stay null, got %v", *structure.Rooms[0].Area)
	}
}

func TestFromTablesNoRooms(t *testing.T) {
	client := &fakeVision{replies: []string{`{"total_area": 80, "rooms": []}`}}
	analyzer := NewStructureAnalyzer(client)

	_, err := analyzer.FromTables(context.Background(), []TableCrop{
		{PageNumber: 1, PlanType: PageTypePlan, Image: []byte("crop")},
	})
	if !errors.Is(err, ErrNoRooms) {
		t.Fatalf("expected ErrNoRooms, got %v", err)
	}
}

func TestFromTablesProvenanceFromPlanType(t *testing.T) {
	client := &fakeVision{replies: []string{
		`{"rooms": [
			{"name": "Kitchen", "area": 12.0, "plan_type": "plan"},
			{"name": "Bedroom", "area": 15.0, "plan_type": "wall_layout"}
		]}`,
	}}
	analyzer := NewStructureAnalyzer(client)

	structure, err := analyzer.FromTables(context.Background(), []TableCrop{
		{PageNumber: 1, PlanType: PageTypePlan, Image: []byte("a")},
		{PageNumber: 2, PlanType: PageTypeWallLayout, Image: []byte("b")},
	})
	if err != nil {
		t.Fatalf("FromTables: %v", err)
	}
	if structure.Rooms[0].Provenance != ProvenanceOriginal {
		t.Fatalf("plan rows are original provenance, got %s", structure.Rooms[0].Provenance)
	}
	if structure.Rooms[1].Provenance != ProvenanceRenovated {
		t.Fatalf("wall_layout rows are renovated provenance, got %s", structure.Rooms[1].Provenance)
	}
	if structure.RoomCount != 2 {
		t.Fatalf("expected room count 2, got %d", structure.RoomCount)
	}
}
