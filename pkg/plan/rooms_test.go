package plan

import (
	"context"
	"errors"
	"testing"
)

func newTestRoomExtractor(client *fakeVision) *RoomExtractor {
	locator := &Locator{AI: client}
	return NewRoomExtractor(client, locator, NewExtractor(), NewMaterialBillExtractor(client))
}

func TestExtractRoomMergesPriorArea(t *testing.T) {
	client := &fakeVision{replies: []string{
		`[{"regions": [{"kind": "detail", "description": "wall elevation", "x": 200, "y": 50, "width": 100, "height": 80}]}]`,
		`{"room_type": "kitchen", "area": 20.0, "ceiling_height": 2.7}`,
	}}
	extractor := newTestRoomExtractor(client)

	pages := []PageImage{{Number: 3, FullRes: testPage(t, 400, 300)}}
	prior := &ProjectRoom{Name: "Kitchen", Area: floatPtr(33.3), Provenance: ProvenanceBoth}

	data, bills, err := extractor.ExtractRoom(context.Background(), "Kitchen", pages, prior, nil)
	if err != nil {
		t.Fatalf("ExtractRoom: %v", err)
	}
	if len(bills) != 0 {
		t.Fatalf("no materials region, expected no bills: %+v", bills)
	}
	if data.Area == nil || *data.Area != 33.3 {
		t.Fatalf("table-sourced area must win over the profile value: %+v", data.Area)
	}
	if data.CeilingHeight == nil || *data.CeilingHeight != 2.7 {
		t.Fatalf("profile fields outside the merge must survive: %+v", data.CeilingHeight)
	}
}

func TestExtractRoomBillsPersistBeforeProfileFailure(t *testing.T) {
	client := &fakeVision{replies: []string{
		`[{"regions": [{"kind": "materials", "description": "finish specification", "x": 50, "y": 50, "width": 100, "height": 80}]}]`,
		`[{"title": "Finishes", "items": [{"description": "Tile", "unit": "m2", "quantity": 10}]}]`,
		// No third reply: the profile request fails.
	}}
	extractor := newTestRoomExtractor(client)

	var sunk []MaterialBill
	sink := func(ctx context.Context, roomName string, bills []MaterialBill) error {
		if roomName != "Kitchen" {
			t.Fatalf("sink got room %q", roomName)
		}
		sunk = append(sunk, bills...)
		return nil
	}

	pages := []PageImage{{Number: 3, FullRes: testPage(t, 400, 300)}}
	data, bills, err := extractor.ExtractRoom(context.Background(), "Kitchen", pages, nil, sink)
	if err == nil {
		t.Fatalf("expected profile failure, got data %+v", data)
	}
	if len(sunk) != 1 {
		t.Fatalf("bills must be persisted before the profile request, sunk %d", len(sunk))
	}
	if len(bills) != 1 || bills[0].Items[0].Name != "Tile" {
		t.Fatalf("extracted bills must be returned alongside the error: %+v", bills)
	}
}

func TestExtractRoomSinkFailureIsNotFatal(t *testing.T) {
	client := &fakeVision{replies: []string{
		`[{"regions": [{"kind": "materials", "description": "spec table", "x": 50, "y": 50, "width": 100, "height": 80}]}]`,
		`[{"items": [{"description": "Paint", "quantity": 3}]}]`,
		`{"room_type": "bedroom"}`,
	}}
	extractor := newTestRoomExtractor(client)

	sink := func(ctx context.Context, roomName string, bills []MaterialBill) error {
		return errors.New("db down")
	}

	pages := []PageImage{{Number: 1, FullRes: testPage(t, 400, 300)}}
	data, bills, err := extractor.ExtractRoom(context.Background(), "Bedroom", pages, nil, sink)
	if err != nil {
		t.Fatalf("sink failure must not abort the room: %v", err)
	}
	if data.RoomType == nil || *data.RoomType != "bedroom" {
		t.Fatalf("profile not extracted: %+v", data)
	}
	if len(bills) != 1 {
		t.Fatalf("bills still returned to the caller: %+v", bills)
	}
}

func TestExtractRoomNoPages(t *testing.T) {
	extractor := newTestRoomExtractor(&fakeVision{})
	if _, _, err := extractor.ExtractRoom(context.Background(), "Kitchen", nil, nil, nil); err == nil {
		t.Fatalf("expected error for a room with no pages")
	}
}
