package plan

import (
	"context"
	"errors"
	"testing"
)

type fakeStore struct {
	classifications []Classification
	structure       *ProjectStructure
	rooms           []ExtractedRoomData
	bills           map[string][]MaterialBill
	intermediates   []string
	intermediateErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{bills: make(map[string][]MaterialBill)}
}

func (s *fakeStore) SaveClassifications(ctx context.Context, classifications []Classification) error {
	s.classifications = classifications
	return nil
}

func (s *fakeStore) SaveStructure(ctx context.Context, structure *ProjectStructure) error {
	s.structure = structure
	return nil
}

func (s *fakeStore) SaveRoomData(ctx context.Context, data *ExtractedRoomData) error {
	s.rooms = append(s.rooms, *data)
	return nil
}

func (s *fakeStore) SaveMaterialBills(ctx context.Context, roomName string, bills []MaterialBill) error {
	s.bills[roomName] = append(s.bills[roomName], bills...)
	return nil
}

func (s *fakeStore) SaveIntermediate(ctx context.Context, stage string, payload any) error {
	s.intermediates = append(s.intermediates, stage)
	return s.intermediateErr
}

func newTestPipeline(client *fakeVision, store Store) *Pipeline {
	p := NewPipeline(client, store)
	// Deterministic geometry for the scripted coordinates below.
	p.Locator.Bias = BiasOffset{}
	p.Rooms.Locator.Bias = BiasOffset{}
	return p
}

func TestPipelineRun(t *testing.T) {
	client := &fakeVision{replies: []string{
		// Classification: page 1 is a plan, page 2 belongs to the kitchen.
		`[{"page_type": "plan", "room": null}, {"page_type": "wall_layout", "room": "Kitchen"}]`,
		// Table location over both plan pages.
		`[{"plan_type": "plan", "tables": [{"x": 50, "y": 50, "width": 100, "height": 80}]},
		  {"plan_type": "wall_layout", "tables": []}]`,
		// Structure from the extracted table crop.
		`{"total_area": 55.0, "rooms": [{"name": "Kitchen", "type": "kitchen", "area": 12.5, "plan_type": "plan"}]}`,
		// Room regions on the kitchen page.
		`[{"regions": [{"kind": "detail", "description": "wall elevation", "x": 200, "y": 50, "width": 100, "height": 80}]}]`,
		// Kitchen profile.
		`{"room_type": "kitchen", "area": 20.0, "door_count": 1}`,
	}}
	store := newFakeStore()
	pipeline := newTestPipeline(client, store)

	var progress []int
	pipeline.Progress = func(stage string, percent int) {
		progress = append(progress, percent)
	}

	page := testPage(t, 400, 300)
	result, err := pipeline.Run(context.Background(), []PageImage{
		{Number: 1, ImageKey: "pages/1", FullRes: page},
		{Number: 2, ImageKey: "pages/2", FullRes: page},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(store.classifications) != 2 {
		t.Fatalf("expected 2 saved classifications, got %d", len(store.classifications))
	}
	if store.structure == nil || store.structure.TotalArea == nil || *store.structure.TotalArea != 55.0 {
		t.Fatalf("structure not saved correctly: %+v", store.structure)
	}
	if store.structure.Rooms[0].Source != "area_table" {
		t.Fatalf("primary path must source from area tables, got %q", store.structure.Rooms[0].Source)
	}
	if len(store.rooms) != 1 {
		t.Fatalf("expected 1 saved room, got %d", len(store.rooms))
	}
	if store.rooms[0].Area == nil || *store.rooms[0].Area != 12.5 {
		t.Fatalf("table area must override the profile value: %+v", store.rooms[0].Area)
	}
	if len(result.Rooms) != 1 || result.Rooms[0].DoorCount == nil || *result.Rooms[0].DoorCount != 1 {
		t.Fatalf("profile fields lost: %+v", result.Rooms)
	}

	want := []int{15, 30, 50, 95, 100}
	if len(progress) != len(want) {
		t.Fatalf("progress checkpoints = %v, want %v", progress, want)
	}
	for i := range want {
		if progress[i] != want[i] {
			t.Fatalf("progress checkpoints = %v, want %v", progress, want)
		}
	}
}

func TestPipelineZeroTablesFallsBackToPages(t *testing.T) {
	client := &fakeVision{replies: []string{
		`[{"page_type": "plan", "room": null}]`,
		`[{"plan_type": "plan", "tables": []}]`,
		// Whole-page fallback analysis.
		`{"rooms": [{"name": "Hall", "area": 6.0, "plan_type": "plan"}]}`,
		`[{"regions": []}]`,
		`{"room_type": "hallway"}`,
	}}
	store := newFakeStore()
	store.intermediateErr = errors.New("snapshot store down")
	pipeline := newTestPipeline(client, store)

	_, err := pipeline.Run(context.Background(), []PageImage{
		{Number: 1, FullRes: testPage(t, 400, 300)},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if store.structure == nil || store.structure.Rooms[0].Source != "plan_page" {
		t.Fatalf("fallback must source from plan pages: %+v", store.structure)
	}
	if len(store.rooms) != 1 {
		t.Fatalf("room profile still extracted on the fallback path, got %d", len(store.rooms))
	}
}

func TestPipelineNoRoomsFails(t *testing.T) {
	client := &fakeVision{replies: []string{
		`[{"page_type": "plan", "room": null}]`,
		`[{"plan_type": "plan", "tables": [{"x": 50, "y": 50, "width": 100, "height": 80}]}]`,
		`{"total_area": 40, "rooms": []}`,
	}}
	pipeline := newTestPipeline(client, newFakeStore())

	_, err := pipeline.Run(context.Background(), []PageImage{
		{Number: 1, FullRes: testPage(t, 400, 300)},
	})
	if !errors.Is(err, ErrNoRooms) {
		t.Fatalf("expected ErrNoRooms, got %v", err)
	}
}

func TestPipelineRunClassificationOnly(t *testing.T) {
	client := &fakeVision{replies: []string{
		`[{"page_type": "specification", "room": "Bath"}]`,
	}}
	store := newFakeStore()
	pipeline := newTestPipeline(client, store)

	got, err := pipeline.RunClassification(context.Background(), []PageImage{
		{Number: 1, ImageKey: "pages/1", FullRes: testPage(t, 200, 150)},
	})
	if err != nil {
		t.Fatalf("RunClassification: %v", err)
	}
	if len(got) != 1 || got[0].PageType != PageTypeSpecification {
		t.Fatalf("unexpected classification: %+v", got)
	}
	if len(store.classifications) != 1 {
		t.Fatalf("classification not persisted")
	}
	if store.structure != nil || len(store.rooms) != 0 {
		t.Fatalf("classification-only flow must not touch later stages")
	}
}

func TestPipelineNoPages(t *testing.T) {
	pipeline := newTestPipeline(&fakeVision{}, newFakeStore())
	if _, err := pipeline.Run(context.Background(), nil); err == nil {
		t.Fatalf("expected error for empty input")
	}
}
