package plan

import (
	"context"
	"errors"
	"testing"

	"planvision/pkg/ai"
)

func testPages(t *testing.T, n int) []PageImage {
	t.Helper()
	data := testPage(t, 200, 150)
	pages := make([]PageImage, 0, n)
	for i := 0; i < n; i++ {
		pages = append(pages, PageImage{
			Number:   i + 1,
			ImageKey: "pages/" + string(rune('a'+i)),
			FullRes:  data,
		})
	}
	return pages
}

func TestClassifyPagesPadsShortReply(t *testing.T) {
	client := &fakeVision{replies: []string{`[
		{"page_type": "plan", "room": null},
		{"page_type": "specification", "room": "Kitchen"}
	]`}}
	classifier := NewClassifier(client)

	got, err := classifier.ClassifyPages(context.Background(), testPages(t, 3))
	if err != nil {
		t.Fatalf("ClassifyPages: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected one entry per page, got %d", len(got))
	}
	if got[0].PageType != PageTypePlan || got[0].PageNumber != 1 {
		t.Fatalf("unexpected first entry: %+v", got[0])
	}
	if got[1].RoomName == nil || *got[1].RoomName != "Kitchen" {
		t.Fatalf("room association lost: %+v", got[1])
	}
	if got[2].PageType != PageTypeOther || got[2].RoomName != nil {
		t.Fatalf("short reply tail must pad with other/null: %+v", got[2])
	}
	if got[2].ImageKey != "pages/c" {
		t.Fatalf("padded entry must keep its page image key: %q", got[2].ImageKey)
	}
}

func TestClassifyPagesDropsSurplusEntries(t *testing.T) {
	client := &fakeVision{replies: []string{`[
		{"page_type": "plan", "room": null},
		{"page_type": "other", "room": null},
		{"page_type": "visualization", "room": "Bath"}
	]`}}
	classifier := NewClassifier(client)

	got, err := classifier.ClassifyPages(context.Background(), testPages(t, 2))
	if err != nil {
		t.Fatalf("ClassifyPages: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("surplus entries must be dropped, got %d", len(got))
	}
}

func TestClassifyPagesToleratesLabelVariants(t *testing.T) {
	client := &fakeVision{replies: []string{`[
		{"page_type": "Floor_Plan", "room": null},
		{"page_type": "renovation_plan", "room": null},
		{"page_type": "something_new", "room": null}
	]`}}
	classifier := NewClassifier(client)

	got, err := classifier.ClassifyPages(context.Background(), testPages(t, 3))
	if err != nil {
		t.Fatalf("ClassifyPages: %v", err)
	}
	if got[0].PageType != PageTypePlan {
		t.Fatalf("floor_plan should map to plan, got %s", got[0].PageType)
	}
	if got[1].PageType != PageTypeWallLayout {
		t.Fatalf("renovation_plan should map to wall_layout, got %s", got[1].PageType)
	}
	if got[2].PageType != PageTypeOther {
		t.Fatalf("unknown labels default to other, got %s", got[2].PageType)
	}
}

func TestClassifyPagesUnparsableReply(t *testing.T) {
	client := &fakeVision{replies: []string{"page one looks like a floor plan"}}
	classifier := NewClassifier(client)

	_, err := classifier.ClassifyPages(context.Background(), testPages(t, 2))
	if !errors.Is(err, ai.ErrUnparsableOutput) {
		t.Fatalf("expected ErrUnparsableOutput, got %v", err)
	}
}

func TestClassifyPagesEmptyInput(t *testing.T) {
	client := &fakeVision{}
	classifier := NewClassifier(client)

	got, err := classifier.ClassifyPages(context.Background(), nil)
	if err != nil {
		t.Fatalf("ClassifyPages: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty result, got %d", len(got))
	}
	if len(client.calls) != 0 {
		t.Fatalf("empty input must not trigger a model call")
	}
}
