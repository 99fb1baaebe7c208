package plan

import (
	"context"
	"fmt"

	"planvision/pkg/ai"
	"planvision/pkg/imaging"
	"planvision/pkg/logger"
)

// Store receives pipeline results as soon as each stage produces them, so a
// crash mid-run loses at most the stage in flight.
type Store interface {
	SaveClassifications(ctx context.Context, classifications []Classification) error
	SaveStructure(ctx context.Context, structure *ProjectStructure) error
	SaveRoomData(ctx context.Context, data *ExtractedRoomData) error
	SaveMaterialBills(ctx context.Context, roomName string, bills []MaterialBill) error
	SaveIntermediate(ctx context.Context, stage string, payload any) error
}

// ProgressReporter is called after each completed stage with the stage name
// and overall percentage.
type ProgressReporter func(stage string, percent int)

// Progress checkpoints. Room extraction interpolates between the structure
// checkpoint and the done mark.
const (
	progressClassified = 15
	progressLocated    = 30
	progressStructure  = 50
	progressRoomsDone  = 95
	progressDone       = 100
)

// Result is everything one pipeline run produced.
type Result struct {
	Classifications []Classification
	Structure       *ProjectStructure
	Rooms           []ExtractedRoomData
	Bills           []MaterialBill
}

// Pipeline runs the full document analysis over rendered pages: classify,
// locate area tables, analyze project structure, then extract each room
// profile and its material bills.
type Pipeline struct {
	Store    Store
	Progress ProgressReporter

	Classifier *Classifier
	Locator    *Locator
	Extractor  *Extractor
	Analyzer   *StructureAnalyzer
	Rooms      *RoomExtractor

	DetectionQuality int
}

// NewPipeline wires a pipeline over one vision client and one store.
func NewPipeline(client ai.VisionClient, store Store) *Pipeline {
	locator := NewLocator(client)
	extractor := NewExtractor()
	return &Pipeline{
		Store:            store,
		Classifier:       NewClassifier(client),
		Locator:          locator,
		Extractor:        extractor,
		Analyzer:         NewStructureAnalyzer(client),
		Rooms:            NewRoomExtractor(client, locator, extractor, NewMaterialBillExtractor(client)),
		DetectionQuality: imaging.DefaultDetectionQuality,
	}
}

// maxNotesTokens bounds customer comments before they reach any prompt.
const maxNotesTokens = 1000

// SetNotes attaches customer-supplied context to the prompts that accept
// it, truncated to a token budget.
func (p *Pipeline) SetNotes(comment string) {
	notes := ai.TruncateToTokens(comment, maxNotesTokens)
	p.Analyzer.Notes = notes
	p.Rooms.Notes = notes
}

func (p *Pipeline) report(stage string, percent int) {
	if p.Progress != nil {
		p.Progress(stage, percent)
	}
}

func (p *Pipeline) saveIntermediate(ctx context.Context, stage string, payload any) {
	if err := p.Store.SaveIntermediate(ctx, stage, payload); err != nil {
		// Snapshots are diagnostics, never worth failing a run over.
		logger.Warn("Saving intermediate snapshot failed", "stage", stage, "error", err)
	}
}

// RunClassification runs only the classification stage and persists its
// result. Used by the standalone classification endpoint.
func (p *Pipeline) RunClassification(ctx context.Context, pages []PageImage) ([]Classification, error) {
	classifications, err := p.Classifier.ClassifyPages(ctx, pages)
	if err != nil {
		return nil, fmt.Errorf("classification: %w", err)
	}
	if err := p.Store.SaveClassifications(ctx, classifications); err != nil {
		return nil, fmt.Errorf("classification: %w", err)
	}
	p.report("classified", progressDone)
	return classifications, nil
}

// Run executes every stage in order. Rooms are processed sequentially; one
// failing room aborts the run after its bills were already persisted.
func (p *Pipeline) Run(ctx context.Context, pages []PageImage) (*Result, error) {
	if len(pages) == 0 {
		return nil, fmt.Errorf("pipeline: no pages to analyze")
	}

	result := &Result{}

	classifications, err := p.Classifier.ClassifyPages(ctx, pages)
	if err != nil {
		return nil, fmt.Errorf("classification: %w", err)
	}
	if err := p.Store.SaveClassifications(ctx, classifications); err != nil {
		return nil, fmt.Errorf("classification: %w", err)
	}
	result.Classifications = classifications
	p.saveIntermediate(ctx, "classification", classifications)
	p.report("classified", progressClassified)

	structure, err := p.analyzeStructure(ctx, pages, classifications, result)
	if err != nil {
		return nil, err
	}
	if err := p.Store.SaveStructure(ctx, structure); err != nil {
		return nil, fmt.Errorf("structure: %w", err)
	}
	result.Structure = structure
	p.saveIntermediate(ctx, "structure", structure)
	p.report("structure", progressStructure)

	if err := p.extractRooms(ctx, pages, classifications, structure, result); err != nil {
		return nil, err
	}
	p.report("done", progressDone)

	return result, nil
}

// planPages selects the pages worth scanning for area tables.
func planPages(pages []PageImage, classifications []Classification) ([]PageImage, map[int]PageType) {
	byNumber := make(map[int]PageImage, len(pages))
	for _, page := range pages {
		byNumber[page.Number] = page
	}

	var selected []PageImage
	types := make(map[int]PageType, len(classifications))
	for _, c := range classifications {
		if c.PageType != PageTypePlan && c.PageType != PageTypeWallLayout {
			continue
		}
		page, ok := byNumber[c.PageNumber]
		if !ok {
			continue
		}
		selected = append(selected, page)
		types[c.PageNumber] = c.PageType
	}
	return selected, types
}

func (p *Pipeline) analyzeStructure(
	ctx context.Context,
	pages []PageImage,
	classifications []Classification,
	result *Result,
) (*ProjectStructure, error) {
	selected, types := planPages(pages, classifications)
	if len(selected) == 0 {
		// Nothing classified as a plan. Scan everything rather than give up:
		// the classifier is allowed to be wrong about individual pages.
		logger.Warn("No plan pages classified, scanning all pages for tables")
		selected = pages
		for _, c := range classifications {
			types[c.PageNumber] = c.PageType
		}
	}

	detection, err := BuildDetectionImages(selected, 0, p.DetectionQuality)
	if err != nil {
		return nil, fmt.Errorf("table location: %w", err)
	}
	located, err := p.Locator.LocateTables(ctx, detection)
	if err != nil {
		return nil, fmt.Errorf("table location: %w", err)
	}
	p.saveIntermediate(ctx, "tables", located)
	p.report("located", progressLocated)

	if TableCount(located) == 0 {
		// Whole-page fallback keeps a table-less document moving, at lower
		// expected accuracy.
		logger.Warn("No tables located, analyzing whole plan pages")
		structure, err := p.Analyzer.FromPages(ctx, selected, types)
		if err != nil {
			return nil, fmt.Errorf("structure: %w", err)
		}
		return structure, nil
	}

	pageByNumber := make(map[int]PageImage, len(selected))
	for _, page := range selected {
		pageByNumber[page.Number] = page
	}

	var crops []TableCrop
	for _, lp := range located {
		page, ok := pageByNumber[lp.PageNumber]
		if !ok {
			continue
		}
		extracted := p.Extractor.ExtractRegions(lp.PageNumber, page.FullRes, lp.Tables, AreaTablePadding)
		for _, img := range extracted {
			crops = append(crops, TableCrop{
				PageNumber: lp.PageNumber,
				PlanType:   lp.PlanType,
				Image:      img,
			})
		}
	}
	if len(crops) == 0 {
		logger.Warn("Every table crop failed, analyzing whole plan pages")
		structure, err := p.Analyzer.FromPages(ctx, selected, types)
		if err != nil {
			return nil, fmt.Errorf("structure: %w", err)
		}
		return structure, nil
	}

	structure, err := p.Analyzer.FromTables(ctx, crops)
	if err != nil {
		return nil, fmt.Errorf("structure: %w", err)
	}
	return structure, nil
}

// pagesForRoom returns the pages whose classification names the room. When
// no page mentions it, the room falls back to the plan pages so its profile
// can still be read off the overview drawings.
func pagesForRoom(room ProjectRoom, pages []PageImage, classifications []Classification) []PageImage {
	byNumber := make(map[int]PageImage, len(pages))
	for _, page := range pages {
		byNumber[page.Number] = page
	}
	want := NormalizeRoomName(room.Name)

	var matched []PageImage
	for _, c := range classifications {
		if c.RoomName == nil || NormalizeRoomName(*c.RoomName) != want {
			continue
		}
		if page, ok := byNumber[c.PageNumber]; ok {
			matched = append(matched, page)
		}
	}
	if len(matched) > 0 {
		return matched
	}

	var plans []PageImage
	for _, c := range classifications {
		if c.PageType != PageTypePlan && c.PageType != PageTypeWallLayout {
			continue
		}
		if page, ok := byNumber[c.PageNumber]; ok {
			plans = append(plans, page)
		}
	}
	return plans
}

func (p *Pipeline) extractRooms(
	ctx context.Context,
	pages []PageImage,
	classifications []Classification,
	structure *ProjectStructure,
	result *Result,
) error {
	total := len(structure.Rooms)
	span := progressRoomsDone - progressStructure

	for i, room := range structure.Rooms {
		roomPages := pagesForRoom(room, pages, classifications)
		if len(roomPages) == 0 {
			logger.Warn("No pages available for room, skipping", "room", room.Name)
			continue
		}

		prior := room
		sink := func(ctx context.Context, roomName string, bills []MaterialBill) error {
			return p.Store.SaveMaterialBills(ctx, roomName, bills)
		}
		data, bills, err := p.Rooms.ExtractRoom(ctx, room.Name, roomPages, &prior, sink)
		if err != nil {
			return fmt.Errorf("room %q: %w", room.Name, err)
		}
		if err := p.Store.SaveRoomData(ctx, data); err != nil {
			return fmt.Errorf("room %q: %w", room.Name, err)
		}
		result.Rooms = append(result.Rooms, *data)
		result.Bills = append(result.Bills, bills...)

		p.report("rooms", progressStructure+span*(i+1)/total)
	}
	return nil
}
