package plan

import (
	"context"
	"fmt"
	"strings"

	"planvision/pkg/ai"
)

// MaterialBillExtractor turns high-quality table crops into itemized
// material bills. It serves both the room pipeline and ad hoc standalone
// extraction.
type MaterialBillExtractor struct {
	AI ai.VisionClient
}

// NewMaterialBillExtractor creates an extractor.
func NewMaterialBillExtractor(client ai.VisionClient) *MaterialBillExtractor {
	return &MaterialBillExtractor{AI: client}
}

type billItemWire struct {
	Name         string    `json:"description"`
	Unit         *string   `json:"unit"`
	Quantity     flexFloat `json:"quantity"`
	Article      *string   `json:"article"`
	Brand        *string   `json:"brand"`
	Manufacturer *string   `json:"manufacturer"`
	Note         *string   `json:"note"`
}

type billWire struct {
	Title string         `json:"title"`
	Room  *string        `json:"room"`
	Items []billItemWire `json:"items"`
}

// parseBillReply accepts either an array of bills or a single bill object,
// which is normalized into a one-element array.
func parseBillReply(raw string) ([]billWire, error) {
	var multi []billWire
	if err := ai.UnmarshalFlexible(raw, &multi); err == nil && len(multi) > 0 {
		return multi, nil
	}

	var single billWire
	if err := ai.UnmarshalFlexible(raw, &single); err == nil && len(single.Items) > 0 {
		return []billWire{single}, nil
	}

	return nil, fmt.Errorf("%w: unrecognized material bill reply shape", ai.ErrUnparsableOutput)
}

// Extract reads every crop into a MaterialBill. roomName, when known from
// the surrounding context, fills bills the model left unattributed.
// Positions are assigned sequentially per bill while folding the rows.
func (m *MaterialBillExtractor) Extract(ctx context.Context, crops [][]byte, roomName *string) ([]MaterialBill, error) {
	if len(crops) == 0 {
		return []MaterialBill{}, nil
	}

	parts := make([]ai.Part, 0, len(crops)*2)
	for i, crop := range crops {
		parts = append(parts, ai.TextPart(fmt.Sprintf("Table %d:", i+1)))
		parts = append(parts, ai.ImagePart("image/jpeg", crop))
	}

	reply, err := m.AI.GenerateVision(ctx, parts,
		ai.WithSystemPrompts(ai.MaterialBillPrompt),
	)
	if err != nil {
		return nil, fmt.Errorf("extract material bills: %w", err)
	}

	wire, err := parseBillReply(reply)
	if err != nil {
		return nil, fmt.Errorf("extract material bills: %w", err)
	}

	bills := make([]MaterialBill, 0, len(wire))
	for _, bw := range wire {
		bill := MaterialBill{
			Title:    strings.TrimSpace(bw.Title),
			RoomName: bw.Room,
		}
		if bill.RoomName == nil {
			bill.RoomName = roomName
		}
		if bill.Title == "" {
			bill.Title = "Materials"
		}

		position := 0
		for _, iw := range bw.Items {
			name := strings.TrimSpace(iw.Name)
			if name == "" {
				continue
			}
			position++
			bill.Items = append(bill.Items, MaterialBillItem{
				Position:     position,
				Name:         name,
				Unit:         iw.Unit,
				Quantity:     iw.Quantity.Value,
				Article:      iw.Article,
				Brand:        iw.Brand,
				Manufacturer: iw.Manufacturer,
				Description:  iw.Note,
			})
		}

		if len(bill.Items) == 0 {
			continue
		}
		bills = append(bills, bill)
	}

	return bills, nil
}
