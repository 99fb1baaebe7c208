package plan

import (
	"context"
	"fmt"

	"planvision/pkg/ai"
	"planvision/pkg/imaging"
	"planvision/pkg/logger"
)

// Classifier labels pages by type and associated room using one batched
// vision request over low-resolution thumbnails.
type Classifier struct {
	AI ai.VisionClient

	ThumbnailEdge    int
	ThumbnailQuality int
}

// NewClassifier creates a classifier with default thumbnail settings.
func NewClassifier(client ai.VisionClient) *Classifier {
	return &Classifier{
		AI:               client,
		ThumbnailEdge:    imaging.DefaultThumbnailEdge,
		ThumbnailQuality: 70,
	}
}

type pageClassificationWire struct {
	PageType string  `json:"page_type"`
	Room     *string `json:"room"`
}

// ClassifyPages classifies every page in order. The output always has
// exactly len(pages) entries: a short model reply is padded with
// {other, null} entries, surplus entries are dropped. A reply that cannot
// be parsed at all fails the whole batch.
func (c *Classifier) ClassifyPages(ctx context.Context, pages []PageImage) ([]Classification, error) {
	if len(pages) == 0 {
		return []Classification{}, nil
	}

	parts := make([]ai.Part, 0, len(pages)*2)
	for _, page := range pages {
		parts = append(parts, ai.TextPart(fmt.Sprintf("Page %d:", page.Number)))

		thumb, err := imaging.Thumbnail(page.FullRes, c.ThumbnailEdge, c.ThumbnailQuality)
		if err != nil {
			// A page that cannot be shrunk still gets classified, just at
			// full payload cost.
			logger.Warn("Thumbnail failed, sending full page", "page", page.Number, "error", err)
			thumb = page.FullRes
		}
		parts = append(parts, ai.ImagePart("image/jpeg", thumb))
	}

	reply, err := c.AI.GenerateVision(ctx, parts,
		ai.WithSystemPrompts(ai.ClassifyPagesPrompt),
	)
	if err != nil {
		return nil, fmt.Errorf("classify pages: %w", err)
	}

	var wire []pageClassificationWire
	if err := ai.UnmarshalFlexible(reply, &wire); err != nil {
		return nil, fmt.Errorf("classify pages: %w: %v", ai.ErrUnparsableOutput, err)
	}

	if len(wire) != len(pages) {
		logger.Warn("Classification count mismatch, padding with other",
			"expected", len(pages), "got", len(wire))
	}

	results := make([]Classification, len(pages))
	for i, page := range pages {
		cls := Classification{
			PageNumber: page.Number,
			PageType:   PageTypeOther,
			RoomName:   nil,
			ImageKey:   page.ImageKey,
		}
		if i < len(wire) {
			cls.PageType = ParsePageType(wire[i].PageType)
			if wire[i].Room != nil && *wire[i].Room != "" {
				cls.RoomName = wire[i].Room
			}
		}
		results[i] = cls
	}

	return results, nil
}
