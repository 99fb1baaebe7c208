package ollama

import (
	"context"
	"fmt"
	"strings"

	"planvision/pkg/ai"

	"github.com/ollama/ollama/api"
)

// buildMessage flattens ordered parts into one user message. Ollama carries
// images as a separate slice, so interleaving collapses to text order plus
// image order, which the pipeline prompts are written to tolerate.
func buildMessage(parts []ai.Part) api.Message {
	var text strings.Builder
	var images []api.ImageData
	for _, p := range parts {
		switch p.Kind {
		case ai.PartText:
			if text.Len() > 0 {
				text.WriteString("\n\n")
			}
			text.WriteString(p.Text)
		case ai.PartImage:
			images = append(images, api.ImageData(p.Data))
		}
	}
	return api.Message{
		Role:    "user",
		Content: text.String(),
		Images:  images,
	}
}

func (c *VisionOllamaClient) generate(
	ctx context.Context,
	parts []ai.Part,
	options ai.GenerateOptions,
) (string, error) {
	if err := c.reqLock.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer c.reqLock.Release(1)

	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	msgs := make([]api.Message, 0, len(options.SystemPrompts)+1)
	for _, sp := range options.SystemPrompts {
		msgs = append(msgs, api.Message{Role: "system", Content: sp})
	}
	msgs = append(msgs, buildMessage(parts))

	stream := false
	req := &api.ChatRequest{
		Model:    options.Model,
		Messages: msgs,
		Stream:   &stream,
		Options: map[string]any{
			"temperature": options.Temperature,
		},
	}

	var final api.ChatResponse
	if err := c.Client.Chat(ctx, req, func(cr api.ChatResponse) error {
		final = cr
		return nil
	}); err != nil {
		return "", err
	}

	c.modifyMetrics(ai.ModelMetrics{
		InputTokens:  final.Metrics.PromptEvalCount,
		OutputTokens: final.Metrics.EvalCount,
		TotalTokens:  final.Metrics.PromptEvalCount + final.Metrics.EvalCount,
		DurationMs:   final.TotalDuration.Milliseconds(),
	})

	if final.Message.Content == "" {
		return "", fmt.Errorf("%w: empty response", ai.ErrUnparsableOutput)
	}
	return final.Message.Content, nil
}

// GenerateVision sends ordered text and image parts to the vision model and
// returns the raw reply.
func (c *VisionOllamaClient) GenerateVision(
	ctx context.Context,
	parts []ai.Part,
	opts ...ai.GenerateOption,
) (string, error) {
	options := ai.GenerateOptions{
		Model:       c.visionModel,
		Temperature: 0.0,
	}
	for _, o := range opts {
		o(&options)
	}
	return c.generate(ctx, parts, options)
}

// GenerateVisionWithFormat sends ordered parts and unmarshals the reply into
// out. Local models have no enforced schema mode, so parsing relies on
// UnmarshalFlexible over the raw reply.
func (c *VisionOllamaClient) GenerateVisionWithFormat(
	ctx context.Context,
	name string,
	description string,
	parts []ai.Part,
	out any,
	opts ...ai.GenerateOption,
) error {
	options := ai.GenerateOptions{
		Model:       c.visionModel,
		Temperature: 0.0,
	}
	for _, o := range opts {
		o(&options)
	}

	message, err := c.generate(ctx, parts, options)
	if err != nil {
		return err
	}

	if err := ai.UnmarshalFlexible(message, out); err != nil {
		return fmt.Errorf("%w: %v", ai.ErrUnparsableOutput, err)
	}
	return nil
}
