package openai

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"planvision/pkg/ai"

	"github.com/openai/openai-go/v3"
)

func (c *VisionOpenAIClient) buildParts(parts []ai.Part) []openai.ChatCompletionContentPartUnionParam {
	content := make([]openai.ChatCompletionContentPartUnionParam, 0, len(parts))
	for _, p := range parts {
		switch p.Kind {
		case ai.PartText:
			content = append(content, openai.TextContentPart(p.Text))
		case ai.PartImage:
			url := fmt.Sprintf("data:%s;base64,%s", p.MIMEType, base64.StdEncoding.EncodeToString(p.Data))
			content = append(content, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL: url,
			}))
		}
	}
	return content
}

func (c *VisionOpenAIClient) generate(
	ctx context.Context,
	body openai.ChatCompletionNewParams,
) (string, error) {
	if err := c.reqLock.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer c.reqLock.Release(1)

	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	start := time.Now()
	response, err := c.Client.Chat.Completions.New(ctx, body)
	if err != nil {
		return "", err
	}
	duration := time.Since(start).Milliseconds()

	c.modifyMetrics(ai.ModelMetrics{
		InputTokens:  int(response.Usage.PromptTokens),
		OutputTokens: int(response.Usage.CompletionTokens),
		TotalTokens:  int(response.Usage.TotalTokens),
		DurationMs:   duration,
	})

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in response", ai.ErrUnparsableOutput)
	}
	message := response.Choices[0].Message.Content
	if message == "" {
		return "", fmt.Errorf("%w: empty response (finish_reason: %s)",
			ai.ErrUnparsableOutput, response.Choices[0].FinishReason)
	}
	return message, nil
}

// GenerateVision sends ordered text and image parts to the vision model and
// returns the raw reply.
func (c *VisionOpenAIClient) GenerateVision(
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

	msgs := []openai.ChatCompletionMessageParamUnion{}
	for _, sp := range options.SystemPrompts {
		msgs = append(msgs, openai.SystemMessage(sp))
	}
	msgs = append(msgs, openai.UserMessage(c.buildParts(parts)))

	body := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(options.Model),
		Messages:    msgs,
		Temperature: openai.Float(options.Temperature),
	}

	return c.generate(ctx, body)
}

// GenerateVisionWithFormat sends ordered parts and unmarshals the reply into
// out, using a strict JSON schema derived from out's type.
func (c *VisionOpenAIClient) GenerateVisionWithFormat(
	ctx context.Context,
	name string,
	description string,
	parts []ai.Part,
	out any,
	opts ...ai.GenerateOption,
) error {
	schema := ai.GenerateSchema(out)
	schemaParam := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        name,
		Description: openai.String(description),
		Schema:      schema,
		Strict:      openai.Bool(true),
	}

	options := ai.GenerateOptions{
		Model:       c.visionModel,
		Temperature: 0.0,
	}
	for _, o := range opts {
		o(&options)
	}

	msgs := []openai.ChatCompletionMessageParamUnion{}
	for _, sp := range options.SystemPrompts {
		msgs = append(msgs, openai.SystemMessage(sp))
	}
	msgs = append(msgs, openai.UserMessage(c.buildParts(parts)))

	body := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(options.Model),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: schemaParam,
			},
		},
		Messages:    msgs,
		Temperature: openai.Float(options.Temperature),
	}

	message, err := c.generate(ctx, body)
	if err != nil {
		return err
	}

	if err := ai.UnmarshalFlexible(message, out); err != nil {
		return fmt.Errorf("%w: %v", ai.ErrUnparsableOutput, err)
	}
	return nil
}
