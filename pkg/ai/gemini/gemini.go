package gemini

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"planvision/pkg/ai"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const defaultRequestTimeout = 5 * time.Minute

// VisionGeminiClient implements ai.VisionClient against the Gemini API.
// A fresh genai client is created per call since the underlying connection
// does not survive long idle periods between queue messages.
type VisionGeminiClient struct {
	visionModel string
	apiKey      string

	requestTimeout time.Duration

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics
}

// NewVisionGeminiClientParams configures a VisionGeminiClient.
type NewVisionGeminiClientParams struct {
	VisionModel string
	ApiKey      string

	RequestTimeout time.Duration
}

func NewVisionGeminiClient(params NewVisionGeminiClientParams) *VisionGeminiClient {
	timeout := params.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &VisionGeminiClient{
		visionModel:    strings.TrimSpace(params.VisionModel),
		apiKey:         strings.TrimSpace(params.ApiKey),
		requestTimeout: timeout,
	}
}

func buildParts(parts []ai.Part) []genai.Part {
	converted := make([]genai.Part, 0, len(parts))
	for _, p := range parts {
		switch p.Kind {
		case ai.PartText:
			converted = append(converted, genai.Text(p.Text))
		case ai.PartImage:
			converted = append(converted, &genai.Blob{MIMEType: p.MIMEType, Data: p.Data})
		}
	}
	return converted
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
	}
	return b.String()
}

func (c *VisionGeminiClient) generate(
	ctx context.Context,
	parts []ai.Part,
	options ai.GenerateOptions,
	jsonMode bool,
) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("gemini: api key is empty")
	}

	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	cl, err := genai.NewClient(ctx, option.WithAPIKey(c.apiKey))
	if err != nil {
		return "", err
	}
	defer cl.Close()

	m := cl.GenerativeModel(options.Model)
	temp := float32(options.Temperature)
	m.GenerationConfig = genai.GenerationConfig{
		Temperature: &temp,
	}
	if jsonMode {
		m.GenerationConfig.ResponseMIMEType = "application/json"
	}

	if len(options.SystemPrompts) > 0 {
		sysParts := make([]genai.Part, 0, len(options.SystemPrompts))
		for _, sp := range options.SystemPrompts {
			sysParts = append(sysParts, genai.Text(sp))
		}
		m.SystemInstruction = &genai.Content{Parts: sysParts}
	}

	// Retries cover transient 5xx failures only; a parsable response with
	// empty text is reported to the caller.
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		start := time.Now()
		resp, err := m.GenerateContent(ctx, buildParts(parts)...)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			lastErr = err
			time.Sleep(time.Duration(attempt) * 300 * time.Millisecond)
			continue
		}
		duration := time.Since(start).Milliseconds()

		metrics := ai.ModelMetrics{DurationMs: duration}
		if resp.UsageMetadata != nil {
			metrics.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
			metrics.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
			metrics.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
		}
		c.modifyMetrics(metrics)

		txt := firstText(resp)
		if txt == "" {
			return "", fmt.Errorf("%w: empty response", ai.ErrUnparsableOutput)
		}
		return txt, nil
	}
	return "", lastErr
}

// GenerateVision sends ordered text and image parts to the vision model and
// returns the raw reply.
func (c *VisionGeminiClient) GenerateVision(
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
	return c.generate(ctx, parts, options, false)
}

// GenerateVisionWithFormat sends ordered parts with JSON response mode
// enabled and unmarshals the reply into out.
func (c *VisionGeminiClient) GenerateVisionWithFormat(
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

	message, err := c.generate(ctx, parts, options, true)
	if err != nil {
		return err
	}

	if err := ai.UnmarshalFlexible(message, out); err != nil {
		return fmt.Errorf("%w: %v", ai.ErrUnparsableOutput, err)
	}
	return nil
}
