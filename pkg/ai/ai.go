package ai

import (
	"context"
	"errors"
)

// ErrUnparsableOutput marks responses that the model delivered but that could
// not be turned into the requested structure. Callers use errors.Is to tell
// these apart from transport failures, which keep their original error.
var ErrUnparsableOutput = errors.New("model output could not be parsed")

// PartKind discriminates the content types of a vision request part.
type PartKind int

const (
	PartText PartKind = iota
	PartImage
)

// Part is one ordered element of a multimodal request. Parts are sent to the
// model in slice order, so interleaved text and images keep their positions.
type Part struct {
	Kind PartKind
	Text string

	// Image payload, set when Kind == PartImage.
	MIMEType string
	Data     []byte
}

// TextPart returns a text request part.
func TextPart(text string) Part {
	return Part{Kind: PartText, Text: text}
}

// ImagePart returns an image request part with raw encoded bytes and their
// MIME type (e.g. "image/jpeg").
func ImagePart(mimeType string, data []byte) Part {
	return Part{Kind: PartImage, MIMEType: mimeType, Data: data}
}

// GenerateOptions holds configuration for vision generation requests.
type GenerateOptions struct {
	Model         string   // Model identifier to use for generation
	SystemPrompts []string // System prompts prepended to the request
	Temperature   float64  // Sampling temperature (0.0-2.0)
}

// GenerateOption is a functional option for configuring generation requests.
type GenerateOption func(*GenerateOptions)

// WithModel returns a GenerateOption that sets the model to use.
func WithModel(model string) GenerateOption {
	return func(o *GenerateOptions) {
		o.Model = model
	}
}

// WithSystemPrompts returns a GenerateOption that sets the system prompts
// to prepend to the generation request.
func WithSystemPrompts(prompts ...string) GenerateOption {
	return func(o *GenerateOptions) {
		o.SystemPrompts = prompts
	}
}

// WithTemperature returns a GenerateOption that sets the sampling temperature.
func WithTemperature(temp float64) GenerateOption {
	return func(o *GenerateOptions) {
		o.Temperature = temp
	}
}

// ModelMetrics contains accumulated performance metrics from model calls.
type ModelMetrics struct {
	InputTokens    int     `json:"input_tokens"`
	OutputTokens   int     `json:"output_tokens"`
	TotalTokens    int     `json:"total_tokens"`
	DurationMs     int64   `json:"duration_ms"`
	TokenPerSecond float32 `json:"tokens_per_second"`
}

// VisionClient is the adapter every pipeline stage talks to. Implementations
// wrap a concrete multimodal API, enforce the per-call timeout and
// concurrency limits, and accumulate usage metrics.
type VisionClient interface {
	// GenerateVision sends ordered text and image parts and returns the raw
	// model reply.
	GenerateVision(
		ctx context.Context,
		parts []Part,
		opts ...GenerateOption,
	) (string, error)

	// GenerateVisionWithFormat sends ordered parts and unmarshals the reply
	// into out. Replies that cannot be parsed return an error wrapping
	// ErrUnparsableOutput.
	GenerateVisionWithFormat(
		ctx context.Context,
		name string,
		description string,
		parts []Part,
		out any,
		opts ...GenerateOption,
	) error

	ResetMetrics()
	GetMetrics() ModelMetrics
}
