package openai

import (
	"sync"
	"time"

	"planvision/pkg/ai"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

const defaultRequestTimeout = 5 * time.Minute

// VisionOpenAIClient implements ai.VisionClient against an OpenAI-compatible
// chat completions endpoint. Concurrency is bounded by a weighted semaphore
// and outbound request rate by a token-bucket limiter, so a page-heavy task
// cannot trip provider limits.
type VisionOpenAIClient struct {
	visionModel string

	baseURL string
	apiKey  string

	reqLock *semaphore.Weighted
	limiter *rate.Limiter

	requestTimeout time.Duration

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	Client *openai.Client
}

// NewVisionOpenAIClientParams configures a VisionOpenAIClient.
type NewVisionOpenAIClientParams struct {
	VisionModel string

	BaseURL string
	ApiKey  string

	MaxConcurrentRequests int64
	RequestsPerMinute     float64
	RequestTimeout        time.Duration
}

// NewVisionOpenAIClient creates a client for the configured endpoint. An
// empty BaseURL targets the official API.
func NewVisionOpenAIClient(
	params NewVisionOpenAIClientParams,
) *VisionOpenAIClient {
	options := []option.RequestOption{
		option.WithAPIKey(params.ApiKey),
	}
	if params.BaseURL != "" {
		options = append(options, option.WithBaseURL(params.BaseURL))
	}
	client := openai.NewClient(options...)

	maxConcurrent := params.MaxConcurrentRequests
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if params.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(params.RequestsPerMinute/60.0), 1)
	}

	timeout := params.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	return &VisionOpenAIClient{
		visionModel: params.VisionModel,

		baseURL: params.BaseURL,
		apiKey:  params.ApiKey,

		reqLock: semaphore.NewWeighted(maxConcurrent),
		limiter: limiter,

		requestTimeout: timeout,

		metricsLock: sync.Mutex{},
		metrics:     ai.ModelMetrics{},

		Client: &client,
	}
}
