package ollama

import (
	"net/http"
	"net/url"
	"sync"
	"time"

	"planvision/pkg/ai"

	"github.com/ollama/ollama/api"
	"golang.org/x/sync/semaphore"
)

const defaultRequestTimeout = 5 * time.Minute

// VisionOllamaClient implements ai.VisionClient using a locally-hosted
// Ollama server. Requests are serialized through a weighted semaphore since
// local vision models rarely handle concurrent loads well.
type VisionOllamaClient struct {
	visionModel string

	reqLock *semaphore.Weighted

	requestTimeout time.Duration

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	baseURL    *url.URL
	apiKey     string
	httpClient *http.Client

	Client *api.Client
}

// NewVisionOllamaClientParams contains configuration options for creating a
// new VisionOllamaClient.
type NewVisionOllamaClientParams struct {
	VisionModel string

	BaseURL string
	ApiKey  string

	MaxConcurrentRequests int64
	RequestTimeout        time.Duration
}

type headerTransport struct {
	headers map[string]string
	rt      http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// clone so original request isn't modified
	r := req.Clone(req.Context())
	for k, v := range t.headers {
		// don't overwrite if already set
		if r.Header.Get(k) == "" {
			r.Header.Set(k, v)
		}
	}
	return t.rt.RoundTrip(r)
}

// NewVisionOllamaClient creates a client that connects to the Ollama server
// at the given BaseURL (or the default if empty).
func NewVisionOllamaClient(
	params NewVisionOllamaClientParams,
) (*VisionOllamaClient, error) {
	var (
		u   *url.URL
		err error
	)

	if params.BaseURL != "" {
		u, err = url.Parse(params.BaseURL)
		if err != nil {
			return nil, err
		}
	}

	httpClient := &http.Client{
		Transport: &headerTransport{
			headers: map[string]string{
				"Authorization": "Bearer " + params.ApiKey,
			},
			rt: http.DefaultTransport,
		},
	}

	cli := api.NewClient(u, httpClient)

	maxConcurrent := params.MaxConcurrentRequests
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	timeout := params.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	return &VisionOllamaClient{
		visionModel: params.VisionModel,

		reqLock: semaphore.NewWeighted(maxConcurrent),

		requestTimeout: timeout,

		metricsLock: sync.Mutex{},
		metrics:     ai.ModelMetrics{},

		baseURL:    u,
		apiKey:     params.ApiKey,
		httpClient: httpClient,

		Client: cli,
	}, nil
}
