package openai

import (
	"sync"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/sync/semaphore"

	"github.com/sanadlabs/sanad/pkg/ai"
)

// EmbedOpenAIClient generates embeddings through an OpenAI-compatible API.
// A EmbedOpenAIClient should be created using NewEmbedOpenAIClient.
type EmbedOpenAIClient struct {
	embeddingModel string
	timeoutMin     int

	embeddingLock *semaphore.Weighted

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	EmbeddingClient *openai.Client
}

// NewEmbedOpenAIClientParams defines the configuration for the client.
// BaseURL and APIKey point at any OpenAI-compatible endpoint.
type NewEmbedOpenAIClientParams struct {
	EmbeddingModel string

	BaseURL string
	APIKey  string

	// RequestTimeoutMin bounds each embedding request in minutes; zero means 5.
	RequestTimeoutMin int
	// MaxConcurrentRequests limits in-flight requests; zero means 4.
	MaxConcurrentRequests int64
}

// NewEmbedOpenAIClient creates a client configured against an
// OpenAI-compatible embedding endpoint.
func NewEmbedOpenAIClient(params NewEmbedOpenAIClientParams) *EmbedOpenAIClient {
	timeoutMin := params.RequestTimeoutMin
	if timeoutMin <= 0 {
		timeoutMin = 5
	}
	concurrency := params.MaxConcurrentRequests
	if concurrency <= 0 {
		concurrency = 4
	}

	opts := []option.RequestOption{}
	if params.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(params.BaseURL))
	}
	if params.APIKey != "" {
		opts = append(opts, option.WithAPIKey(params.APIKey))
	}
	client := openai.NewClient(opts...)

	return &EmbedOpenAIClient{
		embeddingModel: params.EmbeddingModel,
		timeoutMin:     timeoutMin,

		embeddingLock: semaphore.NewWeighted(concurrency),

		EmbeddingClient: &client,
	}
}

func (c *EmbedOpenAIClient) modifyMetrics(m ai.ModelMetrics) {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	c.metrics.InputTokens += m.InputTokens
	c.metrics.TotalTokens += m.TotalTokens
	c.metrics.DurationMs += m.DurationMs
}

// ResetMetrics clears the accumulated metrics.
func (c *EmbedOpenAIClient) ResetMetrics() {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	c.metrics = ai.ModelMetrics{}
}

// GetMetrics returns the metrics accumulated since the last reset.
func (c *EmbedOpenAIClient) GetMetrics() ai.ModelMetrics {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	return c.metrics
}
