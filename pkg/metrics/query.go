package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
)

// ProviderUsage is aggregated token usage for one provider.
type ProviderUsage struct {
	Provider         string `json:"provider"`
	Requests         int64  `json:"requests"`
	PromptTokens     int64  `json:"prompt_tokens"`
	CompletionTokens int64  `json:"completion_tokens"`
	TotalTokens      int64  `json:"total_tokens"`
}

// QueryService queries a Prometheus server for recorded run data.
type QueryService struct {
	client   api.Client
	queryAPI v1.API
}

// NewQueryService creates a query service against the given Prometheus URL.
func NewQueryService(prometheusURL string) (*QueryService, error) {
	client, err := api.NewClient(api.Config{
		Address: prometheusURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus client: %w", err)
	}

	return &QueryService{
		client:   client,
		queryAPI: v1.NewAPI(client),
	}, nil
}

// GetProviderUsage aggregates request and token counts per provider across
// the retention window.
func (q *QueryService) GetProviderUsage(ctx context.Context) (map[string]*ProviderUsage, error) {
	result := make(map[string]*ProviderUsage)

	providersQuery := `group by (provider) (llm_requests_total)`
	providersResult, _, err := q.queryAPI.Query(ctx, providersQuery, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to query providers: %w", err)
	}

	var providers []string
	if vector, ok := providersResult.(model.Vector); ok {
		for _, sample := range vector {
			if name, ok := sample.Metric["provider"]; ok {
				providers = append(providers, string(name))
			}
		}
	}

	for _, provider := range providers {
		usage := &ProviderUsage{Provider: provider}

		requestsQuery := fmt.Sprintf(`sum(llm_requests_total{provider=%q})`, provider)
		usage.Requests, err = q.scalarQuery(ctx, requestsQuery)
		if err != nil {
			return nil, err
		}

		promptQuery := fmt.Sprintf(`sum(llm_tokens_total{provider=%q, type="prompt"})`, provider)
		usage.PromptTokens, err = q.scalarQuery(ctx, promptQuery)
		if err != nil {
			return nil, err
		}

		completionQuery := fmt.Sprintf(`sum(llm_tokens_total{provider=%q, type="completion"})`, provider)
		usage.CompletionTokens, err = q.scalarQuery(ctx, completionQuery)
		if err != nil {
			return nil, err
		}

		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
		result[provider] = usage
	}

	return result, nil
}

// GetFallbackCounts returns how often each provider was fallen away from.
func (q *QueryService) GetFallbackCounts(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64)

	fallbackResult, _, err := q.queryAPI.Query(ctx, `sum by (from_provider) (llm_fallback_total)`, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to query fallbacks: %w", err)
	}

	if vector, ok := fallbackResult.(model.Vector); ok {
		for _, sample := range vector {
			if name, ok := sample.Metric["from_provider"]; ok {
				counts[string(name)] = int64(sample.Value)
			}
		}
	}
	return counts, nil
}

func (q *QueryService) scalarQuery(ctx context.Context, query string) (int64, error) {
	result, _, err := q.queryAPI.Query(ctx, query, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to run query %q: %w", query, err)
	}
	if vector, ok := result.(model.Vector); ok && len(vector) > 0 {
		return int64(vector[0].Value), nil
	}
	return 0, nil
}
