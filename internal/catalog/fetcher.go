package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// fetchTimeout bounds a single discovery request.
const fetchTimeout = 10 * time.Second

// HTTPFetcher discovers models from providers that expose a local tags
// endpoint (GET {base}/api/tags returning {"models":[{"name":...}]}).
// Providers without a configured base URL are reported as unavailable, which
// the Catalog turns into a fallback-list hit.
type HTTPFetcher struct {
	bases  map[string]string // provider -> base URL
	client *http.Client
}

// NewHTTPFetcher creates an HTTPFetcher for the given provider base URLs.
func NewHTTPFetcher(bases map[string]string) *HTTPFetcher {
	return &HTTPFetcher{
		bases:  bases,
		client: &http.Client{Timeout: fetchTimeout},
	}
}

// ListModels fetches the live model list for a provider.
func (f *HTTPFetcher) ListModels(ctx context.Context, provider string) ([]ModelDescriptor, error) {
	base, ok := f.bases[provider]
	if ok && base == "" {
		ok = false
	}
	if !ok {
		return nil, fmt.Errorf("catalog: provider %s has no discovery endpoint", provider)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("catalog: build request for %s: %w", provider, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog: fetch %s tags: %w", provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog: fetch %s tags: status %d", provider, resp.StatusCode)
	}

	var payload struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("catalog: decode %s tags: %w", provider, err)
	}

	models := make([]ModelDescriptor, 0, len(payload.Models))
	for _, m := range payload.Models {
		models = append(models, ModelDescriptor{Name: m.Name, Provider: provider})
	}
	return models, nil
}
