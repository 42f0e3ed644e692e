// Package currency serves ISO currency codes and exchange rates fetched
// from an external provider, memoized in redis.
package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Provider fetches exchange rates for one base currency.
type Provider interface {
	GetExchangeRate(ctx context.Context, from string, to []string) (map[string]float64, error)
}

// HTTPProvider queries a JSON rate endpoint of the form
// GET {base}?base=EUR&symbols=USD,GBP -> {"rates": {"USD": 1.08, ...}}.
type HTTPProvider struct {
	baseURL string
	client  *http.Client
}

// NewHTTPProvider constructs a provider against the given endpoint.
func NewHTTPProvider(baseURL string) *HTTPProvider {
	return &HTTPProvider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type ratesResponse struct {
	Rates map[string]float64 `json:"rates"`
}

// GetExchangeRate fetches the rates from base currency from into each of to.
func (p *HTTPProvider) GetExchangeRate(ctx context.Context, from string, to []string) (map[string]float64, error) {
	endpoint, err := url.Parse(p.baseURL)
	if err != nil {
		return nil, fmt.Errorf("currency: parse provider url: %w", err)
	}
	q := endpoint.Query()
	q.Set("base", from)
	q.Set("symbols", strings.Join(to, ","))
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("currency: provider request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("currency: provider returned status %d", resp.StatusCode)
	}
	var out ratesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("currency: decode provider response: %w", err)
	}
	return out.Rates, nil
}
