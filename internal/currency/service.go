package currency

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	xcurrency "golang.org/x/text/currency"

	"github.com/splitbook/splitbook/internal/platform/httpx"
)

// Service memoizes provider rates in redis per base currency. Concurrent
// cache misses for the same base collapse into one provider call.
type Service struct {
	provider Provider
	cache    *redis.Client
	ttl      time.Duration
	group    singleflight.Group
}

// NewService constructs a Service. ttl bounds how stale cached rates may get.
func NewService(provider Provider, cache *redis.Client, ttl time.Duration) *Service {
	return &Service{provider: provider, cache: cache, ttl: ttl}
}

// Codes returns the supported ISO 4217 currency codes.
func (s *Service) Codes() []string {
	return append([]string(nil), isoCodes...)
}

// Rates returns the exchange rates from base currency from into each of to.
func (s *Service) Rates(ctx context.Context, from string, to []string) (map[string]float64, error) {
	if _, err := xcurrency.ParseISO(from); err != nil {
		return nil, httpx.BadRequest("unknown currency code %q", from)
	}
	for _, code := range to {
		if _, err := xcurrency.ParseISO(code); err != nil {
			return nil, httpx.BadRequest("unknown currency code %q", code)
		}
	}

	all, err := s.rates(ctx, from)
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(to))
	for _, code := range to {
		rate, ok := all[code]
		if !ok {
			return nil, httpx.NotFound("no rate from %s to %s", from, code)
		}
		out[code] = rate
	}
	return out, nil
}

// Warm refreshes the cached rates for each base currency.
func (s *Service) Warm(ctx context.Context, bases []string) error {
	for _, base := range bases {
		rates, err := s.provider.GetExchangeRate(ctx, base, s.Codes())
		if err != nil {
			return err
		}
		if err := s.store(ctx, base, rates); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) rates(ctx context.Context, from string) (map[string]float64, error) {
	key := cacheKey(from)
	cached, err := s.cache.Get(ctx, key).Bytes()
	if err == nil {
		var rates map[string]float64
		if err := json.Unmarshal(cached, &rates); err == nil {
			return rates, nil
		}
	}

	ch := s.group.DoChan(key, func() (any, error) {
		rates, err := s.provider.GetExchangeRate(ctx, from, s.Codes())
		if err != nil {
			return nil, err
		}
		if err := s.store(ctx, from, rates); err != nil {
			return nil, err
		}
		return rates, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(map[string]float64), nil
	}
}

func (s *Service) store(ctx context.Context, from string, rates map[string]float64) error {
	data, err := json.Marshal(rates)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, cacheKey(from), data, s.ttl).Err()
}

func cacheKey(from string) string {
	return "fx:rates:" + from
}

var isoCodes = func() []string {
	codes := []string{
		"AUD", "BGN", "BRL", "CAD", "CHF", "CNY", "CZK", "DKK", "EUR", "GBP",
		"HKD", "HUF", "IDR", "ILS", "INR", "ISK", "JPY", "KRW", "MXN", "MYR",
		"NOK", "NZD", "PHP", "PLN", "RON", "SEK", "SGD", "THB", "TRY", "USD",
		"ZAR",
	}
	sort.Strings(codes)
	return codes
}()
