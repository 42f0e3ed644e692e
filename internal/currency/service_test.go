package currency

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splitbook/splitbook/internal/platform/httpx"
)

type fakeProvider struct {
	mu    sync.Mutex
	calls int
	rates map[string]float64
	err   error
}

func (p *fakeProvider) GetExchangeRate(_ context.Context, _ string, _ []string) (map[string]float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return p.rates, nil
}

func newTestService(t *testing.T, provider Provider) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewService(provider, client, time.Hour), mr
}

func TestRatesCachesProviderResult(t *testing.T) {
	provider := &fakeProvider{rates: map[string]float64{"USD": 1.08, "GBP": 0.85}}
	svc, mr := newTestService(t, provider)

	rates, err := svc.Rates(context.Background(), "EUR", []string{"USD"})
	require.NoError(t, err)
	assert.Equal(t, 1.08, rates["USD"])
	assert.Equal(t, 1, provider.calls)
	assert.True(t, mr.Exists("fx:rates:EUR"))

	// Second call is served from redis.
	rates, err = svc.Rates(context.Background(), "EUR", []string{"GBP"})
	require.NoError(t, err)
	assert.Equal(t, 0.85, rates["GBP"])
	assert.Equal(t, 1, provider.calls)
}

func TestRatesRejectsUnknownCodes(t *testing.T) {
	provider := &fakeProvider{rates: map[string]float64{"USD": 1.08}}
	svc, _ := newTestService(t, provider)

	_, err := svc.Rates(context.Background(), "ZZZ", []string{"USD"})
	require.Error(t, err)
	assert.Equal(t, httpx.CodeBadRequest, httpx.AsError(err).Code)

	_, err = svc.Rates(context.Background(), "EUR", []string{"ZZZ"})
	require.Error(t, err)
	assert.Equal(t, httpx.CodeBadRequest, httpx.AsError(err).Code)
	assert.Equal(t, 0, provider.calls, "invalid input must not hit the provider")
}

func TestRatesMissingPair(t *testing.T) {
	provider := &fakeProvider{rates: map[string]float64{"USD": 1.08}}
	svc, _ := newTestService(t, provider)

	_, err := svc.Rates(context.Background(), "EUR", []string{"JPY"})
	require.Error(t, err)
	assert.Equal(t, httpx.CodeNotFound, httpx.AsError(err).Code)
}

func TestRatesExpireWithTTL(t *testing.T) {
	provider := &fakeProvider{rates: map[string]float64{"USD": 1.08}}
	svc, mr := newTestService(t, provider)

	_, err := svc.Rates(context.Background(), "EUR", []string{"USD"})
	require.NoError(t, err)
	assert.Equal(t, 1, provider.calls)

	mr.FastForward(2 * time.Hour)

	_, err = svc.Rates(context.Background(), "EUR", []string{"USD"})
	require.NoError(t, err)
	assert.Equal(t, 2, provider.calls, "expired cache must refetch")
}

func TestWarmPopulatesCache(t *testing.T) {
	provider := &fakeProvider{rates: map[string]float64{"USD": 1.08}}
	svc, mr := newTestService(t, provider)

	require.NoError(t, svc.Warm(context.Background(), []string{"EUR", "USD"}))
	assert.True(t, mr.Exists("fx:rates:EUR"))
	assert.True(t, mr.Exists("fx:rates:USD"))

	_, err := svc.Rates(context.Background(), "EUR", []string{"USD"})
	require.NoError(t, err)
	assert.Equal(t, 2, provider.calls, "warm cache serves reads")
}
