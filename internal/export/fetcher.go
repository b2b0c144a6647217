package export

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"auditrelay/internal/data"
	gh "auditrelay/internal/github"

	"github.com/google/go-github/v81/github"
	"golang.org/x/sync/singleflight"
)

// Provider fetches one report section for a repository.
type Provider interface {
	Key() data.DependencyKey
	Fetch(ctx context.Context, f *Fetcher, repo *github.Repository) (any, error)
}

// Fetcher resolves report sections through their providers. Identical
// concurrent requests are collapsed and successful values are cached for
// the lifetime of the Fetcher.
type Fetcher struct {
	client    *gh.Client
	budget    *RequestBudget
	providers map[data.DependencyKey]Provider
	group     singleflight.Group
	cache     sync.Map
}

type fetchChainKey struct{}

// NewFetcher uses DefaultProviders when none are given.
func NewFetcher(client *gh.Client, budget *RequestBudget, providers ...Provider) *Fetcher {
	if len(providers) == 0 {
		providers = DefaultProviders()
	}
	byKey := make(map[data.DependencyKey]Provider, len(providers))
	for _, p := range providers {
		byKey[p.Key()] = p
	}
	return &Fetcher{
		client:    client,
		budget:    budget,
		providers: byKey,
	}
}

func (f *Fetcher) Budget() *RequestBudget { return f.budget }

func (f *Fetcher) Client() *gh.Client { return f.client }

// Keys returns the provided section keys in fetch priority order.
func (f *Fetcher) Keys() []data.DependencyKey {
	keys := make([]data.DependencyKey, 0, len(f.providers))
	for k := range f.providers {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		pi, pj := data.Priority(keys[i]), data.Priority(keys[j])
		if pi != pj {
			return pi < pj
		}
		return keys[i] < keys[j]
	})
	return keys
}

func (f *Fetcher) Fetch(ctx context.Context, repo *github.Repository, key data.DependencyKey) (any, error) {
	if ctx == nil {
		return nil, fmt.Errorf("Fetch: nil context")
	}
	if f == nil || f.client == nil || f.client.Client == nil || f.budget == nil {
		return nil, fmt.Errorf("Fetch: fetcher not initialized (use NewFetcher)")
	}
	if repo == nil || repo.GetOwner().GetLogin() == "" || repo.GetName() == "" {
		return nil, fmt.Errorf("Fetch: repo owner/name is required")
	}
	p, ok := f.providers[key]
	if !ok {
		return nil, fmt.Errorf("unsupported dependency key: %s", key)
	}

	flightKey := strings.ToLower(repo.GetOwner().GetLogin()+"/"+repo.GetName()) + ":" + string(key)

	ctx, err := withFetchChain(ctx, flightKey)
	if err != nil {
		return nil, err
	}

	if val, ok := f.cache.Load(flightKey); ok {
		return val, nil
	}

	val, err, _ := f.group.Do(flightKey, func() (any, error) {
		return p.Fetch(ctx, f, repo)
	})
	if err != nil {
		return nil, err
	}
	f.cache.Store(flightKey, val)
	return val, nil
}

func withFetchChain(ctx context.Context, flightKey string) (context.Context, error) {
	chain, _ := ctx.Value(fetchChainKey{}).([]string)
	for _, existing := range chain {
		if existing == flightKey {
			return nil, fmt.Errorf("Fetch: dependency cycle detected: %s -> %s", strings.Join(chain, " -> "), flightKey)
		}
	}

	updated := make([]string, 0, len(chain)+1)
	updated = append(updated, chain...)
	updated = append(updated, flightKey)
	return context.WithValue(ctx, fetchChainKey{}, updated), nil
}
