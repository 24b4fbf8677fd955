package core

import (
	"fmt"
	"sort"
	"sync"

	goerrors "github.com/goliatone/go-errors"
)

// AdapterRegistry keeps the provider adapters the service can route to.
// Registration happens at wiring time; lookups are concurrency safe.
type AdapterRegistry struct {
	mu       sync.RWMutex
	adapters map[ChannelProvider]ChannelAdapter
}

func NewAdapterRegistry() *AdapterRegistry {
	return &AdapterRegistry{adapters: make(map[ChannelProvider]ChannelAdapter)}
}

func (r *AdapterRegistry) Register(adapter ChannelAdapter) error {
	if r == nil {
		return fmt.Errorf("core: adapter registry is nil")
	}
	if adapter == nil {
		return fmt.Errorf("core: adapter is nil")
	}
	provider := adapter.Provider()
	if !provider.Valid() {
		return fmt.Errorf("core: adapter provider is invalid: %s", provider)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.adapters == nil {
		r.adapters = make(map[ChannelProvider]ChannelAdapter)
	}
	if _, exists := r.adapters[provider]; exists {
		return fmt.Errorf("core: adapter already registered: %s", provider)
	}
	r.adapters[provider] = adapter
	return nil
}

func (r *AdapterRegistry) Get(provider ChannelProvider) (ChannelAdapter, error) {
	if r == nil {
		return nil, fmt.Errorf("core: adapter registry is nil")
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, ok := r.adapters[provider]
	if !ok {
		return nil, newChannelsError(
			fmt.Sprintf("no adapter registered for provider %s", provider),
			goerrors.CategoryNotFound,
			ChannelsErrorNotFound,
		)
	}
	return adapter, nil
}

func (r *AdapterRegistry) Providers() []ChannelProvider {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ChannelProvider, 0, len(r.adapters))
	for provider := range r.adapters {
		out = append(out, provider)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
