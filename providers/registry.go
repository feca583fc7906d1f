package providers

import (
	"fmt"
	"slices"
	"sync"

	"github.com/teilomillet/relcheck/config"
)

// Registry maps provider names to constructors. It is safe for concurrent use.
type Registry struct {
	providers map[string]ProviderConstructor
	mutex     sync.RWMutex
}

// NewRegistry creates a registry holding the named known providers, or
// all of them when no names are given.
func NewRegistry(names ...string) *Registry {
	r := &Registry{providers: make(map[string]ProviderConstructor)}
	known := knownProviders()
	if len(names) == 0 {
		for name, constructor := range known {
			r.providers[name] = constructor
		}
		return r
	}
	for _, name := range names {
		if constructor, ok := known[name]; ok {
			r.providers[name] = constructor
		}
	}
	return r
}

func knownProviders() map[string]ProviderConstructor {
	return map[string]ProviderConstructor{
		config.ProviderOllama: func(baseURL, model string) Provider {
			return NewOllamaProvider(baseURL, model)
		},
	}
}

// Register adds or replaces a provider constructor.
func (r *Registry) Register(name string, constructor ProviderConstructor) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.providers[name] = constructor
}

// Get creates a provider instance by name.
func (r *Registry) Get(name, baseURL, model string) (Provider, error) {
	r.mutex.RLock()
	constructor, exists := r.providers[name]
	r.mutex.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unknown provider: %s", name)
	}
	return constructor(baseURL, model), nil
}

// Names lists the registered providers in sorted order.
func (r *Registry) Names() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
