package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/hifdhlab/tasmi/pkg/asr"
)

// ErrProviderNotRegistered is returned by [Registry.Create] when no factory
// has been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: asr provider not registered")

// Factory builds a transcriber from its configuration block.
type Factory func(ASRConfig) (asr.Transcriber, error)

// Registry maps ASR provider names to their constructor functions. It is safe
// for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register registers a transcriber factory under name. Subsequent calls with
// the same name overwrite the previous registration.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Create instantiates a transcriber using the factory registered under
// cfg.Provider. Returns [ErrProviderNotRegistered] if no factory has been
// registered for that name.
func (r *Registry) Create(cfg ASRConfig) (asr.Transcriber, error) {
	r.mu.RLock()
	factory, ok := r.factories[cfg.Provider]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %s)",
			ErrProviderNotRegistered, cfg.Provider, strings.Join(r.Names(), ", "))
	}
	return factory(cfg)
}

// Names returns the registered provider names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
