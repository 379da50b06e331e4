package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rahulhooda929/Simple-FAQ-SDR/pkg/provider/live"
)

// ErrProviderNotRegistered is returned by [Registry.CreateLive] when no
// factory has been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps live provider names to their constructor functions.
// It is safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	live map[string]func(LiveConfig) (live.Provider, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		live: make(map[string]func(LiveConfig) (live.Provider, error)),
	}
}

// RegisterLive registers a live provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterLive(name string, factory func(LiveConfig) (live.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.live[name] = factory
}

// CreateLive instantiates a live provider using the factory registered under
// cfg.Provider. Returns [ErrProviderNotRegistered] if no factory has been
// registered for that name.
func (r *Registry) CreateLive(cfg LiveConfig) (live.Provider, error) {
	r.mu.RLock()
	factory, ok := r.live[cfg.Provider]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: live/%q", ErrProviderNotRegistered, cfg.Provider)
	}
	return factory(cfg)
}
