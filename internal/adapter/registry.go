package adapter

import (
	"fmt"
	"sync"

	"github.com/verdantops/canopy-core/internal/controller"
)

// Factory builds an unconnected adapter for one controller.
// The controller value carries the vendor identity and capability map
// the adapter needs; credentials arrive later via Connect.
type Factory func(ctl *controller.Controller) Adapter

// Registry maps controller brands to adapter factories.
//
// All public methods are thread-safe.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	logger    Logger
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Register installs a factory for a brand, replacing any previous one.
func (r *Registry) Register(brand string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[brand]; exists {
		r.logger.Warn("replacing adapter factory", "brand", brand)
	}
	r.factories[brand] = factory
}

// Brands returns the registered brand names.
func (r *Registry) Brands() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	brands := make([]string, 0, len(r.factories))
	for brand := range r.factories {
		brands = append(brands, brand)
	}
	return brands
}

// New builds an adapter for the controller's brand.
// Returns ErrUnknownBrand if no factory is registered.
func (r *Registry) New(ctl *controller.Controller) (Adapter, error) {
	r.mu.RLock()
	factory, ok := r.factories[ctl.Brand]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBrand, ctl.Brand)
	}
	return factory(ctl), nil
}
