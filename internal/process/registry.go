package process

import (
	"fmt"
	"log/slog"
	"sort"
)

// Registry maps controller names to their implementations.
// Registration happens at startup before concurrent access, so no mutex is needed.
type Registry struct {
	controllers map[string]Controller
	logger      *slog.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		controllers: make(map[string]Controller),
		logger:      logger.With("component", "controller-registry"),
	}
}

// Register adds a Controller to the registry, keyed by its Name().
func (r *Registry) Register(c Controller) {
	name := c.Name()
	r.controllers[name] = c
	r.logger.Debug("controller registered", "name", name)
}

// Get returns the Controller for name or an error if none is registered.
func (r *Registry) Get(name string) (Controller, error) {
	c, ok := r.controllers[name]
	if !ok {
		return nil, fmt.Errorf("no controller registered for %q (have %v)", name, r.Names())
	}
	return c, nil
}

// Names lists registered controller names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.controllers))
	for name := range r.controllers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
