// Package registry holds the compile-time factory registry of node kinds.
// Kinds are registered by Modules at startup; requesting an unregistered
// kind fails with ErrUnknownKind. There is no dynamic loading.
package registry

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/vk/weft/internal/node"
	"github.com/vk/weft/internal/value"
)

// ErrUnknownKind is returned when no factory is registered for a kind name.
var ErrUnknownKind = errors.New("unknown node kind")

// Factory builds a node of one kind from its configuration value.
type Factory func(cfg value.Value) (node.Node, error)

// Module is the interface a built-in node-kind package implements to be
// registered with an application instance.
type Module interface {
	Register(r *Registry)
}

// Registry maps kind names to factories for a single application instance.
type Registry struct {
	factories map[string]Factory
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// RegisterKind registers a factory under a kind name. Registering the same
// name twice is a programmer error and panics.
func (r *Registry) RegisterKind(kind string, f Factory) {
	if _, exists := r.factories[kind]; exists {
		panic(fmt.Sprintf("node kind '%s' already registered", kind))
	}
	slog.Debug("Registering node kind.", "kind", kind)
	r.factories[kind] = f
}

// NewNode instantiates a node of the named kind.
func (r *Registry) NewNode(kind string, cfg value.Value) (node.Node, error) {
	f, ok := r.factories[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	n, err := f(cfg)
	if err != nil {
		return nil, fmt.Errorf("constructing node kind %q: %w", kind, err)
	}
	return n, nil
}

// Kinds returns the registered kind names, for diagnostics.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	return kinds
}
