// Package constant provides the source node kind: no inputs, one output
// carrying whatever value was last set on it.
package constant

import (
	"context"

	"github.com/vk/weft/internal/node"
	"github.com/vk/weft/internal/registry"
	"github.com/vk/weft/internal/value"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

type constantNode struct {
	val value.Value
}

func (n *constantNode) PortsIn() []node.Port { return nil }

func (n *constantNode) PortsOut() []node.Port {
	return []node.Port{{Name: "out", Contract: node.Any()}}
}

func (n *constantNode) Execute(ctx context.Context, in map[string]value.Value) (map[string]value.Value, error) {
	return map[string]value.Value{"out": n.val}, nil
}

func (n *constantNode) Set(v value.Value) error {
	n.val = v
	return nil
}

func (n *constantNode) Snapshot() value.Value { return n.val }

func (n *constantNode) Restore(v value.Value) error {
	n.val = v
	return nil
}

// Register registers the constant kind. The factory config, when present,
// is the initial value.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterKind("constant", func(cfg value.Value) (node.Node, error) {
		return &constantNode{val: cfg}, nil
	})
}
