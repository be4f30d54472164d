// Package feedback provides the one-step buffer node kind. It emits the
// value it received on the previous propagation pass, Empty on the first,
// which is what lets a cycle through it be scheduled as a straight line.
package feedback

import (
	"context"

	"github.com/vk/weft/internal/node"
	"github.com/vk/weft/internal/registry"
	"github.com/vk/weft/internal/value"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

type feedbackNode struct {
	prev value.Value
}

func (n *feedbackNode) Buffered() {}

func (n *feedbackNode) PortsIn() []node.Port {
	return []node.Port{{Name: "in", Contract: node.Any()}}
}

func (n *feedbackNode) PortsOut() []node.Port {
	return []node.Port{{Name: "out", Contract: node.Any()}}
}

func (n *feedbackNode) Execute(ctx context.Context, in map[string]value.Value) (map[string]value.Value, error) {
	out := n.prev
	n.prev = in["in"]
	return map[string]value.Value{"out": out}, nil
}

func (n *feedbackNode) Snapshot() value.Value { return n.prev }

func (n *feedbackNode) Restore(v value.Value) error {
	n.prev = v
	return nil
}

// Register registers the feedback kind.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterKind("feedback", func(cfg value.Value) (node.Node, error) {
		return &feedbackNode{prev: value.EmptyVal()}, nil
	})
}
