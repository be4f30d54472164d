// Package errorprobe provides a node kind that fails on demand. It exists
// to exercise the error-value plumbing: downstream nodes of a failed
// execution receive error-carrying values, not silence.
package errorprobe

import (
	"context"
	"errors"

	"github.com/vk/weft/internal/node"
	"github.com/vk/weft/internal/registry"
	"github.com/vk/weft/internal/value"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

type probeNode struct {
	message string
}

func (n *probeNode) PortsIn() []node.Port {
	return []node.Port{{Name: "in", Contract: node.Any()}}
}

func (n *probeNode) PortsOut() []node.Port {
	return []node.Port{{Name: "out", Contract: node.Any()}}
}

func (n *probeNode) Execute(ctx context.Context, in map[string]value.Value) (map[string]value.Value, error) {
	return nil, errors.New(n.message)
}

func (n *probeNode) Snapshot() value.Value { return value.StringVal(n.message) }

func (n *probeNode) Restore(v value.Value) error {
	if v.Kind() != value.KindString {
		return errors.New("errorprobe state must be a string")
	}
	n.message = v.Str()
	return nil
}

// Register registers the errorprobe kind. Config is the failure message,
// as a String or a Map with "message".
func (m *Module) Register(r *registry.Registry) {
	r.RegisterKind("errorprobe", func(cfg value.Value) (node.Node, error) {
		n := &probeNode{message: "errorprobe fired"}
		switch cfg.Kind() {
		case value.KindString:
			n.message = cfg.Str()
		case value.KindMap:
			if msg, ok := cfg.MapGet("message"); ok && msg.Kind() == value.KindString {
				n.message = msg.Str()
			}
		}
		return n, nil
	})
}
