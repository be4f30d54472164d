// Package textedit provides the String buffer node kind: a stateful text
// cell that either replaces or appends on each input, configured at
// construction.
package textedit

import (
	"context"
	"fmt"

	"github.com/vk/weft/internal/node"
	"github.com/vk/weft/internal/registry"
	"github.com/vk/weft/internal/value"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

const (
	opReplace = "replace"
	opAppend  = "append"
)

type texteditNode struct {
	op   string
	text string
}

func (n *texteditNode) PortsIn() []node.Port {
	return []node.Port{{Name: "in", Contract: node.Exactly(value.KindString)}}
}

func (n *texteditNode) PortsOut() []node.Port {
	return []node.Port{{Name: "out", Contract: node.Exactly(value.KindString)}}
}

func (n *texteditNode) Execute(ctx context.Context, in map[string]value.Value) (map[string]value.Value, error) {
	input := in["in"]
	switch input.Kind() {
	case value.KindEmpty:
		// Unconnected input leaves the buffer alone.
	case value.KindError:
		return nil, fmt.Errorf("input carries an error: %s", input.ErrorMessage())
	case value.KindString:
		if n.op == opAppend {
			n.text += input.Str()
		} else {
			n.text = input.Str()
		}
	default:
		return nil, fmt.Errorf("input is %s, want string", input.Kind())
	}
	return map[string]value.Value{"out": value.StringVal(n.text)}, nil
}

func (n *texteditNode) Set(v value.Value) error {
	if v.Kind() != value.KindString {
		return fmt.Errorf("textedit holds a string, got %s", v.Kind())
	}
	n.text = v.Str()
	return nil
}

func (n *texteditNode) Snapshot() value.Value {
	return value.MapVal(
		value.MapEntry{K: "op", V: value.StringVal(n.op)},
		value.MapEntry{K: "text", V: value.StringVal(n.text)},
	)
}

func (n *texteditNode) Restore(v value.Value) error { return n.configure(v) }

func (n *texteditNode) configure(cfg value.Value) error {
	if cfg.Kind() == value.KindEmpty {
		return nil
	}
	if cfg.Kind() != value.KindMap {
		return fmt.Errorf("textedit config must be a map, got %s", cfg.Kind())
	}
	if op, ok := cfg.MapGet("op"); ok {
		if op.Kind() != value.KindString {
			return fmt.Errorf("textedit op must be a string")
		}
		switch op.Str() {
		case opReplace, opAppend:
			n.op = op.Str()
		default:
			return fmt.Errorf("textedit op must be %q or %q, got %q", opReplace, opAppend, op.Str())
		}
	}
	if text, ok := cfg.MapGet("text"); ok {
		if text.Kind() != value.KindString {
			return fmt.Errorf("textedit text must be a string")
		}
		n.text = text.Str()
	}
	return nil
}

// Register registers the textedit kind. Config is a Map with an optional
// "op" of "replace" (default) or "append" and an optional initial "text".
func (m *Module) Register(r *registry.Registry) {
	r.RegisterKind("textedit", func(cfg value.Value) (node.Node, error) {
		n := &texteditNode{op: opReplace}
		if err := n.configure(cfg); err != nil {
			return nil, err
		}
		return n, nil
	})
}
