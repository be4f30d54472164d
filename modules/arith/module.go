// Package arith provides the binary numeric node kinds sum and product.
// Operands are combined in the widest kind present: a Float operand makes
// the result Float, otherwise a U64 operand makes it U64, otherwise I64.
// Widening goes through the explicit conversion rules, so a negative I64
// meeting a U64 is an execution failure rather than a silent wrap.
package arith

import (
	"context"
	"fmt"

	"github.com/vk/weft/internal/node"
	"github.com/vk/weft/internal/registry"
	"github.com/vk/weft/internal/value"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

type binOp func(x, y value.Value) (value.Value, error)

type arithNode struct {
	kind string
	op   binOp
}

func (n *arithNode) PortsIn() []node.Port {
	return []node.Port{
		{Name: "x", Contract: node.Any()},
		{Name: "y", Contract: node.Any()},
	}
}

func (n *arithNode) PortsOut() []node.Port {
	return []node.Port{{Name: "out", Contract: node.Any()}}
}

func (n *arithNode) Execute(ctx context.Context, in map[string]value.Value) (map[string]value.Value, error) {
	x, y := in["x"], in["y"]
	for name, v := range map[string]value.Value{"x": x, "y": y} {
		switch v.Kind() {
		case value.KindEmpty:
			return nil, fmt.Errorf("input %q is not connected", name)
		case value.KindError:
			return nil, fmt.Errorf("input %q carries an error: %s", name, v.ErrorMessage())
		}
	}
	out, err := n.op(x, y)
	if err != nil {
		return nil, err
	}
	return map[string]value.Value{"out": out}, nil
}

// resultKind picks the kind both operands widen to.
func resultKind(x, y value.Value) value.Kind {
	if x.Kind() == value.KindFloat || y.Kind() == value.KindFloat {
		return value.KindFloat
	}
	if x.Kind() == value.KindU64 || y.Kind() == value.KindU64 {
		return value.KindU64
	}
	return value.KindI64
}

func widen(x, y value.Value) (value.Value, value.Value, value.Kind, error) {
	k := resultKind(x, y)
	xc, err := value.Convert(x, k)
	if err != nil {
		return value.Value{}, value.Value{}, k, fmt.Errorf("operand x: %w", err)
	}
	yc, err := value.Convert(y, k)
	if err != nil {
		return value.Value{}, value.Value{}, k, fmt.Errorf("operand y: %w", err)
	}
	return xc, yc, k, nil
}

func sum(x, y value.Value) (value.Value, error) {
	xc, yc, k, err := widen(x, y)
	if err != nil {
		return value.Value{}, err
	}
	switch k {
	case value.KindFloat:
		return value.FloatVal(xc.Float() + yc.Float()), nil
	case value.KindU64:
		return value.U64Val(xc.U64() + yc.U64()), nil
	default:
		return value.I64Val(xc.I64() + yc.I64()), nil
	}
}

func product(x, y value.Value) (value.Value, error) {
	xc, yc, k, err := widen(x, y)
	if err != nil {
		return value.Value{}, err
	}
	switch k {
	case value.KindFloat:
		return value.FloatVal(xc.Float() * yc.Float()), nil
	case value.KindU64:
		return value.U64Val(xc.U64() * yc.U64()), nil
	default:
		return value.I64Val(xc.I64() * yc.I64()), nil
	}
}

// Register registers the sum and product kinds.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterKind("sum", func(cfg value.Value) (node.Node, error) {
		return &arithNode{kind: "sum", op: sum}, nil
	})
	r.RegisterKind("product", func(cfg value.Value) (node.Node, error) {
		return &arithNode{kind: "product", op: product}, nil
	})
}
