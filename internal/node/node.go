// Package node defines the polymorphic unit of computation: a node with
// named, contract-typed input and output ports. Node kinds are produced by
// the factory registry; the workspace only ever sees this interface.
package node

import (
	"context"
	"fmt"

	"github.com/vk/weft/internal/value"
)

// ID is a stable node handle, unique for the lifetime of its workspace.
// Handles are never reused, so a dangling ID simply fails lookup.
type ID uint64

func (id ID) String() string { return fmt.Sprintf("n%d", uint64(id)) }

// Contract is the value shape a port accepts: an exact kind, or the
// wildcard that accepts anything.
type Contract struct {
	Kind value.Kind
}

// Exactly returns a contract accepting a single value kind.
func Exactly(k value.Kind) Contract { return Contract{Kind: k} }

// Any returns the wildcard contract.
func Any() Contract { return Contract{Kind: value.KindAny} }

// Compatible reports whether a producer contract may feed a consumer
// contract: exact kinds must match, the wildcard matches everything.
func Compatible(src, dst Contract) bool {
	if src.Kind == value.KindAny || dst.Kind == value.KindAny {
		return true
	}
	return src.Kind == dst.Kind
}

func (c Contract) String() string { return c.Kind.String() }

// Port is a named, contract-typed input or output slot.
type Port struct {
	Name     string
	Contract Contract
}

// Ref addresses one port of one node.
type Ref struct {
	Node ID
	Port string
}

func (r Ref) String() string { return fmt.Sprintf("%s.%s", r.Node, r.Port) }

// Node is the behavioral interface every node kind implements. Execute is
// the only entry point: it receives the latest value on each input port and
// returns a value per output port. It may block on external I/O and must
// honor ctx cancellation. Internal state is opaque to the graph; all
// cross-node communication is by value, through ports.
type Node interface {
	PortsIn() []Port
	PortsOut() []Port
	Execute(ctx context.Context, in map[string]value.Value) (map[string]value.Value, error)
}

// Settable is implemented by kinds whose value can be injected directly by
// a SetValue command (constants, text cells).
type Settable interface {
	Set(v value.Value) error
}

// Stateful is implemented by kinds with internal state worth persisting.
// Snapshot and Restore round-trip through the archive formats.
type Stateful interface {
	Snapshot() value.Value
	Restore(v value.Value) error
}

// Buffered marks feedback kinds: nodes that emit the previous propagation
// pass's input instead of waiting on the current one, which is what makes
// a cycle through them schedulable.
type Buffered interface {
	Buffered()
}

// ExecutionError wraps a node body failure with the node it came from.
// Execution failure is non-fatal to the graph: the engine turns it into
// error-carrying output values and keeps going.
type ExecutionError struct {
	ID  ID
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("node %s execution failed: %v", e.ID, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
