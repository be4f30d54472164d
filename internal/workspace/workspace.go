package workspace

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/vk/weft/internal/node"
	"github.com/vk/weft/internal/registry"
	"github.com/vk/weft/internal/value"
)

// Propagator is the execution engine seen from the workspace. Propagate
// runs a pass seeded by the given nodes; CancelActive interrupts an
// in-flight pass so a structural mutation can take the topology.
type Propagator interface {
	Propagate(ctx context.Context, seeds []node.ID) (*ChangeSet, error)
	CancelActive()
}

// entry is one slot of the node arena.
type entry struct {
	id         node.ID
	kind       string
	n          node.Node
	label      string
	tags       []string
	outputs    map[string]value.Value
	unresolved bool

	// execMu serializes Execute against SetValue on this node. Lock
	// order: ws.mu may be held while taking execMu, never the reverse.
	execMu sync.Mutex
}

// Workspace is the sole source of truth for one graph. Multiple
// workspaces may coexist in a process with no shared state; each is owned
// by whichever collaborator constructed it.
type Workspace struct {
	mu   sync.Mutex
	reg  *registry.Registry
	prop Propagator

	nextID node.ID
	nodes  map[node.ID]*entry
	back   map[node.Ref]node.Ref   // consumer input -> producer output
	fwd    map[node.Ref][]node.Ref // producer output -> consumer inputs
	views  map[string]*View
}

// New creates an empty workspace drawing node kinds from reg.
func New(reg *registry.Registry) *Workspace {
	return &Workspace{
		reg:   reg,
		nodes: make(map[node.ID]*entry),
		back:  make(map[node.Ref]node.Ref),
		fwd:   make(map[node.Ref][]node.Ref),
		views: make(map[string]*View),
	}
}

// SetPropagator attaches the execution engine. Until one is attached,
// Apply commits mutations without propagation (used during load).
func (ws *Workspace) SetPropagator(p Propagator) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.prop = p
}

// Registry returns the kind registry this workspace instantiates from.
func (ws *Workspace) Registry() *registry.Registry { return ws.reg }

func (ws *Workspace) entryOf(id node.ID) (*entry, error) {
	e, ok := ws.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node %s: %w", id, ErrNotFound)
	}
	return e, nil
}

// NodeIDs returns every live node handle in ascending order.
func (ws *Workspace) NodeIDs() []node.ID {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ids := make([]node.ID, 0, len(ws.nodes))
	for id := range ws.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// NodeKind returns the kind tag of a node.
func (ws *Workspace) NodeKind(id node.ID) (string, error) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	e, err := ws.entryOf(id)
	if err != nil {
		return "", err
	}
	return e.kind, nil
}

// NodeMeta returns the label and tags of a node.
func (ws *Workspace) NodeMeta(id node.ID) (label string, tags []string, err error) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	e, err := ws.entryOf(id)
	if err != nil {
		return "", nil, err
	}
	return e.label, append([]string(nil), e.tags...), nil
}

// Instance returns the live node behind a handle. The engine uses this to
// invoke Execute; nothing may retain references into another node's state.
func (ws *Workspace) Instance(id node.ID) (node.Node, error) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	e, err := ws.entryOf(id)
	if err != nil {
		return nil, err
	}
	return e.n, nil
}

// IsBuffered reports whether a node is a feedback kind.
func (ws *Workspace) IsBuffered(id node.ID) bool {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	e, ok := ws.nodes[id]
	if !ok {
		return false
	}
	_, buffered := e.n.(node.Buffered)
	return buffered
}

// Outputs returns a copy of a node's committed output values.
func (ws *Workspace) Outputs(id node.ID) (map[string]value.Value, error) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	e, err := ws.entryOf(id)
	if err != nil {
		return nil, err
	}
	out := make(map[string]value.Value, len(e.outputs))
	for port, v := range e.outputs {
		out[port] = v
	}
	return out, nil
}

// GatherInputs assembles the latest committed producer value for each of a
// node's input ports. Unconnected ports read Empty.
func (ws *Workspace) GatherInputs(id node.ID) (map[string]value.Value, error) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	e, err := ws.entryOf(id)
	if err != nil {
		return nil, err
	}
	in := make(map[string]value.Value)
	for _, port := range e.n.PortsIn() {
		in[port.Name] = value.EmptyVal()
		src, ok := ws.back[node.Ref{Node: id, Port: port.Name}]
		if !ok {
			continue
		}
		if producer, ok := ws.nodes[src.Node]; ok {
			if v, ok := producer.outputs[src.Port]; ok {
				in[port.Name] = v
			}
		}
	}
	return in, nil
}

// ExecuteNode runs one node's Execute serialized against SetValue on the
// same node, so a concurrent value write can never interleave with the
// node reading or mutating its own state.
func (ws *Workspace) ExecuteNode(ctx context.Context, id node.ID, in map[string]value.Value) (map[string]value.Value, error) {
	ws.mu.Lock()
	e, err := ws.entryOf(id)
	ws.mu.Unlock()
	if err != nil {
		return nil, err
	}
	e.execMu.Lock()
	defer e.execMu.Unlock()
	return e.n.Execute(ctx, in)
}

// CommitOutputs stores a node's freshly computed outputs and returns the
// ports whose committed value actually changed. Unchanged ports are the
// memoization boundary: their consumers stay clean.
func (ws *Workspace) CommitOutputs(id node.ID, out map[string]value.Value) ([]string, error) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	e, err := ws.entryOf(id)
	if err != nil {
		return nil, err
	}
	var changed []string
	for port, v := range out {
		prev, had := e.outputs[port]
		if !had || !prev.Equal(v) {
			changed = append(changed, port)
		}
		e.outputs[port] = v
	}
	sort.Strings(changed)
	return changed, nil
}

// SetUnresolved flags or clears a node's dirty-unresolved state after an
// execution failure.
func (ws *Workspace) SetUnresolved(id node.ID, unresolved bool) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if e, ok := ws.nodes[id]; ok {
		e.unresolved = unresolved
	}
}

// Unresolved lists the nodes whose last execution failed.
func (ws *Workspace) Unresolved() []node.ID {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	var ids []node.ID
	for id, e := range ws.nodes {
		if e.unresolved {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ConsumersOf returns the input ports fed by one output port.
func (ws *Workspace) ConsumersOf(ref node.Ref) []node.Ref {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return append([]node.Ref(nil), ws.fwd[ref]...)
}

// ConsumerNodes returns the distinct nodes fed by any output of id.
func (ws *Workspace) ConsumerNodes(id node.ID) []node.ID {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.consumerNodesLocked(id)
}

func (ws *Workspace) consumerNodesLocked(id node.ID) []node.ID {
	seen := make(map[node.ID]struct{})
	e, ok := ws.nodes[id]
	if !ok {
		return nil
	}
	var out []node.ID
	for _, port := range e.n.PortsOut() {
		for _, dst := range ws.fwd[node.Ref{Node: id, Port: port.Name}] {
			if _, dup := seen[dst.Node]; !dup {
				seen[dst.Node] = struct{}{}
				out = append(out, dst.Node)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ProducerNodes returns the distinct nodes feeding any input of id.
func (ws *Workspace) ProducerNodes(id node.ID) []node.ID {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	e, ok := ws.nodes[id]
	if !ok {
		return nil
	}
	seen := make(map[node.ID]struct{})
	var out []node.ID
	for _, port := range e.n.PortsIn() {
		if src, ok := ws.back[node.Ref{Node: id, Port: port.Name}]; ok {
			if _, dup := seen[src.Node]; !dup {
				seen[src.Node] = struct{}{}
				out = append(out, src.Node)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Links returns every link in the workspace, ordered by destination.
func (ws *Workspace) Links() []Link {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	links := make([]Link, 0, len(ws.back))
	for to, from := range ws.back {
		links = append(links, Link{From: from, To: to})
	}
	sort.Slice(links, func(i, j int) bool {
		a, b := links[i].To, links[j].To
		if a.Node != b.Node {
			return a.Node < b.Node
		}
		return a.Port < b.Port
	})
	return links
}
