package workspace

import (
	"github.com/vk/weft/internal/node"
	"github.com/vk/weft/internal/value"
)

// Link is a directed, contract-checked edge from one output port to one
// input port.
type Link struct {
	From node.Ref
	To   node.Ref
}

// NodeViewChange records a NodeView placement update within one view.
// Removed marks a placement that was dropped; X and Y are meaningless
// then.
type NodeViewChange struct {
	View    string
	Node    node.ID
	X, Y    float64
	Removed bool
}

// ChangeSet describes everything one applied command or propagation pass
// changed. The rendering collaborator consumes these to redraw; the core
// never draws anything itself.
type ChangeSet struct {
	NodesAdded    []node.ID
	NodesRemoved  []node.ID
	LinksAdded    []Link
	LinksRemoved  []Link
	ValuesChanged map[node.ID]map[string]value.Value
	ViewsChanged  []NodeViewChange
}

// NewChangeSet returns an empty ChangeSet.
func NewChangeSet() *ChangeSet {
	return &ChangeSet{ValuesChanged: make(map[node.ID]map[string]value.Value)}
}

// RecordValue notes a committed output value change.
func (cs *ChangeSet) RecordValue(id node.ID, port string, v value.Value) {
	if cs.ValuesChanged == nil {
		cs.ValuesChanged = make(map[node.ID]map[string]value.Value)
	}
	ports, ok := cs.ValuesChanged[id]
	if !ok {
		ports = make(map[string]value.Value)
		cs.ValuesChanged[id] = ports
	}
	ports[port] = v
}

// Merge folds other into cs. Later recordings win on value conflicts.
func (cs *ChangeSet) Merge(other *ChangeSet) {
	if other == nil {
		return
	}
	cs.NodesAdded = append(cs.NodesAdded, other.NodesAdded...)
	cs.NodesRemoved = append(cs.NodesRemoved, other.NodesRemoved...)
	cs.LinksAdded = append(cs.LinksAdded, other.LinksAdded...)
	cs.LinksRemoved = append(cs.LinksRemoved, other.LinksRemoved...)
	cs.ViewsChanged = append(cs.ViewsChanged, other.ViewsChanged...)
	for id, ports := range other.ValuesChanged {
		for port, v := range ports {
			cs.RecordValue(id, port, v)
		}
	}
}

// Empty reports whether the ChangeSet records no changes at all.
func (cs *ChangeSet) Empty() bool {
	return len(cs.NodesAdded) == 0 && len(cs.NodesRemoved) == 0 &&
		len(cs.LinksAdded) == 0 && len(cs.LinksRemoved) == 0 &&
		len(cs.ValuesChanged) == 0 && len(cs.ViewsChanged) == 0
}
