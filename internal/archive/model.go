package archive

import (
	"context"
	"fmt"
	"sort"

	"github.com/vk/weft/internal/node"
	"github.com/vk/weft/internal/registry"
	"github.com/vk/weft/internal/value"
	"github.com/vk/weft/internal/workspace"
)

// CurrentVersion is written into every archive. Load rejects versions it
// does not know.
const CurrentVersion = 1

// Snapshot is the complete serializable state of one workspace. Both the
// binary and the text format marshal this structure.
type Snapshot struct {
	Version int          `msgpack:"version" yaml:"version"`
	NextID  uint64       `msgpack:"next_id" yaml:"next_id"`
	Nodes   []NodeRecord `msgpack:"nodes" yaml:"nodes"`
	Links   []LinkRecord `msgpack:"links" yaml:"links"`
	Views   []ViewRecord `msgpack:"views" yaml:"views"`
}

// NodeRecord persists one node: identity, metadata, the kind's state
// snapshot and the last committed outputs.
type NodeRecord struct {
	ID      uint64      `msgpack:"id" yaml:"id"`
	Kind    string      `msgpack:"kind" yaml:"kind"`
	Label   string      `msgpack:"label,omitempty" yaml:"label,omitempty"`
	Tags    []string    `msgpack:"tags,omitempty" yaml:"tags,omitempty"`
	State   value.Value `msgpack:"state" yaml:"state"`
	Outputs []PortValue `msgpack:"outputs,omitempty" yaml:"outputs,omitempty"`
}

// PortValue is one named output value. A slice of these, sorted by port,
// keeps archive bytes deterministic where a map would not.
type PortValue struct {
	Port  string      `msgpack:"port" yaml:"port"`
	Value value.Value `msgpack:"value" yaml:"value"`
}

// LinkRecord persists one edge.
type LinkRecord struct {
	FromNode uint64 `msgpack:"from_node" yaml:"from_node"`
	FromPort string `msgpack:"from_port" yaml:"from_port"`
	ToNode   uint64 `msgpack:"to_node" yaml:"to_node"`
	ToPort   string `msgpack:"to_port" yaml:"to_port"`
}

// ViewRecord persists one view and its placements.
type ViewRecord struct {
	Name  string           `msgpack:"name" yaml:"name"`
	Nodes []NodeViewRecord `msgpack:"nodes,omitempty" yaml:"nodes,omitempty"`
}

// NodeViewRecord persists one node placement.
type NodeViewRecord struct {
	Node  uint64  `msgpack:"node" yaml:"node"`
	X     float64 `msgpack:"x" yaml:"x"`
	Y     float64 `msgpack:"y" yaml:"y"`
	W     float64 `msgpack:"w,omitempty" yaml:"w,omitempty"`
	H     float64 `msgpack:"h,omitempty" yaml:"h,omitempty"`
	Style string  `msgpack:"style,omitempty" yaml:"style,omitempty"`
}

// Capture freezes a workspace into a Snapshot. Nodes, links and views are
// emitted in a stable order.
func Capture(ws *workspace.Workspace) (*Snapshot, error) {
	snap := &Snapshot{
		Version: CurrentVersion,
		NextID:  uint64(ws.NextID()),
	}

	for _, id := range ws.NodeIDs() {
		kind, err := ws.NodeKind(id)
		if err != nil {
			return nil, err
		}
		label, tags, err := ws.NodeMeta(id)
		if err != nil {
			return nil, err
		}
		inst, err := ws.Instance(id)
		if err != nil {
			return nil, err
		}
		state := value.EmptyVal()
		if st, ok := inst.(node.Stateful); ok {
			state = st.Snapshot()
		}
		outputs, err := ws.Outputs(id)
		if err != nil {
			return nil, err
		}
		ports := make([]PortValue, 0, len(outputs))
		for port, v := range outputs {
			ports = append(ports, PortValue{Port: port, Value: v})
		}
		sort.Slice(ports, func(i, j int) bool { return ports[i].Port < ports[j].Port })

		snap.Nodes = append(snap.Nodes, NodeRecord{
			ID:      uint64(id),
			Kind:    kind,
			Label:   label,
			Tags:    tags,
			State:   state,
			Outputs: ports,
		})
	}

	links := ws.Links()
	sort.Slice(links, func(i, j int) bool {
		a, b := links[i], links[j]
		if a.To.Node != b.To.Node {
			return a.To.Node < b.To.Node
		}
		return a.To.Port < b.To.Port
	})
	for _, l := range links {
		snap.Links = append(snap.Links, LinkRecord{
			FromNode: uint64(l.From.Node),
			FromPort: l.From.Port,
			ToNode:   uint64(l.To.Node),
			ToPort:   l.To.Port,
		})
	}

	for _, name := range ws.ViewNames() {
		views, err := ws.NodeViews(name)
		if err != nil {
			return nil, err
		}
		vr := ViewRecord{Name: name}
		for _, nv := range views {
			vr.Nodes = append(vr.Nodes, NodeViewRecord{
				Node:  uint64(nv.Node),
				X:     nv.X,
				Y:     nv.Y,
				W:     nv.W,
				H:     nv.H,
				Style: nv.Style,
			})
		}
		snap.Views = append(snap.Views, vr)
	}

	return snap, nil
}

// Restore builds a fresh workspace from a Snapshot. Nodes are recreated
// under their original handles, then views are placed, then every link
// runs through the same validation a live Link command gets. A snapshot
// whose links no longer validate fails rather than producing a half
// wired workspace.
func Restore(ctx context.Context, reg *registry.Registry, snap *Snapshot) (*workspace.Workspace, error) {
	if snap.Version != CurrentVersion {
		return nil, fmt.Errorf("%w: unsupported archive version %d", ErrSerialization, snap.Version)
	}

	ws := workspace.New(reg)

	for _, nr := range snap.Nodes {
		seed := workspace.NodeSeed{
			ID:    node.ID(nr.ID),
			Kind:  nr.Kind,
			Label: nr.Label,
			Tags:  nr.Tags,
			State: nr.State,
		}
		if len(nr.Outputs) > 0 {
			seed.Outputs = make(map[string]value.Value, len(nr.Outputs))
			for _, pv := range nr.Outputs {
				seed.Outputs[pv.Port] = pv.Value
			}
		}
		if err := ws.RestoreNode(seed); err != nil {
			return nil, err
		}
	}

	for _, vr := range snap.Views {
		if err := ws.AddView(vr.Name); err != nil {
			return nil, err
		}
		for _, nvr := range vr.Nodes {
			nv := workspace.NodeView{
				Node:  node.ID(nvr.Node),
				X:     nvr.X,
				Y:     nvr.Y,
				W:     nvr.W,
				H:     nvr.H,
				Style: nvr.Style,
			}
			if err := ws.RestoreNodeView(vr.Name, nv); err != nil {
				return nil, err
			}
		}
	}

	for _, lr := range snap.Links {
		_, err := ws.Apply(ctx, workspace.Command{
			Op:   workspace.OpLink,
			From: node.Ref{Node: node.ID(lr.FromNode), Port: lr.FromPort},
			To:   node.Ref{Node: node.ID(lr.ToNode), Port: lr.ToPort},
		})
		if err != nil {
			return nil, fmt.Errorf("restoring link %s.%s -> %s.%s: %w",
				node.ID(lr.FromNode), lr.FromPort, node.ID(lr.ToNode), lr.ToPort, err)
		}
	}

	ws.RestoreNextID(node.ID(snap.NextID))
	return ws, nil
}
