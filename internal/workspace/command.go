package workspace

import (
	"context"
	"fmt"

	"github.com/vk/weft/internal/ctxlog"
	"github.com/vk/weft/internal/node"
	"github.com/vk/weft/internal/value"
)

// Op names a discrete workspace mutation.
type Op uint8

const (
	OpAddNode Op = iota
	OpRemoveNode
	OpLink
	OpUnlink
	OpMoveNodeView
	OpAddNodeView
	OpRemoveNodeView
	OpSetValue
	OpSetNodeMeta
)

var opNames = map[Op]string{
	OpAddNode:        "add-node",
	OpRemoveNode:     "remove-node",
	OpLink:           "link",
	OpUnlink:         "unlink",
	OpMoveNodeView:   "move-node-view",
	OpAddNodeView:    "add-node-view",
	OpRemoveNodeView: "remove-node-view",
	OpSetValue:       "set-value",
	OpSetNodeMeta:    "set-node-meta",
}

func (op Op) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return fmt.Sprintf("op(%d)", uint8(op))
}

// structural reports whether the op mutates topology and therefore must be
// serialized against an in-flight propagation pass. SetValue is value-only
// and just seeds the engine.
func (op Op) structural() bool {
	switch op {
	case OpSetValue, OpMoveNodeView, OpAddNodeView, OpRemoveNodeView, OpSetNodeMeta:
		return false
	}
	return true
}

// Command is an atomic workspace mutation descriptor. Only the fields
// relevant to its Op are read.
type Command struct {
	Op Op

	Kind   string      // AddNode: node kind to instantiate
	Config value.Value // AddNode: factory configuration
	Label  string      // AddNode, SetNodeMeta
	Tags   []string    // SetNodeMeta

	Node node.ID // RemoveNode, MoveNodeView, SetValue, SetNodeMeta

	From node.Ref // Link: source output port
	To   node.Ref // Link, Unlink: destination input port

	View string  // AddNode (optional placement), MoveNodeView
	X, Y float64 // AddNode, MoveNodeView

	Value value.Value // SetValue
}

// Apply executes one command as a single transaction and returns the
// resulting ChangeSet, including any propagation it triggered. On error
// the workspace is byte-for-byte unchanged.
func (ws *Workspace) Apply(ctx context.Context, cmd Command) (*ChangeSet, error) {
	logger := ctxlog.FromContext(ctx)

	ws.mu.Lock()
	prop := ws.prop
	ws.mu.Unlock()

	if cmd.Op.structural() && prop != nil {
		prop.CancelActive()
	}

	cs, seeds, err := ws.applyTx(cmd)
	if err != nil {
		logger.Debug("Command rejected.", "op", cmd.Op.String(), "error", err)
		return nil, err
	}
	logger.Debug("Command applied.", "op", cmd.Op.String(), "seeds", len(seeds))

	if len(seeds) > 0 && prop != nil {
		passCS, err := prop.Propagate(ctx, seeds)
		cs.Merge(passCS)
		if err != nil {
			return cs, fmt.Errorf("propagation after %s: %w", cmd.Op, err)
		}
	}
	return cs, nil
}

// applyTx validates fully, then mutates, under one hold of the topology
// lock. It returns the structural ChangeSet plus the engine seeds.
func (ws *Workspace) applyTx(cmd Command) (*ChangeSet, []node.ID, error) {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	cs := NewChangeSet()

	switch cmd.Op {
	case OpAddNode:
		n, err := ws.reg.NewNode(cmd.Kind, cmd.Config)
		if err != nil {
			return nil, nil, err
		}
		if cmd.View != "" {
			if _, ok := ws.views[cmd.View]; !ok {
				return nil, nil, fmt.Errorf("view %q: %w", cmd.View, ErrNotFound)
			}
		}
		ws.nextID++
		id := ws.nextID
		ws.nodes[id] = &entry{
			id:      id,
			kind:    cmd.Kind,
			n:       n,
			label:   cmd.Label,
			outputs: make(map[string]value.Value),
		}
		cs.NodesAdded = append(cs.NodesAdded, id)
		if cmd.View != "" {
			// Validated above; cannot fail now.
			_ = ws.addNodeViewLocked(cmd.View, NodeView{Node: id, X: cmd.X, Y: cmd.Y})
			cs.ViewsChanged = append(cs.ViewsChanged, NodeViewChange{View: cmd.View, Node: id, X: cmd.X, Y: cmd.Y})
		}
		return cs, []node.ID{id}, nil

	case OpRemoveNode:
		if _, err := ws.entryOf(cmd.Node); err != nil {
			return nil, nil, err
		}
		seeds := ws.consumerNodesLocked(cmd.Node)
		removed := ws.removeIncidentLinksLocked(cmd.Node)
		for _, viewName := range ws.removeNodeViewsLocked(cmd.Node) {
			cs.ViewsChanged = append(cs.ViewsChanged, NodeViewChange{View: viewName, Node: cmd.Node, Removed: true})
		}
		delete(ws.nodes, cmd.Node)
		cs.NodesRemoved = append(cs.NodesRemoved, cmd.Node)
		cs.LinksRemoved = append(cs.LinksRemoved, removed...)
		return cs, seeds, nil

	case OpLink:
		if err := ws.validateLinkLocked(cmd.From, cmd.To); err != nil {
			return nil, nil, err
		}
		ws.addLinkLocked(cmd.From, cmd.To)
		cs.LinksAdded = append(cs.LinksAdded, Link{From: cmd.From, To: cmd.To})
		return cs, []node.ID{cmd.To.Node}, nil

	case OpUnlink:
		link, ok := ws.removeLinkLocked(cmd.To)
		if !ok {
			return nil, nil, fmt.Errorf("no link into %s: %w", cmd.To, ErrNotFound)
		}
		cs.LinksRemoved = append(cs.LinksRemoved, link)
		return cs, []node.ID{cmd.To.Node}, nil

	case OpMoveNodeView:
		v, ok := ws.views[cmd.View]
		if !ok {
			return nil, nil, fmt.Errorf("view %q: %w", cmd.View, ErrNotFound)
		}
		nv, ok := v.nodes[cmd.Node]
		if !ok {
			return nil, nil, fmt.Errorf("node %s in view %q: %w", cmd.Node, cmd.View, ErrNotFound)
		}
		nv.X, nv.Y = cmd.X, cmd.Y
		cs.ViewsChanged = append(cs.ViewsChanged, NodeViewChange{View: cmd.View, Node: cmd.Node, X: cmd.X, Y: cmd.Y})
		return cs, nil, nil

	case OpAddNodeView:
		if err := ws.addNodeViewLocked(cmd.View, NodeView{Node: cmd.Node, X: cmd.X, Y: cmd.Y}); err != nil {
			return nil, nil, err
		}
		cs.ViewsChanged = append(cs.ViewsChanged, NodeViewChange{View: cmd.View, Node: cmd.Node, X: cmd.X, Y: cmd.Y})
		return cs, nil, nil

	case OpRemoveNodeView:
		v, ok := ws.views[cmd.View]
		if !ok {
			return nil, nil, fmt.Errorf("view %q: %w", cmd.View, ErrNotFound)
		}
		if _, ok := v.nodes[cmd.Node]; !ok {
			return nil, nil, fmt.Errorf("node %s in view %q: %w", cmd.Node, cmd.View, ErrNotFound)
		}
		delete(v.nodes, cmd.Node)
		cs.ViewsChanged = append(cs.ViewsChanged, NodeViewChange{View: cmd.View, Node: cmd.Node, Removed: true})
		return cs, nil, nil

	case OpSetValue:
		e, err := ws.entryOf(cmd.Node)
		if err != nil {
			return nil, nil, err
		}
		settable, ok := e.n.(node.Settable)
		if !ok {
			return nil, nil, fmt.Errorf("node %s (kind %q): %w", cmd.Node, e.kind, ErrNotSettable)
		}
		// The node may be executing in an in-flight pass; execMu keeps the
		// write from interleaving with its Execute.
		e.execMu.Lock()
		err = settable.Set(cmd.Value)
		e.execMu.Unlock()
		if err != nil {
			return nil, nil, fmt.Errorf("set value on %s: %w", cmd.Node, err)
		}
		return cs, []node.ID{cmd.Node}, nil

	case OpSetNodeMeta:
		e, err := ws.entryOf(cmd.Node)
		if err != nil {
			return nil, nil, err
		}
		e.label = cmd.Label
		e.tags = append([]string(nil), cmd.Tags...)
		return cs, nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown command op %d", cmd.Op)
	}
}
