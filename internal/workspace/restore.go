package workspace

import (
	"fmt"

	"github.com/vk/weft/internal/node"
	"github.com/vk/weft/internal/value"
)

// NodeSeed describes one node to recreate during an archive load: the
// handle it held, its kind and metadata, the state snapshot to push back
// into the instance, and the last committed outputs.
type NodeSeed struct {
	ID      node.ID
	Kind    string
	Label   string
	Tags    []string
	State   value.Value // Empty when the kind keeps no state
	Outputs map[string]value.Value
}

// RestoreNode recreates a node under its original handle. The instance is
// built fresh from the registry and, when the kind is stateful, fed the
// persisted state. The handle counter advances past the restored id so
// handles are never reissued.
func (ws *Workspace) RestoreNode(seed NodeSeed) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if seed.ID == 0 {
		return fmt.Errorf("restore node: zero handle")
	}
	if _, ok := ws.nodes[seed.ID]; ok {
		return fmt.Errorf("restore node %s: handle already in use", seed.ID)
	}

	n, err := ws.reg.NewNode(seed.Kind, value.EmptyVal())
	if err != nil {
		return fmt.Errorf("restore node %s: %w", seed.ID, err)
	}
	if seed.State.Kind() != value.KindEmpty {
		st, ok := n.(node.Stateful)
		if !ok {
			return fmt.Errorf("restore node %s: kind %q carries state but is not stateful", seed.ID, seed.Kind)
		}
		if err := st.Restore(seed.State); err != nil {
			return fmt.Errorf("restore node %s state: %w", seed.ID, err)
		}
	}

	outputs := make(map[string]value.Value, len(seed.Outputs))
	for port, v := range seed.Outputs {
		outputs[port] = v
	}
	ws.nodes[seed.ID] = &entry{
		id:      seed.ID,
		kind:    seed.Kind,
		n:       n,
		label:   seed.Label,
		tags:    append([]string(nil), seed.Tags...),
		outputs: outputs,
	}
	if seed.ID > ws.nextID {
		ws.nextID = seed.ID
	}
	return nil
}

// RestoreNodeView places a node in an existing view with persisted
// geometry.
func (ws *Workspace) RestoreNodeView(view string, nv NodeView) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.addNodeViewLocked(view, nv)
}

// RestoreNextID advances the handle counter to at least next. Loading
// honors the persisted counter even when trailing nodes were deleted, so
// a reloaded workspace never hands out a handle the archive already saw.
func (ws *Workspace) RestoreNextID(next node.ID) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if next > ws.nextID {
		ws.nextID = next
	}
}

// NextID returns the current handle counter for persistence.
func (ws *Workspace) NextID() node.ID {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.nextID
}
