package workspace

import (
	"fmt"
	"sort"

	"github.com/vk/weft/internal/node"
)

// NodeView is per-view spatial placement of a node: a back-reference plus
// geometry and view-local style. It never owns the node it points at.
type NodeView struct {
	Node  node.ID
	X, Y  float64
	W, H  float64
	Style string
}

// View is a named collection of NodeView entries, purely presentational.
type View struct {
	name  string
	nodes map[node.ID]*NodeView
}

// Name returns the view's name.
func (v *View) Name() string { return v.name }

// AddView creates a new empty view.
func (ws *Workspace) AddView(name string) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if _, ok := ws.views[name]; ok {
		return fmt.Errorf("view %q: %w", name, ErrViewExists)
	}
	ws.views[name] = &View{name: name, nodes: make(map[node.ID]*NodeView)}
	return nil
}

// RemoveView drops a view and all its NodeViews. The nodes themselves are
// untouched.
func (ws *Workspace) RemoveView(name string) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if _, ok := ws.views[name]; !ok {
		return fmt.Errorf("view %q: %w", name, ErrNotFound)
	}
	delete(ws.views, name)
	return nil
}

// ViewNames lists the views in name order.
func (ws *Workspace) ViewNames() []string {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	names := make([]string, 0, len(ws.views))
	for name := range ws.views {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NodeViews enumerates a view's placements for rendering, ordered by node
// handle for determinism.
func (ws *Workspace) NodeViews(view string) ([]NodeView, error) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	v, ok := ws.views[view]
	if !ok {
		return nil, fmt.Errorf("view %q: %w", view, ErrNotFound)
	}
	out := make([]NodeView, 0, len(v.nodes))
	for _, nv := range v.nodes {
		out = append(out, *nv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Node < out[j].Node })
	return out, nil
}

// addNodeViewLocked validates referential validity and places a node in a
// view. Callers hold ws.mu.
func (ws *Workspace) addNodeViewLocked(view string, nv NodeView) error {
	v, ok := ws.views[view]
	if !ok {
		return fmt.Errorf("view %q: %w", view, ErrNotFound)
	}
	if _, err := ws.entryOf(nv.Node); err != nil {
		return err
	}
	clone := nv
	v.nodes[nv.Node] = &clone
	return nil
}

// removeNodeViewsLocked drops every placement of id across all views and
// reports which views were touched.
func (ws *Workspace) removeNodeViewsLocked(id node.ID) []string {
	var touched []string
	for name, v := range ws.views {
		if _, ok := v.nodes[id]; ok {
			delete(v.nodes, id)
			touched = append(touched, name)
		}
	}
	sort.Strings(touched)
	return touched
}
