package workspace

import (
	"fmt"

	"github.com/vk/weft/internal/node"
)

func outPortOf(e *entry, name string) (node.Port, bool) {
	for _, p := range e.n.PortsOut() {
		if p.Name == name {
			return p, true
		}
	}
	return node.Port{}, false
}

func inPortOf(e *entry, name string) (node.Port, bool) {
	for _, p := range e.n.PortsIn() {
		if p.Name == name {
			return p, true
		}
	}
	return node.Port{}, false
}

// validateLinkLocked runs the four link-creation checks in order without
// mutating anything: ports exist, contracts are compatible, the
// destination input is free, and no new non-feedback cycle appears.
// Callers hold ws.mu.
func (ws *Workspace) validateLinkLocked(from, to node.Ref) error {
	src, err := ws.entryOf(from.Node)
	if err != nil {
		return err
	}
	dst, err := ws.entryOf(to.Node)
	if err != nil {
		return err
	}
	srcPort, ok := outPortOf(src, from.Port)
	if !ok {
		return fmt.Errorf("output port %s: %w", from, ErrNotFound)
	}
	dstPort, ok := inPortOf(dst, to.Port)
	if !ok {
		return fmt.Errorf("input port %s: %w", to, ErrNotFound)
	}

	if !node.Compatible(srcPort.Contract, dstPort.Contract) {
		return fmt.Errorf("%w: %s (%s) -> %s (%s)",
			ErrContractMismatch, from, srcPort.Contract, to, dstPort.Contract)
	}

	if existing, occupied := ws.back[to]; occupied {
		return fmt.Errorf("%w: %s already fed by %s", ErrPortOccupied, to, existing)
	}

	if ws.wouldCycleLocked(from.Node, to.Node) {
		return fmt.Errorf("%w: %s -> %s", ErrCycleDetected, from, to)
	}
	return nil
}

// wouldCycleLocked reports whether linking from -> to closes a cycle that
// does not pass through a feedback node. The new edge closes a cycle
// exactly when from is reachable downstream of to; any buffered node on
// that path breaks it for scheduling, so the walk neither expands buffered
// nodes nor counts reaching a buffered from.
func (ws *Workspace) wouldCycleLocked(from, to node.ID) bool {
	buffered := func(id node.ID) bool {
		e, ok := ws.nodes[id]
		if !ok {
			return false
		}
		_, b := e.n.(node.Buffered)
		return b
	}

	visited := map[node.ID]struct{}{to: {}}
	queue := []node.ID{to}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if cur == from {
			if buffered(cur) {
				continue
			}
			return true
		}
		if buffered(cur) {
			continue
		}
		for _, next := range ws.consumerNodesLocked(cur) {
			if _, seen := visited[next]; !seen {
				visited[next] = struct{}{}
				queue = append(queue, next)
			}
		}
	}
	return false
}

// addLinkLocked wires a validated link into both adjacency maps.
func (ws *Workspace) addLinkLocked(from, to node.Ref) {
	ws.back[to] = from
	ws.fwd[from] = append(ws.fwd[from], to)
}

// removeLinkLocked unwires the link feeding the given input, if any.
func (ws *Workspace) removeLinkLocked(to node.Ref) (Link, bool) {
	from, ok := ws.back[to]
	if !ok {
		return Link{}, false
	}
	delete(ws.back, to)
	outs := ws.fwd[from]
	for i, ref := range outs {
		if ref == to {
			ws.fwd[from] = append(outs[:i], outs[i+1:]...)
			break
		}
	}
	if len(ws.fwd[from]) == 0 {
		delete(ws.fwd, from)
	}
	return Link{From: from, To: to}, true
}

// removeIncidentLinksLocked drops every link touching id and returns them.
func (ws *Workspace) removeIncidentLinksLocked(id node.ID) []Link {
	var removed []Link
	for to, from := range ws.back {
		if to.Node == id || from.Node == id {
			removed = append(removed, Link{From: from, To: to})
		}
	}
	for _, l := range removed {
		ws.removeLinkLocked(l.To)
	}
	return removed
}
