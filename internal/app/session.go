package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/vk/weft/internal/archive"
	"github.com/vk/weft/internal/ctxlog"
	"github.com/vk/weft/internal/keymap"
	"github.com/vk/weft/internal/node"
	"github.com/vk/weft/internal/workspace"
)

const defaultView = "main"

// session is the editing state around the workspace: the dispatcher, the
// active view, the selected node and the mark used for two-step linking.
type session struct {
	app *App

	mu         sync.Mutex
	dispatcher *keymap.Dispatcher
	activeView string
	selected   node.ID
	marked     node.ID
}

func newSession(a *App, keys *keymap.Set) *session {
	return &session{
		app:        a,
		dispatcher: keymap.NewDispatcher(keys),
		activeView: defaultView,
	}
}

// swapKeymap installs a freshly validated keymap set.
func (s *session) swapKeymap(set *keymap.Set) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dispatcher.SwapSet(set)
}

// handleKey feeds one key into the dispatcher and executes any completed
// chord. It reports whether the session should end.
func (s *session) handleKey(ctx context.Context, k keymap.Key) (quit bool) {
	s.mu.Lock()
	inv := s.dispatcher.HandleKey(k, s.app.now())
	s.mu.Unlock()
	if inv == nil {
		return false
	}
	return s.execute(ctx, inv)
}

// execute runs one resolved invocation. Command failures are reported and
// logged, never fatal; the workspace rejects anything invalid atomically.
func (s *session) execute(ctx context.Context, inv *keymap.Invocation) (quit bool) {
	logger := ctxlog.FromContext(ctx)

	if inv.Command == keymap.CommandEnterMode {
		s.mu.Lock()
		mode := s.dispatcher.Mode()
		s.mu.Unlock()
		fmt.Fprintf(s.app.outW, "-- %s --\n", mode)
		return false
	}
	if inv.Command == "quit" {
		return true
	}

	cs, err := s.run(ctx, inv)
	if err != nil {
		logger.Warn("Command failed.", "command", inv.Command, "error", err)
		fmt.Fprintf(s.app.outW, "error: %s: %v\n", inv.Command, err)
		return false
	}
	if cs != nil {
		s.app.report(ctx, inv.Command, cs)
	}
	return false
}

func (s *session) run(ctx context.Context, inv *keymap.Invocation) (*workspace.ChangeSet, error) {
	ws := s.app.ws

	switch inv.Command {
	case "save":
		path := argString(inv, "path", s.app.config.WorkspacePath)
		if path == "" {
			return nil, fmt.Errorf("no workspace path configured and none given")
		}
		return nil, archive.Save(ctx, ws, path)

	case "add-node":
		kind := argString(inv, "kind", "")
		if kind == "" {
			return nil, fmt.Errorf("add-node needs a kind argument")
		}
		cs, err := ws.Apply(ctx, workspace.Command{
			Op:     workspace.OpAddNode,
			Kind:   kind,
			Config: argValue(inv, "config"),
			Label:  argString(inv, "label", ""),
			View:   s.currentView(),
			X:      argFloat(inv, "x", 0),
			Y:      argFloat(inv, "y", 0),
		})
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.selected = cs.NodesAdded[0]
		s.mu.Unlock()
		return cs, nil

	case "remove-node":
		id, err := s.selection()
		if err != nil {
			return nil, err
		}
		cs, err := ws.Apply(ctx, workspace.Command{Op: workspace.OpRemoveNode, Node: id})
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		if s.selected == id {
			s.selected = 0
		}
		if s.marked == id {
			s.marked = 0
		}
		s.mu.Unlock()
		return cs, nil

	case "select-next", "select-prev":
		return nil, s.cycleSelection(inv.Command == "select-prev")

	case "mark":
		id, err := s.selection()
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.marked = id
		s.mu.Unlock()
		fmt.Fprintf(s.app.outW, "marked %s\n", id)
		return nil, nil

	case "link":
		s.mu.Lock()
		from := s.marked
		s.mu.Unlock()
		if from == 0 {
			return nil, fmt.Errorf("link needs a marked source node")
		}
		to, err := s.selection()
		if err != nil {
			return nil, err
		}
		return ws.Apply(ctx, workspace.Command{
			Op:   workspace.OpLink,
			From: node.Ref{Node: from, Port: argString(inv, "from_port", "out")},
			To:   node.Ref{Node: to, Port: argString(inv, "to_port", "in")},
		})

	case "unlink":
		id, err := s.selection()
		if err != nil {
			return nil, err
		}
		return ws.Apply(ctx, workspace.Command{
			Op: workspace.OpUnlink,
			To: node.Ref{Node: id, Port: argString(inv, "port", "in")},
		})

	case "set-value":
		id, err := s.selection()
		if err != nil {
			return nil, err
		}
		return ws.Apply(ctx, workspace.Command{
			Op:    workspace.OpSetValue,
			Node:  id,
			Value: argValue(inv, "value"),
		})

	case "move":
		id, err := s.selection()
		if err != nil {
			return nil, err
		}
		views, err := ws.NodeViews(s.currentView())
		if err != nil {
			return nil, err
		}
		for _, nv := range views {
			if nv.Node != id {
				continue
			}
			return ws.Apply(ctx, workspace.Command{
				Op:   workspace.OpMoveNodeView,
				View: s.currentView(),
				Node: id,
				X:    nv.X + argFloat(inv, "dx", 0),
				Y:    nv.Y + argFloat(inv, "dy", 0),
			})
		}
		return nil, fmt.Errorf("node %s is not placed in view %q", id, s.currentView())

	case "place":
		id, err := s.selection()
		if err != nil {
			return nil, err
		}
		return ws.Apply(ctx, workspace.Command{
			Op:   workspace.OpAddNodeView,
			View: argString(inv, "view", s.currentView()),
			Node: id,
			X:    argFloat(inv, "x", 0),
			Y:    argFloat(inv, "y", 0),
		})

	case "unplace":
		id, err := s.selection()
		if err != nil {
			return nil, err
		}
		return ws.Apply(ctx, workspace.Command{
			Op:   workspace.OpRemoveNodeView,
			View: argString(inv, "view", s.currentView()),
			Node: id,
		})

	case "label":
		id, err := s.selection()
		if err != nil {
			return nil, err
		}
		return ws.Apply(ctx, workspace.Command{
			Op:    workspace.OpSetNodeMeta,
			Node:  id,
			Label: argString(inv, "label", ""),
		})

	default:
		return nil, fmt.Errorf("unknown command %q", inv.Command)
	}
}

func (s *session) currentView() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeView
}

func (s *session) selection() (node.ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == 0 {
		return 0, fmt.Errorf("no node selected")
	}
	return s.selected, nil
}

// cycleSelection moves the selection through the node handles in order,
// wrapping around.
func (s *session) cycleSelection(backward bool) error {
	ids := s.app.ws.NodeIDs()
	if len(ids) == 0 {
		return fmt.Errorf("workspace is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pos := -1
	for i, id := range ids {
		if id == s.selected {
			pos = i
			break
		}
	}
	switch {
	case pos < 0:
		pos = 0
	case backward:
		pos = (pos - 1 + len(ids)) % len(ids)
	default:
		pos = (pos + 1) % len(ids)
	}
	s.selected = ids[pos]
	fmt.Fprintf(s.app.outW, "selected %s\n", s.selected)
	return nil
}
