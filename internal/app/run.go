package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/vk/weft/internal/ctxlog"
	"github.com/vk/weft/internal/keymap"
	"github.com/vk/weft/internal/node"
	"github.com/vk/weft/internal/workspace"
)

// Run executes the key loop: read key notation tokens from inW, feed them
// through the dispatcher, apply the resulting commands. It returns when
// the input ends, the context is canceled or a quit command fires.
func (a *App) Run(ctx context.Context, inW io.Reader) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.emitter != nil {
		defer a.emitter.Close()
	}

	if a.config.WatchKeymap {
		watchCtx, stopWatch := context.WithCancel(ctx)
		defer stopWatch()
		go func() {
			if err := keymap.Watch(watchCtx, a.config.KeymapPath, a.session.swapKeymap); err != nil {
				a.logger.Warn("Keymap watcher stopped.", "error", err)
			}
		}()
	}

	scanner := bufio.NewScanner(inW)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, token := range strings.Fields(scanner.Text()) {
			keys, err := keymap.ParseChord(token)
			if err != nil {
				fmt.Fprintf(a.outW, "error: %v\n", err)
				continue
			}
			for _, k := range keys {
				if quit := a.session.handleKey(ctx, k); quit {
					a.logger.Debug("Quit command received.")
					return nil
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	a.logger.Debug("App.Run method finished.")
	return nil
}

// report surfaces one applied command's ChangeSet to the user and the
// renderer.
func (a *App) report(ctx context.Context, command string, cs *workspace.ChangeSet) {
	logger := ctxlog.FromContext(ctx)
	logger.Info("Command applied.", "command", command,
		"nodes_added", len(cs.NodesAdded), "nodes_removed", len(cs.NodesRemoved),
		"links_added", len(cs.LinksAdded), "links_removed", len(cs.LinksRemoved),
		"values_changed", len(cs.ValuesChanged))

	ids := make([]node.ID, 0, len(cs.ValuesChanged))
	for id := range cs.ValuesChanged {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		ports := make([]string, 0, len(cs.ValuesChanged[id]))
		for port := range cs.ValuesChanged[id] {
			ports = append(ports, port)
		}
		sort.Strings(ports)
		for _, port := range ports {
			fmt.Fprintf(a.outW, "%s.%s = %s\n", id, port, cs.ValuesChanged[id][port])
		}
	}

	if a.emitter != nil {
		a.emitter.EmitChangeSet(ctx, cs)
	}
}
