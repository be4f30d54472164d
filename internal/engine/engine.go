package engine

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/vk/weft/internal/ctxlog"
	"github.com/vk/weft/internal/node"
	"github.com/vk/weft/internal/value"
	"github.com/vk/weft/internal/workspace"
)

// Engine runs propagation passes over one workspace. It implements
// workspace.Propagator.
type Engine struct {
	ws *workspace.Workspace

	// runMu is held for the duration of one pass; structural mutations
	// acquire it (via CancelActive) to know the topology is quiescent.
	runMu sync.Mutex

	mu      sync.Mutex
	cancel  context.CancelFunc
	pending map[node.ID]struct{} // feedback nodes owed a step next pass
}

// New creates an engine bound to ws and attaches it as the workspace's
// propagator.
func New(ws *workspace.Workspace) *Engine {
	e := &Engine{ws: ws, pending: make(map[node.ID]struct{})}
	ws.SetPropagator(e)
	return e
}

// CancelActive interrupts the in-flight pass, if any, and returns once the
// pass has unwound. Levels already joined keep their committed values; the
// level in flight is discarded.
func (e *Engine) CancelActive() {
	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
	}
	e.mu.Unlock()

	// Barrier: taking runMu waits out the tail of the canceled pass.
	e.runMu.Lock()
	e.runMu.Unlock() //nolint:staticcheck

}

// Propagate runs one pass seeded by the given nodes plus any feedback
// nodes owed a buffered step from the previous pass. It returns a
// ChangeSet of every committed value change; the only error it returns is
// cancellation.
func (e *Engine) Propagate(ctx context.Context, seeds []node.ID) (*workspace.ChangeSet, error) {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	passCtx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.cancel = cancel
	for id := range e.pending {
		seeds = append(seeds, id)
	}
	e.pending = make(map[node.ID]struct{})
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.cancel = nil
		e.mu.Unlock()
		cancel()
	}()

	return e.runPass(passCtx, seeds)
}

// pass bookkeeping for one propagation sweep.
type pass struct {
	remaining    map[node.ID]struct{} // dirty, not yet resolved this pass
	depCount     map[node.ID]int      // pending dirty producers
	seeded       map[node.ID]struct{} // must execute regardless of input diffing
	inputChanged map[node.ID]struct{} // an input value committed a change
}

type execResult struct {
	id  node.ID
	out map[string]value.Value
	err error
}

func (e *Engine) runPass(ctx context.Context, seeds []node.ID) (*workspace.ChangeSet, error) {
	logger := ctxlog.FromContext(ctx)
	cs := workspace.NewChangeSet()

	p := e.markDirty(seeds)
	logger.Debug("Propagation pass starting.", "seeds", len(seeds), "dirty", len(p.remaining))

	for len(p.remaining) > 0 {
		if err := ctx.Err(); err != nil {
			logger.Debug("Propagation pass canceled.", "undone", len(p.remaining))
			return cs, err
		}

		level := p.nextLevel()
		if len(level) == 0 {
			// Every remaining node still waits on a dirty producer; with
			// feedback nodes ungated this means the remainder is clean.
			break
		}

		results, toRun := e.executeLevel(ctx, level, p)
		if err := ctx.Err(); err != nil {
			// Discard the un-joined level; earlier commits stay valid.
			logger.Debug("Level discarded on cancellation.", "level_size", len(toRun))
			return cs, err
		}
		e.commitLevel(ctx, results, p, cs)
	}

	logger.Debug("Propagation pass finished.", "changed_nodes", len(cs.ValuesChanged))
	return cs, nil
}

// markDirty seeds the pass: breadth-first marks every transitive consumer
// of the seeds dirty and counts each dirty node's dirty producers.
// Feedback kinds never gate on producers.
func (e *Engine) markDirty(seeds []node.ID) *pass {
	p := &pass{
		remaining:    make(map[node.ID]struct{}),
		depCount:     make(map[node.ID]int),
		seeded:       make(map[node.ID]struct{}),
		inputChanged: make(map[node.ID]struct{}),
	}

	queue := make([]node.ID, 0, len(seeds))
	for _, id := range seeds {
		if _, ok := p.remaining[id]; ok {
			continue
		}
		if _, err := e.ws.Instance(id); err != nil {
			continue // removed between seeding and the pass
		}
		p.remaining[id] = struct{}{}
		p.seeded[id] = struct{}{}
		queue = append(queue, id)
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, consumer := range e.ws.ConsumerNodes(cur) {
			if _, seen := p.remaining[consumer]; seen {
				continue
			}
			p.remaining[consumer] = struct{}{}
			queue = append(queue, consumer)
		}
	}

	for id := range p.remaining {
		if e.ws.IsBuffered(id) {
			p.depCount[id] = 0
			continue
		}
		count := 0
		for _, producer := range e.ws.ProducerNodes(id) {
			if producer == id {
				continue
			}
			if _, dirty := p.remaining[producer]; dirty {
				count++
			}
		}
		p.depCount[id] = count
	}
	return p
}

// nextLevel collects the dirty nodes whose producers are all resolved.
func (p *pass) nextLevel() []node.ID {
	var level []node.ID
	for id := range p.remaining {
		if p.depCount[id] == 0 {
			level = append(level, id)
		}
	}
	return level
}

// executeLevel runs one topological level. Nodes whose inputs did not
// change and that were not seeded resolve silently without executing;
// the rest run concurrently under a single joined group.
func (e *Engine) executeLevel(ctx context.Context, level []node.ID, p *pass) ([]execResult, []node.ID) {
	var toRun []node.ID
	for _, id := range level {
		delete(p.remaining, id)
		_, seeded := p.seeded[id]
		_, changed := p.inputChanged[id]
		if seeded || changed {
			toRun = append(toRun, id)
		} else {
			// Memoized: nothing upstream changed, stays clean.
			e.releaseConsumers(id, p)
		}
	}

	results := make([]execResult, len(toRun))
	g, groupCtx := errgroup.WithContext(ctx)
	for i, id := range toRun {
		i, id := i, id
		g.Go(func() error {
			inputs, err := e.ws.GatherInputs(id)
			if err != nil {
				results[i] = execResult{id: id, err: err}
				return nil
			}
			// ExecuteNode serializes against SetValue on the same node.
			out, err := e.ws.ExecuteNode(groupCtx, id, inputs)
			results[i] = execResult{id: id, out: out, err: err}
			return nil
		})
	}
	// Join the whole level before committing anything. Worker funcs never
	// return errors, so Wait only reflects panics in the group machinery.
	_ = g.Wait()
	return results, toRun
}

// commitLevel stores the joined level's outputs, records changes, and
// releases each node's consumers for the next level.
func (e *Engine) commitLevel(ctx context.Context, results []execResult, p *pass, cs *workspace.ChangeSet) {
	logger := ctxlog.FromContext(ctx)
	for _, res := range results {
		out := res.out
		if res.err != nil {
			execErr := &node.ExecutionError{ID: res.id, Err: res.err}
			logger.Warn("Node execution failed; emitting error values.", "nodeID", res.id, "error", execErr)
			e.ws.SetUnresolved(res.id, true)
			out = e.errorOutputs(res.id, execErr)
		} else {
			e.ws.SetUnresolved(res.id, false)
		}

		changedPorts, err := e.ws.CommitOutputs(res.id, out)
		if err != nil {
			continue // node vanished mid-pass
		}
		committed, _ := e.ws.Outputs(res.id)
		for _, port := range changedPorts {
			cs.RecordValue(res.id, port, committed[port])
			for _, dst := range e.ws.ConsumersOf(node.Ref{Node: res.id, Port: port}) {
				if _, waiting := p.remaining[dst.Node]; waiting {
					p.inputChanged[dst.Node] = struct{}{}
				} else if e.ws.IsBuffered(dst.Node) {
					// The feedback node already ran this pass; it is owed
					// one buffered step on the next one.
					e.mu.Lock()
					e.pending[dst.Node] = struct{}{}
					e.mu.Unlock()
				}
			}
		}
		e.releaseConsumers(res.id, p)
	}
}

// releaseConsumers decrements the pending-producer count of every dirty
// consumer of id.
func (e *Engine) releaseConsumers(id node.ID, p *pass) {
	for _, consumer := range e.ws.ConsumerNodes(id) {
		if _, waiting := p.remaining[consumer]; !waiting {
			continue
		}
		if p.depCount[consumer] > 0 {
			p.depCount[consumer]--
		}
	}
}

// errorOutputs builds an error-carrying value for every declared output
// port of a failed node.
func (e *Engine) errorOutputs(id node.ID, execErr *node.ExecutionError) map[string]value.Value {
	out := make(map[string]value.Value)
	inst, err := e.ws.Instance(id)
	if err != nil {
		return out
	}
	errVal := value.ErrorVal(execErr.Error())
	for _, port := range inst.PortsOut() {
		out[port.Name] = errVal
	}
	return out
}
