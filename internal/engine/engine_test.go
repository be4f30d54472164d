package engine

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/weft/internal/node"
	"github.com/vk/weft/internal/registry"
	"github.com/vk/weft/internal/value"
	"github.com/vk/weft/internal/workspace"
	"github.com/vk/weft/modules/arith"
	"github.com/vk/weft/modules/constant"
	"github.com/vk/weft/modules/errorprobe"
	"github.com/vk/weft/modules/feedback"
)

// recorder collects what capture nodes observed, across goroutines.
type recorder struct {
	mu     sync.Mutex
	events []captureEvent
}

type captureEvent struct {
	name string
	val  value.Value
}

func (r *recorder) record(name string, v value.Value) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, captureEvent{name: name, val: v})
}

func (r *recorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.name
	}
	return out
}

func (r *recorder) last() (captureEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return captureEvent{}, false
	}
	return r.events[len(r.events)-1], true
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// captureNode records each input it executes on and echoes it.
type captureNode struct {
	name string
	rec  *recorder
}

func (c *captureNode) PortsIn() []node.Port {
	return []node.Port{{Name: "in", Contract: node.Any()}}
}

func (c *captureNode) PortsOut() []node.Port {
	return []node.Port{{Name: "out", Contract: node.Any()}}
}

func (c *captureNode) Execute(ctx context.Context, in map[string]value.Value) (map[string]value.Value, error) {
	c.rec.record(c.name, in["in"])
	return map[string]value.Value{"out": in["in"]}, nil
}

// blockNode passes values through until armed, then parks until its
// context is canceled.
type blockNode struct {
	arm     <-chan struct{}
	started chan struct{}
}

func (b *blockNode) PortsIn() []node.Port {
	return []node.Port{{Name: "in", Contract: node.Any()}}
}

func (b *blockNode) PortsOut() []node.Port {
	return []node.Port{{Name: "out", Contract: node.Any()}}
}

func (b *blockNode) Execute(ctx context.Context, in map[string]value.Value) (map[string]value.Value, error) {
	select {
	case <-b.arm:
	default:
		return map[string]value.Value{"out": in["in"]}, nil
	}
	select {
	case b.started <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func testRegistry(t *testing.T, rec *recorder) *registry.Registry {
	t.Helper()
	r := registry.New()
	for _, m := range []registry.Module{
		&constant.Module{}, &arith.Module{}, &feedback.Module{}, &errorprobe.Module{},
	} {
		m.Register(r)
	}
	r.RegisterKind("capture", func(cfg value.Value) (node.Node, error) {
		name := ""
		if cfg.Kind() == value.KindString {
			name = cfg.Str()
		}
		return &captureNode{name: name, rec: rec}, nil
	})
	return r
}

type rig struct {
	ws  *workspace.Workspace
	rec *recorder
}

func newRig(t *testing.T) *rig {
	t.Helper()
	rec := &recorder{}
	ws := workspace.New(testRegistry(t, rec))
	New(ws)
	return &rig{ws: ws, rec: rec}
}

func (r *rig) add(t *testing.T, kind string, cfg value.Value) node.ID {
	t.Helper()
	cs, err := r.ws.Apply(context.Background(), workspace.Command{Op: workspace.OpAddNode, Kind: kind, Config: cfg})
	require.NoError(t, err)
	return cs.NodesAdded[0]
}

func (r *rig) link(t *testing.T, from, to node.Ref) *workspace.ChangeSet {
	t.Helper()
	cs, err := r.ws.Apply(context.Background(), workspace.Command{Op: workspace.OpLink, From: from, To: to})
	require.NoError(t, err)
	return cs
}

func (r *rig) set(t *testing.T, id node.ID, v value.Value) *workspace.ChangeSet {
	t.Helper()
	cs, err := r.ws.Apply(context.Background(), workspace.Command{Op: workspace.OpSetValue, Node: id, Value: v})
	require.NoError(t, err)
	return cs
}

func (r *rig) out(t *testing.T, id node.ID, port string) value.Value {
	t.Helper()
	outputs, err := r.ws.Outputs(id)
	require.NoError(t, err)
	v, ok := outputs[port]
	require.True(t, ok, "no committed value on port %q", port)
	return v
}

func TestSumPipeline(t *testing.T) {
	t.Parallel()
	r := newRig(t)

	a := r.add(t, "constant", value.I64Val(5))
	b := r.add(t, "constant", value.I64Val(7))
	c := r.add(t, "sum", value.EmptyVal())

	r.link(t, node.Ref{Node: a, Port: "out"}, node.Ref{Node: c, Port: "x"})
	cs := r.link(t, node.Ref{Node: b, Port: "out"}, node.Ref{Node: c, Port: "y"})

	assert.True(t, r.out(t, c, "out").Equal(value.I64Val(12)))
	assert.Empty(t, r.ws.Unresolved())
	require.Contains(t, cs.ValuesChanged, c, "the final link's propagation must report the new sum")
}

func TestSetValueRepropagates(t *testing.T) {
	t.Parallel()
	r := newRig(t)

	a := r.add(t, "constant", value.I64Val(5))
	b := r.add(t, "constant", value.I64Val(7))
	c := r.add(t, "sum", value.EmptyVal())
	d := r.add(t, "capture", value.StringVal("d"))

	r.link(t, node.Ref{Node: a, Port: "out"}, node.Ref{Node: c, Port: "x"})
	r.link(t, node.Ref{Node: b, Port: "out"}, node.Ref{Node: c, Port: "y"})
	r.link(t, node.Ref{Node: c, Port: "out"}, node.Ref{Node: d, Port: "in"})

	r.set(t, a, value.I64Val(10))

	assert.True(t, r.out(t, c, "out").Equal(value.I64Val(17)))
	last, ok := r.rec.last()
	require.True(t, ok)
	assert.True(t, last.val.Equal(value.I64Val(17)))
}

func TestUnchangedValueStopsPropagation(t *testing.T) {
	t.Parallel()
	r := newRig(t)

	a := r.add(t, "constant", value.I64Val(5))
	d := r.add(t, "capture", value.StringVal("d"))
	r.link(t, node.Ref{Node: a, Port: "out"}, node.Ref{Node: d, Port: "in"})

	before := r.rec.count()

	// Same value again: the source re-executes but commits no change, so
	// its consumers stay memoized.
	cs := r.set(t, a, value.I64Val(5))

	assert.Equal(t, before, r.rec.count(), "consumer must not re-execute on an unchanged input")
	assert.True(t, cs.Empty())
}

func TestTopologicalOrdering(t *testing.T) {
	t.Parallel()
	r := newRig(t)

	a := r.add(t, "constant", value.I64Val(1))
	b := r.add(t, "capture", value.StringVal("b"))
	c := r.add(t, "capture", value.StringVal("c"))

	r.link(t, node.Ref{Node: a, Port: "out"}, node.Ref{Node: b, Port: "in"})
	r.link(t, node.Ref{Node: b, Port: "out"}, node.Ref{Node: c, Port: "in"})

	start := r.rec.count()
	r.set(t, a, value.I64Val(2))

	names := r.rec.names()[start:]
	require.Equal(t, []string{"b", "c"}, names, "a consumer runs only after its producer committed")
	last, _ := r.rec.last()
	assert.True(t, last.val.Equal(value.I64Val(2)))
}

func TestExecutionFailureEmitsErrorValues(t *testing.T) {
	t.Parallel()
	r := newRig(t)

	a := r.add(t, "constant", value.I64Val(5))
	p := r.add(t, "errorprobe", value.StringVal("boom"))
	d := r.add(t, "capture", value.StringVal("d"))

	r.link(t, node.Ref{Node: a, Port: "out"}, node.Ref{Node: p, Port: "in"})
	r.link(t, node.Ref{Node: p, Port: "out"}, node.Ref{Node: d, Port: "in"})

	out := r.out(t, p, "out")
	require.Equal(t, value.KindError, out.Kind())
	assert.Contains(t, out.ErrorMessage(), "boom")

	assert.Equal(t, []node.ID{p}, r.ws.Unresolved())

	last, ok := r.rec.last()
	require.True(t, ok)
	assert.Equal(t, value.KindError, last.val.Kind(), "downstream sees the failure as a value, not silence")
}

func TestFeedbackDelaysOneStep(t *testing.T) {
	t.Parallel()
	r := newRig(t)

	a := r.add(t, "constant", value.I64Val(0))
	f := r.add(t, "feedback", value.EmptyVal())
	d := r.add(t, "capture", value.StringVal("d"))

	r.link(t, node.Ref{Node: a, Port: "out"}, node.Ref{Node: f, Port: "in"})
	r.link(t, node.Ref{Node: f, Port: "out"}, node.Ref{Node: d, Port: "in"})

	// Each pass the feedback node emits what it buffered the pass before,
	// so the capture node always trails the source.
	r.set(t, a, value.I64Val(1))
	r.set(t, a, value.I64Val(2))
	last, ok := r.rec.last()
	require.True(t, ok)
	require.True(t, last.val.Equal(value.I64Val(0)), "got %s", last.val)

	r.set(t, a, value.I64Val(3))
	last, ok = r.rec.last()
	require.True(t, ok)
	assert.True(t, last.val.Equal(value.I64Val(1)), "got %s", last.val)
}

func TestStructuralCancelInterruptsPass(t *testing.T) {
	t.Parallel()

	r := registry.New()
	(&constant.Module{}).Register(r)
	arm := make(chan struct{}, 1)
	started := make(chan struct{}, 1)
	r.RegisterKind("block", func(cfg value.Value) (node.Node, error) {
		return &blockNode{arm: arm, started: started}, nil
	})

	ws := workspace.New(r)
	New(ws)

	cs, err := ws.Apply(context.Background(), workspace.Command{Op: workspace.OpAddNode, Kind: "constant", Config: value.I64Val(1)})
	require.NoError(t, err)
	a := cs.NodesAdded[0]
	cs, err = ws.Apply(context.Background(), workspace.Command{Op: workspace.OpAddNode, Kind: "block"})
	require.NoError(t, err)
	b := cs.NodesAdded[0]
	_, err = ws.Apply(context.Background(), workspace.Command{
		Op:   workspace.OpLink,
		From: node.Ref{Node: a, Port: "out"},
		To:   node.Ref{Node: b, Port: "in"},
	})
	require.NoError(t, err)

	// Arm the block node, then change the source: that pass parks inside
	// the node until a structural command cancels it from another
	// goroutine.
	arm <- struct{}{}
	errCh := make(chan error, 1)
	go func() {
		_, err := ws.Apply(context.Background(), workspace.Command{Op: workspace.OpSetValue, Node: a, Value: value.I64Val(2)})
		errCh <- err
	}()

	<-started
	_, addErr := ws.Apply(context.Background(), workspace.Command{Op: workspace.OpAddNode, Kind: "constant", Config: value.I64Val(9)})
	require.NoError(t, addErr, "the structural command must win against the running pass")

	setErr := <-errCh
	require.Error(t, setErr)
	assert.ErrorIs(t, setErr, context.Canceled)
}

func TestConcurrentSetValueStaysConsistent(t *testing.T) {
	t.Parallel()
	r := newRig(t)

	src := r.add(t, "constant", value.I64Val(0))
	sink := r.add(t, "capture", value.StringVal("c"))
	r.link(t, node.Ref{Node: src, Port: "out"}, node.Ref{Node: sink, Port: "in"})

	// Two writers race value-only mutations while each other's passes are
	// executing the node; Set is serialized with Execute, so every value
	// the pipeline observes is one that was actually set.
	const rounds = 50
	var wg sync.WaitGroup
	for w := 0; w < 2; w++ {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				v := value.I64Val(int64(w*rounds + i + 1))
				_, err := r.ws.Apply(context.Background(), workspace.Command{
					Op: workspace.OpSetValue, Node: src, Value: v,
				})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	got := r.out(t, src, "out")
	require.Equal(t, value.KindI64, got.Kind())
	assert.GreaterOrEqual(t, got.I64(), int64(1))
	assert.LessOrEqual(t, got.I64(), int64(2*rounds))

	// Every captured value is well formed and within the written range
	// (the initial 0 included).
	r.rec.mu.Lock()
	defer r.rec.mu.Unlock()
	for _, ev := range r.rec.events {
		require.Equal(t, value.KindI64, ev.val.Kind())
		assert.GreaterOrEqual(t, ev.val.I64(), int64(0))
		assert.LessOrEqual(t, ev.val.I64(), int64(2*rounds))
	}
}
