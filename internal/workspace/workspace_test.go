package workspace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/weft/internal/node"
	"github.com/vk/weft/internal/registry"
	"github.com/vk/weft/internal/value"
)

// stubNode is a configurable test kind: fixed port lists, echo execution.
type stubNode struct {
	in  []node.Port
	out []node.Port
	val value.Value
}

func (s *stubNode) PortsIn() []node.Port  { return s.in }
func (s *stubNode) PortsOut() []node.Port { return s.out }

func (s *stubNode) Execute(ctx context.Context, in map[string]value.Value) (map[string]value.Value, error) {
	out := make(map[string]value.Value, len(s.out))
	for _, p := range s.out {
		out[p.Name] = s.val
	}
	return out, nil
}

type settableStub struct {
	stubNode
}

func (s *settableStub) Set(v value.Value) error {
	s.val = v
	return nil
}

type bufferedStub struct {
	stubNode
}

func (s *bufferedStub) Buffered() {}

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	r := registry.New()
	r.RegisterKind("intsrc", func(cfg value.Value) (node.Node, error) {
		return &settableStub{stubNode{
			out: []node.Port{{Name: "out", Contract: node.Exactly(value.KindI64)}},
			val: cfg,
		}}, nil
	})
	r.RegisterKind("strsrc", func(cfg value.Value) (node.Node, error) {
		return &stubNode{
			out: []node.Port{{Name: "out", Contract: node.Exactly(value.KindString)}},
			val: cfg,
		}, nil
	})
	r.RegisterKind("intsink", func(cfg value.Value) (node.Node, error) {
		return &stubNode{
			in:  []node.Port{{Name: "x", Contract: node.Exactly(value.KindI64)}},
			out: []node.Port{{Name: "out", Contract: node.Exactly(value.KindI64)}},
		}, nil
	})
	r.RegisterKind("buffer", func(cfg value.Value) (node.Node, error) {
		return &bufferedStub{stubNode{
			in:  []node.Port{{Name: "in", Contract: node.Any()}},
			out: []node.Port{{Name: "out", Contract: node.Any()}},
		}}, nil
	})
	return r
}

func addNode(t *testing.T, ws *Workspace, kind string, cfg value.Value) node.ID {
	t.Helper()
	cs, err := ws.Apply(context.Background(), Command{Op: OpAddNode, Kind: kind, Config: cfg})
	require.NoError(t, err)
	require.Len(t, cs.NodesAdded, 1)
	return cs.NodesAdded[0]
}

func link(t *testing.T, ws *Workspace, from, to node.Ref) {
	t.Helper()
	_, err := ws.Apply(context.Background(), Command{Op: OpLink, From: from, To: to})
	require.NoError(t, err)
}

func TestAddNodeAssignsFreshHandles(t *testing.T) {
	t.Parallel()
	ws := New(testRegistry(t))

	a := addNode(t, ws, "intsrc", value.I64Val(1))
	b := addNode(t, ws, "intsrc", value.I64Val(2))
	require.NotEqual(t, a, b)

	_, err := ws.Apply(context.Background(), Command{Op: OpRemoveNode, Node: b})
	require.NoError(t, err)

	// A handle is never reissued, even after its node is removed.
	c := addNode(t, ws, "intsrc", value.I64Val(3))
	assert.Greater(t, c, b)
}

func TestAddNodeUnknownKind(t *testing.T) {
	t.Parallel()
	ws := New(testRegistry(t))

	_, err := ws.Apply(context.Background(), Command{Op: OpAddNode, Kind: "nope"})
	require.ErrorIs(t, err, registry.ErrUnknownKind)
	assert.Empty(t, ws.NodeIDs())
}

func TestLinkValidation(t *testing.T) {
	t.Parallel()
	ws := New(testRegistry(t))
	src := addNode(t, ws, "intsrc", value.I64Val(7))
	str := addNode(t, ws, "strsrc", value.StringVal("s"))
	sink := addNode(t, ws, "intsink", value.EmptyVal())

	t.Run("unknown source port", func(t *testing.T) {
		_, err := ws.Apply(context.Background(), Command{
			Op:   OpLink,
			From: node.Ref{Node: src, Port: "bogus"},
			To:   node.Ref{Node: sink, Port: "x"},
		})
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("contract mismatch", func(t *testing.T) {
		_, err := ws.Apply(context.Background(), Command{
			Op:   OpLink,
			From: node.Ref{Node: str, Port: "out"},
			To:   node.Ref{Node: sink, Port: "x"},
		})
		require.ErrorIs(t, err, ErrContractMismatch)
		assert.Empty(t, ws.Links(), "a failed link must leave the topology unchanged")
	})

	t.Run("occupied port", func(t *testing.T) {
		link(t, ws, node.Ref{Node: src, Port: "out"}, node.Ref{Node: sink, Port: "x"})

		other := addNode(t, ws, "intsrc", value.I64Val(8))
		_, err := ws.Apply(context.Background(), Command{
			Op:   OpLink,
			From: node.Ref{Node: other, Port: "out"},
			To:   node.Ref{Node: sink, Port: "x"},
		})
		require.ErrorIs(t, err, ErrPortOccupied)
		require.Len(t, ws.Links(), 1)
		assert.Equal(t, src, ws.Links()[0].From.Node, "the original link must survive")
	})
}

func TestLinkCycleRejected(t *testing.T) {
	t.Parallel()
	ws := New(testRegistry(t))
	a := addNode(t, ws, "intsink", value.EmptyVal())
	b := addNode(t, ws, "intsink", value.EmptyVal())

	link(t, ws, node.Ref{Node: a, Port: "out"}, node.Ref{Node: b, Port: "x"})

	_, err := ws.Apply(context.Background(), Command{
		Op:   OpLink,
		From: node.Ref{Node: b, Port: "out"},
		To:   node.Ref{Node: a, Port: "x"},
	})
	require.ErrorIs(t, err, ErrCycleDetected)
	assert.Len(t, ws.Links(), 1)
}

func TestLinkCycleThroughBufferAllowed(t *testing.T) {
	t.Parallel()
	ws := New(testRegistry(t))
	a := addNode(t, ws, "intsink", value.EmptyVal())
	buf := addNode(t, ws, "buffer", value.EmptyVal())

	link(t, ws, node.Ref{Node: a, Port: "out"}, node.Ref{Node: buf, Port: "in"})
	// Closing the loop through the buffer is legal.
	link(t, ws, node.Ref{Node: buf, Port: "out"}, node.Ref{Node: a, Port: "x"})

	assert.Len(t, ws.Links(), 2)
}

func TestUnlink(t *testing.T) {
	t.Parallel()
	ws := New(testRegistry(t))
	src := addNode(t, ws, "intsrc", value.I64Val(1))
	sink := addNode(t, ws, "intsink", value.EmptyVal())
	link(t, ws, node.Ref{Node: src, Port: "out"}, node.Ref{Node: sink, Port: "x"})

	cs, err := ws.Apply(context.Background(), Command{Op: OpUnlink, To: node.Ref{Node: sink, Port: "x"}})
	require.NoError(t, err)
	require.Len(t, cs.LinksRemoved, 1)
	assert.Empty(t, ws.Links())

	_, err = ws.Apply(context.Background(), Command{Op: OpUnlink, To: node.Ref{Node: sink, Port: "x"}})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRemoveNodeCascades(t *testing.T) {
	t.Parallel()
	ws := New(testRegistry(t))
	require.NoError(t, ws.AddView("main"))

	src := addNode(t, ws, "intsrc", value.I64Val(1))
	mid := addNode(t, ws, "intsink", value.EmptyVal())
	dst := addNode(t, ws, "intsink", value.EmptyVal())
	link(t, ws, node.Ref{Node: src, Port: "out"}, node.Ref{Node: mid, Port: "x"})
	link(t, ws, node.Ref{Node: mid, Port: "out"}, node.Ref{Node: dst, Port: "x"})

	_, err := ws.Apply(context.Background(), Command{
		Op: OpMoveNodeView, View: "main", Node: mid, X: 1, Y: 2,
	})
	require.ErrorIs(t, err, ErrNotFound, "node was never placed in the view")

	cs, err := ws.Apply(context.Background(), Command{Op: OpRemoveNode, Node: mid})
	require.NoError(t, err)

	assert.Equal(t, []node.ID{mid}, cs.NodesRemoved)
	assert.Len(t, cs.LinksRemoved, 2, "both incident links go with the node")
	assert.Empty(t, ws.Links())
	assert.Equal(t, []node.ID{src, dst}, ws.NodeIDs())
}

func TestRemoveNodeClearsViews(t *testing.T) {
	t.Parallel()
	ws := New(testRegistry(t))
	require.NoError(t, ws.AddView("main"))

	cs, err := ws.Apply(context.Background(), Command{
		Op: OpAddNode, Kind: "intsrc", Config: value.I64Val(1),
		View: "main", X: 10, Y: 20,
	})
	require.NoError(t, err)
	id := cs.NodesAdded[0]

	views, err := ws.NodeViews("main")
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, 10.0, views[0].X)

	cs, err = ws.Apply(context.Background(), Command{Op: OpRemoveNode, Node: id})
	require.NoError(t, err)
	require.Len(t, cs.ViewsChanged, 1)
	assert.True(t, cs.ViewsChanged[0].Removed)

	views, err = ws.NodeViews("main")
	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestAddNodeUnknownViewIsAtomic(t *testing.T) {
	t.Parallel()
	ws := New(testRegistry(t))

	_, err := ws.Apply(context.Background(), Command{
		Op: OpAddNode, Kind: "intsrc", Config: value.I64Val(1), View: "missing",
	})
	require.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, ws.NodeIDs(), "the node must not exist when placement failed")
}

func TestSetValue(t *testing.T) {
	t.Parallel()
	ws := New(testRegistry(t))
	src := addNode(t, ws, "intsrc", value.I64Val(1))
	sink := addNode(t, ws, "intsink", value.EmptyVal())

	_, err := ws.Apply(context.Background(), Command{Op: OpSetValue, Node: src, Value: value.I64Val(42)})
	require.NoError(t, err)

	_, err = ws.Apply(context.Background(), Command{Op: OpSetValue, Node: sink, Value: value.I64Val(42)})
	require.ErrorIs(t, err, ErrNotSettable)
}

func TestSetNodeMeta(t *testing.T) {
	t.Parallel()
	ws := New(testRegistry(t))
	id := addNode(t, ws, "intsrc", value.I64Val(1))

	_, err := ws.Apply(context.Background(), Command{
		Op: OpSetNodeMeta, Node: id, Label: "rate", Tags: []string{"input", "hot"},
	})
	require.NoError(t, err)

	label, tags, err := ws.NodeMeta(id)
	require.NoError(t, err)
	assert.Equal(t, "rate", label)
	assert.Equal(t, []string{"input", "hot"}, tags)
}

func TestGatherInputsUnconnectedReadsEmpty(t *testing.T) {
	t.Parallel()
	ws := New(testRegistry(t))
	sink := addNode(t, ws, "intsink", value.EmptyVal())

	in, err := ws.GatherInputs(sink)
	require.NoError(t, err)
	require.Contains(t, in, "x")
	assert.Equal(t, value.KindEmpty, in["x"].Kind())
}

func TestCommitOutputsReportsChangedPorts(t *testing.T) {
	t.Parallel()
	ws := New(testRegistry(t))
	src := addNode(t, ws, "intsrc", value.I64Val(1))

	changed, err := ws.CommitOutputs(src, map[string]value.Value{"out": value.I64Val(5)})
	require.NoError(t, err)
	assert.Equal(t, []string{"out"}, changed)

	changed, err = ws.CommitOutputs(src, map[string]value.Value{"out": value.I64Val(5)})
	require.NoError(t, err)
	assert.Empty(t, changed, "recommitting an identical value is not a change")

	// Same number, different variant: the committed value did change.
	changed, err = ws.CommitOutputs(src, map[string]value.Value{"out": value.U64Val(5)})
	require.NoError(t, err)
	assert.Equal(t, []string{"out"}, changed)
}

func TestViewsIndependentLifecycles(t *testing.T) {
	t.Parallel()
	ws := New(testRegistry(t))
	require.NoError(t, ws.AddView("main"))
	require.ErrorIs(t, ws.AddView("main"), ErrViewExists)
	require.NoError(t, ws.AddView("debug"))

	id := addNode(t, ws, "intsrc", value.I64Val(1))
	require.NoError(t, ws.RestoreNodeView("main", NodeView{Node: id, X: 1}))
	require.NoError(t, ws.RestoreNodeView("debug", NodeView{Node: id, X: 9}))

	require.NoError(t, ws.RemoveView("debug"))
	assert.Equal(t, []string{"main"}, ws.ViewNames())

	views, err := ws.NodeViews("main")
	require.NoError(t, err)
	require.Len(t, views, 1, "removing one view leaves other placements alone")
	assert.Equal(t, 1.0, views[0].X)

	assert.Contains(t, ws.NodeIDs(), id, "removing a view never removes nodes")
}

func TestNodeViewPlacementOps(t *testing.T) {
	t.Parallel()
	ws := New(testRegistry(t))
	require.NoError(t, ws.AddView("main"))

	id := addNode(t, ws, "intsrc", value.I64Val(1))

	cs, err := ws.Apply(context.Background(), Command{Op: OpAddNodeView, View: "main", Node: id, X: 3, Y: 4})
	require.NoError(t, err)
	require.Len(t, cs.ViewsChanged, 1)
	assert.False(t, cs.ViewsChanged[0].Removed)

	views, err := ws.NodeViews("main")
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, 3.0, views[0].X)

	cs, err = ws.Apply(context.Background(), Command{Op: OpRemoveNodeView, View: "main", Node: id})
	require.NoError(t, err)
	require.Len(t, cs.ViewsChanged, 1)
	assert.True(t, cs.ViewsChanged[0].Removed)

	views, err = ws.NodeViews("main")
	require.NoError(t, err)
	assert.Empty(t, views)

	// The node itself survives losing its placement and can be placed
	// again.
	assert.Contains(t, ws.NodeIDs(), id)
	_, err = ws.Apply(context.Background(), Command{Op: OpAddNodeView, View: "main", Node: id, X: 7, Y: 8})
	require.NoError(t, err)
}

func TestRemoveNodeViewValidation(t *testing.T) {
	t.Parallel()
	ws := New(testRegistry(t))
	require.NoError(t, ws.AddView("main"))
	id := addNode(t, ws, "intsrc", value.I64Val(1))

	_, err := ws.Apply(context.Background(), Command{Op: OpRemoveNodeView, View: "nope", Node: id})
	require.ErrorIs(t, err, ErrNotFound)

	// Placed nowhere yet.
	_, err = ws.Apply(context.Background(), Command{Op: OpRemoveNodeView, View: "main", Node: id})
	require.ErrorIs(t, err, ErrNotFound)

	_, err = ws.Apply(context.Background(), Command{Op: OpAddNodeView, View: "main", Node: 999})
	require.ErrorIs(t, err, ErrNotFound)
}
