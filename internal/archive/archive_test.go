package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/weft/internal/engine"
	"github.com/vk/weft/internal/node"
	"github.com/vk/weft/internal/registry"
	"github.com/vk/weft/internal/value"
	"github.com/vk/weft/internal/workspace"
	"github.com/vk/weft/modules"
)

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	r := registry.New()
	for _, m := range modules.Defaults() {
		m.Register(r)
	}
	return r
}

// buildWorkspace assembles a workspace exercising labels, tags, views,
// links, stateful kinds and committed outputs.
func buildWorkspace(t *testing.T) *workspace.Workspace {
	t.Helper()
	ws := workspace.New(testRegistry(t))
	engine.New(ws)
	ctx := context.Background()

	require.NoError(t, ws.AddView("main"))

	cs, err := ws.Apply(ctx, workspace.Command{
		Op: workspace.OpAddNode, Kind: "constant", Config: value.I64Val(5),
		View: "main", X: 10, Y: 20,
	})
	require.NoError(t, err)
	a := cs.NodesAdded[0]

	cs, err = ws.Apply(ctx, workspace.Command{
		Op: workspace.OpAddNode, Kind: "sum",
		View: "main", X: 200, Y: 20,
	})
	require.NoError(t, err)
	s := cs.NodesAdded[0]

	cs, err = ws.Apply(ctx, workspace.Command{Op: workspace.OpAddNode, Kind: "feedback"})
	require.NoError(t, err)
	f := cs.NodesAdded[0]

	cs, err = ws.Apply(ctx, workspace.Command{
		Op: workspace.OpAddNode, Kind: "textedit",
		Config: value.MapVal(
			value.MapEntry{K: "op", V: value.StringVal("append")},
			value.MapEntry{K: "text", V: value.StringVal("hello")},
		),
	})
	require.NoError(t, err)
	_ = cs.NodesAdded[0]

	_, err = ws.Apply(ctx, workspace.Command{
		Op: workspace.OpSetNodeMeta, Node: a, Label: "rate", Tags: []string{"input"},
	})
	require.NoError(t, err)

	for _, port := range []string{"x", "y"} {
		_, err = ws.Apply(ctx, workspace.Command{
			Op:   workspace.OpLink,
			From: node.Ref{Node: a, Port: "out"},
			To:   node.Ref{Node: s, Port: port},
		})
		require.NoError(t, err)
	}
	_, err = ws.Apply(ctx, workspace.Command{
		Op:   workspace.OpLink,
		From: node.Ref{Node: s, Port: "out"},
		To:   node.Ref{Node: f, Port: "in"},
	})
	require.NoError(t, err)

	return ws
}

// textEncoding canonicalizes a workspace for comparison.
func textEncoding(t *testing.T, ws *workspace.Workspace) string {
	t.Helper()
	snap, err := Capture(ws)
	require.NoError(t, err)
	data, err := Encode(snap, FormatText)
	require.NoError(t, err)
	return string(data)
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		file string
	}{
		{name: "binary", file: "workspace.weft"},
		{name: "text", file: "workspace.yaml"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			ws := buildWorkspace(t)
			path := filepath.Join(t.TempDir(), tc.file)

			require.NoError(t, Save(ctx, ws, path))

			loaded, err := Load(ctx, testRegistry(t), path)
			require.NoError(t, err)

			assert.Equal(t, textEncoding(t, ws), textEncoding(t, loaded),
				"a loaded workspace must capture identically to the saved one")
		})
	}
}

func TestLoadedWorkspaceStaysLive(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ws := buildWorkspace(t)
	path := filepath.Join(t.TempDir(), "live.weft")
	require.NoError(t, Save(ctx, ws, path))

	loaded, err := Load(ctx, testRegistry(t), path)
	require.NoError(t, err)
	engine.New(loaded)

	// The constant kept its state, so changing it must flow through the
	// relinked adder exactly as before the round trip.
	var constID, sumID node.ID
	for _, id := range loaded.NodeIDs() {
		kind, err := loaded.NodeKind(id)
		require.NoError(t, err)
		switch kind {
		case "constant":
			constID = id
		case "sum":
			sumID = id
		}
	}
	require.NotZero(t, constID)
	require.NotZero(t, sumID)

	_, err = loaded.Apply(ctx, workspace.Command{
		Op: workspace.OpSetValue, Node: constID, Value: value.I64Val(6),
	})
	require.NoError(t, err)

	outputs, err := loaded.Outputs(sumID)
	require.NoError(t, err)
	assert.True(t, outputs["out"].Equal(value.I64Val(12)), "got %s", outputs["out"])
}

func TestNextIDSurvivesRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ws := buildWorkspace(t)

	// Remove the highest-handle node before saving; the counter must not
	// fall back to it on load.
	ids := ws.NodeIDs()
	top := ids[len(ids)-1]
	_, err := ws.Apply(ctx, workspace.Command{Op: workspace.OpRemoveNode, Node: top})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "ws.weft")
	require.NoError(t, Save(ctx, ws, path))
	loaded, err := Load(ctx, testRegistry(t), path)
	require.NoError(t, err)

	cs, err := loaded.Apply(ctx, workspace.Command{Op: workspace.OpAddNode, Kind: "constant"})
	require.NoError(t, err)
	assert.Greater(t, cs.NodesAdded[0], top, "handles are never reissued across a round trip")
}

func TestFormatForPath(t *testing.T) {
	t.Parallel()
	assert.Equal(t, FormatText, FormatForPath("ws.yaml"))
	assert.Equal(t, FormatText, FormatForPath("WS.YML"))
	assert.Equal(t, FormatBinary, FormatForPath("ws.weft"))
	assert.Equal(t, FormatBinary, FormatForPath("workspace"))
}

func TestDecodeRejectsGarbage(t *testing.T) {
	t.Parallel()
	_, err := Decode([]byte("!!!not an archive"), FormatBinary)
	require.ErrorIs(t, err, ErrSerialization)

	_, err = Decode([]byte(":\n  - ]["), FormatText)
	require.ErrorIs(t, err, ErrSerialization)
}

func TestDecodeRejectsUnknownVersion(t *testing.T) {
	t.Parallel()
	data, err := Encode(&Snapshot{Version: 99}, FormatText)
	require.NoError(t, err)
	_, err = Decode(data, FormatText)
	require.ErrorIs(t, err, ErrSerialization)
}

func TestRestoreRevalidatesLinks(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ws := buildWorkspace(t)
	snap, err := Capture(ws)
	require.NoError(t, err)

	snap.Links = append(snap.Links, LinkRecord{
		FromNode: snap.Nodes[0].ID, FromPort: "no-such-port",
		ToNode: snap.Nodes[1].ID, ToPort: "x",
	})
	_, err = Restore(ctx, testRegistry(t), snap)
	require.ErrorIs(t, err, workspace.ErrNotFound)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()
	_, err := Load(context.Background(), testRegistry(t), filepath.Join(t.TempDir(), "absent.weft"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
