package persistence_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/weft/internal/archive"
	"github.com/vk/weft/internal/engine"
	"github.com/vk/weft/internal/testutil"
	"github.com/vk/weft/internal/value"
	"github.com/vk/weft/internal/workspace"
)

const persistKeymap = `
settings {
  chord_timeout = "500ms"
  initial_mode  = "normal"
}

mode "normal" {
  bind "a" {
    command = "add-node"
    args = {
      kind   = "constant"
      config = 7
    }
  }
  bind "s" {
    command = "add-node"
    args = {
      kind = "sum"
    }
  }
  bind "m" {
    command = "mark"
  }
  bind "x" {
    command = "link"
    args = {
      to_port = "x"
    }
  }
  bind "y" {
    command = "link"
    args = {
      to_port = "y"
    }
  }
  bind "w" {
    command = "save"
  }
  bind "q" {
    command = "quit"
  }
}
`

func TestSavedSessionReloadsLive(t *testing.T) {
	t.Parallel()

	// Build 7+7, save to the configured workspace path and quit.
	result := testutil.RunSession(t, map[string]string{"main.hcl": persistKeymap}, "a m s x y w q\n")
	require.NoError(t, result.Err)
	require.Contains(t, result.Output, "n2.out = 14")

	ctx := context.Background()
	ws, err := archive.Load(ctx, result.App.Registry(), result.WorkspacePath)
	require.NoError(t, err)
	engine.New(ws)

	out, err := ws.Outputs(1)
	require.NoError(t, err)
	assert.Equal(t, value.I64Val(7), out["out"])

	// The reloaded graph is still executable.
	cs, err := ws.Apply(ctx, workspace.Command{
		Op:    workspace.OpSetValue,
		Node:  1,
		Value: value.I64Val(10),
	})
	require.NoError(t, err)
	assert.Equal(t, value.I64Val(20), cs.ValuesChanged[2]["out"])
}

func TestSessionStartsFromExistingWorkspace(t *testing.T) {
	t.Parallel()

	first := testutil.RunSession(t, map[string]string{"main.hcl": persistKeymap}, "a m s x y w q\n")
	require.NoError(t, first.Err)

	// A second app over the same workspace path picks the graph up.
	second := testutil.RunSessionAt(t, first.WorkspacePath,
		map[string]string{"main.hcl": persistKeymap}, "a q\n")
	require.NoError(t, second.Err)
	assert.Len(t, second.App.Workspace().NodeIDs(), 3)
}
