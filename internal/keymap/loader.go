package keymap

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/vk/weft/internal/ctxlog"
	"github.com/vk/weft/internal/fsutil"
	"github.com/vk/weft/internal/value"
)

// fileRoot decodes the top-level blocks of a keymap file.
type fileRoot struct {
	Settings *settingsBlock `hcl:"settings,block"`
	Modes    []*modeBlock   `hcl:"mode,block"`
}

type settingsBlock struct {
	ChordTimeout string `hcl:"chord_timeout,optional"`
	InitialMode  string `hcl:"initial_mode,optional"`
}

type modeBlock struct {
	Name  string       `hcl:"name,label"`
	Binds []*bindBlock `hcl:"bind,block"`
}

type bindBlock struct {
	Chord   string         `hcl:"chord,label"`
	Command string         `hcl:"command"`
	Args    hcl.Expression `hcl:"args,optional"`
}

// Load parses every .hcl file under path (a file or a directory) and
// compiles the merged result into a Set. Later files extend earlier ones;
// all construction-time validation, including the prefix-conflict check,
// happens here.
func Load(ctx context.Context, path string) (*Set, error) {
	logger := ctxlog.FromContext(ctx)

	files, err := fsutil.FindFilesByExtension(path, ".hcl")
	if err != nil {
		return nil, fmt.Errorf("discovering keymap files under %s: %w", path, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no keymap files found under %s", path)
	}
	logger.Debug("Discovered keymap files.", "count", len(files))

	parser := hclparse.NewParser()
	modes := make(map[Mode][]Binding)
	timeout := time.Duration(0)
	initial := Mode("")

	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse keymap file %s: %w", file, diags)
		}

		var root fileRoot
		if diags := gohcl.DecodeBody(hclFile.Body, nil, &root); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode keymap file %s: %w", file, diags)
		}

		if root.Settings != nil {
			if root.Settings.ChordTimeout != "" {
				d, err := time.ParseDuration(root.Settings.ChordTimeout)
				if err != nil {
					return nil, fmt.Errorf("%s: bad chord_timeout: %w", file, err)
				}
				timeout = d
			}
			if root.Settings.InitialMode != "" {
				initial = Mode(root.Settings.InitialMode)
			}
		}

		for _, mb := range root.Modes {
			for _, bb := range mb.Binds {
				binding, err := translateBind(bb)
				if err != nil {
					return nil, fmt.Errorf("%s: mode %q: %w", file, mb.Name, err)
				}
				mode := Mode(mb.Name)
				modes[mode] = append(modes[mode], binding)
			}
		}
	}

	set, err := Compile(modes, timeout, initial)
	if err != nil {
		return nil, err
	}
	logger.Debug("Keymap compiled.", "modes", len(modes))
	return set, nil
}

// translateBind evaluates one bind block into a Binding. Args evaluate in
// a nil context: keymap files are data, not programs.
func translateBind(bb *bindBlock) (Binding, error) {
	chord, err := ParseChord(bb.Chord)
	if err != nil {
		return Binding{}, err
	}
	if bb.Command == "" {
		return Binding{}, fmt.Errorf("chord %q binds an empty command", bb.Chord)
	}

	args := value.EmptyVal()
	if bb.Args != nil {
		ctyVal, diags := bb.Args.Value(nil)
		if diags.HasErrors() {
			return Binding{}, fmt.Errorf("chord %q: evaluating args: %w", bb.Chord, diags)
		}
		if !ctyVal.IsNull() {
			args, err = value.FromCty(ctyVal)
			if err != nil {
				return Binding{}, fmt.Errorf("chord %q: args: %w", bb.Chord, err)
			}
		}
	}
	return Binding{Chord: chord, Command: bb.Command, Args: args}, nil
}
