// Package archive persists workspaces in two interchangeable formats: a
// compact msgpack binary and a YAML text form that diffs cleanly under
// version control. Both serialize the same Snapshot and a round trip
// through either reproduces the workspace exactly, numeric variants
// included.
package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"

	"github.com/vk/weft/internal/ctxlog"
	"github.com/vk/weft/internal/registry"
	"github.com/vk/weft/internal/workspace"
)

// ErrSerialization reports a corrupt or unreadable archive.
var ErrSerialization = errors.New("archive serialization failed")

// Format selects the wire form of an archive.
type Format uint8

const (
	FormatBinary Format = iota
	FormatText
)

func (f Format) String() string {
	if f == FormatText {
		return "text"
	}
	return "binary"
}

// FormatForPath picks the archive format from the file extension: .yaml
// and .yml mean text, everything else binary.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatText
	}
	return FormatBinary
}

// Encode serializes a snapshot in the given format.
func Encode(snap *Snapshot, format Format) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	switch format {
	case FormatText:
		data, err = yaml.Marshal(snap)
	default:
		data, err = msgpack.Marshal(snap)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: encoding %s archive: %v", ErrSerialization, format, err)
	}
	return data, nil
}

// Decode parses archive bytes in the given format. The snapshot is fully
// decoded and version-checked before anything is constructed from it.
func Decode(data []byte, format Format) (*Snapshot, error) {
	var snap Snapshot
	var err error
	switch format {
	case FormatText:
		err = yaml.Unmarshal(data, &snap)
	default:
		err = msgpack.Unmarshal(data, &snap)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: decoding %s archive: %v", ErrSerialization, format, err)
	}
	if snap.Version != CurrentVersion {
		return nil, fmt.Errorf("%w: unsupported archive version %d", ErrSerialization, snap.Version)
	}
	return &snap, nil
}

// Save captures a workspace and writes it to path, format chosen by
// extension. The write goes through a temp file and a rename so an
// interrupted save never truncates an existing archive.
func Save(ctx context.Context, ws *workspace.Workspace, path string) error {
	logger := ctxlog.FromContext(ctx)
	format := FormatForPath(path)

	snap, err := Capture(ws)
	if err != nil {
		return fmt.Errorf("capturing workspace: %w", err)
	}
	data, err := Encode(snap, format)
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing archive %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing archive %s: %w", path, err)
	}

	logger.Info("Workspace saved.", "path", path, "format", format.String(), "nodes", len(snap.Nodes), "bytes", len(data))
	return nil
}

// Load reads an archive from path and rebuilds the workspace against reg.
func Load(ctx context.Context, reg *registry.Registry, path string) (*workspace.Workspace, error) {
	logger := ctxlog.FromContext(ctx)
	format := FormatForPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading archive %s: %w", path, err)
	}
	snap, err := Decode(data, format)
	if err != nil {
		return nil, fmt.Errorf("archive %s: %w", path, err)
	}
	ws, err := Restore(ctx, reg, snap)
	if err != nil {
		return nil, fmt.Errorf("archive %s: %w", path, err)
	}

	logger.Info("Workspace loaded.", "path", path, "format", format.String(), "nodes", len(snap.Nodes))
	return ws, nil
}
