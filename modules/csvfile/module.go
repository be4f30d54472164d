// Package csvfile provides the CSV import node kind: it reads a CSV file
// whose first row names the columns and emits an Array of Maps, one Map
// per data row, column values as Strings in column order.
package csvfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"

	"github.com/vk/weft/internal/node"
	"github.com/vk/weft/internal/registry"
	"github.com/vk/weft/internal/value"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

type csvNode struct {
	path  string
	comma rune
}

func (n *csvNode) PortsIn() []node.Port { return nil }

func (n *csvNode) PortsOut() []node.Port {
	return []node.Port{{Name: "out", Contract: node.Exactly(value.KindArray)}}
}

func (n *csvNode) Execute(ctx context.Context, in map[string]value.Value) (map[string]value.Value, error) {
	if n.path == "" {
		return nil, fmt.Errorf("csvfile has no path configured")
	}
	f, err := os.Open(n.path)
	if err != nil {
		return nil, fmt.Errorf("opening csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = n.comma
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading csv %s: %w", n.path, err)
	}
	if len(records) == 0 {
		return map[string]value.Value{"out": value.ArrayVal()}, nil
	}

	header := records[0]
	rows := make([]value.Value, 0, len(records)-1)
	for _, rec := range records[1:] {
		entries := make([]value.MapEntry, 0, len(header))
		for i, col := range header {
			cell := ""
			if i < len(rec) {
				cell = rec[i]
			}
			entries = append(entries, value.MapEntry{K: col, V: value.StringVal(cell)})
		}
		rows = append(rows, value.MapVal(entries...))
	}
	return map[string]value.Value{"out": value.ArrayVal(rows...)}, nil
}

func (n *csvNode) configure(cfg value.Value) error {
	switch cfg.Kind() {
	case value.KindEmpty:
	case value.KindString:
		n.path = cfg.Str()
	case value.KindMap:
		if p, ok := cfg.MapGet("path"); ok && p.Kind() == value.KindString {
			n.path = p.Str()
		}
		if c, ok := cfg.MapGet("comma"); ok && c.Kind() == value.KindString {
			runes := []rune(c.Str())
			if len(runes) != 1 {
				return fmt.Errorf("csvfile comma must be one character, got %q", c.Str())
			}
			n.comma = runes[0]
		}
	default:
		return fmt.Errorf("csvfile config must be a path or a map, got %s", cfg.Kind())
	}
	return nil
}

func (n *csvNode) Snapshot() value.Value {
	return value.MapVal(
		value.MapEntry{K: "path", V: value.StringVal(n.path)},
		value.MapEntry{K: "comma", V: value.StringVal(string(n.comma))},
	)
}

func (n *csvNode) Restore(v value.Value) error { return n.configure(v) }

// Register registers the csvfile kind. Config is either a String path or
// a Map with "path" and an optional single-character "comma"; it can also
// be left empty and configured later through a restore.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterKind("csvfile", func(cfg value.Value) (node.Node, error) {
		n := &csvNode{comma: ','}
		if err := n.configure(cfg); err != nil {
			return nil, err
		}
		return n, nil
	})
}
