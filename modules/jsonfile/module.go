// Package jsonfile provides the JSON import node kind: it parses a JSON
// file into the value tree. Objects keep their document key order, whole
// numbers land as I64 (U64 above the int64 range), everything else as
// Float.
package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/vk/weft/internal/node"
	"github.com/vk/weft/internal/registry"
	"github.com/vk/weft/internal/value"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

type jsonNode struct {
	path string
}

func (n *jsonNode) PortsIn() []node.Port { return nil }

func (n *jsonNode) PortsOut() []node.Port {
	return []node.Port{{Name: "out", Contract: node.Any()}}
}

func (n *jsonNode) Execute(ctx context.Context, in map[string]value.Value) (map[string]value.Value, error) {
	if n.path == "" {
		return nil, fmt.Errorf("jsonfile has no path configured")
	}
	f, err := os.Open(n.path)
	if err != nil {
		return nil, fmt.Errorf("opening json: %w", err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.UseNumber()
	v, err := decodeJSON(dec)
	if err != nil {
		return nil, fmt.Errorf("parsing json %s: %w", n.path, err)
	}
	return map[string]value.Value{"out": v}, nil
}

// decodeJSON consumes one JSON value from the token stream. Token-level
// decoding, rather than unmarshalling into any, is what preserves object
// key order.
func decodeJSON(dec *json.Decoder) (value.Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return value.Value{}, err
	}

	switch t := tok.(type) {
	case nil:
		return value.NullVal(), nil
	case bool:
		return value.BoolVal(t), nil
	case string:
		return value.StringVal(t), nil
	case json.Number:
		return numberValue(t)
	case json.Delim:
		switch t {
		case '[':
			var elems []value.Value
			for dec.More() {
				elem, err := decodeJSON(dec)
				if err != nil {
					return value.Value{}, err
				}
				elems = append(elems, elem)
			}
			if _, err := dec.Token(); err != nil { // closing ]
				return value.Value{}, err
			}
			return value.ArrayVal(elems...), nil
		case '{':
			var entries []value.MapEntry
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return value.Value{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return value.Value{}, fmt.Errorf("object key is %T, not string", keyTok)
				}
				elem, err := decodeJSON(dec)
				if err != nil {
					return value.Value{}, err
				}
				entries = append(entries, value.MapEntry{K: key, V: elem})
			}
			if _, err := dec.Token(); err != nil { // closing }
				return value.Value{}, err
			}
			return value.MapVal(entries...), nil
		}
	}
	return value.Value{}, fmt.Errorf("unexpected json token %v", tok)
}

func numberValue(n json.Number) (value.Value, error) {
	if i, err := n.Int64(); err == nil {
		return value.I64Val(i), nil
	}
	if u, err := strconv.ParseUint(n.String(), 10, 64); err == nil {
		return value.U64Val(u), nil
	}
	f, err := n.Float64()
	if err != nil {
		return value.Value{}, fmt.Errorf("bad number %q: %w", n.String(), err)
	}
	return value.FloatVal(f), nil
}

func (n *jsonNode) configure(cfg value.Value) error {
	switch cfg.Kind() {
	case value.KindEmpty:
	case value.KindString:
		n.path = cfg.Str()
	case value.KindMap:
		if p, ok := cfg.MapGet("path"); ok && p.Kind() == value.KindString {
			n.path = p.Str()
		}
	default:
		return fmt.Errorf("jsonfile config must be a path or a map, got %s", cfg.Kind())
	}
	return nil
}

func (n *jsonNode) Snapshot() value.Value { return value.StringVal(n.path) }

func (n *jsonNode) Restore(v value.Value) error { return n.configure(v) }

// Register registers the jsonfile kind. Config is either a String path or
// a Map with "path"; it can also be left empty and configured later
// through a restore.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterKind("jsonfile", func(cfg value.Value) (node.Node, error) {
		n := &jsonNode{}
		if err := n.configure(cfg); err != nil {
			return nil, err
		}
		return n, nil
	})
}
