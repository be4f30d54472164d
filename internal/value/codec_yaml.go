package value

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// The text archive form uses explicit YAML tags so that every variant
// round-trips unambiguously: !!int is I64, !u64 is U64, !empty and !error
// mark the variants YAML has no native spelling for. Documents stay
// diff-friendly because collections render as plain sequences/mappings.

const (
	tagEmpty = "!empty"
	tagU64   = "!u64"
	tagError = "!error"
)

var (
	_ yaml.Marshaler   = Value{}
	_ yaml.Unmarshaler = (*Value)(nil)
)

// MarshalYAML implements yaml.Marshaler.
func (v Value) MarshalYAML() (any, error) {
	return v.yamlNode()
}

func (v Value) yamlNode() (*yaml.Node, error) {
	scalar := func(tag, val string) *yaml.Node {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: val}
	}
	switch v.kind {
	case KindEmpty:
		return scalar(tagEmpty, ""), nil
	case KindNull:
		return scalar("!!null", "null"), nil
	case KindBool:
		return scalar("!!bool", strconv.FormatBool(v.b)), nil
	case KindI64:
		return scalar("!!int", strconv.FormatInt(v.i, 10)), nil
	case KindU64:
		return scalar(tagU64, strconv.FormatUint(v.u, 10)), nil
	case KindFloat:
		return scalar("!!float", strconv.FormatFloat(v.f, 'g', -1, 64)), nil
	case KindString:
		return scalar("!!str", v.s), nil
	case KindError:
		return scalar(tagError, v.s), nil
	case KindArray:
		node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for i := range v.arr {
			child, err := v.arr[i].yamlNode()
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content, child)
		}
		return node, nil
	case KindMap:
		node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for pair := v.m.Oldest(); pair != nil; pair = pair.Next() {
			child, err := pair.Value.yamlNode()
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content, scalar("!!str", pair.Key), child)
		}
		return node, nil
	default:
		return nil, fmt.Errorf("unencodable value kind %s", v.kind)
	}
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	decoded, err := fromYAMLNode(node)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}

func fromYAMLNode(node *yaml.Node) (Value, error) {
	if node.Kind == yaml.AliasNode {
		return fromYAMLNode(node.Alias)
	}
	switch node.Kind {
	case yaml.SequenceNode:
		elems := make([]Value, len(node.Content))
		for i, child := range node.Content {
			elem, err := fromYAMLNode(child)
			if err != nil {
				return Value{}, err
			}
			elems[i] = elem
		}
		return Value{kind: KindArray, arr: elems}, nil

	case yaml.MappingNode:
		if len(node.Content)%2 != 0 {
			return Value{}, fmt.Errorf("malformed mapping node at line %d", node.Line)
		}
		entries := make([]MapEntry, 0, len(node.Content)/2)
		for i := 0; i < len(node.Content); i += 2 {
			key := node.Content[i].Value
			elem, err := fromYAMLNode(node.Content[i+1])
			if err != nil {
				return Value{}, err
			}
			entries = append(entries, MapEntry{K: key, V: elem})
		}
		return MapVal(entries...), nil

	case yaml.ScalarNode:
		return fromYAMLScalar(node)

	default:
		return Value{}, fmt.Errorf("unexpected YAML node kind %d at line %d", node.Kind, node.Line)
	}
}

func fromYAMLScalar(node *yaml.Node) (Value, error) {
	switch node.Tag {
	case tagEmpty:
		return EmptyVal(), nil
	case "!!null":
		return NullVal(), nil
	case "!!bool":
		b, err := strconv.ParseBool(node.Value)
		if err != nil {
			return Value{}, fmt.Errorf("bad bool scalar %q at line %d", node.Value, node.Line)
		}
		return BoolVal(b), nil
	case "!!int":
		i, err := strconv.ParseInt(node.Value, 0, 64)
		if err != nil {
			return Value{}, fmt.Errorf("bad int scalar %q at line %d", node.Value, node.Line)
		}
		return I64Val(i), nil
	case tagU64:
		u, err := strconv.ParseUint(node.Value, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("bad u64 scalar %q at line %d", node.Value, node.Line)
		}
		return U64Val(u), nil
	case "!!float":
		f, err := strconv.ParseFloat(node.Value, 64)
		if err != nil {
			return Value{}, fmt.Errorf("bad float scalar %q at line %d", node.Value, node.Line)
		}
		return FloatVal(f), nil
	case "!!str":
		return StringVal(node.Value), nil
	case tagError:
		return ErrorVal(node.Value), nil
	default:
		return Value{}, fmt.Errorf("unknown value tag %q at line %d", node.Tag, node.Line)
	}
}
