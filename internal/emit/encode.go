package emit

import (
	"github.com/vk/weft/internal/node"
	"github.com/vk/weft/internal/value"
	"github.com/vk/weft/internal/workspace"
)

// encodeChangeSet flattens a ChangeSet into plain maps and slices so the
// socket.io layer can serialize it without knowing any core types.
func encodeChangeSet(cs *workspace.ChangeSet) map[string]any {
	out := make(map[string]any)

	if len(cs.NodesAdded) > 0 {
		out["nodes_added"] = encodeIDs(cs.NodesAdded)
	}
	if len(cs.NodesRemoved) > 0 {
		out["nodes_removed"] = encodeIDs(cs.NodesRemoved)
	}
	if len(cs.LinksAdded) > 0 {
		out["links_added"] = encodeLinks(cs.LinksAdded)
	}
	if len(cs.LinksRemoved) > 0 {
		out["links_removed"] = encodeLinks(cs.LinksRemoved)
	}
	if len(cs.ValuesChanged) > 0 {
		values := make(map[string]map[string]any, len(cs.ValuesChanged))
		for id, ports := range cs.ValuesChanged {
			encoded := make(map[string]any, len(ports))
			for port, v := range ports {
				encoded[port] = encodeValue(v)
			}
			values[id.String()] = encoded
		}
		out["values_changed"] = values
	}
	if len(cs.ViewsChanged) > 0 {
		views := make([]map[string]any, 0, len(cs.ViewsChanged))
		for _, vc := range cs.ViewsChanged {
			entry := map[string]any{
				"view": vc.View,
				"node": vc.Node.String(),
			}
			if vc.Removed {
				entry["removed"] = true
			} else {
				entry["x"] = vc.X
				entry["y"] = vc.Y
			}
			views = append(views, entry)
		}
		out["views_changed"] = views
	}
	return out
}

func encodeIDs(ids []node.ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func encodeLinks(links []workspace.Link) []map[string]string {
	out := make([]map[string]string, len(links))
	for i, l := range links {
		out[i] = map[string]string{
			"from_node": l.From.Node.String(),
			"from_port": l.From.Port,
			"to_node":   l.To.Node.String(),
			"to_port":   l.To.Port,
		}
	}
	return out
}

// encodeValue renders a value as a kind-tagged wire shape.
func encodeValue(v value.Value) map[string]any {
	out := map[string]any{"kind": v.Kind().String()}
	switch v.Kind() {
	case value.KindEmpty, value.KindNull:
	case value.KindBool:
		out["value"] = v.Bool()
	case value.KindI64:
		out["value"] = v.I64()
	case value.KindU64:
		out["value"] = v.U64()
	case value.KindFloat:
		out["value"] = v.Float()
	case value.KindString:
		out["value"] = v.Str()
	case value.KindError:
		out["value"] = v.ErrorMessage()
	case value.KindArray:
		items := make([]any, 0, v.ArrayLen())
		for _, item := range v.ArrayItems() {
			items = append(items, encodeValue(item))
		}
		out["value"] = items
	case value.KindMap:
		entries := make([]map[string]any, 0, v.MapLen())
		for _, key := range v.MapKeys() {
			entry, _ := v.MapGet(key)
			entries = append(entries, map[string]any{"key": key, "value": encodeValue(entry)})
		}
		out["value"] = entries
	}
	return out
}
