package app

import (
	"github.com/vk/weft/internal/keymap"
	"github.com/vk/weft/internal/value"
)

// argValue fetches one binding argument, Empty when absent.
func argValue(inv *keymap.Invocation, key string) value.Value {
	if inv.Args.Kind() != value.KindMap {
		return value.EmptyVal()
	}
	v, ok := inv.Args.MapGet(key)
	if !ok {
		return value.EmptyVal()
	}
	return v
}

func argString(inv *keymap.Invocation, key, fallback string) string {
	v := argValue(inv, key)
	if v.Kind() != value.KindString {
		return fallback
	}
	return v.Str()
}

func argFloat(inv *keymap.Invocation, key string, fallback float64) float64 {
	v := argValue(inv, key)
	converted, err := value.Convert(v, value.KindFloat)
	if err != nil {
		return fallback
	}
	return converted.Float()
}
