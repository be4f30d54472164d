// Package modules assembles the built-in node kinds.
package modules

import (
	"github.com/vk/weft/internal/registry"
	"github.com/vk/weft/modules/arith"
	"github.com/vk/weft/modules/constant"
	"github.com/vk/weft/modules/csvfile"
	"github.com/vk/weft/modules/errorprobe"
	"github.com/vk/weft/modules/feedback"
	"github.com/vk/weft/modules/jsonfile"
	"github.com/vk/weft/modules/mapper"
	"github.com/vk/weft/modules/textedit"
)

// Defaults returns every built-in module in registration order.
func Defaults() []registry.Module {
	return []registry.Module{
		&constant.Module{},
		&arith.Module{},
		&feedback.Module{},
		&csvfile.Module{},
		&jsonfile.Module{},
		&mapper.Module{},
		&textedit.Module{},
		&errorprobe.Module{},
	}
}
