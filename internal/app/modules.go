package app

import (
	"github.com/specialistvlad/questgrid/internal/component"
	"github.com/specialistvlad/questgrid/internal/world/ui"
)

// coreModules is the list of component modules compiled into every runtime
// that is not given its own.
var coreModules = []component.Module{
	ui.Module,
}
