package testutil

import "github.com/specialistvlad/questgrid/internal/component"

// SimpleModule is a component module declaring a fixed list of
// implementations.
type SimpleModule struct {
	Declarations []component.Declaration
}

// Register implements component.Module.
func (m *SimpleModule) Register(c *component.Catalog) {
	c.Declare(m.Declarations...)
}
