package component

import (
	"log/slog"
	"sync"

	"github.com/specialistvlad/questgrid/internal/storage"
)

// RegistryKey is where the runtime stores its *Registry inside a quest's
// runtime compartment.
const RegistryKey storage.Key = "component.registry"

var (
	declaredMu      sync.Mutex
	declared        []Module
	defaultRegistry *Registry
)

// Declare adds modules to the process-wide registry. It is meant to be called
// from init functions; modules declared after Default has been called are
// ignored until ResetForTesting.
func Declare(modules ...Module) {
	declaredMu.Lock()
	defer declaredMu.Unlock()
	if defaultRegistry != nil {
		slog.Warn("Component modules declared after the default registry was created; ignoring.", "count", len(modules))
		return
	}
	declared = append(declared, modules...)
}

// Default returns the process-wide registry built from every declared module.
func Default() *Registry {
	declaredMu.Lock()
	defer declaredMu.Unlock()
	if defaultRegistry == nil {
		mods := make([]Module, len(declared))
		copy(mods, declared)
		defaultRegistry = New(mods...)
	}
	return defaultRegistry
}

// ResetForTesting drops the process-wide registry and, when clearDeclared is
// set, every declared module.
func ResetForTesting(clearDeclared bool) {
	declaredMu.Lock()
	defer declaredMu.Unlock()
	defaultRegistry = nil
	if clearDeclared {
		declared = nil
	}
}

// FromStorage returns the registry stored under RegistryKey in node, or the
// process-wide Default when none was stored.
func FromStorage(node *storage.Storage) *Registry {
	if node != nil {
		if r, err := storage.Get[*Registry](node, RegistryKey); err == nil && r != nil {
			return r
		}
	}
	return Default()
}
