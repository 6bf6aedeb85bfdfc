// Package ui provides the UI World. Browser automation itself stays behind
// the Driver interface; the World resolves component implementations for the
// active driver through the component registry.
package ui

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/specialistvlad/questgrid/internal/component"
	"github.com/specialistvlad/questgrid/internal/ctxlog"
	"github.com/specialistvlad/questgrid/internal/quest"
)

// ErrNoDriver is returned when a component is requested before UseDriver.
var ErrNoDriver = errors.New("ui driver not set")

// Driver is a handle to a browser automation session. Implementations must
// be comparable, typically pointers.
type Driver interface {
	Find(ctx context.Context, locator string) (Element, error)
}

// Element is one located node.
type Element interface {
	Click(ctx context.Context) error
	Clear(ctx context.Context) error
	SendKeys(ctx context.Context, text string) error
	Text(ctx context.Context) (string, error)
}

// World owns the driver of one quest.
type World struct {
	quest.Base

	mu       sync.Mutex
	driver   Driver
	registry *component.Registry
	hooked   bool
}

// Artifacts exposes the driver.
func (w *World) Artifacts() []any {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.driver == nil {
		return nil
	}
	return []any{w.driver}
}

// UseRegistry overrides the registry taken from the quest runtime.
func (w *World) UseRegistry(r *component.Registry) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.registry = r
}

// UseDriver installs d. Components built for a previous driver are released.
// The quest completion hook that releases the active driver's components is
// registered on first use; its registration error is returned.
func (w *World) UseDriver(d Driver) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	prev := w.driver
	reg := w.registryLocked()

	if !w.hooked {
		if q := w.Quest(); q != nil {
			err := q.OnComplete("ui:release-components", func(ctx context.Context, _ *quest.Quest) error {
				w.mu.Lock()
				d := w.driver
				w.mu.Unlock()
				if d != nil {
					n := reg.Release(d)
					ctxlog.FromContext(ctx).Debug("Released UI components.", "count", n)
				}
				return nil
			})
			if err != nil {
				return fmt.Errorf("ui world: %w", err)
			}
		}
		w.hooked = true
	}

	w.driver = d
	if prev != nil && prev != d {
		reg.Release(prev)
	}
	return nil
}

// Driver returns the active driver.
func (w *World) Driver() (Driver, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.driver == nil {
		return nil, ErrNoDriver
	}
	return w.driver, nil
}

func (w *World) registryLocked() *component.Registry {
	if w.registry == nil {
		node := w.Storage()
		if node != nil {
			node = node.Sub(quest.RuntimeKey)
		}
		w.registry = component.FromStorage(node)
	}
	return w.registry
}

func resolve[C any](w *World, typ ComponentType) (C, error) {
	var zero C
	w.mu.Lock()
	d := w.driver
	reg := w.registryLocked()
	w.mu.Unlock()
	if d == nil {
		return zero, ErrNoDriver
	}
	return component.Resolve[C](reg, d, typ)
}

// Button returns the button implementation declared under typ.
func (w *World) Button(typ ComponentType) (Button, error) {
	return resolve[Button](w, typ)
}

// Input returns the input implementation declared under typ.
func (w *World) Input(typ ComponentType) (Input, error) {
	return resolve[Input](w, typ)
}

// Click clicks locator with the default button.
func (w *World) Click(ctx context.Context, locator string) error {
	b, err := w.Button(Default)
	if err != nil {
		return err
	}
	return b.Click(ctx, locator)
}

// Insert types text into locator with the default input.
func (w *World) Insert(ctx context.Context, locator, text string) error {
	in, err := w.Input(Default)
	if err != nil {
		return err
	}
	return in.Insert(ctx, locator, text)
}

// Text reads the text of locator.
func (w *World) Text(ctx context.Context, locator string) (string, error) {
	b, err := w.Button(Default)
	if err != nil {
		return "", err
	}
	return b.Text(ctx, locator)
}
