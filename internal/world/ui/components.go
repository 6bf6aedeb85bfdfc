package ui

import (
	"context"
	"fmt"

	"github.com/specialistvlad/questgrid/internal/component"
)

// ComponentType selects the implementation variant of a UI component.
type ComponentType string

const (
	// Default is the plain implementation of every component.
	Default ComponentType = "default"
	// ClearFirst inputs clear the field before typing.
	ClearFirst ComponentType = "clear-first"
)

// Button is a clickable control.
type Button interface {
	Click(ctx context.Context, locator string) error
	Text(ctx context.Context, locator string) (string, error)
}

// Input is a text field.
type Input interface {
	Insert(ctx context.Context, locator, text string) error
	Text(ctx context.Context, locator string) (string, error)
}

// Module declares the built-in component implementations.
var Module component.Module = component.ModuleFunc(func(c *component.Catalog) {
	c.Declare(
		component.Implementation[Button](Default, func(owner any) (Button, error) {
			d, err := driverOf(owner)
			return &button{driver: d}, err
		}),
		component.Implementation[Input](Default, func(owner any) (Input, error) {
			d, err := driverOf(owner)
			return &input{driver: d}, err
		}),
		component.Implementation[Input](ClearFirst, func(owner any) (Input, error) {
			d, err := driverOf(owner)
			return &input{driver: d, clear: true}, err
		}),
	)
})

func init() {
	component.Declare(Module)
}

func driverOf(owner any) (Driver, error) {
	d, ok := owner.(Driver)
	if !ok || d == nil {
		return nil, fmt.Errorf("ui component owner %T is not a driver", owner)
	}
	return d, nil
}

type button struct {
	driver Driver
}

func (b *button) Click(ctx context.Context, locator string) error {
	el, err := b.driver.Find(ctx, locator)
	if err != nil {
		return err
	}
	return el.Click(ctx)
}

func (b *button) Text(ctx context.Context, locator string) (string, error) {
	el, err := b.driver.Find(ctx, locator)
	if err != nil {
		return "", err
	}
	return el.Text(ctx)
}

type input struct {
	driver Driver
	clear  bool
}

func (i *input) Insert(ctx context.Context, locator, text string) error {
	el, err := i.driver.Find(ctx, locator)
	if err != nil {
		return err
	}
	if i.clear {
		if err := el.Clear(ctx); err != nil {
			return err
		}
	}
	return el.SendKeys(ctx, text)
}

func (i *input) Text(ctx context.Context, locator string) (string, error) {
	el, err := i.driver.Find(ctx, locator)
	if err != nil {
		return "", err
	}
	return el.Text(ctx)
}
