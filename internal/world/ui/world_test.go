package ui

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/questgrid/internal/component"
	"github.com/specialistvlad/questgrid/internal/quest"
)

type fakeElement struct {
	mu     sync.Mutex
	text   string
	clicks int
	clears int
}

func (e *fakeElement) Click(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clicks++
	return nil
}

func (e *fakeElement) Clear(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clears++
	e.text = ""
	return nil
}

func (e *fakeElement) SendKeys(_ context.Context, text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.text += text
	return nil
}

func (e *fakeElement) Text(context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.text, nil
}

type fakeDriver struct {
	elements map[string]*fakeElement
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{elements: map[string]*fakeElement{
		"#submit": {text: "Submit"},
		"#name":   {text: "prefilled "},
	}}
}

func (d *fakeDriver) Find(_ context.Context, locator string) (Element, error) {
	el, ok := d.elements[locator]
	if !ok {
		return nil, fmt.Errorf("no element %q", locator)
	}
	return el, nil
}

func newWorld(t *testing.T) (*quest.Quest, *World, *component.Registry) {
	t.Helper()
	q := quest.New(context.Background())
	reg := component.New(Module)
	require.NoError(t, reg.Build())
	q.Storage().Sub(quest.RuntimeKey).Put(component.RegistryKey, reg)
	return q, quest.MustUse[*World](q), reg
}

func TestHelpers(t *testing.T) {
	ctx := context.Background()
	_, w, _ := newWorld(t)
	d := newFakeDriver()
	require.NoError(t, w.UseDriver(d))

	require.NoError(t, w.Click(ctx, "#submit"))
	assert.Equal(t, 1, d.elements["#submit"].clicks)

	require.NoError(t, w.Insert(ctx, "#name", "alice"))
	got, err := w.Text(ctx, "#name")
	require.NoError(t, err)
	assert.Equal(t, "prefilled alice", got)

	assert.Error(t, w.Click(ctx, "#missing"))
}

func TestInput_ClearFirstVariant(t *testing.T) {
	ctx := context.Background()
	_, w, _ := newWorld(t)
	d := newFakeDriver()
	require.NoError(t, w.UseDriver(d))

	in, err := w.Input(ClearFirst)
	require.NoError(t, err)
	require.NoError(t, in.Insert(ctx, "#name", "bob"))

	assert.Equal(t, "bob", d.elements["#name"].text)
	assert.Equal(t, 1, d.elements["#name"].clears)
}

func TestComponents_MemoizedPerDriver(t *testing.T) {
	_, w, _ := newWorld(t)
	d1 := newFakeDriver()
	require.NoError(t, w.UseDriver(d1))

	b1, err := w.Button(Default)
	require.NoError(t, err)
	b2, err := w.Button(Default)
	require.NoError(t, err)
	assert.Same(t, b1, b2)

	require.NoError(t, w.UseDriver(newFakeDriver()))
	b3, err := w.Button(Default)
	require.NoError(t, err)
	assert.NotSame(t, b1, b3)
}

func TestComponents_UndeclaredType(t *testing.T) {
	_, w, _ := newWorld(t)
	require.NoError(t, w.UseDriver(newFakeDriver()))

	_, err := w.Button(ClearFirst)
	assert.ErrorIs(t, err, component.ErrUnresolvedComponentType)
}

func TestNoDriver(t *testing.T) {
	_, w, _ := newWorld(t)
	_, err := w.Button(Default)
	assert.ErrorIs(t, err, ErrNoDriver)
	_, err = w.Driver()
	assert.ErrorIs(t, err, ErrNoDriver)
}

func TestComplete_ReleasesComponents(t *testing.T) {
	q, w, reg := newWorld(t)
	d := newFakeDriver()
	require.NoError(t, w.UseDriver(d))
	_, err := w.Button(Default)
	require.NoError(t, err)

	got, err := quest.Artifact[*World, Driver](q)
	require.NoError(t, err)
	assert.Same(t, d, got)

	require.NoError(t, q.Complete(context.Background()))
	assert.Zero(t, reg.Release(d), "completion already released the driver's components")
}

func TestDefaultRegistryFallback(t *testing.T) {
	q := quest.New(context.Background())
	w := quest.MustUse[*World](q)
	require.NoError(t, w.UseDriver(newFakeDriver()))

	_, err := w.Input(Default)
	assert.NoError(t, err, "ui.Module is declared process-wide at init")
}

func TestUseDriver_CompletedQuestIsReported(t *testing.T) {
	q, w, _ := newWorld(t)
	require.NoError(t, q.Complete(context.Background()))

	err := w.UseDriver(newFakeDriver())

	assert.ErrorIs(t, err, quest.ErrQuestCompleted)
	_, err = w.Driver()
	assert.ErrorIs(t, err, ErrNoDriver, "driver must not be installed without its release hook")
	assert.False(t, w.hooked)
}
