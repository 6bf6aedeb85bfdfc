// Package pipeline implements the test-data lifecycle of a quest: lazily
// created fixtures (forges), their teardown (rippers) and static data loaded
// before execution.
//
// Forge entries live in the quest's storage under ForgeKey, so any
// collaborator holding the quest can read the same memoized value.
package pipeline

import (
	"context"
	"fmt"
	"reflect"

	"github.com/specialistvlad/questgrid/internal/ctxlog"
	"github.com/specialistvlad/questgrid/internal/quest"
	"github.com/specialistvlad/questgrid/internal/storage"
)

const (
	// ForgeKey is the storage compartment holding forge entries.
	ForgeKey storage.Key = "forge"
	// StaticKey is the storage compartment holding static test data.
	StaticKey storage.Key = "static"
)

// Creator supplies a fixture value.
type Creator func(ctx context.Context) (any, error)

// DataForge declares a named, lazily created fixture.
type DataForge interface {
	Name() string
	DataCreator() Creator
}

// Eliminator is a cleanup action run at quest completion.
type Eliminator func(ctx context.Context, q *quest.Quest) error

// DataRipper declares a named cleanup action.
type DataRipper interface {
	Name() string
	Eliminate() Eliminator
}

// StaticDataProvider supplies data loaded once before a test runs.
type StaticDataProvider interface {
	StaticTestData() map[string]any
}

// Forge is a DataForge record.
type Forge struct {
	Label  string
	Create Creator
}

func (f Forge) Name() string         { return f.Label }
func (f Forge) DataCreator() Creator { return f.Create }

// Ripper is a DataRipper record.
type Ripper struct {
	Label string
	Fn    Eliminator
}

func (r Ripper) Name() string          { return r.Label }
func (r Ripper) Eliminate() Eliminator { return r.Fn }

// StaticData is a StaticDataProvider over a plain map.
type StaticData map[string]any

func (d StaticData) StaticTestData() map[string]any { return d }

type entry = Late[any]

// Craft registers forges on the quest without evaluating them. A forge whose
// name is already registered keeps its existing entry.
func Craft(q *quest.Quest, forges ...DataForge) error {
	if q.State() == quest.Completed {
		return quest.ErrQuestCompleted
	}
	node := q.Storage().Sub(ForgeKey)
	for _, f := range forges {
		if _, err := craft(node, f); err != nil {
			return err
		}
	}
	return nil
}

func craft(node *storage.Storage, f DataForge) (*entry, error) {
	creator := f.DataCreator()
	if creator == nil {
		return nil, fmt.Errorf("forge %q has no creator", f.Name())
	}
	actual, _ := node.PutIfAbsent(storage.Key(f.Name()), NewLate(func(ctx context.Context) (any, error) {
		ctxlog.FromContext(ctx).Debug("Forging test data.", "forge", f.Name())
		return creator(ctx)
	}))
	e, ok := actual.(*entry)
	if !ok {
		return nil, fmt.Errorf("forge %q: storage holds %T", f.Name(), actual)
	}
	return e, nil
}

// Retrieve returns the value of forge as a T, creating it on the first read.
// Forges that were never crafted are crafted on demand.
func Retrieve[T any](ctx context.Context, q *quest.Quest, forge DataForge) (T, error) {
	var zero T
	if q.State() == quest.Completed {
		return zero, quest.ErrQuestCompleted
	}
	e, err := craft(q.Storage().Sub(ForgeKey), forge)
	if err != nil {
		return zero, err
	}
	v, err := e.Get(quest.WithQuest(ctx, q))
	if err != nil {
		return zero, fmt.Errorf("forge %q: %w", forge.Name(), err)
	}
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("forge %q produced %T, want %s", forge.Name(), v, reflect.TypeFor[T]())
	}
	return t, nil
}

// Evaluated reports whether forge has already been created in q.
func Evaluated(q *quest.Quest, forge DataForge) bool {
	e, err := storage.Get[*entry](q.Storage().Sub(ForgeKey), storage.Key(forge.Name()))
	return err == nil && e != nil && e.Evaluated()
}

// Rip schedules rippers as quest cleanups, in the given order.
func Rip(q *quest.Quest, rippers ...DataRipper) error {
	for _, r := range rippers {
		fn := r.Eliminate()
		if fn == nil {
			return fmt.Errorf("ripper %q has no eliminator", r.Name())
		}
		if err := q.OnComplete("ripper:"+r.Name(), quest.CleanupFunc(fn)); err != nil {
			return err
		}
	}
	return nil
}

// LoadStatic copies every provider's data into the quest's static compartment.
// Nested maps and slices are copied too, so a quest never shares them with
// the provider or with other quests. Later providers override earlier ones on
// key collisions.
func LoadStatic(q *quest.Quest, providers ...StaticDataProvider) error {
	if q.State() == quest.Completed {
		return quest.ErrQuestCompleted
	}
	node := q.Storage().Sub(StaticKey)
	for _, p := range providers {
		for k, v := range p.StaticTestData() {
			node.Put(storage.Key(k), cloneStatic(v))
		}
	}
	return nil
}

func cloneStatic(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = cloneStatic(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneStatic(e)
		}
		return out
	case StaticData:
		return StaticData(cloneStatic(map[string]any(t)).(map[string]any))
	default:
		return v
	}
}

// Static returns a static data value as a T.
func Static[T any](q *quest.Quest, key string) (T, error) {
	return storage.Get[T](q.Storage().Sub(StaticKey), storage.Key(key))
}
