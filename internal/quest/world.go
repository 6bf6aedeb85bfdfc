package quest

import (
	"fmt"
	"reflect"

	"github.com/specialistvlad/questgrid/internal/storage"
)

// World is a capability module living inside a quest. Worlds are built with
// no arguments and then attached to their quest.
type World interface {
	Attach(q *Quest)
}

// ArtifactHolder is implemented by Worlds that expose internal values, such
// as a driver handle, to Artifact.
type ArtifactHolder interface {
	Artifacts() []any
}

// Base is embedded by Worlds to keep a reference to the owning quest.
type Base struct {
	quest *Quest
}

// Attach implements World.
func (b *Base) Attach(q *Quest) { b.quest = q }

// Quest returns the owning quest, nil before attachment.
func (b *Base) Quest() *Quest { return b.quest }

// Storage returns the owning quest's root storage.
func (b *Base) Storage() *storage.Storage {
	if b.quest == nil {
		return nil
	}
	return b.quest.Storage()
}

// Use returns the live World of type W, creating it on first use.
func Use[W World](q *Quest) (W, error) {
	var zero W
	w, err := q.UseType(reflect.TypeFor[W]())
	if err != nil {
		return zero, err
	}
	return w.(W), nil
}

// MustUse is Use for test code that cannot continue without the World.
func MustUse[W World](q *Quest) W {
	w, err := Use[W](q)
	if err != nil {
		panic(err)
	}
	return w
}

// Register injects w as the World of type W, replacing any live one.
func Register[W World](q *Quest, w W) error {
	return q.registerType(reflect.TypeFor[W](), w)
}

// Remove evicts the World of type W. A later Use builds a fresh instance.
func Remove[W World](q *Quest) bool {
	return q.RemoveWorld(reflect.TypeFor[W]())
}

// Cast returns the live World of type W without creating one.
func Cast[W World](q *Quest) (W, error) {
	var zero W
	w, err := q.CastType(reflect.TypeFor[W]())
	if err != nil {
		return zero, err
	}
	return w.(W), nil
}

// Artifact returns the first value of type A held by the live World W, taken
// from ArtifactHolder.Artifacts when implemented, then from W's exported
// struct fields. Nil values are skipped.
func Artifact[W World, A any](q *Quest) (A, error) {
	var zero A
	w, err := Cast[W](q)
	if err != nil {
		return zero, err
	}

	if holder, ok := any(w).(ArtifactHolder); ok {
		for _, v := range holder.Artifacts() {
			if a, ok := v.(A); ok && !isNil(reflect.ValueOf(v)) {
				return a, nil
			}
		}
	}

	rv := reflect.ValueOf(w)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return zero, fmt.Errorf("%w: %s is nil", ErrArtifactNotFound, reflect.TypeFor[W]())
		}
		rv = rv.Elem()
	}
	if rv.Kind() == reflect.Struct {
		rt := rv.Type()
		for i := 0; i < rt.NumField(); i++ {
			if !rt.Field(i).IsExported() {
				continue
			}
			fv := rv.Field(i)
			if isNil(fv) {
				continue
			}
			if a, ok := fv.Interface().(A); ok {
				return a, nil
			}
		}
	}
	return zero, fmt.Errorf("%w: %s exposes no %s", ErrArtifactNotFound, reflect.TypeFor[W](), reflect.TypeFor[A]())
}

func isNil(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}
