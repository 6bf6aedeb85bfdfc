package component

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"sync"
)

// Key identifies a capability interface plus the symbolic variant serving it.
type Key struct {
	Capability reflect.Type
	Type       any
}

// KeyFor returns the key for capability C and identifier typ.
func KeyFor[C any](typ any) Key {
	return Key{Capability: reflect.TypeFor[C](), Type: typ}
}

func (k Key) String() string {
	capName := "<nil>"
	if k.Capability != nil {
		capName = k.Capability.String()
	}
	return fmt.Sprintf("%s[%T(%v)]", capName, k.Type, k.Type)
}

// Factory builds an implementation for an owner, e.g. a UI driver handle.
type Factory func(owner any) (any, error)

// Declaration is an implementation self-declaring the key it serves.
type Declaration struct {
	Key    Key
	New    Factory
	Source string
}

// Implementation declares a factory for capability C under identifier typ.
func Implementation[C any](typ any, newFn func(owner any) (C, error)) Declaration {
	decl := Declaration{Key: KeyFor[C](typ)}
	if newFn != nil {
		decl.New = func(owner any) (any, error) { return newFn(owner) }
	}
	return decl
}

// Module is the interface that component providers implement to be scanned.
type Module interface {
	Register(c *Catalog)
}

// ModuleFunc adapts a function to the Module interface.
type ModuleFunc func(c *Catalog)

// Register implements Module.
func (f ModuleFunc) Register(c *Catalog) { f(c) }

// Catalog collects the declarations of one module during a registry build.
type Catalog struct {
	source string
	decls  []Declaration
}

// Declare records implementations. Declarations without a Source are
// attributed to the declaring module.
func (c *Catalog) Declare(decls ...Declaration) {
	for _, d := range decls {
		if d.Source == "" {
			d.Source = c.source
		}
		slog.Debug("Declaring component implementation.", "key", d.Key.String(), "source", d.Source)
		c.decls = append(c.decls, d)
	}
}

// Registration binds one key to exactly one factory.
type Registration struct {
	Key    Key
	Source string
	New    Factory
}

type instanceKey struct {
	key   Key
	owner any
}

type instance struct {
	once  sync.Once
	value any
	err   error
}

// Registry maps keys to live implementations. The registration table is built
// once and read-only afterwards; only the instance memo is mutated.
type Registry struct {
	modules []Module

	once     sync.Once
	regs     map[Key]*Registration
	buildErr error

	mu        sync.Mutex
	instances map[instanceKey]*instance
}

// New creates a registry that will scan the given modules on first use.
func New(modules ...Module) *Registry {
	return &Registry{
		modules:   modules,
		instances: make(map[instanceKey]*instance),
	}
}

// Build scans all modules exactly once. The outcome is sticky: later calls
// return the same error.
func (r *Registry) Build() error {
	r.once.Do(r.build)
	return r.buildErr
}

func (r *Registry) build() {
	regs := make(map[Key]*Registration)
	sources := make(map[Key][]string)
	var invalid []error

	for _, m := range r.modules {
		c := &Catalog{source: fmt.Sprintf("%T", m)}
		m.Register(c)
		for _, d := range c.decls {
			if err := validate(d); err != nil {
				invalid = append(invalid, err)
				continue
			}
			sources[d.Key] = append(sources[d.Key], d.Source)
			if _, exists := regs[d.Key]; !exists {
				regs[d.Key] = &Registration{Key: d.Key, Source: d.Source, New: d.New}
			}
		}
	}

	var collisions []Collision
	for key, srcs := range sources {
		if len(srcs) > 1 {
			collisions = append(collisions, Collision{Key: key, Sources: srcs})
		}
	}
	sort.Slice(collisions, func(i, j int) bool {
		return collisions[i].Key.String() < collisions[j].Key.String()
	})

	var errs []error
	if len(collisions) > 0 {
		errs = append(errs, &DuplicateRegistrationError{Collisions: collisions})
	}
	errs = append(errs, invalid...)
	if len(errs) > 0 {
		r.buildErr = errors.Join(errs...)
		return
	}

	r.regs = regs
	slog.Debug("Component registry built.", "modules", len(r.modules), "registrations", len(regs))
}

func validate(d Declaration) error {
	switch {
	case d.Key.Capability == nil:
		return fmt.Errorf("%w: %s has no capability", ErrInvalidDeclaration, d.Source)
	case d.Key.Type == nil:
		return fmt.Errorf("%w: %s declares %s without a type identifier", ErrInvalidDeclaration, d.Source, d.Key.Capability)
	case !reflect.TypeOf(d.Key.Type).Comparable():
		return fmt.Errorf("%w: %s uses non-comparable identifier %T", ErrInvalidDeclaration, d.Source, d.Key.Type)
	case d.New == nil:
		return fmt.Errorf("%w: %s declares %s without a factory", ErrInvalidDeclaration, d.Source, d.Key)
	}
	return nil
}

// Lookup returns the registration for key without constructing anything.
func (r *Registry) Lookup(key Key) (*Registration, error) {
	if err := r.Build(); err != nil {
		return nil, err
	}
	if key.Type != nil && !reflect.TypeOf(key.Type).Comparable() {
		return nil, &UnresolvedComponentTypeError{Key: key}
	}
	reg, ok := r.regs[key]
	if !ok {
		return nil, &UnresolvedComponentTypeError{Key: key}
	}
	return reg, nil
}

// Resolve returns the implementation for key bound to owner, constructing it
// on the first request for that (key, owner) pair. Construction failures are
// memoized and returned to every later caller.
func (r *Registry) Resolve(owner any, key Key) (any, error) {
	reg, err := r.Lookup(key)
	if err != nil {
		return nil, err
	}
	if owner != nil && !reflect.TypeOf(owner).Comparable() {
		return nil, fmt.Errorf("resolve %s: owner of type %T is not comparable", key, owner)
	}

	ik := instanceKey{key: key, owner: owner}
	r.mu.Lock()
	inst, ok := r.instances[ik]
	if !ok {
		inst = &instance{}
		r.instances[ik] = inst
	}
	r.mu.Unlock()

	inst.once.Do(func() {
		slog.Debug("Constructing component.", "key", key.String(), "source", reg.Source)
		inst.value, inst.err = reg.New(owner)
		if inst.err != nil {
			inst.err = fmt.Errorf("construct %s from %s: %w", key, reg.Source, inst.err)
		}
	})
	return inst.value, inst.err
}

// Resolve returns the implementation of capability C declared under typ for owner.
func Resolve[C any](r *Registry, owner any, typ any) (C, error) {
	var zero C
	v, err := r.Resolve(owner, KeyFor[C](typ))
	if err != nil {
		return zero, err
	}
	c, ok := v.(C)
	if !ok {
		return zero, fmt.Errorf("%w: factory for %s returned %T", ErrInvalidDeclaration, KeyFor[C](typ), v)
	}
	return c, nil
}

// Release forgets every instance memoized for owner and reports how many
// were dropped.
func (r *Registry) Release(owner any) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for ik := range r.instances {
		if ik.owner == owner {
			delete(r.instances, ik)
			n++
		}
	}
	return n
}

// Declarations lists the built registrations ordered by key.
func (r *Registry) Declarations() ([]Registration, error) {
	if err := r.Build(); err != nil {
		return nil, err
	}
	out := make([]Registration, 0, len(r.regs))
	for _, reg := range r.regs {
		out = append(out, *reg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.String() < out[j].Key.String() })
	return out, nil
}
