package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Late is a value computed on first demand and memoized afterwards. The
// supplier's error is memoized as well, and a panicking supplier is memoized
// as an error.
type Late[T any] struct {
	once   sync.Once
	supply func(ctx context.Context) (T, error)
	value  T
	err    error
	done   atomic.Bool
}

// NewLate wraps supply.
func NewLate[T any](supply func(ctx context.Context) (T, error)) *Late[T] {
	return &Late[T]{supply: supply}
}

// Get returns the value, invoking the supplier on the first call only.
func (l *Late[T]) Get(ctx context.Context) (T, error) {
	l.once.Do(func() {
		defer l.done.Store(true)
		defer func() {
			if r := recover(); r != nil {
				var zero T
				l.value, l.err = zero, fmt.Errorf("panic: %v", r)
			}
		}()
		l.value, l.err = l.supply(ctx)
	})
	return l.value, l.err
}

// Evaluated reports whether the supplier has already run.
func (l *Late[T]) Evaluated() bool {
	return l.done.Load()
}
