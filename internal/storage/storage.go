package storage

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
)

// Key is a symbolic storage key. Packages declare their own constants, e.g.
//
//	const Responses storage.Key = "api.responses"
type Key string

// ErrStorageKey is matched by every *KeyError.
var ErrStorageKey = errors.New("storage key error")

// KeyError reports a read of a missing key or of a value with an unexpected type.
type KeyError struct {
	Path     string
	Key      Key
	Expected string
	Actual   string // empty when the key is missing
}

func (e *KeyError) Error() string {
	if e.Actual == "" {
		return fmt.Sprintf("storage %s: key %q not found", e.Path, e.Key)
	}
	return fmt.Sprintf("storage %s: key %q holds %s, want %s", e.Path, e.Key, e.Actual, e.Expected)
}

// Is lets errors.Is(err, ErrStorageKey) match.
func (e *KeyError) Is(target error) bool {
	return target == ErrStorageKey
}

// Storage is one node of the storage tree.
type Storage struct {
	mu       sync.RWMutex
	path     string
	values   map[Key]any
	children map[Key]*Storage
}

// New creates an empty root node.
func New() *Storage {
	return newNode("root")
}

func newNode(path string) *Storage {
	return &Storage{
		path:     path,
		values:   make(map[Key]any),
		children: make(map[Key]*Storage),
	}
}

// Path returns the slash separated location of the node, starting at "root".
func (s *Storage) Path() string {
	return s.path
}

// Put stores value under key, replacing any previous value.
func (s *Storage) Put(key Key, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// PutIfAbsent stores value under key unless a value is already present. It
// returns the value that is stored after the call and whether it was
// already there.
func (s *Storage) PutIfAbsent(key Key, value any) (actual any, loaded bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.values[key]; ok {
		return existing, true
	}
	s.values[key] = value
	return value, false
}

// Value returns the raw value stored under key.
func (s *Storage) Value(key Key) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok {
		return nil, &KeyError{Path: s.path, Key: key}
	}
	return v, nil
}

// Has reports whether a value is stored under key.
func (s *Storage) Has(key Key) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.values[key]
	return ok
}

// Delete removes the value stored under key. Children are not affected.
func (s *Storage) Delete(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

// Keys returns the value keys of this node in sorted order.
func (s *Storage) Keys() []Key {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]Key, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Sub returns the child node for key, creating it on first request. Repeated
// calls with the same key return the same node.
func (s *Storage) Sub(key Key) *Storage {
	s.mu.RLock()
	child, ok := s.children[key]
	s.mu.RUnlock()
	if ok {
		return child
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if child, ok := s.children[key]; ok {
		return child
	}
	child = newNode(strings.Join([]string{s.path, string(key)}, "/"))
	s.children[key] = child
	return child
}

// Clear drops every value and child of this node, recursively.
func (s *Storage) Clear() {
	s.mu.Lock()
	children := s.children
	s.values = make(map[Key]any)
	s.children = make(map[Key]*Storage)
	s.mu.Unlock()

	for _, child := range children {
		child.Clear()
	}
}

// Get returns the value stored under key as a T.
//
// A nil value is returned as the zero T. Any other value that is not a T
// yields a *KeyError.
func Get[T any](s *Storage, key Key) (T, error) {
	var zero T
	raw, err := s.Value(key)
	if err != nil {
		return zero, err
	}
	if raw == nil {
		return zero, nil
	}
	v, ok := raw.(T)
	if !ok {
		return zero, &KeyError{
			Path:     s.path,
			Key:      key,
			Expected: reflect.TypeFor[T]().String(),
			Actual:   reflect.TypeOf(raw).String(),
		}
	}
	return v, nil
}

// GetOr returns the value stored under key as a T, or fallback when the key
// is missing. Type mismatches are still reported.
func GetOr[T any](s *Storage, key Key, fallback T) (T, error) {
	v, err := Get[T](s, key)
	var keyErr *KeyError
	if errors.As(err, &keyErr) && keyErr.Actual == "" {
		return fallback, nil
	}
	return v, err
}
