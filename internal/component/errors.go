package component

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDuplicateRegistration is matched by *DuplicateRegistrationError.
	ErrDuplicateRegistration = errors.New("duplicate component registration")
	// ErrUnresolvedComponentType is matched by *UnresolvedComponentTypeError.
	ErrUnresolvedComponentType = errors.New("unresolved component type")
	// ErrInvalidDeclaration reports a declaration that cannot be registered.
	ErrInvalidDeclaration = errors.New("invalid component declaration")
)

// Collision describes one key claimed by more than one declaration.
type Collision struct {
	Key     Key
	Sources []string
}

// DuplicateRegistrationError is returned by Build when two or more
// declarations claim the same key.
type DuplicateRegistrationError struct {
	Collisions []Collision
}

func (e *DuplicateRegistrationError) Error() string {
	parts := make([]string, 0, len(e.Collisions))
	for _, c := range e.Collisions {
		parts = append(parts, fmt.Sprintf("%s declared by %s", c.Key, strings.Join(c.Sources, ", ")))
	}
	return fmt.Sprintf("%s:\n- %s", ErrDuplicateRegistration, strings.Join(parts, "\n- "))
}

func (e *DuplicateRegistrationError) Is(target error) bool {
	return target == ErrDuplicateRegistration
}

// UnresolvedComponentTypeError is returned when no declaration serves a key.
type UnresolvedComponentTypeError struct {
	Key Key
}

func (e *UnresolvedComponentTypeError) Error() string {
	return fmt.Sprintf("%s: no implementation declared for %s", ErrUnresolvedComponentType, e.Key)
}

func (e *UnresolvedComponentTypeError) Is(target error) bool {
	return target == ErrUnresolvedComponentType
}
