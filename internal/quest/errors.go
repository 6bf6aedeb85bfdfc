package quest

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrWorldNotRegistered is returned by Cast when no World of the type is live.
	ErrWorldNotRegistered = errors.New("world not registered")
	// ErrArtifactNotFound is returned when a World exposes no value of the requested shape.
	ErrArtifactNotFound = errors.New("artifact not found")
	// ErrQuestCompleted is returned by every operation on a completed quest.
	ErrQuestCompleted = errors.New("quest completed")
	// ErrNilCleanup is returned by OnComplete when no cleanup function is given.
	ErrNilCleanup = errors.New("nil cleanup function")
)

// CleanupError is one failed cleanup action.
type CleanupError struct {
	Name string
	Err  error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("cleanup %q: %v", e.Name, e.Err)
}

func (e *CleanupError) Unwrap() error { return e.Err }

// CleanupAggregateError is returned by Complete when one or more cleanup
// actions failed. Every failure is kept, in execution order.
type CleanupAggregateError struct {
	QuestID string
	Errors  []*CleanupError
}

func (e *CleanupAggregateError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		parts = append(parts, err.Error())
	}
	return fmt.Sprintf("quest %s: %d cleanup action(s) failed:\n- %s", e.QuestID, len(e.Errors), strings.Join(parts, "\n- "))
}

// Unwrap exposes the individual failures to errors.Is and errors.As.
func (e *CleanupAggregateError) Unwrap() []error {
	out := make([]error, len(e.Errors))
	for i, err := range e.Errors {
		out[i] = err
	}
	return out
}
