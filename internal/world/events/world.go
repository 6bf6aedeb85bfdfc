// Package events provides a custom World speaking socket.io: emit an event,
// await the reply event, keep the payload in quest storage.
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/specialistvlad/questgrid/internal/ctxlog"
	"github.com/specialistvlad/questgrid/internal/quest"
	"github.com/specialistvlad/questgrid/internal/storage"
)

// ReceivedKey is the storage compartment holding the last payload per
// awaited event.
const ReceivedKey storage.Key = "events.received"

// DefaultRequestTimeout applies when Request is given no timeout.
const DefaultRequestTimeout = 10 * time.Second

var (
	// ErrNotConnected is returned before Connect or after the socket dropped.
	ErrNotConnected = errors.New("socket.io client not connected")
	// ErrTimeout is returned when the awaited event does not arrive in time.
	ErrTimeout = errors.New("timed out waiting for event")
)

// World holds the socket of one quest.
type World struct {
	quest.Base

	mu     sync.Mutex
	socket Socket
}

// Artifacts exposes the socket.
func (w *World) Artifacts() []any {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.socket == nil {
		return nil
	}
	return []any{w.socket}
}

// Connect dials opts and registers a disconnect at quest completion.
func (w *World) Connect(ctx context.Context, opts Options) error {
	s, err := Dial(ctx, opts)
	if err != nil {
		return err
	}
	return w.UseSocket(s)
}

// UseSocket installs an already connected socket. A previous socket is
// disconnected.
func (w *World) UseSocket(s Socket) error {
	w.mu.Lock()
	prev := w.socket
	w.socket = s
	w.mu.Unlock()
	if prev != nil && prev != s {
		prev.Disconnect()
	}
	q := w.Quest()
	if q == nil {
		return nil
	}
	return q.OnComplete("events:disconnect", func(ctx context.Context, _ *quest.Quest) error {
		ctxlog.FromContext(ctx).Debug("Disconnecting socket.io client", "sid", s.ID())
		s.Disconnect()
		return nil
	})
}

func (w *World) connected() (Socket, error) {
	w.mu.Lock()
	s := w.socket
	w.mu.Unlock()
	if s == nil || !s.Connected() {
		return nil, ErrNotConnected
	}
	return s, nil
}

// Emit sends event without waiting for a reply.
func (w *World) Emit(ctx context.Context, event string, data ...any) error {
	s, err := w.connected()
	if err != nil {
		return err
	}
	ctxlog.FromContext(ctx).Debug("Emitting event", "event", event, "sid", s.ID())
	s.Emit(event, data...)
	return nil
}

// Request emits emitEvent with data, then waits for awaitEvent. The first
// argument of the reply is returned and recorded under awaitEvent; a reply
// without arguments yields nil.
func (w *World) Request(ctx context.Context, emitEvent, awaitEvent string, data any, timeout time.Duration) (any, error) {
	s, err := w.connected()
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	logger := ctxlog.FromContext(ctx).With("sid", s.ID(), "emitEvent", emitEvent, "awaitEvent", awaitEvent)

	done := make(chan any, 1)
	s.Once(awaitEvent, func(args ...any) {
		var payload any
		if len(args) > 0 {
			payload = args[0]
		}
		select {
		case done <- payload:
		default:
		}
	})

	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	logger.Debug("Emitting request event")
	if data == nil {
		s.Emit(emitEvent)
	} else {
		s.Emit(emitEvent, data)
	}

	select {
	case payload := <-done:
		logger.Debug("Received response event")
		if st := w.Storage(); st != nil {
			st.Sub(ReceivedKey).Put(storage.Key(awaitEvent), payload)
		}
		return payload, nil
	case <-opCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w %q after %s", ErrTimeout, awaitEvent, timeout)
	}
}

// Received returns the payload last recorded for event.
func (w *World) Received(event string) (any, error) {
	st := w.Storage()
	if st == nil {
		return nil, fmt.Errorf("events world is not attached to a quest")
	}
	return st.Sub(ReceivedKey).Value(storage.Key(event))
}
