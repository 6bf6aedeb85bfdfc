package quest

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/specialistvlad/questgrid/internal/ctxlog"
	"github.com/specialistvlad/questgrid/internal/storage"
)

// RuntimeKey is the root storage compartment where process-wide services
// (component registry, auth client) are published for Worlds.
const RuntimeKey storage.Key = "runtime"

// State is the lifecycle state of a quest.
type State int

const (
	Active State = iota
	Completed
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Completed:
		return "completed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// CleanupFunc is a cleanup action run by Complete.
type CleanupFunc func(ctx context.Context, q *Quest) error

type cleanup struct {
	name string
	fn   CleanupFunc
}

type slot struct {
	once  sync.Once
	world World
	err   error
}

// Quest is the orchestration context of one test execution.
type Quest struct {
	id      string
	logger  *slog.Logger
	storage *storage.Storage

	mu       sync.Mutex
	state    State
	closing  bool
	worlds   map[reflect.Type]*slot
	cleanups []cleanup
}

// Option configures a new Quest.
type Option func(*Quest)

// WithID overrides the generated quest ID.
func WithID(id string) Option {
	return func(q *Quest) { q.id = id }
}

// WithStorage uses s as the root storage instead of a fresh one.
func WithStorage(s *storage.Storage) Option {
	return func(q *Quest) { q.storage = s }
}

// New creates an Active quest. The quest logs through the context logger,
// tagged with its ID.
func New(ctx context.Context, opts ...Option) *Quest {
	q := &Quest{
		worlds: make(map[reflect.Type]*slot),
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.id == "" {
		q.id = uuid.NewString()
	}
	if q.storage == nil {
		q.storage = storage.New()
	}
	q.logger = ctxlog.FromContext(ctx).With("quest", q.id)
	q.logger.Debug("Quest created.")
	return q
}

// ID returns the quest identifier.
func (q *Quest) ID() string { return q.id }

// Logger returns the quest-scoped logger.
func (q *Quest) Logger() *slog.Logger { return q.logger }

// Storage returns the root storage node.
func (q *Quest) Storage() *storage.Storage { return q.storage }

// State returns the current lifecycle state.
func (q *Quest) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// UseType returns the live World of type t, constructing and attaching it on
// first use.
func (q *Quest) UseType(t reflect.Type) (World, error) {
	q.mu.Lock()
	if q.state == Completed {
		q.mu.Unlock()
		return nil, ErrQuestCompleted
	}
	s, ok := q.worlds[t]
	if !ok {
		s = &slot{}
		q.worlds[t] = s
	}
	q.mu.Unlock()

	s.once.Do(func() {
		w, err := construct(t)
		if err != nil {
			s.err = err
			q.mu.Lock()
			if q.worlds[t] == s {
				delete(q.worlds, t)
			}
			q.mu.Unlock()
			return
		}
		w.Attach(q)
		q.mu.Lock()
		s.world = w
		q.mu.Unlock()
		q.logger.Debug("World registered.", "world", t.String())
	})
	if s.err != nil {
		return nil, s.err
	}
	return s.world, nil
}

// RegisterWorld injects w, replacing any live World of the same dynamic type.
// The World is attached to the quest before it becomes visible.
func (q *Quest) RegisterWorld(w World) error {
	if w == nil {
		return fmt.Errorf("register world: nil world")
	}
	return q.registerType(reflect.TypeOf(w), w)
}

func (q *Quest) registerType(t reflect.Type, w World) error {
	if q.State() == Completed {
		return ErrQuestCompleted
	}
	w.Attach(q)

	s := &slot{world: w}
	s.once.Do(func() {})

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.state == Completed {
		return ErrQuestCompleted
	}
	q.worlds[t] = s
	q.logger.Debug("World injected.", "world", t.String())
	return nil
}

// RemoveWorld evicts the World of type t and reports whether one was live.
func (q *Quest) RemoveWorld(t reflect.Type) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.worlds[t]
	delete(q.worlds, t)
	if ok {
		q.logger.Debug("World removed.", "world", t.String())
	}
	return ok
}

// CastType returns the live World of type t without creating one.
func (q *Quest) CastType(t reflect.Type) (World, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.state == Completed {
		return nil, ErrQuestCompleted
	}
	s, ok := q.worlds[t]
	if !ok || s.world == nil {
		return nil, fmt.Errorf("%w: %s", ErrWorldNotRegistered, t)
	}
	return s.world, nil
}

// WorldTypes lists the types of the live Worlds.
func (q *Quest) WorldTypes() []reflect.Type {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]reflect.Type, 0, len(q.worlds))
	for t, s := range q.worlds {
		if s.world != nil {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// OnComplete registers a cleanup action. Actions run in registration order.
// Actions registered by a running cleanup are run in the same pass.
func (q *Quest) OnComplete(name string, fn CleanupFunc) error {
	if fn == nil {
		return fmt.Errorf("%w: %q", ErrNilCleanup, name)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.state == Completed {
		return ErrQuestCompleted
	}
	q.cleanups = append(q.cleanups, cleanup{name: name, fn: fn})
	return nil
}

// Complete runs every cleanup action, discards all Worlds and storage, and
// moves the quest to Completed. Failed or panicking cleanups do not stop the
// remaining ones; they are reported together as a *CleanupAggregateError.
func (q *Quest) Complete(ctx context.Context) error {
	q.mu.Lock()
	if q.state == Completed || q.closing {
		q.mu.Unlock()
		return ErrQuestCompleted
	}
	q.closing = true
	q.mu.Unlock()

	ctx = ctxlog.WithLogger(ctx, q.logger)
	var failures []*CleanupError
	for i := 0; ; i++ {
		q.mu.Lock()
		if i >= len(q.cleanups) {
			q.mu.Unlock()
			break
		}
		c := q.cleanups[i]
		q.mu.Unlock()

		if err := q.runCleanup(ctx, c); err != nil {
			q.logger.Warn("Cleanup failed.", "cleanup", c.name, "error", err)
			failures = append(failures, &CleanupError{Name: c.name, Err: err})
		}
	}

	q.mu.Lock()
	ran := len(q.cleanups)
	q.state = Completed
	q.worlds = make(map[reflect.Type]*slot)
	q.cleanups = nil
	q.mu.Unlock()
	q.storage.Clear()

	q.logger.Debug("Quest completed.", "cleanups", ran, "failed", len(failures))
	if len(failures) > 0 {
		return &CleanupAggregateError{QuestID: q.id, Errors: failures}
	}
	return nil
}

func (q *Quest) runCleanup(ctx context.Context, c cleanup) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	q.logger.Debug("Running cleanup.", "cleanup", c.name)
	return c.fn(ctx, q)
}

func construct(t reflect.Type) (World, error) {
	if t == nil {
		return nil, fmt.Errorf("construct world: nil type")
	}
	var v reflect.Value
	switch t.Kind() {
	case reflect.Pointer:
		v = reflect.New(t.Elem())
	case reflect.Interface:
		return nil, fmt.Errorf("construct world: %s is an interface", t)
	default:
		v = reflect.New(t).Elem()
	}
	w, ok := v.Interface().(World)
	if !ok {
		return nil, fmt.Errorf("construct world: %s does not implement quest.World", t)
	}
	return w, nil
}

type questKey struct{}

// WithQuest returns a context carrying q and its logger.
func WithQuest(ctx context.Context, q *Quest) context.Context {
	ctx = context.WithValue(ctx, questKey{}, q)
	return ctxlog.WithLogger(ctx, q.logger)
}

// FromContext returns the quest stored by WithQuest.
func FromContext(ctx context.Context) (*Quest, bool) {
	q, ok := ctx.Value(questKey{}).(*Quest)
	return q, ok
}
