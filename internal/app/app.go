package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/specialistvlad/questgrid/internal/auth"
	"github.com/specialistvlad/questgrid/internal/component"
	"github.com/specialistvlad/questgrid/internal/ctxlog"
	"github.com/specialistvlad/questgrid/internal/pipeline"
	"github.com/specialistvlad/questgrid/internal/quest"
	"github.com/specialistvlad/questgrid/internal/storage"
	"github.com/specialistvlad/questgrid/internal/suite"
)

// SuiteKey is where the runtime stores the loaded *suite.Suite inside a
// quest's runtime compartment.
const SuiteKey storage.Key = "suite"

// Runtime encapsulates the process-wide services shared by every quest.
type Runtime struct {
	outW     io.Writer
	logger   *slog.Logger
	settings *Settings
	registry *component.Registry
	auth     *auth.Client
	suite    *suite.Suite

	healthMu   sync.Mutex
	httpServer *http.Server
	stats      stats
}

type stats struct {
	active    atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
}

// Stats is a snapshot of quest counters.
type Stats struct {
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// New builds a runtime. authn may be nil when no test authenticates; modules
// default to the built-in component modules.
func New(ctx context.Context, outW io.Writer, settings *Settings, authn auth.Authenticator, modules ...component.Module) (*Runtime, error) {
	logger := newLogger(settings.LogLevel, settings.LogFormat, outW)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Debug("Logger configured successfully.")

	if len(modules) == 0 {
		modules = coreModules
	}
	reg := component.New(modules...)
	if err := reg.Build(); err != nil {
		return nil, fmt.Errorf("failed to build component registry: %w", err)
	}
	logger.Debug("Component registry built.", "modules", len(modules))

	s, err := loadSuite(ctx, settings.SuitePath)
	if err != nil {
		return nil, err
	}

	r := &Runtime{
		outW:     outW,
		logger:   logger,
		settings: settings,
		registry: reg,
		suite:    s,
	}
	if authn != nil {
		scope, err := auth.ParseScope(settings.AuthScope)
		if err != nil {
			return nil, err
		}
		r.auth = auth.NewClient(authn, auth.WithScope(scope), auth.WithTTL(settings.AuthTTL))
		logger.Debug("Authentication client configured.", "scope", scope.String())
	}
	return r, nil
}

// Logger returns the runtime's logger.
func (r *Runtime) Logger() *slog.Logger { return r.logger }

// Registry returns the component registry.
func (r *Runtime) Registry() *component.Registry { return r.registry }

// Auth returns the authentication client, nil when none was configured.
func (r *Runtime) Auth() *auth.Client { return r.auth }

// Suite returns the loaded suite.
func (r *Runtime) Suite() *suite.Suite { return r.suite }

// Stats returns the current quest counters.
func (r *Runtime) Stats() Stats {
	return Stats{
		Active:    r.stats.active.Load(),
		Completed: r.stats.completed.Load(),
		Failed:    r.stats.failed.Load(),
	}
}

// NewQuest creates a quest whose runtime compartment holds the registry, the
// authentication client and the suite, and whose static data is preloaded
// from the suite.
func (r *Runtime) NewQuest(ctx context.Context, opts ...quest.Option) (*quest.Quest, error) {
	if ctxlog.FromContext(ctx) == slog.Default() {
		ctx = ctxlog.WithLogger(ctx, r.logger)
	}
	q := quest.New(ctx, opts...)

	rt := q.Storage().Sub(quest.RuntimeKey)
	rt.Put(component.RegistryKey, r.registry)
	rt.Put(SuiteKey, r.suite)
	if r.auth != nil {
		rt.Put(auth.ClientKey, r.auth)
	}
	if err := pipeline.LoadStatic(q, r.suite); err != nil {
		return nil, err
	}
	r.stats.active.Add(1)
	return q, nil
}
