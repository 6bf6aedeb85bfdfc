package app

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/specialistvlad/questgrid/internal/ctxlog"
	"github.com/specialistvlad/questgrid/internal/quest"
)

// Body is the code of one test case.
type Body func(ctx context.Context, q *quest.Quest) error

// Case is a named test body.
type Case struct {
	Name string
	Body Body
}

// CaseError reports the failure of one case.
type CaseError struct {
	Name    string
	QuestID string
	Err     error
}

func (e *CaseError) Error() string {
	return fmt.Sprintf("case %q (quest %s): %v", e.Name, e.QuestID, e.Err)
}

func (e *CaseError) Unwrap() error { return e.Err }

// Run executes body against a fresh quest and completes the quest whatever
// the outcome. Body and cleanup failures are joined into a *CaseError.
func (r *Runtime) Run(ctx context.Context, name string, body Body) error {
	ctx, logger := ctxlog.With(ctxlog.WithLogger(ctx, r.logger), "case", name)
	q, err := r.NewQuest(ctx)
	if err != nil {
		return &CaseError{Name: name, Err: err}
	}
	ctx = quest.WithQuest(ctx, q)

	logger.Debug("Case started.", "quest", q.ID())
	start := time.Now()
	bodyErr := runBody(ctx, q, body)
	cleanupErr := q.Complete(ctx)
	r.stats.active.Add(-1)

	if err := errors.Join(bodyErr, cleanupErr); err != nil {
		r.stats.failed.Add(1)
		logger.Warn("Case failed.", "quest", q.ID(), "duration", time.Since(start), "error", err)
		return &CaseError{Name: name, QuestID: q.ID(), Err: err}
	}
	r.stats.completed.Add(1)
	logger.Info("Case passed.", "quest", q.ID(), "duration", time.Since(start))
	return nil
}

func runBody(ctx context.Context, q *quest.Quest, body Body) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v\n%s", rec, debug.Stack())
		}
	}()
	return body(ctx, q)
}

// RunParallel runs every case on a pool of Settings.Workers goroutines, each
// case on its own quest. All cases run; their failures are joined.
func (r *Runtime) RunParallel(ctx context.Context, cases ...Case) error {
	r.logger.Info("Starting parallel run.", "cases", len(cases), "workers", r.settings.Workers)

	errs := make([]error, len(cases))
	var g errgroup.Group
	g.SetLimit(r.settings.Workers)
	for i, c := range cases {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = &CaseError{Name: c.Name, Err: err}
				return nil
			}
			errs[i] = r.Run(ctx, c.Name, c.Body)
			return nil
		})
	}
	_ = g.Wait()

	err := errors.Join(errs...)
	s := r.Stats()
	r.logger.Info("Parallel run finished.", "completed", s.Completed, "failed", s.Failed)
	return err
}
