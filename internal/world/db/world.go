// Package db provides the DB World: database/sql pools per database type,
// opened on demand and closed when the quest completes.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/specialistvlad/questgrid/internal/ctxlog"
	"github.com/specialistvlad/questgrid/internal/quest"
	"github.com/specialistvlad/questgrid/internal/storage"
)

// ResultsKey is the storage compartment holding the last rows per query.
const ResultsKey storage.Key = "db.results"

var (
	// ErrDriverNotRegistered is returned when a Type names a database/sql
	// driver that was never linked into the binary.
	ErrDriverNotRegistered = errors.New("database driver not registered")
	// ErrNotConnected is returned by Query and Exec before Connect.
	ErrNotConnected = errors.New("database not connected")
)

// Type identifies a kind of database.
type Type interface {
	Driver() string
	Protocol() string
}

// Query is a statement to run.
type Query interface {
	Query() string
}

// SQL is a Query over a literal statement.
type SQL string

func (s SQL) Query() string { return string(s) }

type sqlite struct{}

func (sqlite) Name() string     { return "sqlite" }
func (sqlite) Driver() string   { return "sqlite" }
func (sqlite) Protocol() string { return "file" }

// SQLite is the pure Go sqlite database type.
var SQLite Type = sqlite{}

// TypeKey identifies t in storage and in the pool map.
func TypeKey(t Type) storage.Key {
	if n, ok := t.(interface{ Name() string }); ok && n.Name() != "" {
		return storage.Key(n.Name())
	}
	return storage.Key(t.Driver() + ":" + t.Protocol())
}

// World holds the open pools of one quest.
type World struct {
	quest.Base

	mu    sync.Mutex
	pools map[storage.Key]*sql.DB
}

// Artifacts exposes every open pool.
func (w *World) Artifacts() []any {
	w.mu.Lock()
	defer w.mu.Unlock()
	keys := make([]storage.Key, 0, len(w.pools))
	for k := range w.pools {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make([]any, 0, len(keys))
	for _, k := range keys {
		out = append(out, w.pools[k])
	}
	return out
}

// Connect opens a pool for typ. Connecting an already connected type returns
// the existing pool.
func (w *World) Connect(ctx context.Context, typ Type, dsn string) (*sql.DB, error) {
	key := TypeKey(typ)
	w.mu.Lock()
	defer w.mu.Unlock()
	if db, ok := w.pools[key]; ok {
		return db, nil
	}
	if !slices.Contains(sql.Drivers(), typ.Driver()) {
		return nil, fmt.Errorf("%w: %q", ErrDriverNotRegistered, typ.Driver())
	}

	logger := ctxlog.FromContext(ctx).With("database", string(key))
	logger.Debug("Opening database pool.")
	db, err := sql.Open(typ.Driver(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", key, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", key, err)
	}
	if w.pools == nil {
		w.pools = make(map[storage.Key]*sql.DB)
	}
	w.pools[key] = db

	if q := w.Quest(); q != nil {
		err := q.OnComplete("db:close:"+string(key), func(ctx context.Context, _ *quest.Quest) error {
			logger.Debug("Closing database pool.")
			return db.Close()
		})
		if err != nil {
			_ = db.Close()
			delete(w.pools, key)
			return nil, err
		}
	}
	return db, nil
}

// DB returns the open pool for typ.
func (w *World) DB(typ Type) (*sql.DB, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	db, ok := w.pools[TypeKey(typ)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotConnected, TypeKey(typ))
	}
	return db, nil
}

// Query runs q and returns every row as a column map. The rows are also
// recorded under the query's key.
func (w *World) Query(ctx context.Context, typ Type, q Query, args ...any) ([]map[string]any, error) {
	db, err := w.DB(typ)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, q.Query(), args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", TypeKey(typ), err)
	}
	defer rows.Close()

	out, err := scan(rows)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", TypeKey(typ), err)
	}
	if s := w.Storage(); s != nil {
		s.Sub(ResultsKey).Put(QueryKey(q), out)
	}
	return out, nil
}

// Exec runs a statement that returns no rows, typically a fixture.
func (w *World) Exec(ctx context.Context, typ Type, q Query, args ...any) (int64, error) {
	db, err := w.DB(typ)
	if err != nil {
		return 0, err
	}
	res, err := db.ExecContext(ctx, q.Query(), args...)
	if err != nil {
		return 0, fmt.Errorf("exec %s: %w", TypeKey(typ), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected %s: %w", TypeKey(typ), err)
	}
	return n, nil
}

// Results returns the rows last recorded for q.
func (w *World) Results(q Query) ([]map[string]any, error) {
	s := w.Storage()
	if s == nil {
		return nil, fmt.Errorf("db world is not attached to a quest")
	}
	return storage.Get[[]map[string]any](s.Sub(ResultsKey), QueryKey(q))
}

// QueryKey identifies q in storage.
func QueryKey(q Query) storage.Key {
	if n, ok := q.(interface{ Name() string }); ok && n.Name() != "" {
		return storage.Key(n.Name())
	}
	return storage.Key(q.Query())
}

func scan(rows *sql.Rows) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := []map[string]any{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[c] = string(b)
				continue
			}
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
