package db

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/questgrid/internal/quest"
)

type missingDriver struct{}

func (missingDriver) Driver() string   { return "nope" }
func (missingDriver) Protocol() string { return "tcp" }

type namedQuery struct{ name, sql string }

func (q namedQuery) Name() string  { return q.name }
func (q namedQuery) Query() string { return q.sql }

func connect(t *testing.T, q *quest.Quest) *World {
	t.Helper()
	w := quest.MustUse[*World](q)
	pool, err := w.Connect(context.Background(), SQLite, ":memory:")
	require.NoError(t, err)
	pool.SetMaxOpenConns(1)
	return w
}

func TestQueryAndExec(t *testing.T) {
	ctx := context.Background()
	q := quest.New(ctx)
	w := connect(t, q)

	_, err := w.Exec(ctx, SQLite, SQL(`CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)`))
	require.NoError(t, err)
	n, err := w.Exec(ctx, SQLite, SQL(`INSERT INTO users (name) VALUES (?), (?)`), "alice", "bob")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	byName := namedQuery{name: "users", sql: `SELECT id, name FROM users ORDER BY id`}
	rows, err := w.Query(ctx, SQLite, byName)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "alice", rows[0]["name"])
	assert.EqualValues(t, 2, rows[1]["id"])

	stored, err := w.Results(byName)
	require.NoError(t, err)
	assert.Equal(t, rows, stored)

	pool, err := quest.Artifact[*World, *sql.DB](q)
	require.NoError(t, err)
	require.NoError(t, q.Complete(ctx))
	assert.Error(t, pool.PingContext(ctx), "pool is closed on completion")
}

func TestConnect_Reuse(t *testing.T) {
	ctx := context.Background()
	q := quest.New(ctx)
	w := connect(t, q)

	first, err := w.DB(SQLite)
	require.NoError(t, err)
	again, err := w.Connect(ctx, SQLite, ":memory:")
	require.NoError(t, err)
	assert.Same(t, first, again)
}

func TestConnect_UnknownDriver(t *testing.T) {
	q := quest.New(context.Background())
	w := quest.MustUse[*World](q)

	_, err := w.Connect(context.Background(), missingDriver{}, "")
	assert.ErrorIs(t, err, ErrDriverNotRegistered)
}

func TestQuery_NotConnected(t *testing.T) {
	q := quest.New(context.Background())
	w := quest.MustUse[*World](q)

	_, err := w.Query(context.Background(), SQLite, SQL("SELECT 1"))
	assert.ErrorIs(t, err, ErrNotConnected)
	_, err = w.Exec(context.Background(), SQLite, SQL("SELECT 1"))
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestTypeKey(t *testing.T) {
	assert.EqualValues(t, "sqlite", TypeKey(SQLite))
	assert.EqualValues(t, "nope:tcp", TypeKey(missingDriver{}))
	assert.EqualValues(t, "SELECT 1", QueryKey(SQL("SELECT 1")))
}
