package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/questgrid/internal/quest"
)

// noRowsDriver answers every statement with a result that cannot report
// affected rows.
type noRowsDriver struct{}

func (noRowsDriver) Open(string) (driver.Conn, error) { return noRowsConn{}, nil }

type noRowsConn struct{}

func (noRowsConn) Prepare(string) (driver.Stmt, error) { return noRowsStmt{}, nil }
func (noRowsConn) Close() error                        { return nil }
func (noRowsConn) Begin() (driver.Tx, error)           { return nil, errors.New("no transactions") }

type noRowsStmt struct{}

func (noRowsStmt) Close() error  { return nil }
func (noRowsStmt) NumInput() int { return -1 }
func (noRowsStmt) Exec([]driver.Value) (driver.Result, error) {
	return driver.ResultNoRows, nil
}
func (noRowsStmt) Query([]driver.Value) (driver.Rows, error) {
	return nil, errors.New("no rows")
}

func init() {
	sql.Register("questgrid-norows", noRowsDriver{})
}

type noRowsType struct{}

func (noRowsType) Driver() string   { return "questgrid-norows" }
func (noRowsType) Protocol() string { return "mem" }

func TestExec_RowsAffectedErrorIsReturned(t *testing.T) {
	ctx := context.Background()
	q := quest.New(ctx)
	w := quest.MustUse[*World](q)
	_, err := w.Connect(ctx, noRowsType{}, "")
	require.NoError(t, err)

	n, err := w.Exec(ctx, noRowsType{}, SQL(`CREATE TABLE t (id INTEGER)`))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "rows affected")
	assert.Zero(t, n)
	require.NoError(t, q.Complete(ctx))
}
