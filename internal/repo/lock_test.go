package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type boolRow struct {
	v   bool
	err error
}

func (r boolRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*bool) = r.v
	return nil
}

// fakeConn answers like a single Postgres session holding advisory locks.
type fakeConn struct {
	held     map[int64]bool
	queries  []string
	released int
}

func (c *fakeConn) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	c.queries = append(c.queries, sql)
	key := args[0].(int64)
	switch sql {
	case "SELECT pg_try_advisory_lock($1)":
		if c.held[key] {
			return boolRow{v: false}
		}
		c.held[key] = true
		return boolRow{v: true}
	case "SELECT pg_advisory_unlock($1)":
		ok := c.held[key]
		delete(c.held, key)
		return boolRow{v: ok}
	}
	return boolRow{err: errors.New("unexpected query")}
}

func (c *fakeConn) Release() { c.released++ }

func TestTryAdvisoryLock_UnlocksOnSameSession(t *testing.T) {
	conn := &fakeConn{held: map[int64]bool{}}

	unlock, ok, err := tryAdvisoryLock(context.Background(), conn, 42)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, conn.held[42])
	assert.Zero(t, conn.released, "connection must stay out of the pool while locked")

	require.NoError(t, unlock(context.Background()))
	assert.False(t, conn.held[42])
	assert.Equal(t, 1, conn.released)
	assert.Equal(t, []string{"SELECT pg_try_advisory_lock($1)", "SELECT pg_advisory_unlock($1)"}, conn.queries)
}

func TestTryAdvisoryLock_HeldElsewhere(t *testing.T) {
	conn := &fakeConn{held: map[int64]bool{42: true}}

	unlock, ok, err := tryAdvisoryLock(context.Background(), conn, 42)

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, unlock)
	assert.Equal(t, 1, conn.released)
}

func TestTryAdvisoryLock_UnlockFalseIsError(t *testing.T) {
	conn := &fakeConn{held: map[int64]bool{}}
	unlock, ok, err := tryAdvisoryLock(context.Background(), conn, 7)
	require.NoError(t, err)
	require.True(t, ok)

	delete(conn.held, 7)
	assert.Error(t, unlock(context.Background()))
	assert.Equal(t, 1, conn.released)
}
