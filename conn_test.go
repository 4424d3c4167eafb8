package pgsmith

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type execCall struct {
	sql    string
	params [][]byte
}

// fakeWire stands in for a live pgconn connection.
type fakeWire struct {
	calls    []execCall
	execFunc func(sql string, params [][]byte) (*pgconn.Result, error)
	copied   *bytes.Buffer
	copyOut  string
	closed   bool
}

func (f *fakeWire) execParams(_ context.Context, sql string, params [][]byte) (*pgconn.Result, error) {
	f.calls = append(f.calls, execCall{sql: sql, params: params})
	if f.execFunc != nil {
		return f.execFunc(sql, params)
	}
	return &pgconn.Result{}, nil
}

func (f *fakeWire) copyFrom(_ context.Context, r io.Reader, sql string) (pgconn.CommandTag, error) {
	if f.copied == nil {
		f.copied = &bytes.Buffer{}
	}
	io.Copy(f.copied, r)
	f.calls = append(f.calls, execCall{sql: sql})
	return pgconn.NewCommandTag("COPY 1"), nil
}

func (f *fakeWire) copyTo(_ context.Context, w io.Writer, sql string) (pgconn.CommandTag, error) {
	f.calls = append(f.calls, execCall{sql: sql})
	io.WriteString(w, f.copyOut)
	return pgconn.NewCommandTag("COPY 1"), nil
}

func (f *fakeWire) close(context.Context) error {
	f.closed = true
	return nil
}

func (f *fakeWire) isClosed() bool {
	return f.closed
}

func (f *fakeWire) sqls() []string {
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.sql
	}
	return out
}

func testConn(fw *fakeWire) *Conn {
	return &Conn{
		wire:    fw,
		typeMap: NewTypeMap(),
		builder: NewStatementBuilder(),
	}
}

func singleRowResult(name string, oid uint32, value string) *pgconn.Result {
	return &pgconn.Result{
		FieldDescriptions: []pgconn.FieldDescription{{Name: name, DataTypeOID: oid}},
		Rows:              [][][]byte{{[]byte(value)}},
		CommandTag:        pgconn.NewCommandTag("SELECT 1"),
	}
}

func TestConnExecEncodesArgsAndDecodesRows(t *testing.T) {
	fw := &fakeWire{
		execFunc: func(string, [][]byte) (*pgconn.Result, error) {
			return singleRowResult("n", pgtype.Int8OID, "42"), nil
		},
	}
	conn := testConn(fw)

	res, err := conn.Exec(context.Background(), "select n from t where id = $1", 7)
	require.NoError(t, err)

	require.Len(t, fw.calls, 1)
	assert.Equal(t, [][]byte{[]byte("7")}, fw.calls[0].params)

	require.Len(t, res.Rows, 1)
	assert.Equal(t, int64(42), res.Rows[0][0])
}

func TestConnExecNullColumn(t *testing.T) {
	fw := &fakeWire{
		execFunc: func(string, [][]byte) (*pgconn.Result, error) {
			return &pgconn.Result{
				FieldDescriptions: []pgconn.FieldDescription{{Name: "n", DataTypeOID: pgtype.Int8OID}},
				Rows:              [][][]byte{{nil}},
			}, nil
		},
	}
	conn := testConn(fw)

	res, err := conn.Exec(context.Background(), "select n from t")
	require.NoError(t, err)
	assert.Nil(t, res.Rows[0][0])
}

func TestConnExecDecodeErrorNamesColumn(t *testing.T) {
	fw := &fakeWire{
		execFunc: func(string, [][]byte) (*pgconn.Result, error) {
			return singleRowResult("age", pgtype.Int4OID, "oops"), nil
		},
	}
	conn := testConn(fw)

	_, err := conn.Exec(context.Background(), "select age from t")
	require.Error(t, err)

	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, "age", decodeErr.Column)
	assert.Equal(t, uint32(pgtype.Int4OID), decodeErr.OID)
}

func TestConnExecRejectsUnencodableArg(t *testing.T) {
	conn := testConn(&fakeWire{})

	_, err := conn.Exec(context.Background(), "select $1", struct{ X int }{1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "$1")
}

func TestConnInsertExecutesGeneratedSQL(t *testing.T) {
	fw := &fakeWire{}
	conn := testConn(fw)

	_, err := conn.Insert(context.Background(), "users",
		[]ColumnValue{Col("id", 1), Col("name", "Bo")},
		&InsertOptions{OnConflict: ConflictUpdate, ConflictKeys: []string{"id"}})
	require.NoError(t, err)

	require.Len(t, fw.calls, 1)
	assert.Equal(t,
		`INSERT INTO "users" ("id", "name") VALUES ($1, $2) ON CONFLICT ("id") DO UPDATE SET "name" = $2`,
		fw.calls[0].sql)
	assert.Equal(t, [][]byte{[]byte("1"), []byte("Bo")}, fw.calls[0].params)
}

func TestConnInsertBuilderErrorDoesNotExecute(t *testing.T) {
	fw := &fakeWire{}
	conn := testConn(fw)

	_, err := conn.Insert(context.Background(), "users", nil, nil)
	require.Error(t, err)
	assert.Empty(t, fw.calls)
}

func TestConnUpdateAndDelete(t *testing.T) {
	fw := &fakeWire{}
	conn := testConn(fw)

	_, err := conn.Update(context.Background(), "t", []ColumnValue{Col("x", 5)}, Where{Between("id", 10, 20)}, nil)
	require.NoError(t, err)

	_, err = conn.Delete(context.Background(), "t", Where{Eq("id", 3)}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{
		`UPDATE "t" SET "x" = $1 WHERE "id" BETWEEN $2 AND $3`,
		`DELETE FROM "t" WHERE "id" = $1`,
	}, fw.sqls())
	assert.Equal(t, [][]byte{[]byte("5"), []byte("10"), []byte("20")}, fw.calls[0].params)
}

func TestConnSelectValue(t *testing.T) {
	fw := &fakeWire{
		execFunc: func(string, [][]byte) (*pgconn.Result, error) {
			return singleRowResult("n", pgtype.BoolOID, "t"), nil
		},
	}
	conn := testConn(fw)

	v, err := conn.SelectValue(context.Background(), "select true")
	require.NoError(t, err)
	assert.Equal(t, true, v)
}

func TestConnSelectValueNoRows(t *testing.T) {
	conn := testConn(&fakeWire{})

	_, err := conn.SelectValue(context.Background(), "select 1 where false")
	require.ErrorIs(t, err, ErrNoRows)
}

func TestConnSelectColumn(t *testing.T) {
	fw := &fakeWire{
		execFunc: func(string, [][]byte) (*pgconn.Result, error) {
			return &pgconn.Result{
				FieldDescriptions: []pgconn.FieldDescription{{Name: "id", DataTypeOID: pgtype.Int4OID}},
				Rows:              [][][]byte{{[]byte("1")}, {[]byte("2")}, {[]byte("3")}},
			}, nil
		},
	}
	conn := testConn(fw)

	vals, err := conn.SelectColumn(context.Background(), "select id from t")
	require.NoError(t, err)
	assert.Equal(t, []any{int32(1), int32(2), int32(3)}, vals)
}

func TestTransactCommitsOnSuccess(t *testing.T) {
	fw := &fakeWire{}
	conn := testConn(fw)

	err := conn.Transact(context.Background(), func(tx *Conn) error {
		_, err := tx.Exec(context.Background(), "update t set x = 1")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"begin", "update t set x = 1", "commit"}, fw.sqls())
}

func TestTransactRollsBackAndReturnsOriginalError(t *testing.T) {
	fw := &fakeWire{}
	conn := testConn(fw)
	boom := errors.New("boom")

	err := conn.Transact(context.Background(), func(*Conn) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"begin", "rollback"}, fw.sqls())
}

func TestTransactSuppressesRollbackFailure(t *testing.T) {
	fw := &fakeWire{}
	fw.execFunc = func(sql string, _ [][]byte) (*pgconn.Result, error) {
		if sql == "rollback" {
			return nil, errors.New("rollback exploded")
		}
		return &pgconn.Result{}, nil
	}
	conn := testConn(fw)
	boom := errors.New("boom")

	err := conn.Transact(context.Background(), func(*Conn) error {
		return boom
	})
	// The unit of work's own error must win over the rollback failure.
	require.ErrorIs(t, err, boom)
	assert.NotContains(t, err.Error(), "rollback exploded")
}

func TestTransactBeginFailure(t *testing.T) {
	fw := &fakeWire{}
	fw.execFunc = func(sql string, _ [][]byte) (*pgconn.Result, error) {
		if sql == "begin" {
			return nil, errors.New("begin failed")
		}
		return &pgconn.Result{}, nil
	}
	conn := testConn(fw)

	ran := false
	err := conn.Transact(context.Background(), func(*Conn) error {
		ran = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, ran)
}

func TestTransactCommitFailurePropagates(t *testing.T) {
	fw := &fakeWire{}
	fw.execFunc = func(sql string, _ [][]byte) (*pgconn.Result, error) {
		if sql == "commit" {
			return nil, errors.New("commit failed")
		}
		return &pgconn.Result{}, nil
	}
	conn := testConn(fw)

	err := conn.Transact(context.Background(), func(*Conn) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "commit failed")
}

func TestTransactDoesNotNest(t *testing.T) {
	fw := &fakeWire{}
	conn := testConn(fw)

	err := conn.Transact(context.Background(), func(tx *Conn) error {
		return tx.Transact(context.Background(), func(*Conn) error { return nil })
	})
	require.ErrorIs(t, err, ErrNestedTransaction)
	// The inner Transact must not have issued a second begin.
	assert.Equal(t, []string{"begin", "rollback"}, fw.sqls())
}

func TestTransactRollsBackOnPanic(t *testing.T) {
	fw := &fakeWire{}
	conn := testConn(fw)

	require.Panics(t, func() {
		conn.Transact(context.Background(), func(*Conn) error {
			panic("kaboom")
		})
	})
	assert.Equal(t, []string{"begin", "rollback"}, fw.sqls())

	// The connection is usable for a fresh transaction afterwards.
	err := conn.Transact(context.Background(), func(*Conn) error { return nil })
	require.NoError(t, err)
}

func TestConnCopyPassThrough(t *testing.T) {
	fw := &fakeWire{copyOut: "1\t2\n"}
	conn := testConn(fw)

	_, err := conn.CopyFrom(context.Background(), strings.NewReader("a\tb\n"), "copy t from stdin")
	require.NoError(t, err)
	assert.Equal(t, "a\tb\n", fw.copied.String())

	var out bytes.Buffer
	_, err = conn.CopyTo(context.Background(), &out, "copy t to stdout")
	require.NoError(t, err)
	assert.Equal(t, "1\t2\n", out.String())
}

func TestConnEscaping(t *testing.T) {
	conn := testConn(&fakeWire{})

	assert.Equal(t, `"some col"`, conn.EscapeIdentifier("some col"))
	assert.Equal(t, `'it''s'`, conn.EscapeLiteral("it's"))
}

func TestConnReleaseIsIdempotentAndForwardsError(t *testing.T) {
	var got []error
	conn := &Conn{release: func(err error) { got = append(got, err) }}

	boom := errors.New("boom")
	conn.Release(boom)
	conn.Release(nil)
	conn.Release(boom)

	require.Len(t, got, 1)
	assert.Equal(t, boom, got[0])
}
