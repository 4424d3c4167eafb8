package pgsmith

import (
	"context"
	"io"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
)

// wire is the slice of the transport a Conn actually needs. Production
// connections adapt *pgconn.PgConn; tests substitute fakes.
type wire interface {
	execParams(ctx context.Context, sql string, paramValues [][]byte) (*pgconn.Result, error)
	copyFrom(ctx context.Context, r io.Reader, sql string) (pgconn.CommandTag, error)
	copyTo(ctx context.Context, w io.Writer, sql string) (pgconn.CommandTag, error)
	close(ctx context.Context) error
	isClosed() bool
}

type pgWire struct {
	conn *pgconn.PgConn
}

func (w *pgWire) execParams(ctx context.Context, sql string, paramValues [][]byte) (*pgconn.Result, error) {
	res := w.conn.ExecParams(ctx, sql, paramValues, nil, nil, nil).Read()
	if res.Err != nil {
		return nil, res.Err
	}
	return res, nil
}

func (w *pgWire) copyFrom(ctx context.Context, r io.Reader, sql string) (pgconn.CommandTag, error) {
	return w.conn.CopyFrom(ctx, r, sql)
}

func (w *pgWire) copyTo(ctx context.Context, wr io.Writer, sql string) (pgconn.CommandTag, error) {
	return w.conn.CopyTo(ctx, wr, sql)
}

func (w *pgWire) close(ctx context.Context) error {
	return w.conn.Close(ctx)
}

func (w *pgWire) isClosed() bool {
	return w.conn.IsClosed()
}

// Conn wraps one live database connection with statement generation, value
// decoding, and transaction handling. A Conn is not safe for concurrent use
// and must not be used after Release.
type Conn struct {
	wire     wire
	typeMap  *TypeMap
	builder  *StatementBuilder
	logger   zerolog.Logger
	release  func(error)
	released bool
	inTx     bool
}

// Exec runs a parameterized statement. Arguments are always bound, never
// interpolated; results come back decoded through the connection's TypeMap.
func (c *Conn) Exec(ctx context.Context, sql string, args ...any) (*Result, error) {
	params, err := encodeArgs(args)
	if err != nil {
		return nil, err
	}
	res, err := c.wire.execParams(ctx, sql, params)
	if err != nil {
		return nil, err
	}
	return newResult(c.typeMap, res)
}

// Insert generates and executes an INSERT for the given column values.
func (c *Conn) Insert(ctx context.Context, table string, values []ColumnValue, opts *InsertOptions) (*Result, error) {
	sql, args, err := c.builder.Insert(table, values, opts)
	if err != nil {
		return nil, err
	}
	return c.Exec(ctx, sql, args...)
}

// Update generates and executes an UPDATE for the given column values and
// WHERE conditions.
func (c *Conn) Update(ctx context.Context, table string, values []ColumnValue, where Where, opts *StatementOptions) (*Result, error) {
	sql, args, err := c.builder.Update(table, values, where, opts)
	if err != nil {
		return nil, err
	}
	return c.Exec(ctx, sql, args...)
}

// Delete generates and executes a DELETE for the given WHERE conditions.
func (c *Conn) Delete(ctx context.Context, table string, where Where, opts *StatementOptions) (*Result, error) {
	sql, args, err := c.builder.Delete(table, where, opts)
	if err != nil {
		return nil, err
	}
	return c.Exec(ctx, sql, args...)
}

// SelectValue runs a query and returns the first column of the first row.
// It returns ErrNoRows when the query produces no rows.
func (c *Conn) SelectValue(ctx context.Context, sql string, args ...any) (any, error) {
	res, err := c.Exec(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	if len(res.Rows) == 0 || len(res.Rows[0]) == 0 {
		return nil, ErrNoRows
	}
	return res.Rows[0][0], nil
}

// SelectColumn runs a query and returns the first column of every row.
func (c *Conn) SelectColumn(ctx context.Context, sql string, args ...any) ([]any, error) {
	res, err := c.Exec(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	column := make([]any, 0, len(res.Rows))
	for _, row := range res.Rows {
		if len(row) == 0 {
			return nil, ErrNoRows
		}
		column = append(column, row[0])
	}
	return column, nil
}

// Transact runs fn inside a transaction. The transaction is committed when
// fn returns nil and rolled back when fn returns an error or panics. A
// rollback failure is logged and suppressed so the caller always observes
// fn's own error. Transactions do not nest.
func (c *Conn) Transact(ctx context.Context, fn func(*Conn) error) error {
	if c.inTx {
		return ErrNestedTransaction
	}

	if _, err := c.Exec(ctx, "begin"); err != nil {
		return err
	}
	c.inTx = true
	defer func() { c.inTx = false }()

	defer func() {
		if p := recover(); p != nil {
			c.rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(c); err != nil {
		c.rollback(ctx)
		return err
	}

	_, err := c.Exec(ctx, "commit")
	return err
}

func (c *Conn) rollback(ctx context.Context) {
	if _, err := c.Exec(ctx, "rollback"); err != nil {
		c.logger.Warn().Err(err).Msg("rollback failed")
	}
}

// CopyFrom streams COPY FROM STDIN data from r. sql must be a COPY ... FROM
// STDIN statement.
func (c *Conn) CopyFrom(ctx context.Context, r io.Reader, sql string) (pgconn.CommandTag, error) {
	return c.wire.copyFrom(ctx, r, sql)
}

// CopyTo streams COPY TO STDOUT data into w. sql must be a COPY ... TO
// STDOUT statement.
func (c *Conn) CopyTo(ctx context.Context, w io.Writer, sql string) (pgconn.CommandTag, error) {
	return c.wire.copyTo(ctx, w, sql)
}

// EscapeIdentifier quotes a SQL identifier.
func (c *Conn) EscapeIdentifier(s string) string {
	return pq.QuoteIdentifier(s)
}

// EscapeLiteral quotes a SQL string literal.
func (c *Conn) EscapeLiteral(s string) string {
	return pq.QuoteLiteral(s)
}

// Release returns the connection to where it came from. A non-nil err marks
// the connection unhealthy so it is discarded instead of reused. Calling
// Release more than once is a no-op.
func (c *Conn) Release(err error) {
	if c.released {
		return
	}
	c.released = true
	if c.release != nil {
		c.release(err)
	}
}
