// Package pgsmith is a convenience layer over the PostgreSQL wire client
// pgconn.
/*
pgsmith manages connections (a bounded pool or a single lazily dialed
connection), generates parameterized INSERT, UPDATE, and DELETE statements
from structured inputs, wraps transaction begin/commit/rollback, and decodes
raw text wire values into Go values.

Statement Generation

Insert, Update, and Delete take ordered column/value pairs and render SQL
with positional placeholders. Values are always bound, never interpolated;
the only way to inline SQL text is the explicit Raw type.

	res, err := conn.Insert(ctx, "users",
		[]pgsmith.ColumnValue{
			pgsmith.Col("id", 1),
			pgsmith.Col("name", "Bo"),
			pgsmith.Col("updated_at", pgsmith.Raw("now()")),
		},
		&pgsmith.InsertOptions{
			OnConflict:   pgsmith.ConflictUpdate,
			ConflictKeys: []string{"id"},
		})

WHERE clauses are ordered condition lists built with Eq, Ne, Lt, Le, Gt, Ge,
and Between, joined with AND.

Value Decoding

Query results are decoded through a TypeMap, a registry keyed by PostgreSQL
type OID. The default registry covers booleans, integers (int8 falls back to
*big.Int beyond the JSON-safe span), floats, numeric and money as exact
decimals, the date/time family normalized to UTC, bytea, uuid, and json, plus
the one-dimensional array variant of each. Array columns decode lazily: the
row holds an *Array and nothing is parsed until Decode is called. Columns
with no registered decoder pass through as strings.

Connection Management

New builds a DB in one of two modes, fixed at construction: MaxConns > 0
selects a puddle-backed pool, MaxConns == 0 a single cached connection.
Releasing a connection with a non-nil error discards it instead of returning
it for reuse. Transact runs a unit of work inside begin/commit/rollback; a
failed unit of work always observes its own error, never the rollback's.
*/
package pgsmith
