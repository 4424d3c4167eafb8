package pgsmith

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// Raw is a SQL fragment inlined verbatim into a generated statement instead
// of being bound as a parameter. Anything that is not a Raw is always bound,
// so ordinary values can never be interpolated into SQL text.
type Raw string

// ColumnValue pairs a column name with the value to insert or assign.
// Statements are generated in slice order.
type ColumnValue struct {
	Name  string
	Value any
}

// Col is shorthand for building a ColumnValue.
func Col(name string, value any) ColumnValue {
	return ColumnValue{Name: name, Value: value}
}

// CompareOp is a WHERE clause comparison operator.
type CompareOp int

const (
	OpEqual CompareOp = iota
	OpNotEqual
	OpLess
	OpLessOrEqual
	OpGreater
	OpGreaterOrEqual
	OpBetween
)

func (op CompareOp) sqlString() string {
	switch op {
	case OpEqual:
		return "="
	case OpNotEqual:
		return "<>"
	case OpLess:
		return "<"
	case OpLessOrEqual:
		return "<="
	case OpGreater:
		return ">"
	case OpGreaterOrEqual:
		return ">="
	case OpBetween:
		return "BETWEEN"
	}
	return ""
}

// Condition is one WHERE clause comparison. Upper is only consulted when Op
// is OpBetween, in which case the condition binds exactly two parameters;
// every other operator binds exactly one.
type Condition struct {
	Column string
	Op     CompareOp
	Value  any
	Upper  any
}

// Where is an ordered list of conditions joined with AND.
type Where []Condition

func Eq(column string, value any) Condition {
	return Condition{Column: column, Op: OpEqual, Value: value}
}

func Ne(column string, value any) Condition {
	return Condition{Column: column, Op: OpNotEqual, Value: value}
}

func Lt(column string, value any) Condition {
	return Condition{Column: column, Op: OpLess, Value: value}
}

func Le(column string, value any) Condition {
	return Condition{Column: column, Op: OpLessOrEqual, Value: value}
}

func Gt(column string, value any) Condition {
	return Condition{Column: column, Op: OpGreater, Value: value}
}

func Ge(column string, value any) Condition {
	return Condition{Column: column, Op: OpGreaterOrEqual, Value: value}
}

func Between(column string, lower, upper any) Condition {
	return Condition{Column: column, Op: OpBetween, Value: lower, Upper: upper}
}

// ReturningColumn is one expression of a RETURNING clause. Expr is emitted
// verbatim; As, when set, is escaped and appended as an alias.
type ReturningColumn struct {
	Expr string
	As   string
}

// ConflictAction selects the ON CONFLICT behavior of a generated INSERT.
type ConflictAction int

const (
	ConflictNone ConflictAction = iota
	ConflictIgnore
	ConflictUpdate
)

// InsertOptions controls conflict handling and the RETURNING clause of a
// generated INSERT. ConflictKeys must be non-empty and name only inserted
// columns whenever OnConflict is not ConflictNone.
type InsertOptions struct {
	OnConflict   ConflictAction
	ConflictKeys []string
	Returning    []ReturningColumn
}

// StatementOptions controls the RETURNING clause of a generated UPDATE or
// DELETE.
type StatementOptions struct {
	Returning []ReturningColumn
}

// StatementBuilder renders INSERT, UPDATE, and DELETE statements with
// positional $n placeholders. QuoteIdentifier is the escaping collaborator;
// all methods are pure and safe for concurrent use.
type StatementBuilder struct {
	QuoteIdentifier func(string) string
}

// NewStatementBuilder returns a builder that escapes identifiers with
// pq.QuoteIdentifier.
func NewStatementBuilder() *StatementBuilder {
	return &StatementBuilder{QuoteIdentifier: pq.QuoteIdentifier}
}

// Insert renders an INSERT statement and its bound parameters. Raw values
// are inlined and bind nothing; all other values receive placeholders
// numbered by their position in the returned args.
func (b *StatementBuilder) Insert(table string, values []ColumnValue, opts *InsertOptions) (string, []any, error) {
	if len(values) == 0 {
		return "", nil, errors.New("pgsmith: insert requires at least one column")
	}

	action := ConflictNone
	var conflictKeys []string
	var returning []ReturningColumn
	if opts != nil {
		action = opts.OnConflict
		conflictKeys = opts.ConflictKeys
		returning = opts.Returning
	}

	if action != ConflictNone {
		if len(conflictKeys) == 0 {
			return "", nil, errors.New("pgsmith: conflict handling requires at least one conflict key")
		}
		for _, key := range conflictKeys {
			if !hasColumn(values, key) {
				return "", nil, fmt.Errorf("pgsmith: conflict key %q is not an inserted column", key)
			}
		}
	}

	var (
		cols         []string
		vals         []string
		conflictCols []string
		assignments  []string
		args         []any
	)

	for _, cv := range values {
		col := b.QuoteIdentifier(cv.Name)
		cols = append(cols, col)

		var expr string
		if raw, ok := cv.Value.(Raw); ok {
			expr = string(raw)
		} else {
			args = append(args, cv.Value)
			expr = fmt.Sprintf("$%d", len(args))
		}
		vals = append(vals, expr)

		if action == ConflictNone {
			continue
		}
		if containsString(conflictKeys, cv.Name) {
			conflictCols = append(conflictCols, col)
		} else if action == ConflictUpdate {
			assignments = append(assignments, col+" = "+expr)
		}
	}

	if action == ConflictUpdate && len(assignments) == 0 {
		return "", nil, errors.New("pgsmith: conflict update requires a column that is not a conflict key")
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(b.QuoteIdentifier(table))
	sb.WriteString(" (")
	sb.WriteString(strings.Join(cols, ", "))
	sb.WriteString(") VALUES (")
	sb.WriteString(strings.Join(vals, ", "))
	sb.WriteString(")")

	switch action {
	case ConflictIgnore:
		sb.WriteString(" ON CONFLICT (")
		sb.WriteString(strings.Join(conflictCols, ", "))
		sb.WriteString(") DO NOTHING")
	case ConflictUpdate:
		sb.WriteString(" ON CONFLICT (")
		sb.WriteString(strings.Join(conflictCols, ", "))
		sb.WriteString(") DO UPDATE SET ")
		sb.WriteString(strings.Join(assignments, ", "))
	}

	b.appendReturning(&sb, returning)

	return sb.String(), args, nil
}

// Update renders an UPDATE statement. Placeholder numbering is shared
// between the SET assignments and the WHERE clause.
func (b *StatementBuilder) Update(table string, values []ColumnValue, where Where, opts *StatementOptions) (string, []any, error) {
	if len(values) == 0 {
		return "", nil, errors.New("pgsmith: update requires at least one column")
	}

	var (
		assignments []string
		args        []any
	)

	for _, cv := range values {
		col := b.QuoteIdentifier(cv.Name)
		if raw, ok := cv.Value.(Raw); ok {
			assignments = append(assignments, col+" = "+string(raw))
		} else {
			args = append(args, cv.Value)
			assignments = append(assignments, fmt.Sprintf("%s = $%d", col, len(args)))
		}
	}

	var sb strings.Builder
	sb.WriteString("UPDATE ")
	sb.WriteString(b.QuoteIdentifier(table))
	sb.WriteString(" SET ")
	sb.WriteString(strings.Join(assignments, ", "))

	if err := b.appendWhere(&sb, where, &args); err != nil {
		return "", nil, err
	}
	b.appendReturning(&sb, opts.returning())

	return sb.String(), args, nil
}

// Delete renders a DELETE statement.
func (b *StatementBuilder) Delete(table string, where Where, opts *StatementOptions) (string, []any, error) {
	var args []any

	var sb strings.Builder
	sb.WriteString("DELETE FROM ")
	sb.WriteString(b.QuoteIdentifier(table))

	if err := b.appendWhere(&sb, where, &args); err != nil {
		return "", nil, err
	}
	b.appendReturning(&sb, opts.returning())

	return sb.String(), args, nil
}

// appendWhere renders the WHERE clause, continuing placeholder numbering
// from args. Conditions are joined with AND.
func (b *StatementBuilder) appendWhere(sb *strings.Builder, where Where, args *[]any) error {
	if len(where) == 0 {
		return nil
	}

	sb.WriteString(" WHERE ")
	for i, c := range where {
		if i > 0 {
			sb.WriteString(" AND ")
		}
		col := b.QuoteIdentifier(c.Column)

		switch c.Op {
		case OpBetween:
			*args = append(*args, c.Value)
			lower := len(*args)
			*args = append(*args, c.Upper)
			fmt.Fprintf(sb, "%s BETWEEN $%d AND $%d", col, lower, len(*args))
		case OpEqual, OpNotEqual, OpLess, OpLessOrEqual, OpGreater, OpGreaterOrEqual:
			*args = append(*args, c.Value)
			fmt.Fprintf(sb, "%s %s $%d", col, c.Op.sqlString(), len(*args))
		default:
			return fmt.Errorf("pgsmith: unknown comparison operator %d", c.Op)
		}
	}
	return nil
}

func (b *StatementBuilder) appendReturning(sb *strings.Builder, returning []ReturningColumn) {
	if len(returning) == 0 {
		return
	}

	sb.WriteString(" RETURNING ")
	for i, rc := range returning {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(rc.Expr)
		if rc.As != "" {
			sb.WriteString(" AS ")
			sb.WriteString(b.QuoteIdentifier(rc.As))
		}
	}
}

func (opts *StatementOptions) returning() []ReturningColumn {
	if opts == nil {
		return nil
	}
	return opts.Returning
}

func hasColumn(values []ColumnValue, name string) bool {
	for _, cv := range values {
		if cv.Name == name {
			return true
		}
	}
	return false
}

func containsString(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
