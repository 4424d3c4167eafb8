package pgsmith

import (
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// Result is a fully read query result with every text-format column run
// through the TypeMap.
type Result struct {
	CommandTag pgconn.CommandTag
	Fields     []pgconn.FieldDescription
	Rows       [][]any
}

// RowsAffected returns the number of rows the statement modified.
func (r *Result) RowsAffected() int64 {
	return r.CommandTag.RowsAffected()
}

func newResult(m *TypeMap, res *pgconn.Result) (*Result, error) {
	out := &Result{
		CommandTag: res.CommandTag,
		Fields:     res.FieldDescriptions,
		Rows:       make([][]any, len(res.Rows)),
	}

	for ri, raw := range res.Rows {
		row := make([]any, len(raw))
		for ci, src := range raw {
			v, err := decodeColumn(m, res.FieldDescriptions[ci], src)
			if err != nil {
				return nil, err
			}
			row[ci] = v
		}
		out.Rows[ri] = row
	}

	return out, nil
}

func decodeColumn(m *TypeMap, field pgconn.FieldDescription, src []byte) (any, error) {
	if src == nil {
		return nil, nil
	}
	// Binary-format columns are passed through untouched; the registry only
	// understands the text format.
	if field.Format == pgtype.BinaryFormatCode {
		buf := make([]byte, len(src))
		copy(buf, src)
		return buf, nil
	}
	v, err := m.DecodeValue(field.DataTypeOID, src)
	if err != nil {
		return nil, &DecodeError{Column: field.Name, OID: field.DataTypeOID, Err: err}
	}
	return v, nil
}
