package pgsmith

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

// encodeArgs converts Go argument values to their text wire format for
// ExecParams. A nil element encodes as the SQL null.
func encodeArgs(args []any) ([][]byte, error) {
	if len(args) == 0 {
		return nil, nil
	}
	params := make([][]byte, len(args))
	for i, arg := range args {
		p, err := encodeArg(arg)
		if err != nil {
			return nil, fmt.Errorf("parameter $%d: %w", i+1, err)
		}
		params[i] = p
	}
	return params, nil
}

func encodeArg(arg any) ([]byte, error) {
	switch v := arg.(type) {
	case nil:
		return nil, nil
	case Raw:
		return nil, errors.New("a Raw fragment cannot be bound as a parameter")
	case string:
		return []byte(v), nil
	case []byte:
		buf := make([]byte, 2+hex.EncodedLen(len(v)))
		copy(buf, `\x`)
		hex.Encode(buf[2:], v)
		return buf, nil
	case bool:
		if v {
			return []byte{'t'}, nil
		}
		return []byte{'f'}, nil
	case int:
		return strconv.AppendInt(nil, int64(v), 10), nil
	case int8:
		return strconv.AppendInt(nil, int64(v), 10), nil
	case int16:
		return strconv.AppendInt(nil, int64(v), 10), nil
	case int32:
		return strconv.AppendInt(nil, int64(v), 10), nil
	case int64:
		return strconv.AppendInt(nil, v, 10), nil
	case uint:
		return strconv.AppendUint(nil, uint64(v), 10), nil
	case uint8:
		return strconv.AppendUint(nil, uint64(v), 10), nil
	case uint16:
		return strconv.AppendUint(nil, uint64(v), 10), nil
	case uint32:
		return strconv.AppendUint(nil, uint64(v), 10), nil
	case uint64:
		return strconv.AppendUint(nil, v, 10), nil
	case float32:
		return strconv.AppendFloat(nil, float64(v), 'f', -1, 32), nil
	case float64:
		return strconv.AppendFloat(nil, v, 'f', -1, 64), nil
	case time.Time:
		return []byte(v.Format("2006-01-02 15:04:05.999999Z07:00")), nil
	case decimal.Decimal:
		return []byte(v.String()), nil
	case *big.Int:
		return []byte(v.String()), nil
	case uuid.UUID:
		return []byte(v.String()), nil
	case fmt.Stringer:
		return []byte(v.String()), nil
	default:
		return nil, fmt.Errorf("cannot encode %T as a query parameter", arg)
	}
}
