package pgsmith

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

// maxSafeInteger is the largest integer that survives a round trip through a
// float64, and therefore through JSON serialization. int8 values beyond it
// are decoded as *big.Int so no precision is ever lost.
const maxSafeInteger = 1<<53 - 1

const (
	dateFormat      = "2006-01-02"
	timeFormat      = "15:04:05.999999"
	timestampFormat = "2006-01-02 15:04:05.999999"
)

// PostgreSQL renders time zone offsets as hours, hours:minutes, or
// hours:minutes:seconds depending on the zone.
var timestamptzFormats = []string{
	"2006-01-02 15:04:05.999999Z07:00:00",
	"2006-01-02 15:04:05.999999Z07:00",
	"2006-01-02 15:04:05.999999Z07",
}

var timetzFormats = []string{
	"15:04:05.999999Z07:00:00",
	"15:04:05.999999Z07:00",
	"15:04:05.999999Z07",
}

func decodeDate(src []byte) (any, error) {
	if src == nil {
		return nil, nil
	}
	t, err := time.ParseInLocation(dateFormat, string(src), time.UTC)
	if err != nil {
		return nil, fmt.Errorf("cannot decode %q as date", src)
	}
	return t, nil
}

func decodeTime(src []byte) (any, error) {
	if src == nil {
		return nil, nil
	}
	t, err := time.ParseInLocation(timeFormat, string(src), time.UTC)
	if err != nil {
		return nil, fmt.Errorf("cannot decode %q as time", src)
	}
	return t, nil
}

func decodeTimetz(src []byte) (any, error) {
	if src == nil {
		return nil, nil
	}
	s := string(src)
	for _, format := range timetzFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t.UTC(), nil
		}
	}
	return nil, fmt.Errorf("cannot decode %q as timetz", src)
}

func decodeTimestamp(src []byte) (any, error) {
	if src == nil {
		return nil, nil
	}
	t, err := time.ParseInLocation(timestampFormat, string(src), time.UTC)
	if err != nil {
		return nil, fmt.Errorf("cannot decode %q as timestamp", src)
	}
	return t, nil
}

func decodeTimestamptz(src []byte) (any, error) {
	if src == nil {
		return nil, nil
	}
	s := string(src)
	for _, format := range timestamptzFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t.UTC(), nil
		}
	}
	return nil, fmt.Errorf("cannot decode %q as timestamptz", src)
}

func decodeInt2(src []byte) (any, error) {
	if src == nil {
		return nil, nil
	}
	n, err := strconv.ParseInt(string(src), 10, 16)
	if err != nil {
		return nil, fmt.Errorf("cannot decode %q as int2", src)
	}
	return int16(n), nil
}

func decodeInt4(src []byte) (any, error) {
	if src == nil {
		return nil, nil
	}
	n, err := strconv.ParseInt(string(src), 10, 32)
	if err != nil {
		return nil, fmt.Errorf("cannot decode %q as int4", src)
	}
	return int32(n), nil
}

// decodeInt8 returns an int64 when the value fits in the safe integer span
// and a *big.Int otherwise. The big.Int path also covers text that overflows
// int64 entirely.
func decodeInt8(src []byte) (any, error) {
	if src == nil {
		return nil, nil
	}
	s := string(src)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && n >= -maxSafeInteger && n <= maxSafeInteger {
		return n, nil
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("cannot decode %q as int8", src)
	}
	return n, nil
}

func decodeFloat4(src []byte) (any, error) {
	if src == nil {
		return nil, nil
	}
	n, err := strconv.ParseFloat(string(src), 32)
	if err != nil {
		return nil, fmt.Errorf("cannot decode %q as float4", src)
	}
	return float32(n), nil
}

func decodeFloat8(src []byte) (any, error) {
	if src == nil {
		return nil, nil
	}
	n, err := strconv.ParseFloat(string(src), 64)
	if err != nil {
		return nil, fmt.Errorf("cannot decode %q as float8", src)
	}
	return n, nil
}

func decodeNumeric(src []byte) (any, error) {
	if src == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(string(src))
	if err != nil {
		return nil, fmt.Errorf("cannot decode %q as numeric", src)
	}
	return d, nil
}

// decodeMoney strips the currency symbol and group separators money is
// rendered with, then parses the remainder as an exact decimal.
func decodeMoney(src []byte) (any, error) {
	if src == nil {
		return nil, nil
	}
	s := strings.NewReplacer("$", "", ",", "").Replace(string(src))
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("cannot decode %q as money", src)
	}
	return d, nil
}

func decodeBool(src []byte) (any, error) {
	if src == nil {
		return nil, nil
	}
	switch string(src) {
	case "TRUE", "t", "true", "y", "yes", "on", "1":
		return true, nil
	}
	return false, nil
}

func decodeBytea(src []byte) (any, error) {
	if src == nil {
		return nil, nil
	}
	s := string(src)
	if !strings.HasPrefix(s, `\x`) {
		return nil, fmt.Errorf("cannot decode %q as bytea: missing hex prefix", src)
	}
	b, err := hex.DecodeString(s[2:])
	if err != nil {
		return nil, fmt.Errorf("cannot decode %q as bytea", src)
	}
	return b, nil
}

func decodeUUID(src []byte) (any, error) {
	if src == nil {
		return nil, nil
	}
	u, err := uuid.FromString(string(src))
	if err != nil {
		return nil, fmt.Errorf("cannot decode %q as uuid", src)
	}
	return u, nil
}

func decodeJSON(src []byte) (any, error) {
	if src == nil {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(src, &v); err != nil {
		return nil, fmt.Errorf("cannot decode %q as json", src)
	}
	return v, nil
}
