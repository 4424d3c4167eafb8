package pgsmith

import (
	"sync"

	"github.com/jackc/pgx/v5/pgtype"
)

// DecoderFunc converts the text wire representation of a single value into a
// Go value. A nil src is the wire-level null; every decoder returns
// (nil, nil) for it without attempting a parse.
type DecoderFunc func(src []byte) (any, error)

// Type OIDs pgtype does not export constants for.
const (
	moneyOID       = 790
	moneyArrayOID  = 791
	timetzOID      = 1266
	timetzArrayOID = 1270
)

// TypeMap maps PostgreSQL type OIDs to decoders. The zero value is not
// usable; construct with NewTypeMap.
//
// A TypeMap is immutable after setup and safe for concurrent use. Decoders
// registered during normal operation all install the same fixed mapping, so
// last-writer-wins registration is acceptable.
type TypeMap struct {
	decoders map[uint32]DecoderFunc
}

// NewTypeMap returns a TypeMap with decoders registered for the supported
// scalar types and their one-dimensional array variants.
func NewTypeMap() *TypeMap {
	m := &TypeMap{decoders: make(map[uint32]DecoderFunc)}

	scalars := []struct {
		oid      uint32
		arrayOID uint32
		decode   DecoderFunc
	}{
		{pgtype.BoolOID, pgtype.BoolArrayOID, decodeBool},
		{pgtype.ByteaOID, pgtype.ByteaArrayOID, decodeBytea},
		{pgtype.Int2OID, pgtype.Int2ArrayOID, decodeInt2},
		{pgtype.Int4OID, pgtype.Int4ArrayOID, decodeInt4},
		{pgtype.Int8OID, pgtype.Int8ArrayOID, decodeInt8},
		{pgtype.Float4OID, pgtype.Float4ArrayOID, decodeFloat4},
		{pgtype.Float8OID, pgtype.Float8ArrayOID, decodeFloat8},
		{pgtype.NumericOID, pgtype.NumericArrayOID, decodeNumeric},
		{moneyOID, moneyArrayOID, decodeMoney},
		{pgtype.DateOID, pgtype.DateArrayOID, decodeDate},
		{pgtype.TimeOID, pgtype.TimeArrayOID, decodeTime},
		{timetzOID, timetzArrayOID, decodeTimetz},
		{pgtype.TimestampOID, pgtype.TimestampArrayOID, decodeTimestamp},
		{pgtype.TimestamptzOID, pgtype.TimestamptzArrayOID, decodeTimestamptz},
		{pgtype.UUIDOID, pgtype.UUIDArrayOID, decodeUUID},
		{pgtype.JSONOID, pgtype.JSONArrayOID, decodeJSON},
		{pgtype.JSONBOID, pgtype.JSONBArrayOID, decodeJSON},
	}

	for _, s := range scalars {
		m.RegisterDecoder(s.oid, s.decode)
		m.RegisterDecoder(s.arrayOID, arrayOf(s.decode))
	}

	return m
}

// RegisterDecoder associates a decoder with a type OID, replacing any
// existing registration.
func (m *TypeMap) RegisterDecoder(oid uint32, fn DecoderFunc) {
	m.decoders[oid] = fn
}

// DecoderForOID returns the decoder registered for oid.
func (m *TypeMap) DecoderForOID(oid uint32) (DecoderFunc, bool) {
	fn, ok := m.decoders[oid]
	return fn, ok
}

// DecodeValue decodes a single wire value. Nulls short-circuit before any
// decoder runs, and values of types with no registered decoder pass through
// as strings.
func (m *TypeMap) DecodeValue(oid uint32, src []byte) (any, error) {
	if src == nil {
		return nil, nil
	}
	if fn, ok := m.decoders[oid]; ok {
		return fn(src)
	}
	return string(src), nil
}

var (
	defaultTypeMapOnce sync.Once
	defaultTypeMap     *TypeMap
)

// DefaultTypeMap returns the process-wide TypeMap shared by connections that
// are not given their own. The map is built once; later calls return the
// same instance.
func DefaultTypeMap() *TypeMap {
	defaultTypeMapOnce.Do(func() {
		defaultTypeMap = NewTypeMap()
	})
	return defaultTypeMap
}
