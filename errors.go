package pgsmith

import (
	"errors"
	"fmt"
	"net"
	"syscall"
)

// ErrNoRows is returned by SelectValue when the query produced no rows.
var ErrNoRows = errors.New("pgsmith: no rows in result set")

// ErrNestedTransaction is returned by Transact when a transaction is already
// open on the connection.
var ErrNestedTransaction = errors.New("pgsmith: transaction already in progress on this connection")

// ConfigError reports a required Config field that was left empty.
type ConfigError struct {
	Field string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("pgsmith: missing required config field %q", e.Field)
}

// DecodeError reports a wire value that could not be decoded, attributed to
// the column it came from.
type DecodeError struct {
	Column string
	OID    uint32
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("pgsmith: cannot decode column %q (oid %d): %v", e.Column, e.OID, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

var connectivityErrnos = []syscall.Errno{
	syscall.ECONNREFUSED,
	syscall.ECONNRESET,
	syscall.ECONNABORTED,
	syscall.EHOSTUNREACH,
	syscall.EHOSTDOWN,
	syscall.ENETUNREACH,
	syscall.ENETDOWN,
}

// IsConnectivityError reports whether err is a transport-level failure
// (connection refused, reset, or aborted; host or network unreachable or
// down) as opposed to a logical database error. Callers can use it to
// separate transient network trouble from errors worth surfacing as-is.
func IsConnectivityError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, net.ErrClosed) {
		return true
	}
	for _, errno := range connectivityErrnos {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}
