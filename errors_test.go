package pgsmith

import (
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsConnectivityError(t *testing.T) {
	connReset := &net.OpError{
		Op:  "read",
		Err: &os.SyscallError{Syscall: "read", Err: syscall.ECONNRESET},
	}

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("syntax error"), false},
		{"refused", syscall.ECONNREFUSED, true},
		{"reset through net.OpError", connReset, true},
		{"aborted wrapped", fmt.Errorf("exec: %w", syscall.ECONNABORTED), true},
		{"host unreachable", syscall.EHOSTUNREACH, true},
		{"host down", syscall.EHOSTDOWN, true},
		{"net closed", net.ErrClosed, true},
		{"permission denied", syscall.EACCES, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsConnectivityError(tt.err))
		})
	}
}

func TestDecodeErrorMessageAndUnwrap(t *testing.T) {
	cause := errors.New("bad digit")
	err := &DecodeError{Column: "age", OID: 23, Err: cause}

	assert.Contains(t, err.Error(), `"age"`)
	assert.Contains(t, err.Error(), "23")
	assert.ErrorIs(t, err, cause)
}

func TestConfigErrorMessage(t *testing.T) {
	err := &ConfigError{Field: "user"}
	assert.Contains(t, err.Error(), `"user"`)
}
