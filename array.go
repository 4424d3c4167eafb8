package pgsmith

import (
	"fmt"

	"github.com/pgsmith/pgsmith/internal/textarray"
)

// Array is a deferred array decode. It captures the raw wire text and the
// element decoder at row-decode time; nothing is parsed until Decode is
// called, so array columns a caller never looks at cost nothing.
type Array struct {
	src  string
	elem DecoderFunc
}

// Decode parses the array literal and applies the element decoder to every
// non-null element. Null elements pass through as nil.
func (a *Array) Decode() ([]any, error) {
	elements, err := textarray.Parse(a.src)
	if err != nil {
		return nil, err
	}

	out := make([]any, len(elements))
	for i, e := range elements {
		if e.Null() {
			continue
		}
		v, err := a.elem([]byte(e.Text))
		if err != nil {
			return nil, fmt.Errorf("array element %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// arrayOf adapts a scalar decoder into a decoder for the corresponding
// one-dimensional array type.
func arrayOf(elem DecoderFunc) DecoderFunc {
	return func(src []byte) (any, error) {
		if src == nil {
			return nil, nil
		}
		return &Array{src: string(src), elem: elem}, nil
	}
}
