// Package textarray parses the text representation of one-dimensional
// PostgreSQL arrays. Details of the format are in
// src/backend/utils/adt/arrayfuncs.c (array_out).
package textarray

import (
	"bytes"
	"fmt"
	"io"
	"unicode"
)

// Element is a single value from an array literal. Quoted distinguishes the
// literal NULL from the quoted string "NULL".
type Element struct {
	Text   string
	Quoted bool
}

// Null reports whether the element is the SQL null.
func (e Element) Null() bool {
	return !e.Quoted && e.Text == "NULL"
}

// Parse splits a one-dimensional array literal such as {1,2,NULL,"a b"} into
// its elements. Nested arrays and explicit dimension prefixes are rejected.
func Parse(src string) ([]Element, error) {
	buf := bytes.NewBufferString(src)

	skipWhitespace(buf)

	r, _, err := buf.ReadRune()
	if err != nil {
		return nil, fmt.Errorf("invalid array: %v", err)
	}
	if r != '{' {
		return nil, fmt.Errorf("invalid array, expected '{' got %q", r)
	}

	elements := []Element{}

	r, _, err = buf.ReadRune()
	if err != nil {
		return nil, fmt.Errorf("invalid array: %v", err)
	}
	if r != '}' {
		buf.UnreadRune()

		for {
			e, err := parseValue(buf)
			if err != nil {
				return nil, fmt.Errorf("invalid array value: %v", err)
			}
			elements = append(elements, e)

			r, _, err = buf.ReadRune()
			if err != nil {
				return nil, fmt.Errorf("invalid array: %v", err)
			}
			if r == '}' {
				break
			}
			if r != ',' {
				return nil, fmt.Errorf("invalid array, expected ',' or '}' got %q", r)
			}
		}
	}

	skipWhitespace(buf)

	if buf.Len() > 0 {
		return nil, fmt.Errorf("unexpected trailing data: %v", buf.String())
	}

	return elements, nil
}

func parseValue(buf *bytes.Buffer) (Element, error) {
	r, _, err := buf.ReadRune()
	if err != nil {
		return Element{}, err
	}
	if r == '"' {
		return parseQuotedValue(buf)
	}
	if r == '{' {
		return Element{}, fmt.Errorf("nested arrays are not supported")
	}
	buf.UnreadRune()

	s := &bytes.Buffer{}

	for {
		r, _, err := buf.ReadRune()
		if err != nil {
			return Element{}, err
		}

		switch r {
		case ',', '}':
			buf.UnreadRune()
			return Element{Text: s.String()}, nil
		}

		s.WriteRune(r)
	}
}

func parseQuotedValue(buf *bytes.Buffer) (Element, error) {
	s := &bytes.Buffer{}

	for {
		r, _, err := buf.ReadRune()
		if err != nil {
			return Element{}, err
		}

		switch r {
		case '\\':
			r, _, err = buf.ReadRune()
			if err != nil {
				return Element{}, err
			}
		case '"':
			return Element{Text: s.String(), Quoted: true}, nil
		}
		s.WriteRune(r)
	}
}

func skipWhitespace(buf *bytes.Buffer) {
	var r rune
	var err error
	for r, _, err = buf.ReadRune(); unicode.IsSpace(r); r, _, err = buf.ReadRune() {
	}

	if err != io.EOF {
		buf.UnreadRune()
	}
}
