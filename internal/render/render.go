// Package render serialises parsed configuration trees as indented JSON.
package render

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/eugenenazirov/manufacturing-config/internal/document"
)

const indentUnit = "  "

// ErrUnsupportedValue indicates a value that has no JSON representation.
var ErrUnsupportedValue = errors.New("value cannot be represented as JSON")

// JSON writes v to w as two-space indented JSON followed by a newline.
// Nothing is written if v cannot be encoded.
func JSON(w io.Writer, v any) error {
	data, err := Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// Marshal returns the indented JSON encoding of v, including the trailing
// newline. Mapping order is preserved, non-ASCII text is written as \uXXXX
// escapes and non-finite floats are written as NaN, Infinity and -Infinity.
func Marshal(v any) ([]byte, error) {
	var e encoder
	if err := e.value(v, 0); err != nil {
		return nil, err
	}
	e.buf.WriteByte('\n')
	return e.buf.Bytes(), nil
}

type encoder struct {
	buf bytes.Buffer
}

func (e *encoder) value(v any, depth int) error {
	switch v := v.(type) {
	case nil:
		e.buf.WriteString("null")
	case bool:
		e.buf.WriteString(strconv.FormatBool(v))
	case int:
		e.buf.WriteString(strconv.Itoa(v))
	case int64:
		e.buf.WriteString(strconv.FormatInt(v, 10))
	case uint64:
		e.buf.WriteString(strconv.FormatUint(v, 10))
	case *big.Int:
		e.buf.WriteString(v.String())
	case float64:
		e.buf.WriteString(document.FormatFloat(v))
	case string:
		return e.string(v)
	case []any:
		return e.sequence(v, depth)
	case *document.Mapping:
		return e.mapping(v, depth)
	case map[string]any:
		return e.mapping(sortedMapping(v), depth)
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
	}
	return nil
}

func (e *encoder) string(s string) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encode string: %w", err)
	}
	writeASCII(&e.buf, strings.TrimSuffix(buf.String(), "\n"))
	return nil
}

// writeASCII copies encoded JSON text to dst, escaping every rune outside
// printable ASCII. Runes above U+FFFF become UTF-16 surrogate pairs.
func writeASCII(dst *bytes.Buffer, s string) {
	for _, r := range s {
		switch {
		case r < 0x7f:
			dst.WriteRune(r)
		case r > 0xffff:
			r1, r2 := utf16.EncodeRune(r)
			fmt.Fprintf(dst, "\\u%04x\\u%04x", r1, r2)
		default:
			fmt.Fprintf(dst, "\\u%04x", r)
		}
	}
}

func (e *encoder) sequence(items []any, depth int) error {
	if len(items) == 0 {
		e.buf.WriteString("[]")
		return nil
	}

	e.buf.WriteByte('[')
	for i, item := range items {
		if i > 0 {
			e.buf.WriteByte(',')
		}
		e.newline(depth + 1)
		if err := e.value(item, depth+1); err != nil {
			return err
		}
	}
	e.newline(depth)
	e.buf.WriteByte(']')
	return nil
}

func (e *encoder) mapping(m *document.Mapping, depth int) error {
	if m.Len() == 0 {
		e.buf.WriteString("{}")
		return nil
	}

	var err error
	first := true
	e.buf.WriteByte('{')
	m.Range(func(key string, value any) bool {
		if !first {
			e.buf.WriteByte(',')
		}
		first = false
		e.newline(depth + 1)
		if err = e.string(key); err != nil {
			return false
		}
		e.buf.WriteString(": ")
		err = e.value(value, depth+1)
		return err == nil
	})
	if err != nil {
		return err
	}
	e.newline(depth)
	e.buf.WriteByte('}')
	return nil
}

func (e *encoder) newline(depth int) {
	e.buf.WriteByte('\n')
	e.buf.WriteString(strings.Repeat(indentUnit, depth))
}

func sortedMapping(src map[string]any) *document.Mapping {
	keys := make([]string, 0, len(src))
	for k := range src {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	m := document.NewMapping()
	for _, k := range keys {
		m.Set(k, src[k])
	}
	return m
}
