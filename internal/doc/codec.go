package doc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/iancoleman/orderedmap"
)

var (
	// ErrEmpty is returned when decoding an empty payload.
	ErrEmpty = errors.New("doc: payload is empty")
	// ErrAbsent is returned when encoding an absent top-level value.
	ErrAbsent = errors.New("doc: cannot encode an absent value")
	// ErrNotObject is returned when a document must be a JSON object.
	ErrNotObject = errors.New("doc: document is not an object")
)

// Indent is the indentation used for files written by the content pipeline.
const Indent = "  "

// Decode parses JSON into a Value, keeping object key order.
func Decode(data []byte) (Value, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Value{}, ErrEmpty
	}
	if !json.Valid(trimmed) {
		var scratch any
		if err := json.Unmarshal(trimmed, &scratch); err != nil {
			return Value{}, fmt.Errorf("doc: decode: %w", err)
		}
		return Value{}, fmt.Errorf("doc: decode: invalid JSON")
	}
	// The ordered map only decodes objects, so any payload is wrapped in one.
	wrapped := make([]byte, 0, len(trimmed)+8)
	wrapped = append(wrapped, `{"v":`...)
	wrapped = append(wrapped, trimmed...)
	wrapped = append(wrapped, '}')
	om := orderedmap.New()
	if err := om.UnmarshalJSON(wrapped); err != nil {
		return Value{}, fmt.Errorf("doc: decode: %w", err)
	}
	raw, _ := om.Get("v")
	return fromInterface(raw)
}

// DecodeMap parses a JSON object.
func DecodeMap(data []byte) (*Map, error) {
	v, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if !v.IsMap() {
		return nil, ErrNotObject
	}
	return v.Map(), nil
}

// ReadFile decodes the JSON object stored at path.
func ReadFile(path string) (*Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("doc: read %s: %w", path, err)
	}
	m, err := DecodeMap(data)
	if err != nil {
		return nil, fmt.Errorf("doc: %s: %w", path, err)
	}
	return m, nil
}

// Encode renders v as two-space indented JSON, byte-compatible with
// JSON.stringify(v, null, 2). Backspace, form feed, U+2028 and U+2029 are
// escaped as \u sequences. No trailing newline is written.
func Encode(v Value) ([]byte, error) {
	return EncodeIndent(v, Indent)
}

// EncodeIndent renders v with the given indent; an empty indent yields
// compact output. Layout and string escaping come from encoding/json; only
// numbers are formatted here.
func EncodeIndent(v Value, indent string) ([]byte, error) {
	if v.IsAbsent() {
		return nil, ErrAbsent
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", indent)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("doc: encode: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// MarshalJSON renders v compactly. Absent map entries are skipped.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := appendCompact(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes data into v.
func (v *Value) UnmarshalJSON(data []byte) error {
	decoded, err := Decode(data)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}

func fromInterface(raw any) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case float64:
		return Number(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("doc: number %q: %w", t.String(), err)
		}
		return Number(f), nil
	case string:
		return String(t), nil
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			v, err := fromInterface(item)
			if err != nil {
				return Value{}, err
			}
			items[i] = v
		}
		return Value{kind: KindList, list: items}, nil
	case orderedmap.OrderedMap:
		return fromOrdered(&t)
	case *orderedmap.OrderedMap:
		return fromOrdered(t)
	case map[string]any:
		keys := make([]string, 0, len(t))
		for key := range t {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		m := NewMap()
		for _, key := range keys {
			v, err := fromInterface(t[key])
			if err != nil {
				return Value{}, err
			}
			m.Set(key, v)
		}
		return FromMap(m), nil
	default:
		return Value{}, fmt.Errorf("doc: unsupported decoded type %T", raw)
	}
}

func fromOrdered(om *orderedmap.OrderedMap) (Value, error) {
	m := NewMap()
	for _, key := range om.Keys() {
		raw, _ := om.Get(key)
		v, err := fromInterface(raw)
		if err != nil {
			return Value{}, err
		}
		m.Set(key, v)
	}
	return FromMap(m), nil
}

func appendCompact(buf *bytes.Buffer, v Value) error {
	switch v.kind {
	case KindAbsent, KindNull:
		buf.WriteString("null")
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.b))
	case KindNumber:
		buf.WriteString(formatNumber(v.n))
	case KindString:
		return appendString(buf, v.s)
	case KindList:
		buf.WriteByte('[')
		for i, item := range v.list {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := appendCompact(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindMap:
		buf.WriteByte('{')
		written := 0
		var err error
		v.m.Range(func(key string, item Value) bool {
			if item.IsAbsent() {
				return true
			}
			if written > 0 {
				buf.WriteByte(',')
			}
			if err = appendString(buf, key); err != nil {
				return false
			}
			buf.WriteByte(':')
			if err = appendCompact(buf, item); err != nil {
				return false
			}
			written++
			return true
		})
		if err != nil {
			return err
		}
		buf.WriteByte('}')
	}
	return nil
}

// appendString writes s as a JSON string without HTML escaping.
func appendString(buf *bytes.Buffer, s string) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	buf.Truncate(buf.Len() - 1)
	return nil
}

// formatNumber follows ECMAScript Number::toString.
func formatNumber(n float64) string {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return "null"
	}
	if n == 0 {
		return "0"
	}
	abs := math.Abs(n)
	if abs >= 1e21 || abs < 1e-6 {
		s := strconv.FormatFloat(n, 'e', -1, 64)
		mantissa, exp, _ := strings.Cut(s, "e")
		sign, digits := exp[:1], strings.TrimLeft(exp[1:], "0")
		if digits == "" {
			digits = "0"
		}
		return mantissa + "e" + sign + digits
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}
