// Package row models the wire form of a single table row: an open mapping
// from column name to a JSON scalar value. Write paths accept only the
// closed set {String, Number}; every other JSON kind is rejected here,
// centrally, rather than re-validated at each call site.
package row

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tessera-db/tessera/internal/errs"
)

// Kind identifies the JSON kind carried by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "null"
	}
}

// Value is one JSON value as read from or written to a column. Read paths
// may carry any kind; only String and Number survive a write path. Numbers
// keep their original textual representation (json.Number) so that a
// snapshot-restore round trip does not reformat them.
type Value struct {
	kind Kind
	str  string
	num  json.Number
	raw  any // backing data for bool/array/object kinds
}

// String constructs a string Value.
func String(s string) Value {
	return Value{kind: KindString, str: s}
}

// Number constructs a number Value from its JSON textual form.
func Number(n json.Number) Value {
	return Value{kind: KindNumber, num: n}
}

// Int constructs a number Value from an integer.
func Int(i int64) Value {
	return Value{kind: KindNumber, num: json.Number(fmt.Sprintf("%d", i))}
}

// FromAny converts a decoded JSON value (as produced by a json.Decoder with
// UseNumber) into a Value. Unrecognised Go types are carried as KindObject
// so a later write attempt fails loudly instead of mis-encoding.
func FromAny(v any) Value {
	switch x := v.(type) {
	case nil:
		return Value{kind: KindNull}
	case string:
		return String(x)
	case json.Number:
		return Number(x)
	case float64:
		// Only reachable when the caller decoded without UseNumber.
		return Number(json.Number(formatFloat(x)))
	case bool:
		return Value{kind: KindBool, raw: x}
	case []any:
		return Value{kind: KindArray, raw: x}
	default:
		return Value{kind: KindObject, raw: v}
	}
}

func formatFloat(f float64) string {
	b, _ := json.Marshal(f)
	return string(b)
}

func (v Value) Kind() Kind { return v.kind }

// Writable reports whether the value's kind may appear on a write path.
func (v Value) Writable() bool {
	return v.kind == KindString || v.kind == KindNumber
}

// Str returns the string payload. Valid only for KindString.
func (v Value) Str() string { return v.str }

// Num returns the number payload. Valid only for KindNumber.
func (v Value) Num() json.Number { return v.num }

// SQLLiteral renders the value as a SQL literal for inlining into generated
// statement text. Strings are single-quoted with embedded quotes doubled;
// numbers keep their JSON textual form. Any other kind fails with an
// insert-format error carrying the offending value.
func (v Value) SQLLiteral() (string, error) {
	switch v.kind {
	case KindString:
		return "'" + strings.ReplaceAll(v.str, "'", "''") + "'", nil
	case KindNumber:
		return v.num.String(), nil
	default:
		return "", errs.Newf(errs.KindInsertFormat,
			"unsupported %s value %s in row data", v.kind, v.debugJSON())
	}
}

func (v Value) debugJSON() string {
	b, err := v.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("%v", v.raw)
	}
	return string(b)
}

// MarshalJSON renders the value back to its JSON form.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		if v.num == "" {
			return nil, errs.New(errs.KindSerialization, "number value has no textual form")
		}
		return []byte(v.num), nil
	case KindNull:
		return []byte("null"), nil
	default:
		return json.Marshal(v.raw)
	}
}

// UnmarshalJSON decodes any JSON value, preserving number text.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	*v = FromAny(raw)
	return nil
}

// Equal reports deep equality of two values, comparing numbers by their
// textual form.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindNumber:
		return v.num == o.num
	case KindNull:
		return true
	default:
		a, errA := json.Marshal(v.raw)
		b, errB := json.Marshal(o.raw)
		return errA == nil && errB == nil && bytes.Equal(a, b)
	}
}
