package aqueduct

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"time"
)

// Kind is the dtype tag carried by every setpoint, recordable and typed input.
// The set is closed: int, float, bool, list, datetime, str.
type Kind string

const (
	KindInt      Kind = "int"
	KindFloat    Kind = "float"
	KindBool     Kind = "bool"
	KindList     Kind = "list"
	KindDatetime Kind = "datetime"
	KindString   Kind = "str"
)

// Validate checks that the kind is one of the supported dtypes.
func (k Kind) Validate() error {
	switch k {
	case KindInt, KindFloat, KindBool, KindList, KindDatetime, KindString:
		return nil
	default:
		return fmt.Errorf("%w: unknown dtype %q", ErrInvalidValueType, string(k))
	}
}

// ParseKind converts a dtype name to a Kind. The empty string yields the
// empty Kind, which callers treat as "infer from the value".
func ParseKind(s string) (Kind, error) {
	if s == "" {
		return "", nil
	}
	// Accept the long-form names recipes have historically used.
	switch s {
	case "string":
		return KindString, nil
	case "datetime.datetime", "timestamp":
		return KindDatetime, nil
	case "integer":
		return KindInt, nil
	}
	k := Kind(s)
	if err := k.Validate(); err != nil {
		return "", err
	}
	return k, nil
}

// Value is a tagged value. The raw Go value is kept exactly as supplied so
// that Get returns what the recipe stored; accessors convert on demand.
type Value struct {
	kind Kind
	raw  any
}

// ValueOf infers the kind of v by its Go type.
func ValueOf(v any) (Value, error) {
	k, err := inferKind(v)
	if err != nil {
		return Value{}, err
	}
	return Value{kind: k, raw: v}, nil
}

// ValueAs wraps v with an explicitly supplied kind. Only the kind is checked;
// v itself is trusted, matching the behaviour recipes already depend on.
func ValueAs(v any, k Kind) (Value, error) {
	if k == "" {
		return ValueOf(v)
	}
	if err := k.Validate(); err != nil {
		return Value{}, err
	}
	return Value{kind: k, raw: v}, nil
}

// MustValue is ValueOf for literals in tests and examples. It panics on error.
func MustValue(v any) Value {
	val, err := ValueOf(v)
	if err != nil {
		panic(err)
	}
	return val
}

func inferKind(v any) (Kind, error) {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return KindInt, nil
	case float32, float64:
		return KindFloat, nil
	case bool:
		return KindBool, nil
	case string:
		return KindString, nil
	case time.Time:
		return KindDatetime, nil
	case []any, []int, []int64, []float64, []string, []bool:
		return KindList, nil
	case nil:
		return "", fmt.Errorf("%w: nil value", ErrInvalidValueType)
	}
	if rk := reflect.TypeOf(v).Kind(); rk == reflect.Slice || rk == reflect.Array {
		return KindList, nil
	}
	return "", fmt.Errorf("%w: %T is not supported", ErrInvalidValueType, v)
}

// Kind returns the dtype tag.
func (v Value) Kind() Kind { return v.kind }

// Interface returns the raw value as stored.
func (v Value) Interface() any { return v.raw }

// IsZero reports whether v holds nothing (the zero Value).
func (v Value) IsZero() bool { return v.kind == "" && v.raw == nil }

// Int returns the value as an int64 if it holds an integral number.
func (v Value) Int() (int64, bool) {
	switch n := v.raw.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), n <= math.MaxInt64
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), n <= math.MaxInt64
	case float64:
		if n == math.Trunc(n) && !math.IsInf(n, 0) {
			return int64(n), true
		}
	case float32:
		f := float64(n)
		if f == math.Trunc(f) && !math.IsInf(f, 0) {
			return int64(f), true
		}
	}
	return 0, false
}

// Float returns the value as a float64 if it holds any number.
func (v Value) Float() (float64, bool) {
	switch n := v.raw.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	if i, ok := v.Int(); ok {
		return float64(i), true
	}
	return 0, false
}

// Bool returns the value as a bool.
func (v Value) Bool() (bool, bool) {
	b, ok := v.raw.(bool)
	return b, ok
}

// String returns a string holding value, or a formatted rendering otherwise.
func (v Value) String() string {
	switch r := v.raw.(type) {
	case string:
		return r
	case time.Time:
		return r.Format(time.RFC3339Nano)
	case nil:
		return ""
	}
	return fmt.Sprint(v.raw)
}

// Time returns the value as a time.Time.
func (v Value) Time() (time.Time, bool) {
	t, ok := v.raw.(time.Time)
	return t, ok
}

// List returns the value as a []any.
func (v Value) List() ([]any, bool) {
	if l, ok := v.raw.([]any); ok {
		return l, true
	}
	if v.raw == nil {
		return nil, false
	}
	rv := reflect.ValueOf(v.raw)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// Equal reports whether two values have the same kind and encode identically.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	a, errA := json.Marshal(v)
	b, errB := json.Marshal(o)
	return errA == nil && errB == nil && bytes.Equal(a, b)
}

// MarshalJSON encodes the raw payload only; the kind travels separately.
// Datetimes are encoded as RFC3339 with nanoseconds. NaN and infinities
// have no JSON form and are written as null.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(encodable(v.raw))
}

func encodable(raw any) any {
	switch r := raw.(type) {
	case time.Time:
		return r.Format(time.RFC3339Nano)
	case float64:
		if math.IsNaN(r) || math.IsInf(r, 0) {
			return nil
		}
		return r
	case float32:
		if f := float64(r); math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		return r
	case nil, string, bool, int, int64:
		return raw
	}
	rv := reflect.ValueOf(raw)
	switch rv.Kind() {
	case reflect.Slice:
		if rv.IsNil() {
			return raw
		}
	case reflect.Array:
	default:
		return raw
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = encodable(rv.Index(i).Interface())
	}
	return out
}

// ParseValue decodes a JSON payload into a Value of kind k. When k is empty
// the kind is inferred from the decoded JSON. Integral floats are accepted
// for int, numbers are accepted for float, and RFC3339 strings for datetime.
func ParseValue(k Kind, data []byte) (Value, error) {
	var decoded any
	if len(bytes.TrimSpace(data)) == 0 {
		return Value{}, fmt.Errorf("%w: empty payload", ErrInvalidValueType)
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return Value{}, fmt.Errorf("%w: %v", ErrInvalidValueType, err)
	}
	if k == "" {
		return ValueOf(decoded)
	}
	return Coerce(Value{kind: kindOfDecoded(decoded), raw: decoded}, k)
}

func kindOfDecoded(d any) Kind {
	switch d.(type) {
	case float64:
		return KindFloat
	case bool:
		return KindBool
	case string:
		return KindString
	case []any:
		return KindList
	}
	return ""
}

// Coerce converts v to kind k where the conversion is lossless. The raw value
// of the result uses canonical Go types: int64, float64, bool, string,
// time.Time, []any.
func Coerce(v Value, k Kind) (Value, error) {
	if err := k.Validate(); err != nil {
		return Value{}, err
	}
	fail := func() (Value, error) {
		return Value{}, fmt.Errorf("%w: cannot use %v (%s) as %s", ErrInvalidValueType, v.raw, v.kind, k)
	}
	switch k {
	case KindInt:
		if i, ok := v.Int(); ok {
			return Value{kind: k, raw: i}, nil
		}
	case KindFloat:
		if f, ok := v.Float(); ok {
			return Value{kind: k, raw: f}, nil
		}
	case KindBool:
		if b, ok := v.Bool(); ok {
			return Value{kind: k, raw: b}, nil
		}
	case KindString:
		if s, ok := v.raw.(string); ok {
			return Value{kind: k, raw: s}, nil
		}
	case KindDatetime:
		if t, ok := v.Time(); ok {
			return Value{kind: k, raw: t}, nil
		}
		if s, ok := v.raw.(string); ok {
			t, err := time.Parse(time.RFC3339Nano, s)
			if err != nil {
				return fail()
			}
			return Value{kind: k, raw: t}, nil
		}
	case KindList:
		if l, ok := v.List(); ok {
			return Value{kind: k, raw: l}, nil
		}
	}
	return fail()
}
