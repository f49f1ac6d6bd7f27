package row

import (
	"bytes"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Row is a positional record. Its length may be shorter than its Meta when
// trailing nulls were stripped upstream; missing positions read as absent.
type Row []any

// Get returns the i-th value and whether it exists and is not nil.
func (r Row) Get(i int) (any, bool) {
	if i < 0 || i >= len(r) || r[i] == nil {
		return nil, false
	}
	return r[i], true
}

// Clone returns a copy of the row. []byte values are copied too.
func (r Row) Clone() Row {
	if r == nil {
		return nil
	}
	out := make(Row, len(r))
	for i, v := range r {
		if b, ok := v.([]byte); ok {
			v = append([]byte(nil), b...)
		}
		out[i] = v
	}
	return out
}

// CloneAll deep-copies a slice of rows.
func CloneAll(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}

// Strings renders each value of r as text. nil values render as "".
func Strings(r Row) []string {
	out := make([]string, len(r))
	for i, v := range r {
		out[i] = Format(v)
	}
	return out
}

// Format renders a single value as text.
func Format(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

// Equal reports whether two values compare equal. Numbers compare by value
// regardless of width or whether they are integers or floats. Values of
// uncomparable types such as maps and slices compare deeply.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if ai, ok := asInt(a); ok {
		if bi, ok := asInt(b); ok {
			return ai == bi
		}
	}
	if af, ok := asFloat(a); ok {
		if bf, ok := asFloat(b); ok {
			return af == bf
		}
	}
	switch x := a.(type) {
	case time.Time:
		y, ok := b.(time.Time)
		return ok && x.Equal(y)
	case []byte:
		y, ok := b.([]byte)
		return ok && bytes.Equal(x, y)
	}
	if !reflect.ValueOf(a).Comparable() || !reflect.ValueOf(b).Comparable() {
		return reflect.DeepEqual(a, b)
	}
	return a == b
}

// SameKind reports whether two non-nil values belong to the same logical
// type. Integers and floats are both numeric and count as the same kind.
func SameKind(a, b any) bool {
	ka, kb := kindOf(a), kindOf(b)
	return ka == kb || (isNumeric(ka) && isNumeric(kb))
}

func isNumeric(t Type) bool {
	return t == TypeInteger || t == TypeNumber
}

func kindOf(v any) Type {
	switch v.(type) {
	case string:
		return TypeString
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return TypeInteger
	case float32, float64:
		return TypeNumber
	case bool:
		return TypeBoolean
	case time.Time:
		return TypeDate
	case []byte:
		return TypeBinary
	default:
		return TypeNone
	}
}

func asInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint64:
		return float64(x), true
	}
	if i, ok := asInt(v); ok {
		return float64(i), true
	}
	return 0, false
}

// Convert coerces v to the Go representation of t. nil stays nil.
func Convert(v any, t Type) (any, error) {
	if v == nil || t == TypeNone {
		return v, nil
	}
	switch t {
	case TypeString:
		return Format(v), nil
	case TypeInteger:
		if i, ok := asInt(v); ok {
			return i, nil
		}
		switch x := v.(type) {
		case float64:
			return int64(x), nil
		case bool:
			if x {
				return int64(1), nil
			}
			return int64(0), nil
		}
		return strconv.ParseInt(strings.TrimSpace(Format(v)), 10, 64)
	case TypeNumber:
		if i, ok := asInt(v); ok {
			return float64(i), nil
		}
		if f, ok := v.(float64); ok {
			return f, nil
		}
		return strconv.ParseFloat(strings.TrimSpace(Format(v)), 64)
	case TypeBoolean:
		if b, ok := v.(bool); ok {
			return b, nil
		}
		if i, ok := asInt(v); ok {
			return i != 0, nil
		}
		return strconv.ParseBool(strings.TrimSpace(Format(v)))
	case TypeDate:
		if d, ok := v.(time.Time); ok {
			return d, nil
		}
		return time.Parse(time.RFC3339Nano, strings.TrimSpace(Format(v)))
	case TypeBinary:
		if b, ok := v.([]byte); ok {
			return b, nil
		}
		return []byte(Format(v)), nil
	}
	return nil, fmt.Errorf("row: cannot convert %T to %s", v, t)
}
