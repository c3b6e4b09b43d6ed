package layerz

import (
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
)

// Kind represents the type of a Value.
type Kind int

const (
	KindString Kind = iota
	KindInt64
	KindFloat64
	KindBool
	KindBytes
)

// Value is a typed scalar carried by an event field.
// Numbers and bools are stored inline without allocation.
type Value struct {
	kind  Kind
	num   uint64
	str   string
	bytes []byte
}

// Kind returns the type of the value.
func (v Value) Kind() Kind {
	return v.kind
}

// StringValue creates a Value from a string.
func StringValue(s string) Value {
	return Value{kind: KindString, str: s}
}

// Int64Value creates a Value from an int64.
func Int64Value(n int64) Value {
	return Value{kind: KindInt64, num: uint64(n)}
}

// Float64Value creates a Value from a float64.
func Float64Value(f float64) Value {
	return Value{kind: KindFloat64, num: math.Float64bits(f)}
}

// BoolValue creates a Value from a bool.
func BoolValue(b bool) Value {
	var n uint64
	if b {
		n = 1
	}
	return Value{kind: KindBool, num: n}
}

// BytesValue creates a Value from a byte slice. The slice is copied.
func BytesValue(b []byte) Value {
	cp := make([]byte, len(b))
	copy(cp, b)
	return Value{kind: KindBytes, bytes: cp}
}

// AnyValue converts common Go scalars to a Value.
// Anything else is rendered with fmt as a string.
func AnyValue(v any) Value {
	switch val := v.(type) {
	case Value:
		return val
	case string:
		return StringValue(val)
	case int:
		return Int64Value(int64(val))
	case int32:
		return Int64Value(int64(val))
	case int64:
		return Int64Value(val)
	case uint32:
		return Int64Value(int64(val))
	case float32:
		return Float64Value(float64(val))
	case float64:
		return Float64Value(val)
	case bool:
		return BoolValue(val)
	case []byte:
		return BytesValue(val)
	case fmt.Stringer:
		return StringValue(val.String())
	default:
		return StringValue(fmt.Sprint(v))
	}
}

// AsString returns the string value. Panics if not KindString.
func (v Value) AsString() string {
	if v.kind != KindString {
		panic("layerz: Value is not a string")
	}
	return v.str
}

// AsInt64 returns the int64 value. Panics if not KindInt64.
func (v Value) AsInt64() int64 {
	if v.kind != KindInt64 {
		panic("layerz: Value is not an int64")
	}
	return int64(v.num)
}

// AsFloat64 returns the float64 value. Panics if not KindFloat64.
func (v Value) AsFloat64() float64 {
	if v.kind != KindFloat64 {
		panic("layerz: Value is not a float64")
	}
	return math.Float64frombits(v.num)
}

// AsBool returns the bool value. Panics if not KindBool.
func (v Value) AsBool() bool {
	if v.kind != KindBool {
		panic("layerz: Value is not a bool")
	}
	return v.num == 1
}

// AsBytes returns the byte slice value. Panics if not KindBytes.
func (v Value) AsBytes() []byte {
	if v.kind != KindBytes {
		panic("layerz: Value is not bytes")
	}
	return v.bytes
}

// Interface returns the value as a plain Go value.
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindInt64:
		return int64(v.num)
	case KindFloat64:
		return math.Float64frombits(v.num)
	case KindBool:
		return v.num == 1
	case KindBytes:
		return v.bytes
	default:
		return nil
	}
}

// String returns a string representation of the value.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindInt64:
		return strconv.FormatInt(int64(v.num), 10)
	case KindFloat64:
		return strconv.FormatFloat(math.Float64frombits(v.num), 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.num == 1)
	case KindBytes:
		return hex.EncodeToString(v.bytes)
	default:
		return ""
	}
}

// Equal reports whether two values have the same kind and content.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	if v.kind == KindBytes {
		return string(v.bytes) == string(other.bytes)
	}
	return v.num == other.num && v.str == other.str
}

// Field is a key-value pair reported on an event.
type Field struct {
	Key   string
	Value Value
}

// String creates a string field.
func String(key, value string) Field {
	return Field{Key: key, Value: StringValue(value)}
}

// Int creates an int field (stored as int64).
func Int(key string, value int) Field {
	return Field{Key: key, Value: Int64Value(int64(value))}
}

// Int64 creates an int64 field.
func Int64(key string, value int64) Field {
	return Field{Key: key, Value: Int64Value(value)}
}

// Float64 creates a float64 field.
func Float64(key string, value float64) Field {
	return Field{Key: key, Value: Float64Value(value)}
}

// Bool creates a bool field.
func Bool(key string, value bool) Field {
	return Field{Key: key, Value: BoolValue(value)}
}

// Bytes creates a bytes field.
func Bytes(key string, value []byte) Field {
	return Field{Key: key, Value: BytesValue(value)}
}

// Any creates a field from any value.
func Any(key string, value any) Field {
	return Field{Key: key, Value: AnyValue(value)}
}

// String returns a string representation of the field.
func (f Field) String() string {
	return f.Key + "=" + f.Value.String()
}

// Fields is an ordered mapping of field keys to values.
// Keys keep the position of their first insertion; the last write wins.
// The zero value is ready to use. Fields is not safe for concurrent use.
type Fields struct {
	keys   []string
	values map[string]Value
}

// NewFields creates a Fields from the given fields.
func NewFields(fields ...Field) Fields {
	var f Fields
	f.Set(fields...)
	return f
}

// Set adds or overwrites fields.
func (f *Fields) Set(fields ...Field) {
	for _, field := range fields {
		if f.values == nil {
			f.values = make(map[string]Value, len(fields))
		}
		if _, ok := f.values[field.Key]; !ok {
			f.keys = append(f.keys, field.Key)
		}
		f.values[field.Key] = field.Value
	}
}

// Get returns the value for the given key.
func (f *Fields) Get(key string) (Value, bool) {
	v, ok := f.values[key]
	return v, ok
}

// Has returns true if the key is present.
func (f *Fields) Has(key string) bool {
	_, ok := f.values[key]
	return ok
}

// Delete removes a key.
func (f *Fields) Delete(key string) {
	if _, ok := f.values[key]; !ok {
		return
	}
	delete(f.values, key)
	for i, k := range f.keys {
		if k == key {
			f.keys = append(f.keys[:i], f.keys[i+1:]...)
			return
		}
	}
}

// Len returns the number of fields.
func (f *Fields) Len() int {
	return len(f.keys)
}

// Range iterates over fields in insertion order.
func (f *Fields) Range(fn func(Field) bool) {
	for _, k := range f.keys {
		if !fn(Field{Key: k, Value: f.values[k]}) {
			return
		}
	}
}

// List returns the fields in insertion order.
func (f *Fields) List() []Field {
	out := make([]Field, 0, len(f.keys))
	for _, k := range f.keys {
		out = append(out, Field{Key: k, Value: f.values[k]})
	}
	return out
}

// Map returns the fields as plain Go values.
func (f *Fields) Map() map[string]any {
	out := make(map[string]any, len(f.keys))
	for _, k := range f.keys {
		out[k] = f.values[k].Interface()
	}
	return out
}

// Clone returns an independent copy.
func (f *Fields) Clone() Fields {
	return NewFields(f.List()...)
}
