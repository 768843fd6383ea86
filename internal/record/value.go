package record

import (
	"math"
	"strconv"
	"time"
)

const (
	DateLayout      = "2006-01-02"
	TimestampLayout = "2006-01-02T15:04:05.999999"
)

// Value is a typed SQL value. The zero Value is NULL.
type Value struct {
	typ DataType
	i   int64
	f   float64
	s   string
	b   bool
	t   time.Time
}

// Row is one tuple, ordered like the owning table's columns.
type Row []Value

// RowID addresses a stored row independently of its key values. IDs are
// assigned per table in increasing order and never reused.
type RowID int64

func Null() Value                 { return Value{} }
func Int(v int64) Value           { return Value{typ: TypeInteger, i: v} }
func Float(v float64) Value       { return Value{typ: TypeFloat, f: v} }
func Text(v string) Value         { return Value{typ: TypeVarchar, s: v} }
func Bool(v bool) Value           { return Value{typ: TypeBoolean, b: v} }
func Date(v time.Time) Value      { return Value{typ: TypeDate, t: truncateDay(v)} }
func Timestamp(v time.Time) Value { return Value{typ: TypeTimestamp, t: v.UTC()} }

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (v Value) IsNull() bool    { return v.typ == TypeNull }
func (v Value) Type() DataType  { return v.typ }
func (v Value) Int() int64      { return v.i }
func (v Value) Str() string     { return v.s }
func (v Value) Bool() bool      { return v.b }
func (v Value) Time() time.Time { return v.t }

// Float returns the value as float64 for either numeric type.
func (v Value) Float() float64 {
	if v.typ == TypeInteger {
		return float64(v.i)
	}
	return v.f
}

// Native converts v to the plain Go value used in query results:
// int64, float64, string, bool or nil. Dates and timestamps are rendered as
// ISO-8601 strings.
func (v Value) Native() any {
	switch v.typ {
	case TypeInteger:
		return v.i
	case TypeFloat:
		return v.f
	case TypeVarchar:
		return v.s
	case TypeBoolean:
		return v.b
	case TypeDate:
		return v.t.Format(DateLayout)
	case TypeTimestamp:
		return v.t.Format(TimestampLayout)
	default:
		return nil
	}
}

func (v Value) String() string {
	switch v.typ {
	case TypeNull:
		return "NULL"
	case TypeInteger:
		return strconv.FormatInt(v.i, 10)
	case TypeFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case TypeBoolean:
		if v.b {
			return "true"
		}
		return "false"
	case TypeVarchar:
		return v.s
	default:
		return v.Native().(string)
	}
}

// Key returns a string that is equal for two values exactly when they
// compare equal. NULLs share one key, which is what GROUP BY and DISTINCT need.
func (v Value) Key() string {
	switch v.typ {
	case TypeNull:
		return "\x00"
	case TypeInteger:
		return "n" + strconv.FormatInt(v.i, 10)
	case TypeFloat:
		if v.f == math.Trunc(v.f) && math.Abs(v.f) < 1<<63 {
			return "n" + strconv.FormatInt(int64(v.f), 10)
		}
		return "n" + strconv.FormatFloat(v.f, 'g', -1, 64)
	case TypeVarchar:
		return "s" + v.s
	case TypeBoolean:
		if v.b {
			return "b1"
		}
		return "b0"
	default:
		return "t" + strconv.FormatInt(v.t.UnixNano(), 10)
	}
}

// FromNative builds a Value from the Go values accepted by the row-level API
// (JSON-decoded maps produce float64 for numbers).
func FromNative(x any) (Value, bool) {
	switch n := x.(type) {
	case nil:
		return Null(), true
	case Value:
		return n, true
	case int:
		return Int(int64(n)), true
	case int32:
		return Int(int64(n)), true
	case int64:
		return Int(n), true
	case float32:
		return Float(float64(n)), true
	case float64:
		if n == math.Trunc(n) && math.Abs(n) < 1<<53 {
			return Int(int64(n)), true
		}
		return Float(n), true
	case string:
		return Text(n), true
	case bool:
		return Bool(n), true
	case time.Time:
		return Timestamp(n), true
	default:
		return Null(), false
	}
}
