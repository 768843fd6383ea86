package record

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tuannm99/tinyrdb/internal/sqlerr"
)

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	time.RFC3339Nano,
	DateLayout,
}

// Coerce converts v to the column type ct. NULL passes through unchanged;
// nullability is a constraint, not a type rule.
func Coerce(v Value, ct ColumnType) (Value, error) {
	if v.IsNull() {
		return v, nil
	}

	switch ct.Type {
	case TypeInteger:
		return toInteger(v)
	case TypeFloat:
		return toFloat(v)
	case TypeVarchar:
		s := v.String()
		if ct.Length > 0 {
			if n := utf8.RuneCountInString(s); n > ct.Length {
				return Null(), sqlerr.Typef("string exceeds maximum length of %d: got %d", ct.Length, n)
			}
		}
		return Text(s), nil
	case TypeBoolean:
		return toBoolean(v)
	case TypeDate:
		return toDate(v)
	case TypeTimestamp:
		return toTimestamp(v)
	default:
		return Null(), sqlerr.Typef("unknown column type %s", ct.Type)
	}
}

func cannotConvert(v Value, target DataType) error {
	if v.typ == TypeVarchar {
		return sqlerr.Typef("cannot convert '%s' to %s", v.s, target)
	}
	return sqlerr.Typef("cannot convert %s to %s", v.typ, target)
}

func toInteger(v Value) (Value, error) {
	switch v.typ {
	case TypeInteger:
		return v, nil
	case TypeFloat:
		if v.f == math.Trunc(v.f) && math.Abs(v.f) < 1<<63 {
			return Int(int64(v.f)), nil
		}
	case TypeVarchar:
		if i, err := strconv.ParseInt(strings.TrimSpace(v.s), 10, 64); err == nil {
			return Int(i), nil
		}
	}
	return Null(), cannotConvert(v, TypeInteger)
}

func toFloat(v Value) (Value, error) {
	switch v.typ {
	case TypeInteger:
		return Float(float64(v.i)), nil
	case TypeFloat:
		return v, nil
	case TypeVarchar:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v.s), 64); err == nil {
			return Float(f), nil
		}
	}
	return Null(), cannotConvert(v, TypeFloat)
}

func toBoolean(v Value) (Value, error) {
	switch v.typ {
	case TypeBoolean:
		return v, nil
	case TypeInteger:
		switch v.i {
		case 0:
			return Bool(false), nil
		case 1:
			return Bool(true), nil
		}
	case TypeVarchar:
		switch strings.ToLower(strings.TrimSpace(v.s)) {
		case "true", "1", "yes", "on":
			return Bool(true), nil
		case "false", "0", "no", "off":
			return Bool(false), nil
		}
	}
	return Null(), cannotConvert(v, TypeBoolean)
}

func toDate(v Value) (Value, error) {
	switch v.typ {
	case TypeDate:
		return v, nil
	case TypeTimestamp:
		return Date(v.t), nil
	case TypeVarchar:
		t, err := time.Parse(DateLayout, strings.TrimSpace(v.s))
		if err != nil {
			return Null(), sqlerr.Typef("invalid date format '%s', expected YYYY-MM-DD", v.s)
		}
		return Date(t), nil
	}
	return Null(), cannotConvert(v, TypeDate)
}

func toTimestamp(v Value) (Value, error) {
	switch v.typ {
	case TypeTimestamp:
		return v, nil
	case TypeDate:
		return Timestamp(v.t), nil
	case TypeVarchar:
		if t, ok := parseTimestamp(v.s); ok {
			return Timestamp(t), nil
		}
		return Null(), sqlerr.Typef("invalid timestamp format '%s'", v.s)
	}
	return Null(), cannotConvert(v, TypeTimestamp)
}

func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
