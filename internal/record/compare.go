package record

import (
	"cmp"
	"strings"
	"time"

	"github.com/tuannm99/tinyrdb/internal/sqlerr"
)

// Compare orders two non-NULL values. Numbers compare numerically, text by
// byte order, dates and timestamps chronologically. Text compared with a
// temporal value is parsed as that type; INTEGER 0/1 compared with BOOLEAN
// is read as false/true. Any other mix is a TypeError.
//
// Callers deal with NULL first: Compare treats NULL as a TypeError.
func Compare(a, b Value) (int, error) {
	if a.IsNull() || b.IsNull() {
		return 0, sqlerr.Typef("cannot compare NULL")
	}

	switch {
	case a.typ == TypeInteger && b.typ == TypeInteger:
		return cmp.Compare(a.i, b.i), nil
	case a.typ.IsNumeric() && b.typ.IsNumeric():
		return cmp.Compare(a.Float(), b.Float()), nil
	case a.typ == TypeVarchar && b.typ == TypeVarchar:
		return strings.Compare(a.s, b.s), nil
	case a.typ == TypeBoolean && b.typ == TypeBoolean:
		return compareBool(a.b, b.b), nil
	case a.typ.IsTemporal() && b.typ.IsTemporal():
		return a.t.Compare(b.t), nil
	case a.typ.IsTemporal() && b.typ == TypeVarchar:
		bt, err := temporalFromText(b, a.typ)
		if err != nil {
			return 0, err
		}
		return a.t.Compare(bt), nil
	case a.typ == TypeVarchar && b.typ.IsTemporal():
		at, err := temporalFromText(a, b.typ)
		if err != nil {
			return 0, err
		}
		return at.Compare(b.t), nil
	case a.typ == TypeBoolean && b.typ == TypeInteger:
		bb, err := toBoolean(b)
		if err != nil {
			return 0, mismatch(a, b)
		}
		return compareBool(a.b, bb.b), nil
	case a.typ == TypeInteger && b.typ == TypeBoolean:
		ab, err := toBoolean(a)
		if err != nil {
			return 0, mismatch(a, b)
		}
		return compareBool(ab.b, b.b), nil
	}
	return 0, mismatch(a, b)
}

// Equal reports whether two non-NULL values compare equal.
func Equal(a, b Value) (bool, error) {
	c, err := Compare(a, b)
	return c == 0, err
}

// MustCompare is Compare for values already known to be of one comparable
// type, such as keys of one index. Incomparable values order by type tag.
func MustCompare(a, b Value) int {
	c, err := Compare(a, b)
	if err != nil {
		return cmp.Compare(a.typ, b.typ)
	}
	return c
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}

func temporalFromText(v Value, as DataType) (time.Time, error) {
	var (
		c   Value
		err error
	)
	if as == TypeDate {
		c, err = toDate(v)
	} else {
		c, err = toTimestamp(v)
	}
	if err != nil {
		return time.Time{}, err
	}
	return c.t, nil
}

func mismatch(a, b Value) error {
	return sqlerr.Typef("cannot compare %s with %s", a.typ, b.typ)
}
