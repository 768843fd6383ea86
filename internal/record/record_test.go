package record

import (
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuannm99/tinyrdb/internal/sqlerr"
)

func TestParseDataType_Aliases(t *testing.T) {
	cases := map[string]DataType{
		"int":      TypeInteger,
		"INTEGER":  TypeInteger,
		"double":   TypeFloat,
		"REAL":     TypeFloat,
		"text":     TypeVarchar,
		"CHAR":     TypeVarchar,
		"bool":     TypeBoolean,
		"DATE":     TypeDate,
		"datetime": TypeTimestamp,
	}
	for name, want := range cases {
		got, err := ParseDataType(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := ParseDataType("BLOB")
	require.Error(t, err)
}

func TestCoerce_IntegerWidensToFloat(t *testing.T) {
	v, err := Coerce(Int(3), ColumnType{Type: TypeFloat})
	require.NoError(t, err)
	require.Equal(t, TypeFloat, v.Type())
	require.Equal(t, 3.0, v.Float())
}

func TestCoerce_VarcharLengthBound(t *testing.T) {
	ct := ColumnType{Type: TypeVarchar, Length: 5}

	v, err := Coerce(Text("héllo"), ct)
	require.NoError(t, err)
	require.Equal(t, "héllo", v.Str())

	_, err = Coerce(Text("toolong"), ct)
	require.ErrorIs(t, err, sqlerr.ErrType)
	require.Contains(t, err.Error(), "maximum length of 5")
}

func TestCoerce_Boolean(t *testing.T) {
	bt := ColumnType{Type: TypeBoolean}

	v, err := Coerce(Int(1), bt)
	require.NoError(t, err)
	require.True(t, v.Bool())

	v, err = Coerce(Int(0), bt)
	require.NoError(t, err)
	require.False(t, v.Bool())

	v, err = Coerce(Bool(true), bt)
	require.NoError(t, err)
	require.True(t, v.Bool())

	_, err = Coerce(Int(2), bt)
	require.ErrorIs(t, err, sqlerr.ErrType)

	_, err = Coerce(Float(0.5), bt)
	require.ErrorIs(t, err, sqlerr.ErrType)
}

func TestCoerce_DateAndTimestamp(t *testing.T) {
	d, err := Coerce(Text("2024-02-29"), ColumnType{Type: TypeDate})
	require.NoError(t, err)
	require.Equal(t, "2024-02-29", d.Native())

	_, err = Coerce(Text("2024-02-30"), ColumnType{Type: TypeDate})
	require.ErrorIs(t, err, sqlerr.ErrType)

	ts, err := Coerce(Text("2024-03-01 10:20:30"), ColumnType{Type: TypeTimestamp})
	require.NoError(t, err)
	require.Equal(t, "2024-03-01T10:20:30", ts.Native())

	_, err = Coerce(Text("yesterday"), ColumnType{Type: TypeTimestamp})
	require.ErrorIs(t, err, sqlerr.ErrType)
}

func TestCoerce_NullPassesThrough(t *testing.T) {
	v, err := Coerce(Null(), ColumnType{Type: TypeInteger})
	require.NoError(t, err)
	require.True(t, v.IsNull())
}

func TestCoerce_IntegerRejectsFraction(t *testing.T) {
	_, err := Coerce(Float(1.5), ColumnType{Type: TypeInteger})
	require.ErrorIs(t, err, sqlerr.ErrType)

	v, err := Coerce(Text(" 42 "), ColumnType{Type: TypeInteger})
	require.NoError(t, err)
	require.Equal(t, int64(42), v.Int())
}

func TestCompare(t *testing.T) {
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		a, b Value
		want int
	}{
		{"int-int", Int(1), Int(2), -1},
		{"int-float", Int(2), Float(1.5), 1},
		{"float-int equal", Float(3), Int(3), 0},
		{"text bytes", Text("B"), Text("a"), -1},
		{"bool", Bool(false), Bool(true), -1},
		{"date-text", Date(day), Text("2024-01-03"), -1},
		{"timestamp-date", Timestamp(day.Add(time.Hour)), Date(day), 1},
		{"bool-int", Bool(true), Int(1), 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Compare(tc.a, tc.b)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}

	_, err := Compare(Int(1), Text("1"))
	require.ErrorIs(t, err, sqlerr.ErrType)

	_, err = Compare(Null(), Int(1))
	require.ErrorIs(t, err, sqlerr.ErrType)
}

func TestValue_KeyMatchesEquality(t *testing.T) {
	require.Equal(t, Int(1).Key(), Float(1).Key())
	require.NotEqual(t, Int(1).Key(), Text("1").Key())
	require.Equal(t, Null().Key(), Null().Key())
	require.NotEqual(t, Null().Key(), Text("").Key())
}

func TestValue_JSONKeepsTypeTags(t *testing.T) {
	ts := time.Date(2024, 5, 6, 7, 8, 9, 123000, time.UTC)
	row := Row{
		Int(1 << 60),
		Float(2.5),
		Text("x"),
		Bool(true),
		Date(ts),
		Timestamp(ts),
		Null(),
	}

	b, err := json.Marshal(row)
	require.NoError(t, err)

	var got Row
	require.NoError(t, json.Unmarshal(b, &got))
	require.Equal(t, row, got)
	require.True(t, got[6].IsNull())
}

func TestFromNative(t *testing.T) {
	v, ok := FromNative(float64(7))
	require.True(t, ok)
	require.Equal(t, TypeInteger, v.Type())

	v, ok = FromNative(7.25)
	require.True(t, ok)
	require.Equal(t, TypeFloat, v.Type())

	_, ok = FromNative([]int{1})
	require.False(t, ok)
}
