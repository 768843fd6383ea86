package record

import (
	"fmt"
	"strings"
)

// DataType is the declared type of a column, and the dynamic type of a
// non-NULL Value.
type DataType uint8

const (
	TypeNull DataType = iota // only ever the type of the NULL value
	TypeInteger
	TypeFloat
	TypeVarchar
	TypeBoolean
	TypeDate
	TypeTimestamp
)

var typeNames = map[DataType]string{
	TypeNull:      "NULL",
	TypeInteger:   "INTEGER",
	TypeFloat:     "FLOAT",
	TypeVarchar:   "VARCHAR",
	TypeBoolean:   "BOOLEAN",
	TypeDate:      "DATE",
	TypeTimestamp: "TIMESTAMP",
}

func (t DataType) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("DataType(%d)", uint8(t))
}

func (t DataType) IsNumeric() bool { return t == TypeInteger || t == TypeFloat }

func (t DataType) IsTemporal() bool { return t == TypeDate || t == TypeTimestamp }

func (t DataType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *DataType) UnmarshalText(b []byte) error {
	dt, err := ParseDataType(string(b))
	if err != nil {
		return err
	}
	*t = dt
	return nil
}

// ParseDataType maps a SQL type name, including the accepted aliases, to a
// DataType.
func ParseDataType(name string) (DataType, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "INT", "INTEGER":
		return TypeInteger, nil
	case "FLOAT", "DOUBLE", "REAL":
		return TypeFloat, nil
	case "VARCHAR", "CHAR", "TEXT":
		return TypeVarchar, nil
	case "BOOL", "BOOLEAN":
		return TypeBoolean, nil
	case "DATE":
		return TypeDate, nil
	case "TIMESTAMP", "DATETIME":
		return TypeTimestamp, nil
	default:
		return TypeNull, fmt.Errorf("unsupported column type: %s", name)
	}
}

// ColumnType is a DataType plus the optional length bound of VARCHAR(n).
// Length 0 means unbounded.
type ColumnType struct {
	Type   DataType `json:"type"`
	Length int      `json:"length,omitempty"`
}

func (c ColumnType) String() string {
	if c.Type == TypeVarchar && c.Length > 0 {
		return fmt.Sprintf("VARCHAR(%d)", c.Length)
	}
	return c.Type.String()
}
