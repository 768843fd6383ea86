package record

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"
)

// cell is the persisted form of a non-NULL value: the type tag plus the
// value in its natural JSON encoding. NULL is persisted as JSON null.
type cell struct {
	T DataType        `json:"t"`
	V json.RawMessage `json:"v"`
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.IsNull() {
		return []byte("null"), nil
	}

	var (
		raw []byte
		err error
	)
	switch v.typ {
	case TypeInteger:
		raw, err = json.Marshal(v.i)
	case TypeFloat:
		raw, err = json.Marshal(v.f)
	case TypeVarchar:
		raw, err = json.Marshal(v.s)
	case TypeBoolean:
		raw, err = json.Marshal(v.b)
	case TypeDate:
		raw, err = json.Marshal(v.t.Format(DateLayout))
	case TypeTimestamp:
		raw, err = json.Marshal(v.t.Format(time.RFC3339Nano))
	default:
		return nil, fmt.Errorf("record: cannot encode value of type %s", v.typ)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(cell{T: v.typ, V: raw})
}

func (v *Value) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*v = Null()
		return nil
	}

	var c cell
	if err := json.Unmarshal(b, &c); err != nil {
		return fmt.Errorf("record: bad cell: %w", err)
	}

	switch c.T {
	case TypeInteger:
		var i int64
		if err := json.Unmarshal(c.V, &i); err != nil {
			return fmt.Errorf("record: bad INTEGER cell: %w", err)
		}
		*v = Int(i)
	case TypeFloat:
		var f float64
		if err := json.Unmarshal(c.V, &f); err != nil {
			return fmt.Errorf("record: bad FLOAT cell: %w", err)
		}
		*v = Float(f)
	case TypeVarchar:
		var s string
		if err := json.Unmarshal(c.V, &s); err != nil {
			return fmt.Errorf("record: bad VARCHAR cell: %w", err)
		}
		*v = Text(s)
	case TypeBoolean:
		var x bool
		if err := json.Unmarshal(c.V, &x); err != nil {
			return fmt.Errorf("record: bad BOOLEAN cell: %w", err)
		}
		*v = Bool(x)
	case TypeDate, TypeTimestamp:
		var s string
		if err := json.Unmarshal(c.V, &s); err != nil {
			return fmt.Errorf("record: bad %s cell: %w", c.T, err)
		}
		layout := DateLayout
		if c.T == TypeTimestamp {
			layout = time.RFC3339Nano
		}
		t, err := time.Parse(layout, s)
		if err != nil {
			return fmt.Errorf("record: bad %s cell: %w", c.T, err)
		}
		if c.T == TypeDate {
			*v = Date(t)
		} else {
			*v = Timestamp(t)
		}
	default:
		return fmt.Errorf("record: unknown cell type %s", c.T)
	}
	return nil
}
