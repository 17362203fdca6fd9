package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

var jsonNull = []byte("null")

// Int is an integer that may be unknown. The zero value is unknown.
type Int struct {
	V     int64
	Valid bool
}

// SomeInt returns a known Int.
func SomeInt(v int64) Int { return Int{V: v, Valid: true} }

// Add returns i+o, unknown if either side is unknown.
func (i Int) Add(o Int) Int {
	if !i.Valid || !o.Valid {
		return Int{}
	}
	return SomeInt(i.V + o.V)
}

// Sub returns i-o, unknown if either side is unknown.
func (i Int) Sub(o Int) Int {
	if !i.Valid || !o.Valid {
		return Int{}
	}
	return SomeInt(i.V - o.V)
}

// Float converts to a Float, keeping unknown.
func (i Int) Float() Float {
	if !i.Valid {
		return Float{}
	}
	return SomeFloat(float64(i.V))
}

func (i Int) String() string {
	if !i.Valid {
		return "None"
	}
	return strconv.FormatInt(i.V, 10)
}

func (i Int) MarshalJSON() ([]byte, error) {
	if !i.Valid {
		return jsonNull, nil
	}
	return strconv.AppendInt(nil, i.V, 10), nil
}

func (i *Int) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), jsonNull) {
		*i = Int{}
		return nil
	}
	var v int64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("%w: integer expected, got %s", ErrDataShape, data)
	}
	*i = SomeInt(v)
	return nil
}

// Float is a float64 that may be unknown. The zero value is unknown.
type Float struct {
	V     float64
	Valid bool
}

// SomeFloat returns a known Float. NaN and infinities are unknown.
func SomeFloat(v float64) Float {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Float{}
	}
	return Float{V: v, Valid: true}
}

// Sub returns f-o, unknown if either side is unknown.
func (f Float) Sub(o Float) Float {
	if !f.Valid || !o.Valid {
		return Float{}
	}
	return SomeFloat(f.V - o.V)
}

// Div returns f/o, unknown if either side is unknown or o is zero.
func (f Float) Div(o Float) Float {
	if !f.Valid || !o.Valid || o.V == 0 {
		return Float{}
	}
	return SomeFloat(f.V / o.V)
}

// Positive reports whether f is known and > 0.
func (f Float) Positive() bool { return f.Valid && f.V > 0 }

// Negative reports whether f is known and < 0.
func (f Float) Negative() bool { return f.Valid && f.V < 0 }

func (f Float) String() string {
	if !f.Valid {
		return "None"
	}
	return strconv.FormatFloat(f.V, 'f', -1, 64)
}

func (f Float) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return jsonNull, nil
	}
	return json.Marshal(f.V)
}

func (f *Float) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), jsonNull) {
		*f = Float{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("%w: number expected, got %s", ErrDataShape, data)
	}
	*f = SomeFloat(v)
	return nil
}
