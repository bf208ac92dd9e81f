// Package irsdk describes the simulator SDK surface the recorder consumes:
// the telemetry variable catalog, typed per-sample reads, the session-info
// tree and the two "new data" signals. Memory is an in-memory implementation
// used by replay, watch and tests.
package irsdk

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// VarType is the scalar kind of a telemetry variable. The numbering follows
// the SDK header.
type VarType int

const (
	Char VarType = iota
	Bool
	Int
	BitField
	Float
	Double
)

var varTypeNames = [...]string{"char", "bool", "int", "bitfield", "float", "double"}

func (t VarType) String() string {
	if t < 0 || int(t) >= len(varTypeNames) {
		return fmt.Sprintf("vartype(%d)", int(t))
	}
	return varTypeNames[t]
}

func (t VarType) Valid() bool {
	return t >= Char && t <= Double
}

func ParseVarType(raw string) (VarType, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	for i, n := range varTypeNames {
		if n == name {
			return VarType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown var type %q", raw)
}

// Zero returns the zero value of the Go type that carries t.
func (t VarType) Zero() any {
	switch t {
	case Char:
		return byte(0)
	case Bool:
		return false
	case Int:
		return int32(0)
	case BitField:
		return uint32(0)
	case Float:
		return float32(0)
	default:
		return float64(0)
	}
}

// Var is one catalog entry.
type Var struct {
	Name  string
	Type  VarType
	Count int
	Unit  string
	Desc  string
}

var (
	ErrUnknownVar      = errors.New("unknown telemetry var")
	ErrTypeMismatch    = errors.New("telemetry var type mismatch")
	ErrIndexOutOfRange = errors.New("telemetry var index out of range")
)

func validateVars(vars []Var) error {
	seen := make(map[string]struct{}, len(vars))
	for _, v := range vars {
		if strings.TrimSpace(v.Name) == "" {
			return fmt.Errorf("var name is required")
		}
		if _, ok := seen[v.Name]; ok {
			return fmt.Errorf("duplicate var %q", v.Name)
		}
		seen[v.Name] = struct{}{}
		if !v.Type.Valid() {
			return fmt.Errorf("var %q: invalid type %d", v.Name, int(v.Type))
		}
		if v.Count < 1 {
			return fmt.Errorf("var %q: count must be >= 1, got %d", v.Name, v.Count)
		}
	}
	return nil
}

// ConvertValue coerces v to the Go type carried by t. It accepts the shapes a
// YAML or JSON decoder produces (int, int64, uint64, float64, bool, string).
func ConvertValue(t VarType, v any) (any, error) {
	switch t {
	case Char:
		switch x := v.(type) {
		case byte:
			return x, nil
		case string:
			if len(x) != 1 {
				return nil, fmt.Errorf("%w: char wants a single byte, got %q", ErrTypeMismatch, x)
			}
			return x[0], nil
		}
		n, err := integral(v)
		if err != nil || n < 0 || n > math.MaxUint8 {
			return nil, fmt.Errorf("%w: char from %T(%v)", ErrTypeMismatch, v, v)
		}
		return byte(n), nil
	case Bool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
		return nil, fmt.Errorf("%w: bool from %T(%v)", ErrTypeMismatch, v, v)
	case Int:
		n, err := integral(v)
		if err != nil || n < math.MinInt32 || n > math.MaxInt32 {
			return nil, fmt.Errorf("%w: int from %T(%v)", ErrTypeMismatch, v, v)
		}
		return int32(n), nil
	case BitField:
		n, err := integral(v)
		if err != nil || n < 0 || n > math.MaxUint32 {
			return nil, fmt.Errorf("%w: bitfield from %T(%v)", ErrTypeMismatch, v, v)
		}
		return uint32(n), nil
	case Float:
		f, err := floating(v)
		if err != nil {
			return nil, err
		}
		return float32(f), nil
	case Double:
		return floating(v)
	}
	return nil, fmt.Errorf("%w: invalid type %d", ErrTypeMismatch, int(t))
}

func integral(v any) (int64, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case uint32:
		return int64(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return 0, fmt.Errorf("%w: %d overflows", ErrTypeMismatch, x)
		}
		return int64(x), nil
	case float64:
		if x != math.Trunc(x) {
			return 0, fmt.Errorf("%w: %v is not integral", ErrTypeMismatch, x)
		}
		return int64(x), nil
	}
	return 0, fmt.Errorf("%w: %T is not integral", ErrTypeMismatch, v)
}

func floating(v any) (float64, error) {
	switch x := v.(type) {
	case float32:
		return float64(x), nil
	case float64:
		return x, nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	}
	return 0, fmt.Errorf("%w: %T is not numeric", ErrTypeMismatch, v)
}
