package imagine

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"unicode/utf16"
)

// ErrUnrepresentable is wrapped by FromGo when a Go value cannot be expressed
// in the closed value model. Callers detect it with errors.Is.
var ErrUnrepresentable = errors.New("unrepresentable value")

// Value is a sealed interface over the types an override point or a
// substitute result may carry. Only String, Int, Bool, Array, and Object
// implement it. There is no float and no null: guard matching is exact
// equality, and those are precisely the types whose equality the engine
// refuses to guess about.
type Value interface {
	value() // Sealed - only these types implement it
}

// String is a string value.
type String string

func (String) value() {}

// Int is an integer value. Always int64, never a float.
type Int int64

func (Int) value() {}

// Bool is a boolean value.
type Bool bool

func (Bool) value() {}

// Array is an ordered sequence of values.
type Array []Value

func (Array) value() {}

// Object maps string keys to values. Use SortedKeys for deterministic
// iteration.
type Object map[string]Value

func (Object) value() {}

// Equal reports deep structural equality of two values. Values of different
// dynamic types are never equal.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Int:
		bv, ok := b.(Int)
		return ok && av == bv
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case Array:
		bv, ok := b.(Array)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Object:
		bv, ok := b.(Object)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			w, present := bv[k]
			if !present || !Equal(v, w) {
				return false
			}
		}
		return true
	}
	return false
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// CRITICAL: Go's sort.Strings uses UTF-8 which produces DIFFERENT order.
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering as
// required by RFC 8785. Must use unicode/utf16.Encode for correct surrogate
// handling; plain string comparison works on UTF-8 bytes.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	minLen := len(a16)
	if len(b16) < minLen {
		minLen = len(b16)
	}

	for i := 0; i < minLen; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	if len(a16) < len(b16) {
		return -1
	}
	if len(a16) > len(b16) {
		return 1
	}
	return 0
}

// FromGo converts a native Go value into a Value. Integral floats convert to
// Int; fractional floats, nil, and any type outside the closed model return
// an error wrapping ErrUnrepresentable. This is the construction-time door
// where equality-ambiguous argument types are turned away.
func FromGo(v any) (Value, error) {
	switch val := v.(type) {
	case Value:
		return val, nil
	case nil:
		return nil, fmt.Errorf("%w: nil", ErrUnrepresentable)
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	case int:
		return Int(val), nil
	case int8:
		return Int(val), nil
	case int16:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint:
		if uint64(val) > math.MaxInt64 {
			return nil, fmt.Errorf("%w: uint %d overflows int64", ErrUnrepresentable, val)
		}
		return Int(val), nil
	case uint8:
		return Int(val), nil
	case uint16:
		return Int(val), nil
	case uint32:
		return Int(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, fmt.Errorf("%w: uint64 %d overflows int64", ErrUnrepresentable, val)
		}
		return Int(val), nil
	case float32:
		return floatToValue(float64(val))
	case float64:
		return floatToValue(val)
	case json.Number:
		s := string(val)
		if strings.ContainsAny(s, ".eE") {
			f, err := val.Float64()
			if err != nil {
				return nil, fmt.Errorf("%w: malformed number %q", ErrUnrepresentable, s)
			}
			return floatToValue(f)
		}
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("%w: number %s out of int64 range", ErrUnrepresentable, val)
		}
		return Int(n), nil
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			ev, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = ev
		}
		return arr, nil
	case map[string]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			ev, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			obj[k] = ev
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("%w: unsupported type %T", ErrUnrepresentable, v)
	}
}

// floatToValue accepts a float only when it carries an exact integer.
func floatToValue(f float64) (Value, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return nil, fmt.Errorf("%w: float %v (exact equality on floats is undefined; use an int)", ErrUnrepresentable, f)
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return nil, fmt.Errorf("%w: float %v out of int64 range", ErrUnrepresentable, f)
	}
	return Int(int64(f)), nil
}

// MustFromGo is FromGo that panics on error. For literals in tests and
// examples where the input is known representable.
func MustFromGo(v any) Value {
	val, err := FromGo(v)
	if err != nil {
		panic(err)
	}
	return val
}
