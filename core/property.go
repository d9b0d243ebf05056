package core

import (
	"fmt"
	"strconv"
	"strings"
)

// values is an insertion-ordered name/value bag shared by message properties
// and map message bodies.
type values struct {
	names []string
	items map[string]any
}

func (v *values) set(name string, val any) {
	if v.items == nil {
		v.items = make(map[string]any)
	}
	if _, ok := v.items[name]; !ok {
		v.names = append(v.names, name)
	}
	v.items[name] = val
}

func (v *values) get(name string) (any, bool) {
	val, ok := v.items[name]
	return val, ok
}

func (v *values) keys() []string {
	out := make([]string, len(v.names))
	copy(out, v.names)
	return out
}

func (v *values) clear() {
	v.names = nil
	v.items = nil
}

func (v *values) clone() values {
	out := values{names: make([]string, len(v.names))}
	copy(out.names, v.names)
	if v.items != nil {
		out.items = make(map[string]any, len(v.items))
		for k, val := range v.items {
			if b, ok := val.([]byte); ok {
				val = append([]byte(nil), b...)
			}
			out.items[k] = val
		}
	}
	return out
}

// checkPrimitive reports whether val is a type allowed as a property value.
func checkPrimitive(val any) error {
	switch val.(type) {
	case bool, int8, int16, int32, int, int64, float32, float64, string:
		return nil
	default:
		return fmt.Errorf("%w: unsupported value type %T", ErrMessageFormat, val)
	}
}

func toBool(val any, ok bool) (bool, error) {
	if !ok || val == nil {
		return false, nil
	}
	switch v := val.(type) {
	case bool:
		return v, nil
	case string:
		return strings.EqualFold(v, "true"), nil
	default:
		return false, fmt.Errorf("%w: cannot read %T as bool", ErrMessageFormat, val)
	}
}

func toInt8(val any, ok bool) (int8, error) {
	switch v := val.(type) {
	case int8:
		return v, nil
	case string:
		n, err := strconv.ParseInt(v, 10, 8)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrMessageFormat, err)
		}
		return int8(n), nil
	}
	return 0, conversionError(val, ok, "int8")
}

func toInt16(val any, ok bool) (int16, error) {
	switch v := val.(type) {
	case int8:
		return int16(v), nil
	case int16:
		return v, nil
	case string:
		n, err := strconv.ParseInt(v, 10, 16)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrMessageFormat, err)
		}
		return int16(n), nil
	}
	return 0, conversionError(val, ok, "int16")
}

func toInt32(val any, ok bool) (int32, error) {
	switch v := val.(type) {
	case int8:
		return int32(v), nil
	case int16:
		return int32(v), nil
	case int32:
		return v, nil
	case string:
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrMessageFormat, err)
		}
		return int32(n), nil
	}
	return 0, conversionError(val, ok, "int32")
}

func toInt64(val any, ok bool) (int64, error) {
	switch v := val.(type) {
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrMessageFormat, err)
		}
		return n, nil
	}
	return 0, conversionError(val, ok, "int64")
}

func toFloat32(val any, ok bool) (float32, error) {
	switch v := val.(type) {
	case float32:
		return v, nil
	case string:
		f, err := strconv.ParseFloat(v, 32)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrMessageFormat, err)
		}
		return float32(f), nil
	}
	return 0, conversionError(val, ok, "float32")
}

func toFloat64(val any, ok bool) (float64, error) {
	switch v := val.(type) {
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrMessageFormat, err)
		}
		return f, nil
	}
	return 0, conversionError(val, ok, "float64")
}

func toString(val any, ok bool) (string, error) {
	if !ok || val == nil {
		return "", nil
	}
	switch v := val.(type) {
	case string:
		return v, nil
	case bool:
		return strconv.FormatBool(v), nil
	case int8, int16, int32, int, int64:
		n, _ := toInt64(v, true)
		return strconv.FormatInt(n, 10), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32), nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	default:
		return "", fmt.Errorf("%w: cannot read %T as string", ErrMessageFormat, val)
	}
}

func conversionError(val any, ok bool, target string) error {
	if !ok || val == nil {
		return fmt.Errorf("%w: no value to read as %s", ErrMessageFormat, target)
	}
	return fmt.Errorf("%w: cannot read %T as %s", ErrMessageFormat, val, target)
}
