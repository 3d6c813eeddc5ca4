package config

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	ErrMissingKey = errors.New("missing required key")
	ErrWrongType  = errors.New("wrong value type")
)

// Params is a read-only view over task parameters as decoded from YAML,
// JSON or BSON.
type Params struct {
	values map[string]any
}

func NewParams(values map[string]any) Params {
	if values == nil {
		values = map[string]any{}
	}
	return Params{values: values}
}

// Nested returns the section stored under key, or empty params.
func (p Params) Nested(key string) (Params, error) {
	v, ok := p.values[key]
	if !ok || v == nil {
		return NewParams(nil), nil
	}
	m, ok := asMap(v)
	if !ok {
		return Params{}, fmt.Errorf("%w: %q is %T, want a mapping", ErrWrongType, key, v)
	}
	return NewParams(m), nil
}

// Merged layers the named section over the top-level keys: a key set in
// the section wins over the same top-level key.
func (p Params) Merged(section string) (Params, error) {
	nested, err := p.Nested(section)
	if err != nil {
		return Params{}, err
	}
	out := make(map[string]any, len(p.values)+len(nested.values))
	for k, v := range p.values {
		if k == section {
			continue
		}
		out[k] = v
	}
	for k, v := range nested.values {
		out[k] = v
	}
	return NewParams(out), nil
}

func (p Params) Has(key string) bool {
	v, ok := p.values[key]
	return ok && v != nil
}

func (p Params) String(key string) (string, error) {
	if !p.Has(key) {
		return "", fmt.Errorf("%w: %q", ErrMissingKey, key)
	}
	return asString(key, p.values[key])
}

func (p Params) StringOr(key, def string) (string, error) {
	if !p.Has(key) {
		return def, nil
	}
	return asString(key, p.values[key])
}

// Optional returns the string stored under key and whether it was set.
// There is no default.
func (p Params) Optional(key string) (string, bool, error) {
	if !p.Has(key) {
		return "", false, nil
	}
	s, err := asString(key, p.values[key])
	if err != nil {
		return "", false, err
	}
	return s, true, nil
}

func (p Params) IntOr(key string, def int) (int, error) {
	if !p.Has(key) {
		return def, nil
	}
	return asInt(key, p.values[key])
}

func (p Params) BoolOr(key string, def bool) (bool, error) {
	if !p.Has(key) {
		return def, nil
	}
	switch v := p.values[key].(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, fmt.Errorf("%w: %q: %v", ErrWrongType, key, err)
		}
		return b, nil
	default:
		return false, fmt.Errorf("%w: %q is %T, want bool", ErrWrongType, key, v)
	}
}

func asString(key string, v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case int, int32, int64, float64, bool:
		return fmt.Sprint(s), nil
	default:
		return "", fmt.Errorf("%w: %q is %T, want string", ErrWrongType, key, v)
	}
}

func asInt(key string, v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case uint64:
		if n > math.MaxInt32 {
			return 0, fmt.Errorf("%w: %q out of range", ErrWrongType, key)
		}
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("%w: %q is not an integer: %v", ErrWrongType, key, n)
		}
		return int(n), nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, fmt.Errorf("%w: %q: %v", ErrWrongType, key, err)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("%w: %q is %T, want int", ErrWrongType, key, v)
	}
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	default:
		return nil, false
	}
}
