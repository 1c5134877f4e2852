package tool

import (
	"fmt"
	"reflect"
)

// MissingParameterError reports a required argument that was not supplied.
type MissingParameterError struct {
	Name string
}

func (e *MissingParameterError) Error() string {
	return "missing parameter: " + e.Name
}

// InvalidEnumError reports a value outside a parameter's allowed set.
type InvalidEnumError struct {
	Name    string
	Value   any
	Allowed []any
}

func (e *InvalidEnumError) Error() string {
	return fmt.Sprintf("parameter %s must be one of %v, got %v", e.Name, e.Allowed, e.Value)
}

// ValidateParameters resolves and checks args against the declared parameters,
// in declaration order. Required parameters must be present. Absent optional
// parameters take their default when one exists and are otherwise omitted from
// the output. A resolved value (explicit or defaulted) must be a member of the
// parameter's enum when one is declared.
func ValidateParameters(meta Metadata, args map[string]any) (map[string]any, error) {
	validated := make(map[string]any, len(meta.Parameters))

	for _, p := range meta.Parameters {
		value, supplied := args[p.Name]
		if !supplied || value == nil {
			if p.Required {
				return nil, &MissingParameterError{Name: p.Name}
			}
			if p.Default == nil {
				continue
			}
			value = p.Default
		}

		if len(p.Enum) > 0 && !enumContains(p.Enum, value) {
			return nil, &InvalidEnumError{Name: p.Name, Value: value, Allowed: p.Enum}
		}

		validated[p.Name] = value
	}

	return validated, nil
}

func enumContains(allowed []any, v any) bool {
	for _, a := range allowed {
		// DeepEqual instead of ==: enum members or supplied values may be
		// slices or maps, which == panics on.
		if reflect.DeepEqual(a, v) {
			return true
		}
		// JSON decoding yields float64 for numbers; match numeric enums
		// declared as ints against decoded floats and vice versa.
		if fa, aok := toFloat(a); aok {
			if fv, vok := toFloat(v); vok && fa == fv {
				return true
			}
		}
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	return 0, false
}
