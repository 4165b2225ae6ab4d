package feed

import (
	"fmt"
	"math"
	"strconv"
)

// FieldType is a configured target type for a metadata column.
type FieldType string

const (
	FieldString  FieldType = "string"
	FieldInteger FieldType = "integer"
	FieldFloat   FieldType = "float"
	FieldBoolean FieldType = "boolean"
)

// ParseFieldTypes validates a configured column->type table. An unrecognized
// type name is a configuration error, surfaced before any row is processed.
func ParseFieldTypes(raw map[string]string) (map[string]FieldType, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	types := make(map[string]FieldType, len(raw))
	for column, name := range raw {
		switch FieldType(name) {
		case FieldString, FieldInteger, FieldFloat, FieldBoolean:
			types[column] = FieldType(name)
		default:
			return nil, fmt.Errorf("unknown datatype %q for column %q (viable datatypes: string, integer, float, boolean)", name, column)
		}
	}
	return types, nil
}

// coerceValue converts a column value to its configured type.
func coerceValue(column string, v any, t FieldType) (any, error) {
	fail := func() (any, error) {
		return nil, &CoercionError{Column: column, Value: v, Type: t}
	}

	switch t {
	case FieldString:
		switch s := v.(type) {
		case string:
			return s, nil
		case []byte:
			return string(s), nil
		case nil:
			return fail()
		default:
			return fmt.Sprint(v), nil
		}

	case FieldInteger:
		switch n := v.(type) {
		case int:
			return int64(n), nil
		case int32:
			return int64(n), nil
		case int64:
			return n, nil
		case float64:
			if n != math.Trunc(n) {
				return fail()
			}
			return int64(n), nil
		case string:
			parsed, err := strconv.ParseInt(n, 10, 64)
			if err != nil {
				return fail()
			}
			return parsed, nil
		default:
			return fail()
		}

	case FieldFloat:
		switch n := v.(type) {
		case float32:
			return float64(n), nil
		case float64:
			return n, nil
		case int:
			return float64(n), nil
		case int32:
			return float64(n), nil
		case int64:
			return float64(n), nil
		case string:
			parsed, err := strconv.ParseFloat(n, 64)
			if err != nil {
				return fail()
			}
			return parsed, nil
		default:
			return fail()
		}

	case FieldBoolean:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			parsed, err := strconv.ParseBool(b)
			if err != nil {
				return fail()
			}
			return parsed, nil
		default:
			return fail()
		}
	}

	return fail()
}
