package feed

import (
	"errors"
	"testing"
)

func TestParseFieldTypes(t *testing.T) {
	types, err := ParseFieldTypes(map[string]string{
		"price":  "float",
		"stock":  "integer",
		"name":   "string",
		"active": "boolean",
	})
	if err != nil {
		t.Fatalf("ParseFieldTypes: %v", err)
	}
	if types["price"] != FieldFloat || types["stock"] != FieldInteger {
		t.Errorf("unexpected parsed types: %v", types)
	}

	if _, err := ParseFieldTypes(map[string]string{"price": "decimal"}); err == nil {
		t.Error("unknown datatype accepted")
	}

	types, err = ParseFieldTypes(nil)
	if err != nil || types != nil {
		t.Errorf("ParseFieldTypes(nil) = %v, %v, want nil, nil", types, err)
	}
}

func TestCoerceValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		typ  FieldType
		want any
		fail bool
	}{
		{"string passthrough", "hi", FieldString, "hi", false},
		{"bytes to string", []byte("hi"), FieldString, "hi", false},
		{"number to string", 12, FieldString, "12", false},
		{"nil string fails", nil, FieldString, nil, true},

		{"integer from string", "42", FieldInteger, int64(42), false},
		{"integer from int", 42, FieldInteger, int64(42), false},
		{"integer from whole float", float64(42), FieldInteger, int64(42), false},
		{"integer rejects fraction", 42.5, FieldInteger, nil, true},
		{"integer rejects text", "forty-two", FieldInteger, nil, true},

		{"float from string", "9.99", FieldFloat, 9.99, false},
		{"float from int", 10, FieldFloat, float64(10), false},
		{"float rejects text", "cheap", FieldFloat, nil, true},

		{"bool from string", "true", FieldBoolean, true, false},
		{"bool passthrough", false, FieldBoolean, false, false},
		{"bool rejects text", "yep", FieldBoolean, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := coerceValue("col", tt.in, tt.typ)
			if tt.fail {
				if err == nil {
					t.Fatalf("coerceValue(%v, %s) = %v, want error", tt.in, tt.typ, got)
				}
				var ce *CoercionError
				if !errors.As(err, &ce) {
					t.Errorf("error type = %T, want CoercionError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("coerceValue(%v, %s): %v", tt.in, tt.typ, err)
			}
			if got != tt.want {
				t.Errorf("coerceValue(%v, %s) = %v (%T), want %v (%T)", tt.in, tt.typ, got, got, tt.want, tt.want)
			}
		})
	}
}
