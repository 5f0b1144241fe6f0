package tools

import "testing"

func TestValidateNilSchemaAlwaysPasses(t *testing.T) {
	if _, ok := Validate(nil, map[string]interface{}{"anything": 1}); !ok {
		t.Fatal("nil schema should always validate")
	}
}

func TestValidateRequiredMissing(t *testing.T) {
	schema := stringSchema("x", map[string]interface{}{"a": prop("a")}, "a", "b")
	msg, ok := Validate(schema, map[string]interface{}{"a": "x"})
	if ok {
		t.Fatal("expected validation failure")
	}
	want := "b: required property missing"
	if msg != want {
		t.Fatalf("got %q, want %q", msg, want)
	}
}

func TestValidateTypeMismatch(t *testing.T) {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"count": map[string]interface{}{"type": "integer"},
		},
	}
	_, ok := Validate(schema, map[string]interface{}{"count": "not a number"})
	if ok {
		t.Fatal("expected type mismatch to fail validation")
	}
}

func TestValidateIntegerAcceptsWholeFloat(t *testing.T) {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"count": map[string]interface{}{"type": "integer"},
		},
	}
	_, ok := Validate(schema, map[string]interface{}{"count": float64(3)})
	if !ok {
		t.Fatal("3.0 should satisfy an integer schema")
	}
	_, ok = Validate(schema, map[string]interface{}{"count": float64(3.5)})
	if ok {
		t.Fatal("3.5 should not satisfy an integer schema")
	}
}

func TestValidateSuccess(t *testing.T) {
	schema := stringSchema("x", map[string]interface{}{"path": prop("path")}, "path")
	if _, ok := Validate(schema, map[string]interface{}{"path": "/tmp/x"}); !ok {
		t.Fatal("expected validation to pass")
	}
}
