package streamobject

import (
	"errors"
	"reflect"
	"testing"
)

func TestStrategyProviderSchemaWrapsArray(t *testing.T) {
	userSchema := map[string]any{"type": "string"}
	s := newStrategy(ShapeArray, userSchema, nil)

	got := s.providerSchema()
	want := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"elements": map[string]any{
				"type":  "array",
				"items": userSchema,
			},
		},
		"required": []string{"elements"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("providerSchema() = %#v, want %#v", got, want)
	}
}

func TestStrategyProviderSchemaObjectPassesThrough(t *testing.T) {
	userSchema := map[string]any{"type": "object"}
	s := newStrategy(ShapeObject, userSchema, nil)
	if got := s.providerSchema(); !reflect.DeepEqual(got, userSchema) {
		t.Fatalf("providerSchema() = %#v, want %#v", got, userSchema)
	}
}

func TestStrategyProviderSchemaNoSchemaIsNil(t *testing.T) {
	s := newStrategy(ShapeNoSchema, nil, nil)
	if got := s.providerSchema(); got != nil {
		t.Fatalf("providerSchema() = %#v, want nil", got)
	}
}

func TestStrategyPartialObject(t *testing.T) {
	s := newStrategy(ShapeObject, nil, nil)
	value, ok := s.partial(map[string]any{"a": 1.0})
	if !ok {
		t.Fatalf("partial() ok = false, want true")
	}
	if !reflect.DeepEqual(value, map[string]any{"a": 1.0}) {
		t.Fatalf("partial() = %#v", value)
	}
	if _, ok := s.partial(nil); ok {
		t.Fatalf("partial(nil) ok = true, want false")
	}
}

func TestStrategyPartialArrayUnwrapsElements(t *testing.T) {
	s := newStrategy(ShapeArray, nil, nil)
	parsed := map[string]any{"elements": []any{1.0, 2.0}}

	value, ok := s.partial(parsed)
	if !ok {
		t.Fatalf("partial() ok = false, want true")
	}
	if !reflect.DeepEqual(value, []any{1.0, 2.0}) {
		t.Fatalf("partial() = %#v", value)
	}

	if _, ok := s.partial(map[string]any{}); ok {
		t.Fatalf("partial() without elements key should report ok=false")
	}
}

func TestStrategyNewElementsLookAhead(t *testing.T) {
	s := newStrategy(ShapeArray, nil, nil)
	parsed := map[string]any{"elements": []any{"a", "b", "c"}}

	fresh, advanced := s.newElements(parsed, 0)
	if advanced != 2 {
		t.Fatalf("advanced = %d, want 2", advanced)
	}
	if !reflect.DeepEqual(fresh, []any{"a", "b"}) {
		t.Fatalf("fresh = %#v, want [a b]", fresh)
	}

	// A subsequent call with nothing new beyond the already-published
	// count yields no fresh elements.
	fresh, advanced = s.newElements(parsed, 2)
	if len(fresh) != 0 || advanced != 2 {
		t.Fatalf("fresh = %#v, advanced = %d, want empty/2", fresh, advanced)
	}
}

func TestStrategyFinalizeObjectRunsValidate(t *testing.T) {
	calls := 0
	validate := func(v any) (any, error) {
		calls++
		return v, nil
	}
	s := newStrategy(ShapeObject, nil, validate)

	value, err := s.finalize(`{"a":1}`)
	if err != nil {
		t.Fatalf("finalize() error = %v", err)
	}
	if calls != 1 {
		t.Fatalf("validate called %d times, want 1", calls)
	}
	if !reflect.DeepEqual(value, map[string]any{"a": 1.0}) {
		t.Fatalf("finalize() = %#v", value)
	}
}

func TestStrategyFinalizeObjectValidateFailureWrapsTypeValidation(t *testing.T) {
	validate := func(v any) (any, error) { return nil, errors.New("bad shape") }
	s := newStrategy(ShapeObject, nil, validate)

	_, err := s.finalize(`{"a":1}`)
	var streamErr *Error
	if !errors.As(err, &streamErr) || streamErr.Kind != KindTypeValidation {
		t.Fatalf("finalize() error = %v, want *Error{Kind: KindTypeValidation}", err)
	}
}

func TestStrategyFinalizeArrayValidatesEachElement(t *testing.T) {
	seen := []any{}
	validate := func(v any) (any, error) {
		seen = append(seen, v)
		return v, nil
	}
	s := newStrategy(ShapeArray, nil, validate)

	value, err := s.finalize(`{"elements":[1,2,3]}`)
	if err != nil {
		t.Fatalf("finalize() error = %v", err)
	}
	if !reflect.DeepEqual(value, []any{1.0, 2.0, 3.0}) {
		t.Fatalf("finalize() = %#v", value)
	}
	if len(seen) != 3 {
		t.Fatalf("validate called %d times, want 3", len(seen))
	}
}

func TestStrategyFinalizeArrayElementFailureIsTypeValidation(t *testing.T) {
	validate := func(v any) (any, error) {
		if v == 2.0 {
			return nil, errors.New("element 1 is bad")
		}
		return v, nil
	}
	s := newStrategy(ShapeArray, nil, validate)

	_, err := s.finalize(`{"elements":[1,2,3]}`)
	var streamErr *Error
	if !errors.As(err, &streamErr) || streamErr.Kind != KindTypeValidation {
		t.Fatalf("finalize() error = %v, want *Error{Kind: KindTypeValidation}", err)
	}
}

func TestStrategyFinalizeNoSchemaIsIdentity(t *testing.T) {
	s := newStrategy(ShapeNoSchema, nil, nil)
	value, err := s.finalize(`[1,2,3]`)
	if err != nil {
		t.Fatalf("finalize() error = %v", err)
	}
	if !reflect.DeepEqual(value, []any{1.0, 2.0, 3.0}) {
		t.Fatalf("finalize() = %#v", value)
	}
}

func TestStrategyFinalizeUnparsableTextFails(t *testing.T) {
	s := newStrategy(ShapeObject, nil, nil)
	if _, err := s.finalize(""); err == nil {
		t.Fatalf("finalize(\"\") error = nil, want non-nil")
	}
}
