package streamobject

import "testing"

func TestDeepEqualMapsUnordered(t *testing.T) {
	a := map[string]any{"x": 1.0, "y": "hi"}
	b := map[string]any{"y": "hi", "x": 1.0}
	if !deepEqual(a, b) {
		t.Fatalf("expected unordered maps to compare equal")
	}
}

func TestDeepEqualDetectsDifference(t *testing.T) {
	a := map[string]any{"x": 1.0}
	b := map[string]any{"x": 2.0}
	if deepEqual(a, b) {
		t.Fatalf("expected differing maps to compare unequal")
	}
}

func TestDeepEqualArraysElementwise(t *testing.T) {
	a := []any{1.0, "two", nil}
	b := []any{1.0, "two", nil}
	if !deepEqual(a, b) {
		t.Fatalf("expected identical arrays to compare equal")
	}
	if deepEqual(a, []any{1.0, "two"}) {
		t.Fatalf("expected arrays of different length to compare unequal")
	}
}
