package partialjson

import (
	"reflect"
	"testing"
)

func TestParseCompleteValues(t *testing.T) {
	tests := []struct {
		name string
		text string
		want any
	}{
		{"object", `{"a":1,"b":"x"}`, map[string]any{"a": 1.0, "b": "x"}},
		{"array", `[1,2,3]`, []any{1.0, 2.0, 3.0}},
		{"string", `"hello"`, "hello"},
		{"number", `42`, 42.0},
		{"true", `true`, true},
		{"null", `null`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.text)
			if got.State != StateSuccessful {
				t.Fatalf("state = %v, want successful-parse", got.State)
			}
			if !reflect.DeepEqual(got.Value, tt.want) {
				t.Errorf("value = %#v, want %#v", got.Value, tt.want)
			}
		})
	}
}

func TestParseRepairsTruncatedObjects(t *testing.T) {
	tests := []struct {
		name string
		text string
		want map[string]any
	}{
		{"open brace", `{`, map[string]any{}},
		{"trailing comma", `{"a":1,`, map[string]any{"a": 1.0}},
		{"dangling key", `{"a":1,"b"`, map[string]any{"a": 1.0}},
		{"key no colon", `{"a":1,"b":`, map[string]any{"a": 1.0}},
		{"unterminated string value", `{"a":"hel`, map[string]any{"a": "hel"}},
		{"in-progress number", `{"a":1,"b":12`, map[string]any{"a": 1.0, "b": 12.0}},
		{"trailing decimal point", `{"a":12.`, map[string]any{}},
		{"bare minus", `{"a":-`, map[string]any{}},
		{"nested object", `{"a":{"b":1`, map[string]any{"a": map[string]any{"b": 1.0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.text)
			if got.State != StateRepaired {
				t.Fatalf("state = %v, want repaired-parse", got.State)
			}
			if !reflect.DeepEqual(got.Value, any(tt.want)) {
				t.Errorf("value = %#v, want %#v", got.Value, tt.want)
			}
		})
	}
}

func TestParseRepairsTruncatedArrays(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []any
	}{
		{"open bracket", `[`, []any{}},
		{"one complete element", `[1,`, []any{1.0}},
		{"partial trailing number", `[1,2,3.`, []any{1.0, 2.0}},
		{"partial trailing string", `["a","b`, []any{"a", "b"}},
		{"nested array", `[[1,2],[3`, []any{[]any{1.0, 2.0}, []any{3.0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.text)
			if got.State != StateRepaired {
				t.Fatalf("state = %v, want repaired-parse", got.State)
			}
			if !reflect.DeepEqual(got.Value, any(tt.want)) {
				t.Errorf("value = %#v, want %#v", got.Value, tt.want)
			}
		})
	}
}

func TestParseEmptyTextIsRepaired(t *testing.T) {
	got := Parse("")
	if got.State != StateRepaired {
		t.Fatalf("state = %v, want repaired-parse", got.State)
	}
	if got.Value != nil {
		t.Errorf("value = %#v, want nil", got.Value)
	}
}

func TestParseWhitespaceOnlyIsRepaired(t *testing.T) {
	got := Parse("   \n\t")
	if got.State != StateRepaired {
		t.Fatalf("state = %v, want repaired-parse", got.State)
	}
}

func TestParseRejectsNonJSONStart(t *testing.T) {
	tests := []string{"nope", "<html>", "undefined", "+1"}
	for _, text := range tests {
		t.Run(text, func(t *testing.T) {
			got := Parse(text)
			if got.State != StateFailed {
				t.Errorf("state = %v, want failed-parse", got.State)
			}
		})
	}
}

func TestParseIsDeterministic(t *testing.T) {
	text := `{"a":[1,2,{"b":"val`
	first := Parse(text)
	second := Parse(text)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Parse is not deterministic: %#v vs %#v", first, second)
	}
}
