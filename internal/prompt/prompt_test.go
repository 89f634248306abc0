package prompt

import "testing"

func TestRenderSubstitutesVariables(t *testing.T) {
	got, err := Render("hello {{.name}}, you are {{.age}}", map[string]any{"name": "ada", "age": 30})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if got != "hello ada, you are 30" {
		t.Fatalf("Render() = %q", got)
	}
}

func TestRenderWithoutVariablesReturnsTemplateUnchanged(t *testing.T) {
	got, err := Render("static text", nil)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if got != "static text" {
		t.Fatalf("Render() = %q", got)
	}
}

func TestRenderFailsOnUnresolvedPlaceholder(t *testing.T) {
	_, err := Render("hi {{.missing}}", map[string]any{"other": "x"})
	if err == nil {
		t.Fatalf("Render() error = nil, want an error for an unresolved placeholder")
	}
}

func TestRenderFailsOnUnresolvedPlaceholderWithNilVars(t *testing.T) {
	_, err := Render("hi {{.missing}}", nil)
	if err == nil {
		t.Fatalf("Render() error = nil, want an error for an unresolved placeholder")
	}
}
