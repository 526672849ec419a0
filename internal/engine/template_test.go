package engine

import (
	"errors"
	"testing"
)

func TestNewContext(t *testing.T) {
	// С nil values
	ctx := NewContext(nil)
	if ctx.DS == nil {
		t.Error("DS should not be nil")
	}

	// Со значениями
	ctx = NewContext(map[string]any{"user": map[string]any{"name": "Ann"}})
	if _, ok := ctx.Source("user"); !ok {
		t.Error("DS should contain provided source")
	}
}

func TestContext_Lookup(t *testing.T) {
	ctx := NewContext(map[string]any{
		"user": map[string]any{
			"name": "Ann",
			"tags": []any{"a", "b"},
		},
	})

	tests := []struct {
		name  string
		path  []string
		want  any
		found bool
	}{
		{"field", []string{"user", "name"}, "Ann", true},
		{"slice index", []string{"user", "tags", "1"}, "b", true},
		{"index out of range", []string{"user", "tags", "5"}, nil, false},
		{"missing key", []string{"user", "age"}, nil, false},
		{"missing source", []string{"cart", "total"}, nil, false},
		{"empty path", nil, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := ctx.Lookup(tt.path)
			if found != tt.found {
				t.Fatalf("expected found=%v, got %v", tt.found, found)
			}
			if found && got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestRender_DataSources(t *testing.T) {
	ctx := NewContext(map[string]any{
		"user": map[string]any{"name": "test", "count": 42},
	})

	tests := []struct {
		name     string
		template string
		expected string
	}{
		{"string field", "Hello, {{ .DS.user.name }}!", "Hello, test!"},
		{"number field", "Count: {{ .DS.user.count }}", "Count: 42"},
		{"no template", "Plain text", "Plain text"},
		{"upper func", "{{ upper .DS.user.name }}", "TEST"},
		{"default func", `{{ default "anon" .DS.user.nick }}`, "anon"},
		{"json func", "{{ json .DS.user.count }}", "42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Render(tt.template, ctx)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestRender_Errors(t *testing.T) {
	ctx := NewContext(nil)

	_, err := Render("{{ .DS.user", ctx)
	if !errors.Is(err, ErrTemplateParse) {
		t.Errorf("expected ErrTemplateParse, got %v", err)
	}

	_, err = Render("{{ index .DS.user 5 }}", NewContext(map[string]any{"user": []any{}}))
	if !errors.Is(err, ErrTemplateRender) {
		t.Errorf("expected ErrTemplateRender, got %v", err)
	}
}

func TestRender_CachedTemplateReused(t *testing.T) {
	tmpl := "{{ .DS.n.v }}"

	first, err := Render(tmpl, NewContext(map[string]any{"n": map[string]any{"v": 1}}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := Render(tmpl, NewContext(map[string]any{"n": map[string]any{"v": 2}}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first != "1" || second != "2" {
		t.Errorf("expected 1 and 2, got %q and %q", first, second)
	}
}

func TestRenderValue_Nested(t *testing.T) {
	ctx := NewContext(map[string]any{"user": map[string]any{"name": "Ann"}})

	value := map[string]any{
		"title": "{{ .DS.user.name }}",
		"list":  []any{"a", "{{ .DS.user.name }}", 3},
		"style": map[string]string{"color": "red"},
		"flag":  true,
	}

	rendered, err := RenderValue(value, ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m := rendered.(map[string]any)
	if m["title"] != "Ann" {
		t.Errorf("expected Ann, got %v", m["title"])
	}
	if m["list"].([]any)[1] != "Ann" || m["list"].([]any)[2] != 3 {
		t.Errorf("unexpected list: %v", m["list"])
	}
	if m["flag"] != true {
		t.Error("bool should pass through")
	}

	// исходное значение не изменяется
	if value["title"] != "{{ .DS.user.name }}" {
		t.Error("source value should not be changed")
	}
}

func TestRenderProps(t *testing.T) {
	props, err := RenderProps(nil, NewContext(nil))
	if err != nil || props == nil {
		t.Fatalf("expected empty props, got %v, %v", props, err)
	}
}

func TestHasTemplate(t *testing.T) {
	tests := []struct {
		value any
		want  bool
	}{
		{"plain", false},
		{"{{ .DS.a.b }}", true},
		{map[string]any{"x": []any{"{{ .DS.a }}"}}, true},
		{[]string{"a", "b"}, false},
		{map[string]string{"k": "{{ x }}"}, true},
		{42, false},
		{nil, false},
	}

	for _, tt := range tests {
		if got := HasTemplate(tt.value); got != tt.want {
			t.Errorf("HasTemplate(%v) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestRender_MissingKey(t *testing.T) {
	ctx := NewContext(map[string]any{"user": map[string]any{"vip": true}})

	tests := []struct {
		name string
		tmpl string
		want string
	}{
		{"missing source", "{{ .DS.missing.field }}", ""},
		{"missing field", "Hi {{ .DS.user.name }}", "Hi "},
		{"literal kept", "<no value> {{ .DS.user.name }}", "<no value> <no value>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(tt.tmpl, ctx)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
