package node

import (
	"strings"
	"testing"
)

func testScope() *Scope {
	return NewScope(map[string]any{
		"a":    map[string]any{"b": []any{2, 3}},
		"obj":  map[string]any{"two": []any{"x", "y"}},
		"name": "Bob",
		"n":    42,
		"flag": true,
	})
}

func TestResolve(t *testing.T) {
	scope := testScope()

	tests := []struct {
		name  string
		value any
		want  any
	}{
		{"path lookup", "•a.b[0]", 2},
		{"second index", "•a.b[1]", 3},
		{"whole value", "•n", 42},
		{"bool value", "•flag", true},
		{"quoted key", "•obj['two'][1]", "y"},
		{"template", "x •{a.b[0]} y", "x 2 y"},
		{"template with spaces", "x •{ a.b[1] } y", "x 3 y"},
		{"embedded bare token", "Hello •name.", "Hello Bob."},
		{"two tokens", "•name is •n", "Bob is 42"},
		{"literal", "literal", "literal"},
		{"non-string", 7, 7},
		{"missing bare", "•missing", nil},
		{"missing template", "x •{missing} y", "x  y"},
		{"missing nested", "•a.c", nil},
		{"lone marker", "price • 5", "price • 5"},
		{"unclosed brace", "x •{a.b", "x •{a.b"},
		{"wildcard rejected", "•a.b[*]", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.value, scope)
			if got != tt.want {
				t.Errorf("Resolve(%v) = %#v, want %#v", tt.value, got, tt.want)
			}
		})
	}
}

func TestResolve_ParentScope(t *testing.T) {
	parent := NewScope(map[string]any{"user": map[string]any{"id": "u1"}})
	child := NewScope(nil)
	child.setParent(parent)

	if got := Resolve("•user.id", child); got != "u1" {
		t.Errorf("expected u1, got %v", got)
	}
	if got := Render("id=•{user.id}", child); got != "id=u1" {
		t.Errorf("expected id=u1, got %s", got)
	}
}

func TestResolveAll(t *testing.T) {
	got := ResolveAll([]any{"•n", "plain", 1.5}, testScope())
	if len(got) != 3 {
		t.Fatalf("expected 3 values, got %d", len(got))
	}
	if got[0] != 42 || got[1] != "plain" || got[2] != 1.5 {
		t.Errorf("unexpected values: %v", got)
	}

	if ResolveAll(nil, testScope()) != nil {
		t.Error("nil args should stay nil")
	}
}

func TestResolveString(t *testing.T) {
	scope := testScope()

	if got := ResolveString("•n", scope); got != "42" {
		t.Errorf("expected 42, got %q", got)
	}
	if got := ResolveString("•missing", scope); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}

type fakeResolver struct {
	paths []string
}

func (f *fakeResolver) ResolvePath(path string) (any, bool) {
	f.paths = append(f.paths, path)
	return "resolved" + path, true
}

func TestLookupPath_Resolver(t *testing.T) {
	r := &fakeResolver{}
	scope := NewScope(map[string]any{"ctx": r})

	got := Resolve("•ctx.users[0]", scope)
	if got != "resolved.users[0]" {
		t.Errorf("unexpected value: %v", got)
	}
	if len(r.paths) != 1 || r.paths[0] != ".users[0]" {
		t.Errorf("resolver should receive remainder path, got %v", r.paths)
	}

	// Голова без остатка возвращает сам объект
	if v := Resolve("•ctx", scope); v != r {
		t.Errorf("expected resolver itself, got %v", v)
	}
}

func TestParsePath(t *testing.T) {
	tests := []struct {
		path    string
		wantErr bool
	}{
		{"a.b", false},
		{".b[0]", false},
		{"[1].c", false},
		{"a['key']", false},
		{"", true},
		{"a[*]", true},
		{"a..b", true},
		{"a[?(@.x == 1)]", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			_, err := ParsePath(tt.path)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParsePath(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
		})
	}
}

func TestNavigate(t *testing.T) {
	data := map[string]any{"users": []any{map[string]any{"name": "ann"}}}

	v, ok := Navigate(data, "users[0].name")
	if !ok || v != "ann" {
		t.Errorf("expected ann, got %v (%v)", v, ok)
	}

	if _, ok := Navigate(data, "users[3].name"); ok {
		t.Error("out of range index should not resolve")
	}
}

func TestTruthy(t *testing.T) {
	tests := []struct {
		value any
		want  bool
	}{
		{nil, false},
		{false, false},
		{true, true},
		{"", false},
		{"false", false},
		{"yes", true},
		{0, false},
		{1, true},
		{0.0, false},
		{int32(3), true},
		{[]any{}, false},
		{[]any{1}, true},
		{map[string]any{}, false},
		{struct{}{}, true},
	}

	for _, tt := range tests {
		if got := Truthy(tt.value); got != tt.want {
			t.Errorf("Truthy(%#v) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestRender_NoMarker(t *testing.T) {
	s := strings.Repeat("plain ", 3)
	if got := Render(s, testScope()); got != s {
		t.Errorf("expected unchanged string, got %q", got)
	}
}
