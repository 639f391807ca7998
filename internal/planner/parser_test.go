package planner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/shaiso/Treeflow/internal/node"
)

const yamlPlan = `
type: queue
name: users
maxConcurrency: 2
scope:
  greeting: hello
queue:
  - type: job
    name: first
    invoke: text.upper
    args: ["•greeting"]
    result: out.first
  - type: job
    service: text
    invoke: echo
    args: ["•{greeting}, world"]
    onSuccess:
      type: job
      invoke: text.upper
  - type: loop
    for:
      var: name
      of: names
    node:
      type: job
      invoke: text.echo
      args: ["•name"]
`

type textService struct{}

func (textService) Upper(_ context.Context, args ...any) (any, error) {
	s, _ := args[0].(string)
	out := []rune(s)
	for i, r := range out {
		if r >= 'a' && r <= 'z' {
			out[i] = r - 'a' + 'A'
		}
	}
	return string(out), nil
}

func (textService) Echo(_ context.Context, args ...any) (any, error) {
	return args[0], nil
}

func TestParse_YAML(t *testing.T) {
	d, err := Parse([]byte(yamlPlan), FormatYAML)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if d.Type != TypeQueue || len(d.Queue) != 3 {
		t.Fatalf("unexpected plan: %+v", d)
	}
	if d.Queue[0].Result != "out.first" {
		t.Errorf("expected result path, got %q", d.Queue[0].Result)
	}
	if d.Queue[1].OnSuccess == nil || d.Queue[1].OnSuccess.Invoke != "text.upper" {
		t.Error("onSuccess should be parsed")
	}
	if d.Queue[2].For == nil || d.Queue[2].For.Var != "name" || d.Queue[2].For.Of != "names" {
		t.Errorf("for should be parsed, got %+v", d.Queue[2].For)
	}
	if err := Validate(d); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestParse_CompileAndRun(t *testing.T) {
	d, err := Parse([]byte(yamlPlan), FormatYAML)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	p := New()
	if err := p.AddService("text", textService{}); err != nil {
		t.Fatalf("AddService: %v", err)
	}

	c := NewContext(map[string]any{"names": []any{"ann", "bob"}})
	root, err := p.Compile(d, c)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	res, err := root.Process(context.Background())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	want := []any{"HELLO", "HELLO, WORLD", []any{"ann", "bob"}}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}

	if v, _ := c.Get("out.first"); v != "HELLO" {
		t.Errorf("result should be written to context, got %v", v)
	}
}

func TestParse_JSON(t *testing.T) {
	data := []byte(`{"type":"queue","maxConcurrency":3,"after":false,"queue":[{"type":"job","invoke":"echo","args":[1]}]}`)

	d, err := Parse(data, FormatJSON)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if d.After == nil || *d.After {
		t.Error("after:false should be parsed")
	}

	p := New()
	_ = p.AddService("", Service{"echo": func(_ context.Context, args ...any) (any, error) { return args[0], nil }})

	root, err := p.Compile(d, nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if q := root.(*node.Queue); q.MaxConcurrency != 3 {
		t.Errorf("JSON number should become maxConcurrency 3, got %d", q.MaxConcurrency)
	}

	res, err := root.Process(context.Background())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if diff := cmp.Diff([]any{float64(1)}, res); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_Errors(t *testing.T) {
	if _, err := Parse(nil, FormatYAML); !errors.Is(err, ErrEmptyPlan) {
		t.Errorf("expected ErrEmptyPlan, got %v", err)
	}
	if _, err := Parse([]byte("type: ["), FormatYAML); err == nil {
		t.Error("expected yaml error")
	}
	if _, err := Parse([]byte("{"), FormatJSON); err == nil {
		t.Error("expected json error")
	}
	if _, err := Parse([]byte("type: job"), "toml"); err == nil {
		t.Error("expected unknown format error")
	}
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "plan.yaml")
	if err := os.WriteFile(yamlPath, []byte("type: job\ninvoke: echo\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	jsonPath := filepath.Join(dir, "plan.json")
	if err := os.WriteFile(jsonPath, []byte(`{"type":"job","invoke":"echo"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{yamlPath, jsonPath} {
		d, err := ParseFile(path)
		if err != nil {
			t.Fatalf("ParseFile(%s): %v", path, err)
		}
		if d.Type != TypeJob || d.Invoke != "echo" {
			t.Errorf("unexpected descriptor from %s: %+v", path, d)
		}
	}

	if _, err := ParseFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestFormatOf(t *testing.T) {
	tests := map[string]Format{
		"a.json": FormatJSON,
		"a.JSON": FormatJSON,
		"a.yaml": FormatYAML,
		"a.yml":  FormatYAML,
		"a":      FormatYAML,
	}
	for path, want := range tests {
		if got := FormatOf(path); got != want {
			t.Errorf("FormatOf(%s) = %s, want %s", path, got, want)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		desc    *Descriptor
		wantErr error
	}{
		{"nil plan", nil, ErrEmptyPlan},
		{"unknown type", &Descriptor{Type: "nope"}, ErrUnknownType},
		{"job without function", &Descriptor{Type: TypeJob}, ErrMissingFunction},
		{"nested job without function", &Descriptor{Type: TypeQueue, Queue: []*Descriptor{{Type: TypeJob}}}, ErrMissingFunction},
		{"template from file", &Descriptor{Type: TypeTemplate}, ErrMissingTemplate},
		{"loop without iterable", &Descriptor{Type: TypeLoop, Invoke: "x"}, ErrMissingIterable},
		{"loop without function", &Descriptor{Type: TypeLoop, For: &ForSpec{Of: "x"}}, ErrMissingFunction},
		{"loop node and invoke", &Descriptor{Type: TypeLoop, For: &ForSpec{Of: "x"}, Invoke: "x", Node: &Descriptor{Type: TypeJob, Invoke: "y"}}, ErrConflictingFunction},
		{"bad concurrency", &Descriptor{Type: TypeQueue, MaxConcurrency: 0}, node.ErrInvalidConcurrency},
		{"bad onSuccess", &Descriptor{Type: TypeJob, Invoke: "x", OnSuccess: &Descriptor{Type: "?"}}, ErrUnknownType},
		{"valid", &Descriptor{Type: TypeQueue, Queue: []*Descriptor{{Type: TypeJob, Invoke: "x"}}}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.desc)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}
