package planner

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writePlan(t *testing.T, dir, file, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, file), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", file, err)
	}
}

func TestCatalog_Load(t *testing.T) {
	dir := t.TempDir()
	writePlan(t, dir, "hello.yaml", "type: job\ninvoke: print.print\nargs: [hello]\n")
	writePlan(t, dir, "batch.json", `{"type": "queue", "queue": [{"type": "job", "invoke": "delay.sleep"}]}`)

	c := NewCatalog(dir)

	d, err := c.Load("hello")
	if err != nil {
		t.Fatalf("Load(hello) error: %v", err)
	}
	if d.Type != TypeJob || d.Invoke != "print.print" {
		t.Errorf("Load(hello) = %+v", d)
	}

	d, err = c.Load("batch")
	if err != nil {
		t.Fatalf("Load(batch) error: %v", err)
	}
	if d.Type != TypeQueue || len(d.Queue) != 1 {
		t.Errorf("Load(batch) = %+v", d)
	}
}

func TestCatalog_LoadErrors(t *testing.T) {
	dir := t.TempDir()
	writePlan(t, dir, "broken.yaml", "type: job\n")

	c := NewCatalog(dir)

	tests := []struct {
		name    string
		plan    string
		wantErr error
	}{
		{"missing", "nope", ErrPlanNotFound},
		{"traversal", "../etc/passwd", ErrPlanNotFound},
		{"empty name", "", ErrPlanNotFound},
		{"invalid plan", "broken", ErrMissingFunction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Load(tt.plan)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Load(%q) error = %v, want %v", tt.plan, err, tt.wantErr)
			}
		})
	}
}

func TestCatalog_List(t *testing.T) {
	dir := t.TempDir()
	writePlan(t, dir, "b.yml", "type: job\ninvoke: print.print\n")
	writePlan(t, dir, "a.json", `{"type": "queue"}`)
	writePlan(t, dir, "garbage.yaml", "type: [unclosed")
	writePlan(t, dir, "notes.txt", "not a plan")

	plans, err := NewCatalog(dir).List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}

	var got []string
	for _, p := range plans {
		got = append(got, p.Name+":"+p.Type)
	}
	want := []string{"a:queue", "b:job"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("List() = %v, want %v", got, want)
	}
}

func TestCatalog_ListMissingDir(t *testing.T) {
	plans, err := NewCatalog(filepath.Join(t.TempDir(), "absent")).List()
	if err != nil || plans != nil {
		t.Errorf("List() = %v, %v; want nil, nil", plans, err)
	}
}
