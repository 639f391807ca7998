package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/shaiso/Treeflow/internal/api"
	"github.com/shaiso/Treeflow/internal/planner"
	"github.com/shaiso/Treeflow/internal/services"
)

const greetPlan = "type: job\ninvoke: transform.value\nargs: [\"hello •{ctx.name}\"]\nresult: greeting\n"

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// execute запускает корневую команду и возвращает stdout, stderr и ошибку.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer

	root := NewRootCmd("test")
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestParseInputs(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "inputs.yaml", "name: ann\nids: [1, 2]\n")

	tests := []struct {
		name    string
		file    string
		pairs   []string
		want    map[string]any
		wantErr bool
	}{
		{"empty", "", nil, nil, false},
		{"string", "", []string{"name=ann"}, map[string]any{"name": "ann"}, false},
		{"json values", "", []string{"n=3", "ok=true", `ids=["a","b"]`}, map[string]any{
			"n": float64(3), "ok": true, "ids": []any{"a", "b"},
		}, false},
		{"value with equals", "", []string{"q=a=b"}, map[string]any{"q": "a=b"}, false},
		{"file and override", file, []string{"name=bob"}, map[string]any{
			"name": "bob", "ids": []any{1, 2},
		}, false},
		{"missing equals", "", []string{"name"}, nil, true},
		{"empty key", "", []string{"=x"}, nil, true},
		{"missing file", filepath.Join(dir, "absent.yaml"), nil, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseInputs(tt.file, tt.pairs)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseInputs() error = %v, wantErr %v", err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("parseInputs() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRunCmd_Local(t *testing.T) {
	plan := writeFile(t, t.TempDir(), "greet.yaml", greetPlan)

	stdout, _, err := execute(t, "run", plan, "--input", "name=ann", "--json")
	if err != nil {
		t.Fatalf("run error: %v", err)
	}

	var run struct {
		Plan    string         `json:"plan"`
		Status  string         `json:"status"`
		Result  any            `json:"result"`
		Context map[string]any `json:"context"`
	}
	if err := json.Unmarshal([]byte(stdout), &run); err != nil {
		t.Fatalf("decode %q: %v", stdout, err)
	}
	if run.Plan != "greet" || run.Status != "SUCCEEDED" || run.Result != "hello ann" {
		t.Errorf("run = %+v", run)
	}
	if run.Context["greeting"] != "hello ann" {
		t.Errorf("context = %v", run.Context)
	}
}

func TestRunCmd_JSONInput(t *testing.T) {
	plan := writeFile(t, t.TempDir(), "ids.yaml", "type: job\ninvoke: transform.value\nargs: [\"•ctx.ids\"]\n")

	stdout, _, err := execute(t, "--json", "run", plan, "--input", `ids=["a","b"]`)
	if err != nil {
		t.Fatalf("run error: %v", err)
	}

	var run struct {
		Result any `json:"result"`
	}
	if err := json.Unmarshal([]byte(stdout), &run); err != nil {
		t.Fatalf("decode %q: %v", stdout, err)
	}
	if diff := cmp.Diff([]any{"a", "b"}, run.Result); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestRunCmd_Table(t *testing.T) {
	plan := writeFile(t, t.TempDir(), "greet.yaml", greetPlan)

	stdout, _, err := execute(t, "run", plan, "--input", "name=cid")
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	if !strings.Contains(stdout, "SUCCEEDED") || !strings.Contains(stdout, "hello cid") {
		t.Errorf("output = %q", stdout)
	}
}

func TestRunCmd_Failure(t *testing.T) {
	plan := writeFile(t, t.TempDir(), "bad.yaml", "type: job\ninvoke: delay.sleep\nargs: [soon]\n")

	stdout, _, err := execute(t, "run", plan)
	if !errors.Is(err, ErrRunFailed) {
		t.Fatalf("error = %v, want ErrRunFailed", err)
	}
	if !strings.Contains(stdout, "FAILED") {
		t.Errorf("output = %q, want FAILED row", stdout)
	}
}

func TestRunCmd_Timeout(t *testing.T) {
	plan := writeFile(t, t.TempDir(), "slow.yaml", "type: job\ninvoke: delay.sleep\nargs: [5]\n")

	start := time.Now()
	_, _, err := execute(t, "run", plan, "--timeout", "50ms")
	if !errors.Is(err, ErrRunFailed) {
		t.Fatalf("error = %v, want ErrRunFailed", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("timeout was not applied")
	}
}

func TestValidateCmd(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.yaml", greetPlan)
	bad := writeFile(t, dir, "bad.yaml", "type: loop\n")

	_, stderr, err := execute(t, "validate", good, bad)
	if err == nil || !strings.Contains(err.Error(), "1 of 2") {
		t.Errorf("error = %v, want 1 of 2 invalid", err)
	}
	if !strings.Contains(stderr, "good.yaml: ok") || !strings.Contains(stderr, "bad.yaml") {
		t.Errorf("stderr = %q", stderr)
	}

	if _, _, err := execute(t, "validate", good); err != nil {
		t.Errorf("validate good: %v", err)
	}
}

func newAPIServer(t *testing.T) *httptest.Server {
	t.Helper()

	dir := t.TempDir()
	writeFile(t, dir, "greet.yaml", greetPlan)

	h := api.NewHandler(api.Config{
		Catalog:  planner.NewCatalog(dir),
		Services: services.Builtin(services.Config{Out: io.Discard}),
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestSubmitAndRuns(t *testing.T) {
	srv := newAPIServer(t)

	stdout, _, err := execute(t, "--api-url", srv.URL, "--json", "submit", "greet", "--input", "name=bob")
	if err != nil {
		t.Fatalf("submit error: %v", err)
	}
	var run RunResponse
	if err := json.Unmarshal([]byte(stdout), &run); err != nil {
		t.Fatalf("decode %q: %v", stdout, err)
	}
	if run.Status != "SUCCEEDED" || run.Result != "hello bob" {
		t.Errorf("run = %+v", run)
	}

	stdout, _, err = execute(t, "--api-url", srv.URL, "--json", "runs", "list", "--plan", "greet")
	if err != nil {
		t.Fatalf("runs list error: %v", err)
	}
	var runs []RunResponse
	if err := json.Unmarshal([]byte(stdout), &runs); err != nil {
		t.Fatalf("decode %q: %v", stdout, err)
	}
	if len(runs) != 1 || runs[0].ID != run.ID {
		t.Errorf("runs = %+v", runs)
	}

	stdout, _, err = execute(t, "--api-url", srv.URL, "runs", "show", run.ID)
	if err != nil {
		t.Fatalf("runs show error: %v", err)
	}
	if !strings.Contains(stdout, run.ID) || !strings.Contains(stdout, "hello bob") {
		t.Errorf("show output = %q", stdout)
	}
}

func TestClient_APIError(t *testing.T) {
	srv := newAPIServer(t)
	client := NewClient(srv.URL)

	_, err := client.CreateRun("nope", CreateRunRequest{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusNotFound || apiErr.Code != "NOT_FOUND" {
		t.Errorf("APIError = %+v", apiErr)
	}

	// Без очереди асинхронный запуск недоступен
	_, err = client.EnqueueRun("greet", CreateRunRequest{})
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("EnqueueRun error = %v, want 503", err)
	}
}

func TestPlanList(t *testing.T) {
	srv := newAPIServer(t)

	stdout, _, err := execute(t, "--api-url", srv.URL, "plan", "list")
	if err != nil {
		t.Fatalf("plan list error: %v", err)
	}
	if !strings.Contains(stdout, "greet") || !strings.Contains(stdout, "job") {
		t.Errorf("output = %q", stdout)
	}
}

func TestScheduleNext(t *testing.T) {
	stdout, _, err := execute(t, "--json", "schedule", "next", "--cron", "@daily", "--count", "3")
	if err != nil {
		t.Fatalf("schedule next error: %v", err)
	}

	var times []time.Time
	if err := json.Unmarshal([]byte(stdout), &times); err != nil {
		t.Fatalf("decode %q: %v", stdout, err)
	}
	if len(times) != 3 {
		t.Fatalf("len = %d, want 3", len(times))
	}
	for i, tm := range times {
		if tm.Hour() != 0 || tm.Minute() != 0 {
			t.Errorf("times[%d] = %s, want midnight", i, tm)
		}
		if i > 0 && tm.Sub(times[i-1]) != 24*time.Hour {
			t.Errorf("times[%d] - times[%d] = %s, want 24h", i, i-1, tm.Sub(times[i-1]))
		}
	}

	if _, _, err := execute(t, "schedule", "next"); err == nil {
		t.Error("expected error without --cron/--interval")
	}
}
