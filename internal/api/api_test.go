package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/shaiso/Treeflow/internal/mq"
	"github.com/shaiso/Treeflow/internal/planner"
	"github.com/shaiso/Treeflow/internal/services"
)

type broken struct{}

func (broken) Fail(context.Context, ...any) (any, error) {
	return nil, errors.New("upstream unavailable")
}

type fakeRequester struct {
	mu       sync.Mutex
	requests []mq.RunRequestedPayload
}

func (r *fakeRequester) PublishRunRequested(_ context.Context, p mq.RunRequestedPayload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, p)
	return nil
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
	Error ErrorDetail     `json:"error"`
}

func newTestServer(t *testing.T, cfg Config) http.Handler {
	t.Helper()

	dir := t.TempDir()
	plans := map[string]string{
		"greet.yaml":  "type: job\ninvoke: transform.value\nargs: [\"hello •{ctx.name}\"]\nresult: greeting\n",
		"broken.yaml": "type: job\ninvoke: broken.fail\n",
	}
	for file, content := range plans {
		if err := os.WriteFile(filepath.Join(dir, file), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	svcs := services.Builtin(services.Config{Out: io.Discard})
	svcs["broken"] = broken{}

	cfg.Catalog = planner.NewCatalog(dir)
	cfg.Services = svcs
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	mux := http.NewServeMux()
	NewHandler(cfg).RegisterRoutes(mux)
	return mux
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode data %s: %v", raw, err)
	}
	return out
}

func TestListPlans(t *testing.T) {
	h := newTestServer(t, Config{})

	rec, env := do(t, h, http.MethodGet, "/api/v1/plans", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	plans := decode[[]PlanResponse](t, env.Data)
	if len(plans) != 2 || plans[0].Name != "broken" || plans[1].Name != "greet" || plans[1].Type != "job" {
		t.Errorf("plans = %+v", plans)
	}
}

func TestGetPlan(t *testing.T) {
	h := newTestServer(t, Config{})

	rec, env := do(t, h, http.MethodGet, "/api/v1/plans/greet", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	detail := decode[PlanDetailResponse](t, env.Data)
	if detail.Plan == nil || detail.Plan.Invoke != "transform.value" {
		t.Errorf("plan = %+v", detail.Plan)
	}

	rec, env = do(t, h, http.MethodGet, "/api/v1/plans/nope", "")
	if rec.Code != http.StatusNotFound || env.Error.Code != ErrCodeNotFound {
		t.Errorf("unknown plan: status = %d, code = %s", rec.Code, env.Error.Code)
	}
}

func TestValidatePlan(t *testing.T) {
	h := newTestServer(t, Config{})

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"valid", "type: queue\nqueue:\n  - type: job\n    invoke: delay.sleep\n", http.StatusOK},
		{"missing function", "type: job\n", http.StatusUnprocessableEntity},
		{"unknown type", "type: graph\n", http.StatusUnprocessableEntity},
		{"empty", "", http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := do(t, h, http.MethodPost, "/api/v1/plans/validate", tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, env.Error.Message)
			}
			if tt.wantStatus != http.StatusOK && env.Error.Code != ErrCodeInvalidPlan {
				t.Errorf("code = %s, want %s", env.Error.Code, ErrCodeInvalidPlan)
			}
		})
	}
}

func TestCreateRun_Sync(t *testing.T) {
	h := newTestServer(t, Config{})

	rec, env := do(t, h, http.MethodPost, "/api/v1/plans/greet/runs", `{"inputs": {"name": "ann"}}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	run := decode[RunResponse](t, env.Data)
	if run.Status != "SUCCEEDED" || run.Result != "hello ann" || run.Trigger != "manual" {
		t.Errorf("run = %+v", run)
	}
	if run.Context["greeting"] != "hello ann" {
		t.Errorf("context = %v", run.Context)
	}

	// Run сохранён
	rec, env = do(t, h, http.MethodGet, "/api/v1/runs/"+run.ID.String(), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GetRun status = %d, want 200", rec.Code)
	}
	if got := decode[RunResponse](t, env.Data); got.ID != run.ID || got.Status != "SUCCEEDED" {
		t.Errorf("GetRun = %+v", got)
	}

	rec, env = do(t, h, http.MethodGet, "/api/v1/runs?plan=greet&status=succeeded", "")
	if rec.Code != http.StatusOK || env.Total != 1 {
		t.Errorf("ListRuns status = %d, total = %d; want 200, 1", rec.Code, env.Total)
	}
}

func TestCreateRun_PlanFailure(t *testing.T) {
	h := newTestServer(t, Config{})

	rec, env := do(t, h, http.MethodPost, "/api/v1/plans/broken/runs", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	run := decode[RunResponse](t, env.Data)
	if run.Status != "FAILED" || !strings.Contains(run.Error, "upstream unavailable") {
		t.Errorf("run = %+v", run)
	}
}

func TestCreateRun_IdempotencyConflict(t *testing.T) {
	h := newTestServer(t, Config{})
	body := `{"idempotency_key": "k-1"}`

	if rec, _ := do(t, h, http.MethodPost, "/api/v1/plans/greet/runs", body); rec.Code != http.StatusCreated {
		t.Fatalf("first run status = %d, want 201", rec.Code)
	}
	rec, env := do(t, h, http.MethodPost, "/api/v1/plans/greet/runs", body)
	if rec.Code != http.StatusConflict || env.Error.Code != ErrCodeConflict {
		t.Errorf("second run status = %d, code = %s; want 409", rec.Code, env.Error.Code)
	}
}

func TestCreateRun_Async(t *testing.T) {
	h := newTestServer(t, Config{})
	rec, env := do(t, h, http.MethodPost, "/api/v1/plans/greet/runs", `{"async": true}`)
	if rec.Code != http.StatusServiceUnavailable || env.Error.Code != ErrCodeUnavailable {
		t.Errorf("without queue: status = %d, code = %s", rec.Code, env.Error.Code)
	}

	req := &fakeRequester{}
	h = newTestServer(t, Config{Requester: req})
	rec, env = do(t, h, http.MethodPost, "/api/v1/plans/greet/runs", `{"async": true, "inputs": {"name": "bob"}}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}

	accepted := decode[RunAcceptedResponse](t, env.Data)
	if len(req.requests) != 1 {
		t.Fatalf("requests = %d, want 1", len(req.requests))
	}
	got := req.requests[0]
	if got.RunID != accepted.RunID || got.Plan != "greet" || got.Inputs["name"] != "bob" {
		t.Errorf("request = %+v, accepted = %+v", got, accepted)
	}
}

func TestCreateRun_Errors(t *testing.T) {
	h := newTestServer(t, Config{})

	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
	}{
		{"unknown plan", "/api/v1/plans/nope/runs", "", http.StatusNotFound},
		{"bad body", "/api/v1/plans/greet/runs", "{", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := do(t, h, http.MethodPost, tt.path, tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestRuns_Errors(t *testing.T) {
	h := newTestServer(t, Config{})

	tests := []struct {
		name       string
		path       string
		wantStatus int
	}{
		{"invalid id", "/api/v1/runs/not-a-uuid", http.StatusBadRequest},
		{"unknown id", "/api/v1/runs/6f1d3c9e-5a43-4b7e-9a55-0c2f5d1e7b10", http.StatusNotFound},
		{"invalid status", "/api/v1/runs?status=bogus", http.StatusBadRequest},
		{"invalid limit", "/api/v1/runs?limit=-1", http.StatusBadRequest},
		{"empty list", "/api/v1/runs", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := do(t, h, http.MethodGet, tt.path, "")
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestListSchedules(t *testing.T) {
	file := filepath.Join(t.TempDir(), "schedules.yaml")
	content := "- name: nightly\n  plan: greet\n  cron: \"0 3 * * *\"\n- name: off\n  plan: greet\n  interval: 60\n  enabled: false\n"
	if err := os.WriteFile(file, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	h := newTestServer(t, Config{SchedulesFile: file})

	_, env := do(t, h, http.MethodGet, "/api/v1/schedules", "")
	all := decode[[]ScheduleResponse](t, env.Data)
	if len(all) != 2 || all[0].NextDueAt == nil {
		t.Fatalf("schedules = %+v", all)
	}

	_, env = do(t, h, http.MethodGet, "/api/v1/schedules?enabled=true", "")
	enabled := decode[[]ScheduleResponse](t, env.Data)
	if len(enabled) != 1 || enabled[0].Name != "nightly" {
		t.Errorf("enabled schedules = %+v", enabled)
	}
}

func TestInstrument(t *testing.T) {
	m := NewHTTPMetrics(prometheus.NewRegistry())
	h := newTestServer(t, Config{HTTPMetrics: m})

	do(t, h, http.MethodGet, "/api/v1/plans", "")
	do(t, h, http.MethodGet, "/api/v1/plans/nope", "")

	if got := testutil.ToFloat64(m.requests.WithLabelValues("GET /api/v1/plans", "200")); got != 1 {
		t.Errorf("plans 200 = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.requests.WithLabelValues("GET /api/v1/plans/{name}", "404")); got != 1 {
		t.Errorf("plan 404 = %v, want 1", got)
	}
}

func TestRecovery(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := Recovery(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}
