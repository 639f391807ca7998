package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/shaiso/Treeflow/internal/domain"
	"github.com/shaiso/Treeflow/internal/mq"
	"github.com/shaiso/Treeflow/internal/repo"
	"github.com/shaiso/Treeflow/internal/work"
)

// ListRuns возвращает список runs с фильтрацией.
// GET /api/v1/runs?plan=...&status=...&limit=...&offset=...
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repo.RunFilter{Plan: q.Get("plan")}

	if s := q.Get("status"); s != "" {
		filter.Status = domain.ParseRunStatus(strings.ToUpper(s))
		if filter.Status == "" {
			BadRequest(w, "invalid status")
			return
		}
	}

	var err error
	if filter.Limit, err = queryInt(q.Get("limit"), 50); err != nil {
		BadRequest(w, "invalid limit")
		return
	}
	if filter.Offset, err = queryInt(q.Get("offset"), 0); err != nil {
		BadRequest(w, "invalid offset")
		return
	}

	runs, err := h.runs.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]RunResponse, len(runs))
	for i, run := range runs {
		result[i] = RunFromDomain(run)
	}

	List(w, result, len(result))
}

// CreateRun запускает план.
// POST /api/v1/plans/{name}/runs
//
// По умолчанию план выполняется в запросе и ответ содержит итог run
// (в том числе FAILED). С async=true run ставится в очередь worker.
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var req CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		BadRequest(w, "invalid request body")
		return
	}

	plan, err := h.catalog.Load(name)
	if err != nil {
		h.planError(w, err)
		return
	}

	if req.Async {
		h.enqueueRun(w, r, name, req)
		return
	}

	// Синхронный run
	opts := []work.Option{
		work.WithLogger(h.logger),
		work.WithServices(h.services),
		work.WithStore(h.runs),
	}
	if h.metrics != nil {
		opts = append(opts, work.WithMetrics(h.metrics))
	}

	wk, err := work.New(opts...)
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}
	if err := wk.SetPlan(name, plan); err != nil {
		InvalidPlan(w, err)
		return
	}

	run := domain.NewRun(name, domain.TriggerManual, req.Inputs)
	run.IdempotencyKey = req.IdempotencyKey

	// Ошибка плана уже записана в run
	if err := wk.Execute(r.Context(), run); errors.Is(err, repo.ErrAlreadyExists) {
		Conflict(w, "run with this idempotency key already exists")
		return
	}

	Created(w, RunFromDomain(*run))
}

// enqueueRun публикует запрос run для worker.
func (h *Handler) enqueueRun(w http.ResponseWriter, r *http.Request, name string, req CreateRunRequest) {
	if h.requester == nil {
		Unavailable(w, "run queue is not configured")
		return
	}

	payload := mq.RunRequestedPayload{
		RunID:          uuid.New(),
		Plan:           name,
		Trigger:        domain.TriggerManual,
		Inputs:         req.Inputs,
		IdempotencyKey: req.IdempotencyKey,
	}
	if err := h.requester.PublishRunRequested(r.Context(), payload); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	h.logger.Info("run enqueued", "run_id", payload.RunID, "plan", name)
	Accepted(w, RunAcceptedResponse{
		RunID:  payload.RunID,
		Plan:   name,
		Status: string(domain.RunStatusPending),
	})
}

// GetRun возвращает run по ID.
// GET /api/v1/runs/{id}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	run, err := h.runs.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "run not found") {
		return
	}

	Success(w, RunFromDomain(*run))
}

// queryInt разбирает неотрицательное целое; пустая строка — def.
func queryInt(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, errors.New("invalid integer")
	}
	return n, nil
}
