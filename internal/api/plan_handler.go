package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/shaiso/Treeflow/internal/planner"
)

// maxPlanSize — ограничение тела запроса с планом.
const maxPlanSize = 1 << 20

// ListPlans возвращает планы каталога.
// GET /api/v1/plans
func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.catalog.List()
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}

	result := make([]PlanResponse, len(plans))
	for i, p := range plans {
		result[i] = PlanFromDomain(p)
	}

	List(w, result, len(result))
}

// GetPlan возвращает дерево дескрипторов плана.
// GET /api/v1/plans/{name}
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	plan, err := h.catalog.Load(name)
	if err != nil {
		h.planError(w, err)
		return
	}

	Success(w, PlanDetailResponse{Name: name, Plan: plan})
}

// ValidatePlan проверяет план из тела запроса (YAML или JSON по Content-Type).
// POST /api/v1/plans/validate
func (h *Handler) ValidatePlan(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxPlanSize))
	if err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	format := planner.FormatYAML
	if r.Header.Get("Content-Type") == "application/json" {
		format = planner.FormatJSON
	}

	plan, err := planner.Parse(data, format)
	if err != nil {
		InvalidPlan(w, err)
		return
	}
	if err := planner.Validate(plan); err != nil {
		InvalidPlan(w, err)
		return
	}

	Success(w, ValidateResponse{Valid: true})
}

// planError отвечает на ошибку загрузки плана: 404 для неизвестного, 422 для невалидного.
func (h *Handler) planError(w http.ResponseWriter, err error) {
	if errors.Is(err, planner.ErrPlanNotFound) {
		NotFound(w, "plan not found")
		return
	}
	InvalidPlan(w, err)
}
